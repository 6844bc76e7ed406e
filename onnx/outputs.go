// Package onnx - adapters between onnxruntime output tensors and the
// proposal refinement pipeline.
package onnx

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-detect/models/rcnn"
)

// RCNNOutputs groups the three head outputs of a two-stage detector
// for one image, reshaped into row form.
type RCNNOutputs struct {
	// Proposals are (N, 5) rows: batch tag plus box corners.
	Proposals [][]float32
	// BBoxDeltas are (N, 4*num_classes) rows.
	BBoxDeltas [][]float32
	// ClassProbs are (N, num_classes+1) rows, background first.
	ClassProbs [][]float32
}

// ExtractRCNNOutputs reads the proposal, delta and probability tensors
// produced by a session run and reshapes each into rows. The rows
// alias the tensors' data, so they are only valid until the tensors
// are destroyed.
//
// Arguments:
//   - proposals, bboxDeltas, classProbs: Rank-2 float32 output tensors.
//
// Returns:
//   - The reshaped outputs, or an error wrapping rcnn.ErrShapeMismatch
//     when a tensor is not rank-2.
func ExtractRCNNOutputs(proposals, bboxDeltas, classProbs *ort.Tensor[float32]) (*RCNNOutputs, error) {
	p, err := tensorRows(proposals)
	if err != nil {
		return nil, errors.Wrap(err, "proposals")
	}
	d, err := tensorRows(bboxDeltas)
	if err != nil {
		return nil, errors.Wrap(err, "bbox_deltas")
	}
	c, err := tensorRows(classProbs)
	if err != nil {
		return nil, errors.Wrap(err, "class_probs")
	}

	return &RCNNOutputs{Proposals: p, BBoxDeltas: d, ClassProbs: c}, nil
}

// Detect feeds a session's output tensors through the given Proposer.
func Detect(
	p *rcnn.Proposer,
	proposals, bboxDeltas, classProbs *ort.Tensor[float32],
	imageHeight, imageWidth int,
) (*rcnn.Output, error) {
	outputs, err := ExtractRCNNOutputs(proposals, bboxDeltas, classProbs)
	if err != nil {
		return nil, err
	}
	return p.Detect(outputs.Proposals, outputs.BBoxDeltas, outputs.ClassProbs, imageHeight, imageWidth)
}

// tensorRows reshapes one rank-2 tensor into row views.
func tensorRows(t *ort.Tensor[float32]) ([][]float32, error) {
	shape := t.GetShape()
	if len(shape) != 2 {
		return nil, errors.Wrapf(rcnn.ErrShapeMismatch,
			"expected a rank-2 tensor, got shape %v", shape)
	}
	return ReshapeRows(t.GetData(), int(shape[0]), int(shape[1]))
}

// ReshapeRows slices flat row-major data into rows without copying.
//
// Arguments:
//   - data: Flat row-major values.
//   - rows, cols: Target shape; rows*cols must equal len(data).
//
// Returns:
//   - Row views into data, or an error wrapping rcnn.ErrShapeMismatch.
func ReshapeRows(data []float32, rows, cols int) ([][]float32, error) {
	if rows < 0 || cols < 0 || rows*cols != len(data) {
		return nil, errors.Wrapf(rcnn.ErrShapeMismatch,
			"cannot reshape %d values into (%d, %d)", len(data), rows, cols)
	}

	out := make([][]float32, rows)
	for i := range out {
		out[i] = data[i*cols : (i+1)*cols]
	}
	return out, nil
}
