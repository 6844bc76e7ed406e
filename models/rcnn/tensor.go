package rcnn

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DetectDense runs Detect over rank-2 Float32 dense tensors, the form
// in which network outputs usually arrive from a tensor runtime.
//
// Arguments:
//   - proposals: Dense tensor of shape (N, 5).
//   - bboxDeltas: Dense tensor of shape (N, 4*numClasses).
//   - classProbs: Dense tensor of shape (N, numClasses+1).
//   - imageHeight, imageWidth: Image bounds used for clipping.
//
// Returns:
//   - The final detections, or an error wrapping ErrShapeMismatch when
//     a tensor is not rank-2 Float32 or the rows disagree.
func (p *Proposer) DetectDense(
	proposals, bboxDeltas, classProbs *tensor.Dense, imageHeight, imageWidth int,
) (*Output, error) {
	proposalRows, err := denseRows(proposals)
	if err != nil {
		return nil, errors.Wrap(err, "proposals")
	}
	deltaRows, err := denseRows(bboxDeltas)
	if err != nil {
		return nil, errors.Wrap(err, "bbox_deltas")
	}
	probRows, err := denseRows(classProbs)
	if err != nil {
		return nil, errors.Wrap(err, "class_probs")
	}

	return p.Detect(proposalRows, deltaRows, probRows, imageHeight, imageWidth)
}

// denseRows reslices a rank-2 Float32 dense tensor into per-row
// views. No data is copied; the rows alias the tensor's backing
// array.
func denseRows(t *tensor.Dense) ([][]float32, error) {
	shape := t.Shape()
	if len(shape) != 2 {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"expected a rank-2 tensor, got shape %v", shape)
	}

	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"expected a float32 tensor, got %v", t.Dtype())
	}

	rows, cols := shape[0], shape[1]
	if len(data) != rows*cols {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"tensor data has %d values, want %d for shape %v", len(data), rows*cols, shape)
	}

	out := make([][]float32, rows)
	for i := range out {
		out[i] = data[i*cols : (i+1)*cols]
	}
	return out, nil
}
