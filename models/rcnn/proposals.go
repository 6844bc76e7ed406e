package rcnn

import (
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/profiler"
)

// proposalWidth is the inner dimension of one raw proposal row: a
// batch tag followed by (x_min, y_min, x_max, y_max).
const proposalWidth = 5

// deltaWidth is the number of regression values per class.
const deltaWidth = 4

// Proposer turns raw RPN proposals plus classification head outputs
// into the final labeled detections for one image.
//
// A Proposer holds only configuration; every invocation of Detect is
// an independent, deterministic computation with no state carried
// between calls, so a single Proposer may be shared across goroutines.
type Proposer struct {
	numClasses int
	config     Config
	profiler   *profiler.StageProfiler
}

// NewProposer creates a Proposer for a model with the given number of
// foreground classes. The configuration is validated eagerly so a bad
// threshold is rejected before any data is processed.
//
// Arguments:
//   - numClasses: Number of foreground classes (background excluded).
//   - config: Pipeline configuration.
//
// Returns:
//   - A configured Proposer, or an error wrapping ErrInvalidConfig.
func NewProposer(numClasses int, config Config) (*Proposer, error) {
	if numClasses <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"num_classes must be positive, got %d", numClasses)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Proposer{numClasses: numClasses, config: config}, nil
}

// NumClasses returns the number of foreground classes.
func (p *Proposer) NumClasses() int { return p.numClasses }

// Config returns the pipeline configuration.
func (p *Proposer) Config() Config { return p.config }

// SetProfiler attaches a stage profiler. Passing nil disables timing
// collection, which is also the default.
func (p *Proposer) SetProfiler(sp *profiler.StageProfiler) { p.profiler = sp }

// Output holds the result of one Detect invocation.
type Output struct {
	// RawObjects are the decoded boxes before clipping, co-indexed
	// with the proposals that survived label assignment. Kept for
	// diagnostics only; later stages operate on clipped boxes.
	RawObjects []images.Rect

	// Objects are the final detection boxes, ordered by descending
	// probability. len(Objects) never exceeds TotalMaxDetections.
	Objects []images.Rect

	// Labels are the foreground class ids co-indexed with Objects.
	Labels []int

	// Probs are the confidences co-indexed with Objects.
	Probs []float32

	// PerClass is the per-class NMS output before the global top-K
	// merge, indexed by class id.
	PerClass [][]postprocess.Result
}

// proposal is one surviving row flowing between pipeline stages. The
// index is the row's position in the original input and doubles as the
// tie-break key for equal probabilities.
type proposal struct {
	box   images.Rect
	label int
	prob  float32
	delta images.Delta
	index int
}

// Detect runs the full refinement pipeline over one image's worth of
// network outputs.
//
// Arguments:
//   - proposals: (N, 5) rows; each row is a batch tag followed by
//     (x_min, y_min, x_max, y_max). The tag must be constant across
//     rows and is stripped, never used for grouping.
//   - bboxDeltas: (N, 4*numClasses) rows, one (dx, dy, dw, dh) tuple
//     per foreground class.
//   - classProbs: (N, numClasses+1) rows; index 0 is the background
//     class.
//   - imageHeight, imageWidth: Image bounds used for clipping.
//
// Returns:
//   - The final detections. Degenerate inputs (zero rows, everything
//     filtered or suppressed) yield an empty Output, not an error.
//   - An error wrapping ErrShapeMismatch when any two co-indexed
//     inputs disagree on row count or a row has the wrong inner
//     dimension.
func (p *Proposer) Detect(
	proposals, bboxDeltas, classProbs [][]float32, imageHeight, imageWidth int,
) (*Output, error) {
	if len(bboxDeltas) != len(proposals) || len(classProbs) != len(proposals) {
		return nil, errors.Wrapf(ErrShapeMismatch,
			"row counts differ: proposals=%d bbox_deltas=%d class_probs=%d",
			len(proposals), len(bboxDeltas), len(classProbs))
	}

	boxes, err := p.stripBatchTags(proposals)
	if err != nil {
		return nil, err
	}

	survivors, err := p.assignLabels(boxes, classProbs)
	if err != nil {
		return nil, err
	}

	if err := p.gatherDeltas(survivors, bboxDeltas); err != nil {
		return nil, err
	}

	raw := p.decode(survivors)
	clipped := p.clip(raw, imageHeight, imageWidth)
	survivors, clipped = p.filterValid(survivors, clipped)

	perClass := p.classNMS(survivors, clipped)

	out := p.topK(perClass)
	out.RawObjects = raw
	out.PerClass = perClass
	return out, nil
}

// track starts a stage timer; the returned func stops it.
func (p *Proposer) track(stage string) func() {
	if p.profiler == nil {
		return func() {}
	}
	start := time.Now()
	return func() { p.profiler.Record(stage, time.Since(start)) }
}

// stripBatchTags validates each proposal row and drops the leading
// batch tag. The tag must be the same on every row; proposals from
// more than one batch entry cannot be refined in a single call.
func (p *Proposer) stripBatchTags(proposals [][]float32) ([]images.Rect, error) {
	defer p.track("strip_batch_tags")()

	boxes := make([]images.Rect, len(proposals))
	for i, row := range proposals {
		if len(row) != proposalWidth {
			return nil, errors.Wrapf(ErrShapeMismatch,
				"proposal %d has %d values, want %d", i, len(row), proposalWidth)
		}
		if row[0] != proposals[0][0] {
			return nil, errors.Wrapf(ErrShapeMismatch,
				"proposal %d batch tag %v differs from %v; single-image input required",
				i, row[0], proposals[0][0])
		}
		boxes[i] = images.Rect{X1: row[1], Y1: row[2], X2: row[3], Y2: row[4]}
	}
	return boxes, nil
}

// assignLabels picks the most probable class per proposal and filters
// out background and low-confidence rows.
//
// The label is the argmax over the probability row minus one, so that
// background (index 0) maps to -1 and foreground classes map to
// [0, numClasses). A row survives iff its label is non-negative and
// its probability reaches MinProbThreshold.
func (p *Proposer) assignLabels(boxes []images.Rect, classProbs [][]float32) ([]proposal, error) {
	defer p.track("assign_labels")()

	survivors := make([]proposal, 0, len(boxes))
	for i, probs := range classProbs {
		if len(probs) != p.numClasses+1 {
			return nil, errors.Wrapf(ErrShapeMismatch,
				"class_probs row %d has %d values, want %d", i, len(probs), p.numClasses+1)
		}

		argmax := 0
		best := probs[0]
		for j, prob := range probs {
			if prob > best {
				best = prob
				argmax = j
			}
		}

		label := argmax - 1
		if label < 0 || best < p.config.MinProbThreshold {
			continue
		}

		survivors = append(survivors, proposal{
			box:   boxes[i],
			label: label,
			prob:  best,
			index: i,
		})
	}
	return survivors, nil
}

// gatherDeltas copies, for each surviving row, the 4-value regression
// delta at offset 4*label within that row's delta block. This is a
// per-row indexed read; the other classes' deltas are never
// materialized.
func (p *Proposer) gatherDeltas(survivors []proposal, bboxDeltas [][]float32) error {
	defer p.track("gather_deltas")()

	for i := range survivors {
		s := &survivors[i]
		row := bboxDeltas[s.index]
		if len(row) != deltaWidth*p.numClasses {
			return errors.Wrapf(ErrShapeMismatch,
				"bbox_deltas row %d has %d values, want %d",
				s.index, len(row), deltaWidth*p.numClasses)
		}

		offset := deltaWidth * s.label
		s.delta = images.Delta{
			DX: row[offset],
			DY: row[offset+1],
			DW: row[offset+2],
			DH: row[offset+3],
		}
	}
	return nil
}

// decode applies each surviving row's delta to its proposal box.
func (p *Proposer) decode(survivors []proposal) []images.Rect {
	defer p.track("decode")()

	raw := make([]images.Rect, len(survivors))
	for i, s := range survivors {
		raw[i] = images.Decode(s.box, s.delta)
	}
	return raw
}

// clip clamps the decoded boxes to the image bounds.
func (p *Proposer) clip(raw []images.Rect, imageHeight, imageWidth int) []images.Rect {
	defer p.track("clip")()

	clipped := make([]images.Rect, len(raw))
	for i, r := range raw {
		clipped[i] = r.Clip(imageWidth, imageHeight)
	}
	return clipped
}

// filterValid drops rows whose clipped box fails the area test,
// keeping survivors and boxes co-indexed. Area() clamps each extent to
// zero, so area >= 0 holds for every clipped box and no row is ever
// removed here; the pass is kept literal rather than tightened to a
// strict inequality.
func (p *Proposer) filterValid(survivors []proposal, clipped []images.Rect) ([]proposal, []images.Rect) {
	defer p.track("filter_valid")()

	keptRows := make([]proposal, 0, len(survivors))
	keptBoxes := make([]images.Rect, 0, len(clipped))
	for i, r := range clipped {
		if r.Area() >= 0 {
			keptRows = append(keptRows, survivors[i])
			keptBoxes = append(keptBoxes, r)
		}
	}
	return keptRows, keptBoxes
}

// classNMS partitions the surviving detections by class, suppresses
// overlapping boxes per class, and caps each class's detections.
func (p *Proposer) classNMS(survivors []proposal, clipped []images.Rect) [][]postprocess.Result {
	defer p.track("class_nms")()

	candidates := make([]postprocess.Result, len(survivors))
	for i, s := range survivors {
		candidates[i] = postprocess.Result{
			Box:   clipped[i],
			Score: s.prob,
			Class: s.label,
			Index: s.index,
		}
	}

	return postprocess.ApplyClassNMS(candidates, p.numClasses, &postprocess.NMSConfig{
		IoUThreshold:  p.config.ClassNMSThreshold,
		MaxDetections: p.config.ClassMaxDetections,
	})
}

// topK merges the per-class results in class-id order and keeps the
// globally highest-probability detections up to TotalMaxDetections.
func (p *Proposer) topK(perClass [][]postprocess.Result) *Output {
	defer p.track("top_k")()

	total := 0
	for _, class := range perClass {
		total += len(class)
	}

	merged := make([]postprocess.Result, 0, total)
	for _, class := range perClass {
		merged = append(merged, class...)
	}

	selected := postprocess.TopK(merged, p.config.TotalMaxDetections)

	out := &Output{
		Objects: make([]images.Rect, len(selected)),
		Labels:  make([]int, len(selected)),
		Probs:   make([]float32, len(selected)),
	}
	for i, det := range selected {
		out.Objects[i] = det.Box
		out.Labels[i] = det.Class
		out.Probs[i] = det.Score
	}
	return out
}
