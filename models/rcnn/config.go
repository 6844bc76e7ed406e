// Package rcnn - final proposal refinement for two-stage detectors.
//
// The package takes the proposals generated by a region proposal
// network together with the classification head's per-class box deltas
// and probabilities, and produces the final list of labeled,
// deduplicated detections for one image.
package rcnn

import "github.com/pkg/errors"

var (
	// ErrShapeMismatch reports co-indexed arrays whose lengths disagree
	// at a pipeline boundary. It signals a contract violation by the
	// upstream network, so the call aborts rather than truncating.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidConfig reports configuration values outside their
	// documented ranges. Configuration is validated before any data is
	// touched.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config controls the proposal refinement pipeline.
type Config struct {
	// ClassMaxDetections caps the number of detections kept per class.
	ClassMaxDetections int `json:"class_max_detections"`

	// ClassNMSThreshold is the IoU threshold for per-class NMS, in [0, 1].
	ClassNMSThreshold float32 `json:"class_nms_threshold"`

	// TotalMaxDetections caps the total number of detections returned.
	TotalMaxDetections int `json:"total_max_detections"`

	// MinProbThreshold drops proposals whose best foreground
	// probability falls below it, in [0, 1]. Zero keeps everything
	// non-background.
	MinProbThreshold float32 `json:"min_prob_threshold"`
}

// DefaultConfig returns a production-ready configuration with sensible
// defaults for COCO-scale models.
func DefaultConfig() Config {
	return Config{
		ClassMaxDetections: 100,
		ClassNMSThreshold:  0.5,
		TotalMaxDetections: 300,
		MinProbThreshold:   0,
	}
}

// Validate checks every field against its documented range.
//
// Returns:
//   - nil when the configuration is usable, otherwise an error
//     wrapping ErrInvalidConfig naming the offending field.
func (c Config) Validate() error {
	if c.ClassMaxDetections <= 0 {
		return errors.Wrapf(ErrInvalidConfig,
			"class_max_detections must be positive, got %d", c.ClassMaxDetections)
	}
	if c.ClassNMSThreshold < 0 || c.ClassNMSThreshold > 1 {
		return errors.Wrapf(ErrInvalidConfig,
			"class_nms_threshold must be in [0, 1], got %v", c.ClassNMSThreshold)
	}
	if c.TotalMaxDetections <= 0 {
		return errors.Wrapf(ErrInvalidConfig,
			"total_max_detections must be positive, got %d", c.TotalMaxDetections)
	}
	if c.MinProbThreshold < 0 || c.MinProbThreshold > 1 {
		return errors.Wrapf(ErrInvalidConfig,
			"min_prob_threshold must be in [0, 1], got %v", c.MinProbThreshold)
	}
	return nil
}
