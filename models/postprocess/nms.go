// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"
	"sync"

	"github.com/nvr-ai/go-detect/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold is the overlap at or above which a lower-scored box
	// is suppressed. The threshold is inclusive on the suppression
	// side: a tie at exactly the threshold suppresses.
	IoUThreshold float32
	// MaxDetections caps the number of boxes kept per invocation.
	// Zero or negative means no cap.
	MaxDetections int
}

// sortByScore orders results by descending score. Equal scores fall
// back to ascending original index so the order is reproducible for
// identical inputs.
func sortByScore(detections []Result) {
	sort.SliceStable(detections, func(i, j int) bool {
		if detections[i].Score != detections[j].Score {
			return detections[i].Score > detections[j].Score
		}
		return detections[i].Index < detections[j].Index
	})
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Candidates are sorted by descending score, then the highest-scored
// remaining box is repeatedly selected and every other remaining box
// whose IoU with it reaches IoUThreshold is discarded. The input slice
// is not modified.
//
// Arguments:
//   - detections: Candidate detections in any order.
//   - config: NMS configuration.
//
// Returns:
//   - Kept detections in descending score order. For any two kept
//     boxes the pairwise IoU is strictly below IoUThreshold. Returns
//     nil when no detections are provided.
func ApplyGreedyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := make([]Result, n)
	copy(sorted, detections)
	sortByScore(sorted)

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true

		if config.MaxDetections > 0 && len(filtered) >= config.MaxDetections {
			break
		}

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}

			// Suppress if IoU reaches the threshold.
			if images.CalculateIoU(anchor.Box, sorted[j].Box) >= config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}

// ApplyClassNMS partitions detections by class and runs greedy NMS on
// each class independently. The per-class passes share no mutable
// state, so every class is processed on its own goroutine; the
// returned slice is indexed by class id, which keeps the merge order
// independent of goroutine scheduling.
//
// Arguments:
//   - detections: Candidate detections across all classes.
//   - numClasses: Number of foreground classes; entries with a class
//     outside [0, numClasses) are dropped.
//   - config: NMS configuration applied per class.
//
// Returns:
//   - One slice of kept detections per class id, each in descending
//     score order.
func ApplyClassNMS(detections []Result, numClasses int, config *NMSConfig) [][]Result {
	byClass := make([][]Result, numClasses)
	for _, det := range detections {
		if det.Class < 0 || det.Class >= numClasses {
			continue
		}
		byClass[det.Class] = append(byClass[det.Class], det)
	}

	selected := make([][]Result, numClasses)

	var wg sync.WaitGroup
	for c := 0; c < numClasses; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			selected[c] = ApplyGreedyNMS(byClass[c], config)
		}(c)
	}
	wg.Wait()

	return selected
}

// TopK returns the k highest-scoring detections in descending score
// order. When fewer than k detections exist, all of them are
// returned. The input slice is not modified.
func TopK(detections []Result, k int) []Result {
	if k > len(detections) {
		k = len(detections)
	}
	if k <= 0 {
		return nil
	}

	sorted := make([]Result, len(detections))
	copy(sorted, detections)
	sortByScore(sorted)

	return sorted[:k]
}
