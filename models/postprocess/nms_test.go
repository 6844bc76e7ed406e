package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/images"
)

// TestApplyGreedyNMS verifies suppression, ordering and the per-call
// detection cap.
func TestApplyGreedyNMS(t *testing.T) {
	tests := []struct {
		name        string
		detections  []Result
		config      NMSConfig
		wantIndexes []int
	}{
		{
			name:        "empty input returns nil",
			detections:  nil,
			config:      NMSConfig{IoUThreshold: 0.5},
			wantIndexes: nil,
		},
		{
			name: "single detection kept",
			detections: []Result{
				{Box: images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: 0.9, Index: 0},
			},
			config:      NMSConfig{IoUThreshold: 0.5},
			wantIndexes: []int{0},
		},
		{
			name: "overlapping lower score suppressed",
			detections: []Result{
				{Box: images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: 0.8, Index: 0},
				{Box: images.Rect{X1: 1, Y1: 1, X2: 11, Y2: 11}, Score: 0.75, Index: 1},
			},
			config:      NMSConfig{IoUThreshold: 0.3},
			wantIndexes: []int{0},
		},
		{
			name: "disjoint boxes all kept in score order",
			detections: []Result{
				{Box: images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: 0.6, Index: 0},
				{Box: images.Rect{X1: 50, Y1: 50, X2: 60, Y2: 60}, Score: 0.9, Index: 1},
				{Box: images.Rect{X1: 80, Y1: 80, X2: 90, Y2: 90}, Score: 0.7, Index: 2},
			},
			config:      NMSConfig{IoUThreshold: 0.5},
			wantIndexes: []int{1, 2, 0},
		},
		{
			name: "tie at exactly the threshold suppresses",
			detections: []Result{
				{Box: images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: 0.9, Index: 0},
				{Box: images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: 0.5, Index: 1},
			},
			config:      NMSConfig{IoUThreshold: 1.0},
			wantIndexes: []int{0},
		},
		{
			name: "cap stops selection",
			detections: []Result{
				{Box: images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: 0.9, Index: 0},
				{Box: images.Rect{X1: 50, Y1: 50, X2: 60, Y2: 60}, Score: 0.8, Index: 1},
				{Box: images.Rect{X1: 80, Y1: 80, X2: 90, Y2: 90}, Score: 0.7, Index: 2},
			},
			config:      NMSConfig{IoUThreshold: 0.5, MaxDetections: 2},
			wantIndexes: []int{0, 1},
		},
		{
			name: "equal scores ordered by original index",
			detections: []Result{
				{Box: images.Rect{X1: 50, Y1: 50, X2: 60, Y2: 60}, Score: 0.7, Index: 7},
				{Box: images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: 0.7, Index: 2},
			},
			config:      NMSConfig{IoUThreshold: 0.5},
			wantIndexes: []int{2, 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyGreedyNMS(tt.detections, &tt.config)

			gotIndexes := make([]int, 0, len(got))
			for _, det := range got {
				gotIndexes = append(gotIndexes, det.Index)
			}
			if tt.wantIndexes == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.wantIndexes, gotIndexes)
			}

			// Kept boxes must be pairwise below the threshold.
			for i := 0; i < len(got); i++ {
				for j := i + 1; j < len(got); j++ {
					if tt.config.MaxDetections > 0 {
						continue // cap may leave unsuppressed overlap unchecked
					}
					iou := images.CalculateIoU(got[i].Box, got[j].Box)
					assert.Less(t, iou, tt.config.IoUThreshold,
						"kept boxes %d and %d overlap too much", i, j)
				}
			}

			// Scores must be non-increasing.
			for i := 1; i < len(got); i++ {
				assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
			}
		})
	}
}

// TestApplyGreedyNMS_InputUntouched ensures the candidate slice is not
// reordered by the call.
func TestApplyGreedyNMS_InputUntouched(t *testing.T) {
	detections := []Result{
		{Box: images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: 0.2, Index: 0},
		{Box: images.Rect{X1: 50, Y1: 50, X2: 60, Y2: 60}, Score: 0.9, Index: 1},
	}

	_ = ApplyGreedyNMS(detections, &NMSConfig{IoUThreshold: 0.5})

	assert.Equal(t, 0, detections[0].Index)
	assert.Equal(t, float32(0.2), detections[0].Score)
}

// TestApplyClassNMS verifies the per-class partitioning: boxes of
// different classes never suppress each other, and the output is
// indexed by class id regardless of scheduling.
func TestApplyClassNMS(t *testing.T) {
	detections := []Result{
		// Two heavily overlapping class-0 boxes: one survives.
		{Box: images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: 0.8, Class: 0, Index: 0},
		{Box: images.Rect{X1: 1, Y1: 1, X2: 11, Y2: 11}, Score: 0.75, Class: 0, Index: 1},
		// Same region, different class: kept despite the overlap.
		{Box: images.Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}, Score: 0.9, Class: 1, Index: 2},
		// Out-of-range class id is dropped.
		{Box: images.Rect{X1: 20, Y1: 20, X2: 30, Y2: 30}, Score: 0.99, Class: 5, Index: 3},
	}

	selected := ApplyClassNMS(detections, 2, &NMSConfig{IoUThreshold: 0.3})

	require.Len(t, selected, 2)

	require.Len(t, selected[0], 1)
	assert.Equal(t, 0, selected[0][0].Index)

	require.Len(t, selected[1], 1)
	assert.Equal(t, 2, selected[1][0].Index)
}

// TestApplyClassNMS_Deterministic runs the concurrent fan-out many
// times and requires identical output each time.
func TestApplyClassNMS_Deterministic(t *testing.T) {
	detections := make([]Result, 0, 40)
	for i := 0; i < 40; i++ {
		detections = append(detections, Result{
			Box:   images.Rect{X1: float32(i), Y1: float32(i), X2: float32(i + 10), Y2: float32(i + 10)},
			Score: float32(i%7) / 10,
			Class: i % 4,
			Index: i,
		})
	}

	first := ApplyClassNMS(detections, 4, &NMSConfig{IoUThreshold: 0.4})
	for run := 0; run < 20; run++ {
		again := ApplyClassNMS(detections, 4, &NMSConfig{IoUThreshold: 0.4})
		assert.Equal(t, first, again)
	}
}

// TestTopK verifies global selection, ordering and the index
// tie-break.
func TestTopK(t *testing.T) {
	detections := []Result{
		{Score: 0.5, Index: 0},
		{Score: 0.9, Index: 1},
		{Score: 0.7, Index: 2},
		{Score: 0.7, Index: 3},
	}

	t.Run("k larger than input returns everything", func(t *testing.T) {
		got := TopK(detections, 10)
		require.Len(t, got, 4)
		assert.Equal(t, []int{1, 2, 3, 0}, []int{got[0].Index, got[1].Index, got[2].Index, got[3].Index})
	})

	t.Run("k selects the highest scores", func(t *testing.T) {
		got := TopK(detections, 2)
		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].Index)
		assert.Equal(t, 2, got[1].Index) // 0.7 tie resolved by index
	})

	t.Run("zero k returns nothing", func(t *testing.T) {
		assert.Empty(t, TopK(detections, 0))
	})

	t.Run("input order is preserved", func(t *testing.T) {
		_ = TopK(detections, 2)
		assert.Equal(t, 0, detections[0].Index)
	})
}

// BenchmarkApplyGreedyNMS measures suppression over a dense cluster of
// candidates, the worst case for the pairwise IoU loop.
func BenchmarkApplyGreedyNMS(b *testing.B) {
	detections := make([]Result, 0, 512)
	for i := 0; i < 512; i++ {
		offset := float32(i % 32)
		detections = append(detections, Result{
			Box:   images.Rect{X1: offset, Y1: offset, X2: offset + 20, Y2: offset + 20},
			Score: float32(i%100) / 100,
			Index: i,
		})
	}
	config := &NMSConfig{IoUThreshold: 0.5, MaxDetections: 100}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = ApplyGreedyNMS(detections, config)
	}
}
