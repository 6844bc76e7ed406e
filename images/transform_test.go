package images

import (
	"math"
	"testing"
)

func rectsClose(a, b Rect, epsilon float64) bool {
	return math.Abs(float64(a.X1-b.X1)) <= epsilon &&
		math.Abs(float64(a.Y1-b.Y1)) <= epsilon &&
		math.Abs(float64(a.X2-b.X2)) <= epsilon &&
		math.Abs(float64(a.Y2-b.Y2)) <= epsilon
}

// TestDecode validates the center/size regression transform.
func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		ref      Rect
		delta    Delta
		expected Rect
	}{
		{
			name:     "Zero delta is identity",
			ref:      Rect{10, 20, 30, 60},
			delta:    Delta{},
			expected: Rect{10, 20, 30, 60},
		},
		{
			name:  "Center shift scales with reference size",
			ref:   Rect{0, 0, 10, 10},
			delta: Delta{DX: 0.5, DY: -0.5},
			// center moves from (5,5) to (10,0), size unchanged
			expected: Rect{5, -5, 15, 5},
		},
		{
			name:  "Size scales exponentially",
			ref:   Rect{0, 0, 10, 10},
			delta: Delta{DW: float32(math.Ln2), DH: float32(math.Ln2)},
			// width and height double around the same center
			expected: Rect{-5, -5, 15, 15},
		},
		{
			name:  "Shift and shrink",
			ref:   Rect{0, 0, 20, 10},
			delta: Delta{DX: 0.25, DW: -float32(math.Ln2)},
			// center x moves 0.25*20=5, width halves to 10
			expected: Rect{10, 0, 20, 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.ref, tt.delta)
			if !rectsClose(got, tt.expected, 1e-4) {
				t.Errorf("Decode() = %v, expected %v", got, tt.expected)
			}
		})
	}
}
