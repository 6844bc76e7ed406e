// Package images - box geometry utilities.
package images

// Rect is a lightweight axis-aligned bounding box in
// (x_min, y_min, x_max, y_max) order.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Width returns the horizontal extent of the box.
func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the box.
func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

// Area returns the area of the box. Degenerate extents clamp to zero,
// so the result is never negative.
func (r Rect) Area() float32 {
	return max(r.Width(), 0) * max(r.Height(), 0)
}

// Center returns the box in center/size form.
func (r Rect) Center() (cx, cy, w, h float32) {
	w = r.Width()
	h = r.Height()
	cx = r.X1 + w/2
	cy = r.Y1 + h/2
	return cx, cy, w, h
}

// FromCenter builds a Rect from center/size form.
func FromCenter(cx, cy, w, h float32) Rect {
	return Rect{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

// Clip clamps each coordinate independently to the image bounds
// [0, width-1] x [0, height-1]. Pure elementwise operation; the box
// count of callers is never affected.
//
// Arguments:
//   - width: Image width in pixels.
//   - height: Image height in pixels.
//
// Returns:
//   - The clamped box.
func (r Rect) Clip(width, height int) Rect {
	maxX := float32(width - 1)
	maxY := float32(height - 1)
	return Rect{
		X1: min(max(r.X1, 0), maxX),
		Y1: min(max(r.Y1, 0), maxY),
		X2: min(max(r.X2, 0), maxX),
		Y2: min(max(r.Y2, 0), maxY),
	}
}

// CalculateIoU computes the Intersection over Union of two boxes.
//
// IoU = Area of Intersection / Area of Union
//
//   - 1.0 means the boxes are identical.
//   - 0.0 means the boxes do not overlap at all.
//
// The intersection's top-left corner is the maximum of the two
// top-left corners and its bottom-right corner is the minimum of the
// two bottom-right corners. If either extent comes out non-positive
// the boxes are disjoint and the IoU is 0, which also avoids a
// division by zero for two degenerate boxes.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value in [0, 1].
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	unionArea := r.Area() + o.Area() - interArea

	return interArea / unionArea
}
