package images

import "github.com/chewxy/math32"

// Delta is a (dx, dy, dw, dh) regression offset that parametrizes the
// transformation from a reference box to a refined box.
type Delta struct {
	DX, DY, DW, DH float32
}

// Decode applies a regression delta to a reference box.
//
// The reference box is taken in center/size form and shifted by the
// delta: the center moves proportionally to the reference size and the
// size scales exponentially.
//
//	cx' = cx + dx*w
//	cy' = cy + dy*h
//	w'  = w * exp(dw)
//	h'  = h * exp(dh)
//
// Arguments:
//   - ref: The reference box (e.g. an RPN proposal).
//   - d: The regression delta predicted for ref.
//
// Returns:
//   - The refined absolute-coordinate box.
func Decode(ref Rect, d Delta) Rect {
	cx, cy, w, h := ref.Center()

	cx += d.DX * w
	cy += d.DY * h
	w *= math32.Exp(d.DW)
	h *= math32.Exp(d.DH)

	return FromCenter(cx, cy, w, h)
}
