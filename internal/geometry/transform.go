package geometry

// Transform is the affine mapping from view-box space to screen space:
// screen = viewbox*Scale + Offset. The editor only ever scales uniformly and
// pans, so a full 3x3 matrix is not needed.
type Transform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// Identity returns the unit transform.
func Identity() Transform {
	return Transform{Scale: 1}
}

// Apply projects a view-box point into screen space.
func (t Transform) Apply(p Point) Point {
	return Point{
		X: p.X*t.Scale + t.OffsetX,
		Y: p.Y*t.Scale + t.OffsetY,
	}
}

// Invert projects a screen point back into view-box space. A degenerate
// (zero-scale) transform falls back to identity so a click never produces
// non-finite coordinates.
func (t Transform) Invert(p Point) Point {
	scale := t.Scale
	if scale == 0 {
		scale = 1
	}
	return Point{
		X: (p.X - t.OffsetX) / scale,
		Y: (p.Y - t.OffsetY) / scale,
	}
}
