package geometry

// Sanitize drops points with non-finite coordinates. Malformed input is
// filtered silently rather than rejected, so a single bad vertex never
// discards the whole polygon.
func Sanitize(points []Point) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Finite() {
			out = append(out, p)
		}
	}
	return out
}

// Normalize converts pixel-space points into the unit square relative to the
// given view box. Coordinates are clamped to [0,1] and rounded, which makes
// the operation idempotent: normalizing an already-normalized list against a
// unit view box yields the identical list.
func Normalize(points []Point, width, height float64) []Point {
	if width <= 0 || height <= 0 {
		return Sanitize(points)
	}
	out := make([]Point, 0, len(points))
	for _, p := range Sanitize(points) {
		out = append(out, Point{
			X: clamp01(p.X / width),
			Y: clamp01(p.Y / height),
		}.Round())
	}
	return out
}

// Denormalize converts unit-square points back into pixel space for the given
// view box.
func Denormalize(points []Point, width, height float64) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range Sanitize(points) {
		out = append(out, Point{X: p.X * width, Y: p.Y * height}.Round())
	}
	return out
}

// Clamp limits a pixel-space point to [0,width] x [0,height].
func Clamp(p Point, width, height float64) Point {
	return Point{
		X: clampRange(p.X, 0, width),
		Y: clampRange(p.Y, 0, height),
	}
}

// Rescale remaps pixel-space points proportionally from one view box to
// another (x' = x * newWidth/oldWidth), preserving the visual shape when the
// background image is resized.
func Rescale(points []Point, oldW, oldH, newW, newH float64) []Point {
	if oldW <= 0 || oldH <= 0 {
		return Sanitize(points)
	}
	out := make([]Point, 0, len(points))
	for _, p := range Sanitize(points) {
		out = append(out, Point{
			X: p.X * newW / oldW,
			Y: p.Y * newH / oldH,
		}.Round())
	}
	return out
}

// Translate shifts every point by (dx, dy), clamping each vertex to the view
// box independently. Vertices at the boundary stop while the rest keep
// moving, which can distort the shape at the edges; that matches the drag
// behavior the editor exposes.
func Translate(points []Point, dx, dy, width, height float64) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		out = append(out, Clamp(Point{X: p.X + dx, Y: p.Y + dy}, width, height).Round())
	}
	return out
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
