// Package geometry provides the canonical point representation used by region
// polygons and the conversions between pixel space and normalized space.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"
)

// Precision is the number of decimal places kept on serialized coordinates.
const Precision = 4

// Point is a single vertex. It serializes as a 2-element array: [x, y].
type Point struct {
	X float64
	Y float64
}

// Round returns a copy of p with both coordinates rounded to Precision.
func (p Point) Round() Point {
	return Point{X: round(p.X), Y: round(p.Y)}
}

// Finite reports whether both coordinates are finite numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// MarshalJSON encodes the point as [x, y] rounded to Precision.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{round(p.X), round(p.Y)})
}

// UnmarshalJSON decodes a 2-element numeric array.
func (p *Point) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 2 {
		return fmt.Errorf("point must have exactly 2 coordinates, got %d", len(arr))
	}
	p.X = arr[0]
	p.Y = arr[1]
	return nil
}

func round(v float64) float64 {
	pow := math.Pow10(Precision)
	return math.Round(v*pow) / pow
}
