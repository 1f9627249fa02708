// Package geometry provides planar joint-angle helpers.
package geometry

import "math"

// Point is a 2D coordinate in normalized frame space.
type Point struct {
	X float64
	Y float64
}

// Angle returns the unsigned angle in degrees at vertex b formed by the rays
// b->a and b->c. The result lies in [0, 180]. If either ray has zero length
// the angle is undefined and NaN is returned.
func Angle(a, b, c Point) float64 {
	if a == b || c == b {
		return math.NaN()
	}
	radians := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	deg := math.Abs(radians * 180.0 / math.Pi)
	if deg > 180.0 {
		deg = 360.0 - deg
	}
	return deg
}

// IsDegenerate reports whether an angle returned by Angle is the undefined sentinel.
func IsDegenerate(angle float64) bool {
	return math.IsNaN(angle)
}
