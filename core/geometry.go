package core

import (
	"math"

	"github.com/signalsfoundry/orbital-flight-sim/model"
)

// unitEpsilon is the shortest vector Unit will rescale.
const unitEpsilon = 1e-9

// Vec3 is a world-frame vector. It is a value type; every operation returns
// a new vector.
type Vec3 struct {
	X, Y, Z float64
}

// FromMotion converts a model position into a vector.
func FromMotion(m model.Motion) Vec3 {
	return Vec3{X: m.X, Y: m.Y, Z: m.Z}
}

// Motion converts the vector into its model representation.
func (v Vec3) Motion() model.Motion {
	return model.Motion{X: v.X, Y: v.Y, Z: v.Z}
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns v × other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Unit returns v scaled to length 1. Vectors shorter than 1e-9 are returned
// unchanged, so the zero vector stays zero.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n <= unitEpsilon {
		return v
	}
	return v.Scale(1 / n)
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// IsFinite reports whether every component is a finite number.
func (v Vec3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// ClampNorm scales v down so its length does not exceed limit. A limit <= 0
// disables the clamp.
func (v Vec3) ClampNorm(limit float64) Vec3 {
	if !(limit > 0) {
		return v
	}
	n := v.Norm()
	if n <= limit {
		return v
	}
	return v.Scale(limit / n)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
