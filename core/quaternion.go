package core

import (
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/signalsfoundry/orbital-flight-sim/model"
)

// Quaternion is a unit rotation used for craft orientation.
type Quaternion struct {
	X, Y, Z, W float64
}

// IdentityQuaternion is the zero rotation.
var IdentityQuaternion = Quaternion{W: 1}

// Craft body axes.
var (
	AxisRight   = Vec3{X: 1}
	AxisUp      = Vec3{Y: 1}
	AxisForward = Vec3{Z: 1}
)

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// FromAxisAngle builds the rotation of angle radians about axis.
func FromAxisAngle(axis Vec3, angle float64) Quaternion {
	s, c := math.Sincos(angle * 0.5)
	a := axis.Unit()
	return Quaternion{X: a.X * s, Y: a.Y * s, Z: a.Z * s, W: c}.Normalize()
}

// Normalize rescales q to unit length. A degenerate quaternion becomes the identity.
func (q Quaternion) Normalize() Quaternion {
	n := quat.Abs(q.number())
	if n <= 1e-12 || math.IsNaN(n) {
		return IdentityQuaternion
	}
	return fromNumber(quat.Scale(1/n, q.number()))
}

// Mul composes a then b (the Hamilton product a*b) and renormalizes the result
// so repeated composition cannot drift away from unit length.
func (q Quaternion) Mul(b Quaternion) Quaternion {
	return fromNumber(quat.Mul(q.number(), b.number())).Normalize()
}

// Rotate applies the rotation to v.
func (q Quaternion) Rotate(v Vec3) Vec3 {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q.number(), p), quat.Conj(q.number()))
	return Vec3{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Norm returns the quaternion's length.
func (q Quaternion) Norm() float64 {
	return quat.Abs(q.number())
}

// Orientation converts q into its model representation.
func (q Quaternion) Orientation() model.Orientation {
	return model.Orientation{X: q.X, Y: q.Y, Z: q.Z, W: q.W}
}
