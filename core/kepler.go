package core

import (
	"math"

	"github.com/signalsfoundry/orbital-flight-sim/model"
)

const (
	twoPi = 2 * math.Pi

	// DefaultKeplerIterations caps Newton-Raphson. Eccentricities up to ~0.25
	// converge in well under five steps; near-parabolic orbits may need a
	// higher cap via KeplerSolver.
	DefaultKeplerIterations = 10
	// DefaultKeplerTolerance is the step size at which iteration stops.
	DefaultKeplerTolerance = 1e-8

	// Above this eccentricity the first guess is π instead of M.
	highEccentricity = 0.8
)

// KeplerSolver solves Kepler's equation M = E - e·sin(E) for E.
// The zero value uses the default iteration cap and tolerance.
type KeplerSolver struct {
	MaxIterations int
	Tolerance     float64
}

// DefaultKeplerSolver is the solver used by ComputePosition.
var DefaultKeplerSolver = KeplerSolver{
	MaxIterations: DefaultKeplerIterations,
	Tolerance:     DefaultKeplerTolerance,
}

// Solve returns the eccentric anomaly for mean anomaly M and eccentricity e,
// and the number of Newton steps taken. When the cap is hit the last
// estimate is returned; non-convergence is never an error.
func (s KeplerSolver) Solve(M, e float64) (E float64, iterations int) {
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultKeplerIterations
	}
	tol := s.Tolerance
	if !(tol > 0) {
		tol = DefaultKeplerTolerance
	}

	M = NormalizeAngle(M)
	E = M
	if e > highEccentricity {
		E = math.Pi
	}

	for iterations < maxIter {
		iterations++
		dE := (E - e*math.Sin(E) - M) / (1 - e*math.Cos(E))
		E -= dE
		if math.Abs(dE) < tol {
			break
		}
	}
	return E, iterations
}

// SolveKepler solves Kepler's equation with the default solver.
func SolveKepler(M, e float64) float64 {
	E, _ := DefaultKeplerSolver.Solve(M, e)
	return E
}

// NormalizeAngle reduces an angle into [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}

// MeanAnomaly returns the mean anomaly at simTime, reduced into [0, 2π).
func MeanAnomaly(el model.OrbitalElements, simTime, orbitalTimeScale float64) float64 {
	n := twoPi / el.OrbitalPeriod
	return NormalizeAngle(el.StartAngleRadians + n*simTime*orbitalTimeScale)
}

// TrueAnomaly converts an eccentric anomaly into the true anomaly.
func TrueAnomaly(E, e float64) float64 {
	sinE, cosE := math.Sincos(E)
	return math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e)
}

// OrbitOffset returns the body's offset from its parent at simTime.
func OrbitOffset(el model.OrbitalElements, simTime, orbitalTimeScale float64) Vec3 {
	e := el.Eccentricity
	E := SolveKepler(MeanAnomaly(el, simTime, orbitalTimeScale), e)

	nu := TrueAnomaly(E, e)
	r := el.SemiMajorAxis * (1 - e*math.Cos(E))

	// In-plane coordinates with periapsis along +x.
	sinNu, cosNu := math.Sincos(nu)
	xOrbit := r * cosNu
	yOrbit := r * sinNu

	// Tilt the plane about its x-axis. Past 90° the in-plane y-axis flips,
	// which is what makes retrograde orbits run backwards.
	sinInc, cosInc := math.Sincos(el.InclinationDegrees * math.Pi / 180)
	return Vec3{
		X: xOrbit,
		Y: yOrbit * sinInc,
		Z: yOrbit * cosInc,
	}
}

// ComputePosition returns the world position of a body on its orbit around
// parentPosition. It is a pure function of its inputs.
func ComputePosition(el model.OrbitalElements, simTime float64, parentPosition Vec3, orbitalTimeScale float64) Vec3 {
	return parentPosition.Add(OrbitOffset(el, simTime, orbitalTimeScale))
}
