package core

import (
	"math"
	"testing"

	"github.com/soniakeys/meeus/v3/kepler"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/signalsfoundry/orbital-flight-sim/model"
)

func vecNear(a, b Vec3, tol float64) bool {
	return scalar.EqualWithinAbs(a.X, b.X, tol) &&
		scalar.EqualWithinAbs(a.Y, b.Y, tol) &&
		scalar.EqualWithinAbs(a.Z, b.Z, tol)
}

func keplerResidual(E, e, M float64) float64 {
	return math.Abs(E - e*math.Sin(E) - NormalizeAngle(M))
}

func TestSolveKeplerSatisfiesEquation(t *testing.T) {
	for k := 0; k < 99; k++ {
		e := float64(k) / 100
		for deg := 0; deg < 360; deg++ {
			M := float64(deg) * math.Pi / 180
			E := SolveKepler(M, e)
			if r := keplerResidual(E, e, M); r > 1e-6 {
				t.Fatalf("SolveKepler(%v, %v) residual = %g, want < 1e-6", M, e, r)
			}
		}
	}
}

func TestSolveKeplerNearParabolicWithRaisedCap(t *testing.T) {
	solver := KeplerSolver{MaxIterations: 50, Tolerance: DefaultKeplerTolerance}
	for _, e := range []float64{0.99, 0.995, 0.999} {
		for deg := 0; deg < 360; deg++ {
			M := float64(deg) * math.Pi / 180
			E, _ := solver.Solve(M, e)
			if r := keplerResidual(E, e, M); r > 1e-6 {
				t.Fatalf("Solve(%v, %v) residual = %g, want < 1e-6", M, e, r)
			}
		}
	}
}

func TestSolveKeplerRespectsIterationCap(t *testing.T) {
	for _, e := range []float64{0, 0.3, 0.9, 0.999} {
		for deg := 0; deg < 360; deg += 7 {
			_, n := DefaultKeplerSolver.Solve(float64(deg)*math.Pi/180, e)
			if n < 1 || n > DefaultKeplerIterations {
				t.Fatalf("Solve(%d°, %v) iterations = %d, want 1..%d", deg, e, n, DefaultKeplerIterations)
			}
		}
	}
}

func TestSolveKeplerCircularIsIdentity(t *testing.T) {
	for _, M := range []float64{0, 0.5, math.Pi, 5} {
		E, n := DefaultKeplerSolver.Solve(M, 0)
		if !scalar.EqualWithinAbs(E, M, 1e-12) {
			t.Fatalf("Solve(%v, 0) = %v, want %v", M, E, M)
		}
		if n != 1 {
			t.Fatalf("Solve(%v, 0) iterations = %d, want 1", M, n)
		}
	}
}

func TestSolveKeplerMatchesMeeus(t *testing.T) {
	for _, e := range []float64{0, 0.017, 0.1, 0.5, 0.75} {
		for deg := 0; deg < 360; deg += 5 {
			M := float64(deg) * math.Pi / 180
			got := SolveKepler(M, e)
			want := kepler.Kepler3(e, unit.Angle(M)).Rad()
			// Compare on the circle: the reference may return E in (-π, π].
			if !scalar.EqualWithinAbs(math.Sin(got), math.Sin(want), 1e-7) ||
				!scalar.EqualWithinAbs(math.Cos(got), math.Cos(want), 1e-7) {
				t.Fatalf("SolveKepler(%d°, %v) = %v, meeus = %v", deg, e, got, want)
			}

			nu := TrueAnomaly(got, e)
			wantNu := kepler.True(unit.Angle(got), e).Rad()
			if !scalar.EqualWithinAbs(math.Sin(nu), math.Sin(wantNu), 1e-9) ||
				!scalar.EqualWithinAbs(math.Cos(nu), math.Cos(wantNu), 1e-9) {
				t.Fatalf("TrueAnomaly(%v, %v) = %v, meeus = %v", got, e, nu, wantNu)
			}

			r := 1000 * (1 - e*math.Cos(got))
			if wantR := kepler.Radius(unit.Angle(got), e, 1000); !scalar.EqualWithinAbs(r, wantR, 1e-9) {
				t.Fatalf("radius(%v, %v) = %v, meeus = %v", got, e, r, wantR)
			}
		}
	}
}

func TestNormalizeAngle(t *testing.T) {
	cases := map[float64]float64{
		0:            0,
		-math.Pi / 2: 3 * math.Pi / 2,
		5 * math.Pi:  math.Pi,
		twoPi:        0,
	}
	for in, want := range cases {
		if got := NormalizeAngle(in); !scalar.EqualWithinAbs(got, want, 1e-12) {
			t.Fatalf("NormalizeAngle(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestComputePositionPeriapsisAtStart(t *testing.T) {
	el := model.OrbitalElements{SemiMajorAxis: 400000, Eccentricity: 0.017, OrbitalPeriod: 31.5}
	got := ComputePosition(el, 0, Vec3{}, 1)
	want := Vec3{X: 400000 * (1 - 0.017)}
	if !vecNear(got, want, 1e-6) {
		t.Fatalf("ComputePosition at t=0 = %+v, want %+v", got, want)
	}
}

func TestComputePositionCircleKeepsRadius(t *testing.T) {
	el := model.OrbitalElements{SemiMajorAxis: 2500, OrbitalPeriod: 20, InclinationDegrees: 37}
	for i := 0; i < 100; i++ {
		p := ComputePosition(el, float64(i)*0.37, Vec3{}, 1)
		if !scalar.EqualWithinAbs(p.Norm(), 2500, 1e-6) {
			t.Fatalf("circular orbit radius at step %d = %v, want 2500", i, p.Norm())
		}
	}
}

func TestComputePositionClosesAfterOnePeriod(t *testing.T) {
	el := model.OrbitalElements{
		SemiMajorAxis:      12000,
		Eccentricity:       0.3,
		InclinationDegrees: 12,
		OrbitalPeriod:      45,
		StartAngleRadians:  1.1,
	}
	for _, ts := range []float64{1, 0.25, 3} {
		for _, tm := range []float64{0, 3.3, 17.9} {
			a := ComputePosition(el, tm, Vec3{}, ts)
			b := ComputePosition(el, tm+el.OrbitalPeriod/ts, Vec3{}, ts)
			if !vecNear(a, b, 1e-5) {
				t.Fatalf("ts=%v t=%v: position after one period = %+v, want %+v", ts, tm, b, a)
			}
		}
	}
}

func TestComputePositionRadiusWithinApsides(t *testing.T) {
	el := model.OrbitalElements{SemiMajorAxis: 9000, Eccentricity: 0.2, OrbitalPeriod: 8}
	for i := 0; i < 200; i++ {
		r := ComputePosition(el, float64(i)*0.05, Vec3{}, 1).Norm()
		if r < 9000*0.8-1e-6 || r > 9000*1.2+1e-6 {
			t.Fatalf("radius at step %d = %v, want within [%v, %v]", i, r, 9000*0.8, 9000*1.2)
		}
	}
}

func TestComputePositionRetrogradeMirrorsPrograde(t *testing.T) {
	base := model.OrbitalElements{SemiMajorAxis: 5000, Eccentricity: 0.05, OrbitalPeriod: 40}
	pro, retro := base, base
	pro.InclinationDegrees = 23
	retro.InclinationDegrees = 157

	for _, tm := range []float64{5, 10, 27} {
		p := ComputePosition(pro, tm, Vec3{}, 1)
		r := ComputePosition(retro, tm, Vec3{}, 1)
		if !scalar.EqualWithinAbs(p.X, r.X, 1e-9) || !scalar.EqualWithinAbs(p.Y, r.Y, 1e-9) {
			t.Fatalf("t=%v in-plane components differ: %+v vs %+v", tm, p, r)
		}
		if !scalar.EqualWithinAbs(p.Z, -r.Z, 1e-9) {
			t.Fatalf("t=%v retrograde Z = %v, want %v", tm, r.Z, -p.Z)
		}
	}

	// Shortly after periapsis the two travel in opposite Z directions.
	dt := 0.01
	pv := ComputePosition(pro, 2+dt, Vec3{}, 1).Sub(ComputePosition(pro, 2, Vec3{}, 1))
	rv := ComputePosition(retro, 2+dt, Vec3{}, 1).Sub(ComputePosition(retro, 2, Vec3{}, 1))
	if pv.Z*rv.Z >= 0 {
		t.Fatalf("Z velocities %v and %v should have opposite signs", pv.Z, rv.Z)
	}
}

func TestComputePositionFollowsParent(t *testing.T) {
	earth := Vec3{X: 400000}
	el := model.OrbitalElements{SemiMajorAxis: 9000, Eccentricity: 0.05, OrbitalPeriod: 2.7, ParentName: "Earth"}
	for i := 0; i < 50; i++ {
		moon := ComputePosition(el, float64(i)*0.11, earth, 1)
		if d := moon.DistanceTo(earth); d > 9000*1.05+1e-6 || d < 9000*0.95-1e-6 {
			t.Fatalf("moon distance from parent = %v, want within 9000·(1±0.05)", d)
		}
	}
}

func TestComputePositionIsPure(t *testing.T) {
	el := model.OrbitalElements{SemiMajorAxis: 777, Eccentricity: 0.4, OrbitalPeriod: 3, InclinationDegrees: 45}
	a := ComputePosition(el, 1.234, Vec3{X: 1, Y: 2, Z: 3}, 2)
	b := ComputePosition(el, 1.234, Vec3{X: 1, Y: 2, Z: 3}, 2)
	if a != b {
		t.Fatalf("ComputePosition not deterministic: %+v vs %+v", a, b)
	}
}
