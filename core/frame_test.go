package core

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestApplyReferenceFrame(t *testing.T) {
	craft := Vec3{X: 10}
	parent := Vec3{Y: 4}

	if got := ApplyReferenceFrame(craft, parent, 0, 0.1, 1); got != craft {
		t.Fatalf("depth 0 changed velocity: %+v", got)
	}
	if got := ApplyReferenceFrame(craft, parent, -0.5, 0.1, 1); got != craft {
		t.Fatalf("negative depth changed velocity: %+v", got)
	}

	// blend = 1² · 1 · 0.5 · 2 = 1
	if got, want := ApplyReferenceFrame(craft, parent, 1, 0.5, 1), (Vec3{X: 10, Y: 4}); got != want {
		t.Fatalf("full blend = %+v, want %+v", got, want)
	}

	// blend = 0.5² · 2 · 0.1 · 2 = 0.1
	got := ApplyReferenceFrame(craft, parent, 0.5, 0.1, 2)
	if !vecNear(got, Vec3{X: 10, Y: 0.4}, 1e-12) {
		t.Fatalf("partial blend = %+v, want (10, 0.4, 0)", got)
	}
}

func TestApplyReferenceFrameIsContinuousAtEdge(t *testing.T) {
	craft := Vec3{Z: 1}
	parent := Vec3{X: 1000}
	got := ApplyReferenceFrame(craft, parent, 1e-4, 0.016, 3)
	if d := got.Sub(craft).Norm(); d > 1e-3 {
		t.Fatalf("change at the edge = %v, want near zero", d)
	}
}

func TestApplyCushionLiftsCraft(t *testing.T) {
	center := Vec3{}
	res := ApplyCushion(Vec3{X: 950}, Vec3{X: -5, Y: 3}, center, 1000, 10)
	if !res.Contacted {
		t.Fatalf("Contacted = false, want true")
	}
	if !vecNear(res.Position, Vec3{X: 1010}, 1e-9) {
		t.Fatalf("position = %+v, want (1010, 0, 0)", res.Position)
	}
	if !vecNear(res.Velocity, Vec3{Y: 3 * CushionDamping}, 1e-12) {
		t.Fatalf("velocity = %+v, want (0, %v, 0)", res.Velocity, 3*CushionDamping)
	}
}

func TestApplyCushionKeepsOutwardVelocity(t *testing.T) {
	res := ApplyCushion(Vec3{Y: 1005}, Vec3{Y: 7}, Vec3{}, 1000, 10)
	if !res.Contacted {
		t.Fatalf("Contacted = false, want true")
	}
	if !scalar.EqualWithinAbs(res.Velocity.Y, 7*CushionDamping, 1e-12) {
		t.Fatalf("outward velocity = %v, want %v", res.Velocity.Y, 7*CushionDamping)
	}
}

func TestApplyCushionAboveFloorIsNoop(t *testing.T) {
	pos, vel := Vec3{X: 1200}, Vec3{X: -50}
	res := ApplyCushion(pos, vel, Vec3{}, 1000, 10)
	if res.Contacted || res.Position != pos || res.Velocity != vel {
		t.Fatalf("ApplyCushion above floor = %+v, want untouched", res)
	}
}

func TestApplyCushionAtCentrePushesUp(t *testing.T) {
	center := Vec3{X: 5, Y: 5, Z: 5}
	res := ApplyCushion(center, Vec3{}, center, 100, 10)
	if !vecNear(res.Position, Vec3{X: 5, Y: 115, Z: 5}, 1e-12) {
		t.Fatalf("position = %+v, want (5, 115, 5)", res.Position)
	}
	if !res.Position.IsFinite() || !res.Velocity.IsFinite() {
		t.Fatalf("non-finite result %+v", res)
	}
}

func TestApplyDrag(t *testing.T) {
	v := Vec3{X: 10}
	if got := ApplyDrag(v, 0, 5, 0.1); got != v {
		t.Fatalf("drag outside atmosphere = %+v, want unchanged", got)
	}
	if got := ApplyDrag(v, 0.5, 2, 0.1); !vecNear(got, Vec3{X: 9}, 1e-12) {
		t.Fatalf("drag = %+v, want (9, 0, 0)", got)
	}
	if got := ApplyDrag(v, 1, 100, 1); got != (Vec3{}) {
		t.Fatalf("overdamped drag = %+v, want zero", got)
	}
}
