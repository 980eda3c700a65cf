package core

import (
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/orbital-flight-sim/model"
)

// ISS sample TLE.
const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func TestStaticMotionModelTracksParent(t *testing.T) {
	m := &StaticMotionModel{Offset: Vec3{X: 1, Y: 2, Z: 3}}
	if got := m.Position(0, Vec3{}); got != (Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("static position = %+v, want offset", got)
	}
	if got := m.Position(3600, Vec3{X: 10}); got != (Vec3{X: 11, Y: 2, Z: 3}) {
		t.Fatalf("static position should follow parent, got %+v", got)
	}
}

func TestKeplerianMotionModelMatchesComputePosition(t *testing.T) {
	el := model.OrbitalElements{SemiMajorAxis: 1000, Eccentricity: 0.1, OrbitalPeriod: 12, InclinationDegrees: 5}
	m := &KeplerianMotionModel{Elements: el, OrbitalTimeScale: 2}
	parent := Vec3{Y: -50}
	if got, want := m.Position(3.3, parent), ComputePosition(el, 3.3, parent, 2); got != want {
		t.Fatalf("Position = %+v, want %+v", got, want)
	}
}

// Exact orbital values belong to go-satellite; only check the offset is in a
// plausible LEO band and changes over time.
func TestOrbitalSGP4MotionModelChangesOverTime(t *testing.T) {
	src := model.TLESource{
		Line1:      issLine1,
		Line2:      issLine2,
		Epoch:      time.Date(2021, 10, 2, 14, 0, 0, 0, time.UTC),
		UnitsPerKm: 1,
	}
	m := NewOrbitalModelFromTLE(src, 1)
	parent := Vec3{X: 1e6}

	p1 := m.Position(0, parent)
	p2 := m.Position(600, parent)

	for _, p := range []Vec3{p1, p2} {
		r := p.DistanceTo(parent)
		if r < 6500 || r > 7000 {
			t.Fatalf("ISS radius = %v km, want LEO band 6500..7000", r)
		}
	}
	if p1 == p2 {
		t.Fatalf("expected SGP4 position to change over time")
	}
}

func TestOrbitalSGP4MotionModelScalesUnits(t *testing.T) {
	src := model.TLESource{
		Line1: issLine1,
		Line2: issLine2,
		Epoch: time.Date(2021, 10, 2, 14, 0, 0, 0, time.UTC),
	}
	src.UnitsPerKm = 1
	km := NewOrbitalModelFromTLE(src, 1).Position(120, Vec3{})
	src.UnitsPerKm = 0.5
	half := NewOrbitalModelFromTLE(src, 1).Position(120, Vec3{})
	if !vecNear(half, km.Scale(0.5), 1e-9) {
		t.Fatalf("scaled position = %+v, want %+v", half, km.Scale(0.5))
	}
}

func TestNewMotionModel(t *testing.T) {
	kepler := &model.BodyDefinition{
		Name:         "Mars",
		MotionSource: model.MotionSourceKeplerian,
		Orbit:        &model.OrbitalElements{SemiMajorAxis: 1, OrbitalPeriod: 1},
	}
	if m, err := NewMotionModel(kepler, 1); err != nil {
		t.Fatalf("keplerian: %v", err)
	} else if _, ok := m.(*KeplerianMotionModel); !ok {
		t.Fatalf("keplerian model type = %T", m)
	}

	static := &model.BodyDefinition{Name: "Beacon", MotionSource: model.MotionSourceStatic, Offset: model.Motion{X: 4}}
	if m, err := NewMotionModel(static, 1); err != nil {
		t.Fatalf("static: %v", err)
	} else if got := m.Position(0, Vec3{}); got != (Vec3{X: 4}) {
		t.Fatalf("static position = %+v", got)
	}

	tle := &model.BodyDefinition{
		Name:         "ISS",
		MotionSource: model.MotionSourceTLE,
		TLE:          &model.TLESource{Line1: issLine1, Line2: issLine2, UnitsPerKm: 1},
	}
	if m, err := NewMotionModel(tle, 1); err != nil {
		t.Fatalf("tle: %v", err)
	} else if _, ok := m.(*OrbitalSGP4MotionModel); !ok {
		t.Fatalf("tle model type = %T", m)
	}

	for _, bad := range []*model.BodyDefinition{
		{Name: "NoOrbit", MotionSource: model.MotionSourceKeplerian},
		{Name: "NoTLE", MotionSource: model.MotionSourceTLE},
		{Name: "Weird", MotionSource: model.MotionSource(42)},
	} {
		if _, err := NewMotionModel(bad, 1); !errors.Is(err, model.ErrInvalidBody) {
			t.Fatalf("%s: err = %v, want ErrInvalidBody", bad.Name, err)
		}
	}
}
