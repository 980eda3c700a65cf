package core

import (
	"math"
	"testing"
)

func TestAtmosphereDepth(t *testing.T) {
	cases := []struct {
		d, r, atmo float64
		want       float64
	}{
		{d: 200, r: 100, atmo: 200, want: 0},
		{d: 150, r: 100, atmo: 200, want: 0.5},
		{d: 100, r: 100, atmo: 200, want: 1},
		{d: 20, r: 100, atmo: 200, want: 1},
		{d: 500, r: 100, atmo: 200, want: 0},
		{d: 90, r: 100, atmo: 100, want: 1},
		{d: 110, r: 100, atmo: 100, want: 0},
	}
	for _, tc := range cases {
		if got := AtmosphereDepth(tc.d, tc.r, tc.atmo); got != tc.want {
			t.Fatalf("AtmosphereDepth(%v, %v, %v) = %v, want %v", tc.d, tc.r, tc.atmo, got, tc.want)
		}
	}
}

func TestLocatePrefersDeepestAtmosphere(t *testing.T) {
	// The craft is 90% into A's shell and 10% into B's.
	a := BodyView{Handle: 0, Name: "A", Radius: 100, AtmosphereRadius: 200}
	b := BodyView{Handle: 1, Name: "B", Position: Vec3{X: 300}, Radius: 100, AtmosphereRadius: 200}
	craft := Vec3{X: 110}

	for _, bodies := range [][]BodyView{{a, b}, {b, a}} {
		loc, ok := Locate(craft, bodies)
		if !ok {
			t.Fatalf("Locate returned false")
		}
		if loc.Body.Name != "A" {
			t.Fatalf("Locate picked %q, want A", loc.Body.Name)
		}
		if d := loc.AtmosphereDepth; d < 0.9-1e-12 || d > 0.9+1e-12 {
			t.Fatalf("depth = %v, want 0.9", d)
		}
		if !loc.InAtmosphere {
			t.Fatalf("InAtmosphere = false, want true")
		}
		if loc.Altitude != 10 {
			t.Fatalf("altitude = %v, want 10", loc.Altitude)
		}
	}
}

func TestLocateAtmosphereBeatsNearerCentre(t *testing.T) {
	big := BodyView{Name: "Giant", Radius: 1000, AtmosphereRadius: 2000}
	small := BodyView{Name: "Rock", Position: Vec3{X: 1600}, Radius: 10, AtmosphereRadius: 20}
	loc, ok := Locate(Vec3{X: 1500}, []BodyView{small, big})
	if !ok || loc.Body.Name != "Giant" {
		t.Fatalf("Locate = %+v (ok=%v), want Giant", loc.Body, ok)
	}
	if loc.AtmosphereDepth != 0.5 {
		t.Fatalf("depth = %v, want 0.5", loc.AtmosphereDepth)
	}
}

func TestLocateDeeperAtmosphereBeatsNearerShell(t *testing.T) {
	// Inside both shells: the moon's centre is 500 away, the planet's 1100.
	planet := BodyView{Handle: 0, Name: "Planet", Radius: 1000, AtmosphereRadius: 2000}
	moon := BodyView{Handle: 1, Name: "Moon", Position: Vec3{X: 1600}, Radius: 10, AtmosphereRadius: 600}
	craft := Vec3{X: 1100}

	for _, bodies := range [][]BodyView{{planet, moon}, {moon, planet}} {
		loc, ok := Locate(craft, bodies)
		if !ok || loc.Body.Name != "Planet" {
			t.Fatalf("Locate = %+v (ok=%v), want Planet", loc.Body, ok)
		}
		if math.Abs(loc.AtmosphereDepth-0.9) > 1e-12 {
			t.Fatalf("depth = %v, want 0.9", loc.AtmosphereDepth)
		}
		if !loc.InAtmosphere || loc.Distance != 1100 {
			t.Fatalf("location = %+v, want in atmosphere at distance 1100", loc)
		}
	}
}

func TestLocateFallsBackToNearestCentre(t *testing.T) {
	bodies := []BodyView{
		{Name: "Far", Position: Vec3{X: 10000}, Radius: 100, AtmosphereRadius: 150},
		{Name: "Near", Position: Vec3{Y: 3000}, Radius: 100, AtmosphereRadius: 150},
	}
	loc, ok := Locate(Vec3{}, bodies)
	if !ok {
		t.Fatalf("Locate returned false")
	}
	if loc.Body.Name != "Near" || loc.AtmosphereDepth != 0 || loc.InAtmosphere {
		t.Fatalf("Locate = %q depth %v in=%v, want Near depth 0 outside", loc.Body.Name, loc.AtmosphereDepth, loc.InAtmosphere)
	}
	if loc.Distance != 3000 || loc.Altitude != 2900 {
		t.Fatalf("distance/altitude = %v/%v, want 3000/2900", loc.Distance, loc.Altitude)
	}
}

func TestLocateBelowSurfaceHasNegativeAltitude(t *testing.T) {
	loc, ok := Locate(Vec3{Z: 40}, []BodyView{{Name: "P", Radius: 100, AtmosphereRadius: 130}})
	if !ok || loc.Altitude != -60 || loc.AtmosphereDepth != 1 {
		t.Fatalf("Locate = %+v, want altitude -60 depth 1", loc)
	}
}

func TestLocateEmpty(t *testing.T) {
	if _, ok := Locate(Vec3{}, nil); ok {
		t.Fatalf("Locate on empty set returned true")
	}
}
