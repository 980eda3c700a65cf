package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidElements = errors.New("invalid orbital elements")
	ErrInvalidBody     = errors.New("invalid body definition")
)

// MotionSource indicates how a body's position is determined.
type MotionSource int

const (
	MotionSourceKeplerian MotionSource = iota // orbital elements solved every tick
	MotionSourceStatic                        // fixed offset from the parent
	MotionSourceTLE                           // SGP4 propagation of a two-line element set
)

func (m MotionSource) String() string {
	switch m {
	case MotionSourceKeplerian:
		return "keplerian"
	case MotionSourceStatic:
		return "static"
	case MotionSourceTLE:
		return "tle"
	default:
		return fmt.Sprintf("MotionSource(%d)", int(m))
	}
}

// Motion is a position or velocity in world units.
type Motion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// OrbitalElements describe a closed Keplerian orbit around a parent body.
// They are immutable once loaded.
type OrbitalElements struct {
	SemiMajorAxis      float64
	Eccentricity       float64
	InclinationDegrees float64 // > 90 is retrograde
	OrbitalPeriod      float64 // seconds at orbital time scale 1
	StartAngleRadians  float64 // mean anomaly at simulation time 0

	// ParentName is empty for bodies orbiting the central star.
	ParentName string
}

// Validate checks the elements describe an elliptical orbit the propagator can solve.
func (e OrbitalElements) Validate() error {
	switch {
	case !(e.SemiMajorAxis > 0):
		return fmt.Errorf("%w: semi-major axis must be > 0, got %v", ErrInvalidElements, e.SemiMajorAxis)
	case e.Eccentricity < 0 || !(e.Eccentricity < 1):
		return fmt.Errorf("%w: eccentricity must be in [0, 1), got %v", ErrInvalidElements, e.Eccentricity)
	case !(e.OrbitalPeriod > 0):
		return fmt.Errorf("%w: orbital period must be > 0, got %v", ErrInvalidElements, e.OrbitalPeriod)
	case math.IsNaN(e.InclinationDegrees) || math.IsInf(e.InclinationDegrees, 0):
		return fmt.Errorf("%w: inclination must be finite", ErrInvalidElements)
	case math.IsNaN(e.StartAngleRadians) || math.IsInf(e.StartAngleRadians, 0):
		return fmt.Errorf("%w: start angle must be finite", ErrInvalidElements)
	}
	return nil
}

// TLESource feeds an SGP4 motion model. Positions are produced in the
// parent's inertial frame and scaled from kilometres to world units.
type TLESource struct {
	Line1      string
	Line2      string
	Epoch      time.Time // wall-clock instant matching simulation time 0
	UnitsPerKm float64
	ParentName string
}

// BodyDefinition is the configured identity and physics of a planet, moon or
// other body moving under a prescribed path.
type BodyDefinition struct {
	Name             string
	Radius           float64
	AtmosphereRadius float64
	GM               float64
	DragStrength     float64

	MotionSource MotionSource
	Orbit        *OrbitalElements // MotionSourceKeplerian
	Offset       Motion           // MotionSourceStatic
	OffsetParent string           // MotionSourceStatic; "" for the star
	TLE          *TLESource       // MotionSourceTLE
}

// ParentName returns the name of the body this one moves around, or "" for the star.
func (b *BodyDefinition) ParentName() string {
	switch b.MotionSource {
	case MotionSourceKeplerian:
		if b.Orbit != nil {
			return b.Orbit.ParentName
		}
	case MotionSourceTLE:
		if b.TLE != nil {
			return b.TLE.ParentName
		}
	case MotionSourceStatic:
		return b.OffsetParent
	}
	return ""
}

// Validate checks identity, physics and the motion source payload.
func (b *BodyDefinition) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil body", ErrInvalidBody)
	}
	if b.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidBody)
	}
	if b.Radius < 0 {
		return fmt.Errorf("%w: %q radius must be >= 0", ErrInvalidBody, b.Name)
	}
	if b.AtmosphereRadius < b.Radius {
		return fmt.Errorf("%w: %q atmosphere radius %v below radius %v", ErrInvalidBody, b.Name, b.AtmosphereRadius, b.Radius)
	}
	if !(b.GM > 0) {
		return fmt.Errorf("%w: %q GM must be > 0", ErrInvalidBody, b.Name)
	}
	if b.DragStrength < 0 {
		return fmt.Errorf("%w: %q drag strength must be >= 0", ErrInvalidBody, b.Name)
	}

	switch b.MotionSource {
	case MotionSourceKeplerian:
		if b.Orbit == nil {
			return fmt.Errorf("%w: %q has no orbit", ErrInvalidBody, b.Name)
		}
		if err := b.Orbit.Validate(); err != nil {
			return fmt.Errorf("body %q: %w", b.Name, err)
		}
	case MotionSourceTLE:
		if b.TLE == nil || b.TLE.Line1 == "" || b.TLE.Line2 == "" {
			return fmt.Errorf("%w: %q has no TLE lines", ErrInvalidBody, b.Name)
		}
		if !(b.TLE.UnitsPerKm > 0) {
			return fmt.Errorf("%w: %q TLE units per km must be > 0", ErrInvalidBody, b.Name)
		}
	case MotionSourceStatic:
	default:
		return fmt.Errorf("%w: %q unknown motion source %v", ErrInvalidBody, b.Name, b.MotionSource)
	}
	if b.ParentName() == b.Name {
		return fmt.Errorf("%w: %q orbits itself", ErrInvalidBody, b.Name)
	}
	return nil
}

// StarDefinition is the fixed central body every hierarchy is rooted at.
type StarDefinition struct {
	Name     string
	Position Motion
	Radius   float64 // 0 falls back to the default softening radius
	GM       float64
}
