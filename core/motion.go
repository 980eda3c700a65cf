package core

import (
	"fmt"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/orbital-flight-sim/model"
)

// MotionModel places a body relative to its parent for a given simulation time.
type MotionModel interface {
	Position(simTime float64, parent Vec3) Vec3
}

// StaticMotionModel keeps a fixed offset from the parent.
type StaticMotionModel struct {
	Offset Vec3
}

// Position returns parent + Offset.
func (m *StaticMotionModel) Position(simTime float64, parent Vec3) Vec3 {
	return parent.Add(m.Offset)
}

// KeplerianMotionModel follows closed orbital elements.
type KeplerianMotionModel struct {
	Elements         model.OrbitalElements
	OrbitalTimeScale float64
}

// Position solves the orbit at simTime around parent.
func (m *KeplerianMotionModel) Position(simTime float64, parent Vec3) Vec3 {
	return ComputePosition(m.Elements, simTime, parent, m.OrbitalTimeScale)
}

// OrbitalSGP4MotionModel uses a TLE and SGP4 to place an artificial satellite
// around its parent. go-satellite works in kilometres in an inertial frame;
// the offset is scaled into world units.
type OrbitalSGP4MotionModel struct {
	sat              satellite.Satellite
	epoch            time.Time
	unitsPerKm       float64
	orbitalTimeScale float64
}

// NewOrbitalModelFromTLE constructs an orbital model from TLE lines.
func NewOrbitalModelFromTLE(src model.TLESource, orbitalTimeScale float64) *OrbitalSGP4MotionModel {
	sat := satellite.TLEToSat(src.Line1, src.Line2, satellite.GravityWGS72)
	return &OrbitalSGP4MotionModel{
		sat:              sat,
		epoch:            src.Epoch.UTC(),
		unitsPerKm:       src.UnitsPerKm,
		orbitalTimeScale: orbitalTimeScale,
	}
}

// Position propagates the satellite to epoch + simTime·orbitalTimeScale.
// SGP4 is evaluated at the whole second and the sub-second remainder is
// covered by its velocity, keeping the track continuous between seconds.
// SGP4 failures (e.g. decay) leave the satellite at its parent's centre.
func (m *OrbitalSGP4MotionModel) Position(simTime float64, parent Vec3) Vec3 {
	offset := time.Duration(simTime * m.orbitalTimeScale * float64(time.Second))
	at := m.epoch.Add(offset)
	whole := at.Truncate(time.Second)
	frac := at.Sub(whole).Seconds()

	year, month, day := whole.Date()
	hour, min, sec := whole.Clock()

	posECI, velECI := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	off := Vec3{X: posECI.X, Y: posECI.Y, Z: posECI.Z}.
		Add(Vec3{X: velECI.X, Y: velECI.Y, Z: velECI.Z}.Scale(frac))
	if !off.IsFinite() {
		return parent
	}
	return parent.Add(off.Scale(m.unitsPerKm))
}

// NewMotionModel chooses the MotionModel for a body definition.
func NewMotionModel(def *model.BodyDefinition, orbitalTimeScale float64) (MotionModel, error) {
	switch def.MotionSource {
	case model.MotionSourceKeplerian:
		if def.Orbit == nil {
			return nil, fmt.Errorf("%w: %q has no orbit", model.ErrInvalidBody, def.Name)
		}
		return &KeplerianMotionModel{Elements: *def.Orbit, OrbitalTimeScale: orbitalTimeScale}, nil
	case model.MotionSourceStatic:
		return &StaticMotionModel{Offset: FromMotion(def.Offset)}, nil
	case model.MotionSourceTLE:
		if def.TLE == nil {
			return nil, fmt.Errorf("%w: %q has no TLE", model.ErrInvalidBody, def.Name)
		}
		return NewOrbitalModelFromTLE(*def.TLE, orbitalTimeScale), nil
	default:
		return nil, fmt.Errorf("%w: %q unknown motion source %v", model.ErrInvalidBody, def.Name, def.MotionSource)
	}
}
