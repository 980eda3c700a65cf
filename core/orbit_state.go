package core

import (
	"fmt"

	"github.com/signalsfoundry/orbital-flight-sim/kb"
	"github.com/signalsfoundry/orbital-flight-sim/model"
)

// BodyHandle identifies a body inside an OrbitState. Handles are resolved
// once at construction and stay valid for the state's lifetime.
type BodyHandle int

// BodyView is a read-only copy of one body at the current tick.
type BodyView struct {
	Handle           BodyHandle
	Name             string
	Parent           string
	Position         Vec3
	Radius           float64
	AtmosphereRadius float64
	GM               float64
	DragStrength     float64
}

type bodyState struct {
	def    *model.BodyDefinition
	parent int // -1 for the star
	motion MotionModel

	position    Vec3
	previous    Vec3
	hasPrevious bool
}

// OrbitState owns every body position and advances the whole hierarchy one
// tick at a time. It is not safe for concurrent use; readers outside the
// tick loop get snapshots.
type OrbitState struct {
	star    model.StarDefinition
	starPos Vec3

	bodies []bodyState
	index  map[string]int
	phases [][]int

	simTime          float64
	orbitalTimeScale float64
}

// NewOrbitState resolves the catalog and places every body at simulation time 0.
func NewOrbitState(catalog *kb.KnowledgeBase, orbitalTimeScale float64) (*OrbitState, error) {
	if catalog == nil {
		return nil, fmt.Errorf("NewOrbitState: catalog is nil")
	}
	h, err := catalog.Resolve()
	if err != nil {
		return nil, fmt.Errorf("NewOrbitState: %w", err)
	}
	return NewOrbitStateFromHierarchy(h, orbitalTimeScale)
}

// NewOrbitStateFromHierarchy builds the state from an already resolved hierarchy.
func NewOrbitStateFromHierarchy(h *kb.Hierarchy, orbitalTimeScale float64) (*OrbitState, error) {
	s := &OrbitState{
		star:             h.Star,
		starPos:          FromMotion(h.Star.Position),
		bodies:           make([]bodyState, len(h.Bodies)),
		index:            make(map[string]int, len(h.Bodies)),
		phases:           h.Phases,
		orbitalTimeScale: orbitalTimeScale,
	}
	for i, rb := range h.Bodies {
		motion, err := NewMotionModel(rb.Definition, orbitalTimeScale)
		if err != nil {
			return nil, fmt.Errorf("NewOrbitState: %w", err)
		}
		s.bodies[i] = bodyState{def: rb.Definition, parent: rb.Parent, motion: motion}
		s.index[rb.Definition.Name] = i
	}

	// Initial placement. No previous position is recorded, so velocities
	// read zero until the first Advance.
	s.propagate()
	return s, nil
}

// Advance accumulates dt (already clamped and scaled by the caller) and moves
// every body. Phases run in depth order, so a moon always sees its planet's
// position for the same tick.
func (s *OrbitState) Advance(dt float64) {
	s.simTime += dt
	for i := range s.bodies {
		s.bodies[i].previous = s.bodies[i].position
		s.bodies[i].hasPrevious = true
	}
	s.propagate()
}

func (s *OrbitState) propagate() {
	for _, phase := range s.phases {
		for _, i := range phase {
			b := &s.bodies[i]
			b.position = b.motion.Position(s.simTime, s.parentPosition(b.parent))
		}
	}
}

func (s *OrbitState) parentPosition(parent int) Vec3 {
	if parent < 0 {
		return s.starPos
	}
	return s.bodies[parent].position
}

// SimTime returns the accumulated simulation time in seconds.
func (s *OrbitState) SimTime() float64 { return s.simTime }

// OrbitalTimeScale returns the multiplier applied to orbital motion.
func (s *OrbitState) OrbitalTimeScale() float64 { return s.orbitalTimeScale }

// Len returns the number of bodies, excluding the star.
func (s *OrbitState) Len() int { return len(s.bodies) }

// Lookup resolves a body name to its handle.
func (s *OrbitState) Lookup(name string) (BodyHandle, bool) {
	i, ok := s.index[name]
	return BodyHandle(i), ok
}

// Body returns a view of the body behind h.
func (s *OrbitState) Body(h BodyHandle) BodyView {
	b := &s.bodies[h]
	parent := ""
	if b.parent >= 0 {
		parent = s.bodies[b.parent].def.Name
	}
	return BodyView{
		Handle:           h,
		Name:             b.def.Name,
		Parent:           parent,
		Position:         b.position,
		Radius:           b.def.Radius,
		AtmosphereRadius: b.def.AtmosphereRadius,
		GM:               b.def.GM,
		DragStrength:     b.def.DragStrength,
	}
}

// Bodies returns views of every body in catalog order.
func (s *OrbitState) Bodies() []BodyView {
	out := make([]BodyView, len(s.bodies))
	for i := range s.bodies {
		out[i] = s.Body(BodyHandle(i))
	}
	return out
}

// Position returns the current position of the named body.
func (s *OrbitState) Position(name string) (Vec3, bool) {
	i, ok := s.index[name]
	if !ok {
		return Vec3{}, false
	}
	return s.bodies[i].position, true
}

// Star returns the central star as a point mass.
func (s *OrbitState) Star() PointMass {
	return PointMass{
		Name:     s.star.Name,
		Position: s.starPos,
		Radius:   s.star.Radius,
		GM:       s.star.GM,
	}
}

// PointMasses returns every body as a gravity source.
func (s *OrbitState) PointMasses() []PointMass {
	out := make([]PointMass, len(s.bodies))
	for i := range s.bodies {
		b := &s.bodies[i]
		out[i] = PointMass{Name: b.def.Name, Position: b.position, Radius: b.def.Radius, GM: b.def.GM}
	}
	return out
}

// VelocityOf derives the named body's velocity from its last two positions.
// Unknown names, the first tick and dt <= 0 all yield the zero vector.
func (s *OrbitState) VelocityOf(name string, dt float64) Vec3 {
	i, ok := s.index[name]
	if !ok {
		return Vec3{}
	}
	return s.Velocity(BodyHandle(i), dt)
}

// Velocity is VelocityOf for a resolved handle.
func (s *OrbitState) Velocity(h BodyHandle, dt float64) Vec3 {
	if int(h) < 0 || int(h) >= len(s.bodies) || dt <= 0 {
		return Vec3{}
	}
	b := &s.bodies[h]
	if !b.hasPrevious {
		return Vec3{}
	}
	return b.position.Sub(b.previous).Scale(1 / dt)
}
