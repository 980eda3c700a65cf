package core

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/orbital-flight-sim/internal/logging"
	"github.com/signalsfoundry/orbital-flight-sim/model"
)

const tracerName = "github.com/signalsfoundry/orbital-flight-sim/core"

// PhysicsConfig holds the craft/world coupling parameters.
type PhysicsConfig struct {
	// FrameMatchStrength scales how quickly the craft is dragged into the
	// frame of the body whose atmosphere it is in.
	FrameMatchStrength float64 `mapstructure:"frame_match_strength"`
	// CushionHeight is the minimum altitude above any surface.
	CushionHeight float64 `mapstructure:"cushion_height"`
}

// TickRecorder receives per-tick measurements. observability.SimCollector
// implements it.
type TickRecorder interface {
	ObserveTick(elapsed time.Duration, snap *model.FrameSnapshot)
}

// SnapshotPublisher stores the latest snapshot for concurrent readers.
// kb.KnowledgeBase implements it.
type SnapshotPublisher interface {
	PublishSnapshot(model.FrameSnapshot)
}

// EngineOption customises a SimulationEngine.
type EngineOption func(*SimulationEngine)

// WithLogger sets the engine's logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(se *SimulationEngine) {
		if l != nil {
			se.log = l
		}
	}
}

// WithTickRecorder attaches a metrics sink.
func WithTickRecorder(r TickRecorder) EngineOption {
	return func(se *SimulationEngine) { se.recorder = r }
}

// WithPublisher attaches the snapshot store.
func WithPublisher(p SnapshotPublisher) EngineOption {
	return func(se *SimulationEngine) { se.publisher = p }
}

// SimulationEngine runs the per-tick pipeline: orbits, gravity, flight
// controls, integration, body location, drag, frame matching and the
// altitude cushion. It owns all mutable world state and is driven from a
// single goroutine.
type SimulationEngine struct {
	Orbits  *OrbitState
	Craft   *Craft
	Tuning  FlightTuning
	Physics PhysicsConfig

	publisher SnapshotPublisher
	recorder  TickRecorder
	log       logging.Logger
	tracer    trace.Tracer

	tick          uint64
	tickListeners []func(model.FrameSnapshot)
}

// NewSimulationEngine wires an engine around an orbit state and a craft.
func NewSimulationEngine(orbits *OrbitState, craft *Craft, tuning FlightTuning, physics PhysicsConfig, opts ...EngineOption) *SimulationEngine {
	se := &SimulationEngine{
		Orbits:        orbits,
		Craft:         craft,
		Tuning:        tuning,
		Physics:       physics,
		log:           logging.Noop(),
		tracer:        otel.Tracer(tracerName),
		tickListeners: []func(model.FrameSnapshot){},
	}
	for _, opt := range opts {
		opt(se)
	}
	return se
}

// RegisterTickListener adds a callback invoked after every Step with the
// tick's snapshot.
func (se *SimulationEngine) RegisterTickListener(fn func(model.FrameSnapshot)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Ticks returns the number of completed steps.
func (se *SimulationEngine) Ticks() uint64 { return se.tick }

// Run performs a fixed number of steps with a constant dt and command, or
// fewer if ctx is cancelled first.
func (se *SimulationEngine) Run(ctx context.Context, ticks int, dt float64, cmd FlightCommand) error {
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		se.Step(ctx, dt, cmd)
	}
	return nil
}

// Step advances the world by dt simulation seconds. dt is expected to be
// clamped and scaled already; negative or non-finite values are treated as 0.
func (se *SimulationEngine) Step(ctx context.Context, dt float64, cmd FlightCommand) model.FrameSnapshot {
	start := time.Now()
	if !(dt > 0) || math.IsInf(dt, 0) {
		dt = 0
	}
	se.tick++

	ctx, span := se.tracer.Start(ctx, "sim.Step", trace.WithAttributes(
		attribute.Int64("sim.tick", int64(se.tick)),
		attribute.Float64("sim.dt", dt),
	))
	defer span.End()

	// 1. Orbits.
	se.Orbits.Advance(dt)

	// 2. Gravity at the craft's pre-move position.
	star := se.Orbits.Star()
	accel := TotalAcceleration(se.Craft.Position, se.Orbits.PointMasses(), &star)

	// 3. Controls and integration.
	se.Craft.UpdateOrientation(cmd, dt, se.Tuning)
	se.Craft.UpdateSpeed(cmd, dt, se.Tuning)
	se.Craft.Integrate(accel, dt, se.Tuning.MaxSpeed)

	// 4. Which body governs the craft.
	bodies := se.Orbits.Bodies()
	var nearest *model.NearestBody
	if loc, ok := Locate(se.Craft.Position, bodies); ok {
		nearest = se.correct(ctx, loc, dt)
		span.SetAttributes(
			attribute.String("sim.nearest", nearest.Name),
			attribute.Float64("sim.atmosphere_depth", nearest.AtmosphereDepth),
			attribute.Bool("sim.cushioned", nearest.Cushioned),
		)
	}

	snap := se.snapshot(bodies, dt, accel, nearest)

	if se.publisher != nil {
		se.publisher.PublishSnapshot(snap)
	}
	if se.recorder != nil {
		se.recorder.ObserveTick(time.Since(start), &snap)
	}
	for _, fn := range se.tickListeners {
		fn(snap)
	}
	return snap
}

// correct applies drag, frame matching and the cushion for the located body.
func (se *SimulationEngine) correct(ctx context.Context, loc Location, dt float64) *model.NearestBody {
	c := se.Craft

	c.Velocity = ApplyDrag(c.Velocity, loc.AtmosphereDepth, loc.Body.DragStrength, dt)

	parentVel := se.Orbits.Velocity(loc.Body.Handle, dt)
	c.Velocity = ApplyReferenceFrame(c.Velocity, parentVel, loc.AtmosphereDepth, dt, se.Physics.FrameMatchStrength)

	res := ApplyCushion(c.Position, c.Velocity, loc.Body.Position, loc.Body.Radius, se.Physics.CushionHeight)
	c.Position, c.Velocity = res.Position, res.Velocity

	dist := loc.Distance
	if res.Contacted {
		dist = c.Position.DistanceTo(loc.Body.Position)
		se.log.Debug(ctx, "cushion contact",
			logging.String("body", loc.Body.Name),
			logging.Float64("altitude", loc.Altitude),
		)
	}

	return &model.NearestBody{
		Name:            loc.Body.Name,
		Distance:        dist,
		Altitude:        dist - loc.Body.Radius,
		AtmosphereDepth: loc.AtmosphereDepth,
		InAtmosphere:    loc.InAtmosphere,
		Cushioned:       res.Contacted,
	}
}

func (se *SimulationEngine) snapshot(bodies []BodyView, dt float64, gravity Vec3, nearest *model.NearestBody) model.FrameSnapshot {
	star := se.Orbits.Star()
	snap := model.FrameSnapshot{
		Tick:    se.tick,
		SimTime: se.Orbits.SimTime(),
		Dt:      dt,
		Star: model.BodyState{
			Name:     star.Name,
			Position: star.Position.Motion(),
			Radius:   star.Radius,
		},
		Bodies:  make([]model.BodyState, len(bodies)),
		Craft:   se.Craft.State(),
		Nearest: nearest,
		Gravity: gravity.Motion(),
	}
	for i, b := range bodies {
		snap.Bodies[i] = model.BodyState{
			Name:             b.Name,
			Parent:           b.Parent,
			Position:         b.Position.Motion(),
			Velocity:         se.Orbits.Velocity(b.Handle, dt).Motion(),
			Radius:           b.Radius,
			AtmosphereRadius: b.AtmosphereRadius,
		}
	}
	return snap
}
