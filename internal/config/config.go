// Package config loads the simulator's scenario and runtime settings from a
// file plus SIM_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/orbital-flight-sim/core"
	"github.com/signalsfoundry/orbital-flight-sim/internal/logging"
	"github.com/signalsfoundry/orbital-flight-sim/internal/observability"
	"github.com/signalsfoundry/orbital-flight-sim/kb"
	"github.com/signalsfoundry/orbital-flight-sim/model"
	"github.com/signalsfoundry/orbital-flight-sim/timectrl"
)

// EnvPrefix namespaces environment overrides, e.g. SIM_TIME_SCALE.
const EnvPrefix = "SIM"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete simulator configuration.
type Config struct {
	Time    TimeConfig                  `mapstructure:"time"`
	Star    StarConfig                  `mapstructure:"star"`
	Bodies  []BodyConfig                `mapstructure:"bodies"`
	Ship    ShipConfig                  `mapstructure:"ship"`
	Physics core.PhysicsConfig          `mapstructure:"physics"`
	Logging logging.Config              `mapstructure:"logging"`
	Metrics MetricsConfig               `mapstructure:"metrics"`
	Stream  StreamConfig                `mapstructure:"stream"`
	GRPC    GRPCConfig                  `mapstructure:"grpc"`
	Tracing observability.TracingConfig `mapstructure:"tracing"`
}

// TimeConfig controls the simulation clock.
type TimeConfig struct {
	Mode         string        `mapstructure:"mode"` // realtime | accelerated
	Tick         time.Duration `mapstructure:"tick"`
	DtClamp      float64       `mapstructure:"dt_clamp"`
	Scale        float64       `mapstructure:"scale"`
	OrbitalScale float64       `mapstructure:"orbital_scale"`
	Duration     float64       `mapstructure:"duration"` // simulation seconds; 0 runs until stopped
}

// StarConfig is the fixed central body.
type StarConfig struct {
	Name     string    `mapstructure:"name"`
	Position []float64 `mapstructure:"position"`
	Radius   float64   `mapstructure:"radius"`
	GM       float64   `mapstructure:"gm"`
}

// BodyConfig describes one planet, moon or satellite.
type BodyConfig struct {
	Name             string  `mapstructure:"name"`
	Parent           string  `mapstructure:"parent"`
	Radius           float64 `mapstructure:"radius"`
	AtmosphereRadius float64 `mapstructure:"atmosphere_radius"`
	GM               float64 `mapstructure:"gm"`
	DragStrength     float64 `mapstructure:"drag_strength"`

	// Motion is keplerian, static or tle. Empty picks keplerian.
	Motion string       `mapstructure:"motion"`
	Orbit  *OrbitConfig `mapstructure:"orbit"`
	Offset []float64    `mapstructure:"offset"`
	TLE    *TLEConfig   `mapstructure:"tle"`
}

// OrbitConfig holds Keplerian elements. Inclination is in degrees and the
// start angle in radians.
type OrbitConfig struct {
	SemiMajorAxis float64 `mapstructure:"semi_major_axis"`
	Eccentricity  float64 `mapstructure:"eccentricity"`
	Inclination   float64 `mapstructure:"inclination"`
	Period        float64 `mapstructure:"period"`
	StartAngle    float64 `mapstructure:"start_angle"`
}

// TLEConfig feeds an SGP4-propagated body.
type TLEConfig struct {
	Line1      string  `mapstructure:"line1"`
	Line2      string  `mapstructure:"line2"`
	Epoch      string  `mapstructure:"epoch"` // RFC 3339
	UnitsPerKm float64 `mapstructure:"units_per_km"`
}

// ShipConfig is the player craft's starting state and handling.
type ShipConfig struct {
	StartPosition     []float64 `mapstructure:"start_position"`
	InitialThrottle   float64   `mapstructure:"initial_throttle"`
	core.FlightTuning `mapstructure:",squash"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StreamConfig controls the HTTP listener serving /stream, /snapshot and
// /metrics.
type StreamConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	// Every publishes one snapshot out of this many ticks.
	Every int `mapstructure:"every"`
}

// GRPCConfig controls the health service listener.
type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads path (any format viper understands) and applies SIM_*
// environment overrides on top of the defaults. An empty path loads
// defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("time.mode", "realtime")
	v.SetDefault("time.tick", 16*time.Millisecond)
	v.SetDefault("time.dt_clamp", 1.0/30)
	v.SetDefault("time.scale", 1.0)
	v.SetDefault("time.orbital_scale", 1.0)
	v.SetDefault("time.duration", 0.0)

	v.SetDefault("star.name", "Sun")
	v.SetDefault("star.position", []float64{0, 0, 0})
	v.SetDefault("star.radius", 46000.0)
	v.SetDefault("star.gm", 5e8)

	v.SetDefault("ship.start_position", []float64{70000, 5000, -5000})
	v.SetDefault("ship.initial_throttle", 0.2)
	v.SetDefault("ship.cruise_speed", 5000.0)
	v.SetDefault("ship.turbo_speed", 150000.0)
	v.SetDefault("ship.speed_response", 1.0)
	v.SetDefault("ship.brake_response", 1.5)
	v.SetDefault("ship.max_speed", 0.0)
	v.SetDefault("ship.roll_rate", 1.2)
	v.SetDefault("ship.roll_smoothing", 5.0)
	v.SetDefault("ship.look_sensitivity", 0.0028)
	v.SetDefault("ship.rotation_smoothing", 0.92)
	v.SetDefault("ship.throttle_step", 0.03)

	v.SetDefault("physics.frame_match_strength", 1.0)
	v.SetDefault("physics.cushion_height", 10.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("stream.addr", ":8080")
	v.SetDefault("stream.allowed_origins", []string{"*"})
	v.SetDefault("stream.send_buffer", 16)
	v.SetDefault("stream.write_timeout", 5*time.Second)
	v.SetDefault("stream.every", 1)

	v.SetDefault("grpc.addr", ":50051")

	// SIM_OTLP_ENDPOINT and friends seed the tracing defaults.
	tracing := observability.TracingConfigFromEnv()
	v.SetDefault("tracing.enabled", tracing.Enabled)
	v.SetDefault("tracing.service_name", tracing.ServiceName)
	v.SetDefault("tracing.exporter", tracing.Exporter)
	v.SetDefault("tracing.endpoint", tracing.Endpoint)
	v.SetDefault("tracing.sample_ratio", tracing.SampleRatio)
}

// Validate checks the settings that are not covered by body validation in
// Catalog.
func (c *Config) Validate() error {
	if _, err := timectrl.ParseMode(c.Time.Mode); err != nil {
		return fmt.Errorf("%w: time.mode: %v", ErrInvalidConfig, err)
	}
	switch {
	case c.Time.Tick <= 0:
		return fmt.Errorf("%w: time.tick must be > 0", ErrInvalidConfig)
	case c.Time.DtClamp < 0:
		return fmt.Errorf("%w: time.dt_clamp must be >= 0", ErrInvalidConfig)
	case c.Time.Scale < 0:
		return fmt.Errorf("%w: time.scale must be >= 0", ErrInvalidConfig)
	case !(c.Time.OrbitalScale > 0):
		return fmt.Errorf("%w: time.orbital_scale must be > 0", ErrInvalidConfig)
	case c.Time.Duration < 0:
		return fmt.Errorf("%w: time.duration must be >= 0", ErrInvalidConfig)
	}
	// An accelerated step is a fixed tick, so it must survive the dt clamp.
	if c.TimeMode() == timectrl.Accelerated && c.Time.DtClamp > 0 && c.Time.Tick.Seconds() > c.Time.DtClamp {
		return fmt.Errorf("%w: time.tick %v exceeds time.dt_clamp %vs in accelerated mode", ErrInvalidConfig, c.Time.Tick, c.Time.DtClamp)
	}

	if c.Star.Name == "" {
		return fmt.Errorf("%w: star.name is required", ErrInvalidConfig)
	}
	if c.Star.GM < 0 {
		return fmt.Errorf("%w: star.gm must be >= 0", ErrInvalidConfig)
	}
	if _, err := vector("star.position", c.Star.Position); err != nil {
		return err
	}
	if len(c.Bodies) == 0 {
		return fmt.Errorf("%w: at least one body is required", ErrInvalidConfig)
	}

	if _, err := vector("ship.start_position", c.Ship.StartPosition); err != nil {
		return err
	}
	if c.Ship.InitialThrottle < 0 || c.Ship.InitialThrottle > 1 {
		return fmt.Errorf("%w: ship.initial_throttle must be in [0, 1]", ErrInvalidConfig)
	}
	if !(c.Ship.CruiseSpeed > 0) {
		return fmt.Errorf("%w: ship.cruise_speed must be > 0", ErrInvalidConfig)
	}
	if c.Ship.TurboSpeed < c.Ship.CruiseSpeed {
		return fmt.Errorf("%w: ship.turbo_speed must be >= cruise_speed", ErrInvalidConfig)
	}
	if c.Ship.RotationSmoothing < 0 || c.Ship.RotationSmoothing >= 1 {
		return fmt.Errorf("%w: ship.rotation_smoothing must be in [0, 1)", ErrInvalidConfig)
	}
	if c.Ship.SpeedResponse < 0 || c.Ship.BrakeResponse < 0 {
		return fmt.Errorf("%w: ship responses must be >= 0", ErrInvalidConfig)
	}

	if c.Physics.FrameMatchStrength < 0 {
		return fmt.Errorf("%w: physics.frame_match_strength must be >= 0", ErrInvalidConfig)
	}
	if c.Physics.CushionHeight < 0 {
		return fmt.Errorf("%w: physics.cushion_height must be >= 0", ErrInvalidConfig)
	}

	if c.Stream.SendBuffer < 1 {
		return fmt.Errorf("%w: stream.send_buffer must be >= 1", ErrInvalidConfig)
	}
	if c.Stream.Every < 1 {
		return fmt.Errorf("%w: stream.every must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// TimeMode returns the parsed clock mode.
func (c *Config) TimeMode() timectrl.Mode {
	m, _ := timectrl.ParseMode(c.Time.Mode)
	return m
}

// StartPosition returns the craft's configured start position.
func (c *Config) StartPosition() core.Vec3 {
	v, _ := vector("ship.start_position", c.Ship.StartPosition)
	return v
}

// Catalog builds the body registry and checks that the hierarchy resolves.
func (c *Config) Catalog() (*kb.KnowledgeBase, error) {
	store := kb.NewKnowledgeBase()

	pos, err := vector("star.position", c.Star.Position)
	if err != nil {
		return nil, err
	}
	if err := store.SetStar(model.StarDefinition{
		Name:     c.Star.Name,
		Position: pos.Motion(),
		Radius:   c.Star.Radius,
		GM:       c.Star.GM,
	}); err != nil {
		return nil, fmt.Errorf("%w: star: %w", ErrInvalidConfig, err)
	}

	for i := range c.Bodies {
		def, err := c.Bodies[i].Definition(c.Star.Name)
		if err != nil {
			return nil, err
		}
		if err := store.AddBody(def); err != nil {
			return nil, fmt.Errorf("%w: bodies[%d]: %w", ErrInvalidConfig, i, err)
		}
	}
	if _, err := store.Resolve(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return store, nil
}

// Definition converts the entry into a model body. A parent equal to the
// star's name is the same as no parent.
func (b BodyConfig) Definition(starName string) (*model.BodyDefinition, error) {
	parent := b.Parent
	if parent == starName {
		parent = ""
	}
	def := &model.BodyDefinition{
		Name:             b.Name,
		Radius:           b.Radius,
		AtmosphereRadius: b.AtmosphereRadius,
		GM:               b.GM,
		DragStrength:     b.DragStrength,
	}

	switch strings.ToLower(strings.TrimSpace(b.Motion)) {
	case "", "keplerian", "kepler":
		if b.Orbit == nil {
			return nil, fmt.Errorf("%w: body %q: keplerian motion needs an orbit", ErrInvalidConfig, b.Name)
		}
		def.MotionSource = model.MotionSourceKeplerian
		def.Orbit = &model.OrbitalElements{
			SemiMajorAxis:      b.Orbit.SemiMajorAxis,
			Eccentricity:       b.Orbit.Eccentricity,
			InclinationDegrees: b.Orbit.Inclination,
			OrbitalPeriod:      b.Orbit.Period,
			StartAngleRadians:  b.Orbit.StartAngle,
			ParentName:         parent,
		}
	case "static":
		off, err := vector(fmt.Sprintf("body %q offset", b.Name), b.Offset)
		if err != nil {
			return nil, err
		}
		def.MotionSource = model.MotionSourceStatic
		def.Offset = off.Motion()
		def.OffsetParent = parent
	case "tle", "sgp4":
		if b.TLE == nil {
			return nil, fmt.Errorf("%w: body %q: tle motion needs a tle block", ErrInvalidConfig, b.Name)
		}
		epoch, err := time.Parse(time.RFC3339, b.TLE.Epoch)
		if err != nil {
			return nil, fmt.Errorf("%w: body %q: tle epoch: %v", ErrInvalidConfig, b.Name, err)
		}
		def.MotionSource = model.MotionSourceTLE
		def.TLE = &model.TLESource{
			Line1:      b.TLE.Line1,
			Line2:      b.TLE.Line2,
			Epoch:      epoch,
			UnitsPerKm: b.TLE.UnitsPerKm,
			ParentName: parent,
		}
	default:
		return nil, fmt.Errorf("%w: body %q: unknown motion %q", ErrInvalidConfig, b.Name, b.Motion)
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return def, nil
}

// vector converts an optional [x, y, z] list. An empty list is the origin.
func vector(field string, xs []float64) (core.Vec3, error) {
	switch len(xs) {
	case 0:
		return core.Vec3{}, nil
	case 3:
		return core.Vec3{X: xs[0], Y: xs[1], Z: xs[2]}, nil
	default:
		return core.Vec3{}, fmt.Errorf("%w: %s must have 3 components, got %d", ErrInvalidConfig, field, len(xs))
	}
}
