package core

import (
	"math"

	"github.com/signalsfoundry/orbital-flight-sim/model"
)

// rollDeadband is the smoothed roll rate below which no roll is applied.
const rollDeadband = 0.001

// lookDeadband is the look speed below which no look rotation is applied;
// below lookStop the residual look velocity is cut after the tick.
const (
	lookDeadband = 1e-4
	lookStop     = 0.01
)

// throttlePresets is the number of the highest throttle preset (full throttle).
const throttlePresets = 9

// FlightTuning holds the craft's handling parameters.
type FlightTuning struct {
	CruiseSpeed       float64 `mapstructure:"cruise_speed"`
	TurboSpeed        float64 `mapstructure:"turbo_speed"`
	SpeedResponse     float64 `mapstructure:"speed_response"`
	BrakeResponse     float64 `mapstructure:"brake_response"`
	MaxSpeed          float64 `mapstructure:"max_speed"` // <= 0 disables the clamp
	RollRate          float64 `mapstructure:"roll_rate"` // radians per second at full input
	RollSmoothing     float64 `mapstructure:"roll_smoothing"`
	LookSensitivity   float64 `mapstructure:"look_sensitivity"`   // radians per look unit
	RotationSmoothing float64 `mapstructure:"rotation_smoothing"` // per-tick look velocity decay, [0, 1)
	ThrottleStep      float64 `mapstructure:"throttle_step"`
}

// FlightCommand is one tick of abstract pilot input. Mapping keys, mice or
// gamepads onto it belongs to the input layer.
type FlightCommand struct {
	Turbo bool
	Brake bool
	// Roll is the target roll input in [-1, 1].
	Roll float64
	// Yaw and Pitch are look impulses (mouse deltas since the last tick).
	// They feed a decaying look velocity scaled by LookSensitivity.
	Yaw   float64
	Pitch float64
}

// Craft is the player ship.
type Craft struct {
	Position    Vec3
	Velocity    Vec3
	Orientation Quaternion
	Throttle    float64

	rollCurrent float64
	lookYaw     float64
	lookPitch   float64
}

// NewCraft places a craft at position, facing +Z and already moving at its
// throttle's cruise speed.
func NewCraft(position Vec3, throttle float64, tuning FlightTuning) *Craft {
	throttle = clamp(throttle, 0, 1)
	return &Craft{
		Position:    position,
		Velocity:    AxisForward.Scale(throttle * tuning.CruiseSpeed),
		Orientation: IdentityQuaternion,
		Throttle:    throttle,
	}
}

// Forward returns the craft's nose direction in world space.
func (c *Craft) Forward() Vec3 { return c.Orientation.Rotate(AxisForward).Unit() }

// Up returns the craft's up direction in world space.
func (c *Craft) Up() Vec3 { return c.Orientation.Rotate(AxisUp).Unit() }

// Right returns the craft's right direction in world space.
func (c *Craft) Right() Vec3 { return c.Orientation.Rotate(AxisRight).Unit() }

// Speed returns |Velocity|.
func (c *Craft) Speed() float64 { return c.Velocity.Norm() }

// SetThrottle sets the throttle, clamped to [0, 1].
func (c *Craft) SetThrottle(v float64) {
	c.Throttle = clamp(v, 0, 1)
}

// AdjustThrottle moves the throttle by one wheel notch. Positive delta (wheel
// scrolled down) reduces the throttle.
func (c *Craft) AdjustThrottle(delta, step float64) {
	c.SetThrottle(c.Throttle - delta*step)
}

// SetThrottlePreset selects preset n, where 0 is idle and 9 is full.
func (c *Craft) SetThrottlePreset(n int) {
	c.SetThrottle(float64(n) / throttlePresets)
}

// UpdateOrientation applies roll, yaw and pitch for one tick.
func (c *Craft) UpdateOrientation(cmd FlightCommand, dt float64, tuning FlightTuning) {
	k := 1 - math.Exp(-dt*tuning.RollSmoothing)
	c.rollCurrent = lerp(c.rollCurrent, clamp(cmd.Roll, -1, 1), k)

	if math.Abs(c.rollCurrent) > rollDeadband {
		roll := FromAxisAngle(c.Forward(), c.rollCurrent*tuning.RollRate*dt)
		c.Orientation = roll.Mul(c.Orientation)
	}

	// Look input is an impulse on a velocity that decays every tick.
	smoothing := clamp(tuning.RotationSmoothing, 0, 1)
	c.lookYaw += cmd.Yaw * (1 - smoothing)
	c.lookPitch += cmd.Pitch * (1 - smoothing)

	lookSpeed := math.Hypot(c.lookYaw, c.lookPitch)
	if lookSpeed <= lookDeadband {
		return
	}
	up, right := c.Up(), c.Right()
	yaw := FromAxisAngle(up, c.lookYaw*tuning.LookSensitivity)
	pitch := FromAxisAngle(right, -c.lookPitch*tuning.LookSensitivity)
	c.Orientation = pitch.Mul(yaw.Mul(c.Orientation))

	c.lookYaw *= smoothing
	c.lookPitch *= smoothing
	if lookSpeed < lookStop {
		c.lookYaw, c.lookPitch = 0, 0
	}
}

// UpdateSpeed eases the forward speed toward the commanded target and bleeds
// off sideways drift.
func (c *Craft) UpdateSpeed(cmd FlightCommand, dt float64, tuning FlightTuning) {
	forward := c.Forward()

	var target float64
	switch {
	case cmd.Turbo:
		target = tuning.TurboSpeed
	case cmd.Brake:
		target = 0
	default:
		target = c.Throttle * tuning.CruiseSpeed
	}

	response := tuning.SpeedResponse
	if target == 0 {
		response = tuning.BrakeResponse
	}
	k := 1 - math.Exp(-dt*response)

	current := c.Velocity.Dot(forward)
	lateral := c.Velocity.Sub(forward.Scale(current)).Scale(1 - k*0.5)
	c.Velocity = forward.Scale(lerp(current, target, k)).Add(lateral)
}

// Integrate advances the craft by one semi-implicit Euler step.
func (c *Craft) Integrate(accel Vec3, dt, maxSpeed float64) {
	c.Velocity = c.Velocity.Add(accel.Scale(dt)).ClampNorm(maxSpeed)
	c.Position = c.Position.Add(c.Velocity.Scale(dt))
}

// State returns the craft's snapshot representation.
func (c *Craft) State() model.CraftState {
	return model.CraftState{
		Position:    c.Position.Motion(),
		Velocity:    c.Velocity.Motion(),
		Orientation: c.Orientation.Orientation(),
		Throttle:    c.Throttle,
		Speed:       c.Speed(),
	}
}
