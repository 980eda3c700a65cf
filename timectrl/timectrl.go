package timectrl

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SimClock is read access to the accumulated simulation time. Components
// that only need "what time is it in the sim" depend on this rather than on
// the controller.
type SimClock interface {
	// SimTime returns the accumulated simulation time in seconds.
	SimTime() float64
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime paces steps against the wall clock and derives dt from it.
	RealTime Mode = iota
	// Accelerated steps by Tick as fast as the loop can run. Each step still
	// passes through DtClamp.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "realtime" or "accelerated" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "realtime", "real-time", "real_time":
		return RealTime, nil
	case "accelerated", "fast":
		return Accelerated, nil
	default:
		return 0, fmt.Errorf("unknown time mode %q", s)
	}
}

// TimeController turns frame time into simulation dt and notifies listeners
// once per step. It implements SimClock.
type TimeController struct {
	mu sync.RWMutex

	Tick    time.Duration
	Mode    Mode
	DtClamp float64 // seconds; <= 0 disables the clamp

	timeScale float64
	simTime   float64
	steps     uint64

	listeners []func(dt float64)
	now       func() time.Time
}

// NewTimeController constructs a controller. tick is the real-time pacing
// interval and the fixed step in Accelerated mode.
func NewTimeController(tick time.Duration, mode Mode, dtClamp, timeScale float64) *TimeController {
	return &TimeController{
		Tick:      tick,
		Mode:      mode,
		DtClamp:   dtClamp,
		timeScale: timeScale,
		now:       time.Now,
	}
}

// SimTime returns the accumulated simulation time. Implements SimClock.
func (tc *TimeController) SimTime() float64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.simTime
}

// Steps returns the number of completed steps.
func (tc *TimeController) Steps() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.steps
}

// TimeScale returns the current scale factor.
func (tc *TimeController) TimeScale() float64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.timeScale
}

// SetTimeScale changes the scale factor. 0 pauses the simulation; negative
// values are treated as 0 so the clock never runs backwards.
func (tc *TimeController) SetTimeScale(s float64) {
	if !(s > 0) {
		s = 0
	}
	tc.mu.Lock()
	tc.timeScale = s
	tc.mu.Unlock()
}

// AddListener registers a callback invoked on every step with the scaled dt.
// Listeners must be added before Run.
func (tc *TimeController) AddListener(fn func(dt float64)) {
	tc.listeners = append(tc.listeners, fn)
}

// ScaledStep converts a real frame time in seconds into simulation dt:
// min(real, DtClamp) · TimeScale. Negative and non-finite input yields 0.
func (tc *TimeController) ScaledStep(real float64) float64 {
	if !(real > 0) || math.IsInf(real, 0) {
		return 0
	}
	if tc.DtClamp > 0 && real > tc.DtClamp {
		real = tc.DtClamp
	}
	return real * tc.TimeScale()
}

// Advance performs one step for the given real frame time and returns the
// simulation dt that was applied.
func (tc *TimeController) Advance(real float64) float64 {
	dt := tc.ScaledStep(real)

	tc.mu.Lock()
	tc.simTime += dt
	tc.steps++
	tc.mu.Unlock()

	for _, fn := range tc.listeners {
		fn(dt)
	}
	return dt
}

// Run steps until ctx is cancelled or, when duration > 0, until at least
// duration seconds of simulation time have elapsed. Cancellation is a normal
// stop and returns nil.
func (tc *TimeController) Run(ctx context.Context, duration float64) error {
	if tc.Tick <= 0 {
		return fmt.Errorf("timectrl: tick must be > 0, got %v", tc.Tick)
	}
	start := tc.SimTime()
	done := func() bool {
		return duration > 0 && tc.SimTime()-start >= duration
	}

	switch tc.Mode {
	case Accelerated:
		step := tc.Tick.Seconds()
		for !done() {
			if ctx.Err() != nil {
				return nil
			}
			tc.Advance(step)
		}
		return nil

	case RealTime:
		limiter := rate.NewLimiter(rate.Every(tc.Tick), 1)
		last := tc.now()
		for !done() {
			if err := limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			now := tc.now()
			tc.Advance(now.Sub(last).Seconds())
			last = now
		}
		return nil

	default:
		return fmt.Errorf("timectrl: unknown mode %v", tc.Mode)
	}
}

// Start runs the controller in a separate goroutine. The returned channel is
// closed when Run returns.
func (tc *TimeController) Start(ctx context.Context, duration float64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tc.Run(ctx, duration)
	}()
	return done
}
