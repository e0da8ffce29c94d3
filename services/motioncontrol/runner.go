package motioncontrol

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/motioncore/components/drive"
	"go.viam.com/motioncore/components/steering"
	"go.viam.com/motioncore/logging"
	"go.viam.com/motioncore/utils"
)

// DefaultTelemetryPeriod is how often the Runner logs the system status.
const DefaultTelemetryPeriod = 100 * time.Millisecond

// RunnerOptions configures a Runner. Zero durations select the defaults.
type RunnerOptions struct {
	// TickPeriod is the control tick period. Defaults to one millisecond.
	TickPeriod      time.Duration
	TelemetryPeriod time.Duration
	// Steering, when set, is stepped every SteeringPeriod.
	Steering       steering.Controller
	SteeringPeriod time.Duration
	// Stoppers are brought to rest on Close.
	Stoppers []drive.Stopper
}

// Runner drives a MotionControlSystem from background workers: the control tick, the steering
// servo cycle and the status telemetry.
type Runner struct {
	mcs      *MotionControlSystem
	clk      clock.Clock
	opts     RunnerOptions
	logger   logging.Logger
	workers  *utils.PeriodicWorkers
	ticks    atomic.Uint64
	overruns atomic.Uint64
}

// NewRunner starts the workers.
func NewRunner(mcs *MotionControlSystem, opts RunnerOptions, clk clock.Clock, logger logging.Logger) *Runner {
	if opts.TickPeriod <= 0 {
		opts.TickPeriod = time.Millisecond
	}
	if opts.TelemetryPeriod <= 0 {
		opts.TelemetryPeriod = DefaultTelemetryPeriod
	}
	if opts.SteeringPeriod <= 0 {
		opts.SteeringPeriod = steering.DefaultControlPeriod
	}
	r := &Runner{mcs: mcs, clk: clk, opts: opts, logger: logger}
	r.workers = utils.NewPeriodicWorkers(clk)
	r.workers.Add(opts.TickPeriod, r.tick)
	if opts.Steering != nil {
		var failing bool
		r.workers.Add(opts.SteeringPeriod, func(ctx context.Context) {
			err := opts.Steering.Control(ctx)
			switch {
			case err != nil && !failing:
				logger.Errorw("steering control failed", "error", err)
			case err == nil && failing:
				logger.Info("steering control recovered")
			}
			failing = err != nil
		})
	}
	r.workers.Add(opts.TelemetryPeriod, r.telemetry)
	return r
}

func (r *Runner) tick(context.Context) {
	start := r.clk.Now()
	r.mcs.Control()
	r.ticks.Inc()
	if r.clk.Since(start) > r.opts.TickPeriod {
		r.overruns.Inc()
	}
}

func (r *Runner) telemetry(context.Context) {
	r.mcs.LogStatus()
	if n := r.overruns.Swap(0); n > 0 {
		r.logger.Warnw("control tick overran its period", "count", n, "period", r.opts.TickPeriod)
	}
}

// Ticks returns the number of control ticks run so far.
func (r *Runner) Ticks() uint64 {
	return r.ticks.Load()
}

// Close stops the workers, stops and clears the trajectory and brings every stopper to rest.
func (r *Runner) Close(ctx context.Context) error {
	r.workers.Stop()
	r.mcs.StopAndClearTrajectory()
	var err error
	for _, s := range r.opts.Stoppers {
		if stopErr := s.Stop(ctx); stopErr != nil {
			err = multierr.Combine(err, errors.Wrap(stopErr, "stopping drive"))
		}
	}
	return err
}
