package utils

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	goutils "go.viam.com/utils"
)

// PeriodicWorkers runs functions on fixed periods of a clock until Stop is called.
// A function that overruns its period delays its next call; ticks are never queued.
type PeriodicWorkers struct {
	clk clock.Clock

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// NewPeriodicWorkers returns an empty set of workers timed by clk.
func NewPeriodicWorkers(clk clock.Clock) *PeriodicWorkers {
	ctx, cancel := context.WithCancel(context.Background())
	return &PeriodicWorkers{clk: clk, ctx: ctx, cancel: cancel}
}

// Add starts calling fn every period. It does nothing once the workers are stopped.
func (pw *PeriodicWorkers) Add(period time.Duration, fn func(context.Context)) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.ctx.Err() != nil {
		return
	}

	ticker := pw.clk.Ticker(period)
	pw.running.Add(1)
	goutils.PanicCapturingGo(func() {
		defer pw.running.Done()
		defer ticker.Stop()
		for {
			select {
			case <-pw.ctx.Done():
				return
			case <-ticker.C:
			}
			fn(pw.ctx)
		}
	})
}

// Stop cancels the workers' context and waits for every call in flight to return.
func (pw *PeriodicWorkers) Stop() {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	pw.cancel()
	pw.running.Wait()
}

// Stopped reports whether Stop was called.
func (pw *PeriodicWorkers) Stopped() bool {
	return pw.ctx.Err() != nil
}
