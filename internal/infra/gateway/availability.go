package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/opsgate/console/internal/core/domain"
	"github.com/opsgate/console/internal/infra/telemetry"
)

// unhealthyThreshold is the number of consecutive failed probes before
// the gateway is declared unhealthy. Recovery is asymmetric: a single
// success flips the flag back immediately.
const unhealthyThreshold = 3

// Tracker polls the gateway's health in the background, bypassing the
// health cache, and maintains a debounced availability flag. The state
// is owned exclusively by the tracker's loop; readers only ever get a
// copy.
type Tracker struct {
	dispatcher *Dispatcher
	sink       telemetry.Sink
	interval   time.Duration

	mu    sync.RWMutex
	state domain.AvailabilityState
}

// NewTracker creates a tracker. The initial state is optimistically
// healthy until the first probe completes.
func NewTracker(dispatcher *Dispatcher, sink telemetry.Sink, interval time.Duration) *Tracker {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &Tracker{
		dispatcher: dispatcher,
		sink:       sink,
		interval:   interval,
		state:      domain.AvailabilityState{Healthy: true},
	}
}

// Start launches the background probe loop. The loop stops when ctx is
// cancelled; probe failures never escape it.
func (t *Tracker) Start(ctx context.Context) {
	go t.run(ctx)
}

func (t *Tracker) run(ctx context.Context) {
	t.check(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.check(ctx)
		}
	}
}

func (t *Tracker) check(ctx context.Context) {
	// A probe that cannot complete at all counts the same as a failed
	// one; probeHealth absorbs both into its error.
	_, err := probeHealth(ctx, t.dispatcher, t.sink)
	t.observe(err == nil)
}

// observe applies one probe result to the state machine.
func (t *Tracker) observe(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.LastChecked = time.Now()

	if ok {
		t.state.ConsecutiveFailures = 0
		t.state.Healthy = true
		telemetry.GatewayUp.Set(1)
		return
	}

	t.state.ConsecutiveFailures++
	if t.state.ConsecutiveFailures >= unhealthyThreshold {
		t.state.Healthy = false
		telemetry.GatewayUp.Set(0)
	}
}

// IsHealthy returns the current availability flag. It never triggers
// a probe.
func (t *Tracker) IsHealthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Healthy
}

// State returns a snapshot of the tracker's state.
func (t *Tracker) State() domain.AvailabilityState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}
