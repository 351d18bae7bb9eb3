package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/opsgate/console/internal/core/domain"
	"github.com/opsgate/console/internal/infra/telemetry"
)

const healthPath = "/health"

// HealthCache wraps the health probe with time-boxed caching and
// single-flight deduplication: concurrent callers that miss the cache
// share one in-flight probe and receive the same snapshot, including
// an identical CachedAt stamp.
type HealthCache struct {
	dispatcher *Dispatcher
	sink       telemetry.Sink
	ttl        time.Duration

	mu    sync.RWMutex
	entry *domain.HealthSnapshot
	gen   uint64

	group singleflight.Group

	// now is swapped out in tests to control TTL expiry.
	now func() time.Time
}

// NewHealthCache creates a cache with the given snapshot TTL.
func NewHealthCache(dispatcher *Dispatcher, sink telemetry.Sink, ttl time.Duration) *HealthCache {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return &HealthCache{
		dispatcher: dispatcher,
		sink:       sink,
		ttl:        ttl,
		now:        time.Now,
	}
}

// GetHealth returns a health snapshot, probing the gateway only when
// no valid cached entry exists. With force set, any cached entry is
// invalidated first and a fresh probe always runs, bypassing
// single-flight sharing with prior waiters.
func (c *HealthCache) GetHealth(ctx context.Context, force bool) (domain.HealthSnapshot, error) {
	if force {
		c.Invalidate()
		return c.probeAndStore(ctx)
	}

	if snap, ok := c.validEntry(); ok {
		return snap, nil
	}

	v, err, _ := c.group.Do("health", func() (any, error) {
		// A concurrent caller may have filled the cache while this
		// caller was acquiring the flight.
		if snap, ok := c.validEntry(); ok {
			return snap, nil
		}
		return c.probeAndStore(ctx)
	})
	if err != nil {
		return domain.HealthSnapshot{}, err
	}
	return v.(domain.HealthSnapshot), nil
}

// Cached returns the current cached snapshot without triggering any
// network activity. The second result is false when nothing valid is
// cached.
func (c *HealthCache) Cached() (domain.HealthSnapshot, bool) {
	return c.validEntry()
}

// Invalidate evicts any cached snapshot. Probes already in flight at
// that point return to their waiters but no longer enter the cache.
func (c *HealthCache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.gen++
	c.mu.Unlock()
}

func (c *HealthCache) validEntry() (domain.HealthSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.entry == nil {
		return domain.HealthSnapshot{}, false
	}
	if c.now().Sub(c.entry.CachedAt) >= c.ttl {
		return domain.HealthSnapshot{}, false
	}
	return *c.entry, true
}

func (c *HealthCache) probeAndStore(ctx context.Context) (domain.HealthSnapshot, error) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	snap, err := probeHealth(ctx, c.dispatcher, c.sink)
	if err != nil {
		return domain.HealthSnapshot{}, err
	}

	snap.CachedAt = c.now()

	c.mu.Lock()
	// An invalidation while this probe was in flight wins: the stale
	// result must not overwrite a fresher forced entry.
	if c.gen == gen {
		stored := snap
		c.entry = &stored
	}
	c.mu.Unlock()

	return snap, nil
}

// probeHealth issues one health probe through the dispatcher and
// decodes the snapshot. Shared by the cache and the availability
// tracker; the tracker calls it directly to bypass caching.
func probeHealth(ctx context.Context, d *Dispatcher, sink telemetry.Sink) (domain.HealthSnapshot, error) {
	started := time.Now()

	outcome := d.Dispatch(ctx, Request{
		Method: http.MethodGet,
		Path:   healthPath,
		Options: Options{
			Client:    "health",
			Operation: "health_check",
		},
	})

	var snap domain.HealthSnapshot
	var err error
	switch {
	case !outcome.Success():
		err = outcomeError(outcome)
	default:
		if decodeErr := json.Unmarshal(outcome.Raw, &snap); decodeErr != nil {
			err = fmt.Errorf("%s: decode health payload: %w", domain.ReasonDecode, decodeErr)
		}
	}

	result := "success"
	if err != nil {
		result = "failure"
	}
	telemetry.HealthChecksTotal.WithLabelValues(result).Inc()
	sink.Emit(telemetry.HealthCheckCompleted{
		Result:   result,
		Duration: time.Since(started),
		At:       time.Now(),
	})

	return snap, err
}

// outcomeError converts a non-success outcome into an error for
// callers with (value, error) signatures.
func outcomeError(o domain.Outcome) error {
	if o.Err != nil {
		return fmt.Errorf("%s: %w", o.Reason, o.Err)
	}
	return fmt.Errorf("%s: gateway returned status %d", o.Reason, o.Status)
}
