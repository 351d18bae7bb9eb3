package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgate/console/internal/core/domain"
)

const healthPayload = `{"status":"healthy","components":{"db":"healthy","queue":"healthy"},"timestamp":"2026-01-02T15:04:05Z"}`

// healthBackend serves a health payload, optionally blocking until
// released so tests can pile up concurrent callers.
type healthBackend struct {
	mu      sync.Mutex
	probes  int
	release chan struct{}
	payload string
	fail    bool
}

func (b *healthBackend) Name() string { return "gateway" }

func (b *healthBackend) RoundTrip(ctx context.Context, req Request) (*Response, error) {
	b.mu.Lock()
	b.probes++
	b.mu.Unlock()

	if b.release != nil {
		<-b.release
	}
	if b.fail {
		return nil, context.DeadlineExceeded
	}
	payload := b.payload
	if payload == "" {
		payload = healthPayload
	}
	return &Response{Status: 200, Body: []byte(payload)}, nil
}

func (b *healthBackend) probeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.probes
}

func newTestCache(backend Backend, ttl time.Duration) *HealthCache {
	d, _ := newTestDispatcher(backend, nil, 0)
	return NewHealthCache(d, nil, ttl)
}

func TestHealthCacheSingleFlight(t *testing.T) {
	backend := &healthBackend{release: make(chan struct{})}
	cache := newTestCache(backend, 5*time.Second)

	const n = 16
	var wg sync.WaitGroup
	stamps := make([]time.Time, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := cache.GetHealth(context.Background(), false)
			stamps[i] = snap.CachedAt
			errs[i] = err
		}(i)
	}

	// Let every caller reach the cache before the probe resolves.
	time.Sleep(50 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	assert.Equal(t, 1, backend.probeCount(), "exactly one probe for N concurrent callers")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, stamps[0], stamps[i], "all callers share one CachedAt")
	}
}

func TestHealthCacheTTL(t *testing.T) {
	backend := &healthBackend{}
	cache := newTestCache(backend, 5*time.Second)

	base := time.Now()
	now := base
	cache.now = func() time.Time { return now }

	first, err := cache.GetHealth(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.probeCount())

	// Within TTL: cache hit, no network activity.
	now = base.Add(3 * time.Second)
	second, err := cache.GetHealth(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.probeCount())
	assert.Equal(t, first.CachedAt, second.CachedAt)

	// At TTL: entry expired, fresh probe.
	now = base.Add(5 * time.Second)
	third, err := cache.GetHealth(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.probeCount())
	assert.NotEqual(t, first.CachedAt, third.CachedAt)
}

func TestHealthCacheForceBypass(t *testing.T) {
	backend := &healthBackend{}
	cache := newTestCache(backend, time.Hour)

	base := time.Now()
	now := base
	cache.now = func() time.Time { return now }

	first, err := cache.GetHealth(context.Background(), false)
	require.NoError(t, err)

	// The prior entry is still valid, force probes anyway.
	now = base.Add(time.Second)
	forced, err := cache.GetHealth(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 2, backend.probeCount())
	assert.NotEqual(t, first.CachedAt, forced.CachedAt)

	// The forced result replaces the cached entry.
	cached, ok := cache.Cached()
	require.True(t, ok)
	assert.Equal(t, forced.CachedAt, cached.CachedAt)
}

func TestHealthCachePassiveRead(t *testing.T) {
	backend := &healthBackend{}
	cache := newTestCache(backend, 5*time.Second)

	_, ok := cache.Cached()
	assert.False(t, ok, "nothing cached before the first probe")
	assert.Equal(t, 0, backend.probeCount(), "passive read never probes")

	snap, err := cache.GetHealth(context.Background(), false)
	require.NoError(t, err)

	cached, ok := cache.Cached()
	require.True(t, ok)
	assert.Equal(t, snap.CachedAt, cached.CachedAt)
	assert.Equal(t, "healthy", cached.Status)
	assert.Equal(t, "healthy", cached.Components["db"])
}

func TestHealthCacheExpiredEntryIsAbsent(t *testing.T) {
	backend := &healthBackend{}
	cache := newTestCache(backend, 5*time.Second)

	base := time.Now()
	now := base
	cache.now = func() time.Time { return now }

	_, err := cache.GetHealth(context.Background(), false)
	require.NoError(t, err)

	now = base.Add(10 * time.Second)
	_, ok := cache.Cached()
	assert.False(t, ok)
	assert.Equal(t, 1, backend.probeCount())
}

func TestHealthCacheProbeFailure(t *testing.T) {
	backend := &healthBackend{fail: true}
	cache := newTestCache(backend, 5*time.Second)

	_, err := cache.GetHealth(context.Background(), false)
	require.Error(t, err)

	// Failures are never cached.
	_, ok := cache.Cached()
	assert.False(t, ok)
}

func TestHealthCacheForceWinsOverInFlightProbe(t *testing.T) {
	release := make(chan struct{})
	backend := &stubBackend{
		name: "gateway",
		fn: func(call int, req Request) (*Response, error) {
			if call == 1 {
				<-release
				return &Response{Status: 200, Body: []byte(`{"status":"degraded"}`)}, nil
			}
			return &Response{Status: 200, Body: []byte(healthPayload)}, nil
		},
	}
	cache := newTestCache(backend, time.Hour)

	var (
		wg     sync.WaitGroup
		flight domain.HealthSnapshot
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		flight, _ = cache.GetHealth(context.Background(), false)
	}()

	// Wait until the slow probe is in flight, then force a fresh one.
	require.Eventually(t, func() bool { return backend.callCount() == 1 },
		time.Second, time.Millisecond)

	forced, err := cache.GetHealth(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "healthy", forced.Status)

	close(release)
	wg.Wait()

	// The slow probe still answered its own waiters, but its stale
	// result did not overwrite the forced entry.
	assert.Equal(t, "degraded", flight.Status)
	cached, ok := cache.Cached()
	require.True(t, ok)
	assert.Equal(t, "healthy", cached.Status)
}

func TestHealthCacheMalformedPayload(t *testing.T) {
	backend := &healthBackend{payload: "not json at all"}
	cache := newTestCache(backend, 5*time.Second)

	_, err := cache.GetHealth(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode_error")
}
