package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(_ context.Context) error {
		return nil
	}
}

func failingCheck(msg string) CheckFunc {
	return func(_ context.Context) error {
		return errors.New(msg)
	}
}

type statusBody struct {
	Status string
	Checks map[string]string
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusBody {
	t.Helper()
	body := statusBody{Checks: map[string]string{}}
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			v, err := d.Str()
			body.Status = v
			return err
		case "checks":
			return d.Obj(func(d *jx.Decoder, name string) error {
				v, err := d.Str()
				body.Checks[name] = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return body
}

// runN drives c through n check rounds.
func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(h *Health)
		wantCode   int
		wantChecks map[string]string
	}{
		{
			name:     "no checks",
			setup:    func(*Health) {},
			wantCode: http.StatusOK,
		},
		{
			name: "all passing",
			setup: func(h *Health) {
				h.AddLivenessCheck("goroutines", time.Second, passingCheck())
				h.AddLivenessCheck("gc_pause", time.Second, passingCheck())
				runN(h.liveness[0], 1)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "failures below threshold",
			setup: func(h *Health) {
				h.AddLivenessCheck("goroutines", time.Second, failingCheck("too many"))
				runN(h.liveness[0], 2)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "failures reach threshold",
			setup: func(h *Health) {
				h.AddLivenessCheck("gc_pause", time.Second, failingCheck("pause 2s exceeds 1s"))
				runN(h.liveness[0], 3)
			},
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]string{"gc_pause": "pause 2s exceeds 1s"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			tt.setup(h)

			w := httptest.NewRecorder()
			h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			body := decodeStatus(t, w)
			if tt.wantChecks == nil {
				assert.Equal(t, "ok", body.Status)
				assert.Empty(t, body.Checks)
				return
			}
			assert.Equal(t, "unhealthy", body.Status)
			assert.Equal(t, tt.wantChecks, body.Checks)
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(h *Health)
		wantCode   int
		wantChecks []string
	}{
		{
			name:     "ready without checks",
			setup:    func(h *Health) { h.SetReady(true) },
			wantCode: http.StatusOK,
		},
		{
			name: "ready and passing",
			setup: func(h *Health) {
				h.AddReadinessCheck("postgres", time.Second, passingCheck())
				h.SetReady(true)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "not marked ready",
			setup: func(h *Health) {
				h.AddReadinessCheck("postgres", time.Second, passingCheck())
			},
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: []string{"_readiness"},
		},
		{
			name: "draining",
			setup: func(h *Health) {
				h.AddReadinessCheck("postgres", time.Second, passingCheck())
				h.SetReady(true)
				h.SetReady(false)
			},
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: []string{"_readiness"},
		},
		{
			name: "redis down",
			setup: func(h *Health) {
				h.AddReadinessCheck("postgres", time.Second, passingCheck())
				h.AddReadinessCheck("redis", time.Second, failingCheck("dial tcp: connection refused"))
				h.SetReady(true)
				runN(h.readiness[1], 3)
			},
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: []string{"redis"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			tt.setup(h)

			w := httptest.NewRecorder()
			h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			body := decodeStatus(t, w)
			if tt.wantChecks == nil {
				assert.Equal(t, "ok", body.Status)
				return
			}
			assert.Equal(t, "unhealthy", body.Status)
			var names []string
			for name := range body.Checks {
				names = append(names, name)
			}
			assert.ElementsMatch(t, tt.wantChecks, names)
		})
	}
}

func TestIsReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())

	assert.False(t, h.IsReady(), "not ready before SetReady")
	h.SetReady(true)
	assert.True(t, h.IsReady())
	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passingCheck())

	h.Start(context.Background(), 100*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// Stop is idempotent.
	h.Stop()
	h.Stop()
}

func TestCheckRecovery(t *testing.T) {
	// A check that starts failing then recovers should become healthy again
	// after successThreshold consecutive successes.
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	c := h.liveness[0]
	ctx := context.Background()

	// Drive past failure threshold (3).
	c.run(ctx)
	c.run(ctx)
	c.run(ctx)
	assert.False(t, c.isHealthy())

	// Switch to passing. One success should recover (successThreshold = 1).
	failing = false
	c.run(ctx)
	assert.True(t, c.isHealthy(), "check should recover after successThreshold consecutive passes")
}

func TestCheckLastErrorStored(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, failingCheck("timeout"))
	c := h.liveness[0]

	// Before any run, no last error.
	assert.Nil(t, c.getLastError())

	// After run, last error should be stored.
	c.run(context.Background())
	assert.EqualError(t, c.getLastError(), "timeout")
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("concurrent", time.Second, failingCheck("err"))
	h.AddReadinessCheck("concurrent", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.IsReady()

				req := httptest.NewRequest(http.MethodGet, "/livez", nil)
				w := httptest.NewRecorder()
				h.LiveEndpoint(w, req)

				req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
				w = httptest.NewRecorder()
				h.ReadyEndpoint(w, req)
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	// With a very high threshold, the check should pass.
	check := GoroutineCountCheck(100000)
	assert.NoError(t, check(context.Background()))

	// With a threshold of 0, it should always fail.
	check = GoroutineCountCheck(0)
	err := check(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	// With a very generous threshold, the check should pass.
	check := GCMaxPauseCheck(time.Hour)
	assert.NoError(t, check(context.Background()))
}

func TestWithThresholds(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, failingCheck("refused"), WithThresholds(1, 2))
	h.SetReady(true)
	c := h.readiness[0]
	ctx := context.Background()

	c.run(ctx)
	assert.False(t, h.IsReady(), "one failure is enough with threshold 1")

	c.fn = passingCheck()
	c.run(ctx)
	assert.False(t, h.IsReady(), "needs two successes to recover")
	c.run(ctx)
	assert.True(t, h.IsReady())
}

func TestReadyEndpoint_SortedChecks(t *testing.T) {
	h := New()
	h.AddReadinessCheck("redis", time.Second, failingCheck("r"), WithThresholds(1, 1))
	h.AddReadinessCheck("postgres", time.Second, failingCheck("p"), WithThresholds(1, 1))
	h.SetReady(true)
	for _, c := range h.readiness {
		c.run(context.Background())
	}

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, `{"status":"unhealthy","checks":{"postgres":"p","redis":"r"}}`, w.Body.String())
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	ok := PingCheck(pingerFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok(context.Background()))

	down := PingCheck(pingerFunc(func(context.Context) error { return errors.New("refused") }))
	assert.ErrorContains(t, down(context.Background()), "refused")
}

func TestRedisCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	check := RedisCheck(rdb)
	assert.NoError(t, check(context.Background()))

	mr.Close()
	assert.Error(t, check(context.Background()))
}
