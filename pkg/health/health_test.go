package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(context.Context) error { return nil }
}

func failingCheck(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, h *Health, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.Routes(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func drive(p *probe, n int) {
	for range n {
		p.run(context.Background())
	}
}

func TestLive_AllPassing(t *testing.T) {
	h := New()
	h.AddLivenessCheck("a", time.Second, passingCheck())
	h.AddLivenessCheck("b", time.Second, passingCheck())

	w := serve(t, h, "/livez")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLive_FailureThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, failingCheck("connection refused"))
	p := h.probes[0]

	drive(p, 2)
	assert.Equal(t, http.StatusOK, serve(t, h, "/livez").Code, "below threshold")

	drive(p, 1)
	w := serve(t, h, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"db":"connection refused"}}`, w.Body.String())
}

func TestReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())

	w := serve(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(t, h, "/readyz").Code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, h, "/readyz").Code)
	assert.False(t, h.IsReady())
}

func TestReady_OnlyReadinessChecksCount(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())
	h.AddReadinessCheck("cache", time.Second, failingCheck("cold"))
	h.AddLivenessCheck("goroutines", time.Second, failingCheck("leak"))
	h.SetReady(true)
	drive(h.probes[1], 3)
	drive(h.probes[2], 3)

	w := serve(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"cache":"cold"}}`, w.Body.String())
	assert.False(t, h.IsReady())
}

func TestCheckThresholds(t *testing.T) {
	failing := true
	h := New()
	h.Add(Check{
		Name: "flaky",
		Func: func(context.Context) error {
			if failing {
				return errors.New("down")
			}
			return nil
		},
		FailureThreshold: 1,
		SuccessThreshold: 2,
	})
	p := h.probes[0]
	assert.Equal(t, time.Second, p.Timeout, "default timeout")
	assert.Nil(t, p.err())

	drive(p, 1)
	assert.False(t, p.healthy.Load())
	assert.EqualError(t, p.err(), "down")

	failing = false
	drive(p, 1)
	assert.False(t, p.healthy.Load(), "one pass is below the success threshold")
	drive(p, 1)
	assert.True(t, p.healthy.Load())
}

func TestStartStop(t *testing.T) {
	h := New()
	var (
		mu    sync.Mutex
		calls int
	)
	h.AddLivenessCheck("count", time.Second, func(context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, time.Second, time.Millisecond)
	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, failingCheck("err"))
	h.AddReadinessCheck("ready", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Millisecond)
	defer h.Stop()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), nil)
				h.ReadyEndpoint(httptest.NewRecorder(), nil)
			}
		}()
	}
	wg.Wait()
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, PingCheck(pingerFunc(func(context.Context) error { return nil }))(ctx))
	err := PingCheck(pingerFunc(func(context.Context) error { return errors.New("refused") }))(ctx)
	assert.EqualError(t, err, "ping: refused")

	assert.NoError(t, GoroutineCountCheck(100000)(ctx))
	assert.ErrorContains(t, GoroutineCountCheck(0)(ctx), "exceeds threshold")

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))
}
