package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedServer(t *testing.T, maxReqs int) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimit(ctx, RateLimitConfig{Max: maxReqs, Window: time.Minute}),
	)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func TestRateLimit_AllowsWithinBudget(t *testing.T) {
	ts := newLimitedServer(t, 3)

	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestRateLimit_RejectsOverBudget(t *testing.T) {
	ts := newLimitedServer(t, 2)

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
}

func TestRateLimit_Headers(t *testing.T) {
	ts := newLimitedServer(t, 5)

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "5", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", resp.Header.Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))
}

func TestRateLimit_SeparateClients(t *testing.T) {
	l := &limiter{
		cfg:     RateLimitConfig{Max: 1, Window: time.Minute},
		clients: make(map[string]*window),
	}

	now := time.Now()
	_, _, ok := l.take("1.1.1.1", now)
	assert.True(t, ok)
	_, _, ok = l.take("1.1.1.1", now)
	assert.False(t, ok)

	// A different client has its own budget.
	_, _, ok = l.take("2.2.2.2", now)
	assert.True(t, ok)
}

func TestLimiter_Evict(t *testing.T) {
	l := &limiter{
		cfg:     RateLimitConfig{Max: 1, Window: time.Second},
		clients: make(map[string]*window),
	}

	now := time.Now()
	l.take("1.1.1.1", now)
	require.Len(t, l.clients, 1)

	l.evict(now.Add(3 * time.Second))
	assert.Empty(t, l.clients)
}
