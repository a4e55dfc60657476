package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	t.Parallel()
	m := New()

	m.SetTemplatesObserved(7)
	m.SetProviderUp("rhv43", true)
	m.SetProviderUp("hetzner", false)
	m.ObserveCollect("rhv43", 1500*time.Millisecond)
	m.AddTrackerOperations("add", ResultSuccess, 3)
	m.AddTrackerOperations("add", ResultSuccess, 2)
	m.AddTrackerOperations("add", ResultFailure, 0)
	m.MarkRun(time.Unix(1700000000, 0))

	assert.Equal(t, float64(7), testutil.ToFloat64(m.templatesObserved))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.providerUp.WithLabelValues("rhv43")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.providerUp.WithLabelValues("hetzner")))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.trackerOperations.WithLabelValues("add", ResultSuccess)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.trackerOperations), "zero counts are not recorded")
	assert.Equal(t, float64(1700000000), testutil.ToFloat64(m.lastRun))
	assert.Equal(t, 1, testutil.CollectAndCount(m.collectDuration))
}

func TestMetrics_Push(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	m := New()
	m.SetTemplatesObserved(1)
	require.NoError(t, m.Push(context.Background(), server.URL, ""))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/tracksync", path)
	assert.NotEmpty(t, body)
}

func TestMetrics_PushError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	err := New().Push(context.Background(), server.URL, "job")
	assert.Error(t, err)
}
