package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCacheMetrics(reg)

	m.Hit("wallets")
	m.Hit("wallets")
	m.Miss("wallets")
	m.Invalidated("transactions")

	expected := `
# HELP lifeboard_query_cache_hits_total Reads served from a fresh cache entry.
# TYPE lifeboard_query_cache_hits_total counter
lifeboard_query_cache_hits_total{kind="wallets"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "lifeboard_query_cache_hits_total"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.misses.WithLabelValues("wallets")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invalidations.WithLabelValues("transactions")))
}

func TestCacheMetrics_NilIsNoop(t *testing.T) {
	var m *CacheMetrics
	assert.NotPanics(t, func() {
		m.Hit("wallets")
		m.Miss("wallets")
		m.Invalidated("wallets")
	})
}

func TestRPCMetricsInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRPCMetrics(reg)
	interceptor := m.Interceptor()

	ok := interceptor(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, nil
	})
	denied := interceptor(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("no"))
	})

	req := connect.NewRequest(&struct{}{})
	_, _ = ok(context.Background(), req)
	_, _ = denied(context.Background(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("", "permission_denied")))
}
