// Package telemetry holds the Prometheus metrics for RPC handling and the
// client query cache.
package telemetry

import (
	"context"
	"errors"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lifeboard"

// RPCMetrics counts and times Connect calls.
type RPCMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRPCMetrics registers the RPC metrics on reg.
func NewRPCMetrics(reg prometheus.Registerer) *RPCMetrics {
	factory := promauto.With(reg)
	return &RPCMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Connect RPCs handled, by procedure and code.",
		}, []string{"procedure", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "Connect RPC handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
	}
}

// Interceptor records every unary call.
func (m *RPCMetrics) Interceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				code = connect.CodeUnknown.String()
				var cerr *connect.Error
				if errors.As(err, &cerr) {
					code = cerr.Code().String()
				}
			}
			m.requests.WithLabelValues(procedure, code).Inc()
			m.duration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}

// CacheMetrics counts query cache activity per resource kind. A nil
// *CacheMetrics is valid and records nothing.
type CacheMetrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewCacheMetrics registers the cache metrics on reg.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	factory := promauto.With(reg)
	counter := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query_cache",
			Name:      name,
			Help:      help,
		}, []string{"kind"})
	}
	return &CacheMetrics{
		hits:          counter("hits_total", "Reads served from a fresh cache entry."),
		misses:        counter("misses_total", "Reads that went to the backend."),
		invalidations: counter("invalidations_total", "Kinds marked stale after a mutation."),
	}
}

func (m *CacheMetrics) Hit(kind string) {
	if m != nil {
		m.hits.WithLabelValues(kind).Inc()
	}
}

func (m *CacheMetrics) Miss(kind string) {
	if m != nil {
		m.misses.WithLabelValues(kind).Inc()
	}
}

func (m *CacheMetrics) Invalidated(kind string) {
	if m != nil {
		m.invalidations.WithLabelValues(kind).Inc()
	}
}
