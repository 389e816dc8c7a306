// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "murmur_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// VectorIndexLatency records vector index call latency by operation.
	VectorIndexLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "murmur_vector_index_latency_seconds",
		Help:    "Vector index call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// VectorIndexErrors counts failed vector index calls.
	VectorIndexErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_vector_index_errors_total",
		Help: "Total number of failed vector index calls",
	}, []string{"operation"})

	// FeedCompositionLatency records how long a feed page takes to compose.
	FeedCompositionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "murmur_feed_composition_seconds",
		Help:    "Feed page composition latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"user_state"})

	// FeedSourceSize observes how many ids each source contributed to a page.
	FeedSourceSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "murmur_feed_source_size",
		Help:    "Number of post ids contributed to a feed page per source",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	}, []string{"source"})

	// ActionsRecorded counts recorded post actions by kind and outcome.
	ActionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_post_actions_total",
		Help: "Total number of post actions by kind and outcome",
	}, []string{"action", "outcome"})

	// PopularityRuns counts popularity recomputation ticks by result.
	PopularityRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_popularity_runs_total",
		Help: "Total number of popularity recomputation runs",
	}, []string{"result"})

	// PopularityRunDuration records the duration of a popularity recomputation.
	PopularityRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "murmur_popularity_run_seconds",
		Help:    "Popularity recomputation duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// PopularityPostsUpdated counts posts whose rate was rebuilt.
	PopularityPostsUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "murmur_popularity_posts_updated_total",
		Help: "Total number of posts whose popularity rate was rebuilt",
	})

	// WebSocketRoomConnections is the gauge of connections per room.
	WebSocketRoomConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "murmur_websocket_room_connections",
		Help: "Number of WebSocket connections per room",
	}, []string{"room_id"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "murmur_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// MessageThroughput counts chat frames processed per action.
	MessageThroughput = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_message_throughput_total",
		Help: "Total number of chat frames processed",
	}, []string{"action"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// TrackIndex returns a function that records vector index latency and failures.
func TrackIndex(operation string) func(err error) {
	start := time.Now()
	return func(err error) {
		VectorIndexLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		if err != nil {
			VectorIndexErrors.WithLabelValues(operation).Inc()
		}
	}
}
