// Package metrics exposes Prometheus instrumentation for the control plane.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every counter/gauge/histogram the control plane publishes.
type Registry struct {
	logger *slog.Logger
	server *http.Server

	ConnectionsActive prometheus.Gauge
	FramesTotal       *prometheus.CounterVec
	RateLimitDrops    prometheus.Counter
	RateLimitCloses   prometheus.Counter

	UploadsTotal   *prometheus.CounterVec
	DownloadsTotal *prometheus.CounterVec
	ChunksRejected prometheus.Counter

	RoomsByStatus *prometheus.GaugeVec
	MatchesTotal  *prometheus.CounterVec
	HeartbeatLost prometheus.Counter

	DBQueriesTotal *prometheus.CounterVec
	DBErrors       *prometheus.CounterVec
}

// NewRegistry constructs and registers every metric under the given namespace.
func NewRegistry(namespace string, logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger,

		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "transport", Name: "connections_active",
			Help: "Number of currently open client connections.",
		}),
		FramesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "frames_total",
			Help: "Total frames processed by outcome.",
		}, []string{"outcome"}),
		RateLimitDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "rate_limit_drops_total",
			Help: "Frames dropped due to rate-limit cooldown.",
		}),
		RateLimitCloses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "rate_limit_closes_total",
			Help: "Connections closed for sustained rate-limit abuse.",
		}),

		UploadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "package_store", Name: "uploads_total",
			Help: "Completed upload sessions by outcome.",
		}, []string{"outcome"}),
		DownloadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "package_store", Name: "downloads_total",
			Help: "Completed download sessions by outcome.",
		}, []string{"outcome"}),
		ChunksRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "package_store", Name: "chunks_rejected_total",
			Help: "Chunks rejected for an out-of-order sequence number.",
		}),

		RoomsByStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "rooms", Name: "by_status",
			Help: "Current room count by lifecycle status.",
		}, []string{"status"}),
		MatchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "matches", Name: "total",
			Help: "Completed matches by terminal reason.",
		}, []string{"reason"}),
		HeartbeatLost: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "matches", Name: "heartbeat_lost_total",
			Help: "Matches terminated due to heartbeat loss.",
		}),

		DBQueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "database", Name: "queries_total",
			Help: "Database queries by store.",
		}, []string{"store"}),
		DBErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "database", Name: "errors_total",
			Help: "Database errors by store.",
		}, []string{"store"}),
	}
}

// Start runs the /metrics and /healthz HTTP endpoint until ctx is cancelled.
func (r *Registry) Start(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.server = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		<-ctx.Done()
		_ = r.server.Shutdown(context.Background())
	}()

	r.logger.Info("metrics server starting", "port", port)
	err := r.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
