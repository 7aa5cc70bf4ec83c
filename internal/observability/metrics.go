package observability

import (
	"net/http"
	"time"

	"github.com/Quicklotz/benchd/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's Prometheus instruments on a private registry
// so multiple instances (tests included) never collide.
type Metrics struct {
	registry *prometheus.Registry

	ReadingsCollected  prometheus.Counter
	ReadErrors         prometheus.Counter
	EmergencyShutdowns *prometheus.CounterVec
	ActiveRuns         prometheus.Gauge
	ActiveMonitors     prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	readings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "benchd_readings_collected_total",
		Help: "Readings persisted by the collector.",
	})
	readErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "benchd_read_errors_total",
		Help: "Controller reads that failed and were skipped.",
	})
	shutdowns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "benchd_emergency_shutdowns_total",
		Help: "Emergency shutdowns triggered, by anomaly type.",
	}, []string{"type"})
	activeRuns := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "benchd_active_collections",
		Help: "Runs with an active readings collection.",
	})
	activeMonitors := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "benchd_active_monitors",
		Help: "Runs with an active safety monitor registration.",
	})

	registry.MustRegister(readings, readErrors, shutdowns, activeRuns, activeMonitors)

	return &Metrics{
		registry:           registry,
		ReadingsCollected:  readings,
		ReadErrors:         readErrors,
		EmergencyShutdowns: shutdowns,
		ActiveRuns:         activeRuns,
		ActiveMonitors:     activeMonitors,
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts the metrics listener. The returned server is shut down by
// the caller during drain.
func (m *Metrics) Serve(addr string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics listener failed")
		}
	}()

	log.Info().Msgf("Metrics listening on %s", addr)

	return server
}
