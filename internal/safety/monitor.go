package safety

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/controller"
	"github.com/Quicklotz/benchd/internal/logger"
	"github.com/Quicklotz/benchd/internal/observability"
	"github.com/google/uuid"
)

type service struct {
	cfg       Config
	readings  ReadingSource
	runs      RunStore
	collector CollectorControl
	metrics   *observability.Metrics
	logger    logger.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*monitorSession
}

type monitorSession struct {
	station *bench.Station
	outlet  *bench.Outlet
	profile *bench.Profile
	adapter controller.Adapter

	cancel context.CancelFunc
	done   chan struct{}

	// tripped guarantees exactly one emergency shutdown per run even
	// when the reading check and health check trip concurrently.
	tripped atomic.Bool

	// spikeSince marks when watts first crossed the spike threshold.
	// Zero when the condition is not currently holding. Touched only by
	// the reading-check loop.
	spikeSince time.Time
}

func NewService(cfg Config, readings ReadingSource, runs RunStore, col CollectorControl, metrics *observability.Metrics, log logger.Logger) Monitor {
	return &service{
		cfg:       cfg,
		readings:  readings,
		runs:      runs,
		collector: col,
		metrics:   metrics,
		logger:    log,
		sessions:  make(map[uuid.UUID]*monitorSession),
	}
}

func (s *service) StartMonitoring(runID uuid.UUID, station *bench.Station, outlet *bench.Outlet, profile *bench.Profile, adapter controller.Adapter) {
	s.mu.Lock()
	if _, exists := s.sessions[runID]; exists {
		s.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &monitorSession{
		station: station,
		outlet:  outlet,
		profile: profile,
		adapter: adapter,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.sessions[runID] = sess
	s.mu.Unlock()

	s.metrics.ActiveMonitors.Inc()
	s.logger.Info().
		Str("run_id", runID.String()).
		Str("station", station.Name).
		Float64("spike_shutdown_watts", profile.SpikeShutdownWatts).
		Float64("max_amps", outlet.MaxAmps).
		Msg("Safety monitoring started")

	go s.watch(ctx, sess, runID)
}

// watch runs the reading check and health check on independent cadences
// until the session is cancelled. Tick work happens inline, so a slow
// store or controller call coalesces later ticks instead of stacking
// concurrent evaluations for the same run.
func (s *service) watch(ctx context.Context, sess *monitorSession, runID uuid.UUID) {
	defer close(sess.done)

	readingTicker := time.NewTicker(s.cfg.readingCheckInterval())
	defer readingTicker.Stop()
	healthTicker := time.NewTicker(s.cfg.healthCheckInterval())
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readingTicker.C:
			s.checkReading(ctx, sess, runID)
		case <-healthTicker.C:
			s.checkHealth(ctx, sess, runID)
		}
	}
}

func (s *service) checkReading(ctx context.Context, sess *monitorSession, runID uuid.UUID) {
	readCtx, cancel := context.WithTimeout(ctx, s.cfg.readTimeout())
	reading, err := s.readings.LatestReading(readCtx, runID)
	cancel()
	if err != nil {
		// A failed fetch must never kill the check loop.
		s.logger.Debug().
			Err(err).
			Str("run_id", runID.String()).
			Msg("Reading check could not fetch latest reading")
		return
	}
	if reading == nil || ctx.Err() != nil {
		return
	}

	// Overcurrent trips immediately, no debounce window.
	if sess.outlet.MaxAmps > 0 && reading.Amps != nil && *reading.Amps > sess.outlet.MaxAmps {
		s.shutdown(ctx, sess, runID, bench.Anomaly{
			Type:      bench.AnomalyOvercurrent,
			Message:   fmt.Sprintf("overcurrent: %.2fA exceeds outlet limit %.2fA", *reading.Amps, sess.outlet.MaxAmps),
			Timestamp: time.Now().UTC(),
			Observed:  *reading.Amps,
			Threshold: sess.outlet.MaxAmps,
		})
		return
	}

	// Spike rule: the condition must hold continuously for the spike
	// hold; any check below threshold resets the timer entirely.
	threshold := sess.profile.SpikeShutdownWatts
	if threshold > 0 && reading.Watts != nil && *reading.Watts >= threshold {
		now := time.Now()
		if sess.spikeSince.IsZero() {
			sess.spikeSince = now
			return
		}
		if now.Sub(sess.spikeSince) >= s.cfg.spikeHold() {
			s.shutdown(ctx, sess, runID, bench.Anomaly{
				Type:      bench.AnomalySpike,
				Message:   fmt.Sprintf("sustained power spike: %.1fW at or above %.1fW for %s", *reading.Watts, threshold, s.cfg.spikeHold()),
				Timestamp: time.Now().UTC(),
				Observed:  *reading.Watts,
				Threshold: threshold,
			})
		}
		return
	}

	sess.spikeSince = time.Time{}
}

func (s *service) checkHealth(ctx context.Context, sess *monitorSession, runID uuid.UUID) {
	healthCtx, cancel := context.WithTimeout(ctx, s.cfg.readTimeout())
	health := sess.adapter.HealthCheck(healthCtx, sess.station)
	cancel()
	if health.OK || ctx.Err() != nil {
		return
	}

	s.shutdown(ctx, sess, runID, bench.Anomaly{
		Type:      bench.AnomalyHealthFail,
		Message:   fmt.Sprintf("controller health check failed: %s", health.Details),
		Timestamp: time.Now().UTC(),
		Observed:  0,
		Threshold: 0,
	})
}

// shutdown runs the emergency shutdown procedure in fixed order. Each
// step is best-effort so later steps still execute when an earlier one
// fails, but the routine exits up front when the run is no longer
// registered: it raced with a prior stop and must not act on it.
func (s *service) shutdown(_ context.Context, sess *monitorSession, runID uuid.UUID, anomaly bench.Anomaly) {
	s.mu.Lock()
	if _, registered := s.sessions[runID]; !registered {
		s.mu.Unlock()
		return
	}
	if !sess.tripped.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.logger.Warn().
		Str("run_id", runID.String()).
		Str("anomaly", string(anomaly.Type)).
		Str("message", anomaly.Message).
		Msg("Emergency shutdown triggered")

	// The session context is about to be cancelled in step 5; cleanup
	// gets its own deadline.
	cleanupCtx, cancel := context.WithTimeout(context.Background(), s.cfg.readTimeout())
	defer cancel()

	// 1. De-energize. TurnOff never fails by contract.
	sess.adapter.TurnOff(cleanupCtx, sess.station, sess.outlet)

	// 2. Stop the readings collection.
	s.collector.Stop(runID)

	// 3. Append the anomaly to the run's log.
	if err := s.runs.AddAnomaly(cleanupCtx, runID, anomaly); err != nil {
		s.logger.Error().
			Err(err).
			Str("run_id", runID.String()).
			Msg("Failed to persist anomaly during shutdown")
	}

	// 4. Mark the run aborted; a no-op when it already reached a
	// terminal state through another path.
	if _, err := s.runs.UpdateRunStatus(cleanupCtx, runID, bench.StatusAborted); err != nil {
		s.logger.Error().
			Err(err).
			Str("run_id", runID.String()).
			Msg("Failed to update run status during shutdown")
	}

	s.metrics.EmergencyShutdowns.WithLabelValues(string(anomaly.Type)).Inc()

	// 5. Cancel our own timers and deregister.
	s.StopMonitoring(runID)
}

func (s *service) StopMonitoring(runID uuid.UUID) {
	s.mu.Lock()
	sess, ok := s.sessions[runID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, runID)
	s.mu.Unlock()

	sess.cancel()
	s.metrics.ActiveMonitors.Dec()
	s.logger.Info().
		Str("run_id", runID.String()).
		Msg("Safety monitoring stopped")
}

func (s *service) StopAll() {
	s.mu.Lock()
	sessions := make(map[uuid.UUID]*monitorSession, len(s.sessions))
	for id, sess := range s.sessions {
		sessions[id] = sess
	}
	s.sessions = make(map[uuid.UUID]*monitorSession)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.cancel()
		s.metrics.ActiveMonitors.Dec()
	}
	for _, sess := range sessions {
		<-sess.done
	}

	if len(sessions) > 0 {
		s.logger.Info().Int("sessions", len(sessions)).Msg("All safety monitors stopped")
	}
}

func (s *service) IsMonitored(runID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[runID]

	return ok
}
