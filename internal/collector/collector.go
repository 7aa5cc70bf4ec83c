package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/controller"
	"github.com/Quicklotz/benchd/internal/errors"
	"github.com/Quicklotz/benchd/internal/logger"
	"github.com/Quicklotz/benchd/internal/observability"
	"github.com/google/uuid"
)

type service struct {
	cfg     Config
	store   ReadingStore
	metrics *observability.Metrics
	logger  logger.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

type session struct {
	cancel context.CancelFunc
	done   chan struct{}
	count  atomic.Int64
}

func NewService(cfg Config, store ReadingStore, metrics *observability.Metrics, log logger.Logger) Collector {
	return &service{
		cfg:      cfg,
		store:    store,
		metrics:  metrics,
		logger:   log,
		sessions: make(map[uuid.UUID]*session),
	}
}

func (s *service) Start(runID uuid.UUID, station *bench.Station, outlet *bench.Outlet, adapter controller.Adapter, interval time.Duration) error {
	errFactory := errors.New()

	if interval <= 0 {
		interval = s.cfg.pollInterval()
	}

	s.mu.Lock()
	if _, exists := s.sessions[runID]; exists {
		s.mu.Unlock()
		// The original session keeps running.
		return errFactory.WithData(ErrAlreadyCollecting, runID.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.sessions[runID] = sess
	s.mu.Unlock()

	s.metrics.ActiveRuns.Inc()
	s.logger.Info().
		Str("run_id", runID.String()).
		Str("station", station.Name).
		Int("channel", outlet.Channel).
		Dur("interval", interval).
		Msg("Readings collection started")

	go s.poll(ctx, sess, runID, station, outlet, adapter, interval)

	return nil
}

// poll drives the run's tick loop. A tick whose read is still in flight
// when the next tick fires is skipped, not queued: the read happens inline
// and the ticker drops missed ticks.
func (s *service) poll(ctx context.Context, sess *session, runID uuid.UUID, station *bench.Station, outlet *bench.Outlet, adapter controller.Adapter, interval time.Duration) {
	defer close(sess.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.collectOnce(ctx, sess, runID, station, outlet, adapter)
		}
	}
}

func (s *service) collectOnce(ctx context.Context, sess *session, runID uuid.UUID, station *bench.Station, outlet *bench.Outlet, adapter controller.Adapter) {
	readCtx, cancel := context.WithTimeout(ctx, s.cfg.readTimeout())
	sample, err := adapter.ReadInstant(readCtx, station, outlet)
	cancel()
	if err != nil {
		// A single bad tick never stops collection; the next scheduled
		// tick is the retry.
		s.metrics.ReadErrors.Inc()
		s.logger.Debug().
			Err(err).
			Str("run_id", runID.String()).
			Msg("Reading poll failed; will retry on next tick")
		return
	}

	// A stop may have raced with the read; a stopped run's sample is
	// discarded, never persisted.
	if ctx.Err() != nil {
		return
	}

	reading := &bench.Reading{
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Sample:    sample,
	}
	if err := s.store.InsertReading(ctx, reading); err != nil {
		s.logger.Error().
			Err(err).
			Str("run_id", runID.String()).
			Msg("Failed to persist reading")
		return
	}

	sess.count.Add(1)
	s.metrics.ReadingsCollected.Inc()
}

func (s *service) Stop(runID uuid.UUID) int {
	s.mu.Lock()
	sess, ok := s.sessions[runID]
	if !ok {
		s.mu.Unlock()
		return 0
	}
	delete(s.sessions, runID)
	s.mu.Unlock()

	sess.cancel()
	s.metrics.ActiveRuns.Dec()

	collected := int(sess.count.Load())
	s.logger.Info().
		Str("run_id", runID.String()).
		Int("collected", collected).
		Msg("Readings collection stopped")

	return collected
}

func (s *service) StopAll() {
	s.mu.Lock()
	sessions := make(map[uuid.UUID]*session, len(s.sessions))
	for id, sess := range s.sessions {
		sessions[id] = sess
	}
	s.sessions = make(map[uuid.UUID]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.cancel()
		s.metrics.ActiveRuns.Dec()
	}
	for _, sess := range sessions {
		<-sess.done
	}

	if len(sessions) > 0 {
		s.logger.Info().Int("sessions", len(sessions)).Msg("All readings collections stopped")
	}
}

func (s *service) IsCollecting(runID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[runID]

	return ok
}

func (s *service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

func (s *service) Latest(ctx context.Context, runID uuid.UUID) (*bench.Reading, error) {
	return s.store.LatestReading(ctx, runID)
}

func (s *service) History(ctx context.Context, runID uuid.UUID, limit int) ([]bench.Reading, error) {
	return s.store.ListReadings(ctx, runID, limit)
}

func (s *service) Record(ctx context.Context, runID uuid.UUID, sample bench.Sample) error {
	errFactory := errors.New()

	reading := &bench.Reading{
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Sample:    sample,
	}
	if err := s.store.InsertReading(ctx, reading); err != nil {
		return errFactory.Wrap(ErrPersistFailed, err)
	}

	s.metrics.ReadingsCollected.Inc()

	return nil
}
