package collector_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/collector"
	"github.com/Quicklotz/benchd/internal/errors"
	"github.com/Quicklotz/benchd/internal/logger"
	"github.com/Quicklotz/benchd/internal/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	logger.SetLogLevel(logger.ErrorLevel)
	os.Exit(m.Run())
}

type memoryStore struct {
	mu       sync.Mutex
	readings []bench.Reading
}

func (s *memoryStore) InsertReading(ctx context.Context, reading *bench.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r := *reading
	r.ID = int64(len(s.readings) + 1)
	s.readings = append(s.readings, r)
	return nil
}

func (s *memoryStore) LatestReading(_ context.Context, runID uuid.UUID) (*bench.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.readings) - 1; i >= 0; i-- {
		if s.readings[i].RunID == runID {
			r := s.readings[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) ListReadings(_ context.Context, runID uuid.UUID, limit int) ([]bench.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []bench.Reading
	for i := len(s.readings) - 1; i >= 0; i-- {
		if s.readings[i].RunID != runID {
			continue
		}
		out = append(out, s.readings[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings)
}

type stubAdapter struct {
	mu    sync.Mutex
	reads int
	fail  bool
}

func (a *stubAdapter) TurnOn(_ context.Context, _ *bench.Station, _ *bench.Outlet) error {
	return nil
}

func (a *stubAdapter) TurnOff(_ context.Context, _ *bench.Station, _ *bench.Outlet) {}

func (a *stubAdapter) ReadInstant(_ context.Context, _ *bench.Station, _ *bench.Outlet) (bench.Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reads++
	if a.fail {
		return bench.Sample{}, errors.New().New(errors.ErrOperationFailed)
	}
	return bench.Sample{
		Watts: bench.Float64Ptr(1200),
		Volts: bench.Float64Ptr(120),
		Amps:  bench.Float64Ptr(10),
	}, nil
}

func (a *stubAdapter) HealthCheck(_ context.Context, _ *bench.Station) bench.Health {
	return bench.Health{OK: true}
}

func (a *stubAdapter) readCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reads
}

// gatedAdapter blocks each read until released so tests can hold a read
// in flight across a Stop.
type gatedAdapter struct {
	started chan struct{}
	release chan struct{}
}

func newGatedAdapter() *gatedAdapter {
	return &gatedAdapter{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (a *gatedAdapter) TurnOn(_ context.Context, _ *bench.Station, _ *bench.Outlet) error {
	return nil
}

func (a *gatedAdapter) TurnOff(_ context.Context, _ *bench.Station, _ *bench.Outlet) {}

func (a *gatedAdapter) ReadInstant(_ context.Context, _ *bench.Station, _ *bench.Outlet) (bench.Sample, error) {
	select {
	case a.started <- struct{}{}:
	default:
	}
	<-a.release
	return bench.Sample{Watts: bench.Float64Ptr(500)}, nil
}

func (a *gatedAdapter) HealthCheck(_ context.Context, _ *bench.Station) bench.Health {
	return bench.Health{OK: true}
}

type collectorFixture struct {
	collector collector.Collector
	store     *memoryStore
	metrics   *observability.Metrics
	station   *bench.Station
	outlet    *bench.Outlet
}

func newCollectorFixture(t *testing.T) *collectorFixture {
	t.Helper()

	f := &collectorFixture{
		store:   &memoryStore{},
		metrics: observability.New(),
	}
	f.collector = collector.NewService(collector.Config{
		PollInterval: 5 * time.Millisecond,
		ReadTimeout:  time.Second,
	}, f.store, f.metrics, logger.Default())

	stationID := uuid.New()
	f.station = &bench.Station{
		ID:         stationID,
		Name:       "bench-a",
		Controller: bench.ControllerRelayMeter,
		Address:    "http://relay.local",
	}
	f.outlet = &bench.Outlet{
		ID:        uuid.New(),
		StationID: stationID,
		Channel:   1,
		Enabled:   true,
	}

	t.Cleanup(f.collector.StopAll)

	return f
}

func TestStartCollectsAndStopReturnsCount(t *testing.T) {
	f := newCollectorFixture(t)
	runID := uuid.New()

	require.NoError(t, f.collector.Start(runID, f.station, f.outlet, &stubAdapter{}, 5*time.Millisecond))

	require.Eventually(t, func() bool {
		return f.store.count() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	collected := f.collector.Stop(runID)
	assert.GreaterOrEqual(t, collected, 3)
	assert.False(t, f.collector.IsCollecting(runID))

	// A second stop finds nothing.
	assert.Zero(t, f.collector.Stop(runID))

	// No stragglers after stop.
	settled := f.store.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, f.store.count())
}

func TestSecondStartForSameRunIsRejected(t *testing.T) {
	f := newCollectorFixture(t)
	runID := uuid.New()

	require.NoError(t, f.collector.Start(runID, f.station, f.outlet, &stubAdapter{}, 5*time.Millisecond))

	err := f.collector.Start(runID, f.station, f.outlet, &stubAdapter{}, 5*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, collector.ErrAlreadyCollecting))

	// The original session is untouched.
	assert.True(t, f.collector.IsCollecting(runID))
	assert.Equal(t, 1, f.collector.ActiveCount())
	require.Eventually(t, func() bool {
		return f.store.count() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestReadErrorsDoNotStopPolling(t *testing.T) {
	f := newCollectorFixture(t)
	runID := uuid.New()
	adapter := &stubAdapter{fail: true}

	require.NoError(t, f.collector.Start(runID, f.station, f.outlet, adapter, 5*time.Millisecond))

	require.Eventually(t, func() bool {
		return adapter.readCount() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, f.collector.IsCollecting(runID))
	assert.Zero(t, f.store.count())
	assert.GreaterOrEqual(t, testutil.ToFloat64(f.metrics.ReadErrors), 3.0)
}

func TestSampleCompletingAfterStopIsDiscarded(t *testing.T) {
	f := newCollectorFixture(t)
	runID := uuid.New()
	adapter := newGatedAdapter()

	require.NoError(t, f.collector.Start(runID, f.station, f.outlet, adapter, 5*time.Millisecond))

	<-adapter.started
	f.collector.Stop(runID)
	close(adapter.release)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, f.store.count())
}

func TestNonPositiveIntervalFallsBackToConfig(t *testing.T) {
	f := newCollectorFixture(t)
	runID := uuid.New()

	require.NoError(t, f.collector.Start(runID, f.station, f.outlet, &stubAdapter{}, 0))

	require.Eventually(t, func() bool {
		return f.store.count() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStopAllDrainsEverySession(t *testing.T) {
	f := newCollectorFixture(t)
	first := uuid.New()
	second := uuid.New()

	require.NoError(t, f.collector.Start(first, f.station, f.outlet, &stubAdapter{}, 5*time.Millisecond))
	require.NoError(t, f.collector.Start(second, f.station, f.outlet, &stubAdapter{}, 5*time.Millisecond))
	assert.Equal(t, 2, f.collector.ActiveCount())

	f.collector.StopAll()

	assert.Zero(t, f.collector.ActiveCount())
	assert.False(t, f.collector.IsCollecting(first))
	assert.False(t, f.collector.IsCollecting(second))
}

func TestRecordPersistsManualSample(t *testing.T) {
	f := newCollectorFixture(t)
	runID := uuid.New()

	sample := bench.Sample{
		Watts: bench.Float64Ptr(950),
		TempC: bench.Float64Ptr(41.5),
	}
	require.NoError(t, f.collector.Record(context.Background(), runID, sample))

	latest, err := f.collector.Latest(context.Background(), runID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.NotNil(t, latest.Watts)
	assert.InDelta(t, 950, *latest.Watts, 0.01)
	require.NotNil(t, latest.TempC)
	assert.InDelta(t, 41.5, *latest.TempC, 0.01)

	history, err := f.collector.History(context.Background(), runID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
