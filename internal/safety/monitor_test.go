package safety_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/logger"
	"github.com/Quicklotz/benchd/internal/observability"
	"github.com/Quicklotz/benchd/internal/safety"
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

type fakeAdapter struct {
	mu            sync.Mutex
	turnOffCalls  int
	healthOK      bool
	healthDetails string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{healthOK: true}
}

func (f *fakeAdapter) TurnOn(_ context.Context, _ *bench.Station, _ *bench.Outlet) error {
	return nil
}

func (f *fakeAdapter) TurnOff(_ context.Context, _ *bench.Station, _ *bench.Outlet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turnOffCalls++
}

func (f *fakeAdapter) ReadInstant(_ context.Context, _ *bench.Station, _ *bench.Outlet) (bench.Sample, error) {
	return bench.Sample{}, nil
}

func (f *fakeAdapter) HealthCheck(_ context.Context, _ *bench.Station) bench.Health {
	f.mu.Lock()
	defer f.mu.Unlock()
	return bench.Health{OK: f.healthOK, Details: f.healthDetails}
}

func (f *fakeAdapter) offCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.turnOffCalls
}

func (f *fakeAdapter) setHealth(ok bool, details string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthOK = ok
	f.healthDetails = details
}

type fakeReadings struct {
	mu      sync.Mutex
	reading *bench.Reading
}

func (f *fakeReadings) set(watts, amps *float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reading = &bench.Reading{
		Timestamp: time.Now().UTC(),
		Sample:    bench.Sample{Watts: watts, Amps: amps},
	}
}

func (f *fakeReadings) LatestReading(_ context.Context, _ uuid.UUID) (*bench.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reading == nil {
		return nil, nil
	}
	r := *f.reading
	return &r, nil
}

type fakeRunStore struct {
	mu        sync.Mutex
	anomalies []bench.Anomaly
	statuses  []bench.RunStatus
}

func (f *fakeRunStore) AddAnomaly(_ context.Context, _ uuid.UUID, anomaly bench.Anomaly) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anomalies = append(f.anomalies, anomaly)
	return nil
}

func (f *fakeRunStore) UpdateRunStatus(_ context.Context, _ uuid.UUID, status bench.RunStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return true, nil
}

func (f *fakeRunStore) recordedAnomalies() []bench.Anomaly {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bench.Anomaly, len(f.anomalies))
	copy(out, f.anomalies)
	return out
}

func (f *fakeRunStore) recordedStatuses() []bench.RunStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bench.RunStatus, len(f.statuses))
	copy(out, f.statuses)
	return out
}

type fakeCollectorControl struct {
	mu      sync.Mutex
	stopped []uuid.UUID
}

func (f *fakeCollectorControl) Stop(runID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, runID)
	return 0
}

func (f *fakeCollectorControl) stoppedRuns() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uuid.UUID, len(f.stopped))
	copy(out, f.stopped)
	return out
}

type monitorFixture struct {
	monitor   safety.Monitor
	readings  *fakeReadings
	runs      *fakeRunStore
	collector *fakeCollectorControl
	adapter   *fakeAdapter
	metrics   *observability.Metrics

	runID   uuid.UUID
	station *bench.Station
	outlet  *bench.Outlet
	profile *bench.Profile
}

func newMonitorFixture(t *testing.T, cfg safety.Config) *monitorFixture {
	t.Helper()

	f := &monitorFixture{
		readings:  &fakeReadings{},
		runs:      &fakeRunStore{},
		collector: &fakeCollectorControl{},
		adapter:   newFakeAdapter(),
		metrics:   observability.New(),
		runID:     uuid.New(),
	}
	f.monitor = safety.NewService(cfg, f.readings, f.runs, f.collector, f.metrics, logger.Default())

	stationID := uuid.New()
	f.station = &bench.Station{
		ID:             stationID,
		Name:           "bench-a",
		Controller:     bench.ControllerRelayMeter,
		Address:        "http://relay.local",
		GFCIPresent:    true,
		AcknowledgedBy: "operator",
	}
	f.outlet = &bench.Outlet{
		ID:            uuid.New(),
		StationID:     stationID,
		Channel:       1,
		Enabled:       true,
		SupportsOnOff: true,
		MaxAmps:       15,
	}
	f.profile = &bench.Profile{
		ID:                 uuid.New(),
		Category:           "microwaves",
		SpikeShutdownWatts: 2000,
	}

	t.Cleanup(f.monitor.StopAll)

	return f
}

func (f *monitorFixture) start() {
	f.monitor.StartMonitoring(f.runID, f.station, f.outlet, f.profile, f.adapter)
}

func TestSustainedSpikeShutsDownExactlyOnce(t *testing.T) {
	f := newMonitorFixture(t, safety.Config{
		ReadingCheckInterval: 10 * time.Millisecond,
		HealthCheckInterval:  time.Hour,
		SpikeHold:            60 * time.Millisecond,
	})

	f.readings.set(bench.Float64Ptr(2100), nil)
	f.start()

	require.Eventually(t, func() bool {
		return f.adapter.offCalls() == 1
	}, 2*time.Second, 5*time.Millisecond, "sustained spike should trigger shutdown")

	// Checks keep ticking against the same hot reading for a while; the
	// shutdown must not repeat.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, f.adapter.offCalls())

	anomalies := f.runs.recordedAnomalies()
	require.Len(t, anomalies, 1)
	assert.Equal(t, bench.AnomalySpike, anomalies[0].Type)
	assert.InDelta(t, 2100, anomalies[0].Observed, 0.01)
	assert.InDelta(t, 2000, anomalies[0].Threshold, 0.01)

	assert.Equal(t, []bench.RunStatus{bench.StatusAborted}, f.runs.recordedStatuses())
	assert.Equal(t, []uuid.UUID{f.runID}, f.collector.stoppedRuns())
	assert.False(t, f.monitor.IsMonitored(f.runID))
}

func TestSpikeDroppingBelowThresholdResetsTheWindow(t *testing.T) {
	f := newMonitorFixture(t, safety.Config{
		ReadingCheckInterval: 10 * time.Millisecond,
		HealthCheckInterval:  time.Hour,
		SpikeHold:            time.Second,
	})

	f.readings.set(bench.Float64Ptr(2100), nil)
	f.start()

	// Hot for a fraction of the hold, then back below threshold.
	time.Sleep(50 * time.Millisecond)
	f.readings.set(bench.Float64Ptr(900), nil)
	time.Sleep(250 * time.Millisecond)

	assert.Zero(t, f.adapter.offCalls())
	assert.Empty(t, f.runs.recordedAnomalies())
	assert.True(t, f.monitor.IsMonitored(f.runID))
}

func TestOvercurrentShutsDownWithoutDebounce(t *testing.T) {
	f := newMonitorFixture(t, safety.Config{
		ReadingCheckInterval: 10 * time.Millisecond,
		HealthCheckInterval:  time.Hour,
		SpikeHold:            time.Hour,
	})

	f.readings.set(bench.Float64Ptr(1800), bench.Float64Ptr(16))
	f.start()

	require.Eventually(t, func() bool {
		return f.adapter.offCalls() == 1
	}, 2*time.Second, 5*time.Millisecond, "overcurrent should trip on the first check")

	anomalies := f.runs.recordedAnomalies()
	require.Len(t, anomalies, 1)
	assert.Equal(t, bench.AnomalyOvercurrent, anomalies[0].Type)
	assert.InDelta(t, 16, anomalies[0].Observed, 0.01)
	assert.InDelta(t, 15, anomalies[0].Threshold, 0.01)
	assert.Equal(t, []bench.RunStatus{bench.StatusAborted}, f.runs.recordedStatuses())
}

func TestAmpsAtTheLimitDoNotTrip(t *testing.T) {
	f := newMonitorFixture(t, safety.Config{
		ReadingCheckInterval: 10 * time.Millisecond,
		HealthCheckInterval:  time.Hour,
		SpikeHold:            time.Hour,
	})

	f.readings.set(bench.Float64Ptr(1800), bench.Float64Ptr(15))
	f.start()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, f.adapter.offCalls())
	assert.Empty(t, f.runs.recordedAnomalies())
}

func TestHealthCheckFailureShutsDown(t *testing.T) {
	f := newMonitorFixture(t, safety.Config{
		ReadingCheckInterval: time.Hour,
		HealthCheckInterval:  10 * time.Millisecond,
		SpikeHold:            time.Hour,
	})

	f.adapter.setHealth(false, "relay unreachable")
	f.start()

	require.Eventually(t, func() bool {
		return f.adapter.offCalls() == 1
	}, 2*time.Second, 5*time.Millisecond, "failed health check should trigger shutdown")

	anomalies := f.runs.recordedAnomalies()
	require.Len(t, anomalies, 1)
	assert.Equal(t, bench.AnomalyHealthFail, anomalies[0].Type)
	assert.Contains(t, anomalies[0].Message, "relay unreachable")
	assert.False(t, f.monitor.IsMonitored(f.runID))
}

func TestNoReadingsMeansNoShutdown(t *testing.T) {
	f := newMonitorFixture(t, safety.Config{
		ReadingCheckInterval: 10 * time.Millisecond,
		HealthCheckInterval:  time.Hour,
		SpikeHold:            20 * time.Millisecond,
	})

	f.start()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, f.adapter.offCalls())
	assert.True(t, f.monitor.IsMonitored(f.runID))
}

func TestStartMonitoringIsNoOpWhenAlreadyRegistered(t *testing.T) {
	f := newMonitorFixture(t, safety.Config{
		ReadingCheckInterval: 10 * time.Millisecond,
		HealthCheckInterval:  time.Hour,
		SpikeHold:            time.Hour,
	})

	f.start()
	f.start()

	assert.True(t, f.monitor.IsMonitored(f.runID))
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ActiveMonitors), 0.01)

	f.monitor.StopMonitoring(f.runID)
	assert.False(t, f.monitor.IsMonitored(f.runID))
	assert.InDelta(t, 0, testutil.ToFloat64(f.metrics.ActiveMonitors), 0.01)
}

func TestStopMonitoringIsIdempotent(t *testing.T) {
	f := newMonitorFixture(t, safety.Config{
		ReadingCheckInterval: 10 * time.Millisecond,
		HealthCheckInterval:  time.Hour,
	})

	f.monitor.StopMonitoring(uuid.New())

	f.start()
	f.monitor.StopMonitoring(f.runID)
	f.monitor.StopMonitoring(f.runID)

	assert.False(t, f.monitor.IsMonitored(f.runID))
	assert.InDelta(t, 0, testutil.ToFloat64(f.metrics.ActiveMonitors), 0.01)
}

func TestStopAllDrainsEveryRegistration(t *testing.T) {
	f := newMonitorFixture(t, safety.Config{
		ReadingCheckInterval: 10 * time.Millisecond,
		HealthCheckInterval:  time.Hour,
		SpikeHold:            time.Hour,
	})

	secondRun := uuid.New()
	f.start()
	f.monitor.StartMonitoring(secondRun, f.station, f.outlet, f.profile, f.adapter)

	f.monitor.StopAll()

	assert.False(t, f.monitor.IsMonitored(f.runID))
	assert.False(t, f.monitor.IsMonitored(secondRun))
	assert.InDelta(t, 0, testutil.ToFloat64(f.metrics.ActiveMonitors), 0.01)
}

func TestShutdownDoesNotFireAfterStop(t *testing.T) {
	f := newMonitorFixture(t, safety.Config{
		ReadingCheckInterval: 10 * time.Millisecond,
		HealthCheckInterval:  time.Hour,
		SpikeHold:            30 * time.Millisecond,
	})

	f.readings.set(bench.Float64Ptr(2100), nil)
	f.start()
	f.monitor.StopMonitoring(f.runID)

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, f.adapter.offCalls())
	assert.Empty(t, f.runs.recordedAnomalies())
	assert.Empty(t, f.runs.recordedStatuses())
}
