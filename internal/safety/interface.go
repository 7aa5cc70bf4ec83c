package safety

import (
	"context"
	"time"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/controller"
	"github.com/google/uuid"
)

// Monitor owns two periodic checks per active run: a fast reading check
// that evaluates spike and overcurrent thresholds against the latest
// persisted reading, and a slow controller health check. A violation
// orchestrates emergency shutdown. At most one registration per run id.
type Monitor interface {
	// StartMonitoring registers the run's checks. No-op when the run is
	// already monitored.
	StartMonitoring(runID uuid.UUID, station *bench.Station, outlet *bench.Outlet, profile *bench.Profile, adapter controller.Adapter)

	// StopMonitoring cancels both checks and deregisters. Idempotent.
	StopMonitoring(runID uuid.UUID)

	// StopAll drains every registration for process shutdown.
	StopAll()

	IsMonitored(runID uuid.UUID) bool
}

// ReadingSource is where the monitor reads the collector's persisted
// samples from. The monitor never polls the controller for readings
// itself.
type ReadingSource interface {
	LatestReading(ctx context.Context, runID uuid.UUID) (*bench.Reading, error)
}

// RunStore is the slice of run bookkeeping the shutdown path needs.
type RunStore interface {
	AddAnomaly(ctx context.Context, runID uuid.UUID, anomaly bench.Anomaly) error
	UpdateRunStatus(ctx context.Context, runID uuid.UUID, status bench.RunStatus) (bool, error)
}

// CollectorControl stops a run's readings collection during shutdown.
type CollectorControl interface {
	Stop(runID uuid.UUID) int
}

const (
	defaultReadingCheckInterval = 250 * time.Millisecond
	defaultHealthCheckInterval  = 30 * time.Second
	defaultSpikeHold            = 250 * time.Millisecond
	defaultReadTimeout          = 3 * time.Second
)

type Config struct {
	// ReadingCheckInterval is the cadence of threshold evaluation.
	ReadingCheckInterval time.Duration

	// HealthCheckInterval is the cadence of controller health checks.
	HealthCheckInterval time.Duration

	// SpikeHold is how long watts must stay at or above the spike
	// threshold, without dropping below it, before shutdown fires.
	SpikeHold time.Duration

	// ReadTimeout bounds store and controller calls inside a tick.
	ReadTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReadingCheckInterval: defaultReadingCheckInterval,
		HealthCheckInterval:  defaultHealthCheckInterval,
		SpikeHold:            defaultSpikeHold,
		ReadTimeout:          defaultReadTimeout,
	}
}

func (c Config) readingCheckInterval() time.Duration {
	if c.ReadingCheckInterval <= 0 {
		return defaultReadingCheckInterval
	}
	return c.ReadingCheckInterval
}

func (c Config) healthCheckInterval() time.Duration {
	if c.HealthCheckInterval <= 0 {
		return defaultHealthCheckInterval
	}
	return c.HealthCheckInterval
}

func (c Config) spikeHold() time.Duration {
	if c.SpikeHold <= 0 {
		return defaultSpikeHold
	}
	return c.SpikeHold
}

func (c Config) readTimeout() time.Duration {
	if c.ReadTimeout <= 0 {
		return defaultReadTimeout
	}
	return c.ReadTimeout
}
