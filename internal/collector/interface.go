package collector

import (
	"context"
	"time"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/controller"
	"github.com/google/uuid"
)

// Collector owns one polling task per active run. At most one session per
// run id exists at any time; a second Start is rejected, never a silent
// replace.
type Collector interface {
	// Start begins polling the adapter on the given interval and
	// persisting each successful sample. A non-positive interval uses
	// the configured default.
	Start(runID uuid.UUID, station *bench.Station, outlet *bench.Outlet, adapter controller.Adapter, interval time.Duration) error

	// Stop cancels the run's polling task and returns the number of
	// readings collected in this session. Idempotent: 0 when nothing
	// was active.
	Stop(runID uuid.UUID) int

	// StopAll drains every session for process shutdown.
	StopAll()

	IsCollecting(runID uuid.UUID) bool
	ActiveCount() int

	// Latest returns the most recent persisted reading, nil when the
	// run has none yet.
	Latest(ctx context.Context, runID uuid.UUID) (*bench.Reading, error)

	// History returns readings most-recent-first; non-positive limit
	// returns everything.
	History(ctx context.Context, runID uuid.UUID, limit int) ([]bench.Reading, error)

	// Record persists a reading from a manual or external source that
	// cannot be polled.
	Record(ctx context.Context, runID uuid.UUID, sample bench.Sample) error
}

// ReadingStore is the slice of persistence the collector needs.
type ReadingStore interface {
	InsertReading(ctx context.Context, reading *bench.Reading) error
	LatestReading(ctx context.Context, runID uuid.UUID) (*bench.Reading, error)
	ListReadings(ctx context.Context, runID uuid.UUID, limit int) ([]bench.Reading, error)
}

const (
	defaultPollInterval = time.Second
	defaultReadTimeout  = 3 * time.Second
)

type Config struct {
	// PollInterval is the default tick interval when Start receives a
	// non-positive one.
	PollInterval time.Duration

	// ReadTimeout bounds each adapter read so a hung controller cannot
	// stall the session.
	ReadTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: defaultPollInterval,
		ReadTimeout:  defaultReadTimeout,
	}
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return defaultPollInterval
	}
	return c.PollInterval
}

func (c Config) readTimeout() time.Duration {
	if c.ReadTimeout <= 0 {
		return defaultReadTimeout
	}
	return c.ReadTimeout
}
