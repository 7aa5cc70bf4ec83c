package runs

import (
	"context"
	"time"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/google/uuid"
)

// Manager owns run lifecycle: it validates safety preconditions, claims
// the outlet, energizes, and starts/stops the collector and safety
// monitor around the run.
type Manager interface {
	// Start begins a test run. It refuses to energize when safety
	// preconditions fail or the outlet is claimed by another
	// non-terminal run.
	Start(ctx context.Context, station *bench.Station, outlet *bench.Outlet, profile *bench.Profile) (*bench.TestRun, error)

	// Complete ends a run normally with the given result.
	Complete(ctx context.Context, runID uuid.UUID, result string) error

	// Fail ends a run as failed by the test plan.
	Fail(ctx context.Context, runID uuid.UUID, reason string) error

	// Cancel is the explicit operator stop: de-energize and abort.
	// Safe to call when an emergency shutdown already won the race.
	Cancel(ctx context.Context, runID uuid.UUID) error

	Get(ctx context.Context, runID uuid.UUID) (*bench.TestRun, error)

	// Shutdown drains everything this manager started.
	Shutdown()
}

// RunStore is the slice of persistence the manager needs.
type RunStore interface {
	CreateRun(ctx context.Context, run *bench.TestRun) error
	GetRun(ctx context.Context, runID uuid.UUID) (*bench.TestRun, error)
	UpdateRunStatus(ctx context.Context, runID uuid.UUID, status bench.RunStatus) (bool, error)
	SetRunResult(ctx context.Context, runID uuid.UUID, result string) error
	ActiveRunForOutlet(ctx context.Context, outletID uuid.UUID) (uuid.UUID, bool, error)
}

type Config struct {
	// PollInterval is handed to the collector for each run.
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
	}
}
