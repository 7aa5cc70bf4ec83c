package store

import (
	"context"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/google/uuid"
)

// Repository is the persistence boundary for runs, readings and
// anomalies. Readings are append-only and ordered by timestamp; anomalies
// are append-only per run; run status honors the terminal-state no-op.
type Repository interface {
	CreateRun(ctx context.Context, run *bench.TestRun) error
	GetRun(ctx context.Context, runID uuid.UUID) (*bench.TestRun, error)

	// UpdateRunStatus transitions a run's status. Returns false without
	// error when the run is already terminal: shutdown may race with
	// natural completion and the loser must be a no-op.
	UpdateRunStatus(ctx context.Context, runID uuid.UUID, status bench.RunStatus) (bool, error)

	// SetRunResult records the overall result of a finished run.
	SetRunResult(ctx context.Context, runID uuid.UUID, result string) error

	// ActiveRunForOutlet reports whether a non-terminal run already
	// claims the outlet.
	ActiveRunForOutlet(ctx context.Context, outletID uuid.UUID) (uuid.UUID, bool, error)

	InsertReading(ctx context.Context, reading *bench.Reading) error
	LatestReading(ctx context.Context, runID uuid.UUID) (*bench.Reading, error)

	// ListReadings returns readings most-recent-first. A non-positive
	// limit returns everything.
	ListReadings(ctx context.Context, runID uuid.UUID, limit int) ([]bench.Reading, error)

	AddAnomaly(ctx context.Context, runID uuid.UUID, anomaly bench.Anomaly) error
	ListAnomalies(ctx context.Context, runID uuid.UUID) ([]bench.Anomaly, error)

	Close() error
}
