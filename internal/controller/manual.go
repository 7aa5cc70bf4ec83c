package controller

import (
	"context"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/errors"
	"github.com/Quicklotz/benchd/internal/logger"
)

// manualAdapter is used when no automatable hardware is present. Every
// operation is a human-mediated stub with no network calls; pass/fail then
// rests entirely on the operator checklist.
type manualAdapter struct {
	logger logger.Logger
}

func newManualAdapter(log logger.Logger) Adapter {
	return &manualAdapter{logger: log}
}

func (a *manualAdapter) TurnOn(_ context.Context, station *bench.Station, outlet *bench.Outlet) error {
	a.logger.Info().
		Str("station", station.Name).
		Int("channel", outlet.Channel).
		Msg("Manual station: operator must energize the outlet")

	return nil
}

func (a *manualAdapter) TurnOff(_ context.Context, station *bench.Station, outlet *bench.Outlet) {
	a.logger.Info().
		Str("station", station.Name).
		Int("channel", outlet.Channel).
		Msg("Manual station: operator must de-energize the outlet")
}

func (a *manualAdapter) ReadInstant(_ context.Context, _ *bench.Station, _ *bench.Outlet) (bench.Sample, error) {
	// Manual stations have no telemetry to poll; readings arrive through
	// the collector's manual record path instead.
	return bench.Sample{}, errors.New().New(ErrManualRead)
}

func (a *manualAdapter) HealthCheck(_ context.Context, _ *bench.Station) bench.Health {
	return bench.Health{OK: true, Details: "manual controller"}
}
