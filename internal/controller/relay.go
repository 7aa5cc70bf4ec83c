package controller

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/errors"
	"github.com/Quicklotz/benchd/internal/logger"
)

// relayAdapter drives HTTP-addressable smart relays with per-channel
// metering. Real on/off, real readings.
type relayAdapter struct {
	client *http.Client
	logger logger.Logger
}

type relaySwitchResponse struct {
	IsOn bool `json:"ison"`
}

type relayMeterResponse struct {
	Power   float64 `json:"power"`
	Voltage float64 `json:"voltage"`
	Current float64 `json:"current"`
}

type relayStatusResponse struct {
	Uptime int64 `json:"uptime"`
}

func newRelayAdapter(cfg Config, log logger.Logger) Adapter {
	return &relayAdapter{
		client: cfg.httpClient(),
		logger: log,
	}
}

func (a *relayAdapter) TurnOn(ctx context.Context, station *bench.Station, outlet *bench.Outlet) error {
	errFactory := errors.New()

	url := fmt.Sprintf("%s/relay/%d?turn=on", station.Address, outlet.Channel)
	var state relaySwitchResponse
	if _, err := getJSON(ctx, a.client, url, &state); err != nil {
		return errFactory.Wrap(ErrTurnOnFailed, err)
	}

	a.logger.Info().
		Str("station", station.Name).
		Int("channel", outlet.Channel).
		Bool("ison", state.IsOn).
		Msg("Relay outlet energized")

	return nil
}

func (a *relayAdapter) TurnOff(ctx context.Context, station *bench.Station, outlet *bench.Outlet) {
	url := fmt.Sprintf("%s/relay/%d?turn=off", station.Address, outlet.Channel)
	if _, err := getJSON(ctx, a.client, url, nil); err != nil {
		// Shutdown cleanup must continue regardless.
		a.logger.Error().
			Err(err).
			Str("station", station.Name).
			Int("channel", outlet.Channel).
			Msg("Failed to turn off relay outlet")
		return
	}

	a.logger.Info().
		Str("station", station.Name).
		Int("channel", outlet.Channel).
		Msg("Relay outlet de-energized")
}

func (a *relayAdapter) ReadInstant(ctx context.Context, station *bench.Station, outlet *bench.Outlet) (bench.Sample, error) {
	url := fmt.Sprintf("%s/meter/%d", station.Address, outlet.Channel)
	var meter relayMeterResponse
	raw, err := getJSON(ctx, a.client, url, &meter)
	if err != nil {
		return bench.Sample{}, err
	}

	return bench.Sample{
		Watts: bench.Float64Ptr(meter.Power),
		Volts: bench.Float64Ptr(meter.Voltage),
		Amps:  bench.Float64Ptr(meter.Current),
		Raw:   raw,
	}, nil
}

func (a *relayAdapter) HealthCheck(ctx context.Context, station *bench.Station) bench.Health {
	url := station.Address + "/status"
	var status relayStatusResponse
	if _, err := getJSON(ctx, a.client, url, &status); err != nil {
		return bench.Health{OK: false, Details: err.Error()}
	}

	return bench.Health{OK: true, Details: fmt.Sprintf("relay up %ds", status.Uptime)}
}
