package controller

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/logger"
)

// monitorAdapter reads HTTP energy monitors with CT clamps. This hardware
// cannot switch power: it must be paired with a separate relay in the
// physical setup, so TurnOn/TurnOff are warning-logged no-ops.
type monitorAdapter struct {
	client *http.Client
	logger logger.Logger
}

type monitorInputResponse struct {
	Watts float64 `json:"watts"`
	Volts float64 `json:"volts"`
	Amps  float64 `json:"amps"`
}

func newMonitorAdapter(cfg Config, log logger.Logger) Adapter {
	return &monitorAdapter{
		client: cfg.httpClient(),
		logger: log,
	}
}

func (a *monitorAdapter) TurnOn(_ context.Context, station *bench.Station, outlet *bench.Outlet) error {
	a.logger.Warn().
		Str("station", station.Name).
		Int("channel", outlet.Channel).
		Msg("Monitor-only controller cannot switch power; turn-on ignored")

	return nil
}

func (a *monitorAdapter) TurnOff(_ context.Context, station *bench.Station, outlet *bench.Outlet) {
	a.logger.Warn().
		Str("station", station.Name).
		Int("channel", outlet.Channel).
		Msg("Monitor-only controller cannot switch power; turn-off ignored")
}

func (a *monitorAdapter) ReadInstant(ctx context.Context, station *bench.Station, outlet *bench.Outlet) (bench.Sample, error) {
	url := fmt.Sprintf("%s/input/%d", station.Address, outlet.Channel)
	var input monitorInputResponse
	raw, err := getJSON(ctx, a.client, url, &input)
	if err != nil {
		return bench.Sample{}, err
	}

	return bench.Sample{
		Watts: bench.Float64Ptr(input.Watts),
		Volts: bench.Float64Ptr(input.Volts),
		Amps:  bench.Float64Ptr(input.Amps),
		Raw:   raw,
	}, nil
}

func (a *monitorAdapter) HealthCheck(ctx context.Context, station *bench.Station) bench.Health {
	url := station.Address + "/status"
	if _, err := getJSON(ctx, a.client, url, nil); err != nil {
		return bench.Health{OK: false, Details: err.Error()}
	}

	return bench.Health{OK: true, Details: "monitor reachable"}
}
