package controller

import (
	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/Quicklotz/benchd/internal/errors"
	"github.com/Quicklotz/benchd/internal/logger"
)

// New resolves a controller type to its adapter. Resolution is pure: an
// unrecognized type is a configuration error raised here, never deferred
// to first use.
func New(controllerType bench.ControllerType, cfg Config, log logger.Logger) (Adapter, error) {
	errFactory := errors.New()

	switch controllerType {
	case bench.ControllerRelayMeter:
		return newRelayAdapter(cfg, log), nil
	case bench.ControllerMonitorOnly:
		return newMonitorAdapter(cfg, log), nil
	case bench.ControllerManagedPDU:
		return newPDUAdapter(cfg, log), nil
	case bench.ControllerManual:
		return newManualAdapter(log), nil
	default:
		return nil, errFactory.WithData(ErrUnknownControllerType, controllerType.String())
	}
}

// ForStation validates the station's controller configuration and returns
// its adapter. Non-manual controllers require an address.
func ForStation(station *bench.Station, cfg Config, log logger.Logger) (Adapter, error) {
	errFactory := errors.New()

	if station.Controller != bench.ControllerManual && station.Address == "" {
		return nil, errFactory.WithData(ErrMissingAddress, station.Name)
	}

	return New(station.Controller, cfg, log)
}
