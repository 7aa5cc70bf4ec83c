package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/Quicklotz/benchd/internal/bench"
)

// Adapter is the capability set a controller variant implements. One
// adapter instance serves every outlet on its station.
type Adapter interface {
	// TurnOn energizes the outlet. Failures propagate: the caller
	// decides whether a failed turn-on aborts the run.
	TurnOn(ctx context.Context, station *bench.Station, outlet *bench.Outlet) error

	// TurnOff de-energizes the outlet. It never fails from the caller's
	// point of view: it is invoked from the emergency-shutdown path,
	// where the remaining cleanup steps must still run, so all internal
	// failures are caught and logged.
	TurnOff(ctx context.Context, station *bench.Station, outlet *bench.Outlet)

	// ReadInstant returns a point sample. Bounded by the configured read
	// timeout so a hung call cannot stall spike detection. Errors are
	// transient read failures, not safety violations.
	ReadInstant(ctx context.Context, station *bench.Station, outlet *bench.Outlet) (bench.Sample, error)

	// HealthCheck reports whether the controller is reachable and sane.
	// It never fails: internal errors are reported as OK=false.
	HealthCheck(ctx context.Context, station *bench.Station) bench.Health
}

const defaultReadTimeout = 3 * time.Second

type Config struct {
	// ReadTimeout bounds ReadInstant and HealthCheck network calls.
	ReadTimeout time.Duration

	// HTTPClient overrides the client used by HTTP variants; nil means a
	// client with ReadTimeout is built.
	HTTPClient *http.Client

	// SNMPPort is the UDP port for managed PDUs (default 161).
	SNMPPort uint16
}

func DefaultConfig() Config {
	return Config{
		ReadTimeout: defaultReadTimeout,
		SNMPPort:    161,
	}
}

func (c Config) readTimeout() time.Duration {
	if c.ReadTimeout <= 0 {
		return defaultReadTimeout
	}
	return c.ReadTimeout
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.readTimeout()}
}

func (c Config) snmpPort() uint16 {
	if c.SNMPPort == 0 {
		return 161
	}
	return c.SNMPPort
}
