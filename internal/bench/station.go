package bench

import "github.com/google/uuid"

// ControllerType discriminates which adapter variant drives a station's outlets.
type ControllerType string

const (
	// ControllerRelayMeter is an HTTP-addressable smart relay with
	// per-channel metering. Real on/off, real readings.
	ControllerRelayMeter ControllerType = "relay_meter"

	// ControllerMonitorOnly is an HTTP energy monitor with CT clamps.
	// It meters but cannot switch power.
	ControllerMonitorOnly ControllerType = "monitor_only"

	// ControllerManagedPDU is a rack PDU controlled over SNMP with
	// bank-level metering.
	ControllerManagedPDU ControllerType = "managed_pdu"

	// ControllerManual means no automatable hardware is present and an
	// operator mediates every action.
	ControllerManual ControllerType = "manual"
)

// IsValid returns whether the controller type is a known variant
func (t ControllerType) IsValid() bool {
	switch t {
	case ControllerRelayMeter, ControllerMonitorOnly, ControllerManagedPDU, ControllerManual:
		return true
	default:
		return false
	}
}

func (t ControllerType) String() string {
	return string(t)
}

// Station is a physical test bench with network-controllable outlets.
// Immutable during a run except for the safety flags.
type Station struct {
	ID         uuid.UUID
	Name       string
	Controller ControllerType

	// Address is the controller base address: a base URL for HTTP
	// controllers, host or host:port for SNMP PDUs. Empty for manual.
	Address string

	// Community is the SNMP community string for managed PDUs.
	Community string

	// Safety flags. A station must have a GFCI and an operator
	// acknowledgment before any outlet is energized.
	GFCIPresent    bool
	AcknowledgedBy string
}

// Outlet is one switchable/metered channel within a station.
type Outlet struct {
	ID        uuid.UUID
	StationID uuid.UUID
	Channel   int
	Enabled   bool

	// SupportsOnOff is false for metering-only channels that are wired
	// through a separate relay in the physical setup.
	SupportsOnOff bool

	// MaxAmps is the overcurrent ceiling for this outlet. Zero means no
	// ceiling is configured.
	MaxAmps float64
}

// Profile holds per product-category safety thresholds. Referenced by a
// run, never owned by it.
type Profile struct {
	ID       uuid.UUID
	Category string

	MaxPeakWatts       float64
	MinStableWatts     float64
	MaxStableWatts     float64
	SpikeShutdownWatts float64
	MinRunSeconds      int

	// Checklist items the operator confirms for manual stations.
	Checklist []string
}
