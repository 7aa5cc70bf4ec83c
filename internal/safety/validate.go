package safety

import "github.com/Quicklotz/benchd/internal/bench"

// ValidateSafety returns the list of violated preconditions for
// energizing the outlet. An empty list means safe to energize.
func ValidateSafety(station *bench.Station, outlet *bench.Outlet) []string {
	var violations []string

	if !station.GFCIPresent {
		violations = append(violations, "station has no GFCI protection")
	}
	if station.AcknowledgedBy == "" {
		violations = append(violations, "station safety has not been acknowledged by an operator")
	}
	if !outlet.Enabled {
		violations = append(violations, "outlet is disabled")
	}
	if !outlet.SupportsOnOff && station.Controller != bench.ControllerManual {
		violations = append(violations, "outlet does not support automated switching and controller is not manual")
	}

	return violations
}
