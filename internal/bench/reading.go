package bench

import (
	"time"

	"github.com/google/uuid"
)

// Sample is a point measurement returned by a controller adapter. Fields
// are optional because not every controller meters every quantity.
type Sample struct {
	Watts    *float64
	Volts    *float64
	Amps     *float64
	TempC    *float64
	Pressure *float64

	// Raw is the controller's unparsed response payload, kept for
	// after-the-fact diagnosis of bad samples.
	Raw []byte
}

// Reading is a persisted Sample tied to one run. Readings are immutable
// after insertion and monotonically increasing in timestamp per run.
type Reading struct {
	ID        int64
	RunID     uuid.UUID
	Timestamp time.Time
	Sample
}

// Health is the result of a controller health check.
type Health struct {
	OK      bool
	Details string
}

// Float64Ptr is a convenience for building optional sample fields.
func Float64Ptr(v float64) *float64 {
	return &v
}
