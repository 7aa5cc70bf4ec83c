package bench

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a test run.
type RunStatus string

const (
	StatusPending    RunStatus = "PENDING"
	StatusInProgress RunStatus = "IN_PROGRESS"
	StatusCompleted  RunStatus = "COMPLETED"
	StatusFailed     RunStatus = "FAILED"
	StatusAborted    RunStatus = "ABORTED"
)

// IsTerminal returns whether the status admits no further transitions.
// Status updates on a terminal run are no-ops, because emergency shutdown
// may race with the run's natural completion.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusAborted:
		return true
	default:
		return false
	}
}

// IsValid returns whether the status is a known state
func (s RunStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusAborted:
		return true
	default:
		return false
	}
}

func (s RunStatus) String() string {
	return string(s)
}

// AnomalyType classifies a detected safety violation.
type AnomalyType string

const (
	AnomalySpike       AnomalyType = "SPIKE"
	AnomalyOvercurrent AnomalyType = "OVERCURRENT"
	AnomalyHealthFail  AnomalyType = "HEALTH_FAIL"
)

// Anomaly is an immutable record of a safety violation. Append-only per run.
type Anomaly struct {
	Type      AnomalyType
	Message   string
	Timestamp time.Time
	Observed  float64
	Threshold float64
}

// TestRun ties a station, outlet and profile together for one automated
// electrical test. Mutated only by the safety monitor, the collector
// completion path, or an explicit operator stop.
type TestRun struct {
	ID        uuid.UUID
	StationID uuid.UUID
	OutletID  uuid.UUID
	ProfileID uuid.UUID

	Status    RunStatus
	StartedAt time.Time
	EndedAt   time.Time
	Result    string

	Anomalies []Anomaly
}

// NewTestRun creates a pending run for the given equipment.
func NewTestRun(stationID, outletID, profileID uuid.UUID) *TestRun {
	return &TestRun{
		ID:        uuid.New(),
		StationID: stationID,
		OutletID:  outletID,
		ProfileID: profileID,
		Status:    StatusPending,
		StartedAt: time.Now().UTC(),
	}
}
