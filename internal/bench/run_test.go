package bench_test

import (
	"testing"

	"github.com/Quicklotz/benchd/internal/bench"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRunStatusIsTerminal(t *testing.T) {
	terminal := []bench.RunStatus{
		bench.StatusCompleted,
		bench.StatusFailed,
		bench.StatusAborted,
	}
	for _, status := range terminal {
		assert.True(t, status.IsTerminal(), status)
	}

	assert.False(t, bench.StatusPending.IsTerminal())
	assert.False(t, bench.StatusInProgress.IsTerminal())
}

func TestRunStatusIsValid(t *testing.T) {
	valid := []bench.RunStatus{
		bench.StatusPending,
		bench.StatusInProgress,
		bench.StatusCompleted,
		bench.StatusFailed,
		bench.StatusAborted,
	}
	for _, status := range valid {
		assert.True(t, status.IsValid(), status)
	}

	assert.False(t, bench.RunStatus("EXPLODED").IsValid())
	assert.False(t, bench.RunStatus("").IsValid())
}

func TestControllerTypeIsValid(t *testing.T) {
	valid := []bench.ControllerType{
		bench.ControllerRelayMeter,
		bench.ControllerMonitorOnly,
		bench.ControllerManagedPDU,
		bench.ControllerManual,
	}
	for _, ctype := range valid {
		assert.True(t, ctype.IsValid(), ctype)
	}

	assert.False(t, bench.ControllerType("toaster").IsValid())
	assert.False(t, bench.ControllerType("").IsValid())
}

func TestNewTestRunStartsPending(t *testing.T) {
	stationID := uuid.New()
	outletID := uuid.New()
	profileID := uuid.New()

	run := bench.NewTestRun(stationID, outletID, profileID)

	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, stationID, run.StationID)
	assert.Equal(t, outletID, run.OutletID)
	assert.Equal(t, profileID, run.ProfileID)
	assert.Equal(t, bench.StatusPending, run.Status)
	assert.False(t, run.StartedAt.IsZero())
	assert.True(t, run.EndedAt.IsZero())
	assert.Empty(t, run.Result)
}

func TestFloat64Ptr(t *testing.T) {
	p := bench.Float64Ptr(12.5)
	assert.NotNil(t, p)
	assert.InDelta(t, 12.5, *p, 0.001)
}
