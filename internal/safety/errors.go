package safety

import "github.com/Quicklotz/benchd/internal/errors"

const (
	// Precondition Errors
	ErrPreconditionsFailed = errors.ErrorCode("safety_preconditions_failed")

	// Shutdown Errors
	ErrAnomalyPersist = errors.ErrorCode("safety_anomaly_persist_failed")
	ErrStatusUpdate   = errors.ErrorCode("safety_status_update_failed")
)
