package runs

import "github.com/Quicklotz/benchd/internal/errors"

const (
	// Precondition Errors
	ErrSafetyPreconditions = errors.ErrorCode("run_safety_preconditions_failed")
	ErrOutletClaimed       = errors.ErrorCode("run_outlet_already_claimed")

	// Lifecycle Errors
	ErrTurnOnFailed  = errors.ErrorCode("run_turn_on_failed")
	ErrCreateFailed  = errors.ErrorCode("run_create_failed")
	ErrCollectFailed = errors.ErrorCode("run_collect_start_failed")
)
