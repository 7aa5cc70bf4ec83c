package controller

import "github.com/Quicklotz/benchd/internal/errors"

const (
	// Configuration Errors
	ErrUnknownControllerType = errors.ErrorCode("controller_unknown_type")
	ErrMissingAddress        = errors.ErrorCode("controller_missing_address")

	// Operation Errors
	ErrTurnOnFailed    = errors.ErrorCode("controller_turn_on_failed")
	ErrReadFailed      = errors.ErrorCode("controller_read_failed")
	ErrBadResponse     = errors.ErrorCode("controller_bad_response")
	ErrManualRead      = errors.ErrorCode("controller_manual_read_unsupported")
	ErrSNMPConnect     = errors.ErrorCode("controller_snmp_connect_failed")
	ErrSNMPOperation   = errors.ErrorCode("controller_snmp_operation_failed")
	ErrSwitchingNotSup = errors.ErrorCode("controller_switching_not_supported")
)
