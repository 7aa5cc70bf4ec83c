package collector

import "github.com/Quicklotz/benchd/internal/errors"

const (
	// Configuration Errors
	ErrAlreadyCollecting = errors.ErrorCode("collector_already_active")
	ErrInvalidInterval   = errors.ErrorCode("collector_invalid_interval")

	// Storage Errors
	ErrPersistFailed = errors.ErrorCode("collector_persist_failed")
)
