package store

import "github.com/Quicklotz/benchd/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("store_invalid_config")
	ErrInvalidDBPath = errors.ErrorCode("store_invalid_db_path")

	// Storage Errors
	ErrStorageInit   = errors.ErrorCode("store_init_failed")
	ErrStorageAccess = errors.ErrorCode("store_access_failed")
	ErrStorageClose  = errors.ErrorCode("store_close_failed")
	ErrSchemaInit    = errors.ErrorCode("store_schema_init_failed")

	// Record Errors
	ErrRunNotFound   = errors.ErrorCode("store_run_not_found")
	ErrInvalidRecord = errors.ErrorCode("store_invalid_record")
)
