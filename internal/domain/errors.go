package domain

import "errors"

// Sentinel errors shared across persistence implementations and the
// scoring pipeline.
var (
	// ErrNotFound signals a missing record; callers asking for unknown
	// transactions or analyses receive it as a hard failure.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput signals a malformed request or missing tenant.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVersionConflict signals an optimistic-concurrency failure on a
	// profile save; the caller re-reads and re-applies.
	ErrVersionConflict = errors.New("profile version conflict")
)
