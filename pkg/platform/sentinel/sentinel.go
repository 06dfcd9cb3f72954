package sentinel

import "errors"

// Sentinel errors for infrastructure facts. KV adapters and the persistence
// layer return these (optionally wrapped) so the session service can decide
// how to degrade.
//
// These represent factual states about stored data, not validation failures:
// - ErrNotFound: key does not exist in the store
// - ErrCorrupt: stored value exists but cannot be decoded into a valid record
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing store temporarily unavailable
//
// For validation errors (bad input, unknown enum values), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrCorrupt      = errors.New("corrupt record")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
