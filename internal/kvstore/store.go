// Package kvstore provides the durable key-value backends the session
// record is persisted in. Every backend stores opaque strings under string
// keys; Get on a missing key returns sentinel.ErrNotFound and Remove on a
// missing key succeeds. Networked and SQL backends report outages wrapped
// in sentinel.ErrUnavailable.
package kvstore

import (
	"context"
	"errors"
	"fmt"

	"appshell/pkg/platform/sentinel"
)

// Store is the contract every backend in this package satisfies.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// backendError wraps a failed backend call. Caller cancellations and
// deadlines keep their own identity; anything else counts as an outage.
func backendError(op, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s %q: %w", op, key, err)
	}
	return fmt.Errorf("%s %q: %w: %w", op, key, sentinel.ErrUnavailable, err)
}
