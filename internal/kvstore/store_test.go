package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"appshell/pkg/platform/sentinel"
)

func TestBackendError(t *testing.T) {
	t.Run("outage wraps unavailable and the cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := backendError("redis get", "k", cause)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), `redis get "k"`)
	})

	t.Run("deadline is not an outage", func(t *testing.T) {
		err := backendError("set kv", "k", context.DeadlineExceeded)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("cancellation is not an outage", func(t *testing.T) {
		err := backendError("remove kv", "k", context.Canceled)
		assert.NotErrorIs(t, err, sentinel.ErrUnavailable)
	})
}
