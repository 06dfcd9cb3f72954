package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditEventCategory(t *testing.T) {
	assert.Equal(t, CategorySecurity, EventLoggedIn.Category())
	assert.Equal(t, CategorySecurity, EventLoggedOut.Category())
	assert.Equal(t, CategoryOperations, EventOnboardingCompleted.Category())
	assert.Equal(t, CategoryOperations, EventPersistWriteFailed.Category())
	assert.Equal(t, CategoryOperations, AuditEvent("something_new").Category())
}

func TestOpsEventCategory(t *testing.T) {
	assert.Equal(t, CategorySecurity, OpsEvent{Action: string(EventLoggedOut)}.Category())
	assert.Equal(t, CategoryOperations, OpsEvent{Action: string(EventOnboardingReset)}.Category())
}
