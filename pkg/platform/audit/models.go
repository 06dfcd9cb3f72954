package audit

import (
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategorySecurity covers events relevant to account access.
	// Examples: log in, log out.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled with shorter retention.
	// Examples: onboarding progress, persistence failures.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	// Onboarding events
	EventOnboardingStarted       AuditEvent = "onboarding_started"
	EventOnboardingStepSet       AuditEvent = "onboarding_step_set"
	EventOnboardingStepCompleted AuditEvent = "onboarding_step_completed"
	EventOnboardingCompleted     AuditEvent = "onboarding_completed"
	EventOnboardingSkipped       AuditEvent = "onboarding_skipped"
	EventOnboardingReset         AuditEvent = "onboarding_reset"

	// Auth events
	EventLoggedIn  AuditEvent = "logged_in"
	EventLoggedOut AuditEvent = "logged_out"

	// Persistence events
	EventSessionHydrated     AuditEvent = "session_hydrated"
	EventHydrateFailed       AuditEvent = "session_hydrate_failed"
	EventPersistWriteFailed  AuditEvent = "session_persist_write_failed"
	EventPersistedRecordGone AuditEvent = "session_persisted_record_removed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventLoggedIn:  CategorySecurity,
	EventLoggedOut: CategorySecurity,

	EventOnboardingStarted:       CategoryOperations,
	EventOnboardingStepSet:       CategoryOperations,
	EventOnboardingStepCompleted: CategoryOperations,
	EventOnboardingCompleted:     CategoryOperations,
	EventOnboardingSkipped:       CategoryOperations,
	EventOnboardingReset:         CategoryOperations,
	EventSessionHydrated:         CategoryOperations,
	EventHydrateFailed:           CategoryOperations,
	EventPersistWriteFailed:      CategoryOperations,
	EventPersistedRecordGone:     CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// OpsEvent captures operational events with minimal overhead.
// Events are fire-and-forget with optional sampling.
type OpsEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	ChangeID  string    // Unique per emitted event
	Subject   string    // Entity involved (storage key, step)
	Action    string    // Operational action (e.g., "onboarding_completed")
	Reason    string    // Failure reason when the action describes an error
	RequestID string    // Correlation ID
}

// Category derives the category from the action name.
func (e OpsEvent) Category() EventCategory { return AuditEvent(e.Action).Category() }
