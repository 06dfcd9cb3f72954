// Package observability provides audit logging helpers for the session module.
package observability

import (
	"context"
	"log/slog"

	"appshell/pkg/platform/attrs"
	"appshell/pkg/platform/audit"
	"appshell/pkg/platform/audit/publishers/ops"
	"appshell/pkg/requestcontext"
)

// LogAudit writes event to the structured logger and forwards it to the ops
// tracker. Either sink may be nil.
func LogAudit(ctx context.Context, logger *slog.Logger, tracker *ops.Tracker, event audit.AuditEvent, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}
	if origin := requestcontext.Origin(ctx); origin != "" {
		attrList = append(attrList, "origin", origin)
	}

	args := append(attrList, "event", string(event), "category", string(event.Category()), "log_type", "audit")

	if logger != nil {
		logger.InfoContext(ctx, string(event), args...)
	}

	tracker.Track(ctx, audit.OpsEvent{
		Subject:   attrs.FirstString(attrList, "storage_key", "step", "phase"),
		Action:    string(event),
		Reason:    attrs.FirstString(attrList, "reason", "error"),
		RequestID: requestID,
	})
}
