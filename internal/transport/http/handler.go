// Package httptransport exposes the session container to the external
// presentation layer over a local HTTP bridge.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"appshell/internal/routeguard"
	"appshell/internal/session/models"
	dErrors "appshell/pkg/domain-errors"
	"appshell/pkg/platform/audit"
	"appshell/pkg/platform/httputil"
	"appshell/pkg/platform/sentinel"
	"appshell/pkg/requestcontext"
)

// SessionService is the session container as the bridge uses it.
type SessionService interface {
	Hydrated() bool
	Snapshot() models.SessionState
	StartOnboarding(ctx context.Context)
	SetOnboardingStep(ctx context.Context, step models.OnboardingStep) error
	CompleteOnboardingStep(ctx context.Context, step models.OnboardingStep) error
	CompleteOnboarding(ctx context.Context)
	SkipOnboarding(ctx context.Context)
	ResetOnboarding(ctx context.Context)
	LogIn(ctx context.Context)
	LogOut(ctx context.Context)
	Flush(ctx context.Context) error
	ClearPersisted(ctx context.Context) error
}

// AuditLog lists recorded ops events.
type AuditLog interface {
	ListAll(ctx context.Context) ([]audit.OpsEvent, error)
	ListByAction(ctx context.Context, action audit.AuditEvent) ([]audit.OpsEvent, error)
}

// Handler serves the session and route endpoints.
type Handler struct {
	session  SessionService
	auditLog AuditLog
	logger   *slog.Logger
}

type HandlerOption func(*Handler)

// WithAuditLog exposes recent ops events on GET /audit/events.
func WithAuditLog(log AuditLog) HandlerOption {
	return func(h *Handler) {
		h.auditLog = log
	}
}

func NewHandler(session SessionService, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{session: session, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the session and route endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/session", h.handleGetSession)
	r.Delete("/session/persisted", h.handleClearPersisted)
	r.Post("/session/flush", h.handleFlush)

	r.Post("/session/onboarding/start", h.mutation(h.session.StartOnboarding))
	r.Post("/session/onboarding/complete", h.mutation(h.session.CompleteOnboarding))
	r.Post("/session/onboarding/skip", h.mutation(h.session.SkipOnboarding))
	r.Post("/session/onboarding/reset", h.mutation(h.session.ResetOnboarding))
	r.Put("/session/onboarding/step", h.stepMutation(h.session.SetOnboardingStep))
	r.Post("/session/onboarding/steps", h.stepMutation(h.session.CompleteOnboardingStep))

	r.Post("/session/login", h.mutation(h.session.LogIn))
	r.Post("/session/logout", h.mutation(h.session.LogOut))

	r.Get("/route", h.handleResolveRoute)

	if h.auditLog != nil {
		r.Get("/audit/events", h.handleListAuditEvents)
	}
}

type sessionResponse struct {
	IsLoggedIn             bool                `json:"is_logged_in"`
	IsOnboardingStarted    bool                `json:"is_onboarding_started"`
	HasCompletedOnboarding bool                `json:"has_completed_onboarding"`
	CurrentStep            *string             `json:"current_step"`
	CompletedSteps         []string            `json:"completed_steps"`
	OnboardingCompletedAt  *string             `json:"onboarding_completed_at"`
	Phase                  models.Phase        `json:"phase"`
	Region                 routeguard.Region   `json:"region"`
	Reachable              []routeguard.Region `json:"reachable"`
}

func toSessionResponse(st models.SessionState) sessionResponse {
	resp := sessionResponse{
		IsLoggedIn:             st.IsLoggedIn,
		IsOnboardingStarted:    st.IsOnboardingStarted,
		HasCompletedOnboarding: st.HasCompletedOnboarding,
		CompletedSteps:         make([]string, 0, len(st.CompletedSteps)),
		Phase:                  st.Phase(),
		Region:                 routeguard.Evaluate(st),
		Reachable:              routeguard.Reachable(st),
	}
	if st.CurrentStep != nil {
		step := st.CurrentStep.String()
		resp.CurrentStep = &step
	}
	for _, step := range st.CompletedSteps {
		resp.CompletedSteps = append(resp.CompletedSteps, step.String())
	}
	if st.OnboardingCompletedAt != nil {
		at := st.OnboardingCompletedAt.UTC().Format(time.RFC3339Nano)
		resp.OnboardingCompletedAt = &at
	}
	return resp
}

type stepRequest struct {
	Step string `json:"step"`
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(h.session.Snapshot()))
}

func (h *Handler) mutation(apply func(context.Context)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apply(r.Context())
		httputil.WriteJSON(w, http.StatusOK, toSessionResponse(h.session.Snapshot()))
	}
}

func (h *Handler) stepMutation(apply func(context.Context, models.OnboardingStep) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := requestcontext.RequestID(ctx)

		var req stepRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.WarnContext(ctx, "invalid step request",
				"request_id", requestID,
				"error", err.Error(),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}

		step, err := models.ParseOnboardingStep(req.Step)
		if err == nil {
			err = apply(ctx, step)
		}
		if err != nil {
			h.logger.WarnContext(ctx, "step rejected",
				"request_id", requestID,
				"step", req.Step,
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toSessionResponse(h.session.Snapshot()))
	}
}

func (h *Handler) handleClearPersisted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.session.ClearPersisted(ctx); err != nil {
		h.logger.ErrorContext(ctx, "failed to clear persisted session",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, storageError(err, "failed to clear persisted session"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFlush waits until every mutation so far has been written.
func (h *Handler) handleFlush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.session.Flush(ctx); err != nil {
		h.logger.WarnContext(ctx, "session flush did not complete",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, storageError(err, "failed to flush session"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func storageError(err error, msg string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg+": storage did not answer in time")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg+": storage unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (h *Handler) handleResolveRoute(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	res, err := routeguard.Resolve(h.session.Snapshot(), path)
	if errors.Is(err, routeguard.ErrUnknownRoute) {
		msg := "unknown route"
		if hint, ok := routeguard.SuggestRoute(path); ok {
			msg = fmt.Sprintf("unknown route, did you mean %q?", hint)
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, msg))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

type auditEventResponse struct {
	Timestamp string `json:"timestamp"`
	ChangeID  string `json:"change_id"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	Subject   string `json:"subject,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handler) handleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		events []audit.OpsEvent
		err    error
	)
	if action := r.URL.Query().Get("action"); action != "" {
		events, err = h.auditLog.ListByAction(ctx, audit.AuditEvent(action))
	} else {
		events, err = h.auditLog.ListAll(ctx)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit events",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}

	resp := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, auditEventResponse{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
			ChangeID:  e.ChangeID,
			Category:  string(e.Category()),
			Action:    e.Action,
			Subject:   e.Subject,
			Reason:    e.Reason,
			RequestID: e.RequestID,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
