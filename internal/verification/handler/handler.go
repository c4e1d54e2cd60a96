// Package handler wires the verification HTTP endpoints to the intake and
// decision services.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veriflow/internal/audit"
	"veriflow/internal/verification/decision"
	"veriflow/internal/verification/models"
	"veriflow/internal/verification/ports"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/platform/httputil"
	"veriflow/pkg/requestcontext"
)

// IntakeService accepts form submissions.
type IntakeService interface {
	HandleSubmission(ctx context.Context, sub models.Submission) id.RequestID
}

// DecisionService applies operator actions.
type DecisionService interface {
	Apply(ctx context.Context, requestID id.RequestID, action models.Action, opts decision.Options) bool
}

// Handler wires verification endpoints to their services.
type Handler struct {
	intake    IntakeService
	decisions DecisionService
	requests  ports.RequestStore
	trail     *audit.Trail
	logger    *slog.Logger
}

// New constructs a verification handler with its dependencies.
func New(intake IntakeService, decisions DecisionService, requests ports.RequestStore, trail *audit.Trail, logger *slog.Logger) *Handler {
	return &Handler{
		intake:    intake,
		decisions: decisions,
		requests:  requests,
		trail:     trail,
		logger:    logger,
	}
}

// Register mounts the verification endpoints on the router. The caller is
// responsible for wrapping operator routes in the admin-token middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/submissions", h.HandleSubmission)
	r.Route("/requests/{requestID}", func(r chi.Router) {
		r.Get("/", h.HandleGetRequest)
		r.Get("/audit", h.HandleGetAudit)
		r.Post("/decisions", h.HandleDecision)
	})
}

// HandleSubmission handles POST /submissions.
func (h *Handler) HandleSubmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmissionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	resultID := h.intake.HandleSubmission(ctx, req.ToSubmission())

	h.logger.InfoContext(ctx, "submission processed",
		"request_id", requestID,
		"user_id", req.UserID,
		"form_id", req.FormID,
		"verification_id", resultID.String(),
	)

	// A nil ID means the submission was ignored; the caller gets the same
	// shape either way and no hint as to why.
	httputil.WriteJSON(w, http.StatusAccepted, SubmissionResponse{
		VerificationID: idOrEmpty(resultID),
	})
}

// HandleDecision handles POST /requests/{requestID}/decisions.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	verificationID, ok := h.parseVerificationID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	applied := h.decisions.Apply(ctx, verificationID, req.ParsedAction(), decision.Options{
		ActorID: req.ParsedActorID(),
		CCSelf:  req.CCSelf,
	})

	h.logger.InfoContext(ctx, "decision applied",
		"request_id", requestID,
		"verification_id", verificationID.String(),
		"action", req.Action,
		"applied", applied,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	status := http.StatusOK
	if !applied {
		// No-op covers unknown IDs, already-processed requests, and lost
		// write races alike.
		status = http.StatusConflict
	}
	httputil.WriteJSON(w, status, DecisionResponse{Applied: applied})
}

// HandleGetRequest handles GET /requests/{requestID}.
func (h *Handler) HandleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	verificationID, ok := h.parseVerificationID(w, r)
	if !ok {
		return
	}

	request, err := h.requests.Load(ctx, verificationID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "request not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequest(request))
}

// HandleGetAudit handles GET /requests/{requestID}/audit.
func (h *Handler) HandleGetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	verificationID, ok := h.parseVerificationID(w, r)
	if !ok {
		return
	}

	// The request must exist; an empty trail for a live request is valid,
	// a trail for an unknown ID is a 404.
	if _, err := h.requests.Load(ctx, verificationID); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "request not found"))
		return
	}

	entries, err := h.trail.List(ctx, verificationID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit entries",
			"verification_id", verificationID.String(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "audit lookup failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEntries(verificationID, entries))
}

func (h *Handler) parseVerificationID(w http.ResponseWriter, r *http.Request) (id.RequestID, bool) {
	verificationID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return id.RequestID{}, false
	}
	return verificationID, true
}

func idOrEmpty(requestID id.RequestID) string {
	if requestID.IsNil() {
		return ""
	}
	return requestID.String()
}
