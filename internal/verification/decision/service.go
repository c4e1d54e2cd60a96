// Package decision applies operator actions to verification requests. It is
// the only writer of request status: every transition is validated against
// the state machine, guarded by the store's version check, and recorded in
// the audit trail.
package decision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"veriflow/internal/audit"
	"veriflow/internal/template"
	"veriflow/internal/verification/decision/metrics"
	"veriflow/internal/verification/models"
	"veriflow/internal/verification/ports"
	id "veriflow/pkg/domain"
	pkgemail "veriflow/pkg/email"
	"veriflow/pkg/requestcontext"
)

const skipReasonBadEmail = "empty_or_invalid_user_email"

// Options tune a single Apply call.
type Options struct {
	// ActorID identifies the acting operator; falls back to the request
	// context's actor when zero.
	ActorID id.UserID
	// CCSelf blind-copies the acting operator on the decision email.
	CCSelf bool
}

// Service is the decision engine. Apply reports plain success/no-op to
// callers; diagnostics go to the audit trail, not into returned errors.
type Service struct {
	requests   ports.RequestStore
	configs    ports.ConfigProvider
	roles      ports.RoleAssigner
	directory  ports.DirectoryReader
	notifier   ports.Notifier
	templates  *template.Engine
	trail      *audit.Trail
	subscriber ports.Subscriber
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Service)

func WithSubscriber(subscriber ports.Subscriber) Option {
	return func(s *Service) {
		s.subscriber = subscriber
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(
	requests ports.RequestStore,
	configs ports.ConfigProvider,
	roles ports.RoleAssigner,
	directory ports.DirectoryReader,
	notifier ports.Notifier,
	templates *template.Engine,
	trail *audit.Trail,
	opts ...Option,
) (*Service, error) {
	if requests == nil {
		return nil, fmt.Errorf("request store is required")
	}
	if configs == nil {
		return nil, fmt.Errorf("config provider is required")
	}
	if roles == nil {
		return nil, fmt.Errorf("role assigner is required")
	}

	svc := &Service{
		requests:  requests,
		configs:   configs,
		roles:     roles,
		directory: directory,
		notifier:  notifier,
		templates: templates,
		trail:     trail,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Apply executes one operator action against a request. False means no-op:
// unknown request, invalid source state (someone already processed it), or a
// lost write race. Callers surface the boolean, nothing louder.
func (s *Service) Apply(ctx context.Context, requestID id.RequestID, action models.Action, opts Options) bool {
	start := time.Now()
	applied := s.apply(ctx, requestID, action, opts)
	s.metrics.ObserveApplyLatency(time.Since(start))
	if applied {
		s.metrics.IncrementAction(string(action), "applied")
	} else {
		s.metrics.IncrementAction(string(action), "noop")
	}
	return applied
}

func (s *Service) apply(ctx context.Context, requestID id.RequestID, action models.Action, opts Options) bool {
	request, err := s.requests.Load(ctx, requestID)
	if err != nil {
		ports.LogEvent(ctx, s.logger, "decision_request_missing",
			"verification_id", requestID.String(), "action", string(action))
		return false
	}

	if err := request.CanApply(action); err != nil {
		// Usually a double-click on an already processed request.
		ports.LogEvent(ctx, s.logger, "decision_invalid_transition",
			"verification_id", requestID.String(),
			"action", string(action),
			"status", string(request.Status))
		return false
	}

	actor := opts.ActorID
	if actor.IsNil() {
		actor = requestcontext.ActorID(ctx)
	}

	switch action {
	case models.ActionApprove, models.ActionReject:
		return s.applyDecision(ctx, request, action, actor, opts)
	case models.ActionReopen:
		return s.applyReopen(ctx, request, actor)
	case models.ActionResend:
		return s.applyResend(ctx, request, actor, opts)
	}
	return false
}

// applyDecision runs the approve/reject transition in a strict order: config,
// role snapshot, role mutation, guarded status write, then notification and
// terminal audit entry. The status write happens as early as practical after
// the role mutation to keep the crash window small; email failures never roll
// anything back.
func (s *Service) applyDecision(ctx context.Context, request *models.Request, action models.Action, actor id.UserID, opts Options) bool {
	target, _ := action.TargetStatus()

	config, err := s.configs.GetByFormID(ctx, request.FormID)
	if err != nil {
		ports.LogEvent(ctx, s.logger, "decision_config_missing",
			"verification_id", request.ID.String(), "form_id", request.FormID.String())
		return false
	}
	role, _ := config.DecisionRole(target)

	s.appendEntry(ctx, request.ID, beginAction(action), actor, map[string]string{
		audit.DataFromStatus: string(request.Status),
	})

	snapshot, err := s.roles.GetRoles(ctx, request.UserID)
	if err != nil {
		ports.LogEvent(ctx, s.logger, "decision_role_snapshot_failed",
			"verification_id", request.ID.String(), "error", err)
		return false
	}

	if err := s.roles.SetSingleRole(ctx, request.UserID, role); err != nil {
		ports.LogEvent(ctx, s.logger, "decision_role_mutation_failed",
			"verification_id", request.ID.String(), "error", err)
		return false
	}

	expectedVersion := request.Version
	request.ApplyDecision(target, snapshot, actor, requestcontext.Now(ctx).UTC())
	if err := s.requests.Update(ctx, request, expectedVersion); err != nil {
		// The role mutation already happened; the trail records the stranded
		// write so operators can reconcile.
		s.appendEntry(ctx, request.ID, failedWriteAction(action), actor, map[string]string{
			audit.DataError: err.Error(),
		})
		return false
	}

	s.sendDecisionEmail(ctx, request, config, actor, opts)

	s.appendEntry(ctx, request.ID, terminalAction(action), actor, map[string]string{
		audit.DataFromRole: models.JoinRoles(snapshot),
		audit.DataToRole:   role,
	})

	s.publish(ctx, request, action, actor)
	return true
}

// applyReopen restores the snapshot captured at the most recent approve or
// reject. Repeated cycles restore only the immediately prior snapshot, never
// deeper history. No email is sent.
func (s *Service) applyReopen(ctx context.Context, request *models.Request, actor id.UserID) bool {
	fromStatus := request.Status
	restored := append([]string(nil), request.OldRoles...)

	if err := s.roles.RestoreRoles(ctx, request.UserID, restored); err != nil {
		ports.LogEvent(ctx, s.logger, "decision_role_restore_failed",
			"verification_id", request.ID.String(), "error", err)
		return false
	}

	expectedVersion := request.Version
	request.ApplyReopen()
	if err := s.requests.Update(ctx, request, expectedVersion); err != nil {
		s.appendEntry(ctx, request.ID, audit.ActionReopenFailedWrite, actor, map[string]string{
			audit.DataError: err.Error(),
		})
		return false
	}

	s.appendEntry(ctx, request.ID, audit.ActionReopened, actor, map[string]string{
		audit.DataFromStatus: string(fromStatus),
		audit.DataToRole:     models.JoinRoles(restored),
	})

	s.publish(ctx, request, models.ActionReopen, actor)
	return true
}

// applyResend replays the email matching the current decided status. Strictly
// a notification: status, roles, snapshot, and processing stamp all stay
// untouched.
func (s *Service) applyResend(ctx context.Context, request *models.Request, actor id.UserID, opts Options) bool {
	config, err := s.configs.GetByFormID(ctx, request.FormID)
	if err != nil {
		ports.LogEvent(ctx, s.logger, "decision_config_missing",
			"verification_id", request.ID.String(), "form_id", request.FormID.String())
		return false
	}

	s.appendEntry(ctx, request.ID, audit.ActionResend, actor, map[string]string{
		audit.DataFromStatus: string(request.Status),
	})
	s.sendDecisionEmail(ctx, request, config, actor, opts)
	return true
}

// sendDecisionEmail renders and sends the email matching the request's
// current status. Outcomes land in the audit trail; failures never propagate.
func (s *Service) sendDecisionEmail(ctx context.Context, request *models.Request, config *models.FormConfig, actor id.UserID, opts Options) {
	// A service wired without mail delivery still applies transitions.
	if s.notifier == nil || s.templates == nil {
		return
	}
	subject, body, ok := config.DecisionTemplate(request.Status)
	if !ok {
		return
	}

	address := s.lookupEmail(ctx, request.UserID)
	if !pkgemail.Valid(address) {
		s.metrics.IncrementEmail("skipped")
		s.appendEntry(ctx, request.ID, audit.ActionEmailSkipped, actor, map[string]string{
			audit.DataReason: skipReasonBadEmail,
		})
		return
	}

	tmplCtx := s.buildEmailContext(ctx, request, address)
	msg := ports.Message{
		To:      []string{address},
		Subject: s.templates.Render(subject, tmplCtx),
		Body:    s.templates.Render(body, tmplCtx),
	}
	if opts.CCSelf && !actor.IsNil() {
		if actorEmail := s.lookupEmail(ctx, actor); pkgemail.Valid(actorEmail) {
			msg.BCC = []string{actorEmail}
		}
	}

	if err := s.notifier.Send(ctx, msg); err != nil {
		s.metrics.IncrementEmail("failed")
		s.appendEntry(ctx, request.ID, audit.ActionEmailFailed, actor, map[string]string{
			audit.DataRecipient: address,
			audit.DataError:     err.Error(),
		})
		return
	}
	s.metrics.IncrementEmail("sent")
	s.appendEntry(ctx, request.ID, audit.ActionEmailSent, actor, map[string]string{
		audit.DataRecipient: address,
	})
}

func (s *Service) buildEmailContext(ctx context.Context, request *models.Request, address string) map[string]any {
	name := s.lookupDisplayName(ctx, request.UserID)
	if name == "" {
		name = pkgemail.DeriveNameFromEmail(address)
	}
	return map[string]any{
		"user": map[string]any{
			"id":    request.UserID.String(),
			"name":  name,
			"email": address,
		},
		"request": map[string]any{
			"id":     request.ID.String(),
			"status": string(request.Status),
		},
		"form": map[string]any{
			"id": request.FormID.String(),
		},
		// Legacy flat tokens kept for templates authored before dotted paths.
		"user_name":  name,
		"user_email": address,
		"form_id":    request.FormID.String(),
	}
}

func (s *Service) lookupEmail(ctx context.Context, userID id.UserID) string {
	if s.directory == nil {
		return ""
	}
	address, err := s.directory.Email(ctx, userID)
	if err != nil {
		return ""
	}
	return address
}

func (s *Service) lookupDisplayName(ctx context.Context, userID id.UserID) string {
	if s.directory == nil {
		return ""
	}
	name, err := s.directory.DisplayName(ctx, userID)
	if err != nil {
		return ""
	}
	return name
}

func (s *Service) appendEntry(ctx context.Context, requestID id.RequestID, action audit.Action, actor id.UserID, data map[string]string) {
	if s.trail == nil {
		return
	}
	err := s.trail.Append(ctx, audit.Entry{
		RequestID: requestID,
		ActorID:   actor,
		Action:    action,
		Data:      data,
	})
	if err != nil && s.logger != nil {
		// Best effort: a dead audit store must not mask the original outcome.
		s.logger.WarnContext(ctx, "failed to append audit entry",
			"verification_id", requestID.String(), "action", string(action), "error", err)
	}
}

func (s *Service) publish(ctx context.Context, request *models.Request, action models.Action, actor id.UserID) {
	if s.subscriber == nil {
		return
	}
	event := ports.DecisionMade{
		RequestID: request.ID,
		UserID:    request.UserID,
		FormID:    request.FormID,
		Action:    action,
		Status:    request.Status,
		ActorID:   actor,
		Timestamp: requestcontext.Now(ctx).UTC(),
	}
	if err := s.subscriber.Notify(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "decision broadcast failed",
			"verification_id", request.ID.String(), "error", err)
	}
}

func beginAction(action models.Action) audit.Action {
	if action == models.ActionApprove {
		return audit.ActionApproveBegin
	}
	return audit.ActionRejectBegin
}

func terminalAction(action models.Action) audit.Action {
	if action == models.ActionApprove {
		return audit.ActionApproved
	}
	return audit.ActionRejected
}

func failedWriteAction(action models.Action) audit.Action {
	if action == models.ActionApprove {
		return audit.ActionApproveFailedWrite
	}
	return audit.ActionRejectFailedWrite
}
