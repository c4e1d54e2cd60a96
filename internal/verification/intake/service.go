// Package intake consumes form submission events and decides whether a new
// verification request is created, an existing one reused, or the submission
// deduplicated. A user ends up with at most one request record; resubmission
// retargets it and the audit trail keeps the history.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"veriflow/internal/audit"
	"veriflow/internal/platform/metrics"
	"veriflow/internal/template"
	"veriflow/internal/verification/models"
	"veriflow/internal/verification/ports"
	id "veriflow/pkg/domain"
	pkgemail "veriflow/pkg/email"
	"veriflow/pkg/platform/sentinel"
	pstrings "veriflow/pkg/platform/strings"
	"veriflow/pkg/requestcontext"
)

const (
	defaultAdminSubject = "New verification request from {{user.name}}"
	defaultAdminBody    = "<p>{{user.name}} (user {{user.id}}) submitted form " +
		"{{form.id}}.</p><p><a href=\"{{admin.link}}\">Review request {{request.id}}</a></p>"
)

// Service is the intake guard.
type Service struct {
	requests  ports.RequestStore
	configs   ports.ConfigProvider
	roles     ports.RoleAssigner
	directory ports.DirectoryReader
	notifier  ports.Notifier
	templates *template.Engine
	trail     *audit.Trail
	vouch     ports.VouchDelegate
	metrics   *metrics.Metrics
	logger    *slog.Logger
	// adminLinkBase prefixes the review link in admin notifications.
	adminLinkBase string
}

type Option func(*Service)

func WithVouchDelegate(delegate ports.VouchDelegate) Option {
	return func(s *Service) {
		s.vouch = delegate
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

func WithAdminLinkBase(base string) Option {
	return func(s *Service) {
		s.adminLinkBase = base
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

// HandleSubmission applies the create-or-reuse-or-dedup algorithm and returns
// the resulting request ID. A zero ID means no request was produced: invalid
// input, an unconfigured form, an already verified user, or a persistence
// failure. Diagnostics go to the log and audit trail, never to the caller.
func (s *Service) HandleSubmission(ctx context.Context, sub models.Submission) id.RequestID {
	if !sub.IsActionable() {
		s.metrics.IncrementSubmission("ignored")
		return id.RequestID{}
	}

	config, err := s.configs.GetByFormID(ctx, sub.FormID)
	if err != nil {
		// Unconfigured forms are not verification forms; stay silent.
		if !errors.Is(err, sentinel.ErrNotFound) {
			ports.LogEvent(ctx, s.logger, "intake_config_lookup_failed",
				"form_id", sub.FormID.String(), "error", err)
		}
		s.metrics.IncrementSubmission("ignored")
		return id.RequestID{}
	}

	currentRoles, err := s.roles.GetRoles(ctx, sub.UserID)
	if err != nil {
		ports.LogEvent(ctx, s.logger, "intake_role_lookup_failed",
			"user_id", sub.UserID.String(), "error", err)
		s.metrics.IncrementSubmission("failed")
		return id.RequestID{}
	}
	if slices.Contains(currentRoles, config.ApprovedRole) {
		// Already verified; a redundant request would only confuse admins.
		s.metrics.IncrementSubmission("ignored")
		return id.RequestID{}
	}

	// Only a definitive "no such request" may fall through to the next
	// branch. Treating a flaky read as absence would mint a second request
	// for a user who already has one pending.
	existing, err := s.requests.FindPending(ctx, sub.UserID, sub.FormID)
	switch {
	case err == nil:
		return s.dedupe(ctx, existing, sub, config)
	case !errors.Is(err, sentinel.ErrNotFound):
		ports.LogEvent(ctx, s.logger, "intake_pending_lookup_failed",
			"user_id", sub.UserID.String(), "error", err)
		s.metrics.IncrementSubmission("failed")
		return id.RequestID{}
	}

	latest, err := s.requests.FindLatest(ctx, sub.UserID)
	switch {
	case err == nil:
		return s.reuse(ctx, latest, sub, config, currentRoles)
	case !errors.Is(err, sentinel.ErrNotFound):
		ports.LogEvent(ctx, s.logger, "intake_latest_lookup_failed",
			"user_id", sub.UserID.String(), "error", err)
		s.metrics.IncrementSubmission("failed")
		return id.RequestID{}
	}

	return s.create(ctx, sub, config, currentRoles)
}

// dedupe records the repeat submission on the existing pending request
// without creating a duplicate.
func (s *Service) dedupe(ctx context.Context, existing *models.Request, sub models.Submission, config *models.FormConfig) id.RequestID {
	data := provenance(ctx, sub)
	data[audit.DataFromForm] = sub.FormID.String()
	data[audit.DataToForm] = sub.FormID.String()
	s.appendEntry(ctx, existing.ID, audit.ActionUpgradeSubmitted, data)

	s.metrics.IncrementSubmission("deduped")
	s.dispatch(ctx, existing, sub, config)
	return existing.ID
}

// reuse retargets the user's single request record at the new form and
// forces it back to pending.
func (s *Service) reuse(ctx context.Context, latest *models.Request, sub models.Submission, config *models.FormConfig, currentRoles []string) id.RequestID {
	fromStatus := latest.Status
	fromForm := latest.FormID

	expectedVersion := latest.Version
	latest.Retarget(sub.FormID, currentRoles)
	if err := s.requests.Update(ctx, latest, expectedVersion); err != nil {
		ports.LogEvent(ctx, s.logger, "intake_reuse_write_failed",
			"verification_id", latest.ID.String(), "error", err)
		s.metrics.IncrementSubmission("failed")
		return id.RequestID{}
	}

	data := provenance(ctx, sub)
	data[audit.DataFromStatus] = string(fromStatus)
	data[audit.DataFromForm] = fromForm.String()
	data[audit.DataToForm] = sub.FormID.String()
	s.appendEntry(ctx, latest.ID, audit.ActionUpgradeSubmitted, data)

	s.metrics.IncrementSubmission("reused")
	s.dispatch(ctx, latest, sub, config)
	return latest.ID
}

func (s *Service) create(ctx context.Context, sub models.Submission, config *models.FormConfig, currentRoles []string) id.RequestID {
	request := &models.Request{
		UserID:    sub.UserID,
		FormID:    sub.FormID,
		Status:    models.StatusPending,
		OldRoles:  currentRoles,
		CreatedAt: requestcontext.Now(ctx).UTC(),
	}
	requestID, err := s.requests.Create(ctx, request)
	if err != nil {
		ports.LogEvent(ctx, s.logger, "intake_create_failed",
			"user_id", sub.UserID.String(), "error", err)
		s.metrics.IncrementSubmission("failed")
		return id.RequestID{}
	}

	data := provenance(ctx, sub)
	data[audit.DataFormID] = sub.FormID.String()
	s.appendEntry(ctx, requestID, audit.ActionCreated, data)

	s.metrics.IncrementSubmission("created")
	s.dispatch(ctx, request, sub, config)
	return requestID
}

// dispatch hands the submission to the vouching flow when it names an
// external verifier; otherwise the configured admins are notified. The two
// are mutually exclusive.
func (s *Service) dispatch(ctx context.Context, request *models.Request, sub models.Submission, config *models.FormConfig) {
	if s.vouch != nil {
		delegated, err := s.vouch.Delegate(ctx, request, sub)
		if err != nil {
			ports.LogEvent(ctx, s.logger, "intake_vouch_failed",
				"verification_id", request.ID.String(), "error", err)
		}
		if delegated {
			s.metrics.IncrementVouchHandoff()
			return
		}
	}
	s.notifyAdmins(ctx, request, sub, config)
}

func (s *Service) notifyAdmins(ctx context.Context, request *models.Request, sub models.Submission, config *models.FormConfig) {
	if s.notifier == nil || s.templates == nil {
		return
	}
	// Forms sometimes list the same admin twice with different casing.
	recipients := pstrings.DedupeAndTrimLower(config.Recipients)
	if len(recipients) == 0 {
		return
	}

	name := sub.DisplayName
	address := s.lookupEmail(ctx, request.UserID)
	if name == "" && address != "" {
		name = pkgemail.DeriveNameFromEmail(address)
	}

	tmplCtx := map[string]any{
		"user": map[string]any{
			"id":    request.UserID.String(),
			"name":  name,
			"email": address,
		},
		"request": map[string]any{"id": request.ID.String()},
		"form":    map[string]any{"id": request.FormID.String()},
		"admin":   map[string]any{"link": s.adminLinkBase + request.ID.String()},
		"fields":  sub.Fields,
	}

	msg := ports.Message{
		To:      recipients,
		Subject: s.templates.Render(defaultAdminSubject, tmplCtx),
		Body:    s.templates.Render(defaultAdminBody, tmplCtx),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		ports.LogEvent(ctx, s.logger, "intake_admin_notify_failed",
			"verification_id", request.ID.String(), "error", err)
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

func (s *Service) appendEntry(ctx context.Context, requestID id.RequestID, action audit.Action, data map[string]string) {
	if s.trail == nil {
		return
	}
	err := s.trail.Append(ctx, audit.Entry{
		RequestID: requestID,
		Action:    action,
		Data:      data,
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to append audit entry",
			"verification_id", requestID.String(), "action", string(action), "error", err)
	}
}

// provenance captures where the submission came from for the audit trail.
func provenance(ctx context.Context, sub models.Submission) map[string]string {
	data := make(map[string]string, 4)
	if sub.Provider != "" {
		data[audit.DataProvider] = sub.Provider
	}
	if sub.Event != "" {
		data[audit.DataEvent] = sub.Event
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		data["client_ip"] = ip
	}
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		data["user_agent"] = ua
	}
	return data
}
