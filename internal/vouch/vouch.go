// Package vouch hands submissions off to an external verifier instead of the
// default admin notification. The handoff email carries a signed token so the
// external vouch service can prove which request and voucher it speaks for.
package vouch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"veriflow/internal/audit"
	"veriflow/internal/template"
	"veriflow/internal/verification/models"
	"veriflow/internal/verification/ports"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
	pkgemail "veriflow/pkg/email"
	"veriflow/pkg/requestcontext"
)

const defaultTokenTTL = 7 * 24 * time.Hour

// Claims bind a vouch token to one request and one voucher address.
type Claims struct {
	RequestID    string `json:"request_id"`
	UserID       string `json:"user_id"`
	VoucherEmail string `json:"voucher_email"`
	jwt.RegisteredClaims
}

const (
	defaultSubject = "Please vouch for {{submitter.name}}"
	defaultBody    = "<p>{{submitter.name}} has asked you to vouch for their " +
		"verification request.</p><p><a href=\"{{vouch.link}}\">Review the request</a></p>"
)

// Service implements ports.VouchDelegate.
type Service struct {
	signingKey []byte
	issuer     string
	linkBase   string
	notifier   ports.Notifier
	templates  *template.Engine
	trail      *audit.Trail
	tokenTTL   time.Duration
	logger     *slog.Logger
}

type Option func(*Service)

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(signingKey, issuer, linkBase string, notifier ports.Notifier, templates *template.Engine, trail *audit.Trail, opts ...Option) (*Service, error) {
	if signingKey == "" {
		return nil, errors.New("vouch signing key is required")
	}
	svc := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		linkBase:   linkBase,
		notifier:   notifier,
		templates:  templates,
		trail:      trail,
		tokenTTL:   defaultTokenTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Delegate sends the vouch handoff email when the submission names a valid
// external verifier. Returns false without error when there is nothing to
// delegate, so intake falls back to the admin notification.
func (s *Service) Delegate(ctx context.Context, request *models.Request, sub models.Submission) (bool, error) {
	if !pkgemail.Valid(sub.VoucherEmail) {
		return false, nil
	}

	token, err := s.issueToken(ctx, request.ID, request.UserID, sub.VoucherEmail)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign vouch token")
	}

	name := sub.DisplayName
	if name == "" {
		name = pkgemail.DeriveNameFromEmail(sub.VoucherEmail)
	}
	tmplCtx := map[string]any{
		"submitter": map[string]any{"name": name, "id": request.UserID.String()},
		"vouch": map[string]any{
			"link":  s.linkBase + "?token=" + token,
			"email": sub.VoucherEmail,
		},
		"form": map[string]any{"id": request.FormID.String()},
	}

	msg := ports.Message{
		To:      []string{sub.VoucherEmail},
		Subject: s.templates.Render(defaultSubject, tmplCtx),
		Body:    s.templates.Render(defaultBody, tmplCtx),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		ports.LogEvent(ctx, s.logger, "vouch_email_failed",
			"request_id", request.ID.String(), "error", err)
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to send vouch email")
	}

	if err := s.trail.Append(ctx, audit.Entry{
		RequestID: request.ID,
		Action:    audit.ActionVouchEmailSent,
		Data:      map[string]string{audit.DataRecipient: sub.VoucherEmail},
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to record vouch handoff", "error", err)
	}
	return true, nil
}

func (s *Service) issueToken(ctx context.Context, requestID id.RequestID, userID id.UserID, voucherEmail string) (string, error) {
	now := requestcontext.Now(ctx)
	claims := Claims{
		RequestID:    requestID.String(),
		UserID:       userID.String(),
		VoucherEmail: voucherEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// VerifyToken validates a token presented back by the vouch service and
// returns its claims.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid vouch token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid vouch token")
	}
	return claims, nil
}
