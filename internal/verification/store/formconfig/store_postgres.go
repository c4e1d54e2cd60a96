package formconfig

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
	pstrings "veriflow/pkg/platform/strings"
)

// Postgres reads form configs maintained by the settings layer outside this
// engine. Recipient lists are stored comma-joined.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) GetByFormID(ctx context.Context, formID id.FormID) (*models.FormConfig, error) {
	query := `
		SELECT form_id, approved_role, rejected_role,
		       approve_subject, approve_body, reject_subject, reject_body,
		       recipients
		FROM form_configs
		WHERE form_id = $1
	`
	var (
		config     models.FormConfig
		rawFormID  string
		recipients string
	)
	err := s.db.QueryRowContext(ctx, query, string(formID)).Scan(
		&rawFormID,
		&config.ApprovedRole,
		&config.RejectedRole,
		&config.ApproveSubject,
		&config.ApproveBody,
		&config.RejectSubject,
		&config.RejectBody,
		&recipients,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load form config: %w", err)
	}
	config.FormID = id.FormID(rawFormID)
	config.Recipients = pstrings.DedupeAndTrim(strings.Split(recipients, ","))
	return &config, nil
}
