package main

import (
	"context"
	"database/sql"
	"log/slog"

	"veriflow/internal/verification/intake"
	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/tx"
)

// txIntake runs each submission inside one database transaction so the
// request row and its audit entries commit (or roll back) together. Only
// wired when Postgres storage is in use; the in-memory stores have nothing
// to join.
type txIntake struct {
	db     *sql.DB
	inner  *intake.Service
	logger *slog.Logger
}

func newTxIntake(db *sql.DB, inner *intake.Service, logger *slog.Logger) *txIntake {
	return &txIntake{db: db, inner: inner, logger: logger}
}

func (t *txIntake) HandleSubmission(ctx context.Context, sub models.Submission) id.RequestID {
	var requestID id.RequestID
	err := tx.RunInTx(ctx, t.db, func(ctx context.Context) error {
		requestID = t.inner.HandleSubmission(ctx, sub)
		return nil
	})
	if err != nil {
		t.logger.ErrorContext(ctx, "submission transaction failed",
			"user_id", sub.UserID.String(), "error", err)
		return id.RequestID{}
	}
	return requestID
}
