package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
	txcontext "veriflow/pkg/platform/tx"
)

// Postgres persists requests in the verification_requests table. The version
// column is the optimistic-concurrency guard: updates name the version they
// read, and a zero-row update means another writer committed first.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const requestColumns = `id, user_id, form_id, status, old_roles, processed_by, processed_at, created_at, version`

func (s *Postgres) Create(ctx context.Context, request *models.Request) (id.RequestID, error) {
	if request.ID.IsNil() {
		request.ID = id.NewRequestID()
	}
	request.Version = 1

	query := `
		INSERT INTO verification_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(request.ID),
		int64(request.UserID),
		string(request.FormID),
		string(request.Status),
		models.JoinRoles(request.OldRoles),
		nullUserID(request.ProcessedBy),
		nullTime(request.ProcessedAt),
		request.CreatedAt,
		request.Version,
	)
	if err != nil {
		return id.RequestID{}, fmt.Errorf("insert verification request: %w", err)
	}
	return request.ID, nil
}

func (s *Postgres) Load(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM verification_requests WHERE id = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(requestID)))
}

func (s *Postgres) Update(ctx context.Context, request *models.Request, expectedVersion int64) error {
	query := `
		UPDATE verification_requests
		SET form_id = $1, status = $2, old_roles = $3, processed_by = $4,
		    processed_at = $5, version = $6
		WHERE id = $7 AND version = $8
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		string(request.FormID),
		string(request.Status),
		models.JoinRoles(request.OldRoles),
		nullUserID(request.ProcessedBy),
		nullTime(request.ProcessedAt),
		expectedVersion+1,
		uuid.UUID(request.ID),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update verification request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification request: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or another writer bumped the version.
		if _, loadErr := s.Load(ctx, request.ID); errors.Is(loadErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	request.Version = expectedVersion + 1
	return nil
}

func (s *Postgres) FindPending(ctx context.Context, userID id.UserID, formID id.FormID) (*models.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM verification_requests
		WHERE user_id = $1 AND form_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query,
		int64(userID), string(formID), string(models.StatusPending)))
}

func (s *Postgres) FindLatest(ctx context.Context, userID id.UserID) (*models.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM verification_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, int64(userID)))
}

func (s *Postgres) scanOne(row *sql.Row) (*models.Request, error) {
	var (
		request     models.Request
		requestID   uuid.UUID
		userID      int64
		formID      string
		status      string
		oldRoles    string
		processedBy sql.NullInt64
		processedAt sql.NullTime
	)
	err := row.Scan(&requestID, &userID, &formID, &status, &oldRoles,
		&processedBy, &processedAt, &request.CreatedAt, &request.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan verification request: %w", err)
	}

	request.ID = id.RequestID(requestID)
	request.UserID = id.UserID(userID)
	request.FormID = id.FormID(formID)
	request.Status = models.Status(status)
	request.OldRoles = models.SplitRoles(oldRoles)
	if processedBy.Valid {
		request.ProcessedBy = id.UserID(processedBy.Int64)
	}
	if processedAt.Valid {
		at := processedAt.Time
		request.ProcessedAt = &at
	}
	return &request, nil
}

func nullUserID(userID id.UserID) sql.NullInt64 {
	if userID.IsNil() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(userID), Valid: true}
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}
