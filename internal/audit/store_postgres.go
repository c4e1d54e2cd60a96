package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "veriflow/pkg/domain"
	txcontext "veriflow/pkg/platform/tx"
)

// PostgresStore persists audit entries. Ordering relies on the seq bigserial,
// not timestamps, so entries appended within the same instant keep their
// insertion order.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	var data []byte
	if len(entry.Data) > 0 {
		var err error
		data, err = json.Marshal(entry.Data)
		if err != nil {
			return fmt.Errorf("marshal audit data: %w", err)
		}
	}

	query := `
		INSERT INTO audit_entries (request_id, occurred_at, actor_id, action, data)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(entry.RequestID),
		entry.Timestamp,
		int64(entry.ActorID),
		string(entry.Action),
		data,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRequest(ctx context.Context, requestID id.RequestID) ([]Entry, error) {
	query := `
		SELECT request_id, occurred_at, actor_id, action, data
		FROM audit_entries
		WHERE request_id = $1
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			reqID   uuid.UUID
			actorID int64
			data    []byte
		)
		if err := rows.Scan(&reqID, &entry.Timestamp, &actorID, &entry.Action, &data); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.RequestID = id.RequestID(reqID)
		entry.ActorID = id.UserID(actorID)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &entry.Data); err != nil {
				return nil, fmt.Errorf("unmarshal audit data: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
