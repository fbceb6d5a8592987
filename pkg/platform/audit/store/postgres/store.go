package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	audit "voxid/pkg/platform/audit"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var eventColumns = []string{
	"timestamp", "account_id", "action", "reason", "verification_id", "request_id", "actor",
}

// Store keeps audit events in audit_events next to the verification records.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query, args, err := insertEvent(event)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByAccount returns events for one account, newest first.
func (s *Store) ListByAccount(ctx context.Context, accountID string) ([]audit.Event, error) {
	return s.list(ctx, selectEvents().Where(squirrel.Eq{"account_id": accountID}))
}

// ListRecent returns the limit most recent events across all accounts.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return s.list(ctx, selectEvents().Limit(clampLimit(limit)))
}

func (s *Store) list(ctx context.Context, q squirrel.SelectBuilder) ([]audit.Event, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Ids are UUIDv7 so the primary key index grows in time order.
func insertEvent(event audit.Event) (string, []any, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", nil, fmt.Errorf("generate audit id: %w", err)
	}
	query, args, err := psql.Insert("audit_events").
		Columns(append([]string{"id"}, eventColumns...)...).
		Values(id, event.Timestamp, event.AccountID, event.Action, event.Reason,
			event.VerificationID, event.RequestID, event.Actor).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build audit insert: %w", err)
	}
	return query, args, nil
}

func selectEvents() squirrel.SelectBuilder {
	return psql.Select(eventColumns...).From("audit_events").OrderBy("timestamp DESC")
}

// clampLimit keeps LIMIT inside Postgres' int4 range.
func clampLimit(limit int) uint64 {
	if limit < 0 {
		return 0
	}
	if limit > math.MaxInt32 {
		return math.MaxInt32
	}
	return uint64(limit)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var event audit.Event
		err := rows.Scan(
			&event.Timestamp,
			&event.AccountID,
			&event.Action,
			&event.Reason,
			&event.VerificationID,
			&event.RequestID,
			&event.Actor,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
