package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"voxid/internal/verification/models"
	"voxid/pkg/platform/sentinel"
)

const (
	recordsTable = "verification_records"
	// Default name Postgres gives the UNIQUE constraint on verification_id.
	verificationIDConstraint = "verification_records_verification_id_key"
)

var recordColumns = []string{
	"account_id", "verification_id", "is_verified", "status", "score", "demographics", "created_at", "updated_at",
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// PostgresStore persists records in verification_records. Demographics are
// stored as JSONB; account_id is the primary key.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, rec *models.Record) error {
	demographics, err := json.Marshal(rec.Demographics)
	if err != nil {
		return fmt.Errorf("encode demographics: %w", err)
	}

	query, args, err := psql.Insert(recordsTable).
		Columns(recordColumns...).
		Values(rec.AccountID, rec.VerificationID.String(), rec.IsVerified, string(rec.Status), rec.Score,
			string(demographics), rec.CreatedAt, rec.UpdatedAt).
		Suffix("ON CONFLICT (account_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert record: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == verificationIDConstraint {
			return models.ErrVerificationIDTaken
		}
		return fmt.Errorf("insert record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert record rows: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, accountID string) (*models.Record, error) {
	query, args, err := psql.Select(recordColumns...).
		From(recordsTable).
		Where(squirrel.Eq{"account_id": accountID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select record: %w", err)
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) All(ctx context.Context) ([]models.Record, error) {
	query, args, err := psql.Select(recordColumns...).From(recordsTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list records: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From(recordsTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count records: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	query, args, err := psql.Delete(recordsTable).ToSql()
	if err != nil {
		return fmt.Errorf("build clear records: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.Record, error) {
	var (
		rec            models.Record
		verificationID string
		status         string
		demographics   []byte
	)
	if err := row.Scan(&rec.AccountID, &verificationID, &rec.IsVerified, &status, &rec.Score,
		&demographics, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.VerificationID = models.VerificationID(verificationID)
	rec.Status = models.Status(status)
	if err := json.Unmarshal(demographics, &rec.Demographics); err != nil {
		return nil, fmt.Errorf("decode demographics: %w", err)
	}
	return &rec, nil
}
