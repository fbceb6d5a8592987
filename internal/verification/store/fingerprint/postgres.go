package fingerprint

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists digests in the evidence_fingerprints table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Exists(ctx context.Context, digest string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM evidence_fingerprints WHERE digest = $1)`, digest,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check fingerprint: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Add(ctx context.Context, digest string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence_fingerprints (digest) VALUES ($1) ON CONFLICT (digest) DO NOTHING`, digest,
	)
	if err != nil {
		return fmt.Errorf("add fingerprint: %w", err)
	}
	return nil
}

// Reserve inserts all digests in one transaction and rolls back on the first one
// that is already present. The primary key makes concurrent reservations from
// other processes serialize on the conflicting row.
func (s *PostgresStore) Reserve(ctx context.Context, digests ...string) (string, error) {
	if len(digests) == 0 {
		return "", nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin fingerprint tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, d := range digests {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO evidence_fingerprints (digest) VALUES ($1) ON CONFLICT (digest) DO NOTHING`, d,
		)
		if err != nil {
			return "", fmt.Errorf("reserve fingerprint: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("reserve fingerprint rows: %w", err)
		}
		if n == 0 {
			return d, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit fingerprint tx: %w", err)
	}
	return "", nil
}
