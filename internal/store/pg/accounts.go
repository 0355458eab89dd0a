package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/teleflow/internal/store"
)

// PGAccountStore implements store.AccountStore backed by Postgres.
type PGAccountStore struct {
	db *sql.DB
}

func NewPGAccountStore(db *sql.DB) *PGAccountStore {
	return &PGAccountStore{db: db}
}

func (s *PGAccountStore) Upsert(ctx context.Context, a store.Account) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, token, enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE SET token = EXCLUDED.token, enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
		a.Name, a.Token, a.Enabled, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

func (s *PGAccountStore) Get(ctx context.Context, name string) (store.Account, error) {
	var a store.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT name, token, enabled, created_at, updated_at FROM accounts WHERE name = $1`, name,
	).Scan(&a.Name, &a.Token, &a.Enabled, &a.Created, &a.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Account{}, fmt.Errorf("account %s: %w", name, store.ErrNotFound)
	}
	return a, err
}

func (s *PGAccountStore) List(ctx context.Context) ([]store.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, token, enabled, created_at, updated_at FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []store.Account
	for rows.Next() {
		var a store.Account
		if err := rows.Scan(&a.Name, &a.Token, &a.Enabled, &a.Created, &a.Updated); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGAccountStore) SetEnabled(ctx context.Context, name string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET enabled = $1, updated_at = $2 WHERE name = $3`,
		enabled, time.Now(), name)
	if err != nil {
		return fmt.Errorf("set account enabled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", name, store.ErrNotFound)
	}
	return nil
}

func (s *PGAccountStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", name, store.ErrNotFound)
	}
	return nil
}
