package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/teleflow/internal/store"
)

// AccountStore implements store.AccountStore on SQLite.
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Upsert(ctx context.Context, a store.Account) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, token, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET token = excluded.token, enabled = excluded.enabled, updated_at = excluded.updated_at`,
		a.Name, a.Token, a.Enabled, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

func (s *AccountStore) Get(ctx context.Context, name string) (store.Account, error) {
	var a store.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT name, token, enabled, created_at, updated_at FROM accounts WHERE name = ?`, name,
	).Scan(&a.Name, &a.Token, &a.Enabled, &a.Created, &a.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Account{}, fmt.Errorf("account %s: %w", name, store.ErrNotFound)
	}
	return a, err
}

func (s *AccountStore) List(ctx context.Context) ([]store.Account, error) {
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

func (s *AccountStore) SetEnabled(ctx context.Context, name string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET enabled = ?, updated_at = ? WHERE name = ?`,
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

func (s *AccountStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE name = ?`, name)
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
