package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/teleflow/internal/relay"
	"github.com/nextlevelbuilder/teleflow/internal/store"
)

// PGRuleStore implements store.RuleStore backed by Postgres. Policy blobs are
// jsonb columns; malformed blobs decode to defaults instead of failing the
// whole rule set.
type PGRuleStore struct {
	db *sql.DB
}

func NewPGRuleStore(db *sql.DB) *PGRuleStore {
	return &PGRuleStore{db: db}
}

const pgRuleColumns = `id, account, sources, destinations, mode, filters, modify, enabled, forward_count`

func (s *PGRuleStore) Create(ctx context.Context, rule *relay.Rule) error {
	sources, destinations, filters, modify, err := encodeRule(*rule)
	if err != nil {
		return err
	}
	if rule.Mode == "" {
		rule.Mode = relay.ModeForward
	}
	now := time.Now()
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO forward_rules
		 (account, sources, destinations, mode, filters, modify, enabled, forward_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)
		 RETURNING id`,
		rule.Account, sources, destinations, string(rule.Mode), filters, modify,
		rule.Enabled, now, now,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (s *PGRuleStore) Get(ctx context.Context, id int64) (relay.Rule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pgRuleColumns+` FROM forward_rules WHERE id = $1`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return relay.Rule{}, fmt.Errorf("rule %d: %w", id, store.ErrNotFound)
	}
	return rule, err
}

func (s *PGRuleStore) List(ctx context.Context) ([]relay.Rule, error) {
	return s.query(ctx, `SELECT `+pgRuleColumns+` FROM forward_rules ORDER BY id`)
}

func (s *PGRuleStore) RulesForAccount(ctx context.Context, account string) ([]relay.Rule, error) {
	return s.query(ctx,
		`SELECT `+pgRuleColumns+` FROM forward_rules WHERE account = $1 AND enabled ORDER BY id`,
		account)
}

func (s *PGRuleStore) Update(ctx context.Context, rule relay.Rule) error {
	sources, destinations, filters, modify, err := encodeRule(rule)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE forward_rules SET
		 account = $1, sources = $2, destinations = $3, mode = $4, filters = $5, modify = $6,
		 enabled = $7, updated_at = $8
		 WHERE id = $9`,
		rule.Account, sources, destinations, string(rule.Mode), filters, modify,
		rule.Enabled, time.Now(), rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return affectedOne(res, rule.ID)
}

func (s *PGRuleStore) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE forward_rules SET enabled = $1, updated_at = $2 WHERE id = $3`,
		enabled, time.Now(), id)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	return affectedOne(res, id)
}

func (s *PGRuleStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM forward_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return affectedOne(res, id)
}

func (s *PGRuleStore) IncrementForwardCount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE forward_rules SET forward_count = forward_count + 1, updated_at = $1 WHERE id = $2`,
		time.Now(), id)
	return err
}

func (s *PGRuleStore) query(ctx context.Context, q string, args ...any) ([]relay.Rule, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []relay.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (relay.Rule, error) {
	var (
		rule                                  relay.Rule
		mode                                  string
		sources, destinations, filters, modif []byte
	)
	err := row.Scan(&rule.ID, &rule.Account, &sources, &destinations, &mode,
		&filters, &modif, &rule.Enabled, &rule.ForwardCount)
	if err != nil {
		return relay.Rule{}, err
	}
	json.Unmarshal(sources, &rule.Sources)
	json.Unmarshal(destinations, &rule.Destinations)
	rule.Mode = relay.Mode(mode)
	rule.Filters = relay.ParseFilterSet(filters)
	rule.Modify = relay.ParseModifySet(modif)
	return rule, nil
}

func encodeRule(rule relay.Rule) (sources, destinations, filters, modify []byte, err error) {
	if sources, err = json.Marshal(rule.Sources); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode sources: %w", err)
	}
	if destinations, err = json.Marshal(rule.Destinations); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode destinations: %w", err)
	}
	if filters, err = json.Marshal(rule.Filters); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode filters: %w", err)
	}
	if modify, err = json.Marshal(rule.Modify); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode modify: %w", err)
	}
	return sources, destinations, filters, modify, nil
}

func affectedOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("rule %d: %w", id, store.ErrNotFound)
	}
	return nil
}
