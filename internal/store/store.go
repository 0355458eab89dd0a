package store

import (
	"context"
	"errors"
	"time"

	"github.com/nextlevelbuilder/teleflow/internal/relay"
)

// ErrNotFound is returned when a rule or account does not exist.
var ErrNotFound = errors.New("not found")

// Account is one Telegram identity the relay runs under. The bot token is
// stored alongside so accounts can be added at runtime without a restart.
type Account struct {
	Name    string
	Token   string
	Enabled bool
	Created time.Time
	Updated time.Time
}

// RuleStore persists forwarding rules. It is a superset of relay.RuleSource:
// the engine only reads rules and bumps counters, the CLI does the rest.
type RuleStore interface {
	relay.RuleSource

	Create(ctx context.Context, rule *relay.Rule) error
	Get(ctx context.Context, id int64) (relay.Rule, error)
	List(ctx context.Context) ([]relay.Rule, error)
	Update(ctx context.Context, rule relay.Rule) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	Delete(ctx context.Context, id int64) error
}

// AccountStore persists relay accounts.
type AccountStore interface {
	Upsert(ctx context.Context, a Account) error
	Get(ctx context.Context, name string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	SetEnabled(ctx context.Context, name string, enabled bool) error
	Delete(ctx context.Context, name string) error
}

// Stores is the top-level container for all storage backends.
type Stores struct {
	Rules    RuleStore
	Accounts AccountStore

	// Close releases the underlying database handle.
	Close func() error
}

// StoreConfig selects and parameterizes the backend.
type StoreConfig struct {
	// Mode is "standalone" (embedded SQLite) or "managed" (Postgres).
	Mode string
	// SQLitePath is the database file for standalone mode.
	SQLitePath string
	// PostgresDSN comes from the environment only, never from config files.
	PostgresDSN string
}
