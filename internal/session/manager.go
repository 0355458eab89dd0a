// Package session supervises the per-account relay sessions: one Telegram
// client plus one engine per enabled account, restarted with backoff when the
// connection drops.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/teleflow/internal/relay"
	"github.com/nextlevelbuilder/teleflow/internal/store"
	"github.com/nextlevelbuilder/teleflow/internal/telegram"
)

const (
	reconnectBaseDelay = 2 * time.Second
	reconnectMaxDelay  = 2 * time.Minute
)

// Options tunes every account session alike.
type Options struct {
	AlbumWindow   time.Duration
	RatePerMin    int
	DownloadDir   string
	MediaMaxBytes int64
	Proxy         string
	Logger        *slog.Logger
}

// Manager runs one session per enabled account. A failing account reconnects
// independently and never takes the others down.
type Manager struct {
	stores *store.Stores
	opts   Options
	log    *slog.Logger

	started   time.Time
	connected atomic.Int64

	mu      sync.Mutex
	engines map[string]*relay.Engine
}

func NewManager(stores *store.Stores, opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		stores:  stores,
		opts:    opts,
		log:     log,
		engines: make(map[string]*relay.Engine),
	}
}

// Run starts a session for every enabled account and blocks until ctx is
// cancelled. Returns an error only when no account can be started at all.
func (m *Manager) Run(ctx context.Context) error {
	accounts, err := m.stores.Accounts.List(ctx)
	if err != nil {
		return err
	}
	m.started = time.Now()

	g, gctx := errgroup.WithContext(ctx)
	enabled := 0
	for _, acct := range accounts {
		if !acct.Enabled {
			continue
		}
		enabled++
		g.Go(func() error {
			m.runAccount(gctx, acct)
			return nil
		})
	}
	if enabled == 0 {
		m.log.Warn("no enabled accounts, nothing to relay")
	} else {
		m.log.Info("relay started", "accounts", enabled)
	}
	return g.Wait()
}

// runAccount keeps one account's session alive until ctx ends. Connection
// errors back off exponentially; a session that survived a while resets the
// backoff.
func (m *Manager) runAccount(ctx context.Context, acct store.Account) {
	log := m.log.With("account", acct.Name)
	delay := reconnectBaseDelay

	for {
		startedAt := time.Now()
		err := m.runSession(ctx, acct)
		if ctx.Err() != nil {
			return
		}
		if time.Since(startedAt) > time.Minute {
			delay = reconnectBaseDelay
		}
		log.Error("session ended, reconnecting", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay *= 2; delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

func (m *Manager) runSession(ctx context.Context, acct store.Account) error {
	client, err := telegram.New(telegram.Config{
		Account:       acct.Name,
		Token:         acct.Token,
		Proxy:         m.opts.Proxy,
		DownloadDir:   m.opts.DownloadDir,
		MediaMaxBytes: m.opts.MediaMaxBytes,
	}, m.log)
	if err != nil {
		return err
	}

	engine := relay.NewEngine(ctx, acct.Name, m.stores.Rules, client, relay.Options{
		AlbumWindow: m.opts.AlbumWindow,
		RatePerMin:  m.opts.RatePerMin,
		Logger:      m.log,
	})
	defer engine.Close()

	m.mu.Lock()
	m.engines[acct.Name] = engine
	m.mu.Unlock()
	m.connected.Add(1)
	defer func() {
		m.mu.Lock()
		delete(m.engines, acct.Name)
		m.mu.Unlock()
		m.connected.Add(-1)
	}()

	return client.Listen(ctx, engine.HandleMessage)
}

// ConnectedCount reports how many account sessions are currently live.
func (m *Manager) ConnectedCount() int {
	return int(m.connected.Load())
}

// Uptime reports how long the manager has been running.
func (m *Manager) Uptime() time.Duration {
	if m.started.IsZero() {
		return 0
	}
	return time.Since(m.started)
}
