// Package telegram adapts the Bot API (via telego) to the relay transport.
// One Client serves one account.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/teleflow/internal/relay"
)

// defaultMediaMaxBytes is the Bot API file download limit (20MB).
const defaultMediaMaxBytes int64 = 20 * 1024 * 1024

// Config parameterizes one account connection.
type Config struct {
	Account       string
	Token         string
	Proxy         string
	DownloadDir   string
	MediaMaxBytes int64
}

// Client connects one account to Telegram via long polling and implements
// relay.Transport for it.
type Client struct {
	bot *telego.Bot
	cfg Config
	log *slog.Logger

	// peers remembers every chat seen in the update stream, keyed by chat id.
	// This is the bot-side stand-in for a user account's dialog list.
	peers sync.Map // int64 → relay.Peer

	pollDone chan struct{}
}

// New creates a client for one account. The connection is not started until
// Listen.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	var opts []telego.BotOption
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	if cfg.MediaMaxBytes == 0 {
		cfg.MediaMaxBytes = defaultMediaMaxBytes
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		bot: bot,
		cfg: cfg,
		log: log.With("account", cfg.Account),
	}, nil
}

// Listen long-polls for updates and feeds every convertible message to
// handler, in arrival order. Blocks until ctx is cancelled or the update
// stream closes.
func (c *Client) Listen(ctx context.Context, handler func(context.Context, *relay.Message)) error {
	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
		AllowedUpdates: []string{
			"message",
			"channel_post",
		},
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	c.log.Info("telegram account connected", "bot_username", c.bot.Username())
	c.pollDone = make(chan struct{})
	defer close(c.pollDone)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				c.log.Info("telegram updates channel closed")
				return nil
			}
			tgMsg := update.Message
			if tgMsg == nil {
				tgMsg = update.ChannelPost
			}
			if tgMsg == nil {
				c.log.Debug("update skipped (no message)", "update_id", update.UpdateID)
				continue
			}
			c.rememberChat(tgMsg.Chat)
			handler(ctx, Convert(tgMsg))
		}
	}
}

// Done reports when the polling loop has exited.
func (c *Client) Done() <-chan struct{} {
	if c.pollDone == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.pollDone
}

func (c *Client) rememberChat(chat telego.Chat) {
	c.peers.Store(chat.ID, relay.Peer{
		ID:       chat.ID,
		Username: chat.Username,
		Title:    chat.Title,
	})
}

// ResolveUsername resolves an @username via getChat.
func (c *Client) ResolveUsername(ctx context.Context, username string) (relay.Peer, error) {
	chat, err := c.bot.GetChat(ctx, &telego.GetChatParams{ChatID: tu.Username(username)})
	if err != nil {
		return relay.Peer{}, fmt.Errorf("getChat %s: %w", username, err)
	}
	p := relay.Peer{ID: chat.ID, Username: chat.Username, Title: chat.Title}
	c.peers.Store(p.ID, p)
	return p, nil
}

// ResolvePeerID resolves a numeric chat id via getChat.
func (c *Client) ResolvePeerID(ctx context.Context, id int64) (relay.Peer, error) {
	chat, err := c.bot.GetChat(ctx, &telego.GetChatParams{ChatID: tu.ID(id)})
	if err != nil {
		return relay.Peer{}, fmt.Errorf("getChat %d: %w", id, err)
	}
	p := relay.Peer{ID: chat.ID, Username: chat.Username, Title: chat.Title}
	c.peers.Store(p.ID, p)
	return p, nil
}

// ResolveChannelID retries a bare channel id in its supergroup wire form,
// with the -100 prefix prepended.
func (c *Client) ResolveChannelID(ctx context.Context, id int64) (relay.Peer, error) {
	if id < 0 {
		id = -id
	}
	wire, err := strconv.ParseInt("-100"+strconv.FormatInt(id, 10), 10, 64)
	if err != nil {
		return relay.Peer{}, fmt.Errorf("channel id %d: %w", id, err)
	}
	return c.ResolvePeerID(ctx, wire)
}

// Dialogs lists the chats seen so far in the update stream. A bot has no real
// dialog list; this covers every chat the account actively relays from.
func (c *Client) Dialogs(_ context.Context) ([]relay.Peer, error) {
	var out []relay.Peer
	c.peers.Range(func(_, v any) bool {
		out = append(out, v.(relay.Peer))
		return true
	})
	return out, nil
}

// History is not available through the Bot API; backfill requires a user
// account session.
func (c *Client) History(_ context.Context, _ relay.Peer, _ int) ([]*relay.Message, error) {
	return nil, relay.ErrHistoryUnsupported
}

var _ relay.Transport = (*Client)(nil)
