package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RuleSource is the engine's read path into the rule store, plus the single
// side effect the engine performs: the forward counter increment.
type RuleSource interface {
	// RulesForAccount returns the enabled rules for an account. Called before
	// every message so rule changes take effect between messages.
	RulesForAccount(ctx context.Context, account string) ([]Rule, error)
	// IncrementForwardCount bumps a rule's cumulative counter by one.
	IncrementForwardCount(ctx context.Context, ruleID int64) error
}

// Options tunes one account engine.
type Options struct {
	AlbumWindow time.Duration
	RatePerMin  int
	Logger      *slog.Logger
}

// Engine is the forwarding pipeline for one account: match → filter →
// (album aggregation) → transform → dispatch. Messages for one account are
// handled in arrival order; album flushes run as independent units of work.
type Engine struct {
	account    string
	rules      RuleSource
	transport  Transport
	resolver   *Resolver
	dispatcher *Dispatcher
	albums     *Aggregator
	log        *slog.Logger

	// flushCtx outlives individual HandleMessage calls so timer-driven album
	// flushes can dispatch after the triggering message returned.
	flushCtx context.Context
}

// NewEngine wires the pipeline for one account. ctx bounds background album
// flushes and should span the account's session lifetime.
func NewEngine(ctx context.Context, account string, rules RuleSource, transport Transport, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("account", account)

	resolver := NewResolver(transport)
	e := &Engine{
		account:    account,
		rules:      rules,
		transport:  transport,
		resolver:   resolver,
		dispatcher: NewDispatcher(transport, resolver, opts.RatePerMin, log),
		log:        log,
		flushCtx:   ctx,
	}
	e.albums = NewAggregator(opts.AlbumWindow, e.flushAlbum, log)
	return e
}

// HandleMessage evaluates one incoming message against the account's current
// rule set. Every matching rule is processed independently; a failure in one
// rule never blocks the others, and nothing here terminates the stream.
func (e *Engine) HandleMessage(ctx context.Context, msg *Message) {
	rules, err := e.rules.RulesForAccount(ctx, e.account)
	if err != nil {
		e.log.Error("rule lookup failed", "chat_id", msg.ChatID, "error", err)
		return
	}
	if len(rules) == 0 {
		return
	}

	for _, rule := range Candidates(msg.ChatID, msg.ChatUsername, rules) {
		e.processRule(ctx, rule, msg)
	}
}

func (e *Engine) processRule(ctx context.Context, rule Rule, msg *Message) {
	if skip, reason := ShouldSkip(msg, rule.Filters); skip {
		e.log.Debug("message skipped by filter",
			"rule_id", rule.ID, "chat_id", msg.ChatID, "filter", reason)
		return
	}

	// Grouped media is buffered and dispatched by the album flush timer.
	if msg.GroupID != "" {
		e.albums.Add(msg, rule)
		return
	}

	payload, ok, reason := Transform(msg.Text, rule.Filters, rule.Modify)
	if !ok {
		e.log.Debug("message skipped by content rule",
			"rule_id", rule.ID, "chat_id", msg.ChatID, "reason", reason)
		return
	}

	e.dispatch(ctx, rule, Unit{Messages: []*Message{msg}, Payload: payload})
}

// flushAlbum is the aggregator callback: transform the captured caption and
// dispatch the whole batch as one unit.
func (e *Engine) flushAlbum(f AlbumFlush) {
	payload, ok, reason := Transform(f.Caption, f.Rule.Filters, f.Rule.Modify)
	if !ok {
		e.log.Debug("album skipped by content rule",
			"rule_id", f.Rule.ID, "group_id", f.GroupID, "reason", reason)
		return
	}
	e.log.Info("album flushed",
		"rule_id", f.Rule.ID, "group_id", f.GroupID, "items", len(f.Messages))
	e.dispatch(e.flushCtx, f.Rule, Unit{Messages: f.Messages, Payload: payload, Album: true})
}

// dispatch runs one delivery pass, deferring it off the caller's goroutine
// when the rule's delay modifier is set: the update loop calls HandleMessage
// synchronously, so an inline sleep would stall the whole account stream and
// starve album aggregation for the duration of the wait.
func (e *Engine) dispatch(ctx context.Context, rule Rule, unit Unit) {
	if rule.Modify.DelayEnabled && rule.Modify.DelaySeconds > 0 {
		delay := time.Duration(rule.Modify.DelaySeconds) * time.Second
		time.AfterFunc(delay, func() {
			if e.flushCtx.Err() != nil {
				return
			}
			e.runPass(e.flushCtx, rule, unit)
		})
		return
	}
	e.runPass(ctx, rule, unit)
}

// runPass executes one delivery pass and increments the rule's forward counter
// exactly once when at least one destination succeeded.
func (e *Engine) runPass(ctx context.Context, rule Rule, unit Unit) {
	outcome := e.dispatcher.Dispatch(ctx, rule, unit)
	if !outcome.Delivered() {
		return
	}
	if err := e.rules.IncrementForwardCount(ctx, rule.ID); err != nil {
		e.log.Warn("forward counter update failed", "rule_id", rule.ID, "error", err)
	}
}

// Backfill replays the most recent history of every source of a rule through
// the identical filter/transform/dispatch path. Intended as a one-time action
// at rule creation; transports without history access return
// ErrHistoryUnsupported, which is reported as-is.
func (e *Engine) Backfill(ctx context.Context, rule Rule) error {
	if !rule.Modify.HistoryEnabled || rule.Modify.HistoryCount <= 0 {
		return nil
	}
	for _, src := range rule.Sources {
		peer, err := e.resolver.Resolve(ctx, src)
		if err != nil {
			e.log.Warn("backfill source unresolved", "rule_id", rule.ID, "source", src, "error", err)
			continue
		}
		msgs, err := e.transport.History(ctx, peer, rule.Modify.HistoryCount)
		if err != nil {
			if errors.Is(err, ErrHistoryUnsupported) {
				return err
			}
			e.log.Warn("backfill history read failed", "rule_id", rule.ID, "source", src, "error", err)
			continue
		}
		for _, msg := range msgs {
			e.processRule(ctx, rule, msg)
		}
	}
	return nil
}

// Close stops pending album timers. In-flight dispatches are not cancelled.
func (e *Engine) Close() {
	e.albums.Close()
}
