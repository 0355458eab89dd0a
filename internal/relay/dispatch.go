package relay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DestFailure records why one destination did not receive the unit.
type DestFailure struct {
	Dest string
	Err  error
}

// Outcome is the per-dispatch-pass report: how many destinations received the
// unit and why the others did not. Partial delivery is an accepted, reported
// outcome, never rolled back.
type Outcome struct {
	Succeeded int
	Failures  []DestFailure
}

// Delivered reports whether at least one destination received the unit.
func (o Outcome) Delivered() bool { return o.Succeeded > 0 }

// Unit is one deliverable: a single message or a whole album batch, plus the
// transformed payload shared by all destinations.
type Unit struct {
	Messages []*Message
	Payload  Payload
	Album    bool
	// Caption override for album copy mode; the most recently seen non-empty
	// member caption, already transformed into Payload.Text.
}

// Dispatcher executes delivery to each destination of a rule independently.
// A failure on one destination never prevents attempts on the others.
type Dispatcher struct {
	transport Transport
	resolver  *Resolver
	limiter   *rate.Limiter
	renamer   *Renamer
	tracer    trace.Tracer
	log       *slog.Logger
}

// NewDispatcher builds a dispatcher for one account. ratePerMin <= 0 disables
// rate limiting.
func NewDispatcher(t Transport, r *Resolver, ratePerMin int, log *slog.Logger) *Dispatcher {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(ratePerMin)/60.0), ratePerMin)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		transport: t,
		resolver:  r,
		limiter:   limiter,
		renamer:   NewRenamer(),
		tracer:    otel.Tracer("teleflow/relay"),
		log:       log,
	}
}

// Dispatch delivers the unit to every destination of the rule. Failures are
// collected per destination. The delay modifier is the engine's concern; by
// the time a pass reaches the dispatcher it runs immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, rule Rule, unit Unit) Outcome {
	passID := uuid.NewString()[:8]
	ctx, span := d.tracer.Start(ctx, "relay.dispatch",
		trace.WithAttributes(
			attribute.Int64("rule.id", rule.ID),
			attribute.String("rule.mode", string(rule.Mode)),
			attribute.Int("destinations", len(rule.Destinations)),
			attribute.Bool("album", unit.Album),
		))
	defer span.End()

	var (
		mu      sync.Mutex
		outcome Outcome
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, dest := range rule.Destinations {
		g.Go(func() error {
			err := d.deliver(gctx, rule, dest, unit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.Failures = append(outcome.Failures, DestFailure{Dest: dest, Err: err})
				d.log.Error("delivery failed",
					"pass_id", passID, "rule_id", rule.ID, "dest", dest, "error", err)
				return nil // sibling destinations keep going
			}
			outcome.Succeeded++
			d.log.Info("delivered",
				"pass_id", passID, "rule_id", rule.ID, "dest", dest,
				"mode", rule.Mode, "album", unit.Album, "items", len(unit.Messages))
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(attribute.Int("succeeded", outcome.Succeeded))
	return outcome
}

// deliver handles one destination end to end: resolve, rate-limit, send.
func (d *Dispatcher) deliver(ctx context.Context, rule Rule, dest string, unit Unit) error {
	peer, err := d.resolver.Resolve(ctx, dest)
	if err != nil {
		return err
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	if rule.Mode == ModeCopy {
		if unit.Album {
			return d.copyAlbum(ctx, peer, unit)
		}
		return d.copyOne(ctx, peer, rule, unit.Messages[0], unit.Payload)
	}

	// Forward mode relays the original message objects directly.
	ids := make([]int, len(unit.Messages))
	for i, m := range unit.Messages {
		ids[i] = m.ID
	}
	return d.transport.Forward(ctx, peer, unit.Messages[0].ChatID, ids)
}

// copyOne re-uploads a single message as new content, honoring kind-specific
// caption constraints.
func (d *Dispatcher) copyOne(ctx context.Context, peer Peer, rule Rule, msg *Message, p Payload) error {
	if !msg.HasMedia() {
		// Text messages, including pure link-preview cards: the preview is
		// enabled or suppressed by the link-cleaning toggle.
		if p.Text == "" {
			return nil
		}
		return d.transport.SendText(ctx, peer, p.Text, SendOpts{
			DisableLinkPreview: p.DisableLinkPreview,
			Buttons:            p.Buttons,
		})
	}

	path, err := d.transport.Download(ctx, msg.Media)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer os.Remove(path)

	up := Upload{
		Kind:     msg.Kind,
		Path:     path,
		Caption:  p.Text,
		FileName: msg.FileName,
		Buttons:  p.Buttons,
	}
	if rule.Modify.RenameEnabled {
		up.FileName = d.renamer.Resolve(rule.Modify.RenamePattern, msg.FileName)
	}
	switch msg.Kind {
	case KindSticker, KindVideoNote, KindVoice:
		// These kinds cannot carry a caption.
		up.Caption = ""
	}

	if err := d.transport.Upload(ctx, peer, up); err != nil {
		return err
	}

	// Voice notes send their text as a trailing separate message.
	if msg.Kind == KindVoice && p.Text != "" {
		if err := d.transport.SendText(ctx, peer, p.Text, SendOpts{
			DisableLinkPreview: p.DisableLinkPreview,
		}); err != nil {
			return fmt.Errorf("voice trailing text: %w", err)
		}
	}
	return nil
}

// copyAlbum downloads all media members and re-uploads them as one grouped
// upload with the captured caption on the first item. Temporary files are
// removed on every exit path regardless of send outcome.
func (d *Dispatcher) copyAlbum(ctx context.Context, peer Peer, unit Unit) error {
	var items []AlbumItem
	defer func() {
		for _, it := range items {
			os.Remove(it.Path)
		}
	}()

	for _, m := range unit.Messages {
		if !m.HasMedia() {
			continue
		}
		path, err := d.transport.Download(ctx, m.Media)
		if err != nil {
			d.log.Warn("album member download failed, skipped",
				"message_id", m.ID, "error", err)
			continue
		}
		items = append(items, AlbumItem{Kind: m.Kind, Path: path})
	}
	if len(items) == 0 {
		return fmt.Errorf("no album members downloadable")
	}
	return d.transport.UploadAlbum(ctx, peer, items, unit.Payload.Text)
}
