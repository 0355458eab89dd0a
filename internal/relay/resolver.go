package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ErrNotResolved means an identifier could not be mapped to a live chat
// handle. The destination is skipped for this pass and retried naturally on
// the next matching message.
var ErrNotResolved = errors.New("identifier not resolved")

// Resolver maps textual/numeric channel identifiers to live peers for one
// account. Successful resolutions are cached for the session lifetime;
// failures are never cached, since the cause may be transient.
type Resolver struct {
	transport Transport

	mu    sync.Mutex
	cache map[string]Peer
}

// NewResolver creates a resolver bound to one account's transport.
func NewResolver(t Transport) *Resolver {
	return &Resolver{
		transport: t,
		cache:     make(map[string]Peer),
	}
}

// Resolve maps an identifier to a peer. Resolution order: username lookup,
// direct numeric lookup, channel-variant lookup with the -100 prefix
// stripped, then a scan of the account's known dialogs.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (Peer, error) {
	identifier = strings.TrimSpace(identifier)

	r.mu.Lock()
	p, ok := r.cache[identifier]
	r.mu.Unlock()
	if ok {
		return p, nil
	}

	p, err := r.lookup(ctx, identifier)
	if err != nil {
		return Peer{}, err
	}

	r.mu.Lock()
	r.cache[identifier] = p
	r.mu.Unlock()
	return p, nil
}

func (r *Resolver) lookup(ctx context.Context, identifier string) (Peer, error) {
	if strings.HasPrefix(identifier, "@") {
		p, err := r.transport.ResolveUsername(ctx, identifier)
		if err != nil {
			return Peer{}, fmt.Errorf("%w: %s: %v", ErrNotResolved, identifier, err)
		}
		return p, nil
	}

	id, err := strconv.ParseInt(identifier, 10, 64)
	if err != nil {
		return Peer{}, fmt.Errorf("%w: %q is not a username or numeric id", ErrNotResolved, identifier)
	}

	if p, err := r.transport.ResolvePeerID(ctx, id); err == nil {
		return p, nil
	}

	if real, ok := stripChannelPrefix(id); ok {
		if p, err := r.transport.ResolveChannelID(ctx, real); err == nil {
			return p, nil
		}
	}

	return r.scanDialogs(ctx, id)
}

// scanDialogs walks the account's known dialog list looking for an id match
// in any of the recognized forms.
func (r *Resolver) scanDialogs(ctx context.Context, id int64) (Peer, error) {
	dialogs, err := r.transport.Dialogs(ctx)
	if err != nil {
		return Peer{}, fmt.Errorf("%w: dialog scan: %v", ErrNotResolved, err)
	}
	real, hasPrefix := stripChannelPrefix(id)
	for _, d := range dialogs {
		if d.ID == id || abs64(d.ID) == abs64(id) {
			return d, nil
		}
		if hasPrefix && (d.ID == real || abs64(d.ID) == real) {
			return d, nil
		}
	}
	return Peer{}, fmt.Errorf("%w: %d not found in dialogs (is the account a member?)", ErrNotResolved, id)
}
