package relay

import (
	"context"
	"errors"
)

// ErrHistoryUnsupported is returned by transports that cannot read past
// messages from a chat.
var ErrHistoryUnsupported = errors.New("transport does not support history reads")

// Peer is a resolved, addressable chat handle on the source network.
type Peer struct {
	ID       int64
	Username string
	Title    string
}

// SendOpts carries options for plain text sends.
type SendOpts struct {
	DisableLinkPreview bool
	Buttons            [][]Button
}

// Upload describes one copy-mode re-upload of downloaded media.
type Upload struct {
	Kind     Kind
	Path     string
	Caption  string // empty for kinds that cannot carry one
	FileName string // outgoing filename, after rename pattern resolution
	Buttons  [][]Button
}

// AlbumItem is one member of a grouped re-upload.
type AlbumItem struct {
	Kind Kind
	Path string
}

// Transport is the per-account connection the engine borrows for each
// operation. Implementations live in the session/connection layer; the engine
// treats every call as fallible and never terminates the account stream on
// transport errors.
type Transport interface {
	// ResolveUsername looks up a chat by @username (leading @ included).
	ResolveUsername(ctx context.Context, username string) (Peer, error)
	// ResolvePeerID looks up a chat by its numeric id as given.
	ResolvePeerID(ctx context.Context, id int64) (Peer, error)
	// ResolveChannelID looks up a channel by its bare id, without the -100 prefix.
	ResolveChannelID(ctx context.Context, id int64) (Peer, error)
	// Dialogs lists the chats known to this account, for fallback resolution.
	Dialogs(ctx context.Context) ([]Peer, error)

	// Forward relays original messages to the destination, preserving
	// sender attribution and grouping.
	Forward(ctx context.Context, to Peer, fromChat int64, messageIDs []int) error
	// SendText sends a plain text message.
	SendText(ctx context.Context, to Peer, text string, opts SendOpts) error
	// Download fetches media to a transient local file and returns its path.
	// The caller owns cleanup.
	Download(ctx context.Context, media *MediaRef) (string, error)
	// Upload sends one downloaded file as a new message.
	Upload(ctx context.Context, to Peer, up Upload) error
	// UploadAlbum sends downloaded files as one grouped upload, the caption
	// attached to the first item.
	UploadAlbum(ctx context.Context, to Peer, items []AlbumItem, caption string) error

	// History returns the most recent limit messages of a chat, oldest first.
	// Transports without history access return ErrHistoryUnsupported.
	History(ctx context.Context, chat Peer, limit int) ([]*Message, error)
}
