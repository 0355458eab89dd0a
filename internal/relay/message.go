package relay

import "regexp"

// Kind classifies a message by its payload. Classification happens once at
// ingestion (see the telegram package); everything downstream switches on the
// resulting value instead of re-probing payload fields.
type Kind string

const (
	KindText      Kind = "text"
	KindPhoto     Kind = "photo"
	KindVideo     Kind = "video"
	KindVideoNote Kind = "video_note"
	KindVoice     Kind = "voice"
	KindAudio     Kind = "audio"
	KindSticker   Kind = "sticker"
	KindGIF       Kind = "gif"
	KindDocument  Kind = "document"
	KindPoll      Kind = "poll"
)

// EntityType is the subset of rich-text entity types the engine cares about.
type EntityType string

const (
	EntityURL         EntityType = "url"
	EntityTextLink    EntityType = "text_link"
	EntityCustomEmoji EntityType = "custom_emoji"
)

// Entity is a structured annotation on the message text.
type Entity struct {
	Type EntityType
}

// MediaRef points at a downloadable media payload on the source network.
type MediaRef struct {
	FileID   string
	UniqueID string
}

// Message is the engine's view of one incoming message. It is built once by
// the transport layer and treated as read-only afterwards.
type Message struct {
	ID           int
	ChatID       int64
	ChatUsername string
	Kind         Kind
	Text         string // text for text messages, caption for media
	Entities     []Entity
	GroupID      string // media group (album) id, empty for singletons
	Forwarded    bool
	IsReply      bool
	HasButtons   bool
	FileName     string // original filename, where the payload has one
	Media        *MediaRef
}

// linkRe matches the URL forms the link filter cares about.
var linkRe = regexp.MustCompile(`https?://|www\.|t\.me/|tg://`)

// ContainsLink reports whether the message text contains a URL in any of the
// recognized forms, or carries a URL-typed entity.
func (m *Message) ContainsLink() bool {
	if linkRe.MatchString(m.Text) {
		return true
	}
	for _, e := range m.Entities {
		if e.Type == EntityURL || e.Type == EntityTextLink {
			return true
		}
	}
	return false
}

// HasCustomEmoji reports whether the message carries a custom emoji entity.
func (m *Message) HasCustomEmoji() bool {
	for _, e := range m.Entities {
		if e.Type == EntityCustomEmoji {
			return true
		}
	}
	return false
}

// HasMedia reports whether the message has a downloadable payload.
func (m *Message) HasMedia() bool {
	return m.Media != nil
}
