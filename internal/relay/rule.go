package relay

import (
	"encoding/json"
	"strings"
)

// Mode selects how a matched message is delivered.
type Mode string

const (
	// ModeForward relays the original message, keeping sender attribution.
	ModeForward Mode = "forward"
	// ModeCopy re-uploads the content as a new message with a transformed caption.
	ModeCopy Mode = "copy"
)

// FilterSet holds per-rule skip flags. A true flag means messages matching
// that condition are skipped for the rule. The clean_* flags select caption
// cleaning stages instead of skipping the message.
type FilterSet struct {
	Document      bool `json:"document,omitempty"`
	Video         bool `json:"video,omitempty"`
	Audio         bool `json:"audio,omitempty"`
	Sticker       bool `json:"sticker,omitempty"`
	Text          bool `json:"text,omitempty"`
	Photo         bool `json:"photo,omitempty"`
	PhotoOnly     bool `json:"photo_only,omitempty"`
	PhotoWithText bool `json:"photo_with_text,omitempty"`
	Album         bool `json:"album,omitempty"`
	Poll          bool `json:"poll,omitempty"`
	Voice         bool `json:"voice,omitempty"`
	VideoNote     bool `json:"video_note,omitempty"`
	GIF           bool `json:"gif,omitempty"`
	Emoji         bool `json:"emoji,omitempty"`
	Forward       bool `json:"forward,omitempty"`
	Reply         bool `json:"reply,omitempty"`
	Link          bool `json:"link,omitempty"`
	Button        bool `json:"button,omitempty"`

	CleanCaption bool `json:"clean_caption,omitempty"`
	CleanHashtag bool `json:"clean_hashtag,omitempty"`
	CleanMention bool `json:"clean_mention,omitempty"`
	CleanLink    bool `json:"clean_link,omitempty"`
	CleanEmoji   bool `json:"clean_emoji,omitempty"`
	CleanPhone   bool `json:"clean_phone,omitempty"`
	CleanEmail   bool `json:"clean_email,omitempty"`
}

// SkipsKind reports whether the base per-kind flag for k is set.
// The photo_only / photo_with_text refinements are handled separately
// in ShouldSkip.
func (f FilterSet) SkipsKind(k Kind) bool {
	switch k {
	case KindDocument:
		return f.Document
	case KindVideo:
		return f.Video
	case KindAudio:
		return f.Audio
	case KindSticker:
		return f.Sticker
	case KindText:
		return f.Text
	case KindPhoto:
		return f.Photo
	case KindPoll:
		return f.Poll
	case KindVoice:
		return f.Voice
	case KindVideoNote:
		return f.VideoNote
	case KindGIF:
		return f.GIF
	}
	return false
}

// ReplacePair is one ordered from→to substitution.
type ReplacePair struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Regex bool   `json:"regex,omitempty"`
}

// Button is one inline URL button attached to copy-mode sends.
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// ModifySet holds per-rule content modification settings.
type ModifySet struct {
	RenameEnabled bool   `json:"rename_enabled,omitempty"`
	RenamePattern string `json:"rename_pattern,omitempty"`

	BlockWordsEnabled bool     `json:"block_words_enabled,omitempty"`
	BlockWords        []string `json:"block_words,omitempty"`
	WhitelistEnabled  bool     `json:"whitelist_enabled,omitempty"`
	WhitelistWords    []string `json:"whitelist_words,omitempty"`

	ReplaceEnabled bool          `json:"replace_enabled,omitempty"`
	ReplacePairs   []ReplacePair `json:"replace_pairs,omitempty"`

	HeaderEnabled bool   `json:"header_enabled,omitempty"`
	HeaderText    string `json:"header_text,omitempty"`
	FooterEnabled bool   `json:"footer_enabled,omitempty"`
	FooterText    string `json:"footer_text,omitempty"`

	ButtonsEnabled bool       `json:"buttons_enabled,omitempty"`
	Buttons        [][]Button `json:"buttons,omitempty"`

	DelayEnabled bool `json:"delay_enabled,omitempty"`
	DelaySeconds int  `json:"delay_seconds,omitempty"`

	HistoryEnabled bool `json:"history_enabled,omitempty"`
	HistoryCount   int  `json:"history_count,omitempty"`

	// Word matching semantics for block/whitelist words and literal replace
	// pairs. Defaults: case-insensitive substring match.
	MatchCase  bool `json:"match_case,omitempty"`
	WholeWords bool `json:"whole_words,omitempty"`
}

// DefaultModify returns the all-off modify settings.
func DefaultModify() ModifySet {
	return ModifySet{RenamePattern: "{original}"}
}

// Rule maps a set of source channels to a set of destination channels with an
// attached filter/transform/delivery policy. The engine treats rules as
// read-only snapshots; only the forward counter is updated, through the store.
type Rule struct {
	ID           int64
	Account      string
	Sources      []string
	Destinations []string
	Mode         Mode
	Filters      FilterSet
	Modify       ModifySet
	Enabled      bool
	ForwardCount int64
}

// ParseFilterSet decodes stored filter JSON, substituting the all-off defaults
// when the stored data is missing or malformed. Malformed configuration is
// never fatal.
func ParseFilterSet(raw []byte) FilterSet {
	var f FilterSet
	if len(raw) == 0 {
		return f
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return FilterSet{}
	}
	return f
}

// ParseModifySet decodes stored modify JSON, substituting defaults when the
// stored data is missing or malformed.
func ParseModifySet(raw []byte) ModifySet {
	m := DefaultModify()
	if len(raw) == 0 {
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return DefaultModify()
	}
	if m.RenamePattern == "" {
		m.RenamePattern = "{original}"
	}
	return m
}

// ExpandNewlines resolves the {newline} token used in header/footer text.
// Applied at the configuration boundary, not per message.
func ExpandNewlines(s string) string {
	return strings.ReplaceAll(s, "{newline}", "\n")
}
