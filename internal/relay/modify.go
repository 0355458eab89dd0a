package relay

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Payload is the transformed outgoing content for one dispatch unit. Text
// mutation invalidates the source message's entity offsets, so payloads are
// always sent without source formatting entities.
type Payload struct {
	Text               string
	DisableLinkPreview bool
	Buttons            [][]Button
}

// wordMatches reports whether word occurs in text under the configured
// case/whole-word semantics.
func wordMatches(text, word string, matchCase, wholeWords bool) bool {
	if word == "" {
		return false
	}
	if wholeWords {
		pattern := `\b` + regexp.QuoteMeta(word) + `\b`
		if !matchCase {
			pattern = `(?i)` + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	if matchCase {
		return strings.Contains(text, word)
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(word))
}

// BlockedWord returns the first configured block word found in text.
// Block words always win over the whitelist.
func BlockedWord(text string, m ModifySet) (string, bool) {
	if !m.BlockWordsEnabled {
		return "", false
	}
	for _, w := range m.BlockWords {
		if wordMatches(text, w, m.MatchCase, m.WholeWords) {
			return w, true
		}
	}
	return "", false
}

// PassesWhitelist reports whether text contains at least one whitelist word.
// With the whitelist disabled every message passes.
func PassesWhitelist(text string, m ModifySet) bool {
	if !m.WhitelistEnabled || len(m.WhitelistWords) == 0 {
		return true
	}
	for _, w := range m.WhitelistWords {
		if wordMatches(text, w, m.MatchCase, m.WholeWords) {
			return true
		}
	}
	return false
}

// ApplyReplacements applies the ordered from→to pairs. Pattern pairs are
// compiled as regular expressions; invalid patterns are skipped with a log
// line rather than failing the message.
func ApplyReplacements(text string, m ModifySet) string {
	if !m.ReplaceEnabled {
		return text
	}
	for _, p := range m.ReplacePairs {
		if p.From == "" {
			continue
		}
		if p.Regex {
			re, err := regexp.Compile(p.From)
			if err != nil {
				slog.Warn("invalid replace pattern skipped", "pattern", p.From, "error", err)
				continue
			}
			text = re.ReplaceAllString(text, p.To)
			continue
		}
		if m.MatchCase {
			text = strings.ReplaceAll(text, p.From, p.To)
		} else {
			re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(p.From))
			if err != nil {
				continue
			}
			text = re.ReplaceAllString(text, p.To)
		}
	}
	return text
}

// ApplyHeaderFooter concatenates the configured header and footer around text.
// {newline} tokens are already expanded at the configuration boundary.
func ApplyHeaderFooter(text string, m ModifySet) string {
	if m.HeaderEnabled && m.HeaderText != "" {
		if text != "" {
			text = m.HeaderText + "\n" + text
		} else {
			text = m.HeaderText
		}
	}
	if m.FooterEnabled && m.FooterText != "" {
		if text != "" {
			text = text + "\n" + m.FooterText
		} else {
			text = m.FooterText
		}
	}
	return text
}

// Transform produces the outgoing payload for a caption under the rule's
// cleaning and modification settings. Block/whitelist checks run against the
// original caption before any cleaning. The skip reason is returned when the
// message must not be forwarded at all.
func Transform(text string, f FilterSet, m ModifySet) (Payload, bool, string) {
	if w, blocked := BlockedWord(text, m); blocked {
		return Payload{}, false, fmt.Sprintf("block word %q", w)
	}
	if !PassesWhitelist(text, m) {
		return Payload{}, false, "no whitelist word"
	}

	out := CleanText(text, f)
	out = ApplyReplacements(out, m)
	out = ApplyHeaderFooter(out, m)

	p := Payload{
		Text:               out,
		DisableLinkPreview: f.CleanLink,
	}
	if m.ButtonsEnabled && len(m.Buttons) > 0 {
		p.Buttons = m.Buttons
	}
	return p, true, ""
}

// Renamer resolves copy-mode filename patterns at send time. The counter is
// monotonically increasing across the process lifetime.
type Renamer struct {
	counter atomic.Int64
	now     func() time.Time
}

// NewRenamer returns a Renamer using the wall clock.
func NewRenamer() *Renamer {
	return &Renamer{now: time.Now}
}

// Resolve expands the rename pattern placeholders against the original
// filename. Affects only the uploaded filename, never the caption.
func (r *Renamer) Resolve(pattern, original string) string {
	if pattern == "" || pattern == "{original}" {
		return original
	}
	now := r.now()
	out := pattern
	out = strings.ReplaceAll(out, "{original}", original)
	out = strings.ReplaceAll(out, "{date}", now.Format("2006-01-02"))
	out = strings.ReplaceAll(out, "{time}", now.Format("15-04-05"))
	if strings.Contains(out, "{random}") {
		out = strings.ReplaceAll(out, "{random}", uuid.NewString()[:8])
	}
	if strings.Contains(out, "{counter}") {
		out = strings.ReplaceAll(out, "{counter}", fmt.Sprintf("%d", r.counter.Add(1)))
	}
	return out
}
