package relay

import (
	"regexp"
	"strings"
)

// Caption cleaning stages. Each stage is a pure function of its input and is
// idempotent, so re-running a stage on its own output is a no-op. CleanText
// applies the enabled stages in a fixed order; every stage sees the previous
// stage's output.

var (
	hashtagRe = regexp.MustCompile(`#\w+`)
	mentionRe = regexp.MustCompile(`@\w+`)

	urlRes = []*regexp.Regexp{
		regexp.MustCompile(`https?://\S+`),
		regexp.MustCompile(`www\.\S+`),
		regexp.MustCompile(`t\.me/\S+`),
		regexp.MustCompile(`tg://\S+`),
	}

	// Structured separator-delimited numbers first, then bare long digit runs.
	phoneStructuredRe = regexp.MustCompile(`\+?\d{1,4}[-.\s]?\(?\d{1,3}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}`)
	phoneLongRe       = regexp.MustCompile(`\+?\d{10,15}`)

	emailRe = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)

	spaceRunRe = regexp.MustCompile(`[ \t]+`)
	lineTrimRe = regexp.MustCompile(`(?m)^[ \t]+|[ \t]+$`)
	newlinesRe = regexp.MustCompile(`\n{3,}`)
)

// emojiRanges covers emoji blocks plus variation selectors, zero-width and
// invisible format codepoints.
var emojiRanges = [][2]rune{
	{0x1F600, 0x1F64F}, // emoticons
	{0x1F300, 0x1F5FF}, // symbols & pictographs
	{0x1F680, 0x1F6FF}, // transport
	{0x1F700, 0x1F77F}, // alchemical
	{0x1F780, 0x1F7FF}, // geometric
	{0x1F800, 0x1F8FF}, // supplemental arrows
	{0x1F900, 0x1F9FF}, // supplemental symbols
	{0x1FA00, 0x1FA6F}, // chess symbols
	{0x1FA70, 0x1FAFF}, // symbols extended-A
	{0x1F1E0, 0x1F1FF}, // regional indicators (flags)
	{0x1F000, 0x1F02F}, // mahjong tiles
	{0x1F0A0, 0x1F0FF}, // playing cards
	{0x1F493, 0x1F49F}, // hearts
	{0x24C2, 0x1F251},  // enclosed characters
	{0x2500, 0x2BEF},   // box drawing through misc symbols
	{0x2600, 0x26FF},   // misc symbols
	{0x2700, 0x27BF},   // dingbats
	{0x2B50, 0x2B55},   // star, circle
	{0x231A, 0x231B},   // watch, hourglass
	{0x23CF, 0x23CF},   // eject
	{0x23E9, 0x23F3},   // media controls
	{0x23F8, 0x23FA},   // media controls
	{0x3030, 0x3030},   // wavy dash
	{0x303D, 0x303D},   // part alternation mark
	{0x3297, 0x3297},   // circled congratulation
	{0x3299, 0x3299},   // circled secret
	{0xFE00, 0xFE0F},   // variation selectors
	{0x200B, 0x200F},   // zero-width characters
	{0x200D, 0x200D},   // zero-width joiner
	{0x2028, 0x202F},   // line/paragraph separators, format chars
	{0x205F, 0x206F},   // format chars
}

func isEmojiRune(r rune) bool {
	for _, rng := range emojiRanges {
		if r >= rng[0] && r <= rng[1] {
			return true
		}
	}
	return false
}

// StripHashtags removes #hashtag tokens.
func StripHashtags(s string) string {
	return hashtagRe.ReplaceAllString(s, "")
}

// StripMentions removes @mention tokens.
func StripMentions(s string) string {
	return mentionRe.ReplaceAllString(s, "")
}

// StripURLs removes http(s), bare www., t.me/ and tg:// URL forms.
func StripURLs(s string) string {
	for _, re := range urlRes {
		s = re.ReplaceAllString(s, "")
	}
	return s
}

// StripEmoji removes emoji codepoints along with variation selectors and
// zero-width/format characters.
func StripEmoji(s string) string {
	return strings.Map(func(r rune) rune {
		if isEmojiRune(r) {
			return -1
		}
		return r
	}, s)
}

// StripPhones removes phone-number-like digit sequences using both the
// structured and the long-digit heuristic.
func StripPhones(s string) string {
	s = phoneStructuredRe.ReplaceAllString(s, "")
	return phoneLongRe.ReplaceAllString(s, "")
}

// StripEmails removes email-like tokens.
func StripEmails(s string) string {
	return emailRe.ReplaceAllString(s, "")
}

// NormalizeWhitespace collapses runs of spaces/tabs, trims line edges,
// collapses 3+ newlines to 2 and trims the whole string.
func NormalizeWhitespace(s string) string {
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = lineTrimRe.ReplaceAllString(s, "")
	s = newlinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// CleanText runs the enabled cleaning stages over a caption. When the caption
// is removed entirely the remaining text stages are skipped; media handling
// continues with an empty caption.
func CleanText(text string, f FilterSet) string {
	if f.CleanCaption {
		return ""
	}
	if f.CleanHashtag {
		text = StripHashtags(text)
	}
	if f.CleanMention {
		text = StripMentions(text)
	}
	if f.CleanLink {
		text = StripURLs(text)
	}
	if f.CleanEmoji {
		text = StripEmoji(text)
	}
	if f.CleanPhone {
		text = StripPhones(text)
	}
	if f.CleanEmail {
		text = StripEmails(text)
	}
	return NormalizeWhitespace(text)
}
