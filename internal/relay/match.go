package relay

import (
	"strconv"
	"strings"
)

// MatchesSource reports whether a chat matches one configured source string.
// Sources are either "@username" (case-insensitive username compare) or a
// signed numeric id. Channel ids appear inconsistently across call sites as
// bare ids or with the -100 super-group prefix, so numeric comparison checks
// exact, absolute, and prefix-stripped forms on both sides.
func MatchesSource(chatID int64, chatUsername, source string) bool {
	if strings.HasPrefix(source, "@") {
		if chatUsername == "" {
			return false
		}
		return strings.EqualFold(chatUsername, strings.TrimPrefix(source, "@"))
	}

	src, err := strconv.ParseInt(strings.TrimSpace(source), 10, 64)
	if err != nil {
		return false
	}

	if chatID == src || abs64(chatID) == abs64(src) {
		return true
	}
	if srcReal, ok := stripChannelPrefix(src); ok {
		if chatReal, ok := stripChannelPrefix(chatID); ok && chatReal == srcReal {
			return true
		}
		if abs64(chatID) == srcReal {
			return true
		}
	}
	if chatReal, ok := stripChannelPrefix(chatID); ok && chatReal == abs64(src) {
		return true
	}
	return false
}

// Candidates returns the enabled rules whose source list matches the chat.
// Each returned rule is evaluated and dispatched independently.
func Candidates(chatID int64, chatUsername string, rules []Rule) []Rule {
	var out []Rule
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		for _, src := range r.Sources {
			if MatchesSource(chatID, chatUsername, src) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// stripChannelPrefix removes the -100 channel-id prefix, returning the bare id
// and whether the input carried the prefix.
func stripChannelPrefix(id int64) (int64, bool) {
	s := strconv.FormatInt(id, 10)
	if !strings.HasPrefix(s, "-100") || len(s) <= 4 {
		return 0, false
	}
	real, err := strconv.ParseInt(s[4:], 10, 64)
	if err != nil {
		return 0, false
	}
	return real, true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
