package relay

// ShouldSkip decides whether a message is excluded by the rule's filter set.
// Returns the name of the filter that fired, for logging. The check order is
// fixed: poll → album → forward → reply → link → buttons → custom emoji →
// per-kind flag. A skipped message produces no side effects for the rule.
func ShouldSkip(msg *Message, f FilterSet) (bool, string) {
	if f.Poll && msg.Kind == KindPoll {
		return true, "poll"
	}
	// Album filter drops grouped messages before aggregation.
	if f.Album && msg.GroupID != "" {
		return true, "album"
	}
	if f.Forward && msg.Forwarded {
		return true, "forward"
	}
	if f.Reply && msg.IsReply {
		return true, "reply"
	}
	if f.Link && msg.ContainsLink() {
		return true, "link"
	}
	if f.Button && msg.HasButtons {
		return true, "button"
	}
	if f.Emoji && msg.HasCustomEmoji() {
		return true, "emoji"
	}
	if msg.Kind == KindPhoto {
		// Mutually exclusive refinements on top of the generic photo flag.
		if f.PhotoOnly && msg.Text == "" {
			return true, "photo_only"
		}
		if f.PhotoWithText && msg.Text != "" {
			return true, "photo_with_text"
		}
	}
	if f.SkipsKind(msg.Kind) {
		return true, string(msg.Kind)
	}
	return false, ""
}
