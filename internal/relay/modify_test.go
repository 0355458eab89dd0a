package relay

import (
	"strings"
	"testing"
	"time"
)

func TestBlockedWord(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		mod     ModifySet
		blocked bool
	}{
		{
			name:    "disabled never blocks",
			text:    "buy crypto now",
			mod:     ModifySet{BlockWords: []string{"crypto"}},
			blocked: false,
		},
		{
			name:    "substring match default",
			text:    "buy CRYPTOcoin now",
			mod:     ModifySet{BlockWordsEnabled: true, BlockWords: []string{"crypto"}},
			blocked: true,
		},
		{
			name:    "case-sensitive miss",
			text:    "buy CRYPTO now",
			mod:     ModifySet{BlockWordsEnabled: true, BlockWords: []string{"crypto"}, MatchCase: true},
			blocked: false,
		},
		{
			name:    "whole words miss on substring",
			text:    "scryptography",
			mod:     ModifySet{BlockWordsEnabled: true, BlockWords: []string{"crypto"}, WholeWords: true},
			blocked: false,
		},
		{
			name:    "whole words hit",
			text:    "pure crypto scam",
			mod:     ModifySet{BlockWordsEnabled: true, BlockWords: []string{"crypto"}, WholeWords: true},
			blocked: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := BlockedWord(tt.text, tt.mod)
			if got != tt.blocked {
				t.Errorf("BlockedWord(%q) = %v, want %v", tt.text, got, tt.blocked)
			}
		})
	}
}

func TestWhitelistBlockInteraction(t *testing.T) {
	mod := ModifySet{
		BlockWordsEnabled: true,
		BlockWords:        []string{"spam"},
		WhitelistEnabled:  true,
		WhitelistWords:    []string{"deal"},
	}

	// A block word always wins, even when the whitelist passes.
	if _, ok, reason := Transform("great deal but spam", FilterSet{}, mod); ok {
		t.Error("expected block word to skip the message")
	} else if !strings.Contains(reason, "spam") {
		t.Errorf("unexpected reason %q", reason)
	}

	// No whitelist word present: skipped.
	if _, ok, _ := Transform("nothing relevant", FilterSet{}, mod); ok {
		t.Error("expected whitelist miss to skip the message")
	}

	// Whitelist passes, no block word: kept.
	if _, ok, _ := Transform("great deal today", FilterSet{}, mod); !ok {
		t.Error("expected message to pass")
	}
}

func TestApplyReplacements(t *testing.T) {
	tests := []struct {
		name string
		text string
		mod  ModifySet
		want string
	}{
		{
			name: "disabled",
			text: "old text",
			mod:  ModifySet{ReplacePairs: []ReplacePair{{From: "old", To: "new"}}},
			want: "old text",
		},
		{
			name: "literal case-insensitive default",
			text: "Old text OLD",
			mod: ModifySet{ReplaceEnabled: true, ReplacePairs: []ReplacePair{
				{From: "old", To: "new"},
			}},
			want: "new text new",
		},
		{
			name: "literal case-sensitive",
			text: "Old old",
			mod: ModifySet{ReplaceEnabled: true, MatchCase: true, ReplacePairs: []ReplacePair{
				{From: "old", To: "new"},
			}},
			want: "Old new",
		},
		{
			name: "ordered pairs chain",
			text: "a",
			mod: ModifySet{ReplaceEnabled: true, ReplacePairs: []ReplacePair{
				{From: "a", To: "b"},
				{From: "b", To: "c"},
			}},
			want: "c",
		},
		{
			name: "regex pair",
			text: "price 100 USD",
			mod: ModifySet{ReplaceEnabled: true, ReplacePairs: []ReplacePair{
				{From: `\d+`, To: "N", Regex: true},
			}},
			want: "price N USD",
		},
		{
			name: "invalid regex skipped",
			text: "text",
			mod: ModifySet{ReplaceEnabled: true, ReplacePairs: []ReplacePair{
				{From: `([`, To: "x", Regex: true},
			}},
			want: "text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyReplacements(tt.text, tt.mod); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyHeaderFooter(t *testing.T) {
	mod := ModifySet{
		HeaderEnabled: true, HeaderText: "== HEAD ==",
		FooterEnabled: true, FooterText: "-- tail --",
	}
	if got := ApplyHeaderFooter("body", mod); got != "== HEAD ==\nbody\n-- tail --" {
		t.Errorf("got %q", got)
	}
	// Empty body: no stray newlines.
	if got := ApplyHeaderFooter("", mod); got != "== HEAD ==\n-- tail --" {
		t.Errorf("got %q", got)
	}
}

func TestExpandNewlines(t *testing.T) {
	if got := ExpandNewlines("a{newline}b"); got != "a\nb" {
		t.Errorf("got %q", got)
	}
}

func TestTransformScenario(t *testing.T) {
	// Rule scenario: cleaners on, text "Hello #world @user http://x.com"
	// must come out as "Hello".
	filters := FilterSet{CleanHashtag: true, CleanMention: true, CleanLink: true}
	p, ok, _ := Transform("Hello #world @user http://x.com", filters, DefaultModify())
	if !ok {
		t.Fatal("message unexpectedly skipped")
	}
	if p.Text != "Hello" {
		t.Errorf("transformed text = %q, want %q", p.Text, "Hello")
	}
	if !p.DisableLinkPreview {
		t.Error("link cleaning should disable the link preview")
	}
}

func TestRenamerResolve(t *testing.T) {
	r := NewRenamer()
	r.now = func() time.Time {
		return time.Date(2026, 8, 31, 14, 30, 5, 0, time.UTC)
	}

	if got := r.Resolve("{original}", "file.pdf"); got != "file.pdf" {
		t.Errorf("got %q", got)
	}
	if got := r.Resolve("", "file.pdf"); got != "file.pdf" {
		t.Errorf("empty pattern: got %q", got)
	}
	if got := r.Resolve("{date}_{original}", "file.pdf"); got != "2026-08-31_file.pdf" {
		t.Errorf("got %q", got)
	}
	if got := r.Resolve("{time}.bin", "x"); got != "14-30-05.bin" {
		t.Errorf("got %q", got)
	}

	// Counter increases monotonically across calls.
	first := r.Resolve("doc_{counter}", "x")
	second := r.Resolve("doc_{counter}", "x")
	if first != "doc_1" || second != "doc_2" {
		t.Errorf("counter sequence: %q, %q", first, second)
	}

	// Random token is 8 chars and differs between calls.
	a := r.Resolve("{random}", "x")
	b := r.Resolve("{random}", "x")
	if len(a) != 8 || a == b {
		t.Errorf("random tokens: %q, %q", a, b)
	}
}
