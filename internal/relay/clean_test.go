package relay

import "testing"

func TestCleaningStages(t *testing.T) {
	tests := []struct {
		name  string
		stage func(string) string
		in    string
		want  string
	}{
		{"hashtags", StripHashtags, "deal #sale today #hot", "deal  today "},
		{"mentions", StripMentions, "ask @admin or @mod2", "ask  or "},
		{"http url", StripURLs, "go http://x.com now", "go  now"},
		{"https url", StripURLs, "go https://x.com/path?q=1 now", "go  now"},
		{"bare www", StripURLs, "see www.example.com ok", "see  ok"},
		{"t.me link", StripURLs, "join t.me/chan ok", "join  ok"},
		{"tg deep link", StripURLs, "open tg://resolve?domain=x ok", "open  ok"},
		{"emoji", StripEmoji, "hi \U0001F600 there ❤", "hi  there "},
		{"zero width", StripEmoji, "a​b‍c", "abc"},
		{"long phone", StripPhones, "call +12345678901 now", "call  now"},
		{"separated phone", StripPhones, "call +1 (234) 567-8901 now", "call  now"},
		{"email", StripEmails, "mail me@example.com ok", "mail  ok"},
		{"whitespace collapse", NormalizeWhitespace, "a   b\t\tc", "a b c"},
		{"line trim", NormalizeWhitespace, "  a  \n  b  ", "a\nb"},
		{"newline collapse", NormalizeWhitespace, "a\n\n\n\n\nb", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stage(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// Every individual stage must be idempotent: re-applying it to its own output
// changes nothing.
func TestCleaningStagesIdempotent(t *testing.T) {
	stages := map[string]func(string) string{
		"hashtags":   StripHashtags,
		"mentions":   StripMentions,
		"urls":       StripURLs,
		"emoji":      StripEmoji,
		"phones":     StripPhones,
		"emails":     StripEmails,
		"whitespace": NormalizeWhitespace,
	}
	inputs := []string{
		"Hello #world @user http://x.com",
		"call +12345678901 or mail a@b.co \U0001F680\U0001F680",
		"   spaced    out\n\n\n\ntext   ",
		"plain text untouched",
		"",
	}
	for name, stage := range stages {
		t.Run(name, func(t *testing.T) {
			for _, in := range inputs {
				once := stage(in)
				twice := stage(once)
				if once != twice {
					t.Errorf("stage not idempotent on %q: first %q, second %q", in, once, twice)
				}
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		filters FilterSet
		want    string
	}{
		{
			name:    "hashtag mention link cleaners together",
			text:    "Hello #world @user http://x.com",
			filters: FilterSet{CleanHashtag: true, CleanMention: true, CleanLink: true},
			want:    "Hello",
		},
		{
			name:    "caption removal wins over other stages",
			text:    "Hello #world",
			filters: FilterSet{CleanCaption: true, CleanHashtag: true},
			want:    "",
		},
		{
			name:    "no cleaners still normalizes whitespace",
			text:    "  hello   world  ",
			filters: FilterSet{},
			want:    "hello world",
		},
		{
			name:    "email and phone",
			text:    "contact me@x.io or +12345678901",
			filters: FilterSet{CleanEmail: true, CleanPhone: true},
			want:    "contact or",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.text, tt.filters); got != tt.want {
				t.Errorf("CleanText = %q, want %q", got, tt.want)
			}
		})
	}
}
