package relay

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestEngine(t *testing.T, ft *fakeTransport, rules *fakeRules, opts Options) *Engine {
	t.Helper()
	e := NewEngine(context.Background(), "acct", rules, ft, opts)
	t.Cleanup(e.Close)
	return e
}

func TestEngineForwardsMatchingMessage(t *testing.T) {
	ft := newFakeTransport()
	ft.usernames["@chanB"] = Peer{ID: 200}
	rules := newFakeRules(Rule{
		ID: 1, Account: "acct", Enabled: true, Mode: ModeForward,
		Sources: []string{"@chanA"}, Destinations: []string{"@chanB"},
		Modify: DefaultModify(),
	})
	e := newTestEngine(t, ft, rules, Options{})

	e.HandleMessage(context.Background(), &Message{
		ID: 1, ChatID: -1001, ChatUsername: "chanA", Kind: KindText, Text: "Hello",
	})

	if ft.forwardCount() != 1 {
		t.Fatalf("forwards = %d, want 1", ft.forwardCount())
	}
	if rules.count(1) != 1 {
		t.Errorf("forward counter = %d, want 1", rules.count(1))
	}
}

func TestEngineNonMatchingChatIgnored(t *testing.T) {
	ft := newFakeTransport()
	rules := newFakeRules(Rule{
		ID: 1, Account: "acct", Enabled: true,
		Sources: []string{"@chanA"}, Destinations: []string{"@chanB"},
	})
	e := newTestEngine(t, ft, rules, Options{})

	e.HandleMessage(context.Background(), &Message{
		ID: 1, ChatID: -999, ChatUsername: "elsewhere", Kind: KindText, Text: "hi",
	})

	if ft.forwardCount() != 0 || rules.count(1) != 0 {
		t.Error("message from unrelated chat must not be forwarded")
	}
}

func TestEngineFilteredMessageLeavesCounter(t *testing.T) {
	ft := newFakeTransport()
	ft.usernames["@chanB"] = Peer{ID: 200}
	rules := newFakeRules(Rule{
		ID: 1, Account: "acct", Enabled: true, Mode: ModeForward,
		Sources: []string{"@chanA"}, Destinations: []string{"@chanB"},
		Filters: FilterSet{PhotoOnly: true},
		Modify:  DefaultModify(),
	})
	e := newTestEngine(t, ft, rules, Options{})

	// Captionless photo with photo_only on: dropped, counter untouched.
	e.HandleMessage(context.Background(), &Message{
		ID: 1, ChatID: -1, ChatUsername: "chanA", Kind: KindPhoto,
	})
	if ft.forwardCount() != 0 || rules.count(1) != 0 {
		t.Fatal("filtered message must not dispatch or count")
	}

	// The same photo with a caption passes.
	e.HandleMessage(context.Background(), &Message{
		ID: 2, ChatID: -1, ChatUsername: "chanA", Kind: KindPhoto, Text: "cap",
	})
	if ft.forwardCount() != 1 || rules.count(1) != 1 {
		t.Error("captioned photo should pass photo_only")
	}
}

func TestEngineCopyTransformsText(t *testing.T) {
	ft := newFakeTransport()
	ft.usernames["@chanB"] = Peer{ID: 200}
	rules := newFakeRules(Rule{
		ID: 1, Account: "acct", Enabled: true, Mode: ModeCopy,
		Sources: []string{"@chanA"}, Destinations: []string{"@chanB"},
		Filters: FilterSet{CleanHashtag: true, CleanMention: true, CleanLink: true},
		Modify:  DefaultModify(),
	})
	e := newTestEngine(t, ft, rules, Options{})

	e.HandleMessage(context.Background(), &Message{
		ID: 1, ChatID: -1, ChatUsername: "chanA", Kind: KindText,
		Text: "Hello #world @user http://x.com",
	})

	if ft.textCount() != 1 {
		t.Fatalf("texts = %d, want 1", ft.textCount())
	}
	if got := ft.texts[0].Text; got != "Hello" {
		t.Errorf("sent text = %q, want %q", got, "Hello")
	}
	if !ft.texts[0].Opts.DisableLinkPreview {
		t.Error("clean_link should disable the preview")
	}
}

func TestEnginePartialDestCountsOnce(t *testing.T) {
	ft := newFakeTransport()
	ft.usernames["@good"] = Peer{ID: 1}
	ft.usernames["@bad"] = Peer{ID: 2}
	ft.failPeers[2] = errors.New("boom")
	rules := newFakeRules(Rule{
		ID: 1, Account: "acct", Enabled: true, Mode: ModeForward,
		Sources: []string{"@chanA"}, Destinations: []string{"@good", "@bad"},
		Modify: DefaultModify(),
	})
	e := newTestEngine(t, ft, rules, Options{})

	e.HandleMessage(context.Background(), &Message{
		ID: 1, ChatID: -1, ChatUsername: "chanA", Kind: KindText, Text: "hi",
	})

	if ft.forwardCount() != 1 {
		t.Errorf("forwards = %d, want 1", ft.forwardCount())
	}
	if rules.count(1) != 1 {
		t.Errorf("counter = %d, want exactly 1 despite the failed destination", rules.count(1))
	}
}

func TestEngineAllDestsFailNoCount(t *testing.T) {
	ft := newFakeTransport()
	ft.usernames["@bad"] = Peer{ID: 2}
	ft.failPeers[2] = errors.New("boom")
	rules := newFakeRules(Rule{
		ID: 1, Account: "acct", Enabled: true, Mode: ModeForward,
		Sources: []string{"@chanA"}, Destinations: []string{"@bad"},
		Modify: DefaultModify(),
	})
	e := newTestEngine(t, ft, rules, Options{})

	e.HandleMessage(context.Background(), &Message{
		ID: 1, ChatID: -1, ChatUsername: "chanA", Kind: KindText, Text: "hi",
	})

	if rules.count(1) != 0 {
		t.Error("counter must stay at 0 when no destination succeeded")
	}
}

func TestEngineMultipleRulesIndependent(t *testing.T) {
	ft := newFakeTransport()
	ft.usernames["@d1"] = Peer{ID: 1}
	ft.usernames["@d2"] = Peer{ID: 2}
	rules := newFakeRules(
		Rule{ID: 1, Account: "acct", Enabled: true, Mode: ModeForward,
			Sources: []string{"@chanA"}, Destinations: []string{"@d1"}, Modify: DefaultModify()},
		Rule{ID: 2, Account: "acct", Enabled: true, Mode: ModeForward,
			Sources: []string{"@chanA"}, Destinations: []string{"@d2"},
			Filters: FilterSet{Text: true}, Modify: DefaultModify()},
	)
	e := newTestEngine(t, ft, rules, Options{})

	// Rule 2 filters text messages, so only rule 1 fires.
	e.HandleMessage(context.Background(), &Message{
		ID: 1, ChatID: -1, ChatUsername: "chanA", Kind: KindText, Text: "hi",
	})

	if ft.forwardCount() != 1 {
		t.Fatalf("forwards = %d, want 1", ft.forwardCount())
	}
	if rules.count(1) != 1 || rules.count(2) != 0 {
		t.Errorf("counters = %d/%d, want 1/0", rules.count(1), rules.count(2))
	}
}

func TestEngineAlbumDispatchedOnce(t *testing.T) {
	ft := newFakeTransport()
	ft.usernames["@dest"] = Peer{ID: 9}
	rules := newFakeRules(Rule{
		ID: 1, Account: "acct", Enabled: true, Mode: ModeForward,
		Sources: []string{"@chanA"}, Destinations: []string{"@dest"},
		Modify: DefaultModify(),
	})
	e := newTestEngine(t, ft, rules, Options{AlbumWindow: 30 * time.Millisecond})

	for i := 1; i <= 3; i++ {
		e.HandleMessage(context.Background(), &Message{
			ID: i, ChatID: -1, ChatUsername: "chanA", Kind: KindPhoto,
			GroupID: "g1", Media: &MediaRef{FileID: "f"},
		})
	}

	waitFor(t, func() bool { return ft.forwardCount() == 1 })

	ft.mu.Lock()
	ids := ft.forwards[0].IDs
	ft.mu.Unlock()
	if len(ids) != 3 {
		t.Errorf("album forwarded %d ids, want 3", len(ids))
	}
	if rules.count(1) != 1 {
		t.Errorf("counter = %d, want 1 for the whole album", rules.count(1))
	}
}

func TestEngineDelayedDispatchDoesNotBlockStream(t *testing.T) {
	ft := newFakeTransport()
	ft.usernames["@dest"] = Peer{ID: 9}
	rules := newFakeRules(Rule{
		ID: 1, Account: "acct", Enabled: true, Mode: ModeForward,
		Sources: []string{"@chanA"}, Destinations: []string{"@dest"},
		Modify: ModifySet{RenamePattern: "{original}", DelayEnabled: true, DelaySeconds: 1},
	})
	e := newTestEngine(t, ft, rules, Options{})

	start := time.Now()
	e.HandleMessage(context.Background(), &Message{
		ID: 1, ChatID: -1, ChatUsername: "chanA", Kind: KindText, Text: "hi",
	})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("HandleMessage blocked %v while a delayed pass was pending", elapsed)
	}
	if ft.forwardCount() != 0 {
		t.Fatal("delayed pass must not deliver immediately")
	}

	waitFor(t, func() bool { return ft.forwardCount() == 1 })
	if rules.count(1) != 1 {
		t.Errorf("counter = %d, want 1 attached to the delayed pass", rules.count(1))
	}
}

func TestEngineDelayedRuleKeepsAlbumIntact(t *testing.T) {
	ft := newFakeTransport()
	ft.usernames["@dest"] = Peer{ID: 9}
	rules := newFakeRules(Rule{
		ID: 1, Account: "acct", Enabled: true, Mode: ModeForward,
		Sources: []string{"@chanA"}, Destinations: []string{"@dest"},
		Modify: ModifySet{RenamePattern: "{original}", DelayEnabled: true, DelaySeconds: 1},
	})
	e := newTestEngine(t, ft, rules, Options{AlbumWindow: 50 * time.Millisecond})

	// A delayed single pass followed immediately by an album burst: ingestion
	// must stay live while the first pass is still waiting, so every album
	// member lands inside the quiet window.
	start := time.Now()
	e.HandleMessage(context.Background(), &Message{
		ID: 1, ChatID: -1, ChatUsername: "chanA", Kind: KindText, Text: "solo",
	})
	for i := 2; i <= 4; i++ {
		e.HandleMessage(context.Background(), &Message{
			ID: i, ChatID: -1, ChatUsername: "chanA", Kind: KindPhoto,
			GroupID: "g1", Media: &MediaRef{FileID: "f"},
		})
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("ingestion took %v, stream stalled behind the delayed pass", elapsed)
	}

	waitFor(t, func() bool { return ft.forwardCount() == 2 })

	ft.mu.Lock()
	defer ft.mu.Unlock()
	var albumIDs []int
	for _, fc := range ft.forwards {
		if len(fc.IDs) > 1 {
			albumIDs = fc.IDs
		}
	}
	if len(albumIDs) != 3 {
		t.Errorf("album forwarded %d ids, want all 3 members in one flush", len(albumIDs))
	}
	if rules.count(1) != 2 {
		t.Errorf("counter = %d, want 2 (one per delivered pass)", rules.count(1))
	}
}

func TestEngineBackfill(t *testing.T) {
	ft := newFakeTransport()
	ft.usernames["@src"] = Peer{ID: 10}
	ft.usernames["@dest"] = Peer{ID: 20}
	ft.history[10] = []*Message{
		{ID: 1, ChatID: 10, Kind: KindText, Text: "one"},
		{ID: 2, ChatID: 10, Kind: KindText, Text: "two"},
		{ID: 3, ChatID: 10, Kind: KindText, Text: "three"},
	}
	rules := newFakeRules()
	rule := Rule{
		ID: 1, Account: "acct", Enabled: true, Mode: ModeForward,
		Sources: []string{"@src"}, Destinations: []string{"@dest"},
		Modify: ModifySet{RenamePattern: "{original}", HistoryEnabled: true, HistoryCount: 2},
	}
	e := newTestEngine(t, ft, rules, Options{})

	if err := e.Backfill(context.Background(), rule); err != nil {
		t.Fatal(err)
	}
	if ft.forwardCount() != 2 {
		t.Errorf("forwards = %d, want the most recent 2", ft.forwardCount())
	}
}

func TestEngineBackfillUnsupported(t *testing.T) {
	ft := newFakeTransport()
	ft.usernames["@src"] = Peer{ID: 10} // no history entry for peer 10
	rules := newFakeRules()
	rule := Rule{
		ID: 1, Account: "acct", Enabled: true,
		Sources: []string{"@src"}, Destinations: []string{"@dest"},
		Modify: ModifySet{HistoryEnabled: true, HistoryCount: 5},
	}
	e := newTestEngine(t, ft, rules, Options{})

	if err := e.Backfill(context.Background(), rule); !errors.Is(err, ErrHistoryUnsupported) {
		t.Errorf("err = %v, want ErrHistoryUnsupported", err)
	}
}
