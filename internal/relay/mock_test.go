package relay

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// fakeTransport is an in-memory Transport for engine/dispatcher tests.
type forwardCall struct {
	To       Peer
	FromChat int64
	IDs      []int
}

type textCall struct {
	To   Peer
	Text string
	Opts SendOpts
}

type uploadCall struct {
	To Peer
	Up Upload
}

type albumCall struct {
	To      Peer
	Items   []AlbumItem
	Caption string
}

type fakeTransport struct {
	mu sync.Mutex

	usernames  map[string]Peer
	ids        map[int64]Peer
	channelIDs map[int64]Peer
	dialogs    []Peer
	history    map[int64][]*Message

	failPeers map[int64]error // deliveries to these peer ids fail

	usernameCalls int
	idCalls       int
	dialogCalls   int

	forwards []forwardCall
	texts    []textCall
	uploads  []uploadCall
	albums   []albumCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		usernames:  make(map[string]Peer),
		ids:        make(map[int64]Peer),
		channelIDs: make(map[int64]Peer),
		history:    make(map[int64][]*Message),
		failPeers:  make(map[int64]error),
	}
}

func (f *fakeTransport) ResolveUsername(_ context.Context, username string) (Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usernameCalls++
	if p, ok := f.usernames[username]; ok {
		return p, nil
	}
	return Peer{}, fmt.Errorf("username %s unknown", username)
}

func (f *fakeTransport) ResolvePeerID(_ context.Context, id int64) (Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idCalls++
	if p, ok := f.ids[id]; ok {
		return p, nil
	}
	return Peer{}, fmt.Errorf("id %d unknown", id)
}

func (f *fakeTransport) ResolveChannelID(_ context.Context, id int64) (Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.channelIDs[id]; ok {
		return p, nil
	}
	return Peer{}, fmt.Errorf("channel %d unknown", id)
}

func (f *fakeTransport) Dialogs(_ context.Context) ([]Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogCalls++
	return append([]Peer(nil), f.dialogs...), nil
}

func (f *fakeTransport) Forward(_ context.Context, to Peer, fromChat int64, ids []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failPeers[to.ID]; ok {
		return err
	}
	f.forwards = append(f.forwards, forwardCall{To: to, FromChat: fromChat, IDs: ids})
	return nil
}

func (f *fakeTransport) SendText(_ context.Context, to Peer, text string, opts SendOpts) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failPeers[to.ID]; ok {
		return err
	}
	f.texts = append(f.texts, textCall{To: to, Text: text, Opts: opts})
	return nil
}

func (f *fakeTransport) Download(_ context.Context, _ *MediaRef) (string, error) {
	tmp, err := os.CreateTemp("", "relay_test_*")
	if err != nil {
		return "", err
	}
	tmp.Close()
	return tmp.Name(), nil
}

func (f *fakeTransport) Upload(_ context.Context, to Peer, up Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failPeers[to.ID]; ok {
		return err
	}
	f.uploads = append(f.uploads, uploadCall{To: to, Up: up})
	return nil
}

func (f *fakeTransport) UploadAlbum(_ context.Context, to Peer, items []AlbumItem, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failPeers[to.ID]; ok {
		return err
	}
	f.albums = append(f.albums, albumCall{To: to, Items: items, Caption: caption})
	return nil
}

func (f *fakeTransport) History(_ context.Context, chat Peer, limit int) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.history[chat.ID]
	if !ok {
		return nil, ErrHistoryUnsupported
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeTransport) forwardCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forwards)
}

func (f *fakeTransport) textCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

// fakeRules is an in-memory RuleSource.
type fakeRules struct {
	mu     sync.Mutex
	rules  []Rule
	counts map[int64]int
}

func newFakeRules(rules ...Rule) *fakeRules {
	return &fakeRules{rules: rules, counts: make(map[int64]int)}
}

func (f *fakeRules) RulesForAccount(_ context.Context, account string) ([]Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Rule
	for _, r := range f.rules {
		if r.Account == account && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRules) IncrementForwardCount(_ context.Context, ruleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[ruleID]++
	return nil
}

func (f *fakeRules) count(ruleID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[ruleID]
}
