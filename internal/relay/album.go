package relay

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultAlbumWindow is the quiet period after an album's first member during
// which further members are collected before flushing.
const DefaultAlbumWindow = 1500 * time.Millisecond

// AlbumFlush is one completed album handed to dispatch: all members collected
// within the quiet window plus the most recently seen non-empty caption.
type AlbumFlush struct {
	GroupID  string
	Messages []*Message
	Caption  string
	Rule     Rule
}

type albumBuffer struct {
	mu       sync.Mutex
	messages []*Message
	caption  string
	rule     Rule
	timer    *time.Timer
}

// Aggregator buffers grouped-media messages sharing a group id until a fixed
// quiet window expires, then emits one logical album unit. The window is
// anchored to the first member's arrival and is not reset by later arrivals;
// members arriving after the flush are dropped with a log line. One
// aggregator serves one account, so group ids never collide across accounts.
type Aggregator struct {
	window time.Duration
	flush  func(AlbumFlush)
	log    *slog.Logger

	mu      sync.Mutex
	buffers map[string]*albumBuffer
	// flushedAt remembers recently flushed group ids so a straggler is
	// recognized as late instead of seeding a fresh buffer.
	flushedAt map[string]time.Time
	closed    bool
}

// NewAggregator creates an aggregator flushing through flushFn. A zero window
// selects DefaultAlbumWindow.
func NewAggregator(window time.Duration, flushFn func(AlbumFlush), log *slog.Logger) *Aggregator {
	if window <= 0 {
		window = DefaultAlbumWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		window:    window,
		flush:     flushFn,
		log:       log,
		buffers:   make(map[string]*albumBuffer),
		flushedAt: make(map[string]time.Time),
	}
}

// Add buffers one grouped-media message. The first member of a group creates
// the buffer, captures the matched rule, and schedules the flush. Later
// members append and update the caption when they carry one. Returns false
// when the member arrived after its group already flushed.
func (a *Aggregator) Add(msg *Message, rule Rule) bool {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}
	a.pruneFlushed()
	if _, late := a.flushedAt[msg.GroupID]; late {
		a.mu.Unlock()
		a.log.Warn("album member arrived after flush, dropped",
			"group_id", msg.GroupID, "message_id", msg.ID, "rule_id", rule.ID)
		return false
	}
	b, ok := a.buffers[msg.GroupID]
	if !ok {
		// The first member is seeded before the timer is armed, so a flush
		// can never observe the buffer empty.
		b = &albumBuffer{rule: rule, messages: []*Message{msg}, caption: msg.Text}
		a.buffers[msg.GroupID] = b
		gid := msg.GroupID
		b.timer = time.AfterFunc(a.window, func() { a.flushGroup(gid) })
		a.mu.Unlock()
		return true
	}
	a.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rule.ID != rule.ID {
		// Rule and destinations are captured from the first member; a second
		// matching rule must not double-append the same messages.
		a.log.Debug("album member for non-owning rule ignored",
			"group_id", msg.GroupID, "rule_id", rule.ID, "owner_rule_id", b.rule.ID)
		return true
	}
	b.messages = append(b.messages, msg)
	if msg.Text != "" {
		b.caption = msg.Text
	}
	return true
}

// flushGroup removes the buffer atomically (a second flush for the same id is
// a no-op) and hands the collected members to the flush callback. Only the
// flushed buffer is locked; unrelated albums proceed concurrently.
func (a *Aggregator) flushGroup(groupID string) {
	a.mu.Lock()
	b, ok := a.buffers[groupID]
	if ok {
		delete(a.buffers, groupID)
		a.flushedAt[groupID] = time.Now()
	}
	a.mu.Unlock()
	if !ok {
		return
	}

	b.mu.Lock()
	messages := b.messages
	caption := b.caption
	rule := b.rule
	b.mu.Unlock()

	if len(messages) == 0 {
		return
	}
	a.flush(AlbumFlush{
		GroupID:  groupID,
		Messages: messages,
		Caption:  caption,
		Rule:     rule,
	})
}

// pruneFlushed drops tombstones older than two windows. Callers hold a.mu.
func (a *Aggregator) pruneFlushed() {
	cutoff := time.Now().Add(-2 * a.window)
	for gid, t := range a.flushedAt {
		if t.Before(cutoff) {
			delete(a.flushedAt, gid)
		}
	}
}

// Close cancels all pending flush timers. Buffered members are discarded.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	for gid, b := range a.buffers {
		b.timer.Stop()
		delete(a.buffers, gid)
	}
}
