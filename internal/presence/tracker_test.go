package presence

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker() (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	t := NewTracker()
	t.now = clock.Now
	return t, clock
}

func TestTypingVisibleToOthersOnly(t *testing.T) {
	tr, _ := newTestTracker()
	scope := ConversationScope(7)

	tr.SetTyping(scope, 1, true)
	if got := tr.Typing(scope, 2); len(got) != 1 || got[0] != 1 {
		t.Fatalf("user 2 should see user 1 typing, got %v", got)
	}
	if got := tr.Typing(scope, 1); len(got) != 0 {
		t.Fatalf("caller must be excluded, got %v", got)
	}
	if got := tr.Typing(GroupScope(7), 2); len(got) != 0 {
		t.Fatalf("other scopes must not leak, got %v", got)
	}
}

func TestTypingExpiresAfterTTL(t *testing.T) {
	tr, clock := newTestTracker()
	scope := ConversationScope(1)

	tr.SetTyping(scope, 1, true)
	clock.Advance(TypingTTL - time.Second)
	if got := tr.Typing(scope, 2); len(got) != 1 {
		t.Fatalf("signal should still be live, got %v", got)
	}
	clock.Advance(2 * time.Second)
	if got := tr.Typing(scope, 2); len(got) != 0 {
		t.Fatalf("signal should have expired, got %v", got)
	}
}

func TestSetTypingFalseClearsImmediately(t *testing.T) {
	tr, _ := newTestTracker()
	scope := ConversationScope(1)

	tr.SetTyping(scope, 1, true)
	tr.SetTyping(scope, 1, false)
	if got := tr.Typing(scope, 2); len(got) != 0 {
		t.Fatalf("stop-typing should clear the signal, got %v", got)
	}
}

func TestOnlineWindow(t *testing.T) {
	tr, clock := newTestTracker()

	tr.Heartbeat(5)
	if !tr.IsOnline(5) {
		t.Fatal("fresh heartbeat should report online")
	}
	clock.Advance(OnlineWindow + time.Second)
	if tr.IsOnline(5) {
		t.Fatal("stale heartbeat should report offline")
	}
	if tr.IsOnline(6) {
		t.Fatal("never-seen user should report offline")
	}
}

func TestOnlineBatch(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Heartbeat(1)

	got := tr.Online([]int{1, 2})
	if !got[1] || got[2] {
		t.Fatalf("unexpected online map: %v", got)
	}
}

func TestSweepEvictsExpiredTyping(t *testing.T) {
	tr, clock := newTestTracker()
	tr.SetTyping(ConversationScope(1), 1, true)
	tr.SetTyping(ConversationScope(2), 2, true)

	clock.Advance(TypingTTL + time.Second)
	tr.Sweep()

	tr.mu.Lock()
	n := len(tr.typing)
	tr.mu.Unlock()
	if n != 0 {
		t.Fatalf("sweep should evict expired entries, %d left", n)
	}
}

func TestConcurrentSetAndGet(t *testing.T) {
	tr, _ := newTestTracker()
	scope := ConversationScope(9)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			tr.SetTyping(scope, id, true)
			tr.Heartbeat(id)
			tr.Typing(scope, 0)
		}(i + 1)
	}
	wg.Wait()

	if got := tr.Typing(scope, 0); len(got) != 50 {
		t.Fatalf("expected 50 typing users, got %d", len(got))
	}
}
