package presence

import (
	"fmt"
	"sync"
	"time"
)

const (
	// TypingTTL is how long a typing signal stays visible without renewal.
	TypingTTL = 8 * time.Second
	// OnlineWindow is how recently a heartbeat must have arrived for a
	// user to count as online.
	OnlineWindow = 60 * time.Second
)

// ConversationScope and GroupScope build the typing keyspace.
func ConversationScope(id int) string { return fmt.Sprintf("conv:%d", id) }
func GroupScope(id int) string        { return fmt.Sprintf("group:%d", id) }

type typingKey struct {
	scope  string
	userID int
}

// Tracker holds ephemeral typing and last-seen state for this process
// only. Nothing here is persisted or replicated; a restart forgets it all,
// which is acceptable for signals that expire within seconds anyway.
// All access goes through the mutex, so a SetTyping followed by a Typing
// call on another goroutine always observes the update.
type Tracker struct {
	mu     sync.Mutex
	typing map[typingKey]time.Time // expiry
	seen   map[int]time.Time       // last heartbeat

	now func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		typing: make(map[typingKey]time.Time),
		seen:   make(map[int]time.Time),
		now:    time.Now,
	}
}

func (t *Tracker) SetTyping(scope string, userID int, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := typingKey{scope: scope, userID: userID}
	if isTyping {
		t.typing[key] = t.now().Add(TypingTTL)
	} else {
		delete(t.typing, key)
	}
}

// Typing returns the ids of users currently typing in scope, excluding
// the caller. Expired entries found along the way are evicted.
func (t *Tracker) Typing(scope string, excludeUserID int) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	users := []int{}
	for key, expiry := range t.typing {
		if !expiry.After(now) {
			delete(t.typing, key)
			continue
		}
		if key.scope == scope && key.userID != excludeUserID {
			users = append(users, key.userID)
		}
	}
	return users
}

func (t *Tracker) Heartbeat(userID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[userID] = t.now()
}

func (t *Tracker) IsOnline(userID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.seen[userID]
	return ok && t.now().Sub(last) <= OnlineWindow
}

// Online reports the online flag for each requested user id.
func (t *Tracker) Online(userIDs []int) map[int]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	out := make(map[int]bool, len(userIDs))
	for _, id := range userIDs {
		last, ok := t.seen[id]
		out[id] = ok && now.Sub(last) <= OnlineWindow
	}
	return out
}

// Sweep evicts expired typing entries and stale last-seen records so the
// maps stay bounded. Run it from a ticker goroutine.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for key, expiry := range t.typing {
		if !expiry.After(now) {
			delete(t.typing, key)
		}
	}
	for id, last := range t.seen {
		if now.Sub(last) > 24*time.Hour {
			delete(t.seen, id)
		}
	}
}

// StartSweeper runs Sweep on an interval until stop is closed.
func (t *Tracker) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Sweep()
		case <-stop:
			return
		}
	}
}
