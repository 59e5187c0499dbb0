package live

import (
	"context"
	"sync"
)

// Handle is the control surface one live session exposes to the tracker.
type Handle struct {
	Cancel func()
}

// Tracker keeps the set of open live sessions so the gateway can report
// counts and cancel everything during drain. Registering a session id that
// is already tracked cancels and replaces the old registration.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*tracked
	wg       sync.WaitGroup
}

type tracked struct {
	handle Handle
	once   sync.Once
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*tracked)}
}

// Register tracks a session and returns its unregister function. The
// returned function is idempotent.
func (t *Tracker) Register(sessionID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &tracked{handle: h}

	t.mu.Lock()
	old := t.sessions[sessionID]
	t.sessions[sessionID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		if old.handle.Cancel != nil {
			old.handle.Cancel()
		}
		t.unregister(sessionID, old)
	}

	return func() { t.unregister(sessionID, entry) }
}

func (t *Tracker) unregister(sessionID string, entry *tracked) {
	entry.once.Do(func() {
		t.mu.Lock()
		if t.sessions[sessionID] == entry {
			delete(t.sessions, sessionID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

// Count returns the number of open sessions.
func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// CancelAll cancels every open session. Used when draining.
func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}

	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.sessions {
		if entry.handle.Cancel != nil {
			cancels = append(cancels, entry.handle.Cancel)
		}
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every session unregisters or ctx expires. Returns true
// when the tracker fully drained.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
