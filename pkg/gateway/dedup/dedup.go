package dedup

import (
	"sync"
	"time"

	"github.com/stampchat/stampchat/pkg/core/types"
)

// DefaultWindow is how long a registered entry may stay in the map before
// the sweep treats it as leaked by a crashed flow.
const DefaultWindow = 60 * time.Second

// Pending is the shared future for one in-flight upstream call. Concurrent
// identical requests wait on the same Pending instead of re-issuing the call.
type Pending struct {
	done   chan struct{}
	result *types.ChatResponse
	err    error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Resolve settles the future. Safe to call once.
func (p *Pending) Resolve(result *types.ChatResponse, err error) {
	p.result = result
	p.err = err
	close(p.done)
}

// Wait blocks until the future settles.
func (p *Pending) Wait() (*types.ChatResponse, error) {
	<-p.done
	return p.result, p.err
}

type entry struct {
	pending    *Pending
	registered time.Time
}

// Deduplicator guarantees at most one in-flight upstream call per
// (session, normalized message) key. Entries self-remove on completion and
// are additionally swept by age on every new request, so a leaked entry can
// never block retries forever.
type Deduplicator struct {
	mu      sync.Mutex
	entries map[string]*entry

	window time.Duration
	now    func() time.Time
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithWindow overrides the stale-entry sweep age.
func WithWindow(window time.Duration) Option {
	return func(d *Deduplicator) {
		if window > 0 {
			d.window = window
		}
	}
}

// WithClock injects a time source.
func WithClock(now func() time.Time) Option {
	return func(d *Deduplicator) { d.now = now }
}

// New creates a Deduplicator.
func New(opts ...Option) *Deduplicator {
	d := &Deduplicator{
		entries: make(map[string]*entry),
		window:  DefaultWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Key derives the dedup key for a turn.
func Key(sessionID, message string) string {
	return sessionID + ":" + types.NormalizeMessage(message)
}

// Begin sweeps stale entries, then either joins the existing in-flight call
// for key (non-nil return) or claims the key for the caller (nil return).
// A caller that receives nil must eventually settle via Resolve and End.
func (d *Deduplicator) Begin(key string) (existing *Pending, claimed *Pending) {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	for k, e := range d.entries {
		if now.Sub(e.registered) > d.window {
			delete(d.entries, k)
		}
	}

	if e, ok := d.entries[key]; ok {
		return e.pending, nil
	}

	p := newPending()
	d.entries[key] = &entry{pending: p, registered: now}
	return nil, p
}

// End removes the key's entry. Must run on both success and failure so a
// retry is never permanently blocked.
func (d *Deduplicator) End(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, key)
}

// Count returns the number of in-flight entries.
func (d *Deduplicator) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
