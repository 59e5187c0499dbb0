package session

import (
	"sync"
	"time"

	"github.com/stampchat/stampchat/pkg/core/types"
)

// Store abstracts session persistence so the registry is swappable in tests
// and replaceable with a shared backing store for multi-instance deployments.
// The bundled implementation is an in-memory map scoped to the process.
type Store interface {
	// Get returns the conversation ref for a session and whether one exists.
	Get(sessionID string) (string, bool)

	// Update overwrites the session's conversation ref with the newest
	// provider-side identifier. Creates the session if unseen.
	Update(sessionID, conversationRef string)

	// Count returns the number of tracked sessions.
	Count() int
}

// Registry maps opaque client session ids to provider-side conversation
// identifiers, and keeps short-lived stamp referent memory for the voice
// variant. Sessions live for the process lifetime; refs are only ever
// replaced, never destroyed.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]string
	stamps   map[string][]types.StampContext

	contextTTL time.Duration
	contextCap int

	now func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock injects a time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithStampContext overrides the referent-memory TTL and capacity.
func WithStampContext(ttl time.Duration, capacity int) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.contextTTL = ttl
		}
		if capacity > 0 {
			r.contextCap = capacity
		}
	}
}

// NewRegistry creates an in-memory session registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:   make(map[string]string),
		stamps:     make(map[string][]types.StampContext),
		contextTTL: 10 * time.Minute,
		contextCap: 5,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Store = (*Registry)(nil)

// Get returns the conversation ref for sessionID, if the session has one.
// A false return signals the caller to start a brand-new conversation.
func (r *Registry) Get(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.sessions[sessionID]
	return ref, ok && ref != ""
}

// Update records the newest conversation ref for sessionID. Called after
// every successful turn so the next turn continues the same conversation.
func (r *Registry) Update(sessionID, conversationRef string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = conversationRef
}

// Count returns the number of sessions tracked.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RememberStamps appends records to the session's referent memory, keeping
// the newest contextCap entries. Expired entries are swept on the way in.
func (r *Registry) RememberStamps(sessionID string, records []types.StampRecord) {
	if len(records) == 0 {
		return
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.sweepLocked(sessionID, now)
	for _, rec := range records {
		kept = append(kept, types.StampContext{Record: rec, SeenAt: now})
	}
	if len(kept) > r.contextCap {
		kept = kept[len(kept)-r.contextCap:]
	}
	r.stamps[sessionID] = kept
}

// RecentStamps returns the session's unexpired referent memory, oldest first.
func (r *Registry) RecentStamps(sessionID string) []types.StampContext {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.sweepLocked(sessionID, now)
	if len(kept) == 0 {
		delete(r.stamps, sessionID)
		return nil
	}
	r.stamps[sessionID] = kept
	out := make([]types.StampContext, len(kept))
	copy(out, kept)
	return out
}

func (r *Registry) sweepLocked(sessionID string, now time.Time) []types.StampContext {
	var kept []types.StampContext
	for _, sc := range r.stamps[sessionID] {
		if now.Sub(sc.SeenAt) <= r.contextTTL {
			kept = append(kept, sc)
		}
	}
	return kept
}
