// Package lifecycle holds shared process state consulted by handlers.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// Lifecycle tracks the process start time and the drain flag used for
// graceful shutdown. Readiness fails and new live sessions are refused
// once draining starts; in-flight work is left to finish.
type Lifecycle struct {
	started  time.Time
	draining atomic.Bool
}

func New() *Lifecycle {
	return &Lifecycle{started: time.Now()}
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}

// Uptime reports time since New. Zero for a nil or zero-value Lifecycle.
func (l *Lifecycle) Uptime() time.Duration {
	if l == nil || l.started.IsZero() {
		return 0
	}
	return time.Since(l.started)
}
