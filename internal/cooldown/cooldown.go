// Package cooldown rate-limits commands per user.
package cooldown

import (
	"sync"
	"time"
)

// Registry remembers when each user last had a command accepted.
type Registry struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

func New(window time.Duration) *Registry {
	return &Registry{window: window, last: map[string]time.Time{}, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
	return r
}

// Acquire accepts a command from user unless the previous accepted one is
// younger than the window. On rejection it returns the remaining wait, which
// is in (0, window]; the stored timestamp is only updated on acceptance.
func (r *Registry) Acquire(user string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if last, ok := r.last[user]; ok && r.window > 0 {
		if elapsed := now.Sub(last); elapsed < r.window {
			remaining := r.window - elapsed
			if remaining > r.window {
				// clock went backwards
				remaining = r.window
			}
			return remaining, false
		}
	}
	r.last[user] = now
	return 0, true
}

// SetWindow changes the window for subsequent checks. Zero disables the limit.
func (r *Registry) SetWindow(d time.Duration) {
	if d < 0 {
		d = 0
	}
	r.mu.Lock()
	r.window = d
	r.mu.Unlock()
}

func (r *Registry) Window() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.window
}
