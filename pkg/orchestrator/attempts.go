package orchestrator

import "sync"

// Attempts remembers which capability names have been put in front of the
// user at least once during this process. It is process-lifetime state and is
// safe for concurrent use.
type Attempts struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewAttempts returns an empty set.
func NewAttempts() *Attempts {
	return &Attempts{names: make(map[string]struct{})}
}

var sharedAttempts = sync.OnceValue(NewAttempts)

// SharedAttempts returns the process-wide set, created on first use.
func SharedAttempts() *Attempts {
	return sharedAttempts()
}

// Mark records names as attempted.
func (a *Attempts) Mark(names ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, n := range names {
		a.names[n] = struct{}{}
	}
}

// Contains reports whether name was attempted.
func (a *Attempts) Contains(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.names[name]
	return ok
}

// Len returns the number of attempted names.
func (a *Attempts) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.names)
}
