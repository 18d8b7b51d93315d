// Package token allocates the correlation tokens that match an in-flight
// batch with the platform callback that eventually completes it.
//
// Tokens live in a vendor-imposed range [1, ceiling]. Some values in that
// range are reserved by the host (for example request codes used by other
// libraries) and are never handed out. A token stays outstanding until it is
// released, and no two outstanding tokens are equal across the process.
package token

import (
	"errors"
	"math/rand/v2"
	"sync"
)

// DefaultCeiling is the largest request code accepted by stock platforms.
const DefaultCeiling = 65535

// maxRandomAttempts bounds the random probing before falling back to a scan.
const maxRandomAttempts = 32

var (
	// ErrInvalidCeiling is returned when the requested range is empty.
	ErrInvalidCeiling = errors.New("token: ceiling must be positive")

	// ErrExhausted is returned when every token in the range is reserved or
	// outstanding.
	ErrExhausted = errors.New("token: range exhausted")
)

// Allocator hands out unique tokens. It is safe for concurrent use.
type Allocator struct {
	mu          sync.Mutex
	reserved    map[int]struct{}
	outstanding map[int]struct{}
	intn        func(n int) int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithReserved excludes the given values from allocation. It replaces the
// default reserved set.
func WithReserved(values ...int) Option {
	return func(a *Allocator) {
		a.reserved = make(map[int]struct{}, len(values))
		for _, v := range values {
			a.reserved[v] = struct{}{}
		}
	}
}

// withRand overrides the random source. Used by tests to force collisions.
func withRand(intn func(n int) int) Option {
	return func(a *Allocator) { a.intn = intn }
}

// New creates an Allocator. Zero is reserved unless WithReserved says otherwise.
func New(opts ...Option) *Allocator {
	a := &Allocator{
		reserved:    map[int]struct{}{0: {}},
		outstanding: make(map[int]struct{}),
		intn:        rand.IntN,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var shared = sync.OnceValue(func() *Allocator { return New() })

// Shared returns the process-wide allocator, created on first use. It lives
// for the lifetime of the process.
func Shared() *Allocator {
	return shared()
}

// Allocate returns a token in [1, ceiling] that is neither reserved nor
// outstanding, and marks it outstanding.
func (a *Allocator) Allocate(ceiling int) (int, error) {
	if ceiling < 1 {
		return 0, ErrInvalidCeiling
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.available(ceiling) == 0 {
		return 0, ErrExhausted
	}
	for range maxRandomAttempts {
		t := a.intn(ceiling) + 1
		if a.free(t) {
			a.outstanding[t] = struct{}{}
			return t, nil
		}
	}
	// Dense range: walk from a random start so callers do not all pile up
	// on the low end.
	start := a.intn(ceiling)
	for i := range ceiling {
		t := (start+i)%ceiling + 1
		if a.free(t) {
			a.outstanding[t] = struct{}{}
			return t, nil
		}
	}
	return 0, ErrExhausted
}

// Release returns token to the pool. Releasing a token that is not
// outstanding is a no-op and reports false.
func (a *Allocator) Release(token int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.outstanding[token]; !ok {
		return false
	}
	delete(a.outstanding, token)
	return true
}

// IsOutstanding reports whether token is currently allocated.
func (a *Allocator) IsOutstanding(token int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.outstanding[token]
	return ok
}

// Outstanding returns the number of allocated tokens.
func (a *Allocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.outstanding)
}

func (a *Allocator) free(t int) bool {
	if _, ok := a.reserved[t]; ok {
		return false
	}
	_, busy := a.outstanding[t]
	return !busy
}

// available counts the free tokens in [1, ceiling]. Caller holds mu.
func (a *Allocator) available(ceiling int) int {
	n := ceiling
	for r := range a.reserved {
		if r >= 1 && r <= ceiling {
			n--
		}
	}
	for t := range a.outstanding {
		if t >= 1 && t <= ceiling {
			if _, ok := a.reserved[t]; !ok {
				n--
			}
		}
	}
	return n
}
