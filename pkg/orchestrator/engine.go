package orchestrator

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/go-drift/permit/pkg/capability"
	"github.com/go-drift/permit/pkg/token"
)

// Log verbosity levels.
const (
	levelSession = 0
	levelBatch   = 1
	levelEvent   = 2
)

// Caller errors returned by Orchestrate.
var (
	ErrEmptyRequest        = errors.New("orchestrator: empty request")
	ErrNilCapability       = errors.New("orchestrator: nil capability")
	ErrDuplicateCapability = errors.New("orchestrator: duplicate capability")
	ErrNilCallback         = errors.New("orchestrator: nil callback")
	ErrEngineClosed        = errors.New("orchestrator: engine closed")
)

// Anomalies reported through pkg/errors while a session runs.
var (
	ErrAbandoned        = errors.New("orchestrator: session abandoned before completion")
	ErrNoSettingsTarget = errors.New("orchestrator: no settings target")
	ErrLaunchFailed     = errors.New("orchestrator: every settings target failed to launch")
)

// Engine runs request sessions for one host container. It is confined to its
// Timeline: Orchestrate, the Deliver methods, Teardown and Close must all be
// called from the timeline's thread. Only the token allocator and the
// attempted-name set are shared with other engines.
type Engine struct {
	platform Platform
	timeline Timeline
	tokens   *token.Allocator
	ceiling  int
	attempts *Attempts
	logger   logr.Logger

	inflight map[int]*requestChannel
	sessions map[*Session]struct{}
	closed   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithTokens uses a instead of the process-wide token allocator.
func WithTokens(a *token.Allocator) Option {
	return func(e *Engine) { e.tokens = a }
}

// WithTokenCeiling sets the upper bound of the token range. Some vendors only
// accept request codes up to 255.
func WithTokenCeiling(ceiling int) Option {
	return func(e *Engine) { e.ceiling = ceiling }
}

// WithAttempts uses a instead of the process-wide attempted-name set.
func WithAttempts(a *Attempts) Option {
	return func(e *Engine) { e.attempts = a }
}

// WithLogger sets the logger used for tracing sessions.
func WithLogger(l logr.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine bound to platform and timeline.
func New(platform Platform, timeline Timeline, opts ...Option) *Engine {
	e := &Engine{
		platform: platform,
		timeline: timeline,
		tokens:   token.Shared(),
		ceiling:  token.DefaultCeiling,
		attempts: SharedAttempts(),
		logger:   logr.Discard(),
		inflight: make(map[int]*requestChannel),
		sessions: make(map[*Session]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithName("permit")
	return e
}

// Orchestrate requests every capability in request and reports the aggregated
// outcome to cb. Malformed input fails synchronously before anything is
// issued. When nothing needs to be requested, cb.OnFinish runs before
// Orchestrate returns.
func (e *Engine) Orchestrate(request []capability.Capability, cb Callback) (*Session, error) {
	if err := e.validate(request, cb); err != nil {
		return nil, err
	}
	s := newSession(e, request, cb)
	e.sessions[s] = struct{}{}
	s.start()
	return s, nil
}

func (e *Engine) validate(request []capability.Capability, cb Callback) error {
	if e.closed {
		return ErrEngineClosed
	}
	if cb == nil {
		return ErrNilCallback
	}
	if len(request) == 0 {
		return ErrEmptyRequest
	}
	seen := make(map[string]struct{}, len(request))
	for i, c := range request {
		if c == nil {
			return fmt.Errorf("%w at index %d", ErrNilCapability, i)
		}
		if _, dup := seen[c.Name()]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateCapability, c.Name())
		}
		seen[c.Name()] = struct{}{}
	}
	return nil
}

// DeliverDialogResult routes a dialog result event to the batch holding
// token. It reports whether the event completed a batch; duplicates and
// events for unknown tokens are dropped.
func (e *Engine) DeliverDialogResult(token int) bool {
	return e.deliver(token, capability.QuickDialog)
}

// DeliverSettingsReturn routes the return from a settings screen to the batch
// holding token. Expected spurious returns are absorbed and report false.
func (e *Engine) DeliverSettingsReturn(token int) bool {
	return e.deliver(token, capability.SettingsRedirect)
}

func (e *Engine) deliver(token int, kind capability.Kind) bool {
	ch, ok := e.inflight[token]
	if !ok || ch.batch.Kind() != kind {
		e.logger.V(levelEvent).Info("dropping event for unowned token", "token", token, "kind", kind.String())
		return false
	}
	return ch.receive(token)
}

// Teardown abandons every live session. Each one reports OnAnomaly once.
// The engine stays usable.
// Tokens still draining returns of failed settings targets are released,
// since no return arrives once the host is gone.
func (e *Engine) Teardown() int {
	n := 0
	for _, s := range e.Live() {
		if s.Abandon() {
			n++
		}
	}
	for _, ch := range e.inflight {
		if ch.state == channelDraining {
			ch.stopDraining()
		}
	}
	return n
}

// Close tears the engine down and rejects further requests.
func (e *Engine) Close() {
	e.closed = true
	e.Teardown()
}

// Live returns the sessions that have not reached a terminal state.
func (e *Engine) Live() []*Session {
	out := make([]*Session, 0, len(e.sessions))
	for s := range e.sessions {
		out = append(out, s)
	}
	return out
}

// PermanentlyDenied returns the members of denied that were asked for before
// and that the platform no longer offers to ask for ("don't ask again").
// Settings redirect capabilities are never reported.
func (e *Engine) PermanentlyDenied(denied []capability.Capability) []capability.Capability {
	var out []capability.Capability
	for _, c := range denied {
		if c.Kind() != capability.QuickDialog || e.platform.IsGranted(c) {
			continue
		}
		if e.attempts.Contains(c.Name()) && !e.platform.ShouldShowRationale(c) {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) forget(s *Session) {
	delete(e.sessions, s)
}
