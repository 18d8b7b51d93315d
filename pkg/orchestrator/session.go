package orchestrator

import (
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/go-drift/permit/pkg/capability"
	"github.com/go-drift/permit/pkg/errors"
)

// State is the scheduler state of a Session.
type State int

const (
	// StateIdle is the state before the batch plan is built.
	StateIdle State = iota
	// StateBatchPending is the state while the head batch is re-validated.
	StateBatchPending
	// StateBatchInFlight is the state while a batch is with the platform,
	// including the inter-request delay that follows it.
	StateBatchInFlight
	// StateComplete is terminal: OnFinish has fired.
	StateComplete
	// StateAbandoned is terminal: OnAnomaly has fired.
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBatchPending:
		return "batch_pending"
	case StateBatchInFlight:
		return "batch_in_flight"
	case StateComplete:
		return "complete"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Session is one orchestration run, from Orchestrate to its terminal callback.
type Session struct {
	id      string
	engine  *Engine
	logger  logr.Logger
	request []capability.Capability

	batches []Batch
	cursor  int
	state   State
	started bool

	callback    Callback
	channel     *requestChannel
	cancelDelay func()

	granted []capability.Capability
	denied  []capability.Capability
}

func newSession(e *Engine, request []capability.Capability, cb Callback) *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		engine:   e,
		logger:   e.logger.WithValues("session", id),
		request:  append([]capability.Capability(nil), request...),
		callback: cb,
	}
}

// ID returns the session correlation id.
func (s *Session) ID() string { return s.id }

// State returns the current scheduler state.
func (s *Session) State() State { return s.state }

// Batches returns the batch plan computed when the session started.
func (s *Session) Batches() []Batch { return s.batches }

// Result returns the final classification. Both lists are nil until the
// session completes.
func (s *Session) Result() (granted, denied []capability.Capability) {
	return s.granted, s.denied
}

func (s *Session) start() {
	p := s.engine.platform
	expanded := capability.Expand(s.request, p.IsSupported)
	s.batches = Partition(expanded, p)
	s.logger.V(levelSession).Info("session started",
		"requested", capability.Names(s.request), "batches", len(s.batches))
	if len(s.batches) == 0 {
		s.finish()
		return
	}
	s.advance()
}

// advance issues the next batch that still needs the platform, or finishes
// the session when none is left.
func (s *Session) advance() {
	s.cancelDelay = nil
	for s.cursor < len(s.batches) {
		if s.terminal() {
			return
		}
		s.state = StateBatchPending
		batch := s.batches[s.cursor].pending(s.engine.platform)
		if len(batch) == 0 {
			s.logger.V(levelBatch).Info("skipping granted batch", "batch", s.batches[s.cursor].String())
			s.cursor++
			continue
		}
		if !s.foregroundSatisfied(batch) {
			s.logger.V(levelBatch).Info("skipping background batch without foreground grant", "batch", batch.String())
			s.cursor++
			continue
		}
		s.issue(batch)
		return
	}
	s.finish()
}

// foregroundSatisfied reports whether a background batch may be requested:
// any single granted foreground dependency of its first member is enough.
func (s *Session) foregroundSatisfied(batch Batch) bool {
	if !batch.IsBackground() {
		return true
	}
	deps := batch[0].ForegroundDependencies()
	if len(deps) == 0 {
		return true
	}
	for _, d := range deps {
		if s.engine.platform.IsGranted(d) {
			return true
		}
	}
	return false
}

func (s *Session) issue(batch Batch) {
	s.state = StateBatchInFlight
	if !s.started {
		s.started = true
		if cb := s.callback; cb != nil {
			errors.Guard("orchestrator.onStart", cb.OnStart)
		}
		// OnStart may have torn the host down.
		if s.state != StateBatchInFlight {
			return
		}
	}
	s.logger.V(levelBatch).Info("issuing batch", "batch", batch.String(), "kind", batch.Kind().String())
	ch := newRequestChannel(s.engine, s, batch)
	s.channel = ch
	ch.issue(func(o outcome) { s.resolved(ch, o) })
}

func (s *Session) resolved(ch *requestChannel, o outcome) {
	if s.channel != ch {
		return
	}
	s.channel = nil
	if s.state != StateBatchInFlight {
		return
	}
	s.logger.V(levelBatch).Info("batch resolved", "batch", ch.batch.String(), "outcome", o.String())
	s.cursor++
	s.cancelDelay = s.engine.timeline.PostDelayed(ch.batch.InterRequestDelay(), s.advance)
}

func (s *Session) finish() {
	s.state = StateComplete
	p := s.engine.platform
	granted := make([]capability.Capability, 0, len(s.request))
	denied := make([]capability.Capability, 0, len(s.request))
	for _, c := range s.request {
		if capability.Granted(c, p.IsSupported, p.IsGranted) {
			granted = append(granted, c)
		} else {
			denied = append(denied, c)
		}
	}
	s.granted, s.denied = granted, denied
	s.logger.V(levelSession).Info("session finished",
		"granted", capability.Names(granted), "denied", capability.Names(denied))

	cb := s.release()
	if cb != nil {
		errors.Guard("orchestrator.onFinish", func() { cb.OnFinish(granted, denied) })
	}
}

// Abandon ends the session because its host container went away. Pending
// deferred work is cancelled, any held token is released and OnAnomaly fires
// once. It reports false if the session had already ended.
func (s *Session) Abandon() bool {
	if s.terminal() {
		return false
	}
	s.state = StateAbandoned
	if s.cancelDelay != nil {
		s.cancelDelay()
		s.cancelDelay = nil
	}
	if ch := s.channel; ch != nil {
		s.channel = nil
		ch.abandon()
	}
	s.logger.V(levelSession).Info("session abandoned", "remaining", len(s.batches)-s.cursor)
	errors.Report(&errors.Error{
		Op:      "orchestrator.abandon",
		Kind:    errors.KindAnomaly,
		Session: s.id,
		Err:     ErrAbandoned,
	})

	cb := s.release()
	if cb != nil {
		errors.Guard("orchestrator.onAnomaly", cb.OnAnomaly)
	}
	return true
}

// release drops the callback reference so the caller's objects are not
// retained, and unregisters the session from its engine.
func (s *Session) release() Callback {
	cb := s.callback
	s.callback = nil
	s.engine.forget(s)
	return cb
}

func (s *Session) terminal() bool {
	return s.state == StateComplete || s.state == StateAbandoned
}
