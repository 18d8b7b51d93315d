package orchestrator

import (
	"fmt"

	"github.com/go-drift/permit/pkg/capability"
	"github.com/go-drift/permit/pkg/errors"
)

// outcome is how a request channel resolved.
type outcome int

const (
	// outcomeCompleted means the platform answered (or nothing had to be shown).
	outcomeCompleted outcome = iota
	// outcomeFailed means the platform could not show anything for the batch.
	outcomeFailed
	// outcomeAbandoned means the host went away first.
	outcomeAbandoned
)

func (o outcome) String() string {
	switch o {
	case outcomeCompleted:
		return "completed"
	case outcomeFailed:
		return "failed"
	case outcomeAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// channelState is the lifecycle of one issued batch.
type channelState int

const (
	channelIssued channelState = iota
	channelAwaiting
	channelSettling
	channelResolved
	channelAbandoned
	// channelDraining keeps the token of a failed redirect until the returns
	// of its failed targets have arrived.
	channelDraining
)

func (c channelState) String() string {
	switch c {
	case channelIssued:
		return "issued"
	case channelAwaiting:
		return "awaiting_result"
	case channelSettling:
		return "settling"
	case channelResolved:
		return "resolved"
	case channelAbandoned:
		return "abandoned"
	case channelDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// requestChannel issues one batch to the platform and calls done exactly
// once, whatever the platform does: duplicate results are dropped by the
// token check, spurious settings returns are absorbed by the ignore count and
// a host teardown resolves it as abandoned.
type requestChannel struct {
	engine  *Engine
	session *Session
	batch   Batch

	state        channelState
	token        int
	holdsToken   bool
	ignore       int
	cancelSettle func()
	done         func(outcome)
}

func newRequestChannel(e *Engine, s *Session, batch Batch) *requestChannel {
	return &requestChannel{engine: e, session: s, batch: batch}
}

func (ch *requestChannel) issue(done func(outcome)) {
	ch.done = done
	ch.state = channelIssued
	if ch.batch.Kind() == capability.SettingsRedirect {
		ch.issueRedirect()
	} else {
		ch.issueDialog()
	}
}

func (ch *requestChannel) issueDialog() {
	if !ch.acquireToken() {
		return
	}
	e := ch.engine
	e.attempts.Mark(ch.batch.Names()...)
	ch.state = channelAwaiting
	err := callPlatform(func() error { return e.platform.RequestDialog(ch.token, ch.batch) })
	if err == nil || ch.state != channelAwaiting {
		return
	}
	// Broken dialog handlers never call back; resolve now so the session
	// keeps moving.
	ch.fail("orchestrator.requestDialog", err)
}

func (ch *requestChannel) issueRedirect() {
	e := ch.engine
	c := ch.batch[0]
	if !e.platform.IsSettingsRedirectPending(c) {
		ch.session.logger.V(levelBatch).Info("settings redirect not pending", "capability", c.Name())
		ch.resolve(outcomeCompleted)
		return
	}
	targets := e.platform.SettingsTargets(c)
	if len(targets) == 0 {
		ch.fail("orchestrator.settingsTargets", ErrNoSettingsTarget)
		return
	}
	if !ch.acquireToken() {
		return
	}
	e.attempts.Mark(c.Name())
	ch.state = channelAwaiting

	var lastErr error
	for _, target := range targets {
		err := callPlatform(func() error { return e.platform.LaunchSettings(ch.token, target) })
		if ch.state != channelAwaiting {
			return
		}
		if err == nil {
			return
		}
		// The failed candidate still returns once; that return is not ours.
		ch.ignore++
		lastErr = err
		ch.session.logger.V(levelEvent).Info("settings target failed", "target", target.String(), "error", err.Error())
	}
	ch.fail("orchestrator.launchSettings", fmt.Errorf("%w: %w", ErrLaunchFailed, lastErr))
}

func (ch *requestChannel) acquireToken() bool {
	e := ch.engine
	tok, err := e.tokens.Allocate(e.ceiling)
	if err != nil {
		ch.fail("orchestrator.allocateToken", err)
		return false
	}
	ch.token = tok
	ch.holdsToken = true
	e.inflight[tok] = ch
	ch.session.logger.V(levelEvent).Info("token allocated", "token", tok)
	return true
}

func (ch *requestChannel) releaseToken() {
	if !ch.holdsToken {
		return
	}
	ch.holdsToken = false
	delete(ch.engine.inflight, ch.token)
	ch.engine.tokens.Release(ch.token)
	ch.session.logger.V(levelEvent).Info("token released", "token", ch.token)
}

// receive consumes the platform event for token. It reports whether the
// event was the one that completes the batch.
func (ch *requestChannel) receive(token int) bool {
	if ch.state == channelDraining {
		ch.drain(token)
		return false
	}
	if ch.state != channelAwaiting || !ch.holdsToken || token != ch.token {
		return false
	}
	if ch.ignore > 0 {
		ch.ignore--
		ch.session.logger.V(levelEvent).Info("absorbed spurious return", "token", token, "remaining", ch.ignore)
		return false
	}
	ch.releaseToken()
	ch.state = channelSettling
	ch.cancelSettle = ch.engine.timeline.PostDelayed(ch.batch.ResultSettleDelay(), func() {
		ch.cancelSettle = nil
		ch.resolve(outcomeCompleted)
	})
	return true
}

// drain absorbs one return of a failed settings target and gives the token
// back once none is left.
func (ch *requestChannel) drain(token int) {
	if !ch.holdsToken || token != ch.token {
		return
	}
	ch.ignore--
	ch.session.logger.V(levelEvent).Info("absorbed return of failed target", "token", token, "remaining", ch.ignore)
	if ch.ignore <= 0 {
		ch.stopDraining()
	}
}

func (ch *requestChannel) stopDraining() {
	ch.releaseToken()
	ch.state = channelResolved
}

// fail reports a platform anomaly and resolves the batch immediately. Its
// members end up denied unless the platform grants them anyway. Returns still
// owed by failed settings targets keep the token out of the allocator, so
// they cannot complete a later batch that draws the same value.
func (ch *requestChannel) fail(op string, err error) {
	draining := ch.holdsToken && ch.ignore > 0
	if !draining {
		ch.releaseToken()
	}
	errors.Report(&errors.Error{
		Op:           op,
		Kind:         errors.KindPlatform,
		Session:      ch.session.id,
		Token:        ch.token,
		Capabilities: ch.batch.Names(),
		Err:          err,
	})
	if !draining {
		ch.resolve(outcomeFailed)
		return
	}
	ch.state = channelDraining
	ch.finish(outcomeFailed)
}

func (ch *requestChannel) resolve(o outcome) {
	if ch.state == channelResolved || ch.state == channelAbandoned || ch.state == channelDraining {
		return
	}
	ch.state = channelResolved
	ch.finish(o)
}

func (ch *requestChannel) abandon() {
	if ch.state == channelResolved || ch.state == channelAbandoned || ch.state == channelDraining {
		return
	}
	if ch.cancelSettle != nil {
		ch.cancelSettle()
		ch.cancelSettle = nil
	}
	ch.releaseToken()
	ch.state = channelAbandoned
	ch.finish(outcomeAbandoned)
}

func (ch *requestChannel) finish(o outcome) {
	done := ch.done
	ch.done = nil
	if done != nil {
		done(o)
	}
}

// callPlatform runs fn and turns a panic into an error.
func callPlatform(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("platform panic: %v", r)
		}
	}()
	return fn()
}
