package orchestrator

import (
	"time"

	"github.com/go-drift/permit/pkg/capability"
)

// GrantChecker answers the per-capability predicates the partitioner needs.
type GrantChecker interface {
	// IsGranted reports whether c is granted right now.
	IsGranted(c capability.Capability) bool
	// IsSupported reports whether c exists on this platform.
	IsSupported(c capability.Capability) bool
}

// Platform is the host platform as seen by the engine. All predicates must be
// cheap and free of side effects; the engine calls them again before every
// batch and never caches their answers.
type Platform interface {
	GrantChecker

	// IsSettingsRedirectPending reports whether visiting a settings screen can
	// still change c's state. When false the redirect is skipped.
	IsSettingsRedirectPending(c capability.Capability) bool

	// SettingsTargets returns the candidate settings screens for c, best first.
	SettingsTargets(c capability.Capability) []capability.Target

	// ShouldShowRationale reports whether the platform suggests explaining c
	// before asking again. False after a denial means "don't ask again".
	ShouldShowRationale(c capability.Capability) bool

	// RequestDialog shows one permission dialog for caps. The platform answers
	// later through Engine.DeliverDialogResult with the same token.
	RequestDialog(token int, caps []capability.Capability) error

	// LaunchSettings opens target. The platform answers later through
	// Engine.DeliverSettingsReturn with the same token. A failed launch still
	// produces one return event.
	LaunchSettings(token int, target capability.Target) error
}

// Timeline is the single-threaded event loop the engine runs on. Platform
// events are delivered on it and deferred work is scheduled on it.
type Timeline interface {
	// Post runs fn on the timeline after the current task.
	Post(fn func())
	// PostDelayed runs fn on the timeline no earlier than d from now. The
	// returned function cancels fn if it has not run yet.
	PostDelayed(d time.Duration, fn func()) (cancel func())
}

// Callback receives the outcome of a session. OnStart fires at most once,
// then exactly one of OnFinish or OnAnomaly fires exactly once.
type Callback interface {
	// OnStart fires when the first batch is issued. Sessions resolved without
	// any batch never fire it.
	OnStart()
	// OnFinish delivers the classification of every requested capability.
	OnFinish(granted, denied []capability.Capability)
	// OnAnomaly fires when the session is abandoned before it completes.
	OnAnomaly()
}

// Callbacks adapts plain functions to Callback. Nil fields are ignored.
type Callbacks struct {
	Start   func()
	Finish  func(granted, denied []capability.Capability)
	Anomaly func()
}

func (c Callbacks) OnStart() {
	if c.Start != nil {
		c.Start()
	}
}

func (c Callbacks) OnFinish(granted, denied []capability.Capability) {
	if c.Finish != nil {
		c.Finish(granted, denied)
	}
}

func (c Callbacks) OnAnomaly() {
	if c.Anomaly != nil {
		c.Anomaly()
	}
}
