package testing

import (
	"sync"

	"github.com/go-drift/permit/pkg/capability"
)

// DialogCall records one RequestDialog invocation.
type DialogCall struct {
	Token int
	Names []string
}

// LaunchCall records one LaunchSettings invocation.
type LaunchCall struct {
	Token  int
	Target capability.Target
}

// FakePlatform is a scriptable platform. Grant state is kept by name and every
// issued dialog and settings launch is recorded. Tests answer requests either
// by hand (calling the engine's Deliver methods) or through the OnDialog and
// OnLaunch hooks.
//
// All methods are safe for concurrent use.
type FakePlatform struct {
	// Version is the platform version used by IsSupported.
	Version string
	// Package is the app id put in default settings targets.
	Package string

	// OnDialog, when set, is called after a dialog request is recorded.
	OnDialog func(call DialogCall)
	// OnLaunch, when set, is called after a settings launch is recorded. A
	// non-nil return value fails the launch.
	OnLaunch func(call LaunchCall) error

	mu          sync.Mutex
	granted     map[string]bool
	unsupported map[string]bool
	rationale   map[string]bool
	settled     map[string]bool
	targets     map[string][]capability.Target
	dialogErr   error
	dialogs     []DialogCall
	launches    []LaunchCall
}

// NewFakePlatform returns a platform on which nothing is granted.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		Package:     "com.example.app",
		granted:     make(map[string]bool),
		unsupported: make(map[string]bool),
		rationale:   make(map[string]bool),
		settled:     make(map[string]bool),
		targets:     make(map[string][]capability.Target),
	}
}

// Grant marks names as granted.
func (p *FakePlatform) Grant(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range names {
		p.granted[n] = true
	}
}

// Revoke marks names as not granted.
func (p *FakePlatform) Revoke(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range names {
		delete(p.granted, n)
	}
}

// SetUnsupported marks names as absent from the platform.
func (p *FakePlatform) SetUnsupported(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range names {
		p.unsupported[n] = true
	}
}

// SetRationale sets the ShouldShowRationale answer for name.
func (p *FakePlatform) SetRationale(name string, show bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rationale[name] = show
}

// SetRedirectSettled makes IsSettingsRedirectPending report false for names.
func (p *FakePlatform) SetRedirectSettled(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range names {
		p.settled[n] = true
	}
}

// SetTargets overrides the settings targets of name. An empty list makes the
// capability unreachable.
func (p *FakePlatform) SetTargets(name string, targets ...capability.Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets[name] = targets
}

// FailDialogs makes every RequestDialog call return err.
func (p *FakePlatform) FailDialogs(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialogErr = err
}

// Dialogs returns the recorded dialog requests.
func (p *FakePlatform) Dialogs() []DialogCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]DialogCall(nil), p.dialogs...)
}

// Launches returns the recorded settings launches.
func (p *FakePlatform) Launches() []LaunchCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]LaunchCall(nil), p.launches...)
}

// LastDialog returns the most recent dialog request.
func (p *FakePlatform) LastDialog() (DialogCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.dialogs) == 0 {
		return DialogCall{}, false
	}
	return p.dialogs[len(p.dialogs)-1], true
}

// LastLaunch returns the most recent settings launch.
func (p *FakePlatform) LastLaunch() (LaunchCall, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.launches) == 0 {
		return LaunchCall{}, false
	}
	return p.launches[len(p.launches)-1], true
}

func (p *FakePlatform) IsGranted(c capability.Capability) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted[c.Name()]
}

func (p *FakePlatform) IsSupported(c capability.Capability) bool {
	p.mu.Lock()
	unsupported := p.unsupported[c.Name()]
	p.mu.Unlock()
	return !unsupported && capability.SupportedOn(c, p.Version)
}

func (p *FakePlatform) IsSettingsRedirectPending(c capability.Capability) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.settled[c.Name()]
}

func (p *FakePlatform) SettingsTargets(c capability.Capability) []capability.Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	if targets, ok := p.targets[c.Name()]; ok {
		return append([]capability.Target(nil), targets...)
	}
	return []capability.Target{{
		Action:  c.Name(),
		Package: p.Package,
		Data:    "package:" + p.Package,
	}}
}

func (p *FakePlatform) ShouldShowRationale(c capability.Capability) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rationale[c.Name()]
}

func (p *FakePlatform) RequestDialog(token int, caps []capability.Capability) error {
	call := DialogCall{Token: token, Names: capability.Names(caps)}
	p.mu.Lock()
	p.dialogs = append(p.dialogs, call)
	err := p.dialogErr
	hook := p.OnDialog
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(call)
	}
	return nil
}

func (p *FakePlatform) LaunchSettings(token int, target capability.Target) error {
	call := LaunchCall{Token: token, Target: target}
	p.mu.Lock()
	p.launches = append(p.launches, call)
	hook := p.OnLaunch
	p.mu.Unlock()
	if hook != nil {
		return hook(call)
	}
	return nil
}
