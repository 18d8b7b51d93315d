package orchestrator

import (
	"testing"

	"github.com/go-drift/permit/pkg/capability"
	"github.com/go-drift/permit/pkg/errors"
	permittest "github.com/go-drift/permit/pkg/testing"
	"github.com/go-drift/permit/pkg/token"
)

// recorder is a Callback that records what the caller observes.
type recorder struct {
	starts    int
	finishes  int
	anomalies int
	granted   []string
	denied    []string
}

func (r *recorder) OnStart() { r.starts++ }

func (r *recorder) OnFinish(granted, denied []capability.Capability) {
	r.finishes++
	r.granted = capability.Names(granted)
	r.denied = capability.Names(denied)
}

func (r *recorder) OnAnomaly() { r.anomalies++ }

// reports collects errors reported through pkg/errors during a test.
type reports struct {
	errs   []*errors.Error
	panics []*errors.PanicError
}

func (r *reports) HandleError(err *errors.Error) { r.errs = append(r.errs, err) }
func (r *reports) HandlePanic(err *errors.PanicError) { r.panics = append(r.panics, err) }

type harness struct {
	t        *testing.T
	platform *permittest.FakePlatform
	timeline *permittest.FakeTimeline
	tokens   *token.Allocator
	attempts *Attempts
	engine   *Engine
	reports  *reports
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		platform: permittest.NewFakePlatform(),
		timeline: permittest.NewFakeTimeline(),
		tokens:   token.New(),
		attempts: NewAttempts(),
		reports:  &reports{},
	}
	errors.SetHandler(h.reports)
	t.Cleanup(func() { errors.SetHandler(nil) })

	opts = append([]Option{WithTokens(h.tokens), WithAttempts(h.attempts)}, opts...)
	h.engine = New(h.platform, h.timeline, opts...)
	return h
}

// answerDialogs makes the platform answer every dialog on the next timeline
// turn, granting the names for which grant returns true.
func (h *harness) answerDialogs(grant func(name string) bool) {
	h.platform.OnDialog = func(call permittest.DialogCall) {
		for _, n := range call.Names {
			if grant(n) {
				h.platform.Grant(n)
			}
		}
		h.timeline.Post(func() { h.engine.DeliverDialogResult(call.Token) })
	}
}

func (h *harness) orchestrate(caps ...capability.Capability) (*Session, *recorder) {
	h.t.Helper()
	rec := &recorder{}
	s, err := h.engine.Orchestrate(caps, rec)
	if err != nil {
		h.t.Fatalf("Orchestrate: %v", err)
	}
	return s, rec
}

func (h *harness) settle() {
	h.t.Helper()
	if err := h.timeline.Settle(1000); err != nil {
		h.t.Fatalf("timeline: %v", err)
	}
}

func (h *harness) dialogNames() [][]string {
	var out [][]string
	for _, d := range h.platform.Dialogs() {
		out = append(out, d.Names)
	}
	return out
}

func grantAll(string) bool { return true }
func denyAll(string) bool { return false }
func grantOnly(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(n string) bool { return set[n] }
}

func dialog(name, group string) *capability.Definition {
	return &capability.Definition{ID: name, GroupID: group, Channel: capability.QuickDialog}
}

func settings(name, group string) *capability.Definition {
	return &capability.Definition{ID: name, GroupID: group, Channel: capability.SettingsRedirect}
}

func background(name, group string, deps ...capability.Capability) *capability.Background {
	return &capability.Background{
		Definition: capability.Definition{ID: name, GroupID: group, Channel: capability.QuickDialog},
		Requires:   deps,
	}
}
