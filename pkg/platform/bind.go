package platform

import (
	"github.com/go-drift/permit/pkg/capability"
	"github.com/go-drift/permit/pkg/errors"
)

// ResultRouter consumes native answers. *orchestrator.Engine implements it.
type ResultRouter interface {
	DeliverDialogResult(token int) bool
	DeliverSettingsReturn(token int) bool
	Teardown() int
}

// Bind connects r to native code: results events are routed to r on the main
// thread, and a detached host tears down every session r is running.
// The returned function undoes the binding.
func Bind(r ResultRouter) (unbind func()) {
	sub := Permissions.results.Listen(EventHandler{
		OnEvent: func(data any) {
			ev, ok := parseResultEvent(data)
			if !ok {
				errors.Report(&errors.Error{
					Op:      "permissions.parseResult",
					Kind:    errors.KindParsing,
					Channel: resultsChannel,
					Err: &errors.ParseError{
						Channel:  resultsChannel,
						DataType: "ResultEvent",
						Got:      data,
					},
				})
				return
			}
			deliver := r.DeliverDialogResult
			if ev.Kind == capability.SettingsRedirect {
				deliver = r.DeliverSettingsReturn
			}
			dispatchOrReport("permissions.deliverResult", resultsChannel, ev.Token, func() { deliver(ev.Token) })
		},
		OnError: func(err error) {
			errors.Report(&errors.Error{
				Op:      "permissions.streamError",
				Kind:    errors.KindPlatform,
				Channel: resultsChannel,
				Err:     err,
			})
		},
	})

	remove := Lifecycle.AddHandler(func(state LifecycleState) {
		if state != LifecycleStateDetached {
			return
		}
		dispatchOrReport("lifecycle.teardown", lifecycleEvents, 0, func() { r.Teardown() })
	})

	return func() {
		sub.Cancel()
		remove()
	}
}

func dispatchOrReport(op, channel string, token int, fn func()) {
	if Dispatch(fn) {
		return
	}
	errors.Report(&errors.Error{
		Op:      op,
		Kind:    errors.KindPlatform,
		Channel: channel,
		Token:   token,
		Err:     ErrNoDispatch,
	})
}
