package platform

import (
	"sync"

	"github.com/go-drift/permit/pkg/errors"
)

const lifecycleEvents = "drift/lifecycle/events"

// Lifecycle tracks the state of the host container that shows permission UI.
var Lifecycle = &LifecycleService{
	channel: NewMethodChannel("drift/lifecycle"),
	events:  NewEventChannel(lifecycleEvents),
	state:   LifecycleStateResumed,
}

// LifecycleService manages host lifecycle events.
type LifecycleService struct {
	channel  *MethodChannel
	events   *EventChannel
	state    LifecycleState
	handlers []lifecycleEntry
	nextID   int
	mu       sync.RWMutex
}

type lifecycleEntry struct {
	id int
	fn LifecycleHandler
}

// LifecycleState represents the current host lifecycle state.
type LifecycleState string

const (
	// LifecycleStateResumed indicates the host is visible and responding to user input.
	LifecycleStateResumed LifecycleState = "resumed"

	// LifecycleStateInactive indicates the host is transitioning, for
	// instance while a system permission dialog covers it.
	LifecycleStateInactive LifecycleState = "inactive"

	// LifecycleStatePaused indicates the host is not visible but still running,
	// typically while a settings screen is in front.
	LifecycleStatePaused LifecycleState = "paused"

	// LifecycleStateDetached indicates the host container was torn down.
	// Sessions it was hosting can no longer receive results.
	LifecycleStateDetached LifecycleState = "detached"
)

// LifecycleHandler is called when lifecycle state changes.
type LifecycleHandler func(state LifecycleState)

func init() {
	registerBuiltinInit(listenLifecycle)
}

func listenLifecycle() {
	Lifecycle.events.Listen(EventHandler{
		OnEvent: func(data any) {
			state, ok := parseMap(data)["state"].(string)
			if !ok {
				errors.Report(&errors.Error{
					Op:      "lifecycle.parseEvent",
					Kind:    errors.KindParsing,
					Channel: lifecycleEvents,
					Err: &errors.ParseError{
						Channel:  lifecycleEvents,
						DataType: "LifecycleState",
						Got:      data,
					},
				})
				return
			}
			Lifecycle.updateState(LifecycleState(state))
		},
		OnError: func(err error) {
			errors.Report(&errors.Error{
				Op:      "lifecycle.streamError",
				Kind:    errors.KindPlatform,
				Channel: lifecycleEvents,
				Err:     err,
			})
		},
	})

	Lifecycle.channel.SetHandler(func(method string, args any) (any, error) {
		switch method {
		case "didChangeState":
			if state, ok := parseMap(args)["state"].(string); ok {
				Lifecycle.updateState(LifecycleState(state))
				return nil, nil
			}
			return nil, ErrInvalidArguments
		default:
			return nil, ErrMethodNotFound
		}
	})
}

// State returns the current lifecycle state.
func (l *LifecycleService) State() LifecycleState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// AddHandler registers a handler to be called on lifecycle changes.
// Returns a function that removes the handler.
func (l *LifecycleService) AddHandler(handler LifecycleHandler) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.handlers = append(l.handlers, lifecycleEntry{id: id, fn: handler})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, h := range l.handlers {
			if h.id == id {
				l.handlers = append(l.handlers[:i], l.handlers[i+1:]...)
				return
			}
		}
	}
}

// IsResumed returns true if the host is in the resumed state.
func (l *LifecycleService) IsResumed() bool {
	return l.State() == LifecycleStateResumed
}

// IsDetached returns true if the host container is gone.
func (l *LifecycleService) IsDetached() bool {
	return l.State() == LifecycleStateDetached
}

// updateState updates the lifecycle state and notifies handlers.
func (l *LifecycleService) updateState(newState LifecycleState) {
	l.mu.Lock()
	if l.state == newState {
		l.mu.Unlock()
		return
	}
	l.state = newState
	handlers := make([]lifecycleEntry, len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.Unlock()

	for _, h := range handlers {
		h.fn(newState)
	}
}
