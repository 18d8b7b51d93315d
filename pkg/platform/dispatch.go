package platform

import "sync/atomic"

// mainThread holds the host's scheduler for the main thread; nil until the
// host registers one.
var mainThread atomic.Pointer[func(func())]

// RegisterDispatch installs fn as the main thread scheduler. The engine's
// timeline and every bridge event bound for the engine run through it.
// Passing nil unregisters it.
func RegisterDispatch(fn func(callback func())) {
	if fn == nil {
		mainThread.Store(nil)
		return
	}
	mainThread.Store(&fn)
}

// Dispatch queues callback on the main thread. It reports false, and drops
// the callback, when no scheduler is registered.
func Dispatch(callback func()) bool {
	fn := mainThread.Load()
	if fn == nil || callback == nil {
		return false
	}
	(*fn)(callback)
	return true
}
