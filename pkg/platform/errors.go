package platform

import "errors"

// Sentinel errors for platform operations.
var (
	// ErrClosed is returned when operating on a closed channel or stream.
	ErrClosed = errors.New("platform: channel closed")

	// ErrNoDispatch is returned when work must reach the main thread but no
	// dispatch function is registered.
	ErrNoDispatch = errors.New("platform: no dispatch function registered")
)
