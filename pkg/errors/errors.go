// Package errors provides structured error reporting for the permission engine.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindCaller indicates a malformed request from the caller.
	KindCaller
	// KindPlatform indicates a platform channel or native bridge error.
	KindPlatform
	// KindParsing indicates an event parsing failure.
	KindParsing
	// KindAnomaly indicates a session abandoned before completion.
	KindAnomaly
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindCaller:
		return "caller"
	case KindPlatform:
		return "platform"
	case KindParsing:
		return "parsing"
	case KindAnomaly:
		return "anomaly"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Error represents a structured error raised while orchestrating a request.
type Error struct {
	// Op is the operation that failed (e.g., "orchestrator.issueDialog").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Channel is the platform channel name, if applicable.
	Channel string
	// Session is the request session id, if applicable.
	Session string
	// Token is the request token of the batch, if applicable.
	Token int
	// Capabilities names the batch members involved, if applicable.
	Capabilities []string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *Error) Error() string {
	msg := e.Op + " [" + e.Kind.String() + "]"
	if e.Channel != "" {
		msg += " channel=" + e.Channel
	}
	if e.Session != "" {
		msg += " session=" + e.Session
	}
	if e.Token != 0 {
		msg += fmt.Sprintf(" token=%d", e.Token)
	}
	if len(e.Capabilities) > 0 {
		msg += fmt.Sprintf(" capabilities=%v", e.Capabilities)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "orchestrator.onFinish").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ParseError represents a failure to parse event data.
type ParseError struct {
	// Channel is the platform channel that received the event.
	Channel string
	// DataType is the expected type name.
	DataType string
	// Got is the actual data received.
	Got any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s from channel %s: got %T", e.DataType, e.Channel, e.Got)
}

// ErrorHandler receives errors reported by the engine.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *Error)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
