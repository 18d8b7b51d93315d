// Package platform is the native side of the permission engine. Method calls
// go out on the "drift/permissions" channel (status checks, dialogs, settings
// launches); dialog results and settings returns come back as events and are
// handed to the engine on the host's main thread, where its timeline runs.
//
// Everything crossing the bridge is JSON. Native code sees plain maps, lists,
// strings, booleans and float64 numbers, nothing Go specific.
package platform

import (
	"encoding/json"
	"errors"
)

// MessageCodec turns channel payloads into bytes and back.
type MessageCodec interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// JsonCodec is the bridge codec. Numbers decode as float64; toInt turns
// them back into ints.
type JsonCodec struct{}

func (JsonCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Decode returns nil for an empty payload, which native code sends for
// calls without arguments or a void result.
func (JsonCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeInto unmarshals data into v, for callers that know the payload shape.
func (JsonCodec) DecodeInto(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// DefaultCodec is shared by every channel and by the bridge entry points.
var DefaultCodec MessageCodec = JsonCodec{}

var (
	// ErrChannelNotFound is returned for calls on a channel nobody registered.
	ErrChannelNotFound = errors.New("platform channel not found")

	// ErrMethodNotFound means the receiving side has no handler for the method.
	ErrMethodNotFound = errors.New("method not implemented")

	// ErrInvalidArguments wraps arguments that are missing or of the wrong type.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrPlatformUnavailable is returned while no native bridge is installed,
	// for example in tests and in the CLI.
	ErrPlatformUnavailable = errors.New("platform feature unavailable")

	// ErrUnexpectedResponse wraps a native answer of the wrong shape.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// ChannelError is an error raised by native code, delivered either as a
// method call failure or on an event stream.
type ChannelError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *ChannelError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// NewChannelError returns a ChannelError without details.
func NewChannelError(code, message string) *ChannelError {
	return &ChannelError{Code: code, Message: message}
}
