package platform

import "sync"

// BridgeCall records one method call that reached a RecordingBridge.
type BridgeCall struct {
	Channel string
	Method  string
	Args    map[string]any
}

// RecordingBridge is a NativeBridge for tests. It records every method call
// and answers with the handler registered for the method, or with nil when
// there is none.
type RecordingBridge struct {
	mu       sync.Mutex
	calls    []BridgeCall
	handlers map[string]func(args map[string]any) (any, error)
	streams  map[string]bool
}

// NewRecordingBridge returns a bridge that answers every call with nil.
func NewRecordingBridge() *RecordingBridge {
	return &RecordingBridge{
		handlers: make(map[string]func(map[string]any) (any, error)),
		streams:  make(map[string]bool),
	}
}

// Handle sets the answer for method.
func (b *RecordingBridge) Handle(method string, fn func(args map[string]any) (any, error)) {
	b.mu.Lock()
	b.handlers[method] = fn
	b.mu.Unlock()
}

// Calls returns the recorded calls to method, or every call when method is empty.
func (b *RecordingBridge) Calls(method string) []BridgeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []BridgeCall
	for _, c := range b.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Streaming reports whether the event stream of channel is started.
func (b *RecordingBridge) Streaming(channel string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streams[channel]
}

func (b *RecordingBridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	decoded, err := DefaultCodec.Decode(args)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.calls = append(b.calls, BridgeCall{Channel: channel, Method: method, Args: parseMap(decoded)})
	fn := b.handlers[method]
	b.mu.Unlock()

	var result any
	if fn != nil {
		if result, err = fn(parseMap(decoded)); err != nil {
			return nil, err
		}
	}
	return DefaultCodec.Encode(result)
}

func (b *RecordingBridge) StartEventStream(channel string) error {
	b.mu.Lock()
	b.streams[channel] = true
	b.mu.Unlock()
	return nil
}

func (b *RecordingBridge) StopEventStream(channel string) error {
	b.mu.Lock()
	b.streams[channel] = false
	b.mu.Unlock()
	return nil
}

// SetupTestBridge installs a RecordingBridge and a synchronous dispatch
// function for testing. The cleanup function should be testing.T.Cleanup or
// equivalent; it registers a teardown that calls ResetForTest.
//
//	bridge := platform.SetupTestBridge(t.Cleanup)
func SetupTestBridge(cleanup func(func())) *RecordingBridge {
	bridge := NewRecordingBridge()
	SetNativeBridge(bridge)
	RegisterDispatch(func(cb func()) { cb() })
	cleanup(ResetForTest)
	return bridge
}
