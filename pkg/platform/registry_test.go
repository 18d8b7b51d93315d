package platform

import (
	"errors"
	"testing"
)

func TestHandleMethodCall(t *testing.T) {
	SetupTestBridge(t.Cleanup)

	if _, err := HandleMethodCall("drift/lifecycle", "didChangeState", []byte(`{"state": "paused"}`)); err != nil {
		t.Fatalf("didChangeState: %v", err)
	}
	if got := Lifecycle.State(); got != LifecycleStatePaused {
		t.Errorf("State() = %q, want paused", got)
	}

	tests := []struct {
		name    string
		channel string
		method  string
		args    string
		want    error
	}{
		{"unknown method", "drift/lifecycle", "explode", `{}`, ErrMethodNotFound},
		{"missing state", "drift/lifecycle", "didChangeState", `{}`, ErrInvalidArguments},
		{"unknown channel", "drift/nowhere", "anything", `{}`, ErrChannelNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := HandleMethodCall(tt.channel, tt.method, []byte(tt.args)); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHandleEventUnknownChannel(t *testing.T) {
	SetupTestBridge(t.Cleanup)
	reports := captureReports(t)
	if err := HandleEvent("drift/nowhere", []byte(`{}`)); !errors.Is(err, ErrChannelNotRegistered) {
		t.Errorf("error = %v, want ErrChannelNotRegistered", err)
	}
	if len(reports.errors()) != 1 {
		t.Error("unknown channel not reported")
	}
}

func TestEventStreamStartsWhenBridgeArrives(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	ch := NewEventChannel("test/deferred")

	var events []any
	sub := ch.Listen(EventHandler{OnEvent: func(data any) { events = append(events, data) }})

	bridge := NewRecordingBridge()
	SetNativeBridge(bridge)
	if !bridge.Streaming("test/deferred") {
		t.Fatal("stream not started once the bridge was installed")
	}
	if !bridge.Streaming(lifecycleEvents) {
		t.Error("lifecycle stream not started")
	}

	if err := HandleEvent("test/deferred", []byte(`{"n": 1}`)); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("received %d events, want 1", len(events))
	}

	sub.Cancel()
	if bridge.Streaming("test/deferred") {
		t.Error("stream still running without listeners")
	}
}

func TestEventStreamErrorsAndDone(t *testing.T) {
	SetupTestBridge(t.Cleanup)
	ch := NewEventChannel("test/errors")

	var gotErr error
	done := false
	sub := ch.Listen(EventHandler{
		OnError: func(err error) { gotErr = err },
		OnDone:  func() { done = true },
	})

	if err := HandleEvent("test/errors", []byte(`{not json`)); err == nil {
		t.Error("expected decode error")
	}
	if gotErr == nil {
		t.Error("decode error not passed to the subscriber")
	}

	if err := HandleEventError("test/errors", "E_DENIED", "stream refused"); err != nil {
		t.Fatal(err)
	}
	var chErr *ChannelError
	if !errors.As(gotErr, &chErr) || chErr.Error() != "E_DENIED: stream refused" {
		t.Errorf("error = %v, want channel error", gotErr)
	}

	if err := HandleEventDone("test/errors"); err != nil {
		t.Fatal(err)
	}
	if !done || !sub.IsCanceled() {
		t.Error("done not delivered")
	}
}

func TestLifecycleHandlerRemoval(t *testing.T) {
	SetupTestBridge(t.Cleanup)
	var first, second int
	removeFirst := Lifecycle.AddHandler(func(LifecycleState) { first++ })
	removeSecond := Lifecycle.AddHandler(func(LifecycleState) { second++ })
	defer removeSecond()

	removeFirst()
	removeFirst()
	Lifecycle.updateState(LifecycleStatePaused)

	if first != 0 || second != 1 {
		t.Errorf("first=%d second=%d, want 0 and 1", first, second)
	}
	if Lifecycle.IsResumed() || Lifecycle.IsDetached() {
		t.Error("state predicates disagree with paused")
	}
}

func TestJsonCodec(t *testing.T) {
	var c JsonCodec
	v, err := c.Decode(nil)
	if err != nil || v != nil {
		t.Errorf("Decode(nil) = %v, %v", v, err)
	}
	var out struct {
		Token int `json:"token"`
	}
	if err := c.DecodeInto([]byte(`{"token": 5}`), &out); err != nil || out.Token != 5 {
		t.Errorf("DecodeInto = %+v, %v", out, err)
	}
	v, err = c.Decode([]byte(`{"token": 5}`))
	if err != nil {
		t.Fatal(err)
	}
	if n, ok := toInt(parseMap(v)["token"]); !ok || n != 5 {
		t.Errorf("decoded token = %v, %v", n, ok)
	}
	if _, err := c.Decode([]byte(`{`)); err == nil {
		t.Error("Decode accepted truncated JSON")
	}
	if got := NewChannelError("E", "").Error(); got != "E" {
		t.Errorf("ChannelError without message = %q", got)
	}
}
