package platform

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-drift/permit/pkg/capability"
	permiterrors "github.com/go-drift/permit/pkg/errors"
)

// reportLog collects errors reported through pkg/errors during a test.
type reportLog struct {
	mu     sync.Mutex
	errs   []*permiterrors.Error
	panics []*permiterrors.PanicError
}

func (r *reportLog) HandleError(err *permiterrors.Error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *reportLog) HandlePanic(err *permiterrors.PanicError) {
	r.mu.Lock()
	r.panics = append(r.panics, err)
	r.mu.Unlock()
}

func (r *reportLog) errors() []*permiterrors.Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*permiterrors.Error(nil), r.errs...)
}

func captureReports(t *testing.T) *reportLog {
	t.Helper()
	r := &reportLog{}
	permiterrors.SetHandler(r)
	t.Cleanup(func() { permiterrors.SetHandler(nil) })
	return r
}

func answer(result any) func(map[string]any) (any, error) {
	return func(map[string]any) (any, error) { return result, nil }
}

func fail(err error) func(map[string]any) (any, error) {
	return func(map[string]any) (any, error) { return nil, err }
}

var (
	camera     = &capability.Definition{ID: "camera", GroupID: "camera"}
	microphone = &capability.Definition{ID: "microphone", GroupID: "microphone"}
)

func TestPermissionServiceInitialization(t *testing.T) {
	if Permissions == nil {
		t.Fatal("Permissions service is nil")
	}
	if got := Permissions.channel.Name(); got != "drift/permissions" {
		t.Errorf("channel name = %q", got)
	}
	if got := Permissions.results.Name(); got != "drift/permissions/results" {
		t.Errorf("results channel name = %q", got)
	}
}

func TestIsGranted(t *testing.T) {
	tests := []struct {
		name       string
		handler    func(map[string]any) (any, error)
		want       bool
		wantReport bool
	}{
		{name: "granted", handler: answer(map[string]any{"status": "granted"}), want: true},
		{name: "denied", handler: answer(map[string]any{"status": "denied"})},
		{name: "permanently denied", handler: answer(map[string]any{"status": "permanently_denied"})},
		{name: "nil response", handler: answer(nil)},
		{name: "bridge error", handler: fail(errors.New("no handler")), wantReport: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := SetupTestBridge(t.Cleanup)
			reports := captureReports(t)
			bridge.Handle("check", tt.handler)

			if got := Permissions.IsGranted(camera); got != tt.want {
				t.Errorf("IsGranted() = %v, want %v", got, tt.want)
			}
			if got := len(reports.errors()) > 0; got != tt.wantReport {
				t.Errorf("reported = %v, want %v", got, tt.wantReport)
			}
			calls := bridge.Calls("check")
			if len(calls) != 1 || calls[0].Args["permission"] != "camera" {
				t.Errorf("check calls = %+v", calls)
			}
		})
	}
}

func TestStatusWithoutBridge(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	if _, err := Permissions.Status(camera); !errors.Is(err, ErrPlatformUnavailable) {
		t.Errorf("Status() error = %v, want ErrPlatformUnavailable", err)
	}
}

func TestIsSupported(t *testing.T) {
	bridge := SetupTestBridge(t.Cleanup)
	Permissions.SetPlatformVersion("v12")

	tests := []struct {
		since string
		want  bool
	}{
		{"", true},
		{"v11", true},
		{"v12", true},
		{"v13", false},
	}
	for _, tt := range tests {
		c := &capability.Definition{ID: "x", SinceVersion: tt.since}
		if got := Permissions.IsSupported(c); got != tt.want {
			t.Errorf("IsSupported(since %q) = %v, want %v", tt.since, got, tt.want)
		}
	}
	if n := len(bridge.Calls("platformVersion")); n != 0 {
		t.Errorf("asked native for the version %d times despite override", n)
	}
}

func TestPlatformVersion(t *testing.T) {
	t.Run("asked once and cached", func(t *testing.T) {
		bridge := SetupTestBridge(t.Cleanup)
		bridge.Handle("platformVersion", answer(map[string]any{"version": "v14"}))

		for range 2 {
			if got := Permissions.PlatformVersion(); got != "v14" {
				t.Fatalf("PlatformVersion() = %q", got)
			}
		}
		if n := len(bridge.Calls("platformVersion")); n != 1 {
			t.Errorf("platformVersion called %d times, want 1", n)
		}
	})

	t.Run("invalid version", func(t *testing.T) {
		bridge := SetupTestBridge(t.Cleanup)
		reports := captureReports(t)
		bridge.Handle("platformVersion", answer(map[string]any{"version": "14"}))

		if got := Permissions.PlatformVersion(); got != "" {
			t.Errorf("PlatformVersion() = %q, want empty", got)
		}
		errs := reports.errors()
		if len(errs) != 1 || !errors.Is(errs[0], ErrUnexpectedResponse) {
			t.Errorf("reports = %v", errs)
		}
		// Unknown version means no gating.
		if !Permissions.IsSupported(&capability.Definition{ID: "x", SinceVersion: "v99"}) {
			t.Error("capability gated without a known version")
		}
	})
}

func TestIsSettingsRedirectPending(t *testing.T) {
	bridge := SetupTestBridge(t.Cleanup)
	reports := captureReports(t)

	bridge.Handle("isSettingsRedirectPending", answer(map[string]any{"pending": true}))
	if !Permissions.IsSettingsRedirectPending(camera) {
		t.Error("pending = false, want true")
	}

	bridge.Handle("isSettingsRedirectPending", fail(errors.New("boom")))
	if Permissions.IsSettingsRedirectPending(camera) {
		t.Error("error should count as not pending")
	}
	if len(reports.errors()) != 1 {
		t.Errorf("reported %d errors, want 1", len(reports.errors()))
	}
}

func TestSettingsTargets(t *testing.T) {
	bridge := SetupTestBridge(t.Cleanup)
	reports := captureReports(t)
	Permissions.SetAppID("com.example.app")
	bridge.Handle("settingsTargets", answer(map[string]any{
		"targets": []any{
			map[string]any{"action": "manage_overlay", "package": "com.example.app", "data": "package:com.example.app"},
			map[string]any{"package": "com.example.app"},
			map[string]any{"action": "app_details"},
		},
	}))

	got := Permissions.SettingsTargets(camera)
	want := []capability.Target{
		{Action: "manage_overlay", Package: "com.example.app", Data: "package:com.example.app"},
		{Action: "app_details"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}

	errs := reports.errors()
	var perr *permiterrors.ParseError
	if len(errs) != 1 || !errors.As(errs[0], &perr) {
		t.Errorf("reports = %v, want one parse error", errs)
	}

	calls := bridge.Calls("settingsTargets")
	if diff := cmp.Diff(map[string]any{"permission": "camera", "package": "com.example.app"}, calls[0].Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestSettingsTargetsError(t *testing.T) {
	bridge := SetupTestBridge(t.Cleanup)
	captureReports(t)
	bridge.Handle("settingsTargets", fail(errors.New("boom")))
	if got := Permissions.SettingsTargets(camera); len(got) != 0 {
		t.Errorf("SettingsTargets() = %v, want none", got)
	}
}

func TestShouldShowRationale(t *testing.T) {
	bridge := SetupTestBridge(t.Cleanup)
	reports := captureReports(t)
	bridge.Handle("shouldShowRationale", answer(map[string]any{"shouldShow": true}))
	if !Permissions.ShouldShowRationale(camera) {
		t.Error("ShouldShowRationale() = false, want true")
	}
	bridge.Handle("shouldShowRationale", fail(errors.New("boom")))
	if Permissions.ShouldShowRationale(camera) {
		t.Error("error should read as false")
	}
	errs := reports.errors()
	if len(errs) != 1 {
		t.Fatalf("reported %d errors, want 1", len(errs))
	}
	if errs[0].Op != "permissions.shouldShowRationale" || errs[0].Kind != permiterrors.KindPlatform {
		t.Errorf("report = %+v", errs[0])
	}
	if diff := cmp.Diff([]string{"camera"}, errs[0].Capabilities); diff != "" {
		t.Errorf("capabilities mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestDialog(t *testing.T) {
	bridge := SetupTestBridge(t.Cleanup)
	if err := Permissions.RequestDialog(7, []capability.Capability{camera, microphone}); err != nil {
		t.Fatalf("RequestDialog: %v", err)
	}
	calls := bridge.Calls("requestBatch")
	if len(calls) != 1 {
		t.Fatalf("requestBatch called %d times", len(calls))
	}
	want := map[string]any{"token": float64(7), "permissions": []any{"camera", "microphone"}}
	if diff := cmp.Diff(want, calls[0].Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	bridge.Handle("requestBatch", fail(errors.New("activity finishing")))
	if err := Permissions.RequestDialog(8, []capability.Capability{camera}); err == nil {
		t.Error("expected bridge error")
	}
}

func TestLaunchSettings(t *testing.T) {
	target := capability.Target{Action: "manage_overlay", Package: "com.example.app", Data: "package:com.example.app"}

	t.Run("launched", func(t *testing.T) {
		bridge := SetupTestBridge(t.Cleanup)
		if err := Permissions.LaunchSettings(3, target); err != nil {
			t.Fatalf("LaunchSettings: %v", err)
		}
		want := map[string]any{
			"token": float64(3), "action": "manage_overlay",
			"package": "com.example.app", "data": "package:com.example.app",
		}
		if diff := cmp.Diff(want, bridge.Calls("launchSettings")[0].Args); diff != "" {
			t.Errorf("args mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no activity", func(t *testing.T) {
		bridge := SetupTestBridge(t.Cleanup)
		bridge.Handle("launchSettings", answer(map[string]any{"launched": false}))
		if err := Permissions.LaunchSettings(3, target); err == nil {
			t.Error("expected an error when nothing was launched")
		}
	})

	invalid := []struct {
		name   string
		target capability.Target
	}{
		{"no action", capability.Target{Data: "package:com.example.app"}},
		{"data without scheme", capability.Target{Action: "details", Data: "com.example.app"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			bridge := SetupTestBridge(t.Cleanup)
			err := Permissions.LaunchSettings(3, tt.target)
			if !errors.Is(err, ErrInvalidArguments) {
				t.Errorf("error = %v, want ErrInvalidArguments", err)
			}
			if len(bridge.Calls("launchSettings")) != 0 {
				t.Error("invalid target reached native code")
			}
		})
	}
}

func TestParseResultEvent(t *testing.T) {
	tests := []struct {
		name   string
		data   any
		want   ResultEvent
		wantOK bool
	}{
		{"dialog", map[string]any{"token": float64(4), "kind": "dialog"}, ResultEvent{Token: 4, Kind: capability.QuickDialog}, true},
		{"settings", map[string]any{"token": float64(9), "kind": "settings"}, ResultEvent{Token: 9, Kind: capability.SettingsRedirect}, true},
		{"kind defaults to dialog", map[string]any{"token": float64(1)}, ResultEvent{Token: 1, Kind: capability.QuickDialog}, true},
		{"unknown kind", map[string]any{"token": float64(1), "kind": "toast"}, ResultEvent{}, false},
		{"fractional token", map[string]any{"token": 1.5}, ResultEvent{}, false},
		{"zero token", map[string]any{"token": float64(0)}, ResultEvent{}, false},
		{"not a map", "token", ResultEvent{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseResultEvent(tt.data)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("parseResultEvent() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
