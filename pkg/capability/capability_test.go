package capability

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in     string
		want   Kind
		wantOK bool
	}{
		{"", QuickDialog, true},
		{"dialog", QuickDialog, true},
		{"settings", SettingsRedirect, true},
		{"popup", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseKind(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("ParseKind(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
		if ok && tt.in != "" && got.String() != tt.in {
			t.Errorf("Kind(%d).String() = %q, want %q", got, got.String(), tt.in)
		}
	}
}

func TestSupportedOn(t *testing.T) {
	notifications := &Definition{ID: "notifications", SinceVersion: "v13"}
	camera := &Definition{ID: "camera"}

	tests := []struct {
		name    string
		c       Capability
		version string
		want    bool
	}{
		{"newer platform", notifications, "v14.0.0", true},
		{"same version", notifications, "v13", true},
		{"older platform", notifications, "v12.1", false},
		{"no since", camera, "v5", true},
		{"invalid platform version", notifications, "thirteen", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SupportedOn(tt.c, tt.version); got != tt.want {
				t.Errorf("SupportedOn(%s, %q) = %v, want %v", tt.c.Name(), tt.version, got, tt.want)
			}
		})
	}
}

func TestBackgroundVariant(t *testing.T) {
	fine := &Definition{ID: "fine_location", GroupID: "location"}
	bg := &Background{
		Definition: Definition{ID: "background_location", GroupID: "location", SinceVersion: "v10"},
		Requires:   []Capability{fine},
	}

	if !bg.IsBackground() {
		t.Error("Background.IsBackground() = false")
	}
	if fine.IsBackground() {
		t.Error("Definition.IsBackground() = true")
	}
	if got := bg.ForegroundDependencies(); len(got) != 1 || got[0] != Capability(fine) {
		t.Errorf("ForegroundDependencies() = %v", got)
	}
	if bg.Group() != "location" || bg.Name() != "background_location" {
		t.Errorf("promoted accessors broken: %s/%s", bg.Group(), bg.Name())
	}
	if SupportedOn(bg, "v9") {
		t.Error("background location should not exist before v10")
	}
}

func TestExpand(t *testing.T) {
	readStorage := &Definition{ID: "read_storage"}
	writeStorage := &Definition{ID: "write_storage"}
	images := &Definition{ID: "read_images", SinceVersion: "v13", Legacy: []Capability{readStorage}}
	video := &Definition{ID: "read_video", SinceVersion: "v13", Legacy: []Capability{readStorage, writeStorage}}
	notifications := &Definition{ID: "notifications", SinceVersion: "v13"}
	camera := &Definition{ID: "camera"}

	tests := []struct {
		name    string
		version string
		in      []Capability
		want    []string
	}{
		{
			name:    "modern platform keeps everything",
			version: "v14",
			in:      []Capability{images, video, camera},
			want:    []string{"read_images", "read_video", "camera"},
		},
		{
			name:    "legacy substitution deduplicates",
			version: "v12",
			in:      []Capability{images, video, camera},
			want:    []string{"read_storage", "write_storage", "camera"},
		},
		{
			name:    "unsupported without legacy is dropped",
			version: "v12",
			in:      []Capability{notifications, camera},
			want:    []string{"camera"},
		},
		{
			name:    "explicit legacy member is not repeated",
			version: "v12",
			in:      []Capability{readStorage, images},
			want:    []string{"read_storage"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(tt.in, func(c Capability) bool { return SupportedOn(c, tt.version) })
			if diff := cmp.Diff(tt.want, Names(got)); diff != "" {
				t.Errorf("Expand mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGranted(t *testing.T) {
	readStorage := &Definition{ID: "read_storage"}
	writeStorage := &Definition{ID: "write_storage"}
	images := &Definition{ID: "read_images", SinceVersion: "v13", Legacy: []Capability{readStorage}}
	manage := &Definition{ID: "manage_storage", SinceVersion: "v11", Legacy: []Capability{readStorage, writeStorage}}
	notifications := &Definition{ID: "notifications", SinceVersion: "v13"}

	tests := []struct {
		name    string
		version string
		c       Capability
		granted []string
		want    bool
	}{
		{"supported uses its own grant", "v13", images, []string{"read_images"}, true},
		{"supported ignores legacy grants", "v13", images, []string{"read_storage"}, false},
		{"unsupported granted through legacy", "v12", images, []string{"read_storage"}, true},
		{"unsupported with legacy denied", "v12", images, nil, false},
		{"every legacy equivalent must be granted", "v10", manage, []string{"read_storage"}, false},
		{"all legacy equivalents granted", "v10", manage, []string{"read_storage", "write_storage"}, true},
		{"unsupported without legacy", "v12", notifications, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := make(map[string]bool, len(tt.granted))
			for _, n := range tt.granted {
				set[n] = true
			}
			supported := func(c Capability) bool { return SupportedOn(c, tt.version) }
			granted := func(c Capability) bool { return set[c.Name()] }
			if got := Granted(tt.c, supported, granted); got != tt.want {
				t.Errorf("Granted(%s) on %s = %v, want %v", tt.c.Name(), tt.version, got, tt.want)
			}
		})
	}
}

func TestMaxDelays(t *testing.T) {
	caps := []Capability{
		&Definition{ID: "a", Delay: 100 * time.Millisecond, Settle: 50 * time.Millisecond},
		&Definition{ID: "b", Delay: 300 * time.Millisecond},
		&Definition{ID: "c", Settle: 500 * time.Millisecond},
	}
	if got := MaxInterRequestDelay(caps); got != 300*time.Millisecond {
		t.Errorf("MaxInterRequestDelay = %v, want 300ms", got)
	}
	if got := MaxResultSettleDelay(caps); got != 500*time.Millisecond {
		t.Errorf("MaxResultSettleDelay = %v, want 500ms", got)
	}
	if got := MaxResultSettleDelay(nil); got != 0 {
		t.Errorf("MaxResultSettleDelay(nil) = %v, want 0", got)
	}
}
