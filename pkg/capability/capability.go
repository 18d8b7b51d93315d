// Package capability models the access rights the permission engine schedules.
//
// A [Capability] is opaque to the engine beyond the accessors declared on the
// interface: grouping, the [Kind] of platform mechanism that grants it, its
// foreground dependencies and its timing hints. Grant state is never stored on
// a capability; it is always asked fresh from the platform.
package capability

import (
	"time"

	"golang.org/x/mod/semver"
)

// Kind identifies the asynchronous platform mechanism that grants a capability.
type Kind int

const (
	// QuickDialog capabilities are granted through the system permission dialog.
	// Several of them can be requested by a single dialog.
	QuickDialog Kind = iota

	// SettingsRedirect capabilities are granted by sending the user to a
	// settings screen. Each redirect is a distinct screen.
	SettingsRedirect
)

func (k Kind) String() string {
	switch k {
	case QuickDialog:
		return "dialog"
	case SettingsRedirect:
		return "settings"
	default:
		return "unknown"
	}
}

// ParseKind maps the textual form used by catalogs to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "", "dialog":
		return QuickDialog, true
	case "settings":
		return SettingsRedirect, true
	default:
		return 0, false
	}
}

// Capability is one requestable access right.
//
// Implementations must be side-effect free and cheap: the scheduler calls
// these accessors repeatedly, before every batch.
type Capability interface {
	// Name is the stable identity of the capability, unique within a request.
	Name() string

	// Group returns the group id, or "" when the capability is ungrouped.
	// It must not change while a request is in flight.
	Group() string

	// Kind reports which platform mechanism grants the capability.
	Kind() Kind

	// IsBackground reports whether the capability requires a granted
	// foreground counterpart before it may be requested.
	IsBackground() bool

	// ForegroundDependencies lists the capabilities of which at least one must
	// be granted before this background capability is requested. An empty
	// list means the dependency is vacuously satisfied.
	ForegroundDependencies() []Capability

	// LegacyEquivalents lists the capabilities to request instead on platform
	// versions where this one does not exist.
	LegacyEquivalents() []Capability

	// InterRequestDelay is the minimum wait after this capability's batch
	// completes before the next batch is issued.
	InterRequestDelay() time.Duration

	// ResultSettleDelay is the minimum wait after a platform callback before
	// the grant state of this capability can be trusted.
	ResultSettleDelay() time.Duration
}

// Versioned is implemented by capabilities that only exist from a given
// platform version on.
type Versioned interface {
	// Since returns the first platform version (semver, "v13" style) on which
	// the capability exists, or "" if it always existed.
	Since() string
}

// SupportedOn reports whether c exists on the given platform version.
// Capabilities that do not implement Versioned, or declare no version, are
// always supported. An invalid platform version supports everything.
func SupportedOn(c Capability, platformVersion string) bool {
	v, ok := c.(Versioned)
	if !ok {
		return true
	}
	since := v.Since()
	if since == "" || !semver.IsValid(platformVersion) || !semver.IsValid(since) {
		return true
	}
	return semver.Compare(platformVersion, since) >= 0
}

// Names returns the names of caps in order.
func Names(caps []Capability) []string {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.Name()
	}
	return names
}

// MaxInterRequestDelay returns the largest InterRequestDelay among caps.
func MaxInterRequestDelay(caps []Capability) time.Duration {
	var d time.Duration
	for _, c := range caps {
		d = max(d, c.InterRequestDelay())
	}
	return d
}

// MaxResultSettleDelay returns the largest ResultSettleDelay among caps.
func MaxResultSettleDelay(caps []Capability) time.Duration {
	var d time.Duration
	for _, c := range caps {
		d = max(d, c.ResultSettleDelay())
	}
	return d
}

// Target is one candidate settings screen for a SettingsRedirect capability.
// Platforms return several candidates per capability because vendor builds
// move or remove screens; they are tried in order.
type Target struct {
	Action  string
	Package string
	Data    string
}

func (t Target) String() string {
	if t.Data != "" {
		return t.Action + " " + t.Data
	}
	return t.Action
}
