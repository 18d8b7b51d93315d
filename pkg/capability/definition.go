package capability

import "time"

// Definition is the plain foreground capability: every property is a field.
type Definition struct {
	// ID is the capability name (e.g. "android.permission.CAMERA").
	ID string
	// GroupID groups capabilities that are requested by one dialog.
	GroupID string
	// Channel selects dialog or settings redirect.
	Channel Kind
	// SinceVersion is the first platform version carrying the capability.
	SinceVersion string
	// Legacy lists the substitutes for platform versions before SinceVersion.
	Legacy []Capability
	// Delay is the inter-request delay hint.
	Delay time.Duration
	// Settle is the result-settle delay hint.
	Settle time.Duration
}

func (d *Definition) Name() string { return d.ID }
func (d *Definition) Group() string { return d.GroupID }
func (d *Definition) Kind() Kind { return d.Channel }
func (d *Definition) IsBackground() bool { return false }
func (d *Definition) ForegroundDependencies() []Capability { return nil }
func (d *Definition) LegacyEquivalents() []Capability { return d.Legacy }
func (d *Definition) InterRequestDelay() time.Duration { return d.Delay }
func (d *Definition) ResultSettleDelay() time.Duration { return d.Settle }
func (d *Definition) Since() string { return d.SinceVersion }

func (d *Definition) String() string { return d.ID }

// Background is a capability that is only meaningful once one of its
// foreground dependencies is granted (e.g. background location).
type Background struct {
	Definition
	// Requires lists the foreground capabilities, any one of which satisfies
	// the dependency.
	Requires []Capability
}

func (b *Background) IsBackground() bool { return true }
func (b *Background) ForegroundDependencies() []Capability { return b.Requires }

var (
	_ Capability = (*Definition)(nil)
	_ Capability = (*Background)(nil)
	_ Versioned  = (*Background)(nil)
)

// Expand substitutes legacy equivalents for capabilities the platform does
// not support. Supported capabilities are kept as is. An unsupported
// capability is replaced by those of its legacy equivalents that are
// supported; one without any is dropped. The result keeps the caller's order
// and contains each name at most once.
func Expand(caps []Capability, supported func(Capability) bool) []Capability {
	seen := make(map[string]struct{}, len(caps))
	out := make([]Capability, 0, len(caps))
	add := func(c Capability) {
		if _, dup := seen[c.Name()]; dup {
			return
		}
		seen[c.Name()] = struct{}{}
		out = append(out, c)
	}
	for _, c := range caps {
		if supported(c) {
			add(c)
			continue
		}
		for _, legacy := range c.LegacyEquivalents() {
			if supported(legacy) {
				add(legacy)
			}
		}
	}
	return out
}

// Granted reports whether c counts as granted. A capability the platform
// does not support is requested through its legacy equivalents, so it counts
// as granted once every supported legacy equivalent is. Without any supported
// legacy equivalent the granted predicate decides on c alone.
func Granted(c Capability, supported, granted func(Capability) bool) bool {
	if supported(c) {
		return granted(c)
	}
	n := 0
	for _, legacy := range c.LegacyEquivalents() {
		if !supported(legacy) {
			continue
		}
		if !granted(legacy) {
			return false
		}
		n++
	}
	return n > 0 || granted(c)
}
