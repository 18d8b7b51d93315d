package orchestrator

import (
	"strings"
	"time"

	"github.com/go-drift/permit/pkg/capability"
)

// Batch is an ordered, non-empty set of capabilities issued to the platform as
// one operation. All members share the same Kind.
type Batch []capability.Capability

// Kind returns the channel kind shared by the members.
func (b Batch) Kind() capability.Kind {
	if len(b) == 0 {
		return capability.QuickDialog
	}
	return b[0].Kind()
}

// Names returns the member names in order.
func (b Batch) Names() []string {
	return capability.Names(b)
}

// IsBackground reports whether the batch is gated on foreground grants,
// which is decided by its first member.
func (b Batch) IsBackground() bool {
	return len(b) > 0 && b[0].IsBackground()
}

// InterRequestDelay is the largest inter-request delay among the members.
func (b Batch) InterRequestDelay() time.Duration {
	return capability.MaxInterRequestDelay(b)
}

// ResultSettleDelay is the largest settle delay among the members.
func (b Batch) ResultSettleDelay() time.Duration {
	return capability.MaxResultSettleDelay(b)
}

func (b Batch) String() string {
	return "[" + strings.Join(b.Names(), ",") + "]"
}

// pending returns the members that are still not granted.
func (b Batch) pending(grants GrantChecker) Batch {
	out := make(Batch, 0, len(b))
	for _, c := range b {
		if !grants.IsGranted(c) {
			out = append(out, c)
		}
	}
	return out
}

// Partition splits request into the ordered batches the platform can process.
//
// Capabilities that are duplicated, unsupported or already granted are
// skipped. Settings redirects and ungrouped capabilities become singleton
// batches. Dialog capabilities sharing a group are gathered from the trigger
// onward into one candidate set, which is split into a foreground batch
// followed by a background batch. Batches appear in the order of their
// triggering capability, and members keep the request order.
func Partition(request []capability.Capability, grants GrantChecker) []Batch {
	var batches []Batch
	seen := make(map[string]struct{}, len(request))
	eligible := func(c capability.Capability) bool {
		return grants.IsSupported(c) && !grants.IsGranted(c)
	}

	for i, c := range request {
		if _, dup := seen[c.Name()]; dup {
			continue
		}
		seen[c.Name()] = struct{}{}
		if !eligible(c) {
			continue
		}

		if c.Kind() == capability.SettingsRedirect || c.Group() == "" {
			batches = append(batches, Batch{c})
			continue
		}

		candidates := Batch{c}
		for _, other := range request[i+1:] {
			if other.Group() != c.Group() || other.Kind() != capability.QuickDialog {
				continue
			}
			if _, dup := seen[other.Name()]; dup {
				continue
			}
			if !eligible(other) {
				continue
			}
			seen[other.Name()] = struct{}{}
			candidates = append(candidates, other)
		}

		if len(candidates.pending(grants)) == 0 {
			continue
		}

		var fg, bg Batch
		for _, m := range candidates {
			if m.IsBackground() {
				bg = append(bg, m)
			} else {
				fg = append(fg, m)
			}
		}
		if len(fg) > 0 {
			batches = append(batches, fg)
		}
		if len(bg) > 0 {
			batches = append(batches, bg)
		}
	}
	return batches
}
