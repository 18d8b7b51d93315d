package orchestrator

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-drift/permit/pkg/capability"
	permittest "github.com/go-drift/permit/pkg/testing"
)

func planNames(batches []Batch) [][]string {
	out := make([][]string, 0, len(batches))
	for _, b := range batches {
		out = append(out, b.Names())
	}
	return out
}

func TestPartition(t *testing.T) {
	a := dialog("A", "G")
	b := dialog("B", "G")
	c := dialog("C", "G")
	z := background("Z", "G", a)
	x := dialog("X", "H")
	y := dialog("Y", "")
	s1 := settings("S1", "special")
	s2 := settings("S2", "special")
	sg := settings("SG", "G")

	tests := []struct {
		name        string
		request     []capability.Capability
		granted     []string
		unsupported []string
		want        [][]string
	}{
		{
			name:    "group coalescing keeps input order",
			request: []capability.Capability{a, b, c},
			want:    [][]string{{"A", "B", "C"}},
		},
		{
			name:    "foreground and background split",
			request: []capability.Capability{a, z},
			want:    [][]string{{"A"}, {"Z"}},
		},
		{
			name:    "background first still follows foreground",
			request: []capability.Capability{z, a},
			want:    [][]string{{"A"}, {"Z"}},
		},
		{
			name:    "settings redirects are never coalesced",
			request: []capability.Capability{s1, s2},
			want:    [][]string{{"S1"}, {"S2"}},
		},
		{
			name:    "settings member of a dialog group stands alone",
			request: []capability.Capability{a, sg, b},
			want:    [][]string{{"A", "B"}, {"SG"}},
		},
		{
			name:    "interleaved groups keep trigger order",
			request: []capability.Capability{a, x, b, y},
			want:    [][]string{{"A", "B"}, {"X"}, {"Y"}},
		},
		{
			name:        "granted and unsupported are skipped",
			request:     []capability.Capability{a, b, c, y},
			granted:     []string{"B"},
			unsupported: []string{"Y"},
			want:        [][]string{{"A", "C"}},
		},
		{
			name:    "duplicates are skipped",
			request: []capability.Capability{y, a, y, a},
			want:    [][]string{{"Y"}, {"A"}},
		},
		{
			name:    "all granted yields nothing",
			request: []capability.Capability{a, b, s1},
			granted: []string{"A", "B", "S1"},
			want:    [][]string{},
		},
		{
			name:    "empty request",
			request: nil,
			want:    [][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := permittest.NewFakePlatform()
			p.Grant(tt.granted...)
			p.SetUnsupported(tt.unsupported...)

			got := planNames(Partition(tt.request, p))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Partition mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPartitionBatchesShareKind(t *testing.T) {
	request := []capability.Capability{
		dialog("A", "G"), settings("S", "G"), dialog("B", "G"),
		settings("T", ""), background("Z", "G"),
	}
	for _, b := range Partition(request, permittest.NewFakePlatform()) {
		for _, m := range b {
			if m.Kind() != b.Kind() {
				t.Errorf("batch %s mixes %s and %s", b, b.Kind(), m.Kind())
			}
			if m.IsBackground() != b.IsBackground() {
				t.Errorf("batch %s mixes foreground and background members", b)
			}
		}
	}
}

// raceChecker reports a capability as granted from its second query on,
// simulating a grant that lands while the plan is being built.
type raceChecker struct {
	queries map[string]int
	racy    map[string]bool
}

func (r *raceChecker) IsGranted(c capability.Capability) bool {
	r.queries[c.Name()]++
	return r.racy[c.Name()] && r.queries[c.Name()] > 1
}

func (r *raceChecker) IsSupported(capability.Capability) bool { return true }

func TestPartitionDropsGroupGrantedDuringScan(t *testing.T) {
	checker := &raceChecker{
		queries: map[string]int{},
		racy:    map[string]bool{"A": true, "B": true},
	}
	got := planNames(Partition([]capability.Capability{dialog("A", "G"), dialog("B", "G"), dialog("C", "")}, checker))
	if diff := cmp.Diff([][]string{{"C"}}, got); diff != "" {
		t.Errorf("Partition mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchHelpers(t *testing.T) {
	b := Batch{dialog("A", "G"), background("Z", "G")}
	if b.String() != "[A,Z]" {
		t.Errorf("String() = %q", b.String())
	}
	if b.IsBackground() {
		t.Error("IsBackground decided by first member, want false")
	}
	if (Batch{}).Kind() != capability.QuickDialog {
		t.Error("empty batch kind should default to dialog")
	}
}
