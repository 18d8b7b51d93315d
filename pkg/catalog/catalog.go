// Package catalog loads capability definitions from YAML.
//
// A catalog lists every capability an app may request, with the metadata the
// engine schedules by: its group, its channel (dialog or settings), whether it
// is a background capability and which foreground capabilities it needs, the
// first platform version that has it and what to request instead on older
// versions, and the delays the platform needs around it.
//
//	capabilities:
//	  - name: android.permission.ACCESS_FINE_LOCATION
//	    group: location
//	  - name: android.permission.ACCESS_BACKGROUND_LOCATION
//	    group: location
//	    background: true
//	    dependsOn: [android.permission.ACCESS_FINE_LOCATION]
//	    since: v10
//
// References between entries are resolved when the catalog is parsed, and a
// catalog with any problem is rejected as a whole with a *ValidationError.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/go-drift/permit/pkg/capability"
)

// ErrUnknownCapability is returned by Resolve for names the catalog does not list.
var ErrUnknownCapability = errors.New("catalog: unknown capability")

//go:embed android.yaml
var androidYAML []byte

// File is the YAML document layout.
type File struct {
	Capabilities []Entry `yaml:"capabilities"`
}

// Entry is one capability as written in YAML.
type Entry struct {
	Name              string   `yaml:"name"`
	Group             string   `yaml:"group,omitempty"`
	Channel           string   `yaml:"channel,omitempty"`
	Background        bool     `yaml:"background,omitempty"`
	DependsOn         []string `yaml:"dependsOn,omitempty"`
	Legacy            []string `yaml:"legacy,omitempty"`
	Since             string   `yaml:"since,omitempty"`
	InterRequestDelay Duration `yaml:"interRequestDelay,omitempty"`
	ResultSettleDelay Duration `yaml:"resultSettleDelay,omitempty"`
}

// Catalog is a validated set of capabilities, indexed by name.
type Catalog struct {
	entries []Entry
	byName  map[string]capability.Capability
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	return Build(f.Capabilities)
}

// Load reads and parses the catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return Parse(data)
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return Parse(androidYAML)
})

// Default returns the built-in Android catalog.
func Default() (*Catalog, error) {
	return defaultCatalog()
}

// Build validates entries and resolves their references.
func Build(entries []Entry) (*Catalog, error) {
	if err := validate(entries); err != nil {
		return nil, err
	}

	c := &Catalog{
		entries: append([]Entry(nil), entries...),
		byName:  make(map[string]capability.Capability, len(entries)),
	}
	defs := make(map[string]*capability.Definition, len(entries))
	backgrounds := make(map[string]*capability.Background)
	for _, e := range entries {
		kind, _ := capability.ParseKind(e.Channel)
		def := capability.Definition{
			ID:           e.Name,
			GroupID:      e.Group,
			Channel:      kind,
			SinceVersion: e.Since,
			Delay:        e.InterRequestDelay.Std(),
			Settle:       e.ResultSettleDelay.Std(),
		}
		if e.Background {
			b := &capability.Background{Definition: def}
			backgrounds[e.Name] = b
			defs[e.Name] = &b.Definition
			c.byName[e.Name] = b
			continue
		}
		d := &def
		defs[e.Name] = d
		c.byName[e.Name] = d
	}

	// Second pass: every name is known now.
	for _, e := range entries {
		for _, l := range e.Legacy {
			defs[e.Name].Legacy = append(defs[e.Name].Legacy, c.byName[l])
		}
		if b, ok := backgrounds[e.Name]; ok {
			for _, dep := range e.DependsOn {
				b.Requires = append(b.Requires, c.byName[dep])
			}
		}
	}
	return c, nil
}

// Lookup returns the capability called name.
func (c *Catalog) Lookup(name string) (capability.Capability, bool) {
	found, ok := c.byName[name]
	return found, ok
}

// Resolve maps names to capabilities, keeping their order. Every unknown name
// is reported in the returned error.
func (c *Catalog) Resolve(names ...string) ([]capability.Capability, error) {
	out := make([]capability.Capability, 0, len(names))
	var errs []error
	for _, n := range names {
		found, ok := c.byName[n]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownCapability, n))
			continue
		}
		out = append(out, found)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Names returns every capability name in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// Groups returns the distinct group names, sorted.
func (c *Catalog) Groups() []string {
	seen := make(map[string]struct{})
	for _, e := range c.entries {
		if e.Group != "" {
			seen[e.Group] = struct{}{}
		}
	}
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Entries returns a copy of the entries the catalog was built from.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Len returns the number of capabilities.
func (c *Catalog) Len() int {
	return len(c.entries)
}
