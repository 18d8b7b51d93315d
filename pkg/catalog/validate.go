package catalog

import (
	"errors"
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/go-drift/permit/pkg/capability"
)

// Problems found while validating a catalog.
var (
	ErrMissingName          = errors.New("missing name")
	ErrDuplicateName        = errors.New("duplicate name")
	ErrUnknownChannel       = errors.New("unknown channel")
	ErrInvalidVersion       = errors.New("since is not a semantic version")
	ErrNegativeDelay        = errors.New("negative delay")
	ErrUnknownReference     = errors.New("unknown reference")
	ErrSelfReference        = errors.New("refers to itself")
	ErrReferenceCycle       = errors.New("reference cycle")
	ErrBackgroundSettings   = errors.New("background capability cannot use the settings channel")
	ErrDependsOnForeground  = errors.New("dependsOn is only valid on background capabilities")
	ErrBackgroundDependency = errors.New("depends on another background capability")
)

// Problem is one validation failure, attached to the entry it was found on.
type Problem struct {
	Capability string
	Err        error
}

func (p *Problem) Error() string {
	if p.Capability == "" {
		return p.Err.Error()
	}
	return p.Capability + ": " + p.Err.Error()
}

func (p *Problem) Unwrap() error { return p.Err }

// ValidationError reports every problem found in a catalog.
type ValidationError struct {
	Problems []*Problem
}

func (e *ValidationError) Error() string {
	errs := make([]error, len(e.Problems))
	for i, p := range e.Problems {
		errs[i] = p
	}
	return fmt.Sprintf("catalog: %d problem(s):\n%v", len(e.Problems), errors.Join(errs...))
}

// Unwrap exposes the problems to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Problems))
	for i, p := range e.Problems {
		errs[i] = p
	}
	return errs
}

func validate(entries []Entry) error {
	var problems []*Problem
	add := func(name string, err error) {
		problems = append(problems, &Problem{Capability: name, Err: err})
	}

	index := make(map[string]Entry, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			add("", fmt.Errorf("entry %d: %w", i, ErrMissingName))
			continue
		}
		if _, dup := index[e.Name]; dup {
			add(e.Name, ErrDuplicateName)
			continue
		}
		index[e.Name] = e
	}

	checked := make(map[string]bool, len(index))
	for _, e := range entries {
		if e.Name == "" || checked[e.Name] {
			continue
		}
		checked[e.Name] = true
		kind, ok := capability.ParseKind(e.Channel)
		if !ok {
			add(e.Name, fmt.Errorf("%w %q", ErrUnknownChannel, e.Channel))
		}
		if e.Since != "" && !semver.IsValid(e.Since) {
			add(e.Name, fmt.Errorf("%w: %q", ErrInvalidVersion, e.Since))
		}
		if e.InterRequestDelay < 0 || e.ResultSettleDelay < 0 {
			add(e.Name, ErrNegativeDelay)
		}
		if e.Background && ok && kind == capability.SettingsRedirect {
			add(e.Name, ErrBackgroundSettings)
		}
		if len(e.DependsOn) > 0 && !e.Background {
			add(e.Name, ErrDependsOnForeground)
		}
		for _, dep := range e.DependsOn {
			target, known := index[dep]
			switch {
			case dep == e.Name:
				add(e.Name, fmt.Errorf("dependsOn %w", ErrSelfReference))
			case !known:
				add(e.Name, fmt.Errorf("dependsOn: %w %q", ErrUnknownReference, dep))
			case target.Background:
				add(e.Name, fmt.Errorf("%w %q", ErrBackgroundDependency, dep))
			}
		}
		for _, l := range e.Legacy {
			switch _, known := index[l]; {
			case l == e.Name:
				add(e.Name, fmt.Errorf("legacy %w", ErrSelfReference))
			case !known:
				add(e.Name, fmt.Errorf("legacy: %w %q", ErrUnknownReference, l))
			}
		}
	}

	for _, cycle := range findCycles(entries, index) {
		add(cycle[0], fmt.Errorf("%w: %v", ErrReferenceCycle, cycle))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// findCycles reports each cycle through legacy and dependsOn references once,
// as the path that closes it. Self references are reported elsewhere.
func findCycles(entries []Entry, index map[string]Entry) [][]string {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(index))
	var cycles [][]string
	var path []string

	var visit func(name string)
	visit = func(name string) {
		state[name] = onPath
		path = append(path, name)
		e := index[name]
		for _, next := range append(append([]string(nil), e.Legacy...), e.DependsOn...) {
			if next == name {
				continue
			}
			if _, known := index[next]; !known {
				continue
			}
			switch state[next] {
			case unvisited:
				visit(next)
			case onPath:
				start := 0
				for i, n := range path {
					if n == next {
						start = i
						break
					}
				}
				cycle := append(append([]string(nil), path[start:]...), next)
				cycles = append(cycles, cycle)
			}
		}
		path = path[:len(path)-1]
		state[name] = done
	}

	for _, e := range entries {
		if _, ok := index[e.Name]; ok && state[e.Name] == unvisited {
			visit(e.Name)
		}
	}
	return cycles
}
