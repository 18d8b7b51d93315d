package cmd

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/go-drift/permit/cmd/permit/internal/config"
	"github.com/go-drift/permit/pkg/capability"
	"github.com/go-drift/permit/pkg/catalog"
	permittest "github.com/go-drift/permit/pkg/testing"
)

// requestArgs holds the flags shared by plan and simulate.
type requestArgs struct {
	catalog   string
	version   string
	granted   []string
	grant     []string
	rationale []string
	names     []string
}

// parseRequestArgs parses "--flag value" and "--flag=value" forms. Answer
// flags (--grant, --rationale) are only accepted when answers is set.
func parseRequestArgs(cmd *Command, args []string, answers bool) (*requestArgs, error) {
	opts := &requestArgs{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			opts.names = append(opts.names, arg)
			continue
		}

		name, value, hasValue := strings.Cut(arg, "=")
		var target *[]string
		var single *string
		switch name {
		case "--catalog":
			single = &opts.catalog
		case "--version":
			single = &opts.version
		case "--granted":
			target = &opts.granted
		case "--grant":
			target = &opts.grant
		case "--rationale":
			target = &opts.rationale
		}
		if (single == nil && target == nil) || (!answers && (name == "--grant" || name == "--rationale")) {
			return nil, fmt.Errorf("unknown flag %s\n\nUsage: %s", name, cmd.Usage)
		}

		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a value", name)
			}
			i++
			value = args[i]
		}
		if single != nil {
			*single = value
		} else {
			*target = append(*target, splitList(value)...)
		}
	}

	if len(opts.names) == 0 {
		return nil, fmt.Errorf("at least one capability is required\n\nUsage: %s", cmd.Usage)
	}
	return opts, nil
}

// environment is the catalog and platform a request is planned against.
type environment struct {
	project *config.Resolved
	catalog *catalog.Catalog
	version string
}

// loadEnvironment merges command line flags over the project configuration.
func loadEnvironment(catalogPath, version string) (*environment, error) {
	project, err := loadProject()
	if err != nil {
		return nil, err
	}

	if catalogPath == "" {
		catalogPath = project.Catalog
	}
	cat, err := openCatalog(catalogPath)
	if err != nil {
		return nil, err
	}

	if version == "" {
		version = project.PlatformVersion
	}
	if version != "" && !semver.IsValid(version) {
		return nil, fmt.Errorf("--version must be a semantic version such as v14 (got %q)", version)
	}

	return &environment{project: project, catalog: cat, version: version}, nil
}

// loadProject resolves permit.yaml for the enclosing Go module. Outside of a
// module the defaults apply.
func loadProject() (*config.Resolved, error) {
	root, err := config.FindProjectRoot()
	if err != nil {
		return config.Defaults(), nil
	}
	project, err := config.Resolve(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return project, nil
}

func openCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

// resolve maps the request and every name list to catalog capabilities, so
// a typo in any flag is reported before anything runs.
func (env *environment) resolve(opts *requestArgs) ([]capability.Capability, error) {
	for _, names := range [][]string{opts.granted, opts.grant, opts.rationale} {
		if _, err := env.catalog.Resolve(names...); err != nil {
			return nil, err
		}
	}
	return env.catalog.Resolve(opts.names...)
}

// platform returns a simulated platform at the environment's version on
// which granted is already granted.
func (env *environment) platform(granted []string) *permittest.FakePlatform {
	p := permittest.NewFakePlatform()
	p.Version = env.version
	p.Package = env.project.AppID
	p.Grant(granted...)
	return p
}

func (env *environment) versionLabel() string {
	if env.version == "" {
		return "any platform version"
	}
	return "platform " + env.version
}
