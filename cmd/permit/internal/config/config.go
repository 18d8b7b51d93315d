package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/permit/pkg/token"
)

// FileName is the optional project configuration file.
const FileName = "permit.yaml"

// Config represents the optional permit.yaml configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Platform PlatformConfig `yaml:"platform"`
	Catalog  string         `yaml:"catalog,omitempty"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
	ID   string `yaml:"id,omitempty"`
}

// PlatformConfig describes the platform the app is planned against.
type PlatformConfig struct {
	Version      string `yaml:"version,omitempty"`
	TokenCeiling int    `yaml:"tokenCeiling,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root            string
	ModulePath      string
	AppName         string
	AppID           string
	PlatformVersion string
	TokenCeiling    int

	// Catalog is an absolute path, or empty for the built-in catalog.
	Catalog string
}

// Defaults is the configuration used outside of a Go module.
func Defaults() *Resolved {
	return &Resolved{
		AppName:      "app",
		AppID:        "com.example.app",
		TokenCeiling: token.DefaultCeiling,
	}
}

// LoadOptional reads permit.yaml if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	return &cfg, nil
}

// Resolve loads permit.yaml (if present) and resolves defaults.
func Resolve(dir string) (*Resolved, error) {
	modulePath, err := modulePath(dir)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}

	appName := strings.TrimSpace(cfg.App.Name)
	if appName == "" {
		appName = defaultAppName(modulePath, dir)
	}

	appID := strings.TrimSpace(cfg.App.ID)
	if appID == "" {
		appID = defaultAppID(modulePath, appName)
	}
	if err := validateAppID(appID); err != nil {
		return nil, err
	}

	version := strings.TrimSpace(cfg.Platform.Version)
	if version != "" && !semver.IsValid(version) {
		return nil, fmt.Errorf("platform.version must be a semantic version such as v14 (got %q)", version)
	}

	ceiling := cfg.Platform.TokenCeiling
	switch {
	case ceiling < 0:
		return nil, fmt.Errorf("platform.tokenCeiling must be positive (got %d)", ceiling)
	case ceiling == 0:
		ceiling = token.DefaultCeiling
	}

	catalog := strings.TrimSpace(cfg.Catalog)
	if catalog != "" && !filepath.IsAbs(catalog) {
		catalog = filepath.Join(dir, catalog)
	}

	return &Resolved{
		Root:            dir,
		ModulePath:      modulePath,
		AppName:         appName,
		AppID:           appID,
		PlatformVersion: version,
		TokenCeiling:    ceiling,
		Catalog:         catalog,
	}, nil
}

// FindProjectRoot walks up from the current directory to find go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Go module (no go.mod found)")
		}
		dir = parent
	}
}

func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	return path, nil
}

func defaultAppName(modulePath, dir string) string {
	base := filepath.Base(dir)
	modName, _, ok := module.SplitPathVersion(modulePath)
	if ok {
		parts := strings.Split(modName, "/")
		if len(parts) > 0 {
			base = parts[len(parts)-1]
		}
	}
	if base == "" {
		return "app"
	}
	return base
}

// defaultAppID turns a module path into a reverse-DNS application id, the
// form Android uses for package names.
func defaultAppID(modulePath, appName string) string {
	parts := strings.Split(modulePath, "/")
	if len(parts) < 2 || !strings.Contains(parts[0], ".") {
		return fmt.Sprintf("com.example.%s", sanitizeSegment(appName))
	}

	host := strings.Split(parts[0], ".")
	for i, j := 0, len(host)-1; i < j; i, j = i+1, j-1 {
		host[i], host[j] = host[j], host[i]
	}

	segments := host
	for _, p := range parts[1:] {
		if p != "" {
			segments = append(segments, p)
		}
	}
	for i, segment := range segments {
		segments[i] = sanitizeSegment(segment)
	}

	return strings.Join(segments, ".")
}

// sanitizeSegment lowercases segment and drops characters an app id cannot hold.
func sanitizeSegment(segment string) string {
	segment = strings.TrimSpace(segment)

	var out []rune
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		}
	}

	for len(out) > 0 && out[0] == '_' {
		out = out[1:]
	}
	if len(out) == 0 {
		out = []rune("app")
	}

	if out[0] >= '0' && out[0] <= '9' {
		out = append([]rune{'a'}, out...)
	}

	return string(out)
}

func validateAppID(appID string) error {
	if !strings.Contains(appID, ".") {
		return fmt.Errorf("app.id must contain at least one '.' (got %q)", appID)
	}
	segments := strings.Split(appID, ".")
	for _, segment := range segments {
		if segment == "" {
			return fmt.Errorf("app.id contains an empty segment (%q)", appID)
		}
		if segment[0] >= '0' && segment[0] <= '9' {
			return fmt.Errorf("app.id segments cannot start with a digit (%q)", appID)
		}
		if segment[0] == '_' {
			return fmt.Errorf("app.id segments cannot start with '_' (%q)", appID)
		}
		for _, r := range segment {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
				return fmt.Errorf("app.id contains invalid character %q in %q", r, appID)
			}
		}
	}
	return nil
}
