package platform

import (
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/mod/semver"

	"github.com/go-drift/permit/pkg/capability"
	"github.com/go-drift/permit/pkg/errors"
)

const (
	permissionsChannel = "drift/permissions"
	resultsChannel     = "drift/permissions/results"
)

// PermissionResult represents the status of a permission.
type PermissionResult string

// Permission status constants.
const (
	// PermissionGranted indicates full access has been granted.
	PermissionGranted PermissionResult = "granted"

	// PermissionDenied indicates the user denied the permission. The app may request again.
	PermissionDenied PermissionResult = "denied"

	// PermissionPermanentlyDenied indicates the user denied with "don't ask again".
	// The app cannot request again; direct the user to Settings.
	PermissionPermanentlyDenied PermissionResult = "permanently_denied"

	// PermissionRestricted indicates a system policy prevents granting (parental controls,
	// MDM, enterprise policy). The user cannot change this; no dialog will be shown.
	PermissionRestricted PermissionResult = "restricted"

	// PermissionNotDetermined indicates the user has not yet been asked.
	PermissionNotDetermined PermissionResult = "not_determined"

	// PermissionResultUnknown indicates the status could not be determined.
	PermissionResultUnknown PermissionResult = "unknown"
)

// Permissions is the native permission service. It implements the engine's
// platform collaborator.
var Permissions = &PermissionService{
	channel: NewMethodChannel(permissionsChannel),
	results: NewEventChannel(resultsChannel),
}

// PermissionService issues permission dialogs and settings redirects through
// the "drift/permissions" method channel. Answers arrive as events on
// "drift/permissions/results"; see Bind.
type PermissionService struct {
	channel *MethodChannel
	results *EventChannel

	mu      sync.RWMutex
	version string
	appID   string
}

// SetPlatformVersion overrides the platform version used for version gating.
// v must be a semantic version such as "v14"; anything else clears the
// override.
func (s *PermissionService) SetPlatformVersion(v string) {
	if !semver.IsValid(v) {
		v = ""
	}
	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
}

// SetAppID sets the application id passed along with settings lookups so
// native code can build app-specific settings screens.
func (s *PermissionService) SetAppID(id string) {
	s.mu.Lock()
	s.appID = id
	s.mu.Unlock()
}

// PlatformVersion returns the platform version, asking native code on first
// use. It returns "" when the version is unknown, which makes every
// capability count as supported.
func (s *PermissionService) PlatformVersion() string {
	s.mu.RLock()
	v := s.version
	s.mu.RUnlock()
	if v != "" {
		return v
	}

	result, err := s.channel.Invoke("platformVersion", nil)
	if err != nil {
		s.report("permissions.platformVersion", nil, err)
		return ""
	}
	v = parseString(parseMap(result)["version"])
	if !semver.IsValid(v) {
		s.report("permissions.platformVersion", nil, fmt.Errorf("%w: version %q", ErrUnexpectedResponse, v))
		return ""
	}
	s.SetPlatformVersion(v)
	return v
}

// Status returns the current status of c.
func (s *PermissionService) Status(c capability.Capability) (PermissionResult, error) {
	result, err := s.channel.Invoke("check", map[string]any{
		"permission": c.Name(),
	})
	if err != nil {
		return PermissionResultUnknown, err
	}
	return parsePermissionResult(result), nil
}

// IsGranted reports whether c is granted. Errors count as not granted.
func (s *PermissionService) IsGranted(c capability.Capability) bool {
	status, err := s.Status(c)
	if err != nil {
		s.report("permissions.check", c, err)
		return false
	}
	return status == PermissionGranted
}

// IsSupported reports whether c exists on the running platform version.
func (s *PermissionService) IsSupported(c capability.Capability) bool {
	return capability.SupportedOn(c, s.PlatformVersion())
}

// IsSettingsRedirectPending reports whether visiting the settings screen for
// c can still change its state. Errors count as not pending, which skips
// the redirect.
func (s *PermissionService) IsSettingsRedirectPending(c capability.Capability) bool {
	result, err := s.channel.Invoke("isSettingsRedirectPending", map[string]any{
		"permission": c.Name(),
	})
	if err != nil {
		s.report("permissions.isSettingsRedirectPending", c, err)
		return false
	}
	return parseBool(parseMap(result)["pending"])
}

// SettingsTargets returns the candidate settings screens for c, best first.
// Malformed entries are reported and skipped.
func (s *PermissionService) SettingsTargets(c capability.Capability) []capability.Target {
	s.mu.RLock()
	appID := s.appID
	s.mu.RUnlock()

	result, err := s.channel.Invoke("settingsTargets", map[string]any{
		"permission": c.Name(),
		"package":    appID,
	})
	if err != nil {
		s.report("permissions.settingsTargets", c, err)
		return nil
	}
	list, _ := parseList(parseMap(result)["targets"])
	targets := make([]capability.Target, 0, len(list))
	for _, item := range list {
		t, err := parseTarget(item)
		if err != nil {
			s.report("permissions.settingsTargets", c, err)
			continue
		}
		targets = append(targets, t)
	}
	return targets
}

// ShouldShowRationale returns whether the app should explain c before asking
// again. False after a denial means the user chose "don't ask again".
// Errors are reported and read as false.
func (s *PermissionService) ShouldShowRationale(c capability.Capability) bool {
	result, err := s.channel.Invoke("shouldShowRationale", map[string]any{
		"permission": c.Name(),
	})
	if err != nil {
		s.report("permissions.shouldShowRationale", c, err)
		return false
	}
	return parseBool(parseMap(result)["shouldShow"])
}

// RequestDialog shows one dialog for caps. The answer arrives later as a
// results event carrying token.
func (s *PermissionService) RequestDialog(token int, caps []capability.Capability) error {
	_, err := s.channel.Invoke("requestBatch", map[string]any{
		"token":       token,
		"permissions": capability.Names(caps),
	})
	return err
}

// LaunchSettings opens target. The return arrives later as a results event
// carrying token.
func (s *PermissionService) LaunchSettings(token int, target capability.Target) error {
	if err := validateTarget(target); err != nil {
		return err
	}
	result, err := s.channel.Invoke("launchSettings", map[string]any{
		"token":   token,
		"action":  target.Action,
		"package": target.Package,
		"data":    target.Data,
	})
	if err != nil {
		return err
	}
	if m := parseMap(result); m != nil {
		if launched, ok := m["launched"].(bool); ok && !launched {
			return fmt.Errorf("permissions: no activity for %s", target)
		}
	}
	return nil
}

func (s *PermissionService) report(op string, c capability.Capability, err error) {
	e := &errors.Error{
		Op:      op,
		Kind:    errors.KindPlatform,
		Channel: permissionsChannel,
		Err:     err,
	}
	if c != nil {
		e.Capabilities = []string{c.Name()}
	}
	errors.Report(e)
}

func parsePermissionResult(result any) PermissionResult {
	if status := parseString(parseMap(result)["status"]); status != "" {
		return PermissionResult(status)
	}
	return PermissionResultUnknown
}

func parseTarget(item any) (capability.Target, error) {
	m := parseMap(item)
	t := capability.Target{
		Action:  parseString(m["action"]),
		Package: parseString(m["package"]),
		Data:    parseString(m["data"]),
	}
	if t.Action == "" {
		return capability.Target{}, &errors.ParseError{
			Channel:  permissionsChannel,
			DataType: "SettingsTarget",
			Got:      item,
		}
	}
	return t, nil
}

func validateTarget(t capability.Target) error {
	if t.Action == "" {
		return fmt.Errorf("%w: settings target without action", ErrInvalidArguments)
	}
	if t.Data == "" {
		return nil
	}
	u, err := url.Parse(t.Data)
	if err != nil {
		return fmt.Errorf("%w: settings target data: %w", ErrInvalidArguments, err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("%w: settings target data missing scheme: %q", ErrInvalidArguments, t.Data)
	}
	return nil
}

// ResultEvent is one answer from native code: a dialog result or the return
// from a settings screen.
type ResultEvent struct {
	Token int
	Kind  capability.Kind
}

func parseResultEvent(data any) (ResultEvent, bool) {
	m := parseMap(data)
	token, ok := toInt(m["token"])
	if !ok || token <= 0 {
		return ResultEvent{}, false
	}
	kind, ok := capability.ParseKind(parseString(m["kind"]))
	if !ok {
		return ResultEvent{}, false
	}
	return ResultEvent{Token: token, Kind: kind}, true
}
