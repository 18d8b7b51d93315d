package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-drift/permit/pkg/capability"
	"github.com/go-drift/permit/pkg/orchestrator"
	permittest "github.com/go-drift/permit/pkg/testing"
	"github.com/go-drift/permit/pkg/token"
)

// simulateStepLimit bounds the timeline tasks one simulated session may run.
const simulateStepLimit = 10000

var simulateCmd = &Command{
	Name:  "simulate",
	Short: "Rehearse a request session on a simulated platform",
	Long: `Run a complete request session against a simulated platform and print
every dialog and settings redirect it issues, with the virtual time at
which it happens.

The simulated user grants exactly the capabilities listed with --grant and
denies everything else. Denied capabilities without --rationale are treated
as "don't ask again" and reported as permanently denied.

Flags:
  --catalog FILE     Capability catalog (default: permit.yaml, then built-in)
  --version V        Platform version, e.g. v13 (default: permit.yaml)
  --granted a,b      Capabilities granted before the session starts
  --grant a,b        Capabilities the user grants when asked
  --rationale a,b    Denied capabilities the platform would still ask for

Usage:
  permit simulate --grant android.permission.CAMERA android.permission.CAMERA`,
	Usage: "permit simulate [--catalog FILE] [--version V] [--granted a,b] [--grant a,b] [--rationale a,b] NAME...",
}

func init() {
	simulateCmd.Run = runSimulate
	RegisterCommand(simulateCmd)
}

func runSimulate(args []string) error {
	opts, err := parseRequestArgs(simulateCmd, args, true)
	if err != nil {
		return err
	}
	env, err := loadEnvironment(opts.catalog, opts.version)
	if err != nil {
		return err
	}
	request, err := env.resolve(opts)
	if err != nil {
		return err
	}

	sim := newSimulation(env, opts)
	return sim.run(request)
}

// simulation drives one engine session on a fake platform and timeline,
// answering each request from the --grant list.
type simulation struct {
	platform *permittest.FakePlatform
	timeline *permittest.FakeTimeline
	engine   *orchestrator.Engine
	grant    map[string]bool
	start    time.Time
}

func newSimulation(env *environment, opts *requestArgs) *simulation {
	s := &simulation{
		platform: env.platform(opts.granted),
		timeline: permittest.NewFakeTimeline(),
		grant:    make(map[string]bool, len(opts.grant)),
	}
	for _, name := range opts.grant {
		s.grant[name] = true
	}
	for _, name := range opts.rationale {
		s.platform.SetRationale(name, true)
	}
	s.start = s.timeline.Now()
	s.engine = orchestrator.New(s.platform, s.timeline,
		orchestrator.WithTokens(token.New()),
		orchestrator.WithAttempts(orchestrator.NewAttempts()),
		orchestrator.WithTokenCeiling(env.project.TokenCeiling),
		orchestrator.WithLogger(newLogger()),
	)
	s.platform.OnDialog = s.answerDialog
	s.platform.OnLaunch = s.answerLaunch
	return s
}

func (s *simulation) printf(format string, args ...any) {
	elapsed := s.timeline.Now().Sub(s.start)
	fmt.Fprintf(stdout, "%8s  %s\n", elapsed, fmt.Sprintf(format, args...))
}

func (s *simulation) answerDialog(call permittest.DialogCall) {
	s.printf("dialog    #%d %s", call.Token, strings.Join(call.Names, " "))
	s.timeline.Post(func() {
		var granted []string
		for _, name := range call.Names {
			if s.grant[name] {
				granted = append(granted, name)
			}
		}
		s.platform.Grant(granted...)
		s.printf("answer    #%d granted %d of %d", call.Token, len(granted), len(call.Names))
		s.engine.DeliverDialogResult(call.Token)
	})
}

// answerLaunch treats the target action as the capability name, which is
// what the simulated platform puts there.
func (s *simulation) answerLaunch(call permittest.LaunchCall) error {
	s.printf("settings  #%d %s", call.Token, call.Target)
	s.timeline.Post(func() {
		name := call.Target.Action
		verdict := "left off"
		if s.grant[name] {
			s.platform.Grant(name)
			verdict = "turned on"
		}
		s.printf("return    #%d %s", call.Token, verdict)
		s.engine.DeliverSettingsReturn(call.Token)
	})
	return nil
}

func (s *simulation) run(request []capability.Capability) error {
	var granted, denied []capability.Capability
	finished := false
	session, err := s.engine.Orchestrate(request, orchestrator.Callbacks{
		Start: func() { s.printf("started") },
		Finish: func(g, d []capability.Capability) {
			granted, denied, finished = g, d, true
			s.printf("finished")
		},
		Anomaly: func() { s.printf("abandoned") },
	})
	if err != nil {
		return err
	}

	if err := s.timeline.Settle(simulateStepLimit); err != nil {
		s.engine.Teardown()
		return fmt.Errorf("session %s: %w", session.ID(), err)
	}
	if !finished {
		return fmt.Errorf("session %s ended in state %s", session.ID(), session.State())
	}

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "batches:            %d\n", len(session.Batches()))
	fmt.Fprintf(stdout, "granted:            %s\n", listNames(granted))
	fmt.Fprintf(stdout, "denied:             %s\n", listNames(denied))
	fmt.Fprintf(stdout, "permanently denied: %s\n", listNames(s.engine.PermanentlyDenied(denied)))
	return nil
}

func listNames(caps []capability.Capability) string {
	if len(caps) == 0 {
		return "-"
	}
	return strings.Join(capability.Names(caps), " ")
}
