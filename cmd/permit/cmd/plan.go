package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-drift/permit/pkg/capability"
	"github.com/go-drift/permit/pkg/orchestrator"
)

var planCmd = &Command{
	Name:  "plan",
	Short: "Show the batches a request is split into",
	Long: `Show how a permission request is split into batches.

Capabilities in the same group are asked for in one dialog, foreground
capabilities before background ones. Settings redirects and ungrouped
capabilities get a batch of their own. Capabilities missing from the
platform version are replaced by their legacy equivalents, and granted
capabilities are left out.

Flags:
  --catalog FILE     Capability catalog (default: permit.yaml, then built-in)
  --version V        Platform version, e.g. v13 (default: permit.yaml)
  --granted a,b      Capabilities that are already granted

Usage:
  permit plan android.permission.ACCESS_BACKGROUND_LOCATION \
      android.permission.ACCESS_FINE_LOCATION`,
	Usage: "permit plan [--catalog FILE] [--version V] [--granted a,b] NAME...",
}

func init() {
	planCmd.Run = runPlan
	RegisterCommand(planCmd)
}

func runPlan(args []string) error {
	opts, err := parseRequestArgs(planCmd, args, false)
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

	writePlan(stdout, env.versionLabel(), request, env.platform(opts.granted))
	return nil
}

// writePlan prints the substitutions and skips applied to request, then the
// batches in the order they would be issued.
func writePlan(w io.Writer, label string, request []capability.Capability, grants orchestrator.GrantChecker) {
	expanded := capability.Expand(request, grants.IsSupported)

	for _, c := range request {
		if grants.IsSupported(c) {
			continue
		}
		var substitutes []string
		for _, l := range c.LegacyEquivalents() {
			if grants.IsSupported(l) {
				substitutes = append(substitutes, l.Name())
			}
		}
		if len(substitutes) == 0 {
			fmt.Fprintf(w, "skip     %s: not available on %s\n", c.Name(), label)
			continue
		}
		fmt.Fprintf(w, "replace  %s -> %s\n", c.Name(), strings.Join(substitutes, ", "))
	}
	for _, c := range expanded {
		if grants.IsGranted(c) {
			fmt.Fprintf(w, "skip     %s: already granted\n", c.Name())
		}
	}

	batches := orchestrator.Partition(expanded, grants)
	fmt.Fprintf(w, "%d batch(es) on %s\n", len(batches), label)
	for i, b := range batches {
		fmt.Fprintf(w, "%d. %s\n", i+1, describeBatch(b))
		for _, name := range b.Names() {
			fmt.Fprintf(w, "     %s\n", name)
		}
	}
}

func describeBatch(b orchestrator.Batch) string {
	parts := []string{b.Kind().String()}
	if b.IsBackground() {
		parts = append(parts, "background, needs a foreground grant")
	}
	if d := b.InterRequestDelay(); d > 0 {
		parts = append(parts, "wait "+d.String())
	}
	if d := b.ResultSettleDelay(); d > 0 {
		parts = append(parts, "settle "+d.String())
	}
	return strings.Join(parts, ", ")
}
