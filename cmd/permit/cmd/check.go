package cmd

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/go-drift/permit/pkg/catalog"
)

var checkCmd = &Command{
	Name:  "check",
	Short: "Validate capability catalogs",
	Long: `Validate one or more capability catalogs.

Every problem in a catalog is reported: unknown references, self and
circular references, background capabilities on the settings channel,
invalid versions and negative delays. Without arguments the catalog named
in permit.yaml is checked, or the built-in catalog outside of a project.

Flags:
  --catalog FILE     Catalog to check (may be repeated)

Usage:
  permit check                       # Check the project catalog
  permit check a.yaml b.yaml         # Check several catalogs`,
	Usage: "permit check [--catalog FILE] [FILE...]",
}

func init() {
	checkCmd.Run = runCheck
	RegisterCommand(checkCmd)
}

type checkResult struct {
	path    string
	catalog *catalog.Catalog
	err     error
}

func runCheck(args []string) error {
	var paths []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--catalog":
			if i+1 >= len(args) {
				return fmt.Errorf("--catalog requires a file path")
			}
			paths = append(paths, args[i+1])
			i++
		case strings.HasPrefix(arg, "--catalog="):
			paths = append(paths, strings.TrimPrefix(arg, "--catalog="))
		case strings.HasPrefix(arg, "--"):
			return fmt.Errorf("unknown flag %s\n\nUsage: %s", arg, checkCmd.Usage)
		default:
			paths = append(paths, arg)
		}
	}

	if len(paths) == 0 {
		project, err := loadProject()
		if err != nil {
			return err
		}
		if project.Catalog == "" {
			c, err := catalog.Default()
			if err != nil {
				return fmt.Errorf("built-in catalog: %w", err)
			}
			printCheck(checkResult{path: "built-in catalog", catalog: c})
			return nil
		}
		paths = append(paths, project.Catalog)
	}

	results := make([]checkResult, len(paths))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			c, err := catalog.Load(path)
			results[i] = checkResult{path: path, catalog: c, err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
		}
		printCheck(r)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d catalog(s) invalid", failed, len(results))
	}
	return nil
}

func printCheck(r checkResult) {
	if r.err == nil {
		fmt.Fprintf(stdout, "ok    %s (%d capabilities, %d groups)\n", r.path, r.catalog.Len(), len(r.catalog.Groups()))
		return
	}
	fmt.Fprintf(stdout, "FAIL  %s\n", r.path)
	var verr *catalog.ValidationError
	if !errors.As(r.err, &verr) {
		fmt.Fprintf(stdout, "      %v\n", r.err)
		return
	}
	for _, p := range verr.Problems {
		fmt.Fprintf(stdout, "      %v\n", p)
	}
}
