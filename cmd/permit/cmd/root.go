// Package cmd implements the permit CLI commands.
//
// The command structure follows standard Go CLI patterns with a root command
// that dispatches to subcommands (plan, simulate, check, version).
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	permiterrors "github.com/go-drift/permit/pkg/errors"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Command represents a CLI command.
type Command struct {
	Name        string
	Short       string
	Long        string
	Usage       string
	Run         func(args []string) error
	SubCommands []*Command
}

var rootCmd = &Command{
	Name:  "permit",
	Short: "permit - plan and rehearse runtime permission requests",
	Long: `permit schedules runtime permission requests: it groups capabilities
into the dialogs and settings redirects a platform can show, orders them
so background capabilities follow their foreground dependencies, and
rehearses whole request sessions against a simulated platform.

Use "permit <command> --help" for more information about a command.`,
	Usage: "permit <command> [flags]",
}

// Commands registered with the CLI.
var commands = make(map[string]*Command)

// RegisterCommand adds a command to the CLI.
func RegisterCommand(cmd *Command) {
	commands[cmd.Name] = cmd
	rootCmd.SubCommands = append(rootCmd.SubCommands, cmd)
}

// verbosity is the number of -v flags given.
var verbosity int

// Execute runs the CLI with the process arguments.
func Execute() error {
	return execute(os.Args[1:])
}

func execute(args []string) error {
	verbosity = 0

	// Handle global flags
	var filteredArgs []string
	for _, arg := range args {
		switch arg {
		case "-h", "--help", "help":
			if len(filteredArgs) == 0 {
				printHelp(rootCmd)
				return nil
			}
			filteredArgs = append(filteredArgs, arg)
		case "--version":
			if len(filteredArgs) == 0 {
				printVersion()
				return nil
			}
			filteredArgs = append(filteredArgs, arg)
		case "-v", "--verbose":
			verbosity++
		case "-vv":
			verbosity += 2
		default:
			filteredArgs = append(filteredArgs, arg)
		}
	}
	args = filteredArgs

	if len(args) == 0 {
		printHelp(rootCmd)
		return nil
	}

	permiterrors.SetHandler(&permiterrors.LogHandler{Verbose: verbosity > 0, Out: stderr})

	// Find and execute the command
	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", cmdName)
		printHelp(rootCmd)
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	// Check for help flag on subcommand
	cmdArgs := args[1:]
	for _, arg := range cmdArgs {
		if arg == "-h" || arg == "--help" || arg == "help" {
			printCommandHelp(cmd)
			return nil
		}
	}

	return cmd.Run(cmdArgs)
}

// newLogger returns a logger writing key/value lines to stderr. A single -v
// enables engine logs at V(0); each further -v raises the verbosity by one.
func newLogger() logr.Logger {
	if verbosity == 0 {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(stderr, args)
	}, funcr.Options{Verbosity: verbosity - 1})
}

func printVersion() {
	fmt.Fprintf(stdout, "permit version %s (built %s)\n", Version, BuildTime)
}

func printHelp(cmd *Command) {
	w := stdout
	fmt.Fprintln(w, cmd.Long)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s\n", cmd.Usage)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, sub := range cmd.SubCommands {
		fmt.Fprintf(w, "  %-14s %s\n", sub.Name, sub.Short)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -h, --help           Show help for a command")
	fmt.Fprintln(w, "  -v, --verbose        Log engine activity to stderr (repeat for more)")
	fmt.Fprintln(w, "  --version            Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Project configuration:")
	fmt.Fprintln(w, "  permit.yaml next to go.mod sets app.id, platform.version,")
	fmt.Fprintln(w, "  platform.tokenCeiling and the catalog path.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  permit plan --version v13 android.permission.CAMERA")
	fmt.Fprintln(w, "  permit simulate --grant android.permission.CAMERA android.permission.CAMERA")
	fmt.Fprintln(w, "  permit check catalog.yaml")
}

func printCommandHelp(cmd *Command) {
	fmt.Fprintln(stdout, cmd.Long)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Usage:")
	fmt.Fprintf(stdout, "  %s\n", cmd.Usage)
}

// splitList parses a comma separated flag value, dropping empty items.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
