// Package main provides the problemctl CLI entrypoint.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// osExit is a variable for testing; defaults to os.Exit.
var osExit = os.Exit

// stdout is the default output writer.
var stdout io.Writer = os.Stdout

// stderr is the default error writer.
var stderr io.Writer = os.Stderr

// errCommandFailed signals a failure whose result was already written.
var errCommandFailed = errors.New("command failed")

func main() {
	exitCode := runApp(os.Args[1:])
	osExit(exitCode)
}

func runApp(args []string) int {
	provider := &AppProvider{Out: stdout, Err: stderr}
	defer provider.Close()

	root := newRootCmd(provider)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errCommandFailed) {
			fmt.Fprintf(stderr, "Error: %s\n", err.Error())
		}
		return 1
	}
	return 0
}

func newRootCmd(provider *AppProvider) *cobra.Command {
	root := &cobra.Command{
		Use:   "problemctl",
		Short: "Problem lifecycle and authorization tool",
		Long: `problemctl tracks problems through open, in-progress, ready-for-review
and closed. Every mutation is checked against the actor's role and applied
atomically against the stored record.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			provider.Flags = cmd.Flags()
		},
	}

	root.SetVersionTemplate("problemctl version {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.String("workspace", "", "Override workspace root path")
	flags.String("db", "", "Override database path")
	flags.String("config", "", "Config file (default <workspace>/.problems/config.yaml)")
	flags.String("actor", "", "Acting user id (or PROBLEMCTL_ACTOR)")
	flags.StringP("output", "o", "json", "Output format: json, yaml or human")
	flags.Bool("pretty", false, "Pretty-print JSON output")
	flags.Int("timeout-ms", 3000, "Database busy timeout in milliseconds")
	flags.String("log-level", "error", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(provider),
		newUserCmd(provider),
		newAddCmd(provider),
		newClaimCmd(provider),
		newShowCmd(provider),
		newCallCmd(provider),
		newNotificationsCmd(provider),
		newVersionCmd(),
	)
	return root
}
