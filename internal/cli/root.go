// Package cli implements the taskflow command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/taskflow/internal/credential"
	"github.com/nhle/taskflow/internal/exitcode"
	"github.com/nhle/taskflow/internal/session"
)

// VaultOpener opens the cookie vault rooted at dir.
type VaultOpener func(dir string) (session.CookieVault, error)

// Options carries the process environment into the command tree.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// OpenVault defaults to the OS keyring.
	OpenVault VaultOpener

	// Interactive enables huh prompts for missing input.
	Interactive bool

	Version string
}

func (o *Options) defaults() {
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.OpenVault == nil {
		o.OpenVault = func(dir string) (session.CookieVault, error) {
			v, err := credential.Open(dir)
			if err != nil {
				return nil, err
			}
			return v, nil
		}
	}
	if o.Version == "" {
		o.Version = "dev"
	}
}

// Run executes the command line and returns the process exit code.
func Run(ctx context.Context, args []string, opts Options) int {
	opts.defaults()

	rt := &runtime{opts: &opts}
	defer rt.close()

	root := newRootCmd(rt)
	root.SetArgs(args)
	root.SetIn(opts.Stdin)
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(opts.Stderr, "error:", err)
		return exitcode.FromError(err)
	}
	return exitcode.Success
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "taskflow",
		Short: "TaskFlow - task management from the terminal",
		Long: `taskflow talks to a TaskFlow backend: sign in, manage tasks and users,
and receive live task-assignment notifications.`,
		Version:       rt.opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if rt.verbose {
				log.SetOutput(rt.opts.Stderr)
				log.SetFlags(log.Ltime | log.Lmicroseconds)
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}

	// Global flags
	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "config file (default ~/.config/taskflow/config.yaml)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		loginCmd(rt),
		logoutCmd(rt),
		whoamiCmd(rt),
		dashboardCmd(rt),
		tasksCmd(rt),
		usersCmd(rt),
		listenCmd(rt),
		watchCmd(rt),
		configCmd(rt),
	)
	return root
}
