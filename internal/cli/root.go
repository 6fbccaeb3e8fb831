// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// root.go - Root command, global flags and command execution.

package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/crcafe-cli/internal/config"
	"github.com/jeranaias/crcafe-cli/internal/session"
)

// Version is set at build time.
var Version = "dev"

// annotationNoApp marks commands that run without a session (config,
// version).
const annotationNoApp = "crcafe/no-app"

// annotationNoActivity marks commands that must not count as user
// activity (logout).
const annotationNoActivity = "crcafe/no-activity"

// globalOptions are the persistent flags.
type globalOptions struct {
	configPath string
	jsonOutput bool
	noColor    bool
	logLevel   string
}

// runner carries state shared by every command of one invocation.
type runner struct {
	opts globalOptions
	cfg  *config.Config
	app  *App
	out  *output

	// shared is set inside the shell so nested commands reuse its App.
	shared *App
}

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute(ctx context.Context) int {
	return run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, in io.Reader, stdout, stderr io.Writer) int {
	r := &runner{}
	root := r.newRootCommand()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(stdout)
	root.SetErr(stderr)

	cmd, err := root.ExecuteContextC(ctx)
	if cerr := r.teardown(); err == nil {
		err = cerr
	}
	if err == nil {
		return ExitSuccess
	}

	out := r.out
	if out == nil {
		out = newOutput(stdout, stderr, r.opts.jsonOutput, !r.opts.noColor, "")
	}
	if cmd != nil {
		out.command = cmd.CommandPath()
	}
	out.failure(err)
	return ExitCode(err)
}

func (r *runner) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "crcafe",
		Short:         "CR Cafe point-of-sale client",
		Long:          "crcafe talks to the CR Cafe backend: take orders, print bills and review the day's takings.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return r.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return r.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&r.opts.configPath, "config", "", "config file (default is $HOME/.crcafe/config.toml)")
	flags.BoolVar(&r.opts.jsonOutput, "json", false, "output JSON")
	flags.BoolVar(&r.opts.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&r.opts.logLevel, "log-level", "", "diagnostic log level (debug, info, warn, error)")

	root.AddCommand(
		r.newAuthCommand(),
		r.newItemsCommand(),
		r.newOrderCommand(),
		r.newDashboardCommand(),
		r.newUsersCommand(),
		r.newConfigCommand(),
		r.newShellCommand(),
	)
	return root
}

// setup loads configuration and, unless the command opts out, builds the
// App.
func (r *runner) setup(cmd *cobra.Command) error {
	if r.shared != nil {
		r.app = r.shared
		r.cfg = r.shared.cfg
		r.out = r.shared.out
		r.out.command = cmd.CommandPath()
		return nil
	}

	if err := config.LoadDotEnv(); err != nil {
		return &ConfigError{Err: err}
	}
	cfg, err := config.Load(r.opts.configPath)
	if err != nil {
		return &ConfigError{Err: err}
	}
	if r.opts.logLevel != "" {
		cfg.Log.Level = r.opts.logLevel
	}
	if r.opts.noColor {
		cfg.UI.Color = false
	}
	r.cfg = cfg
	r.out = newOutput(cmd.OutOrStdout(), cmd.ErrOrStderr(), r.opts.jsonOutput, cfg.UI.Color, cfg.UI.Currency)
	r.out.command = cmd.CommandPath()

	if skipApp(cmd) {
		return nil
	}
	app, err := newApp(cmd.Context(), cfg, r.out)
	if err != nil {
		return err
	}
	r.app = app

	// A command is the CLI's key press. Init has already enforced the idle
	// timeout, so an expired session is not revived here.
	if !hasAnnotation(cmd, annotationNoActivity) {
		app.session.RecordActivity(session.ActivityKey)
	}
	return nil
}

func (r *runner) teardown() error {
	if r.app == nil || r.app == r.shared {
		return nil
	}
	err := r.app.Close()
	r.app = nil
	return err
}

func skipApp(cmd *cobra.Command) bool {
	return hasAnnotation(cmd, annotationNoApp)
}

// hasAnnotation reports whether cmd or any of its parents carries key.
func hasAnnotation(cmd *cobra.Command, key string) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[key]; ok {
			return true
		}
	}
	return false
}
