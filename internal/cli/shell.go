// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// shell.go - Interactive till session.
//
// Command: shell
// Short:   Start an interactive session
//
// Every command available on the command line can be typed at the prompt
// without the leading "crcafe". Each line counts as activity for the idle
// logout; changes made by other crcafe processes (login, logout, token
// refresh) are picked up as they happen.
//
// Interactive Commands:
//   help              Show available commands
//   exit, quit        Leave the shell
//   Ctrl+D            Leave the shell

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/common-nighthawk/go-figure"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/crcafe-cli/internal/config"
	"github.com/jeranaias/crcafe-cli/internal/session"
	"github.com/jeranaias/crcafe-cli/internal/storage"
)

// lineReader reads one command line at a time.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// =============================================================================
// LINE READERS
// =============================================================================

// linerReader is a line editor with persistent history.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	lr := &linerReader{line: line, historyFile: filepath.Join(dir, "shell_history")}
	if f, err := os.Open(lr.historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return lr
}

func (l *linerReader) Prompt(prompt string) (string, error) {
	input, err := l.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		l.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the
// terminal.
func (l *linerReader) Close() error {
	if err := os.MkdirAll(filepath.Dir(l.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(l.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			l.line.WriteHistory(f)
			f.Close()
		}
	}
	return l.line.Close()
}

// scanReader reads lines from a non-terminal input such as a pipe.
type scanReader struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (s *scanReader) Prompt(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	if !s.sc.Scan() {
		if err := s.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.sc.Text(), nil
}

func (s *scanReader) Close() error { return nil }

// =============================================================================
// SHELL COMMAND
// =============================================================================

func (r *runner) newShellCommand() *cobra.Command {
	var noBanner bool
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if r.shared != nil {
				return &UsageError{Field: "command", Value: "shell", Reason: "already in a shell"}
			}

			var reader lineReader
			if isTerminal(cmd.InOrStdin()) {
				reader = newLinerReader()
			} else {
				reader = &scanReader{sc: bufio.NewScanner(cmd.InOrStdin()), out: cmd.OutOrStdout()}
			}
			defer reader.Close()

			if !noBanner && !r.out.json {
				fmt.Fprintln(cmd.OutOrStdout(), r.out.st.Title.Render(figure.NewFigure("CR Cafe", "small", true).String()))
			}
			return r.runShell(cmd, reader)
		},
	}
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "skip the banner")
	return cmd
}

// runShell is the read-eval loop.
func (r *runner) runShell(cmd *cobra.Command, reader lineReader) error {
	app := r.app
	ctx, cancel := context.WithCancel(cmd.Context())
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	if app.cfg.Storage.Backend != storage.BackendMemory {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := storage.Watch(ctx, app.storePath, storage.DefaultWatchDebounce, app.log, func() {
				if err := app.session.Sync(); err != nil {
					app.log.Warn().Err(err).Msg("failed to sync session from store")
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				app.log.Warn().Err(err).Msg("store watch stopped")
			}
		}()
	}

	var (
		mu   sync.Mutex
		user string
	)
	setUser := func(st session.State) {
		mu.Lock()
		defer mu.Unlock()
		user = ""
		if st.Session != nil {
			user = st.Session.Identity.Username
		}
	}
	setUser(app.session.State())
	unsubscribe := app.session.Subscribe(setUser)
	defer unsubscribe()

	prompt := func() string {
		mu.Lock()
		defer mu.Unlock()
		if user == "" {
			return "crcafe> "
		}
		return "crcafe(" + user + ")> "
	}

	defer app.session.RecordActivity(session.ActivityUnload)

	for {
		input, err := reader.Prompt(prompt())
		if err != nil {
			// Ctrl+C, Ctrl+D and EOF all leave the shell.
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		}
		app.session.RecordActivity(session.ActivityKey)

		input = strings.TrimSpace(input)
		switch input {
		case "":
			continue
		case "exit", "quit", "q":
			return nil
		}

		args, err := splitArgs(input)
		if err != nil {
			app.out.failure(&UsageError{Field: "input", Value: input, Reason: err.Error()})
			continue
		}
		if args[0] == "crcafe" {
			args = args[1:]
		}

		sub := &runner{opts: r.opts, shared: app}
		root := sub.newRootCommand()
		root.SetArgs(args)
		root.SetIn(cmd.InOrStdin())
		root.SetOut(cmd.OutOrStdout())
		root.SetErr(cmd.ErrOrStderr())
		if err := root.ExecuteContext(ctx); err != nil {
			app.out.failure(err)
		}
	}
}

// splitArgs splits a command line on whitespace, honouring single and double
// quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		quote rune
		inArg bool
	)
	for _, c := range line {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
				continue
			}
			cur.WriteRune(c)
		case c == '"' || c == '\'':
			quote = c
			inArg = true
		case c == ' ' || c == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(c)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}
