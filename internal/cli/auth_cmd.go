// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Login, logout and session status.
//
// Command: auth
// Subcommands:
//   login     Sign in and persist the session
//   logout    End the session locally and on the server
//   status    Show who is signed in and when the session will idle out
//
// Examples:
//   crcafe auth login -u asha
//   echo "$PW" | crcafe auth login -u asha --password-stdin
//   crcafe auth status --json

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/crcafe-cli/internal/session"
)

func (r *runner) newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in and out of the CR Cafe backend",
	}
	cmd.AddCommand(r.newLoginCommand(), r.newLogoutCommand(), r.newStatusCommand())
	return cmd
}

// =============================================================================
// LOGIN
// =============================================================================

func (r *runner) newLoginCommand() *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())

			var err error
			if username == "" {
				if username, err = p.Line("Username: "); err != nil {
					return err
				}
			}
			username = normalizeInput(username)
			if username == "" {
				return &UsageError{Field: "username", Reason: "must not be empty", Example: "crcafe auth login -u asha"}
			}

			var password string
			if passwordStdin {
				password, err = p.Line("")
			} else {
				password, err = p.Secret("Password: ")
			}
			if err != nil {
				return err
			}

			return r.login(cmd, username, password)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func (r *runner) login(cmd *cobra.Command, username, password string) error {
	app := r.app
	if err := app.session.Login(cmd.Context(), username, password); err != nil {
		return err
	}
	sess, err := app.requireSession()
	if err != nil {
		return err
	}
	return r.out.emit(identityView(sess), func(w io.Writer) {
		st := r.out.st
		fmt.Fprintf(w, "%s %s (%s)\n", st.Success.Render("Logged in as"), sess.Identity.Username, sess.Identity.Role)
	})
}

// =============================================================================
// LOGOUT
// =============================================================================

func (r *runner) newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "Sign out and clear the saved session",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoActivity: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			app := r.app
			_, loggedIn := app.session.Current()
			app.session.Logout(cmd.Context(), !r.out.json)
			return r.out.emit(map[string]bool{"loggedOut": loggedIn}, func(w io.Writer) {
				if !loggedIn {
					r.out.notice("Not logged in.")
				}
			})
		},
	}
}

// =============================================================================
// STATUS
// =============================================================================

// statusView is the auth status payload.
type statusView struct {
	LoggedIn      bool          `json:"loggedIn"`
	User          *identityJSON `json:"user,omitempty"`
	LastActive    string        `json:"lastActive,omitempty"`
	IdleRemaining string        `json:"idleRemaining,omitempty"`
	TokenExpires  string        `json:"tokenExpires,omitempty"`
	Server        string        `json:"server"`
}

type identityJSON struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Role            string `json:"role"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

func identityView(s session.Session) identityJSON {
	return identityJSON{
		ID:              s.Identity.ID,
		Username:        s.Identity.Username,
		Role:            string(s.Identity.Role),
		ProfileImageURL: s.Identity.ProfileImageURL,
	}
}

func (r *runner) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"whoami"},
		Short:   "Show the current session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := r.app
			view := statusView{Server: app.client.BaseURL()}

			sess, ok := app.session.Current()
			if ok {
				id := identityView(sess)
				view.LoggedIn = true
				view.User = &id
				view.LastActive = time.UnixMilli(sess.LastActive).Format(time.RFC3339)
				view.IdleRemaining = app.session.IdleRemaining().Round(time.Second).String()
				if info, err := session.InspectToken(sess.Token); err == nil && info.HasExpiry() {
					view.TokenExpires = info.ExpiresAt.Format(time.RFC3339)
				}
			}

			return r.out.emit(view, func(w io.Writer) {
				st := r.out.st
				fmt.Fprintln(w, st.Title.Render("CR Cafe Session"))
				fmt.Fprintln(w, st.separator(40))
				fmt.Fprintln(w, st.field("Server", view.Server))
				if !view.LoggedIn {
					fmt.Fprintln(w, st.field("Status", st.status("logged out")))
					return
				}
				fmt.Fprintln(w, st.field("Status", st.status("ok")))
				fmt.Fprintln(w, st.field("User", fmt.Sprintf("%s (%s)", view.User.Username, view.User.Role)))
				fmt.Fprintln(w, st.field("Last active", view.LastActive))
				fmt.Fprintln(w, st.field("Idle logout in", view.IdleRemaining))
				if view.TokenExpires != "" {
					fmt.Fprintln(w, st.field("Token expires", view.TokenExpires))
				}
			})
		},
	}
}
