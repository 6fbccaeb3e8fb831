// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// users_cmd.go - Staff accounts.
//
// Command: users
// Subcommands:
//   list                            Show all users
//   add USERNAME --role ROLE        Create a user (password is prompted)

package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/crcafe-cli/internal/pos"
	"github.com/jeranaias/crcafe-cli/internal/session"
)

func (r *runner) newUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage staff accounts",
	}
	cmd.AddCommand(r.newUsersListCommand(), r.newUsersAddCommand())
	return cmd
}

func (r *runner) newUsersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all users",
		Args:  cobra.NoArgs,
		RunE: r.authed(func(cmd *cobra.Command, args []string) error {
			users, err := r.app.pos.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return r.out.emit(users, func(w io.Writer) {
				t := newTable("ID", "USERNAME", "ROLE").alignRight(0)
				for _, u := range users {
					role := u.Role
					if parsed, err := session.ParseRole(u.Role); err == nil {
						role = string(parsed)
					}
					t.add(strconv.FormatInt(u.ID, 10), u.Username, role)
				}
				t.render(w, r.out.st)
			})
		}),
	}
}

func (r *runner) newUsersAddCommand() *cobra.Command {
	var (
		role          string
		imageURL      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: r.authed(func(cmd *cobra.Command, args []string) error {
			parsed, err := session.ParseRole(role)
			if err != nil {
				return &UsageError{Field: "role", Value: role, Reason: "must be OWNER, MANAGER or WORKER"}
			}

			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			var password string
			if passwordStdin {
				password, err = p.Line("")
			} else {
				password, err = p.Secret("Password for new user: ")
			}
			if err != nil {
				return err
			}

			user, err := r.app.pos.CreateUser(cmd.Context(), pos.NewUser{
				Username:        normalizeInput(args[0]),
				Password:        password,
				Role:            string(parsed),
				ProfileImageURL: imageURL,
			})
			if err != nil {
				return err
			}
			return r.out.emit(user, func(w io.Writer) {
				r.out.success("Created %s (#%d, %s)", user.Username, user.ID, user.Role)
			})
		}),
	}
	cmd.Flags().StringVar(&role, "role", string(session.RoleWorker), "OWNER, MANAGER or WORKER")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "profile image URL")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}
