// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Inspect and create the configuration file.
//
// Command: config
// Subcommands:
//   show       Print the effective configuration
//   path       Print the config and session store locations
//   init       Write a default config file

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/crcafe-cli/internal/config"
)

func (r *runner) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Inspect and create the configuration",
		Annotations: map[string]string{annotationNoApp: "true"},
	}
	cmd.AddCommand(r.newConfigShowCommand(), r.newConfigPathCommand(), r.newConfigInitCommand())
	return cmd
}

func (r *runner) configPath() (string, error) {
	if r.opts.configPath != "" {
		return r.opts.configPath, nil
	}
	return config.ConfigPathTOML()
}

func (r *runner) newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.out.emit(r.cfg, func(w io.Writer) {
				fmt.Fprintln(w, r.cfg.String())
			})
		},
	}
}

// pathsView is the config path payload.
type pathsView struct {
	Config  string `json:"config"`
	Store   string `json:"store"`
	Backend string `json:"backend"`
}

func (r *runner) newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config and session store locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := r.configPath()
			if err != nil {
				return &ConfigError{Err: err}
			}
			storePath, err := r.cfg.StorePath()
			if err != nil {
				return &ConfigError{Err: err}
			}
			view := pathsView{Config: cfgPath, Store: storePath, Backend: r.cfg.Storage.Backend}
			return r.out.emit(view, func(w io.Writer) {
				st := r.out.st
				fmt.Fprintln(w, st.field("Config", view.Config))
				fmt.Fprintln(w, st.field("Session store", fmt.Sprintf("%s (%s)", view.Store, view.Backend)))
			})
		},
	}
}

func (r *runner) newConfigInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := r.configPath()
			if err != nil {
				return &ConfigError{Err: err}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return &UsageError{Field: "config", Value: path, Reason: "already exists (use --force to overwrite)"}
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return &ConfigError{Err: err}
			}
			if err := config.Save(config.Default(), path); err != nil {
				return &ConfigError{Err: err}
			}
			return r.out.emit(map[string]string{"path": path}, func(w io.Writer) {
				r.out.success("Wrote %s", path)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
