// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// items_cmd.go - Menu item management.
//
// Command: items
// Subcommands:
//   list                          Show the menu
//   add NAME PRICE                Add an item
//   remove ID                     Delete an item
//   price ID PRICE                Change an item's price
//   availability ID on|off        Mark an item available or sold out

package cli

import (
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/crcafe-cli/internal/pos"
)

func (r *runner) newItemsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"menu"},
		Short:   "Manage menu items",
	}
	cmd.AddCommand(
		r.newItemsListCommand(),
		r.newItemsAddCommand(),
		r.newItemsRemoveCommand(),
		r.newItemsPriceCommand(),
		r.newItemsAvailabilityCommand(),
	)
	return cmd
}

func (r *runner) newItemsListCommand() *cobra.Command {
	var (
		category  string
		available bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := r.app.requireSession(); err != nil {
				return err
			}
			items, err := r.app.pos.ListItems(cmd.Context())
			if err != nil {
				return err
			}
			items = filterItems(items, category, available)

			return r.out.emit(items, func(w io.Writer) {
				t := newTable("ID", "NAME", "CATEGORY", "PRICE", "STATUS").alignRight(0, 3)
				for _, it := range items {
					status := "available"
					if !it.Available {
						status = "sold out"
					}
					t.add(strconv.FormatInt(it.ID, 10), it.Name, it.Category, r.out.money.format(it.Price), status)
				}
				t.render(w, r.out.st)
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "only show this category")
	cmd.Flags().BoolVar(&available, "available", false, "only show available items")
	return cmd
}

func filterItems(items []pos.Item, category string, availableOnly bool) []pos.Item {
	if category == "" && !availableOnly {
		return items
	}
	out := make([]pos.Item, 0, len(items))
	for _, it := range items {
		if category != "" && !strings.EqualFold(it.Category, category) {
			continue
		}
		if availableOnly && !it.Available {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (r *runner) newItemsAddCommand() *cobra.Command {
	var (
		category string
		imageURL string
	)
	cmd := &cobra.Command{
		Use:   "add NAME PRICE",
		Short: "Add a menu item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := parsePrice(args[1])
			if err != nil {
				return err
			}
			if _, err := r.app.requireSession(); err != nil {
				return err
			}
			item, err := r.app.pos.CreateItem(cmd.Context(), pos.NewItem{
				Name:     normalizeInput(args[0]),
				Price:    price,
				Category: normalizeInput(category),
				ImageURL: imageURL,
			})
			if err != nil {
				return err
			}
			return r.out.emit(item, func(w io.Writer) {
				r.out.success("Added %s (#%d) at %s", item.Name, item.ID, r.out.money.format(item.Price))
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "item category")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "image URL")
	return cmd
}

func (r *runner) newItemsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID",
		Aliases: []string{"rm"},
		Short:   "Delete a menu item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("item id", args[0])
			if err != nil {
				return err
			}
			if _, err := r.app.requireSession(); err != nil {
				return err
			}
			if err := r.app.pos.DeleteItem(cmd.Context(), id); err != nil {
				return err
			}
			return r.out.emit(map[string]int64{"deleted": id}, func(w io.Writer) {
				r.out.success("Removed item #%d", id)
			})
		},
	}
}

func (r *runner) newItemsPriceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "price ID PRICE",
		Short: "Change an item's price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("item id", args[0])
			if err != nil {
				return err
			}
			price, err := parsePrice(args[1])
			if err != nil {
				return err
			}
			if _, err := r.app.requireSession(); err != nil {
				return err
			}
			item, err := r.app.pos.UpdateItemPrice(cmd.Context(), id, price)
			if err != nil {
				return err
			}
			return r.out.emit(item, func(w io.Writer) {
				r.out.success("%s now costs %s", item.Name, r.out.money.format(item.Price))
			})
		},
	}
}

func (r *runner) newItemsAvailabilityCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "availability ID on|off",
		Short:     "Mark an item available or sold out",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("item id", args[0])
			if err != nil {
				return err
			}
			available, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			if _, err := r.app.requireSession(); err != nil {
				return err
			}
			item, err := r.app.pos.SetItemAvailability(cmd.Context(), id, available)
			if err != nil {
				return err
			}
			return r.out.emit(item, func(w io.Writer) {
				state := "available"
				if !item.Available {
					state = "sold out"
				}
				r.out.success("%s is now %s", item.Name, state)
			})
		},
	}
}

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

func parseID(field, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &UsageError{Field: field, Value: s, Reason: "must be a positive number"}
	}
	return id, nil
}

func parsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0, &UsageError{Field: "price", Value: s, Reason: "must be a non-negative number", Example: "45.50"}
	}
	return v, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "true", "available":
		return true, nil
	case "off", "no", "false", "soldout", "sold-out":
		return false, nil
	}
	return false, &UsageError{Field: "availability", Value: s, Reason: "must be on or off"}
}
