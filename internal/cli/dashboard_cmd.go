// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// dashboard_cmd.go - Owner dashboard figures.
//
// Command: dashboard
// Subcommands:
//   summary                        Headline revenue and order figures
//   top-items                      Best selling items
//   revenue [--range day|week|month]
//   transactions [--page N --size N --cashier NAME ...]
//   cashiers                       Users that have handled bills
//   performance [--range ...]      Orders per user
//   payment-modes                  Today's revenue by payment mode

package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/crcafe-cli/internal/pos"
)

func (r *runner) newDashboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"dash"},
		Short:   "Review sales figures",
	}
	cmd.AddCommand(
		r.newDashSummaryCommand(),
		r.newDashTopItemsCommand(),
		r.newDashRevenueCommand(),
		r.newDashTransactionsCommand(),
		r.newDashCashiersCommand(),
		r.newDashPerformanceCommand(),
		r.newDashPaymentModesCommand(),
	)
	return cmd
}

// authed wraps a RunE so it fails with session.ErrNotLoggedIn before any
// request is made.
func (r *runner) authed(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if _, err := r.app.requireSession(); err != nil {
			return err
		}
		return fn(cmd, args)
	}
}

func (r *runner) newDashSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Headline revenue and order figures",
		Args:  cobra.NoArgs,
		RunE: r.authed(func(cmd *cobra.Command, args []string) error {
			sum, err := r.app.pos.Summary(cmd.Context())
			if err != nil {
				return err
			}
			return r.out.emit(sum, func(w io.Writer) {
				st, m := r.out.st, r.out.money
				fmt.Fprintln(w, st.Title.Render("Dashboard"))
				fmt.Fprintln(w, st.Section.Render("Today"))
				fmt.Fprintln(w, st.field("Revenue", m.format(sum.TodaysRevenue)))
				fmt.Fprintln(w, st.field("Orders", strconv.Itoa(sum.TodaysOrders)))
				fmt.Fprintln(w, st.Section.Render("All time"))
				fmt.Fprintln(w, st.field("Revenue", m.format(sum.TotalRevenue)))
				fmt.Fprintln(w, st.field("Orders", strconv.Itoa(sum.TotalOrders)))
				fmt.Fprintln(w, st.field("Average bill", m.format(sum.AverageBill)))
				fmt.Fprintln(w, st.field("Discounts", m.format(sum.TotalDiscounts)))
			})
		}),
	}
}

func (r *runner) newDashTopItemsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "top-items",
		Short: "Best selling items",
		Args:  cobra.NoArgs,
		RunE: r.authed(func(cmd *cobra.Command, args []string) error {
			items, err := r.app.pos.TopItems(cmd.Context())
			if err != nil {
				return err
			}
			return r.out.emit(items, func(w io.Writer) {
				t := newTable("ITEM", "SOLD").alignRight(1)
				for _, it := range items {
					t.add(it.Name, strconv.Itoa(it.Sales))
				}
				t.render(w, r.out.st)
			})
		}),
	}
}

func rangeFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "range", "r", string(pos.RangeDay), "day, week or month")
}

func parseRangeArg(s string) (pos.Range, error) {
	rg, err := pos.ParseRange(s)
	if err != nil {
		return "", &UsageError{Field: "range", Value: s, Reason: "must be day, week or month"}
	}
	return rg, nil
}

func (r *runner) newDashRevenueCommand() *cobra.Command {
	var rangeArg string
	cmd := &cobra.Command{
		Use:   "revenue",
		Short: "Revenue over a range",
		Args:  cobra.NoArgs,
		RunE: r.authed(func(cmd *cobra.Command, args []string) error {
			rg, err := parseRangeArg(rangeArg)
			if err != nil {
				return err
			}
			points, err := r.app.pos.Revenue(cmd.Context(), rg)
			if err != nil {
				return err
			}
			return r.out.emit(points, func(w io.Writer) {
				t := newTable("PERIOD", "ORDERS", "REVENUE").alignRight(1, 2)
				for _, p := range points {
					t.add(p.Label, strconv.Itoa(p.Orders), r.out.money.format(p.Revenue))
				}
				t.render(w, r.out.st)
			})
		}),
	}
	rangeFlag(cmd, &rangeArg)
	return cmd
}

func (r *runner) newDashTransactionsCommand() *cobra.Command {
	var (
		f       pos.TransactionFilter
		payment string
		recent  bool
	)
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Recent bills",
		Args:  cobra.NoArgs,
		RunE: r.authed(func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if recent {
				txs, err := r.app.pos.RecentTransactions(ctx)
				if err != nil {
					return err
				}
				return r.out.emit(txs, func(w io.Writer) { r.printTransactions(w, txs) })
			}

			if payment != "" {
				mode, err := pos.ParsePaymentMode(payment)
				if err != nil {
					return &UsageError{Field: "payment", Value: payment, Reason: "must be cash or online"}
				}
				f.PaymentMode = mode
			}

			var (
				page pos.TransactionPage
				err  error
			)
			if filtered(f) {
				page, err = r.app.pos.FilteredTransactions(ctx, f)
			} else {
				page, err = r.app.pos.RecentTransactionsPage(ctx, f.Page, f.Size)
			}
			if err != nil {
				return err
			}
			return r.out.emit(page, func(w io.Writer) {
				r.printTransactions(w, page.Transactions)
				fmt.Fprintln(w, r.out.st.Dim.Render(fmt.Sprintf("page %d of %d (%d bills)",
					page.CurrentPage+1, max(page.TotalPages, 1), page.TotalItems)))
			})
		}),
	}
	flags := cmd.Flags()
	flags.BoolVar(&recent, "recent", false, "latest bills without paging")
	flags.IntVar(&f.Page, "page", 0, "page number, from 0")
	flags.IntVar(&f.Size, "size", 10, "page size")
	flags.StringVar(&f.Cashier, "cashier", "", "only bills handled by this user")
	flags.Float64Var(&f.MinValue, "min", 0, "minimum bill amount")
	flags.Float64Var(&f.MaxValue, "max", 0, "maximum bill amount")
	flags.StringVar(&f.StartDate, "from", "", "start date (YYYY-MM-DD)")
	flags.StringVar(&f.EndDate, "to", "", "end date (YYYY-MM-DD)")
	flags.StringVar(&payment, "payment", "", "cash or online")
	return cmd
}

func filtered(f pos.TransactionFilter) bool {
	return f.Cashier != "" || f.MinValue > 0 || f.MaxValue > 0 ||
		f.StartDate != "" || f.EndDate != "" || f.PaymentMode != ""
}

func (r *runner) printTransactions(w io.Writer, txs []pos.Transaction) {
	t := newTable("RECEIPT", "ORDER", "CASHIER", "DATE", "AMOUNT").alignRight(1, 4)
	for _, tx := range txs {
		t.add(string(tx.ReceiptID), string(tx.OrderID), tx.HandledBy, string(tx.Date), r.out.money.format(tx.FinalAmount))
	}
	t.render(w, r.out.st)
}

func (r *runner) newDashCashiersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cashiers",
		Short: "Users that have handled bills",
		Args:  cobra.NoArgs,
		RunE: r.authed(func(cmd *cobra.Command, args []string) error {
			names, err := r.app.pos.Cashiers(cmd.Context())
			if err != nil {
				return err
			}
			return r.out.emit(names, func(w io.Writer) {
				for _, n := range names {
					fmt.Fprintln(w, n)
				}
			})
		}),
	}
}

func (r *runner) newDashPerformanceCommand() *cobra.Command {
	var rangeArg string
	cmd := &cobra.Command{
		Use:   "performance",
		Short: "Orders handled per user",
		Args:  cobra.NoArgs,
		RunE: r.authed(func(cmd *cobra.Command, args []string) error {
			rg, err := parseRangeArg(rangeArg)
			if err != nil {
				return err
			}
			perf, err := r.app.pos.UsersPerformance(cmd.Context(), rg)
			if err != nil {
				return err
			}
			return r.out.emit(perf, func(w io.Writer) {
				t := newTable("USER", "ORDERS").alignRight(1)
				for _, p := range perf {
					t.add(p.Username, strconv.Itoa(p.Orders))
				}
				t.render(w, r.out.st)
			})
		}),
	}
	rangeFlag(cmd, &rangeArg)
	return cmd
}

func (r *runner) newDashPaymentModesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "payment-modes",
		Short: "Today's revenue by payment mode",
		Args:  cobra.NoArgs,
		RunE: r.authed(func(cmd *cobra.Command, args []string) error {
			byMode, err := r.app.pos.TodaysRevenueByPaymentMode(cmd.Context())
			if err != nil {
				return err
			}
			return r.out.emit(byMode, func(w io.Writer) {
				modes := make([]string, 0, len(byMode))
				for m := range byMode {
					modes = append(modes, string(m))
				}
				sort.Strings(modes)
				t := newTable("MODE", "REVENUE").alignRight(1)
				for _, m := range modes {
					amount := byMode[pos.PaymentMode(m)]
					if v, err := strconv.ParseFloat(amount, 64); err == nil {
						amount = r.out.money.format(v)
					}
					t.add(m, amount)
				}
				t.render(w, r.out.st)
			})
		}),
	}
}
