// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// orders_cmd.go - Taking orders and printing bills.
//
// Command: order
// Subcommands:
//   create ITEM_ID[:QTY]...       Place an order for the signed-in user
//   bill ORDER_ID                 Generate the bill for an order
//   count                         Orders placed today
//
// Examples:
//   crcafe order create 1:2 4
//   crcafe order bill 42 --payment online --discount 3

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/crcafe-cli/internal/pos"
)

func (r *runner) newOrderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "order",
		Aliases: []string{"orders"},
		Short:   "Take orders and print bills",
	}
	cmd.AddCommand(r.newOrderCreateCommand(), r.newOrderBillCommand(), r.newOrderCountCommand())
	return cmd
}

func (r *runner) newOrderCreateCommand() *cobra.Command {
	var (
		customer string
		table    string
	)
	cmd := &cobra.Command{
		Use:   "create ITEM_ID[:QTY]...",
		Short: "Place an order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := parseOrderLines(args)
			if err != nil {
				return err
			}
			sess, err := r.app.requireSession()
			if err != nil {
				return err
			}
			userID, err := strconv.ParseInt(sess.Identity.ID, 10, 64)
			if err != nil {
				return fmt.Errorf("session user id %q is not numeric", sess.Identity.ID)
			}

			order, err := r.app.pos.CreateOrder(cmd.Context(), pos.OrderRequest{
				UserID:       userID,
				Items:        lines,
				CustomerName: normalizeInput(customer),
				Table:        table,
			})
			if err != nil {
				return err
			}
			return r.out.emit(order, func(w io.Writer) {
				r.printOrder(w, order)
			})
		},
	}
	cmd.Flags().StringVar(&customer, "customer", "", "customer name")
	cmd.Flags().StringVar(&table, "table", "", "table number")
	return cmd
}

// parseOrderLines parses "ID" or "ID:QTY" arguments. Repeated ids are merged.
func parseOrderLines(args []string) ([]pos.OrderLine, error) {
	var (
		lines []pos.OrderLine
		index = map[int64]int{}
	)
	for _, arg := range args {
		idPart, qtyPart, hasQty := strings.Cut(arg, ":")
		id, err := parseID("item id", idPart)
		if err != nil {
			return nil, err
		}
		qty := 1
		if hasQty {
			qty, err = strconv.Atoi(qtyPart)
			if err != nil || qty < 1 {
				return nil, &UsageError{Field: "quantity", Value: arg, Reason: "must be a positive number", Example: "3:2"}
			}
		}
		if i, ok := index[id]; ok {
			lines[i].Quantity += qty
			continue
		}
		index[id] = len(lines)
		lines = append(lines, pos.OrderLine{ItemID: id, Quantity: qty})
	}
	return lines, nil
}

func (r *runner) printOrder(w io.Writer, order pos.Order) {
	st := r.out.st
	fmt.Fprintln(w, st.Title.Render(fmt.Sprintf("Order #%d", order.ID)))
	t := newTable("ITEM", "QTY", "PRICE").alignRight(1, 2)
	for _, oi := range order.OrderItems {
		t.add(oi.Item.Name, strconv.Itoa(oi.Quantity), r.out.money.format(oi.Price))
	}
	t.render(w, st)
	fmt.Fprintln(w, st.separator(40))
	fmt.Fprintln(w, st.field("Total", r.out.money.format(order.TotalAmount)))
}

func (r *runner) newOrderBillCommand() *cobra.Command {
	var (
		discountID int64
		payment    string
	)
	cmd := &cobra.Command{
		Use:   "bill ORDER_ID",
		Short: "Generate the bill for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := parseID("order id", args[0])
			if err != nil {
				return err
			}
			mode, err := pos.ParsePaymentMode(payment)
			if err != nil {
				return &UsageError{Field: "payment", Value: payment, Reason: "must be cash or online"}
			}
			if _, err := r.app.requireSession(); err != nil {
				return err
			}

			bill, err := r.app.pos.GenerateBill(cmd.Context(), orderID, pos.BillOptions{
				DiscountID:  discountID,
				PaymentMode: mode,
			})
			if err != nil {
				return err
			}
			return r.out.emit(bill, func(w io.Writer) {
				st := r.out.st
				m := r.out.money
				fmt.Fprintln(w, st.Title.Render("Receipt "+bill.ReceiptID))
				fmt.Fprintln(w, st.field("Order", fmt.Sprintf("#%d", bill.Order.ID)))
				if !bill.BillDate.IsZero() {
					fmt.Fprintln(w, st.field("Date", bill.BillDate.Format("02 Jan 2006 15:04")))
				}
				fmt.Fprintln(w, st.field("Subtotal", m.format(bill.TotalAmount)))
				if bill.Discount > 0 {
					fmt.Fprintln(w, st.field("Discount", "-"+m.format(bill.Discount)))
				}
				fmt.Fprintln(w, st.field("Total", st.Highlight.Render(m.format(bill.FinalAmount))))
				fmt.Fprintln(w, st.field("Paid by", string(bill.PaymentMode)))
			})
		},
	}
	cmd.Flags().Int64Var(&discountID, "discount", 0, "discount id to apply")
	cmd.Flags().StringVar(&payment, "payment", string(pos.PaymentCash), "payment mode (cash, online)")
	return cmd
}

func (r *runner) newOrderCountCommand() *cobra.Command {
	var mine bool
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count today's orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := r.app.requireSession(); err != nil {
				return err
			}
			count := r.app.pos.TodaysOrderCount
			if mine {
				count = r.app.pos.MyTodaysOrderCount
			}
			n, err := count(cmd.Context())
			if err != nil {
				return err
			}
			return r.out.emit(map[string]int64{"count": n}, func(w io.Writer) {
				label := "Orders today"
				if mine {
					label = "My orders today"
				}
				fmt.Fprintln(w, r.out.st.field(label, strconv.FormatInt(n, 10)))
			})
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "only orders I placed")
	return cmd
}
