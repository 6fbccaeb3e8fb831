// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pos

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PaymentMode is how a bill was settled.
type PaymentMode string

// Payment modes accepted by the backend.
const (
	PaymentCash   PaymentMode = "CASH"
	PaymentOnline PaymentMode = "ONLINE"
)

// ParsePaymentMode accepts a payment mode in any case.
func ParsePaymentMode(s string) (PaymentMode, error) {
	switch m := PaymentMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case PaymentCash, PaymentOnline:
		return m, nil
	}
	return "", fmt.Errorf("unknown payment mode %q (want CASH or ONLINE)", s)
}

// Range is a dashboard aggregation window.
type Range string

// Dashboard ranges.
const (
	RangeDay   Range = "day"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

// ParseRange accepts day, week or month.
func ParseRange(s string) (Range, error) {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case RangeDay, RangeWeek, RangeMonth:
		return r, nil
	case "":
		return RangeDay, nil
	}
	return "", fmt.Errorf("unknown range %q (want day, week or month)", s)
}

// FlexString decodes a JSON string or number as a string. Several dashboard
// fields are raw SQL columns whose JSON type varies by database.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

// =============================================================================
// ITEMS
// =============================================================================

// Item is a menu entry.
type Item struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Available bool    `json:"available"`
	ImageURL  string  `json:"imageUrl,omitempty"`
	Category  string  `json:"category,omitempty"`
}

// NewItem is the create-item request.
type NewItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl,omitempty"`
	Category string  `json:"category,omitempty"`
}

// =============================================================================
// ORDERS
// =============================================================================

// OrderLine is one item in an order request.
type OrderLine struct {
	ItemID   int64 `json:"itemId"`
	Quantity int   `json:"quantity"`
}

// OrderRequest creates an order.
type OrderRequest struct {
	UserID       int64       `json:"userId"`
	Items        []OrderLine `json:"items"`
	CustomerName string      `json:"customerName,omitempty"`
	Table        string      `json:"table,omitempty"`
}

// Validate checks the request before it is sent.
func (r OrderRequest) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("order must contain at least one item")
	}
	for _, l := range r.Items {
		if l.Quantity < 1 {
			return fmt.Errorf("item %d: quantity must be at least 1", l.ItemID)
		}
	}
	return nil
}

// User is a backend user as returned by the users and orders endpoints.
type User struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	Role            string `json:"role"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// OrderItem is a line on a placed order.
type OrderItem struct {
	ID       int64   `json:"id"`
	Item     Item    `json:"item"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order is a placed order.
type Order struct {
	ID          int64       `json:"id"`
	User        User        `json:"user"`
	OrderDate   Timestamp   `json:"orderDate"`
	TotalAmount float64     `json:"totalAmount"`
	OrderItems  []OrderItem `json:"orderItems"`
}

// Bill is a generated bill.
type Bill struct {
	ID          int64       `json:"id"`
	Order       Order       `json:"order"`
	BillDate    Timestamp   `json:"billDate"`
	TotalAmount float64     `json:"totalAmount"`
	Discount    float64     `json:"discount"`
	FinalAmount float64     `json:"finalAmount"`
	ReceiptID   string      `json:"receiptId"`
	PaymentMode PaymentMode `json:"paymentMode"`
}

// BillOptions selects the discount and payment mode of a bill.
type BillOptions struct {
	// DiscountID is applied when non-zero.
	DiscountID  int64
	PaymentMode PaymentMode
}

// Timestamp decodes the backend's LocalDateTime, which carries no zone.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`null`), nil
	}
	return json.Marshal(t.Format("2006-01-02T15:04:05"))
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Summary is the dashboard headline figures.
type Summary struct {
	TotalRevenue   float64 `json:"totalRevenue"`
	TotalOrders    int     `json:"totalOrders"`
	AverageBill    float64 `json:"averageBill"`
	TotalDiscounts float64 `json:"totalDiscounts"`
	TodaysRevenue  float64 `json:"todaysRevenue"`
	TodaysOrders   int     `json:"todaysOrders"`
}

// TopItem is an item and how many were sold.
type TopItem struct {
	Name  string `json:"name"`
	Sales int    `json:"sales"`
}

// RevenuePoint is revenue for one bucket of a range.
type RevenuePoint struct {
	Label   string  `json:"label"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

// Transaction is a recent bill.
type Transaction struct {
	UserID      FlexString `json:"user_id"`
	HandledBy   string     `json:"handled_by"`
	OrderID     FlexString `json:"order_id"`
	ReceiptID   FlexString `json:"receipt_id"`
	FinalAmount float64    `json:"final_amount"`
	Date        FlexString `json:"date"`
	PaymentMode string     `json:"payment_mode,omitempty"`
}

// TransactionPage is one page of recent transactions.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	CurrentPage  int           `json:"currentPage"`
	TotalPages   int           `json:"totalPages"`
	TotalItems   int64         `json:"totalItems"`
}

// UnmarshalJSON accepts both {"transactions": [...]} and Spring's
// {"content": [...]} page shapes.
func (p *TransactionPage) UnmarshalJSON(data []byte) error {
	var aux struct {
		Transactions  []Transaction `json:"transactions"`
		Content       []Transaction `json:"content"`
		CurrentPage   int           `json:"currentPage"`
		Page          int           `json:"page"`
		TotalPages    int           `json:"totalPages"`
		TotalItems    int64         `json:"totalItems"`
		TotalElements int64         `json:"totalElements"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Transactions = aux.Transactions
	if p.Transactions == nil {
		p.Transactions = aux.Content
	}
	p.CurrentPage = aux.CurrentPage
	if p.CurrentPage == 0 {
		p.CurrentPage = aux.Page
	}
	p.TotalPages = aux.TotalPages
	p.TotalItems = aux.TotalItems
	if p.TotalItems == 0 {
		p.TotalItems = aux.TotalElements
	}
	return nil
}

// TransactionFilter narrows the filtered transaction listing. Zero values
// are omitted.
type TransactionFilter struct {
	Page        int
	Size        int
	Cashier     string
	MinValue    float64
	MaxValue    float64
	StartDate   string // yyyy-mm-dd
	EndDate     string // yyyy-mm-dd
	PaymentMode PaymentMode
}

// UserPerformance is how many orders a user handled in a range.
type UserPerformance struct {
	Username string `json:"username"`
	Orders   int    `json:"orders"`
}

// =============================================================================
// USERS
// =============================================================================

// NewUser is the create-user request.
type NewUser struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	Role            string `json:"role"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}
