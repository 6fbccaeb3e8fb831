// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pos

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/crcafe-cli/internal/apiclient"
	"github.com/jeranaias/crcafe-cli/internal/storage"
)

// recorded is the last request the test server saw.
type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   string
}

func newTestService(t *testing.T, routes map[string]http.HandlerFunc) (*Service, func() recorded) {
	t.Helper()
	var last atomic.Pointer[recorded]
	last.Store(&recorded{})
	mux := http.NewServeMux()
	for pattern, h := range routes {
		h := h
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			last.Store(&recorded{
				method: r.Method,
				path:   r.URL.Path,
				query:  r.URL.RawQuery,
				auth:   r.Header.Get("Authorization"),
				body:   string(body),
			})
			w.Header().Set("Content-Type", "application/json")
			h(w, r)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sess := storage.NewSessionStore(storage.NewMemoryStore())
	require.NoError(t, sess.WriteToken("tok"))
	client := apiclient.New(srv.URL+"/api", sess)
	return NewService(client), func() recorded { return *last.Load() }
}

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}
}

// =============================================================================
// ITEMS
// =============================================================================

func TestListItems_CachedUntilMutation(t *testing.T) {
	var hits atomic.Int32
	svc, last := newTestService(t, map[string]http.HandlerFunc{
		"GET /api/items": func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Write([]byte(`[{"id":1,"name":"Masala Chai","price":40,"available":true,"category":"Tea"}]`))
		},
		"PATCH /api/items/1/price": reply(`{"id":1,"name":"Masala Chai","price":45,"available":true}`),
	})
	ctx := context.Background()

	items, err := svc.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Masala Chai", items[0].Name)
	require.Equal(t, 40.0, items[0].Price)
	require.True(t, items[0].Available)
	require.Equal(t, "Bearer tok", last().auth)

	_, err = svc.ListItems(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	updated, err := svc.UpdateItemPrice(ctx, 1, 45)
	require.NoError(t, err)
	require.Equal(t, 45.0, updated.Price)
	require.Equal(t, "45", last().body)

	_, err = svc.ListItems(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(2), hits.Load())
}

func TestListItems_NoCacheWhenTTLZero(t *testing.T) {
	var hits atomic.Int32
	svc, _ := newTestService(t, map[string]http.HandlerFunc{
		"GET /api/items": func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Write([]byte(`[]`))
		},
	})
	svc.WithMenuTTL(0)

	for i := 0; i < 3; i++ {
		_, err := svc.ListItems(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, int32(3), hits.Load())
}

func TestCreateItem(t *testing.T) {
	svc, last := newTestService(t, map[string]http.HandlerFunc{
		"POST /api/items": reply(`{"id":7,"name":"Filter Coffee","price":35,"available":true}`),
	})

	item, err := svc.CreateItem(context.Background(), NewItem{Name: "  Filter Coffee ", Price: 35})
	require.NoError(t, err)
	require.Equal(t, int64(7), item.ID)

	var sent NewItem
	require.NoError(t, json.Unmarshal([]byte(last().body), &sent))
	require.Equal(t, "Filter Coffee", sent.Name)

	_, err = svc.CreateItem(context.Background(), NewItem{Name: " "})
	require.Error(t, err)
	_, err = svc.CreateItem(context.Background(), NewItem{Name: "x", Price: -1})
	require.Error(t, err)
}

func TestSetItemAvailability_SendsRawBool(t *testing.T) {
	svc, last := newTestService(t, map[string]http.HandlerFunc{
		"PUT /api/items/3/availability": reply(`{"id":3,"name":"Samosa","available":false}`),
	})

	item, err := svc.SetItemAvailability(context.Background(), 3, false)
	require.NoError(t, err)
	require.False(t, item.Available)
	require.Equal(t, "false", last().body)
}

func TestDeleteItem(t *testing.T) {
	svc, last := newTestService(t, map[string]http.HandlerFunc{
		"DELETE /api/items/9": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
	})

	require.NoError(t, svc.DeleteItem(context.Background(), 9))
	require.Equal(t, http.MethodDelete, last().method)
}

func TestDeleteItem_StatusErrorPropagates(t *testing.T) {
	svc, _ := newTestService(t, map[string]http.HandlerFunc{
		"DELETE /api/items/9": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"item is on an open order"}`))
		},
	})

	err := svc.DeleteItem(context.Background(), 9)
	var se *apiclient.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusConflict, se.Status)
	require.Equal(t, "item is on an open order", se.Message)
}

// =============================================================================
// ORDERS
// =============================================================================

func TestCreateOrder(t *testing.T) {
	svc, last := newTestService(t, map[string]http.HandlerFunc{
		"POST /api/orders": reply(`{
			"id": 42,
			"user": {"id": 2, "username": "asha", "role": "WORKER"},
			"orderDate": "2025-03-01T09:30:15.123",
			"totalAmount": 80,
			"orderItems": [{"id": 1, "item": {"id": 1, "name": "Masala Chai"}, "quantity": 2, "price": 40}]
		}`),
	})

	order, err := svc.CreateOrder(context.Background(), OrderRequest{
		UserID: 2,
		Items:  []OrderLine{{ItemID: 1, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), order.ID)
	require.Equal(t, "asha", order.User.Username)
	require.Equal(t, 2025, order.OrderDate.Year())
	require.Equal(t, 30, order.OrderDate.Minute())
	require.Len(t, order.OrderItems, 1)
	require.JSONEq(t, `{"userId":2,"items":[{"itemId":1,"quantity":2}]}`, last().body)
}

func TestCreateOrder_Validation(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.CreateOrder(context.Background(), OrderRequest{UserID: 1})
	require.ErrorContains(t, err, "at least one item")

	_, err = svc.CreateOrder(context.Background(), OrderRequest{
		UserID: 1,
		Items:  []OrderLine{{ItemID: 1, Quantity: 0}},
	})
	require.ErrorContains(t, err, "quantity")
}

func TestGenerateBill(t *testing.T) {
	svc, last := newTestService(t, map[string]http.HandlerFunc{
		"POST /api/orders/42/bill": reply(`{
			"id": 5, "totalAmount": 100, "discount": 10, "finalAmount": 90,
			"receiptId": "RCPT-0005", "paymentMode": "ONLINE", "billDate": "2025-03-01T10:00:00"
		}`),
	})

	bill, err := svc.GenerateBill(context.Background(), 42, BillOptions{DiscountID: 3, PaymentMode: PaymentOnline})
	require.NoError(t, err)
	require.Equal(t, "RCPT-0005", bill.ReceiptID)
	require.Equal(t, PaymentOnline, bill.PaymentMode)
	require.Equal(t, 90.0, bill.FinalAmount)
	require.Equal(t, "discountId=3&paymentMode=ONLINE", last().query)

	_, err = svc.GenerateBill(context.Background(), 42, BillOptions{})
	require.NoError(t, err)
	require.Equal(t, "paymentMode=CASH", last().query)
}

func TestOrderCounts(t *testing.T) {
	svc, _ := newTestService(t, map[string]http.HandlerFunc{
		"GET /api/orders/today-count":  reply(`17`),
		"GET /api/orders/my-day-count": reply(`4`),
	})

	all, err := svc.TodaysOrderCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(17), all)

	mine, err := svc.MyTodaysOrderCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(4), mine)
}

// =============================================================================
// DASHBOARD
// =============================================================================

func TestDashboard_SummaryAndRanges(t *testing.T) {
	svc, last := newTestService(t, map[string]http.HandlerFunc{
		"GET /api/dashboard/summary": reply(`{"totalRevenue":1200.5,"totalOrders":30,"averageBill":40.01,
			"totalDiscounts":12,"todaysRevenue":300,"todaysOrders":8}`),
		"GET /api/dashboard/revenue":           reply(`[{"label":"Mon","revenue":100,"orders":3}]`),
		"GET /api/dashboard/users-performance": reply(`[{"username":"asha","orders":12}]`),
		"GET /api/dashboard/top-items":         reply(`[{"name":"Masala Chai","sales":50}]`),
		"GET /api/dashboard/cashiers":          reply(`["asha","ravi"]`),
	})
	ctx := context.Background()

	sum, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, 30, sum.TotalOrders)
	require.Equal(t, 8, sum.TodaysOrders)

	points, err := svc.Revenue(ctx, RangeWeek)
	require.NoError(t, err)
	require.Equal(t, "range=week", last().query)
	require.Equal(t, "Mon", points[0].Label)

	perf, err := svc.UsersPerformance(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "range=day", last().query)
	require.Equal(t, 12, perf[0].Orders)

	top, err := svc.TopItems(ctx)
	require.NoError(t, err)
	require.Equal(t, 50, top[0].Sales)

	cashiers, err := svc.Cashiers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"asha", "ravi"}, cashiers)
}

func TestDashboard_Transactions(t *testing.T) {
	svc, last := newTestService(t, map[string]http.HandlerFunc{
		"GET /api/dashboard/recent-transactions": reply(`[
			{"user_id": 2, "handled_by": "asha", "order_id": 42, "receipt_id": "RCPT-1", "final_amount": 90, "date": "2025-03-01 10:00:00"}
		]`),
		"GET /api/dashboard/recent-transactions/paginated": reply(`{
			"transactions": [{"handled_by": "ravi", "order_id": "43", "final_amount": 20}],
			"currentPage": 1, "totalPages": 4, "totalItems": 31
		}`),
		"GET /api/dashboard/recent-transactions/filtered": reply(`{
			"content": [{"handled_by": "asha", "final_amount": 55}],
			"page": 0, "totalPages": 1, "totalElements": 1
		}`),
	})
	ctx := context.Background()

	txs, err := svc.RecentTransactions(ctx)
	require.NoError(t, err)
	require.Equal(t, FlexString("42"), txs[0].OrderID)
	require.Equal(t, FlexString("RCPT-1"), txs[0].ReceiptID)

	page, err := svc.RecentTransactionsPage(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, "page=1&size=10", last().query)
	require.Equal(t, 4, page.TotalPages)
	require.Equal(t, int64(31), page.TotalItems)
	require.Equal(t, FlexString("43"), page.Transactions[0].OrderID)

	filtered, err := svc.FilteredTransactions(ctx, TransactionFilter{
		Cashier:     "asha",
		MinValue:    50,
		StartDate:   "2025-03-01",
		PaymentMode: PaymentCash,
	})
	require.NoError(t, err)
	require.Equal(t, "cashier=asha&minValue=50&page=0&paymentMode=CASH&size=10&startDate=2025-03-01", last().query)
	require.Len(t, filtered.Transactions, 1)
	require.Equal(t, int64(1), filtered.TotalItems)
}

func TestDashboard_RevenueByPaymentMode(t *testing.T) {
	svc, _ := newTestService(t, map[string]http.HandlerFunc{
		"GET /api/dashboard/todays-revenue-by-payment-mode": reply(`{"CASH":"120.00","ONLINE":"300.50"}`),
	})

	byMode, err := svc.TodaysRevenueByPaymentMode(context.Background())
	require.NoError(t, err)
	require.Equal(t, "300.50", byMode[PaymentOnline])
}

// =============================================================================
// USERS
// =============================================================================

func TestUsers(t *testing.T) {
	svc, last := newTestService(t, map[string]http.HandlerFunc{
		"GET /api/users":  reply(`[{"id":1,"username":"owner","role":"OWNER"}]`),
		"POST /api/users": reply(`{"id":2,"username":"ravi","role":"WORKER"}`),
	})
	ctx := context.Background()

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, "OWNER", users[0].Role)

	created, err := svc.CreateUser(ctx, NewUser{Username: "ravi", Password: "pw", Role: "WORKER"})
	require.NoError(t, err)
	require.Equal(t, int64(2), created.ID)
	require.Contains(t, last().body, `"role":"WORKER"`)

	_, err = svc.CreateUser(ctx, NewUser{Username: "x", Role: "WORKER"})
	require.Error(t, err)
}

// =============================================================================
// TYPES
// =============================================================================

func TestParsePaymentMode(t *testing.T) {
	m, err := ParsePaymentMode(" online ")
	require.NoError(t, err)
	require.Equal(t, PaymentOnline, m)

	_, err = ParsePaymentMode("card")
	require.Error(t, err)
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("MONTH")
	require.NoError(t, err)
	require.Equal(t, RangeMonth, r)

	r, err = ParseRange("")
	require.NoError(t, err)
	require.Equal(t, RangeDay, r)

	_, err = ParseRange("year")
	require.Error(t, err)
}

func TestTimestamp(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2025-03-01T09:30:15"`), &ts))
	require.Equal(t, time.March, ts.Month())

	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	require.True(t, ts.IsZero())

	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
