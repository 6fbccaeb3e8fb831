// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pos

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jeranaias/crcafe-cli/internal/apiclient"
)

// CreateOrder places an order.
func (s *Service) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if err := req.Validate(); err != nil {
		return Order{}, err
	}
	var order Order
	err := s.do(ctx, apiclient.Request{Method: http.MethodPost, Path: "/orders", Body: req}, &order)
	return order, err
}

// GenerateBill bills an order. The payment mode defaults to cash.
func (s *Service) GenerateBill(ctx context.Context, orderID int64, opts BillOptions) (Bill, error) {
	params := url.Values{}
	if opts.DiscountID != 0 {
		params.Set("discountId", strconv.FormatInt(opts.DiscountID, 10))
	}
	mode := opts.PaymentMode
	if mode == "" {
		mode = PaymentCash
	}
	params.Set("paymentMode", string(mode))

	var bill Bill
	err := s.do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   idPath("/orders", orderID, "/bill"),
		Params: params,
	}, &bill)
	return bill, err
}

// TodaysOrderCount is how many orders were placed today across all users.
func (s *Service) TodaysOrderCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.get(ctx, "/orders/today-count", nil, &n)
	return n, err
}

// MyTodaysOrderCount is how many orders the current user placed today.
func (s *Service) MyTodaysOrderCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.get(ctx, "/orders/my-day-count", nil, &n)
	return n, err
}
