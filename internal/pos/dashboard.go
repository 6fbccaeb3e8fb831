// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pos

import (
	"context"
	"net/url"
	"strconv"
)

const dashboardPath = "/dashboard"

// Summary returns the headline dashboard figures.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	var out Summary
	err := s.get(ctx, dashboardPath+"/summary", nil, &out)
	return out, err
}

// TopItems returns the best selling items.
func (s *Service) TopItems(ctx context.Context) ([]TopItem, error) {
	var out []TopItem
	err := s.get(ctx, dashboardPath+"/top-items", nil, &out)
	return out, err
}

// Revenue returns revenue bucketed over r.
func (s *Service) Revenue(ctx context.Context, r Range) ([]RevenuePoint, error) {
	var out []RevenuePoint
	err := s.get(ctx, dashboardPath+"/revenue", rangeParams(r), &out)
	return out, err
}

// RecentTransactions returns the latest bills.
func (s *Service) RecentTransactions(ctx context.Context) ([]Transaction, error) {
	var out []Transaction
	err := s.get(ctx, dashboardPath+"/recent-transactions", nil, &out)
	return out, err
}

// RecentTransactionsPage returns one page of bills, newest first.
func (s *Service) RecentTransactionsPage(ctx context.Context, page, size int) (TransactionPage, error) {
	var out TransactionPage
	err := s.get(ctx, dashboardPath+"/recent-transactions/paginated", pageParams(page, size), &out)
	return out, err
}

// FilteredTransactions returns one page of bills matching f.
func (s *Service) FilteredTransactions(ctx context.Context, f TransactionFilter) (TransactionPage, error) {
	params := pageParams(f.Page, f.Size)
	if f.Cashier != "" {
		params.Set("cashier", f.Cashier)
	}
	if f.MinValue > 0 {
		params.Set("minValue", strconv.FormatFloat(f.MinValue, 'f', -1, 64))
	}
	if f.MaxValue > 0 {
		params.Set("maxValue", strconv.FormatFloat(f.MaxValue, 'f', -1, 64))
	}
	if f.StartDate != "" {
		params.Set("startDate", f.StartDate)
	}
	if f.EndDate != "" {
		params.Set("endDate", f.EndDate)
	}
	if f.PaymentMode != "" {
		params.Set("paymentMode", string(f.PaymentMode))
	}

	var out TransactionPage
	err := s.get(ctx, dashboardPath+"/recent-transactions/filtered", params, &out)
	return out, err
}

// Cashiers returns the usernames that have handled bills.
func (s *Service) Cashiers(ctx context.Context) ([]string, error) {
	var out []string
	err := s.get(ctx, dashboardPath+"/cashiers", nil, &out)
	return out, err
}

// UsersPerformance returns orders handled per user over r.
func (s *Service) UsersPerformance(ctx context.Context, r Range) ([]UserPerformance, error) {
	var out []UserPerformance
	err := s.get(ctx, dashboardPath+"/users-performance", rangeParams(r), &out)
	return out, err
}

// TodaysRevenueByPaymentMode returns today's revenue keyed by payment mode.
func (s *Service) TodaysRevenueByPaymentMode(ctx context.Context) (map[PaymentMode]string, error) {
	var out map[PaymentMode]string
	err := s.get(ctx, dashboardPath+"/todays-revenue-by-payment-mode", nil, &out)
	return out, err
}

func rangeParams(r Range) url.Values {
	if r == "" {
		r = RangeDay
	}
	return url.Values{"range": {string(r)}}
}

func pageParams(page, size int) url.Values {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 10
	}
	return url.Values{
		"page": {strconv.Itoa(page)},
		"size": {strconv.Itoa(size)},
	}
}
