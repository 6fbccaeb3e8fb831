// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pos

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jeranaias/crcafe-cli/internal/apiclient"
)

// ListItems returns the menu, from cache when fresh.
func (s *Service) ListItems(ctx context.Context) ([]Item, error) {
	if s.menu != nil {
		if hit := s.menu.Get(menuCacheKey); hit != nil {
			return hit.Value(), nil
		}
	}

	var items []Item
	if err := s.get(ctx, "/items", nil, &items); err != nil {
		return nil, err
	}
	if s.menu != nil {
		s.menu.Set(menuCacheKey, items, ttlcache.DefaultTTL)
	}
	return items, nil
}

// CreateItem adds a menu item.
func (s *Service) CreateItem(ctx context.Context, item NewItem) (Item, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return Item{}, fmt.Errorf("item name is required")
	}
	if item.Price < 0 {
		return Item{}, fmt.Errorf("item price must not be negative")
	}

	var created Item
	err := s.do(ctx, apiclient.Request{Method: http.MethodPost, Path: "/items", Body: item}, &created)
	s.InvalidateMenu()
	return created, err
}

// DeleteItem removes a menu item.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	err := s.do(ctx, apiclient.Request{Method: http.MethodDelete, Path: idPath("/items", id, "")}, nil)
	s.InvalidateMenu()
	return err
}

// SetItemAvailability marks an item as available or sold out.
func (s *Service) SetItemAvailability(ctx context.Context, id int64, available bool) (Item, error) {
	var updated Item
	err := s.do(ctx, apiclient.Request{
		Method: http.MethodPut,
		Path:   idPath("/items", id, "/availability"),
		Body:   available,
	}, &updated)
	s.InvalidateMenu()
	return updated, err
}

// UpdateItemPrice sets an item's price.
func (s *Service) UpdateItemPrice(ctx context.Context, id int64, price float64) (Item, error) {
	if price < 0 {
		return Item{}, fmt.Errorf("item price must not be negative")
	}
	var updated Item
	err := s.do(ctx, apiclient.Request{
		Method: http.MethodPatch,
		Path:   idPath("/items", id, "/price"),
		Body:   price,
	}, &updated)
	s.InvalidateMenu()
	return updated, err
}
