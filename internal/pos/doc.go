// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pos wraps the CR Cafe domain endpoints: menu items, orders and
// bills, the owner dashboard and user management.
//
// All calls go through the authenticated client, so an expired credential
// is repaired transparently. The menu item list is cached for a short TTL
// and invalidated by every item mutation.
package pos
