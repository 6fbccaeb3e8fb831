// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pos

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jeranaias/crcafe-cli/internal/apiclient"
	"github.com/jeranaias/crcafe-cli/internal/logging"
	"github.com/rs/zerolog"
)

// DefaultMenuTTL is how long the item list is served from cache.
const DefaultMenuTTL = 60 * time.Second

const menuCacheKey = "items"

// Doer sends a request through the authenticated client and decodes the
// JSON reply into out. *apiclient.Client satisfies it.
type Doer interface {
	DoJSON(ctx context.Context, req apiclient.Request, out any) error
}

// Service is the typed client for the CR Cafe domain endpoints.
type Service struct {
	api  Doer
	menu *ttlcache.Cache[string, []Item]
	log  zerolog.Logger
}

// NewService creates a Service over api with the default menu TTL.
func NewService(api Doer) *Service {
	return &Service{
		api:  api,
		menu: newMenuCache(DefaultMenuTTL),
		log:  logging.Nop(),
	}
}

// WithLogger sets the logger.
func (s *Service) WithLogger(log zerolog.Logger) *Service {
	s.log = logging.Component(log, "pos")
	return s
}

// WithMenuTTL changes how long the item list is cached. Zero disables the
// cache.
func (s *Service) WithMenuTTL(ttl time.Duration) *Service {
	s.menu = newMenuCache(ttl)
	return s
}

// InvalidateMenu drops the cached item list.
func (s *Service) InvalidateMenu() {
	if s.menu != nil {
		s.menu.DeleteAll()
	}
}

func newMenuCache(ttl time.Duration) *ttlcache.Cache[string, []Item] {
	if ttl <= 0 {
		return nil
	}
	return ttlcache.New[string, []Item](
		ttlcache.WithTTL[string, []Item](ttl),
		ttlcache.WithDisableTouchOnHit[string, []Item](),
	)
}

func (s *Service) get(ctx context.Context, path string, params url.Values, out any) error {
	return s.do(ctx, apiclient.Request{Method: http.MethodGet, Path: path, Params: params}, out)
}

func (s *Service) do(ctx context.Context, req apiclient.Request, out any) error {
	if err := s.api.DoJSON(ctx, req, out); err != nil {
		s.log.Debug().Err(err).Str("method", req.Method).Str("path", req.Path).Msg("request failed")
		return err
	}
	return nil
}

func idPath(prefix string, id int64, suffix string) string {
	return fmt.Sprintf("%s/%d%s", prefix, id, suffix)
}
