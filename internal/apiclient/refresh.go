// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/jeranaias/crcafe-cli/internal/logging"
)

type refreshResult struct {
	token string
	err   error
}

// =============================================================================
// REFRESH COORDINATION
// =============================================================================

// awaitRefresh returns a credential to retry with. sent is the credential
// the failing request carried.
//
// At most one refresh exchange runs at a time. Callers that find one in
// flight queue behind it and receive its outcome in FIFO order. A caller
// whose credential was already replaced, by a refresh or a new login,
// retries with the stored credential without refreshing again. A caller
// whose session was cleared gets ErrSessionChanged.
func (c *Client) awaitRefresh(ctx context.Context, sent string) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case r := <-ch:
			return r.token, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if current := c.storedToken(); current != sent {
		c.mu.Unlock()
		return replacement(current)
	}
	c.refreshing = true
	c.mu.Unlock()

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()
	token, err := c.refresh(rctx)

	// A logout or login that landed while the exchange was in flight owns
	// the store now. Neither outcome of this refresh may touch it.
	if current := c.storedToken(); current != sent {
		c.mu.Lock()
		waiters := c.waiters
		c.waiters = nil
		c.refreshing = false
		c.mu.Unlock()

		c.log.Info().Err(err).Int("waiters", len(waiters)).Msg("session changed during refresh, discarding result")
		tok, rerr := replacement(current)
		for _, w := range waiters {
			w <- refreshResult{token: tok, err: rerr}
		}
		return tok, rerr
	}

	if err == nil {
		if werr := c.creds.WriteToken(token); werr != nil {
			c.log.Error().Err(werr).Msg("failed to persist refreshed credential")
		}
		c.subs.emitRefreshed(token)
	}

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	if err == nil {
		c.log.Info().
			Str("credential", logging.Fingerprint(token)).
			Int("waiters", len(waiters)).
			Msg("session refreshed")
		for _, w := range waiters {
			w <- refreshResult{token: token}
		}
		return token, nil
	}

	rerr := &RefreshError{Cause: err}
	for _, w := range waiters {
		w <- refreshResult{err: rerr}
	}

	c.log.Warn().Err(err).Int("waiters", len(waiters)).Msg("session refresh failed, authorization lost")
	if cerr := c.creds.ClearSession(); cerr != nil {
		c.log.Error().Err(cerr).Msg("failed to clear persisted session")
	}
	c.resetCookies()
	c.subs.emitAuthLost(rerr)
	return "", rerr
}

// storedToken reads the persisted credential. A read failure counts as no
// credential.
func (c *Client) storedToken() string {
	tok, err := c.creds.Token()
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to read credential")
		return ""
	}
	return tok
}

// replacement is the retry outcome for a request whose credential is no
// longer the stored one.
func replacement(current string) (string, error) {
	if current == "" {
		return "", ErrSessionChanged
	}
	return current, nil
}

// refresh performs the refresh exchange. It never carries the expired
// credential and never recurses: any non-2xx, including 401, is terminal.
func (c *Client) refresh(ctx context.Context) (string, error) {
	if c.refreshURL == nil {
		return "", fmt.Errorf("invalid refresh URL for base %q", c.baseURL)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create refresh request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.roundTrip(ctx, httpReq, "")
	if err != nil {
		return "", err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return "", handleErrorResponse(resp.Status, resp.Body)
	}

	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", ErrNoToken
	}
	return payload.AccessToken, nil
}

// =============================================================================
// REFRESH COOKIE
// =============================================================================

// restoreRefreshCookie seeds the jar from the mirrored cookie so a restarted
// process can still refresh.
func (c *Client) restoreRefreshCookie() {
	if c.creds == nil || c.refreshURL == nil {
		return
	}
	raw, err := c.creds.RefreshCookie()
	if err != nil || raw == "" {
		return
	}
	cookies := (&http.Request{Header: http.Header{"Cookie": {raw}}}).Cookies()
	c.jar.SetCookies(c.refreshURL, cookies)

	c.cookieMu.Lock()
	c.lastCookie = raw
	c.cookieMu.Unlock()
}

// mirrorRefreshCookie persists the cookies the jar would send to the
// refresh endpoint whenever they change.
func (c *Client) mirrorRefreshCookie() {
	if c.creds == nil || c.refreshURL == nil {
		return
	}
	cookies := c.jar.Cookies(c.refreshURL)
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	sort.Strings(parts)
	raw := strings.Join(parts, "; ")

	c.cookieMu.Lock()
	changed := raw != c.lastCookie
	c.lastCookie = raw
	c.cookieMu.Unlock()

	if !changed {
		return
	}
	if err := c.creds.WriteRefreshCookie(raw); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist refresh cookie")
	}
}

// resetCookies drops every cookie held in memory. The persisted mirror is
// cleared by the caller together with the session.
func (c *Client) resetCookies() {
	c.jar.Reset()
	c.cookieMu.Lock()
	c.lastCookie = ""
	c.cookieMu.Unlock()
}

// resettableJar is a cookie jar that can be emptied while requests are in
// flight.
type resettableJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newJar() *resettableJar {
	j := &resettableJar{}
	j.Reset()
	return j
}

// SetCookies implements http.CookieJar.
func (j *resettableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *resettableJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// Reset drops every cookie.
func (j *resettableJar) Reset() {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// OnAuthLost registers fn to run when a refresh exchange fails irrecoverably.
// The returned function unregisters it.
func (c *Client) OnAuthLost(fn func(err error)) (unsubscribe func()) {
	return subscribe(&c.subs, &c.subs.authLost, fn)
}

// OnTokenRefreshed registers fn to run with each newly issued credential,
// after it has been persisted. The returned function unregisters it.
func (c *Client) OnTokenRefreshed(fn func(token string)) (unsubscribe func()) {
	return subscribe(&c.subs, &c.subs.refreshed, fn)
}

type subscriber[T any] struct {
	id uint64
	fn T
}

type subscribers struct {
	mu        sync.Mutex
	nextID    uint64
	authLost  []subscriber[func(error)]
	refreshed []subscriber[func(string)]
}

func subscribe[T any](s *subscribers, list *[]subscriber[T], fn T) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	*list = append(*list, subscriber[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range *list {
				if sub.id == id {
					*list = append((*list)[:i:i], (*list)[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *subscribers) emitAuthLost(err error) {
	s.mu.Lock()
	subs := append([]subscriber[func(error)](nil), s.authLost...)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fn(err)
	}
}

func (s *subscribers) emitRefreshed(token string) {
	s.mu.Lock()
	subs := append([]subscriber[func(string)](nil), s.refreshed...)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fn(token)
	}
}
