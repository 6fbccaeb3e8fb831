// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/crcafe-cli/internal/storage"
)

// =============================================================================
// TEST BACKEND
// =============================================================================

// fakeBackend is a minimal CR Cafe API. /api/items answers 200 only for the
// currently valid token; /api/auth/refresh is gated so tests can hold the
// refresh open while requests queue.
type fakeBackend struct {
	mu         sync.Mutex
	validToken string
	nextToken  string
	refreshErr int    // status to fail refresh with, 0 = succeed
	otherValid string // a second accepted token, e.g. from a new login

	refreshCalls atomic.Int32
	itemCalls    atomic.Int32
	seenTokens   []string

	gate chan struct{} // closed to let a refresh answer
}

func newFakeBackend(valid, next string) *fakeBackend {
	gate := make(chan struct{})
	close(gate)
	return &fakeBackend{validToken: valid, nextToken: next, gate: gate}
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/items", func(w http.ResponseWriter, r *http.Request) {
		b.itemCalls.Add(1)
		auth := r.Header.Get("Authorization")
		b.mu.Lock()
		ok := auth == "Bearer "+b.validToken || (b.otherValid != "" && auth == "Bearer "+b.otherValid)
		if ok {
			b.seenTokens = append(b.seenTokens, auth)
		}
		b.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"token expired"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"name":"Masala Chai"}]`))
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		<-b.gate
		if r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.refreshErr != 0 {
			w.WriteHeader(b.refreshErr)
			w.Write([]byte(`{"message":"refresh token expired"}`))
			return
		}
		b.validToken = b.nextToken
		json.NewEncoder(w).Encode(map[string]string{"accessToken": b.nextToken})
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "correct-password" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Bad credentials"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "rt-1", Path: "/api/auth/refresh", HttpOnly: true})
		b.mu.Lock()
		tok := b.validToken
		b.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"token": tok, "id": 7, "username": creds.Username, "role": "WORKER"})
	})
	mux.HandleFunc("/api/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Item not found"}`))
	})
	return mux
}

func newTestClient(t *testing.T, b *fakeBackend, token string) (*Client, *storage.MemoryStore) {
	t.Helper()
	server := httptest.NewServer(b.handler())
	t.Cleanup(server.Close)

	mem := storage.NewMemoryStore()
	creds := storage.NewSessionStore(mem)
	if token != "" {
		require.NoError(t, creds.WriteSession(token, `{"id":"7","username":"alice","role":"WORKER"}`, 1))
	}
	mem.ResetOps()
	return New(server.URL+"/api", creds), mem
}

// waitForWaiters blocks until n callers are queued behind the in-flight refresh.
func waitForWaiters(t *testing.T, c *Client, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.refreshing && len(c.waiters) == n
	}, 5*time.Second, 5*time.Millisecond)
}

// =============================================================================
// CREDENTIAL ATTACH
// =============================================================================

func TestSend_AttachesBearerAndRequestID(t *testing.T) {
	var gotAuth, gotID, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotID = r.Header.Get("X-Request-ID")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	mem := storage.NewMemoryStore()
	creds := storage.NewSessionStore(mem)
	require.NoError(t, creds.WriteToken("t1"))

	c := New(server.URL, creds).WithUserAgent("crcafe-test")
	_, err := c.Send(context.Background(), Request{Method: http.MethodGet, Path: "/items"})
	require.NoError(t, err)
	require.Equal(t, "Bearer t1", gotAuth)
	require.Len(t, gotID, 36)
	require.Equal(t, "crcafe-test", gotUA)
}

func TestSend_NoCredentialNoHeader(t *testing.T) {
	var gotAuth = "unset"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(server.URL, storage.NewSessionStore(storage.NewMemoryStore()))
	_, err := c.Send(context.Background(), Request{Path: "/items"})
	require.NoError(t, err)
	require.Empty(t, gotAuth)
}

func TestDoJSON_EncodesBodyAndParams(t *testing.T) {
	var gotQuery, gotType string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"id":42}`))
	}))
	defer server.Close()

	c := New(server.URL, storage.NewSessionStore(storage.NewMemoryStore()))
	var out struct {
		ID int `json:"id"`
	}
	err := c.DoJSON(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/orders",
		Params: map[string][]string{"discountId": {"3"}},
		Body:   map[string]any{"paymentMode": "CASH"},
	}, &out)
	require.NoError(t, err)
	require.Equal(t, 42, out.ID)
	require.Equal(t, "discountId=3", gotQuery)
	require.Equal(t, "application/json", gotType)
	require.Equal(t, "CASH", gotBody["paymentMode"])
}

// =============================================================================
// ERROR PROPAGATION
// =============================================================================

func TestSend_OtherStatusPropagatesWithoutRefresh(t *testing.T) {
	b := newFakeBackend("t1", "t2")
	c, _ := newTestClient(t, b, "t1")

	_, err := c.Send(context.Background(), Request{Path: "/missing"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusNotFound, se.Status)
	require.Equal(t, "Item not found", se.Message)
	require.Zero(t, b.refreshCalls.Load())
}

func TestSend_NoResponseIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := New(url, storage.NewSessionStore(storage.NewMemoryStore()))
	_, err := c.Send(context.Background(), Request{Path: "/items"})
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
}

func TestLogin_BadCredentialsDoNotRefresh(t *testing.T) {
	b := newFakeBackend("t1", "t2")
	c, _ := newTestClient(t, b, "")

	lost := 0
	c.OnAuthLost(func(error) { lost++ })

	_, err := c.Login(context.Background(), "alice", "wrong")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusUnauthorized, se.Status)
	require.Zero(t, b.refreshCalls.Load())
	require.Zero(t, lost)
}

// =============================================================================
// REFRESH COORDINATION
// =============================================================================

func TestSend_RefreshesOnceForConcurrent401s(t *testing.T) {
	const n = 8
	b := newFakeBackend("t1", "t2")
	b.gate = make(chan struct{})
	c, mem := newTestClient(t, b, "t0")

	refreshed := make(chan string, 1)
	c.OnTokenRefreshed(func(tok string) { refreshed <- tok })

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Send(context.Background(), Request{Path: "/items"})
			errs <- err
		}()
	}

	waitForWaiters(t, c, n-1)
	close(b.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), b.refreshCalls.Load())
	require.Equal(t, "t2", <-refreshed)

	b.mu.Lock()
	require.Len(t, b.seenTokens, n)
	for _, tok := range b.seenTokens {
		require.Equal(t, "Bearer t2", tok)
	}
	b.mu.Unlock()

	// The client wrote the token key and nothing else.
	require.Equal(t, []storage.Op{storage.Put(storage.KeyToken, "t2")}, mem.Ops())
}

func TestSend_NoStaleCredentialAfterRefresh(t *testing.T) {
	b := newFakeBackend("t1", "t2")
	c, _ := newTestClient(t, b, "t0")

	_, err := c.Send(context.Background(), Request{Path: "/items"})
	require.NoError(t, err)
	require.Equal(t, int32(1), b.refreshCalls.Load())

	_, err = c.Send(context.Background(), Request{Path: "/items"})
	require.NoError(t, err)
	require.Equal(t, int32(1), b.refreshCalls.Load())

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Equal(t, []string{"Bearer t2", "Bearer t2"}, b.seenTokens)
}

func TestSend_RefreshFailureRejectsAllAndSignalsOnce(t *testing.T) {
	const n = 5
	b := newFakeBackend("t1", "t2")
	b.refreshErr = http.StatusUnauthorized
	b.gate = make(chan struct{})
	c, mem := newTestClient(t, b, "t0")
	require.NoError(t, storage.NewSessionStore(mem).WriteRefreshCookie("refreshToken=old"))

	var lost atomic.Int32
	var lostErr error
	c.OnAuthLost(func(err error) {
		lost.Add(1)
		lostErr = err
	})

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Send(context.Background(), Request{Path: "/items"})
			errs <- err
		}()
	}

	waitForWaiters(t, c, n-1)
	close(b.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.ErrorIs(t, err, ErrRefreshFailed)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		require.Equal(t, http.StatusUnauthorized, se.Status)
	}
	require.Equal(t, int32(1), b.refreshCalls.Load())
	require.Equal(t, int32(1), lost.Load())
	require.ErrorIs(t, lostErr, ErrRefreshFailed)
	require.Empty(t, mem.Snapshot())
}

func TestSend_RetriedRequestDoesNotRefreshAgain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			w.Write([]byte(`{"accessToken":"t2"}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	var refreshes atomic.Int32
	creds := storage.NewSessionStore(storage.NewMemoryStore())
	require.NoError(t, creds.WriteToken("t1"))
	c := New(server.URL, creds)
	c.OnTokenRefreshed(func(string) { refreshes.Add(1) })

	_, err := c.Send(context.Background(), Request{Path: "/users"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusForbidden, se.Status)
	require.False(t, errors.Is(err, ErrRefreshFailed))
	require.Equal(t, int32(1), refreshes.Load())
}

func TestSend_LateAuthFailureAfterLostSessionDoesNotRefresh(t *testing.T) {
	b := newFakeBackend("t1", "t2")
	b.refreshErr = http.StatusUnauthorized
	c, _ := newTestClient(t, b, "t0")

	var lost atomic.Int32
	c.OnAuthLost(func(error) { lost.Add(1) })

	_, err := c.Send(context.Background(), Request{Path: "/items"})
	require.ErrorIs(t, err, ErrRefreshFailed)

	// A request sent with t0 before the failure settled reports its 401 now.
	_, err = c.awaitRefresh(context.Background(), "t0")
	require.ErrorIs(t, err, ErrSessionChanged)
	require.Equal(t, int32(1), b.refreshCalls.Load())
	require.Equal(t, int32(1), lost.Load())
}

func TestSend_ReloginDuringRefreshKeepsNewSession(t *testing.T) {
	b := newFakeBackend("t1", "t2")
	b.otherValid = "t9"
	b.gate = make(chan struct{})
	c, mem := newTestClient(t, b, "t0")

	var refreshed, lost atomic.Int32
	c.OnTokenRefreshed(func(string) { refreshed.Add(1) })
	c.OnAuthLost(func(error) { lost.Add(1) })

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), Request{Path: "/items"})
		done <- err
	}()
	require.Eventually(t, func() bool { return b.refreshCalls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	creds := storage.NewSessionStore(mem)
	require.NoError(t, creds.WriteSession("t9", `{"id":"8","username":"bob","role":"MANAGER"}`, 2))
	mem.ResetOps()
	close(b.gate)

	require.NoError(t, <-done)
	tok, err := creds.Token()
	require.NoError(t, err)
	require.Equal(t, "t9", tok)
	require.Empty(t, mem.Ops())
	require.Zero(t, refreshed.Load())
	require.Zero(t, lost.Load())

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Equal(t, []string{"Bearer t9"}, b.seenTokens)
}

func TestSend_LogoutDuringFailedRefreshLeavesStoreAlone(t *testing.T) {
	b := newFakeBackend("t1", "t2")
	b.refreshErr = http.StatusUnauthorized
	b.gate = make(chan struct{})
	c, mem := newTestClient(t, b, "t0")

	var lost atomic.Int32
	c.OnAuthLost(func(error) { lost.Add(1) })

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), Request{Path: "/items"})
		done <- err
	}()
	require.Eventually(t, func() bool { return b.refreshCalls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, storage.NewSessionStore(mem).ClearSession())
	mem.ResetOps()
	close(b.gate)

	require.ErrorIs(t, <-done, ErrSessionChanged)
	require.Empty(t, mem.Ops())
	require.Zero(t, lost.Load())
}

func TestNew_InvalidBaseURLDoesNotPanic(t *testing.T) {
	creds := storage.NewSessionStore(storage.NewMemoryStore())
	require.NoError(t, creds.WriteRefreshCookie("refreshToken=rt-1"))
	c := New("http://[::1", creds)
	require.Nil(t, c.refreshURL)

	require.NotPanics(t, c.mirrorRefreshCookie)
	_, err := c.refresh(context.Background())
	require.Error(t, err)
	_, err = c.Send(context.Background(), Request{Path: "/items"})
	require.Error(t, err)
}

func TestRefresh_MissingAccessTokenIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := storage.NewSessionStore(storage.NewMemoryStore())
	require.NoError(t, creds.WriteToken("t1"))
	c := New(server.URL, creds)

	_, err := c.Send(context.Background(), Request{Path: "/items"})
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.ErrorIs(t, err, ErrNoToken)
}

func TestSubscriptions_Unsubscribe(t *testing.T) {
	b := newFakeBackend("t1", "t2")
	c, _ := newTestClient(t, b, "t0")

	var calls atomic.Int32
	unsubscribe := c.OnTokenRefreshed(func(string) { calls.Add(1) })
	unsubscribe()
	unsubscribe()

	_, err := c.Send(context.Background(), Request{Path: "/items"})
	require.NoError(t, err)
	require.Zero(t, calls.Load())
}

// =============================================================================
// REFRESH COOKIE
// =============================================================================

func TestRefreshCookie_MirroredAndRestored(t *testing.T) {
	b := newFakeBackend("t1", "t2")
	c, mem := newTestClient(t, b, "")

	_, err := c.Login(context.Background(), "alice", "correct-password")
	require.NoError(t, err)
	require.Equal(t, "refreshToken=rt-1", mem.Snapshot()[storage.KeyRefreshCookie])

	var gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/refresh" {
			if ck, err := r.Cookie("refreshToken"); err == nil {
				gotCookie = ck.Value
			}
			w.Write([]byte(`{"accessToken":"t9"}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer t9" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	// A new process sharing the same store still carries the cookie.
	creds := storage.NewSessionStore(mem)
	require.NoError(t, creds.WriteToken("stale"))
	restarted := New(server.URL+"/api", creds)
	_, err = restarted.Send(context.Background(), Request{Path: "/items"})
	require.NoError(t, err)
	require.Equal(t, "rt-1", gotCookie)
}

// =============================================================================
// CIRCUIT BREAKER / RATE LIMIT
// =============================================================================

func TestCircuitBreaker_OpensAfterServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, storage.NewSessionStore(storage.NewMemoryStore())).WithCircuitBreaker(true)

	for i := 0; i < 5; i++ {
		_, err := c.Send(context.Background(), Request{Path: "/dashboard/summary"})
		var se *StatusError
		require.ErrorAs(t, err, &se)
		require.True(t, se.IsServerError())
	}

	_, err := c.Send(context.Background(), Request{Path: "/dashboard/summary"})
	require.ErrorIs(t, err, ErrCircuitOpen)
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	require.Equal(t, int32(5), calls.Load())
}

func TestRateLimit_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(server.URL, storage.NewSessionStore(storage.NewMemoryStore())).WithRateLimit(0.001, 1)
	_, err := c.Send(context.Background(), Request{Path: "/items"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Send(ctx, Request{Path: "/items"})
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
}
