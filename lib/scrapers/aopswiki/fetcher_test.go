package aopswiki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testFetcherFor(t *testing.T, baseUrl string) *Fetcher {
	session, err := NewSession(SessionOptions{
		Templates:         Templates{BaseUrl: baseUrl},
		Credentials:       Credentials{Username: testUsername, Password: testPassword},
		RequestsPerSecond: 1000,
		Burst:             100,
	})
	require.NoError(t, err)
	return NewFetcher(session, FetcherOptions{
		MaxRetries:    3,
		RetryBaseWait: time.Millisecond,
	})
}

func TestFetcherClassification(t *testing.T) {
	ctx := context.Background()
	addr := ProblemAddress(2002, "AMC_10A", 1)

	t.Run("hard 404", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		_, err := testFetcherFor(t, server.URL).Fetch(ctx, addr)
		require.ErrorIs(t, err, ErrNotFound)

		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		require.Equal(t, 404, fetchErr.Status)
	})

	t.Run("soft 404", func(t *testing.T) {
		// the wiki serves missing articles as 200 with an empty-article
		// container
		server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(res, `<html><body><div class="noarticletext">There is currently no text in this page.</div></body></html>`)
		}))
		defer server.Close()

		_, err := testFetcherFor(t, server.URL).Fetch(ctx, addr)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("auth wall", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, _ *http.Request) {
			res.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		_, err := testFetcherFor(t, server.URL).Fetch(ctx, addr)
		// a 403 with no working login form behind it is fatal
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
	})
}

func TestFetcherRetries(t *testing.T) {
	ctx := context.Background()
	addr := ProblemAddress(2002, "AMC_10A", 1)

	t.Run("transient failures recover", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) <= 2 {
				res.WriteHeader(http.StatusInternalServerError)
				return
			}
			fmt.Fprint(res, wikiPage("<p>hello</p>"))
		}))
		defer server.Close()

		page, err := testFetcherFor(t, server.URL).Fetch(ctx, addr)
		require.NoError(t, err)
		require.Contains(t, string(page.Body), "hello")
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("rate limiting recovers", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				res.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(res, wikiPage("<p>hello</p>"))
		}))
		defer server.Close()

		_, err := testFetcherFor(t, server.URL).Fetch(ctx, addr)
		require.NoError(t, err)
	})

	t.Run("retries are bounded", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			res.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := testFetcherFor(t, server.URL).Fetch(ctx, addr)
		require.ErrorIs(t, err, ErrTransient)
		require.Equal(t, int32(4), calls.Load())
	})

	t.Run("not found is never retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
			calls.Add(1)
			http.NotFound(res, req)
		}))
		defer server.Close()

		_, err := testFetcherFor(t, server.URL).Fetch(ctx, addr)
		require.ErrorIs(t, err, ErrNotFound)
		require.Equal(t, int32(1), calls.Load())
	})
}

func TestFetcherReauthentication(t *testing.T) {
	ctx := context.Background()
	addr := ProblemAddress(2002, "AMC_10A", 1)

	t.Run("expired session refreshes once and retries", func(t *testing.T) {
		wiki := newTestWiki(t)
		wiki.setRequireAuth(true)
		wiki.put("/2002_AMC_10A_Problems/Problem_1", wikiPage("<p>hello</p>"))

		session := newTestSession(t, wiki)
		fetcher := NewFetcher(session, FetcherOptions{RetryBaseWait: time.Millisecond})

		// no Login call beforehand: the first fetch hits the auth wall
		// and recovers on its own
		page, err := fetcher.Fetch(ctx, addr)
		require.NoError(t, err)
		require.Contains(t, string(page.Body), "hello")
		require.Equal(t, 1, wiki.loginCount())
	})

	t.Run("second challenge after refresh is fatal", func(t *testing.T) {
		wiki := newTestWiki(t)
		wiki.setAlwaysChallenge(true)

		session := newTestSession(t, wiki)
		fetcher := NewFetcher(session, FetcherOptions{RetryBaseWait: time.Millisecond})

		_, err := fetcher.Fetch(ctx, addr)
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		require.Equal(t, AuthSessionRejected, authErr.Reason)
		require.Equal(t, 1, wiki.loginCount())
	})

	t.Run("cancellation interrupts backoff", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, _ *http.Request) {
			res.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		session, err := NewSession(SessionOptions{
			Templates:         Templates{BaseUrl: server.URL},
			RequestsPerSecond: 1000,
			Burst:             100,
		})
		require.NoError(t, err)
		fetcher := NewFetcher(session, FetcherOptions{
			MaxRetries:    10,
			RetryBaseWait: time.Second * 10,
		})

		ctx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(time.Millisecond * 50)
			cancel()
		}()

		start := time.Now()
		_, err = fetcher.Fetch(ctx, addr)
		require.Error(t, err)
		require.Less(t, time.Since(start), time.Second*5)
	})
}
