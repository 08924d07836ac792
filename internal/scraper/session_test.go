package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/maltedev/wholesale-finder/internal/events"
	"github.com/maltedev/wholesale-finder/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLimiter struct {
	calls atomic.Int32
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.calls.Add(1)
	return ctx.Err()
}

func forbidden(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "Access Denied", http.StatusForbidden)
}

func TestBypassSession_DirectSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Macintosh")
		fmt.Fprint(w, "<html>ok</html>")
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	session := NewBypassSession(testSite(srv.URL), slog.Default(), WithLimiter(limiter))

	page, err := session.SafeRequest(context.Background(), srv.URL+"/product/1.html")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "<html>ok</html>", string(page.Body))
	assert.Equal(t, int32(1), limiter.calls.Load())
}

func TestBypassSession_FallsBackToMobile(t *testing.T) {
	desktop := httptest.NewServer(http.HandlerFunc(forbidden))
	defer desktop.Close()

	mobile := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("User-Agent"), "iPhone") {
			forbidden(w, r)
			return
		}
		fmt.Fprintf(w, "<html>%s</html>", r.URL.Path)
	}))
	defer mobile.Close()

	site := testSite(desktop.URL)
	site.MobileBaseURL = mobile.URL
	sink := &recordingSink{}
	limiter := &countingLimiter{}

	session := NewBypassSession(site, slog.Default(), WithLimiter(limiter), WithProgress(sink))
	page, err := session.SafeRequest(context.Background(), desktop.URL+"/product/42.html")

	require.NoError(t, err)
	assert.Equal(t, "<html>/product/42.html</html>", string(page.Body))
	assert.Equal(t, int32(2), limiter.calls.Load())
	assert.Equal(t, []events.Type{events.RequestStrategyFailed}, sink.types())
}

func TestBypassSession_WarmupCarriesCookies(t *testing.T) {
	var robotsHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			robotsHits.Add(1)
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "warm", Path: "/"})
			fmt.Fprint(w, "User-agent: *")
		default:
			if c, err := r.Cookie("session"); err != nil || c.Value != "warm" {
				forbidden(w, r)
				return
			}
			fmt.Fprint(w, "<html>welcome back</html>")
		}
	}))
	defer srv.Close()

	session := NewBypassSession(testSite(srv.URL), slog.Default(), WithLimiter(ratelimit.Noop{}))
	page, err := session.SafeRequest(context.Background(), srv.URL+"/product/7.html")

	require.NoError(t, err)
	assert.Equal(t, "<html>welcome back</html>", string(page.Body))
	assert.Equal(t, int32(1), robotsHits.Load())
}

func TestBypassSession_AllStrategiesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(forbidden))
	defer srv.Close()

	site := testSite(srv.URL)
	site.MobileBaseURL = srv.URL
	sink := &recordingSink{}

	session := NewBypassSession(site, slog.Default(), WithLimiter(ratelimit.Noop{}), WithProgress(sink))
	page, err := session.SafeRequest(context.Background(), srv.URL+"/product/1.html")

	assert.Nil(t, page)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllStrategiesFailed))
	assert.Equal(t, []events.Type{
		events.RequestStrategyFailed,
		events.RequestStrategyFailed,
		events.RequestStrategyFailed,
		events.RequestExhausted,
	}, sink.types())
}

func TestBypassSession_FallbackStrategy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(forbidden))
	defer srv.Close()

	var fallbackCalls int
	fallback := stubFetcher{fetch: func(_ context.Context, url string) (*Page, error) {
		fallbackCalls++
		return &Page{URL: url, StatusCode: http.StatusOK, Body: []byte("<html>rendered</html>")}, nil
	}}

	session := NewBypassSession(testSite(srv.URL), slog.Default(),
		WithLimiter(ratelimit.Noop{}), WithFallback("browser", fallback))
	page, err := session.SafeRequest(context.Background(), srv.URL+"/product/1.html")

	require.NoError(t, err)
	assert.Equal(t, "<html>rendered</html>", string(page.Body))
	assert.Equal(t, 1, fallbackCalls)
}

func TestBypassSession_LimiterErrorStops(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := NewBypassSession(testSite(srv.URL), slog.Default(), WithLimiter(&countingLimiter{}))
	_, err := session.SafeRequest(ctx, srv.URL+"/product/1.html")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, hits.Load())
}

func TestBypassSession_MobileURL(t *testing.T) {
	site := testSite("https://www.dhgate.com/")
	site.MobileBaseURL = "https://m.dhgate.com"
	session := NewBypassSession(site, slog.Default())

	assert.Equal(t, "https://m.dhgate.com/product/abc/1.html", session.MobileURL("https://www.dhgate.com/product/abc/1.html"))
	assert.Equal(t, "https://example.com/product/1.html", session.MobileURL("https://example.com/product/1.html"))

	site.MobileBaseURL = ""
	noMobile := NewBypassSession(site, slog.Default())
	url := "https://www.dhgate.com/product/abc/1.html"
	assert.Equal(t, url, noMobile.MobileURL(url))
}
