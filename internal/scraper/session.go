package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/events"
	"github.com/maltedev/wholesale-finder/internal/ratelimit"
)

type strategy struct {
	name string
	do   func(ctx context.Context, url string) (*Page, error)
}

// BypassSession fetches pages through an ordered list of request
// strategies and returns the first 200 response. Every attempt waits on a
// shared courtesy limiter first.
type BypassSession struct {
	site       config.SiteConfig
	direct     *http.Client
	session    *http.Client
	limiter    ratelimit.RateLimiter
	strategies []strategy
	logger     *slog.Logger
	progress   events.Sink
}

type SessionOption func(*BypassSession)

// WithLimiter replaces the courtesy limiter built from the site config.
func WithLimiter(l ratelimit.RateLimiter) SessionOption {
	return func(b *BypassSession) {
		b.limiter = l
	}
}

// WithFallback appends an extra strategy, such as a headless browser,
// tried after the built-in ones.
func WithFallback(name string, f Fetcher) SessionOption {
	return func(b *BypassSession) {
		b.strategies = append(b.strategies, strategy{name: name, do: f.Fetch})
	}
}

func WithProgress(sink events.Sink) SessionOption {
	return func(b *BypassSession) {
		b.progress = events.OrDiscard(sink)
	}
}

func NewBypassSession(site config.SiteConfig, logger *slog.Logger, opts ...SessionOption) *BypassSession {
	b := &BypassSession{
		site:     site,
		direct:   newClient(site.Timeout, false),
		session:  newClient(site.Timeout, true),
		limiter:  ratelimit.NewCourtesyLimiter(site.MinInterval, site.JitterMin, site.JitterMax),
		logger:   logger.With("component", "bypass_session"),
		progress: events.Discard,
	}
	b.strategies = []strategy{
		{name: "direct", do: b.directRequest},
		{name: "mobile", do: b.mobileRequest},
		{name: "session_warmup", do: b.warmupRequest},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SafeRequest returns the first page fetched with status 200, or
// ErrAllStrategiesFailed.
func (b *BypassSession) SafeRequest(ctx context.Context, url string) (*Page, error) {
	for _, s := range b.strategies {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := s.do(ctx, url)
		if err == nil && page.StatusCode == http.StatusOK {
			b.logger.Debug("request succeeded", "strategy", s.name, "url", url)
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if err == nil {
			err = fmt.Errorf("%w: %d", ErrUnexpectedStatus, page.StatusCode)
		}
		b.logger.Debug("request strategy failed", "strategy", s.name, "url", url, "error", err)
		b.progress.OnProgress(ctx, events.New(events.RequestStrategyFailed, "request strategy failed",
			"strategy", s.name, "url", url, "error", err.Error()))
	}

	b.progress.OnProgress(ctx, events.New(events.RequestExhausted, "all request strategies failed", "url", url))
	return nil, fmt.Errorf("%w: %s", ErrAllStrategiesFailed, url)
}

func (b *BypassSession) directRequest(ctx context.Context, url string) (*Page, error) {
	return get(ctx, b.direct, url, b.site.Headers)
}

func (b *BypassSession) mobileRequest(ctx context.Context, url string) (*Page, error) {
	return get(ctx, b.direct, b.MobileURL(url), b.site.MobileHeaders)
}

// warmupRequest visits robots.txt first so the session carries the site's
// cookies into the real request.
func (b *BypassSession) warmupRequest(ctx context.Context, url string) (*Page, error) {
	robots := strings.TrimRight(b.site.BaseURL, "/") + "/robots.txt"
	if _, err := get(ctx, b.session, robots, b.site.Headers); err != nil {
		b.logger.Debug("warm-up request failed", "url", robots, "error", err)
	}
	if err := sleep(ctx, b.site.WarmupDelay); err != nil {
		return nil, err
	}
	return get(ctx, b.session, url, b.site.Headers)
}

// MobileURL rewrites a desktop-site URL onto the mobile host. URLs outside
// the desktop site are returned unchanged.
func (b *BypassSession) MobileURL(url string) string {
	base := strings.TrimRight(b.site.BaseURL, "/")
	mobile := strings.TrimRight(b.site.MobileBaseURL, "/")
	if mobile == "" || !strings.HasPrefix(url, base) {
		return url
	}
	return mobile + strings.TrimPrefix(url, base)
}
