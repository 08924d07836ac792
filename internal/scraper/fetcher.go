package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/maltedev/wholesale-finder/internal/config"
)

const maxBodySize = 10 << 20

// HTTPFetcher performs plain GET requests with browser-like headers after a
// fixed politeness delay.
type HTTPFetcher struct {
	client  *http.Client
	headers map[string]string
	delay   time.Duration
}

func NewHTTPFetcher(site config.SiteConfig) *HTTPFetcher {
	return &HTTPFetcher{
		client:  newClient(site.Timeout, true),
		headers: site.Headers,
		delay:   site.RequestDelay,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := sleep(ctx, f.delay); err != nil {
		return nil, err
	}
	return get(ctx, f.client, url, f.headers)
}

func newClient(timeout time.Duration, withJar bool) *http.Client {
	client := &http.Client{Timeout: timeout}
	if withJar {
		jar, _ := cookiejar.New(nil)
		client.Jar = jar
	}
	return client
}

func get(ctx context.Context, client *http.Client, url string, headers map[string]string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	applyHeaders(req, headers)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &Page{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// applyHeaders copies headers onto req. Accept-Encoding is left to the
// transport so compressed bodies are decoded transparently.
func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		if strings.EqualFold(k, "Accept-Encoding") {
			continue
		}
		req.Header.Set(k, v)
	}
}
