package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/scraper"
	"github.com/playwright-community/playwright-go"
)

var ErrChallengePage = errors.New("bot challenge page served")

var challengeMarkers = []string{
	"slide to verify",
	"please slide",
	"verify you are human",
	"security verification",
	"unusual traffic",
}

// Browser renders pages in headless Chromium. It implements scraper.Fetcher
// and is used as the last request strategy of a bypass session.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger

	// serializes page use
	mu sync.Mutex
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return OptionsFromConfig(config.Default().Browser, config.DefaultSite().Headers)
}

// OptionsFromConfig builds launch options from the browser settings and the
// site's desktop headers. The User-Agent header becomes the context UA.
func OptionsFromConfig(cfg config.BrowserConfig, headers map[string]string) *Options {
	opts := &Options{
		Headless:       cfg.Headless,
		Timeout:        cfg.Timeout,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		TimezoneID:     cfg.TimezoneID,
		Locale:         cfg.Locale,
		ExtraHeaders:   make(map[string]string),
	}
	for k, v := range headers {
		switch {
		case strings.EqualFold(k, "User-Agent"):
			opts.UserAgent = v
		case strings.EqualFold(k, "Accept-Encoding"):
			// the browser negotiates encoding itself
		default:
			opts.ExtraHeaders[k] = v
		}
	}
	return opts
}

func New(opts *Options, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
		},
	}
	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: opts.ExtraHeaders,
	}
	if opts.UserAgent != "" {
		contextOpts.UserAgent = &opts.UserAgent
	}

	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: bctx,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

// Fetch navigates to url and returns the rendered HTML with the main
// response's status code.
func (b *Browser) Fetch(ctx context.Context, url string) (*scraper.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	defer page.Close()

	timeout := float64(b.opts.Timeout.Milliseconds())
	page.SetDefaultTimeout(timeout)

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	b.settle(page)

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to get page content: %w", err)
	}
	if IsChallengePage(content) {
		b.logger.Warn("challenge page detected", "url", url)
		return nil, ErrChallengePage
	}

	status := 200
	finalURL := page.URL()
	if resp != nil {
		status = resp.Status()
	}

	b.logger.Debug("page rendered", "url", finalURL, "status", status, "bytes", len(content))
	return &scraper.Page{
		URL:        finalURL,
		StatusCode: status,
		Body:       []byte(content),
	}, nil
}

// settle moves the mouse and scrolls a little so lazy-loaded prices and
// images render before the content is read.
func (b *Browser) settle(page playwright.Page) {
	for i := 0; i < 3; i++ {
		x := float64(100 + i*200)
		y := float64(100 + i*150)
		if err := page.Mouse().Move(x, y); err != nil {
			b.logger.Debug("mouse move failed", "error", err)
			return
		}
		time.Sleep(time.Millisecond * time.Duration(200+i*100))
	}
	if _, err := page.Evaluate(`window.scrollBy(0, Math.random() * 600)`); err != nil {
		b.logger.Debug("scroll failed", "error", err)
	}
}

// IsChallengePage reports whether rendered HTML is an anti-bot interstitial
// rather than the requested page.
func IsChallengePage(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}
