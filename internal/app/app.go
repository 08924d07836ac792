package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/wholesale-finder/internal/amazon"
	"github.com/maltedev/wholesale-finder/internal/browser"
	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/events"
	"github.com/maltedev/wholesale-finder/internal/scraper"
	"github.com/maltedev/wholesale-finder/internal/shopping"
	"github.com/maltedev/wholesale-finder/internal/wholesale"
	"github.com/redis/go-redis/v9"
)

// Pipeline holds the wired scraping services shared by the CLI and the
// API server.
type Pipeline struct {
	Config   *config.Config
	Progress events.Sink
	Session  *scraper.BypassSession
	Scraper  *scraper.ProductScraper
	Search   *scraper.Search
	Finder   *wholesale.Finder

	// nil when the API key is not configured
	Amazon   *amazon.Client
	Shopping *shopping.Client

	closers []func() error
}

// Build wires the pipeline from cfg. Redis is required when enabled; the
// browser fallback is skipped with a warning if it cannot start.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	p := &Pipeline{Config: cfg}

	sinks := events.Multi{events.NewLogSink(logger)}
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		p.closers = append(p.closers, client.Close)
		sinks = append(sinks, events.NewRedisSink(client, cfg.Redis.Stream, logger))
		logger.Info("publishing progress to redis", "stream", cfg.Redis.Stream)
	}
	p.Progress = sinks

	sessionOpts := []scraper.SessionOption{scraper.WithProgress(p.Progress)}
	if cfg.Browser.Enabled {
		b, err := browser.New(browser.OptionsFromConfig(cfg.Browser, cfg.Site.Headers), logger)
		if err != nil {
			logger.Warn("browser fallback disabled", "error", err)
		} else {
			p.closers = append(p.closers, b.Close)
			sessionOpts = append(sessionOpts, scraper.WithFallback("browser", b))
		}
	}

	p.Session = scraper.NewBypassSession(cfg.Site, logger, sessionOpts...)
	p.Scraper = scraper.NewProductScraper(scraper.NewHTTPFetcher(cfg.Site), cfg.Site, logger, p.Progress)
	p.Search = scraper.NewSearch(p.Session, p.Scraper, cfg.Site, logger, p.Progress)
	p.Finder = wholesale.NewFinder(p.Search, cfg.Ranking, logger, p.Progress)

	if cfg.Amazon.APIKey != "" {
		p.Amazon = amazon.NewClient(cfg.Amazon, logger)
	}
	if cfg.Shopping.APIKey != "" {
		p.Shopping = shopping.NewClient(cfg.Shopping, logger)
	}

	return p, nil
}

// Close releases the browser and redis connections in reverse order.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
