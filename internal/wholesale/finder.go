package wholesale

import (
	"context"
	"log/slog"

	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/events"
	"github.com/maltedev/wholesale-finder/internal/models"
)

const DefaultMaxResults = 10

// Searcher runs a marketplace search for one query.
type Searcher interface {
	SearchProducts(ctx context.Context, term string, maxResults int) []*models.ScrapeResult
}

// Finder looks up wholesale listings that match a retail product title.
type Finder struct {
	searcher Searcher
	scorer   *Scorer
	cfg      config.RankingConfig
	logger   *slog.Logger
	progress events.Sink
}

func NewFinder(searcher Searcher, cfg config.RankingConfig, logger *slog.Logger, progress events.Sink) *Finder {
	return &Finder{
		searcher: searcher,
		scorer:   NewScorer(cfg),
		cfg:      cfg,
		logger:   logger.With("component", "wholesale_finder"),
		progress: events.OrDiscard(progress),
	}
}

// FindWholesaleEquivalent searches the first few title variants, pools the
// candidates and returns the best maxResults after scoring and
// deduplication. It returns an empty slice, never an error, when nothing
// matches.
func (f *Finder) FindWholesaleEquivalent(ctx context.Context, title string, maxResults int) []*models.RankedResult {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	variants := SearchVariations(title, f.cfg.MinVariantLength)
	if len(variants) > f.cfg.SearchedVariants {
		variants = variants[:f.cfg.SearchedVariants]
	}

	f.logger.Info("finding wholesale equivalent", "title", title, "variants", variants)
	f.progress.OnProgress(ctx, events.New(events.WholesaleStarted, "finding wholesale equivalent",
		"title", title, "variants", variants))

	var pooled []*models.RankedResult
	for i, variant := range variants {
		if ctx.Err() != nil {
			f.logger.Warn("wholesale lookup cancelled", "title", title, "error", ctx.Err())
			break
		}

		results := f.searcher.SearchProducts(ctx, variant, f.cfg.ResultsPerVariant)
		f.logger.Info("search variant finished", "variant", variant, "results", len(results))
		f.progress.OnProgress(ctx, events.New(events.WholesaleVariant, "search variant finished",
			"variant", variant, "index", i, "results", len(results)))

		pooled = append(pooled, f.scorer.Rank(title, results)...)
	}

	unique := f.scorer.Deduplicate(pooled)
	SortByScore(unique)
	if len(unique) > maxResults {
		unique = unique[:maxResults]
	}
	if unique == nil {
		unique = []*models.RankedResult{}
	}

	f.progress.OnProgress(ctx, events.New(events.WholesaleCompleted, "wholesale lookup completed",
		"title", title, "candidates", len(pooled), "results", len(unique)))
	return unique
}
