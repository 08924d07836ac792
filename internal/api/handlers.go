package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/wholesale-finder/internal/amazon"
	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/jobs"
	"github.com/maltedev/wholesale-finder/internal/models"
	"github.com/maltedev/wholesale-finder/internal/parser"
	"github.com/maltedev/wholesale-finder/internal/queue"
	"github.com/maltedev/wholesale-finder/internal/shopping"
	"github.com/maltedev/wholesale-finder/internal/wholesale"
)

const (
	defaultSearchResults = 5
	defaultAmazonResults = 3
	maxRequestResults    = 50
)

type ProductScraper interface {
	ScrapeProduct(ctx context.Context, url string) *models.ScrapeResult
	ScrapeProducts(ctx context.Context, urls []string) []*models.ScrapeResult
}

type ProductSearch interface {
	SearchProducts(ctx context.Context, term string, maxResults int) []*models.ScrapeResult
	TestConnection(ctx context.Context) (string, error)
}

type WholesaleFinder interface {
	FindWholesaleEquivalent(ctx context.Context, title string, maxResults int) []*models.RankedResult
}

type RetailLookup interface {
	TopProducts(ctx context.Context, term string, maxResults int) ([]amazon.Product, error)
}

type SellerLookup interface {
	ShoppingSearch(ctx context.Context, q string) ([]shopping.Result, error)
	FindWholesalers(ctx context.Context, identifier string) ([]shopping.Seller, error)
}

type JobManager interface {
	CreateJob(ctx context.Context, title string, maxResults int, retailPrice float64) (*jobs.Job, error)
	GetJob(ctx context.Context, jobID string) (*jobs.Job, error)
	ListJobs(ctx context.Context) []*jobs.Job
	GetStats(ctx context.Context) *jobs.Stats
}

// Deps are the services behind the HTTP API. Amazon and Shopping may be nil
// when no API key is configured. Scrape requests are limited to the hosts of
// Site.BaseURL and Site.MobileBaseURL.
type Deps struct {
	Site     config.SiteConfig
	Scraper  ProductScraper
	Search   ProductSearch
	Finder   WholesaleFinder
	Amazon   RetailLookup
	Shopping SellerLookup
	Jobs     JobManager
}

type Handlers struct {
	deps   Deps
	logger *slog.Logger
}

func NewHandlers(deps Deps, logger *slog.Logger) *Handlers {
	return &Handlers{
		deps:   deps,
		logger: logger.With("component", "api"),
	}
}

// ScrapeRequest represents a single product scrape request
type ScrapeRequest struct {
	URL string `json:"url"`
}

// ScrapeResponse is a scrape result plus its completeness report for
// successful scrapes.
type ScrapeResponse struct {
	*models.ScrapeResult
	Completeness *models.Completeness `json:"completeness,omitempty"`
}

// ScrapeProduct handles single product extraction
func (h *Handlers) ScrapeProduct(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !parser.IsValidDHgateURL(req.URL) || !h.onSite(req.URL) {
		h.respondError(w, http.StatusBadRequest, "url is not a DHgate page")
		return
	}

	result := h.deps.Scraper.ScrapeProduct(r.Context(), req.URL)
	resp := ScrapeResponse{ScrapeResult: result}
	if result.Success {
		report := result.Completeness()
		resp.Completeness = &report
	}

	// item level failures are data, not transport errors
	h.respondJSON(w, http.StatusOK, resp)
}

// BatchScrapeRequest lists product URLs to scrape in order
type BatchScrapeRequest struct {
	URLs []string `json:"urls"`
}

type BatchScrapeResponse struct {
	Results   []*models.ScrapeResult `json:"results"`
	Total     int                    `json:"total"`
	Succeeded int                    `json:"succeeded"`
}

// ScrapeBatch scrapes several product URLs sequentially. The whole request is
// rejected if any URL is off-site.
func (h *Handlers) ScrapeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.URLs) == 0 {
		h.respondError(w, http.StatusBadRequest, "urls is required")
		return
	}
	if len(req.URLs) > maxRequestResults {
		h.respondError(w, http.StatusBadRequest, "too many urls (max "+strconv.Itoa(maxRequestResults)+")")
		return
	}

	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		u = strings.TrimSpace(u)
		if !parser.IsValidDHgateURL(u) || !h.onSite(u) {
			h.respondError(w, http.StatusBadRequest, "url is not a DHgate page: "+u)
			return
		}
		urls = append(urls, u)
	}

	results := h.deps.Scraper.ScrapeProducts(r.Context(), urls)
	resp := BatchScrapeResponse{Results: results, Total: len(results)}
	for _, res := range results {
		if res.Success {
			resp.Succeeded++
		}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// SearchRequest represents a marketplace search request
type SearchRequest struct {
	Term       string `json:"term"`
	MaxResults int    `json:"max_results"`
}

type SearchResponse struct {
	Term    string                 `json:"term"`
	Count   int                    `json:"count"`
	Results []*models.ScrapeResult `json:"results"`
}

// SearchProducts handles keyword search with per-result scraping
func (h *Handlers) SearchProducts(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Term = strings.TrimSpace(req.Term)
	if req.Term == "" {
		h.respondError(w, http.StatusBadRequest, "term is required")
		return
	}
	req.MaxResults = clampResults(req.MaxResults, defaultSearchResults)

	results := h.deps.Search.SearchProducts(r.Context(), req.Term, req.MaxResults)
	h.respondJSON(w, http.StatusOK, SearchResponse{
		Term:    req.Term,
		Count:   len(results),
		Results: results,
	})
}

// FindRequest represents a wholesale equivalent lookup
type FindRequest struct {
	Title       string  `json:"title"`
	MaxResults  int     `json:"max_results"`
	RetailPrice float64 `json:"retail_price"`
}

type FindResponse struct {
	Title      string                 `json:"title"`
	Count      int                    `json:"count"`
	Results    []*models.RankedResult `json:"results"`
	Comparison *wholesale.Comparison  `json:"comparison,omitempty"`
}

// FindWholesale runs the ranked wholesale lookup synchronously.
func (h *Handlers) FindWholesale(w http.ResponseWriter, r *http.Request) {
	var req FindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		h.respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.RetailPrice < 0 {
		h.respondError(w, http.StatusBadRequest, "retail_price cannot be negative")
		return
	}
	req.MaxResults = clampResults(req.MaxResults, wholesale.DefaultMaxResults)

	results := h.deps.Finder.FindWholesaleEquivalent(r.Context(), req.Title, req.MaxResults)
	resp := FindResponse{
		Title:   req.Title,
		Count:   len(results),
		Results: results,
	}

	if req.RetailPrice > 0 {
		comparison, err := wholesale.Compare(req.RetailPrice, results)
		if err != nil {
			h.logger.Error("failed to compare margins", "error", err)
		}
		resp.Comparison = comparison
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// CreateJobResponse represents the job creation response
type CreateJobResponse struct {
	JobID   string      `json:"job_id"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"message"`
}

// CreateJob queues an asynchronous wholesale lookup
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req FindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RetailPrice < 0 {
		h.respondError(w, http.StatusBadRequest, "retail_price cannot be negative")
		return
	}

	job, err := h.deps.Jobs.CreateJob(r.Context(), req.Title, clampResults(req.MaxResults, wholesale.DefaultMaxResults), req.RetailPrice)
	switch {
	case errors.Is(err, jobs.ErrEmptyTitle):
		h.respondError(w, http.StatusBadRequest, "title is required")
		return
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueClosed):
		h.respondError(w, http.StatusServiceUnavailable, "job queue is not accepting work")
		return
	case err != nil:
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateJobResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Job created successfully",
	})
}

// GetJob handles job status retrieval
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.deps.Jobs.GetJob(r.Context(), jobID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.deps.Jobs.ListJobs(r.Context()))
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.deps.Jobs.GetStats(r.Context()))
}

// AmazonProducts looks up retail listings for ?q= through the product API.
func (h *Handlers) AmazonProducts(w http.ResponseWriter, r *http.Request) {
	if h.deps.Amazon == nil {
		h.respondError(w, http.StatusServiceUnavailable, "amazon lookup is not configured")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := queryInt(r, "limit", defaultAmazonResults)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "limit must be a number")
		return
	}

	products, err := h.deps.Amazon.TopProducts(r.Context(), q, clampResults(limit, defaultAmazonResults))
	if err != nil {
		h.respondUpstreamError(w, "amazon", err)
		return
	}
	h.respondJSON(w, http.StatusOK, products)
}

// ShoppingProducts lists Google Shopping results for ?q=.
func (h *Handlers) ShoppingProducts(w http.ResponseWriter, r *http.Request) {
	if h.deps.Shopping == nil {
		h.respondError(w, http.StatusServiceUnavailable, "shopping lookup is not configured")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.respondError(w, http.StatusBadRequest, "q is required")
		return
	}

	results, err := h.deps.Shopping.ShoppingSearch(r.Context(), q)
	if err != nil {
		h.respondUpstreamError(w, "shopping", err)
		return
	}
	h.respondJSON(w, http.StatusOK, results)
}

// ShoppingSellers lists the online sellers of the first shopping match
// for ?q=.
func (h *Handlers) ShoppingSellers(w http.ResponseWriter, r *http.Request) {
	if h.deps.Shopping == nil {
		h.respondError(w, http.StatusServiceUnavailable, "shopping lookup is not configured")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.respondError(w, http.StatusBadRequest, "q is required")
		return
	}

	sellers, err := h.deps.Shopping.FindWholesalers(r.Context(), q)
	if err != nil {
		h.respondUpstreamError(w, "shopping", err)
		return
	}
	h.respondJSON(w, http.StatusOK, sellers)
}

// Health reports liveness. With ?deep=true it also checks that the
// marketplace is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	if h.deps.Jobs != nil {
		health["queue_size"] = h.deps.Jobs.GetStats(r.Context()).QueueSize
	}

	status := http.StatusOK
	if deep, _ := strconv.ParseBool(r.URL.Query().Get("deep")); deep {
		reachable, err := h.deps.Search.TestConnection(r.Context())
		if err != nil {
			health["status"] = "error"
			health["message"] = "marketplace unreachable"
			status = http.StatusServiceUnavailable
		} else {
			health["reachable"] = reachable
		}
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) onSite(u string) bool {
	var bases []string
	for _, base := range []string{h.deps.Site.BaseURL, h.deps.Site.MobileBaseURL} {
		if base != "" {
			bases = append(bases, base)
		}
	}
	return parser.OnSiteHost(u, bases...)
}

func (h *Handlers) respondUpstreamError(w http.ResponseWriter, upstream string, err error) {
	switch {
	case errors.Is(err, amazon.ErrEmptyQuery), errors.Is(err, shopping.ErrEmptyQuery):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, amazon.ErrMissingAPIKey), errors.Is(err, shopping.ErrMissingAPIKey):
		h.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("upstream lookup failed", "upstream", upstream, "error", err)
		h.respondError(w, http.StatusBadGateway, upstream+" lookup failed")
	}
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func clampResults(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return min(n, maxRequestResults)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
