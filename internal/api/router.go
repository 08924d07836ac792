package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/maltedev/wholesale-finder/internal/config"
)

// NewRouter mounts the handlers under /api/v1 with the standard middleware
// stack.
func NewRouter(h *Handlers, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.WriteTimeout > 0 {
		r.Use(middleware.Timeout(cfg.WriteTimeout))
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "https://localhost:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           int((5 * time.Minute).Seconds()),
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/dhgate", func(r chi.Router) {
			r.Post("/scrape", h.ScrapeProduct)
			r.Post("/scrape/batch", h.ScrapeBatch)
			r.Post("/search", h.SearchProducts)
		})

		r.Route("/wholesale", func(r chi.Router) {
			r.Post("/find", h.FindWholesale)
			r.Post("/jobs", h.CreateJob)
			r.Get("/jobs", h.ListJobs)
			r.Get("/jobs/{jobID}", h.GetJob)
			r.Get("/stats", h.GetStats)
		})

		r.Get("/amazon/products", h.AmazonProducts)

		r.Route("/shopping", func(r chi.Router) {
			r.Get("/products", h.ShoppingProducts)
			r.Get("/sellers", h.ShoppingSellers)
		})
	})

	return r
}
