// Package server exposes the batch trigger and reporting API for forkcast.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/forkcast/internal/config"
	gormdb "github.com/thebtf/forkcast/internal/db/gorm"
	"github.com/thebtf/forkcast/internal/llm"
)

// Service wires the store, the classifier boundary, and the HTTP routes.
type Service struct {
	cfg       *config.Config
	store     *gormdb.Store
	completer llm.Completer
	router    chi.Router
	startTime time.Time
}

// NewService creates the ops service. completer may be nil when the
// configuration is dry-run only.
func NewService(cfg *config.Config, store *gormdb.Store, completer llm.Completer) *Service {
	s := &Service{
		cfg:       cfg,
		store:     store,
		completer: completer,
		startTime: time.Now(),
	}
	s.router = s.routes()
	return s
}

// Router returns the HTTP handler.
func (s *Service) Router() http.Handler {
	return s.router
}

func (s *Service) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/catalog", s.handleCatalogLookup)
	r.Get("/reports/diets", s.handleDietReport)
	r.Get("/reports/costs", s.handleCostReport)

	r.Group(func(r chi.Router) {
		if s.cfg.AuthToken != "" {
			r.Use(bearerAuth(s.cfg.AuthToken))
		}
		r.Post("/ops/simulate", s.handleSimulate)
		r.Post("/ops/seed", s.handleSeed)
	})

	return r
}

// newBatchClient builds a fresh classifier client scoped to one batch.
// budgetOverride, when non-nil, replaces the configured call budget for
// this batch only; the configuration itself is never mutated.
func (s *Service) newBatchClient(budgetOverride *int64) *llm.Client {
	budget := llm.Unlimited()
	limit := s.cfg.CallBudget
	if budgetOverride != nil {
		limit = budgetOverride
	}
	if limit != nil {
		budget = llm.NewBudget(*limit)
	}

	catalogStore := gormdb.NewCatalogStore(s.store.DB)
	return llm.NewClient(s.completer, catalogStore, budget, llm.ClientConfig{
		Model:            s.cfg.Model,
		PricePer1KInput:  s.cfg.PricePer1KInput,
		PricePer1KOutput: s.cfg.PricePer1KOutput,
		DryRun:           s.cfg.DryRun,
	})
}

// requestLogger logs each request with method, path, and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("http.request")
	})
}

// bearerAuth rejects requests without the configured bearer token.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+token {
				writeError(w, http.StatusUnauthorized, "invalid or missing token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Serve runs the HTTP server until the context is canceled.
func (s *Service) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("server.listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
