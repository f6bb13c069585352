// Package dashboard serves the economic dashboard pages and its JSON API.
package dashboard

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"EconDash/internal/accumulator"
	"EconDash/internal/metrics"
	"EconDash/internal/model"
	"EconDash/internal/recorder"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

// MarketData is the markets provider as the dashboard uses it.
type MarketData interface {
	Indices(ctx context.Context) ([]model.IndexQuote, error)
	History(ctx context.Context, symbol string, start, end model.Date) ([]model.IndexBar, error)
}

// Options wires the dashboard to the rest of the application.
type Options struct {
	Accumulator *accumulator.Accumulator
	Series      []model.SeriesSpec
	Markets     MarketData // nil hides the indices section
	Recorder    recorder.Recorder
	Metrics     *metrics.Metrics
	Version     string
}

// Server is the dashboard HTTP server.
type Server struct {
	router   chi.Router
	pages    *template.Template
	acc      *accumulator.Accumulator
	series   []model.SeriesSpec
	markets  MarketData
	recorder recorder.Recorder
	metrics  *metrics.Metrics
	version  string
	now      func() time.Time
}

// New parses the page templates and builds the router.
func New(opts Options) (*Server, error) {
	if opts.Accumulator == nil {
		return nil, errors.New("dashboard: accumulator is required")
	}
	pages, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	rec := opts.Recorder
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	s := &Server{
		pages:    pages,
		acc:      opts.Accumulator,
		series:   opts.Series,
		markets:  opts.Markets,
		recorder: rec,
		metrics:  opts.Metrics,
		version:  opts.Version,
		now:      time.Now,
	}
	s.router = s.buildRouter()
	return s, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] dashboard listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("[INFO] shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// Pages
	r.Get("/", s.handleOverview)
	r.Get("/series/{name}", s.handleSeriesPage)
	r.Get("/indices", s.handleIndicesPage)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/series", s.handleListSeries)
		r.Get("/series/{name}", s.handleGetSeries)
		r.Get("/indices", s.handleIndices)
		r.Get("/indices/{symbol}/history", s.handleIndexHistory)
		r.Get("/runs", s.handleRuns)
	})

	return r
}

func (s *Server) findSeries(name string) (model.SeriesSpec, bool) {
	for _, spec := range s.series {
		if spec.Name == name {
			return spec, true
		}
	}
	return model.SeriesSpec{}, false
}
