package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bettycrystal/betty-backend/internal/betty"
	"github.com/bettycrystal/betty-backend/internal/market"
	"github.com/bettycrystal/betty-backend/models"
)

// Options carries everything the HTTP surface needs. Now is overridable for
// tests and defaults to time.Now.
type Options struct {
	Addr       string
	Cache      *market.Cache
	Generator  *betty.Generator
	Evaluator  *betty.Evaluator
	Aggregator *betty.Aggregator
	Store      models.PredictionStore
	Now        func() time.Time
}

// Server is the JSON API over the snapshot cache and the prediction engine
type Server struct {
	router     *mux.Router
	server     *http.Server
	cache      *market.Cache
	generator  *betty.Generator
	evaluator  *betty.Evaluator
	aggregator *betty.Aggregator
	store      models.PredictionStore
	now        func() time.Time
	logger     zerolog.Logger
}

// New creates the server and wires its routes
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		router:     mux.NewRouter(),
		cache:      opts.Cache,
		generator:  opts.Generator,
		evaluator:  opts.Evaluator,
		aggregator: opts.Aggregator,
		store:      opts.Store,
		now:        opts.Now,
		logger:     log.With().Str("component", "http_server").Logger(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.corsMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	// Market snapshots
	api.HandleFunc("/currencies", s.handleQuotes(models.ClassCurrency)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/crypto", s.handleQuotes(models.ClassCrypto)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/metals", s.handleQuotes(models.ClassMetal)).Methods(http.MethodGet, http.MethodOptions)

	// Betty
	api.HandleFunc("/betty/current-week", s.handleCurrentWeek).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/betty/predictions", s.handlePredictions).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/betty/history", s.handleHistory).Methods(http.MethodGet, http.MethodOptions)
}

// Handler exposes the routed handler for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("Request handled")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
