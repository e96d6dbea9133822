// Package api serves the reconciliation procedures over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/courtneys-list/vendors/internal/reconcile"
	"github.com/courtneys-list/vendors/internal/store"
	"github.com/courtneys-list/vendors/internal/survey"
	"github.com/courtneys-list/vendors/pkg/google"
)

// DefaultPreferenceTTL applies when a PUT omits ttl_seconds.
const DefaultPreferenceTTL = 30 * 24 * time.Hour

// Config configures the HTTP surface.
type Config struct {
	CORSOrigins   []string
	PreferenceTTL time.Duration
}

// Deps are the services behind the handlers. Places may be nil.
type Deps struct {
	Store    store.Store
	Matcher  *reconcile.Matcher
	Approver *reconcile.Approver
	Bulk     *reconcile.BulkApprover
	Importer *survey.Importer
	Places   google.Client
}

// Server holds the handlers.
type Server struct {
	deps   Deps
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
	router chi.Router
}

// New creates a Server and builds its routes.
func New(deps Deps, cfg Config) *Server {
	if cfg.PreferenceTTL <= 0 {
		cfg.PreferenceTTL = DefaultPreferenceTTL
	}
	s := &Server{
		deps: deps,
		cfg:  cfg,
		log:  zap.L().With(zap.String("component", "api")),
		now:  time.Now,
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/communities/{community}", func(r chi.Router) {
		r.Get("/progress", s.handleProgress)
		r.Get("/matches/exact", s.handleExact)
		r.Get("/matches/fuzzy", s.handleFuzzy)
		r.Get("/matches/unmatched", s.handleUnmatched)
		r.Post("/approve", s.handleApprove)
		r.Post("/approve-exact", s.handleApproveExact)
		r.Post("/vendors", s.handleCreateVendor)
	})

	r.Get("/vendors", s.handleSearchVendors)
	r.Post("/vendors/{id}/copy", s.handleCopyVendor)
	r.Get("/places", s.handlePlaces)
	r.Post("/surveys", s.handleSubmitSurvey)

	r.Route("/preferences/{key}", func(r chi.Router) {
		r.Get("/", s.handleGetPreference)
		r.Put("/", s.handlePutPreference)
		r.Delete("/", s.handleDeletePreference)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
