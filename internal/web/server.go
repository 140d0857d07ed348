// Package web serves the reconciliation API: dataset upload and inspection,
// lookup merges, exports and merge history.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/tabrecon/internal/config"
	"github.com/JonMunkholm/tabrecon/internal/core"
	"github.com/JonMunkholm/tabrecon/internal/web/middleware"
)

const contentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'"

// Server is the HTTP server.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	limiters []*middleware.RateLimiter
}

// NewServer wires routes and middleware for service.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(s.securityHeaders)
	s.router.Use(requestMeta)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute).Middleware)
	}
}

func (s *Server) newLimiter(perMinute int) *middleware.RateLimiter {
	rl := middleware.NewRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security))

		r.Route("/datasets", func(r chi.Router) {
			upload := r.With()
			if s.cfg.Rate.Enabled {
				upload = r.With(s.newLimiter(s.cfg.Rate.UploadLimit).Middleware)
			}
			upload.Post("/", s.handleUploadDataset)
			r.Get("/", s.handleListDatasets)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDataset)
				r.Delete("/", s.handleDeleteDataset)
				r.Get("/blanks", s.handleBlankCounts)
				r.Get("/profile", s.handleProfile)
				r.Get("/distinct/{col}", s.handleDistinctValues)
				r.Get("/records", s.handleRecords)
				r.Get("/export", s.handleExportDataset)
			})
		})

		r.Post("/merge", s.handleMerge)
		r.Post("/merge/export", s.handleMergeExport)
		r.Post("/export/pivot", s.handlePivotExport)
		r.Get("/history", s.handleHistory)
		r.Get("/load-status", s.handleLoadStatus)
	})
}

// Start listens on the configured address. Rate limiter cleanup runs until
// ctx is done.
func (s *Server) Start(ctx context.Context) error {
	for _, rl := range s.limiters {
		go rl.RunCleanup(ctx)
	}

	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v with status. Encoding errors are only logged because
// the header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err, "request_id", chimw.GetReqID(r.Context()))
	}
}
