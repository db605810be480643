// Package api provides the HTTP server and handlers for the Unearthed API.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unearthedapp/unearthed-server/internal/ratelimit"
	"github.com/unearthedapp/unearthed-server/internal/search"
	"github.com/unearthedapp/unearthed-server/internal/service"
)

// Services bundles everything the handlers call.
type Services struct {
	Auth       *service.AuthService
	APIKeys    *service.APIKeyService
	Ingest     *service.IngestService
	Sources    *service.SourceService
	Tags       *service.TagService
	Reflection *service.ReflectionService
	Delivery   *service.DeliveryService
	NotionSync *service.NotionSyncService
	Profiles   *service.ProfileService
	AI         *service.AIService
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services    Services
	searchIndex *search.Index
	authLimiter *ratelimit.KeyedRateLimiter
	router      *chi.Mux
	logger      *slog.Logger
}

// NewServer creates the HTTP server with all routes configured.
func NewServer(services Services, searchIndex *search.Index, logger *slog.Logger) *Server {
	s := &Server{
		services:    services,
		searchIndex: searchIndex,
		// Credential guessing is the only brute-forceable surface; 10
		// auth attempts per minute per IP.
		authLimiter: ratelimit.New(10.0/60.0, 10),
		router:      chi.NewRouter(),
		logger:      logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases server-held resources.
func (s *Server) Close() {
	s.authLimiter.Stop()
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth endpoints (public, rate limited by IP).
		r.Route("/auth", func(r chi.Router) {
			r.Use(s.rateLimitByIP)
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/me", s.handleGetCurrentUser)
		})

		// Library ingestion and management.
		r.Route("/sources", func(r chi.Router) {
			r.Use(s.requireUser)
			r.Post("/", s.handleCreateSources)
			r.Get("/", s.handleListSources)
			r.Get("/{id}", s.handleGetSource)
			r.Patch("/{id}", s.handleUpdateSource)
			r.Post("/{id}/tags", s.handleAttachTag)
			r.Delete("/{id}/tags/{tagID}", s.handleDetachTag)
		})
		r.With(s.requireUser).Post("/quotes", s.handleCreateQuotes)
		r.With(s.requireUser).Post("/kindle/import", s.handleKindleImport)

		r.With(s.requireUser).Get("/reflection", s.handleGetReflection)
		r.With(s.requireUser).Get("/tags", s.handleListTags)
		r.With(s.requireUser).Get("/search", s.handleSearch)

		r.Route("/api-keys", func(r chi.Router) {
			r.Use(s.requireUser)
			r.Post("/", s.handleCreateAPIKey)
			r.Get("/", s.handleListAPIKeys)
			r.Delete("/{id}", s.handleDeleteAPIKey)
		})

		r.Route("/ai", func(r chi.Router) {
			r.Use(s.requireUser)
			r.Post("/chat", s.handleAIChat)
			r.Post("/blind-spots", s.handleAIBlindSpots)
			r.Post("/recommendations", s.handleAIRecommendations)
		})

		r.Route("/integrations", func(r chi.Router) {
			r.Use(s.requireUser)
			r.Post("/notion/connect", s.handleConnectNotion)
			r.Post("/capacities", s.handleConnectCapacities)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/", s.handleGetProfile)
			r.Patch("/", s.handleUpdateProfile)
		})

		// Webhooks and scheduled jobs authenticate with shared secrets,
		// never user credentials.
		r.With(s.requireCron).Post("/webhooks/billing", s.handleBillingWebhook)
		r.Route("/jobs", func(r chi.Router) {
			r.Use(s.requireCron)
			r.Post("/daily-email", s.handleJobDailyEmail)
			r.Post("/capacities", s.handleJobCapacities)
			r.Post("/notion-enqueue", s.handleJobNotionEnqueue)
			r.Post("/notion-sync/{shard}", s.handleJobNotionSync)
		})
	})
}
