package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/locolive/proconnect/internal/auth"
	"github.com/locolive/proconnect/internal/backend"
	"github.com/locolive/proconnect/internal/config"
	"github.com/locolive/proconnect/internal/metrics"
	"github.com/locolive/proconnect/internal/middleware"
)

// Router holds all handlers and creates the chi router
type Router struct {
	authHandler         *AuthHandler
	connectionHandler   *ConnectionHandler
	feedHandler         *FeedHandler
	notificationHandler *NotificationHandler
	healthHandler       *HealthHandler
	jwtManager          *auth.JWTManager
	cfg                 *config.Config
	logger              *zap.Logger
}

// NewRouter creates every handler on top of service
func NewRouter(service *backend.Service, jwtManager *auth.JWTManager, health *HealthHandler, cfg *config.Config, logger *zap.Logger) *Router {
	return &Router{
		authHandler:         NewAuthHandler(service, jwtManager, logger),
		connectionHandler:   NewConnectionHandler(service, logger),
		feedHandler:         NewFeedHandler(service, logger),
		notificationHandler: NewNotificationHandler(service, logger),
		healthHandler:       health,
		jwtManager:          jwtManager,
		cfg:                 cfg,
		logger:              logger,
	}
}

// Setup configures and returns the chi router
func (rt *Router) Setup() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RecoveryMiddleware(rt.logger))
	r.Use(middleware.LoggingMiddleware(rt.logger))
	if rt.cfg.Metrics.Enabled {
		r.Use(middleware.MetricsMiddleware)
	}
	r.Use(middleware.CORSMiddleware(rt.cfg.Server.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))

	// Health endpoints (no auth required)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", rt.healthHandler.Health)
		r.Get("/ready", rt.healthHandler.Ready)
		r.Get("/live", rt.healthHandler.Live)
	})

	if rt.cfg.Metrics.Enabled {
		r.Method(http.MethodGet, rt.cfg.Metrics.Path, metrics.Handler())
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/token", rt.authHandler.Token)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(rt.jwtManager))

			r.Get("/me", rt.authHandler.Me)
			r.Get("/users", rt.authHandler.ListUsers)

			r.Route("/connections", func(r chi.Router) {
				r.Get("/requests", rt.connectionHandler.GetRequests)
				r.Post("/requests", rt.connectionHandler.SendRequest)
				r.Post("/requests/{id}/respond", rt.connectionHandler.RespondRequest)
				r.Delete("/requests/{id}", rt.connectionHandler.WithdrawRequest)

				r.Get("/connections", rt.connectionHandler.GetConnections)
				r.Delete("/connections/{id}", rt.connectionHandler.RemoveConnection)

				r.Get("/follows", rt.connectionHandler.GetFollowing)
				r.Get("/follows/followers", rt.connectionHandler.GetFollowers)
				r.Post("/follows", rt.connectionHandler.Follow)
				r.Delete("/follows/{user_id}", rt.connectionHandler.Unfollow)
			})

			r.Route("/posts", func(r chi.Router) {
				r.Get("/", rt.feedHandler.ListPosts)
				r.Post("/", rt.feedHandler.CreatePost)
				r.Post("/{id}/like", rt.feedHandler.Like)
			})

			r.Route("/comments", func(r chi.Router) {
				r.Get("/", rt.feedHandler.ListComments)
				r.Post("/", rt.feedHandler.CreateComment)
				r.Patch("/{id}", rt.feedHandler.UpdateComment)
				r.Delete("/{id}", rt.feedHandler.DeleteComment)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", rt.notificationHandler.GetNotifications)
				r.Get("/unread_count", rt.notificationHandler.UnreadCount)
				r.Patch("/{id}/mark_read", rt.notificationHandler.MarkRead)
				r.Post("/mark_all_read", rt.notificationHandler.MarkAllRead)
			})
		})
	})

	return r
}
