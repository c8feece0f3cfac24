package routes

import (
	"log/slog"

	"github.com/cdwhitlock/warden/internal/auth"
	"github.com/cdwhitlock/warden/internal/handlers"
	"github.com/cdwhitlock/warden/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	tokenManager *auth.TokenManager,
	cookies auth.CookieConfig,
	logger *slog.Logger,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.Get("/auth/csrf", authHandler.CSRFToken)
	router.Post("/auth/logout", authHandler.Logout)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Gateway(tokenManager, cookies, logger))

		r.Post("/auth/logout-all", authHandler.LogoutAll)
		r.Put("/auth/password", authHandler.ChangePassword)

		// Administrative lockout surface. Role modeling is owned by an
		// external collaborator; deployments front these with their own
		// authorization layer.
		r.Get("/admin/credentials/{id}/lockout", authHandler.LockoutStatus)
		r.Post("/admin/credentials/{id}/unlock", authHandler.Unlock)
	})
}
