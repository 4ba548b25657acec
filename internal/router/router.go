package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/aslanbek/account-service/internal/config"
	"github.com/aslanbek/account-service/internal/handler"
	"github.com/aslanbek/account-service/internal/middleware"
)

// New wires the HTTP surface: global middleware, the user routes with
// the auth-protected group, and the catch-all 404 responder.
func New(cfg *config.Config, userHandler *handler.UserHandler, authMiddleware func(http.Handler) http.Handler, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api/v1/user", func(r chi.Router) {
		// Public user routes
		r.Post("/register", userHandler.Register)
		r.Post("/login", userHandler.Login)
		r.Post("/logout", userHandler.Logout)

		// Protected user routes (require a valid session cookie)
		r.Group(func(authRouter chi.Router) {
			authRouter.Use(authMiddleware)

			authRouter.Get("/me", userHandler.Me)
			authRouter.Post("/update/{id}", userHandler.Update)
		})
	})

	r.NotFound(userHandler.NotFound)

	return r
}
