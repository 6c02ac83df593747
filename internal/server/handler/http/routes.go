package http

import (
	"net/http"

	"github.com/atinyakov/GophAuth/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP handler that serves the account API.
//
// Routes:
//
//	POST /account/register   → authHandler.Register
//	POST /account/login      → authHandler.Login
//
// Middleware chain (applied in order):
//  1. RealIP                        : takes the client address from proxy headers
//  2. WithRequestLogging(logger)    : tags and logs every request
//  3. Recoverer                     : turns handler panics into 500 responses
//  4. AllowContentType(form types)  : rejects anything but HTML form posts
func NewRouter(authHandler *AuthHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.AllowContentType("application/x-www-form-urlencoded", "multipart/form-data"))

	r.Route("/account", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	return r
}
