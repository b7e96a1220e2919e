package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"skillshare-backend/internal/handlers"
	"skillshare-backend/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	limiter middleware.Limiter,
	chatHandler *handlers.ChatHandler,
	allowedOrigin string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(allowedOrigin))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Help Chatbot Routes ────
		r.Route("/help-chatbot", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.With(middleware.RateLimit(limiter)).Post("/", chatHandler.HelpChat)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(middleware.RoleService))
				r.Get("/sessions/{id}/transcripts", chatHandler.Transcripts)
			})
		})
	})

	return r
}
