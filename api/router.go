// Package api exposes the marketplace over HTTP. Webhook endpoints sit
// outside the authenticated group, they authenticate by signature instead.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps carries everything the router needs, wired once at startup.
type Deps struct {
	Checkouts CheckoutStarter
	Access    AccessEvaluator
	Courses   CourseReader

	StripeWebhook http.Handler
	ClerkWebhook  http.Handler

	JWTSecret string
	Logger    *slog.Logger
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", healthHandler)

	r.Route("/webhooks", func(r chi.Router) {
		r.Method(http.MethodPost, "/stripe", deps.StripeWebhook)
		r.Method(http.MethodPost, "/clerk", deps.ClerkWebhook)
	})

	courses := NewCourseHandler(deps.Courses)
	checkouts := NewCheckoutHandler(deps.Checkouts)
	access := NewAccessHandler(deps.Access)

	r.Route("/api", func(r chi.Router) {
		r.Get("/courses", courses.Index)
		r.Get("/courses/{courseID}", courses.Show)

		r.Group(func(r chi.Router) {
			r.Use(Authenticator(deps.JWTSecret))

			r.Post("/checkout/sessions", checkouts.Create)
			r.Get("/users/{userID}/access/{courseID}", access.Show)
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
