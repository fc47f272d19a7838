package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/middleware"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
)

// RouterConfig configures the local API router.
type RouterConfig struct {
	JWTSecret         string
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxUploadBytes    int64
}

// NewRouter builds the local API for m.
func NewRouter(m Messenger, cfg RouterConfig, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(m)
	conversationHandler := NewConversationHandler(m, log)
	messageHandler := NewMessageHandler(m, cfg.MaxUploadBytes, log)
	streamHandler := NewStreamHandler(m, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret, m.Identity().UserID))
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/open", conversationHandler.Open)
				r.Delete("/", conversationHandler.Delete)

				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
				r.Post("/messages/older", messageHandler.Older)
				r.Post("/attachments", messageHandler.Attach)
			})
		})

		r.Delete("/messages/{id}", messageHandler.Delete)
		r.Get("/presence", healthHandler.Presence)
		r.Get("/events", streamHandler.Events)
	})

	return r
}
