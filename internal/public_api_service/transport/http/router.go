package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raspisms/golang_services/internal/platform/session"
	"github.com/raspisms/golang_services/internal/public_api_service/middleware"
)

// Handlers groups every HTTP handler of the admin surface.
type Handlers struct {
	Auth      *AuthHandler
	Users     *UserHandler
	Media     *MediaHandler
	Phones    *PhoneHandler
	Messages  *MessageHandler
	Scheduled *ScheduledHandler
	Callbacks *CallbackHandler
}

// RouterConfig holds what NewRouter needs besides the handlers.
type RouterConfig struct {
	Sessions       *session.Manager
	Users          middleware.UserSource
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

// NewRouter mounts the public routes (login, carrier callbacks, health, metrics) and the
// authenticated ones. JSON mutations need the CSRF header; form routes carry the token in the URL.
func NewRouter(cfg RouterConfig, h Handlers) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(PrometheusMetricsMiddleware)
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	h.Auth.RegisterRoutes(r)
	h.Callbacks.RegisterRoutes(r)

	r.Group(func(protected chi.Router) {
		protected.Use(middleware.AuthMiddleware(cfg.Sessions, cfg.Users, cfg.Logger))

		h.Auth.RegisterProtectedRoutes(protected)
		h.Users.RegisterRoutes(protected)
		h.Media.RegisterFormRoutes(protected)

		protected.Group(func(api chi.Router) {
			api.Use(middleware.RequireCSRFHeader(cfg.Sessions))
			h.Media.RegisterRoutes(api)
			h.Phones.RegisterRoutes(api)
			h.Messages.RegisterRoutes(api)
			h.Scheduled.RegisterRoutes(api)
		})
	})

	return r
}
