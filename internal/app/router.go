package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-desk/internal/guard"
	"github.com/odyssey-erp/odyssey-desk/internal/observability"
	"github.com/odyssey-erp/odyssey-desk/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-desk/internal/realtime"
	"github.com/odyssey-erp/odyssey-desk/internal/session"
)

// RealtimeStatus reports the realtime channel state.
type RealtimeStatus interface {
	Status() realtime.Status
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Session        *session.Manager
	SessionHandler *session.Handler
	Views          *Views
	Realtime       RealtimeStatus
	Metrics        *observability.Metrics
}

type healthResponse struct {
	Status   string `json:"status"`
	Session  string `json:"session"`
	Online   bool   `json:"online"`
	Realtime string `json:"realtime,omitempty"`
}

// NewRouter constructs the chi.Router with desk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:  "ok",
			Session: params.Session.State().String(),
			Online:  params.Session.Online(),
		}
		if params.Realtime != nil {
			resp.Realtime = params.Realtime.Status().State.String()
		}
		httpx.JSON(w, http.StatusOK, resp)
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	gate := guard.Middleware{
		Status:           params.Session,
		LoginPath:        guard.DefaultLoginPath,
		UnauthorizedPath: guard.DefaultUnauthorizedPath,
		Logger:           params.Logger,
	}

	r.Get(guard.DefaultLoginPath, func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required: POST credentials to this path")
	})
	r.Get(guard.DefaultUnauthorizedPath, func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "your role does not grant access to that view")
	})

	limit := 10
	if params.Config != nil {
		limit = params.Config.LoginRateLimit
	}
	r.Group(func(r chi.Router) {
		r.Use(LoginRateLimit(limit))
		params.SessionHandler.MountPublic(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(gate.Require(guard.None()))
		params.SessionHandler.MountAccount(r)
	})
	if params.Views != nil {
		params.Views.MountRoutes(r, gate)
	}

	return r
}
