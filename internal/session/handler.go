package session

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-desk/internal/auth"
	"github.com/odyssey-erp/odyssey-desk/internal/notification"
	"github.com/odyssey-erp/odyssey-desk/internal/platform/httpx"
)

// Handler exposes the session over HTTP.
type Handler struct {
	logger  *slog.Logger
	session *Manager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, session *Manager) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{logger: logger, session: session}
}

// MountPublic registers the routes that work without a session.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
}

// MountAccount registers the routes that need an authenticated session.
// Callers guard them.
func (h *Handler) MountAccount(r chi.Router) {
	r.Get("/auth/me", h.showMe)
	r.Patch("/auth/me", h.handleProfile)
	r.Post("/auth/password", h.handlePassword)
	r.Get("/notifications", h.listNotifications)
	r.Post("/notifications/read-all", h.handleReadAll)
	r.Post("/notifications/{id}/read", h.handleRead)
}

type meResponse struct {
	User        *auth.User `json:"user"`
	Role        string     `json:"role"`
	Active      bool       `json:"active"`
	Permissions []string   `json:"permissions"`
	ViewScope   string     `json:"view_scope"`
	Online      bool       `json:"online"`
	Unread      int        `json:"unread"`
}

func (h *Handler) me() meResponse {
	caps := h.session.Capability()
	perms := caps.Permissions()
	if perms == nil {
		perms = []string{}
	}
	return meResponse{
		User:        h.session.User(),
		Role:        caps.Role().String(),
		Active:      caps.Active(),
		Permissions: perms,
		ViewScope:   string(caps.ViewScope()),
		Online:      h.session.Online(),
		Unread:      h.session.UnreadCount(),
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	result := h.session.Login(r.Context(), creds)
	if !result.OK {
		if len(result.Fields) > 0 {
			httpx.ValidationProblem(w, result.Message, result.Fields)
			return
		}
		h.logger.Info("login rejected", slog.String("username", creds.Username))
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", result.Message)
		return
	}
	httpx.JSON(w, http.StatusOK, h.me())
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) showMe(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.me())
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	var update auth.ProfileUpdate
	if err := httpx.DecodeJSON(r, &update); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	user, err := h.session.UpdateProfile(r.Context(), update)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

type passwordForm struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *Handler) handlePassword(w http.ResponseWriter, r *http.Request) {
	var form passwordForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	err := h.session.ChangePassword(r.Context(), auth.PasswordChange{
		OldPassword:     form.OldPassword,
		NewPassword:     form.NewPassword,
		ConfirmPassword: form.ConfirmPassword,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type notificationsResponse struct {
	Items  []notification.Notification `json:"items"`
	Unread int                         `json:"unread"`
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "1" {
		if err := h.session.RefreshNotifications(r.Context()); err != nil {
			h.logger.Warn("refresh notifications", slog.Any("error", err))
		}
	}
	items := h.session.Notifications()
	if items == nil {
		items = []notification.Notification{}
	}
	httpx.JSON(w, http.StatusOK, notificationsResponse{Items: items, Unread: h.session.UnreadCount()})
}

func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid notification id")
		return
	}
	if err := h.session.MarkRead(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReadAll(w http.ResponseWriter, r *http.Request) {
	if err := h.session.MarkAllRead(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var vErr *auth.ValidationError
	if errors.As(err, &vErr) {
		httpx.ValidationProblem(w, "Please correct the highlighted fields", vErr.Fields)
		return
	}
	h.logger.Warn("session request failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
