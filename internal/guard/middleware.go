package guard

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/odyssey-erp/odyssey-desk/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
)

// Default redirect targets.
const (
	DefaultLoginPath        = "/auth/login"
	DefaultUnauthorizedPath = "/unauthorized"
)

// Middleware wires guard decisions into HTTP handlers.
type Middleware struct {
	Status           Status
	LoginPath        string
	UnauthorizedPath string
	Logger           *slog.Logger
}

// Require guards next with req.
func (m Middleware) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch Evaluate(m.Status, req) {
			case Loading:
				w.Header().Set("Retry-After", "1")
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			case RedirectLogin:
				if wantsJSON(r) {
					httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
					return
				}
				target := m.loginPath() + "?next=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, target, http.StatusSeeOther)
			case RedirectUnauthorized:
				if m.Logger != nil {
					caps := m.Status.Capability()
					m.Logger.Info("guard denied",
						slog.String("path", r.URL.Path),
						slog.String("role", caps.Role().String()),
						slog.String("requirement", req.String()))
				}
				if wantsJSON(r) {
					httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
					return
				}
				http.Redirect(w, r, m.unauthorizedPath(), http.StatusSeeOther)
			default:
				ctx := shared.ContextWithCapability(r.Context(), m.Status.Capability())
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// RequireAny ensures the current user has at least one of the permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.Require(RequireAnyPermission(perms...))
}

// RequireAll ensures the current user has all the permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.Require(RequireAllPermissions(perms...))
}

func (m Middleware) loginPath() string {
	if m.LoginPath == "" {
		return DefaultLoginPath
	}
	return m.LoginPath
}

func (m Middleware) unauthorizedPath() string {
	if m.UnauthorizedPath == "" {
		return DefaultUnauthorizedPath
	}
	return m.UnauthorizedPath
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
