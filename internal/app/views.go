package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-desk/internal/api"
	"github.com/odyssey-erp/odyssey-desk/internal/clock"
	"github.com/odyssey-erp/odyssey-desk/internal/collection"
	"github.com/odyssey-erp/odyssey-desk/internal/guard"
	"github.com/odyssey-erp/odyssey-desk/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-desk/internal/rbac"
	"github.com/odyssey-erp/odyssey-desk/internal/session"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
)

// View describes one synchronized data view.
type View struct {
	Domain     string
	Path       string
	Permission string
	// Object views hold a single entity instead of a list.
	Object bool
}

// DefaultViews lists the dashboard views.
func DefaultViews() []View {
	return []View{
		{Domain: "requests", Path: "requests/", Permission: rbac.PermRequestsView},
		{Domain: "tasks", Path: "tasks/", Permission: rbac.PermTasksView},
		{Domain: "equipment", Path: "equipment/", Permission: rbac.PermEquipmentView},
		{Domain: "dashboard", Path: "dashboard/stats/", Permission: rbac.PermDashboardView, Object: true},
	}
}

// SessionEvents announces session changes.
type SessionEvents interface {
	Subscribe(fn func(session.Snapshot)) (unsubscribe func())
}

// ViewsParams wires a Views handler.
type ViewsParams struct {
	Views        []View
	Client       api.Requester
	Source       collection.EventSource
	Connectivity collection.Connectivity
	Metrics      collection.Metrics
	// Status is re-read on every stream event so a logout or role change
	// ends streams the user may no longer see.
	Status guard.Status
	// Session, when set, makes streams re-check access on every session
	// change, not only when the collection changes.
	Session SessionEvents
	Clock   clock.Clock
	Logger  *slog.Logger
	// KeepAlive is the comment interval on event streams.
	KeepAlive time.Duration
}

// Views serves view snapshots. Each request or stream owns its own
// synchronizer, opened on arrival and closed when the response ends.
type Views struct {
	params ViewsParams
	byName map[string]View
}

// NewViews constructs a Views handler.
func NewViews(params ViewsParams) *Views {
	if params.Views == nil {
		params.Views = DefaultViews()
	}
	if params.Clock == nil {
		params.Clock = clock.Real()
	}
	if params.Logger == nil {
		params.Logger = slog.New(slog.DiscardHandler)
	}
	if params.KeepAlive <= 0 {
		params.KeepAlive = 25 * time.Second
	}
	byName := make(map[string]View, len(params.Views))
	for _, v := range params.Views {
		byName[v.Domain] = v
	}
	return &Views{params: params, byName: byName}
}

// MountRoutes registers the view routes, each behind its own permission.
func (v *Views) MountRoutes(r chi.Router, gate guard.Middleware) {
	for _, view := range v.params.Views {
		r.Route("/views/"+view.Domain, func(r chi.Router) {
			r.Use(gate.Require(guard.Permission(view.Permission)))
			r.Get("/", func(w http.ResponseWriter, r *http.Request) { v.showSnapshot(w, r, view) })
			r.Get("/stream", func(w http.ResponseWriter, r *http.Request) { v.stream(w, r, view) })
		})
	}
	r.Get("/views/{domain}", v.unknownView)
	r.Get("/views/{domain}/stream", v.unknownView)
}

func (v *Views) unknownView(w http.ResponseWriter, r *http.Request) {
	httpx.Problem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("unknown view %q", chi.URLParam(r, "domain")))
}

// Synchronizer builds an unopened synchronizer for view.
func (v *Views) Synchronizer(view View) *collection.Synchronizer {
	opts := collection.Options{
		Domain:       view.Domain,
		Source:       v.params.Source,
		Connectivity: v.params.Connectivity,
		Clock:        v.params.Clock,
		Logger:       v.params.Logger,
		Metrics:      v.params.Metrics,
	}
	if view.Object {
		opts.FetchObject = v.fetchObject(view.Path)
	} else {
		opts.FetchList = v.fetchList(view.Path)
	}
	return collection.New(opts)
}

func (v *Views) fetchList(path string) collection.ListFetcher {
	return func(ctx context.Context) ([]collection.Entity, error) {
		resp, err := v.params.Client.Request(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		var items []collection.Entity
		if err := api.DecodeList(resp.Data, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
}

func (v *Views) fetchObject(path string) collection.ObjectFetcher {
	return func(ctx context.Context) (collection.Entity, error) {
		resp, err := v.params.Client.Request(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		var obj collection.Entity
		if err := resp.Decode(&obj); err != nil {
			return nil, err
		}
		return obj, nil
	}
}

func (v *Views) showSnapshot(w http.ResponseWriter, r *http.Request, view View) {
	syncer := v.Synchronizer(view)
	defer syncer.Close()
	if err := syncer.Open(r.Context()); err != nil {
		v.params.Logger.Warn("view fetch failed", slog.String("view", view.Domain), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	caps := shared.CapabilityFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, scoped(caps, syncer.Snapshot()))
}

func (v *Views) stream(w http.ResponseWriter, r *http.Request, view View) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	syncer := v.Synchronizer(view)
	defer syncer.Close()
	updates, cancel := syncer.Subscribe()
	defer cancel()

	changed := make(chan struct{}, 1)
	if v.params.Session != nil {
		unsubscribe := v.params.Session.Subscribe(func(session.Snapshot) {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := syncer.Open(ctx); err != nil {
		v.params.Logger.Debug("view stream initial fetch", slog.String("view", view.Domain), slog.Any("error", err))
	}
	if err := writeEvent(w, "snapshot", scoped(shared.CapabilityFromContext(ctx), syncer.Snapshot())); err != nil {
		return
	}
	flusher.Flush()

	ticker := v.params.Clock.NewTicker(v.params.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case <-changed:
			if _, allowed := v.current(ctx, view); !allowed {
				_ = writeEvent(w, "revoked", map[string]string{"view": view.Domain})
				flusher.Flush()
				return
			}
			continue
		case snap, ok := <-updates:
			if !ok {
				return
			}
			caps, allowed := v.current(ctx, view)
			if !allowed {
				_ = writeEvent(w, "revoked", map[string]string{"view": view.Domain})
				flusher.Flush()
				return
			}
			if err := writeEvent(w, "snapshot", scoped(caps, snap)); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func (v *Views) current(ctx context.Context, view View) (rbac.Capability, bool) {
	caps := shared.CapabilityFromContext(ctx)
	if v.params.Status != nil {
		if v.params.Status.Bootstrapping() {
			return caps, false
		}
		caps = v.params.Status.Capability()
	}
	return caps, caps.HasPermission(view.Permission)
}

func writeEvent(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
