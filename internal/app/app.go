package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-desk/internal/api"
	"github.com/odyssey-erp/odyssey-desk/internal/auth"
	"github.com/odyssey-erp/odyssey-desk/internal/clock"
	"github.com/odyssey-erp/odyssey-desk/internal/connectivity"
	"github.com/odyssey-erp/odyssey-desk/internal/notification"
	"github.com/odyssey-erp/odyssey-desk/internal/observability"
	"github.com/odyssey-erp/odyssey-desk/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-desk/internal/realtime"
	"github.com/odyssey-erp/odyssey-desk/internal/session"
)

// App is the assembled desk agent.
type App struct {
	Config   *Config
	Logger   *slog.Logger
	Tokens   auth.TokenStore
	Client   *api.Client
	Realtime *realtime.Manager
	Session  *session.Manager
	Monitor  *connectivity.Monitor
	Views    *Views
	Metrics  *observability.Metrics
	Handler  http.Handler

	redis *redis.Client
}

// Deps overrides the pieces tests need to replace.
type Deps struct {
	Tokens auth.TokenStore
	Dialer realtime.Dialer
	Clock  clock.Clock
}

// New wires every component from cfg.
func New(ctx context.Context, cfg *Config, logger *slog.Logger, deps Deps) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	tokens := deps.Tokens
	if tokens == nil {
		var err error
		tokens, a.redis, err = openTokenStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}
	a.Tokens = tokens

	a.Client = api.NewClient(cfg.APIURL,
		api.WithTimeout(cfg.APITimeout),
		api.WithToken(auth.TokenFunc(tokens)))

	dialer := deps.Dialer
	if dialer == nil {
		dialer = realtime.NewGorillaDialer()
	}
	a.Realtime = realtime.NewManager(realtime.Options{
		URL:         cfg.WSURL,
		Token:       auth.TokenFunc(tokens),
		Dialer:      dialer,
		Clock:       clk,
		Backoff:     realtime.LinearBackoff{Base: cfg.RealtimeReconnectBase, MaxAttempts: cfg.RealtimeMaxAttempts},
		Heartbeat:   cfg.RealtimeHeartbeat,
		DialTimeout: cfg.RealtimeDialTimeout,
		Logger:      logger.With(slog.String("component", "realtime")),
		Metrics:     a.Metrics,
	})

	a.Session = session.NewManager(session.Options{
		Accounts:      auth.NewService(auth.NewRepository(a.Client)),
		Notifications: notification.NewRepository(a.Client),
		Tokens:        tokens,
		Realtime:      a.Realtime,
		Clock:         clk,
		Logger:        logger.With(slog.String("component", "session")),
	})

	a.Monitor = connectivity.New(a.Client, clk, cfg.ConnectivityInterval,
		logger.With(slog.String("component", "connectivity")))

	a.Views = NewViews(ViewsParams{
		Client:       a.Client,
		Source:       a.Realtime,
		Connectivity: a.Monitor,
		Metrics:      a.Metrics,
		Status:       a.Session,
		Session:      a.Session,
		Clock:        clk,
		Logger:       logger.With(slog.String("component", "views")),
	})

	a.Handler = NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		Session:        a.Session,
		SessionHandler: session.NewHandler(logger, a.Session),
		Views:          a.Views,
		Realtime:       a.Realtime,
		Metrics:        a.Metrics,
	})
	return a, nil
}

func openTokenStore(ctx context.Context, cfg *Config) (auth.TokenStore, *redis.Client, error) {
	switch cfg.TokenStore {
	case TokenStoreMemory:
		return auth.NewMemoryTokenStore(), nil, nil
	case TokenStoreRedis:
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("token store: %w", err)
		}
		return auth.NewRedisTokenStore(client, cfg.TokenKey), client, nil
	default:
		return auth.NewFileTokenStore(cfg.TokenFile), nil, nil
	}
}

// Run bootstraps the session, follows connectivity and serves HTTP until
// ctx is done.
func (a *App) Run(ctx context.Context) error {
	unwatch := a.Monitor.Subscribe(func(online bool) {
		a.Session.SetOnline(ctx, online)
	})
	defer unwatch()
	defer a.Close()

	server := &http.Server{
		Addr:         a.Config.AppAddr,
		Handler:      a.Handler,
		ReadTimeout:  a.Config.AppReadTimeout,
		WriteTimeout: a.Config.AppWriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Session.Bootstrap(ctx)
		return nil
	})
	g.Go(func() error {
		return a.Monitor.Run(ctx)
	})
	g.Go(func() error {
		a.Logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("graceful shutdown", slog.Any("error", err))
		}
		return nil
	})
	return g.Wait()
}

// Close stops the realtime channel and releases the token backend.
func (a *App) Close() {
	a.Session.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("close redis", slog.Any("error", err))
		}
		a.redis = nil
	}
}
