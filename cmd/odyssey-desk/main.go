package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/odyssey-erp/odyssey-desk/internal/app"
	"github.com/odyssey-erp/odyssey-desk/internal/auth"
)

type options struct {
	addr   string
	apiURL string
	wsURL  string
	login  string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("odyssey-desk", pflag.ContinueOnError)
	fs.StringVar(&opts.addr, "addr", "", "listen address (overrides APP_ADDR)")
	fs.StringVar(&opts.apiURL, "api-url", "", "desk API base URL (overrides DESK_API_URL)")
	fs.StringVar(&opts.wsURL, "ws-url", "", "realtime origin (overrides DESK_WS_URL)")
	fs.StringVar(&opts.login, "login", "", "log in as this user before serving; the password is read from the terminal")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// apply overlays the flags on the environment so LoadConfig sees them.
func (o options) apply() error {
	overrides := map[string]string{
		"APP_ADDR":     o.addr,
		"DESK_API_URL": o.apiURL,
		"DESK_WS_URL":  o.wsURL,
	}
	for key, value := range overrides {
		if value == "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func readPassword(username string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--login needs an interactive terminal")
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(secret), nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		slog.Default().Error("parse flags", slog.Any("error", err))
		os.Exit(2)
	}
	if err := opts.apply(); err != nil {
		slog.Default().Error("apply flags", slog.Any("error", err))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	desk, err := app.New(ctx, cfg, logger, app.Deps{})
	if err != nil {
		logger.Error("assemble desk agent", slog.Any("error", err))
		os.Exit(1)
	}

	if username := strings.TrimSpace(opts.login); username != "" {
		password, err := readPassword(username)
		if err != nil {
			logger.Error("interactive login", slog.Any("error", err))
			os.Exit(1)
		}
		result := desk.Session.Login(ctx, auth.Credentials{Username: username, Password: password})
		if !result.OK {
			logger.Error("interactive login failed", slog.String("reason", result.Message))
			os.Exit(1)
		}
		logger.Info("logged in", slog.String("user", result.User.DisplayName()))
	}

	if err := desk.Run(ctx); err != nil {
		logger.Error("desk agent stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
