package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"

	"golang.org/x/net/publicsuffix"

	"github.com/docchat/docchat/internal/auth"
	"github.com/docchat/docchat/internal/config"
	"github.com/docchat/docchat/internal/conversation"
	"github.com/docchat/docchat/internal/coordinator"
	"github.com/docchat/docchat/internal/gateway"
	"github.com/docchat/docchat/internal/log"
	"github.com/docchat/docchat/internal/session"
	"github.com/docchat/docchat/internal/tui"
)

// runtime holds the wired components shared by the chat, ask and upload
// commands.
type runtime struct {
	cfg      *config.Config
	logger   log.Logger
	store    *conversation.Store
	coord    *coordinator.Coordinator
	gate     auth.Gate
	markdown *tui.MarkdownRenderer

	// userName is the display name from a validated session identity,
	// empty for the other strategies.
	userName string
}

// newRuntime loads configuration and wires the client components.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := log.New(log.Config{Level: parseLevel(cfg.LogLevel), JSON: cfg.LogJSON})

	// One shared client: the session gate validates the same cookie jar
	// the gateway's calls ride on.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	httpClient := &http.Client{Jar: jar}

	gate, err := newGate(cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}

	stateDir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	userID, err := session.Load(stateDir)
	if err != nil {
		return nil, fmt.Errorf("loading session identity: %w", err)
	}

	markdown := tui.NewMarkdownRenderer(80)
	store := conversation.New(markdown, logger.With("component", "conversation"))

	gw, err := gateway.NewHTTP(cfg.ServiceURL, cfg.APIPrefix, httpClient, gate,
		logger.With("component", "gateway"))
	if err != nil {
		return nil, err
	}

	coord, err := coordinator.New(coordinator.Options{
		Store:           store,
		Gateway:         gw,
		Gate:            gate,
		UserID:          userID,
		Timeout:         cfg.Timeout(),
		RequireIdentity: cfg.AuthStrategy == config.StrategySession,
		Logger:          logger.With("component", "coordinator"),
	})
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger, store: store, coord: coord, gate: gate, markdown: markdown}

	// Validate the session up front so a logged-in user gets their
	// greeting and an unauthenticated one sees why sends are blocked.
	// Failure is not fatal: the client starts, actions stay disabled.
	if cfg.AuthStrategy == config.StrategySession {
		cred, err := gate.Acquire(ctx)
		switch {
		case err != nil:
			logger.Warn("session not authenticated", "error", err)
			store.AppendSystemMessage("Not signed in. Sign in via your browser session and restart docchat.")
		case cred.Identity != nil:
			rt.userName = cred.Identity.Name
		}
	}

	return rt, nil
}

// newGate selects the identity gate for the configured strategy.
func newGate(cfg *config.Config, client *http.Client, logger log.Logger) (auth.Gate, error) {
	authLogger := logger.With("component", "auth")
	switch cfg.AuthStrategy {
	case config.StrategyClientCredentials:
		return auth.NewTokenGate(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, client, authLogger)
	case config.StrategySession:
		return auth.NewSessionGate(cfg.ServiceURL, client, authLogger)
	default:
		return auth.Anonymous{}, nil
	}
}

// parseLevel maps the configured log level name onto slog levels.
// Unknown names fall back to info.
func parseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
