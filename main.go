package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/commitfmt/commitfmt-bridge/internal/bridge"
	"github.com/commitfmt/commitfmt-bridge/internal/config"
	"github.com/commitfmt/commitfmt-bridge/internal/forge"
	"github.com/commitfmt/commitfmt-bridge/internal/httpclient"
	"github.com/commitfmt/commitfmt-bridge/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app holds the owned instances every component is built from. It is
// constructed once in launchServer and passed where needed; nothing reaches
// for shared state through package variables.
type app struct {
	client   *httpclient.Client
	registry *forge.Registry
	bridge   *bridge.Bridge
}

func newApp(cfg config.Config) (*app, error) {
	settings, err := config.LoadSettings(cfg.Server.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("settings load failed: %w", err)
	}

	client := httpclient.New(httpclient.Options{
		MaxConnsPerHost:     cfg.HTTP.MaxConnsPerHost,
		MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnsPerHost,
	})

	registry, err := forge.NewRegistry(client, config.Credentials{
		Env:      cfg.Tokens,
		Settings: settings,
	}, forge.Options{
		TokenTTL:       cfg.Cache.TokenTTL(),
		TokenCacheSize: cfg.Cache.TokenMaxSize,
		RequestTimeout: cfg.HTTP.RequestTimeout(),
		MaxRetries:     cfg.HTTP.MaxRetries,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("platform registry configuration failed: %w", err)
	}

	b, err := bridge.New(registry, cfg.Cache)
	if err != nil {
		registry.Close()
		client.Close()
		return nil, fmt.Errorf("bridge configuration failed: %w", err)
	}

	return &app{client: client, registry: registry, bridge: b}, nil
}

func main() {
	configureLogging()

	logBuildInfo()

	if err := launchServer(); err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launchServer() error {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	handler := configureRoutes(a.bridge)

	// The bridge only ever serves the local editor process.
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler:           handler,
		MaxHeaderBytes:    20 << 10,         // 20 KB
		ReadHeaderTimeout: 20 * time.Second, // prevent Slowloris attacks
	}

	hooks := &server.Hooks{}
	hooks.AddCloser("bridge caches", a.bridge)
	hooks.AddCloser("platform registry", a.registry)
	hooks.AddCloser("http pools", a.client)

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second

	if err := server.Serve(ctx, srv, shutdownTimeout, hooks); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func configureLogging() {
	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}
