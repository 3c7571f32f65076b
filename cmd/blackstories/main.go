package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/blackstories-client/internal/api/blackstories"
	"github.com/tjfontaine/blackstories-client/internal/config"
	"github.com/tjfontaine/blackstories-client/internal/storage"
	"github.com/tjfontaine/blackstories-client/internal/storage/memory"
	"github.com/tjfontaine/blackstories-client/internal/storage/sqlite"
	"github.com/tjfontaine/blackstories-client/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "blackstories:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "blackstories",
		Usage: "play Black Stories mysteries against an AI narrator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "path to the YAML config file"},
			&cli.StringFlag{Name: "base-url", Usage: "backend base URL (overrides server.base_url)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (overrides log.level)"},
		},
		Commands: []*cli.Command{
			playCommand(),
			transcriptCommand(),
		},
	}
}

// env is what every command needs once configuration is loaded.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.TranscriptStore
	shutdown func(context.Context) error
}

func setup(cmd *cli.Command, overrides func(*config.Config)) (*env, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if v := cmd.String("base-url"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if overrides != nil {
		overrides(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	e := &env{cfg: cfg, logger: logger, shutdown: func(context.Context) error { return nil }}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(telemetry.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Command:     cmd.Name,
			Path:        cfg.Telemetry.Output,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		e.shutdown = shutdown
	}

	switch cfg.Storage.Type {
	case "memory":
		e.store = memory.New()
	case "sqlite":
		store, err := sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open transcript store: %w", err)
		}
		e.store = store
	}

	return e, nil
}

func (e *env) close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Error("failed to close transcript store", slog.String("error", err.Error()))
		}
	}
	if err := e.shutdown(context.Background()); err != nil {
		e.logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
	}
}

func (e *env) client() *blackstories.Client {
	return blackstories.NewClient(
		blackstories.WithBaseURL(e.cfg.Server.BaseURL),
		blackstories.WithAPIKey(e.cfg.Server.APIKey),
		blackstories.WithLogger(e.logger),
		blackstories.WithHTTPClient(&http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   e.cfg.Server.Timeout,
		}),
	)
}

// newLogger writes to stderr so the conversation on stdout stays readable.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
