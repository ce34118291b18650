// Command congress-slides serves a slideshow of congressional district maps,
// one per session, each captioned with a generated historical fact from that
// session's years.
//
// It:
//   - Loads configuration and initializes structured logging.
//   - Loads the session catalog and opens the boundary source.
//   - Builds the fact provider for the configured text service.
//   - Runs the slideshow sequencer and the HTTP display/control surface.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/congress-slides/catalog"
	"github.com/onnwee/congress-slides/config"
	"github.com/onnwee/congress-slides/facts"
	"github.com/onnwee/congress-slides/geometry"
	"github.com/onnwee/congress-slides/render"
	"github.com/onnwee/congress-slides/server"
	"github.com/onnwee/congress-slides/slideshow"
	"github.com/onnwee/congress-slides/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("congress-slides", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()
	slog.Info("telemetry initialized", slog.Bool("tracing", telemetry.IsTracingEnabled()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Default()
	if err != nil {
		slog.Error("session catalog is malformed", slog.Any("err", err))
		os.Exit(1)
	}

	loader, err := geometry.NewLoader(cfg.GeometryMode, cfg.CombinedPath, cfg.DistrictPattern, cfg.IDField)
	if err != nil {
		slog.Error("failed to open boundaries", slog.Any("err", err), slog.String("mode", cfg.GeometryMode))
		os.Exit(1)
	}

	gen, err := facts.NewGenerator(ctx, facts.GeneratorConfig{
		Provider: cfg.FactProvider,
		OpenAI: facts.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		},
		GenAIAPIKey: cfg.GenAIAPIKey,
		GenAIModel:  cfg.GenAIModel,
	})
	if err != nil {
		slog.Error("failed to create fact generator", slog.Any("err", err))
		os.Exit(1)
	}
	provider := facts.NewProvider(gen, facts.Options{
		Temperature: cfg.FactTemperature,
		MaxTokens:   cfg.FactMaxTokens,
		Timeout:     cfg.FactTimeout,
		Retry:       facts.RetryPolicy{MaxAttempts: cfg.FactMaxAttempts, BackoffBase: cfg.FactBackoffBase},
	})

	opts := render.DefaultOptions()
	opts.Size = cfg.SlideSize
	renderer := render.New(opts)

	display := server.NewDisplay(0)
	seq := slideshow.New(cat, loader, provider, renderer, display, slideshow.Config{
		Interval:  cfg.SlideInterval(),
		AutoStart: cfg.AutoStart,
	})

	go func() {
		if err := seq.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("slideshow exited with error", slog.Any("err", err))
		}
	}()

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	go func() {
		if err := server.Start(ctx, cfg, display, seq); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
			stop()
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
