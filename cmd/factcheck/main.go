// Package main provides a CLI tool to check the configured text service and
// boundary source without starting the HTTP server.
//
// By default it requests the historical fact for every session (or only the
// districts named by --district) and prints one line per district. With
// --pass it runs a single headless slideshow pass instead, rendering every
// slide in memory and reporting how many were rendered, skipped or fell back
// to the placeholder fact.
//
// Usage:
//
//	factcheck [--district 001,002] [--pass] [--strict]
//
// Flags:
//
//	--district: Comma-separated district IDs to check (default: all)
//	--pass: Run one full slideshow pass with no wait between slides
//	--strict: Exit non-zero when any fact fell back to the placeholder
//
// Configuration comes from the same environment variables as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
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
	"github.com/onnwee/congress-slides/slideshow"
)

type fetcher interface {
	Fetch(ctx context.Context, districtID string, start, end time.Time) facts.Fact
}

func main() {
	districts := flag.String("district", "", "Comma-separated district IDs to check (default: all)")
	pass := flag.Bool("pass", false, "Run one full slideshow pass with no wait between slides")
	strict := flag.Bool("strict", false, "Exit non-zero when any fact fell back to the placeholder")
	flag.Parse()

	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Default()
	if err != nil {
		slog.Error("session catalog is malformed", slog.Any("err", err))
		os.Exit(1)
	}

	gen, err := facts.NewGenerator(ctx, facts.GeneratorConfig{
		Provider:    cfg.FactProvider,
		OpenAI:      facts.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, Model: cfg.OpenAIModel},
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

	var fallbacks int
	if *pass {
		loader, err := geometry.NewLoader(cfg.GeometryMode, cfg.CombinedPath, cfg.DistrictPattern, cfg.IDField)
		if err != nil {
			slog.Error("failed to open boundaries", slog.Any("err", err))
			os.Exit(1)
		}
		opts := render.DefaultOptions()
		opts.Size = cfg.SlideSize
		seq := slideshow.New(cat, loader, provider, render.New(opts), &printSink{out: os.Stdout}, slideshow.Config{})
		res, err := seq.RunPass(ctx)
		if err != nil {
			slog.Error("pass aborted", slog.Any("err", err))
			os.Exit(1)
		}
		fmt.Printf("rendered=%d skipped=%d fact_fallbacks=%d\n", res.Rendered, res.Skipped, res.FactFallbacks)
		fallbacks = res.FactFallbacks
	} else {
		fallbacks, err = checkFacts(ctx, cat, provider, splitIDs(*districts), os.Stdout)
		if err != nil {
			slog.Error("fact check failed", slog.Any("err", err))
			os.Exit(1)
		}
	}

	if *strict && fallbacks > 0 {
		os.Exit(2)
	}
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

// checkFacts prints the fact for each district in ids (all when empty) and
// returns how many fell back to the placeholder.
func checkFacts(ctx context.Context, cat *catalog.Catalog, f fetcher, ids []string, out io.Writer) (int, error) {
	districts := cat.List()
	if len(ids) > 0 {
		districts = districts[:0:0]
		for _, id := range ids {
			d, ok := cat.Get(id)
			if !ok {
				return 0, fmt.Errorf("unknown district %q", id)
			}
			districts = append(districts, d)
		}
	}

	fallbacks := 0
	for _, d := range districts {
		if err := ctx.Err(); err != nil {
			return fallbacks, err
		}
		fact := f.Fetch(ctx, d.ID, d.Start, d.End)
		fmt.Fprintf(out, "%s\t%s\t%s\n", d.ID, d.DateRange(), fact.Text)
		if fact.Fallback {
			fallbacks++
			if msg := fact.Diagnostic(); msg != "" {
				fmt.Fprintf(out, "\t%s\n", msg)
			}
		}
	}
	return fallbacks, nil
}

// printSink reports each rendered slide on one line.
type printSink struct {
	out io.Writer
}

func (p *printSink) Show(_ context.Context, s slideshow.Slide) error {
	_, err := fmt.Fprintf(p.out, "%d/%d\t%s\t%s\t%d bytes\t%s\n", s.Index, s.Total, s.DistrictID, s.DateRange, len(s.Image), s.Fact)
	return err
}
