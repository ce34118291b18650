// Package facts obtains a short historical fact for a date range from a
// generative text service and memoizes successful answers per district.
package facts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/onnwee/congress-slides/catalog"
	"github.com/onnwee/congress-slides/telemetry"
)

// Placeholder is shown whenever a fact cannot be obtained.
const Placeholder = "Historical fact not available."

// SystemPrompt is the fixed assistant instruction sent with every request.
const SystemPrompt = "You are a helpful assistant."

// Request is a single generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Fact is the outcome of a lookup. Fallback is set when Text is the
// placeholder; Err then carries the cause.
type Fact struct {
	DistrictID string
	Text       string
	Cached     bool
	Fallback   bool
	Err        error
}

// Diagnostic returns the user-visible failure message, or "" on success.
func (f Fact) Diagnostic() string {
	if !f.Fallback || f.Err == nil {
		return ""
	}
	return fmt.Sprintf("Error fetching historical fact for District %s: %v", f.DistrictID, f.Err)
}

// Key identifies a memoized fact.
type Key struct {
	DistrictID string
	Start      string
	End        string
}

// NewKey builds the cache key for a district and its date range.
func NewKey(districtID string, start, end time.Time) Key {
	return Key{DistrictID: districtID, Start: catalog.FormatDate(start), End: catalog.FormatDate(end)}
}

func (k Key) String() string { return k.DistrictID + "|" + k.Start + "|" + k.End }

// BuildPrompt returns the user prompt for the date range.
func BuildPrompt(start, end time.Time) string {
	return fmt.Sprintf("Provide an interesting historical fact about the United States that happened between %s to %s.",
		catalog.FormatDate(start), catalog.FormatDate(end))
}

// RetryPolicy bounds attempts for retryable failures. Fatal failures are
// never repeated.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// Options tune generation.
type Options struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration // per attempt; 0 disables
	Retry       RetryPolicy
}

// DefaultOptions returns the stock generation settings.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.7,
		MaxTokens:   75,
		Timeout:     30 * time.Second,
		Retry:       RetryPolicy{MaxAttempts: 1, BackoffBase: 2 * time.Second},
	}
}

// Provider memoizes successful facts. Failures are not stored, so a later
// request for the same key tries the service again.
type Provider struct {
	gen  Generator
	opts Options

	mu    sync.Mutex
	cache map[Key]string
	epoch uint64 // bumped by Clear; results from older epochs are discarded

	group singleflight.Group
}

// NewProvider returns a provider backed by gen.
func NewProvider(gen Generator, opts Options) *Provider {
	telemetry.Init()
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry.MaxAttempts = 1
	}
	return &Provider{gen: gen, opts: opts, cache: make(map[Key]string)}
}

// Fetch returns the fact for districtID over [start, end]. It never fails:
// service errors yield the placeholder with Fallback set.
func (p *Provider) Fetch(ctx context.Context, districtID string, start, end time.Time) Fact {
	key := NewKey(districtID, start, end)

	p.mu.Lock()
	if text, ok := p.cache[key]; ok {
		p.mu.Unlock()
		telemetry.RecordFact(telemetry.FactHit)
		return Fact{DistrictID: districtID, Text: text, Cached: true}
	}
	epoch := p.epoch
	p.mu.Unlock()

	v, err, _ := p.group.Do(key.String()+"#"+strconv.FormatUint(epoch, 10), func() (any, error) {
		return p.generate(ctx, districtID, start, end)
	})
	if err != nil {
		telemetry.RecordFact(telemetry.FactFallback)
		telemetry.LoggerWithCorr(ctx).Warn("fact unavailable", slog.String("district", districtID), slog.String("class", ClassifyServiceError(err).String()), slog.Any("err", err), slog.String("component", "facts"))
		return Fact{DistrictID: districtID, Text: Placeholder, Fallback: true, Err: err}
	}
	text := v.(string)

	p.mu.Lock()
	if p.epoch == epoch {
		p.cache[key] = text
	}
	n := len(p.cache)
	p.mu.Unlock()

	telemetry.RecordFact(telemetry.FactMiss)
	telemetry.SetFactCacheEntries(n)
	return Fact{DistrictID: districtID, Text: text}
}

func (p *Provider) generate(ctx context.Context, districtID string, start, end time.Time) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "facts", "facts.generate", telemetry.DistrictAttr(districtID))
	defer span.End()

	req := Request{
		System:      SystemPrompt,
		Prompt:      BuildPrompt(start, end),
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
	}

	base := p.opts.Retry.BackoffBase
	var lastErr error
	for attempt := 0; attempt < p.opts.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := base * time.Duration(1<<attempt)
			if base > 0 {
				backoff += time.Duration(rand.Int63n(int64(base))) //nolint:gosec // jitter only
			}
			slog.Warn("retrying fact request", slog.String("district", districtID), slog.Int("attempt", attempt), slog.Duration("backoff", backoff), slog.String("component", "facts"))
			select {
			case <-ctx.Done():
				telemetry.RecordError(span, ctx.Err())
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		var text string
		telemetry.TimeFunc(telemetry.FactFetchDuration, func() {
			text, lastErr = p.attempt(ctx, req)
		})
		if lastErr == nil {
			telemetry.SetSpanSuccess(span)
			return text, nil
		}
		if !IsRetryableError(lastErr) || ctx.Err() != nil {
			break
		}
	}
	telemetry.RecordError(span, lastErr)
	return "", lastErr
}

func (p *Provider) attempt(ctx context.Context, req Request) (string, error) {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}
	text, err := p.gen.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fatal(0, errors.New("empty completion"))
	}
	return text, nil
}

// Clear drops every memoized fact. Lookups already in flight are not stored.
func (p *Provider) Clear() {
	p.mu.Lock()
	p.cache = make(map[Key]string)
	p.epoch++
	p.mu.Unlock()
	telemetry.SetFactCacheEntries(0)
}

// Len returns the number of memoized facts.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cache)
}

// Disabled is a generator that always fails. It is used when no text
// service is configured so every slide shows the placeholder.
type Disabled struct {
	Reason string
}

// Generate implements Generator.
func (d Disabled) Generate(context.Context, Request) (string, error) {
	reason := d.Reason
	if reason == "" {
		reason = "no text service configured"
	}
	return "", fatal(0, errors.New(reason))
}
