// Package slideshow sequences district slides: for each district in catalog
// order it loads the boundary, fetches a fact, renders the slide and hands it
// to a display sink, then waits the configured interval.
package slideshow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/congress-slides/catalog"
	"github.com/onnwee/congress-slides/facts"
	"github.com/onnwee/congress-slides/geometry"
	"github.com/onnwee/congress-slides/render"
	"github.com/onnwee/congress-slides/telemetry"
)

// Interval bounds accepted from interactive controls.
const (
	MinInterval     = 1 * time.Second
	MaxInterval     = 10 * time.Second
	DefaultInterval = 1 * time.Second
)

// State is the sequencer lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Slide is one displayed district. Image holds the PNG bytes.
type Slide struct {
	DistrictID string    `json:"district_id"`
	Number     int       `json:"number"`
	Ordinal    string    `json:"ordinal"`
	Title      string    `json:"title"`
	DateRange  string    `json:"date_range"`
	Fact       string    `json:"fact"`
	FactCached bool      `json:"fact_cached"`
	FactError  string    `json:"fact_error,omitempty"`
	Empty      bool      `json:"empty"`
	Index      int       `json:"index"`
	Total      int       `json:"total"`
	Pass       int       `json:"pass"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	RenderedAt time.Time `json:"rendered_at"`
	Image      []byte    `json:"-"`
}

// Sink displays slides.
type Sink interface {
	Show(ctx context.Context, s Slide) error
}

// FactSource supplies facts; *facts.Provider implements it.
type FactSource interface {
	Fetch(ctx context.Context, districtID string, start, end time.Time) facts.Fact
	Clear()
	Len() int
}

// Renderer draws slides; *render.Renderer implements it.
type Renderer interface {
	Render(ordinal string, geoms []geometry.Geometry, fact, dateRange string) (render.Artifact, error)
}

// Config tunes a Sequencer.
type Config struct {
	Interval  time.Duration // 0 disables the wait between slides
	AutoStart bool
}

// PassResult summarizes one pass over the catalog.
type PassResult struct {
	Rendered      int
	Skipped       int
	FactFallbacks int
}

// Status is a point-in-time view of the sequencer.
type Status struct {
	State           string  `json:"state"`
	Pass            int     `json:"pass"`
	Current         string  `json:"current,omitempty"`
	Index           int     `json:"index"`
	Total           int     `json:"total"`
	IntervalSeconds float64 `json:"interval_seconds"`
	CachedFacts     int     `json:"cached_facts"`
	LastError       string  `json:"last_error,omitempty"`
}

type controlKind int

const (
	ctlRestart controlKind = iota
	ctlPause
	ctlResume
)

type control struct {
	kind    controlKind
	refresh bool
}

// errRestart unwinds the current pass after a restart request.
var errRestart = errors.New("slideshow restarted")

// Sequencer drives the slideshow. Exactly one goroutine runs Run or
// RunPass; controls may be called from any goroutine.
type Sequencer struct {
	catalog  *catalog.Catalog
	loader   geometry.Loader
	facts    FactSource
	renderer Renderer
	sink     Sink
	cfg      Config

	controls chan control

	mu       sync.Mutex
	state    State
	pass     int
	current  string
	index    int
	interval time.Duration
	lastErr  string
}

// New wires a sequencer.
func New(cat *catalog.Catalog, loader geometry.Loader, fs FactSource, r Renderer, sink Sink, cfg Config) *Sequencer {
	telemetry.Init()
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	return &Sequencer{
		catalog:  cat,
		loader:   loader,
		facts:    fs,
		renderer: r,
		sink:     sink,
		cfg:      cfg,
		controls: make(chan control, 16),
		interval: cfg.Interval,
	}
}

// Run blocks until ctx is canceled. With AutoStart it begins a pass
// immediately; otherwise it waits for Restart. After a full pass it waits
// in StateCompleted for Restart.
func (s *Sequencer) Run(ctx context.Context) error {
	if s.cfg.AutoStart {
		s.setState(StateRunning)
	} else {
		s.setState(StateIdle)
	}
	slog.Info("slideshow starting", slog.Bool("auto_start", s.cfg.AutoStart), slog.Duration("interval", s.Interval()), slog.Int("districts", s.catalog.Len()), slog.String("component", "slideshow"))

	for {
		switch s.State() {
		case StateIdle, StateCompleted:
			select {
			case <-ctx.Done():
				slog.Info("slideshow stopped", slog.String("component", "slideshow"))
				return ctx.Err()
			case c := <-s.controls:
				if c.kind == ctlRestart {
					s.restart(c.refresh)
				}
			}
		default:
			res, err := s.runPass(ctx)
			switch {
			case errors.Is(err, errRestart):
				continue
			case err != nil:
				slog.Info("slideshow stopped", slog.String("component", "slideshow"))
				return err
			}
			s.completePass(res)
		}
	}
}

// RunPass performs one synchronous pass and returns its summary. A restart
// requested during the pass starts it over.
func (s *Sequencer) RunPass(ctx context.Context) (PassResult, error) {
	s.setState(StateRunning)
	for {
		res, err := s.runPass(ctx)
		if errors.Is(err, errRestart) {
			continue
		}
		if err != nil {
			return res, err
		}
		s.completePass(res)
		return res, nil
	}
}

func (s *Sequencer) completePass(res PassResult) {
	s.setState(StateCompleted)
	telemetry.PassesCompleted.Inc()
	s.mu.Lock()
	pass := s.pass
	s.mu.Unlock()
	slog.Info("slideshow pass complete", slog.Int("pass", pass), slog.Int("rendered", res.Rendered), slog.Int("skipped", res.Skipped), slog.Int("fact_fallbacks", res.FactFallbacks), slog.String("component", "slideshow"))
}

func (s *Sequencer) runPass(ctx context.Context) (PassResult, error) {
	var res PassResult
	s.mu.Lock()
	s.pass++
	pass := s.pass
	s.mu.Unlock()

	districts := s.catalog.List()
	for i, d := range districts {
		if err := s.checkpoint(ctx); err != nil {
			return res, err
		}
		rendered, fallback, err := s.step(ctx, d, i+1, len(districts), pass)
		if err != nil {
			return res, err
		}
		if fallback {
			res.FactFallbacks++
		}
		if !rendered {
			res.Skipped++
			continue
		}
		res.Rendered++
		if err := s.wait(ctx, s.Interval()); err != nil {
			return res, err
		}
	}
	return res, nil
}

// step produces and shows one slide. The error is non-nil only when ctx
// is done.
func (s *Sequencer) step(ctx context.Context, d catalog.District, index, total, pass int) (rendered, fallback bool, err error) {
	ctx, span := telemetry.StartSpan(ctx, "slideshow", "slideshow.slide", telemetry.DistrictAttr(d.ID))
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("district", d.ID), slog.String("component", "slideshow"))

	s.mu.Lock()
	s.current = d.ID
	s.index = index
	s.mu.Unlock()

	g, err := s.loader.Load(ctx, d.ID)
	if err != nil {
		if ctx.Err() != nil {
			return false, false, ctx.Err()
		}
		if errors.Is(err, geometry.ErrNotFound) {
			log.Warn("boundary not found; skipping", slog.Any("err", err))
		} else {
			log.Error("boundary load failed; skipping", slog.Any("err", err))
		}
		s.setLastError("Boundary for District " + d.ID + " not found. Skipping.")
		telemetry.SlidesSkipped.Inc()
		telemetry.RecordError(span, err)
		return false, false, nil
	}

	fact := s.facts.Fetch(ctx, d.ID, d.Start, d.End)
	if ctx.Err() != nil {
		return false, false, ctx.Err()
	}
	if fact.Fallback {
		s.setLastError(fact.Diagnostic())
	}

	var art render.Artifact
	var renderErr error
	telemetry.TimeFunc(telemetry.RenderDuration, func() {
		art, renderErr = s.renderer.Render(d.Ordinal, []geometry.Geometry{g}, fact.Text, d.DateRange())
	})
	if renderErr != nil {
		log.Error("render failed; skipping", slog.Any("err", renderErr))
		s.setLastError("Render failed for District " + d.ID + ".")
		telemetry.SlidesSkipped.Inc()
		telemetry.RecordError(span, renderErr)
		return false, fact.Fallback, nil
	}

	slide := Slide{
		DistrictID: d.ID,
		Number:     d.Number,
		Ordinal:    d.Ordinal,
		Title:      render.Title(d.Ordinal),
		DateRange:  d.DateRange(),
		Fact:       fact.Text,
		FactCached: fact.Cached,
		FactError:  fact.Diagnostic(),
		Empty:      art.Empty,
		Index:      index,
		Total:      total,
		Pass:       pass,
		Width:      art.Width,
		Height:     art.Height,
		RenderedAt: time.Now().UTC(),
		Image:      art.PNG,
	}
	if err := s.sink.Show(ctx, slide); err != nil {
		log.Warn("display failed", slog.Any("err", err))
	}
	telemetry.SlidesRendered.Inc()
	telemetry.SetCurrentDistrict(d.Number)
	telemetry.SetSpanSuccess(span)
	log.Debug("slide shown", slog.Bool("fact_cached", fact.Cached), slog.Bool("fact_fallback", fact.Fallback))
	return true, fact.Fallback, nil
}

// checkpoint applies queued controls between slides and blocks while paused.
func (s *Sequencer) checkpoint(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-s.controls:
			if err := s.apply(c); err != nil {
				return err
			}
			continue
		default:
		}
		if s.State() != StatePaused {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-s.controls:
			if err := s.apply(c); err != nil {
				return err
			}
		}
	}
}

// wait sleeps d while still honoring controls.
func (s *Sequencer) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		case c := <-s.controls:
			if err := s.apply(c); err != nil {
				return err
			}
		}
	}
}

func (s *Sequencer) apply(c control) error {
	switch c.kind {
	case ctlRestart:
		s.restart(c.refresh)
		return errRestart
	case ctlPause:
		s.setState(StatePaused)
	case ctlResume:
		s.setState(StateRunning)
	}
	return nil
}

func (s *Sequencer) restart(refresh bool) {
	if refresh {
		s.facts.Clear()
	}
	s.mu.Lock()
	s.current = ""
	s.index = 0
	s.lastErr = ""
	s.mu.Unlock()
	telemetry.SetCurrentDistrict(0)
	s.setState(StateRunning)
	slog.Info("slideshow restarting", slog.Bool("refresh", refresh), slog.String("component", "slideshow"))
}

func (s *Sequencer) send(c control) bool {
	select {
	case s.controls <- c:
		return true
	default:
		slog.Warn("slideshow control queue full; dropping request", slog.String("component", "slideshow"))
		return false
	}
}

// Restart abandons the current pass and starts again at the first
// district. refresh clears memoized facts first.
func (s *Sequencer) Restart(refresh bool) bool { return s.send(control{kind: ctlRestart, refresh: refresh}) }

// Pause holds the loop before the next slide.
func (s *Sequencer) Pause() bool { return s.send(control{kind: ctlPause}) }

// Resume releases a paused loop.
func (s *Sequencer) Resume() bool { return s.send(control{kind: ctlResume}) }

// SetInterval sets the wait between slides, clamped to
// [MinInterval, MaxInterval]. It applies from the next wait.
func (s *Sequencer) SetInterval(d time.Duration) time.Duration {
	d = ClampInterval(d)
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
	return d
}

// ClampInterval bounds d to [MinInterval, MaxInterval].
func ClampInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}

// Interval returns the current wait between slides.
func (s *Sequencer) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// State returns the lifecycle state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sequencer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	telemetry.SetSequencerState(int(st))
}

func (s *Sequencer) setLastError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

// Status returns a snapshot for the status endpoint.
func (s *Sequencer) Status() Status {
	cached := s.facts.Len()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:           s.state.String(),
		Pass:            s.pass,
		Current:         s.current,
		Index:           s.index,
		Total:           s.catalog.Len(),
		IntervalSeconds: s.interval.Seconds(),
		CachedFacts:     cached,
		LastError:       s.lastErr,
	}
}
