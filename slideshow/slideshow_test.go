package slideshow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"go.uber.org/goleak"

	"github.com/onnwee/congress-slides/catalog"
	"github.com/onnwee/congress-slides/facts"
	"github.com/onnwee/congress-slides/geometry"
	"github.com/onnwee/congress-slides/render"
	"github.com/onnwee/congress-slides/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeLoader struct {
	missing map[string]bool
}

func (l fakeLoader) Load(ctx context.Context, id string) (geometry.Geometry, error) {
	if err := ctx.Err(); err != nil {
		return geometry.Geometry{}, err
	}
	if l.missing[id] {
		return geometry.Geometry{}, fmt.Errorf("%w: district_%s.shp", geometry.ErrNotFound, id)
	}
	ring := geometry.Ring{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}
	return geometry.Geometry{DistrictID: id, Polygons: []geometry.Polygon{{Rings: []geometry.Ring{ring}}}}, nil
}

type fakeRenderer struct {
	failOrdinal string
}

func (r fakeRenderer) Render(ordinal string, geoms []geometry.Geometry, fact, dateRange string) (render.Artifact, error) {
	if ordinal == r.failOrdinal {
		return render.Artifact{}, errors.New("encode failed")
	}
	return render.Artifact{PNG: []byte("png-" + ordinal), Width: 10, Height: 10}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	slides []Slide
}

func (s *recordingSink) Show(ctx context.Context, sl Slide) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slides = append(s.slides, sl)
	return nil
}

func (s *recordingSink) all() []Slide {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Slide, len(s.slides))
	copy(out, s.slides)
	return out
}

type countingGenerator struct {
	calls   atomic.Int64
	failFor string // prompt substring
}

func (g *countingGenerator) Generate(ctx context.Context, req facts.Request) (string, error) {
	g.calls.Add(1)
	if g.failFor != "" && strings.Contains(req.Prompt, g.failFor) {
		return "", &facts.ServiceError{Class: facts.ErrorClassFatal, StatusCode: 500, Err: errors.New("upstream failure")}
	}
	return "fact: " + req.Prompt, nil
}

type harness struct {
	seq  *Sequencer
	sink *recordingSink
	gen  *countingGenerator
}

func newHarness(t *testing.T, loader geometry.Loader, r Renderer, cfg Config) harness {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	gen := &countingGenerator{}
	opts := facts.DefaultOptions()
	opts.Timeout = time.Second
	sink := &recordingSink{}
	seq := New(cat, loader, facts.NewProvider(gen, opts), r, sink, cfg)
	return harness{seq: seq, sink: sink, gen: gen}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRunPassRendersAllDistricts(t *testing.T) {
	h := newHarness(t, fakeLoader{}, fakeRenderer{}, Config{})

	res, err := h.seq.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass error: %v", err)
	}
	if res.Rendered != 25 || res.Skipped != 0 || res.FactFallbacks != 0 {
		t.Errorf("result = %+v", res)
	}
	slides := h.sink.all()
	if len(slides) != 25 {
		t.Fatalf("slides = %d, want 25", len(slides))
	}
	for i, sl := range slides {
		if want := catalog.FormatID(i + 1); sl.DistrictID != want {
			t.Errorf("slide %d = %s, want %s", i, sl.DistrictID, want)
		}
		if sl.Index != i+1 || sl.Total != 25 || sl.Pass != 1 {
			t.Errorf("slide %d position = %d/%d pass %d", i, sl.Index, sl.Total, sl.Pass)
		}
	}
	first := slides[0]
	if first.Title != "1st Congressional Session" || first.DateRange != "March 4, 1789 to March 3, 1791" {
		t.Errorf("first slide = %+v", first)
	}
	if string(first.Image) != "png-1st" {
		t.Errorf("image = %q", first.Image)
	}
	st := h.seq.Status()
	if st.State != "completed" || st.Pass != 1 || st.Total != 25 || st.CachedFacts != 25 {
		t.Errorf("status = %+v", st)
	}
}

func TestRunPassSkipsMissingBoundary(t *testing.T) {
	h := newHarness(t, fakeLoader{missing: map[string]bool{"003": true}}, fakeRenderer{}, Config{})

	res, err := h.seq.RunPass(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Rendered != 24 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}
	for _, sl := range h.sink.all() {
		if sl.DistrictID == "003" {
			t.Error("district 003 was displayed")
		}
	}
	if n := h.gen.calls.Load(); n != 24 {
		t.Errorf("fact calls = %d, want 24 (no fact for skipped district)", n)
	}
}

func TestFactFailureUsesPlaceholderAndContinues(t *testing.T) {
	h := newHarness(t, fakeLoader{}, fakeRenderer{}, Config{})
	cat, _ := catalog.Default()
	d010, _ := cat.Get("010")
	h.gen.failFor = catalog.FormatDate(d010.Start)

	res, err := h.seq.RunPass(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Rendered != 25 || res.FactFallbacks != 1 {
		t.Errorf("result = %+v", res)
	}
	slides := h.sink.all()
	s010, s011 := slides[9], slides[10]
	if s010.DistrictID != "010" || s010.Fact != facts.Placeholder || s010.FactError == "" {
		t.Errorf("slide 010 = %+v", s010)
	}
	if s011.DistrictID != "011" || s011.Fact == facts.Placeholder {
		t.Errorf("slide 011 = %+v", s011)
	}
	if st := h.seq.Status(); st.CachedFacts != 24 {
		t.Errorf("cached = %d, want 24 (failure not memoized)", st.CachedFacts)
	}
}

func TestRenderFailureSkipsSlide(t *testing.T) {
	h := newHarness(t, fakeLoader{}, fakeRenderer{failOrdinal: "5th"}, Config{})
	res, err := h.seq.RunPass(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Rendered != 24 || res.Skipped != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRestartCacheBehavior(t *testing.T) {
	h := newHarness(t, fakeLoader{}, fakeRenderer{}, Config{})
	ctx := context.Background()

	if _, err := h.seq.RunPass(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := h.seq.RunPass(ctx); err != nil {
		t.Fatal(err)
	}
	if n := h.gen.calls.Load(); n != 25 {
		t.Fatalf("calls after repeat pass = %d, want 25", n)
	}
	last := h.sink.all()[49]
	if !last.FactCached {
		t.Error("repeat pass did not reuse cached facts")
	}

	h.seq.Restart(false)
	if _, err := h.seq.RunPass(ctx); err != nil {
		t.Fatal(err)
	}
	if n := h.gen.calls.Load(); n != 25 {
		t.Errorf("calls after restart without refresh = %d, want 25", n)
	}

	h.seq.Restart(true)
	if _, err := h.seq.RunPass(ctx); err != nil {
		t.Fatal(err)
	}
	if n := h.gen.calls.Load(); n != 50 {
		t.Errorf("calls after refresh = %d, want 50", n)
	}
}

func TestRestartResetsCurrentDistrictGauge(t *testing.T) {
	h := newHarness(t, fakeLoader{}, fakeRenderer{}, Config{})
	current := func() float64 {
		m := &dto.Metric{}
		if err := telemetry.CurrentDistrict.Write(m); err != nil {
			t.Fatalf("write metric: %v", err)
		}
		return m.GetGauge().GetValue()
	}

	if _, err := h.seq.RunPass(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v := current(); v != 25 {
		t.Fatalf("current district after pass = %v, want 25", v)
	}
	h.seq.restart(false)
	if v := current(); v != 0 {
		t.Errorf("current district after restart = %v, want 0", v)
	}
	if st := h.seq.Status(); st.Current != "" || st.State != "running" {
		t.Errorf("status after restart = %+v", st)
	}
}

func TestRunWaitsForStartWhenIdle(t *testing.T) {
	h := newHarness(t, fakeLoader{}, fakeRenderer{}, Config{AutoStart: false})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.seq.Run(ctx) }()

	waitFor(t, "idle", func() bool { return h.seq.State() == StateIdle })
	if len(h.sink.all()) != 0 {
		t.Fatal("slides shown before start")
	}

	h.seq.Restart(false)
	waitFor(t, "completed", func() bool { return h.seq.State() == StateCompleted })
	if n := len(h.sink.all()); n != 25 {
		t.Errorf("slides = %d, want 25", n)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestPauseResumeRestartDuringWait(t *testing.T) {
	h := newHarness(t, fakeLoader{}, fakeRenderer{}, Config{Interval: time.Hour, AutoStart: true})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.seq.Run(ctx) }()

	waitFor(t, "first slide", func() bool { return len(h.sink.all()) == 1 })

	h.seq.Pause()
	waitFor(t, "paused", func() bool { return h.seq.State() == StatePaused })
	h.seq.Resume()
	waitFor(t, "running", func() bool { return h.seq.State() == StateRunning })

	h.seq.Restart(false)
	waitFor(t, "restarted pass", func() bool { return len(h.sink.all()) == 2 })
	second := h.sink.all()[1]
	if second.DistrictID != "001" || second.Pass != 2 {
		t.Errorf("after restart = %s pass %d, want 001 pass 2", second.DistrictID, second.Pass)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v", err)
	}
}

type gatedSink struct {
	recordingSink
	shown   chan struct{}
	release chan struct{}
}

func (s *gatedSink) Show(ctx context.Context, sl Slide) error {
	_ = s.recordingSink.Show(ctx, sl)
	if sl.DistrictID == "001" {
		close(s.shown)
		<-s.release
	}
	return nil
}

func TestPauseHoldsBetweenSlides(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	sink := &gatedSink{shown: make(chan struct{}), release: make(chan struct{})}
	seq := New(cat, fakeLoader{}, facts.NewProvider(&countingGenerator{}, facts.DefaultOptions()), fakeRenderer{}, sink, Config{AutoStart: true})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- seq.Run(ctx) }()

	<-sink.shown
	seq.Pause()
	close(sink.release)
	waitFor(t, "paused", func() bool { return seq.State() == StatePaused })
	time.Sleep(20 * time.Millisecond)
	if n := len(sink.all()); n != 1 {
		t.Fatalf("slides while paused = %d, want 1", n)
	}
	if st := seq.Status(); st.Current != "001" {
		t.Errorf("current = %q", st.Current)
	}

	seq.Resume()
	waitFor(t, "completed", func() bool { return seq.State() == StateCompleted })
	if n := len(sink.all()); n != 25 {
		t.Errorf("slides = %d, want 25", n)
	}
	cancel()
	<-errCh
}

func TestClampInterval(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, MinInterval},
		{500 * time.Millisecond, MinInterval},
		{3 * time.Second, 3 * time.Second},
		{10 * time.Second, 10 * time.Second},
		{time.Minute, MaxInterval},
	}
	for _, tt := range tests {
		if got := ClampInterval(tt.in); got != tt.want {
			t.Errorf("ClampInterval(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	h := newHarness(t, fakeLoader{}, fakeRenderer{}, Config{})
	if got := h.seq.SetInterval(20 * time.Second); got != MaxInterval || h.seq.Interval() != MaxInterval {
		t.Errorf("SetInterval = %v", got)
	}
	if st := h.seq.Status(); st.IntervalSeconds != 10 {
		t.Errorf("status interval = %v", st.IntervalSeconds)
	}
}
