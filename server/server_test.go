package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/onnwee/congress-slides/config"
	"github.com/onnwee/congress-slides/slideshow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

type fakeController struct {
	mu       sync.Mutex
	restarts []bool
	pauses   int
	resumes  int
	interval time.Duration
	status   slideshow.Status
	full     bool
}

func (f *fakeController) Restart(refresh bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.restarts = append(f.restarts, refresh)
	return true
}

func (f *fakeController) Pause() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return !f.full
}

func (f *fakeController) Resume() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return !f.full
}

func (f *fakeController) SetInterval(d time.Duration) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interval = slideshow.ClampInterval(d)
	return f.interval
}

func (f *fakeController) Status() slideshow.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func testConfig() *config.Config {
	return &config.Config{HTTPAddr: "127.0.0.1:0", RateLimitEnabled: false}
}

func newTestMux(t *testing.T, cfg *config.Config) (http.Handler, *Display, *fakeController) {
	t.Helper()
	d := NewDisplay(4)
	ctl := &fakeController{status: slideshow.Status{State: "running", Total: 25, IntervalSeconds: 1}}
	return NewMux(testContext(t), cfg, d, ctl), d, ctl
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthzOK(t *testing.T) {
	h, _, _ := newTestMux(t, testConfig())
	rr := do(h, http.MethodGet, "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "ok" {
		t.Fatalf("expected ok body, got %q", got)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		state      string
		total      int
		wantStatus int
		wantCheck  string
	}{
		{"running", 25, http.StatusOK, ""},
		{"paused", 25, http.StatusOK, ""},
		{"completed", 25, http.StatusOK, ""},
		{"idle", 25, http.StatusServiceUnavailable, "sequencer"},
		{"running", 0, http.StatusServiceUnavailable, "catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			h, _, ctl := newTestMux(t, testConfig())
			ctl.status = slideshow.Status{State: tt.state, Total: tt.total}
			rr := do(h, http.MethodGet, "/readyz")
			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d, body=%s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			var resp map[string]string
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp["failed_check"] != tt.wantCheck {
				t.Errorf("failed_check = %q, want %q", resp["failed_check"], tt.wantCheck)
			}
		})
	}
}

func TestIndexPage(t *testing.T) {
	h, _, _ := newTestMux(t, testConfig())
	rr := do(h, http.MethodGet, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"/slides/stream", `min="1"`, `max="10"`, "/controls/restart"} {
		if !strings.Contains(body, want) {
			t.Errorf("index page missing %q", want)
		}
	}
	if rr := do(h, http.MethodGet, "/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rr.Code)
	}
}

func TestCurrentSlideEndpoints(t *testing.T) {
	h, d, _ := newTestMux(t, testConfig())

	if rr := do(h, http.MethodGet, "/slides/current.png"); rr.Code != http.StatusNotFound {
		t.Errorf("png before first slide = %d, want 404", rr.Code)
	}
	if rr := do(h, http.MethodGet, "/slides/current"); rr.Code != http.StatusNotFound {
		t.Errorf("metadata before first slide = %d, want 404", rr.Code)
	}

	png := []byte("\x89PNG fake")
	_ = d.Show(context.Background(), slideshow.Slide{
		DistrictID: "007",
		Title:      "7th Congressional Session",
		Fact:       "Historical fact not available.",
		FactError:  "Error fetching historical fact for District 007: boom",
		RenderedAt: time.Unix(100, 0),
		Image:      png,
	})

	rr := do(h, http.MethodGet, "/slides/current.png")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("png status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	if rr.Body.String() != string(png) {
		t.Error("png body mismatch")
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Error("png should not be cached")
	}

	rr = do(h, http.MethodGet, "/slides/current")
	var got struct {
		DistrictID string `json:"district_id"`
		FactError  string `json:"fact_error"`
		ImageURL   string `json:"image_url"`
		Image      []byte `json:"image"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DistrictID != "007" || !strings.Contains(got.FactError, "District 007") {
		t.Errorf("unexpected slide %+v", got)
	}
	if !strings.HasPrefix(got.ImageURL, "/slides/current.png?v=") {
		t.Errorf("image_url = %q", got.ImageURL)
	}
	if got.Image != nil {
		t.Error("image bytes leaked into metadata")
	}
}

func TestStatusEndpoint(t *testing.T) {
	h, _, ctl := newTestMux(t, testConfig())
	ctl.status = slideshow.Status{State: "paused", Pass: 2, Current: "012", Index: 12, Total: 25, IntervalSeconds: 3}
	rr := do(h, http.MethodGet, "/status")
	var st slideshow.Status
	if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st != ctl.status {
		t.Errorf("status = %+v, want %+v", st, ctl.status)
	}
	if rr := do(h, http.MethodPost, "/status"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /status = %d, want 405", rr.Code)
	}
}

func TestControlEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		full       bool
		wantStatus int
	}{
		{"restart default", http.MethodPost, "/controls/restart", false, http.StatusAccepted},
		{"restart keep cache", http.MethodPost, "/controls/restart?refresh=false", false, http.StatusAccepted},
		{"restart bad refresh", http.MethodPost, "/controls/restart?refresh=maybe", false, http.StatusBadRequest},
		{"restart queue full", http.MethodPost, "/controls/restart", true, http.StatusServiceUnavailable},
		{"restart via GET", http.MethodGet, "/controls/restart", false, http.StatusMethodNotAllowed},
		{"pause", http.MethodPost, "/controls/pause", false, http.StatusAccepted},
		{"resume", http.MethodPost, "/controls/resume", false, http.StatusAccepted},
		{"interval ok", http.MethodPost, "/controls/interval?seconds=5", false, http.StatusOK},
		{"interval max", http.MethodPost, "/controls/interval?seconds=10", false, http.StatusOK},
		{"interval zero", http.MethodPost, "/controls/interval?seconds=0", false, http.StatusBadRequest},
		{"interval too large", http.MethodPost, "/controls/interval?seconds=11", false, http.StatusBadRequest},
		{"interval missing", http.MethodPost, "/controls/interval", false, http.StatusBadRequest},
		{"interval not a number", http.MethodPost, "/controls/interval?seconds=2.5", false, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, ctl := newTestMux(t, testConfig())
			ctl.full = tt.full
			rr := do(h, tt.method, tt.target)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestControlEffects(t *testing.T) {
	h, _, ctl := newTestMux(t, testConfig())
	do(h, http.MethodPost, "/controls/restart")
	do(h, http.MethodPost, "/controls/restart?refresh=false")
	do(h, http.MethodPost, "/controls/pause")
	do(h, http.MethodPost, "/controls/resume")
	rr := do(h, http.MethodPost, "/controls/interval?seconds=4")

	if len(ctl.restarts) != 2 || !ctl.restarts[0] || ctl.restarts[1] {
		t.Errorf("restarts = %v, want [true false]", ctl.restarts)
	}
	if ctl.pauses != 1 || ctl.resumes != 1 {
		t.Errorf("pauses=%d resumes=%d", ctl.pauses, ctl.resumes)
	}
	if ctl.interval != 4*time.Second {
		t.Errorf("interval = %v, want 4s", ctl.interval)
	}
	var resp map[string]float64
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["interval_seconds"] != 4 {
		t.Errorf("interval_seconds = %v", resp["interval_seconds"])
	}
}

func TestControlsRequireAuthWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.ControlToken = "s3cret"
	h, _, ctl := newTestMux(t, cfg)

	if rr := do(h, http.MethodPost, "/controls/pause"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated pause = %d, want 401", rr.Code)
	}
	if ctl.pauses != 0 {
		t.Fatal("pause reached the controller without credentials")
	}

	req := httptest.NewRequest(http.MethodPost, "/controls/pause", nil)
	req.Header.Set("X-Control-Token", "s3cret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("authenticated pause = %d, want 202", rr.Code)
	}

	// Read-only routes stay open.
	if rr := do(h, http.MethodGet, "/status"); rr.Code != http.StatusOK {
		t.Errorf("/status = %d, want 200", rr.Code)
	}
}

func TestControlsRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitEnabled = true
	cfg.RateLimitRequestsPerIP = 2
	cfg.RateLimitWindowSeconds = 60
	h, _, _ := newTestMux(t, cfg)

	for i := 0; i < 2; i++ {
		if rr := do(h, http.MethodPost, "/controls/pause"); rr.Code != http.StatusAccepted {
			t.Fatalf("request %d = %d", i+1, rr.Code)
		}
	}
	rr := do(h, http.MethodPost, "/controls/pause")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("request 3 = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	if rr := do(h, http.MethodGet, "/status"); rr.Code != http.StatusOK {
		t.Errorf("/status should not be rate limited, got %d", rr.Code)
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	h, _, _ := newTestMux(t, testConfig())

	rr := do(h, http.MethodGet, "/healthz")
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing generated correlation id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-ID"); got != "abc-123" {
		t.Errorf("correlation id = %q, want abc-123", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _, _ := newTestMux(t, testConfig())
	rr := do(h, http.MethodGet, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
}

func TestSlideStream(t *testing.T) {
	h, d, _ := newTestMux(t, testConfig())
	srv := httptest.NewServer(h)
	defer srv.Close()

	_ = d.Show(context.Background(), slideshow.Slide{DistrictID: "001", RenderedAt: time.Unix(1, 0)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/slides/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	reader := bufio.NewReader(resp.Body)

	var first struct {
		DistrictID string `json:"district_id"`
	}
	if err := json.Unmarshal([]byte(readEvent(t, reader)), &first); err != nil {
		t.Fatalf("decode first event: %v", err)
	}
	if first.DistrictID != "001" {
		t.Errorf("first event district = %q, want latest 001", first.DistrictID)
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	_ = d.Show(context.Background(), slideshow.Slide{DistrictID: "002", RenderedAt: time.Unix(2, 0)})

	var second struct {
		DistrictID string `json:"district_id"`
		ImageURL   string `json:"image_url"`
	}
	if err := json.Unmarshal([]byte(readEvent(t, reader)), &second); err != nil {
		t.Fatalf("decode second event: %v", err)
	}
	if second.DistrictID != "002" || second.ImageURL == "" {
		t.Errorf("second event = %+v", second)
	}

	cancel()
	deadline = time.Now().Add(2 * time.Second)
	for d.Subscribers() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := d.Subscribers(); n != 0 {
		t.Errorf("subscribers after disconnect = %d", n)
	}
}

func TestStreamRequiresFlusher(t *testing.T) {
	h := NewHandlers(NewDisplay(1), &fakeController{})
	rr := &nonFlusher{header: http.Header{}}
	h.HandleStream(rr, httptest.NewRequest(http.MethodGet, "/slides/stream", nil))
	if rr.code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.code)
	}
}

type nonFlusher struct {
	header http.Header
	code   int
}

func (n *nonFlusher) Header() http.Header         { return n.header }
func (n *nonFlusher) Write(b []byte) (int, error) { return len(b), nil }
func (n *nonFlusher) WriteHeader(code int)        { n.code = code }

func TestStartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Start(ctx, testConfig(), NewDisplay(1), &fakeController{}) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeEndsOpenStreams(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := NewDisplay(1)
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, NewMux(ctx, testConfig(), d, &fakeController{})) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/slides/stream")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	start := time.Now()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return")
	}
	if time.Since(start) > 4*time.Second {
		t.Errorf("shutdown waited on the open stream for %v", time.Since(start))
	}
}
