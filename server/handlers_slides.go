package server

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/congress-slides/slideshow"
	"github.com/onnwee/congress-slides/telemetry"
)

//go:embed static/index.html
var indexHTML []byte

// slideView is the JSON shape of a slide with a cache-busting image URL.
type slideView struct {
	slideshow.Slide
	ImageURL string `json:"image_url"`
}

func newSlideView(s slideshow.Slide) slideView {
	return slideView{
		Slide:    s,
		ImageURL: "/slides/current.png?v=" + strconv.FormatInt(s.RenderedAt.UnixNano(), 10),
	}
}

// HandleIndex serves the viewer page.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

// HandleCurrentPNG returns the most recent slide image.
func (h *Handlers) HandleCurrentPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, ok := h.display.Latest()
	if !ok || len(s.Image) == 0 {
		http.Error(w, "no slide rendered yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(s.Image)))
	_, _ = w.Write(s.Image)
}

// HandleCurrentSlide returns metadata for the most recent slide.
func (h *Handlers) HandleCurrentSlide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, ok := h.display.Latest()
	if !ok {
		http.Error(w, "no slide rendered yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(newSlideView(s))
}

// HandleStream pushes slide metadata as Server-Sent Events. The latest slide,
// if any, is sent first.
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	// The server write timeout would otherwise cut long-lived streams.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		telemetry.LoggerWithCorr(r.Context()).Debug("could not clear write deadline", slog.Any("err", err), slog.String("component", "http"))
	}

	ctx := r.Context()
	ch, cancel := h.display.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	send := func(s slideshow.Slide) bool {
		if _, err := w.Write([]byte("data: ")); err != nil {
			slog.Warn("failed to write SSE data prefix", slog.Any("err", err))
			return false
		}
		_ = enc.Encode(newSlideView(s))
		if _, err := w.Write([]byte("\n")); err != nil {
			slog.Warn("failed to write SSE newline", slog.Any("err", err))
			return false
		}
		flusher.Flush()
		return true
	}

	if s, ok := h.display.Latest(); ok {
		if !send(s) {
			return
		}
	} else {
		flusher.Flush()
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok || !send(s) {
				return
			}
		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
