package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/congress-slides/slideshow"
	"github.com/onnwee/congress-slides/telemetry"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) accepted(w http.ResponseWriter, r *http.Request, action string, ok bool) {
	if !ok {
		http.Error(w, "control queue full, try again", http.StatusServiceUnavailable)
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("control accepted", slog.String("action", action), slog.String("component", "http"))
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "action": action})
}

// HandleRestart starts the slideshow over from the first district.
// refresh (default true) also clears memoized facts.
func (h *Handlers) HandleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	refresh := true
	if v := r.URL.Query().Get("refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "refresh must be true or false", http.StatusBadRequest)
			return
		}
		refresh = b
	}
	h.accepted(w, r, "restart", h.ctl.Restart(refresh))
}

// HandlePause holds the slideshow before the next slide.
func (h *Handlers) HandlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.accepted(w, r, "pause", h.ctl.Pause())
}

// HandleResume releases a paused slideshow.
func (h *Handlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.accepted(w, r, "resume", h.ctl.Resume())
}

// HandleInterval sets the wait between slides in whole seconds.
func (h *Handlers) HandleInterval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	secs := parseIntQuery(r, "seconds", 0)
	minS, maxS := int(slideshow.MinInterval/time.Second), int(slideshow.MaxInterval/time.Second)
	if secs < minS || secs > maxS {
		http.Error(w, "seconds must be an integer between "+strconv.Itoa(minS)+" and "+strconv.Itoa(maxS), http.StatusBadRequest)
		return
	}
	d := h.ctl.SetInterval(time.Duration(secs) * time.Second)
	writeJSON(w, http.StatusOK, map[string]any{"interval_seconds": d.Seconds()})
}

// HandleStatus returns a snapshot of the sequencer.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Status())
}
