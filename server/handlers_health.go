package server

import (
	"fmt"
	"net/http"

	"github.com/onnwee/congress-slides/slideshow"
)

// HandleHealthz responds to liveness probes.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once the catalog is loaded and the sequencer has
// started.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	st := h.ctl.Status()
	checks := []struct {
		name string
		fn   func() error
	}{
		{"catalog", func() error {
			if st.Total < 1 {
				return fmt.Errorf("catalog empty")
			}
			return nil
		}},
		{"sequencer", func() error {
			switch st.State {
			case slideshow.StateRunning.String(), slideshow.StatePaused.String(), slideshow.StateCompleted.String():
				return nil
			}
			return fmt.Errorf("sequencer %s", st.State)
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
