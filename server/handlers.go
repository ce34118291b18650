// Package server exposes the HTTP API handlers.
package server

import (
	"time"

	"github.com/onnwee/congress-slides/slideshow"
)

// Controller is the slice of the sequencer the control endpoints drive;
// *slideshow.Sequencer implements it.
type Controller interface {
	Restart(refresh bool) bool
	Pause() bool
	Resume() bool
	SetInterval(d time.Duration) time.Duration
	Status() slideshow.Status
}

var _ Controller = (*slideshow.Sequencer)(nil)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	display   *Display
	ctl       Controller
	heartbeat time.Duration
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(display *Display, ctl Controller) *Handlers {
	return &Handlers{
		display:   display,
		ctl:       ctl,
		heartbeat: 15 * time.Second,
	}
}
