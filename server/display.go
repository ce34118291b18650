package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/onnwee/congress-slides/slideshow"
)

const defaultSubscriberBuffer = 4

// Display is the slideshow sink backing the HTTP surface. It keeps the most
// recent slide and fans new slides out to stream subscribers.
type Display struct {
	mu      sync.RWMutex
	latest  *slideshow.Slide
	subs    map[chan slideshow.Slide]struct{}
	bufSize int
}

var _ slideshow.Sink = (*Display)(nil)

// NewDisplay returns an empty display. bufSize <= 0 uses the default.
func NewDisplay(bufSize int) *Display {
	if bufSize <= 0 {
		bufSize = defaultSubscriberBuffer
	}
	return &Display{subs: make(map[chan slideshow.Slide]struct{}), bufSize: bufSize}
}

// Show stores s as the latest slide and broadcasts it. Subscribers whose
// buffer is full miss this slide.
func (d *Display) Show(ctx context.Context, s slideshow.Slide) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := s
	d.latest = &cp
	for ch := range d.subs {
		select {
		case ch <- s:
		default:
			slog.Debug("dropping slide for slow subscriber", slog.String("district", s.DistrictID), slog.String("component", "display"))
		}
	}
	return ctx.Err()
}

// Latest returns the most recent slide, if any.
func (d *Display) Latest() (slideshow.Slide, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.latest == nil {
		return slideshow.Slide{}, false
	}
	return *d.latest, true
}

// Subscribe registers a stream listener. The cancel func unregisters it and
// closes the channel; it is safe to call more than once.
func (d *Display) Subscribe() (<-chan slideshow.Slide, func()) {
	ch := make(chan slideshow.Slide, d.bufSize)
	d.mu.Lock()
	d.subs[ch] = struct{}{}
	d.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, ch)
			d.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports the number of active stream listeners.
func (d *Display) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}
