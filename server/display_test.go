package server

import (
	"context"
	"testing"

	"github.com/onnwee/congress-slides/slideshow"
)

func TestDisplayLatest(t *testing.T) {
	d := NewDisplay(0)
	if _, ok := d.Latest(); ok {
		t.Fatal("Latest reported a slide before any Show")
	}
	if err := d.Show(context.Background(), slideshow.Slide{DistrictID: "001", Image: []byte{1, 2}}); err != nil {
		t.Fatalf("Show: %v", err)
	}
	if err := d.Show(context.Background(), slideshow.Slide{DistrictID: "002"}); err != nil {
		t.Fatalf("Show: %v", err)
	}
	s, ok := d.Latest()
	if !ok || s.DistrictID != "002" {
		t.Fatalf("Latest = %+v, %v; want district 002", s, ok)
	}
}

func TestDisplayFanOut(t *testing.T) {
	d := NewDisplay(2)
	a, cancelA := d.Subscribe()
	b, cancelB := d.Subscribe()
	defer cancelA()
	defer cancelB()

	if got := d.Subscribers(); got != 2 {
		t.Fatalf("Subscribers = %d, want 2", got)
	}
	_ = d.Show(context.Background(), slideshow.Slide{DistrictID: "001"})
	for name, ch := range map[string]<-chan slideshow.Slide{"a": a, "b": b} {
		select {
		case s := <-ch:
			if s.DistrictID != "001" {
				t.Errorf("subscriber %s got %s", name, s.DistrictID)
			}
		default:
			t.Errorf("subscriber %s received nothing", name)
		}
	}
}

func TestDisplaySlowSubscriberDropsFrames(t *testing.T) {
	d := NewDisplay(1)
	ch, cancel := d.Subscribe()
	defer cancel()

	for _, id := range []string{"001", "002", "003"} {
		if err := d.Show(context.Background(), slideshow.Slide{DistrictID: id}); err != nil {
			t.Fatalf("Show(%s) blocked or failed: %v", id, err)
		}
	}
	if s := <-ch; s.DistrictID != "001" {
		t.Errorf("buffered slide = %s, want 001", s.DistrictID)
	}
	select {
	case s := <-ch:
		t.Errorf("unexpected extra slide %s", s.DistrictID)
	default:
	}
	if s, _ := d.Latest(); s.DistrictID != "003" {
		t.Errorf("Latest = %s, want 003", s.DistrictID)
	}
}

func TestDisplayCancelClosesChannel(t *testing.T) {
	d := NewDisplay(1)
	ch, cancel := d.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}
	if d.Subscribers() != 0 {
		t.Errorf("Subscribers = %d after cancel", d.Subscribers())
	}
	if err := d.Show(context.Background(), slideshow.Slide{DistrictID: "001"}); err != nil {
		t.Errorf("Show after cancel: %v", err)
	}
}
