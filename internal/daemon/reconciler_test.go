package daemon

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/winkeep/internal/engine"
	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/platform/platformtest"
)

type postRecorder struct {
	mu     sync.Mutex
	events []engine.Event
}

func (p *postRecorder) post(ev engine.Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *postRecorder) take() []engine.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	return out
}

func newTestReconciler(wm *platformtest.WM, rec *postRecorder) *Reconciler {
	return NewReconciler(ReconcilerConfig{
		Interval: time.Hour,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, wm, rec.post)
}

func TestReconcileSweepsLiveWindows(t *testing.T) {
	wm := platformtest.New(laptop)
	a := wm.Open("org.gnome.Terminal", "user@host: ~", geometry.Rect{Width: 400, Height: 300})
	b := wm.Open("org.gnome.Nautilus", "Home", geometry.Rect{Width: 400, Height: 300})
	rec := &postRecorder{}
	r := newTestReconciler(wm, rec)

	r.ReconcileNow()

	events := rec.take()
	if len(events) != 1 {
		t.Fatalf("events = %#v, want one sweep", events)
	}
	sweep, ok := events[0].(engine.Sweep)
	if !ok {
		t.Fatalf("event = %#v, want Sweep", events[0])
	}
	if len(sweep.Live) != 2 || sweep.Live[0] != a || sweep.Live[1] != b {
		t.Fatalf("live = %v, want [%v %v]", sweep.Live, a, b)
	}
}

func TestReconcileDetectsLayoutDrift(t *testing.T) {
	wm := platformtest.New(laptop)
	rec := &postRecorder{}
	r := newTestReconciler(wm, rec)

	// The first pass only records the layout.
	r.ReconcileNow()
	if hasLayoutChange(rec.take()) {
		t.Fatal("first pass reported a layout change")
	}

	wm.Connect(external)
	r.ReconcileNow()
	if !hasLayoutChange(rec.take()) {
		t.Fatal("connected monitor not reported")
	}

	r.ReconcileNow()
	if hasLayoutChange(rec.take()) {
		t.Fatal("unchanged layout reported")
	}
}

func TestLayoutChanged(t *testing.T) {
	moved := external
	moved.Bounds.X = 0
	moved.Bounds.Y = 1024

	tests := []struct {
		name string
		a, b geometry.Layout
		want bool
	}{
		{"same", geometry.Layout{laptop, external}, geometry.Layout{laptop, external}, false},
		{"added", geometry.Layout{laptop}, geometry.Layout{laptop, external}, true},
		{"removed", geometry.Layout{laptop, external}, geometry.Layout{laptop}, true},
		{"moved", geometry.Layout{laptop, external}, geometry.Layout{laptop, moved}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := layoutChanged(tt.a, tt.b); got != tt.want {
				t.Fatalf("layoutChanged() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReconcilerRunStopsOnCancel(t *testing.T) {
	wm := platformtest.New(laptop)
	rec := &postRecorder{}
	r := newTestReconciler(wm, rec)
	r.SetInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	waitFor(t, "periodic sweep", func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.events) > 0
	})
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}

func hasLayoutChange(events []engine.Event) bool {
	for _, ev := range events {
		if _, ok := ev.(engine.MonitorLayoutChanged); ok {
			return true
		}
	}
	return false
}
