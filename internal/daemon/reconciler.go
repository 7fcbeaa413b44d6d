package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/1broseidon/winkeep/internal/engine"
	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/platform"
)

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically compares the live window set and monitor layout
// with what the engine was told, covering notifications the window manager
// dropped.
type Reconciler struct {
	interval time.Duration
	wm       platform.WindowManager
	post     func(engine.Event)
	logger   *slog.Logger
	resetCh  chan time.Duration

	last   geometry.Layout
	primed bool
}

// NewReconciler creates a new reconciler. post delivers events to the
// engine and must not block.
func NewReconciler(cfg ReconcilerConfig, wm platform.WindowManager, post func(engine.Event)) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		interval: interval,
		wm:       wm,
		post:     post,
		logger:   logger.With("component", "reconciler"),
		resetCh:  make(chan time.Duration, 1),
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return nil
		case d := <-r.resetCh:
			r.interval = d
			ticker.Reset(d)
			r.logger.Info("reconciler interval changed", "interval", d)
		case <-ticker.C:
			r.reconcile()
		}
	}
}

// SetInterval changes the sweep period of a running loop.
func (r *Reconciler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case r.resetCh <- d:
	default:
		// A pending change is replaced by the newest one.
		select {
		case <-r.resetCh:
		default:
		}
		r.resetCh <- d
	}
}

// reconcile performs a single reconciliation pass.
func (r *Reconciler) reconcile() {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("reconciler panic recovered", "error", err)
		}
	}()

	layout, err := r.wm.Monitors()
	if err != nil {
		r.logger.Error("reconciler: failed to list monitors", "error", err)
	} else {
		if r.primed && layoutChanged(r.last, layout) {
			r.logger.Info("reconciler: monitor layout drift detected",
				"was", r.last.Connectors(),
				"now", layout.Connectors())
			r.post(engine.MonitorLayoutChanged{})
		}
		r.last = layout
		r.primed = true
	}

	live, err := r.wm.ListWindows()
	if err != nil {
		r.logger.Error("reconciler: failed to list windows", "error", err)
		return
	}
	r.post(engine.Sweep{Live: live})
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow() {
	r.reconcile()
}

// layoutChanged reports a different connector set or a moved or resized
// monitor.
func layoutChanged(a, b geometry.Layout) bool {
	if !a.SameConnectors(b) {
		return true
	}
	for _, m := range a {
		other, _ := b.ByConnector(m.Connector)
		if other.Bounds != m.Bounds || other.WorkArea != m.WorkArea {
			return true
		}
	}
	return false
}
