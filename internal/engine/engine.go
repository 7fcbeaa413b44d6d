// Package engine reconciles live windows with their saved placement. A
// single dispatcher goroutine owns every tracked window; window manager
// callbacks, timers and control requests only post events to it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/model"
	"github.com/1broseidon/winkeep/internal/monitorpref"
	"github.com/1broseidon/winkeep/internal/platform"
	"github.com/1broseidon/winkeep/internal/policy"
	"github.com/1broseidon/winkeep/internal/title"
)

// Persister loads and stores the saved-window records.
type Persister interface {
	SavedWindows(ctx context.Context) (model.SavedWindows, error)
	PutSavedWindows(ctx context.Context, saved model.SavedWindows) error
}

// Config holds the engine's collaborators and tunables.
type Config struct {
	WM         platform.WindowManager
	Store      Persister
	Classifier *title.Classifier
	Prefs      *monitorpref.Stack
	Resolver   *policy.Resolver
	Scheduler  Scheduler
	Logger     *slog.Logger
	Now        func() time.Time

	// SettleDelay is how long to wait after applying operations before
	// checking for drift.
	SettleDelay time.Duration
	// GenericTimeout is how long a window may keep a generic title before
	// it is identified by the wildcard.
	GenericTimeout time.Duration
	// DriftTolerance is the per-edge slack, in pixels, when comparing a
	// window to its target.
	DriftTolerance   int
	MaxDriftAttempts int
	// SaveInterval is the minimum spacing of store writes. Removals and
	// shutdown always write.
	SaveInterval time.Duration
}

// Defaults.
const (
	DefaultSettleDelay      = 500 * time.Millisecond
	DefaultGenericTimeout   = 1500 * time.Millisecond
	DefaultDriftTolerance   = 2
	DefaultMaxDriftAttempts = 3
	DefaultSaveInterval     = 2 * time.Second
)

// Engine is the reconciliation state machine.
type Engine struct {
	wm         platform.WindowManager
	store      Persister
	classifier *title.Classifier
	prefs      *monitorpref.Stack
	resolver   *policy.Resolver
	sched      Scheduler
	log        *slog.Logger
	now        func() time.Time

	settleDelay    time.Duration
	genericTimeout time.Duration
	tolerance      int
	maxDrift       int
	saveInterval   time.Duration

	box     *mailbox
	limiter *rate.Limiter
	ctx     context.Context

	windows    map[platform.WindowID]*TrackedWindow
	ignored    map[platform.WindowID]bool
	saved      model.SavedWindows
	layout     geometry.Layout
	dirty      bool
	flushTimer Timer
	started    bool
}

// New builds an engine. It does not touch the window manager; call Start
// once every collaborator is wired, then Run.
func New(cfg Config) (*Engine, error) {
	if cfg.WM == nil {
		return nil, errors.New("engine: window manager is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = title.New(title.DefaultMinSpecificLength, nil)
	}
	if cfg.Prefs == nil {
		cfg.Prefs = monitorpref.New()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = policy.NewResolver(model.ActionRestore, nil, nil)
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = realScheduler{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.GenericTimeout <= 0 {
		cfg.GenericTimeout = DefaultGenericTimeout
	}
	if cfg.DriftTolerance < 0 {
		cfg.DriftTolerance = DefaultDriftTolerance
	}
	if cfg.MaxDriftAttempts <= 0 {
		cfg.MaxDriftAttempts = DefaultMaxDriftAttempts
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = DefaultSaveInterval
	}

	return &Engine{
		wm:             cfg.WM,
		store:          cfg.Store,
		classifier:     cfg.Classifier,
		prefs:          cfg.Prefs,
		resolver:       cfg.Resolver,
		sched:          cfg.Scheduler,
		log:            cfg.Logger.With("component", "engine"),
		now:            cfg.Now,
		settleDelay:    cfg.SettleDelay,
		genericTimeout: cfg.GenericTimeout,
		tolerance:      cfg.DriftTolerance,
		maxDrift:       cfg.MaxDriftAttempts,
		saveInterval:   cfg.SaveInterval,
		box:            newMailbox(),
		limiter:        rate.NewLimiter(rate.Every(cfg.SaveInterval), 1),
		ctx:            context.Background(),
		windows:        make(map[platform.WindowID]*TrackedWindow),
		ignored:        make(map[platform.WindowID]bool),
		saved:          model.SavedWindows{},
	}, nil
}

// Start loads saved state and queues the windows that already exist. Events
// posted before Start stay queued behind them until Run dispatches.
func (e *Engine) Start(ctx context.Context) error {
	if e.started {
		return errors.New("engine already started")
	}
	saved, err := e.store.SavedWindows(ctx)
	if err != nil {
		return fmt.Errorf("load saved windows: %w", err)
	}
	e.saved = saved
	e.prefs.Load(saved)

	layout, err := e.wm.Monitors()
	if err != nil {
		return fmt.Errorf("list monitors: %w", err)
	}
	e.layout = layout

	existing, err := e.wm.ListWindows()
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}
	for _, id := range existing {
		e.Post(WindowAdded{Window: id})
	}
	e.started = true
	e.log.Info("engine started",
		"saved_records", len(saved.Records()),
		"monitors", layout.Connectors(),
		"existing_windows", len(existing))
	return nil
}

// Run dispatches events until ctx is cancelled, then writes pending state.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started {
		return errors.New("engine not started")
	}
	e.ctx = ctx
	e.drain()
	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil
		case <-e.box.signal:
			e.drain()
		}
	}
}

// Post queues an event. It never blocks.
func (e *Engine) Post(ev Event) {
	e.box.push(ev)
}

func (e *Engine) drain() {
	for {
		ev, ok := e.box.pop()
		if !ok {
			return
		}
		e.safeDispatch(ev)
	}
}

func (e *Engine) safeDispatch(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic while handling event",
				"event", fmt.Sprintf("%T", ev),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	e.dispatch(ev)
}

func (e *Engine) dispatch(ev Event) {
	switch ev := ev.(type) {
	case WindowAdded:
		e.onAdded(ev.Window)
	case TitleChanged:
		e.onTitleChanged(ev.Window, ev.Title)
	case GeometryChanged:
		e.onGeometryChanged(ev.Window)
	case MonitorLayoutChanged:
		e.onLayoutChanged()
	case WindowRemoved:
		e.onRemoved(ev.Window)
	case Sweep:
		e.onSweep(ev.Live)
	case timerFired:
		e.onTimer(ev)
	case flushDue:
		e.flushTimer = nil
		e.flush()
	case resolverChanged:
		e.resolver = ev.resolver
		e.log.Info("sync policy updated", "mode", ev.resolver.Mode())
	case tuningChanged:
		e.retune(ev.tuning)
	case moveRequest:
		ev.reply <- e.onMoveRequest(ev.window, ev.connector)
	case forgetRequest:
		ev.reply <- e.onForget(ev.appID, ev.title)
	case statusRequest:
		ev.reply <- e.status()
	case savedRequest:
		ev.reply <- e.saved.Clone()
	case layoutRequest:
		out := make(geometry.Layout, len(e.layout))
		copy(out, e.layout)
		ev.reply <- out
	default:
		e.log.Warn("unknown event", "event", fmt.Sprintf("%T", ev))
	}
}

func (e *Engine) shutdown() {
	e.ctx = context.Background()
	for _, tw := range e.sortedWindows() {
		tw.cancelTimer()
		if tw.holdsWildcard() && tw.hasLive {
			tw.Phase = PhaseClosed
			e.persistLive(tw)
		}
	}
	if e.flushTimer != nil {
		e.flushTimer.Stop()
		e.flushTimer = nil
	}
	e.flush()
	e.log.Info("engine stopped")
}

// SetResolver swaps the sync policy. Windows already matched keep their
// decision.
func (e *Engine) SetResolver(r *policy.Resolver) {
	e.Post(resolverChanged{resolver: r})
}

// Tuning holds the settings that may change while the engine runs. Zero
// fields keep the current value, except DriftTolerance where zero is valid
// and a negative value keeps it.
type Tuning struct {
	Classifier       *title.Classifier
	SettleDelay      time.Duration
	GenericTimeout   time.Duration
	DriftTolerance   int
	MaxDriftAttempts int
	SaveInterval     time.Duration
}

// Retune applies t to timers scheduled from now on.
func (e *Engine) Retune(t Tuning) {
	e.Post(tuningChanged{tuning: t})
}

func (e *Engine) retune(t Tuning) {
	if t.Classifier != nil {
		e.classifier = t.Classifier
	}
	if t.SettleDelay > 0 {
		e.settleDelay = t.SettleDelay
	}
	if t.GenericTimeout > 0 {
		e.genericTimeout = t.GenericTimeout
	}
	if t.DriftTolerance >= 0 {
		e.tolerance = t.DriftTolerance
	}
	if t.MaxDriftAttempts > 0 {
		e.maxDrift = t.MaxDriftAttempts
	}
	if t.SaveInterval > 0 && t.SaveInterval != e.saveInterval {
		e.saveInterval = t.SaveInterval
		e.limiter.SetLimit(rate.Every(t.SaveInterval))
	}
	e.log.Info("engine retuned",
		"settle_delay", e.settleDelay,
		"generic_timeout", e.genericTimeout,
		"drift_tolerance", e.tolerance,
		"max_drift_attempts", e.maxDrift,
		"save_interval", e.saveInterval)
}

// MoveToMonitor records an explicit user choice of connector for a window
// and moves it there.
func (e *Engine) MoveToMonitor(ctx context.Context, id platform.WindowID, connector string) error {
	reply := make(chan error, 1)
	e.Post(moveRequest{window: id, connector: connector, reply: reply})
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Forget deletes saved records for appID, or only the one for title when
// title is non-empty. It returns how many were removed.
func (e *Engine) Forget(ctx context.Context, appID, title string) (int, error) {
	reply := make(chan int, 1)
	e.Post(forgetRequest{appID: appID, title: title, reply: reply})
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Saved returns a copy of the in-memory saved records.
func (e *Engine) Saved(ctx context.Context) (model.SavedWindows, error) {
	reply := make(chan model.SavedWindows, 1)
	e.Post(savedRequest{reply: reply})
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Layout returns the monitor layout the engine last observed.
func (e *Engine) Layout(ctx context.Context) (geometry.Layout, error) {
	reply := make(chan geometry.Layout, 1)
	e.Post(layoutRequest{reply: reply})
	select {
	case l := <-reply:
		return l, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WindowStatus describes one tracked window.
type WindowStatus struct {
	ID            platform.WindowID `json:"id"`
	AppID         string            `json:"app_id"`
	Title         string            `json:"title"`
	Fingerprint   string            `json:"fingerprint"`
	Phase         string            `json:"phase"`
	Connector     string            `json:"connector"`
	Frame         geometry.Rect     `json:"frame"`
	Preferences   []string          `json:"preferences,omitempty"`
	RestoreID     string            `json:"restore_id,omitempty"`
	DriftAttempts int               `json:"drift_attempts"`
	LastOp        string            `json:"last_op,omitempty"`
}

// Status is a point-in-time view of the engine.
type Status struct {
	SyncMode     model.Action   `json:"sync_mode"`
	Monitors     []string       `json:"monitors"`
	SavedRecords int            `json:"saved_records"`
	Windows      []WindowStatus `json:"windows"`
	Phases       map[string]int `json:"phases"`
	Pending      bool           `json:"pending_save"`
}

// Status returns the engine's current state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	e.Post(statusRequest{reply: reply})
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (e *Engine) status() Status {
	st := Status{
		SyncMode:     e.resolver.Mode(),
		Monitors:     e.layout.Connectors(),
		SavedRecords: len(e.saved.Records()),
		Phases:       make(map[string]int),
		Pending:      e.dirty,
	}
	for _, tw := range e.windows {
		ws := WindowStatus{
			ID:            tw.Handle,
			AppID:         tw.AppID,
			Title:         tw.Title,
			Fingerprint:   tw.Identity.Fingerprint,
			Phase:         tw.Phase.String(),
			Connector:     tw.Connector,
			Frame:         tw.live.Frame,
			RestoreID:     tw.RestoreID,
			DriftAttempts: tw.DriftAttempts,
		}
		if tw.Identity.AppID != "" {
			ws.Preferences = e.prefs.Preferences(tw.Identity)
		}
		if tw.LastOp != nil {
			ws.LastOp = tw.LastOp.String()
		}
		st.Windows = append(st.Windows, ws)
		st.Phases[ws.Phase]++
	}
	sort.Slice(st.Windows, func(i, j int) bool { return st.Windows[i].ID < st.Windows[j].ID })
	return st
}
