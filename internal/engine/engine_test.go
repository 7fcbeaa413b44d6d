package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/model"
	"github.com/1broseidon/winkeep/internal/platform"
	"github.com/1broseidon/winkeep/internal/platform/platformtest"
	"github.com/1broseidon/winkeep/internal/policy"
	"github.com/1broseidon/winkeep/internal/title"
)

var (
	monA = geometry.Monitor{Connector: "eDP-1", Bounds: geometry.Rect{X: 0, Y: 0, Width: 1280, Height: 1024}, Primary: true}
	monB = geometry.Monitor{Connector: "HDMI-1", Bounds: geometry.Rect{X: 1280, Y: 0, Width: 1920, Height: 1080}}
	monC = geometry.Monitor{Connector: "DP-2", Bounds: geometry.Rect{X: 3200, Y: 0, Width: 1920, Height: 1080}}
)

const (
	editorApp   = "org.gnome.TextEditor"
	editorTitle = "notes.txt - Text Editor"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, pending []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped || t.fired:
		case !t.at.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type memStore struct {
	mu    sync.Mutex
	saved model.SavedWindows
	puts  int
	err   error
}

func (s *memStore) SavedWindows(ctx context.Context) (model.SavedWindows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		return model.SavedWindows{}, nil
	}
	return s.saved.Clone(), nil
}

func (s *memStore) PutSavedWindows(ctx context.Context, saved model.SavedWindows) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.puts++
	s.saved = saved.Clone()
	return nil
}

func (s *memStore) get(id model.Identity) (model.SavedWindowConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved.Get(id)
}

type harness struct {
	t     *testing.T
	wm    *platformtest.WM
	clock *fakeClock
	store *memStore
	eng   *Engine

	// muted holds back window manager notifications so a test can deliver
	// them in its own order.
	muted atomic.Bool
}

func newHarness(t *testing.T, saved model.SavedWindows, resolver *policy.Resolver, monitors ...geometry.Monitor) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		wm:    platformtest.New(monitors...),
		clock: newFakeClock(),
		store: &memStore{saved: saved},
	}
	eng, err := New(Config{
		WM:        h.wm,
		Store:     h.store,
		Resolver:  resolver,
		Scheduler: h.clock,
		Now:       h.clock.Now,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.eng = eng
	unsubscribe := h.wm.Subscribe(func(ev platform.Event) {
		if h.muted.Load() {
			return
		}
		if e, ok := FromPlatform(ev); ok {
			eng.Post(e)
		}
	})
	t.Cleanup(unsubscribe)
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.run()
	return h
}

// run dispatches queued events and lets five seconds of timers elapse.
func (h *harness) run() {
	h.eng.drain()
	for i := 0; i < 50; i++ {
		h.clock.Advance(100 * time.Millisecond)
		h.eng.drain()
	}
}

func (h *harness) move(id platform.WindowID, connector string) error {
	reply := make(chan error, 1)
	h.eng.Post(moveRequest{window: id, connector: connector, reply: reply})
	h.eng.drain()
	err := <-reply
	h.run()
	return err
}

func (h *harness) frame(id platform.WindowID) geometry.Rect {
	h.t.Helper()
	w, ok := h.wm.Window(id)
	if !ok {
		h.t.Fatalf("window %#x does not exist", id)
	}
	return w.Frame
}

func (h *harness) phase(id platform.WindowID) Phase {
	tw, ok := h.eng.windows[id]
	if !ok {
		return PhaseClosed
	}
	return tw.Phase
}

func (h *harness) wantConnector(id platform.WindowID, want string) {
	h.t.Helper()
	if got := h.wm.ConnectorOf(id); got != want {
		h.t.Fatalf("window on %q, want %q", got, want)
	}
}

func (h *harness) wantPrefs(id model.Identity, want ...string) {
	h.t.Helper()
	got := h.eng.prefs.Preferences(id)
	if len(got) != len(want) {
		h.t.Fatalf("preferences = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			h.t.Fatalf("preferences = %v, want %v", got, want)
		}
	}
}

func savedWith(recs ...model.SavedWindowConfig) model.SavedWindows {
	s := model.SavedWindows{}
	for _, r := range recs {
		s.Put(r)
	}
	return s
}

func rectPtr(x, y, w, h int) *geometry.Rect {
	return &geometry.Rect{X: x, Y: y, Width: w, Height: h}
}

func TestRoundTripRestore(t *testing.T) {
	h := newHarness(t, nil, nil, monA, monB)

	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 200, Y: 150, Width: 900, Height: 700})
	h.run()
	if got := h.phase(id); got != PhaseTracking {
		t.Fatalf("phase = %s, want TRACKING", got)
	}

	placed := geometry.Rect{X: 1480, Y: 120, Width: 800, Height: 600}
	h.wm.UserPlace(id, placed)
	h.wm.UserSetWorkspace(id, 2)
	h.run()
	h.wm.Destroy(id)
	h.run()

	rec, ok := h.store.get(model.Identity{AppID: editorApp, Fingerprint: editorTitle})
	if !ok {
		t.Fatal("no saved record after close")
	}
	if rec.MonitorConnector != "HDMI-1" || *rec.RelativeRect != (geometry.Rect{X: 200, Y: 120, Width: 800, Height: 600}) {
		t.Fatalf("saved record = %s %v, want HDMI-1 relative 800x600+200+120", rec.MonitorConnector, rec.RelativeRect)
	}

	again := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 10, Y: 10, Width: 400, Height: 300})
	h.run()

	w, _ := h.wm.Window(again)
	if w.Frame != placed {
		t.Errorf("frame = %s, want %s", w.Frame, placed)
	}
	if w.Workspace != 2 {
		t.Errorf("workspace = %d, want 2", w.Workspace)
	}
	h.wantConnector(again, "HDMI-1")
	if got := h.phase(again); got != PhaseSettled {
		t.Errorf("phase = %s, want SETTLED", got)
	}
}

func TestRoundTripMaximized(t *testing.T) {
	h := newHarness(t, nil, nil, monA)

	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 100, Y: 100, Width: 640, Height: 480})
	h.run()
	if err := h.wm.Maximize(id, geometry.MaximizedBoth); err != nil {
		t.Fatal(err)
	}
	h.run()
	h.wm.Destroy(id)
	h.run()

	again := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 300, Y: 300, Width: 500, Height: 400})
	h.run()
	w, _ := h.wm.Window(again)
	if w.Maximized != geometry.MaximizedBoth {
		t.Fatalf("maximized = %s, want both", w.Maximized)
	}
	if w.Frame != monA.Bounds {
		t.Errorf("frame = %s, want %s", w.Frame, monA.Bounds)
	}

	// The normal geometry is kept for when the window is unmaximized.
	rec, _ := h.store.get(model.Identity{AppID: editorApp, Fingerprint: editorTitle})
	if *rec.RelativeRect != (geometry.Rect{X: 100, Y: 100, Width: 640, Height: 480}) {
		t.Errorf("relative rect = %s, want 640x480+100+100", rec.RelativeRect)
	}
}

func TestIgnoreModeSkipsRestore(t *testing.T) {
	h := newHarness(t, nil, policy.NewResolver(model.ActionIgnore, nil, nil), monA)

	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 10, Y: 10, Width: 400, Height: 300})
	h.run()
	h.wm.UserPlace(id, geometry.Rect{X: 500, Y: 400, Width: 600, Height: 500})
	h.run()
	h.wm.Destroy(id)
	h.run()
	h.wm.ResetOps()

	again := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 10, Y: 10, Width: 400, Height: 300})
	h.run()

	if got := h.frame(again); got.X == 500 && got.Y == 400 {
		t.Fatalf("window restored to %s in IGNORE mode", got)
	}
	if ops := h.wm.Ops(); len(ops) != 0 {
		t.Errorf("ops = %v, want none", ops)
	}
	if got := h.phase(again); got != PhaseTracking {
		t.Errorf("phase = %s, want TRACKING", got)
	}
}

func TestOverrideTakesPrecedence(t *testing.T) {
	const (
		filesApp   = "org.gnome.Nautilus"
		filesTitle = "Downloads - Files Browser"
	)
	saved := savedWith(
		model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: editorTitle,
			RelativeRect: rectPtr(300, 200, 700, 500), MonitorConnector: "eDP-1"},
		model.SavedWindowConfig{ApplicationID: filesApp, TitlePattern: filesTitle,
			RelativeRect: rectPtr(50, 60, 700, 500), MonitorConnector: "eDP-1"},
	)
	resolver := policy.NewResolver(model.ActionIgnore, model.Overrides{
		editorApp: {Action: model.ActionRestore},
	}, nil)
	h := newHarness(t, saved, resolver, monA)

	start := geometry.Rect{X: 0, Y: 0, Width: 400, Height: 300}
	editor := h.wm.Open(editorApp, editorTitle, start)
	files := h.wm.Open(filesApp, filesTitle, start)
	h.run()

	if got, want := h.frame(editor), (geometry.Rect{X: 300, Y: 200, Width: 700, Height: 500}); got != want {
		t.Errorf("overridden app frame = %s, want %s", got, want)
	}
	if got := h.frame(files); got != start {
		t.Errorf("app without override moved to %s", got)
	}
}

func TestThresholdDemotesFallbackMatch(t *testing.T) {
	threshold := 0.9
	saved := savedWith(model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: model.Wildcard,
		RelativeRect: rectPtr(300, 200, 700, 500), MonitorConnector: "eDP-1"})
	resolver := policy.NewResolver(model.ActionRestore, model.Overrides{
		editorApp: {Action: model.ActionRestore, Threshold: &threshold},
	}, nil)
	h := newHarness(t, saved, resolver, monA)

	start := geometry.Rect{X: 0, Y: 0, Width: 400, Height: 300}
	id := h.wm.Open(editorApp, editorTitle, start)
	h.run()
	if got := h.frame(id); got != start {
		t.Errorf("low confidence match restored window to %s", got)
	}
}

func TestTitleChangeDoesNotMoveSettledWindow(t *testing.T) {
	const (
		alpha = "alpha-report.txt - Editor"
		bravo = "bravo-summary.txt - Editor"
	)
	saved := savedWith(
		model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: alpha,
			RelativeRect: rectPtr(100, 100, 600, 400), MonitorConnector: "eDP-1"},
		model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: bravo,
			RelativeRect: rectPtr(600, 500, 500, 400), MonitorConnector: "eDP-1"},
	)
	h := newHarness(t, saved, nil, monA)

	id := h.wm.Open(editorApp, alpha, geometry.Rect{X: 0, Y: 0, Width: 300, Height: 200})
	h.run()
	if got := h.phase(id); got != PhaseSettled {
		t.Fatalf("phase = %s, want SETTLED", got)
	}
	before := h.frame(id)
	h.wm.ResetOps()

	h.wm.SetTitle(id, bravo)
	h.run()

	after := h.frame(id)
	if d := after.X - before.X; d > 19 || d < -19 {
		t.Errorf("window moved from %s to %s", before, after)
	}
	if d := after.Y - before.Y; d > 19 || d < -19 {
		t.Errorf("window moved from %s to %s", before, after)
	}
	if ops := h.wm.Ops(); len(ops) != 0 {
		t.Errorf("ops = %v, want none", ops)
	}
	if got := h.eng.windows[id].Identity.Fingerprint; got != bravo {
		t.Errorf("identity = %q, want %q", got, bravo)
	}
}

func TestGenericTitleAgesOutThenUpgrades(t *testing.T) {
	const specific = "quarterly-plan.txt - Editor"
	saved := savedWith(model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: specific,
		RelativeRect: rectPtr(400, 300, 500, 400), MonitorConnector: "eDP-1"})
	h := newHarness(t, saved, nil, monA)

	start := geometry.Rect{X: 0, Y: 0, Width: 300, Height: 200}
	id := h.wm.Open(editorApp, "Untitled Document", start)
	h.eng.drain()
	if got := h.phase(id); got != PhaseNew {
		t.Fatalf("phase = %s, want NEW", got)
	}
	h.run()
	if got := h.phase(id); got != PhaseTracking {
		t.Fatalf("phase after timeout = %s, want TRACKING", got)
	}
	if _, ok := h.store.get(model.WildcardIdentity(editorApp)); ok {
		t.Error("wildcard written while the window is still tracked")
	}
	if got := h.frame(id); got != start {
		t.Fatalf("window moved to %s before its title was specific", got)
	}

	h.wm.SetTitle(id, specific)
	h.run()
	if got, want := h.frame(id), (geometry.Rect{X: 400, Y: 300, Width: 500, Height: 400}); got != want {
		t.Errorf("frame = %s, want %s", got, want)
	}

	h.wm.Destroy(id)
	h.run()
	wild, ok := h.store.get(model.WildcardIdentity(editorApp))
	if !ok {
		t.Fatal("closing an aged out window did not save the wildcard")
	}
	if got, want := *wild.RelativeRect, (geometry.Rect{X: 400, Y: 300, Width: 500, Height: 400}); got != want {
		t.Errorf("wildcard rect = %s, want %s", got, want)
	}
}

func TestGenericSiblingsKeepTheirOwnPlacements(t *testing.T) {
	titles := []string{"alpha-report.txt - Editor", "bravo-summary.txt - Editor", "charlie-notes.txt - Editor"}
	rects := []geometry.Rect{
		{X: 40, Y: 40, Width: 400, Height: 300},
		{X: 500, Y: 80, Width: 400, Height: 300},
		{X: 200, Y: 600, Width: 400, Height: 300},
	}
	saved := model.SavedWindows{}
	for i, title := range titles {
		r := rects[i]
		saved.Put(model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: title,
			RelativeRect: &r, MonitorConnector: "eDP-1"})
	}
	h := newHarness(t, saved, nil, monA)

	var ids []platform.WindowID
	for i := range titles {
		start := geometry.Rect{X: 10 * i, Y: 10 * i, Width: 300, Height: 200}
		ids = append(ids, h.wm.Open(editorApp, "Untitled Document", start))
		h.run()
	}
	if _, ok := h.store.get(model.WildcardIdentity(editorApp)); ok {
		t.Fatal("tracked generic windows wrote the wildcard")
	}
	for i, id := range ids {
		if got, want := h.frame(id), (geometry.Rect{X: 10 * i, Y: 10 * i, Width: 300, Height: 200}); got != want {
			t.Fatalf("window %d moved to %s before its title was specific", i, got)
		}
	}

	for i, id := range ids {
		h.wm.SetTitle(id, titles[i])
	}
	h.run()
	for i, id := range ids {
		if got := h.frame(id); got != rects[i] {
			t.Errorf("%s frame = %s, want %s", titles[i], got, rects[i])
		}
	}
}

func TestWildcardRestoreStillUpgrades(t *testing.T) {
	const specific = "quarterly-plan.txt - Editor"
	saved := savedWith(
		model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: model.Wildcard,
			RelativeRect: rectPtr(300, 200, 700, 500), MonitorConnector: "eDP-1"},
		model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: specific,
			RelativeRect: rectPtr(400, 300, 500, 400), MonitorConnector: "eDP-1"},
	)
	h := newHarness(t, saved, nil, monA)

	id := h.wm.Open(editorApp, "Untitled Document", geometry.Rect{X: 0, Y: 0, Width: 300, Height: 200})
	h.run()
	if got, want := h.frame(id), (geometry.Rect{X: 300, Y: 200, Width: 700, Height: 500}); got != want {
		t.Fatalf("frame after age out = %s, want the wildcard placement %s", got, want)
	}

	h.wm.SetTitle(id, specific)
	h.run()
	if got, want := h.frame(id), (geometry.Rect{X: 400, Y: 300, Width: 500, Height: 400}); got != want {
		t.Errorf("frame = %s, want %s", got, want)
	}
	if got := h.phase(id); got != PhaseSettled {
		t.Errorf("phase = %s, want SETTLED", got)
	}
}

func TestHotplugRestoreEndsUpgrade(t *testing.T) {
	const specific = "quarterly-plan.txt - Editor"
	saved := savedWith(model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: specific,
		RelativeRect: rectPtr(400, 300, 500, 400), MonitorConnector: "eDP-1"})
	h := newHarness(t, saved, nil, monA, monB)

	id := h.wm.Open(editorApp, "Untitled Document", geometry.Rect{X: 1400, Y: 100, Width: 300, Height: 200})
	h.run()
	h.wantConnector(id, "HDMI-1")

	h.wm.Disconnect("HDMI-1")
	h.run()
	h.wantConnector(id, "eDP-1")
	if got := h.phase(id); got != PhaseSettled {
		t.Fatalf("phase after fallback = %s, want SETTLED", got)
	}
	before := h.frame(id)
	h.wm.ResetOps()

	h.wm.SetTitle(id, specific)
	h.run()
	if ops := h.wm.Ops(); len(ops) != 0 {
		t.Errorf("ops = %v, want none", ops)
	}
	if got := h.frame(id); got != before {
		t.Errorf("window moved from %s to %s", before, got)
	}
	if got := h.eng.windows[id].Identity.Fingerprint; got != specific {
		t.Errorf("identity = %q, want %q", got, specific)
	}
}

func TestSpecificTitleBeforeTimeoutMatchesExactly(t *testing.T) {
	saved := savedWith(model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: editorTitle,
		RelativeRect: rectPtr(400, 300, 500, 400), MonitorConnector: "eDP-1"})
	h := newHarness(t, saved, nil, monA)

	id := h.wm.Open(editorApp, "Loading...", geometry.Rect{X: 0, Y: 0, Width: 300, Height: 200})
	h.eng.drain()
	h.clock.Advance(300 * time.Millisecond)
	h.wm.SetTitle(id, editorTitle)
	h.run()

	if got, want := h.frame(id), (geometry.Rect{X: 400, Y: 300, Width: 500, Height: 400}); got != want {
		t.Errorf("frame = %s, want %s", got, want)
	}
	if h.eng.windows[id].agedOut {
		t.Error("window aged out although its title became specific in time")
	}
}

func TestMonitorPreferenceLIFO(t *testing.T) {
	h := newHarness(t, nil, nil, monA, monB)
	ident := model.Identity{AppID: editorApp, Fingerprint: editorTitle}

	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 100, Y: 100, Width: 800, Height: 600})
	h.run()
	h.wantPrefs(ident, "eDP-1")

	if err := h.move(id, "HDMI-1"); err != nil {
		t.Fatalf("move to HDMI-1: %v", err)
	}
	h.wantPrefs(ident, "HDMI-1", "eDP-1")
	h.wantConnector(id, "HDMI-1")

	h.wm.Disconnect("HDMI-1")
	h.run()
	h.wantConnector(id, "eDP-1")
	h.wantPrefs(ident, "HDMI-1", "eDP-1")
	if got, want := h.frame(id), (geometry.Rect{X: 100, Y: 100, Width: 800, Height: 600}); got != want {
		t.Errorf("fallback frame = %s, want the placement remembered for eDP-1 %s", got, want)
	}

	h.wm.Connect(monC)
	h.run()
	h.wantConnector(id, "eDP-1")
	h.wantPrefs(ident, "HDMI-1", "eDP-1")

	if err := h.move(id, "DP-2"); err != nil {
		t.Fatalf("move to DP-2: %v", err)
	}
	h.wantPrefs(ident, "DP-2", "HDMI-1", "eDP-1")
	h.wantConnector(id, "DP-2")

	h.wm.Connect(monB)
	h.run()
	h.wantConnector(id, "DP-2")

	h.wm.Disconnect("DP-2")
	h.run()
	h.wantConnector(id, "HDMI-1")

	h.wm.Disconnect("HDMI-1")
	h.run()
	h.wantConnector(id, "eDP-1")

	h.wm.Connect(monC)
	h.run()
	h.wantConnector(id, "DP-2")
	h.wantPrefs(ident, "DP-2", "HDMI-1", "eDP-1")
	if got := h.phase(id); got != PhaseSettled {
		t.Errorf("phase = %s, want SETTLED", got)
	}
}

func TestUserDragRecordsPreference(t *testing.T) {
	h := newHarness(t, nil, nil, monA, monB)
	ident := model.Identity{AppID: editorApp, Fingerprint: editorTitle}

	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 100, Y: 100, Width: 800, Height: 600})
	h.run()
	h.wm.UserPlace(id, geometry.Rect{X: 1400, Y: 100, Width: 800, Height: 600})
	h.run()
	h.wantPrefs(ident, "HDMI-1", "eDP-1")
}

func TestDragOntoMonitorBeforeLayoutEvent(t *testing.T) {
	h := newHarness(t, nil, nil, monA)
	ident := model.Identity{AppID: editorApp, Fingerprint: editorTitle}

	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 100, Y: 100, Width: 800, Height: 600})
	h.run()

	dragged := geometry.Rect{X: 1400, Y: 100, Width: 800, Height: 600}
	h.muted.Store(true)
	h.wm.Connect(monB)
	h.wm.UserPlace(id, dragged)
	h.muted.Store(false)

	h.eng.Post(GeometryChanged{Window: id})
	h.eng.drain()
	h.eng.Post(MonitorLayoutChanged{})
	h.run()

	h.wantConnector(id, "HDMI-1")
	if got := h.frame(id); got != dragged {
		t.Errorf("frame = %s, want the dragged frame %s", got, dragged)
	}
	h.wantPrefs(ident, "HDMI-1", "eDP-1")
}

func TestDriftCorrectionUsesOriginalTarget(t *testing.T) {
	wide := geometry.Monitor{Connector: "eDP-1", Bounds: geometry.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}, Primary: true}
	saved := savedWith(model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: editorTitle,
		RelativeRect: rectPtr(901, 32, 800, 600), MonitorConnector: "eDP-1"})
	h := newHarness(t, saved, nil, wide)

	h.wm.InjectDrift(1, func(r geometry.Rect) geometry.Rect {
		r.X = 450
		return r
	})
	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 0, Y: 0, Width: 300, Height: 200})
	h.eng.drain()
	if got := h.frame(id); got.X != 450 {
		t.Fatalf("frame after first place = %s, want drift to x=450", got)
	}

	h.run()
	if got, want := h.frame(id), (geometry.Rect{X: 901, Y: 32, Width: 800, Height: 600}); got != want {
		t.Fatalf("frame = %s, want %s", got, want)
	}
	tw := h.eng.windows[id]
	if tw.DriftAttempts != 1 {
		t.Errorf("drift attempts = %d, want 1", tw.DriftAttempts)
	}
	if tw.Phase != PhaseSettled {
		t.Errorf("phase = %s, want SETTLED", tw.Phase)
	}
}

func TestDriftCorrectionExhausted(t *testing.T) {
	saved := savedWith(model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: editorTitle,
		RelativeRect: rectPtr(700, 32, 400, 300), MonitorConnector: "eDP-1"})
	h := newHarness(t, saved, nil, monA)

	h.wm.InjectDrift(100, func(r geometry.Rect) geometry.Rect {
		r.X = 450
		return r
	})
	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 0, Y: 0, Width: 300, Height: 200})
	h.run()

	tw := h.eng.windows[id]
	if tw.Phase != PhaseSettled {
		t.Fatalf("phase = %s, want SETTLED", tw.Phase)
	}
	if tw.DriftAttempts != DefaultMaxDriftAttempts {
		t.Errorf("drift attempts = %d, want %d", tw.DriftAttempts, DefaultMaxDriftAttempts)
	}
	places := 0
	for _, op := range h.wm.Ops() {
		if len(op) > 5 && op[:5] == "place" {
			places++
		}
	}
	if places != DefaultMaxDriftAttempts+1 {
		t.Errorf("place calls = %d, want %d", places, DefaultMaxDriftAttempts+1)
	}
	rec, _ := h.store.get(model.Identity{AppID: editorApp, Fingerprint: editorTitle})
	if rec.RelativeRect.X != 450 {
		t.Errorf("saved x = %d, want the actual 450", rec.RelativeRect.X)
	}
}

func TestMissingRelativeRectSkipsPlacement(t *testing.T) {
	saved := savedWith(model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: editorTitle,
		MonitorConnector: "eDP-1"})
	h := newHarness(t, saved, nil, monA)

	start := geometry.Rect{X: 20, Y: 30, Width: 300, Height: 200}
	id := h.wm.Open(editorApp, editorTitle, start)
	h.run()

	if ops := h.wm.Ops(); len(ops) != 0 {
		t.Errorf("ops = %v, want none", ops)
	}
	if got := h.phase(id); got != PhaseTracking {
		t.Errorf("phase = %s, want TRACKING", got)
	}
	rec, _ := h.store.get(model.Identity{AppID: editorApp, Fingerprint: editorTitle})
	if rec.RelativeRect == nil || *rec.RelativeRect != start {
		t.Errorf("record not repaired from live geometry: %v", rec.RelativeRect)
	}
}

func TestRemovalDuringSettleWritesTarget(t *testing.T) {
	saved := savedWith(model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: editorTitle,
		RelativeRect: rectPtr(400, 300, 640, 480), MonitorConnector: "eDP-1"})
	h := newHarness(t, saved, nil, monA)

	h.wm.InjectDrift(1, func(r geometry.Rect) geometry.Rect {
		r.X = 10
		return r
	})
	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 0, Y: 0, Width: 300, Height: 200})
	h.eng.drain()
	if got := h.phase(id); got != PhaseSettling {
		t.Fatalf("phase = %s, want SETTLING", got)
	}

	h.wm.Destroy(id)
	h.run()

	if _, ok := h.eng.windows[id]; ok {
		t.Fatal("closed window still tracked")
	}
	rec, _ := h.store.get(model.Identity{AppID: editorApp, Fingerprint: editorTitle})
	if *rec.RelativeRect != (geometry.Rect{X: 400, Y: 300, Width: 640, Height: 480}) {
		t.Errorf("saved rect = %s, want the restore target", rec.RelativeRect)
	}
}

func TestMoveToCurrentMonitorIsNoop(t *testing.T) {
	h := newHarness(t, nil, nil, monA, monB)
	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 100, Y: 100, Width: 800, Height: 600})
	h.run()
	h.wm.ResetOps()

	if err := h.move(id, "eDP-1"); err != nil {
		t.Fatal(err)
	}
	if ops := h.wm.Ops(); len(ops) != 0 {
		t.Errorf("ops = %v, want none", ops)
	}
	if got := h.phase(id); got != PhaseSettled {
		t.Errorf("phase = %s, want SETTLED", got)
	}
}

func TestMoveRequestErrors(t *testing.T) {
	h := newHarness(t, nil, nil, monA)
	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 100, Y: 100, Width: 800, Height: 600})
	h.run()

	if err := h.move(id+100, "eDP-1"); !errors.Is(err, ErrUnknownWindow) {
		t.Errorf("unknown window error = %v", err)
	}
	if err := h.move(id, "HDMI-1"); err == nil {
		t.Error("move to a disconnected monitor succeeded")
	}
}

func TestWindowManagerFailureRetries(t *testing.T) {
	saved := savedWith(model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: editorTitle,
		RelativeRect: rectPtr(400, 300, 640, 480), MonitorConnector: "eDP-1"})
	h := newHarness(t, saved, nil, monA)

	h.wm.FailNext("place", errors.New("window manager busy"))
	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 0, Y: 0, Width: 300, Height: 200})
	h.eng.drain()
	if got := h.phase(id); got != PhaseRestoring {
		t.Fatalf("phase after failed call = %s, want RESTORING", got)
	}
	h.run()
	if got, want := h.frame(id), (geometry.Rect{X: 400, Y: 300, Width: 640, Height: 480}); got != want {
		t.Errorf("frame = %s, want %s", got, want)
	}
}

func TestSweepReconcilesWindowSet(t *testing.T) {
	h := newHarness(t, nil, nil, monA)
	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 100, Y: 100, Width: 800, Height: 600})
	noApp := h.wm.Open("", "panel", geometry.Rect{X: 0, Y: 0, Width: 1280, Height: 30})
	h.run()
	if !h.eng.ignored[noApp] {
		t.Fatal("window without app id not ignored")
	}

	h.eng.Post(Sweep{Live: []platform.WindowID{noApp}})
	h.eng.drain()
	if _, ok := h.eng.windows[id]; ok {
		t.Fatal("sweep kept a window missing from the live list")
	}

	h.eng.Post(Sweep{Live: []platform.WindowID{id}})
	h.run()
	if _, ok := h.eng.windows[id]; !ok {
		t.Fatal("sweep did not add an untracked window")
	}
	if h.eng.ignored[noApp] {
		t.Error("ignored entry kept for a vanished window")
	}
}

func TestForgetRemovesRecords(t *testing.T) {
	saved := savedWith(
		model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: editorTitle,
			RelativeRect: rectPtr(1, 2, 300, 200), MonitorConnector: "eDP-1",
			MonitorPreferences: []string{"eDP-1"}},
		model.SavedWindowConfig{ApplicationID: editorApp, TitlePattern: model.Wildcard,
			RelativeRect: rectPtr(1, 2, 300, 200), MonitorConnector: "eDP-1"},
	)
	h := newHarness(t, saved, nil, monA)

	reply := make(chan int, 1)
	h.eng.Post(forgetRequest{appID: editorApp, title: editorTitle, reply: reply})
	h.eng.drain()
	if n := <-reply; n != 1 {
		t.Fatalf("forget title removed %d, want 1", n)
	}
	if _, ok := h.store.get(model.Identity{AppID: editorApp, Fingerprint: editorTitle}); ok {
		t.Error("forgotten record still stored")
	}
	if len(h.eng.prefs.Preferences(model.Identity{AppID: editorApp, Fingerprint: editorTitle})) > 0 {
		t.Error("preferences kept for forgotten record")
	}

	h.eng.Post(forgetRequest{appID: editorApp, reply: reply})
	h.eng.drain()
	if n := <-reply; n != 1 {
		t.Fatalf("forget app removed %d, want 1", n)
	}
}

func TestStatusAndPreferencePersistence(t *testing.T) {
	h := newHarness(t, nil, nil, monA, monB)
	id := h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 100, Y: 100, Width: 800, Height: 600})
	h.run()
	if err := h.move(id, "HDMI-1"); err != nil {
		t.Fatal(err)
	}

	st := h.eng.status()
	if len(st.Windows) != 1 || st.Windows[0].Connector != "HDMI-1" || st.Windows[0].Phase != "SETTLED" {
		t.Fatalf("status windows = %+v", st.Windows)
	}
	if st.SyncMode != model.ActionRestore {
		t.Errorf("sync mode = %s", st.SyncMode)
	}
	if st.Pending {
		t.Error("state still pending after save interval")
	}

	rec, _ := h.store.get(model.Identity{AppID: editorApp, Fingerprint: editorTitle})
	if len(rec.MonitorPreferences) != 2 || rec.MonitorPreferences[0] != "HDMI-1" {
		t.Errorf("stored preferences = %v", rec.MonitorPreferences)
	}
	if _, ok := rec.PerMonitor["eDP-1"]; !ok {
		t.Error("placement for eDP-1 not remembered")
	}
}

func TestStoreFailureKeepsStateDirty(t *testing.T) {
	h := newHarness(t, nil, nil, monA)
	h.store.err = errors.New("disk full")
	h.wm.Open(editorApp, editorTitle, geometry.Rect{X: 100, Y: 100, Width: 800, Height: 600})
	h.run()
	if !h.eng.status().Pending {
		t.Fatal("failed save not pending")
	}

	h.store.mu.Lock()
	h.store.err = nil
	h.store.mu.Unlock()
	h.run()
	if h.eng.status().Pending {
		t.Error("save not retried")
	}
}

func TestRetuneAppliesToLaterWindows(t *testing.T) {
	h := newHarness(t, nil, nil, monA)
	h.eng.Retune(Tuning{
		Classifier:     title.New(title.DefaultMinSpecificLength, []string{"Scratch Buffer Window"}),
		GenericTimeout: 8 * time.Second,
		DriftTolerance: -1,
	})
	h.eng.drain()
	if h.eng.tolerance != DefaultDriftTolerance {
		t.Fatalf("tolerance = %d, want unchanged %d", h.eng.tolerance, DefaultDriftTolerance)
	}

	id := h.wm.Open(editorApp, "Scratch Buffer Window", geometry.Rect{X: 0, Y: 0, Width: 300, Height: 200})
	h.run()
	if got := h.phase(id); got != PhaseNew {
		t.Fatalf("phase after 5s = %s, want NEW under the longer timeout", got)
	}
	h.run()
	if got := h.phase(id); got != PhaseTracking {
		t.Fatalf("phase after 10s = %s, want TRACKING", got)
	}
}
