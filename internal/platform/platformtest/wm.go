// Package platformtest provides an in-memory window manager that behaves
// like a simple desktop shell: windows live on monitors, hot-plug moves
// orphaned windows to the primary monitor, and placement can be made to
// drift.
package platformtest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/platform"
)

// Window is the fake's view of one window.
type Window struct {
	ID         platform.WindowID
	AppID      string
	Title      string
	Frame      geometry.Rect
	Workspace  int
	Maximized  geometry.MaximizedState
	Fullscreen bool
	Tile       geometry.TilePosition

	restore geometry.Rect
}

// WM is a fake platform.WindowManager and platform.EventSource.
type WM struct {
	mu       sync.Mutex
	monitors geometry.Layout
	windows  map[platform.WindowID]*Window
	nextID   platform.WindowID
	active   platform.WindowID
	subs     map[int]func(platform.Event)
	nextSub  int
	ops      []string

	driftLeft int
	drift     func(geometry.Rect) geometry.Rect
	fail      map[string]error
}

var (
	_ platform.WindowManager = (*WM)(nil)
	_ platform.EventSource   = (*WM)(nil)
)

// New returns a fake with the given monitors. Indexes are assigned left to
// right.
func New(monitors ...geometry.Monitor) *WM {
	w := &WM{
		windows: make(map[platform.WindowID]*Window),
		nextID:  0x1000,
		subs:    make(map[int]func(platform.Event)),
		fail:    make(map[string]error),
	}
	w.monitors = append(w.monitors, monitors...)
	w.reindex()
	return w
}

func (w *WM) Subscribe(fn func(platform.Event)) func() {
	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

func (w *WM) emit(events ...platform.Event) {
	w.mu.Lock()
	subs := make([]func(platform.Event), 0, len(w.subs))
	keys := make([]int, 0, len(w.subs))
	for k := range w.subs {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		subs = append(subs, w.subs[k])
	}
	w.mu.Unlock()
	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// Open maps a new window on workspace 0 and makes it active.
func (w *WM) Open(appID, title string, frame geometry.Rect) platform.WindowID {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.windows[id] = &Window{ID: id, AppID: appID, Title: title, Frame: frame}
	w.active = id
	w.mu.Unlock()
	w.emit(platform.Event{Kind: platform.EventWindowAdded, Window: id})
	return id
}

// SetTitle changes a window's title as the application would.
func (w *WM) SetTitle(id platform.WindowID, title string) {
	w.mu.Lock()
	win, ok := w.windows[id]
	if ok {
		win.Title = title
	}
	w.mu.Unlock()
	if ok {
		w.emit(platform.Event{Kind: platform.EventTitleChanged, Window: id, Title: title})
	}
}

// UserPlace moves a window as if the user dragged it.
func (w *WM) UserPlace(id platform.WindowID, frame geometry.Rect) {
	w.mu.Lock()
	win, ok := w.windows[id]
	if ok {
		win.Frame = frame
		win.Tile = geometry.TileNone
		win.Maximized = geometry.MaximizedNone
	}
	w.mu.Unlock()
	if ok {
		w.emit(platform.Event{Kind: platform.EventGeometryChanged, Window: id})
	}
}

// UserSetWorkspace moves a window to another workspace as the user would.
func (w *WM) UserSetWorkspace(id platform.WindowID, workspace int) {
	w.mu.Lock()
	win, ok := w.windows[id]
	if ok {
		win.Workspace = workspace
	}
	w.mu.Unlock()
	if ok {
		w.emit(platform.Event{Kind: platform.EventGeometryChanged, Window: id})
	}
}

// Destroy closes a window from the application side.
func (w *WM) Destroy(id platform.WindowID) {
	w.mu.Lock()
	_, ok := w.windows[id]
	delete(w.windows, id)
	w.mu.Unlock()
	if ok {
		w.emit(platform.Event{Kind: platform.EventWindowRemoved, Window: id})
	}
}

// Connect plugs in a monitor.
func (w *WM) Connect(m geometry.Monitor) {
	w.mu.Lock()
	w.monitors = append(w.monitors, m)
	w.reindex()
	w.mu.Unlock()
	w.emit(platform.Event{Kind: platform.EventMonitorsChanged})
}

// Disconnect unplugs a monitor. Windows on it are moved to the primary
// monitor at the same relative offset, clamped to fit.
func (w *WM) Disconnect(connector string) {
	w.mu.Lock()
	gone, ok := w.monitors.ByConnector(connector)
	if !ok {
		w.mu.Unlock()
		return
	}
	var kept geometry.Layout
	for _, m := range w.monitors {
		if m.Connector != connector {
			kept = append(kept, m)
		}
	}
	w.monitors = kept
	w.reindex()

	var moved []platform.WindowID
	primary, hasPrimary := w.monitors.Primary()
	for _, id := range w.sortedIDs() {
		win := w.windows[id]
		cx, cy := win.Frame.Center()
		if !gone.Bounds.Contains(cx, cy) || !hasPrimary {
			continue
		}
		rel := geometry.ToRelative(win.Frame, gone).ClampSize(primary.Bounds.Width, primary.Bounds.Height)
		win.Frame = geometry.ToAbsolute(rel, primary)
		win.Tile = geometry.TileNone
		moved = append(moved, id)
	}
	w.mu.Unlock()

	events := []platform.Event{{Kind: platform.EventMonitorsChanged}}
	for _, id := range moved {
		events = append(events, platform.Event{Kind: platform.EventGeometryChanged, Window: id})
	}
	w.emit(events...)
}

// InjectDrift makes the next n Place calls land at fn(requested) instead.
func (w *WM) InjectDrift(n int, fn func(geometry.Rect) geometry.Rect) {
	w.mu.Lock()
	w.driftLeft = n
	w.drift = fn
	w.mu.Unlock()
}

// FailNext makes the next call of the named operation return err.
func (w *WM) FailNext(op string, err error) {
	w.mu.Lock()
	w.fail[op] = err
	w.mu.Unlock()
}

// Ops returns the operations applied so far, formatted as "op(args)".
func (w *WM) Ops() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.ops...)
}

// ResetOps clears the operation log.
func (w *WM) ResetOps() {
	w.mu.Lock()
	w.ops = nil
	w.mu.Unlock()
}

// Window returns a copy of a window's state.
func (w *WM) Window(id platform.WindowID) (Window, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	win, ok := w.windows[id]
	if !ok {
		return Window{}, false
	}
	return *win, true
}

// ConnectorOf returns the connector a window's center is on.
func (w *WM) ConnectorOf(id platform.WindowID) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	win, ok := w.windows[id]
	if !ok {
		return ""
	}
	m, _ := w.monitors.MonitorFor(win.Frame)
	return m.Connector
}

func (w *WM) reindex() {
	sort.SliceStable(w.monitors, func(i, j int) bool {
		return w.monitors[i].Bounds.X < w.monitors[j].Bounds.X
	})
	for i := range w.monitors {
		w.monitors[i].Index = i
	}
}

func (w *WM) sortedIDs() []platform.WindowID {
	ids := make([]platform.WindowID, 0, len(w.windows))
	for id := range w.windows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// begin looks up a window and consumes an injected failure. Callers hold mu.
func (w *WM) begin(op string, id platform.WindowID) (*Window, error) {
	if err, ok := w.fail[op]; ok {
		delete(w.fail, op)
		return nil, err
	}
	win, ok := w.windows[id]
	if !ok {
		return nil, fmt.Errorf("%s %#x: %w", op, id, platform.ErrWindowGone)
	}
	return win, nil
}

func (w *WM) ListWindows() ([]platform.WindowID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sortedIDs(), nil
}

func (w *WM) Details(id platform.WindowID) (platform.WindowDetails, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	win, err := w.begin("details", id)
	if err != nil {
		return platform.WindowDetails{}, err
	}
	d := platform.WindowDetails{
		ID:         win.ID,
		AppID:      win.AppID,
		Title:      win.Title,
		Frame:      win.Frame,
		Workspace:  win.Workspace,
		Monitor:    -1,
		Maximized:  win.Maximized,
		Fullscreen: win.Fullscreen,
		Tile:       win.Tile,
	}
	if m, ok := w.monitors.MonitorFor(win.Frame); ok {
		d.Monitor = m.Index
		d.Connector = m.Connector
	}
	return d, nil
}

func (w *WM) ActiveWindow() (platform.WindowID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.windows[w.active]; !ok {
		return 0, platform.ErrWindowGone
	}
	return w.active, nil
}

func (w *WM) Monitors() (geometry.Layout, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(geometry.Layout, len(w.monitors))
	copy(out, w.monitors)
	return out, nil
}

// mutate runs fn on a window under the lock, logs the operation and emits a
// geometry change.
func (w *WM) mutate(op string, id platform.WindowID, fn func(*Window)) error {
	w.mu.Lock()
	win, err := w.begin(op, id)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	fn(win)
	w.mu.Unlock()
	w.emit(platform.Event{Kind: platform.EventGeometryChanged, Window: id})
	return nil
}

func (w *WM) logOp(format string, args ...any) {
	w.ops = append(w.ops, fmt.Sprintf(format, args...))
}

func (w *WM) Place(id platform.WindowID, frame geometry.Rect) error {
	return w.mutate("place", id, func(win *Window) {
		w.logOp("place(%s)", frame)
		if w.driftLeft > 0 && w.drift != nil {
			w.driftLeft--
			frame = w.drift(frame)
		}
		win.Frame = frame
		win.Tile = geometry.TileNone
	})
}

func (w *WM) Move(id platform.WindowID, x, y int) error {
	return w.mutate("move", id, func(win *Window) {
		w.logOp("move(%d,%d)", x, y)
		win.Frame.X, win.Frame.Y = x, y
		win.Tile = geometry.TileNone
	})
}

func (w *WM) MoveToWorkspace(id platform.WindowID, workspace int) error {
	return w.mutate("move-to-workspace", id, func(win *Window) {
		w.logOp("move-to-workspace(%d)", workspace)
		win.Workspace = workspace
	})
}

func (w *WM) MoveToMonitor(id platform.WindowID, monitor int) error {
	w.mu.Lock()
	target, ok := w.monitors.ByIndex(monitor)
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("move-to-monitor: no monitor %d", monitor)
	}
	return w.mutate("move-to-monitor", id, func(win *Window) {
		w.logOp("move-to-monitor(%s)", target.Connector)
		from, ok := w.monitors.MonitorFor(win.Frame)
		if !ok || from.Connector == target.Connector {
			return
		}
		rel := geometry.ToRelative(win.Frame, from).ClampSize(target.Bounds.Width, target.Bounds.Height)
		win.Frame = geometry.ToAbsolute(rel, target)
		win.Tile = geometry.TileNone
	})
}

func (w *WM) Maximize(id platform.WindowID, state geometry.MaximizedState) error {
	return w.mutate("maximize", id, func(win *Window) {
		w.logOp("maximize(%s)", state)
		if win.Maximized == geometry.MaximizedNone {
			win.restore = win.Frame
		}
		// _NET_WM_STATE adds axes; it never clears one.
		win.Maximized |= state
		if win.Maximized.Full() {
			if m, ok := w.monitors.MonitorFor(win.Frame); ok {
				win.Frame = m.Usable()
			}
		}
	})
}

func (w *WM) Unmaximize(id platform.WindowID, state geometry.MaximizedState) error {
	return w.mutate("unmaximize", id, func(win *Window) {
		w.logOp("unmaximize(%s)", state)
		if state == geometry.MaximizedNone {
			state = geometry.MaximizedBoth
		}
		wasFull := win.Maximized.Full()
		win.Maximized &^= state
		if wasFull && !win.Maximized.Full() && !win.restore.Empty() {
			win.Frame = win.restore
		}
	})
}

func (w *WM) SetFullscreen(id platform.WindowID, fullscreen bool) error {
	return w.mutate("set-fullscreen", id, func(win *Window) {
		w.logOp("set-fullscreen(%t)", fullscreen)
		if fullscreen == win.Fullscreen {
			return
		}
		if fullscreen {
			win.restore = win.Frame
			if m, ok := w.monitors.MonitorFor(win.Frame); ok {
				win.Frame = m.Bounds
			}
		} else if !win.restore.Empty() {
			win.Frame = win.restore
		}
		win.Fullscreen = fullscreen
	})
}

func (w *WM) Tile(id platform.WindowID, pos geometry.TilePosition, monitor int) error {
	w.mu.Lock()
	m, ok := w.monitors.ByIndex(monitor)
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("tile: no monitor %d", monitor)
	}
	return w.mutate("tile", id, func(win *Window) {
		w.logOp("tile(%s,%s)", pos, m.Connector)
		win.Frame = geometry.TileRect(m.Usable(), pos)
		win.Tile = pos
	})
}

func (w *WM) Close(id platform.WindowID, force bool) error {
	w.mu.Lock()
	_, err := w.begin("close", id)
	if err == nil {
		w.logOp("close(%t)", force)
		delete(w.windows, id)
	}
	w.mu.Unlock()
	if err != nil {
		return err
	}
	w.emit(platform.Event{Kind: platform.EventWindowRemoved, Window: id})
	return nil
}
