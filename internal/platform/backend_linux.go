//go:build linux

package platform

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/x11"
)

// tileTolerance is how close a frame must be to a half of the work area to
// be reported as tiled. X11 has no tiling state of its own.
const tileTolerance = 2

// screenSettle coalesces the burst of RandR notifications a hot-plug emits.
const screenSettle = 250 * time.Millisecond

// LinuxBackend drives an X11 window manager through EWMH.
type LinuxBackend struct {
	conn *x11.Connection

	mu          sync.Mutex
	subs        map[int]func(Event)
	nextSub     int
	screenTimer *time.Timer
}

var (
	_ WindowManager = (*LinuxBackend)(nil)
	_ EventSource   = (*LinuxBackend)(nil)
)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn, subs: make(map[int]func(Event))}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay() (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxBackend(conn), nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// Watch installs the X event handlers that feed subscribers. Call it once,
// before EventLoop.
func (b *LinuxBackend) Watch() error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.Watch(x11.WatchHandlers{
		WindowAdded: func(win xproto.Window) {
			if conn.IsNormalWindow(win) {
				b.emit(Event{Kind: EventWindowAdded, Window: WindowID(win)})
			}
		},
		WindowRemoved: func(win xproto.Window) {
			b.emit(Event{Kind: EventWindowRemoved, Window: WindowID(win)})
		},
		TitleChanged: func(win xproto.Window) {
			b.emit(Event{Kind: EventTitleChanged, Window: WindowID(win), Title: conn.WindowTitle(win)})
		},
		GeometryChanged: func(win xproto.Window) {
			b.emit(Event{Kind: EventGeometryChanged, Window: WindowID(win)})
		},
		ScreenChanged: b.screenChanged,
	})
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// Quit stops EventLoop.
func (b *LinuxBackend) Quit() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

func (b *LinuxBackend) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *LinuxBackend) emit(ev Event) {
	b.mu.Lock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (b *LinuxBackend) screenChanged() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.screenTimer != nil {
		b.screenTimer.Stop()
	}
	b.screenTimer = time.AfterFunc(screenSettle, func() {
		b.emit(Event{Kind: EventMonitorsChanged})
	})
}

// ListWindows returns normal application windows in stacking-independent
// id order.
func (b *LinuxBackend) ListWindows() ([]WindowID, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	clients, err := conn.ClientList()
	if err != nil {
		return nil, err
	}
	ids := make([]WindowID, 0, len(clients))
	for _, win := range clients {
		if conn.IsNormalWindow(win) {
			ids = append(ids, WindowID(win))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (b *LinuxBackend) Details(id WindowID) (WindowDetails, error) {
	conn, err := b.connection()
	if err != nil {
		return WindowDetails{}, err
	}
	win := xproto.Window(id)

	frame, err := conn.FrameGeometry(win)
	if err != nil {
		return WindowDetails{}, fmt.Errorf("window %#x: %w", uint32(id), ErrWindowGone)
	}

	d := WindowDetails{
		ID:      id,
		AppID:   conn.WindowClass(win),
		Title:   conn.WindowTitle(win),
		Frame:   frame,
		Monitor: -1,
	}
	if ws, err := conn.GetWindowDesktop(win); err == nil {
		d.Workspace = ws
	}
	if st, err := conn.State(win); err == nil {
		d.Maximized = st.Maximized
		d.Fullscreen = st.Fullscreen
	}

	layout, err := conn.GetMonitors()
	if err != nil {
		return d, nil
	}
	if m, ok := layout.MonitorFor(frame); ok {
		d.Monitor = m.Index
		d.Connector = m.Connector
		if d.Maximized == geometry.MaximizedNone && !d.Fullscreen {
			d.Tile = inferTile(frame, m)
		}
	}
	return d, nil
}

func inferTile(frame geometry.Rect, m geometry.Monitor) geometry.TilePosition {
	for _, pos := range []geometry.TilePosition{geometry.TileLeft, geometry.TileRight} {
		if frame.Near(geometry.TileRect(m.Usable(), pos), tileTolerance) {
			return pos
		}
	}
	return geometry.TileNone
}

// ActiveWindow returns the currently active/focused window ID.
func (b *LinuxBackend) ActiveWindow() (WindowID, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	wid, err := conn.GetActiveWindow()
	if err != nil {
		return 0, err
	}
	if wid == 0 {
		return 0, ErrWindowGone
	}
	return WindowID(wid), nil
}

func (b *LinuxBackend) Place(id WindowID, frame geometry.Rect) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.MoveResizeFrame(xproto.Window(id), frame)
}

func (b *LinuxBackend) Move(id WindowID, x, y int) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	frame, err := conn.FrameGeometry(xproto.Window(id))
	if err != nil {
		return fmt.Errorf("window %#x: %w", uint32(id), ErrWindowGone)
	}
	frame.X, frame.Y = x, y
	return conn.MoveResizeFrame(xproto.Window(id), frame)
}

// MoveToWorkspace puts the window on workspace, or on the last one when
// fewer exist now than when the placement was saved.
func (b *LinuxBackend) MoveToWorkspace(id WindowID, workspace int) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	if count, err := conn.GetDesktopCount(); err == nil && count > 0 && workspace >= count {
		workspace = count - 1
	}
	return conn.SetWindowDesktop(xproto.Window(id), workspace)
}

// MoveToMonitor keeps the window's offset from its monitor's origin,
// shrinking it to fit the target when needed.
func (b *LinuxBackend) MoveToMonitor(id WindowID, monitor int) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	layout, err := conn.GetMonitors()
	if err != nil {
		return err
	}
	target, ok := layout.ByIndex(monitor)
	if !ok {
		return fmt.Errorf("monitor with index %d not found", monitor)
	}
	frame, err := conn.FrameGeometry(xproto.Window(id))
	if err != nil {
		return fmt.Errorf("window %#x: %w", uint32(id), ErrWindowGone)
	}
	from, ok := layout.MonitorFor(frame)
	if !ok || from.Connector == target.Connector {
		return nil
	}
	rel := geometry.ToRelative(frame, from).ClampSize(target.Bounds.Width, target.Bounds.Height)
	return conn.MoveResizeFrame(xproto.Window(id), geometry.ToAbsolute(rel, target))
}

func (b *LinuxBackend) Maximize(id WindowID, state geometry.MaximizedState) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.SetMaximized(xproto.Window(id), state, true)
}

func (b *LinuxBackend) Unmaximize(id WindowID, state geometry.MaximizedState) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	if state == geometry.MaximizedNone {
		state = geometry.MaximizedBoth
	}
	return conn.SetMaximized(xproto.Window(id), state, false)
}

func (b *LinuxBackend) SetFullscreen(id WindowID, fullscreen bool) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.SetFullscreen(xproto.Window(id), fullscreen)
}

// Tile places the window on half of the monitor's work area.
func (b *LinuxBackend) Tile(id WindowID, pos geometry.TilePosition, monitor int) error {
	if pos == geometry.TileNone {
		return nil
	}
	conn, err := b.connection()
	if err != nil {
		return err
	}
	layout, err := conn.GetMonitors()
	if err != nil {
		return err
	}
	m, ok := layout.ByIndex(monitor)
	if !ok {
		return fmt.Errorf("monitor with index %d not found", monitor)
	}
	return conn.MoveResizeFrame(xproto.Window(id), geometry.TileRect(m.Usable(), pos))
}

// Close requests graceful window close via WM_DELETE_WINDOW, or kills the
// client with force.
func (b *LinuxBackend) Close(id WindowID, force bool) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.CloseWindow(xproto.Window(id), force)
}

func (b *LinuxBackend) Monitors() (geometry.Layout, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	return conn.GetMonitors()
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}
