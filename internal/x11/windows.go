package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/1broseidon/winkeep/internal/geometry"
)

const (
	stateMaxHorz    = "_NET_WM_STATE_MAXIMIZED_HORZ"
	stateMaxVert    = "_NET_WM_STATE_MAXIMIZED_VERT"
	stateFullscreen = "_NET_WM_STATE_FULLSCREEN"
	stateHidden     = "_NET_WM_STATE_HIDDEN"
)

// _NET_WM_STATE client message actions.
const (
	stateRemove = 0
	stateAdd    = 1
)

// WindowState is the subset of _NET_WM_STATE the placement engine reads.
type WindowState struct {
	Maximized  geometry.MaximizedState
	Fullscreen bool
	Hidden     bool
}

// Extents are the decoration sizes the window manager adds around a client.
type Extents struct {
	Left, Right, Top, Bottom int
}

// ClientList returns the managed top-level windows.
func (c *Connection) ClientList() ([]xproto.Window, error) {
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to get client list: %w", err)
	}
	return clients, nil
}

// FrameGeometry returns the window's outer frame in root coordinates,
// decorations included.
func (c *Connection) FrameGeometry(windowID xproto.Window) (geometry.Rect, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return geometry.Rect{}, err
	}
	translate, err := xproto.TranslateCoordinates(c.XUtil.Conn(), windowID, c.Root, 0, 0).Reply()
	if err != nil {
		return geometry.Rect{}, err
	}

	ext := c.GetFrameExtents(windowID)
	return geometry.Rect{
		X:      int(translate.DstX) - ext.Left,
		Y:      int(translate.DstY) - ext.Top,
		Width:  int(geom.Width) + ext.Left + ext.Right,
		Height: int(geom.Height) + ext.Top + ext.Bottom,
	}, nil
}

// MoveResizeFrame places a window so its outer frame covers frame.
func (c *Connection) MoveResizeFrame(windowID xproto.Window, frame geometry.Rect) error {
	ext := c.GetFrameExtents(windowID)
	width := max(frame.Width-ext.Left-ext.Right, 1)
	height := max(frame.Height-ext.Top-ext.Bottom, 1)

	// Use EWMH MoveResize for better WM compatibility
	if err := ewmh.MoveresizeWindow(c.XUtil, windowID, frame.X, frame.Y, width, height); err != nil {
		// Fallback to direct window manipulation
		xwindow.New(c.XUtil, windowID).MoveResize(frame.X, frame.Y, width, height)
	}
	return nil
}

// GetFrameExtents returns the window decoration sizes, or zeros when the
// window manager does not publish them.
func (c *Connection) GetFrameExtents(windowID xproto.Window) Extents {
	extents, err := ewmh.FrameExtentsGet(c.XUtil, windowID)
	if err != nil {
		return Extents{}
	}
	return Extents{
		Left:   int(extents.Left),
		Right:  int(extents.Right),
		Top:    int(extents.Top),
		Bottom: int(extents.Bottom),
	}
}

// State reads the window's maximize, fullscreen and hidden flags.
func (c *Connection) State(windowID xproto.Window) (WindowState, error) {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return WindowState{}, err
	}
	var st WindowState
	for _, s := range states {
		switch s {
		case stateMaxHorz:
			st.Maximized |= geometry.MaximizedHorizontal
		case stateMaxVert:
			st.Maximized |= geometry.MaximizedVertical
		case stateFullscreen:
			st.Fullscreen = true
		case stateHidden:
			st.Hidden = true
		}
	}
	return st, nil
}

// SetMaximized adds or removes the maximize flags named by state.
func (c *Connection) SetMaximized(windowID xproto.Window, state geometry.MaximizedState, on bool) error {
	action := stateRemove
	if on {
		action = stateAdd
	}
	if state&geometry.MaximizedHorizontal != 0 {
		if err := ewmh.WmStateReq(c.XUtil, windowID, action, stateMaxHorz); err != nil {
			return err
		}
	}
	if state&geometry.MaximizedVertical != 0 {
		if err := ewmh.WmStateReq(c.XUtil, windowID, action, stateMaxVert); err != nil {
			return err
		}
	}
	return nil
}

// SetFullscreen adds or removes the fullscreen flag.
func (c *Connection) SetFullscreen(windowID xproto.Window, on bool) error {
	action := stateRemove
	if on {
		action = stateAdd
	}
	return ewmh.WmStateReq(c.XUtil, windowID, action, stateFullscreen)
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		// If we can't determine type, assume it's normal
		return true
	}

	for _, t := range types {
		if t == "_NET_WM_WINDOW_TYPE_NORMAL" {
			return true
		}
		// Reject desktop, dock, splash, etc.
		if t == "_NET_WM_WINDOW_TYPE_DESKTOP" ||
			t == "_NET_WM_WINDOW_TYPE_DOCK" ||
			t == "_NET_WM_WINDOW_TYPE_SPLASH" ||
			t == "_NET_WM_WINDOW_TYPE_NOTIFICATION" {
			return false
		}
	}

	// If no specific type is set, assume it's normal
	return len(types) == 0
}

func (c *Connection) GetActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}

// WindowClass returns the WM_CLASS class name, which serves as the
// application id.
func (c *Connection) WindowClass(windowID xproto.Window) string {
	wmClass, err := icccm.WmClassGet(c.XUtil, windowID)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(wmClass.Class)
}

// WindowTitle returns _NET_WM_NAME, falling back to WM_NAME.
func (c *Connection) WindowTitle(windowID xproto.Window) string {
	title, err := ewmh.WmNameGet(c.XUtil, windowID)
	if err == nil {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	title, err = icccm.WmNameGet(c.XUtil, windowID)
	if err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

// CloseWindow asks the client to close via WM_DELETE_WINDOW. With force the
// client connection is killed instead.
func (c *Connection) CloseWindow(windowID xproto.Window, force bool) error {
	if force {
		return xproto.KillClientChecked(c.XUtil.Conn(), uint32(windowID)).Check()
	}

	deleteAtom, err := c.internAtom("WM_DELETE_WINDOW")
	if err != nil {
		return err
	}
	protocolsAtom, err := c.internAtom("WM_PROTOCOLS")
	if err != nil {
		return err
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   protocolsAtom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(deleteAtom), 0, 0, 0, 0}),
	}
	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		windowID,
		xproto.EventMaskNoEvent,
		string(ev.Bytes()),
	).Check()
}
