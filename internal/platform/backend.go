package platform

import (
	"errors"
	"fmt"

	"github.com/1broseidon/winkeep/internal/geometry"
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// ErrWindowGone is returned for operations on a window that no longer exists.
var ErrWindowGone = errors.New("window no longer exists")

// WindowDetails is a snapshot of a top-level window. Frame is in absolute
// screen coordinates and includes decorations. Workspace is -1 for windows
// shown on every workspace.
type WindowDetails struct {
	ID         WindowID                `json:"id"`
	AppID      string                  `json:"app_id"`
	Title      string                  `json:"title"`
	Frame      geometry.Rect           `json:"frame"`
	Workspace  int                     `json:"workspace"`
	Monitor    int                     `json:"monitor"`
	Connector  string                  `json:"connector"`
	Maximized  geometry.MaximizedState `json:"maximized"`
	Fullscreen bool                    `json:"fullscreen"`
	Tile       geometry.TilePosition   `json:"tile,omitempty"`
}

// WindowManager is the set of shell operations the placement engine drives.
// Monitor arguments are logical indexes as reported by Monitors.
type WindowManager interface {
	ListWindows() ([]WindowID, error)
	Details(id WindowID) (WindowDetails, error)
	ActiveWindow() (WindowID, error)
	Place(id WindowID, frame geometry.Rect) error
	Move(id WindowID, x, y int) error
	MoveToWorkspace(id WindowID, workspace int) error
	MoveToMonitor(id WindowID, monitor int) error
	Maximize(id WindowID, state geometry.MaximizedState) error
	Unmaximize(id WindowID, state geometry.MaximizedState) error
	SetFullscreen(id WindowID, fullscreen bool) error
	Tile(id WindowID, pos geometry.TilePosition, monitor int) error
	Close(id WindowID, force bool) error
	Monitors() (geometry.Layout, error)
}

// EventKind identifies a window manager notification.
type EventKind int

const (
	EventWindowAdded EventKind = iota + 1
	EventWindowRemoved
	EventTitleChanged
	EventGeometryChanged
	EventMonitorsChanged
)

func (k EventKind) String() string {
	switch k {
	case EventWindowAdded:
		return "window-added"
	case EventWindowRemoved:
		return "window-removed"
	case EventTitleChanged:
		return "title-changed"
	case EventGeometryChanged:
		return "geometry-changed"
	case EventMonitorsChanged:
		return "monitors-changed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a window manager notification. Window is zero for
// EventMonitorsChanged; Title is only set for EventTitleChanged.
type Event struct {
	Kind   EventKind
	Window WindowID
	Title  string
}

// EventSource delivers notifications. Handlers may be called from any
// goroutine and must not block.
type EventSource interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}
