package x11

import (
	"sync"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// WatchHandlers receive X notifications. They run on the event loop
// goroutine and must not block.
type WatchHandlers struct {
	WindowAdded     func(win xproto.Window)
	WindowRemoved   func(win xproto.Window)
	TitleChanged    func(win xproto.Window)
	GeometryChanged func(win xproto.Window)
	ScreenChanged   func()
}

type watcher struct {
	conn *Connection
	h    WatchHandlers

	mu    sync.Mutex
	known map[xproto.Window]bool
}

// Watch subscribes to client list, per-window and RandR changes. Call it
// before EventLoop. Windows already mapped are watched but not reported as
// added.
func (c *Connection) Watch(h WatchHandlers) error {
	w := &watcher{conn: c, h: h, known: make(map[xproto.Window]bool)}

	if err := xwindow.New(c.XUtil, c.Root).Listen(xproto.EventMaskPropertyChange); err != nil {
		return err
	}
	xevent.PropertyNotifyFun(w.onRootProperty).Connect(c.XUtil, c.Root)

	if err := c.SelectScreenChanges(); err != nil {
		return err
	}
	xevent.HookFun(func(xu *xgbutil.XUtil, event interface{}) bool {
		switch event.(type) {
		case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
			if w.h.ScreenChanged != nil {
				w.h.ScreenChanged()
			}
		}
		return true
	}).Connect(c.XUtil)

	clients, err := c.ClientList()
	if err != nil {
		return err
	}
	for _, win := range clients {
		w.track(win)
	}
	return nil
}

func (w *watcher) onRootProperty(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
	name, err := xprop.AtomName(xu, ev.Atom)
	if err != nil {
		return
	}
	switch name {
	case "_NET_CLIENT_LIST":
		w.syncClients()
	case "_NET_WORKAREA":
		if w.h.ScreenChanged != nil {
			w.h.ScreenChanged()
		}
	}
}

// syncClients diffs _NET_CLIENT_LIST against the windows already seen.
func (w *watcher) syncClients() {
	clients, err := w.conn.ClientList()
	if err != nil {
		return
	}
	present := make(map[xproto.Window]bool, len(clients))
	for _, win := range clients {
		present[win] = true
	}

	w.mu.Lock()
	var added, removed []xproto.Window
	for _, win := range clients {
		if !w.known[win] {
			added = append(added, win)
		}
	}
	for win := range w.known {
		if !present[win] {
			removed = append(removed, win)
			delete(w.known, win)
		}
	}
	w.mu.Unlock()

	for _, win := range removed {
		xevent.Detach(w.conn.XUtil, win)
		if w.h.WindowRemoved != nil {
			w.h.WindowRemoved(win)
		}
	}
	for _, win := range added {
		w.track(win)
		if w.h.WindowAdded != nil {
			w.h.WindowAdded(win)
		}
	}
}

func (w *watcher) track(win xproto.Window) {
	w.mu.Lock()
	w.known[win] = true
	w.mu.Unlock()

	// The window may already be gone; its removal arrives with the next
	// client list change.
	if err := xwindow.New(w.conn.XUtil, win).Listen(
		xproto.EventMaskPropertyChange, xproto.EventMaskStructureNotify); err != nil {
		return
	}

	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		name, err := xprop.AtomName(xu, ev.Atom)
		if err != nil {
			return
		}
		switch name {
		case "_NET_WM_NAME", "WM_NAME":
			if w.h.TitleChanged != nil {
				w.h.TitleChanged(win)
			}
		case "_NET_WM_STATE", "_NET_WM_DESKTOP", "_NET_FRAME_EXTENTS":
			if w.h.GeometryChanged != nil {
				w.h.GeometryChanged(win)
			}
		}
	}).Connect(w.conn.XUtil, win)

	xevent.ConfigureNotifyFun(func(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
		if w.h.GeometryChanged != nil {
			w.h.GeometryChanged(win)
		}
	}).Connect(w.conn.XUtil, win)
}
