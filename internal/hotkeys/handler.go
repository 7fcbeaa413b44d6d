package hotkeys

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/platform"
)

// ErrUnsupported is returned by NewHandler for backends without an X11
// connection.
var ErrUnsupported = errors.New("global hotkeys require an X11 backend")

const moveTimeout = 5 * time.Second

// Mover moves a window to the monitor on connector and remembers the choice.
type Mover interface {
	MoveToMonitor(ctx context.Context, id platform.WindowID, connector string) error
}

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu    *xgbutil.XUtil
	root  xproto.Window
	wm    platform.WindowManager
	mover Mover

	mu    sync.Mutex
	bound []string
}

var ignoreModsOnce sync.Once

// NewHandler creates a hotkey handler on wm's X11 connection.
func NewHandler(wm platform.WindowManager, mover Mover) (*Handler, error) {
	accessor, ok := wm.(x11Accessor)
	if !ok || accessor.XUtil() == nil {
		return nil, ErrUnsupported
	}
	xu := accessor.XUtil()

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Handler{
		xu:    xu,
		root:  accessor.RootWindow(),
		wm:    wm,
		mover: mover,
	}, nil
}

// Bind replaces any previous bindings with next/previous monitor moves for
// the active window. Empty sequences are skipped.
func (h *Handler) Bind(next, previous string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.bound) > 0 {
		keybind.Detach(h.xu, h.root)
		h.bound = nil
	}

	bindings := []struct {
		keys string
		step int
	}{
		{next, 1},
		{previous, -1},
	}
	var errs []error
	for _, b := range bindings {
		if b.keys == "" {
			continue
		}
		step := b.step
		if err := h.bind(b.keys, func() {
			go h.cycle(step)
		}); err != nil {
			errs = append(errs, err)
			continue
		}
		h.bound = append(h.bound, b.keys)
		log.Printf("Hotkey registered: %s", b.keys)
	}
	return errors.Join(errs...)
}

func (h *Handler) bind(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

// cycle moves the active window step monitors along the left-to-right
// order.
func (h *Handler) cycle(step int) {
	id, err := h.wm.ActiveWindow()
	if err != nil {
		log.Printf("Hotkey: no active window: %v", err)
		return
	}
	d, err := h.wm.Details(id)
	if err != nil {
		log.Printf("Hotkey: window %#x: %v", uint32(id), err)
		return
	}
	layout, err := h.wm.Monitors()
	if err != nil {
		log.Printf("Hotkey: failed to list monitors: %v", err)
		return
	}
	target, ok := Step(layout, d.Connector, step)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), moveTimeout)
	defer cancel()
	if err := h.mover.MoveToMonitor(ctx, id, target); err != nil {
		log.Printf("Hotkey: move %#x to %s failed: %v", uint32(id), target, err)
	}
}

// Step returns the connector step positions after current in index order,
// wrapping around. A window on no known monitor goes to the first one. It
// reports false when there is nowhere else to go.
func Step(layout geometry.Layout, current string, step int) (string, bool) {
	if len(layout) == 0 {
		return "", false
	}
	ordered := make(geometry.Layout, len(layout))
	copy(ordered, layout)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	at := -1
	for i, m := range ordered {
		if m.Connector == current {
			at = i
			break
		}
	}
	if at < 0 {
		return ordered[0].Connector, true
	}
	if len(ordered) < 2 {
		return "", false
	}
	n := len(ordered)
	next := ((at+step)%n + n) % n
	return ordered[next].Connector, true
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
