package engine

import (
	"sync"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/model"
	"github.com/1broseidon/winkeep/internal/platform"
	"github.com/1broseidon/winkeep/internal/policy"
)

// Event is an input to the engine's dispatcher.
type Event interface {
	event()
}

type WindowAdded struct{ Window platform.WindowID }

type TitleChanged struct {
	Window platform.WindowID
	Title  string
}

type GeometryChanged struct{ Window platform.WindowID }

type MonitorLayoutChanged struct{}

type WindowRemoved struct{ Window platform.WindowID }

// Sweep carries the full list of live windows. Tracked windows missing from
// it are treated as removed and unknown ones as added.
type Sweep struct{ Live []platform.WindowID }

func (WindowAdded) event()          {}
func (TitleChanged) event()         {}
func (GeometryChanged) event()      {}
func (MonitorLayoutChanged) event() {}
func (WindowRemoved) event()        {}
func (Sweep) event()                {}

// FromPlatform converts a window manager notification.
func FromPlatform(ev platform.Event) (Event, bool) {
	switch ev.Kind {
	case platform.EventWindowAdded:
		return WindowAdded{Window: ev.Window}, true
	case platform.EventWindowRemoved:
		return WindowRemoved{Window: ev.Window}, true
	case platform.EventTitleChanged:
		return TitleChanged{Window: ev.Window, Title: ev.Title}, true
	case platform.EventGeometryChanged:
		return GeometryChanged{Window: ev.Window}, true
	case platform.EventMonitorsChanged:
		return MonitorLayoutChanged{}, true
	default:
		return nil, false
	}
}

type timerKind int

const (
	timerGeneric timerKind = iota + 1
	timerSettle
	timerRetry
)

type timerFired struct {
	window platform.WindowID
	gen    uint64
	kind   timerKind
}

type flushDue struct{}

type resolverChanged struct{ resolver *policy.Resolver }

type moveRequest struct {
	window    platform.WindowID
	connector string
	reply     chan error
}

type forgetRequest struct {
	appID string
	title string
	reply chan int
}

type statusRequest struct {
	reply chan Status
}

type savedRequest struct {
	reply chan model.SavedWindows
}

type tuningChanged struct{ tuning Tuning }

type layoutRequest struct {
	reply chan geometry.Layout
}

func (timerFired) event()      {}
func (flushDue) event()        {}
func (resolverChanged) event() {}
func (moveRequest) event()     {}
func (forgetRequest) event()   {}
func (statusRequest) event()   {}
func (savedRequest) event()    {}
func (layoutRequest) event()   {}
func (tuningChanged) event()   {}

// mailbox is an unbounded FIFO. Window manager callbacks may fire while
// the dispatcher itself is applying operations, so posting never blocks.
type mailbox struct {
	mu     sync.Mutex
	items  []Event
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) push(ev Event) {
	m.mu.Lock()
	m.items = append(m.items, ev)
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) pop() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return nil, false
	}
	ev := m.items[0]
	m.items[0] = nil
	m.items = m.items[1:]
	return ev, true
}
