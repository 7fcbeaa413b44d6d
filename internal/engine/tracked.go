package engine

import (
	"fmt"
	"time"

	"github.com/1broseidon/winkeep/internal/model"
	"github.com/1broseidon/winkeep/internal/planner"
	"github.com/1broseidon/winkeep/internal/platform"
)

// Phase is the lifecycle stage of a tracked window.
type Phase int

const (
	PhaseNew Phase = iota
	PhaseTracking
	PhaseMatching
	PhaseRestoring
	PhaseSettling
	PhaseSettled
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "NEW"
	case PhaseTracking:
		return "TRACKING"
	case PhaseMatching:
		return "MATCHING"
	case PhaseRestoring:
		return "RESTORING"
	case PhaseSettling:
		return "SETTLING"
	case PhaseSettled:
		return "SETTLED"
	case PhaseClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// TrackedWindow is the engine's record of one live window. Only the
// dispatcher goroutine touches it.
type TrackedWindow struct {
	Handle   platform.WindowID
	AppID    string
	Title    string
	Identity model.Identity
	Phase    Phase

	// Target is the config being restored, or the last placement written
	// for the window. It always carries a relative rect when set.
	Target *model.SavedWindowConfig

	// Connector is the monitor the engine last confirmed the window on.
	Connector string

	DriftAttempts int
	LastOp        *planner.Operation
	RestoreID     string
	Seen          time.Time

	live          platform.WindowDetails
	hasLive       bool
	applyFailures int

	// agedOut is set when the window was identified by the wildcard after
	// its title stayed generic. Settling and closing then also refresh the
	// wildcard record.
	agedOut bool
	// upgradeable allows one extra match when an aged-out window, left in
	// place or restored from the wildcard, gets a specific title.
	upgradeable bool
	// reevaluate marks a layout change that arrived mid-restore.
	reevaluate bool

	timer     Timer
	timerGen  uint64
	timerKind timerKind
}

func (tw *TrackedWindow) cancelTimer() {
	if tw.timer != nil {
		tw.timer.Stop()
		tw.timer = nil
	}
	tw.timerGen++
	tw.timerKind = 0
}

// holdsWildcard reports whether saves must leave the wildcard record alone.
// Siblings with the same generic title would otherwise restore onto the
// spot of whichever one was last moved.
func (tw *TrackedWindow) holdsWildcard() bool {
	return tw.agedOut && tw.Phase == PhaseTracking
}

func (tw *TrackedWindow) current() planner.Current {
	return planner.Current{
		Workspace:  tw.live.Workspace,
		Connector:  tw.live.Connector,
		Frame:      tw.live.Frame,
		Maximized:  tw.live.Maximized,
		Fullscreen: tw.live.Fullscreen,
		Tile:       tw.live.Tile,
	}
}
