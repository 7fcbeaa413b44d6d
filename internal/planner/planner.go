// Package planner turns a target configuration into the ordered window
// manager operations that bring a window there.
package planner

import (
	"errors"
	"fmt"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/model"
)

// ErrMissingRelativeRect is returned for a target without a relative rect.
// It indicates corrupt data, not a transient failure.
var ErrMissingRelativeRect = errors.New("target config has no relative rect")

// OpKind identifies a placement operation.
type OpKind int

const (
	OpMoveToWorkspace OpKind = iota + 1
	OpMoveToMonitor
	OpUnmaximize
	OpMaximize
	OpSetFullscreen
	OpPlace
	OpTile
)

func (k OpKind) String() string {
	switch k {
	case OpMoveToWorkspace:
		return "move-to-workspace"
	case OpMoveToMonitor:
		return "move-to-monitor"
	case OpUnmaximize:
		return "unmaximize"
	case OpMaximize:
		return "maximize"
	case OpSetFullscreen:
		return "set-fullscreen"
	case OpPlace:
		return "place"
	case OpTile:
		return "tile"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Operation is one step. Only the fields relevant to Kind are set.
type Operation struct {
	Kind       OpKind
	Workspace  int
	Monitor    geometry.Monitor
	Rect       geometry.Rect
	Maximized  geometry.MaximizedState
	Fullscreen bool
	Tile       geometry.TilePosition
}

func (o Operation) String() string {
	switch o.Kind {
	case OpMoveToWorkspace:
		return fmt.Sprintf("%s(%d)", o.Kind, o.Workspace)
	case OpMoveToMonitor:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Monitor.Connector)
	case OpMaximize, OpUnmaximize:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Maximized)
	case OpSetFullscreen:
		return fmt.Sprintf("%s(%t)", o.Kind, o.Fullscreen)
	case OpPlace:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Rect)
	case OpTile:
		return fmt.Sprintf("%s(%s,%s)", o.Kind, o.Tile, o.Monitor.Connector)
	default:
		return o.Kind.String()
	}
}

// Current is the live state a plan is diffed against. Frame is absolute.
type Current struct {
	Workspace  int
	Connector  string
	Frame      geometry.Rect
	Maximized  geometry.MaximizedState
	Fullscreen bool
	Tile       geometry.TilePosition
}

// AbsoluteRect converts the target's relative rect onto m.
func AbsoluteRect(target model.SavedWindowConfig, m geometry.Monitor) (geometry.Rect, error) {
	if target.RelativeRect == nil {
		return geometry.Rect{}, fmt.Errorf("%s: %w", target.Identity(), ErrMissingRelativeRect)
	}
	return geometry.ToAbsolute(*target.RelativeRect, m), nil
}

// ExpectedFrame is the frame a converged window has: the tile slot when
// tiled, otherwise the absolute rect.
func ExpectedFrame(target model.SavedWindowConfig, m geometry.Monitor) (geometry.Rect, error) {
	abs, err := AbsoluteRect(target, m)
	if err != nil {
		return geometry.Rect{}, err
	}
	if target.Tile != geometry.TileNone {
		return geometry.TileRect(m.Usable(), target.Tile), nil
	}
	return abs, nil
}

// Plan returns the operations that move a window from cur to target on
// monitor m. Each step is emitted only when cur differs, so planning an
// already converged window yields nothing.
func Plan(target model.SavedWindowConfig, m geometry.Monitor, cur Current) ([]Operation, error) {
	abs, err := AbsoluteRect(target, m)
	if err != nil {
		return nil, err
	}
	var ops []Operation
	if target.Workspace >= 0 && target.Workspace != cur.Workspace {
		ops = append(ops, Operation{Kind: OpMoveToWorkspace, Workspace: target.Workspace})
	}
	if m.Connector != cur.Connector {
		ops = append(ops, Operation{Kind: OpMoveToMonitor, Monitor: m})
	}
	return append(ops, placement(target, m, abs, cur)...), nil
}

// PlanPlacement is Plan without the workspace and monitor steps. Drift
// correction uses it with the original target.
func PlanPlacement(target model.SavedWindowConfig, m geometry.Monitor, cur Current) ([]Operation, error) {
	abs, err := AbsoluteRect(target, m)
	if err != nil {
		return nil, err
	}
	return placement(target, m, abs, cur), nil
}

func placement(target model.SavedWindowConfig, m geometry.Monitor, abs geometry.Rect, cur Current) []Operation {
	var ops []Operation
	// Axes are cleared before new ones are set so a both-axes window
	// restored to a single axis drops the other one.
	if clear := cur.Maximized &^ target.Maximized; clear != geometry.MaximizedNone {
		ops = append(ops, Operation{Kind: OpUnmaximize, Maximized: clear})
	}
	if add := target.Maximized &^ cur.Maximized; add != geometry.MaximizedNone {
		ops = append(ops, Operation{Kind: OpMaximize, Maximized: add})
	}
	if target.Fullscreen != cur.Fullscreen {
		ops = append(ops, Operation{Kind: OpSetFullscreen, Fullscreen: target.Fullscreen})
	}
	if target.Fullscreen || target.Maximized.Full() {
		return ops
	}

	expected := abs
	if target.Tile != geometry.TileNone {
		expected = geometry.TileRect(m.Usable(), target.Tile)
	}
	placed := false
	if cur.Frame != expected {
		ops = append(ops, Operation{Kind: OpPlace, Rect: abs})
		placed = true
	}
	if target.Tile != geometry.TileNone && (placed || cur.Tile != target.Tile) {
		ops = append(ops, Operation{Kind: OpTile, Tile: target.Tile, Monitor: m})
	}
	return ops
}

// Converged reports whether cur matches target on m, with frame edges
// within tolerance.
func Converged(target model.SavedWindowConfig, m geometry.Monitor, cur Current, tolerance int) (bool, error) {
	expected, err := ExpectedFrame(target, m)
	if err != nil {
		return false, err
	}
	if target.Workspace >= 0 && target.Workspace != cur.Workspace {
		return false, nil
	}
	if m.Connector != cur.Connector {
		return false, nil
	}
	if target.Fullscreen != cur.Fullscreen || target.Maximized != cur.Maximized {
		return false, nil
	}
	if target.Fullscreen || target.Maximized.Full() {
		return true, nil
	}
	return cur.Frame.Near(expected, tolerance), nil
}
