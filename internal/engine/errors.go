package engine

import (
	"errors"
	"fmt"

	"github.com/1broseidon/winkeep/internal/platform"
)

var (
	// ErrMatchNotFound means no saved record exists for the window. The
	// window is tracked without a restore.
	ErrMatchNotFound = errors.New("no saved config matches window")

	// ErrDriftCorrectionExhausted means the window manager kept placing the
	// window away from its target. The window settles where it is.
	ErrDriftCorrectionExhausted = errors.New("drift correction attempts exhausted")

	// ErrTargetMonitorUnavailable means no preferred connector is
	// connected. The engine falls back to another monitor.
	ErrTargetMonitorUnavailable = errors.New("no preferred monitor connected")

	// ErrUnknownWindow is returned by requests naming an untracked window.
	ErrUnknownWindow = errors.New("window is not tracked")

	// ErrWindowBusy is returned by move requests while a window is still
	// being identified or restored.
	ErrWindowBusy = errors.New("window is busy")
)

// WMCallError wraps a failed window manager call.
type WMCallError struct {
	Op     string
	Window platform.WindowID
	Err    error
}

func (e *WMCallError) Error() string {
	return fmt.Sprintf("%s on window %#x: %v", e.Op, uint32(e.Window), e.Err)
}

func (e *WMCallError) Unwrap() error {
	return e.Err
}
