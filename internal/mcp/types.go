package mcp

import (
	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/ipc"
)

// GetStatusInput is the input for the get_status tool.
type GetStatusInput struct{}

// ListWindowsInput is the input for the list_windows tool.
type ListWindowsInput struct {
	AppID string `json:"app_id,omitempty" jsonschema:"Only list windows of this application id"`
}

// ListWindowsOutput is the output for the list_windows tool.
type ListWindowsOutput struct {
	Windows []ipc.WindowInfo `json:"windows"`
}

// ListMonitorsInput is the input for the list_monitors tool.
type ListMonitorsInput struct{}

// ListMonitorsOutput is the output for the list_monitors tool.
type ListMonitorsOutput struct {
	Monitors []ipc.MonitorInfo `json:"monitors"`
}

// MoveWindowInput is the input for the move_window_to_monitor tool.
type MoveWindowInput struct {
	Window    uint32 `json:"window" jsonschema:"Window id as reported by list_windows"`
	Connector string `json:"connector" jsonschema:"Connector name of the target monitor, e.g. HDMI-1"`
}

// MoveWindowOutput is the output for the move_window_to_monitor tool.
type MoveWindowOutput struct {
	Window    uint32 `json:"window"`
	Connector string `json:"connector"`
}

// SetSyncModeInput is the input for the set_sync_mode tool.
type SetSyncModeInput struct {
	Mode string `json:"mode" jsonschema:"RESTORE to reapply saved placement or IGNORE to only record it"`
}

// SetSyncModeOutput is the output for the set_sync_mode tool.
type SetSyncModeOutput struct {
	Mode string `json:"mode"`
}

// ListOverridesInput is the input for the list_overrides tool.
type ListOverridesInput struct{}

// OverrideInfo is one per-application rule.
type OverrideInfo struct {
	AppID           string   `json:"app_id"`
	Action          string   `json:"action"`
	Threshold       *float64 `json:"threshold,omitempty"`
	MatchProperties []string `json:"match_properties,omitempty"`
}

// ListOverridesOutput is the output for the list_overrides tool.
type ListOverridesOutput struct {
	Overrides []OverrideInfo `json:"overrides"`
}

// SetOverrideInput is the input for the set_override tool.
type SetOverrideInput struct {
	AppID           string   `json:"app_id" jsonschema:"Application id the rule applies to"`
	Action          string   `json:"action" jsonschema:"RESTORE or IGNORE"`
	Threshold       *float64 `json:"threshold,omitempty" jsonschema:"Minimum match confidence between 0 and 1 for a restore"`
	MatchProperties []string `json:"match_properties,omitempty" jsonschema:"Properties scored for confidence: title and/or size"`
}

// RemoveOverrideInput is the input for the remove_override tool.
type RemoveOverrideInput struct {
	AppID string `json:"app_id" jsonschema:"Application id whose rule is removed"`
}

// RemoveOverrideOutput is the output for the remove_override tool.
type RemoveOverrideOutput struct {
	AppID   string `json:"app_id"`
	Removed bool   `json:"removed"`
}

// ForgetWindowInput is the input for the forget_window tool.
type ForgetWindowInput struct {
	AppID string `json:"app_id" jsonschema:"Application id of the saved records"`
	Title string `json:"title,omitempty" jsonschema:"Exact window title to forget; omit to forget every record of the application"`
}

// ForgetWindowOutput is the output for the forget_window tool.
type ForgetWindowOutput struct {
	AppID   string `json:"app_id"`
	Removed int    `json:"removed"`
}

// ListSavedWindowsInput is the input for the list_saved_windows tool.
type ListSavedWindowsInput struct {
	AppID string `json:"app_id,omitempty" jsonschema:"Only list records of this application id"`
}

// SavedWindowInfo is one saved placement record.
type SavedWindowInfo struct {
	AppID        string         `json:"app_id"`
	Title        string         `json:"title"`
	Connector    string         `json:"connector"`
	RelativeRect *geometry.Rect `json:"relative_rect,omitempty"`
	Workspace    int            `json:"workspace"`
	Maximized    string         `json:"maximized"`
	Fullscreen   bool           `json:"fullscreen"`
	Monitors     []string       `json:"monitors,omitempty"`
	LastSeen     string         `json:"last_seen,omitempty"`
}

// ListSavedWindowsOutput is the output for the list_saved_windows tool.
type ListSavedWindowsOutput struct {
	Records []SavedWindowInfo `json:"records"`
}
