package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/model"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload         CommandType = "RELOAD"
	CommandGetStatus      CommandType = "GET_STATUS"
	CommandListWindows    CommandType = "LIST_WINDOWS"
	CommandGetMonitors    CommandType = "GET_MONITORS"
	CommandMoveToMonitor  CommandType = "MOVE_TO_MONITOR"
	CommandSetSyncMode    CommandType = "SET_SYNC_MODE"
	CommandSetOverride    CommandType = "SET_OVERRIDE"
	CommandRemoveOverride CommandType = "REMOVE_OVERRIDE"
	CommandListOverrides  CommandType = "LIST_OVERRIDES"
	CommandForget         CommandType = "FORGET"
	CommandListSaved      CommandType = "LIST_SAVED"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	SyncMode       model.Action   `json:"sync_mode"`
	DebugLogging   bool           `json:"debug_logging"`
	Monitors       []string       `json:"monitors"`
	TrackedWindows int            `json:"tracked_windows"`
	SavedRecords   int            `json:"saved_records"`
	Phases         map[string]int `json:"phases,omitempty"`
	PendingSave    bool           `json:"pending_save"`
	SettingsPath   string         `json:"settings_path"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	DaemonRunning  bool           `json:"daemon_running"`
}

// WindowInfo describes one tracked window.
type WindowInfo struct {
	ID            uint32        `json:"id"`
	AppID         string        `json:"app_id"`
	Title         string        `json:"title"`
	Fingerprint   string        `json:"fingerprint"`
	Phase         string        `json:"phase"`
	Connector     string        `json:"connector"`
	Frame         geometry.Rect `json:"frame"`
	Preferences   []string      `json:"preferences,omitempty"`
	RestoreID     string        `json:"restore_id,omitempty"`
	DriftAttempts int           `json:"drift_attempts"`
	LastOp        string        `json:"last_op,omitempty"`
}

// WindowsData represents the data returned by LIST_WINDOWS
type WindowsData struct {
	Windows []WindowInfo `json:"windows"`
}

// MonitorInfo represents information about a single monitor
type MonitorInfo struct {
	Index     int           `json:"index"`
	Connector string        `json:"connector"`
	Primary   bool          `json:"primary"`
	X         int           `json:"x"`
	Y         int           `json:"y"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	WorkArea  geometry.Rect `json:"work_area"`
}

// MonitorsData represents the data returned by GET_MONITORS
type MonitorsData struct {
	Monitors []MonitorInfo `json:"monitors"`
}

type MoveToMonitorPayload struct {
	Window    uint32 `json:"window"`
	Connector string `json:"connector"`
}

type SetSyncModePayload struct {
	Mode string `json:"mode"`
}

type SetOverridePayload struct {
	AppID string             `json:"app_id"`
	Rule  model.OverrideRule `json:"rule"`
}

type RemoveOverridePayload struct {
	AppID string `json:"app_id"`
}

type RemoveOverrideData struct {
	Removed bool `json:"removed"`
}

type OverridesData struct {
	Overrides model.Overrides `json:"overrides"`
}

// SavedData represents the data returned by LIST_SAVED
type SavedData struct {
	Records []model.SavedWindowConfig `json:"records"`
}

// ForgetPayload names the records to delete. An empty Title forgets every
// record of the application.
type ForgetPayload struct {
	AppID string `json:"app_id"`
	Title string `json:"title,omitempty"`
}

type ForgetData struct {
	Removed int `json:"removed"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
