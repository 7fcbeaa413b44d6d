// Package mcp exposes the daemon's control surface as Model Context Protocol
// tools over stdio.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/winkeep/internal/ipc"
	"github.com/1broseidon/winkeep/internal/model"
)

const (
	ServerName    = "winkeep"
	ServerVersion = "0.1.0"
)

// Client is the part of the IPC client the tools call.
type Client interface {
	GetStatus() (*ipc.StatusData, error)
	ListWindows() (*ipc.WindowsData, error)
	GetMonitors() (*ipc.MonitorsData, error)
	MoveToMonitor(window uint32, connector string) error
	SetSyncMode(mode string) error
	SetOverride(appID string, rule model.OverrideRule) error
	RemoveOverride(appID string) (bool, error)
	ListOverrides() (model.Overrides, error)
	Forget(appID, title string) (int, error)
	ListSaved() ([]model.SavedWindowConfig, error)
}

// Server is the MCP server for winkeep.
type Server struct {
	mcpServer *mcpsdk.Server
	client    Client
}

// NewServer creates an MCP server that forwards to the daemon through
// client.
func NewServer(client Client) *Server {
	s := &Server{client: client}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report the placement daemon's state: sync mode, connected monitors, tracked window count per phase and saved record count.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List windows the daemon tracks with their identity, phase, current monitor connector, frame and monitor preference stack.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_monitors",
		Description: "List connected monitors with index, connector name, bounds and work area.",
	}, s.handleListMonitors)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "move_window_to_monitor",
		Description: "Move a tracked window to the monitor on the given connector, keeping its relative position. The choice is remembered as the window's preferred monitor.",
	}, s.handleMoveWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_sync_mode",
		Description: "Set the global sync mode. RESTORE reapplies saved placement to reopened windows; IGNORE only records placement.",
	}, s.handleSetSyncMode)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_overrides",
		Description: "List per-application sync rules.",
	}, s.handleListOverrides)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_override",
		Description: "Create or replace the sync rule for one application id. An optional threshold requires a minimum match confidence before restoring.",
	}, s.handleSetOverride)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "remove_override",
		Description: "Remove the sync rule for one application id so the global mode applies again.",
	}, s.handleRemoveOverride)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_saved_windows",
		Description: "List remembered window placements: monitor, position relative to the monitor, workspace and state.",
	}, s.handleListSavedWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "forget_window",
		Description: "Delete saved placement records for an application, or for one of its window titles.",
	}, s.handleForgetWindow)
}
