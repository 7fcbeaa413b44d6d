package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/winkeep/internal/ipc"
	"github.com/1broseidon/winkeep/internal/model"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetStatusInput) (*mcpsdk.CallToolResult, ipc.StatusData, error) {
	st, err := s.client.GetStatus()
	if err != nil {
		return nil, ipc.StatusData{}, fmt.Errorf("failed to get status: %w", err)
	}
	return nil, *st, nil
}

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	data, err := s.client.ListWindows()
	if err != nil {
		return nil, ListWindowsOutput{}, fmt.Errorf("failed to list windows: %w", err)
	}
	windows := make([]ipc.WindowInfo, 0, len(data.Windows))
	for _, w := range data.Windows {
		if args.AppID != "" && w.AppID != args.AppID {
			continue
		}
		windows = append(windows, w)
	}
	return nil, ListWindowsOutput{Windows: windows}, nil
}

func (s *Server) handleListMonitors(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListMonitorsInput) (*mcpsdk.CallToolResult, ListMonitorsOutput, error) {
	data, err := s.client.GetMonitors()
	if err != nil {
		return nil, ListMonitorsOutput{}, fmt.Errorf("failed to list monitors: %w", err)
	}
	return nil, ListMonitorsOutput{Monitors: data.Monitors}, nil
}

func (s *Server) handleMoveWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args MoveWindowInput) (*mcpsdk.CallToolResult, MoveWindowOutput, error) {
	connector := strings.TrimSpace(args.Connector)
	if args.Window == 0 {
		return nil, MoveWindowOutput{}, fmt.Errorf("window is required")
	}
	if connector == "" {
		return nil, MoveWindowOutput{}, fmt.Errorf("connector is required")
	}
	if err := s.client.MoveToMonitor(args.Window, connector); err != nil {
		return nil, MoveWindowOutput{}, fmt.Errorf("failed to move window %d: %w", args.Window, err)
	}
	return nil, MoveWindowOutput{Window: args.Window, Connector: connector}, nil
}

func (s *Server) handleSetSyncMode(_ context.Context, _ *mcpsdk.CallToolRequest, args SetSyncModeInput) (*mcpsdk.CallToolResult, SetSyncModeOutput, error) {
	mode, err := model.ParseAction(args.Mode)
	if err != nil {
		return nil, SetSyncModeOutput{}, err
	}
	if err := s.client.SetSyncMode(string(mode)); err != nil {
		return nil, SetSyncModeOutput{}, fmt.Errorf("failed to set sync mode: %w", err)
	}
	return nil, SetSyncModeOutput{Mode: string(mode)}, nil
}

func (s *Server) handleListOverrides(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListOverridesInput) (*mcpsdk.CallToolResult, ListOverridesOutput, error) {
	overrides, err := s.client.ListOverrides()
	if err != nil {
		return nil, ListOverridesOutput{}, fmt.Errorf("failed to list overrides: %w", err)
	}
	out := make([]OverrideInfo, 0, len(overrides))
	for appID, rule := range overrides {
		out = append(out, OverrideInfo{
			AppID:           appID,
			Action:          string(rule.Action),
			Threshold:       rule.Threshold,
			MatchProperties: rule.MatchProperties,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })
	return nil, ListOverridesOutput{Overrides: out}, nil
}

func (s *Server) handleSetOverride(_ context.Context, _ *mcpsdk.CallToolRequest, args SetOverrideInput) (*mcpsdk.CallToolResult, OverrideInfo, error) {
	appID := strings.TrimSpace(args.AppID)
	if appID == "" {
		return nil, OverrideInfo{}, fmt.Errorf("app_id is required")
	}
	action, err := model.ParseAction(args.Action)
	if err != nil {
		return nil, OverrideInfo{}, err
	}
	rule := model.OverrideRule{
		Action:          action,
		Threshold:       args.Threshold,
		MatchProperties: args.MatchProperties,
	}
	if err := rule.Validate(); err != nil {
		return nil, OverrideInfo{}, fmt.Errorf("invalid override: %w", err)
	}
	if err := s.client.SetOverride(appID, rule); err != nil {
		return nil, OverrideInfo{}, fmt.Errorf("failed to set override: %w", err)
	}
	return nil, OverrideInfo{
		AppID:           appID,
		Action:          string(rule.Action),
		Threshold:       rule.Threshold,
		MatchProperties: rule.MatchProperties,
	}, nil
}

func (s *Server) handleRemoveOverride(_ context.Context, _ *mcpsdk.CallToolRequest, args RemoveOverrideInput) (*mcpsdk.CallToolResult, RemoveOverrideOutput, error) {
	appID := strings.TrimSpace(args.AppID)
	if appID == "" {
		return nil, RemoveOverrideOutput{}, fmt.Errorf("app_id is required")
	}
	removed, err := s.client.RemoveOverride(appID)
	if err != nil {
		return nil, RemoveOverrideOutput{}, fmt.Errorf("failed to remove override: %w", err)
	}
	return nil, RemoveOverrideOutput{AppID: appID, Removed: removed}, nil
}

func (s *Server) handleForgetWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args ForgetWindowInput) (*mcpsdk.CallToolResult, ForgetWindowOutput, error) {
	appID := strings.TrimSpace(args.AppID)
	if appID == "" {
		return nil, ForgetWindowOutput{}, fmt.Errorf("app_id is required")
	}
	n, err := s.client.Forget(appID, args.Title)
	if err != nil {
		return nil, ForgetWindowOutput{}, fmt.Errorf("failed to forget %s: %w", appID, err)
	}
	return nil, ForgetWindowOutput{AppID: appID, Removed: n}, nil
}

func (s *Server) handleListSavedWindows(_ context.Context, _ *mcpsdk.CallToolRequest, args ListSavedWindowsInput) (*mcpsdk.CallToolResult, ListSavedWindowsOutput, error) {
	records, err := s.client.ListSaved()
	if err != nil {
		return nil, ListSavedWindowsOutput{}, fmt.Errorf("failed to list saved windows: %w", err)
	}
	out := ListSavedWindowsOutput{Records: make([]SavedWindowInfo, 0, len(records))}
	for _, rec := range records {
		if args.AppID != "" && rec.ApplicationID != args.AppID {
			continue
		}
		info := SavedWindowInfo{
			AppID:        rec.ApplicationID,
			Title:        rec.TitlePattern,
			Connector:    rec.MonitorConnector,
			RelativeRect: rec.RelativeRect,
			Workspace:    rec.Workspace,
			Maximized:    rec.Maximized.String(),
			Fullscreen:   rec.Fullscreen,
			Monitors:     rec.MonitorPreferences,
		}
		if !rec.LastSeen.IsZero() {
			info.LastSeen = rec.LastSeen.Format(time.RFC3339)
		}
		out.Records = append(out.Records, info)
	}
	return nil, out, nil
}
