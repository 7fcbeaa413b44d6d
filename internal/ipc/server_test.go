package ipc

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/model"
)

type fakeController struct {
	mu        sync.Mutex
	mode      model.Action
	overrides model.Overrides
	moves     []MoveToMonitorPayload
	forgets   []ForgetPayload
	reloads   int
	moveErr   error
}

func newFakeController() *fakeController {
	return &fakeController{mode: model.ActionRestore, overrides: model.Overrides{}}
}

func (f *fakeController) Status(context.Context) (StatusData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return StatusData{SyncMode: f.mode, Monitors: []string{"eDP-1", "HDMI-1"}, TrackedWindows: 2}, nil
}

func (f *fakeController) Windows(context.Context) ([]WindowInfo, error) {
	return []WindowInfo{{ID: 0x1a00003, AppID: "firefox", Phase: "SETTLED", Connector: "HDMI-1"}}, nil
}

func (f *fakeController) Monitors(context.Context) ([]MonitorInfo, error) {
	return []MonitorInfo{{Index: 0, Connector: "eDP-1", Primary: true, Width: 1920, Height: 1080,
		WorkArea: geometry.Rect{Width: 1920, Height: 1050}}}, nil
}

func (f *fakeController) MoveToMonitor(_ context.Context, window uint32, connector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, MoveToMonitorPayload{Window: window, Connector: connector})
	return nil
}

func (f *fakeController) SetSyncMode(_ context.Context, mode model.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = mode
	return nil
}

func (f *fakeController) SetOverride(_ context.Context, appID string, rule model.OverrideRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[appID] = rule
	return nil
}

func (f *fakeController) RemoveOverride(_ context.Context, appID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.overrides[appID]
	delete(f.overrides, appID)
	return ok, nil
}

func (f *fakeController) Overrides(context.Context) (model.Overrides, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := model.Overrides{}
	for k, v := range f.overrides {
		out[k] = v
	}
	return out, nil
}

func (f *fakeController) Forget(_ context.Context, appID, title string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgets = append(f.forgets, ForgetPayload{AppID: appID, Title: title})
	return 2, nil
}

func (f *fakeController) Saved(context.Context) ([]model.SavedWindowConfig, error) {
	rect := geometry.Rect{X: 10, Y: 20, Width: 800, Height: 600}
	return []model.SavedWindowConfig{
		{ApplicationID: "firefox", TitlePattern: model.Wildcard, RelativeRect: &rect, MonitorConnector: "HDMI-1"},
	}, nil
}

func (f *fakeController) Reload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return nil
}

func startServer(t *testing.T, ctrl Controller) (*Server, *Client) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "w.sock")
	srv := NewServerAt(path, ctrl)
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv, NewClientAt(path)
}

func TestServerClientRoundTrip(t *testing.T) {
	ctrl := newFakeController()
	_, client := startServer(t, ctrl)

	status, err := client.GetStatus()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.DaemonRunning || status.SyncMode != model.ActionRestore || status.TrackedWindows != 2 {
		t.Fatalf("unexpected status %+v", status)
	}

	windows, err := client.ListWindows()
	if err != nil {
		t.Fatalf("windows: %v", err)
	}
	if len(windows.Windows) != 1 || windows.Windows[0].AppID != "firefox" {
		t.Fatalf("unexpected windows %+v", windows)
	}

	monitors, err := client.GetMonitors()
	if err != nil {
		t.Fatalf("monitors: %v", err)
	}
	if len(monitors.Monitors) != 1 || monitors.Monitors[0].WorkArea.Height != 1050 {
		t.Fatalf("unexpected monitors %+v", monitors)
	}

	if err := client.MoveToMonitor(0x1a00003, "HDMI-1"); err != nil {
		t.Fatalf("move: %v", err)
	}
	ctrl.mu.Lock()
	moves := ctrl.moves
	ctrl.mu.Unlock()
	if len(moves) != 1 || moves[0].Connector != "HDMI-1" || moves[0].Window != 0x1a00003 {
		t.Fatalf("unexpected moves %+v", moves)
	}

	if err := client.SetSyncMode("ignore"); err != nil {
		t.Fatalf("sync mode: %v", err)
	}
	if status, _ := client.GetStatus(); status.SyncMode != model.ActionIgnore {
		t.Fatalf("mode = %q", status.SyncMode)
	}

	threshold := 0.8
	if err := client.SetOverride("firefox", model.OverrideRule{Action: model.ActionRestore, Threshold: &threshold}); err != nil {
		t.Fatalf("set override: %v", err)
	}
	overrides, err := client.ListOverrides()
	if err != nil {
		t.Fatalf("list overrides: %v", err)
	}
	if rule, ok := overrides["firefox"]; !ok || rule.Threshold == nil || *rule.Threshold != 0.8 {
		t.Fatalf("unexpected overrides %+v", overrides)
	}
	removed, err := client.RemoveOverride("firefox")
	if err != nil || !removed {
		t.Fatalf("remove override = %v, %v", removed, err)
	}
	removed, err = client.RemoveOverride("firefox")
	if err != nil || removed {
		t.Fatalf("second remove = %v, %v", removed, err)
	}

	n, err := client.Forget("firefox", "")
	if err != nil || n != 2 {
		t.Fatalf("forget = %d, %v", n, err)
	}

	saved, err := client.ListSaved()
	if err != nil {
		t.Fatalf("list saved: %v", err)
	}
	if len(saved) != 1 || saved[0].RelativeRect == nil || saved[0].RelativeRect.Width != 800 {
		t.Fatalf("unexpected saved records %+v", saved)
	}

	if err := client.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	ctrl.mu.Lock()
	reloads := ctrl.reloads
	ctrl.mu.Unlock()
	if reloads != 1 {
		t.Fatalf("reloads = %d", reloads)
	}
}

func TestServerRejectsBadRequests(t *testing.T) {
	ctrl := newFakeController()
	ctrl.moveErr = errors.New("window is RESTORING")
	_, client := startServer(t, ctrl)

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{name: "invalid mode", call: func() error { return client.SetSyncMode("sometimes") }, want: "invalid action"},
		{name: "move without connector", call: func() error { return client.MoveToMonitor(1, " ") }, want: "connector is required"},
		{name: "move without window", call: func() error { return client.MoveToMonitor(0, "HDMI-1") }, want: "window is required"},
		{name: "controller error", call: func() error { return client.MoveToMonitor(1, "HDMI-1") }, want: "RESTORING"},
		{name: "override without app", call: func() error {
			return client.SetOverride("", model.OverrideRule{Action: model.ActionIgnore})
		}, want: "app_id is required"},
		{name: "override bad action", call: func() error {
			return client.SetOverride("firefox", model.OverrideRule{Action: "MAYBE"})
		}, want: "Invalid override"},
		{name: "forget without app", call: func() error { _, err := client.Forget("", "x"); return err }, want: "app_id is required"},
		{name: "unknown command", call: func() error { return client.call("SHUFFLE", nil, nil) }, want: "Unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestServerStartRefusesLiveSocket(t *testing.T) {
	srv, _ := startServer(t, newFakeController())

	second := NewServerAt(srv.SocketPath(), newFakeController())
	if err := second.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestClientWithoutDaemon(t *testing.T) {
	client := NewClientAt(filepath.Join(t.TempDir(), "missing.sock"))
	err := client.Ping()
	if err == nil || !strings.Contains(err.Error(), "is the daemon running") {
		t.Fatalf("expected connection error, got %v", err)
	}
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("error %v does not wrap ErrNotRunning", err)
	}
}
