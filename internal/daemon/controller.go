package daemon

import (
	"context"
	"fmt"

	"github.com/1broseidon/winkeep/internal/ipc"
	"github.com/1broseidon/winkeep/internal/model"
	"github.com/1broseidon/winkeep/internal/platform"
	"github.com/1broseidon/winkeep/internal/settings"
)

// Status implements ipc.Controller.
func (d *Daemon) Status(ctx context.Context) (ipc.StatusData, error) {
	st, err := d.eng.Status(ctx)
	if err != nil {
		return ipc.StatusData{}, err
	}
	return ipc.StatusData{
		SyncMode:       st.SyncMode,
		DebugLogging:   d.debug.Load(),
		Monitors:       st.Monitors,
		TrackedWindows: len(st.Windows),
		SavedRecords:   st.SavedRecords,
		Phases:         st.Phases,
		PendingSave:    st.Pending,
		SettingsPath:   d.settingsPath,
	}, nil
}

// Windows implements ipc.Controller.
func (d *Daemon) Windows(ctx context.Context) ([]ipc.WindowInfo, error) {
	st, err := d.eng.Status(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ipc.WindowInfo, 0, len(st.Windows))
	for _, w := range st.Windows {
		out = append(out, ipc.WindowInfo{
			ID:            uint32(w.ID),
			AppID:         w.AppID,
			Title:         w.Title,
			Fingerprint:   w.Fingerprint,
			Phase:         w.Phase,
			Connector:     w.Connector,
			Frame:         w.Frame,
			Preferences:   w.Preferences,
			RestoreID:     w.RestoreID,
			DriftAttempts: w.DriftAttempts,
			LastOp:        w.LastOp,
		})
	}
	return out, nil
}

// Monitors implements ipc.Controller.
func (d *Daemon) Monitors(ctx context.Context) ([]ipc.MonitorInfo, error) {
	layout, err := d.eng.Layout(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ipc.MonitorInfo, 0, len(layout))
	for _, m := range layout {
		out = append(out, ipc.MonitorInfo{
			Index:     m.Index,
			Connector: m.Connector,
			Primary:   m.Primary,
			X:         m.Bounds.X,
			Y:         m.Bounds.Y,
			Width:     m.Bounds.Width,
			Height:    m.Bounds.Height,
			WorkArea:  m.WorkArea,
		})
	}
	return out, nil
}

// MoveToMonitor implements ipc.Controller.
func (d *Daemon) MoveToMonitor(ctx context.Context, window uint32, connector string) error {
	return d.eng.MoveToMonitor(ctx, platform.WindowID(window), connector)
}

// SetSyncMode implements ipc.Controller.
func (d *Daemon) SetSyncMode(ctx context.Context, mode model.Action) error {
	if err := d.store.SetSyncMode(ctx, mode); err != nil {
		return err
	}
	return d.rebuildResolver(ctx)
}

// SetOverride implements ipc.Controller.
func (d *Daemon) SetOverride(ctx context.Context, appID string, rule model.OverrideRule) error {
	if err := d.store.SetOverride(ctx, appID, rule); err != nil {
		return err
	}
	return d.rebuildResolver(ctx)
}

// RemoveOverride implements ipc.Controller.
func (d *Daemon) RemoveOverride(ctx context.Context, appID string) (bool, error) {
	removed, err := d.store.RemoveOverride(ctx, appID)
	if err != nil || !removed {
		return removed, err
	}
	return true, d.rebuildResolver(ctx)
}

// Overrides implements ipc.Controller.
func (d *Daemon) Overrides(ctx context.Context) (model.Overrides, error) {
	return d.store.Overrides(ctx)
}

// Forget implements ipc.Controller.
func (d *Daemon) Forget(ctx context.Context, appID, title string) (int, error) {
	return d.eng.Forget(ctx, appID, title)
}

// Saved implements ipc.Controller.
func (d *Daemon) Saved(ctx context.Context) ([]model.SavedWindowConfig, error) {
	saved, err := d.eng.Saved(ctx)
	if err != nil {
		return nil, err
	}
	return saved.Records(), nil
}

// rebuildResolver rereads the policy settings and hands the engine a new
// resolver. Writes made through the store are picked up here without
// waiting for the change watcher.
func (d *Daemon) rebuildResolver(ctx context.Context) error {
	r, err := d.loadResolver(ctx)
	if err != nil {
		return fmt.Errorf("rebuild policy: %w", err)
	}
	d.eng.SetResolver(r)
	d.log.Debug("policy updated", "mode", r.Mode())
	return nil
}

// onSettingChanged applies a change to a settings key made by this or
// another process.
func (d *Daemon) onSettingChanged(ctx context.Context, key string) {
	switch key {
	case settings.KeyOverrides, settings.KeySyncMode:
		if err := d.rebuildResolver(ctx); err != nil {
			d.log.Error("failed to apply policy change", "key", key, "error", err)
		}
	case settings.KeyDebugLogging:
		debug, err := d.store.DebugLogging(ctx)
		if err != nil {
			d.log.Error("failed to read debug-logging setting", "error", err)
			return
		}
		if d.debug.Swap(debug) != debug {
			d.applyLevel()
			d.log.Info("debug logging changed", "enabled", debug)
		}
	default:
		d.log.Debug("settings key changed", "key", key)
	}
}
