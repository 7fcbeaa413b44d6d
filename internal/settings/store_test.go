package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/model"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	ctx := context.Background()

	fileKV, err := NewFileKV(filepath.Join(t.TempDir(), "settings"), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	sqliteKV, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "settings.db"), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sqliteKV.Close() })
	return map[string]KV{BackendFile: fileKV, BackendSQLite: sqliteKV}
}

func TestKVGetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := kv.Get(ctx, KeySyncMode); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get missing err = %v", err)
			}
			if err := kv.Set(ctx, KeySyncMode, []byte(`"IGNORE"`)); err != nil {
				t.Fatal(err)
			}
			if err := kv.Set(ctx, KeySyncMode, []byte(`"RESTORE"`)); err != nil {
				t.Fatal(err)
			}
			got, err := kv.Get(ctx, KeySyncMode)
			if err != nil || string(got) != `"RESTORE"` {
				t.Fatalf("Get = %q, %v", got, err)
			}
			if err := kv.Delete(ctx, KeySyncMode); err != nil {
				t.Fatal(err)
			}
			if err := kv.Delete(ctx, KeySyncMode); err != nil {
				t.Fatalf("second delete: %v", err)
			}
			if _, err := kv.Get(ctx, KeySyncMode); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get after delete err = %v", err)
			}
		})
	}
}

func TestFileKVLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := kv.Set(context.Background(), KeyOverrides, []byte(`{}`)); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "overrides.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("dir entries = %v", names)
	}
}

func TestStoreTypedAccess(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewStore(kv)

			mode, err := s.SyncMode(ctx)
			if err != nil || mode != model.ActionRestore {
				t.Fatalf("default SyncMode = %v, %v", mode, err)
			}
			if err := s.SetSyncMode(ctx, "ignore"); err != nil {
				t.Fatal(err)
			}
			if mode, _ := s.SyncMode(ctx); mode != model.ActionIgnore {
				t.Fatalf("SyncMode = %v", mode)
			}
			if err := s.SetSyncMode(ctx, "sometimes"); err == nil {
				t.Fatal("expected invalid mode error")
			}

			if dbg, _ := s.DebugLogging(ctx); dbg {
				t.Fatal("debug should default to false")
			}
			if err := s.SetDebugLogging(ctx, true); err != nil {
				t.Fatal(err)
			}
			if dbg, _ := s.DebugLogging(ctx); !dbg {
				t.Fatal("debug not persisted")
			}

			th := 0.9
			if err := s.SetOverride(ctx, "org.gnome.Calculator", model.OverrideRule{Action: "restore", Threshold: &th}); err != nil {
				t.Fatal(err)
			}
			if err := s.SetOverride(ctx, "org.gnome.Terminal", model.OverrideRule{Action: model.ActionIgnore}); err != nil {
				t.Fatal(err)
			}
			if err := s.SetOverride(ctx, "bad", model.OverrideRule{Action: model.ActionIgnore, MatchProperties: []string{"x"}}); err == nil {
				t.Fatal("expected validation error")
			}
			o, err := s.Overrides(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(o) != 2 || o["org.gnome.Calculator"].Action != model.ActionRestore || *o["org.gnome.Calculator"].Threshold != 0.9 {
				t.Fatalf("overrides = %+v", o)
			}
			if removed, err := s.RemoveOverride(ctx, "org.gnome.Terminal"); err != nil || !removed {
				t.Fatalf("RemoveOverride = %v, %v", removed, err)
			}
			if removed, _ := s.RemoveOverride(ctx, "org.gnome.Terminal"); removed {
				t.Fatal("second remove should report false")
			}

			saved := model.SavedWindows{}
			saved.Put(model.SavedWindowConfig{
				ApplicationID:      "org.gnome.Calculator",
				TitlePattern:       model.Wildcard,
				RelativeRect:       &geometry.Rect{X: 901, Y: 32, Width: 379, Height: 500},
				MonitorConnector:   "eDP-1",
				Tile:               geometry.TileRight,
				MonitorPreferences: []string{"HDMI-1", "eDP-1"},
				LastSeen:           time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			})
			if err := s.PutSavedWindows(ctx, saved); err != nil {
				t.Fatal(err)
			}
			got, err := s.SavedWindows(ctx)
			if err != nil {
				t.Fatal(err)
			}
			rec, ok := got.Get(model.WildcardIdentity("org.gnome.Calculator"))
			if !ok || rec.RelativeRect == nil || rec.RelativeRect.X != 901 || rec.Tile != geometry.TileRight ||
				len(rec.MonitorPreferences) != 2 || !rec.LastSeen.Equal(saved["org.gnome.Calculator"][0].LastSeen) {
				t.Fatalf("saved record = %+v", rec)
			}
		})
	}
}

func TestStoreMissingAndCorruptKeys(t *testing.T) {
	ctx := context.Background()
	kv, err := NewFileKV(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(kv)

	saved, err := s.SavedWindows(ctx)
	if err != nil || saved == nil || len(saved) != 0 {
		t.Fatalf("missing saved-windows = %v, %v", saved, err)
	}
	if err := kv.Set(ctx, KeySavedWindows, []byte(`null`)); err != nil {
		t.Fatal(err)
	}
	if saved, err := s.SavedWindows(ctx); err != nil || saved == nil {
		t.Fatalf("null saved-windows = %v, %v", saved, err)
	}
	if err := kv.Set(ctx, KeySavedWindows, []byte(`{not json`)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SavedWindows(ctx); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestWatchReportsExternalWrites(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s := NewStore(kv)
			changed := make(chan string, 16)
			done := make(chan error, 1)
			go func() {
				done <- s.Watch(ctx, func(key string) { changed <- key })
			}()

			// Give the watcher time to register before writing.
			time.Sleep(100 * time.Millisecond)
			if err := s.SetSyncMode(context.Background(), model.ActionIgnore); err != nil {
				t.Fatal(err)
			}

			select {
			case key := <-changed:
				if key != KeySyncMode {
					t.Fatalf("changed key = %q", key)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("no change reported")
			}

			cancel()
			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("Watch returned %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Watch did not return after cancel")
			}
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), "etcd", t.TempDir()); err == nil {
		t.Fatal("expected error")
	}
}
