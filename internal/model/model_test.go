package model

import (
	"testing"
	"time"

	"github.com/1broseidon/winkeep/internal/geometry"
)

func rect(x, y, w, h int) *geometry.Rect {
	return &geometry.Rect{X: x, Y: y, Width: w, Height: h}
}

func TestSavedWindowsPutReplacesSameIdentity(t *testing.T) {
	s := SavedWindows{}
	s.Put(SavedWindowConfig{ApplicationID: "org.gnome.Calculator", TitlePattern: Wildcard, RelativeRect: rect(1, 2, 3, 4)})
	s.Put(SavedWindowConfig{ApplicationID: "org.gnome.Calculator", TitlePattern: Wildcard, RelativeRect: rect(5, 6, 7, 8)})
	s.Put(SavedWindowConfig{ApplicationID: "org.gnome.Calculator", TitlePattern: "Scientific calculator mode", RelativeRect: rect(0, 0, 1, 1)})

	if n := len(s["org.gnome.Calculator"]); n != 2 {
		t.Fatalf("got %d records, want 2", n)
	}
	rec, ok := s.Get(WildcardIdentity("org.gnome.Calculator"))
	if !ok || rec.RelativeRect.X != 5 {
		t.Fatalf("Get wildcard = %+v, %v", rec, ok)
	}

	if !s.Delete(WildcardIdentity("org.gnome.Calculator")) {
		t.Fatal("Delete should report existing record")
	}
	if s.Delete(WildcardIdentity("org.gnome.Calculator")) {
		t.Fatal("second Delete should report false")
	}
	if got := s.DeleteApp("org.gnome.Calculator"); got != 1 {
		t.Fatalf("DeleteApp = %d, want 1", got)
	}
	if len(s) != 0 {
		t.Fatalf("map not empty: %v", s)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	orig := SavedWindowConfig{
		ApplicationID:      "app",
		TitlePattern:       Wildcard,
		RelativeRect:       rect(1, 1, 10, 10),
		PerMonitor:         map[string]Placement{"A": {}},
		MonitorPreferences: []string{"A"},
	}
	cp := orig.Clone()
	cp.RelativeRect.X = 99
	cp.PerMonitor["B"] = Placement{}
	cp.MonitorPreferences[0] = "Z"

	if orig.RelativeRect.X != 1 || len(orig.PerMonitor) != 1 || orig.MonitorPreferences[0] != "A" {
		t.Fatalf("clone aliased original: %+v", orig)
	}
}

func TestOnConnector(t *testing.T) {
	primary := geometry.Monitor{Connector: "eDP-1", Bounds: geometry.Rect{Width: 1280, Height: 1024}}
	external := geometry.Monitor{Connector: "HDMI-1", Bounds: geometry.Rect{X: 1280, Width: 1920, Height: 1080}}

	rec := SavedWindowConfig{
		ApplicationID:    "app",
		TitlePattern:     Wildcard,
		RelativeRect:     rect(1500, 100, 400, 300),
		MonitorConnector: "HDMI-1",
		Tile:             geometry.TileLeft,
	}

	t.Run("clamped when no per-monitor placement", func(t *testing.T) {
		got := rec.OnConnector(primary)
		if got.MonitorConnector != "eDP-1" {
			t.Fatalf("connector = %q", got.MonitorConnector)
		}
		if *got.RelativeRect != (geometry.Rect{X: 880, Y: 100, Width: 400, Height: 300}) {
			t.Fatalf("rect = %v", got.RelativeRect)
		}
		if rec.RelativeRect.X != 1500 {
			t.Fatal("original mutated")
		}
	})

	t.Run("remembered placement wins", func(t *testing.T) {
		r := rec.Clone()
		r.PerMonitor = map[string]Placement{
			"eDP-1": {RelativeRect: geometry.Rect{X: 640, Y: 32, Width: 640, Height: 992}, Tile: geometry.TileRight},
		}
		got := r.OnConnector(primary)
		if got.Tile != geometry.TileRight || got.RelativeRect.X != 640 {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("same connector unchanged", func(t *testing.T) {
		got := rec.OnConnector(external)
		if *got.RelativeRect != *rec.RelativeRect {
			t.Fatalf("rect changed: %v", got.RelativeRect)
		}
	})
}

func TestRememberRequiresRect(t *testing.T) {
	rec := SavedWindowConfig{ApplicationID: "app", MonitorConnector: "A"}
	rec.Remember()
	if rec.PerMonitor != nil {
		t.Fatal("record without rect should not remember a placement")
	}
	rec.RelativeRect = rect(1, 2, 3, 4)
	rec.Remember()
	if p := rec.PerMonitor["A"]; p.RelativeRect.X != 1 {
		t.Fatalf("remembered %+v", p)
	}
}

func TestNormalizeKeepsNewest(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	s := SavedWindows{
		"app": {
			{TitlePattern: Wildcard, LastSeen: older, Workspace: 1},
			{ApplicationID: "app", TitlePattern: Wildcard, LastSeen: newer, Workspace: 2},
			{ApplicationID: "other", TitlePattern: "x"},
		},
		"empty": {{ApplicationID: "nope"}},
	}
	s.Normalize()

	if len(s["app"]) != 1 || s["app"][0].Workspace != 2 || s["app"][0].ApplicationID != "app" {
		t.Fatalf("normalize app = %+v", s["app"])
	}
	if _, ok := s["empty"]; ok {
		t.Fatal("mismatched-only entry should be dropped")
	}
}

func TestOverrideRuleValidate(t *testing.T) {
	bad := 1.5
	ok := 0.8
	tests := []struct {
		name    string
		rule    OverrideRule
		wantErr bool
	}{
		{"restore", OverrideRule{Action: ActionRestore}, false},
		{"threshold ok", OverrideRule{Action: ActionIgnore, Threshold: &ok}, false},
		{"bad action", OverrideRule{Action: "MAYBE"}, true},
		{"bad threshold", OverrideRule{Action: ActionRestore, Threshold: &bad}, true},
		{"bad property", OverrideRule{Action: ActionRestore, MatchProperties: []string{"colour"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	if a, err := ParseAction(" restore "); err != nil || a != ActionRestore {
		t.Fatalf("ParseAction = %q, %v", a, err)
	}
	if _, err := ParseAction("skip"); err == nil {
		t.Fatal("expected error")
	}
}
