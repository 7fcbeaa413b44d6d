package geometry

import "testing"

func testLayout() Layout {
	return Layout{
		{Connector: "eDP-1", Index: 0, Bounds: Rect{X: 0, Y: 0, Width: 1280, Height: 1024}, Primary: true},
		{Connector: "HDMI-1", Index: 1, Bounds: Rect{X: 1280, Y: 0, Width: 1920, Height: 1080}},
	}
}

func TestRelativeAbsoluteRoundTrip(t *testing.T) {
	layout := testLayout()
	hdmi, _ := layout.ByConnector("HDMI-1")

	abs := Rect{X: 1380, Y: 50, Width: 800, Height: 600}
	rel := ToRelative(abs, hdmi)
	if rel != (Rect{X: 100, Y: 50, Width: 800, Height: 600}) {
		t.Fatalf("ToRelative = %v", rel)
	}
	if got := ToAbsolute(rel, hdmi); got != abs {
		t.Fatalf("ToAbsolute = %v, want %v", got, abs)
	}

	// The same relative rect lands on the other monitor's origin.
	edp, _ := layout.ByConnector("eDP-1")
	if got := ToAbsolute(rel, edp); got != (Rect{X: 100, Y: 50, Width: 800, Height: 600}) {
		t.Fatalf("ToAbsolute on eDP-1 = %v", got)
	}
}

func TestLayoutMonitorFor(t *testing.T) {
	layout := testLayout()

	tests := []struct {
		name string
		rect Rect
		want string
		ok   bool
	}{
		{"center on primary", Rect{X: 10, Y: 10, Width: 100, Height: 100}, "eDP-1", true},
		{"center on secondary", Rect{X: 1300, Y: 10, Width: 100, Height: 100}, "HDMI-1", true},
		{"straddling, center right", Rect{X: 1200, Y: 10, Width: 400, Height: 100}, "HDMI-1", true},
		{"center below everything, overlap wins", Rect{X: 1300, Y: 1000, Width: 100, Height: 400}, "HDMI-1", true},
		{"fully off-screen", Rect{X: -500, Y: -500, Width: 100, Height: 100}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := layout.MonitorFor(tt.rect)
			if ok != tt.ok || m.Connector != tt.want {
				t.Fatalf("MonitorFor(%v) = %q,%v want %q,%v", tt.rect, m.Connector, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestLayoutPrimaryFallsBackToLowestIndex(t *testing.T) {
	layout := Layout{
		{Connector: "B", Index: 2},
		{Connector: "A", Index: 1},
	}
	m, ok := layout.Primary()
	if !ok || m.Connector != "A" {
		t.Fatalf("Primary() = %q,%v want A", m.Connector, ok)
	}
	if _, ok := (Layout{}).Primary(); ok {
		t.Fatal("empty layout should have no primary")
	}
}

func TestLayoutConnectorsSortedByIndex(t *testing.T) {
	layout := Layout{{Connector: "C", Index: 2}, {Connector: "A", Index: 0}, {Connector: "B", Index: 1}}
	got := layout.Connectors()
	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Connectors() = %v, want %v", got, want)
		}
	}
	if !layout.SameConnectors(Layout{{Connector: "B"}, {Connector: "C"}, {Connector: "A"}}) {
		t.Fatal("SameConnectors should ignore order")
	}
	if layout.SameConnectors(Layout{{Connector: "A"}, {Connector: "B"}}) {
		t.Fatal("SameConnectors should compare sizes")
	}
}

func TestRectNear(t *testing.T) {
	a := Rect{X: 901, Y: 32, Width: 640, Height: 992}
	if !a.Near(Rect{X: 902, Y: 31, Width: 640, Height: 993}, 2) {
		t.Fatal("expected rects within tolerance")
	}
	if a.Near(Rect{X: 450, Y: 32, Width: 640, Height: 992}, 2) {
		t.Fatal("drifted rect should not be near")
	}
}

func TestRectClampSize(t *testing.T) {
	tests := []struct {
		name          string
		rect          Rect
		width, height int
		want          Rect
	}{
		{"fits", Rect{X: 10, Y: 10, Width: 100, Height: 100}, 1280, 1024, Rect{X: 10, Y: 10, Width: 100, Height: 100}},
		{"pulled back on-screen", Rect{X: 3000, Y: 100, Width: 800, Height: 600}, 1280, 1024, Rect{X: 480, Y: 100, Width: 800, Height: 600}},
		{"shrunk", Rect{X: 0, Y: 0, Width: 3840, Height: 2160}, 1280, 1024, Rect{X: 0, Y: 0, Width: 1280, Height: 1024}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rect.ClampSize(tt.width, tt.height); got != tt.want {
				t.Fatalf("ClampSize = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTileRect(t *testing.T) {
	area := Rect{X: 0, Y: 32, Width: 1281, Height: 992}
	if got := TileRect(area, TileLeft); got != (Rect{X: 0, Y: 32, Width: 640, Height: 992}) {
		t.Fatalf("left = %v", got)
	}
	if got := TileRect(area, TileRight); got != (Rect{X: 640, Y: 32, Width: 641, Height: 992}) {
		t.Fatalf("right = %v", got)
	}
	if _, err := ParseTilePosition("top"); err == nil {
		t.Fatal("expected error for unknown tile position")
	}
}
