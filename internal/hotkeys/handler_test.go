package hotkeys

import (
	"errors"
	"testing"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/platform/platformtest"
)

func TestStep(t *testing.T) {
	layout := geometry.Layout{
		{Index: 2, Connector: "DP-2"},
		{Index: 0, Connector: "eDP-1"},
		{Index: 1, Connector: "HDMI-1"},
	}

	tests := []struct {
		name    string
		layout  geometry.Layout
		current string
		step    int
		want    string
		wantOK  bool
	}{
		{name: "next", layout: layout, current: "eDP-1", step: 1, want: "HDMI-1", wantOK: true},
		{name: "next wraps", layout: layout, current: "DP-2", step: 1, want: "eDP-1", wantOK: true},
		{name: "previous wraps", layout: layout, current: "eDP-1", step: -1, want: "DP-2", wantOK: true},
		{name: "previous", layout: layout, current: "DP-2", step: -1, want: "HDMI-1", wantOK: true},
		{name: "unknown monitor goes to first", layout: layout, current: "VGA-1", step: -1, want: "eDP-1", wantOK: true},
		{name: "single monitor", layout: layout[1:2], current: "eDP-1", step: 1, wantOK: false},
		{name: "no monitors", current: "eDP-1", step: 1, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Step(tt.layout, tt.current, tt.step)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("Step() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNewHandlerRequiresX11(t *testing.T) {
	if _, err := NewHandler(platformtest.New(), nil); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("NewHandler() error = %v, want ErrUnsupported", err)
	}
}
