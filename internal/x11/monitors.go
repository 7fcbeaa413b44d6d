package x11

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"

	"github.com/1broseidon/winkeep/internal/geometry"
)

// GetMonitors retrieves all connected outputs using XRandR. Monitors are
// indexed left to right; the connector is the RandR output name. WorkArea
// excludes space reserved by docks and panels.
func (c *Connection) GetMonitors() (geometry.Layout, error) {
	conn := c.XUtil.Conn()
	resources, err := randr.GetScreenResources(conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primary randr.Output
	if reply, err := randr.GetOutputPrimary(conn, c.Root).Reply(); err == nil {
		primary = reply.Output
	}

	var layout geometry.Layout
	seen := make(map[randr.Crtc]bool)
	for _, output := range resources.Outputs {
		info, err := randr.GetOutputInfo(conn, output, resources.ConfigTimestamp).Reply()
		if err != nil || info.Connection != randr.ConnectionConnected || info.Crtc == 0 {
			continue
		}
		// Mirrored outputs share a CRTC; the first one names it.
		if seen[info.Crtc] {
			continue
		}
		crtc, err := randr.GetCrtcInfo(conn, info.Crtc, resources.ConfigTimestamp).Reply()
		if err != nil || crtc.Width == 0 || crtc.Height == 0 {
			continue
		}
		seen[info.Crtc] = true

		layout = append(layout, geometry.Monitor{
			Connector: string(info.Name),
			Bounds: geometry.Rect{
				X:      int(crtc.X),
				Y:      int(crtc.Y),
				Width:  int(crtc.Width),
				Height: int(crtc.Height),
			},
			Primary: output == primary,
		})
	}

	sort.SliceStable(layout, func(i, j int) bool {
		if layout[i].Bounds.X != layout[j].Bounds.X {
			return layout[i].Bounds.X < layout[j].Bounds.X
		}
		return layout[i].Bounds.Y < layout[j].Bounds.Y
	})
	for i := range layout {
		layout[i].Index = i
		layout[i].WorkArea = layout[i].Bounds
	}

	if !c.applyDockStruts(layout) {
		c.applyWorkarea(layout)
	}
	return layout, nil
}

// SelectScreenChanges asks RandR to report output and CRTC changes on the
// root window.
func (c *Connection) SelectScreenChanges() error {
	mask := uint16(randr.NotifyMaskScreenChange | randr.NotifyMaskCrtcChange | randr.NotifyMaskOutputChange)
	return randr.SelectInputChecked(c.XUtil.Conn(), c.Root, mask).Check()
}

type dockStruts struct {
	left   int
	right  int
	top    int
	bottom int
}

// applyDockStruts shrinks each monitor's work area by the struts of dock
// windows overlapping it. It reports whether any dock reserved space.
func (c *Connection) applyDockStruts(layout geometry.Layout) bool {
	rootGeom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return false
	}
	rootWidth := int(rootGeom.Width)
	rootHeight := int(rootGeom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return false
	}

	var partials []*ewmh.WmStrutPartial
	for _, windowID := range clients {
		if !c.isDock(windowID) {
			continue
		}
		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, windowID); err == nil {
			partials = append(partials, sp)
			continue
		}
		// Some docks only set _NET_WM_STRUT (no partial ranges).
		if s, err := ewmh.WmStrutGet(c.XUtil, windowID); err == nil {
			partials = append(partials, &ewmh.WmStrutPartial{
				Left:         s.Left,
				Right:        s.Right,
				Top:          s.Top,
				Bottom:       s.Bottom,
				LeftStartY:   0,
				LeftEndY:     uint(rootHeight - 1),
				RightStartY:  0,
				RightEndY:    uint(rootHeight - 1),
				TopStartX:    0,
				TopEndX:      uint(rootWidth - 1),
				BottomStartX: 0,
				BottomEndX:   uint(rootWidth - 1),
			})
		}
	}

	applied := false
	for i := range layout {
		var struts dockStruts
		for _, sp := range partials {
			updateStrutsForMonitor(layout[i].Bounds, rootWidth, rootHeight, sp, &struts)
		}
		if struts == (dockStruts{}) {
			continue
		}
		applied = true
		wa := layout[i].Bounds
		wa.X += struts.left
		wa.Y += struts.top
		wa.Width = max(wa.Width-(struts.left+struts.right), 1)
		wa.Height = max(wa.Height-(struts.top+struts.bottom), 1)
		layout[i].WorkArea = wa
	}
	return applied
}

// applyWorkarea intersects each monitor with _NET_WORKAREA for the current
// desktop.
func (c *Connection) applyWorkarea(layout geometry.Layout) {
	workArea, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(workArea) == 0 {
		return
	}
	desktopIndex := 0
	if currentDesktop, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil {
		if int(currentDesktop) < len(workArea) {
			desktopIndex = int(currentDesktop)
		}
	}
	wa := workArea[desktopIndex]
	area := geometry.Rect{X: int(wa.X), Y: int(wa.Y), Width: int(wa.Width), Height: int(wa.Height)}

	for i := range layout {
		if isect := intersection(layout[i].Bounds, area); !isect.Empty() {
			layout[i].WorkArea = isect
		}
	}
}

func (c *Connection) isDock(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		return false
	}
	for _, t := range types {
		if t == "_NET_WM_WINDOW_TYPE_DOCK" {
			return true
		}
	}
	return false
}

func updateStrutsForMonitor(mon geometry.Rect, rootWidth, rootHeight int, sp *ewmh.WmStrutPartial, acc *dockStruts) {
	// Top strut: y=[0,Top), x=[TopStartX,TopEndX]
	if sp.Top > 0 {
		r := spanRect(int(sp.TopStartX), 0, int(sp.TopEndX)+1, int(sp.Top))
		acc.top = max(acc.top, intersection(mon, r).Height)
	}

	// Bottom strut: y=[rootHeight-Bottom,rootHeight), x=[BottomStartX,BottomEndX]
	if sp.Bottom > 0 {
		r := spanRect(int(sp.BottomStartX), rootHeight-int(sp.Bottom), int(sp.BottomEndX)+1, rootHeight)
		acc.bottom = max(acc.bottom, intersection(mon, r).Height)
	}

	// Left strut: x=[0,Left), y=[LeftStartY,LeftEndY]
	if sp.Left > 0 {
		r := spanRect(0, int(sp.LeftStartY), int(sp.Left), int(sp.LeftEndY)+1)
		acc.left = max(acc.left, intersection(mon, r).Width)
	}

	// Right strut: x=[rootWidth-Right,rootWidth), y=[RightStartY,RightEndY]
	if sp.Right > 0 {
		r := spanRect(rootWidth-int(sp.Right), int(sp.RightStartY), rootWidth, int(sp.RightEndY)+1)
		acc.right = max(acc.right, intersection(mon, r).Width)
	}
}

func spanRect(x1, y1, x2, y2 int) geometry.Rect {
	return geometry.Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func intersection(a, b geometry.Rect) geometry.Rect {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.Width, b.X+b.Width)
	y2 := min(a.Y+a.Height, b.Y+b.Height)
	if x2 <= x1 || y2 <= y1 {
		return geometry.Rect{}
	}
	return geometry.Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
