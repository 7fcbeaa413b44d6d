package geometry

import "sort"

// Monitor is one connected output. Connector is the stable hardware name
// (e.g. "HDMI-1"); Index is the logical index the shell currently assigns,
// which is reshuffled on hot-plug and must not be persisted.
type Monitor struct {
	Connector string `json:"connector"`
	Index     int    `json:"index"`
	Bounds    Rect   `json:"bounds"`
	WorkArea  Rect   `json:"work_area"`
	Primary   bool   `json:"primary"`
}

// Origin returns the monitor's top-left corner in screen coordinates.
func (m Monitor) Origin() (int, int) {
	return m.Bounds.X, m.Bounds.Y
}

// Usable returns the work area, or the full bounds when the work area is
// unknown.
func (m Monitor) Usable() Rect {
	if m.WorkArea.Empty() {
		return m.Bounds
	}
	return m.WorkArea
}

// ToRelative converts an absolute rect to one relative to m's origin.
func ToRelative(abs Rect, m Monitor) Rect {
	return abs.Offset(-m.Bounds.X, -m.Bounds.Y)
}

// ToAbsolute converts a monitor-relative rect into screen coordinates on m.
func ToAbsolute(rel Rect, m Monitor) Rect {
	return rel.Offset(m.Bounds.X, m.Bounds.Y)
}

// Layout is the set of monitors currently connected.
type Layout []Monitor

// ByConnector returns the monitor with the given connector name.
func (l Layout) ByConnector(connector string) (Monitor, bool) {
	for _, m := range l {
		if m.Connector == connector {
			return m, true
		}
	}
	return Monitor{}, false
}

// ByIndex returns the monitor with the given logical index.
func (l Layout) ByIndex(index int) (Monitor, bool) {
	for _, m := range l {
		if m.Index == index {
			return m, true
		}
	}
	return Monitor{}, false
}

// Primary returns the primary monitor, falling back to the lowest index.
func (l Layout) Primary() (Monitor, bool) {
	if len(l) == 0 {
		return Monitor{}, false
	}
	for _, m := range l {
		if m.Primary {
			return m, true
		}
	}
	lowest := l[0]
	for _, m := range l[1:] {
		if m.Index < lowest.Index {
			lowest = m
		}
	}
	return lowest, true
}

// Connectors returns the connector names in logical index order.
func (l Layout) Connectors() []string {
	sorted := make(Layout, len(l))
	copy(sorted, l)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	out := make([]string, 0, len(sorted))
	for _, m := range sorted {
		out = append(out, m.Connector)
	}
	return out
}

// Has reports whether a monitor with the connector is present.
func (l Layout) Has(connector string) bool {
	_, ok := l.ByConnector(connector)
	return ok
}

// MonitorFor returns the monitor containing the center of r. When the
// center is off every monitor the one with the largest overlap wins.
func (l Layout) MonitorFor(r Rect) (Monitor, bool) {
	cx, cy := r.Center()
	for _, m := range l {
		if m.Bounds.Contains(cx, cy) {
			return m, true
		}
	}
	best, bestArea := Monitor{}, 0
	for _, m := range l {
		if a := overlap(m.Bounds, r); a > bestArea {
			best, bestArea = m, a
		}
	}
	return best, bestArea > 0
}

// SameConnectors reports whether both layouts contain the same connectors,
// ignoring geometry and order.
func (l Layout) SameConnectors(o Layout) bool {
	if len(l) != len(o) {
		return false
	}
	for _, m := range l {
		if !o.Has(m.Connector) {
			return false
		}
	}
	return true
}

func overlap(a, b Rect) int {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.Width, b.X+b.Width)
	y2 := min(a.Y+a.Height, b.Y+b.Height)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	return (x2 - x1) * (y2 - y1)
}
