// Package geometry holds the rectangle and monitor types shared by the
// placement engine, and the conversions between monitor-relative and
// absolute screen coordinates.
package geometry

import "fmt"

// Rect describes a rectangular region. Depending on context it is either in
// absolute screen coordinates or relative to a monitor origin.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Offset returns r translated by (dx, dy).
func (r Rect) Offset(dx, dy int) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Center returns the center point of r.
func (r Rect) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Contains reports whether the point (x, y) lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Near reports whether every edge of r is within tol of o.
func (r Rect) Near(o Rect, tol int) bool {
	return abs(r.X-o.X) <= tol &&
		abs(r.Y-o.Y) <= tol &&
		abs(r.Width-o.Width) <= tol &&
		abs(r.Height-o.Height) <= tol
}

// ClampSize shrinks a relative rect so it fits inside a monitor of the given
// size, then pulls its origin back on-screen.
func (r Rect) ClampSize(width, height int) Rect {
	if width > 0 && r.Width > width {
		r.Width = width
	}
	if height > 0 && r.Height > height {
		r.Height = height
	}
	if r.X+r.Width > width {
		r.X = width - r.Width
	}
	if r.Y+r.Height > height {
		r.Y = height - r.Height
	}
	if r.X < 0 {
		r.X = 0
	}
	if r.Y < 0 {
		r.Y = 0
	}
	return r
}

// MaximizedState mirrors the shell's maximize flags.
type MaximizedState int

const (
	MaximizedNone       MaximizedState = 0
	MaximizedHorizontal MaximizedState = 1
	MaximizedVertical   MaximizedState = 2
	MaximizedBoth       MaximizedState = 3
)

func (m MaximizedState) String() string {
	switch m {
	case MaximizedNone:
		return "none"
	case MaximizedHorizontal:
		return "horizontal"
	case MaximizedVertical:
		return "vertical"
	case MaximizedBoth:
		return "both"
	default:
		return fmt.Sprintf("MaximizedState(%d)", int(m))
	}
}

// Full reports whether both axes are maximized.
func (m MaximizedState) Full() bool {
	return m == MaximizedBoth
}

// TilePosition is a half-screen tiling slot.
type TilePosition string

const (
	TileNone  TilePosition = ""
	TileLeft  TilePosition = "left"
	TileRight TilePosition = "right"
)

// ParseTilePosition accepts "", "none", "left" and "right".
func ParseTilePosition(s string) (TilePosition, error) {
	switch s {
	case "", "none":
		return TileNone, nil
	case "left":
		return TileLeft, nil
	case "right":
		return TileRight, nil
	default:
		return TileNone, fmt.Errorf("invalid tile position %q", s)
	}
}

// TileRect returns the half of area a window tiled at pos occupies.
func TileRect(area Rect, pos TilePosition) Rect {
	half := area.Width / 2
	switch pos {
	case TileLeft:
		return Rect{X: area.X, Y: area.Y, Width: half, Height: area.Height}
	case TileRight:
		return Rect{X: area.X + half, Y: area.Y, Width: area.Width - half, Height: area.Height}
	default:
		return area
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
