// Package model defines the persisted records: saved window configurations,
// per-application override rules and the identities that key them.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/1broseidon/winkeep/internal/geometry"
)

// Wildcard is the title fingerprint used for windows whose title never
// became specific.
const Wildcard = "*"

// Identity keys saved records and preference stacks. It is never the live
// window handle.
type Identity struct {
	AppID       string `json:"app_id"`
	Fingerprint string `json:"fingerprint"`
}

// WildcardIdentity returns the generic identity for an application.
func WildcardIdentity(appID string) Identity {
	return Identity{AppID: appID, Fingerprint: Wildcard}
}

// IsWildcard reports whether the identity uses the wildcard fingerprint.
func (id Identity) IsWildcard() bool {
	return id.Fingerprint == Wildcard
}

func (id Identity) String() string {
	return fmt.Sprintf("%s[%s]", id.AppID, id.Fingerprint)
}

// Placement is the geometry a window had on one particular connector.
type Placement struct {
	RelativeRect geometry.Rect           `json:"relative_rect"`
	Maximized    geometry.MaximizedState `json:"maximized"`
	Fullscreen   bool                    `json:"fullscreen"`
	Tile         geometry.TilePosition   `json:"tile,omitempty"`
}

// SavedWindowConfig is the persisted state of one window identity.
//
// RelativeRect is relative to the origin of MonitorConnector. It is a
// pointer so a record that lost its rect can be told apart from one at the
// monitor origin.
type SavedWindowConfig struct {
	ApplicationID      string                  `json:"app_id"`
	TitlePattern       string                  `json:"title"`
	RelativeRect       *geometry.Rect          `json:"relative_rect,omitempty"`
	MonitorConnector   string                  `json:"monitor_connector"`
	Workspace          int                     `json:"workspace"`
	Maximized          geometry.MaximizedState `json:"maximized"`
	Fullscreen         bool                    `json:"fullscreen"`
	Tile               geometry.TilePosition   `json:"tile,omitempty"`
	LastSeen           time.Time               `json:"last_seen"`
	PerMonitor         map[string]Placement    `json:"per_monitor,omitempty"`
	MonitorPreferences []string                `json:"monitor_preferences,omitempty"`
}

// Identity returns the key the record is stored under.
func (c SavedWindowConfig) Identity() Identity {
	return Identity{AppID: c.ApplicationID, Fingerprint: c.TitlePattern}
}

// Clone returns a deep copy. Targets held by the engine must not alias the
// saved map.
func (c SavedWindowConfig) Clone() SavedWindowConfig {
	out := c
	if c.RelativeRect != nil {
		r := *c.RelativeRect
		out.RelativeRect = &r
	}
	if c.PerMonitor != nil {
		out.PerMonitor = make(map[string]Placement, len(c.PerMonitor))
		for k, v := range c.PerMonitor {
			out.PerMonitor[k] = v
		}
	}
	if c.MonitorPreferences != nil {
		out.MonitorPreferences = append([]string(nil), c.MonitorPreferences...)
	}
	return out
}

// Placement returns the record's current placement. ok is false when the
// record has no relative rect.
func (c SavedWindowConfig) Placement() (Placement, bool) {
	if c.RelativeRect == nil {
		return Placement{}, false
	}
	return Placement{
		RelativeRect: *c.RelativeRect,
		Maximized:    c.Maximized,
		Fullscreen:   c.Fullscreen,
		Tile:         c.Tile,
	}, true
}

// Remember stores the record's current placement under its connector.
func (c *SavedWindowConfig) Remember() {
	p, ok := c.Placement()
	if !ok || c.MonitorConnector == "" {
		return
	}
	if c.PerMonitor == nil {
		c.PerMonitor = make(map[string]Placement)
	}
	c.PerMonitor[c.MonitorConnector] = p
}

// OnConnector returns a copy of the record retargeted to another connector.
// A placement previously remembered for that connector wins; otherwise the
// relative rect is reused, clamped to the monitor's size.
func (c SavedWindowConfig) OnConnector(m geometry.Monitor) SavedWindowConfig {
	out := c.Clone()
	if out.MonitorConnector == m.Connector {
		return out
	}
	out.MonitorConnector = m.Connector
	if p, ok := c.PerMonitor[m.Connector]; ok {
		r := p.RelativeRect
		out.RelativeRect = &r
		out.Maximized = p.Maximized
		out.Fullscreen = p.Fullscreen
		out.Tile = p.Tile
		return out
	}
	if out.RelativeRect != nil {
		r := out.RelativeRect.ClampSize(m.Bounds.Width, m.Bounds.Height)
		out.RelativeRect = &r
	}
	return out
}

// SavedWindows holds every saved record, grouped by application id.
type SavedWindows map[string][]SavedWindowConfig

// Get returns the record for id.
func (s SavedWindows) Get(id Identity) (SavedWindowConfig, bool) {
	for _, rec := range s[id.AppID] {
		if rec.TitlePattern == id.Fingerprint {
			return rec, true
		}
	}
	return SavedWindowConfig{}, false
}

// Put inserts or replaces the record for its identity.
func (s SavedWindows) Put(rec SavedWindowConfig) {
	list := s[rec.ApplicationID]
	for i := range list {
		if list[i].TitlePattern == rec.TitlePattern {
			list[i] = rec
			return
		}
	}
	s[rec.ApplicationID] = append(list, rec)
}

// Delete removes the record for id. It reports whether one existed.
func (s SavedWindows) Delete(id Identity) bool {
	list := s[id.AppID]
	for i := range list {
		if list[i].TitlePattern == id.Fingerprint {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(s, id.AppID)
			} else {
				s[id.AppID] = list
			}
			return true
		}
	}
	return false
}

// DeleteApp removes every record for an application and returns how many
// were removed.
func (s SavedWindows) DeleteApp(appID string) int {
	n := len(s[appID])
	delete(s, appID)
	return n
}

// Clone returns a deep copy.
func (s SavedWindows) Clone() SavedWindows {
	out := make(SavedWindows, len(s))
	for app, list := range s {
		cp := make([]SavedWindowConfig, len(list))
		for i, rec := range list {
			cp[i] = rec.Clone()
		}
		out[app] = cp
	}
	return out
}

// Records returns all records sorted by application then title.
func (s SavedWindows) Records() []SavedWindowConfig {
	var out []SavedWindowConfig
	for _, list := range s {
		out = append(out, list...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ApplicationID != out[j].ApplicationID {
			return out[i].ApplicationID < out[j].ApplicationID
		}
		return out[i].TitlePattern < out[j].TitlePattern
	})
	return out
}

// Normalize drops entries whose key disagrees with their application id and
// collapses duplicate identities, keeping the most recently seen.
func (s SavedWindows) Normalize() {
	for app, list := range s {
		byTitle := make(map[string]int, len(list))
		var kept []SavedWindowConfig
		for _, rec := range list {
			if rec.ApplicationID == "" {
				rec.ApplicationID = app
			}
			if rec.ApplicationID != app {
				continue
			}
			if i, ok := byTitle[rec.TitlePattern]; ok {
				if rec.LastSeen.After(kept[i].LastSeen) {
					kept[i] = rec
				}
				continue
			}
			byTitle[rec.TitlePattern] = len(kept)
			kept = append(kept, rec)
		}
		if len(kept) == 0 {
			delete(s, app)
			continue
		}
		s[app] = kept
	}
}

// Action is a sync decision.
type Action string

const (
	ActionRestore Action = "RESTORE"
	ActionIgnore  Action = "IGNORE"
)

// ParseAction accepts RESTORE and IGNORE, case-insensitively.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(ActionRestore):
		return ActionRestore, nil
	case string(ActionIgnore):
		return ActionIgnore, nil
	default:
		return "", fmt.Errorf("invalid action %q (want RESTORE or IGNORE)", s)
	}
}

// Match properties understood by the default scorer.
const (
	MatchTitle = "title"
	MatchSize  = "size"
)

// OverrideRule is a per-application policy.
type OverrideRule struct {
	Action          Action   `json:"action"`
	Threshold       *float64 `json:"threshold,omitempty"`
	MatchProperties []string `json:"match_properties,omitempty"`
}

// Validate checks the rule's fields.
func (r OverrideRule) Validate() error {
	if _, err := ParseAction(string(r.Action)); err != nil {
		return err
	}
	if r.Threshold != nil && (*r.Threshold < 0 || *r.Threshold > 1) {
		return fmt.Errorf("threshold %v out of range [0,1]", *r.Threshold)
	}
	for _, p := range r.MatchProperties {
		if p != MatchTitle && p != MatchSize {
			return fmt.Errorf("unknown match property %q", p)
		}
	}
	return nil
}

// Overrides maps application ids to their rule.
type Overrides map[string]OverrideRule
