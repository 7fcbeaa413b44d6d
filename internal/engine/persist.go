package engine

import (
	"context"
	"time"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/model"
)

const storeTimeout = 5 * time.Second

// persistLive writes the window's observed placement, relative to the
// monitor it is on.
func (e *Engine) persistLive(tw *TrackedWindow) {
	rec, ok := e.liveRecord(tw)
	if !ok {
		return
	}
	tw.Connector = rec.MonitorConnector
	if tw.Identity.IsWildcard() && tw.holdsWildcard() {
		target := rec.Clone()
		tw.Target = &target
		return
	}
	e.prefs.Seed(tw.Identity, rec.MonitorConnector)
	e.put(tw, rec)
}

// persistTarget writes the config the window was being restored to under
// the window's own identity.
func (e *Engine) persistTarget(tw *TrackedWindow) {
	if tw.Identity.AppID == "" || tw.Target == nil {
		return
	}
	rec := tw.Target.Clone()
	rec.ApplicationID = tw.Identity.AppID
	rec.TitlePattern = tw.Identity.Fingerprint
	e.put(tw, rec)
}

func (e *Engine) liveRecord(tw *TrackedWindow) (model.SavedWindowConfig, bool) {
	if tw.Identity.AppID == "" || !tw.hasLive {
		return model.SavedWindowConfig{}, false
	}
	d := tw.live
	mon, ok := e.layout.ByConnector(d.Connector)
	if !ok {
		if mon, ok = e.layout.MonitorFor(d.Frame); !ok {
			return model.SavedWindowConfig{}, false
		}
	}

	rel := geometry.ToRelative(d.Frame, mon)
	rec := model.SavedWindowConfig{
		ApplicationID:    tw.Identity.AppID,
		TitlePattern:     tw.Identity.Fingerprint,
		RelativeRect:     &rel,
		MonitorConnector: mon.Connector,
		Workspace:        d.Workspace,
		Maximized:        d.Maximized,
		Fullscreen:       d.Fullscreen,
		Tile:             d.Tile,
	}

	// A maximized or fullscreen frame only mirrors the monitor. Keep the
	// normal geometry already known for this monitor.
	if d.Fullscreen || d.Maximized.Full() {
		if prev, ok := e.saved.Get(tw.Identity); ok && prev.RelativeRect != nil {
			if p, ok := prev.PerMonitor[mon.Connector]; ok {
				r := p.RelativeRect
				rec.RelativeRect = &r
			} else if prev.MonitorConnector == mon.Connector {
				r := *prev.RelativeRect
				rec.RelativeRect = &r
			}
		}
	}
	return rec, true
}

// put stores rec, keeping placements remembered for other monitors, and
// schedules a write.
func (e *Engine) put(tw *TrackedWindow, rec model.SavedWindowConfig) {
	rec = e.merged(rec)
	e.saved.Put(rec)

	if tw.agedOut && !tw.holdsWildcard() && !rec.Identity().IsWildcard() {
		wild := rec.Clone()
		wild.TitlePattern = model.Wildcard
		e.saved.Put(e.merged(wild))
	}

	target := rec.Clone()
	tw.Target = &target
	e.markDirty()
}

func (e *Engine) merged(rec model.SavedWindowConfig) model.SavedWindowConfig {
	if prev, ok := e.saved.Get(rec.Identity()); ok {
		for conn, p := range prev.PerMonitor {
			if _, ok := rec.PerMonitor[conn]; ok {
				continue
			}
			if rec.PerMonitor == nil {
				rec.PerMonitor = make(map[string]model.Placement)
			}
			rec.PerMonitor[conn] = p
		}
	}
	rec.LastSeen = e.now()
	rec.Remember()
	rec.MonitorPreferences = e.prefs.Preferences(rec.Identity())
	return rec
}

// markDirty schedules a store write, at most one per save interval.
func (e *Engine) markDirty() {
	e.dirty = true
	if e.limiter.Allow() {
		e.flush()
		return
	}
	if e.flushTimer == nil {
		e.flushTimer = e.sched.AfterFunc(e.saveInterval, func() {
			e.Post(flushDue{})
		})
	}
}

// flush writes the saved records, with the current preference lists
// embedded, when anything changed since the last write.
func (e *Engine) flush() {
	if !e.dirty {
		return
	}
	for _, list := range e.saved {
		for i := range list {
			list[i].MonitorPreferences = e.prefs.Preferences(list[i].Identity())
		}
	}

	ctx, cancel := context.WithTimeout(e.ctx, storeTimeout)
	defer cancel()
	if err := e.store.PutSavedWindows(ctx, e.saved.Clone()); err != nil {
		e.log.Warn("failed to save window state", "error", err)
		if e.flushTimer == nil {
			e.flushTimer = e.sched.AfterFunc(e.saveInterval, func() {
				e.Post(flushDue{})
			})
		}
		return
	}
	e.dirty = false
	e.log.Debug("saved window state", "records", len(e.saved.Records()))
}
