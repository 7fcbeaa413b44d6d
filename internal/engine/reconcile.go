package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/matching"
	"github.com/1broseidon/winkeep/internal/model"
	"github.com/1broseidon/winkeep/internal/planner"
	"github.com/1broseidon/winkeep/internal/platform"
	"github.com/1broseidon/winkeep/internal/policy"
	"github.com/1broseidon/winkeep/internal/title"
)

func (e *Engine) onAdded(id platform.WindowID) {
	if _, ok := e.windows[id]; ok || e.ignored[id] {
		return
	}
	d, err := e.wm.Details(id)
	if err != nil {
		e.log.Debug("window vanished before tracking", "window", uint32(id), "error", err)
		return
	}
	if d.AppID == "" {
		e.ignored[id] = true
		e.log.Debug("ignoring window without app id", "window", uint32(id), "title", d.Title)
		return
	}

	tw := &TrackedWindow{
		Handle:  id,
		AppID:   d.AppID,
		Title:   d.Title,
		Phase:   PhaseNew,
		Seen:    e.now(),
		live:    d,
		hasLive: true,
	}
	e.windows[id] = tw
	e.log.Debug("window added", "window", uint32(id), "app", d.AppID, "title", d.Title)

	if e.classifier.Classify(d.AppID, d.Title) == title.Specific {
		e.identify(tw, title.Specific, false)
		return
	}
	e.schedule(tw, e.genericTimeout, timerGeneric)
}

// identify fixes the window's identity and runs the single MATCHING pass.
// exactOnly limits the pass to a record with the window's exact title.
func (e *Engine) identify(tw *TrackedWindow, spec title.Specificity, exactOnly bool) {
	tw.cancelTimer()
	live := matching.Live{AppID: tw.AppID, Title: tw.Title, Specificity: spec}
	tw.Identity = live.Identity()
	tw.Phase = PhaseMatching

	m, ok := matching.Find(live, e.saved)
	if ok && exactOnly && m.Kind != matching.Exact {
		ok = false
	}
	if !ok {
		e.log.Debug("tracking window without restore",
			"window", uint32(tw.Handle), "identity", tw.Identity.String(), "reason", ErrMatchNotFound)
		e.track(tw)
		return
	}

	action, confidence := e.resolver.Decide(policy.Candidate{
		Saved:     m.Config,
		Kind:      m.Kind,
		LiveTitle: tw.Title,
		LiveFrame: tw.live.Frame,
	})
	if action != model.ActionRestore {
		e.log.Info("sync policy skips restore",
			"window", uint32(tw.Handle), "identity", tw.Identity.String(),
			"match", m.Kind.String(), "confidence", confidence)
		e.track(tw)
		return
	}

	// A wildcard restore still leaves room for the window's own record
	// once its title turns specific.
	tw.upgradeable = tw.upgradeable && m.Kind == matching.Wildcard
	e.prefs.Adopt(tw.Identity, m.Config.Identity())
	e.prefs.Seed(tw.Identity, m.Config.MonitorConnector)
	e.log.Info("restoring window",
		"window", uint32(tw.Handle), "identity", tw.Identity.String(),
		"match", m.Kind.String(), "confidence", confidence)
	e.beginRestore(tw, m.Config, "")
}

// track moves a window to TRACKING and records its live state.
func (e *Engine) track(tw *TrackedWindow) {
	tw.Phase = PhaseTracking
	e.refresh(tw)
	e.persistLive(tw)
}

// restore starts a RESTORING pass from base, placed on connector or, when
// connector is empty, on the connector the preference stack picks. A window
// placed this way no longer takes the one-off upgrade match.
func (e *Engine) restore(tw *TrackedWindow, base model.SavedWindowConfig, connector string) {
	tw.upgradeable = false
	e.beginRestore(tw, base, connector)
}

func (e *Engine) beginRestore(tw *TrackedWindow, base model.SavedWindowConfig, connector string) {
	layout := e.monitors()
	if connector == "" {
		connector = e.resolveConnector(tw, base, layout)
	}
	mon, ok := layout.ByConnector(connector)
	if !ok {
		e.log.Warn("no monitor to restore window on",
			"window", uint32(tw.Handle), "connector", connector, "monitors", layout.Connectors())
		e.track(tw)
		return
	}

	target := base.OnConnector(mon)
	tw.Target = &target
	tw.Phase = PhaseRestoring
	tw.RestoreID = uuid.NewString()
	tw.DriftAttempts = 0
	tw.applyFailures = 0
	e.applyRestore(tw)
}

// applyRestore issues the full plan for tw.Target. Failed window manager
// calls leave the window in RESTORING for a bounded number of retries.
func (e *Engine) applyRestore(tw *TrackedWindow) {
	target := *tw.Target
	mon, ok := e.layout.ByConnector(target.MonitorConnector)
	if !ok {
		if len(e.layout) == 0 {
			e.track(tw)
			return
		}
		e.beginRestore(tw, target, "")
		return
	}

	e.refresh(tw)
	ops, err := planner.Plan(target, mon, tw.current())
	if err != nil {
		e.log.Error("cannot restore window", "window", uint32(tw.Handle),
			"identity", tw.Identity.String(), "error", err)
		tw.Target = nil
		e.track(tw)
		return
	}

	if err := e.apply(tw, ops); err != nil {
		tw.applyFailures++
		if tw.applyFailures >= e.maxDrift {
			e.log.Warn("giving up on restore", "window", uint32(tw.Handle),
				"restore_id", tw.RestoreID, "error", err)
			e.track(tw)
			return
		}
		e.log.Warn("restore step failed, will retry", "window", uint32(tw.Handle),
			"restore_id", tw.RestoreID, "error", err)
		e.schedule(tw, e.settleDelay, timerRetry)
		return
	}

	tw.Phase = PhaseSettling
	e.log.Debug("restore applied", "window", uint32(tw.Handle), "restore_id", tw.RestoreID,
		"connector", target.MonitorConnector, "ops", len(ops))
	e.schedule(tw, e.settleDelay, timerSettle)
}

// checkSettle compares the live window with the target recomputed against
// the target connector's current geometry.
func (e *Engine) checkSettle(tw *TrackedWindow) {
	if !e.refresh(tw) {
		return
	}
	target := *tw.Target
	mon, ok := e.monitors().ByConnector(target.MonitorConnector)
	if !ok {
		e.log.Info("target monitor disconnected while settling",
			"window", uint32(tw.Handle), "connector", target.MonitorConnector)
		e.beginRestore(tw, target, "")
		return
	}

	converged, err := planner.Converged(target, mon, tw.current(), e.tolerance)
	if err != nil {
		e.log.Error("cannot check window placement", "window", uint32(tw.Handle), "error", err)
		tw.Target = nil
		e.settle(tw, false)
		return
	}
	if converged {
		e.settle(tw, true)
		return
	}

	if tw.DriftAttempts < e.maxDrift {
		tw.DriftAttempts++
		ops, _ := planner.PlanPlacement(target, mon, tw.current())
		want, _ := planner.ExpectedFrame(target, mon)
		e.log.Debug("correcting drift", "window", uint32(tw.Handle), "restore_id", tw.RestoreID,
			"attempt", tw.DriftAttempts, "want", want.String(), "got", tw.live.Frame.String())
		if err := e.apply(tw, ops); err != nil {
			e.log.Warn("drift correction step failed", "window", uint32(tw.Handle), "error", err)
		}
		e.schedule(tw, e.settleDelay, timerSettle)
		return
	}

	want, _ := planner.ExpectedFrame(target, mon)
	e.log.Warn("window did not reach its target", "window", uint32(tw.Handle),
		"identity", tw.Identity.String(), "restore_id", tw.RestoreID,
		"want", want.String(), "got", tw.live.Frame.String(), "error", ErrDriftCorrectionExhausted)
	e.settle(tw, false)
}

// settle ends a restore pass. onTarget writes the target as the saved
// record; otherwise the window's actual geometry is written.
func (e *Engine) settle(tw *TrackedWindow, onTarget bool) {
	tw.Phase = PhaseSettled
	if onTarget {
		tw.Connector = tw.Target.MonitorConnector
		e.persistTarget(tw)
	} else {
		e.persistLive(tw)
	}
	e.log.Info("window settled", "window", uint32(tw.Handle), "identity", tw.Identity.String(),
		"connector", tw.Connector, "restore_id", tw.RestoreID, "drift_attempts", tw.DriftAttempts)

	if tw.upgradeable && e.classifier.Classify(tw.AppID, tw.Title) == title.Specific {
		e.upgrade(tw)
		return
	}
	e.followTitle(tw)
	if tw.reevaluate {
		tw.reevaluate = false
		e.reevaluate(tw, e.layout)
	}
}

func (e *Engine) onTimer(ev timerFired) {
	tw, ok := e.windows[ev.window]
	if !ok || ev.gen != tw.timerGen || ev.kind != tw.timerKind {
		return
	}
	tw.timer = nil
	tw.timerKind = 0

	switch ev.kind {
	case timerGeneric:
		if tw.Phase == PhaseNew {
			e.log.Debug("title stayed generic, using wildcard identity",
				"window", uint32(tw.Handle), "app", tw.AppID, "title", tw.Title)
			tw.agedOut = true
			tw.upgradeable = true
			e.identify(tw, title.Generic, false)
		}
	case timerSettle:
		if tw.Phase == PhaseSettling {
			e.checkSettle(tw)
		}
	case timerRetry:
		if tw.Phase == PhaseRestoring {
			e.applyRestore(tw)
		}
	}
}

func (e *Engine) onTitleChanged(id platform.WindowID, newTitle string) {
	tw, ok := e.windows[id]
	if !ok {
		return
	}
	if newTitle == "" && e.refresh(tw) {
		newTitle = tw.live.Title
	}
	if newTitle == tw.Title {
		return
	}
	tw.Title = newTitle
	tw.live.Title = newTitle
	spec := e.classifier.Classify(tw.AppID, newTitle)

	switch tw.Phase {
	case PhaseNew:
		if spec == title.Specific {
			e.identify(tw, spec, false)
		}
	case PhaseTracking, PhaseSettled:
		if spec != title.Specific {
			return
		}
		if tw.upgradeable {
			e.upgrade(tw)
			return
		}
		e.followTitle(tw)
	}
}

// upgrade runs the one extra MATCHING pass an aged-out window gets when its
// title turns specific, limited to its exact record.
func (e *Engine) upgrade(tw *TrackedWindow) {
	tw.upgradeable = false
	e.log.Debug("title became specific, matching once more",
		"window", uint32(tw.Handle), "title", tw.Title)
	e.identify(tw, title.Specific, true)
}

// followTitle re-keys a tracked window to its current specific title. Only
// future saves are affected; the window is never moved.
func (e *Engine) followTitle(tw *TrackedWindow) {
	if e.classifier.Classify(tw.AppID, tw.Title) != title.Specific || tw.Identity.Fingerprint == tw.Title {
		return
	}
	old := tw.Identity
	tw.Identity = model.Identity{AppID: tw.AppID, Fingerprint: tw.Title}
	e.prefs.Adopt(tw.Identity, old)
	e.log.Debug("window identity follows title", "window", uint32(tw.Handle),
		"from", old.String(), "to", tw.Identity.String())
	e.persistLive(tw)
}

func (e *Engine) onGeometryChanged(id platform.WindowID) {
	tw, ok := e.windows[id]
	if !ok {
		return
	}
	switch tw.Phase {
	case PhaseTracking, PhaseSettled:
	case PhaseNew:
		e.refresh(tw)
		return
	default:
		return
	}

	prevConnector := tw.Connector
	if !e.refresh(tw) {
		return
	}
	if tw.Phase == PhaseSettled {
		tw.Phase = PhaseTracking
	}

	now := tw.live.Connector
	if prevConnector != "" && now != "" && now != prevConnector {
		// The layout may already list a monitor whose RandR event is still
		// queued. Only a vanished source monitor means the shell moved it.
		fresh := e.monitors()
		if !fresh.Has(prevConnector) {
			e.log.Debug("window moved by monitor change", "window", uint32(tw.Handle),
				"from", prevConnector, "to", now)
			e.reevaluate(tw, fresh)
			return
		}
		e.prefs.RecordUserMove(tw.Identity, now)
		e.log.Info("window moved to another monitor", "window", uint32(tw.Handle),
			"identity", tw.Identity.String(), "from", prevConnector, "to", now,
			"preferences", e.prefs.Preferences(tw.Identity))
	}
	e.persistLive(tw)
}

func (e *Engine) onLayoutChanged() {
	fresh, err := e.wm.Monitors()
	if err != nil {
		e.log.Warn("cannot list monitors", "error", err)
		return
	}
	prev := e.layout
	e.layout = fresh
	e.log.Info("monitor layout changed", "from", prev.Connectors(), "to", fresh.Connectors())

	for _, tw := range e.sortedWindows() {
		switch tw.Phase {
		case PhaseTracking, PhaseSettled:
			e.reevaluate(tw, fresh)
		case PhaseRestoring, PhaseSettling:
			tw.reevaluate = true
		}
	}
}

// reevaluate moves a window when the connector its preferences resolve to
// is not the one it is on.
func (e *Engine) reevaluate(tw *TrackedWindow, layout geometry.Layout) {
	if tw.Target == nil || len(layout) == 0 {
		return
	}
	e.refresh(tw)
	connector := e.resolveConnector(tw, *tw.Target, layout)
	if connector == tw.Connector && connector == tw.live.Connector {
		return
	}
	e.log.Info("re-placing window for new monitor layout", "window", uint32(tw.Handle),
		"identity", tw.Identity.String(), "from", tw.Connector, "to", connector)
	e.restore(tw, *tw.Target, connector)
}

// resolveConnector picks where a window belongs: its preference stack, then
// the record's own connector, then the primary monitor, then wherever the
// window currently is. It never writes the stack.
func (e *Engine) resolveConnector(tw *TrackedWindow, base model.SavedWindowConfig, layout geometry.Layout) string {
	available := layout.Connectors()
	if c, ok := e.prefs.Resolve(tw.Identity, available); ok {
		return c
	}
	if base.Identity() != tw.Identity {
		if c, ok := e.prefs.Resolve(base.Identity(), available); ok {
			return c
		}
	}
	e.log.Debug("falling back from preferred monitors", "window", uint32(tw.Handle),
		"preferences", e.prefs.Preferences(tw.Identity), "reason", ErrTargetMonitorUnavailable)
	if layout.Has(base.MonitorConnector) {
		return base.MonitorConnector
	}
	if p, ok := layout.Primary(); ok {
		return p.Connector
	}
	return tw.live.Connector
}

func (e *Engine) onRemoved(id platform.WindowID) {
	delete(e.ignored, id)
	tw, ok := e.windows[id]
	if !ok {
		return
	}
	tw.cancelTimer()

	prev := tw.Phase
	tw.Phase = PhaseClosed
	switch prev {
	case PhaseNew:
	case PhaseRestoring, PhaseSettling:
		if tw.Target != nil {
			e.persistTarget(tw)
		}
	default:
		if tw.hasLive {
			e.persistLive(tw)
		}
	}
	e.log.Debug("window closed", "window", uint32(id), "identity", tw.Identity.String(), "phase", prev.String())
	delete(e.windows, id)
	e.flush()
}

func (e *Engine) onSweep(live []platform.WindowID) {
	present := make(map[platform.WindowID]bool, len(live))
	for _, id := range live {
		present[id] = true
	}
	for _, tw := range e.sortedWindows() {
		if !present[tw.Handle] {
			e.log.Debug("sweep found closed window", "window", uint32(tw.Handle))
			e.onRemoved(tw.Handle)
		}
	}
	for id := range e.ignored {
		if !present[id] {
			delete(e.ignored, id)
		}
	}
	for _, id := range live {
		if _, ok := e.windows[id]; !ok && !e.ignored[id] {
			e.onAdded(id)
		}
	}
}

func (e *Engine) onMoveRequest(id platform.WindowID, connector string) error {
	tw, ok := e.windows[id]
	if !ok {
		return ErrUnknownWindow
	}
	if !e.monitors().Has(connector) {
		return fmt.Errorf("monitor %q is not connected", connector)
	}
	if tw.Phase != PhaseTracking && tw.Phase != PhaseSettled {
		return fmt.Errorf("%w: window is %s", ErrWindowBusy, tw.Phase)
	}
	if tw.Target == nil {
		e.refresh(tw)
		e.persistLive(tw)
		if tw.Target == nil {
			return errors.New("window placement unknown")
		}
	}
	e.prefs.RecordUserMove(tw.Identity, connector)
	e.markDirty()
	e.log.Info("moving window on request", "window", uint32(id),
		"identity", tw.Identity.String(), "connector", connector,
		"preferences", e.prefs.Preferences(tw.Identity))
	e.restore(tw, *tw.Target, connector)
	return nil
}

func (e *Engine) onForget(appID, fingerprint string) int {
	var ids []model.Identity
	if fingerprint == "" {
		for _, rec := range e.saved[appID] {
			ids = append(ids, rec.Identity())
		}
	} else {
		ids = append(ids, model.Identity{AppID: appID, Fingerprint: fingerprint})
	}
	n := 0
	for _, id := range ids {
		if e.saved.Delete(id) {
			n++
		}
		e.prefs.Forget(id)
	}
	if n > 0 {
		e.log.Info("forgot saved windows", "app", appID, "title", fingerprint, "count", n)
		e.dirty = true
		e.flush()
	}
	return n
}

func (e *Engine) apply(tw *TrackedWindow, ops []planner.Operation) error {
	for _, op := range ops {
		var err error
		switch op.Kind {
		case planner.OpMoveToWorkspace:
			err = e.wm.MoveToWorkspace(tw.Handle, op.Workspace)
		case planner.OpMoveToMonitor:
			err = e.wm.MoveToMonitor(tw.Handle, op.Monitor.Index)
		case planner.OpUnmaximize:
			err = e.wm.Unmaximize(tw.Handle, op.Maximized)
		case planner.OpMaximize:
			err = e.wm.Maximize(tw.Handle, op.Maximized)
		case planner.OpSetFullscreen:
			err = e.wm.SetFullscreen(tw.Handle, op.Fullscreen)
		case planner.OpPlace:
			err = e.wm.Place(tw.Handle, op.Rect)
		case planner.OpTile:
			err = e.wm.Tile(tw.Handle, op.Tile, op.Monitor.Index)
		}
		if err != nil {
			return &WMCallError{Op: op.Kind.String(), Window: tw.Handle, Err: err}
		}
		applied := op
		tw.LastOp = &applied
		e.log.Debug("applied", "window", uint32(tw.Handle), "op", op.String(), "restore_id", tw.RestoreID)
	}
	return nil
}

func (e *Engine) refresh(tw *TrackedWindow) bool {
	d, err := e.wm.Details(tw.Handle)
	if err != nil {
		e.log.Debug("window details unavailable", "error", &WMCallError{Op: "details", Window: tw.Handle, Err: err})
		return false
	}
	tw.live = d
	tw.hasLive = true
	return true
}

// monitors refreshes the cached layout, keeping the cache when the query
// fails or reports nothing.
func (e *Engine) monitors() geometry.Layout {
	l, err := e.wm.Monitors()
	if err != nil || len(l) == 0 {
		return e.layout
	}
	e.layout = l
	return l
}

func (e *Engine) schedule(tw *TrackedWindow, d time.Duration, kind timerKind) {
	tw.cancelTimer()
	id, gen := tw.Handle, tw.timerGen
	tw.timerKind = kind
	tw.timer = e.sched.AfterFunc(d, func() {
		e.Post(timerFired{window: id, gen: gen, kind: kind})
	})
}

func (e *Engine) sortedWindows() []*TrackedWindow {
	out := make([]*TrackedWindow, 0, len(e.windows))
	for _, tw := range e.windows {
		out = append(out, tw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}
