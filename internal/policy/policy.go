// Package policy decides whether a matched window should be restored.
package policy

import (
	"github.com/1broseidon/winkeep/internal/model"
)

// Resolver combines the global sync mode with per-application overrides.
// It is an immutable snapshot; build a new one when settings change.
type Resolver struct {
	mode      model.Action
	overrides model.Overrides
	scorer    Scorer
}

// NewResolver returns a resolver for the given state. An empty mode means
// RESTORE and a nil scorer means DefaultScorer.
func NewResolver(mode model.Action, overrides model.Overrides, scorer Scorer) *Resolver {
	if mode == "" {
		mode = model.ActionRestore
	}
	cp := make(model.Overrides, len(overrides))
	for k, v := range overrides {
		cp[k] = v
	}
	if scorer == nil {
		scorer = DefaultScorer{}
	}
	return &Resolver{mode: mode, overrides: cp, scorer: scorer}
}

// Mode returns the global sync mode.
func (r *Resolver) Mode() model.Action {
	return r.mode
}

// Override returns the rule for appID, if any.
func (r *Resolver) Override(appID string) (model.OverrideRule, bool) {
	rule, ok := r.overrides[appID]
	return rule, ok
}

// Resolve returns the action for appID at the given match confidence. An
// override's action wins over the global mode; its threshold, when set,
// demotes low-confidence restores to IGNORE.
func (r *Resolver) Resolve(appID string, confidence float64) model.Action {
	rule, ok := r.overrides[appID]
	if !ok {
		return r.mode
	}
	action := rule.Action
	if action == "" {
		action = r.mode
	}
	if action == model.ActionRestore && rule.Threshold != nil && confidence < *rule.Threshold {
		return model.ActionIgnore
	}
	return action
}

// Decide scores c and resolves the action for it.
func (r *Resolver) Decide(c Candidate) (model.Action, float64) {
	var props []string
	if rule, ok := r.overrides[c.Saved.ApplicationID]; ok {
		props = rule.MatchProperties
	}
	confidence := r.scorer.Score(c, props)
	return r.Resolve(c.Saved.ApplicationID, confidence), confidence
}
