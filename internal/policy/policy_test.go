package policy

import (
	"math"
	"testing"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/matching"
	"github.com/1broseidon/winkeep/internal/model"
)

func threshold(v float64) *float64 { return &v }

func TestResolve(t *testing.T) {
	overrides := model.Overrides{
		"org.gnome.Calculator": {Action: model.ActionRestore},
		"org.gnome.Terminal":   {Action: model.ActionIgnore},
		"org.gnome.Evolution":  {Action: model.ActionRestore, Threshold: threshold(0.8)},
	}

	tests := []struct {
		name       string
		mode       model.Action
		app        string
		confidence float64
		want       model.Action
	}{
		{"global restore", model.ActionRestore, "org.example.Other", 1, model.ActionRestore},
		{"global ignore", model.ActionIgnore, "org.example.Other", 1, model.ActionIgnore},
		{"empty mode defaults to restore", "", "org.example.Other", 0, model.ActionRestore},
		{"restore override beats global ignore", model.ActionIgnore, "org.gnome.Calculator", 1, model.ActionRestore},
		{"ignore override beats global restore", model.ActionRestore, "org.gnome.Terminal", 1, model.ActionIgnore},
		{"threshold met", model.ActionIgnore, "org.gnome.Evolution", 0.8, model.ActionRestore},
		{"threshold missed", model.ActionRestore, "org.gnome.Evolution", 0.79, model.ActionIgnore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.mode, overrides, nil)
			if got := r.Resolve(tt.app, tt.confidence); got != tt.want {
				t.Fatalf("Resolve(%q, %v) = %v, want %v", tt.app, tt.confidence, got, tt.want)
			}
		})
	}
}

func TestResolverSnapshotIsolated(t *testing.T) {
	overrides := model.Overrides{"a": {Action: model.ActionIgnore}}
	r := NewResolver(model.ActionRestore, overrides, nil)
	overrides["b"] = model.OverrideRule{Action: model.ActionIgnore}

	if got := r.Resolve("b", 1); got != model.ActionRestore {
		t.Fatalf("resolver saw later override: %v", got)
	}
}

func TestDecideUsesPluggableScorer(t *testing.T) {
	var gotProps []string
	scorer := ScorerFunc(func(c Candidate, props []string) float64 {
		gotProps = props
		return 0.1
	})
	r := NewResolver(model.ActionRestore, model.Overrides{
		"app": {Action: model.ActionRestore, Threshold: threshold(0.5), MatchProperties: []string{model.MatchSize}},
	}, scorer)

	action, conf := r.Decide(Candidate{Saved: model.SavedWindowConfig{ApplicationID: "app"}})
	if action != model.ActionIgnore || conf != 0.1 {
		t.Fatalf("Decide = %v, %v", action, conf)
	}
	if len(gotProps) != 1 || gotProps[0] != model.MatchSize {
		t.Fatalf("scorer props = %v", gotProps)
	}
}

func TestDefaultScorer(t *testing.T) {
	saved := model.SavedWindowConfig{
		ApplicationID: "app",
		TitlePattern:  "Inbox (10842 unread)",
		RelativeRect:  &geometry.Rect{Width: 800, Height: 600},
	}
	s := DefaultScorer{}

	if got := s.Score(Candidate{Saved: saved, Kind: matching.Exact}, nil); got != 1 {
		t.Fatalf("exact = %v", got)
	}
	fallback := Candidate{Saved: saved, Kind: matching.WildcardFallback, LiveTitle: "Inbox (10842 unread)"}
	if got := s.Score(fallback, nil); got != wildcardCeiling {
		t.Fatalf("fallback capped = %v", got)
	}

	half := Candidate{Saved: saved, Kind: matching.Exact, LiveFrame: geometry.Rect{Width: 400, Height: 600}}
	if got := s.Score(half, []string{model.MatchSize}); got != 0.5 {
		t.Fatalf("size = %v", got)
	}
	if got := s.Score(half, []string{model.MatchTitle, model.MatchSize}); got != 0.75 {
		t.Fatalf("title+size = %v", got)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "abc", 1},
		{"ABC", "abc", 1},
		{"abcd", "abce", 0.75},
		{"abc", "", 0},
		{"kitten", "sitting", 1 - 3.0/7.0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
