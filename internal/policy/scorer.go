package policy

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/1broseidon/winkeep/internal/geometry"
	"github.com/1broseidon/winkeep/internal/matching"
	"github.com/1broseidon/winkeep/internal/model"
)

// Candidate is a matched record together with the live window it was
// matched for.
type Candidate struct {
	Saved     model.SavedWindowConfig
	Kind      matching.Kind
	LiveTitle string
	LiveFrame geometry.Rect
}

// Scorer turns a candidate into a confidence in [0,1].
type Scorer interface {
	Score(c Candidate, props []string) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(c Candidate, props []string) float64

func (f ScorerFunc) Score(c Candidate, props []string) float64 {
	return f(c, props)
}

// wildcardCeiling caps title confidence when a specific title only found
// the application's wildcard record.
const wildcardCeiling = 0.5

// DefaultScorer averages per-property scores. With no properties it scores
// the title.
type DefaultScorer struct{}

func (DefaultScorer) Score(c Candidate, props []string) float64 {
	if len(props) == 0 {
		props = []string{model.MatchTitle}
	}
	var sum float64
	var n int
	for _, p := range props {
		switch p {
		case model.MatchTitle:
			sum += titleScore(c)
		case model.MatchSize:
			sum += sizeScore(c)
		default:
			continue
		}
		n++
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

func titleScore(c Candidate) float64 {
	switch c.Kind {
	case matching.Exact, matching.Wildcard:
		return 1
	case matching.WildcardFallback:
		return min(Similarity(c.Saved.TitlePattern, c.LiveTitle), wildcardCeiling)
	}
	if c.Saved.TitlePattern == c.LiveTitle {
		return 1
	}
	return Similarity(c.Saved.TitlePattern, c.LiveTitle)
}

func sizeScore(c Candidate) float64 {
	if c.Saved.RelativeRect == nil || c.LiveFrame.Empty() || c.Saved.RelativeRect.Empty() {
		return 0
	}
	saved := float64(c.Saved.RelativeRect.Width * c.Saved.RelativeRect.Height)
	live := float64(c.LiveFrame.Width * c.LiveFrame.Height)
	if saved > live {
		return live / saved
	}
	return saved / live
}

// Similarity is 1 minus the normalized Levenshtein distance between a and b,
// compared case-insensitively by rune.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
