// Package matching finds the saved record for a live window by exact
// identity lookup.
package matching

import (
	"github.com/1broseidon/winkeep/internal/model"
	"github.com/1broseidon/winkeep/internal/title"
)

// Kind says how a record was found.
type Kind int

const (
	// Exact: the live title equals the record's title.
	Exact Kind = iota + 1
	// Wildcard: the live title is generic and the app's wildcard record was used.
	Wildcard
	// WildcardFallback: the live title is specific but no record has it, so
	// the app's wildcard record was used instead.
	WildcardFallback
)

func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Wildcard:
		return "wildcard"
	case WildcardFallback:
		return "wildcard-fallback"
	default:
		return "none"
	}
}

// Live is what the matcher needs to know about a window.
type Live struct {
	AppID       string
	Title       string
	Specificity title.Specificity
}

// Identity returns the identity the live window would be saved under.
func (l Live) Identity() model.Identity {
	if l.Specificity == title.Specific {
		return model.Identity{AppID: l.AppID, Fingerprint: l.Title}
	}
	return model.WildcardIdentity(l.AppID)
}

// Match is a successful lookup.
type Match struct {
	Config model.SavedWindowConfig
	Kind   Kind
}

// Find looks up the record for live. A specific title prefers the exact
// record and falls back to the wildcard; a generic title only ever uses the
// wildcard. The returned config is a copy.
func Find(live Live, saved model.SavedWindows) (Match, bool) {
	if live.AppID == "" {
		return Match{}, false
	}
	if live.Specificity == title.Specific {
		if rec, ok := saved.Get(model.Identity{AppID: live.AppID, Fingerprint: live.Title}); ok {
			return Match{Config: rec.Clone(), Kind: Exact}, true
		}
		if rec, ok := saved.Get(model.WildcardIdentity(live.AppID)); ok {
			return Match{Config: rec.Clone(), Kind: WildcardFallback}, true
		}
		return Match{}, false
	}
	if rec, ok := saved.Get(model.WildcardIdentity(live.AppID)); ok {
		return Match{Config: rec.Clone(), Kind: Wildcard}, true
	}
	return Match{}, false
}
