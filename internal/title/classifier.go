// Package title decides whether a window title carries enough information
// to identify a window.
package title

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinSpecificLength is the shortest title, in runes, that can be
// specific.
const DefaultMinSpecificLength = 15

// Specificity is the classification of a title.
type Specificity int

const (
	Generic Specificity = iota
	Specific
)

func (s Specificity) String() string {
	if s == Specific {
		return "specific"
	}
	return "generic"
}

var defaultPlaceholders = []string{
	"untitled",
	"untitled document",
	"new tab",
	"new window",
	"new document",
	"loading",
	"loading...",
	"loading…",
}

// Classifier classifies titles. The zero value uses the defaults.
type Classifier struct {
	MinLength    int
	Placeholders []string
}

// New returns a classifier with the given minimum length and extra
// placeholder titles on top of the built-in set.
func New(minLength int, extra []string) *Classifier {
	ph := make([]string, 0, len(defaultPlaceholders)+len(extra))
	ph = append(ph, defaultPlaceholders...)
	for _, e := range extra {
		if e = normalize(e); e != "" {
			ph = append(ph, e)
		}
	}
	return &Classifier{MinLength: minLength, Placeholders: ph}
}

// Classify returns Specific when title can be used as a matching key for
// windows of appID.
func (c *Classifier) Classify(appID, title string) Specificity {
	t := normalize(title)
	if t == "" {
		return Generic
	}
	minLen := c.MinLength
	if minLen <= 0 {
		minLen = DefaultMinSpecificLength
	}
	if utf8.RuneCountInString(t) < minLen {
		return Generic
	}
	if isAppName(appID, t) {
		return Generic
	}
	placeholders := c.Placeholders
	if placeholders == nil {
		placeholders = defaultPlaceholders
	}
	for _, p := range placeholders {
		if t == p {
			return Generic
		}
	}
	return Specific
}

// isAppName matches the bare application name: the app id itself or the
// last component of a reverse-DNS id ("org.gnome.Calculator" -> "calculator").
func isAppName(appID, t string) bool {
	app := normalize(appID)
	if app == "" {
		return false
	}
	if t == app {
		return true
	}
	if i := strings.LastIndexByte(app, '.'); i >= 0 && t == app[i+1:] {
		return true
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
