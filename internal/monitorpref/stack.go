// Package monitorpref keeps the per-identity ordered list of monitor
// connectors a window prefers, most recently chosen first.
package monitorpref

import (
	"slices"
	"sync"

	"github.com/1broseidon/winkeep/internal/model"
)

// Stack maps identities to connector preference lists. Only explicit user
// moves write to it; fallback placement only reads.
type Stack struct {
	mu    sync.Mutex
	prefs map[model.Identity][]string
}

// New returns an empty stack.
func New() *Stack {
	return &Stack{prefs: make(map[model.Identity][]string)}
}

// Resolve returns the first preferred connector that is available.
func (s *Stack) Resolve(id model.Identity, available []string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.prefs[id] {
		if slices.Contains(available, c) {
			return c, true
		}
	}
	return "", false
}

// RecordUserMove moves connector to the front of id's list, inserting it if
// absent.
func (s *Stack) RecordUserMove(id model.Identity, connector string) {
	if connector == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[id] = moveToFront(s.prefs[id], connector)
}

// Seed records the connector a window was first observed on. It only has an
// effect while id has no preferences. It reports whether it wrote.
func (s *Stack) Seed(id model.Identity, connector string) bool {
	if connector == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prefs[id]) > 0 {
		return false
	}
	s.prefs[id] = []string{connector}
	return true
}

// Preferences returns a copy of id's list.
func (s *Stack) Preferences(id model.Identity) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.prefs[id])
}

// Adopt copies from's list to to when to has none. Used when a tracked
// window's identity changes with its title.
func (s *Stack) Adopt(to, from model.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prefs[to]) > 0 || len(s.prefs[from]) == 0 {
		return
	}
	s.prefs[to] = slices.Clone(s.prefs[from])
}

// Forget drops id's list.
func (s *Stack) Forget(id model.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prefs, id)
}

// Load replaces the stack's contents with the lists embedded in saved
// records. Duplicate connectors are collapsed, keeping the first.
func (s *Stack) Load(saved model.SavedWindows) {
	prefs := make(map[model.Identity][]string)
	for _, list := range saved {
		for _, rec := range list {
			if len(rec.MonitorPreferences) == 0 {
				continue
			}
			var clean []string
			for _, c := range rec.MonitorPreferences {
				if c != "" && !slices.Contains(clean, c) {
					clean = append(clean, c)
				}
			}
			prefs[rec.Identity()] = clean
		}
	}
	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()
}

func moveToFront(list []string, connector string) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, connector)
	for _, c := range list {
		if c != connector {
			out = append(out, c)
		}
	}
	return out
}
