package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/1broseidon/winkeep/internal/model"
)

// Keys of the settings schema.
const (
	KeySavedWindows = "saved-windows"
	KeyOverrides    = "overrides"
	KeySyncMode     = "sync-mode"
	KeyDebugLogging = "debug-logging"
)

// Store reads and writes typed settings on top of a KV backend.
type Store struct {
	kv KV
}

// NewStore wraps kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) load(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, data)
}

// SavedWindows returns every saved record. A missing key is an empty map.
func (s *Store) SavedWindows(ctx context.Context) (model.SavedWindows, error) {
	saved := model.SavedWindows{}
	if _, err := s.load(ctx, KeySavedWindows, &saved); err != nil {
		return nil, err
	}
	if saved == nil {
		saved = model.SavedWindows{}
	}
	saved.Normalize()
	return saved, nil
}

// PutSavedWindows replaces the saved records.
func (s *Store) PutSavedWindows(ctx context.Context, saved model.SavedWindows) error {
	return s.save(ctx, KeySavedWindows, saved)
}

// Overrides returns all per-application rules.
func (s *Store) Overrides(ctx context.Context) (model.Overrides, error) {
	o := model.Overrides{}
	if _, err := s.load(ctx, KeyOverrides, &o); err != nil {
		return nil, err
	}
	if o == nil {
		o = model.Overrides{}
	}
	return o, nil
}

// SetOverride validates and stores the rule for appID.
func (s *Store) SetOverride(ctx context.Context, appID string, rule model.OverrideRule) error {
	if appID == "" {
		return errors.New("override app id is empty")
	}
	action, err := model.ParseAction(string(rule.Action))
	if err != nil {
		return err
	}
	rule.Action = action
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("override %s: %w", appID, err)
	}
	o, err := s.Overrides(ctx)
	if err != nil {
		return err
	}
	o[appID] = rule
	return s.save(ctx, KeyOverrides, o)
}

// RemoveOverride deletes the rule for appID and reports whether one existed.
func (s *Store) RemoveOverride(ctx context.Context, appID string) (bool, error) {
	o, err := s.Overrides(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := o[appID]; !ok {
		return false, nil
	}
	delete(o, appID)
	return true, s.save(ctx, KeyOverrides, o)
}

// SyncMode returns the global mode, RESTORE when unset.
func (s *Store) SyncMode(ctx context.Context) (model.Action, error) {
	var raw string
	ok, err := s.load(ctx, KeySyncMode, &raw)
	if err != nil {
		return "", err
	}
	if !ok || raw == "" {
		return model.ActionRestore, nil
	}
	return model.ParseAction(raw)
}

// SetSyncMode stores the global mode.
func (s *Store) SetSyncMode(ctx context.Context, mode model.Action) error {
	mode, err := model.ParseAction(string(mode))
	if err != nil {
		return err
	}
	return s.save(ctx, KeySyncMode, string(mode))
}

// DebugLogging returns the debug flag, false when unset.
func (s *Store) DebugLogging(ctx context.Context) (bool, error) {
	var v bool
	if _, err := s.load(ctx, KeyDebugLogging, &v); err != nil {
		return false, err
	}
	return v, nil
}

// SetDebugLogging stores the debug flag.
func (s *Store) SetDebugLogging(ctx context.Context, v bool) error {
	return s.save(ctx, KeyDebugLogging, v)
}

// Watch forwards external changes from backends that support it. For other
// backends it blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(key string)) error {
	w, ok := s.kv.(Watcher)
	if !ok {
		<-ctx.Done()
		return nil
	}
	return w.Watch(ctx, fn)
}
