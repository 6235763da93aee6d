// Package config holds the pieces shared by the settings stores.
package config

import (
	"maps"
	"sync"
)

// Values is a concurrency-safe set of dot-notation settings with the typed
// accessors of driven.ConfigStore. Stores embed it and add persistence.
//
// Numbers may arrive as int (set in code), int64 (decoded TOML) or float64,
// so the numeric getters accept all of them.
type Values struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewValues returns a Values holding a copy of m.
func NewValues(m map[string]any) *Values {
	v := &Values{}
	v.Replace(m)
	return v
}

// Get retrieves a configuration value by key.
func (v *Values) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.m[key]
	return val, ok
}

// GetString returns the value of key if it is a string.
func (v *Values) GetString(key string) string {
	val, _ := v.Get(key)
	s, _ := val.(string)
	return s
}

// GetInt returns the value of key if it is a whole number.
func (v *Values) GetInt(key string) int {
	val, _ := v.Get(key)
	switch n := val.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case int32:
		return int(n)
	default:
		return 0
	}
}

// GetFloat returns the value of key if it is numeric. Integers are widened
// so "similarity_floor = 1" reads as 1.0.
func (v *Values) GetFloat(key string) float64 {
	val, _ := v.Get(key)
	switch n := val.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// GetBool returns the value of key if it is a boolean.
func (v *Values) GetBool(key string) bool {
	val, _ := v.Get(key)
	b, _ := val.(bool)
	return b
}

// GetStringSlice returns the string items of an array value.
// Non-string items are skipped.
func (v *Values) GetStringSlice(key string) []string {
	val, _ := v.Get(key)
	switch items := val.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Put stores a value in memory only.
func (v *Values) Put(key string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.m[key] = value
}

// Replace swaps the whole set for a copy of m.
func (v *Values) Replace(m map[string]any) {
	next := make(map[string]any, len(m))
	maps.Copy(next, m)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.m = next
}

// Snapshot returns a copy of every value.
func (v *Values) Snapshot() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return maps.Clone(v.m)
}
