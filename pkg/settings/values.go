// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import "sync"

// Values is a container that stores overridden values for all registered
// settings. A setting that has not been overridden reads as its default.
// The zero value is ready to use. A nil *Values reads every default.
type Values struct {
	mu        sync.RWMutex
	overrides map[InternalKey]interface{}
}

// MakeValues returns a Values container with no overrides.
func MakeValues() *Values {
	return &Values{}
}

func (sv *Values) get(key InternalKey) (interface{}, bool) {
	if sv == nil {
		return nil, false
	}
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	v, ok := sv.overrides[key]
	return v, ok
}

func (sv *Values) set(key InternalKey, v interface{}) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.overrides == nil {
		sv.overrides = make(map[InternalKey]interface{})
	}
	sv.overrides[key] = v
}

// Reset removes all overrides.
func (sv *Values) Reset() {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sv.overrides = nil
}

// Clone returns an independent copy of sv.
func (sv *Values) Clone() *Values {
	c := &Values{}
	if sv == nil {
		return c
	}
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	if len(sv.overrides) > 0 {
		c.overrides = make(map[InternalKey]interface{}, len(sv.overrides))
		for k, v := range sv.overrides {
			c.overrides[k] = v
		}
	}
	return c
}
