// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/exp/maps"
)

// registry contains all defined settings, their types and default values.
//
// Registry should never be mutated after init (except in tests), as it is read
// concurrently by different callers.
var registry = struct {
	sync.RWMutex
	m map[InternalKey]Setting
}{m: map[InternalKey]Setting{}}

// register adds a setting to the registry.
func register(s Setting) {
	registry.Lock()
	defer registry.Unlock()
	if _, ok := registry.m[s.Key()]; ok {
		panic(fmt.Sprintf("setting already defined: %s", s.Key()))
	}
	registry.m[s.Key()] = s
}

// Keys returns a sorted list of all the registered keys.
func Keys() []InternalKey {
	registry.RLock()
	defer registry.RUnlock()
	res := maps.Keys(registry.m)
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Lookup returns a Setting by name.
func Lookup(key InternalKey) (Setting, bool) {
	registry.RLock()
	defer registry.RUnlock()
	s, ok := registry.m[key]
	return s, ok
}

// TestingSaveRegistry can be used in tests to save/restore the current
// contents of the registry.
func TestingSaveRegistry() func() {
	registry.Lock()
	saved := maps.Clone(registry.m)
	registry.Unlock()
	return func() {
		registry.Lock()
		defer registry.Unlock()
		registry.m = saved
	}
}
