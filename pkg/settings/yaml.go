// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/mppdb/mppdb/pkg/util/log"
	"gopkg.in/yaml.v2"
)

// LoadYAML applies the overrides found in a YAML mapping of setting keys to
// scalar values, e.g.
//
//	sql.opt.cost.random_page_cost: 100
//	sql.copy.multi_insert.max_bytes: 64KiB
//
// Unknown keys and invalid values are reported as errors; in that case sv is
// left unmodified.
func LoadYAML(ctx context.Context, sv *Values, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading settings")
	}
	var raw map[string]interface{}
	if err := yaml.UnmarshalStrict(data, &raw); err != nil {
		return errors.Wrap(err, "parsing settings")
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	staged := sv.Clone()
	for _, k := range keys {
		s, ok := Lookup(InternalKey(k))
		if !ok {
			return errors.Errorf("unknown setting %q", k)
		}
		v := raw[k]
		switch v.(type) {
		case map[interface{}]interface{}, []interface{}, nil:
			return errors.Errorf("setting %q must be a scalar", k)
		}
		if err := s.decodeAndSet(staged, fmt.Sprint(v)); err != nil {
			return err
		}
		log.VEventf(ctx, 1, "setting %s = %s", k, s.String(staged))
	}

	staged.mu.Lock()
	overrides := staged.overrides
	staged.mu.Unlock()
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sv.overrides = overrides
	return nil
}

// Set parses raw according to the type of the named setting and stores it
// in sv.
func Set(sv *Values, key InternalKey, raw string) error {
	s, ok := Lookup(key)
	if !ok {
		return errors.Errorf("unknown setting %q", key)
	}
	return s.decodeAndSet(sv, raw)
}
