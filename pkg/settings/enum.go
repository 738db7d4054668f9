// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"context"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// EnumSetting is a StringSetting that restricts the values to be one of the
// `enumValues`.
type EnumSetting struct {
	IntSetting
	enumValues map[int64]string
}

var _ Setting = &EnumSetting{}

// Typ returns the short (1 char) string denoting the type of setting.
func (e *EnumSetting) Typ() string { return "e" }

func (e *EnumSetting) String(sv *Values) string {
	return e.enumValues[e.Get(sv)]
}

// DefaultString returns the default value for the setting as a string.
func (e *EnumSetting) DefaultString() string {
	return e.enumValues[e.defaultValue]
}

// ParseEnum returns the enum value, and a boolean that indicates if it was
// parseable.
func (e *EnumSetting) ParseEnum(raw string) (int64, bool) {
	for k, v := range e.enumValues {
		if strings.EqualFold(v, raw) {
			return k, true
		}
	}
	return 0, false
}

// Override changes the setting. For use in tests.
func (e *EnumSetting) Override(ctx context.Context, sv *Values, v int64) {
	sv.set(e.key, v)
}

func (e *EnumSetting) decodeAndSet(sv *Values, raw string) error {
	v, ok := e.ParseEnum(raw)
	if !ok {
		return errors.Errorf("invalid value for %s: %q, expected one of %s",
			e.key, raw, e.optionsString())
	}
	sv.set(e.key, v)
	return nil
}

func (e *EnumSetting) optionsString() string {
	names := make([]string, 0, len(e.enumValues))
	for _, v := range e.enumValues {
		names = append(names, v)
	}
	sort.Strings(names)
	return "[" + strings.Join(names, ", ") + "]"
}

// RegisterEnumSetting defines a new setting with type int whose values are
// addressed by name.
func RegisterEnumSetting(
	class Class, key InternalKey, desc string, defaultValue string, enumValues map[int64]string,
) *EnumSetting {
	s := &EnumSetting{
		IntSetting: IntSetting{common: common{class: class, key: key, description: desc}},
		enumValues: enumValues,
	}
	v, ok := s.ParseEnum(defaultValue)
	if !ok {
		panic(errors.AssertionFailedf("unknown default %q for %s", defaultValue, key))
	}
	s.defaultValue = v
	register(s)
	return s
}
