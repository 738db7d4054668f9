// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import "context"

// StringSetting is the interface of a setting variable that will be
// updated automatically when the corresponding cluster-wide setting
// of type "string" is updated.
type StringSetting struct {
	common
	defaultValue string
}

var _ Setting = &StringSetting{}

// Get retrieves the string value in the setting.
func (s *StringSetting) Get(sv *Values) string {
	if v, ok := sv.get(s.key); ok {
		return v.(string)
	}
	return s.defaultValue
}

// Typ returns the short (1 char) string denoting the type of setting.
func (*StringSetting) Typ() string { return "s" }

func (s *StringSetting) String(sv *Values) string { return s.Get(sv) }

// DefaultString returns the default value for the setting as a string.
func (s *StringSetting) DefaultString() string { return s.defaultValue }

// Override changes the setting. For use in tests.
func (s *StringSetting) Override(ctx context.Context, sv *Values, v string) {
	sv.set(s.key, v)
}

func (s *StringSetting) decodeAndSet(sv *Values, raw string) error {
	sv.set(s.key, raw)
	return nil
}

// RegisterStringSetting defines a new setting with type string.
func RegisterStringSetting(
	class Class, key InternalKey, desc string, defaultValue string,
) *StringSetting {
	s := &StringSetting{
		common:       common{class: class, key: key, description: desc},
		defaultValue: defaultValue,
	}
	register(s)
	return s
}
