// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
)

// BoolSetting is the interface of a setting variable that will be
// updated automatically when the corresponding cluster-wide setting
// of type "bool" is updated.
type BoolSetting struct {
	common
	defaultValue bool
}

var _ Setting = &BoolSetting{}

// Get retrieves the bool value in the setting.
func (b *BoolSetting) Get(sv *Values) bool {
	if v, ok := sv.get(b.key); ok {
		return v.(bool)
	}
	return b.defaultValue
}

// Typ returns the short (1 char) string denoting the type of setting.
func (*BoolSetting) Typ() string { return "b" }

func (b *BoolSetting) String(sv *Values) string {
	return strconv.FormatBool(b.Get(sv))
}

// DefaultString returns the default value for the setting as a string.
func (b *BoolSetting) DefaultString() string {
	return strconv.FormatBool(b.defaultValue)
}

// Override changes the setting. For use in tests.
func (b *BoolSetting) Override(ctx context.Context, sv *Values, v bool) {
	sv.set(b.key, v)
}

func (b *BoolSetting) decodeAndSet(sv *Values, raw string) error {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return errors.Wrapf(err, "invalid value for %s", b.key)
	}
	sv.set(b.key, v)
	return nil
}

// RegisterBoolSetting defines a new setting with type bool.
func RegisterBoolSetting(class Class, key InternalKey, desc string, defaultValue bool) *BoolSetting {
	s := &BoolSetting{
		common:       common{class: class, key: key, description: desc},
		defaultValue: defaultValue,
	}
	register(s)
	return s
}
