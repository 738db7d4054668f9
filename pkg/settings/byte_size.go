// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"github.com/mppdb/mppdb/pkg/util/humanizeutil"
)

// ByteSizeSetting is the interface of a setting variable that will be
// updated automatically when the corresponding cluster-wide setting
// of type "bytesize" is updated. Values accept humanized sizes such as
// "64MiB".
type ByteSizeSetting struct {
	IntSetting
}

var _ Setting = &ByteSizeSetting{}

// Typ returns the short (1 char) string denoting the type of setting.
func (*ByteSizeSetting) Typ() string { return "z" }

func (b *ByteSizeSetting) String(sv *Values) string {
	return humanizeutil.IBytes(b.Get(sv))
}

// DefaultString returns the default value for the setting as a string.
func (b *ByteSizeSetting) DefaultString() string {
	return humanizeutil.IBytes(b.defaultValue)
}

func (b *ByteSizeSetting) decodeAndSet(sv *Values, raw string) error {
	v, err := humanizeutil.ParseBytes(raw)
	if err != nil {
		return err
	}
	return b.Set(sv, v)
}

// RegisterByteSizeSetting defines a new setting with type bytesize. Sizes
// must be non-negative.
func RegisterByteSizeSetting(
	class Class, key InternalKey, desc string, defaultValue int64, opts ...SettingOption,
) *ByteSizeSetting {
	validateFn := composeIntValidators(append([]SettingOption{NonNegativeInt}, opts...))
	if err := validateFn(defaultValue); err != nil {
		panic(err)
	}
	s := &ByteSizeSetting{IntSetting: IntSetting{
		common:       common{class: class, key: key, description: desc},
		defaultValue: defaultValue,
		validateFn:   validateFn,
	}}
	register(s)
	return s
}
