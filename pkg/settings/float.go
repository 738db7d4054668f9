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

// FloatSetting is the interface of a setting variable that will be
// updated automatically when the corresponding cluster-wide setting
// of type "float" is updated.
type FloatSetting struct {
	common
	defaultValue float64
	validateFn   func(float64) error
}

var _ Setting = &FloatSetting{}

// Get retrieves the float value in the setting.
func (f *FloatSetting) Get(sv *Values) float64 {
	if v, ok := sv.get(f.key); ok {
		return v.(float64)
	}
	return f.defaultValue
}

// Default returns the default value.
func (f *FloatSetting) Default() float64 { return f.defaultValue }

// Typ returns the short (1 char) string denoting the type of setting.
func (*FloatSetting) Typ() string { return "f" }

func (f *FloatSetting) String(sv *Values) string {
	return strconv.FormatFloat(f.Get(sv), 'g', -1, 64)
}

// DefaultString returns the default value for the setting as a string.
func (f *FloatSetting) DefaultString() string {
	return strconv.FormatFloat(f.defaultValue, 'g', -1, 64)
}

// Validate that a value conforms with the validation function.
func (f *FloatSetting) Validate(v float64) error {
	if f.validateFn != nil {
		if err := f.validateFn(v); err != nil {
			return errors.Wrapf(err, "invalid value for %s", f.key)
		}
	}
	return nil
}

// Override changes the setting without validation. For use in tests.
func (f *FloatSetting) Override(ctx context.Context, sv *Values, v float64) {
	sv.set(f.key, v)
}

// Set validates and stores a value.
func (f *FloatSetting) Set(sv *Values, v float64) error {
	if err := f.Validate(v); err != nil {
		return err
	}
	sv.set(f.key, v)
	return nil
}

func (f *FloatSetting) decodeAndSet(sv *Values, raw string) error {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid value for %s", f.key)
	}
	return f.Set(sv, v)
}

// RegisterFloatSetting defines a new setting with type float.
func RegisterFloatSetting(
	class Class, key InternalKey, desc string, defaultValue float64, opts ...SettingOption,
) *FloatSetting {
	var validateFn func(float64) error
	for _, opt := range opts {
		if opt.validateFloat == nil {
			continue
		}
		prev, cur := validateFn, opt.validateFloat
		validateFn = func(v float64) error {
			if prev != nil {
				if err := prev(v); err != nil {
					return err
				}
			}
			return cur(v)
		}
	}
	if validateFn != nil {
		if err := validateFn(defaultValue); err != nil {
			panic(errors.Wrapf(err, "invalid default value for %s", key))
		}
	}
	s := &FloatSetting{
		common:       common{class: class, key: key, description: desc},
		defaultValue: defaultValue,
		validateFn:   validateFn,
	}
	register(s)
	return s
}
