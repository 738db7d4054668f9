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

// IntSetting is the interface of a setting variable that will be
// updated automatically when the corresponding cluster-wide setting
// of type "int" is updated.
type IntSetting struct {
	common
	defaultValue int64
	validateFn   func(int64) error
}

var _ Setting = &IntSetting{}

// Get retrieves the int value in the setting.
func (i *IntSetting) Get(sv *Values) int64 {
	if v, ok := sv.get(i.key); ok {
		return v.(int64)
	}
	return i.defaultValue
}

// Default returns the default value.
func (i *IntSetting) Default() int64 { return i.defaultValue }

// Typ returns the short (1 char) string denoting the type of setting.
func (*IntSetting) Typ() string { return "i" }

func (i *IntSetting) String(sv *Values) string {
	return strconv.FormatInt(i.Get(sv), 10)
}

// DefaultString returns the default value for the setting as a string.
func (i *IntSetting) DefaultString() string {
	return strconv.FormatInt(i.defaultValue, 10)
}

// Validate that a value conforms with the validation function.
func (i *IntSetting) Validate(v int64) error {
	if i.validateFn != nil {
		if err := i.validateFn(v); err != nil {
			return errors.Wrapf(err, "invalid value for %s", i.key)
		}
	}
	return nil
}

// Override changes the setting without validation. For use in tests.
func (i *IntSetting) Override(ctx context.Context, sv *Values, v int64) {
	sv.set(i.key, v)
}

// Set validates and stores a value.
func (i *IntSetting) Set(sv *Values, v int64) error {
	if err := i.Validate(v); err != nil {
		return err
	}
	sv.set(i.key, v)
	return nil
}

func (i *IntSetting) decodeAndSet(sv *Values, raw string) error {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid value for %s", i.key)
	}
	return i.Set(sv, v)
}

func composeIntValidators(opts []SettingOption) func(int64) error {
	var validateFn func(int64) error
	for _, opt := range opts {
		if opt.validateInt == nil {
			continue
		}
		prev, cur := validateFn, opt.validateInt
		validateFn = func(v int64) error {
			if prev != nil {
				if err := prev(v); err != nil {
					return err
				}
			}
			return cur(v)
		}
	}
	return validateFn
}

// RegisterIntSetting defines a new setting with type int.
func RegisterIntSetting(
	class Class, key InternalKey, desc string, defaultValue int64, opts ...SettingOption,
) *IntSetting {
	validateFn := composeIntValidators(opts)
	if validateFn != nil {
		if err := validateFn(defaultValue); err != nil {
			panic(errors.Wrapf(err, "invalid default value for %s", key))
		}
	}
	s := &IntSetting{
		common:       common{class: class, key: key, description: desc},
		defaultValue: defaultValue,
		validateFn:   validateFn,
	}
	register(s)
	return s
}
