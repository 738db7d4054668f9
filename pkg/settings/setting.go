// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package settings implements a registry of typed configuration settings.
// Each setting is declared once, at package initialization, by the code that
// consumes it; values are held in a Values container so that independent
// statements or tests can carry different overrides.
package settings

import (
	"github.com/cockroachdb/errors"
)

// Class describes the scope at which a setting applies.
type Class int8

const (
	// ClusterWide settings apply identically on the coordinator and on every
	// segment, e.g. the segment count or page cost constants.
	ClusterWide Class = iota
	// SessionLevel settings may differ per statement, e.g. work_mem.
	SessionLevel
)

func (c Class) String() string {
	switch c {
	case ClusterWide:
		return "cluster"
	case SessionLevel:
		return "session"
	default:
		return "unknown"
	}
}

// InternalKey is the name under which a setting is registered.
type InternalKey string

// Setting is the interface implemented by every registered setting.
type Setting interface {
	// Key returns the name of the setting.
	Key() InternalKey
	// Description is a human-readable explanation of the setting.
	Description() string
	// Class returns the scope of the setting.
	Class() Class
	// Typ returns the short (1 char) string denoting the type of setting.
	Typ() string
	// String returns the current value rendered as a string.
	String(sv *Values) string
	// DefaultString returns the default value rendered as a string.
	DefaultString() string

	decodeAndSet(sv *Values, raw string) error
}

type common struct {
	class       Class
	key         InternalKey
	description string
}

func (c *common) Key() InternalKey    { return c.key }
func (c *common) Description() string { return c.description }
func (c *common) Class() Class        { return c.class }

// SettingOption is an option that may be passed to the Register*Setting
// functions.
type SettingOption struct {
	validateFloat func(float64) error
	validateInt   func(int64) error
}

// NonNegativeFloat checks that the value is >= 0.
var NonNegativeFloat = SettingOption{validateFloat: func(v float64) error {
	if v < 0 {
		return errors.Errorf("cannot be set to a negative value: %f", v)
	}
	return nil
}}

// PositiveFloat checks that the value is > 0.
var PositiveFloat = SettingOption{validateFloat: func(v float64) error {
	if v <= 0 {
		return errors.Errorf("cannot be set to a non-positive value: %f", v)
	}
	return nil
}}

// Fraction checks that the value is in [0, 1].
var Fraction = FloatInRange(0, 1)

// FloatInRange checks that the value is in [lo, hi].
func FloatInRange(lo, hi float64) SettingOption {
	return SettingOption{validateFloat: func(v float64) error {
		if v < lo || v > hi {
			return errors.Errorf("expected value in range [%f, %f], got: %f", lo, hi, v)
		}
		return nil
	}}
}

// NonNegativeInt checks that the value is >= 0.
var NonNegativeInt = SettingOption{validateInt: func(v int64) error {
	if v < 0 {
		return errors.Errorf("cannot be set to a negative value: %d", v)
	}
	return nil
}}

// PositiveInt checks that the value is > 0.
var PositiveInt = SettingOption{validateInt: func(v int64) error {
	if v <= 0 {
		return errors.Errorf("cannot be set to a non-positive value: %d", v)
	}
	return nil
}}

// IntInRange checks that the value is in [lo, hi].
func IntInRange(lo, hi int64) SettingOption {
	return SettingOption{validateInt: func(v int64) error {
		if v < lo || v > hi {
			return errors.Errorf("expected value in range [%d, %d], got: %d", lo, hi, v)
		}
		return nil
	}}
}
