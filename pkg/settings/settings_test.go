// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const mb = int64(1024 * 1024)

var boolTA = RegisterBoolSetting(ClusterWide, "bool.t", "", true)
var boolFA = RegisterBoolSetting(ClusterWide, "bool.f", "", false)
var strFooA = RegisterStringSetting(SessionLevel, "str.foo", "", "")
var strBarA = RegisterStringSetting(SessionLevel, "str.bar", "", "bar")
var i1A = RegisterIntSetting(ClusterWide, "i.1", "", 0)
var i2A = RegisterIntSetting(ClusterWide, "i.2", "", 5, PositiveInt)
var fA = RegisterFloatSetting(ClusterWide, "f", "", 5.4, NonNegativeFloat)
var fracA = RegisterFloatSetting(ClusterWide, "frac", "", 0.3, Fraction)
var byteSize = RegisterByteSizeSetting(SessionLevel, "zzz", "", mb)
var enumA = RegisterEnumSetting(ClusterWide, "e", "", "foo", map[int64]string{1: "foo", 2: "bar"})

func TestCache(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		sv := MakeValues()
		require.Equal(t, false, boolFA.Get(sv))
		require.Equal(t, true, boolTA.Get(sv))
		require.Equal(t, "", strFooA.Get(sv))
		require.Equal(t, "bar", strBarA.Get(sv))
		require.Equal(t, int64(0), i1A.Get(sv))
		require.Equal(t, int64(5), i2A.Get(sv))
		require.Equal(t, 5.4, fA.Get(sv))
		require.Equal(t, mb, byteSize.Get(sv))
		require.Equal(t, int64(1), enumA.Get(sv))
		// A nil container reads defaults.
		require.Equal(t, 5.4, fA.Get(nil))
	})

	t.Run("lookup", func(t *testing.T) {
		s, ok := Lookup("i.1")
		require.True(t, ok)
		require.Equal(t, i1A, s)
		_, ok = Lookup("dne")
		require.False(t, ok)
	})

	t.Run("override", func(t *testing.T) {
		ctx := context.Background()
		sv := MakeValues()
		other := MakeValues()
		fA.Override(ctx, sv, 1.5)
		i2A.Override(ctx, sv, 7)
		require.Equal(t, 1.5, fA.Get(sv))
		require.Equal(t, int64(7), i2A.Get(sv))
		require.Equal(t, 5.4, fA.Get(other))

		clone := sv.Clone()
		fA.Override(ctx, sv, 2.5)
		require.Equal(t, 1.5, fA.Get(clone))
		sv.Reset()
		require.Equal(t, 5.4, fA.Get(sv))
	})

	t.Run("validation", func(t *testing.T) {
		sv := MakeValues()
		require.Error(t, fA.Set(sv, -1))
		require.Error(t, i2A.Set(sv, 0))
		require.Error(t, fracA.Set(sv, 1.5))
		require.NoError(t, fracA.Set(sv, 0.5))
		require.Equal(t, 0.5, fracA.Get(sv))
	})
}

func TestLoadYAML(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		sv := MakeValues()
		err := LoadYAML(ctx, sv, strings.NewReader(`
bool.t: false
i.1: 42
f: 0.25
zzz: 64KiB
e: BAR
str.foo: hello
`))
		require.NoError(t, err)
		require.False(t, boolTA.Get(sv))
		require.Equal(t, int64(42), i1A.Get(sv))
		require.Equal(t, 0.25, fA.Get(sv))
		require.Equal(t, int64(64<<10), byteSize.Get(sv))
		require.Equal(t, "64 KiB", byteSize.String(sv))
		require.Equal(t, int64(2), enumA.Get(sv))
		require.Equal(t, "bar", enumA.String(sv))
		require.Equal(t, "hello", strFooA.Get(sv))
	})

	t.Run("errors leave values untouched", func(t *testing.T) {
		for _, doc := range []string{
			"nope: 1",
			"i.2: 0",
			"f: abc",
			"e: baz",
			"i.1: [1, 2]",
			"zzz: -1",
		} {
			sv := MakeValues()
			i1A.Override(ctx, sv, 3)
			require.Error(t, LoadYAML(ctx, sv, strings.NewReader("i.1: 9\n"+doc)), doc)
			require.Equal(t, int64(3), i1A.Get(sv), doc)
		}
	})
}

func TestKeysSorted(t *testing.T) {
	defer TestingSaveRegistry()()
	_ = RegisterBoolSetting(ClusterWide, "zzzz.last", "", true)
	_ = RegisterBoolSetting(ClusterWide, "aa.first", "", true)
	keys := Keys()
	require.Equal(t, InternalKey("aa.first"), keys[0])
	require.Equal(t, InternalKey("zzzz.last"), keys[len(keys)-1])
	require.Panics(t, func() { RegisterBoolSetting(ClusterWide, "aa.first", "", true) })
}
