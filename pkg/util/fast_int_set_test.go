// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package util

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

func TestFastIntSet(t *testing.T) {
	for _, mVal := range []int{1, 8, 30, smallCutoff, 2 * smallCutoff, 4 * smallCutoff} {
		m := mVal
		t.Run(fmt.Sprintf("%d", m), func(t *testing.T) {
			t.Parallel()
			rng := rand.New(rand.NewSource(int64(m)))
			in := make([]bool, m)
			forEachRes := make([]bool, m)

			var s FastIntSet
			for i := 0; i < 1000; i++ {
				v := rng.Intn(m)
				if rng.Intn(2) == 0 {
					in[v] = true
					s.Add(v)
				} else {
					in[v] = false
					s.Remove(v)
				}
				empty := true
				count := 0
				for j := 0; j < m; j++ {
					empty = empty && !in[j]
					if in[j] {
						count++
					}
					if in[j] != s.Contains(j) {
						t.Fatalf("incorrect result for Contains(%d), expected %t", j, in[j])
					}
				}
				if empty != s.Empty() {
					t.Fatalf("incorrect result for Empty(), expected %t", empty)
				}
				if count != s.Len() {
					t.Fatalf("incorrect result for Len(), expected %d", count)
				}
				for j := range forEachRes {
					forEachRes[j] = false
				}
				s.ForEach(func(j int) {
					forEachRes[j] = true
				})
				for j := 0; j < m; j++ {
					if in[j] != forEachRes[j] {
						t.Fatalf("incorrect ForEachResult for %d (%t, expected %t)", j, forEachRes[j], in[j])
					}
				}
				// Cross-check Ordered and Next().
				var vals []int
				for i, ok := s.Next(0); ok; i, ok = s.Next(i + 1) {
					vals = append(vals, i)
				}
				if o := s.Ordered(); !reflect.DeepEqual(vals, o) {
					t.Fatalf("set built with Next doesn't match Ordered: %v vs %v", vals, o)
				}
				s2 := s.Copy()
				if !s.Equals(s2) || !s2.Equals(s) {
					t.Fatalf("expected equality: %v, %v", s, s2)
				}
				if col, ok := s2.Next(0); ok {
					s2.Remove(col)
					if s.Equals(s2) || !s2.SubsetOf(s) {
						t.Fatalf("unexpected equality: %v, %v", s, s2)
					}
				}
			}
		})
	}
}

func TestFastIntSetString(t *testing.T) {
	testCases := []struct {
		vals []int
		exp  string
	}{
		{nil, "()"},
		{[]int{-5, -1, 0, 1, 2, 5, 6, 10, 100}, "(-5,-1,0-2,5,6,10,100)"},
	}
	for i, tc := range testCases {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			s := MakeFastIntSet(tc.vals...)
			if str := s.String(); str != tc.exp {
				t.Errorf("expected %s, got %s", tc.exp, str)
			}
		})
	}
}

func TestFastIntSetOps(t *testing.T) {
	a := MakeFastIntSet(1, 2, 70)
	b := MakeFastIntSet(70, 80)
	if !a.Intersects(b) {
		t.Fatal("expected intersection")
	}
	a.UnionWith(b)
	if exp := "(1,2,70,80)"; a.String() != exp {
		t.Fatalf("expected %s, got %s", exp, a.String())
	}
	var r FastIntSet
	r.AddRange(3, 5)
	if r.Intersects(b) || r.Len() != 3 {
		t.Fatalf("unexpected %s", r.String())
	}
}
