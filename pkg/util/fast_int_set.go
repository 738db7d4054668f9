// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package util

import (
	"bytes"
	"fmt"
	"math/bits"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// smallCutoff is the size of the small bitmap.
const smallCutoff = 64

// FastIntSet keeps track of a set of integers. It does not perform any
// allocations when the values are small. It is not thread-safe.
type FastIntSet struct {
	small uint64
	large map[int]struct{}
}

// MakeFastIntSet returns a set initialized with the given values.
func MakeFastIntSet(vals ...int) FastIntSet {
	var res FastIntSet
	for _, v := range vals {
		res.Add(v)
	}
	return res
}

func fitsSmall(i int) bool { return i >= 0 && i < smallCutoff }

// Add adds a value to the set. No-op if the value is already in the set.
func (s *FastIntSet) Add(i int) {
	if fitsSmall(i) {
		s.small |= 1 << uint(i)
		return
	}
	if s.large == nil {
		s.large = make(map[int]struct{})
	}
	s.large[i] = struct{}{}
}

// AddRange adds values 'from' up to 'to' (inclusively) to the set.
func (s *FastIntSet) AddRange(from, to int) {
	for i := from; i <= to; i++ {
		s.Add(i)
	}
}

// Remove removes a value from the set. No-op if the value is not in the set.
func (s *FastIntSet) Remove(i int) {
	if fitsSmall(i) {
		s.small &^= 1 << uint(i)
		return
	}
	delete(s.large, i)
}

// Contains returns true if the set contains the value.
func (s FastIntSet) Contains(i int) bool {
	if fitsSmall(i) {
		return s.small&(1<<uint(i)) != 0
	}
	_, ok := s.large[i]
	return ok
}

// Empty returns true if the set is empty.
func (s FastIntSet) Empty() bool {
	return s.small == 0 && len(s.large) == 0
}

// Len returns the number of the elements in the set.
func (s FastIntSet) Len() int {
	return bits.OnesCount64(s.small) + len(s.large)
}

// Ordered returns a slice with all the integers in the set, in increasing
// order.
func (s FastIntSet) Ordered() []int {
	if s.Empty() {
		return nil
	}
	res := make([]int, 0, s.Len())
	for w := s.small; w != 0; w &= w - 1 {
		res = append(res, bits.TrailingZeros64(w))
	}
	if len(s.large) > 0 {
		large := maps.Keys(s.large)
		res = append(res, large...)
		slices.Sort(res)
	}
	return res
}

// Next returns the first value in the set which is >= startVal. If there is
// no value, the second return value is false.
func (s FastIntSet) Next(startVal int) (int, bool) {
	for _, v := range s.Ordered() {
		if v >= startVal {
			return v, true
		}
	}
	return 0, false
}

// ForEach calls a function for each value in the set (in increasing order).
func (s FastIntSet) ForEach(f func(i int)) {
	for _, v := range s.Ordered() {
		f(v)
	}
}

// Copy returns a copy of s which can be modified independently.
func (s FastIntSet) Copy() FastIntSet {
	c := FastIntSet{small: s.small}
	if len(s.large) > 0 {
		c.large = maps.Clone(s.large)
	}
	return c
}

// UnionWith adds all the elements from rhs to this set.
func (s *FastIntSet) UnionWith(rhs FastIntSet) {
	s.small |= rhs.small
	for k := range rhs.large {
		s.Add(k)
	}
}

// Intersects returns true if s has any elements in common with rhs.
func (s FastIntSet) Intersects(rhs FastIntSet) bool {
	if s.small&rhs.small != 0 {
		return true
	}
	for k := range s.large {
		if _, ok := rhs.large[k]; ok {
			return true
		}
	}
	return false
}

// Equals returns true if the two sets are identical.
func (s FastIntSet) Equals(rhs FastIntSet) bool {
	if s.small != rhs.small || len(s.large) != len(rhs.large) {
		return false
	}
	for k := range s.large {
		if _, ok := rhs.large[k]; !ok {
			return false
		}
	}
	return true
}

// SubsetOf returns true if rhs contains all the elements in s.
func (s FastIntSet) SubsetOf(rhs FastIntSet) bool {
	if s.small&^rhs.small != 0 {
		return false
	}
	for k := range s.large {
		if _, ok := rhs.large[k]; !ok {
			return false
		}
	}
	return true
}

// String returns a list representation of elements. Sequential runs of positive
// numbers are shown as ranges. For example, for the set {0, 1, 2, 5, 6, 10},
// the output is "(0-2,5,6,10)".
func (s FastIntSet) String() string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	appendRange := func(start, end int) {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		if start == end {
			fmt.Fprintf(&buf, "%d", start)
		} else if start+1 == end {
			fmt.Fprintf(&buf, "%d,%d", start, end)
		} else {
			fmt.Fprintf(&buf, "%d-%d", start, end)
		}
	}
	rangeStart, rangeEnd := -1, -1
	s.ForEach(func(i int) {
		if i < 0 {
			appendRange(i, i)
			return
		}
		if rangeStart != -1 && rangeEnd == i-1 {
			rangeEnd = i
		} else {
			if rangeStart != -1 {
				appendRange(rangeStart, rangeEnd)
			}
			rangeStart, rangeEnd = i, i
		}
	})
	if rangeStart != -1 {
		appendRange(rangeStart, rangeEnd)
	}
	buf.WriteByte(')')
	return buf.String()
}
