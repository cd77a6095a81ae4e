// Copyright 2024-2025 The boxsat Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cpmodel

import (
	"fmt"
	"math"
	"sort"
)

// ClosedInterval is the closed interval `[Start,End]`. An interval whose
// `Start` is greater than its `End` is empty.
type ClosedInterval struct {
	Start int64
	End   int64
}

// addClamped adds `delta` to `i`, clamping the result at math.MinInt64 and
// math.MaxInt64 on overflow. The two extreme values stand for an unbounded
// side and absorb any delta.
func addClamped(i, delta int64) int64 {
	if i == math.MinInt64 || i == math.MaxInt64 {
		return i
	}

	s := i + delta
	if delta < 0 && s > i {
		return math.MinInt64
	}
	if delta > 0 && s < i {
		return math.MaxInt64
	}

	return s
}

// Offset shifts both ends of the interval by `delta`. Ends equal to
// math.MinInt64 or math.MaxInt64 represent an unbounded side and are kept
// as is; everything else is clamped on overflow.
func (c ClosedInterval) Offset(delta int64) ClosedInterval {
	return ClosedInterval{addClamped(c.Start, delta), addClamped(c.End, delta)}
}

// Domain is a subset of `[MinInt64,MaxInt64]`, stored as a sorted list of
// disjoint, non-adjacent closed intervals. Operations stay efficient as long
// as the number of intervals stays small.
type Domain struct {
	intervals []ClosedInterval
}

// joinIntervals brings the interval list to canonical form: empty intervals
// are dropped, the rest are sorted, and consecutive intervals that overlap
// or touch (the second starts exactly one past the end of the first) are
// merged.
func (d *Domain) joinIntervals() {
	var itvs []ClosedInterval
	for _, v := range d.intervals {
		if v.Start <= v.End {
			itvs = append(itvs, v)
		}
	}
	d.intervals = itvs
	if len(d.intervals) == 0 {
		return
	}
	sort.Slice(d.intervals, func(i, j int) bool {
		if d.intervals[i].Start != d.intervals[j].Start {
			return d.intervals[i].Start < d.intervals[j].Start
		}
		return d.intervals[i].End < d.intervals[j].End
	})
	newIntervals := []ClosedInterval{d.intervals[0]}
	for i := 1; i < len(d.intervals); i++ {
		lastInt := &newIntervals[len(newIntervals)-1]
		if lastInt.End+1 >= d.intervals[i].Start {
			if lastInt.End < d.intervals[i].End {
				lastInt.End = d.intervals[i].End
			}
		} else {
			newIntervals = append(newIntervals, d.intervals[i])
		}
	}
	d.intervals = newIntervals
}

// NewEmptyDomain creates an empty Domain.
func NewEmptyDomain() Domain {
	return Domain{}
}

// NewSingleDomain creates the singleton domain `{val}`.
func NewSingleDomain(val int64) Domain {
	return Domain{[]ClosedInterval{{val, val}}}
}

// NewDomain creates the domain `[left,right]`. If `left > right`, the
// domain is empty.
func NewDomain(left, right int64) Domain {
	if left > right {
		return NewEmptyDomain()
	}
	return Domain{[]ClosedInterval{{left, right}}}
}

// FromValues creates the domain containing exactly `values`, which need not
// be sorted and may repeat.
func FromValues(values []int64) Domain {
	var d Domain
	for _, v := range values {
		d.intervals = append(d.intervals, ClosedInterval{v, v})
	}
	d.joinIntervals()
	return d
}

// FromIntervals creates the domain that is the union of the unordered
// `intervals`. Intervals whose start is greater than their end are empty
// and contribute nothing.
func FromIntervals(intervals []ClosedInterval) Domain {
	itvs := make([]ClosedInterval, len(intervals))
	copy(itvs, intervals)
	domain := Domain{itvs}
	domain.joinIntervals()
	return domain
}

// FromFlatIntervals creates a domain from a flattened list of interval
// bounds `[s0, e0, s1, e1, ...]`. Pairs with start greater than end are
// empty and contribute nothing. Returns an error if the length of `values`
// is odd.
func FromFlatIntervals(values []int64) (Domain, error) {
	if len(values) == 0 {
		return NewEmptyDomain(), nil
	}
	if len(values)%2 != 0 {
		return NewEmptyDomain(), fmt.Errorf("len(values)=%v must be a multiple of 2", len(values))
	}
	var intervals []ClosedInterval
	for i := 1; i < len(values); i += 2 {
		intervals = append(intervals, ClosedInterval{values[i-1], values[i]})
	}
	d := Domain{intervals}
	d.joinIntervals()
	return d, nil
}

// FlattenedIntervals returns the interval bounds of the domain as a flat
// list. The domain `[0,2][5,5][9,10]` flattens to `[0,2,5,5,9,10]`.
func (d Domain) FlattenedIntervals() []int64 {
	var result []int64
	for _, i := range d.intervals {
		result = append(result, i.Start, i.End)
	}
	return result
}

// IsEmpty returns true if the domain contains no value.
func (d Domain) IsEmpty() bool {
	return len(d.intervals) == 0
}

// Min returns the minimum value of the domain, and false if the domain is
// empty.
func (d Domain) Min() (int64, bool) {
	if len(d.intervals) == 0 {
		return 0, false
	}
	return d.intervals[0].Start, true
}

// Max returns the maximum value of the domain, and false if the domain is
// empty.
func (d Domain) Max() (int64, bool) {
	if len(d.intervals) == 0 {
		return 0, false
	}
	return d.intervals[len(d.intervals)-1].End, true
}

// Contains returns true if `val` is in the domain.
func (d Domain) Contains(val int64) bool {
	i := sort.Search(len(d.intervals), func(i int) bool {
		return d.intervals[i].End >= val
	})
	return i < len(d.intervals) && d.intervals[i].Start <= val
}

// IntersectWith returns the intersection of the two domains.
func (d Domain) IntersectWith(other Domain) Domain {
	var result Domain
	i, j := 0, 0
	for i < len(d.intervals) && j < len(other.intervals) {
		a, b := d.intervals[i], other.intervals[j]
		lo := max(a.Start, b.Start)
		hi := min(a.End, b.End)
		if lo <= hi {
			result.intervals = append(result.intervals, ClosedInterval{lo, hi})
		}
		if a.End < b.End {
			i++
		} else {
			j++
		}
	}
	return result
}

// valueAtOrAfter returns the smallest domain value that is >= val, and
// false if there is none.
func (d Domain) valueAtOrAfter(val int64) (int64, bool) {
	i := sort.Search(len(d.intervals), func(i int) bool {
		return d.intervals[i].End >= val
	})
	if i == len(d.intervals) {
		return 0, false
	}
	return max(val, d.intervals[i].Start), true
}

// valueAtOrBefore returns the largest domain value that is <= val, and
// false if there is none.
func (d Domain) valueAtOrBefore(val int64) (int64, bool) {
	i := sort.Search(len(d.intervals), func(i int) bool {
		return d.intervals[i].Start > val
	})
	if i == 0 {
		return 0, false
	}
	return min(val, d.intervals[i-1].End), true
}
