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

package sat

import (
	"fmt"
	"sort"
)

// Rectangle is an axis-aligned box occupying the half-open cell region
// [XMin,XMax) x [YMin,YMax). Degenerate rectangles (zero width or height)
// are representable and appear as mandatory regions of exactly-constrained
// boxes.
type Rectangle struct {
	XMin, XMax int64
	YMin, YMax int64
}

// SizeX returns the width, capped.
func (r Rectangle) SizeX() int64 { return CapSub(r.XMax, r.XMin) }

// SizeY returns the height, capped.
func (r Rectangle) SizeY() int64 { return CapSub(r.YMax, r.YMin) }

// Area returns the capped area of the rectangle.
func (r Rectangle) Area() int64 { return CapProd(r.SizeX(), r.SizeY()) }

// IsDisjoint returns true when the two rectangles do not overlap. Touching
// rectangles are disjoint. The closed comparisons make degenerate rectangles
// behave as required: a zero-width segment conflicts with another region only
// when it lies strictly inside its horizontal extent, and two aligned
// segments never conflict with each other.
func (r Rectangle) IsDisjoint(other Rectangle) bool {
	return r.XMax <= other.XMin || other.XMax <= r.XMin ||
		r.YMax <= other.YMin || other.YMax <= r.YMin
}

// Intersect returns the common region of the two rectangles, and false when
// they are disjoint.
func (r Rectangle) Intersect(other Rectangle) (Rectangle, bool) {
	if r.IsDisjoint(other) {
		return Rectangle{}, false
	}
	return Rectangle{
		XMin: max(r.XMin, other.XMin),
		XMax: min(r.XMax, other.XMax),
		YMin: max(r.YMin, other.YMin),
		YMax: min(r.YMax, other.YMax),
	}, true
}

// Union returns the smallest rectangle containing both.
func (r Rectangle) Union(other Rectangle) Rectangle {
	return Rectangle{
		XMin: min(r.XMin, other.XMin),
		XMax: max(r.XMax, other.XMax),
		YMin: min(r.YMin, other.YMin),
		YMax: max(r.YMax, other.YMax),
	}
}

func (r Rectangle) String() string {
	return fmt.Sprintf("[%d,%d)x[%d,%d)", r.XMin, r.XMax, r.YMin, r.YMax)
}

// RectangleInRange is the placement-range snapshot of one box: the box has
// fixed sizes XSize/YSize and must lie inside BoundingArea. The snapshot is
// comparable, which the incremental propagators use to detect boxes whose
// bounds changed between rounds. Requires XSize <= BoundingArea.SizeX() and
// YSize <= BoundingArea.SizeY().
type RectangleInRange struct {
	BoxIndex     int32
	BoundingArea Rectangle
	XSize, YSize int64
}

// MandatoryRegion returns the region covered by every possible placement of
// the box, and false when no such region exists. The region is
// [startMax,endMin) on each axis and may be degenerate.
func (r RectangleInRange) MandatoryRegion() (Rectangle, bool) {
	xStartMax := CapSub(r.BoundingArea.XMax, r.XSize)
	xEndMin := CapAdd(r.BoundingArea.XMin, r.XSize)
	yStartMax := CapSub(r.BoundingArea.YMax, r.YSize)
	yEndMin := CapAdd(r.BoundingArea.YMin, r.YSize)
	if xStartMax > xEndMin || yStartMax > yEndMin {
		return Rectangle{}, false
	}
	return Rectangle{XMin: xStartMax, XMax: xEndMin, YMin: yStartMax, YMax: yEndMin}, true
}

// VariableSizeInterval is the one-axis bound snapshot of a box whose size is
// not necessarily fixed.
type VariableSizeInterval struct {
	StartMin, StartMax int64
	EndMin, EndMax     int64
}

// MandatoryPart returns the [StartMax,EndMin) segment every placement covers,
// and false when it is empty.
func (v VariableSizeInterval) MandatoryPart() (lo, hi int64, ok bool) {
	if v.StartMax > v.EndMin {
		return 0, 0, false
	}
	return v.StartMax, v.EndMin, true
}

// ItemWithVariableSize is the two-axis bound snapshot of one box.
type ItemWithVariableSize struct {
	Index int32
	X, Y  VariableSizeInterval
}

// MandatoryRegion returns the region covered by every placement of the item,
// and false when it is empty on either axis.
func (it ItemWithVariableSize) MandatoryRegion() (Rectangle, bool) {
	xLo, xHi, ok := it.X.MandatoryPart()
	if !ok {
		return Rectangle{}, false
	}
	yLo, yHi, ok := it.Y.MandatoryPart()
	if !ok {
		return Rectangle{}, false
	}
	return Rectangle{XMin: xLo, XMax: xHi, YMin: yLo, YMax: yHi}, true
}

// Sweep events, ordered so that touching rectangles never coexist in the
// active set: at equal x we first retire rectangles ending there, then run
// the point checks of degenerate rectangles, then admit rectangles starting
// there. Degenerate rectangles only ever generate checks, never entries in
// the y-ordered active set, since ties on YMin would break the
// neighbor-check argument.
const (
	sweepRemove = iota
	sweepProbe
	sweepInsert
)

type sweepEvent struct {
	x    int64
	kind int8
	rect int
}

// FindOnePairwiseIntersection returns the indices of two overlapping
// rectangles, or false when all rectangles are pairwise disjoint. It runs a
// left-to-right sweep: positive-area rectangles live in a y-ordered active
// set while the sweep line crosses their x extent, and since the actives are
// pairwise disjoint whenever the sweep is still running, a new rectangle can
// only overlap its two y-neighbors. Zero-width rectangles and points are
// checked against the actives at their single x; zero-height rectangles are
// tracked in a separate ordered list of y values so that crossings with
// zero-width rectangles are found too.
func FindOnePairwiseIntersection(rects []Rectangle) (int, int, bool) {
	events := make([]sweepEvent, 0, 2*len(rects))
	for i, r := range rects {
		zeroW := r.XMin >= r.XMax
		zeroH := r.YMin >= r.YMax
		switch {
		case zeroW:
			// Includes points. A zero-width rectangle only overlaps
			// rectangles whose x extent strictly straddles it.
			events = append(events, sweepEvent{x: r.XMin, kind: sweepProbe, rect: i})
		case zeroH:
			events = append(events, sweepEvent{x: r.XMin, kind: sweepInsert, rect: i})
			events = append(events, sweepEvent{x: r.XMax, kind: sweepRemove, rect: i})
		default:
			events = append(events, sweepEvent{x: r.XMin, kind: sweepInsert, rect: i})
			events = append(events, sweepEvent{x: r.XMax, kind: sweepRemove, rect: i})
		}
	}
	sort.Slice(events, func(a, b int) bool {
		if events[a].x != events[b].x {
			return events[a].x < events[b].x
		}
		if events[a].kind != events[b].kind {
			return events[a].kind < events[b].kind
		}
		// Deterministic order within one event class, so the reported pair
		// does not depend on the sort implementation.
		return events[a].rect < events[b].rect
	})

	s := sweepState{rects: rects}
	for _, ev := range events {
		r := rects[ev.rect]
		switch ev.kind {
		case sweepRemove:
			if r.YMin >= r.YMax {
				s.removeFlat(ev.rect)
			} else {
				s.removeActive(ev.rect)
			}
		case sweepProbe:
			if j, ok := s.probe(r); ok {
				return ev.rect, j, true
			}
		case sweepInsert:
			if r.YMin >= r.YMax {
				if j, ok := s.insertFlat(ev.rect); ok {
					return ev.rect, j, true
				}
			} else if j, ok := s.insertActive(ev.rect); ok {
				return ev.rect, j, true
			}
		}
	}
	return 0, 0, false
}

// sweepState holds the rectangles currently crossed by the sweep line.
// active is sorted by YMin and only contains positive-area rectangles, so
// while no overlap has been found it is a chain: each member ends at or
// before the next one starts. flat tracks zero-height rectangles by their y
// line.
type sweepState struct {
	rects  []Rectangle
	active []int
	flat   []int
}

func (s *sweepState) insertActive(i int) (int, bool) {
	r := s.rects[i]
	p := sort.Search(len(s.active), func(k int) bool {
		return s.rects[s.active[k]].YMin > r.YMin
	})
	if p > 0 {
		pred := s.active[p-1]
		if s.rects[pred].YMax > r.YMin {
			return pred, true
		}
	}
	if p < len(s.active) {
		succ := s.active[p]
		if r.YMax > s.rects[succ].YMin {
			return succ, true
		}
	}
	if j, ok := s.flatInside(r.YMin, r.YMax); ok {
		return j, true
	}
	s.active = append(s.active, 0)
	copy(s.active[p+1:], s.active[p:])
	s.active[p] = i
	return 0, false
}

func (s *sweepState) removeActive(i int) {
	r := s.rects[i]
	p := sort.Search(len(s.active), func(k int) bool {
		return s.rects[s.active[k]].YMin >= r.YMin
	})
	for ; p < len(s.active); p++ {
		if s.active[p] == i {
			s.active = append(s.active[:p], s.active[p+1:]...)
			return
		}
	}
}

func (s *sweepState) insertFlat(i int) (int, bool) {
	y := s.rects[i].YMin
	// A zero-height rectangle overlaps an active rectangle only when its y
	// line is strictly inside the active's y extent.
	if j, ok := s.activeStrictlyAround(y); ok {
		return j, true
	}
	p := sort.Search(len(s.flat), func(k int) bool {
		return s.rects[s.flat[k]].YMin > y
	})
	s.flat = append(s.flat, 0)
	copy(s.flat[p+1:], s.flat[p:])
	s.flat[p] = i
	return 0, false
}

func (s *sweepState) removeFlat(i int) {
	y := s.rects[i].YMin
	p := sort.Search(len(s.flat), func(k int) bool {
		return s.rects[s.flat[k]].YMin >= y
	})
	for ; p < len(s.flat); p++ {
		if s.flat[p] == i {
			s.flat = append(s.flat[:p], s.flat[p+1:]...)
			return
		}
	}
}

// probe checks a zero-width rectangle (or point) against the current
// actives and flats.
func (s *sweepState) probe(r Rectangle) (int, bool) {
	if r.YMin >= r.YMax {
		// A point overlaps only a rectangle it is strictly inside.
		return s.activeStrictlyAround(r.YMin)
	}
	// The chain ordering means only the last active starting strictly below
	// r.YMax can reach into [YMin,YMax): every earlier active ends at or
	// before that one starts.
	p := sort.Search(len(s.active), func(k int) bool {
		return s.rects[s.active[k]].YMin >= r.YMax
	})
	if p > 0 {
		cand := s.active[p-1]
		if s.rects[cand].YMax > r.YMin {
			return cand, true
		}
	}
	if j, ok := s.flatInside(r.YMin, r.YMax); ok {
		return j, true
	}
	return 0, false
}

// activeStrictlyAround returns an active rectangle whose y extent strictly
// contains the line y, if any.
func (s *sweepState) activeStrictlyAround(y int64) (int, bool) {
	p := sort.Search(len(s.active), func(k int) bool {
		return s.rects[s.active[k]].YMin >= y
	})
	if p > 0 {
		cand := s.active[p-1]
		if s.rects[cand].YMax > y {
			return cand, true
		}
	}
	return 0, false
}

// flatInside returns a flat rectangle whose y line lies strictly inside
// (lo, hi), if any.
func (s *sweepState) flatInside(lo, hi int64) (int, bool) {
	p := sort.Search(len(s.flat), func(k int) bool {
		return s.rects[s.flat[k]].YMin > lo
	})
	if p < len(s.flat) {
		cand := s.flat[p]
		if s.rects[cand].YMin < hi {
			return cand, true
		}
	}
	return 0, false
}
