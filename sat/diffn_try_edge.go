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
	"sort"

	"github.com/boxsat/boxsat/setcover"
)

// TryEdgeRectanglePropagator raises the start minimum of each present box on
// one axis by proving that every placement below the new bound would overlap
// the mandatory region of another present box. Four instances cover the four
// edges of the packing: the x axis in both time directions, and both again
// with the axes swapped.
//
// The proof only tries candidate coordinates: the box's own minimum and the
// right (resp. top) edges of the other mandatory regions. Any placement can
// be slid left and down onto such a candidate without creating new overlaps,
// so a blocked candidate grid means every real placement is blocked too.
//
// Explanations name a subset of blocking boxes covering every rejected
// candidate position; the subset is minimized with the setcover heuristics.
//
// The propagator keeps the last range snapshot of every box and a witness
// placement for boxes that fit. A box is re-examined only when its own range
// changed or its witness now touches a mandatory region that changed, so
// quiet rounds stay cheap. One pass may enable further pushes of its own, so
// it registers as not reaching a fixed point in one pass.
type TryEdgeRectanglePropagator struct {
	helper   *NoOverlap2DConstraintHelper
	trail    *Trail
	xForward bool
	swapAxes bool

	hasCache          bool
	cachedActive      []bool
	cachedRanges      []RectangleInRange
	cachedPlacement   []Rectangle
	cachedPlacementOK []bool

	active           []bool
	ranges           []RectangleInRange
	mandatory        []Rectangle
	mandatoryOK      []bool
	changedMandatory []Rectangle
	potentialX       []int64
	potentialY       []int64
	rejected         []rejectedPosition
	blockerScratch   []int
}

type rejectedPosition struct {
	x, y     int64
	blockers []int
}

// NewTryEdgeRectanglePropagator returns one direction variant. xForward
// selects the time direction of the pushed axis and swapAxes selects which
// original axis is pushed.
func NewTryEdgeRectanglePropagator(helper *NoOverlap2DConstraintHelper, trail *Trail, xForward, swapAxes bool) *TryEdgeRectanglePropagator {
	return &TryEdgeRectanglePropagator{
		helper:   helper,
		trail:    trail,
		xForward: xForward,
		swapAxes: swapAxes,
	}
}

func (p *TryEdgeRectanglePropagator) ensureSize(n int) {
	if len(p.active) == n {
		return
	}
	p.cachedActive = make([]bool, n)
	p.cachedRanges = make([]RectangleInRange, n)
	p.cachedPlacement = make([]Rectangle, n)
	p.cachedPlacementOK = make([]bool, n)
	p.active = make([]bool, n)
	p.ranges = make([]RectangleInRange, n)
	p.mandatory = make([]Rectangle, n)
	p.mandatoryOK = make([]bool, n)
	p.hasCache = false
}

// Propagate implements Propagator.
func (p *TryEdgeRectanglePropagator) Propagate() bool {
	h := p.helper
	if !h.SynchronizeAndSetDirection(p.xForward, true, p.swapAxes) {
		return false
	}
	n := h.NumBoxes()
	p.ensureSize(n)

	p.snapshotBoxes(n)

	changed := 0
	p.changedMandatory = p.changedMandatory[:0]
	for b := 0; b < n; b++ {
		wasActive := p.hasCache && p.cachedActive[b]
		if p.active[b] == wasActive && (!p.active[b] || p.ranges[b] == p.cachedRanges[b]) {
			continue
		}
		changed++
		if p.active[b] && p.mandatoryOK[b] {
			p.changedMandatory = append(p.changedMandatory, p.mandatory[b])
		}
	}
	if changed == 0 {
		return true
	}
	if changed > maxTryEdgeChangedItems {
		// Too much moved at once; give up on this round but keep the
		// snapshot so the next one diffs against fresh state. The witnesses
		// were not re-checked, so drop them.
		p.storeCache(n)
		for b := 0; b < n; b++ {
			p.cachedPlacementOK[b] = false
		}
		return true
	}

	p.collectCandidates(n)

	type pendingPush struct {
		box     int
		newXMin int64
		reason  Reason
	}
	var pushes []pendingPush
	conflictRanges := []RectangleInRange(nil)

	for m := 0; m < n; m++ {
		if !p.active[m] {
			p.cachedPlacementOK[m] = false
			continue
		}
		if p.hasCache && p.cachedActive[m] && p.ranges[m] == p.cachedRanges[m] &&
			p.cachedPlacementOK[m] && p.placementStillFree(p.cachedPlacement[m]) {
			continue
		}
		placement, found := p.findPlacement(m)
		if !found {
			conflictRanges = p.explainFailure(m)
			// The boxes from m on were not checked against this round's
			// changes, so their witnesses go stale once the snapshot is
			// stored.
			for b := m; b < n; b++ {
				p.cachedPlacementOK[b] = false
			}
			break
		}
		p.cachedPlacement[m] = placement
		p.cachedPlacementOK[m] = true
		if placement.XMin > p.ranges[m].BoundingArea.XMin {
			var reason Reason
			h.AddRangeReason(&reason, p.ranges[m])
			for _, b := range p.minimalBlockers(placement.XMin) {
				h.AddRangeReason(&reason, p.ranges[b])
			}
			pushes = append(pushes, pendingPush{box: m, newXMin: placement.XMin, reason: reason})
		}
	}

	p.storeCache(n)
	if conflictRanges != nil {
		return h.ReportConflictFromInfeasibleBoxRanges(conflictRanges)
	}
	for _, push := range pushes {
		if !h.X().IncreaseStartMin(push.reason, push.box, push.newXMin) {
			return false
		}
	}
	return true
}

func (p *TryEdgeRectanglePropagator) storeCache(n int) {
	copy(p.cachedActive, p.active)
	copy(p.cachedRanges, p.ranges)
	p.hasCache = true
}

// snapshotBoxes captures the range and mandatory region of every box for
// this round. The helper must be synchronized.
func (p *TryEdgeRectanglePropagator) snapshotBoxes(n int) {
	h := p.helper
	for b := 0; b < n; b++ {
		p.active[b] = h.IsPresent(b)
		if p.active[b] {
			p.ranges[b] = h.GetItemRangeForSizeMin(b)
			p.mandatory[b], p.mandatoryOK[b] = p.ranges[b].MandatoryRegion()
		} else {
			p.ranges[b] = RectangleInRange{}
			p.mandatory[b], p.mandatoryOK[b] = Rectangle{}, false
		}
	}
}

// collectCandidates gathers the sorted candidate coordinates: the right and
// top edges of every mandatory region in the snapshot.
func (p *TryEdgeRectanglePropagator) collectCandidates(n int) {
	p.potentialX = p.potentialX[:0]
	p.potentialY = p.potentialY[:0]
	for b := 0; b < n; b++ {
		if p.active[b] && p.mandatoryOK[b] {
			p.potentialX = append(p.potentialX, p.mandatory[b].XMax)
			p.potentialY = append(p.potentialY, p.mandatory[b].YMax)
		}
	}
	sortDedupe(&p.potentialX)
	sortDedupe(&p.potentialY)
}

// placementStillFree reports whether the witness placement avoids every
// mandatory region that changed this round. Unchanged regions cannot touch
// it, since the witness was free when it was found.
func (p *TryEdgeRectanglePropagator) placementStillFree(placement Rectangle) bool {
	for _, region := range p.changedMandatory {
		if !placement.IsDisjoint(region) {
			return false
		}
	}
	return true
}

// findPlacement scans candidate positions in increasing x, then increasing
// y, and returns the first placement of box m that avoids every other
// mandatory region. Rejected positions and their blockers are recorded for
// the explanation. The box must not be placed below its own minimums, so
// those are the first candidates on both axes.
//
// Zero-width and zero-height boxes move like any other box: under the
// closed comparisons a degenerate rectangle strictly inside a mandatory
// region still overlaps it, so it cannot be slid through a wall.
func (p *TryEdgeRectanglePropagator) findPlacement(m int) (Rectangle, bool) {
	rng := p.ranges[m]
	xMin := rng.BoundingArea.XMin
	yMin := rng.BoundingArea.YMin
	xLast := CapSub(rng.BoundingArea.XMax, rng.XSize)
	yLast := CapSub(rng.BoundingArea.YMax, rng.YSize)
	p.rejected = p.rejected[:0]

	tryX := func(x int64) (Rectangle, bool) {
		tryY := func(y int64) (Rectangle, bool) {
			place := Rectangle{XMin: x, XMax: CapAdd(x, rng.XSize), YMin: y, YMax: CapAdd(y, rng.YSize)}
			blockers := p.blockersAt(place, m)
			if len(blockers) == 0 {
				return place, true
			}
			p.rejected = append(p.rejected, rejectedPosition{
				x: x, y: y,
				blockers: append([]int(nil), blockers...),
			})
			return Rectangle{}, false
		}
		if place, ok := tryY(yMin); ok {
			return place, true
		}
		for _, y := range p.potentialY {
			if y <= yMin || y > yLast {
				continue
			}
			if place, ok := tryY(y); ok {
				return place, true
			}
		}
		return Rectangle{}, false
	}

	if place, ok := tryX(xMin); ok {
		return place, true
	}
	for _, x := range p.potentialX {
		if x <= xMin || x > xLast {
			continue
		}
		if place, ok := tryX(x); ok {
			return place, true
		}
	}
	return Rectangle{}, false
}

// blockersAt returns the present boxes other than mover whose mandatory
// region overlaps the placement.
func (p *TryEdgeRectanglePropagator) blockersAt(place Rectangle, mover int) []int {
	p.blockerScratch = p.blockerScratch[:0]
	for b := range p.active {
		if b == mover || !p.active[b] || !p.mandatoryOK[b] {
			continue
		}
		if !place.IsDisjoint(p.mandatory[b]) {
			p.blockerScratch = append(p.blockerScratch, b)
		}
	}
	return p.blockerScratch
}

// minimalBlockers selects a small set of boxes covering every rejected
// position strictly left of newXMin, via set cover over the recorded
// blockers.
func (p *TryEdgeRectanglePropagator) minimalBlockers(newXMin int64) []int {
	return p.coverRejected(func(rej rejectedPosition) bool { return rej.x < newXMin })
}

// coverRejected runs set cover over the rejected positions selected by
// include: elements are positions, subsets are the blocking boxes.
func (p *TryEdgeRectanglePropagator) coverRejected(include func(rejectedPosition) bool) []int {
	elements := 0
	blockerElems := map[int][]int{}
	for _, rej := range p.rejected {
		if !include(rej) {
			continue
		}
		for _, b := range rej.blockers {
			blockerElems[b] = append(blockerElems[b], elements)
		}
		elements++
	}
	if elements == 0 {
		return nil
	}
	boxes := make([]int, 0, len(blockerElems))
	for b := range blockerElems {
		boxes = append(boxes, b)
	}
	sort.Ints(boxes)
	var model setcover.Model
	for _, b := range boxes {
		model.AddEmptySubset(1)
		for _, e := range blockerElems[b] {
			model.AddElementToLastSubset(e)
		}
	}
	sol, ok := model.SolveMinimal()
	if !ok {
		return boxes
	}
	chosen := make([]int, 0, len(boxes))
	for _, idx := range sol.Subsets() {
		chosen = append(chosen, boxes[idx])
	}
	return chosen
}

// explainFailure builds the range list proving box m fits nowhere: its own
// range plus a minimal blocker cover of every rejected position.
func (p *TryEdgeRectanglePropagator) explainFailure(m int) []RectangleInRange {
	out := []RectangleInRange{p.ranges[m]}
	for _, b := range p.coverRejected(func(rejectedPosition) bool { return true }) {
		out = append(out, p.ranges[b])
	}
	return out
}

func sortDedupe(vals *[]int64) {
	v := *vals
	sort.Slice(v, func(a, b int) bool { return v[a] < v[b] })
	out := v[:0]
	for i, x := range v {
		if i == 0 || x != v[i-1] {
			out = append(out, x)
		}
	}
	*vals = out
}
