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
)

// PairwiseDistancePropagator examines pairs of present boxes. When the two
// boxes certainly overlap on one axis, the no-overlap constraint forces them
// apart on the other axis, and when both axes certainly overlap the state is
// a conflict. Overlap on an axis is certain either from the current bounds
// or from recorded level-zero distance relations, which lets this propagator
// fire before any bound moved.
//
// The candidate pair list is rebuilt only when the relation repository
// changed or the search came back to level zero. With few boxes all pairs
// are candidates; otherwise only pairs connected by a relation.
type PairwiseDistancePropagator struct {
	helper    *NoOverlap2DConstraintHelper
	trail     *Trail
	relations *BinaryRelationRepository

	pairs           [][2]int
	pairsBuilt      bool
	cachedTimestamp int64
	cachedEpoch     uint64
}

// NewPairwiseDistancePropagator returns a propagator over the helper's
// boxes, reading distance relations from the repository.
func NewPairwiseDistancePropagator(helper *NoOverlap2DConstraintHelper, trail *Trail, relations *BinaryRelationRepository) *PairwiseDistancePropagator {
	return &PairwiseDistancePropagator{helper: helper, trail: trail, relations: relations}
}

// Propagate implements Propagator.
func (p *PairwiseDistancePropagator) Propagate() bool {
	h := p.helper
	if !h.SynchronizeAndSetDirection(true, true, false) {
		return false
	}
	p.rebuildPairsIfNeeded()
	for _, pair := range p.pairs {
		i, j := pair[0], pair[1]
		if !h.IsPresent(i) || !h.IsPresent(j) {
			continue
		}
		if !p.propagatePair(i, j) {
			return false
		}
	}
	return true
}

func (p *PairwiseDistancePropagator) rebuildPairsIfNeeded() {
	atLevelZero := p.trail.CurrentDecisionLevel() == 0
	if p.pairsBuilt && p.cachedTimestamp == p.relations.Timestamp() &&
		!(atLevelZero && p.cachedEpoch != p.trail.Epoch()) {
		return
	}
	p.pairs = p.pairs[:0]
	n := p.helper.NumBoxes()
	if n <= maxPairwiseBoxes {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				p.pairs = append(p.pairs, [2]int{i, j})
			}
		}
	} else {
		p.pairs = p.relationLinkedPairs()
	}
	p.pairsBuilt = true
	p.cachedTimestamp = p.relations.Timestamp()
	p.cachedEpoch = p.trail.Epoch()
}

// relationLinkedPairs returns the box pairs with some recorded relation
// between their axis variables.
func (p *PairwiseDistancePropagator) relationLinkedPairs() [][2]int {
	varToBoxes := map[IntegerVariable][]int{}
	addVar := func(a AffineExpression, b int) {
		if a.IsConstant() {
			return
		}
		v := a.Var &^ 1
		boxes := varToBoxes[v]
		if len(boxes) == 0 || boxes[len(boxes)-1] != b {
			varToBoxes[v] = append(boxes, b)
		}
	}
	for _, axis := range p.helper.axes {
		for b := 0; b < axis.NumTasks(); b++ {
			addVar(axis.fwdStarts[b], b)
			addVar(axis.fwdEnds[b], b)
		}
	}
	seen := map[[2]int]bool{}
	var pairs [][2]int
	for _, rel := range p.relations.Relations() {
		for _, i := range varToBoxes[rel.A.Var&^1] {
			for _, j := range varToBoxes[rel.B.Var&^1] {
				if i == j {
					continue
				}
				key := [2]int{min(i, j), max(i, j)}
				if !seen[key] {
					seen[key] = true
					pairs = append(pairs, key)
				}
			}
		}
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a][0] != pairs[b][0] {
			return pairs[a][0] < pairs[b][0]
		}
		return pairs[a][1] < pairs[b][1]
	})
	return pairs
}

func (p *PairwiseDistancePropagator) propagatePair(i, j int) bool {
	h := p.helper
	xCertain, xReason := p.axisOverlapCertain(h.X(), i, j)
	yCertain, yReason := p.axisOverlapCertain(h.Y(), i, j)
	switch {
	case xCertain && yCertain:
		var reason Reason
		reason.Append(xReason)
		reason.Append(yReason)
		return h.PropagateRelativePosition(i, j, PairwiseConflict, reason)
	case xCertain:
		// The boxes must separate on y.
		forcedIJ, rIJ := p.forcedAfter(h.Y(), i, j)
		forcedJI, rJI := p.forcedAfter(h.Y(), j, i)
		if forcedIJ {
			// i cannot fit below j, so it must be above.
			base := xReason
			base.Append(rIJ)
			return h.PropagateRelativePosition(i, j, FirstAboveSecond, base)
		}
		if forcedJI {
			base := xReason
			base.Append(rJI)
			return h.PropagateRelativePosition(i, j, FirstBelowSecond, base)
		}
	case yCertain:
		// The boxes must separate on x.
		forcedIJ, rIJ := p.forcedAfter(h.X(), i, j)
		forcedJI, rJI := p.forcedAfter(h.X(), j, i)
		if forcedIJ {
			base := yReason
			base.Append(rIJ)
			return h.PropagateRelativePosition(i, j, FirstRightOfSecond, base)
		}
		if forcedJI {
			base := yReason
			base.Append(rJI)
			return h.PropagateRelativePosition(i, j, FirstLeftOfSecond, base)
		}
	}
	return true
}

// axisOverlapCertain reports whether the two tasks necessarily overlap on
// the axis: neither can end at or before the other starts.
func (p *PairwiseDistancePropagator) axisOverlapCertain(axis *SchedulingConstraintHelper, i, j int) (bool, Reason) {
	certainIJ, rIJ := p.forcedAfter(axis, i, j)
	if !certainIJ {
		return false, Reason{}
	}
	certainJI, rJI := p.forcedAfter(axis, j, i)
	if !certainJI {
		return false, Reason{}
	}
	rIJ.Append(rJI)
	return true, rIJ
}

// forcedAfter reports whether `end(a) <= start(b)` is impossible on the
// axis, with the bound facts proving it. A level-zero distance relation
// `start(b) - end(a) <= k` with k < 0 proves it without any fact.
func (p *PairwiseDistancePropagator) forcedAfter(axis *SchedulingConstraintHelper, a, b int) (bool, Reason) {
	if k, ok := p.relations.UpperBound(axis.starts[b], axis.ends[a]); ok && k < 0 {
		return true, Reason{}
	}
	if axis.EndMin(a) > axis.StartMax(b) {
		var r Reason
		axis.AddEndMinReason(&r, a, axis.EndMin(a))
		axis.AddStartMaxReason(&r, b, axis.StartMax(b))
		return true, r
	}
	return false, Reason{}
}
