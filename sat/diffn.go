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

// Package sat implements a propagation engine for placing axis-aligned
// rectangular boxes without overlap. Box coordinates are affine expressions
// over integer variables, boxes can be optional through presence literals,
// and every bound push carries an explanation the search can inspect after a
// conflict.
//
// The engine is cooperative and single-threaded: a Trail holds the current
// bounds, a GenericLiteralWatcher schedules the propagators, and every
// propagator runs on the caller's goroutine. Run several independent engines
// for parallelism.
package sat

import (
	"sort"
)

// maxTryEdgeChangedItems bounds the work of one placement-propagation round.
// When more boxes than this changed since the last round, the round is
// skipped; the next synchronization starts from the fresh state.
const maxTryEdgeChangedItems = 1000

// maxPairwiseBoxes bounds the quadratic pair scan of the distance
// propagator. With more boxes, only pairs connected by a recorded distance
// relation are examined.
const maxPairwiseBoxes = 100

// RegisterNoOverlap2D registers the propagators enforcing that the boxes of
// the helper never overlap pairwise: the mandatory-overlap check, four
// placement propagators (one per edge of the packing), and the pairwise
// distance propagator fed by relations.
func RegisterNoOverlap2D(helper *NoOverlap2DConstraintHelper, trail *Trail, watcher *GenericLiteralWatcher, relations *BinaryRelationRepository) {
	mandatory := &MandatoryOverlapPropagator{helper: helper}
	id := watcher.Register(mandatory)
	watcher.SetPropagatorPriority(id, 0)
	helper.axes[0].WatchAllTasks(watcher, id)
	helper.axes[1].WatchAllTasks(watcher, id)

	pairwise := NewPairwiseDistancePropagator(helper, trail, relations)
	id = watcher.Register(pairwise)
	watcher.SetPropagatorPriority(id, 1)
	helper.axes[0].WatchAllTasks(watcher, id)
	helper.axes[1].WatchAllTasks(watcher, id)

	for _, dir := range []struct {
		xForward bool
		swap     bool
	}{
		{xForward: true, swap: false},
		{xForward: false, swap: false},
		{xForward: true, swap: true},
		{xForward: false, swap: true},
	} {
		tryEdge := NewTryEdgeRectanglePropagator(helper, trail, dir.xForward, dir.swap)
		id = watcher.Register(tryEdge)
		watcher.SetPropagatorPriority(id, 2)
		watcher.NotifyThatPropagatorMayNotReachFixedPointInOnePass(id)
		helper.axes[0].WatchAllTasks(watcher, id)
		helper.axes[1].WatchAllTasks(watcher, id)
	}
}

// MandatoryOverlapPropagator reports a conflict as soon as the mandatory
// regions of two present boxes overlap. It never pushes bounds, so one pass
// always reaches its fixed point.
type MandatoryOverlapPropagator struct {
	helper *NoOverlap2DConstraintHelper

	regions []Rectangle
	boxOf   []int
}

// Propagate implements Propagator.
func (p *MandatoryOverlapPropagator) Propagate() bool {
	h := p.helper
	if !h.SynchronizeAndSetDirection(true, true, false) {
		return false
	}
	p.boxOf = p.boxOf[:0]
	for b := 0; b < h.NumBoxes(); b++ {
		if !h.IsPresent(b) {
			continue
		}
		if _, ok := h.GetMandatoryRegion(b); ok {
			p.boxOf = append(p.boxOf, b)
		}
	}
	// Largest end first, so the pair reported for a given state is stable
	// across rounds.
	sort.SliceStable(p.boxOf, func(a, b int) bool {
		return h.X().EndMax(p.boxOf[a]) > h.X().EndMax(p.boxOf[b])
	})
	p.regions = p.regions[:0]
	for _, b := range p.boxOf {
		region, _ := h.GetMandatoryRegion(b)
		p.regions = append(p.regions, region)
	}
	i, j, found := FindOnePairwiseIntersection(p.regions)
	if !found {
		return true
	}
	return h.ReportConflictFromTwoBoxes(p.boxOf[i], p.boxOf[j])
}
