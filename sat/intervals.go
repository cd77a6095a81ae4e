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

// IntervalDefinition describes one task on one axis: start, size and end as
// affine expressions tied together by `start + size = end`, and an optional
// presence literal. A NoLiteral presence means the task is always present.
type IntervalDefinition struct {
	Start, Size, End AffineExpression
	Presence         Literal
}

// SchedulingConstraintHelper serves one axis of a set of tasks. It caches
// the start/size/end bounds of every task so propagators read them in O(1),
// and rebuilds the caches only when the trail moved since the last
// synchronization. The time direction can be mirrored: in the backward view
// the start of a task is the negated end of its forward self, so propagation
// code written against start minimums also serves end maximums.
//
// All pushes go through the trail with a caller-built Reason. The helper
// never keeps reason state between pushes.
type SchedulingConstraintHelper struct {
	trail *Trail

	fwdStarts, fwdEnds []AffineExpression
	bwdStarts, bwdEnds []AffineExpression
	sizes              []AffineExpression
	presences          []Literal

	// Current view, aliasing the forward or backward arrays.
	starts, ends []AffineExpression
	forward      bool

	startMin, startMax []int64
	endMin, endMax     []int64
	sizeMin, sizeMax   []int64
	present, absent    []bool

	cachedEpoch    uint64
	cachedBounds   int
	cachedLiterals int
	cacheValid     bool
}

// NewSchedulingConstraintHelper builds a helper over the given tasks.
func NewSchedulingConstraintHelper(trail *Trail, tasks []IntervalDefinition) *SchedulingConstraintHelper {
	n := len(tasks)
	h := &SchedulingConstraintHelper{
		trail:     trail,
		fwdStarts: make([]AffineExpression, n),
		fwdEnds:   make([]AffineExpression, n),
		bwdStarts: make([]AffineExpression, n),
		bwdEnds:   make([]AffineExpression, n),
		sizes:     make([]AffineExpression, n),
		presences: make([]Literal, n),
		startMin:  make([]int64, n),
		startMax:  make([]int64, n),
		endMin:    make([]int64, n),
		endMax:    make([]int64, n),
		sizeMin:   make([]int64, n),
		sizeMax:   make([]int64, n),
		present:   make([]bool, n),
		absent:    make([]bool, n),
		forward:   true,
	}
	for i, task := range tasks {
		h.fwdStarts[i] = task.Start
		h.fwdEnds[i] = task.End
		h.bwdStarts[i] = task.End.Negated()
		h.bwdEnds[i] = task.Start.Negated()
		h.sizes[i] = task.Size
		h.presences[i] = task.Presence
	}
	h.starts = h.fwdStarts
	h.ends = h.fwdEnds
	return h
}

// NumTasks returns the number of tasks.
func (h *SchedulingConstraintHelper) NumTasks() int { return len(h.sizes) }

// CurrentDirectionIsForward reports the direction of the current view.
func (h *SchedulingConstraintHelper) CurrentDirectionIsForward() bool { return h.forward }

// SynchronizeAndSetTimeDirection points the view in the requested direction
// and refreshes the cached bounds from the trail if anything moved. It
// returns false after recording a conflict when some present task cannot fit
// between its own bounds.
func (h *SchedulingConstraintHelper) SynchronizeAndSetTimeDirection(forward bool) bool {
	if forward != h.forward {
		h.forward = forward
		if forward {
			h.starts, h.ends = h.fwdStarts, h.fwdEnds
		} else {
			h.starts, h.ends = h.bwdStarts, h.bwdEnds
		}
		h.cacheValid = false
	}
	if h.cacheValid &&
		h.cachedEpoch == h.trail.Epoch() &&
		h.cachedBounds == len(h.trail.boundTrail) &&
		h.cachedLiterals == len(h.trail.literalTrail) {
		return true
	}
	for t := range h.sizes {
		h.startMin[t] = h.trail.AffineLowerBound(h.starts[t])
		h.startMax[t] = h.trail.AffineUpperBound(h.starts[t])
		h.endMin[t] = h.trail.AffineLowerBound(h.ends[t])
		h.endMax[t] = h.trail.AffineUpperBound(h.ends[t])
		h.sizeMin[t] = h.trail.AffineLowerBound(h.sizes[t])
		h.sizeMax[t] = h.trail.AffineUpperBound(h.sizes[t])
		lit := h.presences[t]
		h.present[t] = lit == NoLiteral || h.trail.LiteralIsTrue(lit)
		h.absent[t] = lit != NoLiteral && h.trail.LiteralIsFalse(lit)
	}
	h.cacheValid = true
	h.cachedEpoch = h.trail.Epoch()
	h.cachedBounds = len(h.trail.boundTrail)
	h.cachedLiterals = len(h.trail.literalTrail)
	for t := range h.sizes {
		sum := CapAdd(h.startMin[t], h.sizeMin[t])
		if h.present[t] && !saturated(sum) && sum > h.endMax[t] {
			var reason Reason
			h.AddPresenceReason(&reason, t)
			h.AddStartMinReason(&reason, t, h.startMin[t])
			h.AddSizeMinReason(&reason, t, h.sizeMin[t])
			h.AddEndMaxReason(&reason, t, h.endMax[t])
			return h.trail.ReportConflict(reason)
		}
	}
	return true
}

// StartMin returns the cached lower bound of the start of t.
func (h *SchedulingConstraintHelper) StartMin(t int) int64 { return h.startMin[t] }

// StartMax returns the cached upper bound of the start of t.
func (h *SchedulingConstraintHelper) StartMax(t int) int64 { return h.startMax[t] }

// EndMin returns the cached lower bound of the end of t.
func (h *SchedulingConstraintHelper) EndMin(t int) int64 { return h.endMin[t] }

// EndMax returns the cached upper bound of the end of t.
func (h *SchedulingConstraintHelper) EndMax(t int) int64 { return h.endMax[t] }

// SizeMin returns the cached lower bound of the size of t.
func (h *SchedulingConstraintHelper) SizeMin(t int) int64 { return h.sizeMin[t] }

// SizeMax returns the cached upper bound of the size of t.
func (h *SchedulingConstraintHelper) SizeMax(t int) int64 { return h.sizeMax[t] }

// IsPresent returns true when t is present under the current assignment.
func (h *SchedulingConstraintHelper) IsPresent(t int) bool { return h.present[t] }

// IsAbsent returns true when t is absent under the current assignment.
func (h *SchedulingConstraintHelper) IsAbsent(t int) bool { return h.absent[t] }

// IsOptional returns true when the presence of t is still undecided.
func (h *SchedulingConstraintHelper) IsOptional(t int) bool {
	return !h.present[t] && !h.absent[t]
}

// PresenceLiteral returns the presence literal of t, NoLiteral when t is
// always present.
func (h *SchedulingConstraintHelper) PresenceLiteral(t int) Literal { return h.presences[t] }

// AddStartMinReason appends the fact `start(t) >= lowerBound`, which must
// currently hold.
func (h *SchedulingConstraintHelper) AddStartMinReason(r *Reason, t int, lowerBound int64) {
	if h.starts[t].IsConstant() {
		return
	}
	r.AddBound(h.starts[t].GreaterOrEqual(lowerBound))
}

// AddStartMaxReason appends the fact `start(t) <= upperBound`, which must
// currently hold.
func (h *SchedulingConstraintHelper) AddStartMaxReason(r *Reason, t int, upperBound int64) {
	if h.starts[t].IsConstant() {
		return
	}
	r.AddBound(h.starts[t].LowerOrEqual(upperBound))
}

// AddEndMinReason appends the fact `end(t) >= lowerBound`, which must
// currently hold.
func (h *SchedulingConstraintHelper) AddEndMinReason(r *Reason, t int, lowerBound int64) {
	if h.ends[t].IsConstant() {
		return
	}
	r.AddBound(h.ends[t].GreaterOrEqual(lowerBound))
}

// AddEndMaxReason appends the fact `end(t) <= upperBound`, which must
// currently hold.
func (h *SchedulingConstraintHelper) AddEndMaxReason(r *Reason, t int, upperBound int64) {
	if h.ends[t].IsConstant() {
		return
	}
	r.AddBound(h.ends[t].LowerOrEqual(upperBound))
}

// AddSizeMinReason appends the fact `size(t) >= lowerBound`, which must
// currently hold.
func (h *SchedulingConstraintHelper) AddSizeMinReason(r *Reason, t int, lowerBound int64) {
	if h.sizes[t].IsConstant() {
		return
	}
	r.AddBound(h.sizes[t].GreaterOrEqual(lowerBound))
}

// AddPresenceReason appends the presence literal of t, which must currently
// be true. Always-present tasks contribute nothing.
func (h *SchedulingConstraintHelper) AddPresenceReason(r *Reason, t int) {
	r.AddLiteral(h.presences[t])
}

// AddAbsenceReason appends the negated presence literal of t, which must
// currently be false.
func (h *SchedulingConstraintHelper) AddAbsenceReason(r *Reason, t int) {
	if h.presences[t] != NoLiteral {
		r.AddLiteral(h.presences[t].Negated())
	}
}

// IncreaseStartMin pushes `start(t) >= newMin` with the given reason. The
// task must be present. It returns false when the push crossed the start
// upper bound and a conflict was recorded.
func (h *SchedulingConstraintHelper) IncreaseStartMin(reason Reason, t int, newMin int64) bool {
	s := h.starts[t]
	if s.IsConstant() {
		if newMin > s.Offset {
			return h.trail.ReportConflict(reason)
		}
		return true
	}
	return h.trail.Enqueue(s.GreaterOrEqual(newMin), reason)
}

// DecreaseEndMax pushes `end(t) <= newMax` with the given reason. The task
// must be present. It returns false when the push crossed the end lower
// bound and a conflict was recorded.
func (h *SchedulingConstraintHelper) DecreaseEndMax(reason Reason, t int, newMax int64) bool {
	e := h.ends[t]
	if e.IsConstant() {
		if newMax < e.Offset {
			return h.trail.ReportConflict(reason)
		}
		return true
	}
	return h.trail.Enqueue(e.LowerOrEqual(newMax), reason)
}

// ReportConflict records the reason as a conflict and returns false.
func (h *SchedulingConstraintHelper) ReportConflict(reason Reason) bool {
	return h.trail.ReportConflict(reason)
}

// WatchAllTasks registers every variable and presence literal of the axis
// with the watcher on behalf of the given propagator.
func (h *SchedulingConstraintHelper) WatchAllTasks(w *GenericLiteralWatcher, id int) {
	for t := range h.sizes {
		w.WatchAffineExpression(h.fwdStarts[t], id)
		w.WatchAffineExpression(h.fwdEnds[t], id)
		w.WatchAffineExpression(h.sizes[t], id)
		if h.presences[t] != NoLiteral {
			w.WatchLiteral(h.presences[t], id)
			w.WatchLiteral(h.presences[t].Negated(), id)
		}
	}
}
