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
	"math"
)

// saturated reports whether a capped computation lost information. A
// saturated value must not be pushed as a bound.
func saturated(v int64) bool {
	return v == math.MinInt64 || v == math.MaxInt64
}

// IntervalRelationsPropagator keeps the bounds of every task consistent with
// its defining relation `start + size = end`. For an optional task the
// relation only binds when the task is present; when the bounds leave no
// room the task is forced absent instead of failing.
type IntervalRelationsPropagator struct {
	trail *Trail
	tasks []IntervalDefinition
}

// NewIntervalRelationsPropagator builds the propagator for all given tasks.
func NewIntervalRelationsPropagator(trail *Trail, tasks []IntervalDefinition) *IntervalRelationsPropagator {
	return &IntervalRelationsPropagator{trail: trail, tasks: tasks}
}

// WatchAll registers the variables of every task with the watcher.
func (p *IntervalRelationsPropagator) WatchAll(w *GenericLiteralWatcher, id int) {
	for _, task := range p.tasks {
		w.WatchAffineExpression(task.Start, id)
		w.WatchAffineExpression(task.Size, id)
		w.WatchAffineExpression(task.End, id)
		if task.Presence != NoLiteral {
			w.WatchLiteral(task.Presence, id)
			w.WatchLiteral(task.Presence.Negated(), id)
		}
	}
}

// Propagate implements Propagator.
func (p *IntervalRelationsPropagator) Propagate() bool {
	for i := range p.tasks {
		if !p.propagateTask(&p.tasks[i]) {
			return false
		}
	}
	return true
}

func (p *IntervalRelationsPropagator) propagateTask(task *IntervalDefinition) bool {
	t := p.trail
	lit := task.Presence
	if lit != NoLiteral && t.LiteralIsFalse(lit) {
		return true
	}
	startMin, startMax := t.AffineLowerBound(task.Start), t.AffineUpperBound(task.Start)
	sizeMin, sizeMax := t.AffineLowerBound(task.Size), t.AffineUpperBound(task.Size)
	endMin, endMax := t.AffineLowerBound(task.End), t.AffineUpperBound(task.End)

	if sum := CapAdd(startMin, sizeMin); !saturated(sum) && sum > endMax {
		var reason Reason
		addGE(&reason, task.Start, startMin)
		addGE(&reason, task.Size, sizeMin)
		addLE(&reason, task.End, endMax)
		if lit != NoLiteral && !t.LiteralIsTrue(lit) {
			return t.EnqueueLiteral(lit.Negated(), reason)
		}
		reason.AddLiteral(lit)
		return t.ReportConflict(reason)
	}
	if lit != NoLiteral && !t.LiteralIsTrue(lit) {
		// Undecided presence: the relation cannot push bounds yet.
		return true
	}

	type push struct {
		target       AffineExpression
		isUpper      bool
		value        int64
		factA, factB AffineExpression
		aIsUpper     bool
		aValue       int64
		bIsUpper     bool
		bValue       int64
	}
	pushes := []push{
		{task.End, false, CapAdd(startMin, sizeMin), task.Start, task.Size, false, startMin, false, sizeMin},
		{task.End, true, CapAdd(startMax, sizeMax), task.Start, task.Size, true, startMax, true, sizeMax},
		{task.Start, false, CapSub(endMin, sizeMax), task.End, task.Size, false, endMin, true, sizeMax},
		{task.Start, true, CapSub(endMax, sizeMin), task.End, task.Size, true, endMax, false, sizeMin},
		{task.Size, false, CapSub(endMin, startMax), task.End, task.Start, false, endMin, true, startMax},
		{task.Size, true, CapSub(endMax, startMin), task.End, task.Start, true, endMax, false, startMin},
	}
	for _, ps := range pushes {
		var reason Reason
		reason.AddLiteral(lit)
		if ps.aIsUpper {
			addLE(&reason, ps.factA, ps.aValue)
		} else {
			addGE(&reason, ps.factA, ps.aValue)
		}
		if ps.bIsUpper {
			addLE(&reason, ps.factB, ps.bValue)
		} else {
			addGE(&reason, ps.factB, ps.bValue)
		}
		if !p.pushBound(ps.target, ps.isUpper, ps.value, reason) {
			return false
		}
	}
	return true
}

func (p *IntervalRelationsPropagator) pushBound(target AffineExpression, isUpper bool, value int64, reason Reason) bool {
	t := p.trail
	if saturated(value) {
		return true
	}
	if target.IsConstant() {
		if (isUpper && value < target.Offset) || (!isUpper && value > target.Offset) {
			return t.ReportConflict(reason)
		}
		return true
	}
	if isUpper {
		if value >= t.AffineUpperBound(target) {
			return true
		}
		return t.Enqueue(target.LowerOrEqual(value), reason)
	}
	if value <= t.AffineLowerBound(target) {
		return true
	}
	return t.Enqueue(target.GreaterOrEqual(value), reason)
}

// addGE appends the fact `expr >= bound` unless the expression is constant.
func addGE(r *Reason, expr AffineExpression, bound int64) {
	if expr.IsConstant() {
		return
	}
	r.AddBound(expr.GreaterOrEqual(bound))
}

// addLE appends the fact `expr <= bound` unless the expression is constant.
func addLE(r *Reason, expr AffineExpression, bound int64) {
	if expr.IsConstant() {
		return
	}
	r.AddBound(expr.LowerOrEqual(bound))
}

// DifferenceRelationsPropagator enforces the repository relations
// `a - b <= rhs` on the bounds. The relations hold unconditionally, so each
// push is explained by the single opposite bound it used.
type DifferenceRelationsPropagator struct {
	trail     *Trail
	relations *BinaryRelationRepository
}

// NewDifferenceRelationsPropagator builds the propagator.
func NewDifferenceRelationsPropagator(trail *Trail, relations *BinaryRelationRepository) *DifferenceRelationsPropagator {
	return &DifferenceRelationsPropagator{trail: trail, relations: relations}
}

// WatchAll registers the variables of every relation with the watcher.
func (p *DifferenceRelationsPropagator) WatchAll(w *GenericLiteralWatcher, id int) {
	for _, rel := range p.relations.Relations() {
		w.WatchAffineExpression(rel.A, id)
		w.WatchAffineExpression(rel.B, id)
	}
}

// Propagate implements Propagator.
func (p *DifferenceRelationsPropagator) Propagate() bool {
	t := p.trail
	for _, rel := range p.relations.Relations() {
		// a <= rhs + ub(b)
		ubB := t.AffineUpperBound(rel.B)
		var reason Reason
		addLE(&reason, rel.B, ubB)
		if !p.pushUpper(rel.A, CapAdd(rel.Rhs, ubB), reason) {
			return false
		}
		// b >= lb(a) - rhs
		lbA := t.AffineLowerBound(rel.A)
		reason = Reason{}
		addGE(&reason, rel.A, lbA)
		if !p.pushLower(rel.B, CapSub(lbA, rel.Rhs), reason) {
			return false
		}
	}
	return true
}

func (p *DifferenceRelationsPropagator) pushUpper(expr AffineExpression, value int64, reason Reason) bool {
	if saturated(value) {
		return true
	}
	if expr.IsConstant() {
		if value < expr.Offset {
			return p.trail.ReportConflict(reason)
		}
		return true
	}
	if value >= p.trail.AffineUpperBound(expr) {
		return true
	}
	return p.trail.Enqueue(expr.LowerOrEqual(value), reason)
}

func (p *DifferenceRelationsPropagator) pushLower(expr AffineExpression, value int64, reason Reason) bool {
	if saturated(value) {
		return true
	}
	if expr.IsConstant() {
		if value > expr.Offset {
			return p.trail.ReportConflict(reason)
		}
		return true
	}
	if value <= p.trail.AffineLowerBound(expr) {
		return true
	}
	return p.trail.Enqueue(expr.GreaterOrEqual(value), reason)
}

// LiteralView channels a Boolean literal with its 0/1 integer view: the
// literal is true exactly when the variable is 1.
type LiteralView struct {
	Literal  Literal
	Variable IntegerVariable
}

// LiteralViewPropagator keeps every literal/view pair in sync in both
// directions. The integer variable is expected to have its domain inside
// [0, 1].
type LiteralViewPropagator struct {
	trail *Trail
	views []LiteralView
}

// NewLiteralViewPropagator builds the propagator for the given pairs.
func NewLiteralViewPropagator(trail *Trail, views []LiteralView) *LiteralViewPropagator {
	return &LiteralViewPropagator{trail: trail, views: views}
}

// WatchAll registers both sides of every pair with the watcher.
func (p *LiteralViewPropagator) WatchAll(w *GenericLiteralWatcher, id int) {
	for _, view := range p.views {
		w.WatchLiteral(view.Literal, id)
		w.WatchLiteral(view.Literal.Negated(), id)
		w.WatchIntegerVariable(view.Variable, id)
	}
}

// Propagate implements Propagator.
func (p *LiteralViewPropagator) Propagate() bool {
	t := p.trail
	for _, view := range p.views {
		lit, v := view.Literal, view.Variable
		switch {
		case t.LiteralIsTrue(lit):
			if t.LowerBound(v) < 1 {
				var reason Reason
				reason.AddLiteral(lit)
				if !t.Enqueue(GreaterOrEqual(v, 1), reason) {
					return false
				}
			}
		case t.LiteralIsFalse(lit):
			if t.UpperBound(v) > 0 {
				var reason Reason
				reason.AddLiteral(lit.Negated())
				if !t.Enqueue(LowerOrEqual(v, 0), reason) {
					return false
				}
			}
		case t.LowerBound(v) >= 1:
			var reason Reason
			reason.AddBound(GreaterOrEqual(v, 1))
			if !t.EnqueueLiteral(lit, reason) {
				return false
			}
		case t.UpperBound(v) <= 0:
			var reason Reason
			reason.AddBound(LowerOrEqual(v, 0))
			if !t.EnqueueLiteral(lit.Negated(), reason) {
				return false
			}
		}
	}
	return true
}
