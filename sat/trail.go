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
	log "github.com/golang/glog"
)

// Reason is the set of facts justifying a bound push or a conflict: literals
// that are currently true and integer bounds that currently hold. Each push
// builds a fresh Reason value, so no two pushes can share builder state.
type Reason struct {
	Literals []Literal
	Bounds   []IntegerLiteral
}

// AddLiteral appends a literal fact. NoLiteral is ignored, so callers can
// pass presence literals of always-present intervals unconditionally.
func (r *Reason) AddLiteral(l Literal) {
	if l == NoLiteral {
		return
	}
	r.Literals = append(r.Literals, l)
}

// AddBound appends an integer bound fact.
func (r *Reason) AddBound(il IntegerLiteral) {
	if il.Var == NoIntegerVariable {
		return
	}
	r.Bounds = append(r.Bounds, il)
}

// Append copies all facts of other into r.
func (r *Reason) Append(other Reason) {
	r.Literals = append(r.Literals, other.Literals...)
	r.Bounds = append(r.Bounds, other.Bounds...)
}

// clone returns a Reason sharing nothing with r. The trail clones every
// reason it stores: callers commonly derive several reasons from one base
// value, and the derived slices may alias the same backing array.
func (r Reason) clone() Reason {
	return Reason{
		Literals: append([]Literal(nil), r.Literals...),
		Bounds:   append([]IntegerLiteral(nil), r.Bounds...),
	}
}

type boundEntry struct {
	v         IntegerVariable
	prevBound int64
	reason    Reason
}

type literalEntry struct {
	l      Literal
	reason Reason
}

type levelMark struct {
	boundTrailLen   int
	literalTrailLen int
}

// Trail stores the current partial assignment: one lower bound per integer
// variable (negation pairing turns upper bounds into lower bounds of the
// paired variable) and one truth value per Boolean variable. It supports
// chronological backtracking and records the reason of every push so that
// explanations can be checked.
//
// A Trail and everything registered on it belong to a single goroutine.
type Trail struct {
	// ValidateReasons makes every push and conflict verify that each fact of
	// its reason currently holds. Broken reasons are programming errors, so
	// the check crashes rather than returning an error. Enabled in tests.
	ValidateReasons bool

	lowerBounds    []int64
	levelZeroLB    []int64
	boolValues     []int8
	boundTrail     []boundEntry
	literalTrail   []literalEntry
	levels         []levelMark
	epoch          uint64
	hasConflict    bool
	conflictReason Reason
	boundEvents    []IntegerVariable
	literalEvents  []Literal
}

// NewTrail returns an empty trail at decision level zero.
func NewTrail() *Trail {
	return &Trail{}
}

// AddIntegerVariable creates an integer variable with domain [lb, ub] and
// returns its positive index. The paired negation is created with it.
func (t *Trail) AddIntegerVariable(lb, ub int64) IntegerVariable {
	if lb > ub {
		log.Fatalf("AddIntegerVariable: empty domain [%d, %d]", lb, ub)
	}
	v := IntegerVariable(len(t.lowerBounds))
	t.lowerBounds = append(t.lowerBounds, lb, CapOpp(ub))
	t.levelZeroLB = append(t.levelZeroLB, lb, CapOpp(ub))
	return v
}

// AddBooleanVariable creates an unassigned Boolean variable.
func (t *Trail) AddBooleanVariable() BooleanVariable {
	v := BooleanVariable(len(t.boolValues))
	t.boolValues = append(t.boolValues, 0)
	return v
}

// NumIntegerVariables returns the number of integer variable indices,
// counting each negation pair as two.
func (t *Trail) NumIntegerVariables() int { return len(t.lowerBounds) }

// NumBooleanVariables returns the number of Boolean variables.
func (t *Trail) NumBooleanVariables() int { return len(t.boolValues) }

// LowerBound returns the current lower bound of v.
func (t *Trail) LowerBound(v IntegerVariable) int64 {
	return t.lowerBounds[v]
}

// UpperBound returns the current upper bound of v.
func (t *Trail) UpperBound(v IntegerVariable) int64 {
	return CapOpp(t.lowerBounds[NegationOf(v)])
}

// LevelZeroLowerBound returns the lower bound v had before the first
// decision.
func (t *Trail) LevelZeroLowerBound(v IntegerVariable) int64 {
	return t.levelZeroLB[v]
}

// LevelZeroUpperBound returns the upper bound v had before the first
// decision.
func (t *Trail) LevelZeroUpperBound(v IntegerVariable) int64 {
	return CapOpp(t.levelZeroLB[NegationOf(v)])
}

// IsFixed returns true when the domain of v is a single value.
func (t *Trail) IsFixed(v IntegerVariable) bool {
	return t.LowerBound(v) == t.UpperBound(v)
}

// FixedValue returns the value of a fixed variable.
func (t *Trail) FixedValue(v IntegerVariable) int64 {
	return t.LowerBound(v)
}

// AffineLowerBound returns the current lower bound of an affine expression.
func (t *Trail) AffineLowerBound(a AffineExpression) int64 {
	if a.IsConstant() {
		return a.Offset
	}
	return CapAdd(CapProd(a.Coeff, t.LowerBound(a.Var)), a.Offset)
}

// AffineUpperBound returns the current upper bound of an affine expression.
func (t *Trail) AffineUpperBound(a AffineExpression) int64 {
	if a.IsConstant() {
		return a.Offset
	}
	return CapAdd(CapProd(a.Coeff, t.UpperBound(a.Var)), a.Offset)
}

// AffineIsFixed returns true when the expression has a single possible value.
func (t *Trail) AffineIsFixed(a AffineExpression) bool {
	return a.IsConstant() || t.IsFixed(a.Var)
}

// LiteralIsTrue returns true when l is assigned true.
func (t *Trail) LiteralIsTrue(l Literal) bool {
	val := t.boolValues[l.Variable()]
	if l.IsPositive() {
		return val > 0
	}
	return val < 0
}

// LiteralIsFalse returns true when l is assigned false.
func (t *Trail) LiteralIsFalse(l Literal) bool {
	return t.LiteralIsTrue(l.Negated())
}

// LiteralIsAssigned returns true when the underlying variable has a value.
func (t *Trail) LiteralIsAssigned(l Literal) bool {
	return t.boolValues[l.Variable()] != 0
}

// CurrentDecisionLevel returns the number of open decisions.
func (t *Trail) CurrentDecisionLevel() int { return len(t.levels) }

// Epoch returns the backtrack epoch. It increases on every BacktrackTo, so
// caches validated at some epoch and decision level are stale whenever
// either differs from the current values.
func (t *Trail) Epoch() uint64 { return t.epoch }

// HasConflict returns true when a conflict has been recorded and not yet
// cleared by backtracking.
func (t *Trail) HasConflict() bool { return t.hasConflict }

// ConflictReason returns the recorded conflict explanation.
func (t *Trail) ConflictReason() Reason { return t.conflictReason }

// ReportConflict records the given explanation as a conflict. It always
// returns false so propagators can `return t.ReportConflict(reason)`.
func (t *Trail) ReportConflict(reason Reason) bool {
	if t.ValidateReasons {
		t.checkReason(reason)
	}
	t.hasConflict = true
	t.conflictReason = reason.clone()
	return false
}

// Enqueue applies the bound fact il with the given reason. It returns false
// and records a conflict when the new lower bound crosses the current upper
// bound. Pushing a bound that already holds is a no-op.
func (t *Trail) Enqueue(il IntegerLiteral, reason Reason) bool {
	if t.hasConflict {
		return false
	}
	if il.Bound <= t.lowerBounds[il.Var] {
		return true
	}
	if t.ValidateReasons {
		t.checkReason(reason)
	}
	ub := t.UpperBound(il.Var)
	if il.Bound > ub {
		conflict := reason
		conflict.AddBound(GreaterOrEqual(NegationOf(il.Var), CapOpp(ub)))
		return t.ReportConflict(conflict)
	}
	t.boundTrail = append(t.boundTrail, boundEntry{v: il.Var, prevBound: t.lowerBounds[il.Var], reason: reason.clone()})
	t.lowerBounds[il.Var] = il.Bound
	if len(t.levels) == 0 {
		t.levelZeroLB[il.Var] = il.Bound
	}
	t.boundEvents = append(t.boundEvents, il.Var)
	return true
}

// EnqueueLiteral assigns l to true with the given reason. It returns false
// and records a conflict when l is already false.
func (t *Trail) EnqueueLiteral(l Literal, reason Reason) bool {
	if t.hasConflict {
		return false
	}
	if t.LiteralIsTrue(l) {
		return true
	}
	if t.ValidateReasons {
		t.checkReason(reason)
	}
	if t.LiteralIsFalse(l) {
		conflict := reason
		conflict.AddLiteral(l.Negated())
		return t.ReportConflict(conflict)
	}
	t.literalTrail = append(t.literalTrail, literalEntry{l: l, reason: reason.clone()})
	if l.IsPositive() {
		t.boolValues[l.Variable()] = 1
	} else {
		t.boolValues[l.Variable()] = -1
	}
	t.literalEvents = append(t.literalEvents, l)
	return true
}

// Push opens a new decision level.
func (t *Trail) Push() {
	t.levels = append(t.levels, levelMark{
		boundTrailLen:   len(t.boundTrail),
		literalTrailLen: len(t.literalTrail),
	})
}

// BacktrackTo undoes every push made after the given decision level was
// opened, clears any recorded conflict and bumps the epoch.
func (t *Trail) BacktrackTo(level int) {
	if level < 0 || level > len(t.levels) {
		log.Fatalf("BacktrackTo: level %d out of range [0, %d]", level, len(t.levels))
	}
	if level == len(t.levels) {
		// Still clear the conflict so the caller can retry another branch
		// at the same level.
		t.hasConflict = false
		t.conflictReason = Reason{}
		return
	}
	mark := t.levels[level]
	for i := len(t.boundTrail) - 1; i >= mark.boundTrailLen; i-- {
		e := t.boundTrail[i]
		t.lowerBounds[e.v] = e.prevBound
	}
	t.boundTrail = t.boundTrail[:mark.boundTrailLen]
	for i := len(t.literalTrail) - 1; i >= mark.literalTrailLen; i-- {
		t.boolValues[t.literalTrail[i].l.Variable()] = 0
	}
	t.literalTrail = t.literalTrail[:mark.literalTrailLen]
	t.levels = t.levels[:level]
	t.hasConflict = false
	t.conflictReason = Reason{}
	t.epoch++
	// Events past the trail truncation would point at undone pushes.
	t.boundEvents = t.boundEvents[:0]
	t.literalEvents = t.literalEvents[:0]
}

// checkReason crashes when a fact of the reason does not currently hold.
func (t *Trail) checkReason(reason Reason) {
	for _, l := range reason.Literals {
		if !t.LiteralIsTrue(l) {
			log.Fatalf("reason literal %v does not hold", l)
		}
	}
	for _, b := range reason.Bounds {
		if t.lowerBounds[b.Var] < b.Bound {
			log.Fatalf("reason bound %v does not hold: lower bound is %d", b, t.lowerBounds[b.Var])
		}
	}
}
