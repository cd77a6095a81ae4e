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

// Package cpmodel offers a user-friendly API to build box placement models.
//
// The `Builder` struct wraps a native model description and provides helper
// methods for adding variables and constraints to it. The `IntVar`,
// `BoolVar`, and `IntervalVar` structs are references to specific variables
// and constraints of the model and provide helpful methods for interacting
// with them. The `LinearExpr` struct provides helper methods for creating
// expressions with many variables and coefficients.
//
// Models are solved with SolveCpModel and friends, which hand the built
// model to the propagation engine in package sat.
package cpmodel

import (
	"errors"
	"fmt"
	"math"
	"sort"

	log "github.com/golang/glog"
)

// ErrMixedModels holds the error when elements added to a model are different.
var ErrMixedModels = errors.New("elements are not part of the same model")

type (
	// VarIndex is the index of a variable in the model, if positive. If this
	// value is negative, it represents the negation of a Boolean variable in
	// the position (-1*VarIndex-1).
	VarIndex int32
	// ConstrIndex is the index of a constraint in the model.
	ConstrIndex int32
)

func (v VarIndex) positiveIndex() VarIndex {
	if v >= 0 {
		return v
	}
	return -1*v - 1
}

// LinearArgument provides an interface for BoolVar, IntVar, and LinearExpr.
type LinearArgument interface {
	addToLinearExpr(e *LinearExpr, c int64)
	evaluateSolutionValue(r *CpSolverResponse) int64
}

// LinearExpr is a container for a linear expression.
type LinearExpr struct {
	varCoeffs []varCoeff
	offset    int64
}

type varCoeff struct {
	ind   VarIndex
	coeff int64
}

// NewLinearExpr creates a new empty LinearExpr.
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

// NewConstant creates and returns a LinearExpr containing the constant `c`.
func NewConstant(c int64) *LinearExpr {
	return &LinearExpr{offset: c}
}

// Add adds the linear argument term to the LinearExpr and returns itself.
func (l *LinearExpr) Add(la LinearArgument) *LinearExpr {
	l.AddTerm(la, 1)
	return l
}

// AddConstant adds the constant to the LinearExpr and returns itself.
func (l *LinearExpr) AddConstant(c int64) *LinearExpr {
	l.offset += c
	return l
}

// AddTerm adds the linear argument term with the given coefficient to the
// LinearExpr and returns itself.
func (l *LinearExpr) AddTerm(la LinearArgument, coeff int64) *LinearExpr {
	la.addToLinearExpr(l, coeff)
	return l
}

// AddSum adds the sum of the linear arguments to the LinearExpr and returns itself.
func (l *LinearExpr) AddSum(las ...LinearArgument) *LinearExpr {
	for _, la := range las {
		l.Add(la)
	}
	return l
}

// AddWeightedSum adds the linear arguments with the corresponding coefficients
// to the LinearExpr and returns itself.
func (l *LinearExpr) AddWeightedSum(las []LinearArgument, coeffs []int64) *LinearExpr {
	if len(coeffs) != len(las) {
		log.Fatalf("las and coeffs must be the same length: %v != %v", len(las), len(coeffs))
	}
	for i, la := range las {
		l.AddTerm(la, coeffs[i])
	}
	return l
}

func (l *LinearExpr) addToLinearExpr(e *LinearExpr, c int64) {
	for _, vc := range l.varCoeffs {
		e.varCoeffs = append(e.varCoeffs, varCoeff{ind: vc.ind, coeff: vc.coeff * c})
	}
	e.offset += l.offset * c
}

func (l *LinearExpr) evaluateSolutionValue(r *CpSolverResponse) int64 {
	result := l.offset

	for _, vc := range l.varCoeffs {
		result += r.Solution[vc.ind] * vc.coeff
	}

	return result
}

// linearForm is the canonical form of a linear expression: variable indices
// are positive, sorted, and unique, and all coefficients are nonzero.
type linearForm struct {
	varCoeffs []varCoeff
	offset    int64
}

// canonicalForm flattens the linear argument into a linearForm.
func canonicalForm(la LinearArgument) linearForm {
	e := NewLinearExpr().Add(la)
	sort.Slice(e.varCoeffs, func(i, j int) bool {
		return e.varCoeffs[i].ind < e.varCoeffs[j].ind
	})
	form := linearForm{offset: e.offset}
	for _, vc := range e.varCoeffs {
		n := len(form.varCoeffs)
		if n > 0 && form.varCoeffs[n-1].ind == vc.ind {
			form.varCoeffs[n-1].coeff += vc.coeff
			if form.varCoeffs[n-1].coeff == 0 {
				form.varCoeffs = form.varCoeffs[:n-1]
			}
			continue
		}
		if vc.coeff != 0 {
			form.varCoeffs = append(form.varCoeffs, vc)
		}
	}
	return form
}

func (f linearForm) isConstant() bool { return len(f.varCoeffs) == 0 }

// IntVar is a reference to an integer variable in the model.
type IntVar struct {
	ind VarIndex
	cpb *Builder
}

// Name returns the name of the variable.
func (i IntVar) Name() string {
	return i.cpb.model.variables[i.ind].name
}

// Domain returns the domain of the variable.
func (i IntVar) Domain() Domain {
	return i.cpb.model.variables[i.ind].domain
}

// Index returns the index of the variable.
func (i IntVar) Index() VarIndex {
	return i.ind
}

// WithName sets the name of the variable.
func (i IntVar) WithName(s string) IntVar {
	i.cpb.model.variables[i.ind].name = s
	return i
}

func (i IntVar) addToLinearExpr(e *LinearExpr, c int64) {
	e.varCoeffs = append(e.varCoeffs, varCoeff{ind: i.ind, coeff: c})
}

func (i IntVar) evaluateSolutionValue(r *CpSolverResponse) int64 {
	return r.Solution[i.ind]
}

// BoolVar is a reference to a Boolean variable or the negation of a Boolean
// variable in the model.
type BoolVar struct {
	ind VarIndex
	cpb *Builder
}

// Not returns the logical Not of the Boolean variable.
func (b BoolVar) Not() BoolVar {
	return BoolVar{ind: -1*b.ind - 1, cpb: b.cpb}
}

// Name returns the name of the variable.
func (b BoolVar) Name() string {
	return b.cpb.model.variables[b.ind.positiveIndex()].name
}

// Domain returns the domain of the variable.
func (b BoolVar) Domain() Domain {
	return b.cpb.model.variables[b.ind.positiveIndex()].domain
}

// Index returns the index of the variable. If the variable is a negation of
// another variable v, its index is `-1*v.index-1`.
func (b BoolVar) Index() VarIndex {
	return b.ind
}

// WithName sets the name of the variable.
func (b BoolVar) WithName(s string) BoolVar {
	b.cpb.model.variables[b.ind.positiveIndex()].name = s
	return b
}

func (b BoolVar) addToLinearExpr(e *LinearExpr, c int64) {
	if b.ind < 0 {
		e.varCoeffs = append(e.varCoeffs, varCoeff{ind: b.ind.positiveIndex(), coeff: -c})
		e.offset += c
	} else {
		e.varCoeffs = append(e.varCoeffs, varCoeff{ind: b.ind, coeff: c})
	}
}

func (b BoolVar) evaluateSolutionValue(r *CpSolverResponse) int64 {
	if b.ind < 0 {
		return 1 - r.Solution[b.ind.positiveIndex()]
	}
	return r.Solution[b.ind]
}

// IntervalVar is a reference to an interval variable in the model. An
// interval variable is both a variable and a constraint. It is defined by
// three elements (start, size, end) and enforces that start + size == end.
type IntervalVar struct {
	ind ConstrIndex
	cpb *Builder
}

// Name returns the name of the interval variable.
func (iv IntervalVar) Name() string {
	return iv.cpb.model.constraints[iv.ind].name
}

// Index returns the index of the interval variable.
func (iv IntervalVar) Index() ConstrIndex {
	return iv.ind
}

// WithName sets the name of the interval variable.
func (iv IntervalVar) WithName(s string) IntervalVar {
	iv.cpb.model.constraints[iv.ind].name = s
	return iv
}

// Constraint is a reference to a constraint in the model.
type Constraint struct {
	ind ConstrIndex
	cpb *Builder
}

// WithName sets the name of the constraint.
func (c Constraint) WithName(s string) Constraint {
	c.cpb.model.constraints[c.ind].name = s
	return c
}

// Name returns the name of the constraint.
func (c Constraint) Name() string {
	return c.cpb.model.constraints[c.ind].name
}

// Index returns the index of the constraint.
func (c Constraint) Index() ConstrIndex {
	return c.ind
}

// NoOverlap2DConstraint is a reference to a specialized no_overlap_2d
// constraint that allows for adding rectangles to the constraint
// incrementally.
type NoOverlap2DConstraint struct {
	Constraint
}

// AddRectangle adds a rectangle (parallel to the axes) to the constraint.
// The two interval variables are the projections of the rectangle on the x
// and y axis.
func (noc NoOverlap2DConstraint) AddRectangle(xInterval, yInterval IntervalVar) {
	if !noc.cpb.checkSameModelAndSetErrorf(xInterval.cpb, "invalid parameter xInterval %v added to NoOverlap2DConstraint %v", xInterval.Index(), noc.Index()) {
		return
	}
	if !noc.cpb.checkSameModelAndSetErrorf(yInterval.cpb, "invalid parameter yInterval %v added to NoOverlap2DConstraint %v", yInterval.Index(), noc.Index()) {
		return
	}
	ct := noc.cpb.model.constraints[noc.ind].noOverlap2D
	ct.xIntervals = append(ct.xIntervals, xInterval.ind)
	ct.yIntervals = append(ct.yIntervals, yInterval.ind)
}

// checkSameModelAndSetErrorf returns true if `cp` and `cp2` point to the same
// Builder. If false, an error with the error message `format` is set on `cp`
// if `cp.err` is nil.
func (cp *Builder) checkSameModelAndSetErrorf(cp2 *Builder, format string, a ...any) bool {
	if cp == cp2 {
		return true
	}
	var args = make([]any, len(a)+1)
	copy(args, a)
	args[len(a)] = ErrMixedModels
	err := fmt.Errorf(format+": %w", args...)
	log.Errorf("%v; use `-log_backtrace_at` flag to get the error stack", err)
	if cp.err == nil {
		cp.err = err
	}
	return false
}

// variableSpec describes one integer variable of the model.
type variableSpec struct {
	name   string
	domain Domain
}

// intervalSpec describes one interval constraint: start + size == end
// whenever the presence literal is true. Expressions are kept in canonical
// linear form; the engine requires them to be affine (at most one variable).
type intervalSpec struct {
	start, size, end linearForm
	presence         VarIndex
}

// noOverlap2DSpec lists the rectangles of one no_overlap_2d constraint as
// parallel x/y interval constraint indices.
type noOverlap2DSpec struct {
	xIntervals []ConstrIndex
	yIntervals []ConstrIndex
}

// linearSpec constrains the value of the expression to the domain. The
// expression offset is already folded into the domain.
type linearSpec struct {
	expr   linearForm
	domain Domain
}

// constraintSpec is one constraint of the model; exactly one of the typed
// fields is set.
type constraintSpec struct {
	name        string
	interval    *intervalSpec
	noOverlap2D *noOverlap2DSpec
	linear      *linearSpec
}

// objectiveSpec is the linear objective of the model.
type objectiveSpec struct {
	expr     linearForm
	maximize bool
}

// Model is the built model consumed by SolveCpModel. It is produced by
// Builder.Model.
type Model struct {
	variables   []variableSpec
	constraints []constraintSpec
	objective   *objectiveSpec
}

// Builder provides a fluent API to assemble a Model.
type Builder struct {
	model     Model
	constants map[int64]VarIndex
	// The first and only the first error is reported in Model.
	err error
}

// NewCpModelBuilder creates and returns a new model Builder.
func NewCpModelBuilder() *Builder {
	return &Builder{constants: make(map[int64]VarIndex)}
}

// NewIntVar creates a new IntVar with domain `[lb,ub]`.
func (cp *Builder) NewIntVar(lb, ub int64) IntVar {
	return cp.NewIntVarFromDomain(NewDomain(lb, ub))
}

// NewIntVarFromDomain creates a new IntVar with the given domain.
func (cp *Builder) NewIntVarFromDomain(d Domain) IntVar {
	intVar := IntVar{cpb: cp, ind: VarIndex(len(cp.model.variables))}
	cp.model.variables = append(cp.model.variables, variableSpec{domain: d})
	return intVar
}

// NewBoolVar creates a new BoolVar.
func (cp *Builder) NewBoolVar() BoolVar {
	boolVar := BoolVar{cpb: cp, ind: VarIndex(len(cp.model.variables))}
	cp.model.variables = append(cp.model.variables, variableSpec{domain: NewDomain(0, 1)})
	return boolVar
}

// NewConstant creates a constant variable. If this is called multiple times,
// the same variable will always be returned.
func (cp *Builder) NewConstant(v int64) IntVar {
	if i, ok := cp.constants[v]; ok {
		return IntVar{cpb: cp, ind: i}
	}

	constVar := cp.NewIntVar(v, v)
	cp.constants[v] = constVar.ind

	return constVar
}

// TrueVar creates an always true Boolean variable. If this is called multiple
// times, the same variable will always be returned.
func (cp *Builder) TrueVar() BoolVar {
	if i, ok := cp.constants[1]; ok {
		return BoolVar{cpb: cp, ind: i}
	}

	boolVar := BoolVar{cpb: cp, ind: VarIndex(len(cp.model.variables))}
	cp.model.variables = append(cp.model.variables, variableSpec{domain: NewDomain(1, 1)})
	cp.constants[1] = boolVar.ind

	return boolVar
}

// FalseVar creates an always false Boolean variable. If this is called
// multiple times, the same variable will always be returned.
func (cp *Builder) FalseVar() BoolVar {
	if i, ok := cp.constants[0]; ok {
		return BoolVar{cpb: cp, ind: i}
	}

	boolVar := BoolVar{cpb: cp, ind: VarIndex(len(cp.model.variables))}
	cp.model.variables = append(cp.model.variables, variableSpec{domain: NewDomain(0, 0)})
	cp.constants[0] = boolVar.ind

	return boolVar
}

// NewIntervalVar creates a new interval variable from the three linear
// arguments. The interval variable enforces that `start` + `size` == `end`.
func (cp *Builder) NewIntervalVar(start, size, end LinearArgument) IntervalVar {
	return cp.NewOptionalIntervalVar(start, size, end, cp.TrueVar())
}

// NewFixedSizeIntervalVar creates a new interval variable with the fixed size.
func (cp *Builder) NewFixedSizeIntervalVar(start LinearArgument, size int64) IntervalVar {
	return cp.NewOptionalFixedSizeIntervalVar(start, size, cp.TrueVar())
}

// NewOptionalIntervalVar creates an optional interval variable from the three
// linear arguments and the Boolean variable. It only enforces that
// `start` + `size` == `end` if the `presence` variable is true.
func (cp *Builder) NewOptionalIntervalVar(start, size, end LinearArgument, presence BoolVar) IntervalVar {
	cp.checkSameModelAndSetErrorf(presence.cpb, "invalid presence literal %v added to interval constraint %v", presence.Index(), len(cp.model.constraints))

	ind := ConstrIndex(len(cp.model.constraints))
	cp.model.constraints = append(cp.model.constraints, constraintSpec{
		interval: &intervalSpec{
			start:    canonicalForm(start),
			size:     canonicalForm(size),
			end:      canonicalForm(end),
			presence: presence.ind,
		},
	})

	return IntervalVar{cpb: cp, ind: ind}
}

// NewOptionalFixedSizeIntervalVar creates an optional interval variable with
// the fixed size. It only enforces that the interval is of the fixed size
// when the `presence` variable is true.
func (cp *Builder) NewOptionalFixedSizeIntervalVar(start LinearArgument, size int64, presence BoolVar) IntervalVar {
	sizeLinExpr := NewConstant(size)
	end := NewLinearExpr().Add(start).Add(sizeLinExpr)

	return cp.NewOptionalIntervalVar(start, sizeLinExpr, end, presence)
}

func (cp *Builder) appendConstraint(cs constraintSpec) Constraint {
	i := ConstrIndex(len(cp.model.constraints))
	cp.model.constraints = append(cp.model.constraints, cs)

	return Constraint{cpb: cp, ind: i}
}

// addLinearConstraint adds a linear constraint that enforces the value of
// `le` to be in the set of `intervals`. The constant offset of `le` is
// subtracted from each interval, see `Offset` for the clamping rules.
func (cp *Builder) addLinearConstraint(le *LinearExpr, intervals ...ClosedInterval) Constraint {
	form := canonicalForm(le)
	shifted := make([]ClosedInterval, len(intervals))
	for i := range intervals {
		shifted[i] = intervals[i].Offset(-form.offset)
	}
	form.offset = 0

	return cp.appendConstraint(constraintSpec{
		linear: &linearSpec{expr: form, domain: FromIntervals(shifted)},
	})
}

// AddLinearConstraintForDomain adds the linear constraint `expr` in `domain`.
func (cp *Builder) AddLinearConstraintForDomain(expr LinearArgument, domain Domain) Constraint {
	linExpr := NewLinearExpr().Add(expr)
	return cp.addLinearConstraint(linExpr, domain.intervals...)
}

// AddLinearConstraint adds the linear constraint `lb <= expr <= ub`.
func (cp *Builder) AddLinearConstraint(expr LinearArgument, lb, ub int64) Constraint {
	linExpr := NewLinearExpr().Add(expr)
	return cp.addLinearConstraint(linExpr, ClosedInterval{lb, ub})
}

// AddEquality adds the linear constraint `lhs == rhs`.
func (cp *Builder) AddEquality(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)

	return cp.addLinearConstraint(diff, ClosedInterval{0, 0})
}

// AddLessOrEqual adds the linear constraint `lhs <= rhs`.
func (cp *Builder) AddLessOrEqual(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)

	return cp.addLinearConstraint(diff, ClosedInterval{math.MinInt64, 0})
}

// AddLessThan adds the linear constraint `lhs < rhs`.
func (cp *Builder) AddLessThan(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)

	return cp.addLinearConstraint(diff, ClosedInterval{math.MinInt64, -1})
}

// AddGreaterOrEqual adds the linear constraint `lhs >= rhs`.
func (cp *Builder) AddGreaterOrEqual(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)

	return cp.addLinearConstraint(diff, ClosedInterval{0, math.MaxInt64})
}

// AddGreaterThan adds the linear constraint `lhs > rhs`.
func (cp *Builder) AddGreaterThan(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)

	return cp.addLinearConstraint(diff, ClosedInterval{1, math.MaxInt64})
}

// AddNotEqual adds the linear constraint `lhs != rhs`.
func (cp *Builder) AddNotEqual(lhs, rhs LinearArgument) Constraint {
	diff := NewLinearExpr().Add(lhs).AddTerm(rhs, -1)

	return cp.addLinearConstraint(diff, ClosedInterval{math.MinInt64, -1}, ClosedInterval{1, math.MaxInt64})
}

// AddNoOverlap2D adds a no_overlap_2d constraint that prevents a set of
// boxes from overlapping. Boxes may touch on their borders.
func (cp *Builder) AddNoOverlap2D() NoOverlap2DConstraint {
	return NoOverlap2DConstraint{cp.appendConstraint(constraintSpec{
		noOverlap2D: &noOverlap2DSpec{},
	})}
}

// Minimize adds a linear minimization objective.
func (cp *Builder) Minimize(obj LinearArgument) {
	cp.model.objective = &objectiveSpec{expr: canonicalForm(obj)}
}

// Maximize adds a linear maximization objective.
func (cp *Builder) Maximize(obj LinearArgument) {
	cp.model.objective = &objectiveSpec{expr: canonicalForm(obj), maximize: true}
}

// Model returns the built model. The model returned is a pointer to the
// model held by the Builder: modifying the Builder afterwards also changes
// the returned model.
//
// Model returns an error when invalid parameters have been used during model
// building (e.g. passing variables from other builders).
func (cp *Builder) Model() (*Model, error) {
	if cp.err != nil {
		return nil, cp.err
	}
	return &cp.model, nil
}
