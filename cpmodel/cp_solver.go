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
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/boxsat/boxsat/sat"
)

// CpSolverStatus is the status of a solve.
type CpSolverStatus int32

const (
	// CpSolverStatusUnknown means the search hit a limit before reaching a
	// conclusion.
	CpSolverStatusUnknown CpSolverStatus = iota
	// CpSolverStatusModelInvalid means the model does not pass validation.
	CpSolverStatusModelInvalid
	// CpSolverStatusFeasible means a solution was found, but optimality (if
	// the model has an objective) was not proven.
	CpSolverStatusFeasible
	// CpSolverStatusInfeasible means the model has no solution.
	CpSolverStatusInfeasible
	// CpSolverStatusOptimal means a solution was found and proven optimal.
	CpSolverStatusOptimal
)

func (s CpSolverStatus) String() string {
	switch s {
	case CpSolverStatusModelInvalid:
		return "MODEL_INVALID"
	case CpSolverStatusFeasible:
		return "FEASIBLE"
	case CpSolverStatusInfeasible:
		return "INFEASIBLE"
	case CpSolverStatusOptimal:
		return "OPTIMAL"
	}
	return "UNKNOWN"
}

// SatParameters is the subset of solver parameters honored by SolveCpModel.
// The zero value means no time limit, one worker, no conflict limit, and a
// quiet search.
type SatParameters struct {
	// MaxTimeInSeconds bounds the wall time of the solve. Zero or negative
	// means no limit.
	MaxTimeInSeconds float64 `yaml:"max_time_in_seconds"`
	// NumWorkers is the number of independent portfolio workers, each
	// running the search with a different branching strategy. Zero or
	// negative means one.
	NumWorkers int32 `yaml:"num_workers"`
	// MaxNumberOfConflicts bounds the number of conflicts of each worker.
	// Zero means no limit.
	MaxNumberOfConflicts int64 `yaml:"max_number_of_conflicts"`
	// LogSearchProgress enables search progress logging at glog verbosity 1.
	LogSearchProgress bool `yaml:"log_search_progress"`
}

// CpSolverResponse is the result of a solve.
type CpSolverResponse struct {
	Status CpSolverStatus
	// Solution holds one value per model variable when Status is
	// CpSolverStatusFeasible or CpSolverStatusOptimal.
	Solution []int64
	// ObjectiveValue is the objective value of Solution when the model has
	// an objective.
	ObjectiveValue int64
	// SolutionInfo carries a short diagnostic when the model is invalid or
	// trivially infeasible.
	SolutionInfo string
	// WallTime is the elapsed solve time in seconds.
	WallTime     float64
	NumBranches  int64
	NumConflicts int64
}

// SolutionBooleanValue returns the value of BoolVar `bv` in the response.
func SolutionBooleanValue(r *CpSolverResponse, bv BoolVar) bool {
	return bv.evaluateSolutionValue(r) != 0
}

// SolutionIntegerValue returns the value of LinearArgument `la` in the
// response.
func SolutionIntegerValue(r *CpSolverResponse, la LinearArgument) int64 {
	return la.evaluateSolutionValue(r)
}

// SolveCpModel solves the model and returns a CpSolverResponse.
func SolveCpModel(m *Model) (*CpSolverResponse, error) {
	return SolveCpModelWithParameters(m, nil)
}

// SolveCpModelWithParameters solves the model with the given solver
// parameters and returns a CpSolverResponse. A nil `params` uses the
// defaults.
func SolveCpModelWithParameters(m *Model, params *SatParameters) (*CpSolverResponse, error) {
	return solveCpModel(context.Background(), m, params)
}

// SolveCpModelInterruptibleWithParameters solves the model with the given
// parameters and returns a CpSolverResponse. The solve stops early with the
// best known result when `interrupt` is triggered.
func SolveCpModelInterruptibleWithParameters(m *Model, params *SatParameters, interrupt <-chan struct{}) (*CpSolverResponse, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-interrupt:
			cancel()
		case <-done:
		}
	}()

	// An interrupt triggered before the call must stop the solve before it
	// starts, even if the goroutine above has not been scheduled yet.
	select {
	case <-interrupt:
		cancel()
	default:
	}

	return solveCpModel(ctx, m, params)
}

func solveCpModel(ctx context.Context, m *Model, params *SatParameters) (*CpSolverResponse, error) {
	if m == nil {
		return nil, errors.New("input model must not be nil")
	}
	start := time.Now()
	var p SatParameters
	if params != nil {
		p = *params
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 1
	}

	resp := &CpSolverResponse{}
	if msg := validateModel(m); msg != "" {
		resp.Status = CpSolverStatusModelInvalid
		resp.SolutionInfo = msg
		resp.WallTime = time.Since(start).Seconds()
		return resp, nil
	}
	effective, info, feasible := effectiveDomains(m)
	if !feasible {
		resp.Status = CpSolverStatusInfeasible
		resp.SolutionInfo = info
		resp.WallTime = time.Since(start).Seconds()
		return resp, nil
	}

	if p.MaxTimeInSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.MaxTimeInSeconds*float64(time.Second)))
		defer cancel()
	}
	solveCtx, stop := context.WithCancel(ctx)
	defer stop()

	coord := &solveCoordinator{}
	var g errgroup.Group
	for worker := int32(0); worker < p.NumWorkers; worker++ {
		strategy := portfolioStrategy(int(worker))
		g.Go(func() error {
			e := buildEngine(m, effective, strategy, &p)
			e.run(solveCtx, m, coord, stop)
			return nil
		})
	}
	g.Wait()

	status, solution, hasSolution, branches, conflicts := coord.snapshot()
	if status == CpSolverStatusUnknown && hasSolution {
		status = CpSolverStatusFeasible
	}
	resp.Status = status
	if hasSolution {
		resp.Solution = solution
		if m.objective != nil {
			resp.ObjectiveValue = m.objective.expr.evalOn(solution)
		}
	}
	resp.NumBranches = branches
	resp.NumConflicts = conflicts
	resp.WallTime = time.Since(start).Seconds()
	if p.LogSearchProgress {
		log.V(1).Infof("solve: status %v after %d branches, %d conflicts, %.3fs",
			resp.Status, resp.NumBranches, resp.NumConflicts, resp.WallTime)
	}
	return resp, nil
}

// portfolioStrategy diversifies workers over the branching variants.
func portfolioStrategy(worker int) sat.SearchStrategy {
	return sat.SearchStrategy{
		AssignAbsentFirst:    worker&1 != 0,
		ReverseVariableOrder: worker&2 != 0,
		SplitFromAbove:       worker&4 != 0,
	}
}

// validateModel returns an empty string when the model is supported, and a
// diagnostic otherwise. The engine propagates bounds of affine expressions,
// so interval parts and the objective are limited to one variable each and
// linear constraints to differences of two scaled variables.
func validateModel(m *Model) string {
	const maxDomainMagnitude = int64(1) << 62
	for i, v := range m.variables {
		if v.domain.IsEmpty() {
			return fmt.Sprintf("variable %d has an empty domain", i)
		}
		lb, _ := v.domain.Min()
		ub, _ := v.domain.Max()
		if lb < -maxDomainMagnitude || ub > maxDomainMagnitude {
			return fmt.Sprintf("variable %d has a domain outside [%d, %d]", i, -maxDomainMagnitude, maxDomainMagnitude)
		}
	}
	for ci, cs := range m.constraints {
		switch {
		case cs.interval != nil:
			it := cs.interval
			parts := []struct {
				name string
				form linearForm
			}{{"start", it.start}, {"size", it.size}, {"end", it.end}}
			for _, part := range parts {
				if len(part.form.varCoeffs) > 1 {
					return fmt.Sprintf("constraint %d: interval %s must use at most one variable", ci, part.name)
				}
				if hasCoeffOverflow(part.form) {
					return fmt.Sprintf("constraint %d: interval %s coefficient overflows", ci, part.name)
				}
			}
			pres := int(it.presence.positiveIndex())
			if pres >= len(m.variables) {
				return fmt.Sprintf("constraint %d: presence literal %d out of range", ci, it.presence)
			}
			lb, _ := m.variables[pres].domain.Min()
			ub, _ := m.variables[pres].domain.Max()
			if lb < 0 || ub > 1 {
				return fmt.Sprintf("constraint %d: presence literal %d must be Boolean", ci, it.presence)
			}
		case cs.noOverlap2D != nil:
			for _, ind := range append(append([]ConstrIndex{}, cs.noOverlap2D.xIntervals...), cs.noOverlap2D.yIntervals...) {
				if int(ind) >= len(m.constraints) || m.constraints[ind].interval == nil {
					return fmt.Sprintf("constraint %d: rectangle side %d is not an interval constraint", ci, ind)
				}
			}
		case cs.linear != nil:
			l := cs.linear
			if hasCoeffOverflow(l.expr) {
				return fmt.Sprintf("linear constraint %d: coefficient overflows", ci)
			}
			switch len(l.expr.varCoeffs) {
			case 0, 1:
			case 2:
				if l.expr.varCoeffs[0].coeff != -l.expr.varCoeffs[1].coeff {
					return fmt.Sprintf("linear constraint %d: two-variable constraints must be differences of a common scale", ci)
				}
				if len(l.domain.intervals) > 1 {
					return fmt.Sprintf("linear constraint %d: two-variable constraints must use a single interval domain", ci)
				}
			default:
				return fmt.Sprintf("linear constraint %d: more than two variables are not supported", ci)
			}
		}
	}
	if m.objective != nil {
		if len(m.objective.expr.varCoeffs) > 1 {
			return "objectives over more than one variable are not supported"
		}
		if hasCoeffOverflow(m.objective.expr) {
			return "objective coefficient overflows"
		}
	}
	return ""
}

func hasCoeffOverflow(f linearForm) bool {
	for _, vc := range f.varCoeffs {
		if vc.coeff == math.MinInt64 {
			return true
		}
	}
	return false
}

// effectiveDomains folds the constant and single-variable linear constraints
// of the model into per-variable domains. It reports infeasibility when a
// constraint is always false or empties a domain.
func effectiveDomains(m *Model) ([]Domain, string, bool) {
	doms := make([]Domain, len(m.variables))
	for i := range m.variables {
		doms[i] = m.variables[i].domain
	}
	for ci, cs := range m.constraints {
		l := cs.linear
		if l == nil {
			continue
		}
		switch len(l.expr.varCoeffs) {
		case 0:
			if !l.domain.Contains(0) {
				return nil, fmt.Sprintf("linear constraint %d is always false", ci), false
			}
		case 1:
			vc := l.expr.varCoeffs[0]
			doms[vc.ind] = doms[vc.ind].IntersectWith(varDomainFromLinearTarget(l.domain, vc.coeff))
			if doms[vc.ind].IsEmpty() {
				return nil, fmt.Sprintf("variable %d has no value satisfying linear constraint %d", vc.ind, ci), false
			}
		}
	}
	return doms, "", true
}

// varDomainFromLinearTarget returns the values of v with `coeff*v` in
// `target`. Interval ends at math.MinInt64 or math.MaxInt64 stand for an
// unbounded side and are kept unbounded rather than divided.
func varDomainFromLinearTarget(target Domain, coeff int64) Domain {
	var out []ClosedInterval
	for _, itv := range target.intervals {
		lo, hi := itv.Start, itv.End
		c := coeff
		if c < 0 {
			c = sat.CapOpp(c)
			lo, hi = sat.CapOpp(itv.End), sat.CapOpp(itv.Start)
		}
		vlo := int64(math.MinInt64)
		if lo != math.MinInt64 {
			vlo = sat.CeilRatio(lo, c)
		}
		vhi := int64(math.MaxInt64)
		if hi != math.MaxInt64 {
			vhi = sat.FloorRatio(hi, c)
		}
		out = append(out, ClosedInterval{vlo, vhi})
	}
	return FromIntervals(out)
}

// classifyVariables decides the engine representation of every model
// variable: an integer variable, a Boolean literal, or both. A variable
// used only as presence literals stays purely Boolean; a Boolean used in
// expressions as well gets both representations, channeled by a
// LiteralViewPropagator.
func classifyVariables(m *Model) (presence, integer []bool) {
	presence = make([]bool, len(m.variables))
	used := make([]bool, len(m.variables))
	markForm := func(f linearForm) {
		for _, vc := range f.varCoeffs {
			used[vc.ind] = true
		}
	}
	for _, cs := range m.constraints {
		switch {
		case cs.interval != nil:
			presence[cs.interval.presence.positiveIndex()] = true
			markForm(cs.interval.start)
			markForm(cs.interval.size)
			markForm(cs.interval.end)
		case cs.linear != nil:
			if len(cs.linear.expr.varCoeffs) == 2 {
				markForm(cs.linear.expr)
			}
		}
	}
	if m.objective != nil {
		markForm(m.objective.expr)
	}
	integer = make([]bool, len(m.variables))
	for i := range integer {
		integer[i] = used[i] || !presence[i]
	}
	return presence, integer
}

// solveEngine is one worker's private propagation engine built from the
// model. Workers share nothing but the coordinator.
type solveEngine struct {
	trail   *sat.Trail
	watcher *sat.GenericLiteralWatcher
	solver  *sat.Solver

	intOf []sat.IntegerVariable
	litOf []sat.Literal

	// objective is the minimized engine expression; for a maximization it
	// is the negated model objective.
	objective    sat.AffineExpression
	hasObjective bool
	maximize     bool

	lastSolution []int64
	hasSolution  bool
}

func buildEngine(m *Model, effective []Domain, strategy sat.SearchStrategy, p *SatParameters) *solveEngine {
	presence, integer := classifyVariables(m)
	trail := sat.NewTrail()

	e := &solveEngine{
		trail: trail,
		intOf: make([]sat.IntegerVariable, len(m.variables)),
		litOf: make([]sat.Literal, len(m.variables)),
	}
	var views []sat.LiteralView
	var holeVars []sat.IntegerVariable
	var holeDomains []Domain
	for i := range m.variables {
		e.intOf[i], e.litOf[i] = sat.NoIntegerVariable, sat.NoLiteral
		dom := effective[i]
		lb, _ := dom.Min()
		ub, _ := dom.Max()
		if integer[i] {
			e.intOf[i] = trail.AddIntegerVariable(lb, ub)
			if len(dom.intervals) > 1 {
				holeVars = append(holeVars, e.intOf[i])
				holeDomains = append(holeDomains, dom)
			}
		}
		if presence[i] {
			e.litOf[i] = sat.PositiveLiteral(trail.AddBooleanVariable())
			if integer[i] {
				views = append(views, sat.LiteralView{Literal: e.litOf[i], Variable: e.intOf[i]})
			}
			if ub <= 0 {
				trail.EnqueueLiteral(e.litOf[i].Negated(), sat.Reason{})
			} else if lb >= 1 {
				trail.EnqueueLiteral(e.litOf[i], sat.Reason{})
			}
		}
	}

	defs := make([]sat.IntervalDefinition, len(m.constraints))
	var allDefs []sat.IntervalDefinition
	for ci, cs := range m.constraints {
		if cs.interval == nil {
			continue
		}
		defs[ci] = sat.IntervalDefinition{
			Start:    e.affineOf(cs.interval.start),
			Size:     e.affineOf(cs.interval.size),
			End:      e.affineOf(cs.interval.end),
			Presence: e.presenceLiteralOf(cs.interval.presence, effective),
		}
		allDefs = append(allDefs, defs[ci])
	}

	relations := sat.NewBinaryRelationRepository()
	for _, cs := range m.constraints {
		l := cs.linear
		if l == nil || len(l.expr.varCoeffs) != 2 {
			continue
		}
		a, b := l.expr.varCoeffs[0], l.expr.varCoeffs[1]
		if a.coeff < 0 {
			a, b = b, a
		}
		// a.coeff*va - a.coeff*vb constrained to the single interval.
		ea := sat.NewAffineExpression(e.intOf[a.ind], a.coeff, 0)
		eb := sat.NewAffineExpression(e.intOf[b.ind], a.coeff, 0)
		itv := l.domain.intervals[0]
		if itv.End != math.MaxInt64 {
			relations.Add(ea, eb, itv.End)
		}
		if itv.Start != math.MinInt64 {
			relations.Add(eb, ea, sat.CapOpp(itv.Start))
		}
	}

	watcher := sat.NewGenericLiteralWatcher(trail)
	e.watcher = watcher
	if len(allDefs) > 0 {
		p := sat.NewIntervalRelationsPropagator(trail, allDefs)
		p.WatchAll(watcher, watcher.Register(p))
	}
	if len(relations.Relations()) > 0 {
		p := sat.NewDifferenceRelationsPropagator(trail, relations)
		p.WatchAll(watcher, watcher.Register(p))
	}
	if len(views) > 0 {
		p := sat.NewLiteralViewPropagator(trail, views)
		p.WatchAll(watcher, watcher.Register(p))
	}
	if len(holeVars) > 0 {
		p := &domainsPropagator{trail: trail, vars: holeVars, domains: holeDomains}
		id := watcher.Register(p)
		for _, v := range holeVars {
			watcher.WatchIntegerVariable(v, id)
		}
	}
	for _, cs := range m.constraints {
		spec := cs.noOverlap2D
		if spec == nil || len(spec.xIntervals) == 0 {
			continue
		}
		xDefs := make([]sat.IntervalDefinition, len(spec.xIntervals))
		yDefs := make([]sat.IntervalDefinition, len(spec.yIntervals))
		for k := range spec.xIntervals {
			xDefs[k] = defs[spec.xIntervals[k]]
			yDefs[k] = defs[spec.yIntervals[k]]
		}
		helper := sat.NewNoOverlap2DConstraintHelper(trail, xDefs, yDefs)
		sat.RegisterNoOverlap2D(helper, trail, watcher, relations)
	}

	solver := sat.NewSolver(trail, watcher)
	solver.Strategy = strategy
	solver.LogSearchProgress = p.LogSearchProgress
	solver.MaxConflicts = p.MaxNumberOfConflicts
	for i := range m.variables {
		if e.litOf[i] != sat.NoLiteral {
			solver.AddDecisionLiteral(e.litOf[i])
		}
	}
	for i := range m.variables {
		if e.intOf[i] != sat.NoIntegerVariable {
			solver.AddDecisionVariable(e.intOf[i])
		}
	}
	e.solver = solver

	if m.objective != nil && !m.objective.expr.isConstant() {
		form := m.objective.expr
		if m.objective.maximize {
			form = linearForm{
				varCoeffs: []varCoeff{{ind: form.varCoeffs[0].ind, coeff: -form.varCoeffs[0].coeff}},
				offset:    sat.CapOpp(form.offset),
			}
		}
		e.objective = e.affineOf(form)
		e.hasObjective = true
		e.maximize = m.objective.maximize
	}

	e.lastSolution = make([]int64, len(m.variables))
	solver.OnSolution = func() bool {
		for i := range e.lastSolution {
			switch {
			case e.intOf[i] != sat.NoIntegerVariable:
				e.lastSolution[i] = trail.LowerBound(e.intOf[i])
			case e.litOf[i] != sat.NoLiteral && trail.LiteralIsTrue(e.litOf[i]):
				e.lastSolution[i] = 1
			default:
				e.lastSolution[i] = 0
			}
		}
		e.hasSolution = true
		return false
	}
	return e
}

func (e *solveEngine) affineOf(form linearForm) sat.AffineExpression {
	if form.isConstant() {
		return sat.ConstantAffine(form.offset)
	}
	vc := form.varCoeffs[0]
	return sat.NewAffineExpression(e.intOf[vc.ind], vc.coeff, form.offset)
}

// presenceLiteralOf maps the presence index of an interval to an engine
// literal. A presence fixed to true maps to NoLiteral, the helper's marker
// for an always-present task.
func (e *solveEngine) presenceLiteralOf(p VarIndex, effective []Domain) sat.Literal {
	pos := p.positiveIndex()
	lb, _ := effective[pos].Min()
	ub, _ := effective[pos].Max()
	if (p >= 0 && lb >= 1) || (p < 0 && ub <= 0) {
		return sat.NoLiteral
	}
	lit := e.litOf[pos]
	if p < 0 {
		lit = lit.Negated()
	}
	return lit
}

// tighten adds `objective <= cap` at level zero. A false return means no
// remaining value can satisfy the cap, proving the incumbent optimal.
func (e *solveEngine) tighten(cap int64) bool {
	e.trail.BacktrackTo(0)
	return e.trail.Enqueue(e.objective.LowerOrEqual(cap), sat.Reason{})
}

// engineObjective is the minimized-scale objective value of a solution.
func (e *solveEngine) engineObjective(m *Model, solution []int64) int64 {
	if !e.hasObjective {
		return 0
	}
	v := m.objective.expr.evalOn(solution)
	if e.maximize {
		return sat.CapOpp(v)
	}
	return v
}

// run drives one worker: repeated solves with the objective bound tightened
// below the best incumbent, shared through the coordinator. It calls `stop`
// once the outcome is definitive so sibling workers wind down.
func (e *solveEngine) run(ctx context.Context, m *Model, coord *solveCoordinator, stop context.CancelFunc) {
	defer func() {
		coord.addStats(e.solver.Branches(), e.solver.Conflicts())
	}()
	appliedCap := int64(math.MaxInt64)
	tightened := false
	for {
		if ctx.Err() != nil {
			return
		}
		if e.hasObjective {
			if best, ok := coord.bestObjective(); ok {
				if best == math.MinInt64 {
					coord.finish(CpSolverStatusOptimal)
					stop()
					return
				}
				if cap := best - 1; cap < appliedCap {
					if !e.tighten(cap) {
						coord.finish(CpSolverStatusOptimal)
						stop()
						return
					}
					appliedCap = cap
					tightened = true
				}
			}
		}
		switch e.solver.Solve(ctx) {
		case sat.SearchFeasible:
			coord.offer(e.lastSolution, e.engineObjective(m, e.lastSolution))
			if !e.hasObjective {
				coord.finish(CpSolverStatusFeasible)
				stop()
				return
			}
		case sat.SearchInfeasible:
			if tightened || coord.hasIncumbent() {
				coord.finish(CpSolverStatusOptimal)
			} else {
				coord.finish(CpSolverStatusInfeasible)
			}
			stop()
			return
		default:
			// Limit hit or cancelled; the incumbent, if any, stands.
			return
		}
	}
}

// solveCoordinator is the only state shared between portfolio workers: the
// best incumbent on the minimized scale, the first definitive status, and
// accumulated search statistics.
type solveCoordinator struct {
	mu          sync.Mutex
	hasBest     bool
	bestObj     int64
	solution    []int64
	status      CpSolverStatus
	branches    int64
	conflicts   int64
}

func (c *solveCoordinator) offer(solution []int64, obj int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasBest || obj < c.bestObj {
		c.hasBest = true
		c.bestObj = obj
		c.solution = append(c.solution[:0], solution...)
	}
}

func (c *solveCoordinator) bestObjective() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bestObj, c.hasBest
}

func (c *solveCoordinator) hasIncumbent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasBest
}

// finish records a definitive status; the first writer wins.
func (c *solveCoordinator) finish(s CpSolverStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == CpSolverStatusUnknown {
		c.status = s
	}
}

func (c *solveCoordinator) addStats(branches, conflicts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.branches += branches
	c.conflicts += conflicts
}

func (c *solveCoordinator) snapshot() (CpSolverStatus, []int64, bool, int64, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.solution, c.hasBest, c.branches, c.conflicts
}

func (f linearForm) evalOn(solution []int64) int64 {
	result := f.offset
	for _, vc := range f.varCoeffs {
		result += vc.coeff * solution[vc.ind]
	}
	return result
}

// domainsPropagator keeps variable bounds inside domains with holes: a
// bound landing in a hole is pushed to the nearest domain value.
type domainsPropagator struct {
	trail   *sat.Trail
	vars    []sat.IntegerVariable
	domains []Domain
}

// Propagate implements sat.Propagator.
func (p *domainsPropagator) Propagate() bool {
	t := p.trail
	for i, v := range p.vars {
		lb := t.LowerBound(v)
		next, ok := p.domains[i].valueAtOrAfter(lb)
		if !ok {
			var reason sat.Reason
			reason.AddBound(sat.GreaterOrEqual(v, lb))
			return t.ReportConflict(reason)
		}
		if next > lb {
			var reason sat.Reason
			reason.AddBound(sat.GreaterOrEqual(v, lb))
			if !t.Enqueue(sat.GreaterOrEqual(v, next), reason) {
				return false
			}
		}
		ub := t.UpperBound(v)
		prev, ok := p.domains[i].valueAtOrBefore(ub)
		if !ok {
			var reason sat.Reason
			reason.AddBound(sat.LowerOrEqual(v, ub))
			return t.ReportConflict(reason)
		}
		if prev < ub {
			var reason sat.Reason
			reason.AddBound(sat.LowerOrEqual(v, ub))
			if !t.Enqueue(sat.LowerOrEqual(v, prev), reason) {
				return false
			}
		}
	}
	return true
}
