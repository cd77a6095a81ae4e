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
	"context"

	log "github.com/golang/glog"
)

// SearchStatus is the outcome of a search.
type SearchStatus int

const (
	// SearchUnknown means the search stopped on a limit or cancellation
	// before settling the model.
	SearchUnknown SearchStatus = iota
	// SearchFeasible means at least one solution was found.
	SearchFeasible
	// SearchInfeasible means the search space was exhausted without a
	// solution.
	SearchInfeasible
)

func (s SearchStatus) String() string {
	switch s {
	case SearchFeasible:
		return "FEASIBLE"
	case SearchInfeasible:
		return "INFEASIBLE"
	}
	return "UNKNOWN"
}

// SearchStrategy selects branching variants, used to diversify portfolio
// workers. The zero value is the default strategy: presence literals first
// set to true, variables in registration order, fixed to their minimum.
type SearchStrategy struct {
	AssignAbsentFirst    bool
	ReverseVariableOrder bool
	SplitFromAbove       bool
}

// Solver runs a chronological-backtracking depth-first search over the
// registered decisions, propagating to a fixed point at every node. It is
// single-threaded; run independent Solver instances for a portfolio.
type Solver struct {
	// OnSolution is called at every leaf with all decisions assigned; the
	// bounds are readable from the trail during the call. Returning true
	// continues the search for more solutions.
	OnSolution func() bool
	// MaxConflicts stops the search with SearchUnknown once this many
	// conflicts were hit. Zero means no limit.
	MaxConflicts int64
	// LogSearchProgress enables verbose progress logging.
	LogSearchProgress bool
	Strategy          SearchStrategy

	trail   *Trail
	watcher *GenericLiteralWatcher

	decisionLiterals  []Literal
	decisionVariables []IntegerVariable

	conflicts int64
	branches  int64
	solutions int64
}

// NewSolver returns a solver over the given trail and watcher.
func NewSolver(trail *Trail, watcher *GenericLiteralWatcher) *Solver {
	return &Solver{trail: trail, watcher: watcher}
}

// AddDecisionLiteral appends a literal to branch on. The positive phase is
// tried first unless the strategy says otherwise.
func (s *Solver) AddDecisionLiteral(l Literal) {
	s.decisionLiterals = append(s.decisionLiterals, l)
}

// AddDecisionVariable appends an integer variable to branch on with
// min-value splits.
func (s *Solver) AddDecisionVariable(v IntegerVariable) {
	s.decisionVariables = append(s.decisionVariables, v)
}

// Conflicts returns the number of conflicts hit so far.
func (s *Solver) Conflicts() int64 { return s.conflicts }

// Branches returns the number of decisions taken so far.
func (s *Solver) Branches() int64 { return s.branches }

// Solutions returns the number of solutions found so far.
func (s *Solver) Solutions() int64 { return s.solutions }

type searchOutcome int

const (
	outcomeExhausted searchOutcome = iota
	outcomeStop
	outcomeAborted
)

// Solve searches from the root and reports what this call established:
// SearchInfeasible means the space left by the current level-zero bounds
// holds no solution. Tightening a bound at level zero between calls
// therefore implements simple objective descent, with the final
// SearchInfeasible proving the incumbent optimal.
func (s *Solver) Solve(ctx context.Context) SearchStatus {
	s.trail.BacktrackTo(0)
	before := s.solutions
	outcome := s.search(ctx)
	switch outcome {
	case outcomeStop:
		return SearchFeasible
	case outcomeExhausted:
		if s.solutions > before {
			return SearchFeasible
		}
		return SearchInfeasible
	default:
		if s.solutions > before {
			return SearchFeasible
		}
		return SearchUnknown
	}
}

func (s *Solver) search(ctx context.Context) searchOutcome {
	if ctx.Err() != nil {
		return outcomeAborted
	}
	if s.MaxConflicts > 0 && s.conflicts >= s.MaxConflicts {
		return outcomeAborted
	}
	if !s.watcher.Propagate() {
		s.conflicts++
		if s.LogSearchProgress && s.conflicts%1000 == 0 {
			log.V(1).Infof("search: %d conflicts, %d branches", s.conflicts, s.branches)
		}
		return outcomeExhausted
	}
	if l, ok := s.nextLiteral(); ok {
		first := l
		if s.Strategy.AssignAbsentFirst {
			first = l.Negated()
		}
		return s.branchLiteral(ctx, first)
	}
	if v, ok := s.nextVariable(); ok {
		return s.branchVariable(ctx, v)
	}
	s.solutions++
	if s.LogSearchProgress {
		log.V(1).Infof("search: solution #%d after %d branches", s.solutions, s.branches)
	}
	if s.OnSolution != nil && !s.OnSolution() {
		return outcomeStop
	}
	return outcomeExhausted
}

func (s *Solver) branchLiteral(ctx context.Context, first Literal) searchOutcome {
	for _, d := range []Literal{first, first.Negated()} {
		s.branches++
		level := s.trail.CurrentDecisionLevel()
		s.trail.Push()
		s.trail.EnqueueLiteral(d, Reason{})
		outcome := s.search(ctx)
		s.trail.BacktrackTo(level)
		if outcome != outcomeExhausted {
			return outcome
		}
	}
	return outcomeExhausted
}

func (s *Solver) branchVariable(ctx context.Context, v IntegerVariable) searchOutcome {
	var decisions [2]IntegerLiteral
	if s.Strategy.SplitFromAbove {
		// Fix to the maximum, or exclude it.
		ub := s.trail.UpperBound(v)
		decisions[0] = GreaterOrEqual(v, ub)
		decisions[1] = LowerOrEqual(v, CapSub(ub, 1))
	} else {
		// Fix to the minimum, or exclude it.
		lb := s.trail.LowerBound(v)
		decisions[0] = LowerOrEqual(v, lb)
		decisions[1] = GreaterOrEqual(v, CapAdd(lb, 1))
	}
	for _, d := range decisions {
		s.branches++
		level := s.trail.CurrentDecisionLevel()
		s.trail.Push()
		s.trail.Enqueue(d, Reason{})
		outcome := s.search(ctx)
		s.trail.BacktrackTo(level)
		if outcome != outcomeExhausted {
			return outcome
		}
	}
	return outcomeExhausted
}

func (s *Solver) nextLiteral() (Literal, bool) {
	lits := s.decisionLiterals
	if s.Strategy.ReverseVariableOrder {
		for i := len(lits) - 1; i >= 0; i-- {
			if !s.trail.LiteralIsAssigned(lits[i]) {
				return lits[i], true
			}
		}
		return NoLiteral, false
	}
	for _, l := range lits {
		if !s.trail.LiteralIsAssigned(l) {
			return l, true
		}
	}
	return NoLiteral, false
}

func (s *Solver) nextVariable() (IntegerVariable, bool) {
	vars := s.decisionVariables
	if s.Strategy.ReverseVariableOrder {
		for i := len(vars) - 1; i >= 0; i-- {
			if !s.trail.IsFixed(vars[i]) {
				return vars[i], true
			}
		}
		return NoIntegerVariable, false
	}
	for _, v := range vars {
		if !s.trail.IsFixed(v) {
			return v, true
		}
	}
	return NoIntegerVariable, false
}
