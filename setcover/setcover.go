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

// Package setcover provides approximate solvers for the weighted set-cover
// problem: given subsets of {0, ..., n-1} with costs, select subsets
// covering every element at small total cost. The solvers never return an
// under-covering selection; optimality is not guaranteed.
package setcover

import (
	"math/rand"
	"sort"
)

// Subset is one selectable subset of the elements.
type Subset struct {
	Cost     float64
	Elements []int
}

// Model is a set-cover instance. The element universe is implied by the
// largest element added to any subset. The zero value is an empty model.
type Model struct {
	numElements int
	subsets     []Subset
}

// AddEmptySubset appends a subset with the given cost and no elements.
func (m *Model) AddEmptySubset(cost float64) {
	m.subsets = append(m.subsets, Subset{Cost: cost})
}

// AddElementToLastSubset adds one element to the most recently added subset.
// Elements must not repeat within a subset.
func (m *Model) AddElementToLastSubset(e int) {
	last := len(m.subsets) - 1
	m.subsets[last].Elements = append(m.subsets[last].Elements, e)
	if e >= m.numElements {
		m.numElements = e + 1
	}
}

// NumElements returns the size of the element universe.
func (m *Model) NumElements() int { return m.numElements }

// NumSubsets returns the number of subsets.
func (m *Model) NumSubsets() int { return len(m.subsets) }

// ComputeFeasibility returns true when every element appears in at least one
// subset.
func (m *Model) ComputeFeasibility() bool {
	covered := make([]bool, m.numElements)
	count := 0
	for _, s := range m.subsets {
		for _, e := range s.Elements {
			if !covered[e] {
				covered[e] = true
				count++
			}
		}
	}
	return count == m.numElements
}

// Solution is a selection of subsets.
type Solution struct {
	Chosen []bool
	Cost   float64
}

// Subsets returns the chosen subset indices in increasing order.
func (s Solution) Subsets() []int {
	var out []int
	for i, c := range s.Chosen {
		if c {
			out = append(out, i)
		}
	}
	return out
}

func (m *Model) cost(chosen []bool) float64 {
	total := 0.0
	for i, c := range chosen {
		if c {
			total += m.subsets[i].Cost
		}
	}
	return total
}

// Greedy runs the classic ratio greedy: repeatedly select the subset with
// the best newly-covered-per-cost ratio. It returns false when some element
// is not coverable at all.
func (m *Model) Greedy() (Solution, bool) {
	return m.greedy(nil)
}

// greedy optionally perturbs subset scores with rng to diversify restarts.
func (m *Model) greedy(rng *rand.Rand) (Solution, bool) {
	chosen := make([]bool, len(m.subsets))
	covered := make([]bool, m.numElements)
	remaining := m.numElements
	for remaining > 0 {
		best := -1
		bestScore := 0.0
		for i, s := range m.subsets {
			if chosen[i] {
				continue
			}
			newCount := 0
			for _, e := range s.Elements {
				if !covered[e] {
					newCount++
				}
			}
			if newCount == 0 {
				continue
			}
			score := float64(newCount) / max(s.Cost, 1e-9)
			if rng != nil {
				score *= 0.5 + rng.Float64()
			}
			if best < 0 || score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best < 0 {
			return Solution{}, false
		}
		chosen[best] = true
		for _, e := range m.subsets[best].Elements {
			if !covered[e] {
				covered[e] = true
				remaining--
			}
		}
	}
	return Solution{Chosen: chosen, Cost: m.cost(chosen)}, true
}

// SteepestImprove removes redundant subsets from the solution, dropping the
// most expensive removable subset first, until no subset can be removed
// without uncovering an element. The result covers everything the input
// covered.
func (m *Model) SteepestImprove(sol Solution) Solution {
	chosen := append([]bool(nil), sol.Chosen...)
	coverCount := make([]int, m.numElements)
	for i, c := range chosen {
		if !c {
			continue
		}
		for _, e := range m.subsets[i].Elements {
			coverCount[e]++
		}
	}
	order := make([]int, 0, len(chosen))
	for i, c := range chosen {
		if c {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(a, b int) bool {
		return m.subsets[order[a]].Cost > m.subsets[order[b]].Cost
	})
	for {
		removedAny := false
		for _, i := range order {
			if !chosen[i] {
				continue
			}
			removable := true
			for _, e := range m.subsets[i].Elements {
				if coverCount[e] <= 1 {
					removable = false
					break
				}
			}
			if !removable {
				continue
			}
			chosen[i] = false
			for _, e := range m.subsets[i].Elements {
				coverCount[e]--
			}
			removedAny = true
		}
		if !removedAny {
			break
		}
	}
	return Solution{Chosen: chosen, Cost: m.cost(chosen)}
}

// SolveMinimal chains the heuristics: plain greedy, redundancy elimination,
// then a few randomized greedy restarts keeping the cheapest cover found.
// The restarts are seeded deterministically so identical models give
// identical covers. It returns false when the model is infeasible.
func (m *Model) SolveMinimal() (Solution, bool) {
	best, ok := m.Greedy()
	if !ok {
		return Solution{}, false
	}
	best = m.SteepestImprove(best)
	rng := rand.New(rand.NewSource(int64(m.numElements)*31 + int64(len(m.subsets))))
	for restart := 0; restart < 5; restart++ {
		sol, ok := m.greedy(rng)
		if !ok {
			break
		}
		sol = m.SteepestImprove(sol)
		if sol.Cost < best.Cost {
			best = sol
		}
	}
	return best, true
}
