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

// Propagator deduces new bounds from the current trail state. Propagate
// returns false iff it recorded a conflict on the trail; in that case the
// bounds it pushed before the conflict remain valid.
type Propagator interface {
	Propagate() bool
}

// GenericLiteralWatcher schedules propagators: each propagator registers the
// variables and literals it watches, and Propagate runs woken propagators in
// priority order until no watched fact changes anymore. Everything runs on
// the caller's goroutine.
type GenericLiteralWatcher struct {
	trail *Trail

	propagators    []Propagator
	priority       []int
	mayNotReachFP  []bool
	inQueue        []bool
	eventsAtRun    []int
	queues         [][]int
	lowerWatchers  [][]int
	literalWatcher [][]int

	boundCursor   int
	literalCursor int
	totalEvents   int
	lastEpoch     uint64
	started       bool
}

// NewGenericLiteralWatcher returns a watcher bound to the trail.
func NewGenericLiteralWatcher(trail *Trail) *GenericLiteralWatcher {
	return &GenericLiteralWatcher{trail: trail, queues: make([][]int, 1)}
}

// Register adds a propagator and returns its id for the watch calls.
// The propagator starts at priority 0 (highest).
func (w *GenericLiteralWatcher) Register(p Propagator) int {
	id := len(w.propagators)
	w.propagators = append(w.propagators, p)
	w.priority = append(w.priority, 0)
	w.mayNotReachFP = append(w.mayNotReachFP, false)
	w.inQueue = append(w.inQueue, false)
	w.eventsAtRun = append(w.eventsAtRun, 0)
	return id
}

// SetPropagatorPriority sets the scheduling priority, 0 being run first.
func (w *GenericLiteralWatcher) SetPropagatorPriority(id, priority int) {
	w.priority[id] = priority
	for len(w.queues) <= priority {
		w.queues = append(w.queues, nil)
	}
}

// NotifyThatPropagatorMayNotReachFixedPointInOnePass marks a propagator
// whose single run may leave more of its own deductions available. The
// watcher keeps re-running it as long as the round changed anything,
// including changes the propagator made itself.
func (w *GenericLiteralWatcher) NotifyThatPropagatorMayNotReachFixedPointInOnePass(id int) {
	w.mayNotReachFP[id] = true
}

// WatchLowerBound wakes id when the lower bound of v increases.
func (w *GenericLiteralWatcher) WatchLowerBound(v IntegerVariable, id int) {
	for len(w.lowerWatchers) <= int(v) {
		w.lowerWatchers = append(w.lowerWatchers, nil)
	}
	w.lowerWatchers[v] = append(w.lowerWatchers[v], id)
}

// WatchUpperBound wakes id when the upper bound of v decreases.
func (w *GenericLiteralWatcher) WatchUpperBound(v IntegerVariable, id int) {
	w.WatchLowerBound(NegationOf(v), id)
}

// WatchIntegerVariable wakes id on any bound change of v.
func (w *GenericLiteralWatcher) WatchIntegerVariable(v IntegerVariable, id int) {
	w.WatchLowerBound(v, id)
	w.WatchUpperBound(v, id)
}

// WatchAffineExpression wakes id on any bound change of the expression.
func (w *GenericLiteralWatcher) WatchAffineExpression(a AffineExpression, id int) {
	if !a.IsConstant() {
		w.WatchIntegerVariable(a.Var, id)
	}
}

// WatchLiteral wakes id when l becomes true. Watch both polarities to wake
// on any assignment of the underlying variable.
func (w *GenericLiteralWatcher) WatchLiteral(l Literal, id int) {
	for len(w.literalWatcher) <= int(l) {
		w.literalWatcher = append(w.literalWatcher, nil)
	}
	w.literalWatcher[l] = append(w.literalWatcher[l], id)
}

func (w *GenericLiteralWatcher) enqueue(id int) {
	if w.inQueue[id] {
		return
	}
	w.inQueue[id] = true
	p := w.priority[id]
	w.queues[p] = append(w.queues[p], id)
}

func (w *GenericLiteralWatcher) wakeAll() {
	for id := range w.propagators {
		w.enqueue(id)
	}
}

// dispatchEvents wakes watchers of trail events not yet seen. Events the
// running propagator produced itself do not re-wake it; propagators that may
// not reach their fixed point in one pass are instead re-queued at the end
// of the round when anything changed since they last ran.
func (w *GenericLiteralWatcher) dispatchEvents(producer int) {
	boundEvents := w.trail.boundEvents
	for ; w.boundCursor < len(boundEvents); w.boundCursor++ {
		v := boundEvents[w.boundCursor]
		w.totalEvents++
		if int(v) < len(w.lowerWatchers) {
			for _, id := range w.lowerWatchers[v] {
				if id != producer {
					w.enqueue(id)
				}
			}
		}
	}
	literalEvents := w.trail.literalEvents
	for ; w.literalCursor < len(literalEvents); w.literalCursor++ {
		l := literalEvents[w.literalCursor]
		w.totalEvents++
		if int(l) < len(w.literalWatcher) {
			for _, id := range w.literalWatcher[l] {
				if id != producer {
					w.enqueue(id)
				}
			}
		}
	}
}

func (w *GenericLiteralWatcher) popQueued() (int, bool) {
	for p := range w.queues {
		q := w.queues[p]
		if len(q) == 0 {
			continue
		}
		id := q[0]
		w.queues[p] = q[1:]
		w.inQueue[id] = false
		return id, true
	}
	return 0, false
}

// Propagate runs woken propagators to their common fixed point. It returns
// false when some propagator recorded a conflict. After a backtrack every
// propagator is woken, since the trail event stream was truncated.
func (w *GenericLiteralWatcher) Propagate() bool {
	if !w.started || w.lastEpoch != w.trail.Epoch() {
		w.started = true
		w.lastEpoch = w.trail.Epoch()
		w.boundCursor = 0
		w.literalCursor = 0
		w.wakeAll()
	}
	for {
		w.dispatchEvents(-1)
		id, ok := w.popQueued()
		if !ok {
			// Fixed point of the queued propagators. Re-queue the ones that
			// asked to be recalled while the round made progress.
			requeued := false
			for pid := range w.propagators {
				if w.mayNotReachFP[pid] && w.eventsAtRun[pid] < w.totalEvents {
					w.enqueue(pid)
					requeued = true
				}
			}
			if !requeued {
				return true
			}
			id, _ = w.popQueued()
		}
		w.eventsAtRun[id] = w.totalEvents
		if !w.propagators[id].Propagate() {
			return false
		}
		w.dispatchEvents(id)
	}
}
