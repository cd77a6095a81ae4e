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
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type testBox struct {
	xLo, xHi, xSize int64
	yLo, yHi, ySize int64
	presence        Literal
}

// boxesHelper creates the x and y variables of box b back to back, so box b
// uses the integer variables 4b for x and 4b+2 for y.
func boxesHelper(tr *Trail, boxes []testBox) *NoOverlap2DConstraintHelper {
	xTasks := make([]IntervalDefinition, len(boxes))
	yTasks := make([]IntervalDefinition, len(boxes))
	for i, b := range boxes {
		xTasks[i] = fixedSizeTask(tr, b.xLo, b.xHi, b.xSize, b.presence)
		yTasks[i] = fixedSizeTask(tr, b.yLo, b.yHi, b.ySize, b.presence)
	}
	return NewNoOverlap2DConstraintHelper(tr, xTasks, yTasks)
}

func boxXVar(b int) IntegerVariable { return IntegerVariable(4 * b) }
func boxYVar(b int) IntegerVariable { return IntegerVariable(4*b + 2) }

func TestMandatoryOverlapPropagator_ConflictOnOverlappingRegions(t *testing.T) {
	tr := newTestTrail()
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 0, xSize: 4, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
		{xLo: 2, xHi: 2, xSize: 4, yLo: 2, yHi: 2, ySize: 4, presence: NoLiteral},
	})
	p := &MandatoryOverlapPropagator{helper: helper}

	if p.Propagate() {
		t.Fatalf("Propagate() = true, want false")
	}
	if !tr.HasConflict() {
		t.Fatalf("HasConflict() = false, want true")
	}
	// Box one is reported first since its region ends last on x. Each box
	// contributes its start maximum and end minimum on both axes.
	want := Reason{Bounds: []IntegerLiteral{
		LowerOrEqual(boxXVar(1), 2), GreaterOrEqual(boxXVar(1), 2),
		LowerOrEqual(boxYVar(1), 2), GreaterOrEqual(boxYVar(1), 2),
		LowerOrEqual(boxXVar(0), 0), GreaterOrEqual(boxXVar(0), 0),
		LowerOrEqual(boxYVar(0), 0), GreaterOrEqual(boxYVar(0), 0),
	}}
	if diff := cmp.Diff(want, tr.ConflictReason()); diff != "" {
		t.Errorf("ConflictReason() returned with unexpected diff (-want+got);\n%s", diff)
	}
}

func TestMandatoryOverlapPropagator_NoConflictCases(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tr *Trail) *NoOverlap2DConstraintHelper
	}{
		{
			name: "slack leaves no mandatory region",
			setup: func(tr *Trail) *NoOverlap2DConstraintHelper {
				// The second box can move by more than its width, so it has
				// no mandatory region even though an overlap is possible.
				return boxesHelper(tr, []testBox{
					{xLo: 0, xHi: 0, xSize: 4, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
					{xLo: 0, xHi: 6, xSize: 2, yLo: 0, yHi: 0, ySize: 2, presence: NoLiteral},
				})
			},
		},
		{
			name: "touching regions are disjoint",
			setup: func(tr *Trail) *NoOverlap2DConstraintHelper {
				return boxesHelper(tr, []testBox{
					{xLo: 0, xHi: 0, xSize: 4, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
					{xLo: 4, xHi: 4, xSize: 4, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
				})
			},
		},
		{
			name: "absent box is ignored",
			setup: func(tr *Trail) *NoOverlap2DConstraintHelper {
				lit := PositiveLiteral(tr.AddBooleanVariable())
				if !tr.EnqueueLiteral(lit.Negated(), Reason{}) {
					t.Fatalf("EnqueueLiteral(%v) = false, want true", lit.Negated())
				}
				return boxesHelper(tr, []testBox{
					{xLo: 0, xHi: 0, xSize: 4, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
					{xLo: 2, xHi: 2, xSize: 4, yLo: 2, yHi: 2, ySize: 4, presence: lit},
				})
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tr := newTestTrail()
			p := &MandatoryOverlapPropagator{helper: test.setup(tr)}
			if !p.Propagate() {
				t.Fatalf("Propagate() = false, want true")
			}
			if tr.HasConflict() {
				t.Errorf("HasConflict() = true, want false")
			}
		})
	}
}

func TestMandatoryOverlapPropagator_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(20240819))
	for round := 0; round < 200; round++ {
		tr := newTestTrail()
		// Fixed boxes make every mandatory region the box itself, so the
		// propagator must conflict exactly when some pair overlaps.
		n := 2 + rng.Intn(5)
		boxes := make([]testBox, n)
		rects := make([]Rectangle, n)
		for i := range boxes {
			x := int64(rng.Intn(12))
			y := int64(rng.Intn(12))
			w := int64(1 + rng.Intn(4))
			h := int64(1 + rng.Intn(4))
			boxes[i] = testBox{xLo: x, xHi: x, xSize: w, yLo: y, yHi: y, ySize: h, presence: NoLiteral}
			rects[i] = Rectangle{XMin: x, XMax: x + w, YMin: y, YMax: y + h}
		}
		p := &MandatoryOverlapPropagator{helper: boxesHelper(tr, boxes)}

		gotConflict := !p.Propagate()
		if want := bruteForceHasIntersection(rects); gotConflict != want {
			t.Fatalf("round %d: conflict = %v, brute force says %v for %v", round, gotConflict, want, rects)
		}
		if gotConflict != tr.HasConflict() {
			t.Fatalf("round %d: Propagate() and HasConflict() disagree: %v vs %v", round, !gotConflict, tr.HasConflict())
		}
	}
}

func TestPairwiseDistancePropagator_SeparatesOnOtherAxis(t *testing.T) {
	tr := newTestTrail()
	// The x spans [0, 10] and [2, 8] are fixed and overlap. On y the first
	// box cannot end below the second one, so it must go on top.
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 0, xSize: 10, yLo: 0, yHi: 6, ySize: 4, presence: NoLiteral},
		{xLo: 2, xHi: 2, xSize: 6, yLo: 0, yHi: 2, ySize: 3, presence: NoLiteral},
	})
	p := NewPairwiseDistancePropagator(helper, tr, NewBinaryRelationRepository())

	if !p.Propagate() {
		t.Fatalf("Propagate() = false, want true")
	}
	if got, want := tr.LowerBound(boxYVar(0)), int64(3); got != want {
		t.Errorf("LowerBound(y0) = %v, want %v", got, want)
	}
	if got, want := tr.LowerBound(boxYVar(1)), int64(0); got != want {
		t.Errorf("LowerBound(y1) = %v, want %v", got, want)
	}
	if got, want := tr.UpperBound(boxYVar(1)), int64(2); got != want {
		t.Errorf("UpperBound(y1) = %v, want %v", got, want)
	}

	// A second pass finds nothing left to push.
	if !p.Propagate() {
		t.Fatalf("second Propagate() = false, want true")
	}
	if got, want := tr.LowerBound(boxYVar(0)), int64(3); got != want {
		t.Errorf("LowerBound(y0) after second pass = %v, want %v", got, want)
	}
}

func TestPairwiseDistancePropagator_ConflictWhenBothAxesOverlap(t *testing.T) {
	tr := newTestTrail()
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 0, xSize: 4, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
		{xLo: 2, xHi: 2, xSize: 4, yLo: 2, yHi: 2, ySize: 4, presence: NoLiteral},
	})
	p := NewPairwiseDistancePropagator(helper, tr, NewBinaryRelationRepository())

	if p.Propagate() {
		t.Fatalf("Propagate() = true, want false")
	}
	// The x facts come first, each direction as end minimum then start
	// maximum.
	want := Reason{Bounds: []IntegerLiteral{
		GreaterOrEqual(boxXVar(0), 0), LowerOrEqual(boxXVar(1), 2),
		GreaterOrEqual(boxXVar(1), 2), LowerOrEqual(boxXVar(0), 0),
		GreaterOrEqual(boxYVar(0), 0), LowerOrEqual(boxYVar(1), 2),
		GreaterOrEqual(boxYVar(1), 2), LowerOrEqual(boxYVar(0), 0),
	}}
	if diff := cmp.Diff(want, tr.ConflictReason()); diff != "" {
		t.Errorf("ConflictReason() returned with unexpected diff (-want+got);\n%s", diff)
	}
}

func TestPairwiseDistancePropagator_UsesDistanceRelations(t *testing.T) {
	tr := newTestTrail()
	// No bound forces the x spans to overlap, but the recorded relations
	// say neither box can end before the other starts on x.
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 10, xSize: 3, yLo: 0, yHi: 0, ySize: 2, presence: NoLiteral},
		{xLo: 0, xHi: 10, xSize: 3, yLo: 0, yHi: 5, ySize: 2, presence: NoLiteral},
	})
	relations := NewBinaryRelationRepository()
	start := func(b int) AffineExpression { return NewAffineExpression(boxXVar(b), 1, 0) }
	end := func(b int) AffineExpression { return NewAffineExpression(boxXVar(b), 1, 3) }
	relations.Add(start(1), end(0), -1)
	relations.Add(start(0), end(1), -1)
	p := NewPairwiseDistancePropagator(helper, tr, relations)

	if !p.Propagate() {
		t.Fatalf("Propagate() = false, want true")
	}
	// The first box occupies y [0, 2], so the second must start above it.
	if got, want := tr.LowerBound(boxYVar(1)), int64(2); got != want {
		t.Errorf("LowerBound(y1) = %v, want %v", got, want)
	}
	if got, want := tr.LowerBound(boxXVar(0)), int64(0); got != want {
		t.Errorf("LowerBound(x0) = %v, want %v", got, want)
	}
	if got, want := tr.UpperBound(boxXVar(1)), int64(10); got != want {
		t.Errorf("UpperBound(x1) = %v, want %v", got, want)
	}
}

func TestTryEdgePropagator_PushesPastBlockingRegion(t *testing.T) {
	tr := newTestTrail()
	// A fixed wall occupies x [0, 3] for all usable y, so the second box
	// can only start at x = 3 or later.
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 0, xSize: 3, yLo: 0, yHi: 0, ySize: 5, presence: NoLiteral},
		{xLo: 0, xHi: 5, xSize: 2, yLo: 1, yHi: 1, ySize: 2, presence: NoLiteral},
	})
	p := NewTryEdgeRectanglePropagator(helper, tr, true, false)

	if !p.Propagate() {
		t.Fatalf("Propagate() = false, want true")
	}
	if got, want := tr.LowerBound(boxXVar(1)), int64(3); got != want {
		t.Errorf("LowerBound(x1) = %v, want %v", got, want)
	}
	if got, want := tr.LowerBound(boxXVar(0)), int64(0); got != want {
		t.Errorf("LowerBound(x0) = %v, want %v", got, want)
	}

	// The witness placement survives the second pass untouched.
	if !p.Propagate() {
		t.Fatalf("second Propagate() = false, want true")
	}
	if got, want := tr.LowerBound(boxXVar(1)), int64(3); got != want {
		t.Errorf("LowerBound(x1) after second pass = %v, want %v", got, want)
	}
}

func TestTryEdgePropagator_BackwardLowersEndMax(t *testing.T) {
	tr := newTestTrail()
	// The wall sits at x [4, 7], so in the mirrored direction the second
	// box is pushed to end at 4, leaving its start at most 2.
	helper := boxesHelper(tr, []testBox{
		{xLo: 4, xHi: 4, xSize: 3, yLo: 0, yHi: 0, ySize: 5, presence: NoLiteral},
		{xLo: 0, xHi: 5, xSize: 2, yLo: 1, yHi: 1, ySize: 2, presence: NoLiteral},
	})
	p := NewTryEdgeRectanglePropagator(helper, tr, false, false)

	if !p.Propagate() {
		t.Fatalf("Propagate() = false, want true")
	}
	if got, want := tr.UpperBound(boxXVar(1)), int64(2); got != want {
		t.Errorf("UpperBound(x1) = %v, want %v", got, want)
	}
	if got, want := tr.LowerBound(boxXVar(1)), int64(0); got != want {
		t.Errorf("LowerBound(x1) = %v, want %v", got, want)
	}
}

func TestTryEdgePropagator_SwappedAxesPushesY(t *testing.T) {
	tr := newTestTrail()
	// The wall occupies y [0, 3] across the usable x range, so with the
	// axes swapped the second box is pushed upward.
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 0, xSize: 5, yLo: 0, yHi: 0, ySize: 3, presence: NoLiteral},
		{xLo: 1, xHi: 1, xSize: 2, yLo: 0, yHi: 5, ySize: 2, presence: NoLiteral},
	})
	p := NewTryEdgeRectanglePropagator(helper, tr, true, true)

	if !p.Propagate() {
		t.Fatalf("Propagate() = false, want true")
	}
	if got, want := tr.LowerBound(boxYVar(1)), int64(3); got != want {
		t.Errorf("LowerBound(y1) = %v, want %v", got, want)
	}
	if got, want := tr.LowerBound(boxXVar(1)), int64(1); got != want {
		t.Errorf("LowerBound(x1) = %v, want %v", got, want)
	}
}

func TestTryEdgePropagator_ConflictWhenBoxFitsNowhere(t *testing.T) {
	tr := newTestTrail()
	// The wall covers x [0, 3] and the second box must fit two units of
	// width inside x [0, 4], so no candidate position is free.
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 0, xSize: 3, yLo: 0, yHi: 0, ySize: 5, presence: NoLiteral},
		{xLo: 0, xHi: 2, xSize: 2, yLo: 1, yHi: 1, ySize: 2, presence: NoLiteral},
	})
	p := NewTryEdgeRectanglePropagator(helper, tr, true, false)

	if p.Propagate() {
		t.Fatalf("Propagate() = true, want false")
	}
	// The failing box's full range comes first, then the blocking wall's.
	want := Reason{Bounds: []IntegerLiteral{
		GreaterOrEqual(boxXVar(1), 0), LowerOrEqual(boxXVar(1), 2),
		GreaterOrEqual(boxYVar(1), 1), LowerOrEqual(boxYVar(1), 1),
		GreaterOrEqual(boxXVar(0), 0), LowerOrEqual(boxXVar(0), 0),
		GreaterOrEqual(boxYVar(0), 0), LowerOrEqual(boxYVar(0), 0),
	}}
	if diff := cmp.Diff(want, tr.ConflictReason()); diff != "" {
		t.Errorf("ConflictReason() returned with unexpected diff (-want+got);\n%s", diff)
	}
}

func TestTryEdgePropagator_ConflictRoundDropsUnscannedWitnesses(t *testing.T) {
	tr := newTestTrail()
	// Round one: no box has a mandatory region, every witness sits at its
	// own minimum.
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 10, xSize: 2, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
		{xLo: 0, xHi: 3, xSize: 3, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
		{xLo: 0, xHi: 6, xSize: 2, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
	})
	p := NewTryEdgeRectanglePropagator(helper, tr, true, false)

	if !p.Propagate() {
		t.Fatalf("first Propagate() = false, want true")
	}

	// At level zero the middle box becomes a wall on x [0, 3) that covers
	// the cached witnesses of the other two.
	if !tr.Enqueue(LowerOrEqual(boxXVar(1), 0), Reason{}) {
		t.Fatalf("level zero tighten of x1 failed")
	}
	// At level one the first box is wedged against the wall and fits
	// nowhere, so the next round conflicts before reaching the last box.
	tr.Push()
	if !tr.Enqueue(LowerOrEqual(boxXVar(0), 1), Reason{}) {
		t.Fatalf("tighten of x0 failed")
	}
	if p.Propagate() {
		t.Fatalf("second Propagate() = true, want false")
	}
	if !tr.HasConflict() {
		t.Fatalf("HasConflict() = false, want true")
	}

	// After backtracking only the first box differs from the stored
	// snapshot, so the last box is revisited purely because its witness
	// was dropped during the conflict round. Both must move past the wall.
	tr.BacktrackTo(0)
	if !p.Propagate() {
		t.Fatalf("third Propagate() = false, want true")
	}
	if got, want := tr.LowerBound(boxXVar(0)), int64(3); got != want {
		t.Errorf("LowerBound(x0) = %v, want %v", got, want)
	}
	if got, want := tr.LowerBound(boxXVar(2)), int64(3); got != want {
		t.Errorf("LowerBound(x2) = %v, want %v", got, want)
	}
}

// randomWallsAndMover builds a few fixed walls plus one box with slack on
// both axes, returning the helper and the mover's index.
func randomWallsAndMover(tr *Trail, rng *rand.Rand) (*NoOverlap2DConstraintHelper, int) {
	n := 2 + rng.Intn(3)
	boxes := make([]testBox, 0, n+1)
	for i := 0; i < n; i++ {
		x := int64(rng.Intn(8))
		y := int64(rng.Intn(5))
		boxes = append(boxes, testBox{
			xLo: x, xHi: x, xSize: int64(1 + rng.Intn(3)),
			yLo: y, yHi: y, ySize: int64(1 + rng.Intn(3)),
			presence: NoLiteral,
		})
	}
	boxes = append(boxes, testBox{
		xLo: 0, xHi: int64(rng.Intn(9)), xSize: int64(1 + rng.Intn(3)),
		yLo: 0, yHi: int64(rng.Intn(4)), ySize: int64(1 + rng.Intn(3)),
		presence: NoLiteral,
	})
	return boxesHelper(tr, boxes), len(boxes) - 1
}

func TestTryEdgePropagator_PushedIntervalAdmitsNoPlacement(t *testing.T) {
	rng := rand.New(rand.NewSource(20240826))
	pushes := 0
	for round := 0; round < 200; round++ {
		tr := newTestTrail()
		helper, _ := randomWallsAndMover(tr, rng)
		if !helper.SynchronizeAndSetDirection(true, true, false) {
			t.Fatalf("round %d: SynchronizeAndSetDirection = false, want true", round)
		}
		n := helper.NumBoxes()
		ranges := make([]RectangleInRange, n)
		regions := make([]Rectangle, n)
		hasRegion := make([]bool, n)
		for b := 0; b < n; b++ {
			ranges[b] = helper.GetItemRangeForSizeMin(b)
			regions[b], hasRegion[b] = helper.GetMandatoryRegion(b)
		}
		blocked := func(place Rectangle, mover int) bool {
			for b := 0; b < n; b++ {
				if b != mover && hasRegion[b] && !place.IsDisjoint(regions[b]) {
					return true
				}
			}
			return false
		}
		placeAt := func(b int, x, y int64) Rectangle {
			return Rectangle{XMin: x, XMax: x + ranges[b].XSize, YMin: y, YMax: y + ranges[b].YSize}
		}
		fitsSomewhere := func(b int) bool {
			for x := ranges[b].BoundingArea.XMin; x <= ranges[b].BoundingArea.XMax-ranges[b].XSize; x++ {
				for y := ranges[b].BoundingArea.YMin; y <= ranges[b].BoundingArea.YMax-ranges[b].YSize; y++ {
					if !blocked(placeAt(b, x, y), b) {
						return true
					}
				}
			}
			return false
		}

		p := NewTryEdgeRectanglePropagator(helper, tr, true, false)
		if !p.Propagate() {
			// A conflict must mean some box has no free position at all.
			stuck := false
			for b := 0; b < n; b++ {
				if !fitsSomewhere(b) {
					stuck = true
					break
				}
			}
			if !stuck {
				t.Fatalf("round %d: conflict reported but every box fits somewhere", round)
			}
			continue
		}
		// Every position swept over by a push must be blocked by the
		// regions the push was derived against.
		for b := 0; b < n; b++ {
			newMin := tr.LowerBound(boxXVar(b))
			if newMin <= ranges[b].BoundingArea.XMin {
				continue
			}
			pushes++
			for x := ranges[b].BoundingArea.XMin; x < newMin; x++ {
				for y := ranges[b].BoundingArea.YMin; y <= ranges[b].BoundingArea.YMax-ranges[b].YSize; y++ {
					if !blocked(placeAt(b, x, y), b) {
						t.Fatalf("round %d: box %d pushed to %d but fits at (%d, %d)", round, b, newMin, x, y)
					}
				}
			}
		}
	}
	if pushes == 0 {
		t.Fatalf("no push was exercised across all rounds")
	}
}

func TestTryEdgePropagator_MinimizedBlockersCoverRejections(t *testing.T) {
	rng := rand.New(rand.NewSource(20240824))
	checked := 0
	for round := 0; round < 200; round++ {
		tr := newTestTrail()
		helper, mover := randomWallsAndMover(tr, rng)
		if !helper.SynchronizeAndSetDirection(true, true, false) {
			t.Fatalf("round %d: SynchronizeAndSetDirection = false, want true", round)
		}
		p := NewTryEdgeRectanglePropagator(helper, tr, true, false)
		n := helper.NumBoxes()
		p.ensureSize(n)
		p.snapshotBoxes(n)
		p.collectCandidates(n)

		placement, found := p.findPlacement(mover)
		var cover []int
		bound := int64(0)
		if found {
			if placement.XMin == p.ranges[mover].BoundingArea.XMin {
				continue
			}
			bound = placement.XMin
			cover = p.minimalBlockers(bound)
		} else {
			bound = p.ranges[mover].BoundingArea.XMax
			cover = p.coverRejected(func(rejectedPosition) bool { return true })
		}

		// The minimized set alone must still reject every candidate
		// position the scan rejected below the derived bound.
		for _, rej := range p.rejected {
			if rej.x >= bound {
				continue
			}
			checked++
			place := Rectangle{
				XMin: rej.x, XMax: rej.x + p.ranges[mover].XSize,
				YMin: rej.y, YMax: rej.y + p.ranges[mover].YSize,
			}
			coveredBy := -1
			for _, b := range cover {
				if !place.IsDisjoint(p.mandatory[b]) {
					coveredBy = b
					break
				}
			}
			if coveredBy < 0 {
				t.Fatalf("round %d: rejected position (%d, %d) not blocked by minimized set %v",
					round, rej.x, rej.y, cover)
			}
		}
	}
	if checked == 0 {
		t.Fatalf("no rejected position was exercised across all rounds")
	}
}

func TestTryEdgePropagator_PushesPastStackedWalls(t *testing.T) {
	tr := newTestTrail()
	// Two fixed 5x5 walls cover x [0, 5) at y 0 and y 6. The gap between
	// them is one unit high, so the third 5x5 box fits nowhere left of the
	// walls and every surviving placement starts at x = 5.
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 0, xSize: 5, yLo: 0, yHi: 0, ySize: 5, presence: NoLiteral},
		{xLo: 0, xHi: 0, xSize: 5, yLo: 6, yHi: 6, ySize: 5, presence: NoLiteral},
		{xLo: 0, xHi: 5, xSize: 5, yLo: 0, yHi: 5, ySize: 5, presence: NoLiteral},
	})
	p := NewTryEdgeRectanglePropagator(helper, tr, true, false)

	if !p.Propagate() {
		t.Fatalf("Propagate() = false, want true")
	}
	if got, want := tr.LowerBound(boxXVar(2)), int64(5); got != want {
		t.Errorf("LowerBound(x2) = %v, want %v", got, want)
	}
	if got, want := tr.LowerBound(boxYVar(2)), int64(0); got != want {
		t.Errorf("LowerBound(y2) = %v, want %v", got, want)
	}
	if tr.HasConflict() {
		t.Errorf("HasConflict() = true, want false")
	}
}

func TestTryEdgePropagator_ConflictWhenPinnedBehindStackedWalls(t *testing.T) {
	tr := newTestTrail()
	// Same walls, but the third box is pinned to x = 0 where the walls block
	// every y position.
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 0, xSize: 5, yLo: 0, yHi: 0, ySize: 5, presence: NoLiteral},
		{xLo: 0, xHi: 0, xSize: 5, yLo: 6, yHi: 6, ySize: 5, presence: NoLiteral},
		{xLo: 0, xHi: 0, xSize: 5, yLo: 0, yHi: 5, ySize: 5, presence: NoLiteral},
	})
	p := NewTryEdgeRectanglePropagator(helper, tr, true, false)

	if p.Propagate() {
		t.Fatalf("Propagate() = true, want false")
	}
	if !tr.HasConflict() {
		t.Fatalf("HasConflict() = false, want true")
	}
}

func TestRegisterNoOverlap2D_PropagatesAtLevelZero(t *testing.T) {
	tr := newTestTrail()
	// All three boxes share the same fixed y span, so they pack on x. The
	// first is a fixed wall on [0, 3]; the other two must move right of it.
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 0, xSize: 3, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
		{xLo: 0, xHi: 5, xSize: 3, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
		{xLo: 0, xHi: 7, xSize: 2, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
	})
	watcher := NewGenericLiteralWatcher(tr)
	RegisterNoOverlap2D(helper, tr, watcher, NewBinaryRelationRepository())

	if !watcher.Propagate() {
		t.Fatalf("Propagate() = false, want true")
	}
	if got, want := tr.LowerBound(boxXVar(1)), int64(3); got != want {
		t.Errorf("LowerBound(x1) = %v, want %v", got, want)
	}
	if got, want := tr.UpperBound(boxXVar(1)), int64(5); got != want {
		t.Errorf("UpperBound(x1) = %v, want %v", got, want)
	}
	if got, want := tr.LowerBound(boxXVar(2)), int64(3); got != want {
		t.Errorf("LowerBound(x2) = %v, want %v", got, want)
	}
	if tr.HasConflict() {
		t.Errorf("HasConflict() = true, want false")
	}
}

func TestNoOverlap2D_EnumeratesPerfectPackings(t *testing.T) {
	tr := newTestTrail()
	// Sizes 3, 3 and 2 fill x [0, 8] exactly, so the solutions are the six
	// orderings of a gapless packing.
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 5, xSize: 3, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
		{xLo: 0, xHi: 5, xSize: 3, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
		{xLo: 0, xHi: 6, xSize: 2, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
	})
	watcher := NewGenericLiteralWatcher(tr)
	RegisterNoOverlap2D(helper, tr, watcher, NewBinaryRelationRepository())
	s := NewSolver(tr, watcher)
	s.AddDecisionVariable(boxXVar(0))
	s.AddDecisionVariable(boxXVar(1))
	s.AddDecisionVariable(boxXVar(2))

	var got [][3]int64
	s.OnSolution = func() bool {
		got = append(got, [3]int64{
			tr.FixedValue(boxXVar(0)),
			tr.FixedValue(boxXVar(1)),
			tr.FixedValue(boxXVar(2)),
		})
		return true
	}

	if gotStatus, want := s.Solve(context.Background()), SearchFeasible; gotStatus != want {
		t.Fatalf("Solve() = %v, want %v", gotStatus, want)
	}
	want := [][3]int64{
		{0, 3, 6}, {0, 5, 3}, {2, 5, 0}, {3, 0, 6}, {5, 0, 3}, {5, 2, 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("packings returned with unexpected diff (-want+got);\n%s", diff)
	}
}

func TestNoOverlap2D_InfeasiblePacking(t *testing.T) {
	tr := newTestTrail()
	// Three boxes of width 3 cannot fit in x [0, 8] on one row.
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 5, xSize: 3, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
		{xLo: 0, xHi: 5, xSize: 3, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
		{xLo: 0, xHi: 5, xSize: 3, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
	})
	watcher := NewGenericLiteralWatcher(tr)
	RegisterNoOverlap2D(helper, tr, watcher, NewBinaryRelationRepository())
	s := NewSolver(tr, watcher)
	s.AddDecisionVariable(boxXVar(0))
	s.AddDecisionVariable(boxXVar(1))
	s.AddDecisionVariable(boxXVar(2))

	if got, want := s.Solve(context.Background()), SearchInfeasible; got != want {
		t.Fatalf("Solve() = %v, want %v", got, want)
	}
	if got, want := s.Solutions(), int64(0); got != want {
		t.Errorf("Solutions() = %v, want %v", got, want)
	}
	if s.Conflicts() == 0 {
		t.Errorf("Conflicts() = 0, want > 0")
	}
}

func TestNoOverlap2D_BlockedOptionalBox(t *testing.T) {
	tr := newTestTrail()
	lit := PositiveLiteral(tr.AddBooleanVariable())
	// The optional box sits entirely inside the fixed one, so the only
	// solution leaves it absent.
	helper := boxesHelper(tr, []testBox{
		{xLo: 0, xHi: 0, xSize: 4, yLo: 0, yHi: 0, ySize: 4, presence: NoLiteral},
		{xLo: 1, xHi: 1, xSize: 2, yLo: 1, yHi: 1, ySize: 2, presence: lit},
	})
	watcher := NewGenericLiteralWatcher(tr)
	RegisterNoOverlap2D(helper, tr, watcher, NewBinaryRelationRepository())
	s := NewSolver(tr, watcher)
	s.AddDecisionLiteral(lit)

	var present []bool
	s.OnSolution = func() bool {
		present = append(present, tr.LiteralIsTrue(lit))
		return true
	}

	if got, want := s.Solve(context.Background()), SearchFeasible; got != want {
		t.Fatalf("Solve() = %v, want %v", got, want)
	}
	if diff := cmp.Diff([]bool{false}, present); diff != "" {
		t.Errorf("presence values returned with unexpected diff (-want+got);\n%s", diff)
	}
	if s.Conflicts() == 0 {
		t.Errorf("Conflicts() = 0, want > 0")
	}
}

func TestNoOverlap2D_RandomFeasiblePackings(t *testing.T) {
	rng := rand.New(rand.NewSource(20240823))
	for round := 0; round < 100; round++ {
		tr := newTestTrail()
		// Two rows of boxes laid side by side with random gaps are disjoint
		// by construction. Each box then gets random slack around its known
		// position, so that position stays feasible after relaxation.
		var boxes []testBox
		var knownX, knownY []int64
		for row := 0; row < 2; row++ {
			y := int64(row * 10)
			x := int64(0)
			for i, n := 0, 1+rng.Intn(4); i < n; i++ {
				x += int64(rng.Intn(3))
				w := int64(1 + rng.Intn(3))
				h := int64(1 + rng.Intn(4))
				boxes = append(boxes, testBox{
					xLo: x - int64(rng.Intn(3)), xHi: x + int64(rng.Intn(3)), xSize: w,
					yLo: y - int64(rng.Intn(3)), yHi: y + int64(rng.Intn(3)), ySize: h,
					presence: NoLiteral,
				})
				knownX = append(knownX, x)
				knownY = append(knownY, y)
				x += w
			}
		}
		helper := boxesHelper(tr, boxes)
		watcher := NewGenericLiteralWatcher(tr)
		RegisterNoOverlap2D(helper, tr, watcher, NewBinaryRelationRepository())

		// The known placement is feasible, so the fixed point cannot fail
		// and every pushed bound must keep that placement in range.
		if !watcher.Propagate() {
			t.Fatalf("round %d: Propagate() = false, want true", round)
		}
		for b := range boxes {
			if lb := tr.LowerBound(boxXVar(b)); lb > knownX[b] {
				t.Fatalf("round %d: LowerBound(x%d) = %v, want <= %v", round, b, lb, knownX[b])
			}
			if ub := tr.UpperBound(boxXVar(b)); ub < knownX[b] {
				t.Fatalf("round %d: UpperBound(x%d) = %v, want >= %v", round, b, ub, knownX[b])
			}
			if lb := tr.LowerBound(boxYVar(b)); lb > knownY[b] {
				t.Fatalf("round %d: LowerBound(y%d) = %v, want <= %v", round, b, lb, knownY[b])
			}
			if ub := tr.UpperBound(boxYVar(b)); ub < knownY[b] {
				t.Fatalf("round %d: UpperBound(y%d) = %v, want >= %v", round, b, ub, knownY[b])
			}
		}

		s := NewSolver(tr, watcher)
		for b := range boxes {
			s.AddDecisionVariable(boxXVar(b))
			s.AddDecisionVariable(boxYVar(b))
		}
		if got, want := s.Solve(context.Background()), SearchFeasible; got != want {
			t.Fatalf("round %d: Solve() = %v, want %v", round, got, want)
		}
		if got, want := s.Solutions(), int64(1); got != want {
			t.Fatalf("round %d: Solutions() = %v, want %v", round, got, want)
		}
	}
}
