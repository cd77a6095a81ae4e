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

// RelativePosition is the deduced relation between two boxes that must not
// overlap.
type RelativePosition int

const (
	// PairwiseConflict means the two boxes necessarily overlap.
	PairwiseConflict RelativePosition = iota
	// FirstLeftOfSecond means box one must end on the x axis before box two
	// starts, and so on for the other three.
	FirstLeftOfSecond
	FirstRightOfSecond
	FirstBelowSecond
	FirstAboveSecond
)

func (p RelativePosition) String() string {
	switch p {
	case PairwiseConflict:
		return "conflict"
	case FirstLeftOfSecond:
		return "left_of"
	case FirstRightOfSecond:
		return "right_of"
	case FirstBelowSecond:
		return "below"
	case FirstAboveSecond:
		return "above"
	}
	return "unknown"
}

// NoOverlap2DConstraintHelper serves a set of boxes, each the pairing of one
// task on the x axis with the same-index task on the y axis. A box is
// present only when both axis tasks are present.
//
// The axes can be swapped so that propagation code written against the x
// axis also serves the y axis: the swap remaps the axis indices instead of
// exchanging helper pointers, so callers holding the helper never observe a
// torn state.
type NoOverlap2DConstraintHelper struct {
	trail   *Trail
	axes    [2]*SchedulingConstraintHelper
	xIdx    int
	yIdx    int
	numBoxs int
}

// NewNoOverlap2DConstraintHelper pairs the two interval lists into boxes.
// Both lists must have the same length.
func NewNoOverlap2DConstraintHelper(trail *Trail, xTasks, yTasks []IntervalDefinition) *NoOverlap2DConstraintHelper {
	if len(xTasks) != len(yTasks) {
		log.Fatalf("NewNoOverlap2DConstraintHelper: %d x tasks vs %d y tasks", len(xTasks), len(yTasks))
	}
	return &NoOverlap2DConstraintHelper{
		trail:   trail,
		axes:    [2]*SchedulingConstraintHelper{NewSchedulingConstraintHelper(trail, xTasks), NewSchedulingConstraintHelper(trail, yTasks)},
		xIdx:    0,
		yIdx:    1,
		numBoxs: len(xTasks),
	}
}

// NumBoxes returns the number of boxes.
func (h *NoOverlap2DConstraintHelper) NumBoxes() int { return h.numBoxs }

// X returns the helper of the current x axis.
func (h *NoOverlap2DConstraintHelper) X() *SchedulingConstraintHelper { return h.axes[h.xIdx] }

// Y returns the helper of the current y axis.
func (h *NoOverlap2DConstraintHelper) Y() *SchedulingConstraintHelper { return h.axes[h.yIdx] }

// SynchronizeAndSetDirection selects the axis mapping and time directions
// and refreshes both axis caches. It returns false when a conflict was
// recorded during synchronization.
func (h *NoOverlap2DConstraintHelper) SynchronizeAndSetDirection(xForward, yForward, swapAxes bool) bool {
	if swapAxes {
		h.xIdx, h.yIdx = 1, 0
	} else {
		h.xIdx, h.yIdx = 0, 1
	}
	if !h.X().SynchronizeAndSetTimeDirection(xForward) {
		return false
	}
	return h.Y().SynchronizeAndSetTimeDirection(yForward)
}

// IsPresent returns true when both axis tasks of b are present.
func (h *NoOverlap2DConstraintHelper) IsPresent(b int) bool {
	return h.X().IsPresent(b) && h.Y().IsPresent(b)
}

// IsAbsent returns true when either axis task of b is absent.
func (h *NoOverlap2DConstraintHelper) IsAbsent(b int) bool {
	return h.X().IsAbsent(b) || h.Y().IsAbsent(b)
}

// IsOptional returns true when b is neither present nor absent.
func (h *NoOverlap2DConstraintHelper) IsOptional(b int) bool {
	return !h.IsPresent(b) && !h.IsAbsent(b)
}

// AddPresenceReason appends the presence literals of both axis tasks of b.
func (h *NoOverlap2DConstraintHelper) AddPresenceReason(r *Reason, b int) {
	h.X().AddPresenceReason(r, b)
	h.Y().AddPresenceReason(r, b)
}

// GetBoundingRectangle returns the region box b can reach: start minimum to
// end maximum on both axes.
func (h *NoOverlap2DConstraintHelper) GetBoundingRectangle(b int) Rectangle {
	return Rectangle{
		XMin: h.X().StartMin(b),
		XMax: h.X().EndMax(b),
		YMin: h.Y().StartMin(b),
		YMax: h.Y().EndMax(b),
	}
}

// GetMandatoryRegion returns the region covered by every placement of b
// under the current bounds, computed as [startMax, endMin) per axis, and
// false when that region is empty on either axis. The region may be
// degenerate.
func (h *NoOverlap2DConstraintHelper) GetMandatoryRegion(b int) (Rectangle, bool) {
	xLo, xHi := h.X().StartMax(b), h.X().EndMin(b)
	if xLo > xHi {
		return Rectangle{}, false
	}
	yLo, yHi := h.Y().StartMax(b), h.Y().EndMin(b)
	if yLo > yHi {
		return Rectangle{}, false
	}
	return Rectangle{XMin: xLo, XMax: xHi, YMin: yLo, YMax: yHi}, true
}

// GetItemRangeForSizeMin returns the placement-range snapshot of b with both
// sizes at their minimum. Explanations derived from the snapshot only need
// the start minimum, end maximum and size minimum facts of b.
func (h *NoOverlap2DConstraintHelper) GetItemRangeForSizeMin(b int) RectangleInRange {
	return RectangleInRange{
		BoxIndex: int32(b),
		BoundingArea: Rectangle{
			XMin: h.X().StartMin(b),
			XMax: h.X().EndMax(b),
			YMin: h.Y().StartMin(b),
			YMax: h.Y().EndMax(b),
		},
		XSize: h.X().SizeMin(b),
		YSize: h.Y().SizeMin(b),
	}
}

// GetItemWithVariableSize returns the full bound snapshot of b.
func (h *NoOverlap2DConstraintHelper) GetItemWithVariableSize(b int) ItemWithVariableSize {
	return ItemWithVariableSize{
		Index: int32(b),
		X: VariableSizeInterval{
			StartMin: h.X().StartMin(b),
			StartMax: h.X().StartMax(b),
			EndMin:   h.X().EndMin(b),
			EndMax:   h.X().EndMax(b),
		},
		Y: VariableSizeInterval{
			StartMin: h.Y().StartMin(b),
			StartMax: h.Y().StartMax(b),
			EndMin:   h.Y().EndMin(b),
			EndMax:   h.Y().EndMax(b),
		},
	}
}

// AddMandatoryRegionReason appends the facts forcing the mandatory region of
// b: presence plus the start maximum and end minimum of both axes.
func (h *NoOverlap2DConstraintHelper) AddMandatoryRegionReason(r *Reason, b int) {
	h.AddPresenceReason(r, b)
	h.X().AddStartMaxReason(r, b, h.X().StartMax(b))
	h.X().AddEndMinReason(r, b, h.X().EndMin(b))
	h.Y().AddStartMaxReason(r, b, h.Y().StartMax(b))
	h.Y().AddEndMinReason(r, b, h.Y().EndMin(b))
}

// ReportConflictFromTwoBoxes records a conflict explained by the mandatory
// regions of the two present boxes overlapping. It always returns false.
func (h *NoOverlap2DConstraintHelper) ReportConflictFromTwoBoxes(b1, b2 int) bool {
	var reason Reason
	h.AddMandatoryRegionReason(&reason, b1)
	h.AddMandatoryRegionReason(&reason, b2)
	return h.trail.ReportConflict(reason)
}

// AddRangeReason appends the facts defining the placement-range snapshot:
// presence plus the start minimum, end maximum and size minimum of both
// axes, at the values captured by the snapshot.
func (h *NoOverlap2DConstraintHelper) AddRangeReason(r *Reason, rng RectangleInRange) {
	b := int(rng.BoxIndex)
	h.AddPresenceReason(r, b)
	h.X().AddStartMinReason(r, b, rng.BoundingArea.XMin)
	h.X().AddEndMaxReason(r, b, rng.BoundingArea.XMax)
	h.X().AddSizeMinReason(r, b, rng.XSize)
	h.Y().AddStartMinReason(r, b, rng.BoundingArea.YMin)
	h.Y().AddEndMaxReason(r, b, rng.BoundingArea.YMax)
	h.Y().AddSizeMinReason(r, b, rng.YSize)
}

// ReportConflictFromInfeasibleBoxRanges records a conflict explained by the
// placement ranges of the given boxes admitting no joint placement. It
// always returns false.
func (h *NoOverlap2DConstraintHelper) ReportConflictFromInfeasibleBoxRanges(ranges []RectangleInRange) bool {
	var reason Reason
	for _, rng := range ranges {
		h.AddRangeReason(&reason, rng)
	}
	return h.trail.ReportConflict(reason)
}

// PropagateRelativePosition applies a deduced relation between two present
// boxes. The caller supplies the facts that established the relation; the
// presence of both boxes and the bound used for each push are appended here.
// It returns false when a conflict was recorded.
func (h *NoOverlap2DConstraintHelper) PropagateRelativePosition(first, second int, relation RelativePosition, reason Reason) bool {
	switch relation {
	case PairwiseConflict:
		h.AddPresenceReason(&reason, first)
		h.AddPresenceReason(&reason, second)
		return h.trail.ReportConflict(reason)
	case FirstLeftOfSecond:
		return h.pushApart(h.X(), first, second, reason)
	case FirstRightOfSecond:
		return h.pushApart(h.X(), second, first, reason)
	case FirstBelowSecond:
		return h.pushApart(h.Y(), first, second, reason)
	case FirstAboveSecond:
		return h.pushApart(h.Y(), second, first, reason)
	}
	log.Fatalf("PropagateRelativePosition: unknown relation %d", relation)
	return false
}

// pushApart enforces `end(before) <= start(after)` on one axis: it raises
// the start minimum of after to the end minimum of before, and lowers the
// end maximum of before to the start maximum of after.
func (h *NoOverlap2DConstraintHelper) pushApart(axis *SchedulingConstraintHelper, before, after int, base Reason) bool {
	if axis.EndMin(before) > axis.StartMin(after) {
		reason := base
		h.AddPresenceReason(&reason, before)
		h.AddPresenceReason(&reason, after)
		axis.AddEndMinReason(&reason, before, axis.EndMin(before))
		if !axis.IncreaseStartMin(reason, after, axis.EndMin(before)) {
			return false
		}
	}
	if axis.StartMax(after) < axis.EndMax(before) {
		reason := base
		h.AddPresenceReason(&reason, before)
		h.AddPresenceReason(&reason, after)
		axis.AddStartMaxReason(&reason, after, axis.StartMax(after))
		if !axis.DecreaseEndMax(reason, before, axis.StartMax(after)) {
			return false
		}
	}
	return true
}
