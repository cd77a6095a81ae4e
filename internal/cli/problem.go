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

package cli

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/boxsat/boxsat/cpmodel"
)

// Range bounds the start coordinate of a box along one axis.
type Range struct {
	Min int64 `yaml:"min"`
	Max int64 `yaml:"max"`
}

// Area is an optional bounding area. It provides the default coordinate
// range for boxes that do not declare one: [0, dimension - box size].
type Area struct {
	Width  int64 `yaml:"width"`
	Height int64 `yaml:"height"`
}

// Box is one rectangle to place. An optional box may be left out of the
// placement entirely.
type Box struct {
	Name     string `yaml:"name"`
	Width    int64  `yaml:"width"`
	Height   int64  `yaml:"height"`
	X        *Range `yaml:"x"`
	Y        *Range `yaml:"y"`
	Optional bool   `yaml:"optional"`
}

// Problem is the YAML description of a placement problem.
type Problem struct {
	Name      string `yaml:"name"`
	Area      *Area  `yaml:"area"`
	Boxes     []Box  `yaml:"boxes"`
	Objective string `yaml:"objective"`
}

// Objective values accepted in problem files.
const (
	ObjectiveNone  = ""
	ObjectiveSpanX = "span_x"
	ObjectiveSpanY = "span_y"
)

type axis int

const (
	axisX axis = iota
	axisY
)

// LoadProblem reads and validates a problem file. Unknown YAML fields are
// rejected.
func LoadProblem(path string) (*Problem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var p Problem
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &p, nil
}

// Validate checks the problem description and fills in missing box names.
func (p *Problem) Validate() error {
	if len(p.Boxes) == 0 {
		return errors.New("problem has no boxes")
	}
	switch p.Objective {
	case ObjectiveNone, ObjectiveSpanX, ObjectiveSpanY:
	default:
		return fmt.Errorf("unknown objective %q, want %q or %q", p.Objective, ObjectiveSpanX, ObjectiveSpanY)
	}
	if p.Area != nil && (p.Area.Width < 0 || p.Area.Height < 0) {
		return errors.New("area dimensions must not be negative")
	}
	seen := make(map[string]bool)
	for i := range p.Boxes {
		b := &p.Boxes[i]
		if b.Name == "" {
			b.Name = fmt.Sprintf("box%d", i+1)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate box name %q", b.Name)
		}
		seen[b.Name] = true
		if b.Width < 0 || b.Height < 0 {
			return fmt.Errorf("box %q: dimensions must not be negative", b.Name)
		}
		if p.Objective != ObjectiveNone && b.Optional {
			return fmt.Errorf("objective %s requires all boxes to be mandatory, but box %q is optional", p.Objective, b.Name)
		}
		if _, _, err := p.startRange(b, axisX); err != nil {
			return err
		}
		if _, _, err := p.startRange(b, axisY); err != nil {
			return err
		}
	}
	return nil
}

// startRange resolves the coordinate range of a box along an axis: the
// explicit range when declared, otherwise the range the area leaves for the
// box.
func (p *Problem) startRange(b *Box, a axis) (int64, int64, error) {
	r, size, name := b.X, b.Width, "x"
	if a == axisY {
		r, size, name = b.Y, b.Height, "y"
	}
	if r != nil {
		if r.Min > r.Max {
			return 0, 0, fmt.Errorf("box %q: empty %s range [%d, %d]", b.Name, name, r.Min, r.Max)
		}
		return r.Min, r.Max, nil
	}
	if p.Area == nil {
		return 0, 0, fmt.Errorf("box %q needs a %s range or the problem needs an area", b.Name, name)
	}
	limit := p.Area.Width
	if a == axisY {
		limit = p.Area.Height
	}
	if size > limit {
		return 0, 0, fmt.Errorf("box %q does not fit the area along %s", b.Name, name)
	}
	return 0, limit - size, nil
}

func (p *Problem) objectiveAxis() axis {
	if p.Objective == ObjectiveSpanY {
		return axisY
	}
	return axisX
}

// boxVars holds the model variables of one box.
type boxVars struct {
	X, Y   cpmodel.IntVar
	Placed *cpmodel.BoolVar // nil for a mandatory box
}

// problemModel is a problem translated into a constraint model.
type problemModel struct {
	builder *cpmodel.Builder
	boxes   []boxVars
	span    *cpmodel.IntVar
}

// buildModel translates the problem: one interval per box and axis, a single
// no-overlap constraint over all rectangles, and optionally a minimized span
// along one axis. The problem must have passed Validate.
func buildModel(p *Problem) *problemModel {
	b := cpmodel.NewCpModelBuilder()
	pm := &problemModel{builder: b, boxes: make([]boxVars, len(p.Boxes))}
	noOverlap := b.AddNoOverlap2D()
	for i := range p.Boxes {
		box := &p.Boxes[i]
		xlo, xhi, _ := p.startRange(box, axisX)
		ylo, yhi, _ := p.startRange(box, axisY)
		x := b.NewIntVar(xlo, xhi).WithName(box.Name + "_x")
		y := b.NewIntVar(ylo, yhi).WithName(box.Name + "_y")
		pm.boxes[i] = boxVars{X: x, Y: y}
		var xInterval, yInterval cpmodel.IntervalVar
		if box.Optional {
			placed := b.NewBoolVar().WithName(box.Name + "_placed")
			pm.boxes[i].Placed = &placed
			xInterval = b.NewOptionalFixedSizeIntervalVar(x, box.Width, placed)
			yInterval = b.NewOptionalFixedSizeIntervalVar(y, box.Height, placed)
		} else {
			xInterval = b.NewFixedSizeIntervalVar(x, box.Width)
			yInterval = b.NewFixedSizeIntervalVar(y, box.Height)
		}
		noOverlap.AddRectangle(xInterval, yInterval)
	}
	if p.Objective != ObjectiveNone {
		pm.addSpanObjective(p)
	}
	return pm
}

// addSpanObjective adds a span variable bounding every box end along the
// objective axis and minimizes it.
func (pm *problemModel) addSpanObjective(p *Problem) {
	a := p.objectiveAxis()
	var ub int64
	for i := range p.Boxes {
		box := &p.Boxes[i]
		_, hi, _ := p.startRange(box, a)
		size := box.Width
		if a == axisY {
			size = box.Height
		}
		if end := hi + size; end > ub {
			ub = end
		}
	}
	b := pm.builder
	span := b.NewIntVar(0, ub).WithName(p.Objective)
	for i := range p.Boxes {
		box := &p.Boxes[i]
		v, size := pm.boxes[i].X, box.Width
		if a == axisY {
			v, size = pm.boxes[i].Y, box.Height
		}
		b.AddLessOrEqual(cpmodel.NewLinearExpr().Add(v).AddConstant(size), span)
	}
	b.Minimize(span)
	pm.span = &span
}

// Placement is the solved position of one box.
type Placement struct {
	Name   string `json:"name"`
	X      int64  `json:"x"`
	Y      int64  `json:"y"`
	Width  int64  `json:"width"`
	Height int64  `json:"height"`
	Placed bool   `json:"placed"`
}

// placements extracts the box positions from a feasible response.
func (pm *problemModel) placements(p *Problem, resp *cpmodel.CpSolverResponse) []Placement {
	out := make([]Placement, len(p.Boxes))
	for i := range p.Boxes {
		box := &p.Boxes[i]
		placed := true
		if pm.boxes[i].Placed != nil {
			placed = cpmodel.SolutionBooleanValue(resp, *pm.boxes[i].Placed)
		}
		out[i] = Placement{
			Name:   box.Name,
			X:      cpmodel.SolutionIntegerValue(resp, pm.boxes[i].X),
			Y:      cpmodel.SolutionIntegerValue(resp, pm.boxes[i].Y),
			Width:  box.Width,
			Height: box.Height,
			Placed: placed,
		}
	}
	return out
}
