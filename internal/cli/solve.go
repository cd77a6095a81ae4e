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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/boxsat/boxsat/cpmodel"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	*RootOptions
	Params string
}

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "solve <problem.yaml>",
		Short: "Solve a placement problem",
		Long: `Solve a rectangle placement problem described in a YAML file.

The file lists boxes with their sizes and start ranges, an optional bounding
area, and an optional span objective. The solver searches for positions
where no two boxes overlap.

Example:
  boxsat solve problem.yaml
  boxsat solve problem.yaml --params params.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Params, "params", "", "path to a YAML file with solver parameters")

	return cmd
}

// SolveResult is the solve outcome in serializable form.
type SolveResult struct {
	Status     string      `json:"status"`
	Objective  *int64      `json:"objective,omitempty"`
	Placements []Placement `json:"placements,omitempty"`
	WallTime   float64     `json:"wall_time_seconds"`
	Branches   int64       `json:"branches"`
	Conflicts  int64       `json:"conflicts"`
}

func runSolve(opts *SolveOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	problem, err := LoadProblem(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load problem", err)
	}
	params, err := loadParams(opts.Params)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load parameters", err)
	}
	formatter.VerboseLog("Loaded %d box(es) from %s", len(problem.Boxes), path)

	pm := buildModel(problem)
	model, err := pm.builder.Model()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build model", err)
	}
	resp, err := cpmodel.SolveCpModelWithParameters(model, params)
	if err != nil {
		return WrapExitError(ExitFailure, "solve failed", err)
	}
	return outputSolveResult(formatter, problem, pm, resp)
}

// loadParams reads solver parameters from a YAML file. An empty path means
// defaults.
func loadParams(path string) (*cpmodel.SatParameters, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p cpmodel.SatParameters
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &p, nil
}

func outputSolveResult(f *OutputFormatter, p *Problem, pm *problemModel, resp *cpmodel.CpSolverResponse) error {
	result := SolveResult{
		Status:    resp.Status.String(),
		WallTime:  resp.WallTime,
		Branches:  resp.NumBranches,
		Conflicts: resp.NumConflicts,
	}
	solved := resp.Status == cpmodel.CpSolverStatusOptimal || resp.Status == cpmodel.CpSolverStatusFeasible
	if solved {
		result.Placements = pm.placements(p, resp)
		if pm.span != nil {
			obj := resp.ObjectiveValue
			result.Objective = &obj
		}
	}

	if f.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if !solved {
			response.Status = "error"
			response.Error = &CLIError{Code: errCodeForStatus(resp.Status), Message: solveFailureMessage(resp)}
		}
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			return err
		}
		return exitErrorForStatus(resp.Status)
	}

	fmt.Fprintf(f.Writer, "status: %s\n", result.Status)
	if solved {
		if result.Objective != nil {
			fmt.Fprintf(f.Writer, "%s: %d\n", p.Objective, *result.Objective)
		}
		for _, pl := range result.Placements {
			if !pl.Placed {
				fmt.Fprintf(f.Writer, "%s: not placed\n", pl.Name)
				continue
			}
			fmt.Fprintf(f.Writer, "%s: x=%d y=%d (%dx%d)\n", pl.Name, pl.X, pl.Y, pl.Width, pl.Height)
		}
	} else if resp.SolutionInfo != "" {
		fmt.Fprintf(f.Writer, "  %s\n", resp.SolutionInfo)
	}
	f.VerboseLog("%.3fs, %d branch(es), %d conflict(s)", resp.WallTime, resp.NumBranches, resp.NumConflicts)
	return exitErrorForStatus(resp.Status)
}

func errCodeForStatus(s cpmodel.CpSolverStatus) string {
	switch s {
	case cpmodel.CpSolverStatusModelInvalid:
		return ErrCodeModel
	case cpmodel.CpSolverStatusInfeasible:
		return ErrCodeInfeasible
	}
	return ErrCodeUnknown
}

func solveFailureMessage(resp *cpmodel.CpSolverResponse) string {
	if resp.SolutionInfo != "" {
		return resp.SolutionInfo
	}
	switch resp.Status {
	case cpmodel.CpSolverStatusModelInvalid:
		return "model invalid"
	case cpmodel.CpSolverStatusInfeasible:
		return "no feasible placement"
	}
	return "search inconclusive"
}

func exitErrorForStatus(s cpmodel.CpSolverStatus) error {
	switch s {
	case cpmodel.CpSolverStatusOptimal, cpmodel.CpSolverStatusFeasible:
		return nil
	case cpmodel.CpSolverStatusModelInvalid:
		return NewExitError(ExitCommandError, "model invalid")
	case cpmodel.CpSolverStatusInfeasible:
		return NewExitError(ExitFailure, "no feasible placement")
	}
	return NewExitError(ExitFailure, "search inconclusive, try raising the limits")
}
