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
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool `json:"valid"`
	Boxes int  `json:"boxes"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <problem.yaml>",
		Short: "Validate a problem file without solving",
		Long: `Validate a YAML problem file without running the solver.

Checks the schema, box dimensions, coordinate ranges, the objective, and
that the constraint model can be built.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	problem, err := LoadProblem(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error())
		return NewExitError(ExitFailure, "validation failed")
	}
	formatter.VerboseLog("Found %d box(es) in %s", len(problem.Boxes), path)

	pm := buildModel(problem)
	if _, err := pm.builder.Model(); err != nil {
		_ = formatter.Error(ErrCodeModel, err.Error())
		return NewExitError(ExitFailure, "validation failed")
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Boxes: len(problem.Boxes)})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d box(es) valid\n", len(problem.Boxes))
	return nil
}
