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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boxsat/boxsat/cpmodel"
)

// Two 3x4 boxes in an 8x4 area. The height pins both boxes to y=0, so the
// only freedom is the x order.
const twoBoxProblem = `area:
  width: 8
  height: 4
boxes:
  - name: a
    width: 3
    height: 4
  - name: b
    width: 3
    height: 4
`

func TestSolveCommand_Feasible(t *testing.T) {
	path := writeProblem(t, twoBoxProblem)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "status: FEASIBLE")
	assert.Contains(t, buf.String(), "a: x=0 y=0 (3x4)")
	assert.Contains(t, buf.String(), "b: x=3 y=0 (3x4)")
}

func TestSolveCommand_FeasibleJSON(t *testing.T) {
	path := writeProblem(t, twoBoxProblem)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "FEASIBLE", data["status"])

	placements, ok := data["placements"].([]interface{})
	require.True(t, ok)
	require.Len(t, placements, 2)
	first, ok := placements[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "a", first["name"])
	assert.Equal(t, float64(0), first["x"])
	assert.Equal(t, float64(3), first["width"])
	assert.Equal(t, true, first["placed"])
}

func TestSolveCommand_SpanObjective(t *testing.T) {
	path := writeProblem(t, twoBoxProblem+"objective: span_x\n")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "status: OPTIMAL")
	assert.Contains(t, buf.String(), "span_x: 6")
	assert.Contains(t, buf.String(), "a: x=0 y=0 (3x4)")
	assert.Contains(t, buf.String(), "b: x=3 y=0 (3x4)")
}

func TestSolveCommand_Infeasible(t *testing.T) {
	// A third 3-wide box cannot fit: the positions 0, 3 and 6 would need
	// a width of 9.
	path := writeProblem(t, twoBoxProblem+`  - name: c
    width: 3
    height: 4
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, "no feasible placement", err.Error())
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "status: INFEASIBLE")
}

func TestSolveCommand_InfeasibleJSON(t *testing.T) {
	path := writeProblem(t, twoBoxProblem+`  - name: c
    width: 3
    height: 4
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E003", resp.Error.Code)
	assert.Equal(t, "no feasible placement", resp.Error.Message)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "INFEASIBLE", data["status"])
}

func TestSolveCommand_OptionalBoxNotPlaced(t *testing.T) {
	// Box a fills the whole area, so the optional box must stay out.
	path := writeProblem(t, `area:
  width: 4
  height: 4
boxes:
  - name: a
    width: 4
    height: 4
  - name: b
    width: 2
    height: 2
    optional: true
`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "status: FEASIBLE")
	assert.Contains(t, buf.String(), "a: x=0 y=0 (4x4)")
	assert.Contains(t, buf.String(), "b: not placed")
}

func TestSolveCommand_Params(t *testing.T) {
	path := writeProblem(t, twoBoxProblem)
	paramsPath := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(paramsPath, []byte("num_workers: 2\n"), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--params", paramsPath})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "status: FEASIBLE")
}

func TestSolveCommand_BadParams(t *testing.T) {
	path := writeProblem(t, twoBoxProblem)
	paramsPath := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(paramsPath, []byte("num_workers: [2\n"), 0644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--params", paramsPath})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load parameters")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSolveCommand_MissingProblem(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load problem")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSolveCommand_Verbose(t *testing.T) {
	path := writeProblem(t, twoBoxProblem)

	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true}
	cmd := NewSolveCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, errBuf.String(), "Loaded 2 box(es) from")
	assert.Contains(t, errBuf.String(), "branch(es)")
}

func TestErrCodeForStatus(t *testing.T) {
	tests := []struct {
		status cpmodel.CpSolverStatus
		want   string
	}{
		{cpmodel.CpSolverStatusModelInvalid, ErrCodeModel},
		{cpmodel.CpSolverStatusInfeasible, ErrCodeInfeasible},
		{cpmodel.CpSolverStatusUnknown, ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, errCodeForStatus(tt.status))
		})
	}
}

func TestExitErrorForStatus(t *testing.T) {
	tests := []struct {
		status   cpmodel.CpSolverStatus
		wantNil  bool
		wantCode int
	}{
		{status: cpmodel.CpSolverStatusOptimal, wantNil: true},
		{status: cpmodel.CpSolverStatusFeasible, wantNil: true},
		{status: cpmodel.CpSolverStatusModelInvalid, wantCode: ExitCommandError},
		{status: cpmodel.CpSolverStatusInfeasible, wantCode: ExitFailure},
		{status: cpmodel.CpSolverStatusUnknown, wantCode: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			err := exitErrorForStatus(tt.status)
			if tt.wantNil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
		})
	}
}

func TestSolveFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		resp cpmodel.CpSolverResponse
		want string
	}{
		{
			name: "SolutionInfo",
			resp: cpmodel.CpSolverResponse{
				Status:       cpmodel.CpSolverStatusModelInvalid,
				SolutionInfo: "variable 0 has an empty domain",
			},
			want: "variable 0 has an empty domain",
		},
		{
			name: "ModelInvalid",
			resp: cpmodel.CpSolverResponse{Status: cpmodel.CpSolverStatusModelInvalid},
			want: "model invalid",
		},
		{
			name: "Infeasible",
			resp: cpmodel.CpSolverResponse{Status: cpmodel.CpSolverStatusInfeasible},
			want: "no feasible placement",
		},
		{
			name: "Unknown",
			resp: cpmodel.CpSolverResponse{Status: cpmodel.CpSolverStatusUnknown},
			want: "search inconclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, solveFailureMessage(&tt.resp))
		})
	}
}

func TestLoadParams(t *testing.T) {
	t.Run("EmptyPath", func(t *testing.T) {
		p, err := loadParams("")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "params.yaml")
		content := "num_workers: 4\nmax_number_of_conflicts: 9\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		p, err := loadParams(path)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, int32(4), p.NumWorkers)
		assert.Equal(t, int64(9), p.MaxNumberOfConflicts)
		assert.Equal(t, float64(0), p.MaxTimeInSeconds)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := loadParams(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "params.yaml")
		require.NoError(t, os.WriteFile(path, []byte("num_workers: [4\n"), 0644))

		_, err := loadParams(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing")
	})
}
