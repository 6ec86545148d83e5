// Copyright 2025 Tom Barlow
//
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

// Package check implements the check command, which parses scripts
// without running them.
package check

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tombee/debuggee/internal/commands/completion"
	"github.com/tombee/debuggee/internal/commands/shared"
	"github.com/tombee/debuggee/internal/script"
)

// Result is the JSON output of check.
type Result struct {
	shared.JSONResponse
	Files []FileResult `json:"files"`
}

// FileResult reports one checked script.
type FileResult struct {
	Path      string             `json:"path"`
	Valid     bool               `json:"valid"`
	Functions []string           `json:"functions,omitempty"`
	Errors    []shared.JSONError `json:"errors,omitempty"`
}

// NewCommand creates the check command
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <script>...",
		Short: "Parse scripts and report syntax errors",
		Annotations: map[string]string{
			"group": "execution",
		},
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completion.CompleteScriptFiles,
		RunE:              runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	result := Result{
		JSONResponse: shared.NewResponse("check", true),
	}
	var failed int

	for _, path := range args {
		fr := checkFile(path)
		if !fr.Valid {
			failed++
			result.Success = false
		}
		result.Files = append(result.Files, fr)
	}

	if shared.GetJSON() {
		if err := shared.EmitJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else if !shared.GetQuiet() {
		for _, fr := range result.Files {
			if fr.Valid {
				cmd.Printf("%s: ok (%d functions)\n", fr.Path, len(fr.Functions))
				continue
			}
			for _, e := range fr.Errors {
				cmd.Printf("%s\n", e.Message)
			}
		}
	}

	if failed > 0 {
		return shared.NewInvalidScriptError(fmt.Sprintf("%d of %d scripts failed to parse", failed, len(args)), nil)
	}
	return nil
}

func checkFile(path string) FileResult {
	fr := FileResult{Path: path}

	prog, err := script.Load(path)
	if err != nil {
		fr.Errors = []shared.JSONError{shared.NewJSONError("read_failed", err)}
		return fr
	}

	fr.Valid = true
	fr.Functions = prog.Functions()
	sort.Strings(fr.Functions)
	return fr
}
