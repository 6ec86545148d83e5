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

package check

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/tombee/debuggee/internal/commands/shared"
)

func writeScript(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheck_Valid(t *testing.T) {
	path := writeScript(t, "ok.ds", "def add(a, b)\n  return a + b\nend\nprint add(1, 2)\n")

	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(buf.String(), "ok (1 functions)") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestCheck_SyntaxError(t *testing.T) {
	path := writeScript(t, "bad.ds", "let x = 1\nwhile x < 3\n")

	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	var exitErr *shared.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != shared.ExitInvalidScript {
		t.Errorf("expected code %d, got %d", shared.ExitInvalidScript, exitErr.Code)
	}
	if !strings.Contains(buf.String(), path) {
		t.Errorf("expected the error to name the script, got %q", buf.String())
	}
}

func TestCheck_JSON(t *testing.T) {
	good := writeScript(t, "ok.ds", "print 1\n")
	missing := filepath.Join(t.TempDir(), "missing.ds")

	root := &cobra.Command{Use: "test"}
	shared.RegisterGlobalFlags(root.PersistentFlags())
	defer shared.ResetGlobalFlags()
	root.AddCommand(NewCommand())

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"check", "--json", good, missing})

	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for the missing script")
	}

	var result Result
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\n%s", err, buf.String())
	}
	if result.Success {
		t.Error("expected success=false")
	}
	if len(result.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(result.Files))
	}
	if !result.Files[0].Valid {
		t.Errorf("expected %s to be valid", good)
	}
	if result.Files[1].Valid || result.Files[1].Errors[0].Code != "read_failed" {
		t.Errorf("unexpected result for missing file %+v", result.Files[1])
	}
}
