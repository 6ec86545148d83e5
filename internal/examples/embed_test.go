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

package examples

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/tombee/debuggee/internal/script"
)

func TestList(t *testing.T) {
	examples, err := List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(examples) < 4 {
		t.Fatalf("expected at least 4 examples, got %d", len(examples))
	}

	for i, ex := range examples {
		if ex.Description == "" || ex.Description == "Example script" {
			t.Errorf("%s has no description", ex.Name)
		}
		if i > 0 && examples[i-1].Name >= ex.Name {
			t.Errorf("examples not sorted: %s before %s", examples[i-1].Name, ex.Name)
		}
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"hello", false},
		{"fib", false},
		{"nonexistent", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := Get(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Error("Get() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("Get() unexpected error: %v", err)
			}
			if len(content) == 0 {
				t.Error("Get() returned empty content")
			}
		})
	}
}

func TestExists(t *testing.T) {
	if !Exists("orders") {
		t.Error("expected orders to exist")
	}
	if Exists("nonexistent") {
		t.Error("did not expect nonexistent to exist")
	}
}

func TestCopyTo(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "sub", "hello.ds")

	if err := CopyTo("hello", dest, false); err != nil {
		t.Fatalf("CopyTo() error: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := Get("hello")
	if string(got) != string(want) {
		t.Error("copied content differs from embedded example")
	}

	if err := CopyTo("hello", dest, false); err == nil {
		t.Error("expected error when destination exists")
	}
	if err := CopyTo("hello", dest, true); err != nil {
		t.Errorf("overwrite failed: %v", err)
	}
	if err := CopyTo("nonexistent", dest, true); err == nil {
		t.Error("expected error for unknown example")
	}
}

// Every shipped example must parse and run to completion.
func TestExamplesRun(t *testing.T) {
	examples, err := List()
	if err != nil {
		t.Fatal(err)
	}
	for _, ex := range examples {
		t.Run(ex.Name, func(t *testing.T) {
			content, err := Get(ex.Name)
			if err != nil {
				t.Fatal(err)
			}
			prog, err := script.Parse(ex.FilePath, string(content))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if _, err := script.New(prog, script.WithOutput(io.Discard)).Run(context.Background()); err != nil {
				t.Errorf("run: %v", err)
			}
		})
	}
}

func TestDescription(t *testing.T) {
	if got := description([]byte("\n# Adds numbers.\nlet a = 1\n")); got != "Adds numbers." {
		t.Errorf("description = %q", got)
	}
	if got := description([]byte("let a = 1\n# late\n")); got != "Example script" {
		t.Errorf("description = %q", got)
	}
}
