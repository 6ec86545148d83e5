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

// Package examples embeds sample scripts shipped with the binary.
package examples

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed *.ds
var embeddedFS embed.FS

// Ext is the file extension of embedded scripts.
const Ext = ".ds"

// Example describes an embedded script.
type Example struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	FilePath    string `json:"file"`
}

// List returns all embedded examples sorted by name.
func List() ([]Example, error) {
	entries, err := embeddedFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded examples: %w", err)
	}

	var examples []Example
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Ext) {
			continue
		}
		content, err := embeddedFS.ReadFile(entry.Name())
		if err != nil {
			return nil, err
		}
		examples = append(examples, Example{
			Name:        strings.TrimSuffix(entry.Name(), Ext),
			Description: description(content),
			FilePath:    entry.Name(),
		})
	}
	sort.Slice(examples, func(i, j int) bool { return examples[i].Name < examples[j].Name })
	return examples, nil
}

// Get returns the content of an example by name.
func Get(name string) ([]byte, error) {
	content, err := embeddedFS.ReadFile(name + Ext)
	if err != nil {
		return nil, fmt.Errorf("example %q not found: %w", name, err)
	}
	return content, nil
}

// Exists reports whether an example with the given name exists.
func Exists(name string) bool {
	_, err := embeddedFS.ReadFile(name + Ext)
	return err == nil
}

// CopyTo writes an example to destPath, creating parent directories.
// An existing file is left alone unless overwrite is set.
func CopyTo(name, destPath string, overwrite bool) error {
	content, err := Get(name)
	if err != nil {
		return err
	}

	if !overwrite {
		if _, err := os.Stat(destPath); err == nil {
			return fmt.Errorf("%s already exists", destPath)
		}
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := os.WriteFile(destPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write example file: %w", err)
	}
	return nil
}

// description is the first comment line of a script.
func description(content []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "#"); ok {
			return strings.TrimSpace(rest)
		}
		break
	}
	return "Example script"
}
