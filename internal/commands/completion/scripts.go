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

package completion

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

const (
	maxScriptFiles = 100
	maxSearchDepth = 2

	// ScriptExt is the extension of script files.
	ScriptExt = ".ds"
)

type scriptFile struct {
	path    string
	modTime int64
}

// CompleteScriptFiles completes script paths for run and check.
// Scripts under the current directory (two levels deep) are offered
// newest first; the shell falls back to .ds file completion otherwise.
func CompleteScriptFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	files := discoverScripts(".", maxSearchDepth)
	if len(files) == 0 {
		return []string{strings.TrimPrefix(ScriptExt, ".")}, cobra.ShellCompDirectiveFilterFileExt
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime > files[j].modTime
	})
	if len(files) > maxScriptFiles {
		files = files[:maxScriptFiles]
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		if strings.HasPrefix(f.path, toComplete) {
			paths = append(paths, f.path)
		}
	}
	return paths, cobra.ShellCompDirectiveDefault
}

// discoverScripts walks root up to maxDepth levels, skipping hidden
// directories.
func discoverScripts(root string, maxDepth int) []scriptFile {
	var files []scriptFile
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			depth := strings.Count(rel, string(filepath.Separator)) + 1
			if path != root && (strings.HasPrefix(d.Name(), ".") || depth >= maxDepth) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ScriptExt {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, scriptFile{path: rel, modTime: info.ModTime().UnixNano()})
		return nil
	})
	return files
}
