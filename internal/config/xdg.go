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

package config

import (
	"os"
	"path/filepath"
)

const (
	appName = "debuggee"

	userConfigFile = "config.yaml"

	// A file with this name in the working directory overrides the user
	// config, so a project can pin its IDE port and breakpoints.
	projectConfigFile = ".debuggee.yaml"
)

// ConfigDir is $XDG_CONFIG_HOME/debuggee, falling back to ~/.config/debuggee
// on every platform. It is not created.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// ConfigPath is the user config file inside ConfigDir.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, userConfigFile), nil
}

// Discover returns the first config file that exists, checking the
// project file in dir before the user file. It returns "" when neither
// exists.
func Discover(dir string) string {
	candidates := []string{filepath.Join(dir, projectConfigFile)}
	if p, err := ConfigPath(); err == nil {
		candidates = append(candidates, p)
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}
