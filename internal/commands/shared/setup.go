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

package shared

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/tombee/debuggee/internal/config"
	"github.com/tombee/debuggee/internal/log"
)

// LoadConfig loads the file named by --config, or the default config
// file when the flag is empty.
func LoadConfig() (*config.Config, error) {
	if path := GetConfigPath(); path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// NewLogger builds the process logger. An empty format picks text when
// stderr is a terminal and json otherwise. --verbose raises the level
// to debug and --quiet lowers it to error.
func NewLogger(cfg config.LogConfig, out io.Writer) *slog.Logger {
	lc := &log.Config{
		Level:     cfg.Level,
		Format:    log.Format(cfg.Format),
		Output:    out,
		AddSource: cfg.AddSource,
	}
	if lc.Format == "" {
		lc.Format = log.FormatJSON
		if f, ok := out.(*os.File); ok && IsTerminal(f) {
			lc.Format = log.FormatText
		}
	}
	switch {
	case GetVerbose():
		lc.Level = "debug"
	case GetQuiet():
		lc.Level = "error"
	}
	return log.New(lc)
}
