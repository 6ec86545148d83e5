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

package debug

import (
	"fmt"
	"strconv"
	"strings"

	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

// Config holds debugging settings applied when a session is created
// for a script run.
type Config struct {
	// Breakpoints is a list of "file:line" locations set before the
	// program starts.
	Breakpoints []string

	// RenderFormat selects the eval renderer (json, json-pretty, yaml).
	RenderFormat string

	// MaxChildren, MaxData and MaxDepth seed the negotiated features.
	// Zero keeps the default.
	MaxChildren int
	MaxData     int
	MaxDepth    int
}

// New creates a new debug configuration.
func New(breakpoints []string, renderFormat string) *Config {
	return &Config{
		Breakpoints:  breakpoints,
		RenderFormat: renderFormat,
	}
}

// ParseBreakpoint splits a "file:line" location.
func ParseBreakpoint(loc string) (string, int, error) {
	idx := strings.LastIndex(loc, ":")
	if idx <= 0 || idx == len(loc)-1 {
		return "", 0, &dbgerrors.ValidationError{
			Field:      "breakpoint",
			Message:    fmt.Sprintf("invalid location %q", loc),
			Suggestion: "use file:line, for example main.ds:12",
		}
	}
	line, err := strconv.Atoi(loc[idx+1:])
	if err != nil || line <= 0 {
		return "", 0, &dbgerrors.ValidationError{
			Field:   "breakpoint",
			Message: fmt.Sprintf("invalid line in %q", loc),
		}
	}
	return loc[:idx], line, nil
}

// Validate checks every breakpoint location and the render format.
func (c *Config) Validate() error {
	for _, bp := range c.Breakpoints {
		if _, _, err := ParseBreakpoint(bp); err != nil {
			return err
		}
	}
	if _, err := RendererFor(c.RenderFormat); err != nil {
		return &dbgerrors.ValidationError{Field: "render_format", Message: err.Error()}
	}
	return nil
}

// Options converts the configuration into session options.
func (c *Config) Options() ([]Option, error) {
	r, err := RendererFor(c.RenderFormat)
	if err != nil {
		return nil, err
	}
	features := make(map[string]string)
	if c.MaxChildren > 0 {
		features[FeatureMaxChildren] = strconv.Itoa(c.MaxChildren)
	}
	if c.MaxData > 0 {
		features[FeatureMaxData] = strconv.Itoa(c.MaxData)
	}
	if c.MaxDepth > 0 {
		features[FeatureMaxDepth] = strconv.Itoa(c.MaxDepth)
	}
	return []Option{WithRenderer(r), WithFeatures(features)}, nil
}

// Apply sets the configured breakpoints on s.
func (c *Config) Apply(s *Session) error {
	for _, loc := range c.Breakpoints {
		file, line, err := ParseBreakpoint(loc)
		if err != nil {
			return err
		}
		if _, err := s.SetBreakpoint(&Breakpoint{File: file, Line: line, Enabled: true}); err != nil {
			return fmt.Errorf("setting breakpoint %s: %w", loc, err)
		}
	}
	return nil
}
