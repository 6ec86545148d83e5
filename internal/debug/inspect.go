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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

// ErrNotPaused is returned by inspection calls made while the
// interpreter is running.
var ErrNotPaused = errors.New("debug: program is not paused")

// Frame describes one entry of the call stack, innermost first.
type Frame struct {
	Level  int
	File   string
	Line   int
	Column int
	Where  string
}

// Stack returns the call-stack mirror, innermost frame first.
func (s *Session) Stack() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := make([]Frame, 0, len(s.stack))
	for i := len(s.stack) - 1; i >= 0; i-- {
		expr := s.stack[i]
		frames = append(frames, Frame{
			Level:  len(s.stack) - 1 - i,
			File:   expr.File(),
			Line:   expr.Line(),
			Column: expr.Column(),
			Where:  expr.String(),
		})
	}
	return frames
}

// Depth returns the current call-stack depth.
func (s *Session) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// frameLocked resolves a stack level (0 is innermost). The interpreter
// must be blocked in suspend, not merely headed for a break.
func (s *Session) frameLocked(level int) (Expression, error) {
	if s.current == nil || s.current.Status() != StatusBreak || !s.suspended {
		return nil, ErrNotPaused
	}
	if level < 0 || level >= len(s.stack) {
		return nil, &dbgerrors.NotFoundError{Resource: "stack frame", ID: fmt.Sprint(level)}
	}
	return s.stack[len(s.stack)-1-level], nil
}

// Variables returns the bindings of scope visible from the frame at level.
func (s *Session) Variables(level int, scope Scope) ([]Variable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expr, err := s.frameLocked(level)
	if err != nil {
		return nil, err
	}
	ctx := expr.Context()
	if ctx == nil {
		return nil, nil
	}
	return ctx.Variables(scope), nil
}

// Variable resolves a name in the frame at level. Local bindings shadow
// globals. The name may continue with a jq path such as items[0].name.
func (s *Session) Variable(level int, name string) (any, error) {
	root, path := splitVariablePath(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	expr, err := s.frameLocked(level)
	if err != nil {
		return nil, err
	}
	ctx := expr.Context()
	if ctx == nil {
		return nil, &dbgerrors.NotFoundError{Resource: "variable", ID: root}
	}

	for _, scope := range []Scope{ScopeLocal, ScopeGlobal} {
		for _, v := range ctx.Variables(scope) {
			if v.Name != root {
				continue
			}
			if path == "" {
				return v.Value, nil
			}
			return queryPath(v.Value, path)
		}
	}
	return nil, &dbgerrors.NotFoundError{Resource: "variable", ID: root}
}

// splitVariablePath splits "a.b[0]" into "a" and ".b[0]".
func splitVariablePath(name string) (string, string) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "$")
	idx := strings.IndexAny(name, ".[")
	if idx < 0 {
		return name, ""
	}
	rest := name[idx:]
	if strings.HasPrefix(rest, "[") {
		rest = "." + rest
	}
	return name[:idx], rest
}

// queryPath runs a jq path expression against value.
func queryPath(value any, path string) (any, error) {
	query, err := gojq.Parse(path)
	if err != nil {
		return nil, &dbgerrors.ValidationError{Field: "name", Message: err.Error()}
	}
	normalized, err := normalize(value)
	if err != nil {
		return nil, err
	}
	iter := query.Run(normalized)
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, isErr := v.(error); isErr {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	return v, nil
}

// normalize converts value into the generic shapes gojq accepts.
func normalize(value any) (any, error) {
	switch value.(type) {
	case nil, bool, int, float64, string, map[string]any, []any:
		return value, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to convert value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to convert value: %w", err)
	}
	return out, nil
}

// Evaluate runs text against a copy of the innermost frame's context and
// renders the result. Only the copy is taken under the session lock, so
// a long evaluation never holds up Continuation. Stop and detach cancel
// it.
func (s *Session) Evaluate(text string) (string, error) {
	s.mu.Lock()
	expr, err := s.frameLocked(0)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	fc := expr.Context()
	if fc == nil {
		s.mu.Unlock()
		return "", &dbgerrors.ValidationError{Field: "expression", Message: "frame has no evaluation context"}
	}
	snapshot := fc.Snapshot()
	ctx, renderer := s.evalCtx, s.renderer
	s.mu.Unlock()

	value, err := snapshot.Evaluate(ctx, text)
	if err != nil {
		return "", err
	}
	return renderer.Render(value)
}

// SetRenderer replaces the renderer used by Evaluate.
func (s *Session) SetRenderer(r Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderer = r
}

// Source returns the text of file, or of the main file when file is
// empty.
func (s *Session) Source(file string) (string, error) {
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()

	if p == nil {
		return "", ErrNotPaused
	}
	if file == "" {
		file = p.Source()
	}
	reader, ok := p.(SourceReader)
	if !ok {
		return "", &dbgerrors.NotFoundError{Resource: "source", ID: file}
	}
	return reader.ReadSource(file)
}

// Feature names negotiated with the client.
const (
	FeatureLanguageName       = "language_name"
	FeatureLanguageVersion    = "language_version"
	FeatureEncoding           = "encoding"
	FeatureProtocolVersion    = "protocol_version"
	FeatureSupportsAsync      = "supports_async"
	FeatureDataEncoding       = "data_encoding"
	FeatureBreakpointTypes    = "breakpoint_types"
	FeatureMultipleSessions   = "multiple_sessions"
	FeatureMaxChildren        = "max_children"
	FeatureMaxData            = "max_data"
	FeatureMaxDepth           = "max_depth"
	FeatureShowHidden         = "show_hidden"
	FeatureSupportsPostmortem = "supports_postmortem"
)

var writableFeatures = map[string]bool{
	FeatureEncoding:    true,
	FeatureMaxChildren: true,
	FeatureMaxData:     true,
	FeatureMaxDepth:    true,
	FeatureShowHidden:  true,
}

func defaultFeatures() map[string]string {
	return map[string]string{
		FeatureLanguageName:       "dscript",
		FeatureLanguageVersion:    "1.0",
		FeatureEncoding:           "UTF-8",
		FeatureProtocolVersion:    "1",
		FeatureSupportsAsync:      "0",
		FeatureDataEncoding:       "base64",
		FeatureBreakpointTypes:    string(KindLine),
		FeatureMultipleSessions:   "0",
		FeatureMaxChildren:        "32",
		FeatureMaxData:            "1024",
		FeatureMaxDepth:           "1",
		FeatureShowHidden:         "0",
		FeatureSupportsPostmortem: "0",
	}
}

// Feature returns a negotiated feature value.
func (s *Session) Feature(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.features[name]
	return v, ok
}

// SetFeature changes a writable feature.
func (s *Session) SetFeature(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.features[name]; !ok {
		return &dbgerrors.NotFoundError{Resource: "feature", ID: name}
	}
	if !writableFeatures[name] {
		return &dbgerrors.ValidationError{Field: name, Message: "feature is read-only"}
	}
	s.features[name] = value
	return nil
}

// Features returns a copy of all negotiated features.
func (s *Session) Features() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.features))
	for k, v := range s.features {
		out[k] = v
	}
	return out
}
