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
	"errors"
	"fmt"
	"sort"

	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

// BreakpointKind identifies what triggers a breakpoint.
type BreakpointKind string

const (
	// KindLine pauses when execution reaches a file and line.
	KindLine BreakpointKind = "line"

	// The remaining kinds are declared so clients can negotiate them,
	// but SetBreakpoint rejects them.
	KindCall        BreakpointKind = "call"
	KindReturn      BreakpointKind = "return"
	KindException   BreakpointKind = "exception"
	KindConditional BreakpointKind = "conditional"
	KindWatch       BreakpointKind = "watch"
)

// ErrBreakpointKindUnsupported is returned when a breakpoint of a
// kind other than line is requested.
var ErrBreakpointKindUnsupported = errors.New("breakpoint type not supported")

// Breakpoint is a line breakpoint in a script file.
type Breakpoint struct {
	ID      int
	File    string
	Line    int
	Enabled bool
	Kind    BreakpointKind

	// HitCount is incremented each time the breakpoint arms.
	HitCount int
}

// breakpointStore indexes breakpoints by id and by file and line.
// It holds no lock of its own; the owning Session serializes access.
type breakpointStore struct {
	nextID int
	byID   map[int]*Breakpoint
	byFile map[string]map[int]*Breakpoint
}

func newBreakpointStore() *breakpointStore {
	return &breakpointStore{
		nextID: 1,
		byID:   make(map[int]*Breakpoint),
		byFile: make(map[string]map[int]*Breakpoint),
	}
}

func (s *breakpointStore) set(bp *Breakpoint) (int, error) {
	if bp.Kind == "" {
		bp.Kind = KindLine
	}
	if bp.Kind != KindLine {
		return 0, fmt.Errorf("%w: %s", ErrBreakpointKindUnsupported, bp.Kind)
	}
	if bp.File == "" {
		return 0, &dbgerrors.ValidationError{Field: "file", Message: "breakpoint file is required"}
	}
	if bp.Line <= 0 {
		return 0, &dbgerrors.ValidationError{Field: "line", Message: "breakpoint line must be positive"}
	}

	bp.ID = s.nextID
	s.nextID++

	lines, ok := s.byFile[bp.File]
	if !ok {
		lines = make(map[int]*Breakpoint)
		s.byFile[bp.File] = lines
	}
	if prev, ok := lines[bp.Line]; ok {
		delete(s.byID, prev.ID)
	}
	lines[bp.Line] = bp
	s.byID[bp.ID] = bp
	return bp.ID, nil
}

func (s *breakpointStore) get(id int) (*Breakpoint, error) {
	bp, ok := s.byID[id]
	if !ok {
		return nil, &dbgerrors.NotFoundError{Resource: "breakpoint", ID: fmt.Sprint(id)}
	}
	return bp, nil
}

func (s *breakpointStore) remove(id int) (*Breakpoint, error) {
	bp, err := s.get(id)
	if err != nil {
		return nil, err
	}
	delete(s.byID, id)
	if lines, ok := s.byFile[bp.File]; ok {
		if lines[bp.Line] == bp {
			delete(lines, bp.Line)
		}
		if len(lines) == 0 {
			delete(s.byFile, bp.File)
		}
	}
	return bp, nil
}

// forFile and all return copies so callers outside the session lock
// never share a breakpoint with the interpreter goroutine.
func (s *breakpointStore) forFile(file string) map[int]*Breakpoint {
	out := make(map[int]*Breakpoint, len(s.byFile[file]))
	for line, bp := range s.byFile[file] {
		cp := *bp
		out[line] = &cp
	}
	return out
}

func (s *breakpointStore) lookup(file string, line int) *Breakpoint {
	return s.byFile[file][line]
}

func (s *breakpointStore) all() []*Breakpoint {
	out := make([]*Breakpoint, 0, len(s.byID))
	for _, bp := range s.byID {
		cp := *bp
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
