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
	"context"
	"errors"
)

// ErrTerminated is returned from PausePoint when the program must stop.
// The interpreter unwinds without calling any further hooks.
var ErrTerminated = errors.New("debug: execution terminated")

// Joint is the set of hooks an interpreter calls around every
// expression it evaluates: EnterFrame, PausePoint, evaluation, then
// LeaveFrame. EnterDeclarations is called once before the prolog.
type Joint interface {
	EnterFrame(expr Expression)
	LeaveFrame(expr Expression)
	PausePoint(expr Expression) error
	EnterDeclarations()
}

// Expression is the interpreter's handle for an evaluation frame.
type Expression interface {
	File() string
	Line() int
	Column() int
	String() string
	Context() Context
}

// Scope selects a set of variable bindings.
type Scope int

const (
	ScopeLocal Scope = iota
	ScopeGlobal
)

// String returns the display name of the scope.
func (s Scope) String() string {
	if s == ScopeGlobal {
		return "Global"
	}
	return "Local"
}

// Variable is a named binding visible in a frame.
type Variable struct {
	Name  string
	Value any
}

// Context resolves variables for a frame. Both methods are called
// only while the interpreter is suspended.
type Context interface {
	Variables(scope Scope) []Variable

	// Snapshot copies the bindings visible from the frame so they can be
	// evaluated against after the interpreter moves on.
	Snapshot() Evaluator
}

// Evaluator runs text against a detached copy of a frame. It is called
// without the session lock held and returns once ctx is done.
type Evaluator interface {
	Evaluate(ctx context.Context, text string) (any, error)
}

// CallFrame is implemented by expressions that open a function body or
// the program's top-level block. step_out leaves the innermost one.
type CallFrame interface {
	IsCall() bool
}

// Program is the compiled unit under debug.
type Program interface {
	// Source is the identity of the main file.
	Source() string
}

// SourceReader is implemented by programs that can return the text of
// their files.
type SourceReader interface {
	ReadSource(file string) (string, error)
}
