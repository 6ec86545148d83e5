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

package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tombee/debuggee/internal/debug"
	"github.com/tombee/debuggee/internal/log"
)

// maxCallDepth bounds recursion of script functions.
const maxCallDepth = 1000

type flow int

const (
	flowNext flow = iota
	flowReturn
)

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithJoint installs the debugger hooks.
func WithJoint(j debug.Joint) Option {
	return func(in *Interpreter) {
		in.joint = j
	}
}

// WithOutput sets where print writes.
func WithOutput(w io.Writer) Option {
	return func(in *Interpreter) {
		in.out = w
	}
}

// WithLogger sets the interpreter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Interpreter) {
		in.logger = logger
	}
}

// Interpreter walks a Program. An Interpreter runs once, on a single
// goroutine.
type Interpreter struct {
	prog   *Program
	joint  debug.Joint
	out    io.Writer
	logger *slog.Logger

	ctx     context.Context
	globals map[string]any
	funcs   map[string]any
	depth   int

	// terminated is set once a hook reported ErrTerminated; expression
	// errors raised while unwinding are replaced by it.
	terminated bool

	// failure holds a script error raised inside a function call so
	// it survives being wrapped by the expression engine.
	failure *Error
}

// New creates an interpreter for prog.
func New(prog *Program, opts ...Option) *Interpreter {
	in := &Interpreter{
		prog:    prog,
		joint:   noJoint{},
		out:     os.Stdout,
		logger:  log.Discard(),
		ctx:     context.Background(),
		globals: make(map[string]any),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.funcs = in.callables()
	return in
}

// Run executes the program. It returns the value of a top-level return
// statement, if any. When the debugger terminates the program the
// error is debug.ErrTerminated.
func (in *Interpreter) Run(ctx context.Context) (any, error) {
	in.ctx = ctx
	in.logger.Debug("script started", log.FileKey, in.prog.file)

	if len(in.prog.prolog.body) > 0 {
		in.joint.EnterDeclarations()
		if _, _, err := in.execFrame(in.prog.prolog, nil, in.prog.prolog.body); err != nil {
			return nil, err
		}
	}

	locals := make(map[string]any)
	_, value, err := in.execFrame(in.prog.main, locals, in.prog.main.body)
	if err != nil {
		return nil, err
	}
	in.logger.Debug("script finished", log.FileKey, in.prog.file)
	return value, nil
}

// execFrame runs nodes inside a call frame for frameNode: a function
// body or one of the program's top-level blocks.
func (in *Interpreter) execFrame(frameNode *Node, locals map[string]any, nodes []*Node) (flow, any, error) {
	ev := &evaluation{in: in, node: frameNode, locals: locals, call: true}
	if err := in.enter(ev); err != nil {
		return flowNext, nil, err
	}
	f, value, err := in.execBlock(nodes, locals)
	return f, value, in.leave(ev, err)
}

func (in *Interpreter) enter(ev *evaluation) error {
	in.joint.EnterFrame(ev)
	if err := in.joint.PausePoint(ev); err != nil {
		in.terminated = true
		return err
	}
	return nil
}

// leave closes a frame unless the program was terminated, in which
// case no further hooks may run.
func (in *Interpreter) leave(ev *evaluation, err error) error {
	if in.terminated {
		return debug.ErrTerminated
	}
	in.joint.LeaveFrame(ev)
	return err
}

func (in *Interpreter) execBlock(nodes []*Node, locals map[string]any) (flow, any, error) {
	for _, n := range nodes {
		f, value, err := in.exec(n, locals)
		if err != nil || f == flowReturn {
			return f, value, err
		}
	}
	return flowNext, nil, nil
}

// exec runs one statement inside its own frame.
func (in *Interpreter) exec(n *Node, locals map[string]any) (flow, any, error) {
	if err := in.ctx.Err(); err != nil {
		return flowNext, nil, err
	}
	ev := &evaluation{in: in, node: n, locals: locals}
	if err := in.enter(ev); err != nil {
		return flowNext, nil, err
	}
	f, value, err := in.execNode(n, locals)
	return f, value, in.leave(ev, err)
}

func (in *Interpreter) execNode(n *Node, locals map[string]any) (flow, any, error) {
	switch n.kind {
	case nodeGlobal:
		v, err := in.eval(n, locals)
		if err != nil {
			return flowNext, nil, err
		}
		in.globals[n.name] = v

	case nodeDef:
		// Functions are bound before the program starts.

	case nodeLet:
		v, err := in.eval(n, locals)
		if err != nil {
			return flowNext, nil, err
		}
		locals[n.name] = v

	case nodeAssign:
		v, err := in.eval(n, locals)
		if err != nil {
			return flowNext, nil, err
		}
		switch {
		case hasKey(locals, n.name):
			locals[n.name] = v
		case hasKey(in.globals, n.name):
			in.globals[n.name] = v
		default:
			return flowNext, nil, errorf(n.file, n.line, "assignment to undeclared variable %s", n.name)
		}

	case nodePrint:
		v, err := in.eval(n, locals)
		if err != nil {
			return flowNext, nil, err
		}
		fmt.Fprintln(in.out, format(v))

	case nodeReturn:
		if n.code == nil {
			return flowReturn, nil, nil
		}
		v, err := in.eval(n, locals)
		return flowReturn, v, err

	case nodeIf:
		ok, err := in.cond(n, locals)
		if err != nil {
			return flowNext, nil, err
		}
		if ok {
			return in.execBlock(n.body, locals)
		}
		return in.execBlock(n.alt, locals)

	case nodeWhile:
		for {
			if err := in.ctx.Err(); err != nil {
				return flowNext, nil, err
			}
			ok, err := in.cond(n, locals)
			if err != nil || !ok {
				return flowNext, nil, err
			}
			f, value, err := in.execBlock(n.body, locals)
			if err != nil || f == flowReturn {
				return f, value, err
			}
		}

	case nodeExpr:
		_, err := in.eval(n, locals)
		return flowNext, nil, err
	}
	return flowNext, nil, nil
}

func (in *Interpreter) cond(n *Node, locals map[string]any) (bool, error) {
	v, err := in.eval(n, locals)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errorf(n.file, n.line, "condition must be boolean, got %T", v)
	}
	return b, nil
}

// eval runs the expression of n against the visible variables.
func (in *Interpreter) eval(n *Node, locals map[string]any) (any, error) {
	return in.run(n.code, n, locals)
}

func (in *Interpreter) run(code *vm.Program, n *Node, locals map[string]any) (any, error) {
	if err := in.ctx.Err(); err != nil {
		return nil, err
	}
	v, err := expr.Run(code, in.env(locals))
	if err == nil {
		return v, nil
	}
	if in.terminated {
		return nil, debug.ErrTerminated
	}
	if ctxErr := in.ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if in.failure != nil {
		failure := in.failure
		in.failure = nil
		return nil, failure
	}
	return nil, errorf(n.file, n.line, "%s", firstLine(err.Error()))
}

// env builds the expression environment: globals, then locals, then
// functions.
func (in *Interpreter) env(locals map[string]any) map[string]any {
	env := make(map[string]any, len(in.globals)+len(locals)+len(in.funcs))
	for k, v := range in.globals {
		env[k] = v
	}
	for k, v := range locals {
		env[k] = v
	}
	for k, v := range in.funcs {
		env[k] = v
	}
	return env
}

// callables binds every script function to this interpreter.
func (in *Interpreter) callables() map[string]any {
	funcs := make(map[string]any, len(in.prog.funcs))
	for name, def := range in.prog.funcs {
		funcs[name] = in.callable(def)
	}
	return funcs
}

func (in *Interpreter) callable(def *Node) func(args ...any) (any, error) {
	return func(args ...any) (any, error) {
		if len(args) != len(def.params) {
			return nil, fmt.Errorf("%s expects %d arguments, got %d", def.name, len(def.params), len(args))
		}
		if in.depth >= maxCallDepth {
			return nil, fmt.Errorf("maximum call depth %d exceeded in %s", maxCallDepth, def.name)
		}
		in.depth++
		defer func() { in.depth-- }()

		locals := make(map[string]any, len(args))
		for i, p := range def.params {
			locals[p] = args[i]
		}
		_, value, err := in.execFrame(def, locals, def.body)
		if err != nil {
			var se *Error
			if errors.As(err, &se) && in.failure == nil {
				in.failure = se
			}
			return nil, err
		}
		return value, nil
	}
}

// snapshot holds copies of a frame's bindings for detached evaluation.
type snapshot struct {
	prog    *Program
	logger  *slog.Logger
	globals map[string]any
	locals  map[string]any
}

// Evaluate implements debug.Evaluator. text runs in a fresh interpreter
// with the debugger hooks disabled and output discarded; ctx stops it
// between statements.
func (s *snapshot) Evaluate(ctx context.Context, text string) (any, error) {
	code, err := compileExpr(text, s.prog.compileEnv())
	if err != nil {
		return nil, &Error{File: s.prog.file, Msg: "syntax error: " + firstLine(err.Error())}
	}
	clone := &Interpreter{
		prog:    s.prog,
		joint:   noJoint{},
		out:     io.Discard,
		logger:  s.logger,
		ctx:     ctx,
		globals: copyMap(s.globals),
	}
	clone.funcs = clone.callables()
	node := &Node{file: s.prog.file, text: text}
	return clone.run(code, node, copyMap(s.locals))
}

// evaluation is the handle passed to the debugger for one frame.
type evaluation struct {
	in     *Interpreter
	node   *Node
	locals map[string]any
	call   bool
}

func (e *evaluation) File() string           { return e.node.file }
func (e *evaluation) Line() int              { return e.node.line }
func (e *evaluation) Column() int            { return e.node.col }
func (e *evaluation) String() string         { return e.node.text }
func (e *evaluation) Context() debug.Context { return e }
func (e *evaluation) IsCall() bool           { return e.call }

// Variables implements debug.Context.
func (e *evaluation) Variables(scope debug.Scope) []debug.Variable {
	src := e.locals
	if scope == debug.ScopeGlobal {
		src = e.in.globals
	}
	vars := make([]debug.Variable, 0, len(src))
	for name, v := range src {
		vars = append(vars, debug.Variable{Name: name, Value: v})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}

// Snapshot implements debug.Context.
func (e *evaluation) Snapshot() debug.Evaluator {
	return &snapshot{
		prog:    e.in.prog,
		logger:  e.in.logger,
		globals: copyMap(e.in.globals),
		locals:  copyMap(e.locals),
	}
}

type noJoint struct{}

func (noJoint) EnterFrame(debug.Expression)       {}
func (noJoint) LeaveFrame(debug.Expression)       {}
func (noJoint) PausePoint(debug.Expression) error { return nil }
func (noJoint) EnterDeclarations()                {}

func hasKey(m map[string]any, k string) bool {
	if m == nil {
		return false
	}
	_, ok := m[k]
	return ok
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func format(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return "nil"
	}
	return fmt.Sprint(v)
}
