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
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tombee/debuggee/internal/log"
	"github.com/tombee/debuggee/internal/metrics"
)

// ErrAlreadyAttached is returned by Attach when a program is attached.
var ErrAlreadyAttached = errors.New("debug: session already has an attached program")

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRenderer sets the renderer used by Evaluate.
func WithRenderer(r Renderer) Option {
	return func(s *Session) {
		s.renderer = r
	}
}

// WithFeatures overrides negotiated feature defaults.
func WithFeatures(features map[string]string) Option {
	return func(s *Session) {
		for k, v := range features {
			s.features[k] = v
		}
	}
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(s *Session) {
		s.events = make(chan *Event, n)
	}
}

// Session couples an interpreter goroutine to the commands issued by a
// debugging client. The interpreter calls the Joint hooks; the client
// side calls Continuation and the inspection methods. A single mutex
// guards all state, and the interpreter suspends on a condition
// variable tied to it.
type Session struct {
	id       string
	logger   *slog.Logger
	renderer Renderer

	mu   sync.Mutex
	cond *sync.Cond

	program  Program
	detached bool
	started  bool
	done     chan struct{}

	current *Command
	pending []*Command

	stack    []Expression
	sentinel Expression
	inProlog bool

	// suspended is true while the interpreter waits on cond. Frames may
	// only be inspected then.
	suspended bool
	// held names the reason of a break reached in LeaveFrame. It is
	// settled at the next pause point, where the interpreter stops.
	held string

	// evalCtx bounds detached evaluations. Stop and detach cancel it.
	evalCtx    context.Context
	evalCancel context.CancelFunc

	breakpoints *breakpointStore
	active      map[int]*Breakpoint

	features map[string]string
	events   chan *Event
}

// NewSession creates an unattached session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		id:          uuid.NewString(),
		logger:      log.Discard(),
		renderer:    JSONRenderer{},
		done:        make(chan struct{}),
		breakpoints: newBreakpointStore(),
		active:      make(map[int]*Breakpoint),
		features:    defaultFeatures(),
		events:      make(chan *Event, 64),
	}
	s.cond = sync.NewCond(&s.mu)
	s.evalCtx, s.evalCancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.WithSession(log.WithComponent(s.logger, "session"), s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Events returns the channel of session events. Events are dropped
// when the channel is full.
func (s *Session) Events() <-chan *Event { return s.events }

// Attach binds a program to the session. Hook calls before Attach are
// no-ops.
func (s *Session) Attach(p Program) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.program != nil {
		return ErrAlreadyAttached
	}
	s.program = p
	s.detached = false
	s.started = false
	s.evalCancel()
	s.evalCtx, s.evalCancel = context.WithCancel(context.Background())
	select {
	case <-s.done:
		s.done = make(chan struct{})
	default:
	}

	metrics.SessionAttached()
	s.logger.Info("program attached", log.FileKey, p.Source())
	s.emit(&Event{Type: EventAttached, File: p.Source()})
	return nil
}

// Attached reports whether a program is attached.
func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program != nil
}

// Program returns the attached program, or nil.
func (s *Session) Program() Program {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.program
}

// Done returns a channel closed when the current attachment ends.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Status returns the status of the current command.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return StatusNone
	}
	return s.current.Status()
}

// Current returns the command in control, or nil.
func (s *Session) Current() *Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Continuation hands a client command to the session. It never blocks
// on the interpreter.
func (s *Session) Continuation(cmd *Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.logger.With(log.CommandKey, cmd.kind.String(), log.TransactionIDKey, cmd.txID)

	if s.program == nil || (!s.started && cmd.kind != KindInit) {
		logger.Debug("rejecting command, program not running")
		metrics.RecordCommand(cmd.kind.String(), "rejected")
		cmd.setStatus(StatusStopped, Location{})
		if cmd.kind == KindStop {
			s.detachLocked()
		}
		return
	}

	if cmd.kind.IsReadOnly() {
		st := StatusNone
		if s.current != nil {
			st = s.current.Status()
		}
		cmd.status.Store(int32(st))
		cmd.settle(s.locationLocked())
		return
	}

	metrics.RecordCommand(cmd.kind.String(), "accepted")
	cmd.status.Store(int32(StatusStarting))
	if cmd.kind == KindStop {
		s.evalCancel()
	}

	cur := s.current
	switch {
	case cur == nil || cur.Status() == StatusStopped:
		s.install(cmd)
	case cur.Status() == StatusStarting && cur.kind != KindStop:
		// The interpreter has not observed cur yet; the newer request wins.
		s.pending = append(s.pending, cur)
		s.install(cmd)
	case cmd.kind == KindStop && cur.Status() == StatusRunning && cmd.kind.Outranks(cur.kind):
		cur.setStatus(StatusStopped, s.locationLocked())
		s.install(cmd)
	default:
		s.pending = append(s.pending, cmd)
	}
	logger.Debug("command queued", "pending", len(s.pending))

	s.cond.Broadcast()
}

func (s *Session) install(cmd *Command) {
	cmd.depth = len(s.stack)
	if cmd.kind == KindStepOut {
		cmd.depth = s.callDepthLocked()
	}
	s.current = cmd
	s.held = ""
}

// callDepthLocked is the depth at which the innermost call frame sits
// on the stack, so popping that frame completes a step_out. Without
// call frames it is the current depth.
func (s *Session) callDepthLocked() int {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if cf, ok := s.stack[i].(CallFrame); ok && cf.IsCall() {
			return i + 1
		}
	}
	return len(s.stack)
}

// EnterDeclarations marks the start of the prolog, so leaving the
// prolog frame is not taken for program completion.
func (s *Session) EnterDeclarations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program == nil {
		return
	}
	s.started = true
	s.inProlog = true
}

// EnterFrame pushes expr onto the call-stack mirror.
func (s *Session) EnterFrame(expr Expression) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program == nil {
		return
	}
	s.started = true
	s.stack = append(s.stack, expr)
}

// LeaveFrame pops the call-stack mirror. A step_out turns to break once
// the depth drops below the depth recorded for it; the client hears
// about it at the next pause point. The session finishes when the
// outermost frame of the program unwinds.
func (s *Session) LeaveFrame(expr Expression) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program == nil {
		return
	}
	if n := len(s.stack); n > 0 {
		s.stack[n-1] = nil
		s.stack = s.stack[:n-1]
	}

	if cmd := s.current; cmd != nil && cmd.kind == KindStepOut &&
		cmd.Status() == StatusRunning && len(s.stack) < cmd.depth {
		cmd.status.Store(int32(StatusBreak))
		s.held = "step_out"
		s.cond.Broadcast()
	}

	if s.sentinel == nil || expr != s.sentinel {
		return
	}
	if s.inProlog {
		s.inProlog = false
		s.sentinel = nil
		return
	}
	s.finishLocked(expr)
}

// PausePoint is called before every expression is evaluated and is the
// only place the interpreter blocks. It returns ErrTerminated when the
// program must stop.
func (s *Session) PausePoint(expr Expression) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.program == nil {
		if s.detached {
			return ErrTerminated
		}
		return nil
	}
	s.started = true
	if s.sentinel == nil {
		s.sentinel = expr
	}
	s.disarm(expr)

	for {
		if s.program == nil {
			return ErrTerminated
		}

		cmd := s.current
		if cmd != nil && s.held != "" && cmd.Status() == StatusBreak {
			reason := s.held
			s.held = ""
			s.pause(cmd, expr, reason)
			s.checkBreakpoints(cmd, expr)
		}
		if cmd == nil || cmd.Status() == StatusBreak || cmd.Status() == StatusStopped {
			s.suspend()
			continue
		}

		if cmd.kind == KindInit {
			s.bind(cmd, expr)
			continue
		}

		if cmd.kind == KindStop {
			s.logger.Info("stop requested", log.FileKey, expr.File(), log.LineKey, expr.Line())
			cmd.setStatus(StatusStopped, locate(expr))
			s.emit(&Event{Type: EventStopped, Command: KindStop, File: expr.File(), Line: expr.Line(), Depth: len(s.stack)})
			s.detachLocked()
			return ErrTerminated
		}

		st := cmd.Status()
		switch {
		case cmd.kind == KindStepInto && st == StatusRunning:
			s.pause(cmd, expr, "step")
		case cmd.kind == KindStepOver && st == StatusRunning && len(s.stack) == cmd.depth:
			s.pause(cmd, expr, "step")
		}
		s.checkBreakpoints(cmd, expr)

		switch cmd.Status() {
		case StatusRunning:
			return nil
		case StatusStarting:
			cmd.status.Store(int32(StatusRunning))
			s.emit(&Event{Type: EventResumed, Command: cmd.kind, File: expr.File(), Line: expr.Line(), Depth: len(s.stack)})
			return nil
		}
		s.suspend()
	}
}

// bind completes the INIT handshake on the interpreter goroutine.
func (s *Session) bind(cmd *Command, expr Expression) {
	if cmd.binder != nil {
		// Binders only stash the session; they must not call back in.
		cmd.binder.Bind(s)
	}
	s.pause(cmd, expr, "init")
	s.checkBreakpoints(cmd, expr)
}

// suspend waits for the next command. A queued command is installed
// without waiting when the current one is already paused.
func (s *Session) suspend() {
	if n := len(s.pending); n > 0 && s.current != nil && s.current.Status() == StatusBreak {
		next := s.pending[n-1]
		s.pending[n-1] = nil
		s.pending = s.pending[:n-1]
		s.install(next)
		return
	}
	s.suspended = true
	s.cond.Wait()
	s.suspended = false
}

// disarm drops active breakpoints whose line is no longer executing.
func (s *Session) disarm(expr Expression) {
	for id, bp := range s.active {
		if bp.File != expr.File() || bp.Line != expr.Line() {
			delete(s.active, id)
		}
	}
}

// checkBreakpoints arms an enabled breakpoint at the current line and
// pauses cmd, once per arrival at that line.
func (s *Session) checkBreakpoints(cmd *Command, expr Expression) {
	bp := s.breakpoints.lookup(expr.File(), expr.Line())
	if bp == nil || !bp.Enabled {
		return
	}
	if _, armed := s.active[bp.ID]; armed {
		return
	}
	s.active[bp.ID] = bp
	bp.HitCount++
	if cmd.Status() != StatusBreak {
		s.pause(cmd, expr, "breakpoint")
	}
}

func (s *Session) pause(cmd *Command, expr Expression, reason string) {
	cmd.setStatus(StatusBreak, locate(expr))
	metrics.RecordPause(reason)
	log.Trace(s.logger, "paused",
		log.String("reason", reason),
		log.String(log.FileKey, expr.File()),
		log.Int(log.LineKey, expr.Line()),
		log.Int("depth", len(s.stack)))
	s.emit(&Event{
		Type:    EventPaused,
		Command: cmd.kind,
		Reason:  reason,
		File:    expr.File(),
		Line:    expr.Line(),
		Depth:   len(s.stack),
	})
}

// finishLocked ends the attachment after the program's outermost frame
// unwinds.
func (s *Session) finishLocked(expr Expression) {
	if cmd := s.current; cmd != nil && cmd.Status() != StatusStopped {
		cmd.status.Store(int32(StatusBreak))
		cmd.setStatus(StatusStopped, locate(expr))
	}
	s.logger.Info("program completed")
	s.emit(&Event{Type: EventCompleted, File: expr.File(), Line: expr.Line()})
	s.detachLocked()
}

// Detach releases the attached program and wakes the interpreter, which
// then sees ErrTerminated at its next pause point. It is idempotent.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

func (s *Session) detachLocked() {
	if s.program == nil {
		return
	}

	where := s.locationLocked()
	if s.current != nil {
		s.current.setStatus(StatusStopped, where)
	}
	for _, cmd := range s.pending {
		cmd.setStatus(StatusStopped, where)
	}

	s.program = nil
	s.detached = true
	s.started = false
	s.current = nil
	s.pending = nil
	s.stack = nil
	s.sentinel = nil
	s.inProlog = false
	s.held = ""
	s.evalCancel()
	s.breakpoints = newBreakpointStore()
	s.active = make(map[int]*Breakpoint)
	close(s.done)

	metrics.SessionDetached()
	s.logger.Info("session detached")
	s.emit(&Event{Type: EventDetached})
	s.cond.Broadcast()
}

func (s *Session) locationLocked() Location {
	if n := len(s.stack); n > 0 {
		return locate(s.stack[n-1])
	}
	return Location{}
}

func locate(expr Expression) Location {
	return Location{File: expr.File(), Line: expr.Line()}
}

// SetBreakpoint stores bp and returns its id. A breakpoint at the same
// file and line as an existing one replaces it.
func (s *Session) SetBreakpoint(bp *Breakpoint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breakpoints.set(bp)
}

// GetBreakpoint returns the breakpoint with the given id.
func (s *Session) GetBreakpoint(id int) (*Breakpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bp, err := s.breakpoints.get(id)
	if err != nil {
		return nil, err
	}
	cp := *bp
	return &cp, nil
}

// UpdateBreakpoint enables or disables a breakpoint.
func (s *Session) UpdateBreakpoint(id int, enabled bool) (*Breakpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bp, err := s.breakpoints.get(id)
	if err != nil {
		return nil, err
	}
	bp.Enabled = enabled
	if !enabled {
		delete(s.active, id)
	}
	cp := *bp
	return &cp, nil
}

// RemoveBreakpoint deletes a breakpoint and disarms it.
func (s *Session) RemoveBreakpoint(id int) (*Breakpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bp, err := s.breakpoints.remove(id)
	if err != nil {
		return nil, err
	}
	delete(s.active, id)
	return bp, nil
}

// BreakpointsForFile returns the breakpoints in file keyed by line.
func (s *Session) BreakpointsForFile(file string) map[int]*Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breakpoints.forFile(file)
}

// Breakpoints returns all breakpoints ordered by id.
func (s *Session) Breakpoints() []*Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breakpoints.all()
}
