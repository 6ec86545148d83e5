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
	"sync"
	"sync/atomic"
)

// Kind is the continuation kind of a Command.
type Kind int

const (
	// KindInit binds a freshly attached program to its client. It is
	// issued once per attachment by the transport.
	KindInit Kind = iota
	KindRun
	KindStepInto
	KindStepOver
	KindStepOut
	KindStop

	// KindStatus is read-only: it reports the current status without
	// affecting execution.
	KindStatus
)

var kindNames = map[Kind]string{
	KindInit:     "init",
	KindRun:      "run",
	KindStepInto: "step_into",
	KindStepOver: "step_over",
	KindStepOut:  "step_out",
	KindStop:     "stop",
	KindStatus:   "status",
}

// String returns the protocol name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// rank orders kinds by continuation precedence.
func (k Kind) rank() int {
	switch k {
	case KindStop:
		return 5
	case KindStepOut:
		return 4
	case KindStepOver:
		return 3
	case KindStepInto:
		return 2
	case KindRun:
		return 1
	default:
		return 0
	}
}

// Outranks reports whether k takes precedence over other in
// continuation order: stop, step_out, step_over, step_into, run.
func (k Kind) Outranks(other Kind) bool {
	return k.rank() > other.rank()
}

// IsFlow reports whether the kind moves execution forward.
func (k Kind) IsFlow() bool {
	switch k {
	case KindRun, KindStepInto, KindStepOver, KindStepOut:
		return true
	}
	return false
}

// IsReadOnly reports whether the kind leaves execution untouched.
func (k Kind) IsReadOnly() bool {
	return k == KindStatus
}

// Status is the lifecycle state of a Command.
type Status int32

const (
	StatusNone Status = iota
	StatusStarting
	StatusRunning
	StatusBreak
	StatusStopped
)

// String returns the protocol name of the status.
func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusBreak:
		return "break"
	case StatusStopped:
		return "stopped"
	default:
		return "none"
	}
}

// Binder receives the session when an INIT command is first observed
// by the interpreter goroutine.
type Binder interface {
	Bind(s *Session)
}

// BinderFunc adapts a function to the Binder interface.
type BinderFunc func(s *Session)

// Bind calls f(s).
func (f BinderFunc) Bind(s *Session) { f(s) }

// Location is where a command settled.
type Location struct {
	File string
	Line int
}

// Command is one continuation request from a client.
//
// Status is written only by the Session while it holds its lock, but
// may be read from any goroutine.
type Command struct {
	kind   Kind
	txID   int
	status atomic.Int32

	// depth is the call-stack depth recorded when the command was
	// installed.
	depth int

	binder   Binder
	where    Location
	onSettle func(*Command)

	settleOnce sync.Once
	done       chan struct{}
}

// NewCommand creates a command of the given kind.
func NewCommand(kind Kind) *Command {
	return &Command{kind: kind, done: make(chan struct{})}
}

// NewInitCommand creates the INIT command for a new attachment. The
// binder is called on the interpreter goroutine at the first pause
// point.
func NewInitCommand(b Binder) *Command {
	cmd := NewCommand(KindInit)
	cmd.binder = b
	return cmd
}

// WithTransaction sets the client transaction id echoed in responses.
func (c *Command) WithTransaction(id int) *Command {
	c.txID = id
	return c
}

// OnSettle registers fn to run once when the command first reaches
// break or stopped. fn runs with the session lock held and must not
// call back into the session.
func (c *Command) OnSettle(fn func(*Command)) *Command {
	c.onSettle = fn
	return c
}

// Kind returns the continuation kind.
func (c *Command) Kind() Kind { return c.kind }

// TransactionID returns the client transaction id.
func (c *Command) TransactionID() int { return c.txID }

// Status returns the current status.
func (c *Command) Status() Status { return Status(c.status.Load()) }

// Depth returns the call-stack depth recorded at installation.
func (c *Command) Depth() int { return c.depth }

// Where returns the location at which the command settled. It is only
// meaningful after Done is closed.
func (c *Command) Where() Location { return c.where }

// Done is closed the first time the command reaches break or stopped.
func (c *Command) Done() <-chan struct{} { return c.done }

// setStatus moves the command to st. Stopped is terminal.
// The caller holds the session lock.
func (c *Command) setStatus(st Status, where Location) {
	if c.Status() == StatusStopped {
		return
	}
	c.status.Store(int32(st))
	if st == StatusBreak || st == StatusStopped {
		c.settle(where)
	}
}

func (c *Command) settle(where Location) {
	c.settleOnce.Do(func() {
		c.where = where
		if c.onSettle != nil {
			c.onSettle(c)
		}
		close(c.done)
	})
}
