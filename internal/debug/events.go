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
	"time"
)

// EventType represents the type of session event.
type EventType string

const (
	// EventAttached indicates a program was attached to the session.
	EventAttached EventType = "attached"

	// EventPaused indicates the interpreter has suspended.
	EventPaused EventType = "paused"

	// EventResumed indicates the interpreter has continued past a pause point.
	EventResumed EventType = "resumed"

	// EventStopped indicates execution was stopped by a client or the host.
	EventStopped EventType = "stopped"

	// EventCompleted indicates the program ran to completion.
	EventCompleted EventType = "completed"

	// EventDetached indicates the session released its program.
	EventDetached EventType = "detached"
)

// Event represents a state change observed by the session.
type Event struct {
	// Type is the type of event.
	Type EventType

	// Command is the continuation kind in control, if any.
	Command Kind

	// Reason explains a pause: init, step, step_out, or breakpoint.
	Reason string

	// File and Line locate the event in the script.
	File string
	Line int

	// Depth is the call-stack depth at the time of the event.
	Depth int

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// emit sends an event without blocking. Callers hold the session lock.
func (s *Session) emit(ev *Event) {
	ev.Timestamp = time.Now()
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("session event channel full, dropping event", "event", string(ev.Type))
	}
}
