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

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for malformed scripts, bad breakpoint locations, or invalid flag values.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ErrorType implements ErrorClassifier.
func (e *ValidationError) ErrorType() string { return "validation" }

// IsRetryable implements ErrorClassifier.
func (e *ValidationError) IsRetryable() bool { return false }

// NotFoundError represents a resource not found error.
// Use this when a requested breakpoint, variable, or stack frame does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "breakpoint", "variable", "frame")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrorType implements ErrorClassifier.
func (e *NotFoundError) ErrorType() string { return "not_found" }

// IsRetryable implements ErrorClassifier.
func (e *NotFoundError) IsRetryable() bool { return false }

// ConnectionError represents a failure to reach the debugging client.
// The session stays unattached and the caller may retry.
type ConnectionError struct {
	// Addr is the address that was dialed
	Addr string

	// Attempt is the 1-based attempt number for this session
	Attempt int

	// Cause is the underlying network error
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Attempt > 1 {
		return fmt.Sprintf("connect to debugging client at %s failed (attempt %d): %v", e.Addr, e.Attempt, e.Cause)
	}
	return fmt.Sprintf("connect to debugging client at %s failed: %v", e.Addr, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ConnectionError) ErrorType() string { return "connection" }

// IsRetryable implements ErrorClassifier.
func (e *ConnectionError) IsRetryable() bool { return true }

// IsUserVisible implements UserVisibleError.
func (e *ConnectionError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *ConnectionError) UserMessage() string {
	return fmt.Sprintf("could not reach the debugging client at %s", e.Addr)
}

// Suggestion implements UserVisibleError.
func (e *ConnectionError) Suggestion() string {
	return "start your IDE's debug listener (DBGp, usually port 9000) or pass --ide-port"
}

// ProtocolError represents a debugging protocol command that could not be served.
// Code carries the wire-level error code reported back to the client.
type ProtocolError struct {
	// Command is the protocol command name (e.g., "breakpoint_set")
	Command string

	// Code is the protocol error code
	Code int

	// Message is the human-readable error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("protocol error (%d)", e.Code)
	if e.Command != "" {
		msg = fmt.Sprintf("%s in %s", msg, e.Command)
	}
	return fmt.Sprintf("%s: %s", msg, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ProtocolError) ErrorType() string { return "protocol" }

// IsRetryable implements ErrorClassifier.
func (e *ProtocolError) IsRetryable() bool { return false }

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "ide.port")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
// Use this when dialing the client or waiting for a host slot exceeds its deadline.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "dial", "acquire slot")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *TimeoutError) ErrorType() string { return "timeout" }

// IsRetryable implements ErrorClassifier.
func (e *TimeoutError) IsRetryable() bool { return true }
