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
	"errors"
	"fmt"
	"io"

	"github.com/tombee/debuggee/internal/connector"
	"github.com/tombee/debuggee/internal/debug"
	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

// Exit codes for debuggee commands
const (
	ExitSuccess           = 0
	ExitScriptFailed      = 1
	ExitInvalidScript     = 2
	ExitIDEUnavailable    = 3
	ExitInvalidConfig     = 4
	ExitStoppedByDebugger = 5
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewScriptError creates an error for scripts that failed while running
func NewScriptError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitScriptFailed, Message: msg, Cause: cause}
}

// NewInvalidScriptError creates an error for scripts that do not parse
func NewInvalidScriptError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidScript, Message: msg, Cause: cause}
}

// NewIDEUnavailableError creates an error for a debugging client that
// cannot be reached
func NewIDEUnavailableError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitIDEUnavailable, Message: msg, Cause: cause}
}

// NewConfigError creates an error for invalid configuration or flags
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidConfig, Message: msg, Cause: cause}
}

// Classify wraps err in an ExitError matching its kind. Errors that
// already carry an exit code are returned unchanged.
func Classify(msg string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	var (
		connErr *dbgerrors.ConnectionError
		cfgErr  *dbgerrors.ConfigError
		valErr  *dbgerrors.ValidationError
	)
	switch {
	case errors.Is(err, debug.ErrTerminated):
		return &ExitError{Code: ExitStoppedByDebugger, Message: msg, Cause: err}
	case errors.As(err, &connErr), errors.Is(err, connector.ErrAlreadyDebugging):
		return NewIDEUnavailableError(msg, err)
	case errors.As(err, &cfgErr), errors.As(err, &valErr):
		return NewConfigError(msg, err)
	}
	return NewScriptError(msg, err)
}

// PrintExitError writes err to w and returns the exit code it maps to.
func PrintExitError(w io.Writer, err error) int {
	fmt.Fprintln(w, "Error:", err.Error())
	printUserVisibleSuggestion(w, err)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitScriptFailed
}

// printUserVisibleSuggestion prints the hint carried by the first
// user-visible error in the chain, if any.
func printUserVisibleSuggestion(w io.Writer, err error) {
	if userErr, ok := dbgerrors.FindUserVisible(err); ok {
		if suggestion := userErr.Suggestion(); suggestion != "" {
			fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
		}
	}
}
