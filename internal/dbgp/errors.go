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

package dbgp

import (
	"errors"

	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

// Protocol error codes.
const (
	ErrParse             = 1
	ErrInvalidOptions    = 3
	ErrUnimplemented     = 4
	ErrUnavailable       = 5
	ErrCannotOpenFile    = 100
	ErrBreakpointNotSet  = 200
	ErrBreakpointType    = 201
	ErrNoSuchBreakpoint  = 205
	ErrEvaluation        = 206
	ErrCannotGetProperty = 300
	ErrStackDepthInvalid = 301
	ErrContextInvalid    = 302
)

var defaultMessages = map[int]string{
	ErrParse:             "parse error in command",
	ErrInvalidOptions:    "invalid or missing options",
	ErrUnimplemented:     "unimplemented command",
	ErrUnavailable:       "command is not available",
	ErrCannotOpenFile:    "can not open file",
	ErrBreakpointNotSet:  "breakpoint could not be set",
	ErrBreakpointType:    "breakpoint type not supported",
	ErrNoSuchBreakpoint:  "no such breakpoint",
	ErrEvaluation:        "error evaluating code",
	ErrCannotGetProperty: "can not get property",
	ErrStackDepthInvalid: "stack depth invalid",
	ErrContextInvalid:    "context invalid",
}

// NewError creates a protocol error. An empty message uses the
// standard text for code.
func NewError(command string, code int, message string) *dbgerrors.ProtocolError {
	if message == "" {
		message = defaultMessages[code]
	}
	return &dbgerrors.ProtocolError{Command: command, Code: code, Message: message}
}

// WrapError creates a protocol error carrying cause.
func WrapError(command string, code int, cause error) *dbgerrors.ProtocolError {
	return &dbgerrors.ProtocolError{Command: command, Code: code, Message: cause.Error(), Cause: cause}
}

// ErrorResponse renders err as the error response to a command. Errors that
// are not protocol errors are reported with fallbackCode.
func ErrorResponse(command string, txID int, err error, fallbackCode int) *Response {
	code, msg := fallbackCode, err.Error()
	var pe *dbgerrors.ProtocolError
	if errors.As(err, &pe) {
		code, msg = pe.Code, pe.Message
		if command == "" {
			command = pe.Command
		}
	}
	return &Response{
		XMLNS:         Namespace,
		Command:       command,
		TransactionID: txID,
		Error:         &Error{Code: code, Message: msg},
	}
}
