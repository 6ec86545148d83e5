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
	"encoding/json"
	"errors"
	"io"

	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

// OutputVersion is the "@version" of every --json document. Bump it when
// a field changes meaning.
const OutputVersion = "1.0"

// JSONResponse is embedded at the top of every --json document.
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command"`
	Success bool   `json:"success"`
}

// NewResponse starts the envelope for command.
func NewResponse(command string, success bool) JSONResponse {
	return JSONResponse{Version: OutputVersion, Command: command, Success: success}
}

type JSONError struct {
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Location *JSONLocation `json:"location,omitempty"`
}

type JSONLocation struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// locator is implemented by errors that point at a script line.
type locator interface {
	Location() (file string, line int)
}

// NewJSONError describes err for --json output. The code is the error's
// own category when it has one, and fallback otherwise.
func NewJSONError(fallback string, err error) JSONError {
	je := JSONError{Code: fallback, Message: err.Error()}

	var c dbgerrors.ErrorClassifier
	if errors.As(err, &c) {
		je.Code = c.ErrorType()
	}
	var loc locator
	if errors.As(err, &loc) {
		file, line := loc.Location()
		je.Location = &JSONLocation{File: file, Line: line}
	}
	return je
}

// EmitJSON writes v to w indented by two spaces, followed by a newline.
func EmitJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
