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
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runProgram plays the hook sequence of a three-line script on its own
// goroutine and reports the first hook error.
func runProgram(s *Session) <-chan error {
	ch := make(chan error, 1)
	go func() {
		body := at(1)
		s.EnterFrame(body)
		if err := s.PausePoint(body); err != nil {
			ch <- err
			return
		}
		for line := 1; line <= 3; line++ {
			stmt := &fakeExpr{file: "main.ds", line: line, ctx: &fakeContext{
				locals: map[string]any{"n": line + 1, "list": []any{"a", "b"}},
			}}
			s.EnterFrame(stmt)
			if err := s.PausePoint(stmt); err != nil {
				ch <- err
				return
			}
			s.LeaveFrame(stmt)
		}
		s.LeaveFrame(body)
		ch <- nil
	}()
	return ch
}

func runShell(t *testing.T, input string) (string, error) {
	t.Helper()
	s := newAttached(t)
	program := runProgram(s)

	var out bytes.Buffer
	shell := NewShell(s, strings.NewReader(input), &out)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, shell.Run(ctx))

	select {
	case err := <-program:
		return out.String(), err
	case <-time.After(waitTimeout):
		t.Fatal("program did not finish")
		return "", nil
	}
}

func TestShell_BreakpointSession(t *testing.T) {
	out, err := runShell(t, strings.Join([]string{
		"b 2",
		"bl",
		"run",
		"bt",
		"vars",
		"print list[1]",
		"eval n",
		"run",
	}, "\n")+"\n")
	require.NoError(t, err)

	assert.Contains(t, out, "paused at main.ds:1")
	assert.Contains(t, out, "breakpoint 1 at main.ds:2")
	assert.Contains(t, out, "1  main.ds:2  enabled  hits=0")
	assert.Contains(t, out, "paused at main.ds:2")
	assert.Contains(t, out, "#0  main.ds:2")
	assert.Contains(t, out, "#1  main.ds:1")
	assert.Contains(t, out, "n = 3")
	assert.Contains(t, out, `list[1] = "b"`)
	assert.Contains(t, out, "program stopped")
}

func TestShell_Stepping(t *testing.T) {
	out, err := runShell(t, "step\nstep\nnext\nq\n")
	assert.ErrorIs(t, err, ErrTerminated)
	assert.Contains(t, out, "paused at main.ds:1")
	assert.Contains(t, out, "paused at main.ds:2")
	assert.Contains(t, out, "program stopped")
}

func TestShell_EOFStopsProgram(t *testing.T) {
	out, err := runShell(t, "")
	assert.ErrorIs(t, err, ErrTerminated)
	assert.Contains(t, out, "paused at main.ds:1")
}

func TestShell_Errors(t *testing.T) {
	out, err := runShell(t, "frobnicate\ndelete x\nbreak\nprint\nrun\n")
	require.NoError(t, err)
	assert.Contains(t, out, "unknown command: frobnicate")
	assert.Contains(t, out, `invalid breakpoint id "x"`)
	assert.Contains(t, out, "break requires a location")
	assert.Contains(t, out, "print requires a variable name")
}

func TestShell_Help(t *testing.T) {
	out, _ := runShell(t, "help\nrun\n")
	assert.Contains(t, out, "Debug Commands:")
	assert.Contains(t, out, "backtrace, bt")
}
