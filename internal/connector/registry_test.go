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

package connector

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/debuggee/internal/dbgp"
	"github.com/tombee/debuggee/internal/debug"
	"github.com/tombee/debuggee/internal/script"
	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

const program = `global limit = 3
let a = 1
let b = a + 1
while a < limit
  a = a + 1
end
print b
`

// fakeIDE plays the client side of the protocol.
type fakeIDE struct {
	t    *testing.T
	ln   net.Listener
	conn net.Conn
	txID int
}

func newFakeIDE(t *testing.T) *fakeIDE {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return &fakeIDE{t: t, ln: ln}
}

func (f *fakeIDE) addr() string { return f.ln.Addr().String() }

func (f *fakeIDE) accept() {
	f.t.Helper()
	conn, err := f.ln.Accept()
	require.NoError(f.t, err)
	require.NoError(f.t, conn.SetDeadline(time.Now().Add(10*time.Second)))
	f.conn = conn
	f.t.Cleanup(func() { conn.Close() })
}

func (f *fakeIDE) command(name string, args ...string) int {
	f.t.Helper()
	f.txID++
	line := fmt.Sprintf("%s -i %d", name, f.txID)
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}
	_, err := f.conn.Write(append([]byte(line), 0))
	require.NoError(f.t, err)
	return f.txID
}

func (f *fakeIDE) recv() *dbgp.Response {
	f.t.Helper()
	doc, err := dbgp.ReadMessage(f.conn)
	require.NoError(f.t, err)
	var resp dbgp.Response
	require.NoError(f.t, xml.Unmarshal(doc, &resp), string(doc))
	return &resp
}

func (f *fakeIDE) recvInit() *dbgp.Init {
	f.t.Helper()
	doc, err := dbgp.ReadMessage(f.conn)
	require.NoError(f.t, err)
	var pkt dbgp.Init
	require.NoError(f.t, xml.Unmarshal(doc, &pkt), string(doc))
	return &pkt
}

func (f *fakeIDE) call(name string, args ...string) *dbgp.Response {
	f.t.Helper()
	id := f.command(name, args...)
	resp := f.recv()
	require.Equal(f.t, id, resp.TransactionID)
	require.Equal(f.t, name, resp.Command)
	return resp
}

type runResult struct {
	value any
	err   error
}

// startProgram writes src to a temp file, attaches it through reg and
// runs it on its own goroutine.
func startProgram(t *testing.T, reg *Registry, ide *fakeIDE, src string) (string, *debug.Session, <-chan runResult) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.ds")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	prog, err := script.Load(path)
	require.NoError(t, err)

	sess, err := reg.Attach(context.Background(), prog)
	require.NoError(t, err)
	ide.accept()

	results := make(chan runResult, 1)
	go func() {
		v, err := script.New(prog, script.WithJoint(sess), script.WithOutput(io.Discard)).Run(context.Background())
		results <- runResult{v, err}
	}()
	return path, sess, results
}

func waitRun(t *testing.T, results <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(10 * time.Second):
		t.Fatal("program did not finish")
		return runResult{}
	}
}

func newTestRegistry(ide *fakeIDE) *Registry {
	return NewRegistry(Config{Addr: ide.addr(), RetryInterval: time.Millisecond})
}

func TestRegistry_BreakpointSession(t *testing.T) {
	ide := newFakeIDE(t)
	reg := newTestRegistry(ide)
	path, sess, results := startProgram(t, reg, ide, program)

	pkt := ide.recvInit()
	assert.Equal(t, dbgp.Namespace, pkt.XMLNS)
	assert.Equal(t, sess.ID(), pkt.Session)
	assert.Equal(t, "dscript", pkt.Language)
	assert.Equal(t, fileURI(path), pkt.FileURI)
	assert.True(t, reg.Connected())

	resp := ide.call("status")
	assert.Equal(t, "break", resp.Status)

	resp = ide.call("breakpoint_set", "-t", "line", "-f", fileURI(path), "-n", "7")
	require.Nil(t, resp.Error)
	assert.Equal(t, "enabled", resp.State)
	bpID := resp.ID

	resp = ide.call("breakpoint_list")
	require.Len(t, resp.Breakpoints, 1)
	assert.Equal(t, 7, resp.Breakpoints[0].Lineno)

	resp = ide.call("run")
	assert.Equal(t, "break", resp.Status)
	require.NotNil(t, resp.Message)
	assert.Equal(t, 7, resp.Message.Lineno)

	resp = ide.call("breakpoint_get", "-d", bpID)
	require.Len(t, resp.Breakpoints, 1)
	assert.Equal(t, 1, resp.Breakpoints[0].HitCount)

	// The main frame plus the print statement.
	resp = ide.call("stack_depth")
	assert.Equal(t, "2", resp.Depth)

	resp = ide.call("context_get", "-d", "0", "-c", "0")
	require.Nil(t, resp.Error)
	values := map[string]string{}
	for _, p := range resp.Properties {
		values[p.Name] = p.Value
	}
	assert.Equal(t, map[string]string{"a": "3", "b": "2"}, values)

	resp = ide.call("context_get", "-c", "1")
	require.Len(t, resp.Properties, 1)
	assert.Equal(t, "limit", resp.Properties[0].Name)

	resp = ide.call("property_get", "-n", "b")
	require.Len(t, resp.Properties, 1)
	assert.Equal(t, "int", resp.Properties[0].Type)
	assert.Equal(t, "2", resp.Properties[0].Value)

	resp = ide.call("eval", "--", base64.StdEncoding.EncodeToString([]byte("a * 10")))
	require.Len(t, resp.Properties, 1)
	decoded, err := base64.StdEncoding.DecodeString(resp.Properties[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "30", string(decoded))

	resp = ide.call("run")
	assert.Equal(t, "stopped", resp.Status)

	r := waitRun(t, results)
	require.NoError(t, r.err)
	assert.Eventually(t, func() bool { return reg.Session() == nil }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, reg.Connected())
}

func TestRegistry_BreakpointUpdateAndRemove(t *testing.T) {
	ide := newFakeIDE(t)
	reg := newTestRegistry(ide)
	path, _, results := startProgram(t, reg, ide, program)
	ide.recvInit()

	resp := ide.call("breakpoint_set", "-t", "line", "-f", fileURI(path), "-n", "5")
	require.Nil(t, resp.Error)
	loop := resp.ID
	resp = ide.call("breakpoint_set", "-t", "line", "-f", fileURI(path), "-n", "7")
	require.Nil(t, resp.Error)
	last := resp.ID

	resp = ide.call("breakpoint_update", "-d", loop, "-s", "disabled")
	require.Nil(t, resp.Error)
	resp = ide.call("breakpoint_get", "-d", loop)
	require.Len(t, resp.Breakpoints, 1)
	assert.Equal(t, "disabled", resp.Breakpoints[0].State)

	resp = ide.call("breakpoint_update", "-d", loop, "-s", "maybe")
	require.NotNil(t, resp.Error)
	assert.Equal(t, dbgp.ErrInvalidOptions, resp.Error.Code)

	resp = ide.call("breakpoint_remove", "-d", last)
	require.Nil(t, resp.Error)
	resp = ide.call("breakpoint_remove", "-d", last)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dbgp.ErrNoSuchBreakpoint, resp.Error.Code)

	resp = ide.call("breakpoint_list")
	require.Len(t, resp.Breakpoints, 1)

	// Both breakpoints are out of the way, so the program runs to the end.
	resp = ide.call("run")
	assert.Equal(t, "stopped", resp.Status)
	require.NoError(t, waitRun(t, results).err)
}

func TestRegistry_SteppingAndStack(t *testing.T) {
	src := `def twice(x)
  return x * 2
end
let v = twice(4)
print v
`
	ide := newFakeIDE(t)
	reg := newTestRegistry(ide)
	_, _, results := startProgram(t, reg, ide, src)
	ide.recvInit()

	// Paused at the declarations frame; step onto the def statement.
	resp := ide.call("step_into")
	assert.Equal(t, "break", resp.Status)
	assert.Equal(t, 1, resp.Message.Lineno)

	resp = ide.call("step_over")
	assert.Equal(t, "break", resp.Status)
	assert.Equal(t, 4, resp.Message.Lineno)

	resp = ide.call("step_into")
	assert.Equal(t, 1, resp.Message.Lineno)
	resp = ide.call("step_into")
	assert.Equal(t, 2, resp.Message.Lineno)

	resp = ide.call("stack_get")
	require.Len(t, resp.Stack, 4)
	assert.Equal(t, 0, resp.Stack[0].Level)
	assert.Equal(t, 2, resp.Stack[0].Lineno)
	assert.Equal(t, "def twice(x)", resp.Stack[1].Where)
	assert.Equal(t, 4, resp.Stack[2].Lineno)

	resp = ide.call("stack_get", "-d", "1")
	require.Len(t, resp.Stack, 1)
	assert.Equal(t, 1, resp.Stack[0].Level)

	resp = ide.call("stack_get", "-d", "5")
	require.NotNil(t, resp.Error)
	assert.Equal(t, dbgp.ErrStackDepthInvalid, resp.Error.Code)

	resp = ide.call("step_out")
	assert.Equal(t, "break", resp.Status)
	require.NotNil(t, resp.Message)
	assert.Equal(t, 5, resp.Message.Lineno)

	resp = ide.call("property_get", "-n", "v")
	require.Nil(t, resp.Error)
	require.Len(t, resp.Properties, 1)
	assert.Equal(t, "8", resp.Properties[0].Value)

	resp = ide.call("run")
	assert.Equal(t, "stopped", resp.Status)
	require.NoError(t, waitRun(t, results).err)
}

func TestRegistry_StepOutReturnsToCaller(t *testing.T) {
	src := `def total(n)
  let s = n + 1
  s = s * 2
  s = s + 3
  return s
end
let r = total(1)
let done = r
print done
`
	ide := newFakeIDE(t)
	reg := newTestRegistry(ide)
	path, _, results := startProgram(t, reg, ide, src)
	ide.recvInit()

	resp := ide.call("breakpoint_set", "-t", "line", "-f", fileURI(path), "-n", "3")
	require.Nil(t, resp.Error)
	resp = ide.call("run")
	require.Equal(t, "break", resp.Status)
	assert.Equal(t, 3, resp.Message.Lineno)

	// The rest of total runs; the break lands on the caller's next statement.
	resp = ide.call("step_out")
	assert.Equal(t, "break", resp.Status)
	require.NotNil(t, resp.Message)
	assert.Equal(t, 8, resp.Message.Lineno)
	assert.Equal(t, fileURI(path), resp.Message.Filename)

	resp = ide.call("stack_depth")
	assert.Equal(t, "2", resp.Depth)

	resp = ide.call("property_get", "-n", "r")
	require.Nil(t, resp.Error)
	require.Len(t, resp.Properties, 1)
	assert.Equal(t, "7", resp.Properties[0].Value)

	resp = ide.call("run")
	assert.Equal(t, "stopped", resp.Status)
	require.NoError(t, waitRun(t, results).err)
}

func TestRegistry_StopCommand(t *testing.T) {
	ide := newFakeIDE(t)
	reg := newTestRegistry(ide)
	_, _, results := startProgram(t, reg, ide, program)
	ide.recvInit()

	resp := ide.call("stop")
	assert.Equal(t, "stopped", resp.Status)

	r := waitRun(t, results)
	assert.ErrorIs(t, r.err, debug.ErrTerminated)

	_, err := dbgp.ReadMessage(ide.conn)
	assert.Error(t, err, "connection should be closed after stop")
}

func TestRegistry_ClientDisconnectStopsProgram(t *testing.T) {
	ide := newFakeIDE(t)
	reg := newTestRegistry(ide)
	_, sess, results := startProgram(t, reg, ide, program)
	ide.recvInit()

	require.NoError(t, ide.conn.Close())

	r := waitRun(t, results)
	assert.ErrorIs(t, r.err, debug.ErrTerminated)
	assert.False(t, sess.Attached())
	assert.Eventually(t, func() bool { return reg.Session() == nil }, 5*time.Second, 10*time.Millisecond)
}

func TestRegistry_AlreadyDebugging(t *testing.T) {
	ide := newFakeIDE(t)
	reg := newTestRegistry(ide)
	_, _, results := startProgram(t, reg, ide, program)
	ide.recvInit()

	prog, err := script.Parse("other.ds", "print 1\n")
	require.NoError(t, err)
	_, err = reg.Attach(context.Background(), prog)
	assert.ErrorIs(t, err, ErrAlreadyDebugging)

	ide.call("stop")
	waitRun(t, results)
}

func TestRegistry_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	reg := NewRegistry(Config{Addr: addr, RetryInterval: time.Millisecond, DialTimeout: time.Second})
	prog, err := script.Parse("main.ds", "print 1\n")
	require.NoError(t, err)

	_, err = reg.Attach(context.Background(), prog)
	var connErr *dbgerrors.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, addr, connErr.Addr)
	assert.Equal(t, 1, connErr.Attempt)

	sess := reg.Session()
	require.NotNil(t, sess)
	assert.False(t, sess.Attached())

	_, err = reg.Attach(context.Background(), prog)
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, 2, connErr.Attempt)
	assert.Same(t, sess, reg.Session())
}

func TestRegistry_DialFailureHonorsContext(t *testing.T) {
	reg := NewRegistry(Config{Addr: "127.0.0.1:1", RetryInterval: time.Hour},
		WithDialer(func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, errors.New("refused")
		}))
	prog, err := script.Parse("main.ds", "print 1\n")
	require.NoError(t, err)

	_, err = reg.Attach(context.Background(), prog)
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = reg.Attach(ctx, prog)
	require.Error(t, err)
	var connErr *dbgerrors.ConnectionError
	assert.False(t, errors.As(err, &connErr), "throttled attempt should fail on the context")
}

func TestConn_ProtocolErrors(t *testing.T) {
	ide := newFakeIDE(t)
	reg := newTestRegistry(ide)
	_, _, results := startProgram(t, reg, ide, program)
	ide.recvInit()

	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "frobnicate", code: dbgp.ErrUnimplemented},
		{name: "breakpoint_get", args: []string{"-d", "99"}, code: dbgp.ErrNoSuchBreakpoint},
		{name: "breakpoint_get", code: dbgp.ErrInvalidOptions},
		{name: "breakpoint_set", args: []string{"-t", "call", "-n", "2"}, code: dbgp.ErrBreakpointType},
		{name: "breakpoint_set", args: []string{"-t", "line", "-n", "0"}, code: dbgp.ErrBreakpointNotSet},
		{name: "property_get", args: []string{"-n", "missing"}, code: dbgp.ErrCannotGetProperty},
		{name: "context_get", args: []string{"-c", "7"}, code: dbgp.ErrContextInvalid},
		{name: "feature_set", args: []string{"-n", "language_name", "-v", "x"}, code: dbgp.ErrInvalidOptions},
		{name: "eval", args: []string{"--", base64.StdEncoding.EncodeToString([]byte("1 +"))}, code: dbgp.ErrEvaluation},
		{name: "source", args: []string{"-f", "file:///no/such/file.ds"}, code: dbgp.ErrCannotOpenFile},
	}
	for _, tt := range tests {
		resp := ide.call(tt.name, tt.args...)
		if assert.NotNil(t, resp.Error, tt.name) {
			assert.Equal(t, tt.code, resp.Error.Code, tt.name)
		}
	}

	_, err := ide.conn.Write([]byte("status -i\x00"))
	require.NoError(t, err)
	resp := ide.recv()
	require.NotNil(t, resp.Error)
	assert.Equal(t, dbgp.ErrInvalidOptions, resp.Error.Code)

	ide.call("stop")
	waitRun(t, results)
}

func TestConn_FeaturesAndSource(t *testing.T) {
	ide := newFakeIDE(t)
	reg := newTestRegistry(ide)
	_, _, results := startProgram(t, reg, ide, program)
	ide.recvInit()

	resp := ide.call("feature_get", "-n", "max_depth")
	assert.Equal(t, "1", resp.Supported)
	assert.Equal(t, "1", resp.Value)

	resp = ide.call("feature_get", "-n", "breakpoint_list")
	assert.Equal(t, "1", resp.Supported)

	resp = ide.call("feature_get", "-n", "no_such_feature")
	assert.Equal(t, "0", resp.Supported)

	resp = ide.call("feature_set", "-n", "max_data", "-v", "4")
	assert.Equal(t, "1", resp.Success)

	resp = ide.call("source", "-b", "2", "-e", "3")
	require.Nil(t, resp.Error)
	text, err := base64.StdEncoding.DecodeString(resp.Value)
	require.NoError(t, err)
	assert.Equal(t, "let a = 1\nlet b = a + 1\n", string(text))

	resp = ide.call("context_names")
	require.Len(t, resp.Contexts, 2)
	assert.Equal(t, "Locals", resp.Contexts[0].Name)

	resp = ide.call("detach")
	assert.Equal(t, "stopping", resp.Status)
	assert.ErrorIs(t, waitRun(t, results).err, debug.ErrTerminated)
}

func TestAttributes(t *testing.T) {
	var a Attributes
	_, ok := a.Get("k")
	assert.False(t, ok)

	a.Set("k", 1)
	v, ok := a.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	a.Remove("k")
	_, ok = a.Get("k")
	assert.False(t, ok)
}

func TestFileURI(t *testing.T) {
	assert.Equal(t, "file:///tmp/a%20b.ds", fileURI("/tmp/a b.ds"))
	assert.Equal(t, "/tmp/a b.ds", pathFromURI("file:///tmp/a%20b.ds"))
	assert.Equal(t, "main.ds", pathFromURI("main.ds"))
	assert.Equal(t, "", fileURI(""))
}

func TestSourceLines(t *testing.T) {
	text := "a\nb\nc\n"
	assert.Equal(t, "b\nc\n", sourceLines(text, 2, 0))
	assert.Equal(t, "a\n", sourceLines(text, 0, 1))
	assert.Equal(t, "", sourceLines(text, 3, 2))
}
