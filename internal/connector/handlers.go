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
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tombee/debuggee/internal/dbgp"
	"github.com/tombee/debuggee/internal/debug"
	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

type handlerFunc func(c *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error)

type handler struct {
	fn handlerFunc

	// beforeInit allows the command before the INIT handshake binds the
	// session to the connection.
	beforeInit bool
}

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"status":            {fn: handleStatus, beforeInit: true},
		"feature_get":       {fn: handleFeatureGet, beforeInit: true},
		"feature_set":       {fn: handleFeatureSet, beforeInit: true},
		"run":               {fn: continuation(debug.KindRun)},
		"step_into":         {fn: continuation(debug.KindStepInto)},
		"step_over":         {fn: continuation(debug.KindStepOver)},
		"step_out":          {fn: continuation(debug.KindStepOut)},
		"stop":              {fn: continuation(debug.KindStop), beforeInit: true},
		"detach":            {fn: handleDetach, beforeInit: true},
		"breakpoint_set":    {fn: handleBreakpointSet},
		"breakpoint_get":    {fn: handleBreakpointGet},
		"breakpoint_update": {fn: handleBreakpointUpdate},
		"breakpoint_remove": {fn: handleBreakpointRemove},
		"breakpoint_list":   {fn: handleBreakpointList},
		"stack_depth":       {fn: handleStackDepth},
		"stack_get":         {fn: handleStackGet},
		"context_names":     {fn: handleContextNames},
		"context_get":       {fn: handleContextGet},
		"property_get":      {fn: handlePropertyGet},
		"property_value":    {fn: handlePropertyValue},
		"eval":              {fn: handleEval},
		"source":            {fn: handleSource},
	}
}

func newResponse(req *dbgp.Request) *dbgp.Response {
	return &dbgp.Response{
		XMLNS:         dbgp.Namespace,
		Command:       req.Name,
		TransactionID: req.TransactionID,
	}
}

func handleStatus(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	cmd := debug.NewCommand(debug.KindStatus).WithTransaction(req.TransactionID)
	s.Continuation(cmd)
	resp := newResponse(req)
	resp.Status = statusName(cmd.Status())
	resp.Reason = "ok"
	return resp, nil
}

// continuation issues a flow command. The response is sent when the
// command settles.
func continuation(kind debug.Kind) handlerFunc {
	return func(c *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
		cmd := debug.NewCommand(kind).
			WithTransaction(req.TransactionID).
			OnSettle(func(cmd *debug.Command) {
				resp := newResponse(req)
				resp.Status = statusName(cmd.Status())
				resp.Reason = "ok"
				if where := cmd.Where(); where.File != "" && cmd.Status() == debug.StatusBreak {
					resp.Message = &dbgp.Message{Filename: fileURI(where.File), Lineno: where.Line}
				}
				c.reply(req, resp, nil)
			})
		s.Continuation(cmd)
		return nil, nil
	}
}

func handleDetach(c *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	resp := newResponse(req)
	resp.Status = "stopping"
	resp.Reason = "ok"
	c.reply(req, resp, nil)
	s.Detach()
	return nil, nil
}

func statusName(st debug.Status) string {
	if st == debug.StatusNone {
		return debug.StatusStarting.String()
	}
	return st.String()
}

func handleFeatureGet(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	name := req.Arg("n")
	if name == "" {
		return nil, dbgp.NewError(req.Name, dbgp.ErrInvalidOptions, "missing option -n")
	}
	resp := newResponse(req)
	resp.Feature = name
	resp.Supported = "0"
	if v, ok := s.Feature(name); ok {
		resp.Supported = "1"
		resp.Value = v
	} else if _, ok := handlers[name]; ok {
		resp.Supported = "1"
	}
	return resp, nil
}

func handleFeatureSet(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	name := req.Arg("n")
	if name == "" {
		return nil, dbgp.NewError(req.Name, dbgp.ErrInvalidOptions, "missing option -n")
	}
	if err := s.SetFeature(name, req.Arg("v")); err != nil {
		return nil, dbgp.WrapError(req.Name, dbgp.ErrInvalidOptions, err)
	}
	resp := newResponse(req)
	resp.Feature = name
	resp.Success = "1"
	return resp, nil
}

func handleBreakpointSet(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	kind := req.Arg("t")
	if kind == "" {
		return nil, dbgp.NewError(req.Name, dbgp.ErrInvalidOptions, "missing option -t")
	}
	line, err := req.IntArg("n", 0)
	if err != nil {
		return nil, err
	}
	file := req.Arg("f")
	if file == "" {
		if p := s.Program(); p != nil {
			file = p.Source()
		}
	}
	state := req.Arg("s")
	if state != "" && state != "enabled" && state != "disabled" {
		return nil, dbgp.NewError(req.Name, dbgp.ErrInvalidOptions, fmt.Sprintf("invalid state %q", state))
	}

	bp := &debug.Breakpoint{
		File:    pathFromURI(file),
		Line:    line,
		Kind:    debug.BreakpointKind(kind),
		Enabled: state != "disabled",
	}
	id, err := s.SetBreakpoint(bp)
	if err != nil {
		if errors.Is(err, debug.ErrBreakpointKindUnsupported) {
			return nil, dbgp.WrapError(req.Name, dbgp.ErrBreakpointType, err)
		}
		return nil, dbgp.WrapError(req.Name, dbgp.ErrBreakpointNotSet, err)
	}

	resp := newResponse(req)
	resp.ID = strconv.Itoa(id)
	resp.State = breakpointState(bp)
	return resp, nil
}

func breakpointID(req *dbgp.Request) (int, error) {
	if req.Arg("d") == "" {
		return 0, dbgp.NewError(req.Name, dbgp.ErrInvalidOptions, "missing option -d")
	}
	return req.IntArg("d", 0)
}

func breakpointError(req *dbgp.Request, err error) error {
	var nf *dbgerrors.NotFoundError
	if errors.As(err, &nf) {
		return dbgp.WrapError(req.Name, dbgp.ErrNoSuchBreakpoint, err)
	}
	return dbgp.WrapError(req.Name, dbgp.ErrBreakpointNotSet, err)
}

func handleBreakpointGet(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	id, err := breakpointID(req)
	if err != nil {
		return nil, err
	}
	bp, err := s.GetBreakpoint(id)
	if err != nil {
		return nil, breakpointError(req, err)
	}
	resp := newResponse(req)
	resp.Breakpoints = []dbgp.Breakpoint{toBreakpoint(bp)}
	return resp, nil
}

func handleBreakpointUpdate(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	id, err := breakpointID(req)
	if err != nil {
		return nil, err
	}
	bp, err := s.GetBreakpoint(id)
	if err != nil {
		return nil, breakpointError(req, err)
	}
	enabled := bp.Enabled
	switch req.Arg("s") {
	case "":
	case "enabled":
		enabled = true
	case "disabled":
		enabled = false
	default:
		return nil, dbgp.NewError(req.Name, dbgp.ErrInvalidOptions, fmt.Sprintf("invalid state %q", req.Arg("s")))
	}
	if _, err := s.UpdateBreakpoint(id, enabled); err != nil {
		return nil, breakpointError(req, err)
	}
	return newResponse(req), nil
}

func handleBreakpointRemove(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	id, err := breakpointID(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.RemoveBreakpoint(id); err != nil {
		return nil, breakpointError(req, err)
	}
	return newResponse(req), nil
}

func handleBreakpointList(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	resp := newResponse(req)
	for _, bp := range s.Breakpoints() {
		resp.Breakpoints = append(resp.Breakpoints, toBreakpoint(bp))
	}
	return resp, nil
}

func toBreakpoint(bp *debug.Breakpoint) dbgp.Breakpoint {
	return dbgp.Breakpoint{
		ID:       bp.ID,
		Type:     string(bp.Kind),
		State:    breakpointState(bp),
		Filename: fileURI(bp.File),
		Lineno:   bp.Line,
		HitCount: bp.HitCount,
	}
}

func breakpointState(bp *debug.Breakpoint) string {
	if bp.Enabled {
		return "enabled"
	}
	return "disabled"
}

func handleStackDepth(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	resp := newResponse(req)
	resp.Depth = strconv.Itoa(s.Depth())
	return resp, nil
}

func handleStackGet(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	frames := s.Stack()
	level := -1
	if req.Arg("d") != "" {
		d, err := req.IntArg("d", 0)
		if err != nil {
			return nil, err
		}
		if d < 0 || d >= len(frames) {
			return nil, dbgp.NewError(req.Name, dbgp.ErrStackDepthInvalid, "")
		}
		level = d
	}

	resp := newResponse(req)
	for _, f := range frames {
		if level >= 0 && f.Level != level {
			continue
		}
		resp.Stack = append(resp.Stack, dbgp.StackFrame{
			Level:    f.Level,
			Type:     "file",
			Filename: fileURI(f.File),
			Lineno:   f.Line,
			Where:    f.Where,
			CmdBegin: fmt.Sprintf("%d:%d", f.Line, f.Column),
		})
	}
	return resp, nil
}

var contexts = []struct {
	name  string
	scope debug.Scope
}{
	{"Locals", debug.ScopeLocal},
	{"Globals", debug.ScopeGlobal},
}

func handleContextNames(_ *Conn, _ *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	resp := newResponse(req)
	for id, ctx := range contexts {
		resp.Contexts = append(resp.Contexts, dbgp.ContextName{Name: ctx.name, ID: id})
	}
	return resp, nil
}

// frameArgs reads the -d (stack depth) and -c (context id) options.
func frameArgs(req *dbgp.Request) (int, debug.Scope, error) {
	level, err := req.IntArg("d", 0)
	if err != nil {
		return 0, 0, err
	}
	cid, err := req.IntArg("c", 0)
	if err != nil {
		return 0, 0, err
	}
	if cid < 0 || cid >= len(contexts) {
		return 0, 0, dbgp.NewError(req.Name, dbgp.ErrContextInvalid, "")
	}
	return level, contexts[cid].scope, nil
}

// inspectError maps session inspection errors to protocol codes.
func inspectError(req *dbgp.Request, err error, notFound int) error {
	var nf *dbgerrors.NotFoundError
	switch {
	case errors.Is(err, debug.ErrNotPaused):
		return dbgp.WrapError(req.Name, dbgp.ErrUnavailable, err)
	case errors.As(err, &nf) && nf.Resource == "stack frame":
		return dbgp.WrapError(req.Name, dbgp.ErrStackDepthInvalid, err)
	}
	return dbgp.WrapError(req.Name, notFound, err)
}

func limits(s *debug.Session) dbgp.Limits {
	get := func(name string) int {
		v, _ := s.Feature(name)
		n, _ := strconv.Atoi(v)
		return n
	}
	return dbgp.Limits{
		MaxDepth:    get(debug.FeatureMaxDepth),
		MaxChildren: get(debug.FeatureMaxChildren),
		MaxData:     get(debug.FeatureMaxData),
	}
}

func handleContextGet(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	level, scope, err := frameArgs(req)
	if err != nil {
		return nil, err
	}
	vars, err := s.Variables(level, scope)
	if err != nil {
		return nil, inspectError(req, err, dbgp.ErrContextInvalid)
	}
	lim := limits(s)
	resp := newResponse(req)
	for _, v := range vars {
		resp.Properties = append(resp.Properties, dbgp.NewProperty(v.Name, v.Name, v.Value, lim))
	}
	return resp, nil
}

func handlePropertyGet(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	name := req.Arg("n")
	if name == "" {
		return nil, dbgp.NewError(req.Name, dbgp.ErrInvalidOptions, "missing option -n")
	}
	level, _, err := frameArgs(req)
	if err != nil {
		return nil, err
	}
	value, err := s.Variable(level, name)
	if err != nil {
		return nil, inspectError(req, err, dbgp.ErrCannotGetProperty)
	}
	lim := limits(s)
	if d, err := req.IntArg("m", 0); err == nil && d > 0 {
		lim.MaxData = d
	}
	resp := newResponse(req)
	resp.Properties = []dbgp.Property{dbgp.NewProperty(name, name, value, lim)}
	return resp, nil
}

func handlePropertyValue(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	name := req.Arg("n")
	if name == "" {
		return nil, dbgp.NewError(req.Name, dbgp.ErrInvalidOptions, "missing option -n")
	}
	level, _, err := frameArgs(req)
	if err != nil {
		return nil, err
	}
	value, err := s.Variable(level, name)
	if err != nil {
		return nil, inspectError(req, err, dbgp.ErrCannotGetProperty)
	}
	p := dbgp.NewProperty(name, name, value, dbgp.Limits{MaxData: limits(s).MaxData})
	resp := newResponse(req)
	resp.Encoding = p.Encoding
	resp.Value = p.Value
	return resp, nil
}

func handleEval(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	if strings.TrimSpace(req.Data) == "" {
		return nil, dbgp.NewError(req.Name, dbgp.ErrInvalidOptions, "missing expression")
	}
	out, err := s.Evaluate(req.Data)
	if err != nil {
		if errors.Is(err, debug.ErrNotPaused) {
			return nil, dbgp.WrapError(req.Name, dbgp.ErrUnavailable, err)
		}
		return nil, dbgp.WrapError(req.Name, dbgp.ErrEvaluation, err)
	}
	resp := newResponse(req)
	resp.Properties = []dbgp.Property{dbgp.NewProperty("", "", out, limits(s))}
	return resp, nil
}

func handleSource(_ *Conn, s *debug.Session, req *dbgp.Request) (*dbgp.Response, error) {
	text, err := s.Source(pathFromURI(req.Arg("f")))
	if err != nil {
		return nil, dbgp.WrapError(req.Name, dbgp.ErrCannotOpenFile, err)
	}
	begin, err := req.IntArg("b", 0)
	if err != nil {
		return nil, err
	}
	end, err := req.IntArg("e", 0)
	if err != nil {
		return nil, err
	}
	if begin > 0 || end > 0 {
		text = sourceLines(text, begin, end)
	}
	resp := newResponse(req)
	resp.Success = "1"
	resp.Encoding = "base64"
	resp.Value = dbgp.EncodeData(text)
	return resp, nil
}

// sourceLines returns lines begin through end (1-based, inclusive).
// Zero bounds are open.
func sourceLines(text string, begin, end int) string {
	lines := strings.SplitAfter(text, "\n")
	if begin < 1 {
		begin = 1
	}
	if end < 1 || end > len(lines) {
		end = len(lines)
	}
	if begin > end {
		return ""
	}
	return strings.Join(lines[begin-1:end], "")
}

// fileURI converts a script path to the file URI form clients expect.
func fileURI(path string) string {
	if path == "" || strings.Contains(path, "://") {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// pathFromURI converts a client file URI back to a local path.
func pathFromURI(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	return filepath.FromSlash(u.Path)
}

func (r *Registry) initPacket(s *debug.Session, prog debug.Program) *dbgp.Init {
	lang, _ := s.Feature(debug.FeatureLanguageName)
	return &dbgp.Init{
		XMLNS:           dbgp.Namespace,
		AppID:           r.cfg.AppID,
		IDEKey:          r.cfg.IDEKey,
		Session:         s.ID(),
		Thread:          strconv.Itoa(os.Getpid()),
		Language:        lang,
		ProtocolVersion: dbgp.ProtocolVersion,
		FileURI:         fileURI(prog.Source()),
		Engine:          &dbgp.Engine{Name: "debuggee", Version: "1.0"},
	}
}
