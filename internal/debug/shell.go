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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kballard/go-shellquote"
)

// errQuit ends the shell loop after the program stopped.
var errQuit = errors.New("quit")

// Shell is an interactive console client driving a Session over a
// terminal instead of a remote IDE.
type Shell struct {
	session *Session
	scanner *bufio.Scanner
	output  io.Writer

	location lipgloss.Style
	errStyle lipgloss.Style
	muted    lipgloss.Style
}

// NewShell creates a console bound to session.
func NewShell(session *Session, input io.Reader, output io.Writer) *Shell {
	r := lipgloss.NewRenderer(output)
	return &Shell{
		session:  session,
		scanner:  bufio.NewScanner(input),
		output:   output,
		location: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		errStyle: r.NewStyle().Foreground(lipgloss.Color("196")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// Run issues INIT and then reads commands until the program stops,
// input ends, or ctx is cancelled. End of input stops the program.
func (s *Shell) Run(ctx context.Context) error {
	initCmd := NewInitCommand(nil)
	s.session.Continuation(initCmd)
	if err := s.await(ctx, initCmd); err != nil {
		if errors.Is(err, errQuit) {
			return nil
		}
		return err
	}

	for {
		fmt.Fprint(s.output, "debug> ")
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return fmt.Errorf("input error: %w", err)
			}
			s.session.Continuation(NewCommand(KindStop))
			return nil
		}

		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		err := s.execute(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintln(s.output, s.errStyle.Render("Error: "+err.Error()))
		}
	}
}

// execute runs one console command.
func (s *Shell) execute(ctx context.Context, line string) error {
	args, err := shellquote.Split(line)
	if err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if len(args) == 0 {
		return nil
	}

	name, args := strings.ToLower(args[0]), args[1:]
	switch name {
	case "r", "run", "c", "continue":
		return s.resume(ctx, KindRun)
	case "s", "step":
		return s.resume(ctx, KindStepInto)
	case "n", "next":
		return s.resume(ctx, KindStepOver)
	case "o", "out":
		return s.resume(ctx, KindStepOut)
	case "q", "stop":
		return s.resume(ctx, KindStop)
	case "b", "break":
		return s.setBreakpoint(args)
	case "d", "delete":
		return s.deleteBreakpoint(args)
	case "bl", "breakpoints":
		s.listBreakpoints()
		return nil
	case "bt", "backtrace":
		s.backtrace()
		return nil
	case "v", "vars":
		return s.vars(args)
	case "p", "print":
		return s.print(args)
	case "e", "eval":
		return s.eval(strings.Join(args, " "))
	case "h", "help", "?":
		s.showHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", name)
	}
}

func (s *Shell) resume(ctx context.Context, kind Kind) error {
	cmd := NewCommand(kind)
	s.session.Continuation(cmd)
	return s.await(ctx, cmd)
}

// await blocks until cmd settles and reports where execution stands.
func (s *Shell) await(ctx context.Context, cmd *Command) error {
	select {
	case <-cmd.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	if cmd.Status() == StatusStopped {
		fmt.Fprintln(s.output, s.muted.Render("program stopped"))
		return errQuit
	}
	where := cmd.Where()
	fmt.Fprintln(s.output, s.location.Render(fmt.Sprintf("paused at %s:%d", where.File, where.Line)))
	return nil
}

func (s *Shell) setBreakpoint(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("break requires a location: file:line or line")
	}

	var (
		file string
		line int
		err  error
	)
	if n, convErr := strconv.Atoi(args[0]); convErr == nil {
		p := s.session.Program()
		if p == nil {
			return ErrNotPaused
		}
		file, line = p.Source(), n
	} else if file, line, err = ParseBreakpoint(args[0]); err != nil {
		return err
	}

	id, err := s.session.SetBreakpoint(&Breakpoint{File: file, Line: line, Enabled: true})
	if err != nil {
		return err
	}
	fmt.Fprintf(s.output, "breakpoint %d at %s:%d\n", id, file, line)
	return nil
}

func (s *Shell) deleteBreakpoint(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("delete requires a breakpoint id")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint id %q", args[0])
	}
	if _, err := s.session.RemoveBreakpoint(id); err != nil {
		return err
	}
	fmt.Fprintf(s.output, "deleted breakpoint %d\n", id)
	return nil
}

func (s *Shell) listBreakpoints() {
	bps := s.session.Breakpoints()
	if len(bps) == 0 {
		fmt.Fprintln(s.output, s.muted.Render("no breakpoints"))
		return
	}
	for _, bp := range bps {
		state := "enabled"
		if !bp.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(s.output, "  %d  %s:%d  %s  hits=%d\n", bp.ID, bp.File, bp.Line, state, bp.HitCount)
	}
}

func (s *Shell) backtrace() {
	for _, f := range s.session.Stack() {
		fmt.Fprintf(s.output, "  #%d  %s:%d  %s\n", f.Level, f.File, f.Line, f.Where)
	}
}

func (s *Shell) vars(args []string) error {
	scope := ScopeLocal
	if len(args) > 0 && strings.EqualFold(args[0], "global") {
		scope = ScopeGlobal
	}
	vars, err := s.session.Variables(0, scope)
	if err != nil {
		return err
	}
	if len(vars) == 0 {
		fmt.Fprintln(s.output, s.muted.Render("(no "+strings.ToLower(scope.String())+" variables)"))
		return nil
	}
	for _, v := range vars {
		fmt.Fprintf(s.output, "  %s = %v\n", v.Name, v.Value)
	}
	return nil
}

func (s *Shell) print(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("print requires a variable name")
	}
	value, err := s.session.Variable(0, args[0])
	if err != nil {
		return err
	}
	out, err := s.session.renderer.Render(value)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.output, "%s = %s\n", args[0], out)
	return nil
}

func (s *Shell) eval(text string) error {
	if text == "" {
		return fmt.Errorf("eval requires an expression")
	}
	out, err := s.session.Evaluate(text)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.output, out)
	return nil
}

// showHelp displays available commands.
func (s *Shell) showHelp() {
	help := `
Debug Commands:
  run, r, c          Resume until the next breakpoint or completion
  step, s            Step into the next expression
  next, n            Step over the current statement
  out, o             Step out of the current frame
  stop, q            Terminate the program
  break <loc>, b     Set a breakpoint at file:line or at a line of the main file
  delete <id>, d     Remove a breakpoint
  breakpoints, bl    List breakpoints
  backtrace, bt      Show the call stack
  vars [global], v   Show local or global variables
  print <name>, p    Show a variable, with an optional path like cart.items[0]
  eval <expr>, e     Evaluate an expression in the current frame
  help, h, ?         Show this help message
`
	fmt.Fprintln(s.output, help)
}
