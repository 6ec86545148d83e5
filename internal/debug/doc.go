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

// Package debug implements the debugging engine embedded in the script
// interpreter.
//
// A Session is the rendezvous point between two goroutines. The
// interpreter goroutine calls the Joint hooks around every expression
// it evaluates and blocks inside PausePoint while the program is
// paused. The transport goroutine decodes client requests and hands
// continuation commands to Session.Continuation, which never blocks.
//
// # Commands
//
// A Command moves through starting, running, break and stopped.
// Stopped is terminal. Commands that arrive while another one is in
// control are queued and served newest first. Done is closed the first
// time a command reaches break or stopped, which is when a client gets
// its response.
//
// # Breakpoints
//
// Line breakpoints are kept per session and guarded by the session
// lock. A breakpoint arms once per arrival at its line, so nested
// expressions on the same line do not pause repeatedly.
//
// # Example Usage
//
//	s := debug.NewSession(debug.WithLogger(logger))
//	if err := s.Attach(program); err != nil {
//		return err
//	}
//
//	// Console client on the terminal
//	go debug.NewShell(s, os.Stdin, os.Stdout).Run(ctx)
//
//	// Interpreter with the session as its joint
//	err := interp.Run(ctx, s)
package debug
