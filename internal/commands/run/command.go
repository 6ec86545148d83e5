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

// Package run implements the run command, which executes a script
// under a debugger.
package run

import (
	"github.com/spf13/cobra"

	"github.com/tombee/debuggee/internal/commands/completion"
	"github.com/tombee/debuggee/internal/config"
	"github.com/tombee/debuggee/internal/runner"
)

// options holds the run command flags.
type options struct {
	local       bool
	noDebug     bool
	breakpoints []string
	ideHost     string
	idePort     int
	ideKey      string
	render      string
	maxData     int
	maxChildren int
	maxDepth    int
}

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "run <script.ds>",
		Short: "Run a script under the debugger",
		Annotations: map[string]string{
			"group": "execution",
		},
		Long: `Run executes a script and attaches it to a debugger.

Debug Modes:
  (default)     Connect to a DBGp client (an IDE) listening on --ide-host:--ide-port.
                The script pauses before its first statement until the client
                sends a continuation command.
  --local       Drive the session from an interactive console on this terminal.
  --no-debug    Run the script without a debugger.

Breakpoints:
  --break file:line sets a line breakpoint before the script starts. Repeat the
  flag for several breakpoints. A bare line number refers to the script itself.

Settings are read from ~/.config/debuggee/config.yaml and DEBUGGEE_* environment
variables. Flags take precedence over both.`,
		Example: `  debuggee run orders.ds
  debuggee run --local --break 12 orders.ds
  debuggee run --ide-port 9000 --idekey vim orders.ds
  debuggee run --no-debug orders.ds`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteScriptFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.local, "local", false, "Debug from the interactive console instead of an IDE")
	cmd.Flags().BoolVar(&opts.noDebug, "no-debug", false, "Run without a debugger")
	cmd.Flags().StringArrayVarP(&opts.breakpoints, "break", "b", nil, "Set a line breakpoint (file:line or line, repeatable)")
	cmd.Flags().StringVar(&opts.ideHost, "ide-host", "", "Host of the DBGp client (default from config: 127.0.0.1)")
	cmd.Flags().IntVar(&opts.idePort, "ide-port", 0, "Port of the DBGp client (default from config: 9003)")
	cmd.Flags().StringVar(&opts.ideKey, "idekey", "", "IDE key sent in the init packet")
	cmd.Flags().StringVar(&opts.render, "render", "", "Format for evaluated values (json, json-pretty, yaml)")
	cmd.Flags().IntVar(&opts.maxData, "max-data", 0, "Maximum bytes of a property value sent to the client")
	cmd.Flags().IntVar(&opts.maxChildren, "max-children", 0, "Maximum children of a property sent to the client")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "Maximum depth of nested properties sent to the client")

	cmd.MarkFlagsMutuallyExclusive("local", "no-debug")

	return cmd
}

// mode returns the debug mode selected by the flags.
func (o options) mode() runner.Mode {
	switch {
	case o.noDebug:
		return runner.ModeNone
	case o.local:
		return runner.ModeLocal
	}
	return runner.ModeIDE
}

// apply overrides cfg with the flags that were set.
func (o options) apply(cfg *config.Config) {
	if o.ideHost != "" {
		cfg.IDE.Host = o.ideHost
	}
	if o.idePort != 0 {
		cfg.IDE.Port = o.idePort
	}
	if o.ideKey != "" {
		cfg.IDE.IDEKey = o.ideKey
	}
	if o.render != "" {
		cfg.Engine.RenderFormat = o.render
	}
	if o.maxData != 0 {
		cfg.Engine.MaxData = o.maxData
	}
	if o.maxChildren != 0 {
		cfg.Engine.MaxChildren = o.maxChildren
	}
	if o.maxDepth != 0 {
		cfg.Engine.MaxDepth = o.maxDepth
	}
}
