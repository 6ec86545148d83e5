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

// Package cli assembles the debuggee command tree and runs it.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/tombee/debuggee/internal/commands/check"
	"github.com/tombee/debuggee/internal/commands/completion"
	"github.com/tombee/debuggee/internal/commands/examples"
	"github.com/tombee/debuggee/internal/commands/run"
	"github.com/tombee/debuggee/internal/commands/shared"
	"github.com/tombee/debuggee/internal/commands/version"
)

// Help groups, keyed by the "group" annotation each command carries.
var groups = []*cobra.Group{
	{ID: "execution", Title: "Running scripts:"},
	{ID: "setup", Title: "Setup:"},
}

// NewRootCommand returns the bare root command with global flags and help
// groups but no subcommands.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "debuggee",
		Short: "Run dscript programs under a DBGp debugger",
		Long: `debuggee runs dscript (.ds) programs under an embedded debugging engine.

A script connects out to a DBGp client such as VS Code, PhpStorm or
vim-vdebug (127.0.0.1:9003 unless configured) and waits for it before the
first line runs. Pass --local to debug from this terminal, or --no-debug
to just run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddGroup(groups...)

	shared.RegisterGlobalFlags(root.PersistentFlags())
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")
	return root
}

// AddCommands attaches cmds to root. A command whose "group" annotation
// names a known group is listed under it in help.
func AddCommands(root *cobra.Command, cmds ...*cobra.Command) {
	for _, c := range cmds {
		if g := c.Annotations["group"]; g != "" && root.ContainsGroup(g) {
			c.GroupID = g
		}
		root.AddCommand(c)
	}
}

// New builds the full debuggee command tree.
func New() *cobra.Command {
	root := NewRootCommand()
	AddCommands(root,
		run.NewCommand(),
		check.NewCommand(),
		examples.NewCommand(),
		completion.NewCommand(),
		version.NewVersionCommand(),
	)
	root.SetHelpCommand(NewHelpCommand(root))
	root.SetHelpCommandGroupID("setup")
	return root
}

// Execute runs the command line in args and returns the process exit
// code. Errors are reported on stderr.
func Execute(ctx context.Context, args []string, stderr io.Writer, build shared.BuildInfo) int {
	shared.SetVersion(build.Version, build.Commit, build.BuildDate)

	root := New()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		return shared.PrintExitError(stderr, err)
	}
	return shared.ExitSuccess
}
