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

// Package completion generates shell completion scripts and completes
// .ds paths for commands that take a script.
package completion

import (
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

type generator func(root *cobra.Command, w io.Writer, descriptions bool) error

var generators = map[string]generator{
	"bash": func(root *cobra.Command, w io.Writer, desc bool) error {
		return root.GenBashCompletionV2(w, desc)
	},
	"zsh": func(root *cobra.Command, w io.Writer, desc bool) error {
		if desc {
			return root.GenZshCompletion(w)
		}
		return root.GenZshCompletionNoDesc(w)
	},
	"fish": func(root *cobra.Command, w io.Writer, desc bool) error {
		return root.GenFishCompletion(w, desc)
	},
	"powershell": func(root *cobra.Command, w io.Writer, desc bool) error {
		if desc {
			return root.GenPowerShellCompletionWithDesc(w)
		}
		return root.GenPowerShellCompletion(w)
	},
}

// Shells lists the supported shells in sorted order.
func Shells() []string {
	return slices.Sorted(maps.Keys(generators))
}

// NewCommand creates the completion command.
func NewCommand() *cobra.Command {
	var noDesc bool

	cmd := &cobra.Command{
		Use:         "completion <shell>",
		Annotations: map[string]string{"group": "setup"},
		Short:       "Print a shell completion script",
		Long: `Print a completion script for bash, zsh, fish or powershell.

Load it for the current shell session, for example:

  source <(debuggee completion bash)
  debuggee completion fish | source

or write it where your shell looks for completions:

  debuggee completion zsh > "${fpath[1]}/_debuggee"`,
		DisableFlagsInUseLine: true,
		ValidArgs:             Shells(),
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generators[args[0]](cmd.Root(), cmd.OutOrStdout(), !noDesc)
		},
	}
	cmd.Flags().BoolVar(&noDesc, "no-descriptions", false, "Omit completion descriptions")
	return cmd
}
