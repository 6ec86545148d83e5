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

// Package examples implements the examples command.
package examples

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/debuggee/internal/commands/shared"
	"github.com/tombee/debuggee/internal/examples"
)

// NewCommand creates the examples command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use: "examples",
		Annotations: map[string]string{
			"group": "setup",
		},
		Short: "Browse and copy example scripts",
		Long: `Browse and copy the example scripts embedded in debuggee.

Copy one out and run it under your IDE to try the debugger:

  debuggee examples copy fib
  debuggee run fib.ds`,
		Args: cobra.NoArgs,
		RunE: runList,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List example scripts",
		Args:  cobra.NoArgs,
		RunE:  runList,
	})
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newCopyCmd())

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	list, err := examples.List()
	if err != nil {
		return err
	}
	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), list)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, ex := range list {
		fmt.Fprintf(w, "%s\t%s\n", ex.Name, ex.Description)
	}
	return w.Flush()
}

func completeNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}
	list, err := examples.List()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	names := make([]string, 0, len(list))
	for _, ex := range list {
		names = append(names, ex.Name+"\t"+ex.Description)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "show <name>",
		Short:             "Print an example script",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := examples.Get(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	}
}

func newCopyCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "copy <name> [dest]",
		Short: "Copy an example script to disk",
		Long: `Copy an example script to dest, which defaults to <name>.ds in the
current directory. A directory dest receives <name>.ds inside it.`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completeNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			dest := name + examples.Ext
			if len(args) == 2 {
				dest = args[1]
				if filepath.Ext(dest) != examples.Ext {
					dest = filepath.Join(dest, name+examples.Ext)
				}
			}
			if err := examples.CopyTo(name, dest, force); err != nil {
				return err
			}
			if !shared.GetQuiet() {
				cmd.Printf("Copied %s to %s\n", name, dest)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
