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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/debuggee/internal/commands/shared"
)

// HelpResponse is the --json form of help. Commands lists every visible
// subcommand; Detail is set instead when help was asked for one command.
type HelpResponse struct {
	shared.JSONResponse
	Commands    []CommandMetadata `json:"commands,omitempty"`
	Detail      *CommandMetadata  `json:"detail,omitempty"`
	GlobalFlags []FlagMetadata    `json:"global_flags,omitempty"`
}

type CommandMetadata struct {
	Name        string         `json:"name"`
	Group       string         `json:"group,omitempty"`
	Short       string         `json:"short"`
	Long        string         `json:"long,omitempty"`
	Usage       string         `json:"usage"`
	Aliases     []string       `json:"aliases,omitempty"`
	Flags       []FlagMetadata `json:"flags,omitempty"`
	Subcommands []string       `json:"subcommands,omitempty"`
}

type FlagMetadata struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
}

// NewHelpCommand replaces cobra's help so that --json works for it too.
func NewHelpCommand(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long:  "Show help for debuggee or one of its commands. With --json the help is printed as a document for editor integrations.",
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			var names []string
			for _, c := range root.Commands() {
				if c.IsAvailableCommand() {
					names = append(names, c.Name()+"\t"+c.Short)
				}
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := root
			if len(args) > 0 {
				found, _, err := root.Find(args)
				if err != nil || found == root {
					return fmt.Errorf("unknown command %q for \"debuggee\"", args[0])
				}
				target = found
			}
			if !shared.GetJSON() {
				return target.Help()
			}
			return shared.EmitJSON(cmd.OutOrStdout(), describe(root, target))
		},
	}
}

func describe(root, target *cobra.Command) HelpResponse {
	resp := HelpResponse{
		JSONResponse: shared.NewResponse("help", true),
		GlobalFlags:  flagMetadata(root.PersistentFlags()),
	}
	if target != root {
		meta := commandMetadata(target)
		resp.Detail = &meta
		resp.Command = "help " + target.Name()
		return resp
	}
	for _, c := range root.Commands() {
		if c.IsAvailableCommand() {
			resp.Commands = append(resp.Commands, commandMetadata(c))
		}
	}
	return resp
}

func commandMetadata(c *cobra.Command) CommandMetadata {
	meta := CommandMetadata{
		Name:    c.Name(),
		Group:   c.GroupID,
		Short:   c.Short,
		Long:    c.Long,
		Usage:   c.UseLine(),
		Aliases: c.Aliases,
		Flags:   flagMetadata(c.LocalNonPersistentFlags()),
	}
	for _, sub := range c.Commands() {
		if sub.IsAvailableCommand() {
			meta.Subcommands = append(meta.Subcommands, sub.Name())
		}
	}
	return meta
}

func flagMetadata(fs *pflag.FlagSet) []FlagMetadata {
	var out []FlagMetadata
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		out = append(out, FlagMetadata{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Usage:     f.Usage,
			Default:   f.DefValue,
		})
	})
	return out
}
