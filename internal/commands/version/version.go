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

package version

import (
	"fmt"
	"runtime"
	rtdebug "runtime/debug"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/debuggee/internal/commands/shared"
	"github.com/tombee/debuggee/internal/dbgp"
)

// VersionInfo is the --json output of version.
type VersionInfo struct {
	shared.JSONResponse
	Version         string `json:"version"`
	Commit          string `json:"commit"`
	BuildDate       string `json:"build_date"`
	ProtocolVersion string `json:"protocol_version"`
	GoVersion       string `json:"go_version"`
	Platform        string `json:"platform"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:         "version",
		Annotations: map[string]string{"group": "setup"},
		Short:       "Show version information",
		Long:        `Print the debuggee build and the DBGp protocol version it speaks.`,
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := collect()
			switch {
			case shared.GetJSON():
				return shared.EmitJSON(cmd.OutOrStdout(), info)
			case short:
				_, err := fmt.Fprintln(cmd.OutOrStdout(), info.Version)
				return err
			}
			return printInfo(cmd, info)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}

// collect gathers build metadata. Binaries installed with go install carry
// no ldflags, so their module version and VCS revision stand in.
func collect() VersionInfo {
	v, commit, date := shared.GetVersion()
	if bi, ok := rtdebug.ReadBuildInfo(); ok {
		if v == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && commit == "unknown":
				commit = s.Value
			case s.Key == "vcs.time" && date == "unknown":
				date = s.Value
			}
		}
	}
	return VersionInfo{
		JSONResponse:    shared.NewResponse("version", true),
		Version:         v,
		Commit:          commit,
		BuildDate:       date,
		ProtocolVersion: dbgp.ProtocolVersion,
		GoVersion:       runtime.Version(),
		Platform:        runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func printInfo(cmd *cobra.Command, info VersionInfo) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "debuggee %s\n", info.Version)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, row := range [][2]string{
		{"commit", info.Commit},
		{"built", info.BuildDate},
		{"dbgp", info.ProtocolVersion},
		{"go", info.GoVersion},
		{"platform", info.Platform},
	} {
		fmt.Fprintf(tw, "  %s:\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}
