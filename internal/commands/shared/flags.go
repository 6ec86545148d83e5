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

package shared

import "github.com/spf13/pflag"

// GlobalFlags holds the persistent flags of the root command.
type GlobalFlags struct {
	Verbose    bool
	Quiet      bool
	JSON       bool
	ConfigPath string
}

// BuildInfo is set from ldflags in main.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var (
	globals GlobalFlags
	build   = BuildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
)

// RegisterGlobalFlags binds the global flags to fs.
func RegisterGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&globals.Verbose, "verbose", "v", false, "Enable debug logging")
	fs.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress non-error output")
	fs.BoolVar(&globals.JSON, "json", false, "Output in JSON format")
	fs.StringVar(&globals.ConfigPath, "config", "", "Config file (default: ./.debuggee.yaml, then ~/.config/debuggee/config.yaml)")
}

// ResetGlobalFlags clears flag values between test commands.
func ResetGlobalFlags() {
	globals = GlobalFlags{}
}

// SetVersion sets the build information.
func SetVersion(v, c, b string) {
	build = BuildInfo{Version: v, Commit: c, BuildDate: b}
}

// GetVersion returns version, commit and build date.
func GetVersion() (string, string, string) {
	return build.Version, build.Commit, build.BuildDate
}

// Accessors for the global flag values.
func GetVerbose() bool      { return globals.Verbose }
func GetQuiet() bool        { return globals.Quiet }
func GetJSON() bool         { return globals.JSON }
func GetConfigPath() string { return globals.ConfigPath }
