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

package tracing

import "io"

// Config controls whether runs are traced and where spans go.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Writer receives exported spans. Nil means stderr.
	Writer      io.Writer
	PrettyPrint bool

	Sampling SamplerConfig
}

// DefaultConfig has tracing off. When it is turned on every run is kept.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "debuggee",
		ServiceVersion: "dev",
		PrettyPrint:    true,
		Sampling:       SamplerConfig{Rate: 1},
	}
}
