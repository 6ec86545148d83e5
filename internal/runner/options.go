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

package runner

import (
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/debuggee/internal/connector"
	"github.com/tombee/debuggee/internal/lifecycle"
)

// Option configures a Runner.
type Option func(*Runner)

// WithRegistry sets the registry used for IDE sessions.
func WithRegistry(reg *connector.Registry) Option {
	return func(r *Runner) {
		r.registry = reg
	}
}

// WithNotifier sets the shutdown notifier runs subscribe to.
func WithNotifier(n *lifecycle.Notifier) Option {
	return func(r *Runner) {
		r.notifier = n
	}
}

// WithTracer sets the tracer for run spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithConsole sets the console input and the output shared by the
// console and the script's print statements.
func WithConsole(in io.Reader, out io.Writer) Option {
	return func(r *Runner) {
		r.input = in
		r.output = out
	}
}
