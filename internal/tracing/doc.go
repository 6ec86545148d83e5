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

// Package tracing records script runs and debugger activity as
// OpenTelemetry spans.
//
// Each run gets a root span. Session events (pauses, resumes, stops)
// become span events, so a trace shows where the program waited on the
// client and for how long. Spans are written to a console exporter when
// enabled, and otherwise dropped by a no-op tracer.
package tracing
