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

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/debuggee/internal/debug"
)

// Span attribute keys.
const (
	ScriptKey   = "debuggee.script"
	SessionKey  = "debuggee.session_id"
	ModeKey     = "debuggee.mode"
	OutcomeKey  = "debuggee.outcome"
	CommandKey  = "debuggee.command"
	ReasonKey   = "debuggee.reason"
	FileKey     = "debuggee.file"
	LineKey     = "debuggee.line"
	DepthKey    = "debuggee.depth"
	spanTypeKey = "span.type"
	spanTypeRun = "script.run"
)

// RunSpan wraps the root span of one script run.
type RunSpan struct {
	span trace.Span
}

// StartRun creates the root span for a script run.
func StartRun(ctx context.Context, tracer trace.Tracer, script, mode string) (context.Context, *RunSpan) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("script.run: %s", script),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(ScriptKey, script),
			attribute.String(ModeKey, mode),
			attribute.String(spanTypeKey, spanTypeRun),
		),
	)
	return ctx, &RunSpan{span: span}
}

// SetSession records the debug session the run is attached to.
func (r *RunSpan) SetSession(id string) {
	if r == nil || r.span == nil {
		return
	}
	r.span.SetAttributes(attribute.String(SessionKey, id))
}

// RecordEvent adds a session event to the span.
func (r *RunSpan) RecordEvent(ev *debug.Event) {
	if r == nil || r.span == nil || ev == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Int(DepthKey, ev.Depth),
	}
	if ev.Type == debug.EventPaused || ev.Type == debug.EventResumed || ev.Type == debug.EventStopped {
		attrs = append(attrs, attribute.String(CommandKey, ev.Command.String()))
	}
	if ev.Reason != "" {
		attrs = append(attrs, attribute.String(ReasonKey, ev.Reason))
	}
	if ev.File != "" {
		attrs = append(attrs, attribute.String(FileKey, ev.File), attribute.Int(LineKey, ev.Line))
	}
	r.span.AddEvent("session."+string(ev.Type),
		trace.WithTimestamp(ev.Timestamp),
		trace.WithAttributes(attrs...))
}

// End completes the span with the run outcome.
func (r *RunSpan) End(outcome string, err error) {
	if r == nil || r.span == nil {
		return
	}
	r.span.SetAttributes(attribute.String(OutcomeKey, outcome))
	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
	} else {
		r.span.SetStatus(codes.Ok, "")
	}
	r.span.End()
}

// TraceID returns the trace ID as a string.
func (r *RunSpan) TraceID() string {
	if r == nil || r.span == nil {
		return ""
	}
	return r.span.SpanContext().TraceID().String()
}
