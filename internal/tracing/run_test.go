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
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/debuggee/internal/debug"
)

func newTestProvider(t *testing.T) (*Provider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider, err := NewProvider(DefaultConfig(), sdktrace.WithSyncer(exporter))
	require.NoError(t, err)
	t.Cleanup(func() { provider.Shutdown(context.Background()) })
	return provider, exporter
}

func attr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestRunSpan_Events(t *testing.T) {
	provider, exporter := newTestProvider(t)

	_, span := StartRun(context.Background(), provider.Tracer(), "main.ds", "ide")
	span.SetSession("abc")
	span.RecordEvent(&debug.Event{
		Type:      debug.EventPaused,
		Command:   debug.KindStepOver,
		Reason:    "step",
		File:      "main.ds",
		Line:      4,
		Depth:     2,
		Timestamp: time.Now(),
	})
	span.RecordEvent(&debug.Event{Type: debug.EventCompleted, Timestamp: time.Now()})
	span.End("ok", nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "script.run: main.ds", got.Name)
	assert.Equal(t, codes.Ok, got.Status.Code)

	v, ok := attr(got.Attributes, SessionKey)
	require.True(t, ok)
	assert.Equal(t, "abc", v.AsString())
	v, ok = attr(got.Attributes, OutcomeKey)
	require.True(t, ok)
	assert.Equal(t, "ok", v.AsString())

	require.Len(t, got.Events, 2)
	assert.Equal(t, "session.paused", got.Events[0].Name)
	v, ok = attr(got.Events[0].Attributes, CommandKey)
	require.True(t, ok)
	assert.Equal(t, "step_over", v.AsString())
	v, ok = attr(got.Events[0].Attributes, LineKey)
	require.True(t, ok)
	assert.Equal(t, int64(4), v.AsInt64())
	assert.Equal(t, "session.completed", got.Events[1].Name)
}

func TestRunSpan_Error(t *testing.T) {
	provider, exporter := newTestProvider(t)

	_, span := StartRun(context.Background(), provider.Tracer(), "main.ds", "local")
	span.End("error", errors.New("boom"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
}

func TestRunSpan_NilSafe(t *testing.T) {
	var span *RunSpan
	span.SetSession("x")
	span.RecordEvent(&debug.Event{Type: debug.EventPaused})
	span.End("ok", nil)
	assert.Equal(t, "", span.TraceID())
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(DefaultConfig())
	require.NoError(t, err)
	_, span := StartRun(context.Background(), provider.Tracer(), "main.ds", "ide")
	assert.False(t, span.span.SpanContext().IsValid())
	span.End("ok", nil)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_Console(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Writer = &buf
	cfg.PrettyPrint = false

	provider, err := NewProvider(cfg)
	require.NoError(t, err)
	_, span := StartRun(context.Background(), provider.Tracer(), "main.ds", "ide")
	span.End("ok", nil)
	require.NoError(t, provider.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "script.run: main.ds")
}

func TestNewSampler(t *testing.T) {
	root := func(attrs ...attribute.KeyValue) sdktrace.SamplingParameters {
		return sdktrace.SamplingParameters{ParentContext: context.Background(), Attributes: attrs}
	}

	all := NewSampler(SamplerConfig{Rate: 1})
	assert.Equal(t, sdktrace.RecordAndSample, all.ShouldSample(root()).Decision)

	none := NewSampler(SamplerConfig{})
	assert.Equal(t, sdktrace.Drop, none.ShouldSample(root()).Decision)

	s := NewSampler(SamplerConfig{Rate: 0, KeepModes: []string{"ide"}})
	assert.Equal(t, sdktrace.RecordAndSample, s.ShouldSample(root(attribute.String(ModeKey, "ide"))).Decision)
	assert.Equal(t, sdktrace.Drop, s.ShouldSample(root(attribute.String(ModeKey, "none"))).Decision)
	assert.Contains(t, s.Description(), "ModeSampler{keep=ide")
}
