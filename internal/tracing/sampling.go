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
	"slices"
	"strings"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// SamplerConfig decides which runs are traced.
type SamplerConfig struct {
	// Rate is the fraction of runs sampled, 0 through 1. Values of 1 or
	// more sample everything.
	Rate float64

	// KeepModes lists run modes ("ide", "local", "none") that are always
	// sampled whatever Rate says. Runs that had a debugger attached are
	// rare and worth keeping.
	KeepModes []string
}

// NewSampler builds the root sampler. Child spans follow their parent.
func NewSampler(cfg SamplerConfig) sdktrace.Sampler {
	var base sdktrace.Sampler
	switch {
	case cfg.Rate >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case cfg.Rate <= 0:
		base = sdktrace.NeverSample()
	default:
		base = sdktrace.TraceIDRatioBased(cfg.Rate)
	}
	if len(cfg.KeepModes) > 0 {
		base = &modeSampler{base: base, keep: cfg.KeepModes}
	}
	return sdktrace.ParentBased(base)
}

// modeSampler samples a root span when its ModeKey attribute is one of
// keep, and defers to base otherwise.
type modeSampler struct {
	base sdktrace.Sampler
	keep []string
}

func (s *modeSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, kv := range p.Attributes {
		if string(kv.Key) == ModeKey && slices.Contains(s.keep, kv.Value.AsString()) {
			return sdktrace.SamplingResult{
				Decision:   sdktrace.RecordAndSample,
				Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
			}
		}
	}
	return s.base.ShouldSample(p)
}

func (s *modeSampler) Description() string {
	return "ModeSampler{keep=" + strings.Join(s.keep, ",") + ",base=" + s.base.Description() + "}"
}
