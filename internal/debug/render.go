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

package debug

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Renderer turns an evaluation result into text for the client.
type Renderer interface {
	Render(value any) (string, error)
}

// JSONRenderer renders values as compact JSON.
type JSONRenderer struct {
	// Indent pretty-prints the output when set.
	Indent bool
}

// Render implements Renderer.
func (r JSONRenderer) Render(value any) (string, error) {
	var (
		out []byte
		err error
	)
	if r.Indent {
		out, err = json.MarshalIndent(value, "", "  ")
	} else {
		out, err = json.Marshal(value)
	}
	if err != nil {
		return "", fmt.Errorf("failed to format value: %w", err)
	}
	return string(out), nil
}

// YAMLRenderer renders values as YAML documents.
type YAMLRenderer struct{}

// Render implements Renderer.
func (YAMLRenderer) Render(value any) (string, error) {
	out, err := yaml.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to format value: %w", err)
	}
	return strings.TrimSuffix(string(out), "\n"), nil
}

// RendererFor returns the renderer registered under name.
func RendererFor(name string) (Renderer, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return JSONRenderer{}, nil
	case "json-pretty":
		return JSONRenderer{Indent: true}, nil
	case "yaml":
		return YAMLRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown render format %q", name)
	}
}
