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

package dbgp

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name string
		line string
		want *Request
		code int
	}{
		{
			name: "simple",
			line: "run -i 1",
			want: &Request{Name: "run", TransactionID: 1, Args: map[string]string{}},
		},
		{
			name: "options",
			line: "breakpoint_set -i 4 -t line -f file:///tmp/a.ds -n 12",
			want: &Request{Name: "breakpoint_set", TransactionID: 4, Args: map[string]string{
				"t": "line", "f": "file:///tmp/a.ds", "n": "12",
			}},
		},
		{
			name: "quoted value",
			line: `property_get -i 2 -n "my var"`,
			want: &Request{Name: "property_get", TransactionID: 2, Args: map[string]string{"n": "my var"}},
		},
		{
			name: "flag without value",
			line: "stack_get -i 3 -d",
			want: &Request{Name: "stack_get", TransactionID: 3, Args: map[string]string{"d": ""}},
		},
		{
			name: "data",
			line: "eval -i 5 -- YSArIDE=",
			want: &Request{Name: "eval", TransactionID: 5, Args: map[string]string{}, Data: "a + 1"},
		},
		{name: "empty", line: "  ", code: ErrParse},
		{name: "unbalanced quote", line: `eval -i 1 -n "x`, code: ErrParse},
		{name: "missing transaction", line: "run", code: ErrInvalidOptions},
		{name: "bad transaction", line: "run -i x", code: ErrInvalidOptions},
		{name: "stray token", line: "run -i 1 oops", code: ErrInvalidOptions},
		{name: "bad data", line: "eval -i 1 -- !!!", code: ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequest(tt.line)
			if tt.code != 0 {
				var pe *dbgerrors.ProtocolError
				require.True(t, errors.As(err, &pe), "got %v", err)
				assert.Equal(t, tt.code, pe.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequest_IntArg(t *testing.T) {
	req, err := ParseRequest("stack_get -i 1 -d 2 -c x")
	require.NoError(t, err)

	n, err := req.IntArg("d", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = req.IntArg("m", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = req.IntArg("c", 0)
	var pe *dbgerrors.ProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrInvalidOptions, pe.Code)
	assert.Equal(t, "stack_get", pe.Command)
}

func TestRequest_EncodeParses(t *testing.T) {
	req := &Request{
		Name:          "breakpoint_set",
		TransactionID: 9,
		Args:          map[string]string{"f": "file:///tmp/with space.ds", "n": "3"},
		Data:          "x > 1",
	}
	raw := req.Encode()
	require.Equal(t, byte(0), raw[len(raw)-1])

	got, err := ParseRequest(string(raw[:len(raw)-1]))
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestReader_Next(t *testing.T) {
	r := NewReader(strings.NewReader("run -i 1\x00status -i 2\x00partial"))

	line, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "run -i 1", line)

	line, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "status -i 2", line)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_LongCommand(t *testing.T) {
	data := strings.Repeat("A", 10000)
	r := NewReader(strings.NewReader("eval -i 1 -- " + data + "\x00"))
	line, err := r.Next()
	require.NoError(t, err)
	assert.Len(t, line, len("eval -i 1 -- ")+len(data))
}
