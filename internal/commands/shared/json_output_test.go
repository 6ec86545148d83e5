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

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/debuggee/internal/script"
	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

func TestNewJSONError(t *testing.T) {
	t.Run("plain error keeps fallback code", func(t *testing.T) {
		je := NewJSONError("read_failed", errors.New("no such file"))
		assert.Equal(t, "read_failed", je.Code)
		assert.Nil(t, je.Location)
	})

	t.Run("classified error reports its category", func(t *testing.T) {
		je := NewJSONError("x", &dbgerrors.ConnectionError{Addr: "127.0.0.1:9003"})
		assert.Equal(t, "connection", je.Code)
	})

	t.Run("script error carries location", func(t *testing.T) {
		err := fmt.Errorf("loading: %w", &script.Error{File: "main.ds", Line: 7, Msg: "unexpected ')'"})
		je := NewJSONError("x", err)
		assert.Equal(t, "script", je.Code)
		require.NotNil(t, je.Location)
		assert.Equal(t, JSONLocation{File: "main.ds", Line: 7}, *je.Location)
	})
}

func TestEmitJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EmitJSON(&buf, NewResponse("check", false)))
	assert.JSONEq(t, `{"@version":"1.0","command":"check","success":false}`, buf.String())
	assert.Contains(t, buf.String(), "\n  \"command\"")
}
