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

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	logger.Info("paused", slog.String(FileKey, "main.ds"), slog.Int(LineKey, 4))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "paused", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "main.ds", entry[FileKey])
	assert.EqualValues(t, 4, entry[LineKey])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatText, Output: &buf})

	logger.Info("attached", slog.String(SessionIDKey, "abc"))

	out := buf.String()
	assert.Contains(t, out, "msg=attached")
	assert.Contains(t, out, "session_id=abc")
}

func TestNilConfig(t *testing.T) {
	logger := New(nil)
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelInfo))
	assert.False(t, logger.Enabled(t.Context(), slog.LevelDebug))
}

func TestZeroConfig(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Output: &buf})
	logger.Info("ready")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.False(t, logger.Enabled(t.Context(), slog.LevelDebug))
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("Trace"))
	assert.True(t, ValidLevel(" warning "))
	assert.False(t, ValidLevel("verbose"))
	assert.False(t, ValidLevel(""))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"trace":   LevelTrace,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestLogLevel_Filtering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "warn", Format: FormatJSON, Output: &buf})

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer

	Trace(New(&Config{Level: "debug", Output: &buf}), "hook", String(CommandKey, "run"))
	assert.Empty(t, buf.String())

	Trace(New(&Config{Level: "trace", Output: &buf}), "hook", String(CommandKey, "run"))
	entry := decodeLine(t, &buf)
	assert.Equal(t, "hook", entry["msg"])
	assert.Equal(t, "TRACE", entry["level"])
	assert.Equal(t, "run", entry[CommandKey])
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: "info", Output: &buf})

	logger := WithSession(WithComponent(base, "connector"), "s-1")
	logger.Info("breakpoint hit", String(FileKey, "lib.ds"), Int(LineKey, 12))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "connector", entry["component"])
	assert.Equal(t, "s-1", entry[SessionIDKey])
	assert.Equal(t, "lib.ds", entry[FileKey])
	assert.EqualValues(t, 12, entry[LineKey])
}

func TestAttrHelpers(t *testing.T) {
	assert.Equal(t, slog.String("k", "v"), String("k", "v"))
	assert.Equal(t, slog.Int("n", 3), Int("n", 3))

	err := errors.New("boom")
	attr := Error(err)
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
}

func TestAddSource(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Output: &buf, AddSource: true})
	logger.Info("with source")

	entry := decodeLine(t, &buf)
	assert.Contains(t, entry, slog.SourceKey)
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(t.Context(), slog.LevelError))
}

func TestLogCommandAndResponse(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "debug", Output: &buf})

	cmd := &ProtocolCommand{
		Name:          "breakpoint_set",
		TransactionID: 7,
		RemoteAddr:    "127.0.0.1:9000",
		Args:          map[string]string{"n": "3"},
	}

	LogCommand(logger, cmd)
	entry := decodeLine(t, &buf)
	assert.Equal(t, "command_received", entry[EventKey])
	assert.Equal(t, "breakpoint_set", entry[CommandKey])
	assert.EqualValues(t, 7, entry[TransactionIDKey])
	assert.Equal(t, "3", entry["arg_n"])

	buf.Reset()
	LogResponse(logger, cmd, &ProtocolResponse{ErrorCode: 200, Error: "breakpoint could not be set"})
	entry = decodeLine(t, &buf)
	assert.Equal(t, "WARN", entry["level"])
	assert.EqualValues(t, 200, entry["error_code"])

	buf.Reset()
	LogResponse(logger, cmd, &ProtocolResponse{Status: "break"})
	entry = decodeLine(t, &buf)
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "break", entry[StatusKey])
}
