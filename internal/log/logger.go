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
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the handler New builds.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// LevelTrace sits below Debug. Hook calls and raw DBGp frames log here.
const LevelTrace = slog.Level(-8)

// Field keys shared by every package that logs.
const (
	SessionIDKey     = "session_id"
	CommandKey       = "command"
	TransactionIDKey = "transaction_id"
	StatusKey        = "status"
	FileKey          = "file"
	LineKey          = "line"
	DurationKey      = "duration_ms"
	EventKey         = "event"
)

var levelNames = map[string]slog.Level{
	"trace":   LevelTrace,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Config describes a logger. The zero value logs info and above as JSON
// to stderr.
type Config struct {
	Level     string
	Format    Format
	Output    io.Writer
	AddSource bool
}

// New builds a logger from cfg. A nil cfg is the zero Config.
func New(cfg *Config) *slog.Logger {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:       ParseLevel(c.Level),
		AddSource:   c.AddSource,
		ReplaceAttr: renameTrace,
	}
	if c.Format == FormatText {
		return slog.New(slog.NewTextHandler(c.Output, opts))
	}
	return slog.New(slog.NewJSONHandler(c.Output, opts))
}

// renameTrace prints LevelTrace as TRACE instead of slog's "DEBUG-4".
func renameTrace(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// ValidLevel reports whether ParseLevel knows the name.
func ValidLevel(level string) bool {
	_, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]
	return ok
}

func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With(slog.String(SessionIDKey, sessionID))
}

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

// Error is the conventional "error" attribute.
func Error(err error) slog.Attr { return slog.Any("error", err) }

// Trace logs at LevelTrace. The level check runs first so callers can pass
// attributes that are costly to build only when tracing is on.
func Trace(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	ctx := context.Background()
	if logger.Enabled(ctx, LevelTrace) {
		logger.LogAttrs(ctx, LevelTrace, msg, attrs...)
	}
}
