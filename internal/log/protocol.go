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
	"log/slog"
)

// ProtocolCommand describes a decoded client command for logging purposes.
type ProtocolCommand struct {
	// Name is the protocol command (e.g., "step_over", "breakpoint_set").
	Name string

	// TransactionID is the client-assigned transaction id.
	TransactionID int

	// RemoteAddr is the address of the debugging client.
	RemoteAddr string

	// Args contains the decoded command options.
	Args map[string]string
}

// ProtocolResponse describes an outbound response for logging purposes.
type ProtocolResponse struct {
	// Status is the engine status reported with the response, if any.
	Status string

	// ErrorCode is the protocol error code, zero on success.
	ErrorCode int

	// Error is the error message if the command failed.
	Error string
}

// LogCommand logs an incoming protocol command.
func LogCommand(logger *slog.Logger, cmd *ProtocolCommand) {
	attrs := []any{
		EventKey, "command_received",
		CommandKey, cmd.Name,
		TransactionIDKey, cmd.TransactionID,
	}

	if cmd.RemoteAddr != "" {
		attrs = append(attrs, "remote", cmd.RemoteAddr)
	}

	for k, v := range cmd.Args {
		attrs = append(attrs, "arg_"+k, v)
	}

	logger.Debug("protocol command received", attrs...)
}

// LogResponse logs the response sent for a protocol command.
// Failed commands are logged at warn level.
func LogResponse(logger *slog.Logger, cmd *ProtocolCommand, resp *ProtocolResponse) {
	attrs := []any{
		EventKey, "response_sent",
		CommandKey, cmd.Name,
		TransactionIDKey, cmd.TransactionID,
	}

	if resp.Status != "" {
		attrs = append(attrs, StatusKey, resp.Status)
	}

	level := slog.LevelDebug
	if resp.ErrorCode != 0 {
		level = slog.LevelWarn
		attrs = append(attrs, "error_code", resp.ErrorCode, "error", resp.Error)
	}

	logger.Log(context.Background(), level, "protocol response sent", attrs...)
}
