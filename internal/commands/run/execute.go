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

package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/debuggee/internal/commands/shared"
	"github.com/tombee/debuggee/internal/connector"
	"github.com/tombee/debuggee/internal/debug"
	"github.com/tombee/debuggee/internal/lifecycle"
	"github.com/tombee/debuggee/internal/log"
	"github.com/tombee/debuggee/internal/metrics"
	"github.com/tombee/debuggee/internal/runner"
	"github.com/tombee/debuggee/internal/script"
	"github.com/tombee/debuggee/internal/tracing"
)

// shutdownTimeout bounds flushing spans and stopping the metrics server.
const shutdownTimeout = 5 * time.Second

// Result is the JSON output of run.
type Result struct {
	shared.JSONResponse
	Script  string `json:"script"`
	Mode    string `json:"mode"`
	Session string `json:"session,omitempty"`
	Value   string `json:"value,omitempty"`
	Error   string `json:"error,omitempty"`
}

func runScript(cmd *cobra.Command, path string, opts options) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return shared.NewConfigError("failed to load config", err)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return shared.NewConfigError("invalid settings", err)
	}

	logger := shared.NewLogger(cfg.Log, cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	version, _, _ := shared.GetVersion()
	provider, err := tracing.NewProvider(cfg.TracingSettings(version))
	if err != nil {
		return shared.NewConfigError("failed to set up tracing", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger.Warn("tracing shutdown failed", log.Error(err))
		}
	}()

	notifier := lifecycle.NewNotifier(logger)
	defer watchSignals(notifier, logger)()

	if cfg.Metrics.Addr != "" {
		defer serveMetrics(cfg.Metrics.Addr, logger)()
	}

	sessOpts, err := cfg.Debug(nil).Options()
	if err != nil {
		return shared.NewConfigError("invalid engine settings", err)
	}
	reg := connector.NewRegistry(cfg.Connector(),
		connector.WithLogger(logger),
		connector.WithSessionOptions(sessOpts...),
	)
	defer reg.Close()

	r := runner.New(
		runner.Config{MaxParallel: cfg.Engine.MaxConcurrentRuns},
		runner.WithRegistry(reg),
		runner.WithNotifier(notifier),
		runner.WithTracer(provider.Tracer()),
		runner.WithLogger(logger),
		runner.WithConsole(cmd.InOrStdin(), cmd.OutOrStdout()),
	)

	breakpoints, err := resolveBreakpoints(path, opts.breakpoints)
	if err != nil {
		return shared.NewConfigError("invalid breakpoint", err)
	}

	req := runner.Request{
		Path:  path,
		Mode:  opts.mode(),
		Debug: cfg.Debug(breakpoints),
	}
	if req.Mode == runner.ModeIDE {
		logger.Info("connecting to debugger", "addr", cfg.IDEAddr(), "idekey", cfg.IDE.IDEKey)
	}

	exec, err := r.Start(ctx, req)
	if err != nil {
		var scriptErr *script.Error
		if errors.As(err, &scriptErr) {
			return shared.NewInvalidScriptError("failed to load script", err)
		}
		return shared.Classify("failed to start script", err)
	}

	value, runErr := exec.Wait()
	if shared.GetJSON() {
		if err := emitResult(cmd, cfg.Engine.RenderFormat, exec, value, runErr); err != nil {
			return err
		}
	} else if runErr == nil && value != nil && !shared.GetQuiet() {
		if rendered, err := render(cfg.Engine.RenderFormat, value); err == nil {
			cmd.PrintErrf("=> %s\n", rendered)
		}
	}
	return shared.Classify("script failed", runErr)
}

// resolveBreakpoints turns bare line numbers into locations in the
// script being run.
func resolveBreakpoints(path string, locs []string) ([]string, error) {
	out := make([]string, 0, len(locs))
	for _, loc := range locs {
		if line, err := strconv.Atoi(loc); err == nil {
			loc = path + ":" + strconv.Itoa(line)
		}
		if _, _, err := debug.ParseBreakpoint(loc); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

func render(format string, value any) (string, error) {
	r, err := debug.RendererFor(format)
	if err != nil {
		return "", err
	}
	return r.Render(value)
}

func emitResult(cmd *cobra.Command, format string, exec *runner.Execution, value any, runErr error) error {
	res := Result{
		JSONResponse: shared.NewResponse("run", runErr == nil),
		Script:       filepath.Clean(exec.Path),
		Mode:         string(exec.Mode),
	}
	if exec.Session != nil {
		res.Session = exec.Session.ID()
	}
	if runErr != nil {
		res.Error = runErr.Error()
	} else if value != nil {
		rendered, err := render(format, value)
		if err != nil {
			return fmt.Errorf("failed to render result: %w", err)
		}
		res.Value = rendered
	}
	return shared.EmitJSON(cmd.OutOrStdout(), res)
}

// watchSignals shuts the notifier down on the first SIGINT or SIGTERM.
// A second signal gets the default behaviour and kills the process.
func watchSignals(n *lifecycle.Notifier, logger *slog.Logger) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	quit := make(chan struct{})

	go func() {
		select {
		case sig := <-sigs:
			signal.Stop(sigs)
			logger.Info("received signal, stopping script", "signal", sig.String())
			n.Shutdown()
		case <-quit:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(quit)
	}
}

// serveMetrics exposes the Prometheus registry on addr until the
// returned function is called.
func serveMetrics(addr string, logger *slog.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server failed", "addr", addr, log.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
