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

// Package runner executes scripts under a debug session.
//
// A Runner bounds how many scripts run at once, attaches each script to
// a debugger (an IDE through the connector registry, or the local
// console), and converts host shutdown and context cancellation into a
// stop command so a suspended program is released.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/semaphore"

	"github.com/tombee/debuggee/internal/connector"
	"github.com/tombee/debuggee/internal/debug"
	"github.com/tombee/debuggee/internal/lifecycle"
	"github.com/tombee/debuggee/internal/log"
	"github.com/tombee/debuggee/internal/metrics"
	"github.com/tombee/debuggee/internal/script"
	"github.com/tombee/debuggee/internal/tracing"
	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

// Mode selects the debugger a script is attached to.
type Mode string

const (
	// ModeIDE connects to a DBGp client through the registry.
	ModeIDE Mode = "ide"

	// ModeLocal drives the session from the interactive console.
	ModeLocal Mode = "local"

	// ModeNone runs the script without a debugger.
	ModeNone Mode = "none"
)

// Outcomes reported in metrics and traces.
const (
	OutcomeOK        = "ok"
	OutcomeStopped   = "stopped"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Config contains runner configuration.
type Config struct {
	// MaxParallel bounds the number of scripts running at once.
	MaxParallel int
}

// Request describes one script run.
type Request struct {
	Path  string
	Mode  Mode
	Debug *debug.Config
}

// Runner starts script executions.
type Runner struct {
	sem      *semaphore.Weighted
	registry *connector.Registry
	notifier *lifecycle.Notifier
	tracer   trace.Tracer
	logger   *slog.Logger

	input  io.Reader
	output io.Writer
}

// New creates a Runner.
func New(cfg Config, opts ...Option) *Runner {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	r := &Runner{
		sem:    semaphore.NewWeighted(int64(cfg.MaxParallel)),
		tracer: noop.NewTracerProvider().Tracer("runner"),
		logger: log.Discard(),
		input:  os.Stdin,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.notifier == nil {
		r.notifier = lifecycle.NewNotifier(r.logger)
	}
	if r.registry == nil {
		r.registry = connector.NewRegistry(connector.DefaultConfig(), connector.WithLogger(r.logger))
	}
	r.logger = log.WithComponent(r.logger, "runner")
	return r
}

// Execution is a running script.
type Execution struct {
	Path    string
	Mode    Mode
	Session *debug.Session

	done  chan struct{}
	value any
	err   error
}

// Wait blocks until the script finishes and returns its result.
func (e *Execution) Wait() (any, error) {
	<-e.done
	return e.value, e.err
}

// Done is closed when the script finishes.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Start loads the script at req.Path and runs it on a new goroutine.
// It returns once the script is attached to its debugger.
func (r *Runner) Start(ctx context.Context, req Request) (*Execution, error) {
	if req.Mode == "" {
		req.Mode = ModeIDE
	}
	if req.Debug == nil {
		req.Debug = debug.New(nil, "")
	}
	if err := req.Debug.Validate(); err != nil {
		return nil, err
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, dbgerrors.Wrap(err, "waiting for a run slot")
	}
	release := sync.OnceFunc(func() { r.sem.Release(1) })

	path, err := filepath.Abs(req.Path)
	if err != nil {
		release()
		return nil, dbgerrors.Wrapf(err, "resolving script path %s", req.Path)
	}
	prog, err := script.Load(path)
	if err != nil {
		release()
		metrics.RecordScriptRun(OutcomeError, 0)
		return nil, err
	}

	ctx, span := tracing.StartRun(ctx, r.tracer, path, string(req.Mode))
	logger := r.logger.With(log.FileKey, path, "mode", string(req.Mode))

	sess, shell, err := r.attach(ctx, req, prog)
	if err != nil {
		release()
		metrics.RecordScriptRun(OutcomeError, 0)
		span.End(OutcomeError, err)
		logger.Debug("attach failed",
			"category", dbgerrors.Category(err),
			"retryable", dbgerrors.Retryable(err))
		return nil, err
	}

	exec := &Execution{Path: path, Mode: req.Mode, Session: sess, done: make(chan struct{})}
	opts := []script.Option{script.WithOutput(r.output), script.WithLogger(r.logger)}

	var (
		unsubscribe = func() {}
		stopAfter   = func() bool { return false }
		events      sync.WaitGroup
		finished    = make(chan struct{})
	)
	if sess != nil {
		span.SetSession(sess.ID())
		logger = log.WithSession(logger, sess.ID())
		opts = append(opts, script.WithJoint(sess))

		stop := func() {
			sess.Continuation(debug.NewCommand(debug.KindStop))
		}
		unsubscribe = r.notifier.Subscribe(stop)
		stopAfter = context.AfterFunc(ctx, stop)

		events.Add(1)
		go func() {
			defer events.Done()
			forwardEvents(sess, span, finished)
		}()
	}
	if shell != nil {
		go func() {
			if err := shell.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("console exited", log.Error(err))
			}
		}()
	}

	interp := script.New(prog, opts...)
	logger.Info("script started")
	start := time.Now()

	go func() {
		defer close(exec.done)
		defer release()

		value, runErr := interp.Run(ctx)

		unsubscribe()
		stopAfter()
		if sess != nil {
			sess.Detach()
		}
		close(finished)
		events.Wait()

		elapsed := time.Since(start)
		outcome := outcomeOf(runErr)
		metrics.RecordScriptRun(outcome, elapsed)
		span.End(outcome, spanError(runErr))
		logger.Info("script finished",
			"outcome", outcome,
			log.DurationKey, elapsed.Milliseconds())

		exec.value, exec.err = value, runErr
	}()

	return exec, nil
}

// attach binds prog to the debugger selected by req.Mode.
func (r *Runner) attach(ctx context.Context, req Request, prog *script.Program) (*debug.Session, *debug.Shell, error) {
	switch req.Mode {
	case ModeNone:
		return nil, nil, nil

	case ModeIDE:
		sess, err := r.registry.Attach(ctx, prog)
		if err != nil {
			return nil, nil, err
		}
		if err := configure(req.Debug, sess); err != nil {
			sess.Detach()
			return nil, nil, err
		}
		return sess, nil, nil

	case ModeLocal:
		opts, err := req.Debug.Options()
		if err != nil {
			return nil, nil, err
		}
		sess := debug.NewSession(append(opts, debug.WithLogger(r.logger))...)
		if err := sess.Attach(prog); err != nil {
			return nil, nil, err
		}
		if err := configure(req.Debug, sess); err != nil {
			sess.Detach()
			return nil, nil, err
		}
		return sess, debug.NewShell(sess, r.input, r.output), nil
	}
	return nil, nil, fmt.Errorf("unknown debug mode %q", req.Mode)
}

// configure seeds sess with cfg's renderer, feature limits and
// breakpoints. Registry sessions are reused across attaches, so every
// setting is applied again here. Breakpoint files are resolved to
// absolute paths, matching the paths the interpreter reports.
func configure(cfg *debug.Config, sess *debug.Session) error {
	renderer, err := debug.RendererFor(cfg.RenderFormat)
	if err != nil {
		return err
	}
	sess.SetRenderer(renderer)

	limits := map[string]int{
		debug.FeatureMaxChildren: cfg.MaxChildren,
		debug.FeatureMaxData:     cfg.MaxData,
		debug.FeatureMaxDepth:    cfg.MaxDepth,
	}
	for name, v := range limits {
		if v <= 0 {
			continue
		}
		if err := sess.SetFeature(name, strconv.Itoa(v)); err != nil {
			return err
		}
	}

	resolved := make([]string, 0, len(cfg.Breakpoints))
	for _, loc := range cfg.Breakpoints {
		file, line, err := debug.ParseBreakpoint(loc)
		if err != nil {
			return err
		}
		if abs, err := filepath.Abs(file); err == nil {
			file = abs
		}
		resolved = append(resolved, file+":"+strconv.Itoa(line))
	}
	return debug.New(resolved, cfg.RenderFormat).Apply(sess)
}

// forwardEvents copies session events onto the run span until finished
// is closed, then drains what is left.
func forwardEvents(sess *debug.Session, span *tracing.RunSpan, finished <-chan struct{}) {
	for {
		select {
		case ev := <-sess.Events():
			span.RecordEvent(ev)
		case <-finished:
			for {
				select {
				case ev := <-sess.Events():
					span.RecordEvent(ev)
				default:
					return
				}
			}
		}
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, debug.ErrTerminated):
		return OutcomeStopped
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}

// spanError hides terminations the user asked for from the span status.
func spanError(err error) error {
	if errors.Is(err, debug.ErrTerminated) {
		return nil
	}
	return err
}
