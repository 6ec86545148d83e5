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

package connector

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tombee/debuggee/internal/debug"
	"github.com/tombee/debuggee/internal/log"
	"github.com/tombee/debuggee/internal/metrics"
	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

// ErrAlreadyDebugging is returned by Attach while a connected session
// exists.
var ErrAlreadyDebugging = errors.New("connector: a debugging session is already connected")

// Config configures how the registry reaches the client.
type Config struct {
	// Addr is the host:port the client listens on.
	Addr string

	// IDEKey is sent in the init packet.
	IDEKey string

	// AppID identifies the engine process in the init packet.
	AppID string

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration

	// RetryInterval is the minimum time between connection attempts.
	RetryInterval time.Duration
}

// DefaultConfig returns the conventional DBGp client address.
func DefaultConfig() Config {
	return Config{
		Addr:          "127.0.0.1:9003",
		IDEKey:        "debuggee",
		AppID:         "debuggee",
		DialTimeout:   5 * time.Second,
		RetryInterval: time.Second,
	}
}

// DialFunc opens a connection to the client.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Option configures a Registry.
type Option func(*Registry)

// WithDialer replaces the network dialer.
func WithDialer(dial DialFunc) Option {
	return func(r *Registry) {
		r.dial = dial
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithSessionOptions sets the options used for new sessions.
func WithSessionOptions(opts ...debug.Option) Option {
	return func(r *Registry) {
		r.sessionOpts = append(r.sessionOpts, opts...)
	}
}

// Registry owns the single debugging session of the host.
type Registry struct {
	cfg         Config
	dial        DialFunc
	limiter     *rate.Limiter
	logger      *slog.Logger
	sessionOpts []debug.Option

	mu       sync.Mutex
	session  *debug.Session
	conn     *Conn
	attempts int
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.IDEKey == "" {
		cfg.IDEKey = def.IDEKey
	}
	if cfg.AppID == "" {
		cfg.AppID = def.AppID
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}

	r := &Registry{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.RetryInterval), 1),
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dial == nil {
		d := &net.Dialer{Timeout: cfg.DialTimeout}
		r.dial = d.DialContext
	}
	r.logger = log.WithComponent(r.logger, "connector")
	return r
}

// Session returns the registered session, or nil.
func (r *Registry) Session() *debug.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Connected reports whether the registered session has a live
// connection.
func (r *Registry) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil && !r.conn.Closed()
}

// Attach connects prog to the client. A session that failed to connect
// earlier is reused, with attempts throttled to one per RetryInterval.
func (r *Registry) Attach(ctx context.Context, prog debug.Program) (*debug.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil && !r.conn.Closed() {
		return nil, ErrAlreadyDebugging
	}
	if r.session == nil {
		r.session = debug.NewSession(r.sessionOpts...)
		r.attempts = 0
	}
	sess := r.session

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	r.attempts++

	dialCtx, cancel := context.WithTimeout(ctx, r.cfg.DialTimeout)
	nc, err := r.dial(dialCtx, "tcp", r.cfg.Addr)
	cancel()
	if err != nil {
		metrics.RecordConnectFailure()
		r.logger.Warn("failed to connect to debugging client",
			"addr", r.cfg.Addr,
			"attempt", r.attempts,
			log.Error(err))
		return nil, &dbgerrors.ConnectionError{Addr: r.cfg.Addr, Attempt: r.attempts, Cause: err}
	}

	if err := sess.Attach(prog); err != nil {
		nc.Close()
		return nil, err
	}

	conn := newConn(nc, r.logger)
	r.conn = conn
	r.logger.Info("connected to debugging client",
		"addr", r.cfg.Addr,
		log.SessionIDKey, sess.ID(),
		log.FileKey, prog.Source())

	done := sess.Done()
	conn.start(sess)
	go r.watch(sess, conn, done)

	initPacket := r.initPacket(sess, prog)
	cmd := debug.NewInitCommand(debug.BinderFunc(func(s *debug.Session) {
		conn.Attributes().Set(sessionAttribute, s)
	})).OnSettle(func(c *debug.Command) {
		if c.Status() == debug.StatusBreak {
			conn.send(initPacket)
		}
	})
	sess.Continuation(cmd)
	return sess, nil
}

// Close detaches the registered session, if any.
func (r *Registry) Close() {
	r.mu.Lock()
	sess := r.session
	r.mu.Unlock()
	if sess != nil {
		sess.Detach()
	}
}

// watch tears the connection down when the session detaches, and
// detaches the session when the client goes away.
func (r *Registry) watch(sess *debug.Session, conn *Conn, done <-chan struct{}) {
	select {
	case <-done:
	case <-conn.readDone:
		r.logger.Info("debugging client disconnected", log.SessionIDKey, sess.ID())
		sess.Detach()
	}
	conn.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == conn {
		r.conn = nil
		r.session = nil
	}
}
