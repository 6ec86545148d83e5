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
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/tombee/debuggee/internal/dbgp"
	"github.com/tombee/debuggee/internal/debug"
	"github.com/tombee/debuggee/internal/log"
	"github.com/tombee/debuggee/internal/metrics"
	dbgerrors "github.com/tombee/debuggee/pkg/errors"
)

const sessionAttribute = "session"

// Attributes is a concurrency-safe key/value store scoped to one
// connection.
type Attributes struct {
	mu     sync.RWMutex
	values map[string]any
}

// Get returns the value stored under key.
func (a *Attributes) Get(key string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.values[key]
	return v, ok
}

// Set stores value under key.
func (a *Attributes) Set(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.values == nil {
		a.values = make(map[string]any)
	}
	a.values[key] = value
}

// Remove deletes key.
func (a *Attributes) Remove(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.values, key)
}

// Conn is a connection to a debugging client.
type Conn struct {
	nc     net.Conn
	logger *slog.Logger
	attrs  Attributes

	mu    sync.Mutex
	queue [][]byte
	wake  chan struct{}

	closing    chan struct{}
	closeOnce  sync.Once
	writerDone chan struct{}
	readDone   chan struct{}
}

func newConn(nc net.Conn, logger *slog.Logger) *Conn {
	return &Conn{
		nc:         nc,
		logger:     logger.With("remote", nc.RemoteAddr().String()),
		wake:       make(chan struct{}, 1),
		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
		readDone:   make(chan struct{}),
	}
}

// Attributes returns the connection's attribute store.
func (c *Conn) Attributes() *Attributes {
	return &c.attrs
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

// Close flushes queued messages and closes the connection. It is
// idempotent.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closing)
		<-c.writerDone
		if err := c.nc.Close(); err != nil {
			c.logger.Debug("close connection", log.Error(err))
		}
	})
}

func (c *Conn) start(sess *debug.Session) {
	go c.writeLoop()
	go c.readLoop(sess)
}

// send queues a message for the write loop. It never blocks, so it is
// safe to call from settle callbacks.
func (c *Conn) send(v any) {
	frame, err := dbgp.Marshal(v)
	if err != nil {
		c.logger.Error("failed to encode message", log.Error(err))
		return
	}
	c.mu.Lock()
	c.queue = append(c.queue, frame)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Conn) writeLoop() {
	defer close(c.writerDone)
	for {
		select {
		case <-c.wake:
			if !c.flush() {
				return
			}
		case <-c.closing:
			c.flush()
			return
		}
	}
}

func (c *Conn) flush() bool {
	c.mu.Lock()
	frames := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, frame := range frames {
		if _, err := c.nc.Write(frame); err != nil {
			c.logger.Warn("failed to write to debugging client", log.Error(err))
			return false
		}
	}
	return true
}

// readLoop is the transport goroutine: it decodes client commands and
// dispatches them until the client disconnects.
func (c *Conn) readLoop(sess *debug.Session) {
	defer close(c.readDone)

	reader := dbgp.NewReader(c.nc)
	for {
		line, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || c.Closed() {
				return
			}
			var perr *dbgerrors.ProtocolError
			if errors.As(err, &perr) {
				c.reply(&dbgp.Request{}, nil, err)
				continue
			}
			c.logger.Warn("failed to read from debugging client", log.Error(err))
			return
		}

		req, err := dbgp.ParseRequest(line)
		if err != nil {
			c.reply(&dbgp.Request{}, nil, err)
			continue
		}
		c.dispatch(sess, req)
	}
}

// session returns the session bound by INIT, if the handshake has
// completed.
func (c *Conn) session() (*debug.Session, bool) {
	v, ok := c.attrs.Get(sessionAttribute)
	if !ok {
		return nil, false
	}
	s, ok := v.(*debug.Session)
	return s, ok
}

func (c *Conn) dispatch(fallback *debug.Session, req *dbgp.Request) {
	entry := &log.ProtocolCommand{
		Name:          req.Name,
		TransactionID: req.TransactionID,
		RemoteAddr:    c.nc.RemoteAddr().String(),
		Args:          req.Args,
	}
	log.LogCommand(c.logger, entry)

	h, ok := handlers[req.Name]
	if !ok {
		c.reply(req, nil, dbgp.NewError(req.Name, dbgp.ErrUnimplemented, ""))
		return
	}

	sess, bound := c.session()
	if !bound {
		if !h.beforeInit {
			c.reply(req, nil, dbgp.NewError(req.Name, dbgp.ErrUnavailable, ""))
			return
		}
		sess = fallback
	}

	resp, err := h.fn(c, sess, req)
	if resp == nil && err == nil {
		// Continuation commands answer when they settle.
		return
	}
	c.reply(req, resp, err)
}

// reply sends resp, or an error response when err is set.
func (c *Conn) reply(req *dbgp.Request, resp *dbgp.Response, err error) {
	entry := &log.ProtocolCommand{Name: req.Name, TransactionID: req.TransactionID}
	if err != nil {
		resp = dbgp.ErrorResponse(req.Name, req.TransactionID, err, dbgp.ErrUnavailable)
		metrics.RecordProtocolError(req.Name)
		log.LogResponse(c.logger, entry, &log.ProtocolResponse{
			ErrorCode: resp.Error.Code,
			Error:     resp.Error.Message,
		})
	} else {
		log.LogResponse(c.logger, entry, &log.ProtocolResponse{Status: resp.Status})
	}
	c.send(resp)
}
