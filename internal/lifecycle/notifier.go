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

package lifecycle

import (
	"log/slog"
	"sync"

	"github.com/tombee/debuggee/internal/log"
)

// Notifier delivers a one-shot shutdown broadcast.
type Notifier struct {
	logger *slog.Logger

	mu          sync.Mutex
	nextID      int
	subscribers map[int]func()
	shutdown    bool
	done        chan struct{}
}

// NewNotifier creates a notifier. A nil logger discards output.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = log.Discard()
	}
	return &Notifier{
		logger:      log.WithComponent(logger, "lifecycle"),
		subscribers: make(map[int]func()),
		done:        make(chan struct{}),
	}
}

// Subscribe registers fn to run on shutdown and returns a function that
// removes it. Subscribing after shutdown calls fn immediately.
// Callbacks must not block.
func (n *Notifier) Subscribe(fn func()) (unsubscribe func()) {
	n.mu.Lock()
	if n.shutdown {
		n.mu.Unlock()
		fn()
		return func() {}
	}
	id := n.nextID
	n.nextID++
	n.subscribers[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subscribers, id)
	}
}

// Shutdown calls every subscriber once. Later calls are no-ops.
func (n *Notifier) Shutdown() {
	n.mu.Lock()
	if n.shutdown {
		n.mu.Unlock()
		return
	}
	n.shutdown = true
	subs := make([]func(), 0, len(n.subscribers))
	for _, fn := range n.subscribers {
		subs = append(subs, fn)
	}
	n.subscribers = make(map[int]func())
	close(n.done)
	n.mu.Unlock()

	n.logger.Info("shutdown requested", "subscribers", len(subs))
	for _, fn := range subs {
		fn()
	}
}

// Done is closed when Shutdown is called.
func (n *Notifier) Done() <-chan struct{} {
	return n.done
}

// ShuttingDown reports whether Shutdown has been called.
func (n *Notifier) ShuttingDown() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shutdown
}
