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

/*
Package connector connects debug sessions to a DBGp client (an IDE).

A Registry holds at most one session. Attach dials the client, binds the
program to the session and starts the connection's read and write loops.
Commands from the client are decoded by the read loop (the transport
goroutine) and handed to the session; responses are queued to the write
loop so session callbacks never block on the network.

# Lifecycle

	reg := connector.NewRegistry(connector.DefaultConfig())
	sess, err := reg.Attach(ctx, program)
	if err != nil {
	    // *errors.ConnectionError: the client was not reachable.
	}
	interp := script.New(program, script.WithJoint(sess))

When the session detaches, pending responses are flushed, the connection
is closed and the registry is cleared. When the client disconnects, the
session is detached and the interpreter stops at its next hook.
*/
package connector
