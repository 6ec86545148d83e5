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

// Package lifecycle broadcasts host shutdown to running scripts.
//
// A Notifier is created once per process. Runners subscribe a callback
// for each script; the host calls Shutdown when it receives a
// termination signal, and every subscriber is called exactly once.
//
//	n := lifecycle.NewNotifier()
//	unsubscribe := n.Subscribe(func() { sess.Continuation(stop) })
//	defer unsubscribe()
package lifecycle
