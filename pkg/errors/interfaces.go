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

package errors

// UserVisibleError is implemented by failures whose message is meant for a
// person at a terminal rather than for a log. The CLI prints Suggestion
// under the error line, e.g. how to start the IDE listener after a refused
// dial.
type UserVisibleError interface {
	error
	IsUserVisible() bool
	UserMessage() string
	// Suggestion is empty when there is nothing useful to add.
	Suggestion() string
}

// ErrorClassifier lets an error name its category ("validation",
// "not_found", "connection", "protocol", "timeout") and say whether trying
// again could help. See Category and Retryable.
type ErrorClassifier interface {
	error
	ErrorType() string
	IsRetryable() bool
}
