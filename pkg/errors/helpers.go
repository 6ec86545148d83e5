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

import (
	"errors"
	"fmt"
)

// Wrap prefixes err with message. A nil err stays nil so callers can wrap
// the result of a cleanup call unconditionally.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// Is and As forward to the standard library so callers need one import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Unwrap(err error) error { return errors.Unwrap(err) }

func New(message string) error { return errors.New(message) }

// FindUserVisible returns the outermost error in the chain that asks to be
// shown to the user.
func FindUserVisible(err error) (UserVisibleError, bool) {
	var uv UserVisibleError
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if v, ok := cur.(UserVisibleError); ok && v.IsUserVisible() {
			uv = v
			break
		}
	}
	return uv, uv != nil
}

// Category names the kind of failure for logs and metrics labels. Errors
// that do not classify themselves report "internal".
func Category(err error) string {
	var c ErrorClassifier
	if errors.As(err, &c) {
		return c.ErrorType()
	}
	if err == nil {
		return ""
	}
	return "internal"
}

// Retryable reports whether any classifier in the chain marks err as
// transient. A dial failure against a stopped IDE is; a malformed command
// is not.
func Retryable(err error) bool {
	var c ErrorClassifier
	return errors.As(err, &c) && c.IsRetryable()
}
