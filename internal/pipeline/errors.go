/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package pipeline

import "fmt"

// IntrospectionError represents a failure reading metadata or samples from the store
type IntrospectionError struct {
	Msg string
	Err error
}

// SelectionParseError represents a selector reply that is not a valid selection object.
// It is logged and recovered locally, never shown to the user.
type SelectionParseError struct {
	Msg string
	Err error
}

// SynthesisError represents a failure producing a SQL statement
type SynthesisError struct {
	Msg string
	Err error
}

// ExecutionError carries the store's error text for a statement that failed to run
type ExecutionError struct {
	Msg string
	Err error
}

// ExplanationError represents a failure summarizing a result
type ExplanationError struct {
	Msg string
	Err error
}

// CompletionError represents a transport-level failure of the completion service
type CompletionError struct {
	Msg string
	Err error
}

// CancelledError represents errors when an operation is cancelled
type CancelledError struct {
	Msg string
	Err error
}

func format(kind, msg string, err error) string {
	if err == nil {
		return fmt.Sprintf("%s: %s", kind, msg)
	}
	return fmt.Sprintf("%s: %s: %v", kind, msg, err)
}

func (e *IntrospectionError) Error() string { return format("introspection error", e.Msg, e.Err) }
func (e *IntrospectionError) Unwrap() error { return e.Err }

func (e *SelectionParseError) Error() string { return format("selection parse error", e.Msg, e.Err) }
func (e *SelectionParseError) Unwrap() error { return e.Err }

func (e *SynthesisError) Error() string { return format("synthesis error", e.Msg, e.Err) }
func (e *SynthesisError) Unwrap() error { return e.Err }

func (e *ExecutionError) Error() string { return format("query execution error", e.Msg, e.Err) }
func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExplanationError) Error() string { return format("explanation error", e.Msg, e.Err) }
func (e *ExplanationError) Unwrap() error { return e.Err }

func (e *CompletionError) Error() string { return format("completion error", e.Msg, e.Err) }
func (e *CompletionError) Unwrap() error { return e.Err }

func (e *CancelledError) Error() string { return format("operation cancelled", e.Msg, e.Err) }
func (e *CancelledError) Unwrap() error { return e.Err }
