/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package errors defines the tagged error-kind taxonomy shared by the
// deployment store, node store, and provisioner contract. Every fallible
// repository operation returns one of these kinds wrapped around an
// underlying cause, never a bare error, so callers can dispatch on Kind
// without string-matching error text.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a fallible operation's failure mode. It is a taxonomy
// tag, not a concrete error type: callers compare against it with KindOf,
// never with errors.Is against a kind value directly.
type Kind string

const (
	KindDeploymentCreation  Kind = "deployment_creation_error"
	KindDeploymentNotFound  Kind = "deployment_not_found"
	KindDeploymentGetActive Kind = "deployment_get_active_error"
	KindNodeNotFound        Kind = "node_not_found"
	KindNodeTransitionInvalid Kind = "node_transition_invalid"
	KindNodeNotTerminal     Kind = "node_not_terminal"
	KindProvisionerStart    Kind = "provisioner_start_error"
	KindProvisionerTerminate Kind = "provisioner_terminate_error"
)

// Error is the concrete error type every store operation returns on
// failure; provisioner calls fail with *provisioner.Error instead, and the
// provisioner kinds here label those failures in metrics. Op names the operation that failed (e.g.
// "NodeStore.Transition") for log correlation; Kind is stable and meant to
// be switched on; Err is the underlying cause, if any.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an *Error for op/kind, optionally wrapping cause.
func New(op string, kind Kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

// KindOf extracts the Kind carried by err, if any is present in its chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
