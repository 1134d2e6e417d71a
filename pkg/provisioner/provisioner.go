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

// Package provisioner declares the abstract node provisioner contract: two
// idempotent calls that create and destroy the underlying compute for a
// node. Concrete backends (Kubernetes, Fargate, a local process) are
// external collaborators; this package only fixes the interface and the
// structured error the supervisor dispatches on.
package provisioner

import (
	"context"
	"errors"

	v1 "github.com/aws/fleet-supervisor/pkg/apis/v1"
)

// Provisioner is the external capability the supervisor drives PENDING
// nodes through STARTING with, and IDLE nodes through TERMINATED with. Both
// calls must be idempotent with respect to node.ID: a provisioner that has
// already started or terminated a node must treat a repeat call as success.
type Provisioner interface {
	// Start begins provisioning compute for node. A nil error means the
	// caller may transition the node to STARTING.
	Start(ctx context.Context, node *v1.Node) error
	// Terminate begins tearing down node's compute. A nil error means the
	// caller may transition the node to TERMINATED.
	Terminate(ctx context.Context, node *v1.Node) error
}

// Error is the structured failure a Provisioner returns. Terminal
// distinguishes a failure the supervisor should give up on immediately
// (PENDING moves straight to ERROR) from a transient one, which leaves the
// node in its current state for the next tick to retry.
type Error struct {
	Op       string
	Terminal bool
	Err      error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTerminal reports whether err carries a *Error with Terminal == true
// anywhere in its chain.
func IsTerminal(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Terminal
}
