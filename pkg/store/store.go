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

// Package store declares the DeploymentStore and NodeStore contracts
// consumed by the supervisor. No other package is permitted to mutate a
// node or deployment row; every mutation flows through one of these two
// interfaces so that the conditional Transition primitive stays the sole
// serialization point under concurrent supervisors.
package store

import (
	"context"
	"time"

	v1 "github.com/aws/fleet-supervisor/pkg/apis/v1"
)

// DeploymentStore is the persistent, append-only log of deployments.
type DeploymentStore interface {
	// Create supersedes every currently-active deployment and inserts a new
	// active deployment for commitID, in a single transaction. Fails with
	// errors.KindDeploymentCreation on storage error.
	Create(ctx context.Context, commitID string) (*v1.Deployment, error)
	// GetActive returns the deployment with SupersededAt == nil, or
	// (nil, nil) if none exists yet. Fails with
	// errors.KindDeploymentGetActive on storage error.
	GetActive(ctx context.Context) (*v1.Deployment, error)
	// Get returns the deployment by id, or errors.KindDeploymentNotFound.
	Get(ctx context.Context, id int64) (*v1.Deployment, error)
}

// TransitionOpts carries the optional fields a Transition call may set
// alongside the state change.
type TransitionOpts struct {
	URL   *string
	Error *string
}

// NodeStore is the persistent registry of nodes. Transition is the general
// mutation primitive and Register is built on top of it; Idle and Remove
// are their own conditional updates guarded by the node's current state.
type NodeStore interface {
	// Create inserts a new node in NodeStatePending for routingID on
	// deploymentID.
	Create(ctx context.Context, routingID string, deploymentID int64) (*v1.Node, error)
	// Get returns the node by id, or errors.KindNodeNotFound.
	Get(ctx context.Context, id int64) (*v1.Node, error)
	// Search returns nodes matching every non-zero field of q, grouped by
	// routing id and then by state.
	Search(ctx context.Context, q v1.NodeSearch) (v1.NodeGroups, error)
	// Transition conditionally moves node id from "from" to "to", applying
	// opts and refreshing LastStateTransitionAt, iff the node's current
	// state equals "from" and (from, to) is a valid edge. Any other
	// observed state, or an invalid edge, fails with
	// errors.KindNodeTransitionInvalid without side effects.
	Transition(ctx context.Context, id int64, from, to v1.NodeState, opts TransitionOpts) (*v1.Node, error)
	// Register is Transition(STARTING -> RUNNING) with url set atomically.
	Register(ctx context.Context, id int64, url string) (*v1.Node, error)
	// Idle moves node id to IDLE from RUNNING or OUTDATED, failing with
	// errors.KindNodeTransitionInvalid from any other state.
	Idle(ctx context.Context, id int64) (*v1.Node, error)
	// Remove deletes node id. Fails with errors.KindNodeNotTerminal unless
	// the node is currently in a terminal state.
	Remove(ctx context.Context, id int64) error
}

// Clock abstracts time.Now so tests can control the age of a node's
// LastStateTransitionAt without sleeping, mirroring k8s.io/utils/clock's
// role in the retrieved corpus's own timeout-driven controllers.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
