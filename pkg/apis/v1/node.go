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

package v1

import "time"

// NodeState is the lifecycle stage of a managed worker node. A node advances
// through these states strictly along the edges in nodeTransitions (checked
// with IsValidNodeTransition);
// any other (from, to) pair is rejected by the store.
type NodeState string

const (
	NodeStatePending    NodeState = "PENDING"
	NodeStateStarting   NodeState = "STARTING"
	NodeStateRunning    NodeState = "RUNNING"
	NodeStateOutdated   NodeState = "OUTDATED"
	NodeStateIdle       NodeState = "IDLE"
	NodeStateTerminated NodeState = "TERMINATED"
	NodeStateError      NodeState = "ERROR"
)

// terminal reports whether a node in this state is only ever removed, never
// transitioned out of.
func (s NodeState) terminal() bool {
	return s == NodeStateTerminated || s == NodeStateError
}

// IsTerminal reports whether the state is a terminal state eligible for
// garbage collection once STATE_TIMEOUT_MS[state] has elapsed.
func (s NodeState) IsTerminal() bool {
	return s.terminal()
}

// nodeTransitions is the full allowed-edge set for the node lifecycle. A
// transition not present here is always rejected, regardless of caller.
var nodeTransitions = map[NodeState]map[NodeState]bool{
	NodeStatePending:  {NodeStateStarting: true, NodeStateError: true},
	NodeStateStarting: {NodeStateRunning: true, NodeStateError: true},
	NodeStateRunning:  {NodeStateOutdated: true, NodeStateIdle: true, NodeStateError: true},
	NodeStateOutdated: {NodeStateIdle: true},
	NodeStateIdle:     {NodeStateTerminated: true, NodeStateError: true},
}

// IsValidNodeTransition reports whether (from, to) is one of the allowed
// node lifecycle edges. It is the single source of truth consulted by
// Store.Transition implementations.
func IsValidNodeTransition(from, to NodeState) bool {
	return nodeTransitions[from][to]
}

// Node is a managed worker instance capable of running a deployment's
// scripts. It is the row-level representation persisted by a NodeStore;
// every state transition of a Node updates LastStateTransitionAt.
type Node struct {
	ID                    int64     `db:"id" json:"id"`
	RoutingID             string    `db:"routing_id" json:"routingId"`
	DeploymentID          int64     `db:"deployment_id" json:"deploymentId"`
	State                 NodeState `db:"state" json:"state"`
	URL                   *string   `db:"url" json:"url,omitempty"`
	Error                 *string   `db:"error" json:"error,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"createdAt"`
	LastStateTransitionAt time.Time `db:"last_state_transition_at" json:"lastStateTransitionAt"`
}

// Age returns how long the node has held its current state, as of now.
func (n *Node) Age(now time.Time) time.Duration {
	return now.Sub(n.LastStateTransitionAt)
}

// NodeSearch is the predicate set accepted by NodeStore.Search. A nil/zero
// field is treated as "don't filter on this".
type NodeSearch struct {
	States       []NodeState
	DeploymentID *int64
	RoutingID    *string
	// OlderThan, when set, keeps only nodes whose LastStateTransitionAt is
	// strictly before this instant.
	OlderThan *time.Time
}

// NodeGroups is the result of NodeStore.Search: nodes grouped first by
// routing id, then by state, matching the shape the supervisor needs when
// deciding whether a routing id needs a replacement.
type NodeGroups map[string]map[NodeState][]*Node

// Nodes flattens the grouped result back into a single slice. Ordering is
// unspecified.
func (g NodeGroups) Nodes() []*Node {
	var out []*Node
	for _, byState := range g {
		for _, nodes := range byState {
			out = append(out, nodes...)
		}
	}
	return out
}

// HasActive reports whether any node in {PENDING, STARTING, RUNNING} is
// present for the given routing id.
func (g NodeGroups) HasActive(routingID string) bool {
	byState, ok := g[routingID]
	if !ok {
		return false
	}
	for _, s := range []NodeState{NodeStatePending, NodeStateStarting, NodeStateRunning} {
		if len(byState[s]) > 0 {
			return true
		}
	}
	return false
}
