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

// Package memory implements store.DeploymentStore and store.NodeStore
// entirely in-process. It is used by supervisor unit tests and by the
// "kwok"-style local/demo wiring in cmd/supervisor, so the state machine can
// be exercised without a database, the way the retrieved corpus pairs a real
// cloud provider with an in-memory "fake" one for fast tests.
package memory

import (
	"context"
	"sync"

	v1 "github.com/aws/fleet-supervisor/pkg/apis/v1"
	fleeterrors "github.com/aws/fleet-supervisor/pkg/errors"
	"github.com/aws/fleet-supervisor/pkg/store"
)

// DeploymentStore is an in-memory store.DeploymentStore. The zero value is
// not usable; construct with NewDeploymentStore.
type DeploymentStore struct {
	clock store.Clock

	mu       sync.Mutex
	rows     map[int64]*v1.Deployment
	activeID int64
	nextID   int64
}

func NewDeploymentStore(clock store.Clock) *DeploymentStore {
	return &DeploymentStore{
		clock: clock,
		rows:  map[int64]*v1.Deployment{},
	}
}

func (s *DeploymentStore) Create(_ context.Context, commitID string) (*v1.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if active, ok := s.rows[s.activeID]; ok && active != nil && active.SupersededAt == nil {
		supersededAt := now
		active.SupersededAt = &supersededAt
	}
	s.nextID++
	d := &v1.Deployment{
		ID:        s.nextID,
		CommitID:  commitID,
		CreatedAt: now,
	}
	s.rows[d.ID] = d
	s.activeID = d.ID
	cp := *d
	return &cp, nil
}

func (s *DeploymentStore) GetActive(_ context.Context) (*v1.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.rows[s.activeID]
	if !ok || d.SupersededAt != nil {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *DeploymentStore) Get(_ context.Context, id int64) (*v1.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.rows[id]
	if !ok {
		return nil, fleeterrors.New("DeploymentStore.Get", fleeterrors.KindDeploymentNotFound, nil)
	}
	cp := *d
	return &cp, nil
}

// NodeStore is an in-memory store.NodeStore.
type NodeStore struct {
	clock store.Clock

	mu     sync.Mutex
	rows   map[int64]*v1.Node
	nextID int64
}

func NewNodeStore(clock store.Clock) *NodeStore {
	return &NodeStore{
		clock: clock,
		rows:  map[int64]*v1.Node{},
	}
}

func (s *NodeStore) Create(_ context.Context, routingID string, deploymentID int64) (*v1.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.nextID++
	n := &v1.Node{
		ID:                    s.nextID,
		RoutingID:             routingID,
		DeploymentID:          deploymentID,
		State:                 v1.NodeStatePending,
		CreatedAt:             now,
		LastStateTransitionAt: now,
	}
	s.rows[n.ID] = n
	cp := *n
	return &cp, nil
}

func (s *NodeStore) Get(_ context.Context, id int64) (*v1.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok {
		return nil, fleeterrors.New("NodeStore.Get", fleeterrors.KindNodeNotFound, nil)
	}
	cp := *n
	return &cp, nil
}

func (s *NodeStore) Search(_ context.Context, q v1.NodeSearch) (v1.NodeGroups, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := v1.NodeGroups{}
	for _, n := range s.rows {
		if !matches(n, q) {
			continue
		}
		byState, ok := groups[n.RoutingID]
		if !ok {
			byState = map[v1.NodeState][]*v1.Node{}
			groups[n.RoutingID] = byState
		}
		cp := *n
		byState[n.State] = append(byState[n.State], &cp)
	}
	return groups, nil
}

func matches(n *v1.Node, q v1.NodeSearch) bool {
	if len(q.States) > 0 {
		found := false
		for _, s := range q.States {
			if n.State == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.DeploymentID != nil && n.DeploymentID != *q.DeploymentID {
		return false
	}
	if q.RoutingID != nil && n.RoutingID != *q.RoutingID {
		return false
	}
	if q.OlderThan != nil && !n.LastStateTransitionAt.Before(*q.OlderThan) {
		return false
	}
	return true
}

func (s *NodeStore) Transition(_ context.Context, id int64, from, to v1.NodeState, opts store.TransitionOpts) (*v1.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok {
		return nil, fleeterrors.New("NodeStore.Transition", fleeterrors.KindNodeNotFound, nil)
	}
	if n.State != from || !v1.IsValidNodeTransition(from, to) {
		return nil, fleeterrors.New("NodeStore.Transition", fleeterrors.KindNodeTransitionInvalid, nil)
	}
	n.State = to
	n.LastStateTransitionAt = s.clock.Now()
	if opts.URL != nil {
		n.URL = opts.URL
	}
	if opts.Error != nil {
		n.Error = opts.Error
	}
	cp := *n
	return &cp, nil
}

func (s *NodeStore) Register(ctx context.Context, id int64, url string) (*v1.Node, error) {
	return s.Transition(ctx, id, v1.NodeStateStarting, v1.NodeStateRunning, store.TransitionOpts{URL: &url})
}

// Idle moves a node to NodeStateIdle from whichever of RUNNING or OUTDATED
// it currently holds: both a routine drain and an outdated-timeout drain
// end in IDLE.
func (s *NodeStore) Idle(_ context.Context, id int64) (*v1.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok {
		return nil, fleeterrors.New("NodeStore.Idle", fleeterrors.KindNodeNotFound, nil)
	}
	if n.State != v1.NodeStateRunning && n.State != v1.NodeStateOutdated {
		return nil, fleeterrors.New("NodeStore.Idle", fleeterrors.KindNodeTransitionInvalid, nil)
	}
	n.State = v1.NodeStateIdle
	n.LastStateTransitionAt = s.clock.Now()
	cp := *n
	return &cp, nil
}

func (s *NodeStore) Remove(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok {
		return fleeterrors.New("NodeStore.Remove", fleeterrors.KindNodeNotFound, nil)
	}
	if !n.State.IsTerminal() {
		return fleeterrors.New("NodeStore.Remove", fleeterrors.KindNodeNotTerminal, nil)
	}
	delete(s.rows, id)
	return nil
}

var _ store.DeploymentStore = (*DeploymentStore)(nil)
var _ store.NodeStore = (*NodeStore)(nil)
