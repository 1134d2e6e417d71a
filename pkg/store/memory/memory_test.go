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

package memory

import (
	"context"
	"testing"

	v1 "github.com/aws/fleet-supervisor/pkg/apis/v1"
	fleeterrors "github.com/aws/fleet-supervisor/pkg/errors"
	"github.com/aws/fleet-supervisor/pkg/store"
)

func TestDeploymentCreateSupersedesActive(t *testing.T) {
	ctx := context.Background()
	s := NewDeploymentStore(store.RealClock{})

	first, err := s.Create(ctx, "commit-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := s.Create(ctx, "commit-2")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SupersededAt == nil {
		t.Error("first deployment SupersededAt = nil, want non-nil after a second Create")
	}

	active, err := s.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active == nil || active.ID != second.ID {
		t.Errorf("GetActive() = %+v, want deployment %d", active, second.ID)
	}
}

func TestDeploymentGetActiveNilWhenNoneExist(t *testing.T) {
	s := NewDeploymentStore(store.RealClock{})
	active, err := s.GetActive(context.Background())
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active != nil {
		t.Errorf("GetActive() = %+v, want nil", active)
	}
}

func TestNodeTransitionRejectsInvalidEdge(t *testing.T) {
	ctx := context.Background()
	s := NewNodeStore(store.RealClock{})
	n, _ := s.Create(ctx, "a", 1)

	_, err := s.Transition(ctx, n.ID, v1.NodeStatePending, v1.NodeStateRunning, store.TransitionOpts{})
	if !fleeterrors.Is(err, fleeterrors.KindNodeTransitionInvalid) {
		t.Errorf("Transition() error = %v, want node_transition_invalid", err)
	}
}

func TestNodeTransitionRejectsStaleFrom(t *testing.T) {
	ctx := context.Background()
	s := NewNodeStore(store.RealClock{})
	n, _ := s.Create(ctx, "a", 1)
	if _, err := s.Transition(ctx, n.ID, v1.NodeStatePending, v1.NodeStateStarting, store.TransitionOpts{}); err != nil {
		t.Fatalf("first Transition: %v", err)
	}

	_, err := s.Transition(ctx, n.ID, v1.NodeStatePending, v1.NodeStateStarting, store.TransitionOpts{})
	if !fleeterrors.Is(err, fleeterrors.KindNodeTransitionInvalid) {
		t.Errorf("repeated Transition() error = %v, want node_transition_invalid", err)
	}
}

func TestNodeRegisterSetsURL(t *testing.T) {
	ctx := context.Background()
	s := NewNodeStore(store.RealClock{})
	n, _ := s.Create(ctx, "a", 1)
	n, _ = s.Transition(ctx, n.ID, v1.NodeStatePending, v1.NodeStateStarting, store.TransitionOpts{})

	got, err := s.Register(ctx, n.ID, "http://node-a")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got.State != v1.NodeStateRunning {
		t.Errorf("state = %s, want RUNNING", got.State)
	}
	if got.URL == nil || *got.URL != "http://node-a" {
		t.Errorf("URL = %v, want http://node-a", got.URL)
	}
}

func TestNodeRemoveRequiresTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewNodeStore(store.RealClock{})
	n, _ := s.Create(ctx, "a", 1)

	if err := s.Remove(ctx, n.ID); !fleeterrors.Is(err, fleeterrors.KindNodeNotTerminal) {
		t.Errorf("Remove() error = %v, want node_not_terminal", err)
	}
}

func TestNodeSearchGroupsByRoutingIDAndState(t *testing.T) {
	ctx := context.Background()
	s := NewNodeStore(store.RealClock{})
	s.Create(ctx, "r1", 1)
	s.Create(ctx, "r1", 1)
	s.Create(ctx, "r2", 1)

	groups, err := s.Search(ctx, v1.NodeSearch{States: []v1.NodeState{v1.NodeStatePending}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(groups["r1"][v1.NodeStatePending]) != 2 {
		t.Errorf("r1 pending count = %d, want 2", len(groups["r1"][v1.NodeStatePending]))
	}
	if len(groups["r2"][v1.NodeStatePending]) != 1 {
		t.Errorf("r2 pending count = %d, want 1", len(groups["r2"][v1.NodeStatePending]))
	}
}
