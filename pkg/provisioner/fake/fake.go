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

// Package fake is an in-memory provisioner.Provisioner, the way the
// retrieved corpus pairs a real cloud provider with a fake one so the
// supervisor's reconciliation logic can be exercised without a real
// orchestrator backend. It also lets tests inject failures (transient or
// terminal) for specific node ids.
package fake

import (
	"context"
	"fmt"
	"sync"

	v1 "github.com/aws/fleet-supervisor/pkg/apis/v1"
	"github.com/aws/fleet-supervisor/pkg/provisioner"
)

// Provisioner is a provisioner.Provisioner backed by in-process maps. The
// zero value is not usable; construct with New.
type Provisioner struct {
	mu sync.Mutex

	startErr     map[int64]error
	terminateErr map[int64]error
	started      map[int64]bool
	terminated   map[int64]bool
}

func New() *Provisioner {
	return &Provisioner{
		startErr:     map[int64]error{},
		terminateErr: map[int64]error{},
		started:      map[int64]bool{},
		terminated:   map[int64]bool{},
	}
}

// FailStart makes the next Start call for nodeID return err.
func (p *Provisioner) FailStart(nodeID int64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr[nodeID] = err
}

// FailTerminate makes the next Terminate call for nodeID return err.
func (p *Provisioner) FailTerminate(nodeID int64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminateErr[nodeID] = err
}

// Start is idempotent: a node already marked started returns nil without
// re-checking the injected error.
func (p *Provisioner) Start(_ context.Context, node *v1.Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started[node.ID] {
		return nil
	}
	if err, ok := p.startErr[node.ID]; ok {
		delete(p.startErr, node.ID)
		return err
	}
	p.started[node.ID] = true
	return nil
}

func (p *Provisioner) Terminate(_ context.Context, node *v1.Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminated[node.ID] {
		return nil
	}
	if err, ok := p.terminateErr[node.ID]; ok {
		delete(p.terminateErr, node.ID)
		return err
	}
	p.terminated[node.ID] = true
	return nil
}

// Started reports whether Start has ever succeeded for nodeID.
func (p *Provisioner) Started(nodeID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started[nodeID]
}

// Terminated reports whether Terminate has ever succeeded for nodeID.
func (p *Provisioner) Terminated(nodeID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated[nodeID]
}

// TransientErr builds a non-terminal provisioner.Error for op, the kind
// Start/Terminate callers see when the fake is told to fail without being
// told the failure is terminal.
func TransientErr(op string) error {
	return &provisioner.Error{Op: op, Terminal: false, Err: fmt.Errorf("fake: injected transient failure")}
}

// TerminalErr builds a terminal provisioner.Error for op.
func TerminalErr(op string) error {
	return &provisioner.Error{Op: op, Terminal: true, Err: fmt.Errorf("fake: injected terminal failure")}
}

var _ provisioner.Provisioner = (*Provisioner)(nil)
