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

// Package supervisor implements the fleet reconciliation engine: a single
// tick() call that scans nodes by state, drives transitions, invokes the
// provisioner, enforces timeouts, and replaces nodes whose routing id has
// fallen entirely out of service on the active deployment. Several steps
// fan out across nodes with a bounded golang.org/x/sync/errgroup worker
// pool; the real serialization point is the store's conditional
// Transition, not an in-process lock.
package supervisor

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	v1 "github.com/aws/fleet-supervisor/pkg/apis/v1"
	fleeterrors "github.com/aws/fleet-supervisor/pkg/errors"
	"github.com/aws/fleet-supervisor/pkg/events"
	"github.com/aws/fleet-supervisor/pkg/metrics"
	"github.com/aws/fleet-supervisor/pkg/provisioner"
	"github.com/aws/fleet-supervisor/pkg/store"
)

// Timeouts bundles the per-state timeout configuration, sourced from
// options.Options. tick() reads every field except Pending: it calls start
// for every PENDING node on every pass, whatever the node's age.
type Timeouts struct {
	Pending    time.Duration
	Starting   time.Duration
	Outdated   time.Duration
	Idle       time.Duration
	Terminated time.Duration
	Error      time.Duration
}

// Controller is the reconciliation engine. The zero value is not usable;
// construct with New.
type Controller struct {
	Deployments store.DeploymentStore
	Nodes       store.NodeStore
	Provisioner provisioner.Provisioner
	Recorder    events.Recorder
	Metrics     *metrics.Metrics
	Clock       store.Clock
	Timeouts    Timeouts
	Concurrency int
	Log         logr.Logger
}

// New builds a Controller with sane defaults for fields a caller leaves
// zero (concurrency, clock, logger), requiring only the genuinely
// mandatory collaborators.
func New(deployments store.DeploymentStore, nodes store.NodeStore, p provisioner.Provisioner, recorder events.Recorder, m *metrics.Metrics) *Controller {
	return &Controller{
		Deployments: deployments,
		Nodes:       nodes,
		Provisioner: p,
		Recorder:    recorder,
		Metrics:     m,
		Clock:       store.RealClock{},
		Timeouts: Timeouts{
			Pending:    5 * time.Minute,
			Starting:   10 * time.Minute,
			Outdated:   24 * time.Hour,
			Idle:       5 * time.Minute,
			Terminated: 7 * 24 * time.Hour,
			Error:      7 * 24 * time.Hour,
		},
		Concurrency: 16,
		Log:         logr.Discard(),
	}
}

// retryOpts bounds the in-process retry of a transient provisioner call
// before the node is left for the next tick. A terminal provisioner error
// is returned at once, without further attempts.
var retryOpts = []retry.Option{
	retry.Attempts(3),
	retry.Delay(50 * time.Millisecond),
	retry.LastErrorOnly(true),
	retry.RetryIf(func(err error) bool { return !provisioner.IsTerminal(err) }),
}

// Tick runs one reconciliation pass. It never aborts early on a single
// node's error; each per-node step isolates failures so one bad node
// cannot stall reconciliation of the rest of the fleet.
func (c *Controller) Tick(ctx context.Context) error {
	start := c.Clock.Now()
	defer func() {
		if c.Metrics != nil {
			c.Metrics.TickDuration.Observe(c.Clock.Now().Sub(start).Seconds())
		}
	}()

	active, err := c.Deployments.GetActive(ctx)
	if err != nil {
		c.recordTickError()
		c.Log.Error(err, "loading active deployment")
		return err
	}
	if active == nil {
		c.Log.Info("no active deployment; skipping deployment-dependent steps")
	}

	if err := c.startPending(ctx); err != nil {
		c.recordTickError()
		return err
	}
	if err := c.timeoutStarting(ctx); err != nil {
		c.recordTickError()
		return err
	}
	if active != nil {
		if err := c.markOutdated(ctx, active); err != nil {
			c.recordTickError()
			return err
		}
		if err := c.replaceOutdated(ctx, active); err != nil {
			c.recordTickError()
			return err
		}
	}
	if err := c.timeoutOutdated(ctx); err != nil {
		c.recordTickError()
		return err
	}
	if err := c.terminateIdle(ctx); err != nil {
		c.recordTickError()
		return err
	}
	if err := c.timeoutIdle(ctx); err != nil {
		c.recordTickError()
		return err
	}
	if err := c.garbageCollect(ctx); err != nil {
		c.recordTickError()
		return err
	}

	c.refreshNodeGauge(ctx)
	return nil
}

func (c *Controller) recordTickError() {
	if c.Metrics != nil {
		c.Metrics.TickErrorsTotal.Inc()
	}
}

func (c *Controller) recordTransition(from, to v1.NodeState) {
	if c.Metrics != nil {
		c.Metrics.TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	}
}

// forEachNode fans f out across nodes with a pool bounded by
// c.Concurrency. A non-nil return from f cancels the context shared by the
// remaining calls; every f in this file handles its node's failure itself
// (event, metric or log) and returns nil, so one node's failure does not
// cancel the others.
func (c *Controller) forEachNode(ctx context.Context, nodes []*v1.Node, f func(ctx context.Context, n *v1.Node) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Concurrency)
	for _, n := range nodes {
		n := n
		g.Go(func() error {
			return f(gctx, n)
		})
	}
	return g.Wait()
}

// step 2: start pending nodes.
func (c *Controller) startPending(ctx context.Context) error {
	groups, err := c.Nodes.Search(ctx, v1.NodeSearch{States: []v1.NodeState{v1.NodeStatePending}})
	if err != nil {
		return err
	}
	return c.forEachNode(ctx, groups.Nodes(), func(ctx context.Context, n *v1.Node) error {
		err := retry.Do(func() error {
			return c.Provisioner.Start(ctx, n)
		}, retryOpts...)
		if err == nil {
			if _, terr := c.Nodes.Transition(ctx, n.ID, v1.NodeStatePending, v1.NodeStateStarting, store.TransitionOpts{}); terr == nil {
				c.recordTransition(v1.NodeStatePending, v1.NodeStateStarting)
			}
			return nil
		}
		if c.Metrics != nil {
			c.Metrics.ProvisionerErrors.WithLabelValues("start", string(fleeterrors.KindProvisionerStart)).Inc()
		}
		c.Recorder.Publish(provisionerErrorEvent(n, "start", err))
		if provisioner.IsTerminal(err) {
			msg := err.Error()
			if _, terr := c.Nodes.Transition(ctx, n.ID, v1.NodeStatePending, v1.NodeStateError, store.TransitionOpts{Error: &msg}); terr == nil {
				c.recordTransition(v1.NodeStatePending, v1.NodeStateError)
				c.Recorder.Publish(nodeErrorEvent(n, msg))
			}
		}
		return nil
	})
}

// step 3: timeout STARTING nodes that have overstayed.
func (c *Controller) timeoutStarting(ctx context.Context) error {
	deadline := c.Clock.Now().Add(-c.Timeouts.Starting)
	groups, err := c.Nodes.Search(ctx, v1.NodeSearch{States: []v1.NodeState{v1.NodeStateStarting}, OlderThan: &deadline})
	if err != nil {
		return err
	}
	return c.forEachNode(ctx, groups.Nodes(), func(ctx context.Context, n *v1.Node) error {
		msg := "startup_timeout"
		if _, err := c.Nodes.Transition(ctx, n.ID, v1.NodeStateStarting, v1.NodeStateError, store.TransitionOpts{Error: &msg}); err == nil {
			c.recordTransition(v1.NodeStateStarting, v1.NodeStateError)
			c.Recorder.Publish(nodeErrorEvent(n, msg))
		}
		return nil
	})
}

// step 4: mark RUNNING nodes outdated relative to the active deployment.
func (c *Controller) markOutdated(ctx context.Context, active *v1.Deployment) error {
	groups, err := c.Nodes.Search(ctx, v1.NodeSearch{States: []v1.NodeState{v1.NodeStateRunning}})
	if err != nil {
		return err
	}
	var stale []*v1.Node
	for _, n := range groups.Nodes() {
		if n.DeploymentID != active.ID {
			stale = append(stale, n)
		}
	}
	return c.forEachNode(ctx, stale, func(ctx context.Context, n *v1.Node) error {
		if _, err := c.Nodes.Transition(ctx, n.ID, v1.NodeStateRunning, v1.NodeStateOutdated, store.TransitionOpts{}); err == nil {
			c.recordTransition(v1.NodeStateRunning, v1.NodeStateOutdated)
			c.Recorder.Publish(nodeOutdatedEvent(n))
		}
		return nil
	})
}

// step 5: for every routing id with no active-deployment node in
// {PENDING, STARTING, RUNNING}, create a replacement.
func (c *Controller) replaceOutdated(ctx context.Context, active *v1.Deployment) error {
	groups, err := c.Nodes.Search(ctx, v1.NodeSearch{})
	if err != nil {
		return err
	}
	onActive, err := c.Nodes.Search(ctx, v1.NodeSearch{DeploymentID: &active.ID})
	if err != nil {
		return err
	}
	for routingID := range groups {
		if onActive.HasActive(routingID) {
			continue
		}
		n, err := c.Nodes.Create(ctx, routingID, active.ID)
		if err != nil {
			c.Log.Error(err, "creating replacement node", "routingID", routingID)
			continue
		}
		c.Recorder.Publish(replacementCreatedEvent(routingID, n))
	}
	return nil
}

// timeout OUTDATED nodes that never drained: escalate straight to IDLE.
func (c *Controller) timeoutOutdated(ctx context.Context) error {
	deadline := c.Clock.Now().Add(-c.Timeouts.Outdated)
	groups, err := c.Nodes.Search(ctx, v1.NodeSearch{States: []v1.NodeState{v1.NodeStateOutdated}, OlderThan: &deadline})
	if err != nil {
		return err
	}
	return c.forEachNode(ctx, groups.Nodes(), func(ctx context.Context, n *v1.Node) error {
		if _, err := c.Nodes.Idle(ctx, n.ID); err == nil {
			c.recordTransition(v1.NodeStateOutdated, v1.NodeStateIdle)
		}
		return nil
	})
}

// step 6: terminate IDLE nodes.
func (c *Controller) terminateIdle(ctx context.Context) error {
	groups, err := c.Nodes.Search(ctx, v1.NodeSearch{States: []v1.NodeState{v1.NodeStateIdle}})
	if err != nil {
		return err
	}
	return c.forEachNode(ctx, groups.Nodes(), func(ctx context.Context, n *v1.Node) error {
		err := retry.Do(func() error {
			return c.Provisioner.Terminate(ctx, n)
		}, retryOpts...)
		if err != nil {
			if c.Metrics != nil {
				c.Metrics.ProvisionerErrors.WithLabelValues("terminate", string(fleeterrors.KindProvisionerTerminate)).Inc()
			}
			c.Recorder.Publish(provisionerErrorEvent(n, "terminate", err))
			return nil
		}
		if _, terr := c.Nodes.Transition(ctx, n.ID, v1.NodeStateIdle, v1.NodeStateTerminated, store.TransitionOpts{}); terr == nil {
			c.recordTransition(v1.NodeStateIdle, v1.NodeStateTerminated)
		}
		return nil
	})
}

// timeout IDLE nodes stuck longer than the idle-terminate retry budget:
// escalate to ERROR so garbage collection eventually reclaims them.
func (c *Controller) timeoutIdle(ctx context.Context) error {
	deadline := c.Clock.Now().Add(-c.Timeouts.Idle)
	groups, err := c.Nodes.Search(ctx, v1.NodeSearch{States: []v1.NodeState{v1.NodeStateIdle}, OlderThan: &deadline})
	if err != nil {
		return err
	}
	return c.forEachNode(ctx, groups.Nodes(), func(ctx context.Context, n *v1.Node) error {
		msg := "terminate_retry_budget_exhausted"
		if _, err := c.Nodes.Transition(ctx, n.ID, v1.NodeStateIdle, v1.NodeStateError, store.TransitionOpts{Error: &msg}); err == nil {
			c.recordTransition(v1.NodeStateIdle, v1.NodeStateError)
			c.Recorder.Publish(nodeErrorEvent(n, msg))
		}
		return nil
	})
}

// step 7: garbage-collect terminal nodes past their retention timeout.
func (c *Controller) garbageCollect(ctx context.Context) error {
	terminatedDeadline := c.Clock.Now().Add(-c.Timeouts.Terminated)
	errorDeadline := c.Clock.Now().Add(-c.Timeouts.Error)

	groups, err := c.Nodes.Search(ctx, v1.NodeSearch{States: []v1.NodeState{v1.NodeStateTerminated, v1.NodeStateError}})
	if err != nil {
		return err
	}
	var due []*v1.Node
	for _, n := range groups.Nodes() {
		deadline := terminatedDeadline
		if n.State == v1.NodeStateError {
			deadline = errorDeadline
		}
		if n.LastStateTransitionAt.Before(deadline) {
			due = append(due, n)
		}
	}
	return c.forEachNode(ctx, due, func(ctx context.Context, n *v1.Node) error {
		if err := c.Nodes.Remove(ctx, n.ID); err != nil {
			c.Log.Error(err, "removing garbage-collected node", "nodeID", n.ID)
		}
		return nil
	})
}

func (c *Controller) refreshNodeGauge(ctx context.Context) {
	if c.Metrics == nil {
		return
	}
	groups, err := c.Nodes.Search(ctx, v1.NodeSearch{})
	if err != nil {
		return
	}
	counts := map[v1.NodeState]float64{}
	for _, n := range groups.Nodes() {
		counts[n.State]++
	}
	for _, s := range []v1.NodeState{
		v1.NodeStatePending, v1.NodeStateStarting, v1.NodeStateRunning,
		v1.NodeStateOutdated, v1.NodeStateIdle, v1.NodeStateTerminated, v1.NodeStateError,
	} {
		c.Metrics.NodesByState.WithLabelValues(string(s)).Set(counts[s])
	}
}
