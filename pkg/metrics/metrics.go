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

// Package metrics exposes the supervisor's Prometheus surface: one tick
// duration histogram, a per-state node gauge, a transition counter labeled
// by (from, to), and a provisioner error counter labeled by (op, kind).
// Everything registers
// against a private *prometheus.Registry so cmd/supervisor decides whether
// and where to expose it, rather than leaning on the global default
// registry the way a library should not.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	Namespace         = "fleet_supervisor"
	TickSubsystem     = "tick"
	NodeSubsystem     = "nodes"
	ProvisionerSubsys = "provisioner"

	StateLabel      = "state"
	FromLabel       = "from"
	ToLabel         = "to"
	OpLabel         = "op"
	KindLabel       = "kind"
	RoutingIDLabel  = "routing_id"
)

// Metrics bundles every collector the supervisor touches, registered
// together against one private registry.
type Metrics struct {
	Registry *prometheus.Registry

	TickDuration     prometheus.Histogram
	TickErrorsTotal  prometheus.Counter
	NodesByState     *prometheus.GaugeVec
	TransitionsTotal *prometheus.CounterVec
	ProvisionerErrors *prometheus.CounterVec
}

// New builds and registers the full metrics surface against a fresh
// private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: TickSubsystem,
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a single supervisor tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		TickErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: TickSubsystem,
			Name:      "errors_total",
			Help:      "Number of ticks that returned a non-nil error.",
		}),
		NodesByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: NodeSubsystem,
			Name:      "by_state",
			Help:      "Current count of nodes in each state, refreshed once per tick.",
		}, []string{StateLabel}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: NodeSubsystem,
			Name:      "transitions_total",
			Help:      "Number of node state transitions applied, labeled by (from, to).",
		}, []string{FromLabel, ToLabel}),
		ProvisionerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: ProvisionerSubsys,
			Name:      "errors_total",
			Help:      "Number of provisioner call failures, labeled by (op, kind).",
		}, []string{OpLabel, KindLabel}),
	}

	reg.MustRegister(
		m.TickDuration,
		m.TickErrorsTotal,
		m.NodesByState,
		m.TransitionsTotal,
		m.ProvisionerErrors,
	)
	return m
}
