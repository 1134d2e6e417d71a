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

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/aws/fleet-supervisor/pkg/controllers/supervisor"
	"github.com/aws/fleet-supervisor/pkg/events"
	"github.com/aws/fleet-supervisor/pkg/metrics"
	"github.com/aws/fleet-supervisor/pkg/migrations"
	"github.com/aws/fleet-supervisor/pkg/operator/logging"
	"github.com/aws/fleet-supervisor/pkg/operator/options"
	"github.com/aws/fleet-supervisor/pkg/provisioner/fake"
	"github.com/aws/fleet-supervisor/pkg/scheduler"
	"github.com/aws/fleet-supervisor/pkg/store"
	"github.com/aws/fleet-supervisor/pkg/store/memory"
	"github.com/aws/fleet-supervisor/pkg/store/postgres"
)

const component = "supervisor"

func main() {
	opts := &options.Options{}
	fs := &options.FlagSet{FlagSet: flag.NewFlagSet(component, flag.ExitOnError)}
	opts.AddFlags(fs)
	if err := opts.Parse(fs, os.Args[1:]...); err != nil {
		fmt.Fprintf(os.Stderr, "parsing options: %s\n", err)
		os.Exit(1)
	}

	zapLog := logging.NewLogger(component, opts.LogLevel, opts.LogOutputPaths, opts.LogErrorOutputPaths)
	defer zapLog.Sync() //nolint:errcheck
	log := logging.NewLogr(zapLog)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	deployments, nodes, err := wireStores(ctx, opts, zapLog)
	if err != nil {
		log.Error(err, "wiring stores")
		os.Exit(1)
	}

	m := metrics.New()
	recorder := events.NewRecorder(events.LogSink{Log: log})
	prov := wireProvisioner(opts)

	ctrl := supervisor.New(deployments, nodes, prov, recorder, m)
	ctrl.Clock = store.RealClock{}
	ctrl.Concurrency = opts.TickConcurrency
	ctrl.Log = log
	ctrl.Timeouts = supervisor.Timeouts{
		Pending:    opts.PendingTimeout,
		Starting:   opts.StartingTimeout,
		Outdated:   opts.OutdatedTimeout,
		Idle:       opts.IdleTimeout,
		Terminated: opts.TerminatedTimeout,
		Error:      opts.ErrorTimeout,
	}

	go serveMetrics(m, opts.MetricsPort, log)

	log.Info("starting supervisor", "tickInterval", opts.TickInterval, "provisioner", opts.Provisioner)
	scheduler.Run(ctx, ctrl, opts.TickInterval, log)
}

func wireStores(_ context.Context, opts *options.Options, zapLog *zap.Logger) (store.DeploymentStore, store.NodeStore, error) {
	if opts.DatabaseDSN == "" {
		clock := store.RealClock{}
		return memory.NewDeploymentStore(clock), memory.NewNodeStore(clock), nil
	}

	sqlDB, err := sql.Open("pgx", opts.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := migrations.Up(sqlDB); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	db := sqlx.NewDb(sqlDB, "pgx")
	return postgres.NewDeploymentStore(db, zapLog), postgres.NewNodeStore(db, zapLog), nil
}

func wireProvisioner(opts *options.Options) *fake.Provisioner {
	// The reference binary only ships the fake, in-memory provisioner;
	// opts.Provisioner is read so a real backend has a named place to
	// plug in without changing this wiring function's signature.
	_ = opts.Provisioner
	return fake.New()
}

func serveMetrics(m *metrics.Metrics, port int, log logr.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	log.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec
		log.Info("metrics server stopped", "error", err.Error())
	}
}
