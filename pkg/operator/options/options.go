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

// Package options declares the flag/env-driven Options type: each setting
// is a flag with an environment-variable fallback, the env var only
// consulted when the flag default applies.
package options

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"
)

// Options bundles every process-level setting the supervisor binary reads.
type Options struct {
	TickInterval        time.Duration
	TickConcurrency     int
	Provisioner         string
	DatabaseDSN         string
	MetricsPort         int
	LogLevel            string
	LogOutputPaths      string
	LogErrorOutputPaths string

	PendingTimeout    time.Duration
	StartingTimeout   time.Duration
	OutdatedTimeout   time.Duration
	IdleTimeout       time.Duration
	TerminatedTimeout time.Duration
	ErrorTimeout      time.Duration
}

// FlagSet wraps the standard library's flag.FlagSet as the seam where an
// env-var fallback is threaded through.
type FlagSet struct {
	*flag.FlagSet
}

func (o *Options) AddFlags(fs *FlagSet) {
	fs.DurationVar(&o.TickInterval, "tick-interval", withDefaultDuration("TICK_INTERVAL", time.Second), "How often tick() runs.")
	fs.IntVar(&o.TickConcurrency, "tick-concurrency", withDefaultInt("TICK_CONCURRENCY", 16), "Bounded fan-out width used inside a single tick.")
	fs.StringVar(&o.Provisioner, "provisioner", withDefaultString("PROVISIONER", "fake"), "Selected node provisioner backend.")
	fs.StringVar(&o.DatabaseDSN, "database-dsn", withDefaultString("DATABASE_DSN", ""), "PostgreSQL connection string for the node/deployment stores. Empty selects the in-memory store.")
	fs.IntVar(&o.MetricsPort, "metrics-port", withDefaultInt("METRICS_PORT", 8080), "The port the Prometheus metrics endpoint binds to.")
	fs.StringVar(&o.LogLevel, "log-level", withDefaultString("LOG_LEVEL", "info"), "Log verbosity level. Can be one of 'debug', 'info', or 'error'.")
	fs.StringVar(&o.LogOutputPaths, "log-output-paths", withDefaultString("LOG_OUTPUT_PATHS", "stdout"), "Optional comma separated paths for directing log output.")
	fs.StringVar(&o.LogErrorOutputPaths, "log-error-output-paths", withDefaultString("LOG_ERROR_OUTPUT_PATHS", "stderr"), "Optional comma separated paths for logging error output.")

	fs.DurationVar(&o.PendingTimeout, "pending-timeout", withDefaultDuration("PENDING_TIMEOUT", 5*time.Minute), "Timeout for PENDING nodes. Start is re-attempted for every PENDING node on every tick, so this value does not change when a retry happens.")
	fs.DurationVar(&o.StartingTimeout, "starting-timeout", withDefaultDuration("STARTING_TIMEOUT", 10*time.Minute), "Age of a STARTING node at which it is marked ERROR.")
	fs.DurationVar(&o.OutdatedTimeout, "outdated-timeout", withDefaultDuration("OUTDATED_TIMEOUT", 24*time.Hour), "Age of an OUTDATED node at which it is marked IDLE regardless of drain signal.")
	fs.DurationVar(&o.IdleTimeout, "idle-timeout", withDefaultDuration("IDLE_TIMEOUT", 5*time.Minute), "Age of an IDLE node at which it is marked ERROR; until then terminate is re-attempted on every tick.")
	fs.DurationVar(&o.TerminatedTimeout, "terminated-timeout", withDefaultDuration("TERMINATED_TIMEOUT", 7*24*time.Hour), "Age of a TERMINATED node at which its row is removed.")
	fs.DurationVar(&o.ErrorTimeout, "error-timeout", withDefaultDuration("ERROR_TIMEOUT", 7*24*time.Hour), "Age of an ERROR node at which its row is removed.")
}

var validLogLevels = map[string]bool{"": true, "debug": true, "info": true, "error": true}

// Parse parses args against fs and validates the result.
func (o *Options) Parse(fs *FlagSet, args ...string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		return fmt.Errorf("parsing flags: %w", err)
	}
	if !validLogLevels[o.LogLevel] {
		return fmt.Errorf("validating cli flags / env vars: invalid LOG_LEVEL %q", o.LogLevel)
	}
	if o.TickConcurrency <= 0 {
		return fmt.Errorf("validating cli flags / env vars: TICK_CONCURRENCY must be positive, got %d", o.TickConcurrency)
	}
	return nil
}
