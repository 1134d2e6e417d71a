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

package options

import (
	"flag"
	"testing"
	"time"
)

func parse(t *testing.T, args ...string) *Options {
	t.Helper()
	o := &Options{}
	fs := &FlagSet{FlagSet: flag.NewFlagSet("test", flag.ContinueOnError)}
	o.AddFlags(fs)
	if err := o.Parse(fs, args...); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return o
}

func TestDefaults(t *testing.T) {
	o := parse(t)
	if o.TickInterval != time.Second {
		t.Errorf("TickInterval = %v, want 1s", o.TickInterval)
	}
	if o.Provisioner != "fake" {
		t.Errorf("Provisioner = %q, want fake", o.Provisioner)
	}
	if o.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", o.LogLevel)
	}
	if o.StartingTimeout != 10*time.Minute {
		t.Errorf("StartingTimeout = %v, want 10m", o.StartingTimeout)
	}
}

func TestFlagOverridesDefault(t *testing.T) {
	o := parse(t, "-tick-interval=5s", "-provisioner=real")
	if o.TickInterval != 5*time.Second {
		t.Errorf("TickInterval = %v, want 5s", o.TickInterval)
	}
	if o.Provisioner != "real" {
		t.Errorf("Provisioner = %q, want real", o.Provisioner)
	}
}

func TestInvalidLogLevelRejected(t *testing.T) {
	o := &Options{}
	fs := &FlagSet{FlagSet: flag.NewFlagSet("test", flag.ContinueOnError)}
	o.AddFlags(fs)
	if err := o.Parse(fs, "-log-level=verbose"); err == nil {
		t.Fatal("Parse() error = nil, want error for invalid log level")
	}
}

func TestNonPositiveTickConcurrencyRejected(t *testing.T) {
	o := &Options{}
	fs := &FlagSet{FlagSet: flag.NewFlagSet("test", flag.ContinueOnError)}
	o.AddFlags(fs)
	if err := o.Parse(fs, "-tick-concurrency=0"); err == nil {
		t.Fatal("Parse() error = nil, want error for non-positive tick concurrency")
	}
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "30s")
	o := parse(t)
	if o.TickInterval != 30*time.Second {
		t.Errorf("TickInterval = %v, want 30s from env", o.TickInterval)
	}
}
