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

// Package scheduler drives supervisor.Controller.Tick on a fixed interval:
// a single long-lived loop that never overlaps two ticks and completes an
// in-flight tick before observing cancellation.
package scheduler

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// Ticker is the subset of *supervisor.Controller the scheduler depends on.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Run invokes t.Tick every interval until ctx is cancelled. It does not
// start a new tick concurrently with one still running; if a tick takes
// longer than interval, the next one starts immediately after it finishes
// rather than firing twice in a burst.
func Run(ctx context.Context, t Ticker, interval time.Duration, log logr.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopping")
			return
		case <-ticker.C:
			if err := t.Tick(ctx); err != nil {
				log.Error(err, "tick failed")
			}
		}
	}
}
