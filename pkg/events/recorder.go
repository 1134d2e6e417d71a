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

// Package events publishes a deduplicated record of externally-observable
// node transitions. A Recorder fronts an arbitrary Sink: the core ships a
// logging sink and leaves wiring a real one (webhook, audit log, pub/sub)
// to the caller.
package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	v1 "github.com/aws/fleet-supervisor/pkg/apis/v1"
)

// Event describes a single externally-observable occurrence tied to a node.
type Event struct {
	InvolvedNode  *v1.Node
	Type          string
	Reason        string
	Message       string
	DedupeValues  []string
	DedupeTimeout time.Duration
	RateLimiter   RateLimiter
}

func (e Event) dedupeKey() string {
	return fmt.Sprintf("%s-%s",
		strings.ToLower(e.Reason),
		strings.Join(e.DedupeValues, "-"),
	)
}

// Event type values.
const (
	TypeNormal  = "Normal"
	TypeWarning = "Warning"
)

// Sink receives a published Event after dedupe and rate-limiting have let
// it through. The core ships only LogSink; a real deployment wires a sink
// of its own (webhook, audit log, pub/sub).
type Sink interface {
	Record(Event)
}

// RateLimiter gates publication of an Event beyond dedupe.
type RateLimiter interface {
	TryAccept() bool
}

// Recorder is the publish-side contract the supervisor depends on.
type Recorder interface {
	Publish(...Event)
}

type recorder struct {
	sink  Sink
	cache *cache.Cache
}

const defaultDedupeTimeout = 2 * time.Minute

// NewRecorder builds a Recorder that dedupes through a short-lived
// patrickmn/go-cache instance before forwarding surviving events to sink.
func NewRecorder(sink Sink) Recorder {
	return &recorder{
		sink:  sink,
		cache: cache.New(defaultDedupeTimeout, 10*time.Second),
	}
}

func (r *recorder) Publish(evts ...Event) {
	for _, evt := range evts {
		r.publishEvent(evt)
	}
}

func (r *recorder) publishEvent(evt Event) {
	timeout := defaultDedupeTimeout
	if evt.DedupeTimeout != 0 {
		timeout = evt.DedupeTimeout
	}
	if len(evt.DedupeValues) > 0 && !r.shouldCreateEvent(evt.dedupeKey(), timeout) {
		return
	}
	if evt.RateLimiter != nil && !evt.RateLimiter.TryAccept() {
		return
	}
	r.sink.Record(evt)
}

func (r *recorder) shouldCreateEvent(key string, timeout time.Duration) bool {
	if _, exists := r.cache.Get(key); exists {
		return false
	}
	r.cache.Set(key, nil, timeout)
	return true
}
