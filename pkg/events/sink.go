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

package events

import "github.com/go-logr/logr"

// LogSink is the Sink the reference binary wires by default: one structured
// log line per surviving event, at Info for TypeNormal and at Error for
// TypeWarning.
type LogSink struct {
	Log logr.Logger
}

func (s LogSink) Record(evt Event) {
	log := s.Log.WithValues("reason", evt.Reason)
	if evt.InvolvedNode != nil {
		log = log.WithValues("nodeID", evt.InvolvedNode.ID, "routingID", evt.InvolvedNode.RoutingID)
	}
	if evt.Type == TypeWarning {
		log.Error(nil, evt.Message)
		return
	}
	log.Info(evt.Message)
}

var _ Sink = LogSink{}
