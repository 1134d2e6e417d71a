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

package supervisor

import (
	"fmt"

	v1 "github.com/aws/fleet-supervisor/pkg/apis/v1"
	"github.com/aws/fleet-supervisor/pkg/events"
)

// Event reason strings: one constructor function per externally-observable
// transition below, each dedupe-keyed on the node id except the
// replacement event, which is keyed on the routing id.
const (
	ReasonNodeError        = "NodeError"
	ReasonNodeOutdated     = "NodeOutdated"
	ReasonReplacementCreated = "ReplacementCreated"
	ReasonProvisionerError = "ProvisionerError"
)

func nodeErrorEvent(node *v1.Node, cause string) events.Event {
	return events.Event{
		InvolvedNode: node,
		Type:         events.TypeWarning,
		Reason:       ReasonNodeError,
		Message:      fmt.Sprintf("node %d entered ERROR: %s", node.ID, cause),
		DedupeValues: []string{fmt.Sprint(node.ID)},
	}
}

func nodeOutdatedEvent(node *v1.Node) events.Event {
	return events.Event{
		InvolvedNode: node,
		Type:         events.TypeNormal,
		Reason:       ReasonNodeOutdated,
		Message:      fmt.Sprintf("node %d marked OUTDATED", node.ID),
		DedupeValues: []string{fmt.Sprint(node.ID)},
	}
}

func replacementCreatedEvent(routingID string, node *v1.Node) events.Event {
	return events.Event{
		InvolvedNode: node,
		Type:         events.TypeNormal,
		Reason:       ReasonReplacementCreated,
		Message:      fmt.Sprintf("replacement node %d created for routing id %s", node.ID, routingID),
		DedupeValues: []string{routingID},
	}
}

func provisionerErrorEvent(node *v1.Node, op string, err error) events.Event {
	return events.Event{
		InvolvedNode: node,
		Type:         events.TypeWarning,
		Reason:       ReasonProvisionerError,
		Message:      fmt.Sprintf("%s failed for node %d: %s", op, node.ID, err),
		DedupeValues: []string{fmt.Sprint(node.ID), op},
	}
}
