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

package v1

import "testing"

func TestIsValidNodeTransition(t *testing.T) {
	cases := []struct {
		from, to NodeState
		want     bool
	}{
		{NodeStatePending, NodeStateStarting, true},
		{NodeStatePending, NodeStateError, true},
		{NodeStatePending, NodeStateRunning, false},
		{NodeStateStarting, NodeStateRunning, true},
		{NodeStateRunning, NodeStateOutdated, true},
		{NodeStateRunning, NodeStateIdle, true},
		{NodeStateOutdated, NodeStateIdle, true},
		{NodeStateOutdated, NodeStateRunning, false},
		{NodeStateIdle, NodeStateTerminated, true},
		{NodeStateTerminated, NodeStateIdle, false},
		{NodeStateError, NodeStateIdle, false},
	}
	for _, c := range cases {
		if got := IsValidNodeTransition(c.from, c.to); got != c.want {
			t.Errorf("IsValidNodeTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []NodeState{NodeStateTerminated, NodeStateError} {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
	}
	for _, s := range []NodeState{NodeStatePending, NodeStateStarting, NodeStateRunning, NodeStateOutdated, NodeStateIdle} {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
}

func TestNodeGroupsHasActive(t *testing.T) {
	groups := NodeGroups{
		"r1": {
			NodeStatePending: {{ID: 1}},
		},
		"r2": {
			NodeStateOutdated: {{ID: 2}},
		},
	}
	if !groups.HasActive("r1") {
		t.Error(`HasActive("r1") = false, want true`)
	}
	if groups.HasActive("r2") {
		t.Error(`HasActive("r2") = true, want false`)
	}
	if groups.HasActive("unknown") {
		t.Error(`HasActive("unknown") = true, want false`)
	}
}
