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

package errors

import (
	"errors"
	"testing"
)

func TestKindOfAndIs(t *testing.T) {
	err := New("NodeStore.Transition", KindNodeTransitionInvalid, nil)

	kind, ok := KindOf(err)
	if !ok || kind != KindNodeTransitionInvalid {
		t.Errorf("KindOf() = (%v, %v), want (%v, true)", kind, ok, KindNodeTransitionInvalid)
	}
	if !Is(err, KindNodeTransitionInvalid) {
		t.Error("Is(err, KindNodeTransitionInvalid) = false, want true")
	}
	if Is(err, KindNodeNotFound) {
		t.Error("Is(err, KindNodeNotFound) = true, want false")
	}
}

func TestKindOfFalseForPlainError(t *testing.T) {
	if _, ok := KindOf(errors.New("boom")); ok {
		t.Error("KindOf(plain error) ok = true, want false")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := New("DeploymentStore.Create", KindDeploymentCreation, cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}
