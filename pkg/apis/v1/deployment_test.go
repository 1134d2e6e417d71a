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

import (
	"testing"
	"time"
)

func TestDeploymentIsActive(t *testing.T) {
	active := &Deployment{ID: 1}
	if !active.IsActive() {
		t.Error("IsActive() = false for a deployment with SupersededAt == nil")
	}

	ts := time.Now()
	superseded := &Deployment{ID: 1, SupersededAt: &ts}
	if superseded.IsActive() {
		t.Error("IsActive() = true for a deployment with SupersededAt set")
	}
}
