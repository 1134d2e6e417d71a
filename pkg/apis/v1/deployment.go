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

import "time"

// Deployment is a versioned code artifact identified by a content hash.
// At most one Deployment has SupersededAt == nil (the active deployment) at
// any instant; deployments are append-only and are never deleted.
type Deployment struct {
	ID           int64      `db:"id" json:"id"`
	CommitID     string     `db:"commit_id" json:"commitId"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	SupersededAt *time.Time `db:"superseded_at" json:"supersededAt,omitempty"`
}

// IsActive reports whether this deployment is the current active deployment.
func (d *Deployment) IsActive() bool {
	return d.SupersededAt == nil
}
