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

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	v1 "github.com/aws/fleet-supervisor/pkg/apis/v1"
	fleeterrors "github.com/aws/fleet-supervisor/pkg/errors"
	"github.com/aws/fleet-supervisor/pkg/store"
)

var _ = Describe("DeploymentStore", func() {
	var (
		ctx  context.Context
		repo *DeploymentStore
		db   *sqlx.DB
		mock sqlmock.Sqlmock
	)

	BeforeEach(func() {
		ctx = context.Background()

		mockDB, mockSQL, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())

		db = sqlx.NewDb(mockDB, "sqlmock")
		mock = mockSQL
		repo = NewDeploymentStore(db, zap.NewNop())
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	Describe("Create", func() {
		It("supersedes the active row and inserts the new one inside one transaction", func() {
			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE deployments SET superseded_at = now\(\) WHERE superseded_at IS NULL`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			rows := sqlmock.NewRows([]string{"id", "commit_id", "created_at", "superseded_at"}).
				AddRow(int64(2), "abc123", time.Now(), nil)
			mock.ExpectQuery(`INSERT INTO deployments`).
				WithArgs("abc123").
				WillReturnRows(rows)
			mock.ExpectCommit()

			d, err := repo.Create(ctx, "abc123")
			Expect(err).ToNot(HaveOccurred())
			Expect(d.CommitID).To(Equal("abc123"))
			Expect(d.IsActive()).To(BeTrue())
		})

		It("rolls back and reports deployment_creation_error when the supersede fails", func() {
			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE deployments`).WillReturnError(errors.New("boom"))
			mock.ExpectRollback()

			_, err := repo.Create(ctx, "abc123")
			Expect(fleeterrors.Is(err, fleeterrors.KindDeploymentCreation)).To(BeTrue())
		})
	})

	Describe("GetActive", func() {
		It("returns nil, nil when no deployment is active", func() {
			mock.ExpectQuery(`SELECT id, commit_id, created_at, superseded_at`).
				WillReturnRows(sqlmock.NewRows([]string{"id", "commit_id", "created_at", "superseded_at"}))

			d, err := repo.GetActive(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(d).To(BeNil())
		})
	})

	Describe("Get", func() {
		It("reports deployment_not_found when the row is missing", func() {
			mock.ExpectQuery(`SELECT id, commit_id, created_at, superseded_at`).
				WithArgs(int64(99)).
				WillReturnRows(sqlmock.NewRows([]string{"id", "commit_id", "created_at", "superseded_at"}))

			_, err := repo.Get(ctx, 99)
			Expect(fleeterrors.Is(err, fleeterrors.KindDeploymentNotFound)).To(BeTrue())
		})
	})
})

var _ = Describe("NodeStore", func() {
	var (
		ctx  context.Context
		repo *NodeStore
		db   *sqlx.DB
		mock sqlmock.Sqlmock
	)

	BeforeEach(func() {
		ctx = context.Background()

		mockDB, mockSQL, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())

		db = sqlx.NewDb(mockDB, "sqlmock")
		mock = mockSQL
		repo = NewNodeStore(db, zap.NewNop())
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	Describe("Transition", func() {
		It("rejects an edge that is not in the state machine without touching the database", func() {
			_, err := repo.Transition(ctx, 1, v1.NodeStateIdle, v1.NodeStatePending, store.TransitionOpts{})
			Expect(fleeterrors.Is(err, fleeterrors.KindNodeTransitionInvalid)).To(BeTrue())
		})

		It("fails node_transition_invalid when zero rows matched the conditional UPDATE", func() {
			mock.ExpectExec(`UPDATE nodes`).
				WithArgs(v1.NodeStateStarting, nil, nil, int64(1), v1.NodeStatePending).
				WillReturnResult(sqlmock.NewResult(0, 0))

			_, err := repo.Transition(ctx, 1, v1.NodeStatePending, v1.NodeStateStarting, store.TransitionOpts{})
			Expect(fleeterrors.Is(err, fleeterrors.KindNodeTransitionInvalid)).To(BeTrue())
		})

		It("re-fetches and returns the row when one row matched", func() {
			mock.ExpectExec(`UPDATE nodes`).
				WithArgs(v1.NodeStateStarting, nil, nil, int64(1), v1.NodeStatePending).
				WillReturnResult(sqlmock.NewResult(0, 1))
			rows := sqlmock.NewRows([]string{"id", "routing_id", "deployment_id", "state", "url", "error", "created_at", "last_state_transition_at"}).
				AddRow(int64(1), "us-east-1", int64(7), v1.NodeStateStarting, nil, nil, time.Now(), time.Now())
			mock.ExpectQuery(`SELECT id, routing_id, deployment_id, state, url, error, created_at, last_state_transition_at`).
				WithArgs(int64(1)).
				WillReturnRows(rows)

			n, err := repo.Transition(ctx, 1, v1.NodeStatePending, v1.NodeStateStarting, store.TransitionOpts{})
			Expect(err).ToNot(HaveOccurred())
			Expect(n.State).To(Equal(v1.NodeStateStarting))
		})
	})

	Describe("Remove", func() {
		It("fails node_not_terminal when the row isn't in TERMINATED or ERROR", func() {
			mock.ExpectExec(`DELETE FROM nodes`).
				WithArgs(int64(1), v1.NodeStateTerminated, v1.NodeStateError).
				WillReturnResult(sqlmock.NewResult(0, 0))

			err := repo.Remove(ctx, 1)
			Expect(fleeterrors.Is(err, fleeterrors.KindNodeNotTerminal)).To(BeTrue())
		})
	})
})
