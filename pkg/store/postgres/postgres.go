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

// Package postgres implements store.DeploymentStore and store.NodeStore
// against PostgreSQL, queried through jackc/pgx/v5's database/sql driver and
// scanned with jmoiron/sqlx. All cross-process coordination lives here:
// Create's supersede-then-insert runs inside one transaction, and
// Transition is a single conditional UPDATE guarded by the observed "from"
// state, so concurrent supervisors never need in-process locks.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	v1 "github.com/aws/fleet-supervisor/pkg/apis/v1"
	fleeterrors "github.com/aws/fleet-supervisor/pkg/errors"
	"github.com/aws/fleet-supervisor/pkg/store"
)

// DeploymentStore is a store.DeploymentStore backed by the deployments
// table.
type DeploymentStore struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewDeploymentStore(db *sqlx.DB, log *zap.Logger) *DeploymentStore {
	return &DeploymentStore{db: db, log: log}
}

// Create supersedes every currently-active deployment and inserts a new one
// in a single transaction, so no observer ever sees zero or two active rows.
func (s *DeploymentStore) Create(ctx context.Context, commitID string) (*v1.Deployment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fleeterrors.New("DeploymentStore.Create", fleeterrors.KindDeploymentCreation, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE deployments SET superseded_at = now() WHERE superseded_at IS NULL`); err != nil {
		return nil, fleeterrors.New("DeploymentStore.Create", fleeterrors.KindDeploymentCreation, err)
	}

	var d v1.Deployment
	row := tx.QueryRowxContext(ctx, `
		INSERT INTO deployments (commit_id, created_at)
		VALUES ($1, now())
		RETURNING id, commit_id, created_at, superseded_at`, commitID)
	if err := row.StructScan(&d); err != nil {
		return nil, fleeterrors.New("DeploymentStore.Create", fleeterrors.KindDeploymentCreation, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fleeterrors.New("DeploymentStore.Create", fleeterrors.KindDeploymentCreation, err)
	}
	return &d, nil
}

func (s *DeploymentStore) GetActive(ctx context.Context) (*v1.Deployment, error) {
	var d v1.Deployment
	err := s.db.GetContext(ctx, &d, `
		SELECT id, commit_id, created_at, superseded_at
		FROM deployments
		WHERE superseded_at IS NULL`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fleeterrors.New("DeploymentStore.GetActive", fleeterrors.KindDeploymentGetActive, err)
	}
	return &d, nil
}

func (s *DeploymentStore) Get(ctx context.Context, id int64) (*v1.Deployment, error) {
	var d v1.Deployment
	err := s.db.GetContext(ctx, &d, `
		SELECT id, commit_id, created_at, superseded_at
		FROM deployments
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fleeterrors.New("DeploymentStore.Get", fleeterrors.KindDeploymentNotFound, nil)
	}
	if err != nil {
		return nil, fleeterrors.New("DeploymentStore.Get", fleeterrors.KindDeploymentNotFound, err)
	}
	return &d, nil
}

// NodeStore is a store.NodeStore backed by the nodes table.
type NodeStore struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewNodeStore(db *sqlx.DB, log *zap.Logger) *NodeStore {
	return &NodeStore{db: db, log: log}
}

func (s *NodeStore) Create(ctx context.Context, routingID string, deploymentID int64) (*v1.Node, error) {
	var n v1.Node
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO nodes (routing_id, deployment_id, state, created_at, last_state_transition_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, routing_id, deployment_id, state, url, error, created_at, last_state_transition_at`,
		routingID, deploymentID, v1.NodeStatePending)
	if err := row.StructScan(&n); err != nil {
		return nil, fleeterrors.New("NodeStore.Create", fleeterrors.KindNodeNotFound, err)
	}
	return &n, nil
}

func (s *NodeStore) Get(ctx context.Context, id int64) (*v1.Node, error) {
	var n v1.Node
	err := s.db.GetContext(ctx, &n, `
		SELECT id, routing_id, deployment_id, state, url, error, created_at, last_state_transition_at
		FROM nodes
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fleeterrors.New("NodeStore.Get", fleeterrors.KindNodeNotFound, nil)
	}
	if err != nil {
		return nil, fleeterrors.New("NodeStore.Get", fleeterrors.KindNodeNotFound, err)
	}
	return &n, nil
}

// Search builds a single dynamic SELECT from the non-zero fields of q and
// groups the rows the way the supervisor's tick() needs them.
func (s *NodeStore) Search(ctx context.Context, q v1.NodeSearch) (v1.NodeGroups, error) {
	query := `SELECT id, routing_id, deployment_id, state, url, error, created_at, last_state_transition_at FROM nodes WHERE 1 = 1`
	var args []interface{}

	if len(q.States) > 0 {
		query += fmt.Sprintf(" AND state = ANY($%d)", len(args)+1)
		states := make([]string, len(q.States))
		for i, st := range q.States {
			states[i] = string(st)
		}
		args = append(args, states)
	}
	if q.DeploymentID != nil {
		query += fmt.Sprintf(" AND deployment_id = $%d", len(args)+1)
		args = append(args, *q.DeploymentID)
	}
	if q.RoutingID != nil {
		query += fmt.Sprintf(" AND routing_id = $%d", len(args)+1)
		args = append(args, *q.RoutingID)
	}
	if q.OlderThan != nil {
		query += fmt.Sprintf(" AND last_state_transition_at < $%d", len(args)+1)
		args = append(args, *q.OlderThan)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fleeterrors.New("NodeStore.Search", fleeterrors.KindNodeNotFound, err)
	}
	defer rows.Close()

	groups := v1.NodeGroups{}
	for rows.Next() {
		var n v1.Node
		if err := rows.StructScan(&n); err != nil {
			return nil, fleeterrors.New("NodeStore.Search", fleeterrors.KindNodeNotFound, err)
		}
		byState, ok := groups[n.RoutingID]
		if !ok {
			byState = map[v1.NodeState][]*v1.Node{}
			groups[n.RoutingID] = byState
		}
		cp := n
		byState[n.State] = append(byState[n.State], &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fleeterrors.New("NodeStore.Search", fleeterrors.KindNodeNotFound, err)
	}
	return groups, nil
}

// Transition is the sole mutation primitive: a single conditional UPDATE
// guarded by the observed "from" state. Zero rows affected means either the
// node doesn't exist or another supervisor already moved it; both collapse
// to KindNodeTransitionInvalid. (The in-memory store reports a missing node
// as KindNodeNotFound instead.)
func (s *NodeStore) Transition(ctx context.Context, id int64, from, to v1.NodeState, opts store.TransitionOpts) (*v1.Node, error) {
	if !v1.IsValidNodeTransition(from, to) {
		return nil, fleeterrors.New("NodeStore.Transition", fleeterrors.KindNodeTransitionInvalid, nil)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE nodes
		SET state = $1,
		    last_state_transition_at = now(),
		    url = COALESCE($2, url),
		    error = COALESCE($3, error)
		WHERE id = $4 AND state = $5`,
		to, opts.URL, opts.Error, id, from)
	if err != nil {
		return nil, fleeterrors.New("NodeStore.Transition", fleeterrors.KindNodeTransitionInvalid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fleeterrors.New("NodeStore.Transition", fleeterrors.KindNodeTransitionInvalid, err)
	}
	if n == 0 {
		return nil, fleeterrors.New("NodeStore.Transition", fleeterrors.KindNodeTransitionInvalid, nil)
	}
	return s.Get(ctx, id)
}

func (s *NodeStore) Register(ctx context.Context, id int64, url string) (*v1.Node, error) {
	return s.Transition(ctx, id, v1.NodeStateStarting, v1.NodeStateRunning, store.TransitionOpts{URL: &url})
}

// Idle moves a node to NodeStateIdle from whichever of RUNNING or OUTDATED
// it currently holds.
func (s *NodeStore) Idle(ctx context.Context, id int64) (*v1.Node, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE nodes
		SET state = $1, last_state_transition_at = now()
		WHERE id = $2 AND state IN ($3, $4)`,
		v1.NodeStateIdle, id, v1.NodeStateRunning, v1.NodeStateOutdated)
	if err != nil {
		return nil, fleeterrors.New("NodeStore.Idle", fleeterrors.KindNodeTransitionInvalid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fleeterrors.New("NodeStore.Idle", fleeterrors.KindNodeTransitionInvalid, err)
	}
	if n == 0 {
		return nil, fleeterrors.New("NodeStore.Idle", fleeterrors.KindNodeTransitionInvalid, nil)
	}
	return s.Get(ctx, id)
}

func (s *NodeStore) Remove(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM nodes
		WHERE id = $1 AND state IN ($2, $3)`,
		id, v1.NodeStateTerminated, v1.NodeStateError)
	if err != nil {
		return fleeterrors.New("NodeStore.Remove", fleeterrors.KindNodeNotTerminal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fleeterrors.New("NodeStore.Remove", fleeterrors.KindNodeNotTerminal, err)
	}
	if n == 0 {
		return fleeterrors.New("NodeStore.Remove", fleeterrors.KindNodeNotTerminal, nil)
	}
	return nil
}

// Open connects to dsn with sane pool defaults and pings once to fail fast
// on misconfiguration rather than limping into the reconcile loop.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return db, nil
}

var _ store.DeploymentStore = (*DeploymentStore)(nil)
var _ store.NodeStore = (*NodeStore)(nil)
