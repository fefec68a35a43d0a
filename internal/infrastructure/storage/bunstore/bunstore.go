// Package bunstore is a Postgres-backed implementation of
// expression.Storage, grounded on the teacher's BunStore (bun +
// pgdialect + pgdriver, one *Model per aggregate, upsert on conflict).
package bunstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/smilemakc/flowexpr/internal/application/expression"
	"github.com/smilemakc/flowexpr/internal/domain"
)

// Store persists one row per live expression, keyed by (workflow_id,
// exp_id, child_id). Tree and variables are marshalled to jsonb the way
// the teacher's WorkflowModel stores Spec.
type Store struct {
	db *bun.DB
}

// New opens a bun.DB against dsn using the pgdriver connector.
func New(dsn string) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return &Store{db: bun.NewDB(sqldb, pgdialect.New())}
}

// InitSchema creates the expressions table if it doesn't already exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*Model)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Model is the bun row for one live expression.
type Model struct {
	bun.BaseModel `bun:"table:expressions,alias:e"`

	WorkflowID      string         `bun:"workflow_id,pk"`
	ExpID           string         `bun:"exp_id,pk"`
	ChildID         int            `bun:"child_id,pk"`
	ParentWorkflow  string         `bun:"parent_workflow_id"`
	ParentExpID     string         `bun:"parent_exp_id"`
	ParentChildID   int            `bun:"parent_child_id"`
	HasParent       bool           `bun:"has_parent"`
	OriginalTree    map[string]any `bun:"original_tree,type:jsonb"`
	UpdatedTree     map[string]any `bun:"updated_tree,type:jsonb"`
	Children        []string       `bun:"children,type:jsonb"`
	Variables       map[string]any `bun:"variables,type:jsonb"`
	AppliedWorkitem map[string]any `bun:"applied_workitem,type:jsonb"`
	OnCancel        map[string]any `bun:"on_cancel,type:jsonb"`
	OnError         map[string]any `bun:"on_error,type:jsonb"`
	OnTimeout       map[string]any `bun:"on_timeout,type:jsonb"`
	State           string         `bun:"state"`
	Tagname         string         `bun:"tagname"`
	TimeoutJobID    string         `bun:"timeout_job_id"`
	CreatedTime     time.Time      `bun:"created_time"`
	ModifiedTime    time.Time      `bun:"modified_time"`
}

func (s *Store) Get(ctx context.Context, fei domain.FEI) (*expression.Snapshot, error) {
	model := new(Model)
	err := s.db.NewSelect().Model(model).
		Where("workflow_id = ? AND exp_id = ? AND child_id = ?", fei.WorkflowID, fei.ExpID, fei.ChildID).
		Scan(ctx)
	if err != nil {
		return nil, domain.NewError(domain.ErrCodeNotFound, "expression not found", err)
	}
	return toSnapshot(model), nil
}

func (s *Store) Put(ctx context.Context, fei domain.FEI, snap *expression.Snapshot) error {
	model := fromSnapshot(snap)
	_, err := s.db.NewInsert().Model(model).
		On("CONFLICT (workflow_id, exp_id, child_id) DO UPDATE").
		Exec(ctx)
	return err
}

func (s *Store) Delete(ctx context.Context, fei domain.FEI) error {
	_, err := s.db.NewDelete().Model((*Model)(nil)).
		Where("workflow_id = ? AND exp_id = ? AND child_id = ?", fei.WorkflowID, fei.ExpID, fei.ChildID).
		Exec(ctx)
	return err
}
