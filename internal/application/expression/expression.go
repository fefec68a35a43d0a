package expression

import (
	"context"
	"sync"
	"time"

	"github.com/smilemakc/flowexpr/internal/domain"
)

// Hook is the capability set a concrete expression kind implements
// (spec.md §9: "closed set of variants with a shared capability set
// {apply, reply, cancel} plus default implementations"). The base's
// do_apply/do_reply/do_cancel wrappers call these after running the
// shared guard/tag/timeout/handler machinery.
type Hook interface {
	// Apply runs the concrete behavior once do_apply's preamble has
	// passed. Most kinds apply a child or reply immediately.
	Apply(ctx context.Context, e *Expression) error
	// Reply runs once do_reply's preamble has updated children/tree.
	// Most kinds either apply the next child or reply to their own
	// parent.
	Reply(ctx context.Context, e *Expression, workitem *domain.Workitem) error
	// Cancel runs once do_cancel has set the state and persisted. The
	// base does not cancel children itself; DefaultHook's Cancel cancels
	// every registered child with the same flavour.
	Cancel(ctx context.Context, e *Expression, flavour domain.Flavour) error
}

// DefaultHook is embedded by concrete kinds that only need a subset of
// the capability set: its Apply and Reply reply to the parent immediately
// with the workitem unchanged, and its Cancel cancels every registered
// child with the same flavour.
type DefaultHook struct{}

func (DefaultHook) Apply(ctx context.Context, e *Expression) error {
	return e.ReplyToParent(ctx, e.AppliedWorkitem)
}
func (DefaultHook) Reply(ctx context.Context, e *Expression, workitem *domain.Workitem) error {
	return e.ReplyToParent(ctx, workitem)
}
func (DefaultHook) Cancel(ctx context.Context, e *Expression, flavour domain.Flavour) error {
	return e.cancelChildren(ctx, flavour)
}

// Expression is the FlowExpression base instance (spec.md §3). It carries
// the persistent fields plus the collaborators needed to act on them; the
// collaborators are rebound by Storage at load time rather than
// serialized (spec.md §4.7).
type Expression struct {
	mu sync.Mutex

	FEI      domain.FEI
	ParentID *domain.FEI

	OriginalTree *domain.Tree
	UpdatedTree  *domain.Tree

	Children []domain.FEI

	// Variables is non-nil only on scope-introducing nodes: roots,
	// forgotten nodes, and definition-introducing nodes (spec.md §3).
	Variables map[string]any

	AppliedWorkitem *domain.Workitem

	State domain.State

	OnCancel  *domain.HandlerSpec
	OnError   *domain.HandlerSpec
	OnTimeout *domain.HandlerSpec

	Tagname      string
	TimeoutJobID string

	CreatedTime  time.Time
	ModifiedTime time.Time

	// TriggeredBy names which handler caused the current reapply, if any
	// ("on_cancel" | "on_error" | "on_timeout"), so a recursive failure
	// inside a handler reapply can be detected by the pool (spec.md §4.6).
	TriggeredBy string

	hook  Hook
	pool  Pool
	store Storage
	queue Queue
	sched Scheduler
	global *domain.GlobalScope
	cond  *Condition
}

// Snapshot is the serializable projection of an Expression — everything
// persisted except the collaborators, which a Storage implementation
// rebinds on load (spec.md §4.7: "Serialization deliberately excludes the
// engine-context reference").
type Snapshot struct {
	FEI          domain.FEI
	ParentID     *domain.FEI
	OriginalTree *domain.Tree
	UpdatedTree  *domain.Tree
	Children     []domain.FEI
	Variables    map[string]any
	AppliedWorkitem *domain.Workitem
	State        domain.State
	OnCancel     *domain.HandlerSpec
	OnError      *domain.HandlerSpec
	OnTimeout    *domain.HandlerSpec
	Tagname      string
	TimeoutJobID string
	CreatedTime  time.Time
	ModifiedTime time.Time
}

// Deps bundles the collaborators an Expression needs to act; New and
// Rebind both take one so construction and load-time rebinding share a
// single shape.
type Deps struct {
	Hook      Hook
	Pool      Pool
	Store     Storage
	Queue     Queue
	Scheduler Scheduler
	Global    *domain.GlobalScope
	Cond      *Condition
}

// New constructs a freshly-applied Expression. tree is the process
// definition node being applied; parentID is nil for a root apply.
func New(fei domain.FEI, parentID *domain.FEI, tree *domain.Tree, workitem *domain.Workitem, deps Deps) *Expression {
	now := time.Now()
	e := &Expression{
		FEI:             fei,
		ParentID:        parentID,
		OriginalTree:    tree,
		AppliedWorkitem: workitem.Clone(),
		State:           domain.StateActive,
		CreatedTime:     now,
		ModifiedTime:    now,
	}
	e.Rebind(deps)
	return e
}

// Rebind attaches collaborators to an Expression loaded from storage,
// rebuilding the engine-context reference that serialization excludes.
func (e *Expression) Rebind(deps Deps) {
	e.hook = deps.Hook
	e.pool = deps.Pool
	e.store = deps.Store
	e.queue = deps.Queue
	e.sched = deps.Scheduler
	e.global = deps.Global
	e.cond = deps.Cond
}

// Tree returns UpdatedTree when present, else OriginalTree (spec.md §3
// invariant 5, §4.2).
func (e *Expression) Tree() *domain.Tree {
	if e.UpdatedTree != nil {
		return e.UpdatedTree
	}
	return e.OriginalTree
}

// ToSnapshot projects the persisted fields for Storage.
func (e *Expression) ToSnapshot() *Snapshot {
	return &Snapshot{
		FEI:             e.FEI,
		ParentID:        e.ParentID,
		OriginalTree:    e.OriginalTree,
		UpdatedTree:     e.UpdatedTree,
		Children:        append([]domain.FEI(nil), e.Children...),
		Variables:       e.Variables,
		AppliedWorkitem: e.AppliedWorkitem,
		State:           e.State,
		OnCancel:        e.OnCancel,
		OnError:         e.OnError,
		OnTimeout:       e.OnTimeout,
		Tagname:         e.Tagname,
		TimeoutJobID:    e.TimeoutJobID,
		CreatedTime:     e.CreatedTime,
		ModifiedTime:    e.ModifiedTime,
	}
}

// FromSnapshot restores an Expression from a Snapshot, rebinding deps.
func FromSnapshot(snap *Snapshot, deps Deps) *Expression {
	e := &Expression{
		FEI:             snap.FEI,
		ParentID:        snap.ParentID,
		OriginalTree:    snap.OriginalTree,
		UpdatedTree:     snap.UpdatedTree,
		Children:        append([]domain.FEI(nil), snap.Children...),
		Variables:       snap.Variables,
		AppliedWorkitem: snap.AppliedWorkitem,
		State:           snap.State,
		OnCancel:        snap.OnCancel,
		OnError:         snap.OnError,
		OnTimeout:       snap.OnTimeout,
		Tagname:         snap.Tagname,
		TimeoutJobID:    snap.TimeoutJobID,
		CreatedTime:     snap.CreatedTime,
		ModifiedTime:    snap.ModifiedTime,
	}
	e.Rebind(deps)
	return e
}
