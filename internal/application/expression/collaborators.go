package expression

import (
	"context"
	"time"

	"github.com/smilemakc/flowexpr/internal/domain"
)

// Pool is the expression pool collaborator (spec.md §6): it owns the
// scheduling loop and dispatches apply/reply/cancel to expressions. The
// core never implements this; it only calls it.
type Pool interface {
	// ReplyToParent delivers a reply event from self to self's parent.
	ReplyToParent(ctx context.Context, self *Expression, workitem *domain.Workitem) error
	// Reply delivers a reply event directly to an arbitrary fei, used
	// after forget() once the branch has been detached.
	Reply(ctx context.Context, workitem *domain.Workitem, parent domain.FEI) error
	// ApplyChild spawns the childIndex-th child of self's current tree.
	ApplyChild(ctx context.Context, self *Expression, childIndex int, workitem *domain.Workitem, forget bool) error
	// CancelExpression routes a cancel event to fei with the given flavour.
	CancelExpression(ctx context.Context, fei domain.FEI, flavour domain.Flavour) error
	// Apply is the generic apply used by handler triggers (spec.md §4.6):
	// exactly one of params.OnCancel/OnError/OnTimeout is true.
	Apply(ctx context.Context, params ApplyParams) error
}

// ApplyParams is the payload handed to Pool.Apply when a handler
// reapplies a tree (spec.md §6).
type ApplyParams struct {
	Tree      *domain.Tree
	FEI       domain.FEI
	ParentID  *domain.FEI
	Workitem  *domain.Workitem
	Variables map[string]any
	OnCancel  bool
	OnError   bool
	OnTimeout bool
}

// Storage is the expression storage collaborator (spec.md §6):
// content-addressable persistence keyed by FEI.
type Storage interface {
	Get(ctx context.Context, fei domain.FEI) (*Snapshot, error)
	Put(ctx context.Context, fei domain.FEI, snap *Snapshot) error
	Delete(ctx context.Context, fei domain.FEI) error
}

// Queue is the work-queue collaborator (spec.md §6): a publish/subscribe
// event bus.
type Queue interface {
	// Emit publishes best-effort (fire-and-forget).
	Emit(ctx context.Context, event domain.Event)
	// EmitSync publishes and waits for every subscriber to finish, used
	// for persist/unpersist so storage side effects land before the
	// triggering method returns (spec.md §4.7).
	EmitSync(ctx context.Context, event domain.Event)
}

// Scheduler is the timed-wake-up collaborator (spec.md §6).
type Scheduler interface {
	// In schedules fire to run after d elapses and returns a job token
	// that Unschedule can cancel before it fires.
	In(d time.Duration, fei domain.FEI, flavour domain.Flavour, fire func()) string
	Unschedule(jobToken string)
}
