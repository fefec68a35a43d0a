package expression

import (
	"context"
	"time"

	"github.com/smilemakc/flowexpr/internal/domain"
)

// DoApply is the wrapper over the concrete apply hook (spec.md §4.1).
func (e *Expression) DoApply(ctx context.Context) error {
	tree := e.Tree()

	e.captureHandlers(tree)

	proceed, err := e.cond.Eval(tree.StringAttr("if"), tree.StringAttr("unless"), e.AppliedWorkitem.Fields)
	if err != nil {
		return err
	}
	if !proceed {
		return e.replyUpward(ctx, e.AppliedWorkitem)
	}

	if forget, _ := e.cond.Truthy(tree.StringAttr("forget"), e.AppliedWorkitem.Fields); forget {
		oldParent := e.ParentID
		if err := e.forget(ctx); err != nil {
			return err
		}
		if oldParent != nil {
			return e.pool.Reply(ctx, e.AppliedWorkitem.Clone(), *oldParent)
		}
		return nil
	}

	if err := e.considerTag(ctx); err != nil {
		return err
	}
	if err := e.considerTimeout(ctx); err != nil {
		return err
	}

	return e.hook.Apply(ctx, e)
}

// DoReply is the wrapper invoked when a child has replied (spec.md §4.1).
func (e *Expression) DoReply(ctx context.Context, childFEI domain.FEI, workitem *domain.Workitem) error {
	e.removeChild(childFEI)

	if e.State != domain.StateActive {
		if len(e.Children) == 0 {
			return e.ReplyToParent(ctx, workitem)
		}
		return e.persist(ctx)
	}

	return e.hook.Reply(ctx, e, workitem)
}

func (e *Expression) removeChild(fei domain.FEI) {
	out := e.Children[:0]
	for _, c := range e.Children {
		if c != fei {
			out = append(out, c)
		}
	}
	e.Children = out
}

// DoCancel is the wrapper invoked to tear the node down (spec.md §4.1).
func (e *Expression) DoCancel(ctx context.Context, flavour domain.Flavour) error {
	if e.State == domain.StateFailed && flavour == domain.FlavourTimeout {
		return nil
	}

	switch flavour {
	case domain.FlavourKill:
		e.State = domain.StateDying
	case domain.FlavourTimeout:
		e.State = domain.StateTimingOut
		e.AppliedWorkitem.SetTimedOut(e.FEI, time.Now().UnixNano())
	default:
		e.State = domain.StateCancelling
	}

	if err := e.persist(ctx); err != nil {
		return err
	}

	return e.hook.Cancel(ctx, e, flavour)
}

// Fail forces entry into the failing state (spec.md §4.1).
func (e *Expression) Fail(ctx context.Context) error {
	e.State = domain.StateFailing
	if err := e.persist(ctx); err != nil {
		return err
	}
	return e.cancelChildren(ctx, "")
}

func (e *Expression) cancelChildren(ctx context.Context, flavour domain.Flavour) error {
	for _, child := range e.Children {
		if err := e.pool.CancelExpression(ctx, child, flavour); err != nil {
			return err
		}
	}
	return nil
}

// ReplyToParent is the terminal step: clear any tag, propagate tree
// edits, then choose between returning to parent and triggering a
// handler (spec.md §4.2, §4.4, §4.6).
func (e *Expression) ReplyToParent(ctx context.Context, workitem *domain.Workitem) error {
	e.unscheduleTimeout()

	if err := e.clearTag(ctx); err != nil {
		return err
	}
	if err := e.propagateToParent(ctx); err != nil {
		return err
	}

	switch e.State {
	case domain.StateFailing:
		return e.dispatchOnError(ctx, workitem)
	case domain.StateCancelling:
		if e.OnCancel.IsSet() {
			return e.dispatchOnCancel(ctx)
		}
		return e.replyUpward(ctx, workitem)
	case domain.StateTimingOut:
		if e.OnTimeout.IsSet() {
			return e.dispatchOnTimeout(ctx)
		}
		return e.replyUpward(ctx, workitem)
	default:
		return e.replyUpward(ctx, workitem)
	}
}

// replyUpward unpersists this node and hands the reply to the pool. A
// root node (no parent_id — original or forgotten) has nothing further
// to notify; the pool observes a root reply and tears the branch down
// (spec.md §4.5).
func (e *Expression) replyUpward(ctx context.Context, workitem *domain.Workitem) error {
	if err := e.unpersist(ctx); err != nil {
		return err
	}
	if e.ParentID == nil {
		return nil
	}
	return e.pool.ReplyToParent(ctx, e, workitem)
}
