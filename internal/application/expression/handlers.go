package expression

import (
	"context"

	"github.com/smilemakc/flowexpr/internal/domain"
)

// captureHandlers resolves on_cancel/on_error/on_timeout from tree once,
// at apply time (spec.md §3, §4.6).
func (e *Expression) captureHandlers(tree *domain.Tree) {
	onCancel, _ := tree.Attr("on_cancel")
	onError, _ := tree.Attr("on_error")
	onTimeout, _ := tree.Attr("on_timeout")
	e.OnCancel = domain.ResolveHandlerSpec(onCancel)
	e.OnError = domain.ResolveHandlerSpec(onError)
	e.OnTimeout = domain.ResolveHandlerSpec(onTimeout)
}

// lookupOn walks the parent chain to find the nearest ancestor (including
// self) with a handler set for kind, used by the pool when a node without
// its own handler must be handled by an ancestor (spec.md §4.6).
func (e *Expression) lookupOn(ctx context.Context, kind string) (*Expression, *domain.HandlerSpec) {
	cur, ok := e, true
	for ok {
		h := cur.handlerFor(kind)
		if h.IsSet() {
			return cur, h
		}
		cur, ok = cur.parent(ctx)
	}
	return nil, nil
}

func (e *Expression) handlerFor(kind string) *domain.HandlerSpec {
	switch kind {
	case "on_cancel":
		return e.OnCancel
	case "on_error":
		return e.OnError
	case "on_timeout":
		return e.OnTimeout
	default:
		return nil
	}
}

// reapplyHandler reapplies handler as a tree, reusing this node's fei,
// parent_id, variables and applied_workitem, and naming which trigger
// caused it (spec.md §4.6: "reuse this node's fei, parent_id, variables,
// and applied_workitem, and pass a flag naming which handler triggered
// them"). "redo" means reapply this node's current tree rather than the
// handler's own tree.
func (e *Expression) reapplyHandler(ctx context.Context, handler *domain.HandlerSpec, triggeredBy string) error {
	tree := handler.AsTree()
	if handler.IsLiteral("redo") {
		tree = e.Tree()
	}

	params := ApplyParams{
		Tree:      tree,
		FEI:       e.FEI,
		ParentID:  e.ParentID,
		Workitem:  e.AppliedWorkitem,
		Variables: e.Variables,
	}
	switch triggeredBy {
	case "on_cancel":
		params.OnCancel = true
	case "on_error":
		params.OnError = true
	case "on_timeout":
		params.OnTimeout = true
	}
	return e.pool.Apply(ctx, params)
}

// dispatchOnError implements the on_error branch of reply_to_parent
// (spec.md §4.6). Called once every child has replied to a failing node.
func (e *Expression) dispatchOnError(ctx context.Context, workitem *domain.Workitem) error {
	h := e.OnError
	if h.IsLiteral("undo") {
		return e.replyUpward(ctx, workitem)
	}
	return e.reapplyHandler(ctx, h, "on_error")
}

// dispatchOnCancel implements the on_cancel branch (spec.md §4.6). dying
// never reaches here — the caller only invokes this for state cancelling.
func (e *Expression) dispatchOnCancel(ctx context.Context) error {
	return e.reapplyHandler(ctx, e.OnCancel, "on_cancel")
}

// dispatchOnTimeout implements the on_timeout branch (spec.md §4.6): the
// literal "error" handler promotes to a synthetic TimeoutError event
// instead of a reapply.
func (e *Expression) dispatchOnTimeout(ctx context.Context) error {
	h := e.OnTimeout
	if h.IsLiteral("error") {
		return e.publishTimeoutError(ctx)
	}
	return e.reapplyHandler(ctx, h, "on_timeout")
}

// publishTimeoutError synthesizes the error event for an on_timeout:"error"
// handler (spec.md §4.6, §7, S4): kind TimeoutError, the original timeout
// attribute as message, and the full apply message needed to resume.
func (e *Expression) publishTimeoutError(ctx context.Context) error {
	timeoutAttr := e.Tree().StringAttr("timeout")
	timeoutErr := &domain.TimeoutError{
		Message: timeoutAttr,
		Payload: map[string]any{
			"tree":      e.Tree(),
			"fei":       e.FEI,
			"parent_id": e.ParentID,
			"workitem":  e.AppliedWorkitem,
			"variables": e.Variables,
		},
	}
	e.queue.Emit(ctx, domain.NewEvent(domain.ChannelErrors, domain.EventPoolError, map[string]any{
		"error":   timeoutErr,
		"wfid":    e.FEI.WorkflowID,
		"message": timeoutAttr,
	}))
	return nil
}
