package expression

import "context"

// forget detaches this node into an independent root (spec.md §4.5):
// emit forgotten, snapshot the full visible variable environment, null
// parent_id, persist. After this call the node's eventual reply vanishes
// into the void; the pool tears the branch down on observing a root
// reply.
func (e *Expression) forget(ctx context.Context) error {
	oldParent := e.ParentID

	e.emitForgottenEvent(ctx, oldParent)

	e.Variables = e.visibleVariables(ctx)
	e.ParentID = nil

	return e.persist(ctx)
}

// visibleVariables walks the parent chain from this node up to the
// nearest root, merging each scope's variables into a fresh mapping with
// local bindings overriding inherited ones (spec.md §4.5 step 2).
func (e *Expression) visibleVariables(ctx context.Context) map[string]any {
	var chain []*Expression
	cur, ok := e, true
	for ok {
		chain = append(chain, cur)
		cur, ok = cur.parent(ctx)
	}

	merged := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].Variables {
			merged[k] = v
		}
	}
	return merged
}
