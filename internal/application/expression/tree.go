package expression

import "context"

// propagateToParent splices this node's updated_tree back into the
// parent's updated_tree at this node's child_id, initializing the
// parent's updated_tree from its original_tree if this is the first
// child to rewrite it (spec.md §4.2). A no-op when this node has no
// updated_tree or no parent.
func (e *Expression) propagateToParent(ctx context.Context) error {
	if e.UpdatedTree == nil || e.ParentID == nil {
		return nil
	}

	parent, ok := e.parent(ctx)
	if !ok {
		return nil
	}

	if parent.UpdatedTree == nil {
		parent.UpdatedTree = parent.OriginalTree.Clone()
	}
	parent.UpdatedTree = parent.UpdatedTree.WithChild(e.FEI.ChildID, e.UpdatedTree)

	return parent.persist(ctx)
}
