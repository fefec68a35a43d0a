package expression

import (
	"context"

	"github.com/smilemakc/flowexpr/internal/domain"
)

// considerTag implements do_apply step 3 (spec.md §4.1, §4.4): if a tag
// attribute is present, bind it to this node's fei in the nearest
// enclosing scope and emit entered_tag.
func (e *Expression) considerTag(ctx context.Context) error {
	tag := e.Tree().StringAttr("tag")
	if tag == "" {
		return nil
	}
	if err := e.SetVariable(ctx, tag, e.FEI); err != nil {
		return err
	}
	e.Tagname = tag
	e.emitTagEvent(ctx, domain.EventEnteredTag, tag)
	return e.persist(ctx)
}

// clearTag removes the tag binding and emits left_tag, run from
// ReplyToParent regardless of how the node is terminating (spec.md §4.4:
// "On cancel the same cleanup runs because cancel eventually funnels
// through reply_to_parent").
func (e *Expression) clearTag(ctx context.Context) error {
	if e.Tagname == "" {
		return nil
	}
	tag := e.Tagname
	if err := e.UnsetVariable(ctx, tag); err != nil {
		return err
	}
	e.Tagname = ""
	e.emitTagEvent(ctx, domain.EventLeftTag, tag)
	return e.persist(ctx)
}
