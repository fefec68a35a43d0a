package expression

import (
	"context"
	"time"

	"github.com/smilemakc/flowexpr/internal/domain"
)

// persist updates modified_time, writes the snapshot to storage and emits
// an `update` event synchronously so the storage subscriber's write is
// committed before the triggering method returns (spec.md §4.7).
func (e *Expression) persist(ctx context.Context) error {
	e.ModifiedTime = time.Now()
	if e.store != nil {
		if err := e.store.Put(ctx, e.FEI, e.ToSnapshot()); err != nil {
			return err
		}
	}
	if e.queue != nil {
		e.queue.EmitSync(ctx, domain.NewEvent(domain.ChannelExpressions, domain.EventUpdate, map[string]any{
			"expression": e.ToSnapshot(),
		}))
	}
	return nil
}

// unpersist removes the expression from storage and emits `delete`,
// called once it has successfully replied to its parent (spec.md §3
// Lifecycle, §4.7).
func (e *Expression) unpersist(ctx context.Context) error {
	if e.store != nil {
		if err := e.store.Delete(ctx, e.FEI); err != nil {
			return err
		}
	}
	if e.queue != nil {
		e.queue.EmitSync(ctx, domain.NewEvent(domain.ChannelExpressions, domain.EventDelete, map[string]any{
			"fei": e.FEI,
		}))
	}
	return nil
}

func (e *Expression) emitVarEvent(ctx context.Context, kind varEventKind, name string) {
	if e.queue == nil {
		return
	}
	ek := domain.EventVarSet
	if kind == varEventUnset {
		ek = domain.EventVarUnset
	}
	e.queue.Emit(ctx, domain.NewEvent(domain.ChannelVariables, ek, map[string]any{
		"var": name,
		"fei": e.FEI,
	}))
}

func (e *Expression) emitForgottenEvent(ctx context.Context, oldParent *domain.FEI) {
	if e.queue == nil {
		return
	}
	e.queue.Emit(ctx, domain.NewEvent(domain.ChannelExpressions, domain.EventForgotten, map[string]any{
		"fei":    e.FEI,
		"parent": oldParent,
	}))
}

func (e *Expression) emitTagEvent(ctx context.Context, kind domain.EventKind, tag string) {
	if e.queue == nil {
		return
	}
	e.queue.Emit(ctx, domain.NewEvent(domain.ChannelExpressions, kind, map[string]any{
		"tag": tag,
		"fei": e.FEI,
	}))
}
