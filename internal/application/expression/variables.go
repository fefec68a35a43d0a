package expression

import (
	"context"
	"strings"
)

// splitPrefix extracts the leading run of '/' from name, per spec.md §4.3
// ("match a leading run of / on the name string; take up to the first two
// characters of that run as the prefix"). Returns the prefix (0, 1, or 2
// slashes) and the bare name.
func splitPrefix(name string) (prefix string, bare string) {
	i := 0
	for i < len(name) && name[i] == '/' {
		i++
	}
	if i > 2 {
		i = 2
	}
	return name[:i], name[i:]
}

// LookupVariable resolves name along the lexical parent chain, honoring
// the 0/1/2+ slash prefix escape rules (spec.md §4.3).
func (e *Expression) LookupVariable(ctx context.Context, name string) (any, bool) {
	prefix, bare := splitPrefix(name)
	return e.lookupVariable(ctx, bare, prefix)
}

func (e *Expression) lookupVariable(ctx context.Context, bare, prefix string) (any, bool) {
	if len(prefix) >= 2 {
		return e.global.Get(bare)
	}

	if len(prefix) >= 1 {
		if parent, ok := e.parent(ctx); ok {
			return parent.lookupVariable(ctx, bare, shorten(prefix))
		}
		return e.global.Get(bare)
	}

	if e.Variables != nil {
		if v, ok := e.Variables[bare]; ok && v != nil {
			return v, true
		}
	}

	if parent, ok := e.parent(ctx); ok {
		return parent.lookupVariable(ctx, bare, "")
	}

	return e.global.Get(bare)
}

// SetVariable writes name := value in the owning scope, walking up the
// chain the same way LookupVariable does, and persists + emits a
// variable-set event on the node that ends up owning the write.
func (e *Expression) SetVariable(ctx context.Context, name string, value any) error {
	prefix, bare := splitPrefix(name)
	return e.setVariable(ctx, bare, value, prefix)
}

func (e *Expression) setVariable(ctx context.Context, bare string, value any, prefix string) error {
	if len(prefix) >= 1 {
		if parent, ok := e.parent(ctx); ok {
			return parent.setVariable(ctx, bare, value, shorten(prefix))
		}
		e.global.Set(bare, value)
		return nil
	}

	if e.Variables == nil {
		if parent, ok := e.parent(ctx); ok {
			return parent.setVariable(ctx, bare, value, "")
		}
		e.global.Set(bare, value)
		return nil
	}

	e.Variables[bare] = value
	e.emitVarEvent(ctx, varEventSet, bare)
	return e.persist(ctx)
}

// UnsetVariable removes a binding, symmetric to SetVariable.
func (e *Expression) UnsetVariable(ctx context.Context, name string) error {
	prefix, bare := splitPrefix(name)
	return e.unsetVariable(ctx, bare, prefix)
}

func (e *Expression) unsetVariable(ctx context.Context, bare string, prefix string) error {
	if len(prefix) >= 1 {
		if parent, ok := e.parent(ctx); ok {
			return parent.unsetVariable(ctx, bare, shorten(prefix))
		}
		e.global.Delete(bare)
		return nil
	}

	if e.Variables == nil {
		if parent, ok := e.parent(ctx); ok {
			return parent.unsetVariable(ctx, bare, "")
		}
		e.global.Delete(bare)
		return nil
	}

	delete(e.Variables, bare)
	e.emitVarEvent(ctx, varEventUnset, bare)
	return e.persist(ctx)
}

// IterativeVarLookup chases string alias chains: when LookupVariable
// yields another string, it recurses with that string as the next name to
// look up, stopping at the first non-string value (spec.md §4.3, used to
// resolve process-name/participant-name indirections).
func (e *Expression) IterativeVarLookup(ctx context.Context, name string) (string, any) {
	current := name
	for {
		v, ok := e.LookupVariable(ctx, current)
		if !ok {
			return current, nil
		}
		next, isString := v.(string)
		if !isString {
			return current, v
		}
		current = next
	}
}

// parent looks the owning node's parent up via storage; ok is false for a
// root (forgotten or original).
func (e *Expression) parent(ctx context.Context) (*Expression, bool) {
	if e.ParentID == nil {
		return nil, false
	}
	snap, err := e.store.Get(ctx, *e.ParentID)
	if err != nil || snap == nil {
		return nil, false
	}
	return FromSnapshot(snap, Deps{
		Hook: e.hook, Pool: e.pool, Store: e.store, Queue: e.queue,
		Scheduler: e.sched, Global: e.global, Cond: e.cond,
	}), true
}

func shorten(prefix string) string {
	if len(prefix) == 0 {
		return prefix
	}
	return prefix[:len(prefix)-1]
}

type varEventKind int

const (
	varEventSet varEventKind = iota
	varEventUnset
)
