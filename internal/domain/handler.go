package domain

// HandlerSpec is the resolved shape of an on_cancel / on_error / on_timeout
// attribute, captured once at apply time (spec.md §3, §4.6). The
// attribute's raw value is either a bare string (a handler name, or one
// of the literals "redo"/"undo"/"error") or an embedded *Tree triple.
type HandlerSpec struct {
	// Name holds the bare name or literal ("redo", "undo", "error") when
	// the attribute was a string.
	Name string
	// Tree holds the embedded handler tree when the attribute was already
	// a tree triple.
	Tree *Tree
}

// IsSet reports whether a handler was declared at all.
func (h *HandlerSpec) IsSet() bool {
	return h != nil && (h.Name != "" || h.Tree != nil)
}

// IsLiteral reports whether the handler is the bare name literal (e.g.
// "redo", "undo", "error") with no embedded tree.
func (h *HandlerSpec) IsLiteral(literal string) bool {
	return h != nil && h.Tree == nil && h.Name == literal
}

// ResolveHandlerSpec captures the attribute's raw value into a
// HandlerSpec. Accepts string (bare name/literal), *Tree (embedded
// handler), or nil (not declared).
func ResolveHandlerSpec(raw any) *HandlerSpec {
	switch v := raw.(type) {
	case nil:
		return &HandlerSpec{}
	case string:
		return &HandlerSpec{Name: v}
	case *Tree:
		return &HandlerSpec{Tree: v}
	default:
		return &HandlerSpec{}
	}
}

// AsTree returns the handler as a tree to reapply: the embedded tree
// verbatim if present, or `[name, {}, []]` wrapping the bare name
// (spec.md §4.6: "reapply the tree [h, {}, []]").
func (h *HandlerSpec) AsTree() *Tree {
	if h == nil {
		return nil
	}
	if h.Tree != nil {
		return h.Tree
	}
	if h.Name == "" {
		return nil
	}
	return NewTree(h.Name, map[string]any{})
}
