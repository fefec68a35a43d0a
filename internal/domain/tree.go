package domain

// Tree is the (name, attributes, children) triple that represents one
// expression of the process-definition language (spec.md §3). Attribute
// values are scalars or nil; a nil-valued key is the convention for the
// "text" argument of an expression.
type Tree struct {
	Name       string
	Attributes map[string]any
	Children   []*Tree
}

// NewTree constructs a Tree. attrs may be nil (treated as empty).
func NewTree(name string, attrs map[string]any, children ...*Tree) *Tree {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &Tree{Name: name, Attributes: attrs, Children: children}
}

// Clone performs a deep structural copy. Every caller that might mutate a
// tree independently of its source (updated_tree forks, forget snapshots,
// handler reapplies) must clone first — spec.md §9 calls this out
// explicitly: a child's edits must never alias into the parent's
// original_tree.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	attrs := make(map[string]any, len(t.Attributes))
	for k, v := range t.Attributes {
		attrs[k] = v
	}
	children := make([]*Tree, len(t.Children))
	for i, c := range t.Children {
		children[i] = c.Clone()
	}
	return &Tree{Name: t.Name, Attributes: attrs, Children: children}
}

// Attr returns the raw attribute value and whether it was present.
func (t *Tree) Attr(key string) (any, bool) {
	if t == nil || t.Attributes == nil {
		return nil, false
	}
	v, ok := t.Attributes[key]
	return v, ok
}

// StringAttr returns the attribute as a string, or "" if absent or not a
// string.
func (t *Tree) StringAttr(key string) string {
	v, ok := t.Attr(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// HasAttr reports whether the attribute key is present, regardless of
// value (including a present-but-nil "text" style key).
func (t *Tree) HasAttr(key string) bool {
	_, ok := t.Attr(key)
	return ok
}

// WithChild returns a shallow copy of t with children[index] replaced —
// used by tree propagation (spec.md §4.2) to splice an updated subtree
// into a freshly cloned parent without mutating the caller's slice
// in place.
func (t *Tree) WithChild(index int, child *Tree) *Tree {
	out := *t
	out.Children = make([]*Tree, len(t.Children))
	copy(out.Children, t.Children)
	if index >= 0 && index < len(out.Children) {
		out.Children[index] = child
	}
	return &out
}
