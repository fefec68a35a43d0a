package domain

// Workitem is the flow-level payload carried between expressions. The
// core treats it as an opaque bag of fields; concrete expression kinds
// (out of scope here) give the fields meaning.
type Workitem struct {
	Fields map[string]any
}

// NewWorkitem returns a Workitem wrapping fields (nil becomes an empty map).
func NewWorkitem(fields map[string]any) *Workitem {
	if fields == nil {
		fields = map[string]any{}
	}
	return &Workitem{Fields: fields}
}

// Clone deep-copies the workitem. Every detach point — forget (spec.md
// §4.5, §9 "workitem copy on forget"), handler reapply, apply — must
// clone so the detached/reapplied branch never aliases the caller's
// workitem. Nested map[string]any and []any values are copied
// recursively; values of any other type are copied as they are.
func (w *Workitem) Clone() *Workitem {
	if w == nil {
		return NewWorkitem(nil)
	}
	var dup func(v any) any
	dup = func(v any) any {
		switch t := v.(type) {
		case map[string]any:
			m := make(map[string]any, len(t))
			for k, x := range t {
				m[k] = dup(x)
			}
			return m
		case []any:
			s := make([]any, len(t))
			for i, x := range t {
				s[i] = dup(x)
			}
			return s
		default:
			return v
		}
	}
	return &Workitem{Fields: dup(w.Fields).(map[string]any)}
}

// TimedOutKey is the workitem field set when a cancel with flavour
// Timeout is delivered (spec.md §4.1 step on cancel, §7).
const TimedOutKey = "__timed_out__"

// SetTimedOut annotates the workitem with the fei/timestamp pair per
// spec.md's `__timed_out__ = [fei, now]` convention.
func (w *Workitem) SetTimedOut(fei FEI, nowUnixNano int64) {
	if w.Fields == nil {
		w.Fields = map[string]any{}
	}
	w.Fields[TimedOutKey] = []any{fei.String(), nowUnixNano}
}
