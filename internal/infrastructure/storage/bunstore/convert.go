package bunstore

import (
	"encoding/json"

	"github.com/smilemakc/flowexpr/internal/application/expression"
	"github.com/smilemakc/flowexpr/internal/domain"
)

func treeToMap(t *domain.Tree) map[string]any {
	if t == nil {
		return nil
	}
	raw, _ := json.Marshal(t)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}

func treeFromMap(m map[string]any) *domain.Tree {
	if m == nil {
		return nil
	}
	raw, _ := json.Marshal(m)
	var t domain.Tree
	_ = json.Unmarshal(raw, &t)
	return &t
}

func handlerToMap(h *domain.HandlerSpec) map[string]any {
	if h == nil || !h.IsSet() {
		return nil
	}
	raw, _ := json.Marshal(h)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}

func handlerFromMap(m map[string]any) *domain.HandlerSpec {
	if m == nil {
		return &domain.HandlerSpec{}
	}
	raw, _ := json.Marshal(m)
	var h domain.HandlerSpec
	_ = json.Unmarshal(raw, &h)
	return &h
}

func workitemFields(w *domain.Workitem) map[string]any {
	if w == nil {
		return nil
	}
	return w.Fields
}

func feisToStrings(feis []domain.FEI) []string {
	out := make([]string, len(feis))
	for i, f := range feis {
		out[i] = f.String()
	}
	return out
}

func stringsToFEIs(ss []string) []domain.FEI {
	out := make([]domain.FEI, 0, len(ss))
	for _, s := range ss {
		if f, err := domain.ParseFEI(s); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func fromSnapshot(snap *expression.Snapshot) *Model {
	m := &Model{
		WorkflowID:      snap.FEI.WorkflowID,
		ExpID:           snap.FEI.ExpID,
		ChildID:         snap.FEI.ChildID,
		OriginalTree:    treeToMap(snap.OriginalTree),
		UpdatedTree:     treeToMap(snap.UpdatedTree),
		Children:        feisToStrings(snap.Children),
		Variables:       snap.Variables,
		AppliedWorkitem: workitemFields(snap.AppliedWorkitem),
		OnCancel:        handlerToMap(snap.OnCancel),
		OnError:         handlerToMap(snap.OnError),
		OnTimeout:       handlerToMap(snap.OnTimeout),
		State:           string(snap.State),
		Tagname:         snap.Tagname,
		TimeoutJobID:    snap.TimeoutJobID,
		CreatedTime:     snap.CreatedTime,
		ModifiedTime:    snap.ModifiedTime,
	}
	if snap.ParentID != nil {
		m.HasParent = true
		m.ParentWorkflow = snap.ParentID.WorkflowID
		m.ParentExpID = snap.ParentID.ExpID
		m.ParentChildID = snap.ParentID.ChildID
	}
	return m
}

func toSnapshot(m *Model) *expression.Snapshot {
	var workitem domain.Workitem
	if m.AppliedWorkitem != nil {
		workitem.Fields = m.AppliedWorkitem
	} else {
		workitem.Fields = map[string]any{}
	}

	snap := &expression.Snapshot{
		FEI:             domain.FEI{WorkflowID: m.WorkflowID, ExpID: m.ExpID, ChildID: m.ChildID},
		OriginalTree:    treeFromMap(m.OriginalTree),
		UpdatedTree:     treeFromMap(m.UpdatedTree),
		Children:        stringsToFEIs(m.Children),
		Variables:       m.Variables,
		AppliedWorkitem: &workitem,
		OnCancel:        handlerFromMap(m.OnCancel),
		OnError:         handlerFromMap(m.OnError),
		OnTimeout:       handlerFromMap(m.OnTimeout),
		State:           domain.State(m.State),
		Tagname:         m.Tagname,
		TimeoutJobID:    m.TimeoutJobID,
		CreatedTime:     m.CreatedTime,
		ModifiedTime:    m.ModifiedTime,
	}
	if m.HasParent {
		snap.ParentID = &domain.FEI{WorkflowID: m.ParentWorkflow, ExpID: m.ParentExpID, ChildID: m.ParentChildID}
	}
	return snap
}
