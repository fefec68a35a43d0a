package expression

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/smilemakc/flowexpr/internal/domain"
	"github.com/smilemakc/flowexpr/internal/infrastructure/scheduler/timerqueue"
	"github.com/smilemakc/flowexpr/internal/infrastructure/storage/memstore"
	"github.com/smilemakc/flowexpr/internal/infrastructure/workqueue"
)

// testLogger is a quiet zerolog.Logger for tests, matching the teacher's
// per-package testLogger() helper convention (its websocket package has
// the same shape around slog).
func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// fakePool is a minimal Pool recording every call it receives, enough to
// assert end-to-end scenarios without a full scheduling loop.
type fakePool struct {
	mu              sync.Mutex
	repliedToParent []*Expression
	replies         []domain.FEI
	appliedChildren int
	cancelled       []domain.FEI
	applied         []ApplyParams
}

func (p *fakePool) ReplyToParent(ctx context.Context, self *Expression, workitem *domain.Workitem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repliedToParent = append(p.repliedToParent, self)
	return nil
}

func (p *fakePool) Reply(ctx context.Context, workitem *domain.Workitem, parent domain.FEI) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, parent)
	return nil
}

func (p *fakePool) ApplyChild(ctx context.Context, self *Expression, childIndex int, workitem *domain.Workitem, forget bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.appliedChildren++
	return nil
}

func (p *fakePool) CancelExpression(ctx context.Context, fei domain.FEI, flavour domain.Flavour) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, fei)
	return nil
}

func (p *fakePool) Apply(ctx context.Context, params ApplyParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied = append(p.applied, params)
	return nil
}

// parkHook never replies on Apply, simulating an expression kind (like
// `wait`) that stays parked until an external event cancels or replies
// it — needed to observe state between apply and reply.
type parkHook struct{ DefaultHook }

func (parkHook) Apply(ctx context.Context, e *Expression) error { return nil }

func newTestDeps(t *testing.T, hook Hook, pool Pool) Deps {
	t.Helper()
	return Deps{
		Hook:      hook,
		Pool:      pool,
		Store:     memstore.New(),
		Queue:     workqueue.New(testLogger()),
		Scheduler: timerqueue.New(),
		Global:    domain.NewGlobalScope(),
		Cond:      NewCondition(),
	}
}

func TestDoApply_GuardSkip(t *testing.T) {
	ctx := context.Background()
	pool := &fakePool{}
	deps := newTestDeps(t, DefaultHook{}, pool)

	tree := domain.NewTree("sequence", map[string]any{"if": "false"},
		domain.NewTree("participant", map[string]any{"ref": "a"}))
	workitem := domain.NewWorkitem(map[string]any{"x": 1})
	parent := domain.FEI{WorkflowID: "wf", ExpID: "p", ChildID: 0}
	fei := domain.FEI{WorkflowID: "wf", ExpID: "0", ChildID: 0}

	e := New(fei, &parent, tree, workitem, deps)
	err := e.DoApply(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 0, pool.appliedChildren)
	assert.Len(t, pool.repliedToParent, 1)
	assert.Equal(t, 1, pool.repliedToParent[0].AppliedWorkitem.Fields["x"])
}

func TestTagLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := &fakePool{}
	deps := newTestDeps(t, parkHook{}, pool)

	var mu sync.Mutex
	var events []domain.EventKind
	bus := deps.Queue.(*workqueue.Bus)
	bus.Subscribe(domain.ChannelExpressions, func(ctx context.Context, ev domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev.Kind)
	})

	tree := domain.NewTree("wait", map[string]any{"tag": "t"})
	workitem := domain.NewWorkitem(nil)
	fei := domain.FEI{WorkflowID: "wf", ExpID: "0", ChildID: 0}

	e := New(fei, nil, tree, workitem, deps)
	e.Variables = map[string]any{}
	require := assert.New(t)

	require.NoError(e.DoApply(ctx))

	v, ok := e.LookupVariable(ctx, "t")
	require.True(ok)
	require.Equal(fei, v)

	require.NoError(e.DoCancel(ctx, domain.FlavourCancel))
	require.NoError(e.ReplyToParent(ctx, e.AppliedWorkitem))

	mu.Lock()
	defer mu.Unlock()
	require.Contains(events, domain.EventEnteredTag)
	require.Contains(events, domain.EventLeftTag)

	var enteredIdx, leftIdx int
	for i, k := range events {
		if k == domain.EventEnteredTag {
			enteredIdx = i
		}
		if k == domain.EventLeftTag {
			leftIdx = i
		}
	}
	require.Less(enteredIdx, leftIdx)
}

func TestForget_PropagatesAndSnapshotsVariables(t *testing.T) {
	ctx := context.Background()
	pool := &fakePool{}
	deps := newTestDeps(t, DefaultHook{}, pool)

	parentFEI := domain.FEI{WorkflowID: "wf", ExpID: "p", ChildID: 0}
	parent := New(parentFEI, nil, domain.NewTree("sequence", nil), domain.NewWorkitem(nil), deps)
	parent.Variables = map[string]any{"x": 1}
	assert.NoError(t, deps.Store.Put(ctx, parentFEI, parent.ToSnapshot()))

	childFEI := domain.FEI{WorkflowID: "wf", ExpID: "p.0", ChildID: 0}
	tree := domain.NewTree("sub", map[string]any{"forget": "true"})
	child := New(childFEI, &parentFEI, tree, domain.NewWorkitem(nil), deps)

	assert.NoError(t, child.DoApply(ctx))

	assert.Nil(t, child.ParentID)
	assert.Equal(t, 1, child.Variables["x"])
	assert.Len(t, pool.replies, 1)
	assert.Equal(t, parentFEI, pool.replies[0])
}

func TestVariableScoping_PrefixEscape(t *testing.T) {
	ctx := context.Background()
	pool := &fakePool{}
	deps := newTestDeps(t, DefaultHook{}, pool)
	deps.Global.Set("n", "global")

	grandparentFEI := domain.FEI{WorkflowID: "wf", ExpID: "gp", ChildID: 0}
	grandparent := New(grandparentFEI, nil, domain.NewTree("root", nil), domain.NewWorkitem(nil), deps)
	grandparent.Variables = map[string]any{"n": "gp"}
	assert.NoError(t, deps.Store.Put(ctx, grandparentFEI, grandparent.ToSnapshot()))

	parentFEI := domain.FEI{WorkflowID: "wf", ExpID: "gp.0", ChildID: 0}
	parent := New(parentFEI, &grandparentFEI, domain.NewTree("seq", nil), domain.NewWorkitem(nil), deps)
	parent.Variables = map[string]any{"n": "p"}
	assert.NoError(t, deps.Store.Put(ctx, parentFEI, parent.ToSnapshot()))

	childFEI := domain.FEI{WorkflowID: "wf", ExpID: "gp.0.0", ChildID: 0}
	child := New(childFEI, &parentFEI, domain.NewTree("leaf", nil), domain.NewWorkitem(nil), deps)
	child.Variables = map[string]any{"n": "c"}

	v, ok := child.LookupVariable(ctx, "n")
	assert.True(t, ok)
	assert.Equal(t, "c", v)

	v, ok = child.LookupVariable(ctx, "/n")
	assert.True(t, ok)
	assert.Equal(t, "p", v)

	v, ok = child.LookupVariable(ctx, "//n")
	assert.True(t, ok)
	assert.Equal(t, "global", v)
}

func TestFail_RedoReappliesCurrentTree(t *testing.T) {
	ctx := context.Background()
	pool := &fakePool{}
	deps := newTestDeps(t, parkHook{}, pool)

	tree := domain.NewTree("task", map[string]any{"on_error": "redo"})
	fei := domain.FEI{WorkflowID: "wf", ExpID: "0", ChildID: 0}
	e := New(fei, nil, tree, domain.NewWorkitem(nil), deps)

	assert.NoError(t, e.DoApply(ctx))
	assert.NoError(t, e.Fail(ctx))
	assert.Equal(t, domain.StateFailing, e.State)

	assert.NoError(t, e.ReplyToParent(ctx, e.AppliedWorkitem))

	assert.Len(t, pool.applied, 1)
	assert.True(t, pool.applied[0].OnError)
	assert.Equal(t, tree.Name, pool.applied[0].Tree.Name)
}

func TestCancelOfFailedNode_TimeoutIsNoOp(t *testing.T) {
	ctx := context.Background()
	pool := &fakePool{}
	deps := newTestDeps(t, DefaultHook{}, pool)

	tree := domain.NewTree("task", nil)
	fei := domain.FEI{WorkflowID: "wf", ExpID: "0", ChildID: 0}
	e := New(fei, nil, tree, domain.NewWorkitem(nil), deps)
	e.State = domain.StateFailed

	assert.NoError(t, e.DoCancel(ctx, domain.FlavourTimeout))
	assert.Equal(t, domain.StateFailed, e.State)
}

func TestDoCancel_FansOutToChildrenByDefault(t *testing.T) {
	// spec.md §4.1 do_cancel step 5 / §5: the default cancel hook must
	// cancel every registered child with the same flavour so DoReply's
	// teardown branch can eventually empty Children and reply upward.
	ctx := context.Background()
	pool := &fakePool{}
	deps := newTestDeps(t, DefaultHook{}, pool)

	tree := domain.NewTree("sequence", nil, domain.NewTree("a", nil), domain.NewTree("b", nil))
	fei := domain.FEI{WorkflowID: "wf", ExpID: "0", ChildID: 0}
	e := New(fei, nil, tree, domain.NewWorkitem(nil), deps)
	childA := domain.FEI{WorkflowID: "wf", ExpID: "0.0", ChildID: 0}
	childB := domain.FEI{WorkflowID: "wf", ExpID: "0.1", ChildID: 1}
	e.Children = []domain.FEI{childA, childB}

	assert.NoError(t, e.DoCancel(ctx, domain.FlavourCancel))

	assert.Equal(t, domain.StateCancelling, e.State)
	assert.ElementsMatch(t, []domain.FEI{childA, childB}, pool.cancelled)
}

func TestTreePropagation_RoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := &fakePool{}
	deps := newTestDeps(t, DefaultHook{}, pool)

	parentFEI := domain.FEI{WorkflowID: "wf", ExpID: "p", ChildID: 0}
	originalTree := domain.NewTree("sequence", nil, domain.NewTree("a", nil), domain.NewTree("b", nil))
	parent := New(parentFEI, nil, originalTree, domain.NewWorkitem(nil), deps)
	assert.NoError(t, deps.Store.Put(ctx, parentFEI, parent.ToSnapshot()))

	childFEI := domain.FEI{WorkflowID: "wf", ExpID: "p.1", ChildID: 1}
	child := New(childFEI, &parentFEI, domain.NewTree("a", nil), domain.NewWorkitem(nil), deps)
	child.UpdatedTree = domain.NewTree("a", map[string]any{"iteration": 2})

	assert.NoError(t, child.propagateToParent(ctx))

	snap, err := deps.Store.Get(ctx, parentFEI)
	assert.NoError(t, err)
	assert.NotNil(t, snap.UpdatedTree)
	assert.Equal(t, 2, snap.UpdatedTree.Children[1].Attributes["iteration"])
}

func TestVariableScoping_SetPrefixEscape(t *testing.T) {
	// S6: set_variable("/x", 1) called at leaf L with chain L -> M -> R
	// lands in M, the nearest scope-owning ancestor starting from parent.
	ctx := context.Background()
	pool := &fakePool{}
	deps := newTestDeps(t, DefaultHook{}, pool)

	rootFEI := domain.FEI{WorkflowID: "wf", ExpID: "r", ChildID: 0}
	root := New(rootFEI, nil, domain.NewTree("root", nil), domain.NewWorkitem(nil), deps)
	root.Variables = map[string]any{}
	assert.NoError(t, deps.Store.Put(ctx, rootFEI, root.ToSnapshot()))

	midFEI := domain.FEI{WorkflowID: "wf", ExpID: "r.0", ChildID: 0}
	mid := New(midFEI, &rootFEI, domain.NewTree("seq", nil), domain.NewWorkitem(nil), deps)
	mid.Variables = map[string]any{}
	assert.NoError(t, deps.Store.Put(ctx, midFEI, mid.ToSnapshot()))

	leafFEI := domain.FEI{WorkflowID: "wf", ExpID: "r.0.0", ChildID: 0}
	leaf := New(leafFEI, &midFEI, domain.NewTree("leaf", nil), domain.NewWorkitem(nil), deps)

	var varEvents int
	bus := deps.Queue.(*workqueue.Bus)
	bus.Subscribe(domain.ChannelVariables, func(ctx context.Context, ev domain.Event) {
		varEvents++
	})

	assert.NoError(t, leaf.SetVariable(ctx, "/x", 1))

	midSnap, err := deps.Store.Get(ctx, midFEI)
	assert.NoError(t, err)
	assert.Equal(t, 1, midSnap.Variables["x"])

	v, ok := leaf.LookupVariable(ctx, "x")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, varEvents)
}

func TestTimeout_PromotesToSyntheticErrorEvent(t *testing.T) {
	// S4: on_timeout:"error" synthesizes a TimeoutError event carrying the
	// duration attribute as message and the resume payload; the workitem
	// is annotated with __timed_out__ by do_cancel before the handler runs.
	ctx := context.Background()
	pool := &fakePool{}
	deps := newTestDeps(t, parkHook{}, pool)

	var mu sync.Mutex
	var errEvents []domain.Event
	bus := deps.Queue.(*workqueue.Bus)
	bus.Subscribe(domain.ChannelErrors, func(ctx context.Context, ev domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		errEvents = append(errEvents, ev)
	})

	tree := domain.NewTree("task", map[string]any{"timeout": "1s", "on_timeout": "error"})
	fei := domain.FEI{WorkflowID: "wf", ExpID: "0", ChildID: 0}
	e := New(fei, nil, tree, domain.NewWorkitem(nil), deps)

	assert.NoError(t, e.DoApply(ctx))
	assert.NoError(t, e.DoCancel(ctx, domain.FlavourTimeout))
	assert.Equal(t, domain.StateTimingOut, e.State)
	assert.NotNil(t, e.AppliedWorkitem.Fields[domain.TimedOutKey])

	assert.NoError(t, e.ReplyToParent(ctx, e.AppliedWorkitem))

	// The error event is published with Emit, which does not wait for
	// subscribers.
	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, errEvents, 1)
	timeoutErr, ok := errEvents[0].Payload["error"].(*domain.TimeoutError)
	assert.True(t, ok)
	assert.Equal(t, "1s", timeoutErr.Message)
	assert.Equal(t, []string{"---"}, timeoutErr.StackTrace())
	assert.Equal(t, "wf", errEvents[0].Payload["wfid"])
}

func TestOnError_UndoRepliesNormallyWithoutReapply(t *testing.T) {
	// on_error:"undo" treats the already-performed cancel as the
	// resolution and replies to parent instead of reapplying anything.
	ctx := context.Background()
	pool := &fakePool{}
	deps := newTestDeps(t, parkHook{}, pool)

	tree := domain.NewTree("task", map[string]any{"on_error": "undo"})
	parentFEI := domain.FEI{WorkflowID: "wf", ExpID: "p", ChildID: 0}
	fei := domain.FEI{WorkflowID: "wf", ExpID: "0", ChildID: 0}
	e := New(fei, &parentFEI, tree, domain.NewWorkitem(nil), deps)

	assert.NoError(t, e.DoApply(ctx))
	assert.NoError(t, e.Fail(ctx))
	assert.Equal(t, domain.StateFailing, e.State)

	assert.NoError(t, e.ReplyToParent(ctx, e.AppliedWorkitem))

	assert.Empty(t, pool.applied)
	assert.Len(t, pool.repliedToParent, 1)
}
