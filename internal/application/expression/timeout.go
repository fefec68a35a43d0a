package expression

import (
	"context"
	"time"

	"github.com/smilemakc/flowexpr/internal/domain"
)

// considerTimeout implements do_apply step 4 (spec.md §4.1, §6): if a
// timeout attribute is present, schedule a cancel event with flavour
// timeout after the given duration and remember the job token so an
// early normal reply can unschedule it.
func (e *Expression) considerTimeout(ctx context.Context) error {
	raw := e.Tree().StringAttr("timeout")
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return domain.NewError(domain.ErrCodeInvalidInput,
			"invalid timeout duration attribute", err)
	}

	fei, pool := e.FEI, e.pool
	token := e.sched.In(d, fei, domain.FlavourTimeout, func() {
		// Runs on the scheduler's own goroutine, well after considerTimeout's
		// ctx may have ended; the pool's dispatch loop owns the cancel event
		// from here on.
		_ = pool.CancelExpression(context.Background(), fei, domain.FlavourTimeout)
	})
	e.TimeoutJobID = token
	return e.persist(ctx)
}

// unscheduleTimeout cancels a pending timeout job, called when the node
// tears down through any other path before the timer fires.
func (e *Expression) unscheduleTimeout() {
	if e.TimeoutJobID == "" {
		return
	}
	if e.sched != nil {
		e.sched.Unschedule(e.TimeoutJobID)
	}
	e.TimeoutJobID = ""
}
