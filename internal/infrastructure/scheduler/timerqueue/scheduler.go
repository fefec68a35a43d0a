// Package timerqueue implements the expression.Scheduler collaborator on
// top of time.AfterFunc, grounded on the teacher's duration-driven retry
// scheduling (internal/application/executor/retry.go).
package timerqueue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/flowexpr/internal/domain"
)

// Scheduler schedules timed wake-ups and hands back uuid job tokens that
// Unschedule can cancel before they fire.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// In schedules fire to run after d elapses and returns the job token.
// fei and flavour are accepted to mirror the collaborator interface
// (spec.md §6: `scheduler.in(duration, fei, :cancel) -> job_token`); this
// implementation doesn't need them beyond documentation since fire
// already closes over everything it needs.
func (s *Scheduler) In(d time.Duration, fei domain.FEI, flavour domain.Flavour, fire func()) string {
	token := uuid.NewString()

	s.mu.Lock()
	s.timers[token] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, token)
		s.mu.Unlock()
		fire()
	})
	s.mu.Unlock()

	return token
}

// Unschedule cancels a pending timer if it hasn't fired yet.
func (s *Scheduler) Unschedule(jobToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[jobToken]; ok {
		t.Stop()
		delete(s.timers, jobToken)
	}
}
