// Package scheduler runs the periodic task resets: daily progress rows are
// dropped at midnight, weekly ones at Monday midnight. Progress rows are
// also lazily re-created per period on read, so the scheduler is cleanup,
// not correctness — it keeps the user_tasks table from accumulating dead
// periods.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/tapcore-app/tapcore/internal/domain"
)

// Resetter is the storage operation the scheduler drives.
type Resetter interface {
	ResetTasks(taskType domain.TaskType, now time.Time) (int64, error)
}

// Scheduler fires task resets at period boundaries.
type Scheduler struct {
	db  Resetter
	now func() time.Time
}

// New creates a scheduler over the given storage.
func New(db Resetter) *Scheduler {
	return &Scheduler{db: db, now: time.Now}
}

// Run blocks until ctx is cancelled, resetting expired task progress at
// every midnight boundary.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := nextMidnight(s.now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		s.resetDue(next)
	}
}

// resetDue runs the resets for the boundary that just passed. Weekly resets
// only fire when the boundary is a Monday midnight.
func (s *Scheduler) resetDue(boundary time.Time) {
	if n, err := s.db.ResetTasks(domain.TaskDaily, boundary); err != nil {
		log.Printf("[scheduler] daily reset failed: %v", err)
	} else if n > 0 {
		log.Printf("[scheduler] daily reset cleared %d progress rows", n)
	}

	if boundary.Weekday() != time.Monday {
		return
	}
	if n, err := s.db.ResetTasks(domain.TaskWeekly, boundary); err != nil {
		log.Printf("[scheduler] weekly reset failed: %v", err)
	} else if n > 0 {
		log.Printf("[scheduler] weekly reset cleared %d progress rows", n)
	}
}

// nextMidnight returns the first midnight strictly after t, in t's location.
func nextMidnight(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
