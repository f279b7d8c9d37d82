package scheduler

import (
	"testing"
	"time"

	"github.com/tapcore-app/tapcore/internal/domain"
)

type recordingResetter struct {
	calls []domain.TaskType
}

func (r *recordingResetter) ResetTasks(taskType domain.TaskType, _ time.Time) (int64, error) {
	r.calls = append(r.calls, taskType)
	return 1, nil
}

func TestNextMidnight(t *testing.T) {
	tests := []struct {
		in, want time.Time
	}{
		{
			time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
			time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			// Exactly midnight advances to the next day, never fires twice.
			time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC),
			time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		if got := nextMidnight(tt.in); !got.Equal(tt.want) {
			t.Errorf("nextMidnight(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResetDue_DailyOnly(t *testing.T) {
	rec := &recordingResetter{}
	s := New(rec)

	// 2025-06-03 is a Tuesday.
	s.resetDue(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))
	if len(rec.calls) != 1 || rec.calls[0] != domain.TaskDaily {
		t.Errorf("calls = %v, want [daily]", rec.calls)
	}
}

func TestResetDue_MondayFiresWeekly(t *testing.T) {
	rec := &recordingResetter{}
	s := New(rec)

	// 2025-06-02 is a Monday.
	s.resetDue(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	if len(rec.calls) != 2 || rec.calls[1] != domain.TaskWeekly {
		t.Errorf("calls = %v, want [daily weekly]", rec.calls)
	}
}
