package calendar

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/agalitsyn/task-planner/internal/model"
	"github.com/agalitsyn/task-planner/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store)
	svc.nowFn = func() time.Time { return time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC) }
	return svc, store
}

func addTask(t *testing.T, store *memory.Store, task model.Task) model.Task {
	t.Helper()
	if task.Status == "" {
		task.Status = model.TaskStatusNotStarted
	}
	if task.Priority == "" {
		task.Priority = model.TaskPriorityMedium
	}
	if err := store.CreateTask(context.Background(), &task); err != nil {
		t.Fatalf("create task %q: %v", task.Title, err)
	}
	return task
}

func timePtr(v time.Time) *time.Time { return &v }

func utc(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func TestGetSchedule_InvalidRange(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetSchedule(context.Background(),
		utc(2024, 2, 20, 0), utc(2024, 2, 10, 0), model.TaskFilter{})
	if model.CodeOf(err) != model.ErrCodeInvalidRange {
		t.Fatalf("expected INVALID_RANGE, got %v", err)
	}
}

func TestGetSchedule_SortedWithOverdue(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	late := addTask(t, store, model.Task{
		ID: "late", ProjectID: "p1", Title: "late",
		DueDate: timePtr(utc(2024, 2, 14, 12)),
	})
	soon := addTask(t, store, model.Task{
		ID: "soon", ProjectID: "p1", Title: "soon",
		DueDate: timePtr(utc(2024, 2, 17, 12)),
	})
	done := addTask(t, store, model.Task{
		ID: "done", ProjectID: "p1", Title: "done",
		Status:  model.TaskStatusCompleted,
		DueDate: timePtr(utc(2024, 2, 13, 12)),
	})

	entries, err := svc.GetSchedule(ctx, utc(2024, 2, 10, 0), utc(2024, 2, 20, 0), model.TaskFilter{})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Task.ID != done.ID || entries[1].Task.ID != late.ID || entries[2].Task.ID != soon.ID {
		t.Errorf("unexpected order: %s, %s, %s", entries[0].Task.ID, entries[1].Task.ID, entries[2].Task.ID)
	}

	byID := map[string]ScheduleEntry{}
	for _, e := range entries {
		byID[e.Task.ID] = e
	}
	if !byID[late.ID].Overdue {
		t.Error("past-due not-started task should be overdue")
	}
	if byID[done.ID].Overdue {
		t.Error("completed task must not be overdue")
	}
	if byID[soon.ID].DaysUntilDue <= 0 {
		t.Errorf("soon should have positive days until due, got %d", byID[soon.ID].DaysUntilDue)
	}
	if byID[late.ID].DaysUntilDue > 0 {
		t.Errorf("late should have non-positive days until due, got %d", byID[late.ID].DaysUntilDue)
	}
	if byID[soon.ID].Project.ID != "p1" {
		t.Errorf("entry should carry project ref, got %+v", byID[soon.ID].Project)
	}
}

func TestGetAvailability_EmptyCalendar(t *testing.T) {
	svc, _ := newTestService(t)

	// Any date works, including dates in the past.
	for _, date := range []time.Time{
		utc(2024, 2, 15, 0),
		utc(1999, 1, 1, 0),
		utc(2030, 12, 31, 0),
	} {
		slots, err := svc.GetAvailability(context.Background(), date, "")
		if err != nil {
			t.Fatalf("availability: %v", err)
		}
		if len(slots) != 10 {
			t.Fatalf("expected 10 slots, got %d", len(slots))
		}
		for i, s := range slots {
			if !s.Available {
				t.Errorf("slot %d should be available", i)
			}
			if s.Start.Hour() != 8+i || !s.End.Equal(s.Start.Add(time.Hour)) {
				t.Errorf("slot %d has wrong bounds: %s - %s", i, s.Start, s.End)
			}
		}
	}
}

func TestGetAvailability_HalfOpenOverlap(t *testing.T) {
	svc, store := newTestService(t)

	addTask(t, store, model.Task{
		ID: "x", ProjectID: "p1", Title: "meeting", Assignee: "john",
		StartDate: timePtr(utc(2024, 2, 15, 10)),
		DueDate:   timePtr(utc(2024, 2, 15, 14)),
	})

	slots, err := svc.GetAvailability(context.Background(), utc(2024, 2, 15, 0), "john")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(slots) != 10 {
		t.Fatalf("expected 10 slots, got %d", len(slots))
	}

	// 08-10 free, 10-14 busy, 14-18 free: the task ends at 14:00 so the
	// 14:00 slot is not occupied.
	for i, s := range slots {
		hour := 8 + i
		wantBusy := hour >= 10 && hour < 14
		if s.Available == wantBusy {
			t.Errorf("slot %02d:00: available=%v, want %v", hour, s.Available, !wantBusy)
		}
		if wantBusy && len(s.Tasks) != 1 {
			t.Errorf("slot %02d:00 should list the occupying task", hour)
		}
	}
}

func TestGetAvailability_AssigneeFilter(t *testing.T) {
	svc, store := newTestService(t)

	addTask(t, store, model.Task{
		ID: "x", ProjectID: "p1", Title: "johns work", Assignee: "john",
		StartDate: timePtr(utc(2024, 2, 15, 8)),
		DueDate:   timePtr(utc(2024, 2, 15, 18)),
	})

	slots, err := svc.GetAvailability(context.Background(), utc(2024, 2, 15, 0), "jane")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	for i, s := range slots {
		if !s.Available {
			t.Errorf("slot %d should be free for jane", i)
		}
	}
}

func TestDetectConflicts_SpecScenario(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	x := addTask(t, store, model.Task{
		ID: "x", ProjectID: "p1", Title: "X", Assignee: "john",
		StartDate: timePtr(utc(2024, 2, 15, 10)),
		DueDate:   timePtr(utc(2024, 2, 15, 14)),
	})

	// Overlapping window, same assignee, different project.
	conflicts, err := svc.DetectConflicts(ctx, Candidate{
		ProjectID: "p2",
		Assignee:  "john",
		Start:     utc(2024, 2, 15, 11),
		End:       utc(2024, 2, 15, 15),
	})
	if err != nil {
		t.Fatalf("conflicts: %v", err)
	}

	var assignee, resource, overlap int
	for _, c := range conflicts {
		if c.TaskID != x.ID {
			t.Errorf("conflict references wrong task %s", c.TaskID)
		}
		switch c.Type {
		case ConflictAssigneeOverlap:
			assignee++
			if !strings.Contains(c.Reason, "john") {
				t.Errorf("assignee conflict reason should mention the assignee: %q", c.Reason)
			}
		case ConflictResource:
			resource++
		case ConflictTimeOverlap:
			overlap++
		}
	}
	if assignee != 1 || overlap != 1 || resource != 0 {
		t.Errorf("expected 1 assignee + 1 overlap conflict, got assignee=%d resource=%d overlap=%d",
			assignee, resource, overlap)
	}

	// Disjoint window: no conflicts at all.
	conflicts, err = svc.DetectConflicts(ctx, Candidate{
		ProjectID: "p2",
		Assignee:  "john",
		Start:     utc(2024, 2, 15, 15),
		End:       utc(2024, 2, 15, 17),
	})
	if err != nil {
		t.Fatalf("conflicts: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("expected no conflicts, got %+v", conflicts)
	}
}

func TestDetectConflicts_MultipleRecordsPerTask(t *testing.T) {
	svc, store := newTestService(t)

	addTask(t, store, model.Task{
		ID: "x", ProjectID: "p1", Title: "X", Assignee: "john",
		StartDate: timePtr(utc(2024, 2, 15, 10)),
		DueDate:   timePtr(utc(2024, 2, 15, 14)),
	})

	// Same assignee and same project: three independent records.
	conflicts, err := svc.DetectConflicts(context.Background(), Candidate{
		ProjectID: "p1",
		Assignee:  "john",
		Start:     utc(2024, 2, 15, 9),
		End:       utc(2024, 2, 15, 12),
	})
	if err != nil {
		t.Fatalf("conflicts: %v", err)
	}
	if len(conflicts) != 3 {
		t.Fatalf("expected 3 conflict records for one task, got %d: %+v", len(conflicts), conflicts)
	}
}

func TestDetectConflicts_ExcludesSelf(t *testing.T) {
	svc, store := newTestService(t)

	addTask(t, store, model.Task{
		ID: "x", ProjectID: "p1", Title: "X", Assignee: "john",
		StartDate: timePtr(utc(2024, 2, 15, 10)),
		DueDate:   timePtr(utc(2024, 2, 15, 14)),
	})

	conflicts, err := svc.DetectConflicts(context.Background(), Candidate{
		ProjectID:     "p1",
		Assignee:      "john",
		Start:         utc(2024, 2, 15, 10),
		End:           utc(2024, 2, 15, 14),
		ExcludeTaskID: "x",
	})
	if err != nil {
		t.Fatalf("conflicts: %v", err)
	}
	if len(conflicts) != 0 {
		t.Errorf("rescheduling check must skip the task itself, got %+v", conflicts)
	}
}

func TestSuggestNextAvailableSlot_SkipsBookedDay(t *testing.T) {
	svc, store := newTestService(t)

	// Jane is fully booked on the first scan day and free afterwards.
	addTask(t, store, model.Task{
		ID: "busy", ProjectID: "p1", Title: "booked solid", Assignee: "jane",
		StartDate: timePtr(utc(2024, 2, 15, 8)),
		DueDate:   timePtr(utc(2024, 2, 15, 18)),
	})

	startAfter := utc(2024, 2, 15, 0)
	suggestions, err := svc.SuggestNextAvailableSlot(context.Background(), 2, "jane", &startAfter)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(suggestions) != 5 {
		t.Fatalf("expected 5 suggestions, got %d", len(suggestions))
	}

	first := suggestions[0]
	if first.Start.Day() != 16 {
		t.Errorf("first suggestion should land on the open day, got %s", first.Start)
	}
	if first.Confidence >= 100 {
		t.Errorf("day-offset suggestion must score below a same-day one, got %d", first.Confidence)
	}
	if got := first.End.Sub(first.Start); got != 2*time.Hour {
		t.Errorf("suggestion should span exactly 2h, got %s", got)
	}
	for i := 1; i < len(suggestions); i++ {
		if suggestions[i].Confidence > suggestions[i-1].Confidence {
			t.Errorf("suggestions not sorted by confidence: %d after %d",
				suggestions[i].Confidence, suggestions[i-1].Confidence)
		}
	}
}

func TestSuggestNextAvailableSlot_NoSlots(t *testing.T) {
	svc, store := newTestService(t)

	// One task blankets the whole scan horizon.
	addTask(t, store, model.Task{
		ID: "wall", ProjectID: "p1", Title: "wall", Assignee: "jane",
		StartDate: timePtr(utc(2024, 2, 1, 0)),
		DueDate:   timePtr(utc(2024, 6, 1, 0)),
	})

	startAfter := utc(2024, 2, 15, 0)
	_, err := svc.SuggestNextAvailableSlot(context.Background(), 1, "jane", &startAfter)
	if model.CodeOf(err) != model.ErrCodeNoSlotsAvailable {
		t.Fatalf("expected NO_SLOTS_AVAILABLE, got %v", err)
	}
}

func TestSuggestNextAvailableSlot_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SuggestNextAvailableSlot(context.Background(), 0, "", nil)
	if model.CodeOf(err) != model.ErrCodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		daysOffset int
		want       int
	}{
		{0, 100},
		{1, 98},
		{7, 86},
		{8, 74}, // extra penalty past a week
		{29, 32},
		{40, 20}, // floored
	}
	for _, tc := range tests {
		if got := confidence(tc.daysOffset); got != tc.want {
			t.Errorf("confidence(%d) = %d, want %d", tc.daysOffset, got, tc.want)
		}
	}
}

func TestSuggestFractionalDuration(t *testing.T) {
	svc, _ := newTestService(t)

	startAfter := utc(2024, 2, 15, 0)
	suggestions, err := svc.SuggestNextAvailableSlot(context.Background(), 2.5, "", &startAfter)
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	first := suggestions[0]
	if got := first.End.Sub(first.Start); got != 2*time.Hour+30*time.Minute {
		t.Errorf("expected a 2.5h window, got %s", got)
	}
	if first.Start.Hour() != 8 {
		t.Errorf("expected the run to start at workday open, got %s", first.Start)
	}
}
