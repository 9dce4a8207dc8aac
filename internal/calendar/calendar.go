// Package calendar answers read-mostly scheduling questions over the
// task store: date-range schedules, hourly availability, conflict
// detection and slot suggestion.
package calendar

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/agalitsyn/task-planner/internal/model"
)

const (
	workdayStartHour = 8
	workdayEndHour   = 18
	slotsPerDay      = workdayEndHour - workdayStartHour

	// suggestion scan depth and cap
	suggestScanDays = 30
	suggestLimit    = 5
)

type Service struct {
	tasks model.TaskRepository

	nowFn func() time.Time
}

func NewService(tasks model.TaskRepository) *Service {
	return &Service{tasks: tasks, nowFn: time.Now}
}

// GetSchedule returns entries for tasks due within [start, end], plus
// undated tasks whose start date falls inside the range. Entries are
// sorted ascending by due date with undated tasks last.
func (s *Service) GetSchedule(ctx context.Context, start, end time.Time, filter model.TaskFilter) ([]ScheduleEntry, error) {
	if start.After(end) {
		return nil, model.NewError(model.ErrCodeInvalidRange,
			"start %s is after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	tasks, err := s.tasks.FetchTasksInRange(ctx, start, end, filter)
	if err != nil {
		return nil, err
	}

	now := s.nowFn()
	var entries []ScheduleEntry
	for _, t := range tasks {
		if t.DueDate != nil && (t.DueDate.Before(start) || t.DueDate.After(end)) {
			continue
		}
		entries = append(entries, ScheduleEntry{
			Task:         t,
			Project:      model.ProjectRef{ID: t.ProjectID},
			Overdue:      isOverdue(&t, now),
			DaysUntilDue: daysUntilDue(&t, now),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Task.DueDate, entries[j].Task.DueDate
		if (a == nil) != (b == nil) {
			return b == nil
		}
		if a != nil && !a.Equal(*b) {
			return a.Before(*b)
		}
		return entries[i].Task.ID < entries[j].Task.ID
	})
	return entries, nil
}

// GetAvailability partitions 08:00-18:00 of the given date into ten
// one-hour slots. A slot is unavailable iff some task window overlaps
// it under half-open semantics: a task starting exactly at the slot's
// end does not occupy it, one starting inside it does. An empty
// assignee means no assignee filtering.
func (s *Service) GetAvailability(ctx context.Context, date time.Time, assignee string) ([]AvailabilitySlot, error) {
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, workdayStartHour, 0, 0, 0, date.Location())
	dayEnd := time.Date(y, m, d, workdayEndHour, 0, 0, 0, date.Location())

	tasks, err := s.tasks.FetchTasksInRange(ctx, dayStart, dayEnd, model.TaskFilter{Assignee: assignee})
	if err != nil {
		return nil, err
	}

	slots := make([]AvailabilitySlot, 0, slotsPerDay)
	for h := 0; h < slotsPerDay; h++ {
		slot := AvailabilitySlot{
			Start:     dayStart.Add(time.Duration(h) * time.Hour),
			End:       dayStart.Add(time.Duration(h+1) * time.Hour),
			Available: true,
		}
		for _, t := range tasks {
			lo, hi, ok := taskWindow(&t)
			if !ok {
				continue
			}
			if lo.Before(slot.End) && hi.After(slot.Start) {
				slot.Available = false
				slot.Tasks = append(slot.Tasks, t)
			}
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// DetectConflicts reports every clash between the candidate window and
// existing tasks. Each overlapping task yields a time-overlap conflict
// unconditionally, an assignee-overlap conflict when the assignee
// matches, and a resource conflict when the project matches.
func (s *Service) DetectConflicts(ctx context.Context, candidate Candidate) ([]Conflict, error) {
	if candidate.Start.After(candidate.End) {
		return nil, model.NewError(model.ErrCodeInvalidRange,
			"candidate start %s is after end %s",
			candidate.Start.Format(time.RFC3339), candidate.End.Format(time.RFC3339))
	}

	tasks, err := s.tasks.FetchTasksInRange(ctx, candidate.Start, candidate.End, model.TaskFilter{})
	if err != nil {
		return nil, err
	}

	var conflicts []Conflict
	for _, t := range tasks {
		if t.ID == candidate.ExcludeTaskID {
			continue
		}
		lo, hi, ok := taskWindow(&t)
		if !ok {
			continue
		}
		if !lo.Before(candidate.End) || !hi.After(candidate.Start) {
			continue
		}

		if candidate.Assignee != "" && t.Assignee == candidate.Assignee {
			conflicts = append(conflicts, Conflict{
				Type:   ConflictAssigneeOverlap,
				TaskID: t.ID,
				Reason: fmt.Sprintf("assignee %s already has task %q scheduled in this window", t.Assignee, t.Title),
			})
		}
		if candidate.ProjectID != "" && t.ProjectID == candidate.ProjectID {
			conflicts = append(conflicts, Conflict{
				Type:   ConflictResource,
				TaskID: t.ID,
				Reason: fmt.Sprintf("project %s already has task %q scheduled in this window", t.ProjectID, t.Title),
			})
		}
		conflicts = append(conflicts, Conflict{
			Type:   ConflictTimeOverlap,
			TaskID: t.ID,
			Reason: fmt.Sprintf("task %q overlaps the requested window", t.Title),
		})
	}
	return conflicts, nil
}

// SuggestNextAvailableSlot scans up to 30 consecutive days for a run of
// ceil(durationHours) free one-hour slots and proposes windows of
// exactly durationHours. Proposals are capped at 5 and sorted by
// confidence, which decays with distance from the requested start.
func (s *Service) SuggestNextAvailableSlot(ctx context.Context, durationHours float64, assignee string, startAfter *time.Time) ([]SuggestedSlot, error) {
	if durationHours <= 0 {
		return nil, model.NewError(model.ErrCodeValidation, "duration must be positive")
	}
	needed := int(math.Ceil(durationHours))

	start := s.nowFn()
	if startAfter != nil {
		start = *startAfter
	}

	var suggestions []SuggestedSlot
	for offset := 0; offset < suggestScanDays && len(suggestions) < suggestLimit; offset++ {
		day := start.AddDate(0, 0, offset)
		slots, err := s.GetAvailability(ctx, day, assignee)
		if err != nil {
			return nil, err
		}

		runStart := -1
		run := 0
		for i, slot := range slots {
			if !slot.Available {
				runStart, run = -1, 0
				continue
			}
			if runStart < 0 {
				runStart = i
			}
			run++
			if run == needed {
				break
			}
		}
		if run < needed {
			continue
		}

		slotStart := slots[runStart].Start
		suggestions = append(suggestions, SuggestedSlot{
			Start:      slotStart,
			End:        slotStart.Add(time.Duration(durationHours * float64(time.Hour))),
			Confidence: confidence(offset),
			Reason:     suggestReason(offset, needed, slotStart),
		})
	}

	if len(suggestions) == 0 {
		return nil, model.NewError(model.ErrCodeNoSlotsAvailable,
			"no run of %d free hour(s) within %d days", needed, suggestScanDays)
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	return suggestions, nil
}

// confidence decays by 2 points per day out, with an extra 10-point
// penalty past a week, floored at 20.
func confidence(daysOffset int) int {
	c := 100 - 2*daysOffset
	if daysOffset > 7 {
		c -= 10
	}
	if c < 20 {
		c = 20
	}
	return c
}

func suggestReason(daysOffset, slots int, start time.Time) string {
	when := fmt.Sprintf("in %d days", daysOffset)
	switch daysOffset {
	case 0:
		when = "today"
	case 1:
		when = "tomorrow"
	}
	return fmt.Sprintf("%d consecutive free hour(s) %s starting %s", slots, when, start.Format("2006-01-02 15:04"))
}

func isOverdue(t *model.Task, now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != model.TaskStatusCompleted
}

// daysUntilDue is signed: negative once the due date has passed, counted
// in whole days rounded toward the due date.
func daysUntilDue(t *model.Task, now time.Time) int {
	if t.DueDate == nil {
		return 0
	}
	return int(math.Ceil(t.DueDate.Sub(now).Hours() / 24))
}

func taskWindow(t *model.Task) (time.Time, time.Time, bool) {
	switch {
	case t.StartDate != nil && t.DueDate != nil:
		return *t.StartDate, *t.DueDate, true
	case t.StartDate != nil:
		return *t.StartDate, *t.StartDate, true
	case t.DueDate != nil:
		return *t.DueDate, *t.DueDate, true
	}
	return time.Time{}, time.Time{}, false
}
