package calendar

import (
	"time"

	"github.com/agalitsyn/task-planner/internal/model"
)

// ScheduleEntry is a task enriched for calendar rendering. DaysUntilDue
// is signed and only meaningful when the task has a due date.
type ScheduleEntry struct {
	Task         model.Task
	Project      model.ProjectRef
	Overdue      bool
	DaysUntilDue int
}

// AvailabilitySlot is one fixed one-hour window of the 08:00-18:00
// workday. Tasks lists every task occupying the window.
type AvailabilitySlot struct {
	Start     time.Time
	End       time.Time
	Available bool
	Tasks     []model.Task
}

type ConflictType string

const (
	ConflictAssigneeOverlap ConflictType = "assignee-overlap"
	ConflictResource        ConflictType = "resource-conflict"
	ConflictTimeOverlap     ConflictType = "time-overlap"
)

// Conflict is one reason a candidate window clashes with an existing
// task. A single task may yield several conflicts; they are reported
// independently and never deduplicated.
type Conflict struct {
	Type   ConflictType
	TaskID string
	Reason string
}

// Candidate describes a task being checked before creation or
// rescheduling. ExcludeTaskID skips an existing task (the candidate
// itself) during the scan.
type Candidate struct {
	ProjectID     string
	Assignee      string
	Start         time.Time
	End           time.Time
	ExcludeTaskID string
}

// SuggestedSlot is a proposed scheduling window. Confidence ranks
// proposals from 0 to 100 by proximity; it is a heuristic, not a
// probability.
type SuggestedSlot struct {
	Start      time.Time
	End        time.Time
	Confidence int
	Reason     string
}
