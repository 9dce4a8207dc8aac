package model

import (
	"context"
	"time"
)

type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	Assignee    string
	StartDate   *time.Time
	DueDate     *time.Time
	// EstimateHours is the estimated effort in hours, 0 when not estimated.
	EstimateHours int
	// DependsOn lists ids of tasks this task depends on, in insertion order.
	// Derived from the dependency edge set on reads.
	DependsOn []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewTask(projectID string, title string) *Task {
	return &Task{
		ProjectID: projectID,
		Title:     title,
		Status:    TaskStatusNotStarted,
		Priority:  TaskPriorityMedium,
	}
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

// TaskSortField names a sortable Task column. Zero value means store order.
type TaskSortField string

const (
	TaskSortByCreatedAt TaskSortField = "created_at"
	TaskSortByDueDate   TaskSortField = "due_date"
	TaskSortByPriority  TaskSortField = "priority"
	TaskSortByTitle     TaskSortField = "title"
)

type TaskFilter struct {
	ProjectID string
	Status    TaskStatus
	Priority  TaskPriority
	Assignee  string

	SortBy   TaskSortField
	SortDesc bool
	Limit    int
	Offset   int
}

// TaskRepository is the persistence contract for tasks. Absence is
// signalled by nil or an empty slice, never by an error, so callers
// decide policy.
type TaskRepository interface {
	FilterTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
	FetchTaskByID(ctx context.Context, id string) (*Task, error)
	FetchTasksByProject(ctx context.Context, projectID string) ([]Task, error)
	FetchTasksByAssignee(ctx context.Context, assignee string) ([]Task, error)
	FetchOverdueTasks(ctx context.Context, now time.Time) ([]Task, error)
	// FetchTasksInRange returns tasks whose scheduled window intersects
	// [start, end]. Tasks with neither a start nor a due date are skipped.
	FetchTasksInRange(ctx context.Context, start, end time.Time, filter TaskFilter) ([]Task, error)
	CreateTask(ctx context.Context, task *Task) error
	UpdateTask(ctx context.Context, task *Task) error
	UpdateTasks(ctx context.Context, tasks []Task) error
	// RemoveTask deletes the task and cascades removal of every
	// dependency edge touching it.
	RemoveTask(ctx context.Context, id string) error
	TaskExists(ctx context.Context, id string) (bool, error)
}
