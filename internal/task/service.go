// Package task implements the task lifecycle: CRUD with validation, the
// status state machine, dependency management over an always-acyclic
// edge set, and critical path analysis.
package task

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agalitsyn/task-planner/internal/model"
)

// workdayHours is the span of the canonical 08:00-18:00 workday used to
// round hour estimates up to whole days.
const workdayHours = 10

// DurationEstimator converts a task into a duration in whole days for
// critical path analysis. Implementations must return at least 1.
type DurationEstimator func(t model.Task) int

// DefaultEstimator rounds EstimateHours up to whole workdays and falls
// back to a single day for unestimated tasks.
func DefaultEstimator(t model.Task) int {
	if t.EstimateHours <= 0 {
		return 1
	}
	days := (t.EstimateHours + workdayHours - 1) / workdayHours
	if days < 1 {
		days = 1
	}
	return days
}

type Service struct {
	tasks    model.TaskRepository
	deps     model.DependencyRepository
	estimate DurationEstimator

	nowFn func() time.Time
}

// NewService wires the task service to its repositories. A nil estimator
// selects DefaultEstimator.
func NewService(tasks model.TaskRepository, deps model.DependencyRepository, estimate DurationEstimator) *Service {
	if estimate == nil {
		estimate = DefaultEstimator
	}
	return &Service{
		tasks:    tasks,
		deps:     deps,
		estimate: estimate,
		nowFn:    time.Now,
	}
}

func (s *Service) CreateTask(ctx context.Context, task *model.Task) error {
	if task.Status == "" {
		task.Status = model.TaskStatusNotStarted
	}
	if task.Priority == "" {
		task.Priority = model.TaskPriorityMedium
	}
	if err := validateTask(task); err != nil {
		return err
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	// Dependencies listed on the payload are validated up front so the
	// task is never persisted half-wired.
	for _, depID := range task.DependsOn {
		if depID == task.ID {
			return model.NewError(model.ErrCodeCyclicDependency, "task %s cannot depend on itself", task.ID)
		}
		if err := s.mustExist(ctx, depID); err != nil {
			return err
		}
	}

	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return err
	}
	for _, depID := range task.DependsOn {
		if err := s.deps.AddDependency(ctx, task.ID, depID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.tasks.FetchTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, model.NewError(model.ErrCodeTaskNotFound, "task %s not found", id)
	}
	return task, nil
}

func (s *Service) ListTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	return s.tasks.FilterTasks(ctx, filter)
}

func (s *Service) ListOverdueTasks(ctx context.Context) ([]model.Task, error) {
	return s.tasks.FetchOverdueTasks(ctx, s.nowFn())
}

// UpdateTask persists field changes. A status change rides through the
// same transition rules as UpdateStatus.
func (s *Service) UpdateTask(ctx context.Context, task *model.Task) error {
	cur, err := s.GetTask(ctx, task.ID)
	if err != nil {
		return err
	}
	if err := validateTask(task); err != nil {
		return err
	}
	if task.Status != cur.Status {
		if err := s.checkTransition(ctx, cur, task.Status); err != nil {
			return err
		}
	}
	return s.tasks.UpdateTask(ctx, task)
}

// DeleteTask removes a task and its outgoing dependency edges. Removal
// is refused while other tasks still depend on it.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	if err := s.mustExist(ctx, id); err != nil {
		return err
	}
	dependents, err := s.deps.FetchDependents(ctx, id)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		ids := make([]string, len(dependents))
		for i, d := range dependents {
			ids[i] = d.TaskID
		}
		return model.NewError(model.ErrCodeHasDependents,
			"task %s cannot be deleted: depended on by %s", id, strings.Join(ids, ", "))
	}
	return s.tasks.RemoveTask(ctx, id)
}

// UpdateStatus moves a task along the lifecycle table. Entering
// in-progress additionally requires every direct dependency to be
// completed.
func (s *Service) UpdateStatus(ctx context.Context, id string, status model.TaskStatus) (*model.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkTransition(ctx, task, status); err != nil {
		return nil, err
	}
	task.Status = status
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) checkTransition(ctx context.Context, task *model.Task, to model.TaskStatus) error {
	if !to.Valid() {
		return model.NewError(model.ErrCodeValidation, "unknown status %q", to)
	}
	if !model.CanTransition(task.Status, to) {
		return model.NewError(model.ErrCodeInvalidTransition,
			"cannot transition task %s from %s to %s, valid transitions: %s",
			task.ID, task.Status, to, joinStatuses(model.ValidTransitions(task.Status)))
	}
	if to == model.TaskStatusInProgress {
		blocking, err := s.blockingDependencies(ctx, task.ID)
		if err != nil {
			return err
		}
		if len(blocking) > 0 {
			return model.NewError(model.ErrCodeDependenciesNotMet,
				"task %s cannot start: waiting on %s", task.ID, strings.Join(blocking, ", "))
		}
	}
	return nil
}

// CanStartTask reports whether every direct dependency of the task is
// completed.
func (s *Service) CanStartTask(ctx context.Context, id string) (bool, error) {
	if err := s.mustExist(ctx, id); err != nil {
		return false, err
	}
	blocking, err := s.blockingDependencies(ctx, id)
	if err != nil {
		return false, err
	}
	return len(blocking) == 0, nil
}

func (s *Service) blockingDependencies(ctx context.Context, id string) ([]string, error) {
	deps, err := s.deps.FetchDependencies(ctx, id)
	if err != nil {
		return nil, err
	}
	var blocking []string
	for _, d := range deps {
		dep, err := s.tasks.FetchTaskByID(ctx, d.DependsOnID)
		if err != nil {
			return nil, err
		}
		if dep == nil || dep.Status != model.TaskStatusCompleted {
			blocking = append(blocking, d.DependsOnID)
		}
	}
	return blocking, nil
}

// AddDependency persists the edge taskID -> dependsOnID after the cycle
// check passes. Nothing is mutated on a would-be cycle.
func (s *Service) AddDependency(ctx context.Context, taskID, dependsOnID string) error {
	if err := s.mustExist(ctx, taskID); err != nil {
		return err
	}
	if err := s.mustExist(ctx, dependsOnID); err != nil {
		return err
	}
	cyclic, err := s.deps.HasCyclicDependency(ctx, taskID, dependsOnID)
	if err != nil {
		return err
	}
	if cyclic {
		return model.NewError(model.ErrCodeCyclicDependency,
			"dependency %s -> %s would create a cycle", taskID, dependsOnID)
	}
	return s.deps.AddDependency(ctx, taskID, dependsOnID)
}

func (s *Service) RemoveDependency(ctx context.Context, taskID, dependsOnID string) error {
	if err := s.mustExist(ctx, taskID); err != nil {
		return err
	}
	return s.deps.RemoveDependency(ctx, taskID, dependsOnID)
}

// GetDependencyChain returns the transitive closure of upstream
// dependencies of the task, excluding the task itself, in depth-first
// discovery order.
func (s *Service) GetDependencyChain(ctx context.Context, taskID string) ([]string, error) {
	if err := s.mustExist(ctx, taskID); err != nil {
		return nil, err
	}

	visited := map[string]bool{taskID: true}
	var chain []string
	var walk func(id string) error
	walk = func(id string) error {
		deps, err := s.deps.FetchDependencies(ctx, id)
		if err != nil {
			return err
		}
		for _, d := range deps {
			if visited[d.DependsOnID] {
				continue
			}
			visited[d.DependsOnID] = true
			chain = append(chain, d.DependsOnID)
			if err := walk(d.DependsOnID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(taskID); err != nil {
		return nil, err
	}
	return chain, nil
}

// BulkUpdateStatus validates every transition before applying any, so a
// single bad id fails the whole batch.
func (s *Service) BulkUpdateStatus(ctx context.Context, ids []string, status model.TaskStatus) ([]model.Task, error) {
	tasks := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		task, err := s.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.checkTransition(ctx, task, status); err != nil {
			return nil, err
		}
		task.Status = status
		tasks = append(tasks, *task)
	}
	if err := s.tasks.UpdateTasks(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ReorderTasks returns the project's tasks in the requested order. The
// order applies to the returned slice only; it is not a persisted field.
func (s *Service) ReorderTasks(ctx context.Context, projectID string, orderedIDs []string) ([]model.Task, error) {
	tasks, err := s.tasks.FetchTasksByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	seen := make(map[string]bool, len(orderedIDs))
	ordered := make([]model.Task, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		t, ok := byID[id]
		if !ok {
			return nil, model.NewError(model.ErrCodeValidation,
				"task %s does not belong to project %s", id, projectID)
		}
		if seen[id] {
			return nil, model.NewError(model.ErrCodeValidation, "duplicate task id %s", id)
		}
		seen[id] = true
		ordered = append(ordered, t)
	}
	return ordered, nil
}

func (s *Service) mustExist(ctx context.Context, id string) error {
	ok, err := s.tasks.TaskExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewError(model.ErrCodeTaskNotFound, "task %s not found", id)
	}
	return nil
}

func validateTask(task *model.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return model.NewError(model.ErrCodeValidation, "task title is required")
	}
	if task.ProjectID == "" {
		return model.NewError(model.ErrCodeValidation, "task project is required")
	}
	if !task.Status.Valid() {
		return model.NewError(model.ErrCodeValidation, "unknown status %q", task.Status)
	}
	if !task.Priority.Valid() {
		return model.NewError(model.ErrCodeValidation, "unknown priority %q", task.Priority)
	}
	if task.EstimateHours < 0 {
		return model.NewError(model.ErrCodeValidation, "estimate must not be negative")
	}
	if task.StartDate != nil && task.DueDate != nil && task.DueDate.Before(*task.StartDate) {
		return model.NewError(model.ErrCodeValidation, "due date %s is before start date %s",
			task.DueDate.Format(time.RFC3339), task.StartDate.Format(time.RFC3339))
	}
	return nil
}

func joinStatuses(statuses []model.TaskStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
