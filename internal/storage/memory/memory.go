// Package memory holds an in-memory implementation of the task and
// dependency repositories. It backs the test suites and is good enough
// for single-process deployments; cross-call coordination between
// writers is the caller's concern.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agalitsyn/task-planner/internal/model"
)

type Store struct {
	mu sync.RWMutex

	tasks map[string]*model.Task
	edges []model.Dependency
	// fwd[taskID] lists ids the task depends on; rev[taskID] lists ids
	// depending on it. Kept alongside the edge list so tasks stay free
	// of back-pointers.
	fwd map[string][]string
	rev map[string][]string

	nowFn func() time.Time
}

func NewStore() *Store {
	return &Store{
		tasks: make(map[string]*model.Task),
		fwd:   make(map[string][]string),
		rev:   make(map[string][]string),
		nowFn: time.Now,
	}
}

func (s *Store) CreateTask(ctx context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	task.CreatedAt = now
	task.UpdatedAt = now

	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.tasks[task.ID]
	if !ok {
		return nil
	}
	task.CreatedAt = cur.CreatedAt
	task.UpdatedAt = s.nowFn()

	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *Store) UpdateTasks(ctx context.Context, tasks []model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	for i := range tasks {
		cur, ok := s.tasks[tasks[i].ID]
		if !ok {
			continue
		}
		tasks[i].CreatedAt = cur.CreatedAt
		tasks[i].UpdatedAt = now
		cp := tasks[i]
		s.tasks[cp.ID] = &cp
	}
	return nil
}

func (s *Store) RemoveTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, id)

	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.TaskID == id || e.DependsOnID == id {
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept
	s.rebuildAdjacency()
	return nil
}

func (s *Store) TaskExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tasks[id]
	return ok, nil
}

func (s *Store) FetchTaskByID(ctx context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := s.hydrate(*t)
	return &cp, nil
}

func (s *Store) FilterTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Task
	for _, t := range s.tasks {
		if !matches(t, filter) {
			continue
		}
		out = append(out, s.hydrate(*t))
	}
	sortTasks(out, filter.SortBy, filter.SortDesc)
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (s *Store) FetchTasksByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	return s.FilterTasks(ctx, model.TaskFilter{ProjectID: projectID})
}

func (s *Store) FetchTasksByAssignee(ctx context.Context, assignee string) ([]model.Task, error) {
	return s.FilterTasks(ctx, model.TaskFilter{Assignee: assignee})
}

func (s *Store) FetchOverdueTasks(ctx context.Context, now time.Time) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Task
	for _, t := range s.tasks {
		if t.DueDate == nil || !t.DueDate.Before(now) {
			continue
		}
		if t.Status == model.TaskStatusCompleted {
			continue
		}
		out = append(out, s.hydrate(*t))
	}
	sortTasks(out, model.TaskSortByDueDate, false)
	return out, nil
}

func (s *Store) FetchTasksInRange(ctx context.Context, start, end time.Time, filter model.TaskFilter) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Task
	for _, t := range s.tasks {
		if !matches(t, filter) {
			continue
		}
		lo, hi, ok := window(t)
		if !ok {
			continue
		}
		if lo.After(end) || hi.Before(start) {
			continue
		}
		out = append(out, s.hydrate(*t))
	}
	sortTasks(out, model.TaskSortByDueDate, false)
	return out, nil
}

func (s *Store) AddDependency(ctx context.Context, taskID, dependsOnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.edges {
		if e.TaskID == taskID && e.DependsOnID == dependsOnID {
			return nil
		}
	}
	s.edges = append(s.edges, model.Dependency{TaskID: taskID, DependsOnID: dependsOnID})
	s.fwd[taskID] = append(s.fwd[taskID], dependsOnID)
	s.rev[dependsOnID] = append(s.rev[dependsOnID], taskID)
	return nil
}

func (s *Store) RemoveDependency(ctx context.Context, taskID, dependsOnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.TaskID == taskID && e.DependsOnID == dependsOnID {
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept
	s.rebuildAdjacency()
	return nil
}

func (s *Store) FetchDependencies(ctx context.Context, taskID string) ([]model.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Dependency
	for _, id := range s.fwd[taskID] {
		out = append(out, model.Dependency{TaskID: taskID, DependsOnID: id})
	}
	return out, nil
}

func (s *Store) FetchDependents(ctx context.Context, taskID string) ([]model.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Dependency
	for _, id := range s.rev[taskID] {
		out = append(out, model.Dependency{TaskID: id, DependsOnID: taskID})
	}
	return out, nil
}

// HasCyclicDependency reports whether taskID is reachable from
// proposedDependsOnID over existing depends-on edges.
func (s *Store) HasCyclicDependency(ctx context.Context, taskID, proposedDependsOnID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := make(map[string]bool)
	stack := []string{proposedDependsOnID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == taskID {
			return true, nil
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		stack = append(stack, s.fwd[cur]...)
	}
	return false, nil
}

func (s *Store) rebuildAdjacency() {
	s.fwd = make(map[string][]string)
	s.rev = make(map[string][]string)
	for _, e := range s.edges {
		s.fwd[e.TaskID] = append(s.fwd[e.TaskID], e.DependsOnID)
		s.rev[e.DependsOnID] = append(s.rev[e.DependsOnID], e.TaskID)
	}
}

func (s *Store) hydrate(t model.Task) model.Task {
	deps := s.fwd[t.ID]
	t.DependsOn = make([]string, len(deps))
	copy(t.DependsOn, deps)
	return t
}

func matches(t *model.Task, f model.TaskFilter) bool {
	if f.ProjectID != "" && t.ProjectID != f.ProjectID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Assignee != "" && t.Assignee != f.Assignee {
		return false
	}
	return true
}

func window(t *model.Task) (time.Time, time.Time, bool) {
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

var priorityRank = map[model.TaskPriority]int{
	model.TaskPriorityLow:    0,
	model.TaskPriorityMedium: 1,
	model.TaskPriorityHigh:   2,
	model.TaskPriorityUrgent: 3,
}

func sortTasks(tasks []model.Task, by model.TaskSortField, desc bool) {
	less := func(a, b *model.Task) bool {
		switch by {
		case model.TaskSortByDueDate:
			if a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate) {
				return a.DueDate.Before(*b.DueDate)
			}
		case model.TaskSortByPriority:
			if priorityRank[a.Priority] != priorityRank[b.Priority] {
				return priorityRank[a.Priority] < priorityRank[b.Priority]
			}
		case model.TaskSortByTitle:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID < b.ID
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := &tasks[i], &tasks[j]
		// Undated tasks sort last in either direction.
		if by == model.TaskSortByDueDate && (a.DueDate == nil) != (b.DueDate == nil) {
			return b.DueDate == nil
		}
		if desc {
			a, b = b, a
		}
		return less(a, b)
	})
}

func paginate(tasks []model.Task, offset, limit int) []model.Task {
	if offset > 0 {
		if offset >= len(tasks) {
			return nil
		}
		tasks = tasks[offset:]
	}
	if limit > 0 && limit < len(tasks) {
		tasks = tasks[:limit]
	}
	return tasks
}
