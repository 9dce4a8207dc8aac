package task

import (
	"context"
	"sort"
	"time"

	"github.com/agalitsyn/task-planner/internal/model"
)

// CriticalPathItem is the schedule computed for one task: earliest and
// latest start/finish instants, slack in whole days, and whether the
// task sits on the critical path (zero slack).
type CriticalPathItem struct {
	Task           model.Task
	EarliestStart  time.Time
	EarliestFinish time.Time
	LatestStart    time.Time
	LatestFinish   time.Time
	SlackDays      int
	IsCritical     bool
}

// CriticalPath runs forward and backward passes over the project's
// dependency graph. Durations come from the service's estimator. The
// result lists critical tasks first, then ascending by earliest start.
func (s *Service) CriticalPath(ctx context.Context, projectID string) ([]CriticalPathItem, error) {
	tasks, err := s.tasks.FetchTasksByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	byID := make(map[string]*model.Task, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}

	// Adjacency restricted to tasks of this project; edges leading
	// outside the project do not constrain its schedule.
	preds := make(map[string][]string, len(tasks))
	succs := make(map[string][]string, len(tasks))
	for i := range tasks {
		for _, depID := range tasks[i].DependsOn {
			if _, ok := byID[depID]; !ok {
				continue
			}
			preds[tasks[i].ID] = append(preds[tasks[i].ID], depID)
			succs[depID] = append(succs[depID], tasks[i].ID)
		}
	}

	durations := make(map[string]int, len(tasks))
	for i := range tasks {
		durations[tasks[i].ID] = s.estimate(tasks[i])
	}

	// Forward pass: worklist seeded with zero-dependency tasks,
	// propagating each predecessor's finish as a lower bound.
	indegree := make(map[string]int, len(tasks))
	var worklist []string
	for id := range byID {
		indegree[id] = len(preds[id])
		if indegree[id] == 0 {
			worklist = append(worklist, id)
		}
	}
	sort.Strings(worklist)

	es := make(map[string]int, len(tasks))
	ef := make(map[string]int, len(tasks))
	var order []string
	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]
		order = append(order, id)

		start := 0
		for _, p := range preds[id] {
			if ef[p] > start {
				start = ef[p]
			}
		}
		es[id] = start
		ef[id] = start + durations[id]

		var ready []string
		for _, succ := range succs[id] {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
		sort.Strings(ready)
		worklist = append(worklist, ready...)
	}
	if len(order) != len(tasks) {
		return nil, model.NewError(model.ErrCodeCyclicDependency,
			"dependency graph of project %s contains a cycle", projectID)
	}

	// Project finish anchors the backward pass.
	finish := 0
	for _, f := range ef {
		if f > finish {
			finish = f
		}
	}

	ls := make(map[string]int, len(tasks))
	lf := make(map[string]int, len(tasks))
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		end := finish
		for _, succ := range succs[id] {
			if ls[succ] < end {
				end = ls[succ]
			}
		}
		lf[id] = end
		ls[id] = end - durations[id]
	}

	anchor := s.projectAnchor(tasks)
	items := make([]CriticalPathItem, 0, len(tasks))
	for _, id := range order {
		t := byID[id]
		slack := ls[id] - es[id]
		items = append(items, CriticalPathItem{
			Task:           *t,
			EarliestStart:  anchor.AddDate(0, 0, es[id]),
			EarliestFinish: anchor.AddDate(0, 0, ef[id]),
			LatestStart:    anchor.AddDate(0, 0, ls[id]),
			LatestFinish:   anchor.AddDate(0, 0, lf[id]),
			SlackDays:      slack,
			IsCritical:     slack == 0,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsCritical != items[j].IsCritical {
			return items[i].IsCritical
		}
		if !items[i].EarliestStart.Equal(items[j].EarliestStart) {
			return items[i].EarliestStart.Before(items[j].EarliestStart)
		}
		return items[i].Task.ID < items[j].Task.ID
	})
	return items, nil
}

// projectAnchor is day zero of the computed schedule: the earliest start
// date among the project's tasks, or today when none is scheduled.
func (s *Service) projectAnchor(tasks []model.Task) time.Time {
	var anchor time.Time
	for i := range tasks {
		if tasks[i].StartDate == nil {
			continue
		}
		if anchor.IsZero() || tasks[i].StartDate.Before(anchor) {
			anchor = *tasks[i].StartDate
		}
	}
	if anchor.IsZero() {
		anchor = s.nowFn()
	}
	y, m, d := anchor.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
