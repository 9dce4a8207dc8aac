package model

type TaskStatus string

const (
	TaskStatusNotStarted TaskStatus = "not-started"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

func (s TaskStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// statusTransitions is the full lifecycle table. A transition missing
// here is rejected; there is no wildcard.
var statusTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusNotStarted: {TaskStatusInProgress, TaskStatusBlocked, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusBlocked},
	TaskStatusBlocked:    {TaskStatusNotStarted, TaskStatusInProgress},
	TaskStatusCompleted:  {TaskStatusInProgress}, // reopen
	TaskStatusCancelled:  {TaskStatusNotStarted}, // restart
}

// ValidTransitions returns the statuses reachable from s in one step.
func ValidTransitions(s TaskStatus) []TaskStatus {
	next := statusTransitions[s]
	out := make([]TaskStatus, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to TaskStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
