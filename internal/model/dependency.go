package model

import "context"

// Dependency is a directed edge: TaskID depends on DependsOnID.
// The full edge set must always form a DAG; the cycle check runs before
// an edge is persisted, never after.
type Dependency struct {
	TaskID      string
	DependsOnID string
}

type DependencyRepository interface {
	AddDependency(ctx context.Context, taskID, dependsOnID string) error
	RemoveDependency(ctx context.Context, taskID, dependsOnID string) error
	// FetchDependencies returns edges where taskID is the source
	// (what taskID depends on).
	FetchDependencies(ctx context.Context, taskID string) ([]Dependency, error)
	// FetchDependents returns edges where taskID is the target
	// (what depends on taskID).
	FetchDependents(ctx context.Context, taskID string) ([]Dependency, error)
	// HasCyclicDependency reports whether adding the edge
	// taskID -> proposedDependsOnID would close a cycle, i.e. whether
	// taskID is reachable from proposedDependsOnID over existing edges.
	HasCyclicDependency(ctx context.Context, taskID, proposedDependsOnID string) (bool, error)
}
