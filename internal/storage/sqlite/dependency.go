package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/agalitsyn/task-planner/internal/model"
)

type DependencyStorage struct {
	db *sql.DB
}

func NewDependencyStorage(db *sql.DB) *DependencyStorage {
	return &DependencyStorage{db: db}
}

func (s *DependencyStorage) AddDependency(ctx context.Context, taskID, dependsOnID string) error {
	const q = `INSERT OR IGNORE INTO task_dependencies (task_id, depends_on_id) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, q, taskID, dependsOnID); err != nil {
		return fmt.Errorf("could not add dependency: %w", err)
	}
	return nil
}

func (s *DependencyStorage) RemoveDependency(ctx context.Context, taskID, dependsOnID string) error {
	const q = `DELETE FROM task_dependencies WHERE task_id = ? AND depends_on_id = ?`
	if _, err := s.db.ExecContext(ctx, q, taskID, dependsOnID); err != nil {
		return fmt.Errorf("could not remove dependency: %w", err)
	}
	return nil
}

func (s *DependencyStorage) FetchDependencies(ctx context.Context, taskID string) ([]model.Dependency, error) {
	const q = `SELECT task_id, depends_on_id FROM task_dependencies WHERE task_id = ? ORDER BY rowid ASC`
	return s.queryDependencies(ctx, q, taskID)
}

func (s *DependencyStorage) FetchDependents(ctx context.Context, taskID string) ([]model.Dependency, error) {
	const q = `SELECT task_id, depends_on_id FROM task_dependencies WHERE depends_on_id = ? ORDER BY rowid ASC`
	return s.queryDependencies(ctx, q, taskID)
}

// HasCyclicDependency walks the depends-on closure of proposedDependsOnID
// with a recursive CTE and reports whether taskID shows up in it.
func (s *DependencyStorage) HasCyclicDependency(ctx context.Context, taskID, proposedDependsOnID string) (bool, error) {
	const q = `
		WITH RECURSIVE reachable(id) AS (
			SELECT depends_on_id FROM task_dependencies WHERE task_id = ?
			UNION
			SELECT td.depends_on_id
			FROM task_dependencies td
			JOIN reachable r ON td.task_id = r.id
		)
		SELECT COUNT(*) FROM reachable WHERE id = ?
	`
	var count int
	if err := s.db.QueryRowContext(ctx, q, proposedDependsOnID, taskID).Scan(&count); err != nil {
		return false, fmt.Errorf("could not run cycle check: %w", err)
	}
	if count > 0 {
		return true, nil
	}
	// Direct back-edge: the proposed target is the task itself.
	return taskID == proposedDependsOnID, nil
}

func (s *DependencyStorage) queryDependencies(ctx context.Context, query string, arg string) ([]model.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("could not query dependencies: %w", err)
	}
	defer rows.Close()

	var deps []model.Dependency
	for rows.Next() {
		var d model.Dependency
		if err := rows.Scan(&d.TaskID, &d.DependsOnID); err != nil {
			return nil, fmt.Errorf("could not scan dependency: %w", err)
		}
		deps = append(deps, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate dependencies: %w", err)
	}
	return deps, nil
}
