package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/agalitsyn/task-planner/internal/model"
)

type TaskStorage struct {
	db *sql.DB
}

func NewTaskStorage(db *sql.DB) *TaskStorage {
	return &TaskStorage{db: db}
}

const taskColumns = `id, project_id, title, description, status, priority, assignee, start_date, due_date, estimate_hours, created_at, updated_at`

func (s *TaskStorage) CreateTask(ctx context.Context, task *model.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.ProjectID,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		nullString(task.Assignee),
		nullTime(task.StartDate),
		nullTime(task.DueDate),
		task.EstimateHours,
	)
	if err != nil {
		return fmt.Errorf("could not create task: %w", err)
	}
	return nil
}

func (s *TaskStorage) UpdateTask(ctx context.Context, task *model.Task) error {
	query := `
		UPDATE tasks
		SET project_id = ?, title = ?, description = ?, status = ?, priority = ?, assignee = ?,
			start_date = ?, due_date = ?, estimate_hours = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ProjectID,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		nullString(task.Assignee),
		nullTime(task.StartDate),
		nullTime(task.DueDate),
		task.EstimateHours,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}
	return nil
}

func (s *TaskStorage) UpdateTasks(ctx context.Context, tasks []model.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE tasks
		SET project_id = ?, title = ?, description = ?, status = ?, priority = ?, assignee = ?,
			start_date = ?, due_date = ?, estimate_hours = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	for i := range tasks {
		task := &tasks[i]
		_, err := tx.ExecContext(ctx, query,
			task.ProjectID,
			task.Title,
			task.Description,
			string(task.Status),
			string(task.Priority),
			nullString(task.Assignee),
			nullTime(task.StartDate),
			nullTime(task.DueDate),
			task.EstimateHours,
			task.ID,
		)
		if err != nil {
			return fmt.Errorf("could not update task %s: %w", task.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

func (s *TaskStorage) RemoveTask(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM task_dependencies WHERE task_id = ? OR depends_on_id = ?`, id, id,
	); err != nil {
		return fmt.Errorf("could not remove task dependencies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("could not remove task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

func (s *TaskStorage) TaskExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("could not check task existence: %w", err)
	}
	return count > 0, nil
}

func (s *TaskStorage) FetchTaskByID(ctx context.Context, id string) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	if err := s.attachDependencies(ctx, []*model.Task{task}); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskStorage) FilterTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	query, args := appendFilterClauses(query, nil, filter)
	query += orderClause(filter.SortBy, filter.SortDesc)

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	return s.queryTasks(ctx, query, args...)
}

func (s *TaskStorage) FetchTasksByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	return s.FilterTasks(ctx, model.TaskFilter{ProjectID: projectID})
}

func (s *TaskStorage) FetchTasksByAssignee(ctx context.Context, assignee string) ([]model.Task, error) {
	return s.FilterTasks(ctx, model.TaskFilter{Assignee: assignee})
}

func (s *TaskStorage) FetchOverdueTasks(ctx context.Context, now time.Time) ([]model.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE due_date IS NOT NULL AND due_date < ? AND status != ?
		ORDER BY due_date ASC, id ASC
	`
	return s.queryTasks(ctx, query, now, string(model.TaskStatusCompleted))
}

func (s *TaskStorage) FetchTasksInRange(ctx context.Context, start, end time.Time, filter model.TaskFilter) ([]model.Task, error) {
	// A task's scheduled window is [start_date, due_date], falling back to
	// whichever bound exists. Tasks with neither date never match.
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE (start_date IS NOT NULL OR due_date IS NOT NULL)
			AND COALESCE(start_date, due_date) <= ?
			AND COALESCE(due_date, start_date) >= ?
	`
	args := []any{end, start}
	query, args = appendFilterClauses(query, args, filter)
	query += ` ORDER BY due_date IS NULL, due_date ASC, id ASC`

	return s.queryTasks(ctx, query, args...)
}

func appendFilterClauses(query string, args []any, filter model.TaskFilter) (string, []any) {
	if filter.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		query += " AND priority = ?"
		args = append(args, string(filter.Priority))
	}
	if filter.Assignee != "" {
		query += " AND assignee = ?"
		args = append(args, filter.Assignee)
	}
	return query, args
}

func orderClause(by model.TaskSortField, desc bool) string {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	switch by {
	case model.TaskSortByDueDate:
		return fmt.Sprintf(" ORDER BY due_date IS NULL, due_date %s, id ASC", dir)
	case model.TaskSortByPriority:
		rank := `CASE priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2 WHEN 'urgent' THEN 3 END`
		return fmt.Sprintf(" ORDER BY %s %s, id ASC", rank, dir)
	case model.TaskSortByTitle:
		return fmt.Sprintf(" ORDER BY title %s, id ASC", dir)
	default:
		return fmt.Sprintf(" ORDER BY created_at %s, id ASC", dir)
	}
}

func (s *TaskStorage) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate tasks: %w", err)
	}

	refs := make([]*model.Task, 0, len(tasks))
	for i := range tasks {
		refs = append(refs, &tasks[i])
	}
	if err := s.attachDependencies(ctx, refs); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskStorage) attachDependencies(ctx context.Context, tasks []*model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[string]*model.Task, len(tasks))
	placeholders := make([]string, 0, len(tasks))
	args := make([]any, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		placeholders = append(placeholders, "?")
		args = append(args, t.ID)
	}

	query := `
		SELECT task_id, depends_on_id
		FROM task_dependencies
		WHERE task_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("could not query task dependencies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, dependsOnID string
		if err := rows.Scan(&taskID, &dependsOnID); err != nil {
			return fmt.Errorf("could not scan task dependency: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.DependsOn = append(t.DependsOn, dependsOnID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("could not iterate task dependencies: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var task model.Task
	var assignee sql.NullString
	var startDate, dueDate sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.ProjectID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&assignee,
		&startDate,
		&dueDate,
		&task.EstimateHours,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignee.Valid {
		task.Assignee = assignee.String
	}
	if startDate.Valid {
		t := startDate.Time
		task.StartDate = &t
	}
	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	return &task, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
