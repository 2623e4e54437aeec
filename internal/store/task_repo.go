package store

import (
	"context"
	"database/sql"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// CreateTask inserts a task and its dependency edges in one transaction.
func (s *Store) CreateTask(ctx context.Context, t domain.Task) (string, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	n := now()
	t.CreatedAt, t.UpdatedAt = n, n
	if t.Status == "" {
		t.Status = domain.TaskPending
	}

	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO tasks
			(id, description, status, priority, created_by, scheduled_for, payload, result, error, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Description, string(t.Status), t.Priority, t.CreatedBy, t.ScheduledFor,
			t.Payload, t.Result, t.Error, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return err
		}
		for _, dep := range t.DependsOn {
			if _, err := tx.ExecContext(ctx, `INSERT INTO task_dependencies (task_id, depends_on) VALUES (?, ?)`,
				t.ID, dep); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", errkind.New(errkind.Storage, "create task", err)
	}
	return t.ID, nil
}

// GetTask loads a task with its dependency list.
func (s *Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var t domain.Task
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT id, description, status, priority, created_by,
		scheduled_for, payload, result, error, created_at, updated_at FROM tasks WHERE id = ?`, id).Scan(
		&t.ID, &t.Description, &status, &t.Priority, &t.CreatedBy, &t.ScheduledFor,
		&t.Payload, &t.Result, &t.Error, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Task{}, errkind.New(errkind.Storage, "get task", err)
	}
	t.Status = domain.TaskStatus(status)

	rows, err := s.db.QueryContext(ctx, `SELECT depends_on FROM task_dependencies WHERE task_id = ?`, id)
	if err != nil {
		return domain.Task{}, errkind.New(errkind.Storage, "get task dependencies", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return domain.Task{}, errkind.New(errkind.Storage, "scan task dependency", err)
		}
		t.DependsOn = append(t.DependsOn, dep)
	}
	return t, rows.Err()
}

// UpdateTaskStatus transitions a task's status and records its result
// or error, the only mutation path once a task is created.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status domain.TaskStatus, result, errMsg string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, result = ?, error = ?, updated_at = ?
			WHERE id = ?`, string(status), result, errMsg, now(), id)
		return err
	})
}

// ListPendingTasks returns tasks not yet done/failed/cancelled whose
// dependencies (if any) are all done, ordered by priority descending.
func (s *Store) ListPendingTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT t.id FROM tasks t
		WHERE t.status IN ('pending', 'in_progress')
		AND NOT EXISTS (
			SELECT 1 FROM task_dependencies d
			JOIN tasks dt ON dt.id = d.depends_on
			WHERE d.task_id = t.id AND dt.status != 'done'
		)
		ORDER BY t.priority DESC, t.created_at ASC`)
	if err != nil {
		return nil, errkind.New(errkind.Storage, "list pending tasks", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errkind.New(errkind.Storage, "scan pending task id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tasks := make([]domain.Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetTask(ctx, id)
		if err != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
