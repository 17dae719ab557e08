package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigswap/gigswap-backend/internal/domain"
)

// taskRepository implements domain.TaskRepository
type taskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) domain.TaskRepository {
	return &taskRepository{db: db}
}

// Create creates a new task
func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	query := `
		INSERT INTO tasks (id, poster_id, title, category, budget, status, assigned_helper_id, locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.PosterID,
		task.Title,
		task.Category,
		task.Budget.String(),
		string(task.Status),
		task.AssignedHelperID,
		task.Locked,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by its ID
func (r *taskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `
		SELECT id, poster_id, title, category, budget, status, assigned_helper_id, locked, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task by ID: %w", err)
	}

	return task, nil
}

// Update persists the task's mutable fields
func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, category = $3, budget = $4, status = $5, assigned_helper_id = $6, locked = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Category,
		task.Budget.String(),
		string(task.Status),
		task.AssignedHelperID,
		task.Locked,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", task.ID, domain.ErrNotFound)
	}

	return nil
}

// ListStaleAwaitingConfirmation retrieves tasks awaiting confirmation that
// have not been touched since the cutoff
func (r *taskRepository) ListStaleAwaitingConfirmation(ctx context.Context, updatedBefore time.Time) ([]*domain.Task, error) {
	query := `
		SELECT id, poster_id, title, category, budget, status, assigned_helper_id, locked, created_at, updated_at
		FROM tasks
		WHERE status = $1 AND updated_at < $2 AND locked = FALSE
		ORDER BY updated_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, string(domain.TaskStatusAwaitingConfirmation), updatedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var budgetStr string
	var helperID sql.NullString

	err := row.Scan(
		&task.ID,
		&task.PosterID,
		&task.Title,
		&task.Category,
		&budgetStr,
		&task.Status,
		&helperID,
		&task.Locked,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if helperID.Valid {
		helperUUID, err := uuid.Parse(helperID.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse assigned_helper_id: %w", err)
		}
		task.AssignedHelperID = &helperUUID
	}

	budget, err := decimal.NewFromString(budgetStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse budget: %w", err)
	}
	task.Budget = budget

	return &task, nil
}
