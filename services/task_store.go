package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"mslcrm/models"
)

// TaskStore はチャットフローから見たタスク永続化の境界。
// チャット側で必要なのはInsertだけ。
type TaskStore interface {
	Insert(ctx context.Context, draft models.TaskDraft) (models.Task, error)
}

type PostgresTaskStore struct {
	db *sql.DB
}

func NewPostgresTaskStore(postgresURI string) (*PostgresTaskStore, error) {
	connStr := postgresURI
	if !strings.Contains(postgresURI, "sslmode=") {
		if strings.Contains(postgresURI, "?") {
			connStr += "&sslmode=disable"
		} else {
			connStr += "?sslmode=disable"
		}
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %v", err)
	}

	// 接続テスト
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %v", err)
	}

	store := &PostgresTaskStore{db: db}
	if err := store.ensureTableExists(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresTaskStore) ensureTableExists() error {
	_, err := s.db.Exec(`
        CREATE TABLE IF NOT EXISTS tasks (
            id UUID PRIMARY KEY,
            task_created_by TEXT NOT NULL,
            task_requested_by TEXT NOT NULL,
            task_assigned_to TEXT NOT NULL,
            customer_id TEXT NOT NULL DEFAULT '',
            task_description TEXT NOT NULL,
            due_date DATE NOT NULL,
            status TEXT NOT NULL DEFAULT 'Pending',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `)
	if err != nil {
		return fmt.Errorf("failed to create tasks table: %v", err)
	}
	return nil
}

func (s *PostgresTaskStore) Insert(ctx context.Context, draft models.TaskDraft) (models.Task, error) {
	task := models.Task{
		ID:              uuid.New().String(),
		TaskCreatedBy:   draft.TaskCreatedBy,
		TaskRequestedBy: draft.TaskRequestedBy,
		TaskAssignedTo:  draft.TaskAssignedTo,
		CustomerID:      draft.CustomerID,
		TaskDescription: draft.TaskDescription,
		DueDate:         draft.DueDate,
		Status:          draft.Status,
	}

	query := `
        INSERT INTO tasks
        (id, task_created_by, task_requested_by, task_assigned_to, customer_id, task_description, due_date, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at
    `

	err := s.db.QueryRowContext(ctx, query,
		task.ID,
		task.TaskCreatedBy,
		task.TaskRequestedBy,
		task.TaskAssignedTo,
		task.CustomerID,
		task.TaskDescription,
		task.DueDate,
		task.Status,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to insert task: %v", err)
	}

	return task, nil
}

// List はタスク一覧を返す。assignedToが空なら全件。
func (s *PostgresTaskStore) List(ctx context.Context, assignedTo string) ([]models.Task, error) {
	query := `
        SELECT id, task_created_by, task_requested_by, task_assigned_to, customer_id,
               to_char(due_date, 'YYYY-MM-DD'), task_description, status, created_at, updated_at
        FROM tasks
    `
	args := []interface{}{}
	if assignedTo != "" {
		query += " WHERE task_assigned_to = $1"
		args = append(args, assignedTo)
	}
	query += " ORDER BY due_date ASC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *PostgresTaskStore) UpdateStatus(ctx context.Context, id string, status string) error {
	result, err := s.db.ExecContext(ctx, `
        UPDATE tasks SET status = $1, updated_at = NOW() WHERE id = $2
    `, status, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// ListDueBefore は期限が指定日以前の未完了タスクを返す（リマインダーバッチ用）
func (s *PostgresTaskStore) ListDueBefore(ctx context.Context, date string) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, task_created_by, task_requested_by, task_assigned_to, customer_id,
               to_char(due_date, 'YYYY-MM-DD'), task_description, status, created_at, updated_at
        FROM tasks
        WHERE due_date <= $1 AND status IN ('Pending', 'In Progress')
        ORDER BY due_date ASC
    `, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *PostgresTaskStore) Close() error {
	return s.db.Close()
}

func scanTasks(rows *sql.Rows) ([]models.Task, error) {
	tasks := make([]models.Task, 0)
	for rows.Next() {
		var t models.Task
		err := rows.Scan(
			&t.ID,
			&t.TaskCreatedBy,
			&t.TaskRequestedBy,
			&t.TaskAssignedTo,
			&t.CustomerID,
			&t.DueDate,
			&t.TaskDescription,
			&t.Status,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("row scan failed: %v", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
