package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Pipeflow/internal/domain"
)

// ExecutionRepo — журнал выполнений pipeline.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// ExecutionFilter — фильтр для List.
type ExecutionFilter struct {
	Pipeline string
	Status   domain.ExecutionStatus
	Limit    int
	Offset   int
}

// Create сохраняет выполнение. Повторная запись с тем же ID —
// ErrAlreadyExists.
func (r *ExecutionRepo) Create(ctx context.Context, exec *domain.Execution) error {
	modulesJSON, err := json.Marshal(exec.Modules)
	if err != nil {
		return fmt.Errorf("marshal modules: %w", err)
	}

	query := `
		INSERT INTO executions (id, pipeline, status, modules, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		exec.ID,
		exec.Pipeline,
		string(exec.Status),
		modulesJSON,
		exec.StartedAt,
		nullTime(exec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: execution %s", ErrAlreadyExists, exec.ID)
	}
	return nil
}

// GetByID возвращает выполнение по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := `
		SELECT id, pipeline, status, modules, started_at, finished_at
		FROM executions
		WHERE id = $1
	`
	exec, err := scanExecution(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return exec, err
}

// List возвращает выполнения, новые первыми.
func (r *ExecutionRepo) List(ctx context.Context, filter ExecutionFilter) ([]domain.Execution, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, pipeline, status, modules, started_at, finished_at
		FROM executions
		WHERE ($1::text IS NULL OR pipeline = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Pipeline),
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// scanExecution сканирует одну строку в Execution.
func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var (
		exec        domain.Execution
		status      string
		modulesJSON []byte
		finishedAt  *time.Time
	)
	err := row.Scan(
		&exec.ID,
		&exec.Pipeline,
		&status,
		&modulesJSON,
		&exec.StartedAt,
		&finishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	exec.Status = domain.ExecutionStatus(status)
	if finishedAt != nil {
		exec.FinishedAt = *finishedAt
	}
	if modulesJSON != nil {
		if err := json.Unmarshal(modulesJSON, &exec.Modules); err != nil {
			return nil, fmt.Errorf("unmarshal modules: %w", err)
		}
	}
	return &exec, nil
}

// nullTime возвращает nil для нулевого времени.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
