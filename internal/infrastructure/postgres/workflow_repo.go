package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/danabek/notification-dispatcher/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WorkflowRepository struct {
	pool *pgxpool.Pool
}

func NewWorkflowRepository(pool *pgxpool.Pool) *WorkflowRepository {
	return &WorkflowRepository{pool: pool}
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id int64) (*domain.Workflow, error) {
	var w domain.Workflow
	err := r.pool.QueryRow(ctx,
		`SELECT id, key, name, created_at FROM workflows WHERE id = $1`, id,
	).Scan(&w.ID, &w.Key, &w.Name, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return &w, nil
}
