package repository

import (
	"context"
	"time"

	"github.com/danabek/notification-dispatcher/internal/domain"
)

// Reconciler reads rules in two ways: the cheap incremental scan over
// updated_at (which must see inactive rules too, so their schedules get
// deleted) and the full active-set load used by reconciliation.
type RuleRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.NotificationRule, error)
	ListActive(ctx context.Context, enterpriseID *string) ([]*domain.NotificationRule, error)
	ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]*domain.NotificationRule, error)
}

type WorkflowRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Workflow, error)
}
