package repository

import (
	"context"
	"time"

	"github.com/danabek/notification-dispatcher/internal/domain"
)

type PollInput struct {
	EnterpriseID *string // nil = all tenants
	BatchSize    int
	Now          time.Time

	// IncludeProcessed additionally admits terminal rows. Replay/debugging
	// only, never set on the default path.
	IncludeProcessed bool
}

// The dispatcher's store contract. Claim is the only synchronization
// primitive in the system: a single conditional UPDATE that either takes
// ownership of the row or reports that someone else already did.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	GetByID(ctx context.Context, id int64) (*domain.Notification, error)

	// PollNew: PENDING and not scheduled for the future, ordered by updated_at.
	PollNew(ctx context.Context, input PollInput) ([]*domain.Notification, error)
	// PollScheduledDue: PENDING with scheduled_for <= now, earliest-due first.
	PollScheduledDue(ctx context.Context, input PollInput) ([]*domain.Notification, error)
	// PollFailed: FAILED regardless of scheduled_for.
	PollFailed(ctx context.Context, input PollInput) ([]*domain.Notification, error)

	// Claim transitions expected -> PROCESSING iff the row still holds
	// expected. Returns false (no error) when the row was claimed, cancelled,
	// or deleted concurrently.
	Claim(ctx context.Context, id int64, expected domain.Status) (bool, error)

	MarkSent(ctx context.Context, id int64, transactionID string) error
	MarkFailed(ctx context.Context, id int64, errorDetails string) error

	// Cancel moves any non-terminal row to RETRACTED.
	Cancel(ctx context.Context, id int64) error

	// ReclaimStuck returns PROCESSING rows last touched before cutoff to
	// PENDING so an orphaned claim (crashed process) is eventually retried.
	ReclaimStuck(ctx context.Context, cutoff time.Time, limit int) (int, error)
}
