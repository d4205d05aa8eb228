package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danabek/notification-dispatcher/internal/domain"
	"github.com/danabek/notification-dispatcher/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

const notificationColumns = `id, enterprise_id, workflow_id, rule_id, name, payload,
       recipients, channels, scheduled_for, status, transaction_id,
       error_details, created_at, updated_at`

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	query := `
		INSERT INTO notifications (
			enterprise_id, workflow_id, rule_id, name, payload,
			recipients, channels, scheduled_for, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + notificationColumns

	row := r.pool.QueryRow(ctx, query,
		n.EnterpriseID, n.WorkflowID, n.RuleID, n.Name, n.Payload,
		n.Recipients, n.Channels, n.ScheduledFor, n.Status,
	)
	return scanNotification(row)
}

func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	return scanNotification(r.pool.QueryRow(ctx, query, id))
}

func (r *NotificationRepository) PollNew(ctx context.Context, input repository.PollInput) ([]*domain.Notification, error) {
	where := []string{"(scheduled_for IS NULL OR scheduled_for <= $1)"}
	args := []any{input.Now}

	if input.IncludeProcessed {
		// Replay path: terminal rows are admitted too. PROCESSING stays
		// excluded — those rows have a live owner.
		where = append(where, "status <> 'PROCESSING'")
	} else {
		where = append(where, "status = 'PENDING'")
	}
	if input.EnterpriseID != nil {
		args = append(args, *input.EnterpriseID)
		where = append(where, fmt.Sprintf("enterprise_id = $%d", len(args)))
	}
	args = append(args, input.BatchSize)

	query := fmt.Sprintf(`
		SELECT %s
		FROM notifications
		WHERE %s
		ORDER BY updated_at ASC
		LIMIT $%d`,
		notificationColumns, strings.Join(where, " AND "), len(args))

	return r.queryNotifications(ctx, query, args...)
}

func (r *NotificationRepository) PollScheduledDue(ctx context.Context, input repository.PollInput) ([]*domain.Notification, error) {
	args := []any{input.Now}
	where := []string{"status = 'PENDING'", "scheduled_for IS NOT NULL", "scheduled_for <= $1"}

	if input.EnterpriseID != nil {
		args = append(args, *input.EnterpriseID)
		where = append(where, fmt.Sprintf("enterprise_id = $%d", len(args)))
	}
	args = append(args, input.BatchSize)

	// Earliest-due first: a backlog of overdue notifications drains
	// oldest-first.
	query := fmt.Sprintf(`
		SELECT %s
		FROM notifications
		WHERE %s
		ORDER BY scheduled_for ASC
		LIMIT $%d`,
		notificationColumns, strings.Join(where, " AND "), len(args))

	return r.queryNotifications(ctx, query, args...)
}

func (r *NotificationRepository) PollFailed(ctx context.Context, input repository.PollInput) ([]*domain.Notification, error) {
	where := []string{"status = 'FAILED'"}
	args := []any{}

	if input.EnterpriseID != nil {
		args = append(args, *input.EnterpriseID)
		where = append(where, fmt.Sprintf("enterprise_id = $%d", len(args)))
	}
	args = append(args, input.BatchSize)

	// No scheduled_for filter: a future-scheduled row that already failed
	// is retried anyway.
	query := fmt.Sprintf(`
		SELECT %s
		FROM notifications
		WHERE %s
		ORDER BY updated_at ASC
		LIMIT $%d`,
		notificationColumns, strings.Join(where, " AND "), len(args))

	return r.queryNotifications(ctx, query, args...)
}

// Claim is the synchronization primitive: one conditional UPDATE, atomic at
// the storage layer. RowsAffected == 0 means someone else owns the row now.
func (r *NotificationRepository) Claim(ctx context.Context, id int64, expected domain.Status) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = 'PROCESSING', updated_at = NOW()
		 WHERE id = $1 AND status = $2`,
		id, expected)
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id int64, transactionID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = 'SENT', transaction_id = $2, error_details = NULL, updated_at = NOW()
		 WHERE id = $1 AND status = 'PROCESSING'`,
		id, transactionID)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, errorDetails string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = 'FAILED', error_details = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'PROCESSING'`,
		id, errorDetails)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (r *NotificationRepository) Cancel(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications
		 SET status = 'RETRACTED', updated_at = NOW()
		 WHERE id = $1 AND status IN ('PENDING', 'PROCESSING', 'FAILED')`,
		id)
	if err != nil {
		return fmt.Errorf("cancel notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish not-found from already-terminal.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrAlreadyTerminal
	}
	return nil
}

func (r *NotificationRepository) ReclaimStuck(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET    status        = 'PENDING',
		       error_details = 'dispatch interrupted',
		       updated_at    = NOW()
		WHERE id IN (
			SELECT id FROM notifications
			WHERE  status     = 'PROCESSING'
			  AND  updated_at < $1
			ORDER BY updated_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("reclaim stuck notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *NotificationRepository) queryNotifications(ctx context.Context, query string, args ...any) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("poll notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// pgx.Row and pgx.Rows both implement this.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID, &n.EnterpriseID, &n.WorkflowID, &n.RuleID, &n.Name, &n.Payload,
		&n.Recipients, &n.Channels, &n.ScheduledFor, &n.Status, &n.TransactionID,
		&n.ErrorDetails, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	return &n, nil
}
