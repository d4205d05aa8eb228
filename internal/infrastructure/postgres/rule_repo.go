package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danabek/notification-dispatcher/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RuleRepository struct {
	pool *pgxpool.Pool
}

func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

const ruleColumns = `id, enterprise_id, business_id, name, trigger_type, trigger_config,
       rule_payload, workflow_id, publish_status, deactivated, created_at, updated_at`

func (r *RuleRepository) GetByID(ctx context.Context, id int64) (*domain.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE id = $1`
	return scanRule(r.pool.QueryRow(ctx, query, id))
}

func (r *RuleRepository) ListActive(ctx context.Context, enterpriseID *string) ([]*domain.NotificationRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM notification_rules
		WHERE trigger_type = 'CRON'
		  AND publish_status = 'PUBLISH'
		  AND deactivated = FALSE`
	args := []any{}
	if enterpriseID != nil {
		query += ` AND enterprise_id = $1`
		args = append(args, *enterpriseID)
	}
	query += ` ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

// ListUpdatedSince feeds the incremental sync tick. Deliberately unfiltered
// by activity: a rule that just became inactive must still be seen so its
// schedule gets deleted.
func (r *RuleRepository) ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]*domain.NotificationRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM notification_rules
		WHERE updated_at > $1
		ORDER BY updated_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list updated rules: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]*domain.NotificationRule, error) {
	var rules []*domain.NotificationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(row rowScanner) (*domain.NotificationRule, error) {
	var rule domain.NotificationRule
	err := row.Scan(
		&rule.ID, &rule.EnterpriseID, &rule.BusinessID, &rule.Name,
		&rule.TriggerType, &rule.TriggerConfig, &rule.RulePayload,
		&rule.WorkflowID, &rule.PublishStatus, &rule.Deactivated,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	return &rule, nil
}
