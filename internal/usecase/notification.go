package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danabek/notification-dispatcher/internal/domain"
	"github.com/danabek/notification-dispatcher/internal/repository"
)

type NotificationUsecase struct {
	notifications repository.NotificationRepository
	rules         repository.RuleRepository
	workflows     repository.WorkflowRepository
	logger        *slog.Logger
}

func NewNotificationUsecase(
	notifications repository.NotificationRepository,
	rules repository.RuleRepository,
	workflows repository.WorkflowRepository,
	logger *slog.Logger,
) *NotificationUsecase {
	return &NotificationUsecase{
		notifications: notifications,
		rules:         rules,
		workflows:     workflows,
		logger:        logger.With("component", "notification_usecase"),
	}
}

// CreateFromRule is the schedule-fired handoff: the scheduling backend
// invokes this when a schedule fires, and it inserts a PENDING notification
// carrying the rule's payload. The polling dispatcher takes it from there.
func (u *NotificationUsecase) CreateFromRule(ctx context.Context, ruleID int64) (*domain.Notification, error) {
	rule, err := u.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("load rule %d: %w", ruleID, err)
	}

	workflow, err := u.workflows.GetByID(ctx, rule.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow %d: %w", rule.WorkflowID, err)
	}

	recipients, err := domain.ExtractRecipients(rule.RulePayload)
	if err != nil {
		return nil, fmt.Errorf("rule %d: %w", ruleID, err)
	}

	enterprise := ""
	if rule.EnterpriseID != nil {
		enterprise = *rule.EnterpriseID
	}

	n := &domain.Notification{
		EnterpriseID: enterprise,
		WorkflowID:   workflow.ID,
		RuleID:       &rule.ID,
		Name:         rule.Name,
		Payload:      rule.RulePayload,
		Recipients:   recipients,
		Channels:     domain.ExtractChannels(rule.RulePayload),
		Status:       domain.StatusPending,
	}

	created, err := u.notifications.Create(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("create notification for rule %d: %w", ruleID, err)
	}

	u.logger.Info("notification created from fired schedule",
		"rule_id", ruleID,
		"notification_id", created.ID,
		"recipients", len(created.Recipients),
	)
	return created, nil
}

// Cancel retracts a notification so no subsequent poll dispatches it.
func (u *NotificationUsecase) Cancel(ctx context.Context, id int64) error {
	if err := u.notifications.Cancel(ctx, id); err != nil {
		return fmt.Errorf("cancel notification %d: %w", id, err)
	}
	return nil
}
