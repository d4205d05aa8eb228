package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/danabek/notification-dispatcher/internal/domain"
	"github.com/danabek/notification-dispatcher/internal/repository"
	"github.com/danabek/notification-dispatcher/internal/usecase"
)

type fakeNotificationRepo struct {
	create func(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	cancel func(ctx context.Context, id int64) error
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	return r.create(ctx, n)
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, _ int64) (*domain.Notification, error) {
	return nil, domain.ErrNotificationNotFound
}

func (r *fakeNotificationRepo) PollNew(_ context.Context, _ repository.PollInput) ([]*domain.Notification, error) {
	return nil, nil
}

func (r *fakeNotificationRepo) PollScheduledDue(_ context.Context, _ repository.PollInput) ([]*domain.Notification, error) {
	return nil, nil
}

func (r *fakeNotificationRepo) PollFailed(_ context.Context, _ repository.PollInput) ([]*domain.Notification, error) {
	return nil, nil
}

func (r *fakeNotificationRepo) Claim(_ context.Context, _ int64, _ domain.Status) (bool, error) {
	return false, nil
}

func (r *fakeNotificationRepo) MarkSent(_ context.Context, _ int64, _ string) error { return nil }

func (r *fakeNotificationRepo) MarkFailed(_ context.Context, _ int64, _ string) error { return nil }

func (r *fakeNotificationRepo) Cancel(ctx context.Context, id int64) error {
	return r.cancel(ctx, id)
}

func (r *fakeNotificationRepo) ReclaimStuck(_ context.Context, _ time.Time, _ int) (int, error) {
	return 0, nil
}

type fakeRuleRepo struct {
	getByID func(ctx context.Context, id int64) (*domain.NotificationRule, error)
}

func (r *fakeRuleRepo) GetByID(ctx context.Context, id int64) (*domain.NotificationRule, error) {
	return r.getByID(ctx, id)
}

func (r *fakeRuleRepo) ListActive(_ context.Context, _ *string) ([]*domain.NotificationRule, error) {
	return nil, nil
}

func (r *fakeRuleRepo) ListUpdatedSince(_ context.Context, _ time.Time, _ int) ([]*domain.NotificationRule, error) {
	return nil, nil
}

type fakeWorkflowRepo struct {
	getByID func(ctx context.Context, id int64) (*domain.Workflow, error)
}

func (r *fakeWorkflowRepo) GetByID(ctx context.Context, id int64) (*domain.Workflow, error) {
	return r.getByID(ctx, id)
}

func strPtr(s string) *string { return &s }

func digestRule() *domain.NotificationRule {
	return &domain.NotificationRule{
		ID:            42,
		EnterpriseID:  strPtr("ent-1"),
		Name:          "daily-digest",
		TriggerType:   domain.TriggerCron,
		TriggerConfig: json.RawMessage(`{"cron": "0 9 * * *"}`),
		RulePayload:   json.RawMessage(`{"recipients": ["sub-1", "sub-2"], "channels": ["email"], "week": 12}`),
		WorkflowID:    7,
		PublishStatus: domain.PublishStatusPublish,
	}
}

func newUsecase(n *fakeNotificationRepo, r *fakeRuleRepo, w *fakeWorkflowRepo) *usecase.NotificationUsecase {
	return usecase.NewNotificationUsecase(n, r, w, slog.New(slog.DiscardHandler))
}

func TestCreateFromRule(t *testing.T) {
	var created *domain.Notification
	notifications := &fakeNotificationRepo{
		create: func(_ context.Context, n *domain.Notification) (*domain.Notification, error) {
			c := *n
			c.ID = 1001
			created = &c
			return &c, nil
		},
	}
	rules := &fakeRuleRepo{
		getByID: func(_ context.Context, id int64) (*domain.NotificationRule, error) {
			if id != 42 {
				return nil, domain.ErrRuleNotFound
			}
			return digestRule(), nil
		},
	}
	workflows := &fakeWorkflowRepo{
		getByID: func(_ context.Context, id int64) (*domain.Workflow, error) {
			return &domain.Workflow{ID: id, Key: "digest", Name: "Digest"}, nil
		},
	}

	got, err := newUsecase(notifications, rules, workflows).CreateFromRule(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 1001 {
		t.Errorf("notification id = %d, want 1001", got.ID)
	}
	if created.Status != domain.StatusPending {
		t.Errorf("status = %s, want PENDING", created.Status)
	}
	if created.EnterpriseID != "ent-1" || created.WorkflowID != 7 {
		t.Errorf("notification = %+v", created)
	}
	if created.RuleID == nil || *created.RuleID != 42 {
		t.Errorf("rule id = %v, want 42", created.RuleID)
	}
	if len(created.Recipients) != 2 || created.Recipients[0] != "sub-1" {
		t.Errorf("recipients = %v, want [sub-1 sub-2]", created.Recipients)
	}
	if len(created.Channels) != 1 || created.Channels[0] != "email" {
		t.Errorf("channels = %v, want [email]", created.Channels)
	}
}

func TestCreateFromRule_RuleNotFound(t *testing.T) {
	rules := &fakeRuleRepo{
		getByID: func(_ context.Context, _ int64) (*domain.NotificationRule, error) {
			return nil, domain.ErrRuleNotFound
		},
	}

	_, err := newUsecase(&fakeNotificationRepo{}, rules, &fakeWorkflowRepo{}).CreateFromRule(context.Background(), 99)
	if !errors.Is(err, domain.ErrRuleNotFound) {
		t.Fatalf("error = %v, want ErrRuleNotFound", err)
	}
}

func TestCreateFromRule_NoRecipients(t *testing.T) {
	rule := digestRule()
	rule.RulePayload = json.RawMessage(`{"week": 12}`)

	rules := &fakeRuleRepo{
		getByID: func(_ context.Context, _ int64) (*domain.NotificationRule, error) {
			return rule, nil
		},
	}
	workflows := &fakeWorkflowRepo{
		getByID: func(_ context.Context, id int64) (*domain.Workflow, error) {
			return &domain.Workflow{ID: id, Key: "digest"}, nil
		},
	}

	_, err := newUsecase(&fakeNotificationRepo{}, rules, workflows).CreateFromRule(context.Background(), 42)
	if !errors.Is(err, domain.ErrNoRecipients) {
		t.Fatalf("error = %v, want ErrNoRecipients", err)
	}
}

func TestCreateFromRule_WorkflowNotFound(t *testing.T) {
	rules := &fakeRuleRepo{
		getByID: func(_ context.Context, _ int64) (*domain.NotificationRule, error) {
			return digestRule(), nil
		},
	}
	workflows := &fakeWorkflowRepo{
		getByID: func(_ context.Context, _ int64) (*domain.Workflow, error) {
			return nil, domain.ErrWorkflowNotFound
		},
	}

	_, err := newUsecase(&fakeNotificationRepo{}, rules, workflows).CreateFromRule(context.Background(), 42)
	if !errors.Is(err, domain.ErrWorkflowNotFound) {
		t.Fatalf("error = %v, want ErrWorkflowNotFound", err)
	}
}

func TestCancel(t *testing.T) {
	var cancelled int64
	notifications := &fakeNotificationRepo{
		cancel: func(_ context.Context, id int64) error {
			cancelled = id
			return nil
		},
	}

	uc := newUsecase(notifications, &fakeRuleRepo{}, &fakeWorkflowRepo{})
	if err := uc.Cancel(context.Background(), 55); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled != 55 {
		t.Errorf("cancelled id = %d, want 55", cancelled)
	}
}

func TestCancel_AlreadyTerminal(t *testing.T) {
	notifications := &fakeNotificationRepo{
		cancel: func(_ context.Context, _ int64) error {
			return domain.ErrAlreadyTerminal
		},
	}

	uc := newUsecase(notifications, &fakeRuleRepo{}, &fakeWorkflowRepo{})
	if err := uc.Cancel(context.Background(), 55); !errors.Is(err, domain.ErrAlreadyTerminal) {
		t.Fatalf("error = %v, want ErrAlreadyTerminal", err)
	}
}
