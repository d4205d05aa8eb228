package handler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/danabek/notification-dispatcher/internal/domain"
	"github.com/danabek/notification-dispatcher/internal/repository"
	httptransport "github.com/danabek/notification-dispatcher/internal/transport/http"
	"github.com/danabek/notification-dispatcher/internal/transport/http/handler"
	"github.com/danabek/notification-dispatcher/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

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

func (r *fakeNotificationRepo) MarkSent(_ context.Context, _ int64, _ string) error   { return nil }
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

type fakeWorkflowRepo struct{}

func (r *fakeWorkflowRepo) GetByID(_ context.Context, id int64) (*domain.Workflow, error) {
	return &domain.Workflow{ID: id, Key: "digest", Name: "Digest"}, nil
}

type fakeForcer struct {
	forced int
}

func (f *fakeForcer) ForceReconciliation() { f.forced++ }

func strPtr(s string) *string { return &s }

func newTestRouter(notifications *fakeNotificationRepo, rules *fakeRuleRepo, forcer *fakeForcer) *gin.Engine {
	logger := slog.New(slog.DiscardHandler)
	uc := usecase.NewNotificationUsecase(notifications, rules, &fakeWorkflowRepo{}, logger)
	h := handler.NewNotificationHandler(uc, forcer, logger)
	return httptransport.NewRouter(logger, h)
}

func publishedRule(id int64) *domain.NotificationRule {
	return &domain.NotificationRule{
		ID:            id,
		EnterpriseID:  strPtr("ent-1"),
		Name:          "daily-digest",
		TriggerType:   domain.TriggerCron,
		TriggerConfig: json.RawMessage(`{"cron": "0 9 * * *"}`),
		RulePayload:   json.RawMessage(`{"recipients": ["sub-1"], "channels": ["email"]}`),
		WorkflowID:    7,
		PublishStatus: domain.PublishStatusPublish,
	}
}

func TestFireRule_CreatesPendingNotification(t *testing.T) {
	notifications := &fakeNotificationRepo{
		create: func(_ context.Context, n *domain.Notification) (*domain.Notification, error) {
			c := *n
			c.ID = 1001
			return &c, nil
		},
	}
	rules := &fakeRuleRepo{
		getByID: func(_ context.Context, id int64) (*domain.NotificationRule, error) {
			return publishedRule(id), nil
		},
	}
	router := newTestRouter(notifications, rules, &fakeForcer{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/rules/42/fire", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var body struct {
		ID     int64  `json:"id"`
		RuleID *int64 `json:"rule_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ID != 1001 || body.Status != "PENDING" {
		t.Errorf("response = %+v", body)
	}
	if body.RuleID == nil || *body.RuleID != 42 {
		t.Errorf("rule id = %v, want 42", body.RuleID)
	}
}

func TestFireRule_UnknownRule(t *testing.T) {
	rules := &fakeRuleRepo{
		getByID: func(_ context.Context, _ int64) (*domain.NotificationRule, error) {
			return nil, domain.ErrRuleNotFound
		},
	}
	router := newTestRouter(&fakeNotificationRepo{}, rules, &fakeForcer{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/internal/rules/99/fire", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestFireRule_NoRecipients(t *testing.T) {
	rules := &fakeRuleRepo{
		getByID: func(_ context.Context, id int64) (*domain.NotificationRule, error) {
			rule := publishedRule(id)
			rule.RulePayload = json.RawMessage(`{}`)
			return rule, nil
		},
	}
	router := newTestRouter(&fakeNotificationRepo{}, rules, &fakeForcer{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/internal/rules/42/fire", nil))

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestFireRule_InvalidID(t *testing.T) {
	router := newTestRouter(&fakeNotificationRepo{}, &fakeRuleRepo{}, &fakeForcer{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/internal/rules/abc/fire", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusNoContent},
		{"not found", domain.ErrNotificationNotFound, http.StatusNotFound},
		{"already terminal", domain.ErrAlreadyTerminal, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifications := &fakeNotificationRepo{
				cancel: func(_ context.Context, _ int64) error { return tt.err },
			}
			router := newTestRouter(notifications, &fakeRuleRepo{}, &fakeForcer{})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/notifications/5/cancel", nil))

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestForceReconcile(t *testing.T) {
	forcer := &fakeForcer{}
	router := newTestRouter(&fakeNotificationRepo{}, &fakeRuleRepo{}, forcer)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/internal/reconcile", nil))

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
	if forcer.forced != 1 {
		t.Errorf("force count = %d, want 1", forcer.forced)
	}
}
