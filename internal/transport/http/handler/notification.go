package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danabek/notification-dispatcher/internal/domain"
	"github.com/danabek/notification-dispatcher/internal/usecase"
	"github.com/gin-gonic/gin"
)

// Reconciliation is poked, not awaited: the handler only needs the loop's
// force channel.
type ReconcileForcer interface {
	ForceReconciliation()
}

type NotificationHandler struct {
	uc     *usecase.NotificationUsecase
	forcer ReconcileForcer
	logger *slog.Logger
}

func NewNotificationHandler(uc *usecase.NotificationUsecase, forcer ReconcileForcer, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{uc: uc, forcer: forcer, logger: logger.With("component", "notification_handler")}
}

type notificationResponse struct {
	ID           int64      `json:"id"`
	EnterpriseID string     `json:"enterprise_id,omitempty"`
	RuleID       *int64     `json:"rule_id,omitempty"`
	Name         string     `json:"name"`
	Recipients   []string   `json:"recipients"`
	Channels     []string   `json:"channels,omitempty"`
	Status       string     `json:"status"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	return notificationResponse{
		ID:           n.ID,
		EnterpriseID: n.EnterpriseID,
		RuleID:       n.RuleID,
		Name:         n.Name,
		Recipients:   n.Recipients,
		Channels:     n.Channels,
		Status:       string(n.Status),
		ScheduledFor: n.ScheduledFor,
		CreatedAt:    n.CreatedAt,
	}
}

// FireRule is the inbound port the scheduling backend calls when a schedule
// fires. It inserts a PENDING notification for the rule.
func (h *NotificationHandler) FireRule(ctx *gin.Context) {
	ruleID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	n, err := h.uc.CreateFromRule(ctx.Request.Context(), ruleID)
	switch {
	case err == nil:
		ctx.JSON(http.StatusCreated, toNotificationResponse(n))
	case errors.Is(err, domain.ErrRuleNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errRuleNotFound})
	case errors.Is(err, domain.ErrWorkflowNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errWorkflowNotFound})
	case errors.Is(err, domain.ErrNoRecipients):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": errNoRecipients})
	default:
		h.logger.Error("fire rule", "rule_id", ruleID, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

func (h *NotificationHandler) Cancel(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	err = h.uc.Cancel(ctx.Request.Context(), id)
	switch {
	case err == nil:
		ctx.Status(http.StatusNoContent)
	case errors.Is(err, domain.ErrNotificationNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errNotificationNotFound})
	case errors.Is(err, domain.ErrAlreadyTerminal):
		ctx.JSON(http.StatusConflict, gin.H{"error": errAlreadyTerminal})
	default:
		h.logger.Error("cancel notification", "notification_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

// ForceReconcile schedules a full reconciliation pass.
func (h *NotificationHandler) ForceReconcile(ctx *gin.Context) {
	h.forcer.ForceReconciliation()
	ctx.JSON(http.StatusAccepted, gin.H{"status": "reconciliation scheduled"})
}
