package httptransport

import (
	"log/slog"

	"github.com/danabek/notification-dispatcher/internal/transport/http/handler"
	"github.com/danabek/notification-dispatcher/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, notifications *handler.NotificationHandler) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(sloggin.New(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.Metrics())

	// Called by the scheduling backend when a schedule fires.
	internal := r.Group("/internal")
	{
		internal.POST("/rules/:id/fire", notifications.FireRule)
		internal.POST("/reconcile", notifications.ForceReconcile)
	}

	r.POST("/notifications/:id/cancel", notifications.Cancel)

	return r
}
