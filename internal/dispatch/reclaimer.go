package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/danabek/notification-dispatcher/internal/metrics"
	"github.com/danabek/notification-dispatcher/internal/repository"
)

// Reclaimer returns PROCESSING rows whose owner disappeared (process crash
// mid-dispatch) to PENDING. A row older than stuckTimeout has by definition
// outlived any bounded trigger call, so reclaiming it cannot race a live
// dispatcher.
type Reclaimer struct {
	repo         repository.NotificationRepository
	logger       *slog.Logger
	interval     time.Duration
	stuckTimeout time.Duration
}

func NewReclaimer(repo repository.NotificationRepository, logger *slog.Logger, interval, stuckTimeout time.Duration) *Reclaimer {
	return &Reclaimer{
		repo:         repo,
		logger:       logger.With("component", "reclaimer"),
		interval:     interval,
		stuckTimeout: stuckTimeout,
	}
}

func (r *Reclaimer) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reclaimer started", "interval", r.interval, "stuck_timeout", r.stuckTimeout)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reclaimer shut down")
			return
		case <-ticker.C:
			r.reclaim(ctx)
		}
	}
}

func (r *Reclaimer) reclaim(ctx context.Context) {
	cutoff := time.Now().Add(-r.stuckTimeout)

	reclaimed, err := r.repo.ReclaimStuck(ctx, cutoff, 100)
	if err != nil {
		r.logger.Error("reclaim stuck notifications", "error", err)
		return
	}
	if reclaimed > 0 {
		metrics.NotificationsReclaimedTotal.Add(float64(reclaimed))
		r.logger.Warn("reclaimed stuck notifications", "count", reclaimed)
	}
}
