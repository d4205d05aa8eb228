// Package dispatch finds dispatchable notifications, claims them with a
// conditional store update, and hands them to the delivery trigger service.
// The claim — not mutual exclusion between loops — is what keeps dispatch
// at-most-once-concurrent per notification, so any number of poll loops and
// process replicas may run side by side.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/danabek/notification-dispatcher/internal/domain"
	"github.com/danabek/notification-dispatcher/internal/metrics"
	"github.com/danabek/notification-dispatcher/internal/repository"
	"github.com/danabek/notification-dispatcher/internal/trigger"
)

type PollKind string

const (
	// PollNew drains PENDING rows that are not scheduled for the future,
	// oldest edit first.
	PollNew PollKind = "new"
	// PollScheduled drains PENDING rows whose due time has passed,
	// earliest-due first. The ordering is a correctness requirement: a
	// burst of overdue notifications must go out oldest-first.
	PollScheduled PollKind = "scheduled"
	// PollFailed retries FAILED rows regardless of schedule, on a slower
	// cadence with a startup delay to avoid a retry storm right after a
	// crash-restart.
	PollFailed PollKind = "failed"
)

type PollerOptions struct {
	Interval     time.Duration
	StartupDelay time.Duration
	BatchSize    int
	Concurrency  int
	EnterpriseID *string

	// IncludeProcessed admits terminal rows on the new-notification poll.
	// Replay/debugging only.
	IncludeProcessed bool
}

type Poller struct {
	kind      PollKind
	repo      repository.NotificationRepository
	workflows repository.WorkflowRepository
	trigger   trigger.Client
	logger    *slog.Logger
	opts      PollerOptions
	sem       chan struct{}
	wg        sync.WaitGroup
}

func NewPoller(
	kind PollKind,
	repo repository.NotificationRepository,
	workflows repository.WorkflowRepository,
	triggerClient trigger.Client,
	logger *slog.Logger,
	opts PollerOptions,
) *Poller {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Poller{
		kind:      kind,
		repo:      repo,
		workflows: workflows,
		trigger:   triggerClient,
		logger:    logger.With("component", "dispatcher", "poll", string(kind)),
		opts:      opts,
		sem:       make(chan struct{}, opts.Concurrency),
	}
}

func (p *Poller) Start(ctx context.Context) {
	if p.opts.StartupDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.opts.StartupDelay):
		}
	}

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.logger.Info("poller started", "interval", p.opts.Interval, "batch_size", p.opts.BatchSize, "concurrency", p.opts.Concurrency)

	for {
		select {
		case <-ctx.Done():
			// Let in-flight claimed items finish so no row is left in
			// PROCESSING with no owner.
			p.wg.Wait()
			p.logger.Info("poller shut down")
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

func (p *Poller) processBatch(ctx context.Context) {
	available := cap(p.sem) - len(p.sem)
	if available == 0 {
		return
	}
	if available > p.opts.BatchSize {
		available = p.opts.BatchSize
	}

	candidates, err := p.poll(ctx, available)
	if err != nil {
		p.logger.Error("poll notifications", "error", err)
		return
	}
	if len(candidates) == 0 {
		return
	}
	metrics.PollBatchSize.WithLabelValues(string(p.kind)).Observe(float64(len(candidates)))

	for _, n := range candidates {
		// The claim only succeeds if the row still holds the status we
		// read at selection time. Losing it means another poller (or a
		// concurrent cancel) got there first — skip silently.
		applied, err := p.repo.Claim(ctx, n.ID, n.Status)
		if err != nil {
			p.logger.Error("claim notification", "notification_id", n.ID, "error", err)
			continue
		}
		if !applied {
			metrics.ClaimConflictsTotal.Inc()
			continue
		}

		p.sem <- struct{}{}
		p.wg.Add(1)
		go func(n *domain.Notification) {
			metrics.DispatchInFlight.Inc()
			defer metrics.DispatchInFlight.Dec()
			defer p.wg.Done()
			defer func() { <-p.sem }()
			// Detached from loop cancellation: a claimed row must reach
			// SENT or FAILED even during shutdown.
			p.dispatch(context.WithoutCancel(ctx), n)
		}(n)
	}
}

func (p *Poller) poll(ctx context.Context, limit int) ([]*domain.Notification, error) {
	input := repository.PollInput{
		EnterpriseID:     p.opts.EnterpriseID,
		BatchSize:        limit,
		Now:              time.Now(),
		IncludeProcessed: p.opts.IncludeProcessed,
	}

	switch p.kind {
	case PollScheduled:
		return p.repo.PollScheduledDue(ctx, input)
	case PollFailed:
		return p.repo.PollFailed(ctx, input)
	default:
		return p.repo.PollNew(ctx, input)
	}
}

// dispatch owns the row from claim to terminal write. Any failure on the
// trigger path lands in FAILED with details, picked up by the failed-retry
// poll — never left PROCESSING.
func (p *Poller) dispatch(ctx context.Context, n *domain.Notification) {
	start := time.Now()

	workflow, err := p.workflows.GetByID(ctx, n.WorkflowID)
	if err != nil {
		if !errors.Is(err, domain.ErrWorkflowNotFound) {
			p.logger.Error("resolve workflow", "notification_id", n.ID, "workflow_id", n.WorkflowID, "error", err)
		}
		p.fail(ctx, n, "workflow lookup: "+err.Error())
		return
	}

	resp, err := p.trigger.Trigger(ctx, trigger.Request{
		WorkflowKey:  workflow.Key,
		EnterpriseID: n.EnterpriseID,
		Recipients:   n.Recipients,
		Channels:     n.Channels,
		Payload:      n.Payload,
	})
	if err != nil {
		p.fail(ctx, n, err.Error())
		metrics.DispatchDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		p.logger.Warn("delivery trigger failed", "notification_id", n.ID, "error", err)
		return
	}

	if err := p.repo.MarkSent(ctx, n.ID, resp.TransactionID); err != nil {
		p.logger.Error("mark notification sent", "notification_id", n.ID, "error", err)
		return
	}
	metrics.NotificationsDispatchedTotal.WithLabelValues("sent").Inc()
	metrics.DispatchDuration.WithLabelValues("sent").Observe(time.Since(start).Seconds())
	p.logger.Info("notification sent", "notification_id", n.ID, "transaction_id", resp.TransactionID)
}

func (p *Poller) fail(ctx context.Context, n *domain.Notification, details string) {
	if err := p.repo.MarkFailed(ctx, n.ID, details); err != nil {
		p.logger.Error("mark notification failed", "notification_id", n.ID, "error", err)
		return
	}
	metrics.NotificationsDispatchedTotal.WithLabelValues("failed").Inc()
}
