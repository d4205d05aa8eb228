package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/danabek/notification-dispatcher/internal/checkpoint"
	"github.com/danabek/notification-dispatcher/internal/repository"
)

const checkpointKey = "reconciler:rules"

// Loop drives the reconciler: a fast incremental tick that syncs rules
// edited since the last checkpoint, and a slow full pass that catches what
// the incremental scan cannot see (hard deletes, backend-side drift).
type Loop struct {
	rec          *Reconciler
	rules        repository.RuleRepository
	checkpoints  checkpoint.Store
	interval     time.Duration
	fullInterval time.Duration
	batchSize    int
	force        chan struct{}
	logger       *slog.Logger
}

func NewLoop(
	rec *Reconciler,
	rules repository.RuleRepository,
	checkpoints checkpoint.Store,
	interval time.Duration,
	fullInterval time.Duration,
	batchSize int,
	logger *slog.Logger,
) *Loop {
	return &Loop{
		rec:          rec,
		rules:        rules,
		checkpoints:  checkpoints,
		interval:     interval,
		fullInterval: fullInterval,
		batchSize:    batchSize,
		force:        make(chan struct{}, 1),
		logger:       logger.With("component", "reconciler_loop"),
	}
}

// ForceReconciliation requests a full pass on the next loop iteration.
// Non-blocking; a pass already pending absorbs the request.
func (l *Loop) ForceReconciliation() {
	select {
	case l.force <- struct{}{}:
	default:
	}
}

func (l *Loop) Start(ctx context.Context) {
	incremental := time.NewTicker(l.interval)
	defer incremental.Stop()
	full := time.NewTicker(l.fullInterval)
	defer full.Stop()

	l.logger.Info("reconciler started", "interval", l.interval, "full_interval", l.fullInterval)

	// Converge once on startup before the first full tick.
	l.runFull(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("reconciler shut down")
			return
		case <-incremental.C:
			l.tickIncremental(ctx)
		case <-full.C:
			l.runFull(ctx)
		case <-l.force:
			l.runFull(ctx)
		}
	}
}

// tickIncremental syncs every rule edited since the checkpoint, then
// advances the checkpoint to the newest updated_at it actually processed
// (not to now, so a slow scan never skips concurrent edits).
//
// The strict updated_at > checkpoint scan can defer rules beyond batchSize
// that share one timestamp until the next full pass; a (updated_at, id)
// keyset cursor would close that gap.
func (l *Loop) tickIncremental(ctx context.Context) {
	since, err := l.checkpoints.Get(ctx, checkpointKey)
	if err != nil {
		l.logger.Error("load checkpoint", "error", err)
		return
	}

	rules, err := l.rules.ListUpdatedSince(ctx, since, l.batchSize)
	if err != nil {
		l.logger.Error("list updated rules", "error", err)
		return
	}
	if len(rules) == 0 {
		return
	}

	var synced, failed int
	newest := since
	for _, rule := range rules {
		if err := l.rec.SyncRule(ctx, rule); err != nil {
			failed++
			l.logger.Warn("incremental sync", "rule_id", rule.ID, "error", err)
		} else {
			synced++
		}
		if rule.UpdatedAt.After(newest) {
			newest = rule.UpdatedAt
		}
	}

	if newest.After(since) {
		if err := l.checkpoints.Set(ctx, checkpointKey, newest); err != nil {
			l.logger.Error("save checkpoint", "error", err)
		}
	}

	l.logger.Info("incremental sync", "synced", synced, "errors", failed, "checkpoint", newest)
}

func (l *Loop) runFull(ctx context.Context) {
	if _, err := l.rec.ReconcileSchedules(ctx, nil); err != nil {
		l.logger.Error("full reconciliation", "error", err)
	}
}
