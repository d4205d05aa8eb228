// Package reconciler keeps the external scheduling backend in agreement
// with the notification rule table. The rule table is the source of truth;
// the backend is independently operable and can drift at any time (manual
// edits, partial prior failures, hard-deleted rules), so on top of cheap
// incremental sync a full set-diff reconciliation runs on a slower cadence.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/danabek/notification-dispatcher/internal/domain"
	"github.com/danabek/notification-dispatcher/internal/metrics"
	"github.com/danabek/notification-dispatcher/internal/repository"
	"github.com/danabek/notification-dispatcher/internal/scheduling"
)

type Reconciler struct {
	rules     repository.RuleRepository
	schedules scheduling.Client
	logger    *slog.Logger
}

func New(rules repository.RuleRepository, schedules scheduling.Client, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		rules:     rules,
		schedules: schedules,
		logger:    logger.With("component", "reconciler"),
	}
}

// SyncResult reports a SyncAllRules pass. Per-rule errors are counted,
// never propagated — one bad rule must not block the rest of the tenant.
type SyncResult struct {
	Synced int
	Errors int
}

// ReconcileResult is the contract of a full reconciliation pass.
type ReconcileResult struct {
	Created int
	Updated int
	Deleted int
	Errors  int
}

// SyncRule brings the backend schedule for one rule into the state the rule
// implies. Idempotent: calling it twice with no intervening change is a
// no-op the second time. A rule that is not an active cron rule must have
// no schedule; deleting an absent schedule is not an error.
func (r *Reconciler) SyncRule(ctx context.Context, rule *domain.NotificationRule) error {
	scheduleID := rule.ScheduleID()

	if !rule.Active() {
		if err := r.schedules.Delete(ctx, scheduleID); err != nil {
			return fmt.Errorf("delete schedule for inactive rule %d: %w", rule.ID, err)
		}
		return nil
	}

	desired, err := r.desiredSchedule(rule)
	if err != nil {
		return err
	}

	existing, err := r.schedules.Get(ctx, scheduleID)
	if err != nil {
		return fmt.Errorf("get schedule for rule %d: %w", rule.ID, err)
	}

	if existing != nil {
		if err := r.schedules.Update(ctx, desired); err != nil {
			return fmt.Errorf("update schedule for rule %d: %w", rule.ID, err)
		}
		metrics.SchedulesSyncedTotal.WithLabelValues("updated").Inc()
		return nil
	}

	if err := r.schedules.Create(ctx, desired); err != nil {
		return fmt.Errorf("create schedule for rule %d: %w", rule.ID, err)
	}
	metrics.SchedulesSyncedTotal.WithLabelValues("created").Inc()
	return nil
}

// SyncAllRules runs SyncRule over every active rule, optionally scoped to
// one tenant.
func (r *Reconciler) SyncAllRules(ctx context.Context, enterpriseID *string) (SyncResult, error) {
	rules, err := r.rules.ListActive(ctx, enterpriseID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list active rules: %w", err)
	}

	var result SyncResult
	for _, rule := range rules {
		if err := r.SyncRule(ctx, rule); err != nil {
			result.Errors++
			r.logger.Warn("sync rule", "rule_id", rule.ID, "error", err)
			continue
		}
		result.Synced++
	}
	return result, nil
}

// ReconcileSchedules is the full set-diff: every active rule gets a
// correctly-configured schedule, every schedule whose memo'd rule is gone
// (deleted, deactivated, unpublished, or no longer cron) is removed.
// Incremental sync cannot see hard deletes — this pass is what guarantees
// eventual convergence.
func (r *Reconciler) ReconcileSchedules(ctx context.Context, enterpriseID *string) (ReconcileResult, error) {
	start := time.Now()
	defer func() {
		metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}()

	rules, err := r.rules.ListActive(ctx, enterpriseID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list active rules: %w", err)
	}

	schedules, err := r.schedules.List(ctx, enterpriseID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list schedules: %w", err)
	}

	activeByID := make(map[int64]*domain.NotificationRule, len(rules))
	for _, rule := range rules {
		activeByID[rule.ID] = rule
	}

	existing := make(map[string]*scheduling.Schedule, len(schedules))
	var result ReconcileResult

	for _, s := range schedules {
		existing[s.ID] = s

		if s.Memo.RuleID == 0 {
			// Not one of ours; leave foreign schedules alone.
			continue
		}
		if _, ok := activeByID[s.Memo.RuleID]; ok {
			continue
		}

		// Orphan: the backing rule is gone or no longer active.
		if err := r.schedules.Delete(ctx, s.ID); err != nil {
			result.Errors++
			r.logger.Warn("delete orphan schedule", "schedule_id", s.ID, "rule_id", s.Memo.RuleID, "error", err)
			continue
		}
		result.Deleted++
		metrics.SchedulesSyncedTotal.WithLabelValues("deleted").Inc()
		r.logger.Info("deleted orphan schedule", "schedule_id", s.ID, "rule_id", s.Memo.RuleID)
	}

	for _, rule := range rules {
		desired, err := r.desiredSchedule(rule)
		if err != nil {
			result.Errors++
			r.logger.Warn("reconcile rule", "rule_id", rule.ID, "error", err)
			continue
		}

		current, ok := existing[rule.ScheduleID()]
		if !ok {
			if err := r.schedules.Create(ctx, desired); err != nil {
				result.Errors++
				r.logger.Warn("create schedule", "rule_id", rule.ID, "error", err)
				continue
			}
			result.Created++
			metrics.SchedulesSyncedTotal.WithLabelValues("created").Inc()
			continue
		}

		if scheduleMatches(current, desired) {
			continue
		}
		if err := r.schedules.Update(ctx, desired); err != nil {
			result.Errors++
			r.logger.Warn("update drifted schedule", "rule_id", rule.ID, "error", err)
			continue
		}
		result.Updated++
		metrics.SchedulesSyncedTotal.WithLabelValues("updated").Inc()
	}

	r.logger.Info("reconciliation complete",
		"created", result.Created,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"errors", result.Errors,
		"duration", time.Since(start),
	)
	return result, nil
}

func (r *Reconciler) desiredSchedule(rule *domain.NotificationRule) (scheduling.Schedule, error) {
	tc, err := rule.ParseCronTrigger()
	if err != nil {
		return scheduling.Schedule{}, err
	}

	calendar, err := TranslateCron(tc.Cron)
	if err != nil {
		return scheduling.Schedule{}, fmt.Errorf("%w: %v", domain.ErrInvalidTriggerConfig, err)
	}

	return scheduling.Schedule{
		ID:       rule.ScheduleID(),
		Calendar: calendar,
		Timezone: tc.Timezone,
		Paused:   false,
		Memo: scheduling.Memo{
			RuleID:       rule.ID,
			EnterpriseID: rule.EnterpriseID,
			RuleName:     rule.Name,
		},
	}, nil
}

func scheduleMatches(current *scheduling.Schedule, desired scheduling.Schedule) bool {
	return current.Timezone == desired.Timezone &&
		current.Paused == desired.Paused &&
		reflect.DeepEqual(current.Calendar, desired.Calendar)
}
