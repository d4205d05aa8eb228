// seed inserts test workflows, notification rules, and notifications into
// the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/danabek/notification-dispatcher/internal/infrastructure/postgres"
)

const seedEnterprise = "ent-seed"

type ruleSpec struct {
	name          string
	triggerType   string
	triggerConfig string
	payload       string
	publishStatus string
	deactivated   bool
}

var rules = []ruleSpec{
	// Active cron rules — the reconciler should mirror these as schedules
	{"daily-digest", "CRON", `{"cron": "0 9 * * MON-FRI", "timezone": "Europe/Berlin"}`,
		`{"recipients": ["sub-1", "sub-2"], "channels": ["email"]}`, "PUBLISH", false},
	{"weekly-summary", "CRON", `{"cron": "0 8 * * MON"}`,
		`{"recipient": "sub-3"}`, "PUBLISH", false},
	{"hourly-heartbeat", "CRON", `{"cron": "0 * * * *", "timezone": "UTC"}`,
		`{"recipients": ["sub-ops"], "channels": ["in_app"]}`, "PUBLISH", false},

	// Should have no schedule: draft, deactivated, event-triggered
	{"draft-digest", "CRON", `{"cron": "30 7 * * *"}`,
		`{"recipients": ["sub-4"]}`, "DRAFT", false},
	{"retired-report", "CRON", `{"cron": "0 6 1 * *"}`,
		`{"recipients": ["sub-5"]}`, "PUBLISH", true},
	{"signup-welcome", "EVENT", `{"event": "user.signup"}`,
		`{"recipient": "sub-6"}`, "PUBLISH", false},

	// Broken on purpose — counted as a sync error, never fatal
	{"broken-config", "CRON", `null`,
		`{"recipients": ["sub-7"]}`, "PUBLISH", false},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	var workflowID int64
	err = pool.QueryRow(ctx, `
		INSERT INTO workflows (key, name)
		VALUES ('seed-digest', 'Seed digest workflow')
		ON CONFLICT (key) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
	).Scan(&workflowID)
	if err != nil {
		log.Fatalf("upsert workflow: %v", err)
	}

	var ruleIDs []int64
	for _, spec := range rules {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO notification_rules (
				enterprise_id, name, trigger_type, trigger_config,
				rule_payload, workflow_id, publish_status, deactivated
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (enterprise_id, name) DO UPDATE SET updated_at = NOW()
			RETURNING id`,
			seedEnterprise, spec.name, spec.triggerType, spec.triggerConfig,
			spec.payload, workflowID, spec.publishStatus, spec.deactivated,
		).Scan(&id)
		if err != nil {
			log.Fatalf("insert rule %s: %v", spec.name, err)
		}
		ruleIDs = append(ruleIDs, id)
	}

	now := time.Now()
	notifications := []struct {
		name         string
		scheduledFor *time.Time
		status       string
	}{
		{"immediate", nil, "PENDING"},
		{"overdue-30m", ptr(now.Add(-30 * time.Minute)), "PENDING"},
		{"overdue-10m", ptr(now.Add(-10 * time.Minute)), "PENDING"},
		{"future-10m", ptr(now.Add(10 * time.Minute)), "PENDING"},
		{"needs-retry", nil, "FAILED"},
	}

	for _, n := range notifications {
		_, err := pool.Exec(ctx, `
			INSERT INTO notifications (
				enterprise_id, workflow_id, rule_id, name, payload,
				recipients, channels, scheduled_for, status
			) VALUES ($1, $2, $3, $4, '{}', $5, $6, $7, $8)`,
			seedEnterprise, workflowID, ruleIDs[0], "seed-"+n.name,
			[]string{"sub-1"}, []string{"email"}, n.scheduledFor, n.status,
		)
		if err != nil {
			log.Fatalf("insert notification %s: %v", n.name, err)
		}
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Enterprise:    %s\n", seedEnterprise)
	fmt.Printf("  Workflow ID:   %d\n", workflowID)
	fmt.Printf("  Rules:         %d  (3 active cron, 3 inactive, 1 broken)\n", len(ruleIDs))
	fmt.Printf("  Notifications: %d\n", len(notifications))
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Force a full reconciliation and watch the schedule counts:")
	fmt.Println()
	fmt.Println("    curl -s -X POST http://localhost:8080/internal/reconcile")
	fmt.Println()
	fmt.Println("  Simulate a schedule firing (use any active rule id):")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/internal/rules/%d/fire\n", ruleIDs[0])
	fmt.Println()
	fmt.Println("  The pollers pick up pending/overdue rows within a few seconds;")
	fmt.Println("  check notifier_notifications_dispatched_total on :9090/metrics.")
}

func ptr(t time.Time) *time.Time { return &t }
