// Package scheduling defines the contract with the external cron-scheduling
// backend. The backend owns wall-clock firing; this service only mirrors
// rules onto it and never stores schedule state locally.
package scheduling

import "context"

// Range is an inclusive value range within a calendar field.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CalendarSpec is the backend's structured representation of a cron
// expression. An empty slice means "every value" for that field.
// Days of week are numbered 0 (Sunday) through 6 (Saturday).
type CalendarSpec struct {
	Minutes     []Range `json:"minutes,omitempty"`
	Hours       []Range `json:"hours,omitempty"`
	DaysOfMonth []Range `json:"days_of_month,omitempty"`
	Months      []Range `json:"months,omitempty"`
	DaysOfWeek  []Range `json:"days_of_week,omitempty"`
}

// Memo travels opaquely with the schedule and lets full reconciliation
// recognize which rule a schedule belongs to (and spot orphans).
type Memo struct {
	RuleID       int64   `json:"rule_id"`
	EnterpriseID *string `json:"enterprise_id"`
	RuleName     string  `json:"rule_name"`
}

type Schedule struct {
	ID       string       `json:"id"`
	Calendar CalendarSpec `json:"calendar"`
	Timezone string       `json:"timezone"`
	Paused   bool         `json:"paused"`
	Memo     Memo         `json:"memo"`
}

type Client interface {
	Create(ctx context.Context, s Schedule) error
	// Update must create the schedule if it does not exist, so SyncRule
	// stays idempotent without a get-then-create race.
	Update(ctx context.Context, s Schedule) error
	// Delete must not error when the schedule is already absent.
	Delete(ctx context.Context, id string) error
	// Get returns nil (not an error) for a missing schedule.
	Get(ctx context.Context, id string) (*Schedule, error)
	// List returns every schedule, optionally filtered to one tenant via
	// the memo's enterprise id.
	List(ctx context.Context, enterpriseID *string) ([]*Schedule, error)
}
