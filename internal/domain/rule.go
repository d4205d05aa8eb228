package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrRuleNotFound         = errors.New("notification rule not found")
	ErrInvalidTriggerConfig = errors.New("invalid trigger config")
	ErrNoRecipients         = errors.New("rule payload has no recipient or recipients field")
)

type TriggerType string

const (
	TriggerCron  TriggerType = "CRON"
	TriggerEvent TriggerType = "EVENT"
)

type PublishStatus string

const (
	PublishStatusDraft   PublishStatus = "DRAFT"
	PublishStatusPublish PublishStatus = "PUBLISH"
)

type NotificationRule struct {
	ID            int64
	EnterpriseID  *string
	BusinessID    *string
	Name          string
	TriggerType   TriggerType
	TriggerConfig json.RawMessage // for CRON: {"cron": "...", "timezone": "..."}
	RulePayload   json.RawMessage
	WorkflowID    int64
	PublishStatus PublishStatus
	Deactivated   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the rule should have a live schedule in the backend.
func (r *NotificationRule) Active() bool {
	return r.TriggerType == TriggerCron &&
		r.PublishStatus == PublishStatusPublish &&
		!r.Deactivated
}

// ScheduleID is a pure function of the rule, so schedule existence can always
// be recomputed without a local cache. An absent enterprise id maps to the
// literal string "null" to keep the id stable.
func (r *NotificationRule) ScheduleID() string {
	enterprise := "null"
	if r.EnterpriseID != nil {
		enterprise = *r.EnterpriseID
	}
	return fmt.Sprintf("rule-%d-%s", r.ID, enterprise)
}

type CronTrigger struct {
	Cron     string `json:"cron"`
	Timezone string `json:"timezone"`
}

// ParseCronTrigger extracts the cron trigger config from a CRON rule.
// Returns ErrInvalidTriggerConfig if the config is null, malformed, or has
// no cron expression. Timezone defaults to UTC.
func (r *NotificationRule) ParseCronTrigger() (CronTrigger, error) {
	if len(r.TriggerConfig) == 0 || string(r.TriggerConfig) == "null" {
		return CronTrigger{}, fmt.Errorf("%w: trigger config is empty (rule %d)", ErrInvalidTriggerConfig, r.ID)
	}

	var tc CronTrigger
	if err := json.Unmarshal(r.TriggerConfig, &tc); err != nil {
		return CronTrigger{}, fmt.Errorf("%w: %v (rule %d)", ErrInvalidTriggerConfig, err, r.ID)
	}
	if tc.Cron == "" {
		return CronTrigger{}, fmt.Errorf("%w: missing cron expression (rule %d)", ErrInvalidTriggerConfig, r.ID)
	}
	if tc.Timezone == "" {
		tc.Timezone = "UTC"
	}
	return tc, nil
}

// rulePayload is the subset of the opaque rule payload this service reads.
// Rules written by the upstream editor carry arbitrary extra JSON around it.
type rulePayload struct {
	Recipient  string   `json:"recipient"`
	Recipients []string `json:"recipients"`
	Channels   []string `json:"channels"`
}

// ExtractRecipients normalizes the duck-typed payload (singular `recipient`
// or plural `recipients`) into a non-empty list. Neither field present is
// ErrNoRecipients — never an empty default.
func ExtractRecipients(payload json.RawMessage) ([]string, error) {
	if len(payload) == 0 {
		return nil, ErrNoRecipients
	}

	var p rulePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("parse rule payload: %w", err)
	}

	if len(p.Recipients) > 0 {
		return p.Recipients, nil
	}
	if p.Recipient != "" {
		return []string{p.Recipient}, nil
	}
	return nil, ErrNoRecipients
}

// ExtractChannels returns the optional channels list; empty is allowed.
func ExtractChannels(payload json.RawMessage) []string {
	if len(payload) == 0 {
		return nil
	}
	var p rulePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil
	}
	return p.Channels
}
