package domain

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidStatus        = errors.New("invalid notification status")
	ErrAlreadyTerminal      = errors.New("notification is already in a terminal status")
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSent       Status = "SENT"
	StatusFailed     Status = "FAILED"
	StatusRetracted  Status = "RETRACTED"
)

// Terminal reports whether no further dispatch attempt may touch the row.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusRetracted
}

type Notification struct {
	ID           int64
	EnterpriseID string
	WorkflowID   int64
	RuleID       *int64 // set only when created by a fired schedule
	Name         string
	Payload      json.RawMessage
	Recipients   []string
	Channels     []string
	ScheduledFor *time.Time // nil or past = immediately dispatchable

	Status        Status
	TransactionID *string
	ErrorDetails  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
