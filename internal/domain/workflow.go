package domain

import (
	"errors"
	"time"
)

var ErrWorkflowNotFound = errors.New("workflow not found")

// Workflow maps a rule's workflow id to the key the delivery trigger
// service understands.
type Workflow struct {
	ID        int64
	Key       string
	Name      string
	CreatedAt time.Time
}
