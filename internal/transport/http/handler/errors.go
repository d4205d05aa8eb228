package handler

const (
	errInternalServer       = "Internal server error"
	errRuleNotFound         = "Notification rule not found"
	errWorkflowNotFound     = "Workflow not found"
	errNotificationNotFound = "Notification not found"
	errNoRecipients         = "Rule payload has no recipients"
	errAlreadyTerminal      = "Notification is already sent or retracted"
)
