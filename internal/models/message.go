package models

// SQSRunMessageBody is the payload the EventBridge schedule posts to the
// reminder run queue once a day.
type SQSRunMessageBody struct {
	Action         string `json:"action"`
	NotificationID string `json:"notification_id,omitempty"`
}

// ActionRunReminders triggers one reminder scheduler run.
const ActionRunReminders = "RUN_REMINDERS"

// PaymentEvent is the payment lifecycle message consumed from Kafka.
// Status carries the new payment state (submitted, approved, rejected).
type PaymentEvent struct {
	PaymentID  int     `json:"payment_id"`
	ProfileID  int     `json:"profile_id"`
	Amount     float64 `json:"amount"`
	Note       string  `json:"note,omitempty"`
	Status     string  `json:"status"`
	OccurredAt string  `json:"occurred_at,omitempty"`
}

// RunSummary is the result of one reminder scheduler invocation. LogErrors
// holds log-insert failures after a successful send; these risk a duplicate
// on the next run and are surfaced separately so an operator can reconcile.
type RunSummary struct {
	RunID              string   `json:"run_id"`
	TemplatesProcessed int      `json:"templates_processed"`
	RemindersSent      int      `json:"reminders_sent"`
	Errors             []string `json:"errors,omitempty"`
	LogErrors          []string `json:"log_errors,omitempty"`
}
