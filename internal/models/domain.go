package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// EventType identifies which lifecycle event an email template is for.
type EventType string

const (
	EventTypeSignup           EventType = "signup"
	EventTypeSignupLink       EventType = "signup_link"
	EventTypePaymentSubmitted EventType = "payment_submitted"
	EventTypePaymentApproved  EventType = "payment_approved"
	EventTypePaymentRejected  EventType = "payment_rejected"
	EventTypeDeadlineReminder EventType = "deadline_reminder"
)

// Valid reports whether the event type is one of the known values.
func (et EventType) Valid() bool {
	switch et {
	case EventTypeSignup, EventTypeSignupLink, EventTypePaymentSubmitted,
		EventTypePaymentApproved, EventTypePaymentRejected, EventTypeDeadlineReminder:
		return true
	}
	return false
}

// Scan implements the sql.Scanner interface for EventType
func (et *EventType) Scan(value interface{}) error {
	if value == nil {
		*et = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*et = EventType(v)
		return nil
	case []byte:
		*et = EventType(v)
		return nil
	}
	return fmt.Errorf("cannot scan %T into EventType", value)
}

// Value implements the driver.Valuer interface for EventType
func (et EventType) Value() (driver.Value, error) {
	return string(et), nil
}

// PaymentStatus is the lifecycle state of a payment claim.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusRejected  PaymentStatus = "rejected"
)

// Scan implements the sql.Scanner interface for PaymentStatus
func (ps *PaymentStatus) Scan(value interface{}) error {
	if value == nil {
		*ps = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*ps = PaymentStatus(v)
		return nil
	case []byte:
		*ps = PaymentStatus(v)
		return nil
	}
	return fmt.Errorf("cannot scan %T into PaymentStatus", value)
}

// Value implements the driver.Valuer interface for PaymentStatus
func (ps PaymentStatus) Value() (driver.Value, error) {
	return string(ps), nil
}

// Profile is a guest/attendee record, optionally linked to an auth user.
type Profile struct {
	ProfileID            int       `json:"profile_id" db:"profile_id"`
	FullName             string    `json:"full_name" db:"full_name"`
	Email                *string   `json:"email,omitempty" db:"email"`
	UserID               *string   `json:"user_id,omitempty" db:"user_id"`
	TotalDue             float64   `json:"total_due" db:"total_due"`
	InitialConfirmedPaid float64   `json:"initial_confirmed_paid" db:"initial_confirmed_paid"`
	IsAdmin              bool      `json:"is_admin" db:"is_admin"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// ReminderEligible reports whether the profile can receive deadline
// reminders: an email address, a linked user, and not an admin.
func (p *Profile) ReminderEligible() bool {
	return p.Email != nil && *p.Email != "" && p.UserID != nil && !p.IsAdmin
}

// Payment is a payment claim submitted by a guest.
type Payment struct {
	PaymentID int           `json:"payment_id" db:"payment_id"`
	ProfileID int           `json:"profile_id" db:"profile_id"`
	Amount    float64       `json:"amount" db:"amount"`
	Note      string        `json:"note" db:"note"`
	Status    PaymentStatus `json:"status" db:"status"`
	PaidAt    *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// Deadline is a calendar date by which a suggested amount is due.
type Deadline struct {
	DeadlineID      int       `json:"deadline_id" db:"deadline_id"`
	Label           string    `json:"label" db:"label"`
	DueDate         time.Time `json:"due_date" db:"due_date"`
	SuggestedAmount float64   `json:"suggested_amount" db:"suggested_amount"`
}

// EmailTemplate is an admin-editable email template. ReminderDays is only
// meaningful when EventType is deadline_reminder.
type EmailTemplate struct {
	TemplateID   int       `json:"template_id" db:"template_id"`
	Name         string    `json:"name" db:"name"`
	Subject      string    `json:"subject" db:"subject"`
	BodyText     string    `json:"body_text" db:"body_text"`
	BodyHTML     *string   `json:"body_html,omitempty" db:"body_html"`
	EventType    EventType `json:"event_type" db:"event_type"`
	Enabled      bool      `json:"enabled" db:"enabled"`
	ReminderDays []int64   `json:"reminder_days" db:"reminder_days"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ReminderSchedule is a configured (days-before, template) pair. DaysBefore
// is unique across schedules.
type ReminderSchedule struct {
	ScheduleID int  `json:"schedule_id" db:"schedule_id"`
	DaysBefore int  `json:"days_before" db:"days_before"`
	TemplateID int  `json:"template_id" db:"template_id"`
	Enabled    bool `json:"enabled" db:"enabled"`
}

// ReminderLogEntry records one sent reminder. At most one entry may exist
// per (template, deadline, profile, days_before, sent_date); the table
// enforces this with a composite unique constraint.
type ReminderLogEntry struct {
	LogID      int       `json:"log_id" db:"log_id"`
	TemplateID int       `json:"template_id" db:"template_id"`
	DeadlineID int       `json:"deadline_id" db:"deadline_id"`
	ProfileID  int       `json:"profile_id" db:"profile_id"`
	DaysBefore int       `json:"days_before" db:"days_before"`
	SentDate   time.Time `json:"sent_date" db:"sent_date"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
