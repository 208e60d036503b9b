package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"ms-payment-tracking/internal/config"
	"ms-payment-tracking/internal/models"
	"ms-payment-tracking/internal/services"
	"ms-payment-tracking/internal/templating"
)

// TemplateStore provides the reminder templates for a run.
type TemplateStore interface {
	ReminderTemplates() ([]models.EmailTemplate, error)
}

// DeadlineStore resolves deadlines due on a calendar date.
type DeadlineStore interface {
	DeadlinesDueOn(date time.Time) ([]models.Deadline, error)
}

// ProfileStore provides reminder recipients and their balances.
type ProfileStore interface {
	EligibleRecipients() ([]models.Profile, error)
	ConfirmedPaymentsTotal(profileID int) (float64, error)
}

// ReminderLog is the dedup log consulted and written by each run.
type ReminderLog interface {
	AlreadySent(entry models.ReminderLogEntry) (bool, error)
	Record(entry models.ReminderLogEntry) error
}

// EmailSender dispatches one outbound email and returns its message id.
type EmailSender interface {
	Send(to, subject, bodyText string, bodyHTML *string) (string, error)
}

// Scheduler runs the daily reminder batch: for every enabled deadline
// reminder template and each of its reminder days, it finds deadlines due
// that many days from today, and sends at most one email per eligible
// recipient per (template, deadline, days-before) tuple per calendar day.
//
// Failures are isolated per recipient; the run always completes and reports
// a summary instead of returning an error.
type Scheduler struct {
	Templates TemplateStore
	Deadlines DeadlineStore
	Profiles  ProfileStore
	Log       ReminderLog
	Email     EmailSender
	Renderer  *templating.Renderer
	Cfg       config.Config

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

func NewScheduler(templates TemplateStore, deadlines DeadlineStore, profiles ProfileStore, logStore ReminderLog, email EmailSender, renderer *templating.Renderer, cfg config.Config) *Scheduler {
	return &Scheduler{
		Templates: templates,
		Deadlines: deadlines,
		Profiles:  profiles,
		Log:       logStore,
		Email:     email,
		Renderer:  renderer,
		Cfg:       cfg,
		Now:       time.Now,
	}
}

// Run executes one reminder batch and returns its summary.
func (s *Scheduler) Run(ctx context.Context) models.RunSummary {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	today := midnightUTC(now)

	summary := models.RunSummary{RunID: uuid.NewString()}
	log.Printf("Starting reminder run %s for %s", summary.RunID, today.Format("2006-01-02"))

	templates, err := s.Templates.ReminderTemplates()
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("failed to load reminder templates: %v", err))
		return summary
	}

	for _, template := range templates {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("run cancelled: %v", ctx.Err()))
			break
		}

		summary.TemplatesProcessed++
		for _, daysBefore := range template.ReminderDays {
			if daysBefore < 0 {
				continue
			}
			s.processReminderDay(&summary, template, int(daysBefore), today)
		}
	}

	log.Printf("Reminder run %s complete: %d templates, %d sent, %d errors, %d log errors",
		summary.RunID, summary.TemplatesProcessed, summary.RemindersSent, len(summary.Errors), len(summary.LogErrors))
	return summary
}

// processReminderDay handles one (template, days-before) branch. Fetch
// failures abort only this branch.
func (s *Scheduler) processReminderDay(summary *models.RunSummary, template models.EmailTemplate, daysBefore int, today time.Time) {
	targetDate := today.AddDate(0, 0, daysBefore)

	deadlines, err := s.Deadlines.DeadlinesDueOn(targetDate)
	if err != nil {
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("template %q (%d days before): failed to fetch deadlines: %v", template.Name, daysBefore, err))
		return
	}
	if len(deadlines) == 0 {
		return
	}

	for _, deadline := range deadlines {
		recipients, err := s.Profiles.EligibleRecipients()
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("deadline %q (%d days before): failed to fetch recipients: %v", deadline.Label, daysBefore, err))
			continue
		}

		for _, profile := range recipients {
			s.processRecipient(summary, template, deadline, profile, daysBefore, today)
		}
	}
}

// processRecipient sends at most one reminder for one recipient and records
// it in the dedup log.
func (s *Scheduler) processRecipient(summary *models.RunSummary, template models.EmailTemplate, deadline models.Deadline, profile models.Profile, daysBefore int, today time.Time) {
	if !profile.ReminderEligible() {
		return
	}

	entry := models.ReminderLogEntry{
		TemplateID: template.TemplateID,
		DeadlineID: deadline.DeadlineID,
		ProfileID:  profile.ProfileID,
		DaysBefore: daysBefore,
		SentDate:   today,
	}

	sent, err := s.Log.AlreadySent(entry)
	if err != nil {
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("profile %d: failed to check reminder log: %v", profile.ProfileID, err))
		return
	}
	if sent {
		return
	}

	payments, err := s.Profiles.ConfirmedPaymentsTotal(profile.ProfileID)
	if err != nil {
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("profile %d: failed to compute confirmed total: %v", profile.ProfileID, err))
		return
	}
	confirmedTotal := profile.InitialConfirmedPaid + payments
	remaining := profile.TotalDue - confirmedTotal

	// Fully paid guests are never reminded, and nothing is logged for them.
	if remaining <= 0 {
		return
	}

	// days_away comes from the deadline row, not the loop value, so the
	// email stays correct even if the run is invoked out of sync.
	emailCtx := models.EmailContext{
		Profile:        profile,
		ConfirmedTotal: confirmedTotal,
		Remaining:      remaining,
		Deadline:       &deadline,
		DaysAway:       daysUntil(deadline.DueDate, today),
		EventName:      s.Cfg.EventName,
		Bank: models.BankDetails{
			AccountName:   s.Cfg.BankAccountName,
			AccountNumber: s.Cfg.BankAccountNo,
			SortCode:      s.Cfg.BankSortCode,
		},
		DashboardURL: s.Cfg.DashboardURL,
	}

	subject := s.Renderer.Render(template.Subject, emailCtx)
	bodyText := s.Renderer.Render(template.BodyText, emailCtx)
	var bodyHTML *string
	if template.BodyHTML != nil && *template.BodyHTML != "" {
		html := s.Renderer.Render(*template.BodyHTML, emailCtx)
		bodyHTML = &html
	}

	if _, err := s.Email.Send(*profile.Email, subject, bodyText, bodyHTML); err != nil {
		// No log entry on failure: the tuple stays eligible for retry on
		// the next invocation.
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("failed to send %q to %s for deadline %q (%d days before): %v",
				template.Name, *profile.Email, deadline.Label, daysBefore, err))
		return
	}
	summary.RemindersSent++

	if err := s.Log.Record(entry); err != nil {
		if errors.Is(err, services.ErrDuplicateLogEntry) {
			// A concurrent run recorded it first; the storage constraint
			// has done its job.
			log.Printf("Reminder log entry for profile %d already recorded by another run", profile.ProfileID)
			return
		}
		// The email went out but the log write failed; the next run may
		// send a duplicate, so surface this for operator reconciliation.
		summary.LogErrors = append(summary.LogErrors,
			fmt.Sprintf("sent %q to %s but failed to record log entry (template %d, deadline %d, %d days before): %v",
				template.Name, *profile.Email, template.TemplateID, deadline.DeadlineID, daysBefore, err))
	}
}

// midnightUTC truncates a time to its UTC calendar date.
func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// daysUntil is the whole number of days from today until the deadline's due
// date, rounding partial days up.
func daysUntil(due, today time.Time) int {
	return int(math.Ceil(midnightUTC(due).Sub(today).Hours() / 24))
}
