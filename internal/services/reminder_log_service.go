package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ms-payment-tracking/internal/models"
)

// ErrDuplicateLogEntry indicates the unique constraint over
// (template_id, deadline_id, profile_id, days_before, sent_date) rejected
// an insert: another invocation already recorded this reminder today.
var ErrDuplicateLogEntry = errors.New("reminder log entry already recorded")

// ReminderLogService is the dedup log behind the at-most-once-per-day
// guarantee for reminder sends.
type ReminderLogService struct {
	DB *sql.DB
}

func NewReminderLogService(db *sql.DB) *ReminderLogService {
	return &ReminderLogService{DB: db}
}

// AlreadySent reports whether a log entry exists for the entry's dedup
// tuple. SentDate is compared date-only.
func (s *ReminderLogService) AlreadySent(entry models.ReminderLogEntry) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM deadline_reminder_log
            WHERE template_id = $1 AND deadline_id = $2 AND profile_id = $3
              AND days_before = $4 AND sent_date = $5::date
        )
    `

	var exists bool
	err := s.DB.QueryRow(query,
		entry.TemplateID, entry.DeadlineID, entry.ProfileID,
		entry.DaysBefore, entry.SentDate.UTC().Format("2006-01-02"),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking reminder log: %w", err)
	}
	return exists, nil
}

// Record inserts a log entry for a sent reminder. A unique-constraint
// violation maps to ErrDuplicateLogEntry so callers can tell "already
// recorded by a concurrent run" apart from real insert failures.
func (s *ReminderLogService) Record(entry models.ReminderLogEntry) error {
	query := `
        INSERT INTO deadline_reminder_log (template_id, deadline_id, profile_id, days_before, sent_date)
        VALUES ($1, $2, $3, $4, $5::date)
    `

	_, err := s.DB.Exec(query,
		entry.TemplateID, entry.DeadlineID, entry.ProfileID,
		entry.DaysBefore, entry.SentDate.UTC().Format("2006-01-02"))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateLogEntry
		}
		return fmt.Errorf("error recording reminder log entry: %w", err)
	}
	return nil
}
