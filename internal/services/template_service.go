package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ms-payment-tracking/internal/models"
)

// TemplateService reads and maintains email templates and reminder
// schedules. The reminder scheduler only reads through it; writes come from
// the admin API.
type TemplateService struct {
	DB *sql.DB
}

func NewTemplateService(db *sql.DB) *TemplateService {
	return &TemplateService{DB: db}
}

const templateColumns = `template_id, name, subject, body_text, body_html, event_type, enabled, reminder_days, created_at, updated_at`

func scanTemplate(row interface{ Scan(...interface{}) error }) (*models.EmailTemplate, error) {
	var t models.EmailTemplate
	var days pq.Int64Array
	err := row.Scan(
		&t.TemplateID,
		&t.Name,
		&t.Subject,
		&t.BodyText,
		&t.BodyHTML,
		&t.EventType,
		&t.Enabled,
		&days,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ReminderDays = []int64(days)
	return &t, nil
}

// ReminderTemplates returns the enabled deadline_reminder templates that
// have at least one configured reminder day.
func (s *TemplateService) ReminderTemplates() ([]models.EmailTemplate, error) {
	query := `
        SELECT ` + templateColumns + `
        FROM email_templates
        WHERE event_type = $1 AND enabled = TRUE AND cardinality(reminder_days) > 0
        ORDER BY template_id
    `

	rows, err := s.DB.Query(query, models.EventTypeDeadlineReminder)
	if err != nil {
		return nil, fmt.Errorf("error querying reminder templates: %w", err)
	}
	defer rows.Close()

	var templates []models.EmailTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning reminder template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// TemplateByEventType returns the enabled template for a lifecycle event,
// or nil when none is configured.
func (s *TemplateService) TemplateByEventType(eventType models.EventType) (*models.EmailTemplate, error) {
	query := `
        SELECT ` + templateColumns + `
        FROM email_templates
        WHERE event_type = $1 AND enabled = TRUE
        ORDER BY template_id
        LIMIT 1
    `

	t, err := scanTemplate(s.DB.QueryRow(query, eventType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting template for event type %s: %w", eventType, err)
	}
	return t, nil
}

// TemplateByID returns a template by id, or nil when not found.
func (s *TemplateService) TemplateByID(templateID int) (*models.EmailTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM email_templates WHERE template_id = $1`

	t, err := scanTemplate(s.DB.QueryRow(query, templateID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting template %d: %w", templateID, err)
	}
	return t, nil
}

// ListTemplates returns all templates ordered by name.
func (s *TemplateService) ListTemplates() ([]models.EmailTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM email_templates ORDER BY name`

	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("error listing templates: %w", err)
	}
	defer rows.Close()

	var templates []models.EmailTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// CreateTemplate inserts a template and returns it with generated fields.
func (s *TemplateService) CreateTemplate(t *models.EmailTemplate) (*models.EmailTemplate, error) {
	query := `
        INSERT INTO email_templates (name, subject, body_text, body_html, event_type, enabled, reminder_days)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING ` + templateColumns

	return scanTemplate(s.DB.QueryRow(query,
		t.Name, t.Subject, t.BodyText, t.BodyHTML, t.EventType, t.Enabled, pq.Array(t.ReminderDays)))
}

// UpdateTemplate updates a template and returns the stored row.
func (s *TemplateService) UpdateTemplate(t *models.EmailTemplate) (*models.EmailTemplate, error) {
	query := `
        UPDATE email_templates
        SET name = $2, subject = $3, body_text = $4, body_html = $5,
            event_type = $6, enabled = $7, reminder_days = $8, updated_at = NOW()
        WHERE template_id = $1
        RETURNING ` + templateColumns

	updated, err := scanTemplate(s.DB.QueryRow(query,
		t.TemplateID, t.Name, t.Subject, t.BodyText, t.BodyHTML, t.EventType, t.Enabled, pq.Array(t.ReminderDays)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error updating template %d: %w", t.TemplateID, err)
	}
	return updated, nil
}

// DeleteTemplate removes a template by id.
func (s *TemplateService) DeleteTemplate(templateID int) error {
	_, err := s.DB.Exec(`DELETE FROM email_templates WHERE template_id = $1`, templateID)
	return err
}

// ListSchedules returns all reminder schedules ordered by days_before.
func (s *TemplateService) ListSchedules() ([]models.ReminderSchedule, error) {
	query := `
        SELECT schedule_id, days_before, template_id, enabled
        FROM deadline_reminder_schedules
        ORDER BY days_before DESC
    `

	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("error listing reminder schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.ReminderSchedule
	for rows.Next() {
		var sch models.ReminderSchedule
		if err := rows.Scan(&sch.ScheduleID, &sch.DaysBefore, &sch.TemplateID, &sch.Enabled); err != nil {
			return nil, fmt.Errorf("error scanning reminder schedule: %w", err)
		}
		schedules = append(schedules, sch)
	}
	return schedules, rows.Err()
}

// UpsertSchedule inserts or updates the schedule for a days_before value.
// days_before is unique across schedules, so a conflict replaces the
// template binding instead of adding a second row.
func (s *TemplateService) UpsertSchedule(sch *models.ReminderSchedule) (*models.ReminderSchedule, error) {
	query := `
        INSERT INTO deadline_reminder_schedules (days_before, template_id, enabled)
        VALUES ($1, $2, $3)
        ON CONFLICT (days_before) DO UPDATE SET
            template_id = EXCLUDED.template_id,
            enabled = EXCLUDED.enabled
        RETURNING schedule_id, days_before, template_id, enabled
    `

	var out models.ReminderSchedule
	err := s.DB.QueryRow(query, sch.DaysBefore, sch.TemplateID, sch.Enabled).Scan(
		&out.ScheduleID, &out.DaysBefore, &out.TemplateID, &out.Enabled)
	if err != nil {
		return nil, fmt.Errorf("error upserting reminder schedule: %w", err)
	}
	if err := s.syncReminderDays(out.TemplateID); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSchedule removes a reminder schedule by id.
func (s *TemplateService) DeleteSchedule(scheduleID int) error {
	var templateID int
	err := s.DB.QueryRow(
		`DELETE FROM deadline_reminder_schedules WHERE schedule_id = $1 RETURNING template_id`,
		scheduleID).Scan(&templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("error deleting reminder schedule %d: %w", scheduleID, err)
	}
	return s.syncReminderDays(templateID)
}

// syncReminderDays recomputes a template's reminder_days from its enabled
// schedules. The schedules table is the admin-facing configuration; the
// scheduler only ever reads reminder_days off the template row.
func (s *TemplateService) syncReminderDays(templateID int) error {
	query := `
        UPDATE email_templates
        SET reminder_days = COALESCE(
            (SELECT array_agg(days_before ORDER BY days_before DESC)
             FROM deadline_reminder_schedules
             WHERE template_id = $1 AND enabled), '{}'),
            updated_at = NOW()
        WHERE template_id = $1
    `
	if _, err := s.DB.Exec(query, templateID); err != nil {
		return fmt.Errorf("error syncing reminder days for template %d: %w", templateID, err)
	}
	return nil
}
