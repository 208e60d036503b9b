package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-payment-tracking/internal/models"
)

// ProfileService reads guest profiles, their payment balances, and payment
// deadlines.
type ProfileService struct {
	DB *sql.DB
}

func NewProfileService(db *sql.DB) *ProfileService {
	return &ProfileService{DB: db}
}

const profileColumns = `profile_id, full_name, email, user_id, total_due, initial_confirmed_paid, is_admin, created_at`

func scanProfile(row interface{ Scan(...interface{}) error }) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.ProfileID,
		&p.FullName,
		&p.Email,
		&p.UserID,
		&p.TotalDue,
		&p.InitialConfirmedPaid,
		&p.IsAdmin,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// EligibleRecipients returns the profiles that may receive deadline
// reminders: non-admin, email present, linked to a user.
func (s *ProfileService) EligibleRecipients() ([]models.Profile, error) {
	query := `
        SELECT ` + profileColumns + `
        FROM profiles
        WHERE email IS NOT NULL AND email <> '' AND user_id IS NOT NULL AND is_admin = FALSE
        ORDER BY profile_id
    `

	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("error querying eligible recipients: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// ProfileByID returns a profile by id, or nil when not found.
func (s *ProfileService) ProfileByID(profileID int) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE profile_id = $1`

	p, err := scanProfile(s.DB.QueryRow(query, profileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting profile %d: %w", profileID, err)
	}
	return p, nil
}

// ProfileByUserID returns the profile linked to an auth user, or nil when
// none is linked.
func (s *ProfileService) ProfileByUserID(userID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`

	p, err := scanProfile(s.DB.QueryRow(query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting profile for user %s: %w", userID, err)
	}
	return p, nil
}

// ConfirmedPaymentsTotal sums the confirmed payments for a profile. The
// caller adds the profile's initial_confirmed_paid on top.
func (s *ProfileService) ConfirmedPaymentsTotal(profileID int) (float64, error) {
	query := `
        SELECT COALESCE(SUM(amount), 0)
        FROM payments
        WHERE profile_id = $1 AND status = $2
    `

	var total float64
	err := s.DB.QueryRow(query, profileID, models.PaymentStatusConfirmed).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("error summing confirmed payments for profile %d: %w", profileID, err)
	}
	return total, nil
}

// PaymentByID returns a payment by id, or nil when not found.
func (s *ProfileService) PaymentByID(paymentID int) (*models.Payment, error) {
	query := `
        SELECT payment_id, profile_id, amount, note, status, paid_at, created_at
        FROM payments
        WHERE payment_id = $1
    `

	var p models.Payment
	err := s.DB.QueryRow(query, paymentID).Scan(
		&p.PaymentID, &p.ProfileID, &p.Amount, &p.Note, &p.Status, &p.PaidAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting payment %d: %w", paymentID, err)
	}
	return &p, nil
}

// DeadlinesDueOn returns deadlines whose due date equals the given calendar
// date. Comparison is date-only; any time component on either side is
// discarded.
func (s *ProfileService) DeadlinesDueOn(date time.Time) ([]models.Deadline, error) {
	query := `
        SELECT deadline_id, label, due_date, suggested_amount
        FROM payment_deadlines
        WHERE due_date = $1::date
        ORDER BY deadline_id
    `

	rows, err := s.DB.Query(query, date.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("error querying deadlines due on %s: %w", date.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var deadlines []models.Deadline
	for rows.Next() {
		var d models.Deadline
		if err := rows.Scan(&d.DeadlineID, &d.Label, &d.DueDate, &d.SuggestedAmount); err != nil {
			return nil, fmt.Errorf("error scanning deadline: %w", err)
		}
		deadlines = append(deadlines, d)
	}
	return deadlines, rows.Err()
}

// ListDeadlines returns all payment deadlines ordered by due date.
func (s *ProfileService) ListDeadlines() ([]models.Deadline, error) {
	query := `
        SELECT deadline_id, label, due_date, suggested_amount
        FROM payment_deadlines
        ORDER BY due_date
    `

	rows, err := s.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("error listing deadlines: %w", err)
	}
	defer rows.Close()

	var deadlines []models.Deadline
	for rows.Next() {
		var d models.Deadline
		if err := rows.Scan(&d.DeadlineID, &d.Label, &d.DueDate, &d.SuggestedAmount); err != nil {
			return nil, fmt.Errorf("error scanning deadline: %w", err)
		}
		deadlines = append(deadlines, d)
	}
	return deadlines, rows.Err()
}
