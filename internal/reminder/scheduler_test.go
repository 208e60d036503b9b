package reminder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-payment-tracking/internal/config"
	"ms-payment-tracking/internal/models"
	"ms-payment-tracking/internal/services"
	"ms-payment-tracking/internal/templating"
)

// In-memory collaborators standing in for the store and the SMTP sender.

type fakeTemplates struct {
	templates []models.EmailTemplate
	err       error
}

func (f *fakeTemplates) ReminderTemplates() ([]models.EmailTemplate, error) {
	return f.templates, f.err
}

type fakeDeadlines struct {
	byDate map[string][]models.Deadline
	errFor map[string]error
}

func (f *fakeDeadlines) DeadlinesDueOn(date time.Time) ([]models.Deadline, error) {
	key := date.UTC().Format("2006-01-02")
	if err := f.errFor[key]; err != nil {
		return nil, err
	}
	return f.byDate[key], nil
}

type fakeProfiles struct {
	profiles  []models.Profile
	confirmed map[int]float64
	err       error
}

func (f *fakeProfiles) EligibleRecipients() ([]models.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Profile
	for _, p := range f.profiles {
		if p.ReminderEligible() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfiles) ConfirmedPaymentsTotal(profileID int) (float64, error) {
	return f.confirmed[profileID], nil
}

type fakeLog struct {
	entries   map[string]bool
	recordErr error
}

func logKey(e models.ReminderLogEntry) string {
	return fmt.Sprintf("%d|%d|%d|%d|%s",
		e.TemplateID, e.DeadlineID, e.ProfileID, e.DaysBefore, e.SentDate.UTC().Format("2006-01-02"))
}

func (f *fakeLog) AlreadySent(e models.ReminderLogEntry) (bool, error) {
	return f.entries[logKey(e)], nil
}

func (f *fakeLog) Record(e models.ReminderLogEntry) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	if f.entries[logKey(e)] {
		return services.ErrDuplicateLogEntry
	}
	f.entries[logKey(e)] = true
	return nil
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

type fakeEmail struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmail) Send(to, subject, bodyText string, bodyHTML *string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: bodyText})
	return "<msg@test>", nil
}

// Fixtures: template T with reminder days [7, 2], deadline D due 2026-02-01,
// profile P owing 500 with nothing confirmed.

func reminderTemplate() models.EmailTemplate {
	return models.EmailTemplate{
		TemplateID:   1,
		Name:         "deadline-reminder",
		Subject:      "{deadline_label} is {days_away} days away",
		BodyText:     "Hi {name}, you still owe {remaining}.",
		EventType:    models.EventTypeDeadlineReminder,
		Enabled:      true,
		ReminderDays: []int64{7, 2},
	}
}

func finalBalanceDeadline() models.Deadline {
	return models.Deadline{
		DeadlineID:      10,
		Label:           "Final balance",
		DueDate:         time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		SuggestedAmount: 500,
	}
}

func guestProfile() models.Profile {
	email := "ann@example.com"
	userID := "user-ann"
	return models.Profile{
		ProfileID: 3,
		FullName:  "Ann",
		Email:     &email,
		UserID:    &userID,
		TotalDue:  500,
	}
}

func newTestScheduler(templates *fakeTemplates, deadlines *fakeDeadlines, profiles *fakeProfiles, logStore *fakeLog, email *fakeEmail, now time.Time) *Scheduler {
	cfg := config.Config{
		EventName:       "Summer Ball",
		CurrencyCode:    "GBP",
		BankAccountName: "Events Ltd",
		BankAccountNo:   "12345678",
		BankSortCode:    "01-02-03",
		DashboardURL:    "https://pay.example.com",
	}
	s := NewScheduler(templates, deadlines, profiles, logStore, email, templating.NewRenderer("GBP"), cfg)
	s.Now = func() time.Time { return now }
	return s
}

func defaultFixtures() (*fakeTemplates, *fakeDeadlines, *fakeProfiles, *fakeLog, *fakeEmail) {
	templates := &fakeTemplates{templates: []models.EmailTemplate{reminderTemplate()}}
	deadlines := &fakeDeadlines{
		byDate: map[string][]models.Deadline{
			"2026-02-01": {finalBalanceDeadline()},
		},
	}
	profiles := &fakeProfiles{
		profiles:  []models.Profile{guestProfile()},
		confirmed: map[int]float64{},
	}
	logStore := &fakeLog{entries: map[string]bool{}}
	email := &fakeEmail{}
	return templates, deadlines, profiles, logStore, email
}

func TestRunSendsReminderSevenDaysBefore(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()
	runTime := time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC)

	s := newTestScheduler(templates, deadlines, profiles, logStore, email, runTime)
	summary := s.Run(context.Background())

	assert.Equal(t, 1, summary.TemplatesProcessed)
	assert.Equal(t, 1, summary.RemindersSent)
	assert.Empty(t, summary.Errors)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "ann@example.com", email.sent[0].to)
	assert.Equal(t, "Final balance is 7 days away", email.sent[0].subject)
	assert.Equal(t, "Hi Ann, you still owe £500.00.", email.sent[0].body)

	assert.True(t, logStore.entries["1|10|3|7|2026-01-25"])
}

func TestRunIsIdempotentWithinADay(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()
	runTime := time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC)
	s := newTestScheduler(templates, deadlines, profiles, logStore, email, runTime)

	first := s.Run(context.Background())
	second := s.Run(context.Background())

	assert.Equal(t, 1, first.RemindersSent)
	assert.Equal(t, 0, second.RemindersSent)
	assert.Empty(t, second.Errors)
	assert.Len(t, email.sent, 1)
	assert.Len(t, logStore.entries, 1)
}

func TestSecondReminderWindowSendsAgain(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()

	s := newTestScheduler(templates, deadlines, profiles, logStore, email,
		time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC))
	s.Run(context.Background())

	// Five days later the 2-days-before window matches the same deadline.
	s.Now = func() time.Time { return time.Date(2026, time.January, 30, 9, 0, 0, 0, time.UTC) }
	summary := s.Run(context.Background())

	assert.Equal(t, 1, summary.RemindersSent)
	require.Len(t, email.sent, 2)
	assert.Equal(t, "Final balance is 2 days away", email.sent[1].subject)
	assert.True(t, logStore.entries["1|10|3|7|2026-01-25"])
	assert.True(t, logStore.entries["1|10|3|2|2026-01-30"])
}

func TestBalanceGatingSkipsFullyPaidGuests(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()
	profiles.confirmed[3] = 500 // fully paid via confirmed payments

	s := newTestScheduler(templates, deadlines, profiles, logStore, email,
		time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC))
	summary := s.Run(context.Background())

	assert.Equal(t, 0, summary.RemindersSent)
	assert.Empty(t, summary.Errors)
	assert.Empty(t, email.sent)
	assert.Empty(t, logStore.entries)
}

func TestBalanceIncludesInitialConfirmedPaid(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()
	p := guestProfile()
	p.InitialConfirmedPaid = 440
	profiles.profiles = []models.Profile{p}
	profiles.confirmed[3] = 60 // 440 + 60 == 500, nothing remaining

	s := newTestScheduler(templates, deadlines, profiles, logStore, email,
		time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC))
	summary := s.Run(context.Background())

	assert.Equal(t, 0, summary.RemindersSent)
	assert.Empty(t, email.sent)
}

func TestDedupIsScopedToDaysBefore(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()
	// An entry for a different days_before value must not suppress this one.
	logStore.entries["1|10|3|2|2026-01-25"] = true

	s := newTestScheduler(templates, deadlines, profiles, logStore, email,
		time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC))
	summary := s.Run(context.Background())

	assert.Equal(t, 1, summary.RemindersSent)
	assert.True(t, logStore.entries["1|10|3|7|2026-01-25"])
}

func TestDateMatchingIgnoresTimeOfDay(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()
	// Late-evening run in a +01:00 zone; the UTC calendar date is still
	// 2026-01-25, so the 7-day window must match the Feb 1 deadline.
	loc := time.FixedZone("CET", 3600)
	runTime := time.Date(2026, time.January, 25, 23, 59, 0, 0, loc)

	s := newTestScheduler(templates, deadlines, profiles, logStore, email, runTime)
	summary := s.Run(context.Background())

	assert.Equal(t, 1, summary.RemindersSent)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "Final balance is 7 days away", email.sent[0].subject)
}

func TestDispatchFailureLeavesTupleRetryable(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()
	email.err = errors.New("smtp: connection refused")
	runTime := time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC)

	s := newTestScheduler(templates, deadlines, profiles, logStore, email, runTime)
	summary := s.Run(context.Background())

	assert.Equal(t, 0, summary.RemindersSent)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "connection refused")
	assert.Empty(t, logStore.entries, "failed dispatch must not be logged")

	// Transport recovers; the same tuple is retried on the next invocation.
	email.err = nil
	retry := s.Run(context.Background())
	assert.Equal(t, 1, retry.RemindersSent)
	assert.True(t, logStore.entries["1|10|3|7|2026-01-25"])
}

func TestLogInsertFailureIsSurfacedSeparately(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()
	logStore.recordErr = errors.New("disk full")

	s := newTestScheduler(templates, deadlines, profiles, logStore, email,
		time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC))
	summary := s.Run(context.Background())

	// The email did go out; only the diagnostics carry the log failure.
	assert.Equal(t, 1, summary.RemindersSent)
	assert.Empty(t, summary.Errors)
	require.Len(t, summary.LogErrors, 1)
	assert.Contains(t, summary.LogErrors[0], "disk full")
}

func TestConcurrentDuplicateRecordIsNotAnError(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()
	logStore.recordErr = services.ErrDuplicateLogEntry

	s := newTestScheduler(templates, deadlines, profiles, logStore, email,
		time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC))
	summary := s.Run(context.Background())

	assert.Equal(t, 1, summary.RemindersSent)
	assert.Empty(t, summary.Errors)
	assert.Empty(t, summary.LogErrors)
}

func TestDeadlineFetchFailureAbortsOnlyThatBranch(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()
	// Another deadline is due two days out; its branch fails to load.
	deadlines.byDate["2026-01-27"] = []models.Deadline{{DeadlineID: 11, Label: "Deposit", DueDate: time.Date(2026, time.January, 27, 0, 0, 0, 0, time.UTC)}}
	deadlines.errFor = map[string]error{"2026-01-27": errors.New("store unavailable")}

	s := newTestScheduler(templates, deadlines, profiles, logStore, email,
		time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC))
	summary := s.Run(context.Background())

	// The 7-day branch still went through.
	assert.Equal(t, 1, summary.RemindersSent)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "store unavailable")
}

func TestIneligibleProfilesAreSkipped(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()

	admin := guestProfile()
	admin.ProfileID = 4
	admin.IsAdmin = true

	unlinked := guestProfile()
	unlinked.ProfileID = 5
	unlinked.UserID = nil

	noEmail := guestProfile()
	noEmail.ProfileID = 6
	noEmail.Email = nil

	profiles.profiles = []models.Profile{admin, unlinked, noEmail}

	s := newTestScheduler(templates, deadlines, profiles, logStore, email,
		time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC))
	summary := s.Run(context.Background())

	assert.Equal(t, 0, summary.RemindersSent)
	assert.Empty(t, email.sent)
}

func TestTemplateLoadFailureEndsRunWithError(t *testing.T) {
	templates, deadlines, profiles, logStore, email := defaultFixtures()
	templates.err = errors.New("store unavailable")

	s := newTestScheduler(templates, deadlines, profiles, logStore, email,
		time.Date(2026, time.January, 25, 9, 0, 0, 0, time.UTC))
	summary := s.Run(context.Background())

	assert.Equal(t, 0, summary.TemplatesProcessed)
	require.Len(t, summary.Errors, 1)
	assert.Empty(t, email.sent)
}
