package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-payment-tracking/internal/models"
)

type stubRunner struct {
	summary models.RunSummary
	calls   int
}

func (s *stubRunner) Run(ctx context.Context) models.RunSummary {
	s.calls++
	return s.summary
}

func TestHandleRunRemindersRequiresSecret(t *testing.T) {
	runner := &stubRunner{}
	h := NewCronHandler(runner, "s3cret")

	r := httptest.NewRequest(http.MethodGet, "/api/payments/cron/reminders", nil)
	w := httptest.NewRecorder()
	h.HandleRunReminders(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, runner.calls)
}

func TestHandleRunRemindersRejectsWrongSecret(t *testing.T) {
	runner := &stubRunner{}
	h := NewCronHandler(runner, "s3cret")

	r := httptest.NewRequest(http.MethodGet, "/api/payments/cron/reminders?token=wrong", nil)
	w := httptest.NewRecorder()
	h.HandleRunReminders(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, runner.calls)
}

func TestHandleRunRemindersUnconfiguredSecretAlwaysRejects(t *testing.T) {
	runner := &stubRunner{}
	h := NewCronHandler(runner, "")

	r := httptest.NewRequest(http.MethodGet, "/api/payments/cron/reminders?token=", nil)
	w := httptest.NewRecorder()
	h.HandleRunReminders(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, runner.calls)
}

func TestHandleRunRemindersBearerToken(t *testing.T) {
	runner := &stubRunner{summary: models.RunSummary{RunID: "run-1", RemindersSent: 3}}
	h := NewCronHandler(runner, "s3cret")

	r := httptest.NewRequest(http.MethodGet, "/api/payments/cron/reminders", nil)
	r.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	h.HandleRunReminders(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, runner.calls)

	var body cronRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 3, body.RemindersSent)
	assert.Empty(t, body.Errors)
}

func TestHandleRunRemindersQueryToken(t *testing.T) {
	runner := &stubRunner{summary: models.RunSummary{RunID: "run-2", RemindersSent: 1}}
	h := NewCronHandler(runner, "s3cret")

	r := httptest.NewRequest(http.MethodGet, "/api/payments/cron/reminders?token=s3cret", nil)
	w := httptest.NewRecorder()
	h.HandleRunReminders(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, runner.calls)
}

func TestHandleRunRemindersReportsErrors(t *testing.T) {
	runner := &stubRunner{summary: models.RunSummary{
		RunID:         "run-3",
		RemindersSent: 2,
		Errors:        []string{"smtp: connection refused"},
	}}
	h := NewCronHandler(runner, "s3cret")

	r := httptest.NewRequest(http.MethodGet, "/api/payments/cron/reminders?token=s3cret", nil)
	w := httptest.NewRecorder()
	h.HandleRunReminders(w, r)

	require.Equal(t, http.StatusOK, w.Code, "partial failure still reports the run outcome")

	var body cronRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, 2, body.RemindersSent)
	assert.Equal(t, []string{"smtp: connection refused"}, body.Errors)
}
