package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"ms-payment-tracking/internal/reminder"
)

// CronHandler exposes the reminder batch behind a shared-secret endpoint so
// an external scheduler can trigger a run over plain HTTP.
type CronHandler struct {
	runner reminder.Runner
	secret string
}

func NewCronHandler(runner reminder.Runner, secret string) *CronHandler {
	return &CronHandler{
		runner: runner,
		secret: secret,
	}
}

type cronRunResponse struct {
	Success       bool     `json:"success"`
	RemindersSent int      `json:"remindersSent"`
	Errors        []string `json:"errors,omitempty"`
}

// HandleRunReminders handles GET /api/payments/cron/reminders
func (h *CronHandler) HandleRunReminders(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	summary := h.runner.Run(r.Context())
	log.Printf("Cron-triggered reminder run %s: %d sent, %d errors",
		summary.RunID, summary.RemindersSent, len(summary.Errors))

	response := cronRunResponse{
		Success:       len(summary.Errors) == 0,
		RemindersSent: summary.RemindersSent,
		Errors:        append(summary.Errors, summary.LogErrors...),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding cron run response: %v", err)
	}
}

// authorized checks the shared secret from the Authorization header or the
// token query parameter. An unconfigured secret rejects every request.
func (h *CronHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}

	presented := r.URL.Query().Get("token")
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		presented = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if presented == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.secret)) == 1
}
