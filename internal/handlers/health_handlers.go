package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"ms-payment-tracking/internal/services"
)

// HealthHandler provides health check endpoints for readiness and liveness probes
type HealthHandler struct {
	dbService       *services.DatabaseService
	startTime       time.Time
	readinessChecks map[string]func() error
	livenessChecks  map[string]func() error
}

// HealthResponse is the probe response body
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(dbService *services.DatabaseService) *HealthHandler {
	h := &HealthHandler{
		dbService:       dbService,
		startTime:       time.Now(),
		readinessChecks: make(map[string]func() error),
		livenessChecks:  make(map[string]func() error),
	}

	h.readinessChecks["database"] = h.dbService.CheckConnection
	h.livenessChecks["uptime"] = func() error { return nil }

	return h
}

// HandleReadiness handles readiness probe requests
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.runChecks(w, h.readinessChecks)
}

// HandleLiveness handles liveness probe requests
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	h.runChecks(w, h.livenessChecks)
}

// HandleHealth handles general health check requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *HealthHandler) runChecks(w http.ResponseWriter, checks map[string]func() error) {
	details := make(map[string]string)
	allOk := true

	for name, check := range checks {
		if err := check(); err != nil {
			allOk = false
			details[name] = err.Error()
		} else {
			details[name] = "OK"
		}
	}

	response := HealthResponse{
		Status:    "UP",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).String(),
		Details:   details,
	}

	if !allOk {
		response.Status = "DOWN"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}
