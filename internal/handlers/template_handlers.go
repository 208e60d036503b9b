package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ms-payment-tracking/internal/models"
	"ms-payment-tracking/internal/services"
)

// TemplateHandler serves the admin endpoints for email templates, reminder
// schedules and payment deadlines.
type TemplateHandler struct {
	templateService *services.TemplateService
	profileService  *services.ProfileService
}

func NewTemplateHandler(templateService *services.TemplateService, profileService *services.ProfileService) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		profileService:  profileService,
	}
}

// ListTemplates handles GET /api/payments/templates
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templateService.ListTemplates()
	if err != nil {
		log.Printf("Error listing templates: %v", err)
		http.Error(w, "Failed to list templates", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, templates)
}

// GetTemplate handles GET /api/payments/templates/{templateId}
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, ok := pathID(w, r, "templateId")
	if !ok {
		return
	}

	template, err := h.templateService.TemplateByID(templateID)
	if err != nil {
		log.Printf("Error fetching template %d: %v", templateID, err)
		http.Error(w, "Failed to fetch template", http.StatusInternalServerError)
		return
	}
	if template == nil {
		http.Error(w, "Template not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, template)
}

// CreateTemplate handles POST /api/payments/templates
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var template models.EmailTemplate
	if err := json.NewDecoder(r.Body).Decode(&template); err != nil {
		log.Printf("Error decoding template body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if template.Name == "" || template.Subject == "" {
		http.Error(w, "Name and subject are required", http.StatusBadRequest)
		return
	}
	if !template.EventType.Valid() {
		http.Error(w, "Unknown event type", http.StatusBadRequest)
		return
	}

	created, err := h.templateService.CreateTemplate(&template)
	if err != nil {
		log.Printf("Error creating template: %v", err)
		http.Error(w, "Failed to create template", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// UpdateTemplate handles PUT /api/payments/templates/{templateId}
func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, ok := pathID(w, r, "templateId")
	if !ok {
		return
	}

	var template models.EmailTemplate
	if err := json.NewDecoder(r.Body).Decode(&template); err != nil {
		log.Printf("Error decoding template body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	template.TemplateID = templateID

	if !template.EventType.Valid() {
		http.Error(w, "Unknown event type", http.StatusBadRequest)
		return
	}

	updated, err := h.templateService.UpdateTemplate(&template)
	if err != nil {
		log.Printf("Error updating template %d: %v", templateID, err)
		http.Error(w, "Failed to update template", http.StatusInternalServerError)
		return
	}
	if updated == nil {
		http.Error(w, "Template not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// DeleteTemplate handles DELETE /api/payments/templates/{templateId}
func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, ok := pathID(w, r, "templateId")
	if !ok {
		return
	}

	if err := h.templateService.DeleteTemplate(templateID); err != nil {
		log.Printf("Error deleting template %d: %v", templateID, err)
		http.Error(w, "Failed to delete template", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Template deleted"})
}

// ListSchedules handles GET /api/payments/reminder-schedules
func (h *TemplateHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.templateService.ListSchedules()
	if err != nil {
		log.Printf("Error listing reminder schedules: %v", err)
		http.Error(w, "Failed to list reminder schedules", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, schedules)
}

// UpsertSchedule handles PUT /api/payments/reminder-schedules
func (h *TemplateHandler) UpsertSchedule(w http.ResponseWriter, r *http.Request) {
	var schedule models.ReminderSchedule
	if err := json.NewDecoder(r.Body).Decode(&schedule); err != nil {
		log.Printf("Error decoding schedule body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if schedule.DaysBefore < 0 {
		http.Error(w, "days_before must be zero or positive", http.StatusBadRequest)
		return
	}

	saved, err := h.templateService.UpsertSchedule(&schedule)
	if err != nil {
		log.Printf("Error saving reminder schedule: %v", err)
		http.Error(w, "Failed to save reminder schedule", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

// DeleteSchedule handles DELETE /api/payments/reminder-schedules/{scheduleId}
func (h *TemplateHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := pathID(w, r, "scheduleId")
	if !ok {
		return
	}

	if err := h.templateService.DeleteSchedule(scheduleID); err != nil {
		log.Printf("Error deleting reminder schedule %d: %v", scheduleID, err)
		http.Error(w, "Failed to delete reminder schedule", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Schedule deleted"})
}

// ListDeadlines handles GET /api/payments/deadlines
func (h *TemplateHandler) ListDeadlines(w http.ResponseWriter, r *http.Request) {
	deadlines, err := h.profileService.ListDeadlines()
	if err != nil {
		log.Printf("Error listing deadlines: %v", err)
		http.Error(w, "Failed to list deadlines", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, deadlines)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		http.Error(w, "Invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
