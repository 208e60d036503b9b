package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"ms-payment-tracking/internal/config"
	"ms-payment-tracking/internal/models"
	"ms-payment-tracking/internal/templating"
)

// TemplateLookup resolves the enabled template for a lifecycle event.
type TemplateLookup interface {
	TemplateByEventType(eventType models.EventType) (*models.EmailTemplate, error)
}

// ProfileLookup resolves profiles and their confirmed payment totals.
type ProfileLookup interface {
	ProfileByID(profileID int) (*models.Profile, error)
	ConfirmedPaymentsTotal(profileID int) (float64, error)
	PaymentByID(paymentID int) (*models.Payment, error)
}

// EmailSender dispatches one outbound email.
type EmailSender interface {
	Send(to, subject, bodyText string, bodyHTML *string) (string, error)
}

// PaymentConsumer handles payment lifecycle Kafka events and sends the
// matching status email to the payment's owner.
type PaymentConsumer struct {
	BaseConsumer
	Templates TemplateLookup
	Profiles  ProfileLookup
	Email     EmailSender
	Renderer  *templating.Renderer
}

// NewPaymentConsumer creates a new consumer for payment lifecycle events
func NewPaymentConsumer(cfg config.Config, templates TemplateLookup, profiles ProfileLookup, email EmailSender, renderer *templating.Renderer) *PaymentConsumer {
	baseConsumer := NewBaseConsumer(cfg, cfg.KafkaURL, cfg.PaymentsKafkaTopic)

	return &PaymentConsumer{
		BaseConsumer: *baseConsumer,
		Templates:    templates,
		Profiles:     profiles,
		Email:        email,
		Renderer:     renderer,
	}
}

// StartConsuming starts consuming payment lifecycle events
func (c *PaymentConsumer) StartConsuming(ctx context.Context) error {
	log.Printf("Starting payment consumer for topic %s", c.Reader.Config().Topic)

	c.ConsumeMessages(ctx, c.ProcessPaymentEvent)

	return nil
}

// eventTypeForStatus maps a payment lifecycle status to its template event type.
func eventTypeForStatus(status string) (models.EventType, error) {
	switch status {
	case "submitted":
		return models.EventTypePaymentSubmitted, nil
	case "approved", "confirmed":
		return models.EventTypePaymentApproved, nil
	case "rejected":
		return models.EventTypePaymentRejected, nil
	}
	return "", fmt.Errorf("unknown payment status %q", status)
}

// ProcessPaymentEvent handles one payment lifecycle event
func (c *PaymentConsumer) ProcessPaymentEvent(value []byte) error {
	var event models.PaymentEvent
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("Error unmarshalling payment event: %v", err)
		return err
	}
	log.Printf("Processing payment event PaymentID=%d ProfileID=%d status=%s",
		event.PaymentID, event.ProfileID, event.Status)

	eventType, err := eventTypeForStatus(event.Status)
	if err != nil {
		log.Printf("Skipping payment event: %v", err)
		return nil
	}

	template, err := c.Templates.TemplateByEventType(eventType)
	if err != nil {
		return fmt.Errorf("failed to load template for %s: %w", eventType, err)
	}
	if template == nil {
		log.Printf("No enabled template for event type %s, skipping", eventType)
		return nil
	}

	profile, err := c.Profiles.ProfileByID(event.ProfileID)
	if err != nil {
		return fmt.Errorf("failed to load profile %d: %w", event.ProfileID, err)
	}
	if profile == nil || profile.Email == nil || *profile.Email == "" {
		log.Printf("Profile %d has no email address, skipping payment email", event.ProfileID)
		return nil
	}

	payment, err := c.Profiles.PaymentByID(event.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to load payment %d: %w", event.PaymentID, err)
	}
	if payment == nil {
		// Fall back to the snapshot carried by the event itself.
		payment = &models.Payment{
			PaymentID: event.PaymentID,
			ProfileID: event.ProfileID,
			Amount:    event.Amount,
			Note:      event.Note,
			Status:    models.PaymentStatus(event.Status),
		}
	}

	confirmed, err := c.Profiles.ConfirmedPaymentsTotal(profile.ProfileID)
	if err != nil {
		return fmt.Errorf("failed to load confirmed total for profile %d: %w", profile.ProfileID, err)
	}
	confirmedTotal := profile.InitialConfirmedPaid + confirmed

	// Profiles not yet linked to an auth user get a signup link in their
	// payment emails.
	signupLink := ""
	if profile.UserID == nil {
		signupLink = c.Config.SignupBaseURL
	}

	emailCtx := models.EmailContext{
		Profile:        *profile,
		ConfirmedTotal: confirmedTotal,
		Remaining:      profile.TotalDue - confirmedTotal,
		Payment:        payment,
		EventName:      c.Config.EventName,
		Bank: models.BankDetails{
			AccountName:   c.Config.BankAccountName,
			AccountNumber: c.Config.BankAccountNo,
			SortCode:      c.Config.BankSortCode,
		},
		DashboardURL: c.Config.DashboardURL,
		SignupLink:   signupLink,
	}

	subject := c.Renderer.Render(template.Subject, emailCtx)
	bodyText := c.Renderer.Render(template.BodyText, emailCtx)
	var bodyHTML *string
	if template.BodyHTML != nil && *template.BodyHTML != "" {
		html := c.Renderer.Render(*template.BodyHTML, emailCtx)
		bodyHTML = &html
	}

	if _, err := c.Email.Send(*profile.Email, subject, bodyText, bodyHTML); err != nil {
		return fmt.Errorf("failed to send %s email to %s: %w", eventType, *profile.Email, err)
	}

	log.Printf("Sent %s email to %s for payment %d", eventType, *profile.Email, event.PaymentID)
	return nil
}
