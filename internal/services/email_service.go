package services

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EmailService sends email over SMTP. Each send runs under a deadline so one
// stuck recipient cannot stall a whole reminder run.
type EmailService struct {
	SMTPHost    string
	SMTPPort    string
	Username    string
	Password    string
	FromEmail   string
	FromName    string
	SendTimeout time.Duration
}

func NewEmailService(smtpHost, smtpPort, username, password, fromEmail, fromName string, sendTimeout time.Duration) *EmailService {
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}
	return &EmailService{
		SMTPHost:    smtpHost,
		SMTPPort:    smtpPort,
		Username:    username,
		Password:    password,
		FromEmail:   fromEmail,
		FromName:    fromName,
		SendTimeout: sendTimeout,
	}
}

// Send delivers an email with a plain-text body and an optional HTML
// alternative. It returns the generated message id on success.
func (e *EmailService) Send(to, subject, bodyText string, bodyHTML *string) (string, error) {
	addr := fmt.Sprintf("%s:%s", e.SMTPHost, e.SMTPPort)
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), e.SMTPHost)

	msg := e.buildMessage(to, subject, bodyText, bodyHTML, messageID)

	conn, err := net.DialTimeout("tcp", addr, e.SendTimeout)
	if err != nil {
		return "", fmt.Errorf("failed to connect to SMTP server %s: %w", addr, err)
	}
	// Whole-session deadline covers the SMTP dialogue, not just the dial.
	if err := conn.SetDeadline(time.Now().Add(e.SendTimeout)); err != nil {
		conn.Close()
		return "", fmt.Errorf("failed to set SMTP deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, e.SMTPHost)
	if err != nil {
		conn.Close()
		return "", fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: e.SMTPHost}); err != nil {
			return "", fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if e.Username != "" {
		auth := smtp.PlainAuth("", e.Username, e.Password, e.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return "", fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := client.Mail(e.FromEmail); err != nil {
		return "", fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return "", fmt.Errorf("RCPT TO failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return "", fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish message body: %w", err)
	}

	if err := client.Quit(); err != nil {
		log.Printf("SMTP QUIT after successful send to %s returned: %v", to, err)
	}

	log.Printf("Email sent to %s (message id %s)", to, messageID)
	return messageID, nil
}

// buildMessage assembles the RFC 5322 message. With an HTML body present the
// message is multipart/alternative; otherwise plain text.
func (e *EmailService) buildMessage(to, subject, bodyText string, bodyHTML *string, messageID string) []byte {
	from := fmt.Sprintf("%s <%s>", e.FromName, e.FromEmail)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")

	if bodyHTML == nil || *bodyHTML == "" {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
		b.WriteString("\r\n")
		b.WriteString(bodyText)
		b.WriteString("\r\n")
		return []byte(b.String())
	}

	boundary := "part-" + uuid.NewString()
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(bodyText)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(*bodyHTML)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
