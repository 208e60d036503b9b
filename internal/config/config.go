package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries everything the service reads from the environment. It is
// built once at startup and passed into the components that need it; nothing
// reads os.Getenv after Load returns.
type Config struct {
	ServerHost string
	ServerPort string

	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabaseSSLMode  string

	SMTPHost           string
	SMTPPort           string
	SMTPUsername       string
	SMTPPassword       string
	FromEmail          string
	FromName           string
	SendTimeoutSeconds int

	// Shared secret for the reminder cron trigger endpoint.
	CronSecret string

	// Emails treated as admins regardless of the profile flag.
	AdminEmails []string

	// Fallback defaults for templating when not present in the store.
	EventName       string
	CurrencyCode    string
	BankAccountName string
	BankAccountNo   string
	BankSortCode    string
	DashboardURL    string
	SignupBaseURL   string

	KafkaURL           string
	PaymentsKafkaTopic string

	AWSRegion          string
	AWSEndpoint        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	SQSReminderRunQueueURL string
	SQSReminderRunQueueARN string
	SchedulerRoleARN       string
	SchedulerGroupName     string
	ReminderScheduleName   string
	ReminderScheduleCron   string

	// In-process fallback trigger, used when EventBridge is not provisioned.
	LocalCronSpec string

	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// LoadEnv loads environment variables from a .env file if one is present.
func LoadEnv() {
	envPaths := []string{
		".env",
		"../.env",
	}

	for _, path := range envPaths {
		err := godotenv.Load(path)
		if err == nil {
			log.Printf("Loaded environment variables from %s", path)
			return
		}
	}

	log.Println("No .env file found, using environment variables")
}

func Load() Config {
	LoadEnv()

	log.Println("Loading configuration from environment variables")
	return Config{
		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort: getEnv("SERVER_PORT", "8085"),

		DatabaseHost:     getEnv("DATABASE_HOST", "localhost"),
		DatabasePort:     getEnv("DATABASE_PORT", "5432"),
		DatabaseUser:     getEnv("DATABASE_USER", "postgres"),
		DatabasePassword: getEnv("DATABASE_PASSWORD", ""),
		DatabaseName:     getEnv("DATABASE_NAME", "payment_tracking"),
		DatabaseSSLMode:  getEnv("DATABASE_SSLMODE", "disable"),

		SMTPHost:           getEnv("SMTP_HOST", "localhost"),
		SMTPPort:           getEnv("SMTP_PORT", "587"),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		FromEmail:          getEnv("FROM_EMAIL", "no-reply@example.com"),
		FromName:           getEnv("FROM_NAME", "Payment Tracker"),
		SendTimeoutSeconds: getEnvInt("SEND_TIMEOUT_SECONDS", 15),

		CronSecret: getEnv("CRON_SECRET", ""),

		AdminEmails: getEnvList("ADMIN_EMAILS", nil),

		EventName:       getEnv("EVENT_NAME", "Our Event"),
		CurrencyCode:    getEnv("CURRENCY_CODE", "GBP"),
		BankAccountName: getEnv("BANK_ACCOUNT_NAME", ""),
		BankAccountNo:   getEnv("BANK_ACCOUNT_NUMBER", ""),
		BankSortCode:    getEnv("BANK_SORT_CODE", ""),
		DashboardURL:    getEnv("DASHBOARD_URL", "http://localhost:3000"),
		SignupBaseURL:   getEnv("SIGNUP_BASE_URL", "http://localhost:3000/signup"),

		KafkaURL:           getEnv("KAFKA_URL", ""),
		PaymentsKafkaTopic: getEnv("PAYMENTS_KAFKA_TOPIC", "payments.events"),

		AWSRegion:          getEnv("AWS_REGION", "eu-west-2"),
		AWSEndpoint:        getEnv("AWS_LOCAL_ENDPOINT_URL", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),

		SQSReminderRunQueueURL: getEnv("AWS_SQS_REMINDER_RUN_URL", ""),
		SQSReminderRunQueueARN: getEnv("AWS_SQS_REMINDER_RUN_QUEUE_ARN", ""),
		SchedulerRoleARN:       getEnv("AWS_SCHEDULER_ROLE_ARN", ""),
		SchedulerGroupName:     getEnv("AWS_SCHEDULER_GROUP_NAME", "default"),
		ReminderScheduleName:   getEnv("REMINDER_SCHEDULE_NAME", "payment-deadline-reminders-daily"),
		ReminderScheduleCron:   getEnv("REMINDER_SCHEDULE_CRON", "cron(0 9 * * ? *)"),

		LocalCronSpec: getEnv("LOCAL_CRON_SPEC", ""),

		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AllowedMethods: getEnvList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		MaxAge:         getEnvInt("CORS_MAX_AGE", 3600),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("Env var %s is not an integer (%q), using fallback %d", key, value, fallback)
			return fallback
		}
		return n
	}
	return fallback
}

// getEnvList parses a comma-separated env var into a trimmed string slice.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
