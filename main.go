package main

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsscheduler "github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"ms-payment-tracking/internal/auth"
	"ms-payment-tracking/internal/config"
	"ms-payment-tracking/internal/eventbridge"
	"ms-payment-tracking/internal/handlers"
	"ms-payment-tracking/internal/kafka"
	"ms-payment-tracking/internal/reminder"
	"ms-payment-tracking/internal/services"
	"ms-payment-tracking/internal/templating"
)

func main() {
	cfg := config.Load()

	// Initialize database service and apply migrations
	dbService, err := services.NewDatabaseService(services.DatabaseConfig{
		Host:     cfg.DatabaseHost,
		Port:     cfg.DatabasePort,
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		DBName:   cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to initialize database service: %v", err)
	}
	defer dbService.Close()

	if err := dbService.RunMigrations(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Domain services
	templateService := services.NewTemplateService(dbService.DB)
	profileService := services.NewProfileService(dbService.DB)
	reminderLogService := services.NewReminderLogService(dbService.DB)
	emailService := services.NewEmailService(
		cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword,
		cfg.FromEmail, cfg.FromName, time.Duration(cfg.SendTimeoutSeconds)*time.Second)
	renderer := templating.NewRenderer(cfg.CurrencyCode)

	reminderScheduler := reminder.NewScheduler(
		templateService, profileService, profileService, reminderLogService,
		emailService, renderer, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Kafka payment lifecycle consumer
	if cfg.KafkaURL != "" && cfg.PaymentsKafkaTopic != "" {
		log.Printf("Starting payment consumer for topic %s at %s", cfg.PaymentsKafkaTopic, cfg.KafkaURL)
		paymentConsumer := kafka.NewPaymentConsumer(cfg, templateService, profileService, emailService, renderer)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := paymentConsumer.StartConsuming(ctx); err != nil {
				log.Printf("Error in payment consumer: %v", err)
			}
		}()
		// We don't wait for wg.Wait() so the SQS processing can continue
	} else {
		log.Println("Kafka not configured, skipping payment consumer setup")
	}

	// SQS reminder run trigger, fed by the daily EventBridge schedule
	if cfg.SQSReminderRunQueueURL != "" {
		sqsClient, schedulerClient := awsClients(cfg)

		schedulerService := eventbridge.NewService(cfg, schedulerClient)
		if err := schedulerService.EnsureDailySchedule(ctx); err != nil {
			log.Printf("Failed to ensure daily reminder schedule: %v", err)
		}

		log.Printf("Starting reminder run processor for queue: %s", cfg.SQSReminderRunQueueURL)
		reminderProcessor := reminder.NewProcessor(sqsClient, cfg.SQSReminderRunQueueURL, reminderScheduler)
		var reminderWg sync.WaitGroup
		reminderWg.Add(1)
		go func() {
			defer reminderWg.Done()
			if err := reminderProcessor.ProcessMessages(ctx); err != nil {
				log.Printf("Error processing reminder run messages: %v", err)
			}
		}()
		// We don't wait for reminderWg.Wait() so the HTTP server can start
	} else {
		log.Println("Reminder run queue not configured, skipping SQS processor setup")
	}

	// In-process cron fallback for deployments without EventBridge
	if cfg.LocalCronSpec != "" {
		log.Printf("Starting in-process reminder cron with spec %q", cfg.LocalCronSpec)
		c := cron.New()
		_, err := c.AddFunc(cfg.LocalCronSpec, func() {
			summary := reminderScheduler.Run(ctx)
			log.Printf("Local cron reminder run %s: %d sent, %d errors",
				summary.RunID, summary.RemindersSent, len(summary.Errors))
		})
		if err != nil {
			log.Fatalf("Invalid LOCAL_CRON_SPEC %q: %v", cfg.LocalCronSpec, err)
		}
		c.Start()
		defer c.Stop()
	}

	setupHTTPServer(cfg, templateService, profileService, reminderScheduler, dbService)
}

// awsClients builds the SQS and EventBridge Scheduler clients, honouring a
// LocalStack endpoint and explicit credentials when configured.
func awsClients(cfg config.Config) (*sqs.Client, *awsscheduler.Client) {
	awsOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}

	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		log.Println("Using AWS credentials from environment variables")
		awsOptions = append(awsOptions, awsconfig.WithCredentialsProvider(
			aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     cfg.AWSAccessKeyID,
					SecretAccessKey: cfg.AWSSecretAccessKey,
				}, nil
			}),
		))
	} else {
		log.Println("No AWS credentials provided in environment variables, falling back to default credentials")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(), awsOptions...)
	if err != nil {
		log.Fatalf("unable to load AWS SDK config, %v", err)
	}

	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWSEndpoint != "" {
			log.Printf("Using local endpoint for AWS services: %s", cfg.AWSEndpoint)
			o.BaseEndpoint = &cfg.AWSEndpoint
		}
	})
	schedulerClient := awsscheduler.NewFromConfig(awsCfg, func(o *awsscheduler.Options) {
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = &cfg.AWSEndpoint
		}
	})

	return sqsClient, schedulerClient
}

// setupHTTPServer configures and starts the HTTP server
func setupHTTPServer(cfg config.Config, templateService *services.TemplateService, profileService *services.ProfileService, runner reminder.Runner, dbService *services.DatabaseService) {
	router := mux.NewRouter()

	// Apply CORS middleware to all routes
	router.Use(auth.CORSMiddleware(cfg))

	templateHandler := handlers.NewTemplateHandler(templateService, profileService)
	cronHandler := handlers.NewCronHandler(runner, cfg.CronSecret)

	// Cron trigger endpoint: guarded by the shared secret, not by JWT auth.
	// Registered before the admin subrouter so the prefix match doesn't
	// swallow it.
	router.HandleFunc("/api/payments/cron/reminders", cronHandler.HandleRunReminders).Methods("GET")

	// Health and K8s probe endpoints (no authentication required)
	healthHandler := handlers.NewHealthHandler(dbService)
	router.HandleFunc("/api/payments/health", healthHandler.HandleHealth).Methods("GET")
	router.HandleFunc("/healthz", healthHandler.HandleHealth).Methods("GET")
	router.HandleFunc("/readyz", healthHandler.HandleReadiness).Methods("GET")
	router.HandleFunc("/livez", healthHandler.HandleLiveness).Methods("GET")

	// Admin API routes require an authenticated admin user
	authorizer := &auth.Authorizer{
		Profiles:    profileService,
		AdminEmails: cfg.AdminEmails,
	}
	adminRouter := router.PathPrefix("/api/payments").Subrouter()
	adminRouter.Use(auth.AuthMiddleware)
	adminRouter.Use(authorizer.AdminMiddleware)

	adminRouter.HandleFunc("/templates", templateHandler.ListTemplates).Methods("GET")
	adminRouter.HandleFunc("/templates", templateHandler.CreateTemplate).Methods("POST")
	adminRouter.HandleFunc("/templates/{templateId}", templateHandler.GetTemplate).Methods("GET")
	adminRouter.HandleFunc("/templates/{templateId}", templateHandler.UpdateTemplate).Methods("PUT")
	adminRouter.HandleFunc("/templates/{templateId}", templateHandler.DeleteTemplate).Methods("DELETE")

	adminRouter.HandleFunc("/reminder-schedules", templateHandler.ListSchedules).Methods("GET")
	adminRouter.HandleFunc("/reminder-schedules", templateHandler.UpsertSchedule).Methods("PUT")
	adminRouter.HandleFunc("/reminder-schedules/{scheduleId}", templateHandler.DeleteSchedule).Methods("DELETE")

	adminRouter.HandleFunc("/deadlines", templateHandler.ListDeadlines).Methods("GET")

	serverAddr := cfg.ServerHost + ":" + cfg.ServerPort
	log.Printf("Starting HTTP server on %s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	log.Fatal(server.ListenAndServe())
}
