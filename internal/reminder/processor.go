package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"ms-payment-tracking/internal/models"
	"ms-payment-tracking/internal/sqsutil"
)

// Runner is the reminder batch entry point the processor triggers.
type Runner interface {
	Run(ctx context.Context) models.RunSummary
}

// Processor consumes run-trigger messages from SQS. The recurring
// EventBridge schedule posts one message a day; each message triggers one
// scheduler run. A run always completes with a summary, so messages are
// deleted after processing; duplicate deliveries are harmless because the
// reminder log makes runs idempotent within a day.
type Processor struct {
	sqsClient *sqs.Client
	queueURL  string
	runner    Runner
}

// NewProcessor creates a new reminder run processor
func NewProcessor(sqsClient *sqs.Client, queueURL string, runner Runner) *Processor {
	return &Processor{
		sqsClient: sqsClient,
		queueURL:  queueURL,
		runner:    runner,
	}
}

// ProcessMessages processes messages from the reminder run queue
func (p *Processor) ProcessMessages(ctx context.Context) error {
	if p.queueURL == "" {
		return fmt.Errorf("reminder run queue URL not configured")
	}

	log.Printf("Starting to process reminder run messages from %s", p.queueURL)

	for {
		select {
		case <-ctx.Done():
			log.Println("Context cancelled, stopping reminder run processor")
			return ctx.Err()
		default:
		}

		rawMessages, err := sqsutil.ReceiveMessage(p.sqsClient, p.queueURL)
		if err != nil {
			log.Printf("Error receiving messages from reminder run queue: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		if len(rawMessages) == 0 {
			continue // long polling already waited
		}

		log.Printf("Received %d messages from reminder run queue", len(rawMessages))
		var messagesToDelete []types.DeleteMessageBatchRequestEntry

		for _, rawMessage := range rawMessages {
			var messageBody models.SQSRunMessageBody
			if err := json.Unmarshal([]byte(*rawMessage.Body), &messageBody); err != nil {
				log.Printf("Error unmarshalling run message body, deleting malformed message: %v", err)
				messagesToDelete = append(messagesToDelete, types.DeleteMessageBatchRequestEntry{
					Id:            rawMessage.MessageId,
					ReceiptHandle: rawMessage.ReceiptHandle,
				})
				continue
			}

			if messageBody.Action != models.ActionRunReminders {
				log.Printf("Unknown run message action %q, deleting. Full message: %+v", messageBody.Action, messageBody)
				messagesToDelete = append(messagesToDelete, types.DeleteMessageBatchRequestEntry{
					Id:            rawMessage.MessageId,
					ReceiptHandle: rawMessage.ReceiptHandle,
				})
				continue
			}

			summary := p.runner.Run(ctx)
			log.Printf("Triggered reminder run %s (notification %s): %d sent, %d errors",
				summary.RunID, messageBody.NotificationID, summary.RemindersSent, len(summary.Errors))

			messagesToDelete = append(messagesToDelete, types.DeleteMessageBatchRequestEntry{
				Id:            rawMessage.MessageId,
				ReceiptHandle: rawMessage.ReceiptHandle,
			})
		}

		if len(messagesToDelete) > 0 {
			if err := sqsutil.DeleteMessageBatch(p.queueURL, p.sqsClient, messagesToDelete); err != nil {
				log.Printf("Error batch deleting run messages: %v", err)
			}
		}
	}
}
