package sqsutil

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// ReceiveMessage long-polls the queue for up to 20 seconds.
func ReceiveMessage(sqsClient *sqs.Client, queueURL string) ([]types.Message, error) {
	result, err := sqsClient.ReceiveMessage(context.TODO(), &sqs.ReceiveMessageInput{
		QueueUrl:            &queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive message: %w", err)
	}

	return result.Messages, nil
}

// DeleteMessageBatch deletes processed messages in a single API call.
// Partial failures are logged; the deleted messages stay deleted and the
// failed ones will be redelivered.
func DeleteMessageBatch(queueURL string, client *sqs.Client, entries []types.DeleteMessageBatchRequestEntry) error {
	if len(entries) == 0 {
		return nil
	}

	result, err := client.DeleteMessageBatch(context.TODO(), &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(queueURL),
		Entries:  entries,
	})
	if err != nil {
		return fmt.Errorf("batch delete failed: %w", err)
	}

	for _, failure := range result.Failed {
		log.Printf("Delete failure - ID: %s, Code: %s, Message: %s",
			*failure.Id, *failure.Code, *failure.Message)
	}

	return nil
}
