package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/scheduler"
	"github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/google/uuid"

	appconfig "ms-payment-tracking/internal/config"
	"ms-payment-tracking/internal/models"
)

// Service encapsulates the EventBridge Scheduler functionality.
type Service struct {
	SchedulerClient *scheduler.Client
	Config          appconfig.Config
}

// NewService creates a new scheduler service.
func NewService(cfg appconfig.Config, schedulerClient *scheduler.Client) *Service {
	return &Service{
		SchedulerClient: schedulerClient,
		Config:          cfg,
	}
}

// EnsureDailySchedule creates or updates the recurring schedule that posts a
// RUN_REMINDERS message to the reminder run queue once a day. The schedule
// recurs, so it is never deleted after completion.
func (s *Service) EnsureDailySchedule(ctx context.Context) error {
	scheduleName := s.Config.ReminderScheduleName
	log.Printf("Ensuring daily reminder schedule '%s' (%s)", scheduleName, s.Config.ReminderScheduleCron)

	messageBody := models.SQSRunMessageBody{
		Action:         models.ActionRunReminders,
		NotificationID: uuid.NewString(),
	}
	inputJSON, err := json.Marshal(messageBody)
	if err != nil {
		log.Printf("Error marshaling reminder run message to JSON: %v", err)
		return err
	}

	target := types.Target{
		Arn:     aws.String(s.Config.SQSReminderRunQueueARN),
		RoleArn: aws.String(s.Config.SchedulerRoleARN),
		Input:   aws.String(string(inputJSON)),
	}

	_, err = s.SchedulerClient.CreateSchedule(ctx, &scheduler.CreateScheduleInput{
		Name:                       aws.String(scheduleName),
		GroupName:                  aws.String(s.Config.SchedulerGroupName),
		ScheduleExpression:         aws.String(s.Config.ReminderScheduleCron),
		Target:                     &target,
		FlexibleTimeWindow:         &types.FlexibleTimeWindow{Mode: types.FlexibleTimeWindowModeOff},
		ScheduleExpressionTimezone: aws.String("UTC"),
	})

	if err != nil {
		var conflict *types.ConflictException
		if errors.As(err, &conflict) {
			log.Printf("Schedule '%s' already exists. Attempting to update.", scheduleName)
			_, updateErr := s.SchedulerClient.UpdateSchedule(ctx, &scheduler.UpdateScheduleInput{
				Name:                       aws.String(scheduleName),
				GroupName:                  aws.String(s.Config.SchedulerGroupName),
				ScheduleExpression:         aws.String(s.Config.ReminderScheduleCron),
				Target:                     &target,
				FlexibleTimeWindow:         &types.FlexibleTimeWindow{Mode: types.FlexibleTimeWindowModeOff},
				ScheduleExpressionTimezone: aws.String("UTC"),
			})
			if updateErr != nil {
				log.Printf("Failed to update reminder schedule: %v", updateErr)
				return updateErr
			}
			log.Printf("Successfully updated reminder schedule '%s'", scheduleName)
			return nil
		}
		log.Printf("Failed to create reminder schedule: %v", err)
		return err
	}

	log.Printf("Successfully created reminder schedule '%s'", scheduleName)
	return nil
}

// DeleteSchedule removes the daily reminder schedule from EventBridge.
func (s *Service) DeleteSchedule(ctx context.Context) {
	scheduleName := s.Config.ReminderScheduleName
	log.Printf("Deleting schedule '%s'", scheduleName)

	_, err := s.SchedulerClient.DeleteSchedule(ctx, &scheduler.DeleteScheduleInput{
		Name:      aws.String(scheduleName),
		GroupName: aws.String(s.Config.SchedulerGroupName),
	})

	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			log.Printf("Schedule '%s' not found for deletion", scheduleName)
			return
		}
		log.Printf("Error deleting schedule '%s': %v", scheduleName, err)
	} else {
		log.Printf("Successfully deleted schedule '%s'", scheduleName)
	}
}
