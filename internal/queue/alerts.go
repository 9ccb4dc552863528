// Package queue provides the SQS producer that announces stored alerts to
// downstream consumers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"posturewatch/internal/config"
	"posturewatch/internal/types"
)

// EventAlertCreated is the Type of every message sent by AlertPublisher.
const EventAlertCreated = "alert.created"

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// AlertEvent is the message body. The snapshot image is never included;
// consumers fetch the alert if they need it.
type AlertEvent struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	AlertID   string    `json:"alert_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	HasImage  bool      `json:"has_image"`
	CreatedAt time.Time `json:"created_at"`
	SentAt    time.Time `json:"sent_at"`
}

// AlertPublisher sends an AlertEvent for every stored alert.
type AlertPublisher struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewAlertPublisher creates an AlertPublisher targeting awsCfg.AlertQueueURL.
func NewAlertPublisher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *AlertPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertPublisher{
		client:   client,
		queueURL: awsCfg.AlertQueueURL,
		clock:    types.RealClock{},
		logger:   logger,
	}
}

// PublishAlertCreated serializes the event and sends it. The user id is also
// set as a message attribute so consumers can filter without decoding.
func (p *AlertPublisher) PublishAlertCreated(ctx context.Context, alert *types.Alert) error {
	if alert == nil {
		return fmt.Errorf("queue: nil alert")
	}

	msg := AlertEvent{
		EventID:   uuid.NewString(),
		Type:      EventAlertCreated,
		AlertID:   alert.ID,
		UserID:    alert.UserID,
		Title:     alert.Title,
		HasImage:  alert.Image != "",
		CreatedAt: alert.CreatedAt,
		SentAt:    p.clock.Now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal AlertEvent: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventAlertCreated),
			},
			"user_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(alert.UserID),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send AlertEvent to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "alert event sent",
		"queue_url", p.queueURL,
		"event_id", msg.EventID,
		"alert_id", msg.AlertID,
		"user_id", msg.UserID,
	)
	return nil
}
