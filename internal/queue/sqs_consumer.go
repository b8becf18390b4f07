package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"

	"parkinghub/internal/config"
	"parkinghub/internal/domain/parking"
	"parkinghub/internal/service"
)

const retryDelay = 5 * time.Second

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type EventRecorder interface {
	RecordDeviceEvent(ctx context.Context, report service.DeviceReport, source string) (*parking.Event, error)
}

// SQSConsumer reads device reports from an SQS queue and records them as
// parking events. Messages that fail for transient reasons are left on the
// queue and come back after the visibility timeout.
type SQSConsumer struct {
	client   sqsAPI
	cfg      config.SQSConfig
	recorder EventRecorder
	log      zerolog.Logger
	retry    time.Duration
}

func NewSQSConsumer(client *sqs.Client, cfg config.SQSConfig, recorder EventRecorder, log zerolog.Logger) *SQSConsumer {
	return newConsumer(client, cfg, recorder, log)
}

func newConsumer(client sqsAPI, cfg config.SQSConfig, recorder EventRecorder, log zerolog.Logger) *SQSConsumer {
	return &SQSConsumer{
		client:   client,
		cfg:      cfg,
		recorder: recorder,
		log:      log.With().Str("component", "sqs_consumer").Logger(),
		retry:    retryDelay,
	}
}

// Start polls until ctx is cancelled.
func (c *SQSConsumer) Start(ctx context.Context) {
	c.log.Info().Str("queue_url", c.cfg.QueueURL).Msg("sqs consumer started")
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("sqs consumer stopped")
			return
		default:
		}

		if !c.poll(ctx) {
			select {
			case <-time.After(c.retry):
			case <-ctx.Done():
				c.log.Info().Msg("sqs consumer stopped while waiting to retry")
				return
			}
		}
	}
}

// poll receives one batch. It returns false when the receive call failed.
func (c *SQSConsumer) poll(ctx context.Context) bool {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.cfg.QueueURL),
		MaxNumberOfMessages: c.cfg.MaxMessages,
		WaitTimeSeconds:     c.cfg.WaitTimeSeconds,
		VisibilityTimeout:   c.cfg.VisibilityTimeout,
	})
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		c.log.Error().Err(err).Msg("failed to receive messages")
		return false
	}
	if len(out.Messages) == 0 {
		return true
	}

	c.log.Debug().Int("count", len(out.Messages)).Msg("received messages")
	for _, msg := range out.Messages {
		if c.process(ctx, aws.ToString(msg.MessageId), aws.ToString(msg.Body)) {
			c.delete(ctx, msg.ReceiptHandle)
		}
	}
	return true
}

// process records one message and reports whether it should be deleted.
func (c *SQSConsumer) process(ctx context.Context, messageID, body string) bool {
	if body == "" {
		c.log.Warn().Str("message_id", messageID).Msg("dropping message with empty body")
		return true
	}

	var report service.DeviceReport
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		c.log.Warn().Err(err).Str("message_id", messageID).Msg("dropping malformed message")
		return true
	}

	if _, err := c.recorder.RecordDeviceEvent(ctx, report, "sqs"); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.log.Warn().Err(err).Str("message_id", messageID).Msg("dropping invalid device report")
			return true
		}
		c.log.Error().Err(err).Str("message_id", messageID).Msg("failed to record device report, will retry")
		return false
	}
	return true
}

func (c *SQSConsumer) delete(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		c.log.Warn().Msg("message without receipt handle cannot be deleted")
		return
	}
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.cfg.QueueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		c.log.Error().Err(err).Msg("failed to delete message")
	}
}
