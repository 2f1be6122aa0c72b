package service

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"docubot-be/internal/pkg/logger"
	"docubot-be/pkg/listening"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// CaptureForwarder receives every decoded capture event.
type CaptureForwarder interface {
	DeliverCapture(ev listening.CaptureEvent)
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	forwarder  CaptureForwarder
	captureLog logger.ILogger
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	forwarder CaptureForwarder,
	captureLog logger.ILogger,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		forwarder:  forwarder,
		captureLog: captureLog,
		logger:     log,
	}
}

// Consume subscribes to the capture topic and processes messages until ctx ends.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	ev, err := listening.DecodeCaptureEvent(msg)
	if err != nil {
		cs.logger.Error("ConsumerService", "Failed to decode capture event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		// Malformed payloads never decode; ack so they are not redelivered.
		msg.Ack()
		return
	}

	cs.captureLog.Info("Capture", "Listening", map[string]interface{}{
		"user_id": ev.UserID,
		"seq":     ev.Seq,
		"at":      ev.At,
	})

	if cs.forwarder != nil {
		cs.forwarder.DeliverCapture(ev)
	}
	msg.Ack()
}
