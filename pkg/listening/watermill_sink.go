package listening

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// WatermillSink publishes capture events as JSON messages on one topic.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{publisher: publisher, topic: topic}
}

func (s *WatermillSink) Emit(ctx context.Context, ev CaptureEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("user_id", ev.UserID)
	msg.SetContext(ctx)
	return s.publisher.Publish(s.topic, msg)
}

// DecodeCaptureEvent reads a message produced by WatermillSink.
func DecodeCaptureEvent(msg *message.Message) (CaptureEvent, error) {
	var ev CaptureEvent
	err := json.Unmarshal(msg.Payload, &ev)
	return ev, err
}
