package broadcast

import (
	"context"
	"time"

	"szenai/internal/models"
)

// Recorder persists sent messages.
type Recorder interface {
	SaveSentMessage(ctx context.Context, msg *models.SentMessage) error
}

// StorePublisher writes message.sent events to the sent-message log.
type StorePublisher struct {
	recorder Recorder
}

func NewStorePublisher(recorder Recorder) *StorePublisher {
	return &StorePublisher{recorder: recorder}
}

func (s *StorePublisher) Publish(ctx context.Context, event Event) error {
	if event.Type != EventMessageSent {
		return nil
	}
	return s.recorder.SaveSentMessage(ctx, &models.SentMessage{
		ChatID:    event.ChatID,
		MessageID: event.MessageID,
		Text:      event.Text,
		SentAt:    time.Unix(event.Timestamp, 0).UTC(),
	})
}
