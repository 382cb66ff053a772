// Package broadcast delivers events about completed sends to interested sinks.
package broadcast

import (
	"context"
	"time"
)

// EventMessageSent is emitted once per successful send.
const EventMessageSent = "message.sent"

// Event is the payload pushed to subscribers.
type Event struct {
	Type      string `json:"type"`
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// NewMessageSent builds a message.sent event stamped with now.
func NewMessageSent(chatID, messageID, text string, now time.Time) Event {
	return Event{
		Type:      EventMessageSent,
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		Timestamp: now.Unix(),
	}
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}
