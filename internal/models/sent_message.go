package models

import "time"

// SentMessage is one entry of the sent-message log.
type SentMessage struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chatId"`
	MessageID string    `json:"messageId"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sentAt"`
	CreatedAt time.Time `json:"createdAt"`
}
