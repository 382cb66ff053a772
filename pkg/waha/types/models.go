package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// ID is a WhatsApp identifier. WAHA serializes it either as a plain string or
// as an object carrying "_serialized"; both decode to the string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if data[0] != '{' {
		return fmt.Errorf("id: unexpected JSON %s", string(data))
	}
	var obj struct {
		Serialized string `json:"_serialized"`
		ID         string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Serialized != "" {
		*id = ID(obj.Serialized)
	} else {
		*id = ID(obj.ID)
	}
	return nil
}

func (id ID) String() string { return string(id) }

// MessageSummary is the last-message excerpt attached to a chat.
type MessageSummary struct {
	ID        ID     `json:"id,omitempty"`
	Body      string `json:"body,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	FromMe    bool   `json:"fromMe"`
	HasMedia  bool   `json:"hasMedia,omitempty"`
	Ack       Ack    `json:"ack,omitempty"`
}

// Chat is a conversation thread.
type Chat struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name,omitempty"`
	Picture     string          `json:"picture,omitempty"`
	LastMessage *MessageSummary `json:"lastMessage,omitempty"`
	// Timestamp is the last activity time in epoch seconds.
	Timestamp    int64 `json:"timestamp,omitempty"`
	Archived     bool  `json:"archived"`
	UnreadCount  int   `json:"unreadCount"`
	MarkedUnread bool  `json:"markedUnread,omitempty"`
	IsGroup      bool  `json:"isGroup,omitempty"`
	Pinned       bool  `json:"pinned,omitempty"`
}

// UnmarshalJSON accepts conversationTimestamp as an alias for timestamp.
func (c *Chat) UnmarshalJSON(data []byte) error {
	type plain Chat
	aux := struct {
		*plain
		ConversationTimestamp int64 `json:"conversationTimestamp"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.Timestamp == 0 {
		c.Timestamp = aux.ConversationTimestamp
	}
	return nil
}

// State reports the archival state.
func (c *Chat) State() ArchiveState {
	if c.Archived {
		return ArchiveStateArchived
	}
	return ArchiveStateUnarchived
}

// Validate rejects chats without an identifier.
func (c *Chat) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("chat without id")
	}
	return nil
}

// Media describes a message attachment.
type Media struct {
	URL      string `json:"url,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Message is a single message within a chat.
type Message struct {
	ID        ID     `json:"id"`
	Timestamp int64  `json:"timestamp"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	FromMe    bool   `json:"fromMe"`
	Body      string `json:"body"`
	HasMedia  bool   `json:"hasMedia"`
	Media     *Media `json:"media,omitempty"`
	Ack       Ack    `json:"ack"`
	AckName   string `json:"ackName,omitempty"`
	Pinned    bool   `json:"pinned,omitempty"`
	Edited    bool   `json:"edited,omitempty"`
	ReplyTo   *ID    `json:"replyTo,omitempty"`
}

// Validate rejects messages without an identifier.
func (m *Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message without id")
	}
	if m.Timestamp < 0 {
		return fmt.Errorf("message %s has negative timestamp", m.ID)
	}
	return nil
}

// ChatPicture is the profile picture lookup result. URL is empty when the
// chat has no picture.
type ChatPicture struct {
	URL string `json:"url"`
}

// Validate always succeeds; a missing picture is a valid answer.
func (p *ChatPicture) Validate() error { return nil }

// SendTextRequest is the body of POST /api/sendText.
type SendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// EditMessageRequest is the body of PUT .../messages/{messageId}.
type EditMessageRequest struct {
	Text string `json:"text"`
}

// PinMessageRequest is the body of POST .../pin.
type PinMessageRequest struct {
	Duration int `json:"duration"`
}

// SendResult is the outcome of a successful send. Raw is the upstream body.
type SendResult struct {
	MessageID string
	Raw       json.RawMessage
}

// ParseMessageID extracts the new message id from a send response. WAHA
// engines report it as "id", "_data.id" or "key.id".
func ParseMessageID(body []byte) string {
	var resp struct {
		ID   ID `json:"id"`
		Data *struct {
			ID ID `json:"id"`
		} `json:"_data"`
		Key *struct {
			ID ID `json:"id"`
		} `json:"key"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	switch {
	case resp.ID != "":
		return string(resp.ID)
	case resp.Data != nil && resp.Data.ID != "":
		return string(resp.Data.ID)
	case resp.Key != nil && resp.Key.ID != "":
		return string(resp.Key.ID)
	}
	return ""
}

// ListChatsParams are the query options of GET /chats.
type ListChatsParams struct {
	Limit     int    `validate:"gte=0"`
	Offset    int    `validate:"gte=0"`
	SortBy    string `validate:"omitempty,oneof=conversationTimestamp id name"`
	SortOrder string `validate:"omitempty,oneof=asc desc"`
}

func (p ListChatsParams) Query() url.Values {
	q := url.Values{}
	setInt(q, "limit", p.Limit)
	setInt(q, "offset", p.Offset)
	if p.SortBy != "" {
		q.Set("sortBy", p.SortBy)
	}
	if p.SortOrder != "" {
		q.Set("sortOrder", p.SortOrder)
	}
	return q
}

// OverviewParams are the query options of GET /chats/overview.
type OverviewParams struct {
	Limit  int `validate:"gte=0"`
	Offset int `validate:"gte=0"`
}

func (p OverviewParams) Query() url.Values {
	q := url.Values{}
	setInt(q, "limit", p.Limit)
	setInt(q, "offset", p.Offset)
	return q
}

// MessageFilter narrows a message listing.
type MessageFilter struct {
	TimestampLTE *int64
	TimestampGTE *int64
	FromMe       *bool
	Ack          *Ack
}

// ListMessagesParams are the query options of GET /chats/{chatId}/messages.
type ListMessagesParams struct {
	Limit         int `validate:"gte=0"`
	Offset        int `validate:"gte=0"`
	DownloadMedia *bool
	Filter        MessageFilter
}

func (p ListMessagesParams) Query() url.Values {
	q := url.Values{}
	setInt(q, "limit", p.Limit)
	setInt(q, "offset", p.Offset)
	if p.DownloadMedia != nil {
		q.Set("downloadMedia", strconv.FormatBool(*p.DownloadMedia))
	}
	if p.Filter.TimestampLTE != nil {
		q.Set("filter.timestamp.lte", strconv.FormatInt(*p.Filter.TimestampLTE, 10))
	}
	if p.Filter.TimestampGTE != nil {
		q.Set("filter.timestamp.gte", strconv.FormatInt(*p.Filter.TimestampGTE, 10))
	}
	if p.Filter.FromMe != nil {
		q.Set("filter.fromMe", strconv.FormatBool(*p.Filter.FromMe))
	}
	if p.Filter.Ack != nil {
		q.Set("filter.ack", p.Filter.Ack.String())
	}
	return q
}

func setInt(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, strconv.Itoa(v))
	}
}
