package waha

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"szenai/pkg/waha/types"
)

// ListMessages returns messages of a chat, newest first as WAHA orders them.
func (c *Client) ListMessages(ctx context.Context, chatID string, params types.ListMessagesParams) ([]types.Message, error) {
	const op = "list_messages"
	resp, err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   c.chatPath(chatID, "/messages"),
		query:  params.Query(),
		retry:  true,
	})
	if err != nil {
		return nil, err
	}

	var messages []types.Message
	if err := json.Unmarshal(resp.body, &messages); err != nil {
		return nil, malformed(op, resp, err)
	}
	for i := range messages {
		if err := messages[i].Validate(); err != nil {
			return nil, malformed(op, resp, err)
		}
	}
	if messages == nil {
		messages = []types.Message{}
	}
	return messages, nil
}

// GetMessage returns one message.
func (c *Client) GetMessage(ctx context.Context, chatID, messageID string, downloadMedia bool) (*types.Message, error) {
	const op = "get_message"
	resp, err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   c.messagePath(chatID, messageID, ""),
		query:  url.Values{"downloadMedia": {strconv.FormatBool(downloadMedia)}},
		retry:  true,
	})
	if err != nil {
		return nil, err
	}

	var msg types.Message
	if err := json.Unmarshal(resp.body, &msg); err != nil {
		return nil, malformed(op, resp, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, malformed(op, resp, err)
	}
	return &msg, nil
}

// PinMessage pins a message for duration seconds.
func (c *Client) PinMessage(ctx context.Context, chatID, messageID string, duration int) (json.RawMessage, error) {
	return c.messageAction(ctx, call{
		op:     "pin_message",
		method: http.MethodPost,
		path:   c.messagePath(chatID, messageID, "/pin"),
		body:   types.PinMessageRequest{Duration: duration},
	})
}

// UnpinMessage removes a pin.
func (c *Client) UnpinMessage(ctx context.Context, chatID, messageID string) (json.RawMessage, error) {
	return c.messageAction(ctx, call{
		op:     "unpin_message",
		method: http.MethodPost,
		path:   c.messagePath(chatID, messageID, "/unpin"),
	})
}

// EditMessage replaces the text of a sent message.
func (c *Client) EditMessage(ctx context.Context, chatID, messageID, text string) (json.RawMessage, error) {
	return c.messageAction(ctx, call{
		op:     "edit_message",
		method: http.MethodPut,
		path:   c.messagePath(chatID, messageID, ""),
		body:   types.EditMessageRequest{Text: text},
	})
}

// DeleteMessage deletes one message.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID string) (json.RawMessage, error) {
	return c.messageAction(ctx, call{
		op:     "delete_message",
		method: http.MethodDelete,
		path:   c.messagePath(chatID, messageID, ""),
	})
}

// ClearMessages deletes every message in a chat.
func (c *Client) ClearMessages(ctx context.Context, chatID string) (json.RawMessage, error) {
	return c.messageAction(ctx, call{
		op:     "clear_messages",
		method: http.MethodDelete,
		path:   c.chatPath(chatID, "/messages"),
	})
}

func (c *Client) messageAction(ctx context.Context, cl call) (json.RawMessage, error) {
	cl.retry = true
	resp, err := c.do(ctx, cl)
	if err != nil {
		return nil, err
	}
	return actionResult(resp.body), nil
}

// SendText sends a text message. replyTo, when set, quotes an earlier message.
func (c *Client) SendText(ctx context.Context, chatID, text, replyTo string) (*types.SendResult, error) {
	const op = "send_text"
	resp, err := c.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   types.APIBase + types.EndpointSendText,
		body: types.SendTextRequest{
			Session: c.session,
			ChatID:  chatID,
			Text:    text,
			ReplyTo: replyTo,
		},
		retry: true,
	})
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(resp.body)) > 0 && !json.Valid(resp.body) {
		return nil, malformed(op, resp, errors.New("send response is not JSON"))
	}
	raw := actionResult(resp.body)
	return &types.SendResult{MessageID: types.ParseMessageID(raw), Raw: raw}, nil
}
