package dashclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"szenai/pkg/waha/types"
)

func (c *Client) ListChats(ctx context.Context, params types.ListChatsParams) ([]types.Chat, error) {
	var chats []types.Chat
	err := c.get(ctx, types.PathChats, types.PathChats, params.Query(), &chats)
	return chats, err
}

func (c *Client) ChatsOverview(ctx context.Context, params types.OverviewParams) ([]types.Chat, error) {
	var chats []types.Chat
	err := c.get(ctx, types.PathChatsOverview, types.PathChatsOverview, params.Query(), &chats)
	return chats, err
}

func (c *Client) ChatPicture(ctx context.Context, chatID string, refresh bool) (*types.ChatPicture, error) {
	query := url.Values{}
	if refresh {
		query.Set("refresh", "true")
	}
	logical, escaped := chatPath(chatID, "/picture")
	var pic types.ChatPicture
	if err := c.get(ctx, logical, escaped, query, &pic); err != nil {
		return nil, err
	}
	return &pic, nil
}

func (c *Client) ArchiveChat(ctx context.Context, chatID string) (json.RawMessage, error) {
	_, escaped := chatPath(chatID, "/archive")
	return c.mutate(ctx, http.MethodPost, escaped, nil)
}

func (c *Client) UnarchiveChat(ctx context.Context, chatID string) (json.RawMessage, error) {
	_, escaped := chatPath(chatID, "/unarchive")
	return c.mutate(ctx, http.MethodPost, escaped, nil)
}

func (c *Client) MarkChatUnread(ctx context.Context, chatID string) (json.RawMessage, error) {
	_, escaped := chatPath(chatID, "/unread")
	return c.mutate(ctx, http.MethodPost, escaped, nil)
}

func (c *Client) DeleteChat(ctx context.Context, chatID string) (json.RawMessage, error) {
	_, escaped := chatPath(chatID, "")
	return c.mutate(ctx, http.MethodDelete, escaped, nil)
}

func (c *Client) ListMessages(ctx context.Context, chatID string, params types.ListMessagesParams) ([]types.Message, error) {
	logical, escaped := chatPath(chatID, "/messages")
	var messages []types.Message
	err := c.get(ctx, logical, escaped, params.Query(), &messages)
	return messages, err
}

func (c *Client) GetMessage(ctx context.Context, chatID, messageID string, downloadMedia bool) (*types.Message, error) {
	query := url.Values{}
	if downloadMedia {
		query.Set("downloadMedia", "true")
	}
	logical, escaped := messagePath(chatID, messageID, "")
	var msg types.Message
	if err := c.get(ctx, logical, escaped, query, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) PinMessage(ctx context.Context, chatID, messageID string, duration int) (json.RawMessage, error) {
	_, escaped := messagePath(chatID, messageID, "/pin")
	return c.mutate(ctx, http.MethodPost, escaped, types.PinMessageRequest{Duration: duration})
}

func (c *Client) UnpinMessage(ctx context.Context, chatID, messageID string) (json.RawMessage, error) {
	_, escaped := messagePath(chatID, messageID, "/unpin")
	return c.mutate(ctx, http.MethodPost, escaped, nil)
}

func (c *Client) EditMessage(ctx context.Context, chatID, messageID, text string) (json.RawMessage, error) {
	_, escaped := messagePath(chatID, messageID, "")
	return c.mutate(ctx, http.MethodPut, escaped, types.EditMessageRequest{Text: text})
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID string) (json.RawMessage, error) {
	_, escaped := messagePath(chatID, messageID, "")
	return c.mutate(ctx, http.MethodDelete, escaped, nil)
}

func (c *Client) ClearMessages(ctx context.Context, chatID string) (json.RawMessage, error) {
	_, escaped := chatPath(chatID, "/messages")
	return c.mutate(ctx, http.MethodDelete, escaped, nil)
}

type sendRequest struct {
	ChatID          string `json:"chatId"`
	Text            string `json:"text"`
	QuotedMessageID string `json:"quotedMessageId,omitempty"`
}

// SendText sends text to chatID, optionally quoting quotedMessageID.
func (c *Client) SendText(ctx context.Context, chatID, text, quotedMessageID string) (*types.SendResult, error) {
	body, err := c.mutate(ctx, http.MethodPost, "/messages/chat", sendRequest{
		ChatID:          chatID,
		Text:            text,
		QuotedMessageID: quotedMessageID,
	})
	if err != nil {
		return nil, err
	}
	return &types.SendResult{MessageID: types.ParseMessageID(body), Raw: body}, nil
}
