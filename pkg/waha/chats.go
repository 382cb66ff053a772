package waha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"szenai/pkg/waha/types"
)

// ListChats returns the chats of the session.
func (c *Client) ListChats(ctx context.Context, params types.ListChatsParams) ([]types.Chat, error) {
	return c.listChats(ctx, "list_chats", types.PathChats, params.Query())
}

// ChatsOverview returns paged chat summaries with picture and last message.
func (c *Client) ChatsOverview(ctx context.Context, params types.OverviewParams) ([]types.Chat, error) {
	return c.listChats(ctx, "chats_overview", types.PathChatsOverview, params.Query())
}

func (c *Client) listChats(ctx context.Context, op, path string, query url.Values) ([]types.Chat, error) {
	resp, err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   c.sessionPath(path),
		query:  query,
		retry:  true,
	})
	if err != nil {
		return nil, err
	}

	var chats []types.Chat
	if err := json.Unmarshal(resp.body, &chats); err != nil {
		return nil, malformed(op, resp, err)
	}
	for i := range chats {
		if err := chats[i].Validate(); err != nil {
			return nil, malformed(op, resp, err)
		}
	}
	if chats == nil {
		chats = []types.Chat{}
	}
	return chats, nil
}

// ChatPicture returns the profile picture URL of a chat. refresh bypasses
// WAHA's own picture cache.
func (c *Client) ChatPicture(ctx context.Context, chatID string, refresh bool) (*types.ChatPicture, error) {
	const op = "chat_picture"
	var query url.Values
	if refresh {
		query = url.Values{"refresh": {strconv.FormatBool(refresh)}}
	}
	resp, err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   c.chatPath(chatID, "/picture"),
		query:  query,
		retry:  true,
	})
	if err != nil {
		return nil, err
	}

	var pic types.ChatPicture
	if err := json.Unmarshal(resp.body, &pic); err != nil {
		return nil, malformed(op, resp, err)
	}
	return &pic, nil
}

// ArchiveChat archives a chat.
func (c *Client) ArchiveChat(ctx context.Context, chatID string) (json.RawMessage, error) {
	return c.chatAction(ctx, "archive_chat", http.MethodPost, c.chatPath(chatID, "/archive"))
}

// UnarchiveChat moves a chat out of the archive.
func (c *Client) UnarchiveChat(ctx context.Context, chatID string) (json.RawMessage, error) {
	return c.chatAction(ctx, "unarchive_chat", http.MethodPost, c.chatPath(chatID, "/unarchive"))
}

// MarkChatUnread sets the unread marker on a chat.
func (c *Client) MarkChatUnread(ctx context.Context, chatID string) (json.RawMessage, error) {
	return c.chatAction(ctx, "mark_chat_unread", http.MethodPost, c.chatPath(chatID, "/unread"))
}

// DeleteChat deletes a chat.
func (c *Client) DeleteChat(ctx context.Context, chatID string) (json.RawMessage, error) {
	return c.chatAction(ctx, "delete_chat", http.MethodDelete, c.chatPath(chatID, ""))
}

func (c *Client) chatAction(ctx context.Context, op, method, path string) (json.RawMessage, error) {
	resp, err := c.do(ctx, call{op: op, method: method, path: path, retry: true})
	if err != nil {
		return nil, err
	}
	return actionResult(resp.body), nil
}
