package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"szenai/internal/cache"
	"szenai/internal/httputil"
	"szenai/pkg/waha/types"
)

func (p *Proxy) handleListChats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parseListChats(r.URL.Query())
		if err != nil {
			p.writeError(w, r, "list_chats", err)
			return
		}
		key := cache.Key(types.PathChats, params.Query())
		p.serveCached(w, r, "list_chats", ResourceChats, key, func(ctx context.Context) (interface{}, error) {
			return p.upstream.ListChats(ctx, params)
		})
	}
}

func (p *Proxy) handleChatsOverview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parseOverview(r.URL.Query())
		if err != nil {
			p.writeError(w, r, "chats_overview", err)
			return
		}
		key := cache.Key(types.PathChatsOverview, params.Query())
		p.serveCached(w, r, "chats_overview", ResourceOverview, key, func(ctx context.Context) (interface{}, error) {
			return p.upstream.ChatsOverview(ctx, params)
		})
	}
}

func (p *Proxy) handleChatPicture() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, err := chatVar(r)
		if err != nil {
			p.writeError(w, r, "chat_picture", err)
			return
		}
		refresh, err := queryBool(r.URL.Query(), "refresh")
		if err != nil {
			p.writeError(w, r, "chat_picture", err)
			return
		}

		query := url.Values{}
		if refresh != nil && *refresh {
			query["refresh"] = []string{"true"}
		}
		key := cache.Key(chatKey(chatID, "/picture"), query)
		p.serveCached(w, r, "chat_picture", ResourcePicture, key, func(ctx context.Context) (interface{}, error) {
			return p.upstream.ChatPicture(ctx, chatID, refresh != nil && *refresh)
		})
	}
}

// handleChatAction serves the body-less chat state mutations. All of them
// change what chat lists show.
func (p *Proxy) handleChatAction(op string, action func(ctx context.Context, chatID string) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, err := chatVar(r)
		if err != nil {
			p.writeError(w, r, op, err)
			return
		}
		p.mutate(w, r, op, chatID, true, func(ctx context.Context) (json.RawMessage, error) {
			return action(ctx, chatID)
		})
	}
}

// mutate runs a mutation and, once it succeeded, invalidates the affected
// cache entries before the response is written.
func (p *Proxy) mutate(w http.ResponseWriter, r *http.Request, op, chatID string, lists bool, call func(ctx context.Context) (json.RawMessage, error)) {
	body, err := call(r.Context())
	if err != nil {
		p.writeError(w, r, op, err)
		return
	}
	p.invalidate(op, chatID, lists)
	_ = httputil.WriteRawJSON(w, http.StatusOK, body)
}
