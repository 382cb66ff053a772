package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"szenai/internal/broadcast"
	"szenai/internal/cache"
	"szenai/internal/constants"
	apperrors "szenai/internal/errors"
	"szenai/internal/httputil"
	"szenai/internal/validation"
)

type sendMessageRequest struct {
	ChatID          string `json:"chatId" validate:"required,max=256"`
	Text            string `json:"text" validate:"notblank,max=65536"`
	QuotedMessageID string `json:"quotedMessageId,omitempty" validate:"omitempty,max=256"`
}

type editMessageRequest struct {
	Text string `json:"text" validate:"notblank,max=65536"`
}

type pinMessageRequest struct {
	Duration *int `json:"duration" validate:"omitempty,gte=0"`
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes))
	if err == nil {
		return data, nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "request body too large").
			WithStatus(http.StatusRequestEntityTooLarge).
			WithUserMessage("Request body too large")
	}
	return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "failed to read request body").
		WithUserMessage("Failed to read request body")
}

// decodeBody reads a JSON body into v and validates it. An empty body leaves
// v at its zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	data, err := readBody(w, r)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, v); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid JSON body").
				WithUserMessage("Request body must be valid JSON")
		}
	}
	return validation.ValidateStruct(v)
}

func (p *Proxy) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, err := chatVar(r)
		if err != nil {
			p.writeError(w, r, "list_messages", err)
			return
		}
		params, err := parseListMessages(r.URL.Query())
		if err != nil {
			p.writeError(w, r, "list_messages", err)
			return
		}
		key := cache.Key(chatKey(chatID, "/messages"), params.Query())
		p.serveCached(w, r, "list_messages", ResourceMessages, key, func(ctx context.Context) (interface{}, error) {
			return p.upstream.ListMessages(ctx, chatID, params)
		})
	}
}

func (p *Proxy) handleGetMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, messageID, err := messageVars(r)
		if err != nil {
			p.writeError(w, r, "get_message", err)
			return
		}
		download, err := queryBool(r.URL.Query(), "downloadMedia")
		if err != nil {
			p.writeError(w, r, "get_message", err)
			return
		}

		query := url.Values{}
		downloadMedia := download != nil && *download
		if downloadMedia {
			query.Set("downloadMedia", "true")
		}
		key := cache.Key(chatKey(chatID, "/messages/"+messageID), query)
		p.serveCached(w, r, "get_message", ResourceMessage, key, func(ctx context.Context) (interface{}, error) {
			return p.upstream.GetMessage(ctx, chatID, messageID, downloadMedia)
		})
	}
}

func (p *Proxy) handleClearMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, err := chatVar(r)
		if err != nil {
			p.writeError(w, r, "clear_messages", err)
			return
		}
		p.mutate(w, r, "clear_messages", chatID, true, func(ctx context.Context) (json.RawMessage, error) {
			return p.upstream.ClearMessages(ctx, chatID)
		})
	}
}

func (p *Proxy) handleEditMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, messageID, err := messageVars(r)
		if err != nil {
			p.writeError(w, r, "edit_message", err)
			return
		}
		var req editMessageRequest
		if err := decodeBody(w, r, &req); err != nil {
			p.writeError(w, r, "edit_message", err)
			return
		}
		p.mutate(w, r, "edit_message", chatID, true, func(ctx context.Context) (json.RawMessage, error) {
			return p.upstream.EditMessage(ctx, chatID, messageID, req.Text)
		})
	}
}

func (p *Proxy) handleDeleteMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, messageID, err := messageVars(r)
		if err != nil {
			p.writeError(w, r, "delete_message", err)
			return
		}
		p.mutate(w, r, "delete_message", chatID, true, func(ctx context.Context) (json.RawMessage, error) {
			return p.upstream.DeleteMessage(ctx, chatID, messageID)
		})
	}
}

func (p *Proxy) handlePinMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, messageID, err := messageVars(r)
		if err != nil {
			p.writeError(w, r, "pin_message", err)
			return
		}
		var req pinMessageRequest
		if err := decodeBody(w, r, &req); err != nil {
			p.writeError(w, r, "pin_message", err)
			return
		}
		duration := constants.DefaultPinDurationSec
		if req.Duration != nil {
			duration = *req.Duration
		}
		p.mutate(w, r, "pin_message", chatID, false, func(ctx context.Context) (json.RawMessage, error) {
			return p.upstream.PinMessage(ctx, chatID, messageID, duration)
		})
	}
}

func (p *Proxy) handleUnpinMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, messageID, err := messageVars(r)
		if err != nil {
			p.writeError(w, r, "unpin_message", err)
			return
		}
		p.mutate(w, r, "unpin_message", chatID, false, func(ctx context.Context) (json.RawMessage, error) {
			return p.upstream.UnpinMessage(ctx, chatID, messageID)
		})
	}
}

// handleSendMessage sends a text message and publishes exactly one
// message.sent event when WAHA accepted it.
func (p *Proxy) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if err := decodeBody(w, r, &req); err != nil {
			p.writeError(w, r, "send_text", err)
			return
		}
		if err := validation.ValidateChatID(req.ChatID); err != nil {
			p.writeError(w, r, "send_text", err)
			return
		}

		result, err := p.upstream.SendText(r.Context(), req.ChatID, req.Text, req.QuotedMessageID)
		if err != nil {
			p.writeError(w, r, "send_text", err)
			return
		}
		p.invalidate("send_text", req.ChatID, true)

		event := broadcast.NewMessageSent(req.ChatID, result.MessageID, req.Text, p.now())
		if err := p.publisher.Publish(context.WithoutCancel(r.Context()), event); err != nil {
			p.logger.WithError(err).WithFields(p.logFields(req.ChatID, result.MessageID)).
				Warn("Failed to publish message.sent event")
		}

		p.logger.WithFields(p.logFields(req.ChatID, result.MessageID)).Info("Message sent")
		_ = httputil.WriteRawJSON(w, http.StatusOK, result.Raw)
	}
}
