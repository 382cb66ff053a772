// Package proxy exposes WAHA chat and message operations over HTTP with a
// response cache in front of reads and cache invalidation after mutations.
package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"szenai/internal/broadcast"
	"szenai/internal/cache"
	"szenai/internal/constants"
	apperrors "szenai/internal/errors"
	"szenai/internal/httputil"
	"szenai/internal/metrics"
	"szenai/internal/privacy"
	"szenai/internal/validation"
	"szenai/pkg/waha"
	"szenai/pkg/waha/types"
)

// Upstream is the part of the WAHA client the proxy relies on.
type Upstream interface {
	ListChats(ctx context.Context, params types.ListChatsParams) ([]types.Chat, error)
	ChatsOverview(ctx context.Context, params types.OverviewParams) ([]types.Chat, error)
	ChatPicture(ctx context.Context, chatID string, refresh bool) (*types.ChatPicture, error)
	ArchiveChat(ctx context.Context, chatID string) (json.RawMessage, error)
	UnarchiveChat(ctx context.Context, chatID string) (json.RawMessage, error)
	MarkChatUnread(ctx context.Context, chatID string) (json.RawMessage, error)
	DeleteChat(ctx context.Context, chatID string) (json.RawMessage, error)

	ListMessages(ctx context.Context, chatID string, params types.ListMessagesParams) ([]types.Message, error)
	GetMessage(ctx context.Context, chatID, messageID string, downloadMedia bool) (*types.Message, error)
	PinMessage(ctx context.Context, chatID, messageID string, duration int) (json.RawMessage, error)
	UnpinMessage(ctx context.Context, chatID, messageID string) (json.RawMessage, error)
	EditMessage(ctx context.Context, chatID, messageID, text string) (json.RawMessage, error)
	DeleteMessage(ctx context.Context, chatID, messageID string) (json.RawMessage, error)
	ClearMessages(ctx context.Context, chatID string) (json.RawMessage, error)
	SendText(ctx context.Context, chatID, text, replyTo string) (*types.SendResult, error)

	Forward(ctx context.Context, method, escapedPath string, query url.Values, header http.Header, body []byte) (*waha.RawResponse, error)
}

var _ Upstream = (*waha.Client)(nil)

// Cacheable read resources.
const (
	ResourceChats    = "chats"
	ResourceOverview = "overview"
	ResourcePicture  = "picture"
	ResourceMessages = "messages"
	ResourceMessage  = "message"
)

// Response headers set on reads.
const (
	HeaderCacheStatus = "X-Cache"
	CacheStatusHit    = "HIT"
	CacheStatusMiss   = "MISS"
)

// Proxy serves the chat/message HTTP surface.
type Proxy struct {
	upstream  Upstream
	cache     *cache.Cache
	publisher broadcast.Publisher
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	mask      privacy.Masker
	ttl       map[string]time.Duration
	maxAge    map[string]int
	now       func() time.Time
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithPublisher sets where message.sent events go.
func WithPublisher(p broadcast.Publisher) Option {
	return func(px *Proxy) { px.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(px *Proxy) { px.metrics = m }
}

// WithResourceTTL overrides how long cached payloads of resource stay fresh.
func WithResourceTTL(resource string, ttl time.Duration) Option {
	return func(px *Proxy) {
		if ttl > 0 {
			px.ttl[resource] = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(px *Proxy) { px.now = now }
}

// WithVerboseLogging logs chat and message ids unmasked.
func WithVerboseLogging(verbose bool) Option {
	return func(px *Proxy) { px.mask = privacy.Masker{Verbose: verbose} }
}

func New(upstream Upstream, c *cache.Cache, logger *logrus.Logger, opts ...Option) *Proxy {
	if logger == nil {
		logger = logrus.New()
	}
	p := &Proxy{
		upstream:  upstream,
		cache:     c,
		publisher: broadcast.PublisherFunc(func(context.Context, broadcast.Event) error { return nil }),
		logger:    logger,
		ttl: map[string]time.Duration{
			ResourceChats:    c.TTL(),
			ResourceOverview: c.TTL(),
			ResourceMessage:  c.TTL(),
			ResourceMessages: constants.MessagesCacheTTL,
			ResourcePicture:  constants.PictureCacheTTL,
		},
		maxAge: map[string]int{
			ResourceChats:    constants.MaxAgeChats,
			ResourceOverview: constants.MaxAgeOverview,
			ResourceMessage:  constants.MaxAgeMessage,
			ResourceMessages: constants.MaxAgeMessages,
			ResourcePicture:  constants.MaxAgePicture,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Routes returns a router serving the proxy under prefix. Paths are matched
// in their encoded form so that ids containing reserved characters stay in
// one segment. Only prefix itself and paths below prefix+"/" are served.
func (p *Proxy) Routes(prefix string) *mux.Router {
	root := mux.NewRouter().UseEncodedPath()
	root.Handle(prefix, p.handlePassthrough(prefix))
	r := root.PathPrefix(prefix).Subrouter()

	r.HandleFunc(types.PathChats, p.handleListChats()).Methods(http.MethodGet)
	r.HandleFunc(types.PathChatsOverview, p.handleChatsOverview()).Methods(http.MethodGet)
	r.HandleFunc("/chats/{chatId}/picture", p.handleChatPicture()).Methods(http.MethodGet)
	r.HandleFunc("/chats/{chatId}/archive", p.handleChatAction("archive_chat", p.upstream.ArchiveChat)).Methods(http.MethodPost)
	r.HandleFunc("/chats/{chatId}/unarchive", p.handleChatAction("unarchive_chat", p.upstream.UnarchiveChat)).Methods(http.MethodPost)
	r.HandleFunc("/chats/{chatId}/unread", p.handleChatAction("mark_chat_unread", p.upstream.MarkChatUnread)).Methods(http.MethodPost)
	r.HandleFunc("/chats/{chatId}", p.handleChatAction("delete_chat", p.upstream.DeleteChat)).Methods(http.MethodDelete)

	r.HandleFunc("/chats/{chatId}/messages", p.handleListMessages()).Methods(http.MethodGet)
	r.HandleFunc("/chats/{chatId}/messages", p.handleClearMessages()).Methods(http.MethodDelete)
	r.HandleFunc("/chats/{chatId}/messages/{messageId}", p.handleGetMessage()).Methods(http.MethodGet)
	r.HandleFunc("/chats/{chatId}/messages/{messageId}", p.handleEditMessage()).Methods(http.MethodPut)
	r.HandleFunc("/chats/{chatId}/messages/{messageId}", p.handleDeleteMessage()).Methods(http.MethodDelete)
	r.HandleFunc("/chats/{chatId}/messages/{messageId}/pin", p.handlePinMessage()).Methods(http.MethodPost)
	r.HandleFunc("/chats/{chatId}/messages/{messageId}/unpin", p.handleUnpinMessage()).Methods(http.MethodPost)

	r.HandleFunc("/messages/chat", p.handleSendMessage()).Methods(http.MethodPost)

	r.PathPrefix("/").Handler(p.handlePassthrough(prefix))
	return root
}

// serveCached answers a read from the cache or, on a miss, from fetch.
// Errors are never cached.
func (p *Proxy) serveCached(w http.ResponseWriter, r *http.Request, op, resource, key string, fetch func(ctx context.Context) (interface{}, error)) {
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(p.maxAge[resource]))

	if payload, ok := p.cache.GetWithTTL(key, p.ttl[resource]); ok {
		p.metrics.ObserveCache(resource, true)
		w.Header().Set(HeaderCacheStatus, CacheStatusHit)
		_ = httputil.WriteRawJSON(w, http.StatusOK, payload)
		return
	}
	p.metrics.ObserveCache(resource, false)

	result, err := fetch(r.Context())
	if err != nil {
		w.Header().Del("Cache-Control")
		p.writeError(w, r, op, err)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		w.Header().Del("Cache-Control")
		p.writeError(w, r, op, err)
		return
	}
	p.cache.Set(key, payload)

	w.Header().Set(HeaderCacheStatus, CacheStatusMiss)
	_ = httputil.WriteRawJSON(w, http.StatusOK, payload)
}

// invalidate evicts every entry referencing chatID and, when lists is set,
// every chat list and overview page.
func (p *Proxy) invalidate(op, chatID string, lists bool) {
	removed := p.cache.Invalidate(func(key string) bool {
		if isChatKey(key, chatID) {
			return true
		}
		return lists && isChatListKey(key)
	})
	p.metrics.CacheInvalidated(op, removed)
	p.logger.WithFields(logrus.Fields{
		constants.LogFieldOperation: op,
		constants.LogFieldChatID:    p.mask.ChatID(chatID),
		constants.LogFieldCount:     removed,
	}).Debug("Invalidated cache entries")
}

// isChatKey reports whether key belongs to chatID's own path, so that ids
// which are suffixes of other ids do not match.
func isChatKey(key, chatID string) bool {
	return key == chatKey(chatID, "") ||
		strings.HasPrefix(key, chatKey(chatID, "/")) ||
		strings.HasPrefix(key, chatKey(chatID, "?"))
}

func isChatListKey(key string) bool {
	return key == types.PathChats ||
		strings.HasPrefix(key, types.PathChats+"?") ||
		strings.HasPrefix(key, types.PathChatsOverview)
}

// pathID returns the decoded, validated path variable name.
func pathID(r *http.Request, name string, check func(string) error) (string, error) {
	raw := mux.Vars(r)[name]
	id, err := url.PathUnescape(raw)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "malformed path parameter").
			WithContext("field", name).
			WithUserMessage("Malformed " + name)
	}
	if err := check(id); err != nil {
		return "", err
	}
	return id, nil
}

func chatVar(r *http.Request) (string, error) {
	return pathID(r, "chatId", validation.ValidateChatID)
}

func messageVars(r *http.Request) (string, string, error) {
	chatID, err := chatVar(r)
	if err != nil {
		return "", "", err
	}
	messageID, err := pathID(r, "messageId", validation.ValidateMessageID)
	if err != nil {
		return "", "", err
	}
	return chatID, messageID, nil
}

func chatKey(chatID, rest string) string {
	return types.PathChats + "/" + chatID + rest
}
