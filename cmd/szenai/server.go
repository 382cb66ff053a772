package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"szenai/internal/constants"
	"szenai/internal/errors"
	"szenai/internal/httputil"
	"szenai/internal/metrics"
	"szenai/internal/middleware"
	"szenai/internal/models"
	"szenai/internal/privacy"
	"szenai/internal/proxy"
	"szenai/internal/ratelimit"
	"szenai/internal/validation"
)

const healthCheckTimeout = 2 * time.Second

// HistoryStore is the part of the sent-message log the server reads.
type HistoryStore interface {
	Ping(ctx context.Context) error
	ListSentMessages(ctx context.Context, chatID string, limit int) ([]models.SentMessage, error)
}

type Server struct {
	cfg     *models.Config
	router  *mux.Router
	logger  *logrus.Logger
	errLog  *errors.Logger
	metrics *metrics.Metrics
	history HistoryStore
	hub     http.Handler
	proxy   *proxy.Proxy
	limiter *ratelimit.RateLimiter
	mask    privacy.Masker
	server  *http.Server
}

func NewServer(cfg *models.Config, logger *logrus.Logger, m *metrics.Metrics, history HistoryStore, hub http.Handler, px *proxy.Proxy, limiter *ratelimit.RateLimiter, verbose bool) *Server {
	s := &Server{
		cfg:     cfg,
		router:  mux.NewRouter().UseEncodedPath(),
		logger:  logger,
		errLog:  errors.NewLogger(logger),
		metrics: m,
		history: history,
		hub:     hub,
		proxy:   px,
		limiter: limiter,
		mask:    privacy.Masker{Verbose: verbose},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	clientIP := httputil.ClientIPFunc(s.cfg.Server.TrustProxy)
	s.router.Use(middleware.Observability(s.logger, s.metrics, clientIP))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.Handle("/ws", s.hub).Methods(http.MethodGet)
	s.router.HandleFunc("/api/history/{chatId}", s.handleHistory()).Methods(http.MethodGet)

	prefix := s.cfg.Server.PathPrefix
	proxyRoutes := s.proxy.Routes(prefix)
	proxyRoutes.Use(middleware.RouteLabel())
	limited := s.limiter.Middleware(s.logger, s.metrics, clientIP)(proxyRoutes)
	mounted := proxy.CORS(s.cfg.Server.CORSAllowedOrigins)(limited)
	s.router.Handle(prefix, mounted)
	s.router.PathPrefix(prefix + "/").Handler(mounted)
}

// Handler exposes the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.WithFields(logrus.Fields{
		"port":   s.cfg.Server.Port,
		"prefix": s.cfg.Server.PathPrefix,
	}).Info("Starting server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.history.Ping(ctx); err != nil {
			s.logger.WithError(err).Warn("Health check failed: database unreachable")
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, err := url.PathUnescape(mux.Vars(r)["chatId"])
		if err != nil {
			httputil.WriteError(w, r, errors.NewValidationError("chatId", "", "malformed path parameter"))
			return
		}
		if err := validation.ValidateChatID(chatID); err != nil {
			httputil.WriteError(w, r, err)
			return
		}

		limit := constants.DefaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				httputil.WriteError(w, r, errors.NewValidationError("limit", raw, "must be an integer"))
				return
			}
			if err := validation.ValidateNumericRange(n, "limit", 1, constants.MaxHistoryLimit); err != nil {
				httputil.WriteError(w, r, err)
				return
			}
			limit = n
		}

		records, err := s.history.ListSentMessages(r.Context(), chatID, limit)
		if err != nil {
			dbErr := errors.NewDatabaseError("list_sent_messages", err)
			s.errLog.LogError(dbErr, "Failed to read sent-message history", logrus.Fields{
				constants.LogFieldChatID: s.mask.ChatID(chatID),
			})
			httputil.WriteError(w, r, dbErr)
			return
		}
		_ = httputil.WriteJSON(w, http.StatusOK, records)
	}
}
