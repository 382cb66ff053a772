package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"szenai/internal/constants"
	apperrors "szenai/internal/errors"
	"szenai/internal/httputil"
	"szenai/pkg/waha"
)

// writeError maps err onto the response. An upstream HTTP error keeps the
// upstream status and, when it is JSON, the upstream body. Nothing derived
// from the upstream address or credentials is written.
func (p *Proxy) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		upstreamErr *waha.UpstreamError
		transport   *waha.TransportError
		setup       *waha.RequestSetupError
	)

	entry := p.logger.WithError(err).WithField(constants.LogFieldOperation, op)

	switch {
	case errors.As(err, &upstreamErr) && !upstreamErr.Malformed:
		entry.WithField(constants.LogFieldStatusCode, upstreamErr.StatusCode).Warn("Upstream returned an error")
		if len(upstreamErr.Body) > 0 && json.Valid(upstreamErr.Body) {
			_ = httputil.WriteRawJSON(w, upstreamErr.StatusCode, upstreamErr.Body)
			return
		}
		msg := upstreamErr.Message()
		if msg == "" {
			msg = fmt.Sprintf("upstream responded with status %d", upstreamErr.StatusCode)
		}
		httputil.WriteError(w, r, apperrors.New(apperrors.ErrCodeUpstream, msg).
			WithStatus(upstreamErr.StatusCode).
			WithUserMessage(msg))

	case errors.As(err, &upstreamErr):
		entry.Error("Upstream returned a malformed response")
		httputil.WriteError(w, r, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "malformed upstream response").
			WithStatus(http.StatusBadGateway).
			WithUserMessage("WhatsApp gateway returned an unexpected response"))

	case errors.As(err, &transport):
		entry.WithField("circuit_open", transport.CircuitOpen).Error("Upstream unreachable")
		httputil.WriteError(w, r, apperrors.NewTransportError(op, err))

	case errors.As(err, &setup):
		entry.Error("Failed to build upstream request")
		httputil.WriteError(w, r, apperrors.NewRequestSetupError(op, err))

	default:
		if _, ok := apperrors.As(err); ok {
			entry.Debug("Rejected request")
			httputil.WriteError(w, r, err)
			return
		}
		if errors.Is(err, context.Canceled) {
			entry.Debug("Request canceled by client")
		} else {
			entry.Error("Request failed")
		}
		httputil.WriteError(w, r, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "request failed"))
	}
}

// logFields returns masked id fields for a request log entry.
func (p *Proxy) logFields(chatID, messageID string) logrus.Fields {
	fields := logrus.Fields{constants.LogFieldChatID: p.mask.ChatID(chatID)}
	if messageID != "" {
		fields[constants.LogFieldMessageID] = p.mask.MessageID(messageID)
	}
	return fields
}
