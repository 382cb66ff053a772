package main

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"szenai/internal/constants"
	"szenai/internal/tracing"
)

// handleMetrics serves the Prometheus exposition for the server's registry
func (s *Server) handleMetrics() http.Handler {
	exposition := s.metrics.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.WithFields(logrus.Fields{
			constants.LogFieldRequestID: tracing.RequestID(r.Context()),
			constants.LogFieldEndpoint:  "/metrics",
		}).Debug("Serving metrics endpoint")

		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		exposition.ServeHTTP(w, r)
	})
}
