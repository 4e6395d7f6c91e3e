package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// requestLogger writes one access log line per request. Polled endpoints
// log at debug so they don't flood the log.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			entry := log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).Round(time.Microsecond).String(),
				"remote":     r.RemoteAddr,
			})
			switch {
			case ww.Status() >= http.StatusInternalServerError:
				entry.Error("request")
			case polled(r.URL.Path):
				entry.Debug("request")
			default:
				entry.Info("request")
			}
		})
	}
}

func polled(path string) bool {
	switch path {
	case "/relatorio/atualizar", "/informacoes/atualizar", "/evolucao/dados", "/session/ping", "/api/health":
		return true
	}
	return false
}
