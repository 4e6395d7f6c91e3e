// Package http holds the response helpers shared by the handler packages.
package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"genio/internal/templates"
)

// StatusOK and StatusError are the bodies of the refresh endpoints.
var (
	StatusOK    = Status("ok")
	StatusError = Status("erro")
)

// Status is the {"status": s} body the front end polls for.
func Status(s string) map[string]string {
	return map[string]string{"status": s}
}

// RenderTemplate renders a full page template with data
func RenderTemplate(w http.ResponseWriter, renderer *templates.Renderer, templateName string, data map[string]any) {
	if renderer != nil {
		renderer.Render(w, templateName, data)
	} else {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><h1>" + templateName + "</h1><p>Templates not loaded. Check configuration.</p></body></html>"))
	}
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Debug("writing response")
	}
}

// ErrorResponse sends an error response
func ErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	logrus.WithField("status", statusCode).Warnf("Error: %s", message)
	http.Error(w, message, statusCode)
}

// WantsJSON reports whether the client asked for a JSON answer.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// FormBool reads a checkbox value.
func FormBool(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.FormValue(key))) {
	case "1", "on", "true", "sim", "yes":
		return true
	}
	return false
}
