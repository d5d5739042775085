// ABOUTME: JSON response helpers and error-to-status mapping for the HTTP API
// ABOUTME: All responses use a success envelope with an optional message

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Alexxxx0910/work-flow-connect-62/internal/chat"
)

// envelope is the common shape of every API response.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{"success": false, "message": message})
}

// statusForKind maps chat error kinds to HTTP status codes.
func statusForKind(kind chat.Kind) int {
	switch kind {
	case chat.KindInvalidArgument, chat.KindInvalidOperation:
		return http.StatusBadRequest
	case chat.KindPermissionDenied:
		return http.StatusForbidden
	case chat.KindNotFound:
		return http.StatusNotFound
	case chat.KindAlreadyExists:
		return http.StatusConflict
	case chat.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError translates a service error into an API response. Unexpected
// errors are logged and surfaced as a generic 500.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var chatErr *chat.Error
	if errors.As(err, &chatErr) {
		writeError(w, statusForKind(chatErr.Kind), chatErr.Message)
		return
	}

	s.logger.Error("unhandled error", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
