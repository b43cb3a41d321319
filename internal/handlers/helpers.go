package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/tailor/internal/models"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteAppError maps a domain error onto an HTTP response. The body always
// carries the error kind plus whatever structured details and suggestion
// the error accumulated on its way up.
func WriteAppError(w http.ResponseWriter, err error, traceID string) error {
	ae := models.AsAppError(err)

	body := map[string]interface{}{
		"status": "error",
		"kind":   ae.Kind,
		"error":  ae.Message,
	}
	if ae.Details != nil {
		body["details"] = ae.Details
	}
	if ae.Suggestion != "" {
		body["suggestion"] = ae.Suggestion
	}
	if traceID != "" {
		body["trace_id"] = traceID
	}

	return WriteJSON(w, statusForKind(ae.Kind), body)
}

func statusForKind(kind string) int {
	switch kind {
	case models.ErrKindBadRequest:
		return http.StatusBadRequest
	case models.ErrKindValidation:
		return http.StatusUnprocessableEntity
	case models.ErrKindReadiness, models.ErrKindStage, models.ErrKindConflict:
		return http.StatusConflict
	case models.ErrKindNotFound:
		return http.StatusNotFound
	case models.ErrKindSizeLimit:
		return http.StatusRequestEntityTooLarge
	case models.ErrKindLLMInvalid:
		return http.StatusBadGateway
	case models.ErrKindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
