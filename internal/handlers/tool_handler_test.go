package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/models"
)

func newTestToolHandler() *ToolHandler {
	// A nil registry is fine for envelope validation tests: every case here
	// fails before the call reaches it.
	return NewToolHandler(nil, arbor.NewLogger())
}

func postToolCall(handler *ToolHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/cv-tool-call-handler", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.HandleToolCall(rec, req)
	return rec
}

func TestToolCall_RequiresPost(t *testing.T) {
	handler := newTestToolHandler()
	req := httptest.NewRequest("GET", "/cv-tool-call-handler", nil)
	rec := httptest.NewRecorder()

	handler.HandleToolCall(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestToolCall_InvalidJSON(t *testing.T) {
	rec := postToolCall(newTestToolHandler(), "{not json")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["status"] != "error" {
		t.Errorf("Expected status 'error', got %v", response["status"])
	}
}

func TestToolCall_MissingToolName(t *testing.T) {
	rec := postToolCall(newTestToolHandler(), `{"arguments":{"session_id":"abc"}}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestToolCall_BodyTooLarge(t *testing.T) {
	body := `{"tool":"bootstrap_session","arguments":{"docx_base64":"` +
		strings.Repeat("A", MaxToolRequestBytes) + `"}}`

	rec := postToolCall(newTestToolHandler(), body)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rec.Code)
	}
}

func TestToolList_ReturnsRegisteredTools(t *testing.T) {
	handler := newTestToolHandler()
	req := httptest.NewRequest("GET", "/cv-tool-call-handler/tools", nil)
	rec := httptest.NewRecorder()

	handler.HandleToolList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var response struct {
		Tools []string `json:"tools"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	want := []string{
		"bootstrap_session",
		"update_field",
		"generate_cv_from_session",
		"process_cv_orchestrated",
		"session_search",
	}
	listed := make(map[string]bool, len(response.Tools))
	for _, name := range response.Tools {
		listed[name] = true
	}
	for _, name := range want {
		if !listed[name] {
			t.Errorf("Expected tool %q in list, got %v", name, response.Tools)
		}
	}
}

func TestWriteAppError_StatusMapping(t *testing.T) {
	tests := []struct {
		kind   string
		status int
	}{
		{models.ErrKindBadRequest, http.StatusBadRequest},
		{models.ErrKindValidation, http.StatusUnprocessableEntity},
		{models.ErrKindReadiness, http.StatusConflict},
		{models.ErrKindStage, http.StatusConflict},
		{models.ErrKindConflict, http.StatusConflict},
		{models.ErrKindNotFound, http.StatusNotFound},
		{models.ErrKindSizeLimit, http.StatusRequestEntityTooLarge},
		{models.ErrKindLLMInvalid, http.StatusBadGateway},
		{models.ErrKindUnavailable, http.StatusServiceUnavailable},
		{models.ErrKindRenderer, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteAppError(rec, models.NewAppError(tt.kind, "boom"), "trace-1")

			if rec.Code != tt.status {
				t.Errorf("Expected status %d for kind %s, got %d", tt.status, tt.kind, rec.Code)
			}

			var response map[string]interface{}
			json.NewDecoder(rec.Body).Decode(&response)
			if response["kind"] != tt.kind {
				t.Errorf("Expected kind %q in body, got %v", tt.kind, response["kind"])
			}
			if response["trace_id"] != "trace-1" {
				t.Errorf("Expected trace_id in body, got %v", response["trace_id"])
			}
		})
	}
}

func TestWriteAppError_DetailsAndSuggestion(t *testing.T) {
	err := models.NewAppError(models.ErrKindRenderer, "cv did not fit").
		WithDetails(map[string]interface{}{"pages": 3}).
		WithSuggestion("shorten work experience bullets")

	rec := httptest.NewRecorder()
	WriteAppError(rec, err, "")

	var response map[string]interface{}
	if decodeErr := json.NewDecoder(rec.Body).Decode(&response); decodeErr != nil {
		t.Fatalf("Failed to decode response: %v", decodeErr)
	}

	details, ok := response["details"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected details object, got %v", response["details"])
	}
	if int(details["pages"].(float64)) != 3 {
		t.Errorf("Expected pages 3 in details, got %v", details["pages"])
	}
	if response["suggestion"] != "shorten work experience bullets" {
		t.Errorf("Expected suggestion in body, got %v", response["suggestion"])
	}
	if _, present := response["trace_id"]; present {
		t.Error("Expected no trace_id when none was supplied")
	}
}

func TestWriteAppError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, errors.New("disk on fire"), "")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 for plain error, got %d", rec.Code)
	}
}
