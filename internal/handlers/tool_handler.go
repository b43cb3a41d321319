package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/services/tools"
)

// MaxToolRequestBytes bounds the tool-call body. DOCX uploads arrive
// base64-encoded inside it, so the ceiling sits above the raw DOCX limit.
const MaxToolRequestBytes = 16 * 1024 * 1024

// ToolRequest is the envelope every tool call arrives in
type ToolRequest struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	TraceID   string          `json:"trace_id,omitempty"`
}

// ToolHandler exposes the tool registry over HTTP. One POST endpoint, one
// envelope; PDF-producing tools answer with the document itself.
type ToolHandler struct {
	tools  *tools.Service
	logger arbor.ILogger
}

func NewToolHandler(tools *tools.Service, logger arbor.ILogger) *ToolHandler {
	return &ToolHandler{
		tools:  tools,
		logger: logger,
	}
}

// HandleToolCall serves POST /cv-tool-call-handler
func (h *ToolHandler) HandleToolCall(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxToolRequestBytes+1))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	defer r.Body.Close()
	if len(body) > MaxToolRequestBytes {
		WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var req ToolRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON request")
		return
	}
	if req.Tool == "" {
		WriteError(w, http.StatusBadRequest, "tool name is required")
		return
	}
	if req.TraceID == "" {
		req.TraceID = common.NewTraceID()
	}

	h.logger.Info().
		Str("tool", req.Tool).
		Str("trace_id", req.TraceID).
		Msg("Tool call received")

	result, err := h.tools.Call(r.Context(), req.Tool, req.Arguments)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("tool", req.Tool).
			Str("trace_id", req.TraceID).
			Msg("Tool call failed")
		WriteAppError(w, err, req.TraceID)
		return
	}

	switch {
	case result.PDF != nil:
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.PDFName))
		w.Header().Set("X-Trace-Id", req.TraceID)
		w.WriteHeader(http.StatusOK)
		w.Write(result.PDF)
	case result.HTML != "":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Trace-Id", req.TraceID)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, result.HTML)
	default:
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "success",
			"tool":     req.Tool,
			"trace_id": req.TraceID,
			"result":   result.JSON,
		})
	}
}

// HandleToolList serves GET /cv-tool-call-handler/tools
func (h *ToolHandler) HandleToolList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tools": tools.ToolNames(),
	})
}
