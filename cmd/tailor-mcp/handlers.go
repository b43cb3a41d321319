package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/services/tools"
)

// makeHandler returns a factory that builds one ToolHandlerFunc per tool
// name, all delegating to the shared registry. MCP transports the same
// requests the HTTP endpoint takes; only the framing differs.
func makeHandler(toolService *tools.Service, logger arbor.ILogger) func(name string) server.ToolHandlerFunc {
	return func(name string) server.ToolHandlerFunc {
		return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, err := json.Marshal(request.GetArguments())
			if err != nil {
				return textResult(fmt.Sprintf("Error: invalid arguments: %v", err)), nil
			}

			result, err := toolService.Call(ctx, name, args)
			if err != nil {
				logger.Error().Err(err).Str("tool", name).Msg("Tool call failed")
				return textResult(fmt.Sprintf("Error: %v", err)), nil
			}

			return formatResult(result), nil
		}
	}
}

// formatResult converts a registry result into MCP content. PDFs are not
// sent over stdio; the caller gets the stored blob reference instead.
func formatResult(result *tools.Result) *mcp.CallToolResult {
	if result.PDF != nil {
		summary := map[string]interface{}{
			"status":   "generated",
			"filename": result.PDFName,
			"bytes":    len(result.PDF),
		}
		if result.JSON != nil {
			summary["ref"] = result.JSON
		}
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return textResult(fmt.Sprintf("Error: failed to format result: %v", err))
		}
		return textResult(string(data))
	}

	if result.HTML != "" {
		return textResult(result.HTML)
	}

	data, err := json.MarshalIndent(result.JSON, "", "  ")
	if err != nil {
		return textResult(fmt.Sprintf("Error: failed to format result: %v", err))
	}
	return textResult(string(data))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
