package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/tailor/internal/app"
	"github.com/ternarybob/tailor/internal/common"
)

func main() {
	configPath := os.Getenv("TAILOR_CONFIG")
	if configPath == "" {
		configPath = "tailor.toml"
	}

	config, err := common.LoadFromFiles(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.StorageManager.Close()

	mcpServer := server.NewMCPServer(
		"tailor",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	registerTools(mcpServer, application, logger)

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
