package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/handlers"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/services/cleanup"
	"github.com/ternarybob/tailor/internal/services/docx"
	"github.com/ternarybob/tailor/internal/services/events"
	"github.com/ternarybob/tailor/internal/services/llm"
	"github.com/ternarybob/tailor/internal/services/posting"
	"github.com/ternarybob/tailor/internal/services/render"
	"github.com/ternarybob/tailor/internal/services/session"
	"github.com/ternarybob/tailor/internal/services/stages"
	"github.com/ternarybob/tailor/internal/services/tools"
	"github.com/ternarybob/tailor/internal/services/validation"
	"github.com/ternarybob/tailor/internal/services/wizard"
	storage "github.com/ternarybob/tailor/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager *storage.Manager

	EventService   *events.Service
	SessionService *session.Service
	Provider       interfaces.LLMProvider
	StageCaller    interfaces.StageCaller
	Engine         *stages.Engine
	Renderer       *render.Renderer
	Dispatcher     *wizard.Dispatcher
	CleanupService *cleanup.Service
	ToolService    *tools.Service

	// HTTP handlers
	APIHandler  *handlers.APIHandler
	ToolHandler *handlers.ToolHandler
	WSHandler   *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	manager, err := storage.NewManager(logger, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}
	app.StorageManager = manager

	app.EventService = events.NewService(logger)

	app.SessionService = session.NewService(manager.SessionStorage(), manager.BlobStorage(), cfg, logger)
	// The storage layer asks the session service to shrink properties that
	// stay oversized after offload
	manager.Sessions().SetCodec(app.SessionService)

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Provider = provider

	app.StageCaller = llm.NewStageService(provider, cfg, logger)
	app.Engine = stages.NewEngine(app.StageCaller, logger)

	var engine interfaces.PDFEngine
	if cfg.Render.ChromeEnabled {
		engine = render.NewChromeEngine(logger)
	} else {
		// CV generation fails at call time; the rest of the wizard works
		engine = render.DisabledEngine{}
		logger.Warn().Msg("Chrome disabled, CV PDF generation unavailable")
	}
	app.Renderer = render.NewRenderer(engine, manager.BlobStorage(), cfg, logger)

	validator := validation.NewCVValidator()

	app.Dispatcher = wizard.NewDispatcher(
		app.SessionService,
		app.Engine,
		posting.NewExtractor(logger),
		docx.NewReader(logger),
		validator,
		app.Renderer,
		app.EventService,
		manager.BlobStorage(),
		cfg,
		logger,
	)

	app.CleanupService = cleanup.NewService(manager.SessionStorage(), app.EventService, cfg, logger)

	app.ToolService = tools.NewService(
		app.Dispatcher,
		app.SessionService,
		manager.SessionStorage(),
		validator,
		app.Renderer,
		app.CleanupService,
		logger,
	)

	app.APIHandler = handlers.NewAPIHandler()
	app.ToolHandler = handlers.NewToolHandler(app.ToolService, logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger, &cfg.WebSocket)

	return app, nil
}

// buildProvider selects the LLM provider: fixture-backed mock when
// llm.mock is set, the configured live provider otherwise.
func buildProvider(cfg *common.Config, logger arbor.ILogger) (interfaces.LLMProvider, error) {
	if cfg.LLM.Mock {
		mock, err := llm.NewMockProvider(cfg.LLM.MockFixtures, logger)
		if err != nil {
			return nil, fmt.Errorf("mock provider init: %w", err)
		}
		logger.Warn().Str("fixtures", cfg.LLM.MockFixtures).Msg("LLM mock mode enabled, no model calls will be made")
		return mock, nil
	}
	return llm.NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, logger), nil
}

// Start launches the background services
func (a *App) Start() error {
	return a.CleanupService.Start()
}

// Shutdown stops background services and closes storage
func (a *App) Shutdown(ctx context.Context) error {
	a.CleanupService.Stop()
	a.WSHandler.Close()

	if err := a.EventService.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Event service close failed")
	}
	if closer, ok := a.Provider.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Provider close failed")
		}
	}
	if err := a.StorageManager.Close(); err != nil {
		return fmt.Errorf("storage close: %w", err)
	}

	a.Logger.Info().Msg("Application stopped")
	return nil
}
