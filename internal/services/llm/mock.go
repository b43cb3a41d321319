package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/interfaces"
	"gopkg.in/yaml.v3"
)

// MockFixture is one canned response in the fixture file. Stage is required;
// InputHash narrows the fixture to a specific input (empty matches any input
// for the stage).
type MockFixture struct {
	Stage     string `yaml:"stage"`
	InputHash string `yaml:"input_hash,omitempty"`
	Response  string `yaml:"response"`
}

type mockFixtureFile struct {
	Fixtures []MockFixture `yaml:"fixtures"`
}

// MockProvider serves fixture responses keyed by stage and input hash.
// Enabled with LLM_MOCK for tests and offline development; no provider
// I/O ever happens through it.
type MockProvider struct {
	fixtures []MockFixture
	logger   arbor.ILogger
}

// NewMockProvider loads fixtures from the configured YAML file. A missing
// file yields an empty provider that fails every call, which is still
// deterministic.
func NewMockProvider(path string, logger arbor.ILogger) (*MockProvider, error) {
	p := &MockProvider{logger: logger}

	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", path).Msg("Mock fixture file not found, mock provider is empty")
			return p, nil
		}
		return nil, fmt.Errorf("failed to read mock fixtures: %w", err)
	}

	var file mockFixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse mock fixtures: %w", err)
	}

	p.fixtures = file.Fixtures
	logger.Info().Int("count", len(p.fixtures)).Str("path", path).Msg("Mock LLM fixtures loaded")
	return p, nil
}

// AddFixture registers a fixture programmatically (test convenience)
func (p *MockProvider) AddFixture(f MockFixture) {
	p.fixtures = append(p.fixtures, f)
}

// Name implements interfaces.LLMProvider
func (p *MockProvider) Name() string { return string(ProviderMock) }

// GenerateContent serves the best-matching fixture for the request. The
// stage is carried in the request via the system prompt marker set by the
// stage caller; matching falls back from (stage, input hash) to stage-only.
func (p *MockProvider) GenerateContent(ctx context.Context, req interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	stage := stageFromContext(ctx)
	inputHash := common.HashString(req.UserPrompt)

	var stageOnly *MockFixture
	for i := range p.fixtures {
		f := &p.fixtures[i]
		if f.Stage != stage {
			continue
		}
		if f.InputHash == inputHash {
			return p.respond(f, stage)
		}
		if f.InputHash == "" && stageOnly == nil {
			stageOnly = f
		}
	}
	if stageOnly != nil {
		return p.respond(stageOnly, stage)
	}

	return nil, fmt.Errorf("no mock fixture for stage %q (input hash %s)", stage, inputHash[:12])
}

func (p *MockProvider) respond(f *MockFixture, stage string) (*interfaces.ContentResponse, error) {
	p.logger.Debug().Str("stage", stage).Msg("Serving mock LLM fixture")
	return &interfaces.ContentResponse{
		Text:     f.Response,
		Provider: string(ProviderMock),
		Model:    "fixture",
		Mocked:   true,
	}, nil
}

// HealthCheck always succeeds for the mock
func (p *MockProvider) HealthCheck(ctx context.Context) error { return nil }

type stageContextKey struct{}

// WithStage tags a context with the stage name so the mock provider can
// route fixture lookups. Real providers ignore it.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageContextKey{}, stage)
}

func stageFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(stageContextKey{}).(string); ok {
		return s
	}
	return ""
}
