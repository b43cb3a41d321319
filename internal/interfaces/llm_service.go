package interfaces

import "context"

// ContentRequest describes a single structured LLM call. When OutputSchema
// is set the provider must constrain generation to that JSON schema (native
// structured output where the API supports it, schema-in-prompt otherwise).
type ContentRequest struct {
	SystemPrompt string
	UserPrompt   string
	OutputSchema map[string]interface{}
	MaxTokens    int
	Temperature  float64
}

// ContentResponse carries the raw model output plus provenance
type ContentResponse struct {
	Text     string
	Provider string
	Model    string
	Mocked   bool
}

// LLMProvider is one backing model API (Claude, Gemini, or the mock)
type LLMProvider interface {
	// Name returns the provider identifier used in audit entries
	Name() string

	// GenerateContent executes one call. Implementations handle their own
	// rate-limit retries; schema repair is the caller's concern.
	GenerateContent(ctx context.Context, req ContentRequest) (*ContentResponse, error)

	// HealthCheck verifies credentials and reachability
	HealthCheck(ctx context.Context) error
}

// StageResult is the outcome of a schema-validated stage call
type StageResult struct {
	// Output is the parsed JSON object conforming to the stage schema
	Output map[string]interface{}

	// RawText is the final model text the output was parsed from
	RawText string

	Provider string
	Model    string
	Repaired bool
	Mocked   bool
}

// StageCaller runs budgeted, schema-validated LLM calls for wizard stages.
// One repair retry is attempted on schema-invalid output before the call
// fails with a models.LLMInvalidError.
type StageCaller interface {
	CallStage(ctx context.Context, stage string, req ContentRequest) (*StageResult, error)
}
