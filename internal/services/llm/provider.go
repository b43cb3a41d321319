package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
	// ProviderMock serves canned fixtures, no network I/O
	ProviderMock ProviderType = "mock"
)

// ProviderFactory creates and manages AI providers. Each provider is rate
// limited independently with a minimum interval between requests.
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	logger       arbor.ILogger

	geminiClient  *genai.Client
	claudeClient  anthropic.Client
	claudeReady   bool
	geminiLimiter *rate.Limiter
	claudeLimiter *rate.Limiter
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(geminiConfig *common.GeminiConfig, claudeConfig *common.ClaudeConfig, llmConfig *common.LLMConfig, logger arbor.ILogger) *ProviderFactory {
	return &ProviderFactory{
		geminiConfig:  geminiConfig,
		claudeConfig:  claudeConfig,
		llmConfig:     llmConfig,
		logger:        logger,
		geminiLimiter: newIntervalLimiter(geminiConfig.RateLimit, 4*time.Second),
		claudeLimiter: newIntervalLimiter(claudeConfig.RateLimit, time.Second),
	}
}

// newIntervalLimiter builds a limiter enforcing a minimum gap between calls
func newIntervalLimiter(interval string, fallback time.Duration) *rate.Limiter {
	d, err := time.ParseDuration(interval)
	if err != nil || d <= 0 {
		d = fallback
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// Name implements interfaces.LLMProvider
func (f *ProviderFactory) Name() string {
	return f.llmConfig.DefaultProvider
}

// GetGeminiClient returns a Gemini client, creating one if necessary
func (f *ProviderFactory) GetGeminiClient(ctx context.Context) (*genai.Client, error) {
	if f.geminiClient != nil {
		return f.geminiClient, nil
	}
	if f.geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  f.geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	f.geminiClient = client
	return client, nil
}

// GetClaudeClient returns a Claude client, creating one if necessary
func (f *ProviderFactory) GetClaudeClient(ctx context.Context) (anthropic.Client, error) {
	if f.claudeReady {
		return f.claudeClient, nil
	}
	if f.claudeConfig.APIKey == "" {
		return anthropic.Client{}, fmt.Errorf("anthropic API key is not configured")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(f.claudeConfig.APIKey),
	)

	f.claudeClient = client
	f.claudeReady = true
	return client, nil
}

// GenerateContent generates content using the configured default provider
func (f *ProviderFactory) GenerateContent(ctx context.Context, req interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	switch ProviderType(f.llmConfig.DefaultProvider) {
	case ProviderClaude:
		return f.generateWithClaude(ctx, req)
	default:
		return f.generateWithGemini(ctx, req)
	}
}

// HealthCheck verifies the configured provider can be constructed
func (f *ProviderFactory) HealthCheck(ctx context.Context) error {
	switch ProviderType(f.llmConfig.DefaultProvider) {
	case ProviderClaude:
		_, err := f.GetClaudeClient(ctx)
		return err
	default:
		_, err := f.GetGeminiClient(ctx)
		return err
	}
}

// generateWithClaude generates content using Claude API. Claude has no
// native response-schema parameter, so the schema travels in the system
// prompt with an explicit JSON-only instruction.
func (f *ProviderFactory) generateWithClaude(ctx context.Context, req interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	client, err := f.GetClaudeClient(ctx)
	if err != nil {
		return nil, err
	}

	if err := f.claudeLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = f.claudeConfig.MaxTokens
	}

	systemText := req.SystemPrompt
	if len(req.OutputSchema) > 0 {
		systemText = embedSchemaInSystemPrompt(systemText, req.OutputSchema)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(f.claudeConfig.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}

	temp := req.Temperature
	if temp <= 0 {
		temp = float64(f.claudeConfig.Temperature)
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(temp)
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	var resp *anthropic.Message
	var apiErr error
	retryConfig := NewDefaultRetryConfig()

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		resp, apiErr = client.Messages.New(ctx, params)
		if apiErr == nil {
			break
		}
		if attempt == retryConfig.MaxRetries {
			break
		}

		backoff := time.Duration(attempt+1) * 2 * time.Second
		if IsRateLimitError(apiErr) {
			backoff = retryConfig.CalculateBackoff(attempt, 0)
		}

		f.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Claude API call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return nil, fmt.Errorf("Claude API call failed after %d retries: %w", retryConfig.MaxRetries, apiErr)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Claude API")
	}

	return &interfaces.ContentResponse{
		Text:     text.String(),
		Provider: string(ProviderClaude),
		Model:    f.claudeConfig.Model,
	}, nil
}

// generateWithGemini generates content using the Gemini API with native
// structured output when a schema is present.
func (f *ProviderFactory) generateWithGemini(ctx context.Context, req interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	client, err := f.GetGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	if err := f.geminiLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	temp := float32(req.Temperature)
	if temp <= 0 {
		temp = f.geminiConfig.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}

	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	// When a schema is provided, Gemini enforces JSON output matching it
	if len(req.OutputSchema) > 0 {
		genaiSchema, err := convertToGenaiSchema(req.OutputSchema)
		if err != nil {
			f.logger.Error().Err(err).Msg("Failed to convert output schema")
			// Continue without schema rather than failing
		} else if genaiSchema != nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = genaiSchema
			f.logger.Debug().
				Str("schema_type", string(genaiSchema.Type)).
				Msg("Using structured JSON output with schema")
		}
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.UserPrompt, genai.RoleUser),
	}

	var resp *genai.GenerateContentResponse
	var apiErr error
	retryConfig := NewDefaultRetryConfig()

	for attempt := 0; attempt <= retryConfig.MaxRetries; attempt++ {
		resp, apiErr = client.Models.GenerateContent(ctx, f.geminiConfig.Model, contents, config)
		if apiErr == nil {
			break
		}
		if attempt == retryConfig.MaxRetries {
			break
		}

		var backoff time.Duration
		if IsRateLimitError(apiErr) {
			apiDelay := ExtractRetryDelay(apiErr)
			backoff = retryConfig.CalculateBackoff(attempt, apiDelay)
		} else {
			backoff = time.Duration(attempt+1) * 2 * time.Second
		}

		f.logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(apiErr).
			Msg("Retrying Gemini API call")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if apiErr != nil {
		return nil, fmt.Errorf("Gemini API call failed after %d retries: %w", retryConfig.MaxRetries, apiErr)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}
	responseText := resp.Text()
	if responseText == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}

	return &interfaces.ContentResponse{
		Text:     responseText,
		Provider: string(ProviderGemini),
		Model:    f.geminiConfig.Model,
	}, nil
}

// Close resets all provider clients
func (f *ProviderFactory) Close() error {
	f.geminiClient = nil
	f.claudeClient = anthropic.Client{}
	f.claudeReady = false
	return nil
}

// embedSchemaInSystemPrompt appends the schema contract for providers
// without native structured output.
func embedSchemaInSystemPrompt(system string, schema map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(system)
	if system != "" {
		b.WriteString("\n\n")
	}
	b.WriteString("Respond with a single JSON object conforming to this JSON schema. ")
	b.WriteString("No prose, no markdown fences, JSON only.\n")
	b.WriteString(renderSchemaJSON(schema))
	return b.String()
}

// convertToGenaiSchema converts a map[string]interface{} JSON schema to a
// genai.Schema, recursing into properties and items.
func convertToGenaiSchema(schemaMap map[string]interface{}) (*genai.Schema, error) {
	if len(schemaMap) == 0 {
		return nil, nil
	}

	schema := &genai.Schema{}

	if typeStr, ok := schemaMap["type"].(string); ok {
		switch strings.ToLower(typeStr) {
		case "object":
			schema.Type = genai.TypeObject
		case "array":
			schema.Type = genai.TypeArray
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		}
	}

	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}

	if enumVals, ok := schemaMap["enum"].([]interface{}); ok {
		for _, v := range enumVals {
			if s, ok := v.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	} else if enumVals, ok := schemaMap["enum"].([]string); ok {
		schema.Enum = enumVals
	}

	if reqVals, ok := schemaMap["required"].([]interface{}); ok {
		for _, v := range reqVals {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	} else if reqVals, ok := schemaMap["required"].([]string); ok {
		schema.Required = reqVals
	}

	if props, ok := schemaMap["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			propMap, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("property %q is not a schema object", name)
			}
			propSchema, err := convertToGenaiSchema(propMap)
			if err != nil {
				return nil, err
			}
			schema.Properties[name] = propSchema
		}
	}

	if items, ok := schemaMap["items"].(map[string]interface{}); ok {
		itemSchema, err := convertToGenaiSchema(items)
		if err != nil {
			return nil, err
		}
		schema.Items = itemSchema
	}

	if maxItems, ok := toInt64(schemaMap["maxItems"]); ok {
		schema.MaxItems = genai.Ptr(maxItems)
	}
	if minItems, ok := toInt64(schemaMap["minItems"]); ok {
		schema.MinItems = genai.Ptr(minItems)
	}

	return schema, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
