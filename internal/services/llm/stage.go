package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/models"
)

// StageService runs budgeted, schema-validated calls for wizard stages.
// The provider returns text; this layer owns fence stripping, JSON parsing,
// schema validation and the single repair retry.
type StageService struct {
	provider interfaces.LLMProvider
	config   *common.Config
	logger   arbor.ILogger
}

// NewStageService creates the stage caller over the given provider.
// With LLM_MOCK enabled the provider should be the mock.
func NewStageService(provider interfaces.LLMProvider, config *common.Config, logger arbor.ILogger) *StageService {
	return &StageService{
		provider: provider,
		config:   config,
		logger:   logger,
	}
}

// CallStage executes one stage call. User text in req.UserPrompt is
// sanitized before it reaches the provider. On schema-invalid output the
// model gets one repair turn quoting the violation; a second failure
// surfaces as models.LLMInvalidError with the raw text attached.
func (s *StageService) CallStage(ctx context.Context, stage string, req interfaces.ContentRequest) (*interfaces.StageResult, error) {
	budget := s.config.StageBudgetFor(stage)
	if req.MaxTokens <= 0 {
		req.MaxTokens = budget.MaxTokens
	}
	req.UserPrompt = common.SanitizePromptText(req.UserPrompt)

	ctx = WithStage(ctx, stage)

	resp, err := s.provider.GenerateContent(ctx, req)
	if err != nil {
		return nil, models.NewAppError(models.ErrKindUnavailable, "llm call failed").
			WithSuggestion("retry later or switch provider").WithCause(err)
	}

	result, verr := s.parseAndValidate(stage, resp, req.OutputSchema)
	if verr == nil {
		return result, nil
	}

	repaired := false
	lastRaw := resp.Text
	for attempt := 0; attempt < budget.MaxRetries; attempt++ {
		s.logger.Warn().
			Str("stage", stage).
			Int("attempt", attempt+1).
			Err(verr).
			Msg("Stage output failed schema validation, requesting repair")

		repairReq := req
		repairReq.UserPrompt = buildRepairPrompt(req.UserPrompt, lastRaw, verr)

		resp, err = s.provider.GenerateContent(ctx, repairReq)
		if err != nil {
			return nil, models.NewAppError(models.ErrKindUnavailable, "llm repair call failed").
				WithSuggestion("retry later or switch provider").WithCause(err)
		}
		lastRaw = resp.Text

		result, verr = s.parseAndValidate(stage, resp, req.OutputSchema)
		if verr == nil {
			repaired = true
			break
		}
	}

	if verr != nil {
		s.logger.Error().
			Str("stage", stage).
			Err(verr).
			Msg("Stage output invalid after repair")
		return nil, models.NewAppError(models.ErrKindLLMInvalid, "model output did not match the expected shape").
			WithDetails(&models.LLMInvalidError{
				Stage:   stage,
				Reason:  verr.Error(),
				RawText: common.Truncate(lastRaw, 4096),
			}).
			WithSuggestion("re-run the stage; persistent failures indicate a prompt or schema problem")
	}

	result.Repaired = repaired
	return result, nil
}

// parseAndValidate turns raw model text into a schema-checked object
func (s *StageService) parseAndValidate(stage string, resp *interfaces.ContentResponse, schema map[string]interface{}) (*interfaces.StageResult, error) {
	text := StripCodeFences(resp.Text)

	var output map[string]interface{}
	if err := json.Unmarshal([]byte(text), &output); err != nil {
		return nil, fmt.Errorf("output is not a JSON object: %w", err)
	}

	if len(schema) > 0 {
		if err := ValidateAgainstSchema(output, schema); err != nil {
			return nil, err
		}
	}

	return &interfaces.StageResult{
		Output:   output,
		RawText:  text,
		Provider: resp.Provider,
		Model:    resp.Model,
		Mocked:   resp.Mocked,
	}, nil
}

// buildRepairPrompt asks the model to fix its previous output in place
func buildRepairPrompt(original, invalid string, verr error) string {
	return fmt.Sprintf(
		"%s\n\nYour previous answer was rejected: %s\n\nPrevious answer:\n%s\n\nReturn the corrected JSON object only.",
		original, verr.Error(), common.Truncate(invalid, 8000))
}
