package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/models"
)

// Engine runs the LLM-backed wizard stages. Every method is a pure function
// of its inputs plus one stage call: prompt in, guarded typed proposal out.
// Session state, caching and persistence stay with the session service.
type Engine struct {
	caller interfaces.StageCaller
	logger arbor.ILogger
}

// NewEngine creates the stage engine over a stage caller
func NewEngine(caller interfaces.StageCaller, logger arbor.ILogger) *Engine {
	return &Engine{caller: caller, logger: logger}
}

// WorkProposal is the typed work-experience stage output
type WorkProposal struct {
	Roles []models.WorkRole `json:"roles"`
}

// SkillsProposal is the typed skills stage output
type SkillsProposal struct {
	ITAISkills                 []string `json:"it_ai_skills"`
	TechnicalOperationalSkills []string `json:"technical_operational_skills"`
}

// FurtherProposal is the typed further-experience stage output
type FurtherProposal struct {
	Projects []models.Project `json:"projects"`
}

// EducationProposal is the typed education stage output
type EducationProposal struct {
	Education []models.EducationEntry `json:"education"`
}

// CoverLetterResult is the typed cover-letter stage output
type CoverLetterResult struct {
	Subject  string `json:"subject,omitempty"`
	Markdown string `json:"markdown"`
}

// CallMeta records provenance of the underlying stage call
type CallMeta struct {
	Provider   string
	Model      string
	Repaired   bool
	Mocked     bool
	PromptHash string
	InputHash  string
	OutputHash string
	At         time.Time
}

// ExtractJobPosting turns bounded posting text into the cached structured
// summary. The signature over the raw input is the caller's cache key.
func (e *Engine) ExtractJobPosting(ctx context.Context, postingText string) (*models.JobPosting, *CallMeta, error) {
	req := interfaces.ContentRequest{
		SystemPrompt: jobPostingSystemPrompt,
		UserPrompt:   buildJobPostingPrompt(postingText),
		OutputSchema: jobPostingSchema,
	}

	result, err := e.caller.CallStage(ctx, StageJobPosting, req)
	if err != nil {
		return nil, nil, err
	}

	var posting models.JobPosting
	if err := decodeOutput(result.Output, &posting); err != nil {
		return nil, nil, invalidOutput(StageJobPosting, result, err)
	}
	posting.RawText = postingText
	posting.Signature = common.HashString(postingText)
	posting.FetchedAt = time.Now().UTC()

	e.logger.Info().
		Str("role", posting.RoleTitle).
		Str("company", posting.Company).
		Int("requirements", len(posting.Requirements)).
		Msg("Job posting extracted")

	return &posting, meta(req, result), nil
}

// TailorWork proposes the tailored work-experience section
func (e *Engine) TailorWork(ctx context.Context, cv *models.CVData, posting *models.JobPosting, lang string) (*WorkProposal, *CallMeta, error) {
	req := interfaces.ContentRequest{
		SystemPrompt: workSystemPrompt,
		UserPrompt:   buildWorkPrompt(cv, posting, lang),
		OutputSchema: workSchema,
	}

	result, err := e.caller.CallStage(ctx, StageWork, req)
	if err != nil {
		return nil, nil, err
	}

	var proposal WorkProposal
	if err := decodeOutput(result.Output, &proposal); err != nil {
		return nil, nil, invalidOutput(StageWork, result, err)
	}
	if err := guardWorkProposal(cv.WorkExperience, proposal.Roles); err != nil {
		return nil, nil, invalidOutput(StageWork, result, err)
	}

	return &proposal, meta(req, result), nil
}

// TailorSkills proposes the two disjoint skill lists
func (e *Engine) TailorSkills(ctx context.Context, cv *models.CVData, posting *models.JobPosting, lang string) (*SkillsProposal, *CallMeta, error) {
	req := interfaces.ContentRequest{
		SystemPrompt: skillsSystemPrompt,
		UserPrompt:   buildSkillsPrompt(cv, posting, lang),
		OutputSchema: skillsSchema,
	}

	result, err := e.caller.CallStage(ctx, StageSkills, req)
	if err != nil {
		return nil, nil, err
	}

	var proposal SkillsProposal
	if err := decodeOutput(result.Output, &proposal); err != nil {
		return nil, nil, invalidOutput(StageSkills, result, err)
	}
	if err := guardSkills(proposal.ITAISkills, proposal.TechnicalOperationalSkills); err != nil {
		return nil, nil, invalidOutput(StageSkills, result, err)
	}

	return &proposal, meta(req, result), nil
}

// TailorFurther proposes the further-experience section; replaces wholesale
func (e *Engine) TailorFurther(ctx context.Context, cv *models.CVData, posting *models.JobPosting, lang string) (*FurtherProposal, *CallMeta, error) {
	req := interfaces.ContentRequest{
		SystemPrompt: furtherSystemPrompt,
		UserPrompt:   buildFurtherPrompt(cv, posting, lang),
		OutputSchema: furtherSchema,
	}

	result, err := e.caller.CallStage(ctx, StageFurther, req)
	if err != nil {
		return nil, nil, err
	}

	var proposal FurtherProposal
	if err := decodeOutput(result.Output, &proposal); err != nil {
		return nil, nil, invalidOutput(StageFurther, result, err)
	}
	if err := guardFurtherProposal(cv.FurtherExperience, proposal.Projects); err != nil {
		return nil, nil, invalidOutput(StageFurther, result, err)
	}

	return &proposal, meta(req, result), nil
}

// RefineEducation normalizes the education section
func (e *Engine) RefineEducation(ctx context.Context, cv *models.CVData, lang string) (*EducationProposal, *CallMeta, error) {
	req := interfaces.ContentRequest{
		SystemPrompt: educationSystemPrompt,
		UserPrompt:   buildEducationPrompt(cv, lang),
		OutputSchema: educationSchema,
	}

	result, err := e.caller.CallStage(ctx, StageEducation, req)
	if err != nil {
		return nil, nil, err
	}

	var proposal EducationProposal
	if err := decodeOutput(result.Output, &proposal); err != nil {
		return nil, nil, invalidOutput(StageEducation, result, err)
	}
	if err := guardEducationProposal(cv.Education, proposal.Education); err != nil {
		return nil, nil, invalidOutput(StageEducation, result, err)
	}

	return &proposal, meta(req, result), nil
}

// Translate renders the whole CV into the target language. The caller owns
// snapshotting and the (source hash, language) cache.
func (e *Engine) Translate(ctx context.Context, cv *models.CVData, sourceLang, targetLang string) (*models.CVData, *CallMeta, error) {
	req := interfaces.ContentRequest{
		SystemPrompt: translateSystemPrompt,
		UserPrompt:   buildTranslatePrompt(cv, sourceLang, targetLang),
		OutputSchema: translateSchema,
	}

	result, err := e.caller.CallStage(ctx, StageTranslate, req)
	if err != nil {
		return nil, nil, err
	}

	var wrapper struct {
		CV *models.CVData `json:"cv"`
	}
	if err := decodeOutput(result.Output, &wrapper); err != nil {
		return nil, nil, invalidOutput(StageTranslate, result, err)
	}
	if err := guardTranslation(cv, wrapper.CV); err != nil {
		return nil, nil, invalidOutput(StageTranslate, result, err)
	}

	translated := wrapper.CV
	translated.Language = targetLang
	// Identity fields never pass through the model
	translated.PhotoURL = cv.PhotoURL

	return translated, meta(req, result), nil
}

// GenerateCoverLetter produces the cover-letter markdown
func (e *Engine) GenerateCoverLetter(ctx context.Context, cv *models.CVData, posting *models.JobPosting, lang, notes string) (*CoverLetterResult, *CallMeta, error) {
	req := interfaces.ContentRequest{
		SystemPrompt: coverLetterSystemPrompt,
		UserPrompt:   buildCoverLetterPrompt(cv, posting, lang, notes),
		OutputSchema: coverLetterSchema,
	}

	result, err := e.caller.CallStage(ctx, StageCoverLetter, req)
	if err != nil {
		return nil, nil, err
	}

	var letter CoverLetterResult
	if err := decodeOutput(result.Output, &letter); err != nil {
		return nil, nil, invalidOutput(StageCoverLetter, result, err)
	}
	if letter.Markdown == "" {
		return nil, nil, invalidOutput(StageCoverLetter, result, fmt.Errorf("empty cover letter body"))
	}

	return &letter, meta(req, result), nil
}

// decodeOutput remarshals the generic stage output into a typed struct
func decodeOutput(output map[string]interface{}, target interface{}) error {
	data, err := json.Marshal(output)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// invalidOutput wraps a guard or decode failure as llm_invalid with the raw
// model text preserved for diagnosis.
func invalidOutput(stage string, result *interfaces.StageResult, err error) error {
	return models.NewAppError(models.ErrKindLLMInvalid, "stage output rejected").
		WithDetails(&models.LLMInvalidError{
			Stage:   stage,
			Reason:  err.Error(),
			RawText: common.Truncate(result.RawText, 4096),
		}).
		WithSuggestion("re-run the stage")
}

// meta assembles the audit record for a completed call
func meta(req interfaces.ContentRequest, result *interfaces.StageResult) *CallMeta {
	return &CallMeta{
		Provider:   result.Provider,
		Model:      result.Model,
		Repaired:   result.Repaired,
		Mocked:     result.Mocked,
		PromptHash: common.HashString(req.SystemPrompt),
		InputHash:  common.HashString(req.UserPrompt),
		OutputHash: common.HashString(result.RawText),
		At:         time.Now().UTC(),
	}
}
