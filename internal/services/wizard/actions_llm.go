package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/models"
	"github.com/ternarybob/tailor/internal/services/stages"
)

// targetLanguage resolves the output language, defaulting to English until
// the selection stage has run.
func targetLanguage(sess *models.Session) string {
	if sess.Wizard.TargetLanguage != "" {
		return sess.Wizard.TargetLanguage
	}
	return "en"
}

// stageProposalKey keys the proposal cache: stage plus a hash over the
// inputs that feed the stage. Re-running with unchanged inputs is a cache
// hit, not a second model call.
func stageProposalKey(sess *models.Session, stage string) string {
	var postingSig string
	if sess.JobPosting != nil {
		postingSig = sess.JobPosting.Signature
	}
	cvJSON, _ := json.Marshal(sess.CV)
	return fmt.Sprintf("%s:%s", stage,
		common.HashString(string(cvJSON)+"|"+postingSig+"|"+targetLanguage(sess)))
}

func (d *Dispatcher) cacheProposal(sess *models.Session, stage, key string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	sess.ProposalCache[key] = models.Proposal{
		Stage:     stage,
		InputHash: key,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}
}

func (d *Dispatcher) cachedProposal(sess *models.Session, key string, target interface{}) bool {
	p, ok := sess.ProposalCache[key]
	if !ok {
		return false
	}
	return json.Unmarshal(p.Payload, target) == nil
}

func (d *Dispatcher) recordStageAudit(sess *models.Session, stage string, callMeta *stages.CallMeta) {
	if callMeta == nil {
		return
	}
	d.sessions.RecordAudit(sess, models.PromptAuditEntry{
		Stage:      stage,
		Provider:   callMeta.Provider,
		Model:      callMeta.Model,
		PromptHash: callMeta.PromptHash,
		InputHash:  callMeta.InputHash,
		OutputHash: callMeta.OutputHash,
		Repaired:   callMeta.Repaired,
		Mocked:     callMeta.Mocked,
		At:         callMeta.At,
	})
}

// selectLanguage fixes the target language for the session
func (d *Dispatcher) selectLanguage(sess *models.Session, req *ActionRequest) (*ActionResult, error) {
	if !models.IsSupportedLanguage(req.Language) {
		return nil, models.NewAppError(models.ErrKindBadRequest,
			fmt.Sprintf("language %q is not supported", req.Language)).
			WithDetails(map[string]interface{}{"supported": models.SupportedLanguages})
	}
	sess.Wizard.TargetLanguage = req.Language
	if sess.Wizard.SourceLanguage == "" {
		// Until translation detects otherwise, assume the source matches
		// what the cv claims, else English.
		if sess.CV.Language != "" {
			sess.Wizard.SourceLanguage = sess.CV.Language
		} else {
			sess.Wizard.SourceLanguage = "en"
		}
	}
	return &ActionResult{Message: "target language set to " + req.Language}, nil
}

// submitJobPosting extracts and caches the posting. A resubmission with
// the same content is recognized by signature and never calls the model.
func (d *Dispatcher) submitJobPosting(ctx context.Context, sess *models.Session, req *ActionRequest) (*ActionResult, error) {
	var text string
	var err error
	switch {
	case req.PostingURL != "":
		text, err = d.extractor.ExtractFromURL(ctx, req.PostingURL)
	case req.PostingText != "":
		text, err = d.extractor.ExtractFromHTML(req.PostingText)
	default:
		return nil, models.NewAppError(models.ErrKindBadRequest, "posting_url or posting_text is required")
	}
	if err != nil {
		return nil, models.NewAppError(models.ErrKindBadRequest, "job posting could not be read").
			WithSuggestion("check the URL, or paste the posting text directly").WithCause(err)
	}
	if len(text) < 50 {
		return nil, models.NewAppError(models.ErrKindValidation, "job posting text is too short to extract from")
	}

	signature := common.HashString(text)
	if sess.JobPosting != nil && sess.JobPosting.Signature == signature {
		return &ActionResult{
			Proposal: sess.JobPosting,
			CacheHit: true,
			Message:  "posting unchanged, cached extraction reused",
		}, nil
	}

	posting, callMeta, err := d.engine.ExtractJobPosting(ctx, text)
	if err != nil {
		return nil, err
	}
	if req.PostingURL != "" {
		posting.SourceURL = req.PostingURL
	}
	d.recordStageAudit(sess, stages.StageJobPosting, callMeta)

	// A different posting invalidates every tailoring proposal
	sess.JobPosting = posting
	sess.ProposalCache = make(map[string]models.Proposal)
	sess.Wizard.StageStates[models.StageWorkExperience] = false
	sess.Wizard.StageStates[models.StageSkills] = false

	return &ActionResult{Proposal: posting, Message: "job posting extracted"}, nil
}

// runTranslate moves the session to the target-language state. The original
// state is captured before the first translation and never overwritten by
// translation output; re-running with the same source content and language
// is served from the translation cache.
func (d *Dispatcher) runTranslate(ctx context.Context, sess *models.Session, req *ActionRequest) (*ActionResult, error) {
	target := targetLanguage(sess)
	source := sess.Wizard.SourceLanguage
	if source == "" {
		source = "en"
	}

	if source == target {
		sess.Wizard.ActiveStateID = models.SnapshotOriginal
		return &ActionResult{Message: "source and target language match, nothing to translate"}, nil
	}

	cvJSON, err := json.Marshal(sess.CV)
	if err != nil {
		return nil, err
	}
	sourceHash := common.HashString(string(cvJSON))
	cacheKey := sourceHash + ":" + target

	if sess.Wizard.TranslationCache == nil {
		sess.Wizard.TranslationCache = make(map[string]string)
	}
	if stateID, ok := sess.Wizard.TranslationCache[cacheKey]; ok {
		if raw, exists := sess.Snapshots.States[stateID]; exists {
			var cached models.CVData
			if json.Unmarshal(raw, &cached) == nil {
				sess.CV = &cached
				sess.Wizard.ActiveStateID = stateID
				return &ActionResult{CacheHit: true, Message: "translation served from cache"}, nil
			}
		}
	}

	// Preserve the untranslated state exactly once
	if _, exists := sess.Snapshots.States[models.SnapshotOriginal]; !exists {
		sess.Snapshots.States[models.SnapshotOriginal] = json.RawMessage(cvJSON)
	}

	translated, callMeta, err := d.engine.Translate(ctx, sess.CV, source, target)
	if err != nil {
		return nil, err
	}
	d.recordStageAudit(sess, stages.StageTranslate, callMeta)

	stateID := models.SnapshotTranslated(target)
	translatedJSON, err := json.Marshal(translated)
	if err != nil {
		return nil, err
	}
	sess.Snapshots.States[stateID] = translatedJSON
	sess.Wizard.TranslationCache[cacheKey] = stateID
	sess.Wizard.ActiveStateID = stateID
	sess.CV = translated

	return &ActionResult{Message: fmt.Sprintf("cv translated to %s", target)}, nil
}

// runWorkTailor proposes the tailored work section without touching the cv
func (d *Dispatcher) runWorkTailor(ctx context.Context, sess *models.Session) (*ActionResult, error) {
	if sess.JobPosting == nil {
		return nil, models.NewAppError(models.ErrKindReadiness, "no job posting to tailor against").
			WithSuggestion("submit the job posting first")
	}
	if len(sess.CV.WorkExperience) == 0 {
		return nil, models.NewAppError(models.ErrKindReadiness, "the cv has no work experience to tailor").
			WithSuggestion("add roles with update_field first")
	}

	key := stageProposalKey(sess, "work_experience")
	var cached stages.WorkProposal
	if d.cachedProposal(sess, key, &cached) {
		return &ActionResult{Proposal: &cached, CacheHit: true}, nil
	}

	proposal, callMeta, err := d.engine.TailorWork(ctx, sess.CV, sess.JobPosting, targetLanguage(sess))
	if err != nil {
		return nil, err
	}
	d.recordStageAudit(sess, stages.StageWork, callMeta)
	d.cacheProposal(sess, "work_experience", key, proposal)

	return &ActionResult{Proposal: proposal, Message: "work experience proposal ready"}, nil
}

// acceptWorkTailor replaces the work section with the cached proposal
func (d *Dispatcher) acceptWorkTailor(sess *models.Session) (*ActionResult, error) {
	key := stageProposalKey(sess, "work_experience")
	var proposal stages.WorkProposal
	if !d.cachedProposal(sess, key, &proposal) {
		return nil, models.NewAppError(models.ErrKindStage, "no work experience proposal to accept").
			WithSuggestion("run tailoring first")
	}

	sess.CV.WorkExperience = proposal.Roles
	sess.Wizard.StageStates[models.StageWorkExperience] = true
	delete(sess.ProposalCache, key)
	return &ActionResult{Message: "work experience proposal accepted"}, nil
}

// runSkills proposes the two skill lists
func (d *Dispatcher) runSkills(ctx context.Context, sess *models.Session) (*ActionResult, error) {
	if sess.JobPosting == nil {
		return nil, models.NewAppError(models.ErrKindReadiness, "no job posting to tailor against").
			WithSuggestion("submit the job posting first")
	}

	key := stageProposalKey(sess, "skills")
	var cached stages.SkillsProposal
	if d.cachedProposal(sess, key, &cached) {
		return &ActionResult{Proposal: &cached, CacheHit: true}, nil
	}

	proposal, callMeta, err := d.engine.TailorSkills(ctx, sess.CV, sess.JobPosting, targetLanguage(sess))
	if err != nil {
		return nil, err
	}
	d.recordStageAudit(sess, stages.StageSkills, callMeta)
	d.cacheProposal(sess, "skills", key, proposal)

	return &ActionResult{Proposal: proposal, Message: "skills proposal ready"}, nil
}

// acceptSkills replaces both skill lists with the cached proposal
func (d *Dispatcher) acceptSkills(sess *models.Session) (*ActionResult, error) {
	key := stageProposalKey(sess, "skills")
	var proposal stages.SkillsProposal
	if !d.cachedProposal(sess, key, &proposal) {
		return nil, models.NewAppError(models.ErrKindStage, "no skills proposal to accept").
			WithSuggestion("run the skills stage first")
	}

	sess.CV.ITAISkills = proposal.ITAISkills
	sess.CV.TechnicalOperationalSkills = proposal.TechnicalOperationalSkills
	sess.Wizard.StageStates[models.StageSkills] = true
	delete(sess.ProposalCache, key)
	return &ActionResult{Message: "skills proposal accepted"}, nil
}

// runFurther proposes the further-experience section
func (d *Dispatcher) runFurther(ctx context.Context, sess *models.Session) (*ActionResult, error) {
	if sess.JobPosting == nil {
		return nil, models.NewAppError(models.ErrKindReadiness, "no job posting to tailor against").
			WithSuggestion("submit the job posting first")
	}
	if len(sess.CV.FurtherExperience) == 0 {
		return &ActionResult{Message: "no further experience on the cv, nothing to tailor"}, nil
	}

	key := stageProposalKey(sess, "further")
	var cached stages.FurtherProposal
	if d.cachedProposal(sess, key, &cached) {
		return &ActionResult{Proposal: &cached, CacheHit: true}, nil
	}

	proposal, callMeta, err := d.engine.TailorFurther(ctx, sess.CV, sess.JobPosting, targetLanguage(sess))
	if err != nil {
		return nil, err
	}
	d.recordStageAudit(sess, stages.StageFurther, callMeta)
	d.cacheProposal(sess, "further", key, proposal)

	return &ActionResult{Proposal: proposal, Message: "further experience proposal ready"}, nil
}

// acceptFurther replaces the section wholesale with the cached proposal
func (d *Dispatcher) acceptFurther(sess *models.Session) (*ActionResult, error) {
	key := stageProposalKey(sess, "further")
	var proposal stages.FurtherProposal
	if !d.cachedProposal(sess, key, &proposal) {
		return nil, models.NewAppError(models.ErrKindStage, "no further experience proposal to accept").
			WithSuggestion("run the further experience stage first")
	}

	sess.CV.FurtherExperience = proposal.Projects
	delete(sess.ProposalCache, key)
	return &ActionResult{Message: "further experience proposal accepted"}, nil
}

// runCoverLetter drafts the letter markdown. The draft lives in the
// proposal cache until generation renders it; drafting is blocked by the
// same readiness gate as the résumé itself.
func (d *Dispatcher) runCoverLetter(ctx context.Context, sess *models.Session, req *ActionRequest) (*ActionResult, error) {
	if unmet := CheckGenerateCoverLetter(sess); len(unmet) > 0 {
		return nil, models.NewAppError(models.ErrKindReadiness, "the cv is not ready for a cover letter").
			WithDetails(map[string]interface{}{"unmet": unmet}).
			WithSuggestion("complete the listed requirements first")
	}

	letter, callMeta, err := d.engine.GenerateCoverLetter(ctx, sess.CV, sess.JobPosting, targetLanguage(sess), req.Notes)
	if err != nil {
		return nil, err
	}
	d.recordStageAudit(sess, stages.StageCoverLetter, callMeta)
	d.cacheProposal(sess, "cover_letter", "cover_letter", letter)

	return &ActionResult{Proposal: letter, Letter: letter.Markdown, Message: "cover letter drafted"}, nil
}
