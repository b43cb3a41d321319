package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/models"
	"github.com/ternarybob/tailor/internal/services/cleanup"
	"github.com/ternarybob/tailor/internal/services/session"
	"github.com/ternarybob/tailor/internal/services/validation"
	"github.com/ternarybob/tailor/internal/services/wizard"
)

// Result is what a tool call hands back to its transport. Exactly one of
// JSON, PDF or HTML is populated; PDFName names the download when PDF is.
type Result struct {
	JSON    interface{}
	PDF     []byte
	PDFName string
	HTML    string
}

// Service is the tool registry shared by the HTTP tool-call endpoint and
// the MCP server: one name, one argument shape, one behavior on both
// transports.
type Service struct {
	dispatcher *wizard.Dispatcher
	sessions   *session.Service
	storage    interfaces.SessionStorage
	validator  *validation.CVValidator
	renderer   interfaces.CVRenderer
	cleaner    *cleanup.Service
	logger     arbor.ILogger
}

func NewService(
	dispatcher *wizard.Dispatcher,
	sessions *session.Service,
	storage interfaces.SessionStorage,
	validator *validation.CVValidator,
	renderer interfaces.CVRenderer,
	cleaner *cleanup.Service,
	logger arbor.ILogger,
) *Service {
	return &Service{
		dispatcher: dispatcher,
		sessions:   sessions,
		storage:    storage,
		validator:  validator,
		renderer:   renderer,
		cleaner:    cleaner,
		logger:     logger,
	}
}

// actionByTool maps tool names straight onto wizard actions. Tools with
// richer behavior (search, preview, orchestration) are handled explicitly
// in Call.
var actionByTool = map[string]string{
	"bootstrap_session":                  models.ActionBootstrap,
	"select_language":                    models.ActionSelectLanguage,
	"update_field":                       models.ActionUpdateField,
	"submit_job_posting":                 models.ActionJobPostingSubmit,
	"run_translation":                    models.ActionTranslateRun,
	"tailor_work_experience":             models.ActionWorkTailorRun,
	"accept_work_experience":             models.ActionWorkTailorAccept,
	"edit_work_experience":               models.ActionWorkTailorEdit,
	"tailor_skills":                      models.ActionSkillsRun,
	"accept_skills":                      models.ActionSkillsAccept,
	"tailor_further_experience":          models.ActionFurtherRun,
	"accept_further_experience":          models.ActionFurtherAccept,
	"draft_cover_letter":                 models.ActionCoverLetterRun,
	"goto_stage":                         models.ActionGotoStage,
	"next_stage":                         models.ActionNext,
	"generate_cv_from_session":           models.ActionGenerateCV,
	"generate_cover_letter_from_session": models.ActionGenerateCoverLetter,
}

// ToolNames lists every registered tool, wizard actions included
func ToolNames() []string {
	names := []string{
		"get_session",
		"confirm_section",
		"generate_context_pack",
		"session_search",
		"validate_cv",
		"preview_html",
		"process_cv_orchestrated",
		"cleanup_expired_sessions",
	}
	for name := range actionByTool {
		names = append(names, name)
	}
	return names
}

// Call executes one named tool. Arguments arrive as raw JSON so each tool
// decodes exactly the shape it documents.
func (s *Service) Call(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	s.logger.Debug().Str("tool", name).Msg("Tool call")

	if action, ok := actionByTool[name]; ok {
		return s.callAction(ctx, action, args)
	}

	switch name {
	case "get_session":
		return s.getSession(ctx, args)
	case "confirm_section":
		return s.confirmSection(ctx, args)
	case "generate_context_pack":
		return s.contextPack(ctx, args)
	case "session_search":
		return s.sessionSearch(ctx, args)
	case "validate_cv":
		return s.validateCV(ctx, args)
	case "preview_html":
		return s.previewHTML(ctx, args)
	case "process_cv_orchestrated":
		return s.processOrchestrated(ctx, args)
	case "cleanup_expired_sessions":
		return s.cleanupExpired(ctx)
	}
	return nil, models.NewAppError(models.ErrKindBadRequest, "unknown tool "+name)
}

func decodeArgs(args json.RawMessage, into interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, into); err != nil {
		return models.NewAppError(models.ErrKindBadRequest, "invalid tool arguments").WithCause(err)
	}
	return nil
}

// callAction forwards to the wizard dispatcher. Generate tools return the
// raw PDF; everything else returns the action result as JSON.
func (s *Service) callAction(ctx context.Context, action string, args json.RawMessage) (*Result, error) {
	var req wizard.ActionRequest
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	req.Action = action

	res, err := s.dispatcher.Dispatch(ctx, &req)
	if err != nil {
		return nil, err
	}

	if len(res.PDFBytes) > 0 {
		kind := "cv"
		if action == models.ActionGenerateCoverLetter {
			kind = "cover_letter"
		}
		return &Result{
			PDF:     res.PDFBytes,
			PDFName: fmt.Sprintf("%s_%s.pdf", kind, res.SessionID),
			JSON:    res,
		}, nil
	}
	return &Result{JSON: res}, nil
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

func (s *Service) loadSession(ctx context.Context, args json.RawMessage) (*models.Session, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.SessionID == "" {
		return nil, models.NewAppError(models.ErrKindBadRequest, "session_id is required")
	}
	return s.sessions.Load(ctx, a.SessionID)
}

func (s *Service) getSession(ctx context.Context, args json.RawMessage) (*Result, error) {
	sess, err := s.loadSession(ctx, args)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{
		"session_id":        sess.SessionID,
		"stage":             sess.Wizard.Stage,
		"version":           sess.Version,
		"content_signature": sess.ContentSignature,
		"cv":                sess.CV,
		"wizard":            sess.Wizard,
		"job_posting":       sess.JobPosting,
		"pdf_refs":          sess.PDFRefs,
		"expires_at":        sess.ExpiresAt,
	}
	// Extracted contact values awaiting confirmation, so the client can
	// present them before confirm_section applies them.
	if sess.Prefill != nil && len(sess.Wizard.DocxPrefillUnconfirmed) > 0 {
		out["docx_prefill"] = sess.Prefill.Contact
	}
	return &Result{JSON: out}, nil
}

// confirmSection routes the section name onto the matching confirm action
func (s *Service) confirmSection(ctx context.Context, args json.RawMessage) (*Result, error) {
	var a struct {
		SessionID string `json:"session_id"`
		Section   string `json:"section"`
		Refine    bool   `json:"refine,omitempty"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	var action string
	switch a.Section {
	case "contact":
		action = models.ActionConfirmContact
	case "education":
		action = models.ActionConfirmEdu
	default:
		return nil, models.NewAppError(models.ErrKindBadRequest,
			fmt.Sprintf("section %q cannot be confirmed, use \"contact\" or \"education\"", a.Section))
	}

	res, err := s.dispatcher.Dispatch(ctx, &wizard.ActionRequest{
		SessionID: a.SessionID,
		Action:    action,
		Refine:    a.Refine,
	})
	if err != nil {
		return nil, err
	}
	return &Result{JSON: res}, nil
}

func (s *Service) contextPack(ctx context.Context, args json.RawMessage) (*Result, error) {
	sess, err := s.loadSession(ctx, args)
	if err != nil {
		return nil, err
	}
	return &Result{JSON: wizard.BuildContextPack(sess)}, nil
}

func (s *Service) sessionSearch(ctx context.Context, args json.RawMessage) (*Result, error) {
	var a struct {
		Query string `json:"query"`
		Limit int    `json:"limit,omitempty"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Query == "" {
		return nil, models.NewAppError(models.ErrKindBadRequest, "query is required")
	}

	ids, err := s.storage.Search(ctx, a.Query, a.Limit)
	if err != nil {
		return nil, err
	}
	return &Result{JSON: map[string]interface{}{
		"query":       a.Query,
		"session_ids": ids,
		"count":       len(ids),
	}}, nil
}

func (s *Service) validateCV(ctx context.Context, args json.RawMessage) (*Result, error) {
	sess, err := s.loadSession(ctx, args)
	if err != nil {
		return nil, err
	}
	return &Result{JSON: s.validator.Validate(sess.CV)}, nil
}

func (s *Service) previewHTML(ctx context.Context, args json.RawMessage) (*Result, error) {
	sess, err := s.loadSession(ctx, args)
	if err != nil {
		return nil, err
	}
	html, err := s.renderer.PreviewHTML(sess)
	if err != nil {
		return nil, err
	}
	return &Result{HTML: html}, nil
}

func (s *Service) cleanupExpired(ctx context.Context) (*Result, error) {
	if s.cleaner == nil {
		return nil, models.NewAppError(models.ErrKindBadRequest, "cleanup is not configured")
	}
	removed, err := s.cleaner.Sweep(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{JSON: map[string]interface{}{
		"removed":  removed,
		"swept_at": time.Now().UTC(),
	}}, nil
}

// orchestratedArgs is the one-shot pipeline input: a complete cv plus a
// posting, no interactive confirmation round-trips.
type orchestratedArgs struct {
	CVData      *models.CVData `json:"cv_data"`
	Language    string         `json:"language,omitempty"`
	PostingText string         `json:"posting_text,omitempty"`
	PostingURL  string         `json:"posting_url,omitempty"`
	CoverLetter bool           `json:"cover_letter,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

// processOrchestrated runs the whole wizard for batch callers: bootstrap,
// confirm the provided sections, run every tailoring stage, generate. The
// same gates apply as in the interactive flow; the orchestration just
// walks them in order.
func (s *Service) processOrchestrated(ctx context.Context, args json.RawMessage) (*Result, error) {
	var a orchestratedArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.CVData == nil {
		return nil, models.NewAppError(models.ErrKindBadRequest, "cv_data is required")
	}
	if a.PostingText == "" && a.PostingURL == "" {
		return nil, models.NewAppError(models.ErrKindBadRequest, "posting_text or posting_url is required")
	}
	if a.Language == "" {
		a.Language = "en"
	}

	boot, err := s.dispatcher.Dispatch(ctx, &wizard.ActionRequest{Action: models.ActionBootstrap})
	if err != nil {
		return nil, err
	}
	sid := boot.SessionID
	traceID := common.NewTraceID()

	step := func(req *wizard.ActionRequest) (*wizard.ActionResult, error) {
		req.SessionID = sid
		req.TraceID = traceID
		res, err := s.dispatcher.Dispatch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("orchestration step %s: %w", req.Action, err)
		}
		return res, nil
	}

	cvJSON, err := json.Marshal(a.CVData)
	if err != nil {
		return nil, models.NewAppError(models.ErrKindBadRequest, "cv_data is not serializable").WithCause(err)
	}

	steps := []*wizard.ActionRequest{
		// CV first so language selection can infer the source language
		{Action: models.ActionUpdateField, Updates: cvFieldUpdates(cvJSON)},
		{Action: models.ActionSelectLanguage, Language: a.Language},
		{Action: models.ActionGotoStage, Stage: models.StageBulkTranslation},
		{Action: models.ActionTranslateRun},
		{Action: models.ActionGotoStage, Stage: models.StageContact},
		{Action: models.ActionConfirmContact},
		{Action: models.ActionGotoStage, Stage: models.StageEducation},
		{Action: models.ActionConfirmEdu},
		{Action: models.ActionGotoStage, Stage: models.StageJobPosting},
		{Action: models.ActionJobPostingSubmit, PostingText: a.PostingText, PostingURL: a.PostingURL},
		{Action: models.ActionGotoStage, Stage: models.StageWorkExperience},
		{Action: models.ActionWorkTailorRun},
		{Action: models.ActionWorkTailorAccept},
		{Action: models.ActionGotoStage, Stage: models.StageFurtherExperience},
	}
	for _, req := range steps {
		if _, err := step(req); err != nil {
			return nil, err
		}
	}

	// Further experience is optional: accept only when the run proposed
	further, err := step(&wizard.ActionRequest{Action: models.ActionFurtherRun})
	if err != nil {
		return nil, err
	}
	if further.Proposal != nil {
		if _, err := step(&wizard.ActionRequest{Action: models.ActionFurtherAccept}); err != nil {
			return nil, err
		}
	}

	tailoring := []*wizard.ActionRequest{
		{Action: models.ActionGotoStage, Stage: models.StageSkills},
		{Action: models.ActionSkillsRun},
		{Action: models.ActionSkillsAccept},
		{Action: models.ActionGotoStage, Stage: models.StageReviewFinal},
	}
	for _, req := range tailoring {
		if _, err := step(req); err != nil {
			return nil, err
		}
	}

	generated, err := step(&wizard.ActionRequest{Action: models.ActionGenerateCV})
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{
		"session_id": sid,
		"cv_pdf_ref": generated.PDFRef,
		"validation": generated.Validation,
	}

	if a.CoverLetter {
		if _, err := step(&wizard.ActionRequest{Action: models.ActionGotoStage, Stage: models.StageCoverLetter}); err != nil {
			return nil, err
		}
		letter, err := step(&wizard.ActionRequest{Action: models.ActionGenerateCoverLetter, Notes: a.Notes})
		if err != nil {
			return nil, err
		}
		out["cover_letter_ref"] = letter.PDFRef
		out["cover_letter_markdown"] = letter.Letter
	}

	return &Result{
		JSON:    out,
		PDF:     generated.PDFBytes,
		PDFName: fmt.Sprintf("cv_%s.pdf", sid),
	}, nil
}

// cvFieldUpdates explodes a cv document into one update per populated
// top-level field, so the delta pipeline and prefill bookkeeping see the
// writes the same way interactive edits arrive.
func cvFieldUpdates(cvJSON []byte) []wizard.FieldUpdate {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(cvJSON, &fields); err != nil {
		return nil
	}
	updates := make([]wizard.FieldUpdate, 0, len(fields))
	for path, value := range fields {
		if string(value) == "null" || string(value) == `""` || string(value) == "[]" {
			continue
		}
		updates = append(updates, wizard.FieldUpdate{FieldPath: path, Value: value})
	}
	return updates
}
