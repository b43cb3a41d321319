package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/models"
	"github.com/ternarybob/tailor/internal/services/session"
	"github.com/ternarybob/tailor/internal/services/stages"
	"github.com/ternarybob/tailor/internal/services/validation"
)

// FieldUpdate is one edit in an update_field call
type FieldUpdate struct {
	FieldPath string          `json:"field_path"`
	Value     json.RawMessage `json:"value"`
}

// ActionRequest is the normalized wizard action envelope
type ActionRequest struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
	TraceID   string `json:"trace_id,omitempty"`

	// update_field
	FieldPath string          `json:"field_path,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Updates   []FieldUpdate   `json:"updates,omitempty"`

	// bootstrap
	DocxBase64 string `json:"docx_base64,omitempty"`
	DocxName   string `json:"docx_name,omitempty"`

	// language selection / goto
	Language string `json:"language,omitempty"`
	Stage    string `json:"stage,omitempty"`

	// job posting
	PostingURL  string `json:"posting_url,omitempty"`
	PostingText string `json:"posting_text,omitempty"`

	// confirm_section / cover letter
	Refine bool   `json:"refine,omitempty"`
	Notes  string `json:"notes,omitempty"`

	// work tailor edit
	Roles []models.WorkRole `json:"roles,omitempty"`
}

// ActionResult is what a dispatched action hands back to the transport
type ActionResult struct {
	SessionID string `json:"session_id"`
	Stage     string `json:"stage"`
	Version   int    `json:"version"`

	Proposal   interface{}        `json:"proposal,omitempty"`
	Validation *validation.Result `json:"validation,omitempty"`
	Readiness  []string           `json:"readiness_unmet,omitempty"`
	PDFRef     *models.PDFRef     `json:"pdf_ref,omitempty"`
	PDFBytes   []byte             `json:"-"`
	Letter     string             `json:"letter_markdown,omitempty"`
	CacheHit   bool               `json:"cache_hit,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// Dispatcher routes wizard actions: one lock per session turn, gating up
// front, persistence at the end, events on the way out.
type Dispatcher struct {
	sessions  *session.Service
	engine    *stages.Engine
	extractor interfaces.PostingExtractor
	docx      interfaces.DocxReader
	validator *validation.CVValidator
	renderer  interfaces.CVRenderer
	events    interfaces.EventService
	blobs     interfaces.BlobStorage
	config    *common.Config
	logger    arbor.ILogger
}

// NewDispatcher wires the wizard
func NewDispatcher(
	sessions *session.Service,
	engine *stages.Engine,
	extractor interfaces.PostingExtractor,
	docx interfaces.DocxReader,
	validator *validation.CVValidator,
	renderer interfaces.CVRenderer,
	events interfaces.EventService,
	blobs interfaces.BlobStorage,
	config *common.Config,
	logger arbor.ILogger,
) *Dispatcher {
	return &Dispatcher{
		sessions:  sessions,
		engine:    engine,
		extractor: extractor,
		docx:      docx,
		validator: validator,
		renderer:  renderer,
		events:    events,
		blobs:     blobs,
		config:    config,
		logger:    logger,
	}
}

// Dispatch executes one wizard action against one session
func (d *Dispatcher) Dispatch(ctx context.Context, req *ActionRequest) (*ActionResult, error) {
	if req.TraceID == "" {
		req.TraceID = common.NewTraceID()
	}

	if req.Action == models.ActionBootstrap {
		return d.bootstrap(ctx, req)
	}

	unlock := d.sessions.Lock(req.SessionID)
	defer unlock()

	sess, err := d.sessions.Load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if err := checkActionAllowed(req.Action, sess.Wizard.Stage); err != nil {
		d.sessions.RecordEvent(sess, req.Action, models.ErrKindStage, "", req.TraceID)
		d.sessions.SaveBestEffort(ctx, sess)
		return nil, err
	}

	result, err := d.execute(ctx, sess, req)
	if err != nil {
		d.sessions.RecordEvent(sess, req.Action, models.AsAppError(err).Kind, "", req.TraceID)
		d.sessions.SaveBestEffort(ctx, sess)
		return nil, err
	}

	d.sessions.RecordEvent(sess, req.Action, "ok", result.Message, req.TraceID)
	if err := d.sessions.Save(ctx, sess); err != nil {
		if !errors.Is(err, models.ErrVersionConflict) {
			return nil, err
		}
		// An out-of-band writer won the version race. Re-apply the action
		// against the fresh state instead of clobbering that write; a
		// second conflict goes up to the caller.
		sess, result, err = d.retryTurn(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	result.SessionID = sess.SessionID
	result.Stage = sess.Wizard.Stage
	result.Version = sess.Version

	d.publish(ctx, models.EventStageChanged, sess, req.Action)
	return result, nil
}

func (d *Dispatcher) execute(ctx context.Context, sess *models.Session, req *ActionRequest) (*ActionResult, error) {
	switch req.Action {
	case models.ActionSelectLanguage:
		return d.selectLanguage(sess, req)
	case models.ActionUpdateField:
		return d.updateField(sess, req)
	case models.ActionConfirmContact:
		return d.confirmContact(ctx, sess)
	case models.ActionConfirmEdu:
		return d.confirmEducation(ctx, sess, req)
	case models.ActionJobPostingSubmit:
		return d.submitJobPosting(ctx, sess, req)
	case models.ActionTranslateRun:
		return d.runTranslate(ctx, sess, req)
	case models.ActionWorkTailorRun:
		return d.runWorkTailor(ctx, sess)
	case models.ActionWorkTailorAccept:
		return d.acceptWorkTailor(sess)
	case models.ActionWorkTailorEdit:
		return d.editWorkTailor(sess, req)
	case models.ActionSkillsRun:
		return d.runSkills(ctx, sess)
	case models.ActionSkillsAccept:
		return d.acceptSkills(sess)
	case models.ActionFurtherRun:
		return d.runFurther(ctx, sess)
	case models.ActionFurtherAccept:
		return d.acceptFurther(sess)
	case models.ActionCoverLetterRun:
		return d.runCoverLetter(ctx, sess, req)
	case models.ActionGotoStage:
		return d.gotoStage(sess, req.Stage, req.Action)
	case models.ActionNext:
		return d.gotoStage(sess, nextStage(sess.Wizard.Stage), req.Action)
	case models.ActionGenerateCV:
		return d.generateCV(ctx, sess)
	case models.ActionGenerateCoverLetter:
		return d.generateCoverLetter(ctx, sess, req)
	}
	return nil, models.NewAppError(models.ErrKindBadRequest, "unknown action "+req.Action)
}

// bootstrap creates the session and optionally prefills from a DOCX upload
func (d *Dispatcher) bootstrap(ctx context.Context, req *ActionRequest) (*ActionResult, error) {
	sess, err := d.sessions.Bootstrap(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	result := &ActionResult{SessionID: sess.SessionID, Stage: sess.Wizard.Stage}

	if req.DocxBase64 != "" {
		if err := d.prefillFromDocx(ctx, sess, req); err != nil {
			// Prefill failure leaves a clean empty session rather than
			// failing the bootstrap
			d.logger.Warn().Err(err).Str("session_id", sess.SessionID).Msg("DOCX prefill failed")
			result.Message = "session created; document could not be read"
		} else {
			result.Message = "session created with document prefill"
		}
	}

	d.sessions.RecordEvent(sess, models.ActionBootstrap, "ok", result.Message, req.TraceID)
	if err := d.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	result.Version = sess.Version

	d.publish(ctx, models.EventSessionCreated, sess, models.ActionBootstrap)
	return result, nil
}

// retryTurn re-runs one action from a fresh read after a version conflict
func (d *Dispatcher) retryTurn(ctx context.Context, req *ActionRequest) (*models.Session, *ActionResult, error) {
	sess, err := d.sessions.Load(ctx, req.SessionID)
	if err != nil {
		return nil, nil, err
	}
	result, err := d.execute(ctx, sess, req)
	if err != nil {
		return nil, nil, err
	}
	d.sessions.RecordEvent(sess, req.Action, "ok", result.Message, req.TraceID)
	if err := d.sessions.Save(ctx, sess); err != nil {
		return nil, nil, err
	}
	return sess, result, nil
}

// gotoStage moves the wizard, honoring the forward gate. Moves across the
// translation boundary restore the matching cv state.
func (d *Dispatcher) gotoStage(sess *models.Session, target, action string) (*ActionResult, error) {
	if err := checkStageTransition(sess, target); err != nil {
		return nil, err
	}
	if target != sess.Wizard.Stage {
		if err := d.restoreSnapshotFor(sess, target); err != nil {
			return nil, err
		}
		sess.Wizard.Stage = target
		sess.Wizard.PushStageVisit(target, action, d.config.Session.StageHistorySize)
	}
	return &ActionResult{}, nil
}

// restoreSnapshotFor flips the active cv state when a stage move crosses
// the translation boundary: stages at or before bulk-translation edit the
// original state, later stages edit the translated one. The outgoing
// state is checkpointed into its snapshot first so edits survive the
// round trip.
func (d *Dispatcher) restoreSnapshotFor(sess *models.Session, target string) error {
	if sess.Snapshots == nil || len(sess.Snapshots.States) == 0 {
		return nil
	}

	want := models.SnapshotOriginal
	if models.StageIndex(target) > models.StageIndex(models.StageBulkTranslation) {
		if translated := models.SnapshotTranslated(targetLanguage(sess)); len(sess.Snapshots.States[translated]) > 0 {
			want = translated
		}
	}

	current := sess.Wizard.ActiveStateID
	if current == "" {
		current = models.SnapshotOriginal
	}
	if want == current {
		return nil
	}
	raw, ok := sess.Snapshots.States[want]
	if !ok {
		return nil
	}

	liveJSON, err := json.Marshal(sess.CV)
	if err != nil {
		return fmt.Errorf("checkpointing cv state %s: %w", current, err)
	}
	sess.Snapshots.States[current] = liveJSON

	var restored models.CVData
	if err := json.Unmarshal(raw, &restored); err != nil {
		return fmt.Errorf("cv state %s is unreadable: %w", want, err)
	}
	sess.CV = &restored
	sess.Wizard.ActiveStateID = want

	d.logger.Debug().
		Str("session_id", sess.SessionID).
		Str("from", current).
		Str("to", want).
		Msg("Active cv state flipped for stage move")
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, eventType models.EventType, sess *models.Session, action string) {
	if d.events == nil {
		return
	}
	_ = d.events.Publish(ctx, models.Event{
		Type:      eventType,
		SessionID: sess.SessionID,
		Stage:     sess.Wizard.Stage,
		Message:   action,
		Timestamp: time.Now().UTC(),
	})
}
