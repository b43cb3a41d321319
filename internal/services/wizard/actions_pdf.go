package wizard

import (
	"context"

	"github.com/ternarybob/tailor/internal/models"
	"github.com/ternarybob/tailor/internal/services/stages"
)

// generateCV runs the full gate, then hands off to the renderer. With the
// idempotency latch on, an unchanged content signature returns the cached
// PDF without rendering.
func (d *Dispatcher) generateCV(ctx context.Context, sess *models.Session) (*ActionResult, error) {
	if unmet := CheckGenerateCV(sess); len(unmet) > 0 {
		return nil, models.NewAppError(models.ErrKindReadiness, "the cv is not ready for generation").
			WithDetails(map[string]interface{}{"unmet": unmet}).
			WithSuggestion("complete the listed requirements first")
	}

	validationResult := d.validator.Validate(sess.CV)
	if !validationResult.Valid {
		return nil, models.NewAppError(models.ErrKindValidation, "the cv does not pass validation").
			WithDetails(validationResult).
			WithSuggestion("fix the listed issues, then generate again")
	}

	ref, pdf, cached, err := d.renderer.RenderCV(ctx, sess)
	if err != nil {
		return nil, err
	}
	sess.PDFRefs["cv"] = *ref

	d.publish(ctx, models.EventPDFGenerated, sess, models.ActionGenerateCV)

	return &ActionResult{
		PDFRef:     ref,
		PDFBytes:   pdf,
		Validation: validationResult,
		CacheHit:   cached,
		Message:    "cv pdf ready",
	}, nil
}

// generateCoverLetter renders the drafted letter. Unlike the résumé there
// is no latch: the letter regenerates on every call. A missing draft runs
// the drafting stage first.
func (d *Dispatcher) generateCoverLetter(ctx context.Context, sess *models.Session, req *ActionRequest) (*ActionResult, error) {
	if unmet := CheckGenerateCoverLetter(sess); len(unmet) > 0 {
		return nil, models.NewAppError(models.ErrKindReadiness, "the cv is not ready for a cover letter").
			WithDetails(map[string]interface{}{"unmet": unmet}).
			WithSuggestion("complete the listed requirements first")
	}

	var letter stages.CoverLetterResult
	if !d.cachedProposal(sess, "cover_letter", &letter) {
		drafted, callMeta, err := d.engine.GenerateCoverLetter(ctx, sess.CV, sess.JobPosting, targetLanguage(sess), req.Notes)
		if err != nil {
			return nil, err
		}
		d.recordStageAudit(sess, stages.StageCoverLetter, callMeta)
		d.cacheProposal(sess, "cover_letter", "cover_letter", drafted)
		letter = *drafted
	}

	ref, pdf, err := d.renderer.RenderCoverLetter(ctx, sess, letter.Markdown)
	if err != nil {
		return nil, err
	}
	sess.PDFRefs["cover_letter"] = *ref

	d.publish(ctx, models.EventPDFGenerated, sess, models.ActionGenerateCoverLetter)

	return &ActionResult{
		PDFRef:   ref,
		PDFBytes: pdf,
		Letter:   letter.Markdown,
		Message:  "cover letter pdf ready",
	}, nil
}
