package render

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/models"
)

// Renderer produces the final documents. The résumé path goes through the
// PDF engine (headless Chrome in production); the cover letter is laid out
// directly with fpdf since it is plain prose.
type Renderer struct {
	engine     interfaces.PDFEngine
	blobs      interfaces.BlobStorage
	config     *common.Config
	logger     arbor.ILogger
	countPages func(data []byte) (int, error)
}

var _ interfaces.CVRenderer = (*Renderer)(nil)

func NewRenderer(engine interfaces.PDFEngine, blobs interfaces.BlobStorage, config *common.Config, logger arbor.ILogger) *Renderer {
	return &Renderer{
		engine:     engine,
		blobs:      blobs,
		config:     config,
		logger:     logger,
		countPages: pdfPageCount,
	}
}

func pdfPageCount(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), nil)
}

// cvSignature folds the template version into the content signature, so a
// template upgrade invalidates cached PDFs even when the cv is unchanged.
func (r *Renderer) cvSignature(sess *models.Session) string {
	return common.HashString(sess.ContentSignature + "|" + r.config.Render.TemplateVersion)
}

// RenderCV renders the two-page résumé. With the idempotency latch on, an
// unchanged signature whose blob is still present returns the cached ref
// without touching the engine; the bool marks that cache hit.
func (r *Renderer) RenderCV(ctx context.Context, sess *models.Session) (*models.PDFRef, []byte, bool, error) {
	signature := r.cvSignature(sess)

	if r.config.Session.IdempotencyLatch {
		if ref, ok := sess.PDFRefs["cv"]; ok && ref.Signature == signature {
			if data, err := r.blobs.Get(ctx, ref.BlobKey); err == nil {
				r.logger.Debug().
					Str("session_id", sess.SessionID).
					Str("signature", common.Truncate(signature, 12)).
					Msg("CV unchanged, serving cached PDF")
				return &ref, data, true, nil
			}
			// Blob evicted under the ref; render fresh
		}
	}

	html, err := renderHTML(sess.CV, r.config.Render.TemplateVersion)
	if err != nil {
		return nil, nil, false, models.NewAppError(models.ErrKindRenderer, "cv template failed").WithCause(err)
	}

	renderCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	pdf, err := r.engine.RenderPDF(renderCtx, html)
	if err != nil {
		return nil, nil, false, models.NewAppError(models.ErrKindRenderer, "pdf engine failed").WithCause(err)
	}

	pages, err := r.countPages(pdf)
	if err != nil {
		return nil, nil, false, models.NewAppError(models.ErrKindRenderer, "generated pdf is unreadable").WithCause(err)
	}
	if pages != 2 && !r.config.Session.DebugAllowPages {
		return nil, nil, false, models.NewAppError(models.ErrKindRenderer,
			fmt.Sprintf("rendered cv spans %d pages, the layout requires exactly 2", pages)).
			WithDetails(map[string]interface{}{"pages": pages}).
			WithSuggestion("shorten bullets or trim sections, then generate again")
	}

	blobKey := fmt.Sprintf("cv-pdfs/%s/cv_%s.pdf", sess.SessionID, signature[:16])
	if _, err := r.blobs.Put(ctx, blobKey, pdf); err != nil {
		return nil, nil, false, models.NewAppError(models.ErrKindRenderer, "could not store generated pdf").WithCause(err)
	}

	ref := &models.PDFRef{
		Kind:            "cv",
		BlobKey:         blobKey,
		Signature:       signature,
		TemplateVersion: r.config.Render.TemplateVersion,
		Pages:           pages,
		Bytes:           len(pdf),
		GeneratedAt:     time.Now().UTC(),
	}

	r.logger.Info().
		Str("session_id", sess.SessionID).
		Int("pages", pages).
		Int("bytes", len(pdf)).
		Msg("CV PDF rendered")

	return ref, pdf, false, nil
}

// RenderCoverLetter lays out the letter markdown with fpdf. No latch here:
// every call produces a fresh document.
func (r *Renderer) RenderCoverLetter(ctx context.Context, sess *models.Session, markdown string) (*models.PDFRef, []byte, error) {
	if markdown == "" {
		return nil, nil, models.NewAppError(models.ErrKindRenderer, "no cover letter text to render")
	}

	pdf, err := letterToPDF(markdown)
	if err != nil {
		return nil, nil, models.NewAppError(models.ErrKindRenderer, "cover letter layout failed").WithCause(err)
	}

	pages, err := r.countPages(pdf)
	if err != nil {
		return nil, nil, models.NewAppError(models.ErrKindRenderer, "generated pdf is unreadable").WithCause(err)
	}

	signature := common.HashString(markdown)
	blobKey := fmt.Sprintf("cv-pdfs/%s/cover_letter_%s.pdf", sess.SessionID, signature[:16])
	if _, err := r.blobs.Put(ctx, blobKey, pdf); err != nil {
		return nil, nil, models.NewAppError(models.ErrKindRenderer, "could not store generated pdf").WithCause(err)
	}

	ref := &models.PDFRef{
		Kind:            "cover_letter",
		BlobKey:         blobKey,
		Signature:       signature,
		TemplateVersion: r.config.Render.TemplateVersion,
		Pages:           pages,
		Bytes:           len(pdf),
		GeneratedAt:     time.Now().UTC(),
	}

	r.logger.Info().
		Str("session_id", sess.SessionID).
		Int("pages", pages).
		Msg("Cover letter PDF rendered")

	return ref, pdf, nil
}

// PreviewHTML returns the résumé HTML without producing a PDF
func (r *Renderer) PreviewHTML(sess *models.Session) (string, error) {
	return renderHTML(sess.CV, r.config.Render.TemplateVersion)
}

func (r *Renderer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout, err := time.ParseDuration(r.config.Render.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 90 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
