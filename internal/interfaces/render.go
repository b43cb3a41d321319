package interfaces

import (
	"context"

	"github.com/ternarybob/tailor/internal/models"
)

// PDFEngine converts rendered HTML to PDF bytes. The production engine
// drives headless Chrome; tests substitute a fake.
type PDFEngine interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// CVRenderer produces the final documents from session state
type CVRenderer interface {
	// RenderCV renders the two-page résumé. With the idempotency latch on,
	// an unchanged content signature returns the cached PDFRef without
	// re-rendering; the bool reports whether the cache served the call.
	RenderCV(ctx context.Context, session *models.Session) (*models.PDFRef, []byte, bool, error)

	// RenderCoverLetter renders the cover letter from the cached markdown.
	// Always regenerates.
	RenderCoverLetter(ctx context.Context, session *models.Session, markdown string) (*models.PDFRef, []byte, error)

	// PreviewHTML returns the résumé HTML without producing a PDF
	PreviewHTML(session *models.Session) (string, error)
}
