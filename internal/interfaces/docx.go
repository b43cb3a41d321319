package interfaces

import "github.com/ternarybob/tailor/internal/models"

// DocxReader extracts bounded text, contact prefill and an optional photo
// from an uploaded DOCX document.
type DocxReader interface {
	Extract(data []byte, filename string) (*models.DocxPrefill, []byte, error)
}
