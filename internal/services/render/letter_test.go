package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLetterToPDF(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
	}{
		{
			name:     "Basic letter",
			markdown: "# Application\n\nDear Hiring Team,\n\nI am writing to apply.\n\nKind regards,\nAlex",
		},
		{
			name:     "Bold and italic",
			markdown: "Normal **bold** *italic* text in a paragraph.",
		},
		{
			name:     "List of points",
			markdown: "Key strengths:\n\n- Backend systems\n- API design\n- Mentoring",
		},
		{
			name:     "Signature rule",
			markdown: "Closing paragraph.\n\n---\n\nAlex Jensen",
		},
		{
			name:     "Non-ASCII names",
			markdown: "Sehr geehrte Frau Müller,\n\nmit großem Interesse bewerbe ich mich.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfBytes, err := letterToPDF(tt.markdown)

			assert.NoError(t, err)
			assert.NotEmpty(t, pdfBytes)

			// Basic PDF header check
			assert.Equal(t, "%PDF", string(pdfBytes[:4]))
		})
	}
}

func TestLetterToPDF_LongLetterSpansPages(t *testing.T) {
	markdown := "# Application\n\n"
	for i := 0; i < 40; i++ {
		markdown += "This paragraph repeats to push the letter well past a single A4 page of body text at eleven points.\n\n"
	}

	pdfBytes, err := letterToPDF(markdown)
	assert.NoError(t, err)

	pages, err := pdfPageCount(pdfBytes)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, pages, 2)
}
