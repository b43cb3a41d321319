package interfaces

import "context"

// PostingExtractor turns a job posting URL or pasted HTML/text into bounded
// plain markdown suitable for prompting.
type PostingExtractor interface {
	// ExtractFromURL fetches the page and extracts its main content
	ExtractFromURL(ctx context.Context, url string) (string, error)

	// ExtractFromHTML extracts main content from raw HTML
	ExtractFromHTML(html string) (string, error)
}
