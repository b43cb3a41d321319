package posting

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// MaxPostingBytes bounds the extracted posting text handed to prompts
const MaxPostingBytes = 20 * 1024

// maxFetchBytes bounds how much of the remote page we read at all
const maxFetchBytes = 2 * 1024 * 1024

// Extractor turns a job posting URL or pasted HTML into bounded markdown.
// Navigation, scripts and boilerplate are stripped before conversion so the
// prompt sees the posting body, not the page chrome.
type Extractor struct {
	client *http.Client
	logger arbor.ILogger
}

// NewExtractor creates a posting extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// ExtractFromURL fetches the page and extracts its main content
func (e *Extractor) ExtractFromURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid posting URL: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; tailor/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch posting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("posting fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read posting body: %w", err)
	}

	e.logger.Debug().
		Str("url", url).
		Int("bytes", len(body)).
		Msg("Posting page fetched")

	return e.ExtractFromHTML(string(body))
}

// ExtractFromHTML extracts main content from raw HTML. Plain pasted text
// passes through with only whitespace normalization.
func (e *Extractor) ExtractFromHTML(html string) (string, error) {
	if !strings.Contains(html, "<") {
		return boundText(normalizeWhitespace(html)), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse posting HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, aside, header, form, iframe, noscript").Remove()

	contentSelector := "main, article, .job-description, .content, .main-content, #content, #main, body"
	content := doc.Find(contentSelector).First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	fragment, err := goquery.OuterHtml(content)
	if err != nil {
		return "", fmt.Errorf("failed to serialize posting content: %w", err)
	}

	mdConverter := md.NewConverter("", true, nil)
	converted, err := mdConverter.ConvertString(fragment)
	if err != nil || strings.TrimSpace(converted) == "" {
		if err != nil {
			e.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, using fallback")
		}
		return boundText(stripHTMLTags(fragment)), nil
	}

	result := boundText(normalizeMarkdown(converted))

	e.logger.Debug().
		Int("html_length", len(html)).
		Int("markdown_length", len(result)).
		Msg("Posting converted to markdown")

	return result, nil
}

// boundText caps the extracted text at MaxPostingBytes on a rune boundary
func boundText(s string) string {
	if len(s) <= MaxPostingBytes {
		return s
	}
	cut := MaxPostingBytes
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	spaceRe      = regexp.MustCompile(`[ \t]+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// stripHTMLTags removes tags for fallback cases
func stripHTMLTags(htmlStr string) string {
	stripped := tagRe.ReplaceAllString(htmlStr, " ")

	stripped = strings.ReplaceAll(stripped, "&amp;", "&")
	stripped = strings.ReplaceAll(stripped, "&lt;", "<")
	stripped = strings.ReplaceAll(stripped, "&gt;", ">")
	stripped = strings.ReplaceAll(stripped, "&quot;", "\"")
	stripped = strings.ReplaceAll(stripped, "&#39;", "'")
	stripped = strings.ReplaceAll(stripped, "&nbsp;", " ")

	return normalizeWhitespace(stripped)
}

func normalizeWhitespace(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n\n"))
}

func normalizeMarkdown(s string) string {
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n\n"))
}
