package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/models"
)

const (
	// MaxDocxBytes bounds the accepted upload
	MaxDocxBytes = 10 * 1024 * 1024
	// MaxTextBytes bounds extracted text so the prefill stays well under
	// the session property ceiling
	MaxTextBytes = 48 * 1024
	// MaxPhotoBytes bounds the embedded photo
	MaxPhotoBytes = 2 * 1024 * 1024
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+|00)?[\d][\d\s\-()/.]{6,24}[\d]`)
)

// Reader pulls bounded text, contact prefill and an optional photo out of
// an uploaded DOCX. A DOCX is a zip: document text lives in
// word/document.xml, images under word/media/.
type Reader struct {
	logger arbor.ILogger
}

var _ interfaces.DocxReader = (*Reader)(nil)

func NewReader(logger arbor.ILogger) *Reader {
	return &Reader{logger: logger}
}

// Extract parses the document. The returned photo bytes are nil when the
// document carries no image.
func (r *Reader) Extract(data []byte, filename string) (*models.DocxPrefill, []byte, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("empty document")
	}
	if len(data) > MaxDocxBytes {
		return nil, nil, fmt.Errorf("document too large: %d bytes (max %d)", len(data), MaxDocxBytes)
	}

	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("not a valid docx archive: %w", err)
	}

	var documentXML []byte
	var photo []byte
	for _, f := range archive.File {
		switch {
		case f.Name == "word/document.xml":
			documentXML, err = readZipFile(f, MaxDocxBytes)
			if err != nil {
				return nil, nil, fmt.Errorf("read document body: %w", err)
			}
		case photo == nil && strings.HasPrefix(f.Name, "word/media/") && isImageName(f.Name):
			photo, err = readZipFile(f, MaxPhotoBytes)
			if err != nil {
				r.logger.Warn().Err(err).Str("entry", f.Name).Msg("Skipping unreadable embedded image")
				photo = nil
			}
		}
	}
	if documentXML == nil {
		return nil, nil, fmt.Errorf("no document body in archive")
	}

	text, err := extractText(documentXML)
	if err != nil {
		return nil, nil, fmt.Errorf("parse document body: %w", err)
	}
	text = boundText(text, MaxTextBytes)

	prefill := &models.DocxPrefill{
		Text:        text,
		Contact:     extractContact(text),
		SourceName:  filename,
		ExtractedAt: time.Now().UTC(),
	}

	r.logger.Info().
		Str("filename", filename).
		Int("text_len", len(text)).
		Bool("photo", photo != nil).
		Msg("DOCX extracted")

	return prefill, photo, nil
}

func readZipFile(f *zip.File, limit int) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > limit {
		return nil, fmt.Errorf("entry %s exceeds %d bytes", f.Name, limit)
	}
	return data, nil
}

func isImageName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") || strings.HasSuffix(lower, ".png")
}

// extractText walks the WordprocessingML stream collecting run text.
// Paragraph ends become newlines, tabs become spaces.
func extractText(documentXML []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(documentXML))

	var sb strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte(' ')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return normalizeText(sb.String()), nil
}

func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func boundText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}

// extractContact pulls the obvious contact fields out of the raw text.
// Only fields found with confidence are set; everything else stays empty
// for the user to fill in.
func extractContact(text string) models.CVData {
	var cv models.CVData

	if m := emailPattern.FindString(text); m != "" && len(m) <= models.MaxEmailLen {
		cv.Email = m
	}
	if m := phonePattern.FindString(text); m != "" {
		phone := strings.TrimSpace(m)
		if len(phone) >= models.MinPhoneLen && len(phone) <= models.MaxPhoneLen && digitCount(phone) >= 7 {
			cv.Phone = phone
		}
	}
	cv.FullName = guessName(text)
	return cv
}

// guessName takes the first short line without digits or an @ sign.
// Résumés nearly always open with the candidate's name.
func guessName(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if i > 5 {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" || len(line) > models.MaxFullNameLen {
			continue
		}
		if strings.ContainsAny(line, "0123456789@") {
			continue
		}
		words := strings.Fields(line)
		if len(words) < 2 || len(words) > 4 {
			continue
		}
		return line
	}
	return ""
}

func digitCount(s string) int {
	n := 0
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n++
		}
	}
	return n
}
