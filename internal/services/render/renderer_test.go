package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/models"
)

type fakeEngine struct {
	renders int
	fail    bool
}

func (f *fakeEngine) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	f.renders++
	if f.fail {
		return nil, errors.New("engine down")
	}
	return []byte("%PDF-fake " + html[:20]), nil
}

type memBlobs struct {
	data map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{data: map[string][]byte{}} }

func (m *memBlobs) Put(ctx context.Context, key string, data []byte) (string, error) {
	m.data[key] = data
	return common.HashSHA256(data), nil
}

func (m *memBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.data[key]
	if !ok {
		return nil, models.ErrBlobNotFound
	}
	return data, nil
}

func (m *memBlobs) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memBlobs) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	n := 0
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memBlobs) Close() error { return nil }

func testSession() *models.Session {
	cv := models.NewEmptyCV()
	cv.FullName = "Marie Curie"
	cv.Email = "marie@example.com"
	cv.Profile = "Research scientist with a decade of experience leading radiological chemistry programs across Europe."
	cv.WorkExperience = []models.WorkRole{
		{DateRange: "2020 - 2024", Employer: "Radium Labs", Title: "Research Lead", Bullets: []string{"Directed a 12-person group"}},
	}
	cv.Education = []models.EducationEntry{
		{DateRange: "2008 - 2012", Institution: "University of Paris", Title: "PhD Physics"},
	}
	cv.ITAISkills = []string{"Python", "R", "MATLAB", "LabVIEW", "SQL"}
	cv.Language = "en"

	return &models.Session{
		SessionID:        "s-render",
		CV:               cv,
		Wizard:           &models.WizardState{Stage: models.StageReviewFinal},
		PDFRefs:          map[string]models.PDFRef{},
		ContentSignature: "sig-one",
	}
}

func newTestRenderer(engine *fakeEngine) (*Renderer, *memBlobs) {
	cfg := common.NewDefaultConfig()
	blobs := newMemBlobs()
	r := NewRenderer(engine, blobs, cfg, arbor.NewLogger())
	r.countPages = func(data []byte) (int, error) { return 2, nil }
	return r, blobs
}

func TestRenderCVStoresBlobAndRef(t *testing.T) {
	engine := &fakeEngine{}
	r, blobs := newTestRenderer(engine)
	sess := testSession()

	ref, pdf, cached, err := r.RenderCV(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Error("First render must not report a cache hit")
	}
	if ref.Kind != "cv" || ref.Pages != 2 {
		t.Errorf("Unexpected ref %+v", ref)
	}
	if ref.TemplateVersion != r.config.Render.TemplateVersion {
		t.Errorf("Ref must carry the template version, got %q", ref.TemplateVersion)
	}
	if !strings.HasPrefix(ref.BlobKey, "cv-pdfs/s-render/cv_") {
		t.Errorf("Unexpected blob key %q", ref.BlobKey)
	}
	stored, err := blobs.Get(context.Background(), ref.BlobKey)
	if err != nil || string(stored) != string(pdf) {
		t.Error("Stored blob must match returned bytes")
	}
}

func TestRenderCVLatchReturnsCachedPDF(t *testing.T) {
	engine := &fakeEngine{}
	r, _ := newTestRenderer(engine)
	sess := testSession()

	ref, _, _, err := r.RenderCV(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	sess.PDFRefs["cv"] = *ref

	again, pdf, cached, err := r.RenderCV(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	if engine.renders != 1 {
		t.Errorf("Unchanged signature must not re-render, engine ran %d times", engine.renders)
	}
	if !cached {
		t.Error("Latched call must report the cache hit")
	}
	if again.BlobKey != ref.BlobKey {
		t.Error("Cached call must return the original ref")
	}
	if len(pdf) == 0 {
		t.Error("Cached call must still return the pdf bytes")
	}
}

func TestRenderCVContentChangeBreaksLatch(t *testing.T) {
	engine := &fakeEngine{}
	r, _ := newTestRenderer(engine)
	sess := testSession()

	ref, _, _, err := r.RenderCV(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	sess.PDFRefs["cv"] = *ref

	sess.ContentSignature = "sig-two"
	_, _, cached, err := r.RenderCV(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Error("Changed signature must not report a cache hit")
	}
	if engine.renders != 2 {
		t.Errorf("Changed signature must re-render, engine ran %d times", engine.renders)
	}
}

func TestRenderCVLatchDisabled(t *testing.T) {
	engine := &fakeEngine{}
	r, _ := newTestRenderer(engine)
	r.config.Session.IdempotencyLatch = false
	sess := testSession()

	ref, _, _, err := r.RenderCV(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	sess.PDFRefs["cv"] = *ref

	if _, _, _, err := r.RenderCV(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	if engine.renders != 2 {
		t.Errorf("Latch off must always render, engine ran %d times", engine.renders)
	}
}

func TestRenderCVRejectsWrongPageCount(t *testing.T) {
	engine := &fakeEngine{}
	r, _ := newTestRenderer(engine)
	r.countPages = func(data []byte) (int, error) { return 3, nil }
	sess := testSession()

	_, _, _, err := r.RenderCV(context.Background(), sess)
	var ae *models.AppError
	if !errors.As(err, &ae) || ae.Kind != models.ErrKindRenderer {
		t.Fatalf("Expected renderer_failed on page overflow, got %v", err)
	}

	// Debug override accepts any page count
	r.config.Session.DebugAllowPages = true
	if _, _, _, err := r.RenderCV(context.Background(), sess); err != nil {
		t.Fatalf("Debug override must accept 3 pages: %v", err)
	}
}

func TestRenderCVEngineFailure(t *testing.T) {
	engine := &fakeEngine{fail: true}
	r, _ := newTestRenderer(engine)

	_, _, _, err := r.RenderCV(context.Background(), testSession())
	var ae *models.AppError
	if !errors.As(err, &ae) || ae.Kind != models.ErrKindRenderer {
		t.Fatalf("Expected renderer_failed, got %v", err)
	}
}

func TestRenderCoverLetterProducesRealPDF(t *testing.T) {
	r, blobs := newTestRenderer(&fakeEngine{})
	// Real page counting: the letter path emits an actual pdf
	r.countPages = pdfPageCount
	sess := testSession()

	markdown := "# Application for Head of Research\n\nDear hiring team,\n\nI am writing to apply. My work at **Radium Labs** covered:\n\n- isotope separation\n- grant writing\n\nKind regards,\nMarie Curie\n"
	ref, pdf, err := r.RenderCoverLetter(context.Background(), sess, markdown)
	if err != nil {
		t.Fatal(err)
	}
	if ref.Kind != "cover_letter" || ref.Pages < 1 {
		t.Errorf("Unexpected ref %+v", ref)
	}
	if !strings.HasPrefix(string(pdf), "%PDF") {
		t.Error("Letter output must be a pdf document")
	}
	if _, err := blobs.Get(context.Background(), ref.BlobKey); err != nil {
		t.Error("Letter pdf must be stored")
	}
}

func TestRenderCoverLetterRejectsEmptyText(t *testing.T) {
	r, _ := newTestRenderer(&fakeEngine{})

	_, _, err := r.RenderCoverLetter(context.Background(), testSession(), "")
	var ae *models.AppError
	if !errors.As(err, &ae) || ae.Kind != models.ErrKindRenderer {
		t.Fatalf("Expected renderer_failed, got %v", err)
	}
}

func TestPreviewHTMLEscapesContent(t *testing.T) {
	r, _ := newTestRenderer(&fakeEngine{})
	sess := testSession()
	sess.CV.FullName = `Marie <script>alert("x")</script>`

	html, err := r.PreviewHTML(sess)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>alert") {
		t.Error("User content must be escaped")
	}
	if !strings.Contains(html, "Radium Labs") || !strings.Contains(html, "University of Paris") {
		t.Error("Preview must contain the cv content")
	}
}

func TestTemplateLocalizesSectionHeadings(t *testing.T) {
	r, _ := newTestRenderer(&fakeEngine{})
	sess := testSession()
	sess.CV.Language = "de"

	html, err := r.PreviewHTML(sess)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "Berufserfahrung") || !strings.Contains(html, "Ausbildung") {
		t.Error("German cv must use German section headings")
	}
}
