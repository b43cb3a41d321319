package stages

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/models"
)

// cannedCaller returns a fixed JSON object for every stage call
type cannedCaller struct {
	output map[string]interface{}
	stage  string
}

func (c *cannedCaller) CallStage(ctx context.Context, stage string, req interfaces.ContentRequest) (*interfaces.StageResult, error) {
	c.stage = stage
	raw, _ := json.Marshal(c.output)
	return &interfaces.StageResult{
		Output:   c.output,
		RawText:  string(raw),
		Provider: "canned",
		Model:    "test",
	}, nil
}

func sourceCV() *models.CVData {
	cv := models.NewEmptyCV()
	cv.FullName = "Marie Curie"
	cv.Email = "marie@example.com"
	cv.WorkExperience = []models.WorkRole{
		{DateRange: "2020 - 2024", Employer: "Radium Labs", Title: "Research Lead", Bullets: []string{"Led the isotope program"}},
		{DateRange: "2016 - 2020", Employer: "Sorbonne", Title: "Lecturer", Bullets: []string{"Taught physics"}},
		{DateRange: "2012 - 2016", Employer: "Institut Pasteur", Title: "Researcher", Bullets: []string{"Ran assays"}},
	}
	cv.Education = []models.EducationEntry{
		{DateRange: "2008 - 2012", Institution: "University of Paris", Title: "PhD Physics"},
	}
	return cv
}

func testPosting() *models.JobPosting {
	return &models.JobPosting{
		RoleTitle: "Head of Research", Company: "Acme Science",
		Requirements: []string{"lab leadership"}, Keywords: []string{"research"},
	}
}

func mustObject(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func expectLLMInvalid(t *testing.T, err error) *models.LLMInvalidError {
	t.Helper()
	if err == nil {
		t.Fatal("Expected llm_invalid error, got nil")
	}
	var ae *models.AppError
	if !errors.As(err, &ae) || ae.Kind != models.ErrKindLLMInvalid {
		t.Fatalf("Expected llm_invalid, got %v", err)
	}
	detail, ok := ae.Details.(*models.LLMInvalidError)
	if !ok {
		t.Fatalf("Expected LLMInvalidError details, got %T", ae.Details)
	}
	if detail.RawText == "" {
		t.Error("Expected raw model text preserved in details")
	}
	return detail
}

func TestTailorWorkAcceptsGroundedProposal(t *testing.T) {
	proposal := WorkProposal{Roles: []models.WorkRole{
		{DateRange: "2020 - 2024", Employer: "Radium Labs", Title: "Research Lead",
			Bullets: []string{"Directed a 12-person research group", "Secured two major grants", "Published in leading journals"}},
		{DateRange: "2016 - 2020", Employer: "Sorbonne", Title: "Lecturer",
			Bullets: []string{"Designed the physics curriculum", "Mentored doctoral candidates", "Coordinated lab rotations"}},
		{DateRange: "2012 - 2016", Employer: "Institut Pasteur", Title: "Researcher",
			Bullets: []string{"Ran radiological assays", "Automated data collection", "Presented findings internationally"}},
	}}

	engine := NewEngine(&cannedCaller{output: mustObject(t, proposal)}, arbor.NewLogger())
	got, callMeta, err := engine.TailorWork(context.Background(), sourceCV(), testPosting(), "en")
	if err != nil {
		t.Fatalf("TailorWork failed: %v", err)
	}
	if len(got.Roles) != 3 {
		t.Errorf("Expected 3 roles, got %d", len(got.Roles))
	}
	if callMeta.InputHash == "" || callMeta.OutputHash == "" {
		t.Error("Expected provenance hashes in call meta")
	}
}

func TestTailorWorkRejectsInventedEmployer(t *testing.T) {
	proposal := WorkProposal{Roles: []models.WorkRole{
		{DateRange: "2020 - 2024", Employer: "Radium Labs", Title: "Research Lead",
			Bullets: []string{"a", "b", "c"}},
		{DateRange: "2016 - 2020", Employer: "Sorbonne", Title: "Lecturer",
			Bullets: []string{"a", "b", "c"}},
		{DateRange: "2019 - 2021", Employer: "Totally Invented GmbH", Title: "CTO",
			Bullets: []string{"a", "b", "c"}},
	}}

	engine := NewEngine(&cannedCaller{output: mustObject(t, proposal)}, arbor.NewLogger())
	_, _, err := engine.TailorWork(context.Background(), sourceCV(), testPosting(), "en")

	detail := expectLLMInvalid(t, err)
	if detail.Stage != StageWork {
		t.Errorf("Expected stage %s, got %s", StageWork, detail.Stage)
	}
}

func TestTailorWorkRejectsBulletCountOutsideCorridor(t *testing.T) {
	// 3 roles x 2 bullets = 6 total, below the 8-bullet floor
	proposal := WorkProposal{Roles: []models.WorkRole{
		{DateRange: "2020 - 2024", Employer: "Radium Labs", Title: "Research Lead", Bullets: []string{"a", "b"}},
		{DateRange: "2016 - 2020", Employer: "Sorbonne", Title: "Lecturer", Bullets: []string{"a", "b"}},
		{DateRange: "2012 - 2016", Employer: "Institut Pasteur", Title: "Researcher", Bullets: []string{"a", "b"}},
	}}

	engine := NewEngine(&cannedCaller{output: mustObject(t, proposal)}, arbor.NewLogger())
	_, _, err := engine.TailorWork(context.Background(), sourceCV(), testPosting(), "en")
	expectLLMInvalid(t, err)
}

func TestTailorSkillsRejectsOverlap(t *testing.T) {
	proposal := SkillsProposal{
		ITAISkills:                 []string{"Python", "R", "MATLAB", "LabVIEW", "SQL"},
		TechnicalOperationalSkills: []string{"Python", "Lab safety", "Team leadership", "Budgeting", "Grant writing"},
	}

	engine := NewEngine(&cannedCaller{output: mustObject(t, proposal)}, arbor.NewLogger())
	_, _, err := engine.TailorSkills(context.Background(), sourceCV(), testPosting(), "en")
	expectLLMInvalid(t, err)
}

func TestTailorSkillsAcceptsDisjointLists(t *testing.T) {
	proposal := SkillsProposal{
		ITAISkills:                 []string{"Python", "R", "MATLAB", "LabVIEW", "SQL"},
		TechnicalOperationalSkills: []string{"Radiochemistry", "Lab safety", "Team leadership", "Budgeting", "Grant writing"},
	}

	engine := NewEngine(&cannedCaller{output: mustObject(t, proposal)}, arbor.NewLogger())
	got, _, err := engine.TailorSkills(context.Background(), sourceCV(), testPosting(), "en")
	if err != nil {
		t.Fatalf("TailorSkills failed: %v", err)
	}
	if len(got.ITAISkills) != 5 || len(got.TechnicalOperationalSkills) != 5 {
		t.Errorf("Unexpected list sizes: %d/%d", len(got.ITAISkills), len(got.TechnicalOperationalSkills))
	}
}

func TestTranslatePreservesIdentityFields(t *testing.T) {
	cv := sourceCV()
	cv.Profile = "Experienced research scientist with a decade in radiological chemistry."
	cv.PhotoURL = "data:image/jpeg;base64,abc"

	translated := cv.Clone()
	translated.Profile = "Doświadczona badaczka z dziesięcioletnim stażem."
	translated.PhotoURL = "" // models drop binary fields routinely

	engine := NewEngine(&cannedCaller{output: mustObject(t, map[string]interface{}{"cv": translated})}, arbor.NewLogger())
	got, _, err := engine.Translate(context.Background(), cv, "en", "pl")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got.Language != "pl" {
		t.Errorf("Expected language pl, got %s", got.Language)
	}
	if got.PhotoURL != cv.PhotoURL {
		t.Error("Photo must be carried over from the source, not the model output")
	}
}

func TestTranslateRejectsStructuralDrift(t *testing.T) {
	cv := sourceCV()

	translated := cv.Clone()
	translated.WorkExperience = translated.WorkExperience[:2] // dropped a role

	engine := NewEngine(&cannedCaller{output: mustObject(t, map[string]interface{}{"cv": translated})}, arbor.NewLogger())
	_, _, err := engine.Translate(context.Background(), cv, "en", "de")
	expectLLMInvalid(t, err)
}

func TestGenerateCoverLetterRequiresBody(t *testing.T) {
	engine := NewEngine(&cannedCaller{output: map[string]interface{}{"markdown": ""}}, arbor.NewLogger())
	_, _, err := engine.GenerateCoverLetter(context.Background(), sourceCV(), testPosting(), "en", "")
	expectLLMInvalid(t, err)

	engine = NewEngine(&cannedCaller{output: map[string]interface{}{"markdown": "Dear hiring team,\n\nI am applying."}}, arbor.NewLogger())
	letter, _, err := engine.GenerateCoverLetter(context.Background(), sourceCV(), testPosting(), "en", "")
	if err != nil {
		t.Fatalf("GenerateCoverLetter failed: %v", err)
	}
	if letter.Markdown == "" {
		t.Error("Expected letter body")
	}
}

func TestExtractJobPostingSignsInput(t *testing.T) {
	output := map[string]interface{}{
		"role_title":       "Head of Research",
		"company":          "Acme Science",
		"posting_language": "en",
		"requirements":     []interface{}{"lab leadership"},
		"keywords":         []interface{}{"research"},
	}
	engine := NewEngine(&cannedCaller{output: output}, arbor.NewLogger())

	posting, _, err := engine.ExtractJobPosting(context.Background(), "We are hiring a Head of Research...")
	if err != nil {
		t.Fatalf("ExtractJobPosting failed: %v", err)
	}
	if posting.Signature == "" {
		t.Error("Expected signature over the raw posting text")
	}
	if posting.RawText == "" {
		t.Error("Expected raw text cached on the posting")
	}
}
