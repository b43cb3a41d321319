package wizard

import (
	"errors"
	"testing"

	"github.com/ternarybob/tailor/internal/models"
)

func TestApplyFieldUpdateScalar(t *testing.T) {
	cv := models.NewEmptyCV()

	out, err := ApplyFieldUpdate(cv, "full_name", "Ada Lovelace")
	if err != nil {
		t.Fatalf("ApplyFieldUpdate failed: %v", err)
	}
	if out.FullName != "Ada Lovelace" {
		t.Errorf("Expected name set, got %q", out.FullName)
	}
	if cv.FullName != "" {
		t.Error("Original cv must not be mutated")
	}
}

func TestApplyFieldUpdateNestedIndex(t *testing.T) {
	cv := models.NewEmptyCV()
	cv.WorkExperience = []models.WorkRole{
		{DateRange: "2020", Employer: "Acme", Title: "Dev", Bullets: []string{"first"}},
	}

	out, err := ApplyFieldUpdate(cv, "work_experience[0].bullets[0]", "rewritten")
	if err != nil {
		t.Fatalf("ApplyFieldUpdate failed: %v", err)
	}
	if out.WorkExperience[0].Bullets[0] != "rewritten" {
		t.Errorf("Bullet not updated: %v", out.WorkExperience[0].Bullets)
	}
}

func TestApplyFieldUpdateAppendsAtListHead(t *testing.T) {
	cv := models.NewEmptyCV()

	out, err := ApplyFieldUpdate(cv, "address_lines[0]", "42 Science Street")
	if err != nil {
		t.Fatalf("Append at empty list head failed: %v", err)
	}
	if len(out.AddressLines) != 1 || out.AddressLines[0] != "42 Science Street" {
		t.Errorf("Unexpected address lines: %v", out.AddressLines)
	}

	// Appending one past the end is also allowed
	out, err = ApplyFieldUpdate(out, "address_lines[1]", "London")
	if err != nil {
		t.Fatalf("Append at tail failed: %v", err)
	}
	if len(out.AddressLines) != 2 {
		t.Errorf("Expected 2 lines, got %v", out.AddressLines)
	}
}

func TestApplyFieldUpdateAppendsObjectEntry(t *testing.T) {
	cv := models.NewEmptyCV()

	out, err := ApplyFieldUpdate(cv, "education[0].institution", "University of Paris")
	if err != nil {
		t.Fatalf("Object append failed: %v", err)
	}
	if len(out.Education) != 1 || out.Education[0].Institution != "University of Paris" {
		t.Errorf("Unexpected education: %+v", out.Education)
	}
}

func TestApplyFieldUpdateRejectsSparseIndex(t *testing.T) {
	cv := models.NewEmptyCV()

	_, err := ApplyFieldUpdate(cv, "address_lines[5]", "nope")
	if err == nil {
		t.Fatal("Expected error for index past append position")
	}
	var ae *models.AppError
	if !errors.As(err, &ae) || ae.Kind != models.ErrKindBadRequest {
		t.Errorf("Expected bad_request, got %v", err)
	}
}

func TestApplyFieldUpdateRejectsBadPaths(t *testing.T) {
	cv := models.NewEmptyCV()

	for _, path := range []string{"", "a..b", "a[x]", "a[", "[0]", "a[-1]"} {
		if _, err := ApplyFieldUpdate(cv, path, "v"); err == nil {
			t.Errorf("Expected error for path %q", path)
		}
	}
}

func TestApplyFieldUpdateRejectsWrongType(t *testing.T) {
	cv := models.NewEmptyCV()

	// full_name is a string in the canonical shape
	_, err := ApplyFieldUpdate(cv, "full_name", map[string]interface{}{"x": 1})
	if err == nil {
		t.Fatal("Expected error when value does not fit the cv shape")
	}
	var ae *models.AppError
	if !errors.As(err, &ae) || ae.Kind != models.ErrKindValidation {
		t.Errorf("Expected validation_failed, got %v", err)
	}
}
