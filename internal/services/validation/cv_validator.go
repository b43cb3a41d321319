package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/tailor/internal/models"
)

// Height model for the fixed A4 two-page layout. All figures are millimetres
// of vertical space in the rendered template. The 20 mm buffer absorbs
// rounding between this estimate and the real renderer.
const (
	pageHeightMM     = 297.0
	usableTwoPagesMM = 2*pageHeightMM - 20.0 // 574

	headerBlockMM    = 48.0
	sectionHeadingMM = 10.0
	profileLineMM    = 5.0
	roleHeaderMM     = 9.0
	bulletLineMM     = 5.0
	eduEntryMM       = 9.0
	eduDetailMM      = 5.0
	skillLineMM      = 5.5
	languageLineMM   = 5.5
	listItemMM       = 5.5
	projectHeaderMM  = 9.0

	// Characters per rendered line in the body column
	charsPerLine = 95
)

// Result is the full validator verdict: hard errors, soft warnings and the
// layout estimate. Valid means no errors; warnings never block.
type Result struct {
	Valid          bool                     `json:"valid"`
	Errors         []models.ValidationIssue `json:"errors,omitempty"`
	Warnings       []models.ValidationIssue `json:"warnings,omitempty"`
	EstimatedMM    float64                  `json:"estimated_mm"`
	EstimatedPages int                      `json:"estimated_pages"`
	BudgetMM       float64                  `json:"budget_mm"`
	ExcessMM       float64                  `json:"excess_mm,omitempty"`
}

// CVValidator is a pure checker over the canonical CV shape. No I/O, no
// session access; the same input always yields the same result.
type CVValidator struct {
	validate *validator.Validate
}

// NewCVValidator creates the validator
func NewCVValidator() *CVValidator {
	return &CVValidator{validate: validator.New()}
}

// Validate runs the structural checks and the height estimate
func (v *CVValidator) Validate(cv *models.CVData) *Result {
	result := &Result{Valid: true, BudgetMM: usableTwoPagesMM}
	if cv == nil {
		result.Valid = false
		result.Errors = append(result.Errors, models.ValidationIssue{
			FieldPath: "$", Message: "cv data is missing",
		})
		return result
	}

	v.checkRequired(cv, result)
	v.checkTags(cv, result)
	v.checkBullets(cv, result)
	v.estimateHeight(cv, result)

	result.Valid = len(result.Errors) == 0
	return result
}

// checkRequired enforces the presence rules the struct tags cannot express
func (v *CVValidator) checkRequired(cv *models.CVData, r *Result) {
	if strings.TrimSpace(cv.FullName) == "" {
		r.Errors = append(r.Errors, models.ValidationIssue{
			FieldPath:  "full_name",
			Message:    "full name is required",
			Suggestion: "confirm the contact stage before generating",
		})
	}
	if strings.TrimSpace(cv.Email) == "" {
		r.Errors = append(r.Errors, models.ValidationIssue{
			FieldPath:  "email",
			Message:    "email is required",
			Suggestion: "confirm the contact stage before generating",
		})
	}
	if strings.TrimSpace(cv.Phone) == "" {
		r.Errors = append(r.Errors, models.ValidationIssue{
			FieldPath:  "phone",
			Message:    "phone number is required",
			Suggestion: "confirm the contact stage before generating",
		})
	}
	if len(cv.WorkExperience) < models.MinWorkRoles {
		r.Errors = append(r.Errors, models.ValidationIssue{
			FieldPath:  "work_experience",
			Current:    len(cv.WorkExperience),
			Limit:      models.MinWorkRoles,
			Message:    "at least one work experience entry is required",
			Suggestion: "run work-experience tailoring or add a role manually",
		})
	}
	if len(cv.Education) < models.MinEducation {
		r.Errors = append(r.Errors, models.ValidationIssue{
			FieldPath:  "education",
			Current:    len(cv.Education),
			Limit:      models.MinEducation,
			Message:    "at least one education entry is required",
			Suggestion: "confirm the education stage before generating",
		})
	}
}

// checkTags maps go-playground/validator findings onto structured issues
func (v *CVValidator) checkTags(cv *models.CVData, r *Result) {
	err := v.validate.Struct(cv)
	if err == nil {
		return
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		r.Errors = append(r.Errors, models.ValidationIssue{
			FieldPath: "$", Message: err.Error(),
		})
		return
	}
	for _, fe := range verrs {
		r.Errors = append(r.Errors, models.ValidationIssue{
			FieldPath: fieldPathFromNamespace(fe.Namespace()),
			Message:   fmt.Sprintf("constraint %s=%s violated", fe.Tag(), fe.Param()),
		})
	}
}

// checkBullets enforces the hard 200-char limit with structured excess
// reporting and warns above the 100-char soft threshold.
func (v *CVValidator) checkBullets(cv *models.CVData, r *Result) {
	check := func(path, text string) {
		n := len([]rune(text))
		switch {
		case n > models.MaxBulletLen:
			r.Errors = append(r.Errors, models.ValidationIssue{
				FieldPath:  path,
				Current:    n,
				Limit:      models.MaxBulletLen,
				Excess:     n - models.MaxBulletLen,
				Message:    fmt.Sprintf("bullet is %d characters, limit %d", n, models.MaxBulletLen),
				Suggestion: fmt.Sprintf("shorten by %d characters", n-models.MaxBulletLen),
			})
		case n > models.SoftBulletLen:
			r.Warnings = append(r.Warnings, models.ValidationIssue{
				FieldPath:  path,
				Current:    n,
				Limit:      models.SoftBulletLen,
				Excess:     n - models.SoftBulletLen,
				Message:    fmt.Sprintf("bullet is %d characters, consider trimming below %d", n, models.SoftBulletLen),
				Suggestion: "long bullets wrap to multiple lines and cost page height",
			})
		}
	}

	for i, role := range cv.WorkExperience {
		for j, b := range role.Bullets {
			check(fmt.Sprintf("work_experience[%d].bullets[%d]", i, j), b)
		}
	}
	for i, p := range cv.FurtherExperience {
		for j, b := range p.Bullets {
			check(fmt.Sprintf("further_experience[%d].bullets[%d]", i, j), b)
		}
	}
}

// estimateHeight computes the rendered height of the body content and
// reports an error when it cannot fit the two-page budget. The estimate is
// floored at two pages: the template always renders exactly two.
func (v *CVValidator) estimateHeight(cv *models.CVData, r *Result) {
	mm := headerBlockMM

	if cv.Profile != "" {
		mm += sectionHeadingMM + float64(wrappedLines(cv.Profile))*profileLineMM
	}

	if len(cv.WorkExperience) > 0 {
		mm += sectionHeadingMM
		for _, role := range cv.WorkExperience {
			mm += roleHeaderMM
			for _, b := range role.Bullets {
				mm += float64(wrappedLines(b)) * bulletLineMM
			}
		}
	}

	if len(cv.FurtherExperience) > 0 {
		mm += sectionHeadingMM
		for _, p := range cv.FurtherExperience {
			mm += projectHeaderMM
			for _, b := range p.Bullets {
				mm += float64(wrappedLines(b)) * bulletLineMM
			}
		}
	}

	if len(cv.Education) > 0 {
		mm += sectionHeadingMM
		for _, e := range cv.Education {
			mm += eduEntryMM + float64(len(e.Details))*eduDetailMM
		}
	}

	if len(cv.ITAISkills) > 0 || len(cv.TechnicalOperationalSkills) > 0 {
		mm += sectionHeadingMM
		mm += float64(len(cv.ITAISkills)+len(cv.TechnicalOperationalSkills)) * skillLineMM
	}

	if len(cv.Languages) > 0 {
		mm += sectionHeadingMM + float64(len(cv.Languages))*languageLineMM
	}

	for _, extra := range [][]string{cv.Certifications, cv.Trainings, cv.Publications, cv.Interests} {
		if len(extra) > 0 {
			mm += sectionHeadingMM + float64(len(extra))*listItemMM
		}
	}

	r.EstimatedMM = mm
	pages := int(mm/pageHeightMM) + 1
	if pages < 2 {
		pages = 2
	}
	r.EstimatedPages = pages

	if mm > usableTwoPagesMM {
		r.ExcessMM = mm - usableTwoPagesMM
		r.Errors = append(r.Errors, models.ValidationIssue{
			FieldPath:  "$",
			Current:    int(mm),
			Limit:      int(usableTwoPagesMM),
			Excess:     int(r.ExcessMM),
			Message:    fmt.Sprintf("estimated content height %.0f mm exceeds the two-page budget of %.0f mm", mm, usableTwoPagesMM),
			Suggestion: "remove bullets or shorten sections until the estimate fits",
		})
	}
}

// wrappedLines estimates rendered line count for a text run
func wrappedLines(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return (n + charsPerLine - 1) / charsPerLine
}

// fieldPathFromNamespace converts "CVData.WorkExperience[0].Bullets[1]"
// to "work_experience[0].bullets[1]".
func fieldPathFromNamespace(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:] // drop the struct name
	}
	for i, p := range parts {
		parts[i] = toSnake(p)
	}
	return strings.Join(parts, ".")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] >= 'a' && s[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
