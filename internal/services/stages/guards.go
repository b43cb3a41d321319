package stages

import (
	"fmt"
	"strings"

	"github.com/ternarybob/tailor/internal/models"
)

// Hallucination guards. Stage engines run these over every proposal before
// it reaches the proposal cache: anything the source CV cannot support is
// rejected as llm_invalid, whatever the model claimed.

func normalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// guardWorkProposal rejects roles whose employer or date range does not
// exist in the source CV, and enforces the 8-12 total bullet corridor.
func guardWorkProposal(source []models.WorkRole, proposal []models.WorkRole) error {
	known := make(map[string]models.WorkRole, len(source))
	for _, r := range source {
		known[normalizeKey(r.Employer)] = r
	}

	totalBullets := 0
	for i, r := range proposal {
		src, ok := known[normalizeKey(r.Employer)]
		if !ok {
			return fmt.Errorf("roles[%d]: employer %q does not exist in the source CV", i, r.Employer)
		}
		if normalizeKey(r.DateRange) != normalizeKey(src.DateRange) {
			return fmt.Errorf("roles[%d]: date range %q differs from source %q", i, r.DateRange, src.DateRange)
		}
		if len(r.Bullets) < 2 || len(r.Bullets) > models.MaxRoleBullets {
			return fmt.Errorf("roles[%d]: %d bullets outside the 2-4 range", i, len(r.Bullets))
		}
		totalBullets += len(r.Bullets)
	}

	if len(proposal) < 3 && len(source) >= 3 {
		return fmt.Errorf("proposal selects %d roles, expected 3-4", len(proposal))
	}
	if len(proposal) > 4 {
		return fmt.Errorf("proposal selects %d roles, expected at most 4", len(proposal))
	}

	// The corridor only applies when the source offers enough material
	if len(source) >= 3 {
		if totalBullets < 8 || totalBullets > 12 {
			return fmt.Errorf("proposal has %d bullets in total, expected 8-12", totalBullets)
		}
	}
	return nil
}

// guardFurtherProposal rejects projects whose organization is not in the
// source CV. The proposal replaces the section wholesale, so an empty list
// is fine.
func guardFurtherProposal(source []models.Project, proposal []models.Project) error {
	known := make(map[string]bool, len(source))
	for _, p := range source {
		known[normalizeKey(p.Organization)] = true
	}
	for i, p := range proposal {
		if !known[normalizeKey(p.Organization)] {
			return fmt.Errorf("projects[%d]: organization %q does not exist in the source CV", i, p.Organization)
		}
		if len(p.Bullets) > models.MaxProjectBullets {
			return fmt.Errorf("projects[%d]: %d bullets exceeds the limit of %d", i, len(p.Bullets), models.MaxProjectBullets)
		}
	}
	if len(proposal) > models.MaxFurtherProjects {
		return fmt.Errorf("proposal has %d projects, limit %d", len(proposal), models.MaxFurtherProjects)
	}
	return nil
}

// guardEducationProposal requires every source institution to survive and
// none to appear from nowhere.
func guardEducationProposal(source []models.EducationEntry, proposal []models.EducationEntry) error {
	if len(proposal) != len(source) {
		return fmt.Errorf("proposal has %d education entries, source has %d", len(proposal), len(source))
	}
	known := make(map[string]bool, len(source))
	for _, e := range source {
		known[normalizeKey(e.Institution)] = true
	}
	for i, e := range proposal {
		if !known[normalizeKey(e.Institution)] {
			return fmt.Errorf("education[%d]: institution %q does not exist in the source CV", i, e.Institution)
		}
	}
	return nil
}

// guardSkills enforces list sizes, entry lengths and disjointness
func guardSkills(itAI, technical []string) error {
	if len(itAI) < models.MinSkills || len(itAI) > models.MaxSkills {
		return fmt.Errorf("it_ai_skills has %d entries, expected %d-%d", len(itAI), models.MinSkills, models.MaxSkills)
	}
	if len(technical) < models.MinSkills || len(technical) > models.MaxSkills {
		return fmt.Errorf("technical_operational_skills has %d entries, expected %d-%d", len(technical), models.MinSkills, models.MaxSkills)
	}

	seen := make(map[string]bool, len(itAI))
	for _, s := range itAI {
		if len([]rune(s)) > models.MaxSkillLen {
			return fmt.Errorf("skill %q exceeds %d characters", s, models.MaxSkillLen)
		}
		seen[normalizeKey(s)] = true
	}
	for _, s := range technical {
		if len([]rune(s)) > models.MaxSkillLen {
			return fmt.Errorf("skill %q exceeds %d characters", s, models.MaxSkillLen)
		}
		if seen[normalizeKey(s)] {
			return fmt.Errorf("skill %q appears in both lists", s)
		}
	}
	return nil
}

// guardTranslation verifies the translation preserved structure and left
// identity fields untouched.
func guardTranslation(source, translated *models.CVData) error {
	if translated == nil {
		return fmt.Errorf("translation produced no cv object")
	}
	if translated.Email != source.Email {
		return fmt.Errorf("translation modified the email address")
	}
	if translated.Phone != source.Phone {
		return fmt.Errorf("translation modified the phone number")
	}
	if len(translated.WorkExperience) != len(source.WorkExperience) {
		return fmt.Errorf("translation changed work experience count from %d to %d",
			len(source.WorkExperience), len(translated.WorkExperience))
	}
	for i := range source.WorkExperience {
		if len(translated.WorkExperience[i].Bullets) != len(source.WorkExperience[i].Bullets) {
			return fmt.Errorf("translation changed bullet count in work_experience[%d]", i)
		}
	}
	if len(translated.Education) != len(source.Education) {
		return fmt.Errorf("translation changed education count from %d to %d",
			len(source.Education), len(translated.Education))
	}
	if len(translated.Languages) != len(source.Languages) {
		return fmt.Errorf("translation changed languages count")
	}
	return nil
}
