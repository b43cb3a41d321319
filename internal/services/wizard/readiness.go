package wizard

import (
	"fmt"
	"strings"

	"github.com/ternarybob/tailor/internal/models"
)

// Readiness is pure: the same session state always yields the same verdict,
// and nothing here touches storage or providers.

// StageSatisfied reports whether a stage's exit conditions hold. Unmet
// requirements are stable field-style identifiers, not prose, so clients
// can map them onto concrete next steps.
func StageSatisfied(s *models.Session, stage string) (bool, []string) {
	var unmet []string

	switch stage {
	case models.StageLanguageSelection:
		if s.Wizard.TargetLanguage == "" {
			unmet = append(unmet, "target_language")
		}

	case models.StageBulkTranslation:
		// Nothing to do when source and target match; otherwise the
		// translated snapshot must exist. Existence, not activeness: back
		// navigation legitimately flips the active state to the original
		// without undoing the translation.
		if s.Wizard.TargetLanguage != "" && s.Wizard.SourceLanguage != "" &&
			s.Wizard.TargetLanguage != s.Wizard.SourceLanguage {
			want := models.SnapshotTranslated(s.Wizard.TargetLanguage)
			if s.Snapshots == nil || len(s.Snapshots.States[want]) == 0 {
				unmet = append(unmet, "translation")
			}
		}

	case models.StageContact:
		if !s.Wizard.StageStates[models.StageContact] {
			unmet = append(unmet, "contact_confirmed")
		}
		if strings.TrimSpace(s.CV.FullName) == "" {
			unmet = append(unmet, "full_name")
		}
		if strings.TrimSpace(s.CV.Email) == "" {
			unmet = append(unmet, "email")
		}
		if strings.TrimSpace(s.CV.Phone) == "" {
			unmet = append(unmet, "phone")
		}
		if len(s.Wizard.DocxPrefillUnconfirmed) > 0 {
			unmet = append(unmet, "docx_prefill_unconfirmed")
		}

	case models.StageEducation:
		if !s.Wizard.StageStates[models.StageEducation] {
			unmet = append(unmet, "education_confirmed")
		}
		if len(s.CV.Education) < models.MinEducation {
			unmet = append(unmet, "education")
		}

	case models.StageJobPosting:
		if s.JobPosting == nil || s.JobPosting.Signature == "" {
			unmet = append(unmet, "job_posting")
		}

	case models.StageWorkExperience:
		if len(s.CV.WorkExperience) < models.MinWorkRoles {
			unmet = append(unmet, "work_experience")
		} else if !s.Wizard.StageStates[models.StageWorkExperience] {
			unmet = append(unmet, "work_experience_accepted")
		}

	case models.StageFurtherExperience:
		// Optional section, always satisfiable

	case models.StageSkills:
		if !s.Wizard.StageStates[models.StageSkills] {
			unmet = append(unmet, "skills_accepted")
		}

	case models.StageReviewFinal, models.StageCoverLetter:
		// Gated by generation readiness, not by their own exit state

	default:
		unmet = append(unmet, fmt.Sprintf("unknown stage %q", stage))
	}

	return len(unmet) == 0, unmet
}

// CheckGenerateCV returns the unmet requirements for producing the résumé
// PDF. Structural validation runs separately; this covers wizard state.
func CheckGenerateCV(s *models.Session) []string {
	var unmet []string
	for _, stage := range []string{
		models.StageLanguageSelection,
		models.StageBulkTranslation,
		models.StageContact,
		models.StageEducation,
		models.StageJobPosting,
		models.StageWorkExperience,
		models.StageSkills,
	} {
		if ok, reasons := StageSatisfied(s, stage); !ok {
			unmet = append(unmet, reasons...)
		}
	}
	return unmet
}

// CheckGenerateCoverLetter mirrors the CV gate: a cover letter for an
// unfinished résumé is blocked the same way.
func CheckGenerateCoverLetter(s *models.Session) []string {
	return CheckGenerateCV(s)
}
