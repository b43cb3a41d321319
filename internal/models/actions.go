package models

// Wizard stages in canonical order. Forward progression follows this slice;
// jumping backwards is always allowed, jumping forward requires the readiness
// gate of every skipped stage to pass.
const (
	StageLanguageSelection = "language-selection"
	StageBulkTranslation   = "bulk-translation"
	StageContact           = "contact"
	StageEducation         = "education"
	StageJobPosting        = "job-posting"
	StageWorkExperience    = "work-experience"
	StageFurtherExperience = "further-experience"
	StageSkills            = "skills"
	StageReviewFinal       = "review-final"
	StageCoverLetter       = "cover-letter"
)

// StageOrder is the canonical wizard progression
var StageOrder = []string{
	StageLanguageSelection,
	StageBulkTranslation,
	StageContact,
	StageEducation,
	StageJobPosting,
	StageWorkExperience,
	StageFurtherExperience,
	StageSkills,
	StageReviewFinal,
	StageCoverLetter,
}

// StageIndex returns the position of a stage in the canonical order,
// or -1 for an unknown stage.
func StageIndex(stage string) int {
	for i, s := range StageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// Action IDs accepted by the wizard dispatcher. Each action is bound to an
// allow-list of stages; dispatching outside that list is a stage violation.
const (
	ActionBootstrap      = "BOOTSTRAP"
	ActionUpdateField    = "UPDATE_FIELD"
	ActionConfirmContact = "CONFIRM_CONTACT"
	ActionConfirmEdu     = "CONFIRM_EDUCATION"

	ActionSelectLanguage = "LANGUAGE_SELECT"

	ActionJobPostingSubmit = "JOB_POSTING_SUBMIT"
	ActionTranslateRun     = "TRANSLATE_RUN"

	ActionWorkTailorRun    = "WORK_TAILOR_RUN"
	ActionWorkTailorAccept = "WORK_TAILOR_ACCEPT"
	ActionWorkTailorEdit   = "WORK_TAILOR_EDIT"

	ActionSkillsRun    = "SKILLS_RUN"
	ActionSkillsAccept = "SKILLS_ACCEPT"

	ActionFurtherRun    = "FURTHER_RUN"
	ActionFurtherAccept = "FURTHER_ACCEPT"

	ActionCoverLetterRun = "COVER_LETTER_RUN"

	ActionGotoStage = "WIZARD_GOTO_STAGE"
	ActionNext      = "WIZARD_NEXT"

	ActionGenerateCV          = "GENERATE_CV"
	ActionGenerateCoverLetter = "GENERATE_COVER_LETTER"
)

// SnapshotOriginal is the state ID of the pre-translation snapshot
const SnapshotOriginal = "original"

// SnapshotTranslated builds the state ID for a translated snapshot
func SnapshotTranslated(lang string) string {
	return "translated_" + lang
}
