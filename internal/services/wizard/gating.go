package wizard

import (
	"fmt"
	"strings"

	"github.com/ternarybob/tailor/internal/models"
)

// actionStages is the allow-list binding each action to the stages it may
// run in. Dispatching outside the list is a stage violation, not a no-op:
// the caller gets told where it actually is.
var actionStages = map[string][]string{
	models.ActionUpdateField: nil, // any stage

	models.ActionSelectLanguage: {models.StageLanguageSelection},

	models.ActionConfirmContact: {models.StageContact},
	models.ActionConfirmEdu:     {models.StageEducation},

	models.ActionJobPostingSubmit: {models.StageJobPosting},
	models.ActionTranslateRun:     {models.StageBulkTranslation},

	models.ActionWorkTailorRun:    {models.StageWorkExperience},
	models.ActionWorkTailorAccept: {models.StageWorkExperience},
	models.ActionWorkTailorEdit:   {models.StageWorkExperience},

	models.ActionSkillsRun:    {models.StageSkills},
	models.ActionSkillsAccept: {models.StageSkills},

	models.ActionFurtherRun:    {models.StageFurtherExperience},
	models.ActionFurtherAccept: {models.StageFurtherExperience},

	models.ActionCoverLetterRun: {models.StageCoverLetter},

	models.ActionGotoStage: nil,
	models.ActionNext:      nil,

	models.ActionGenerateCV:          {models.StageReviewFinal, models.StageCoverLetter},
	models.ActionGenerateCoverLetter: {models.StageCoverLetter},
}

// checkActionAllowed verifies the action may run in the session's current
// stage.
func checkActionAllowed(action, currentStage string) error {
	allowed, known := actionStages[action]
	if !known {
		return models.NewAppError(models.ErrKindBadRequest, fmt.Sprintf("unknown action %q", action))
	}
	if allowed == nil {
		return nil
	}
	for _, stage := range allowed {
		if stage == currentStage {
			return nil
		}
	}
	return models.NewAppError(models.ErrKindStage,
		fmt.Sprintf("action %s is not available in stage %s", action, currentStage)).
		WithDetails(map[string]interface{}{
			"current_stage":  currentStage,
			"allowed_stages": allowed,
		}).
		WithSuggestion(fmt.Sprintf("move to one of: %s", strings.Join(allowed, ", ")))
}

// checkStageTransition validates a goto: backward jumps are always allowed,
// forward jumps require every skipped stage (and the current one) to be
// satisfied.
func checkStageTransition(s *models.Session, target string) error {
	targetIdx := models.StageIndex(target)
	if targetIdx < 0 {
		return models.NewAppError(models.ErrKindBadRequest, fmt.Sprintf("unknown stage %q", target))
	}
	currentIdx := models.StageIndex(s.Wizard.Stage)
	if targetIdx <= currentIdx {
		return nil
	}

	var unmet []string
	for i := currentIdx; i < targetIdx; i++ {
		if ok, reasons := StageSatisfied(s, models.StageOrder[i]); !ok {
			unmet = append(unmet, reasons...)
		}
	}
	if len(unmet) > 0 {
		return models.NewAppError(models.ErrKindReadiness,
			fmt.Sprintf("cannot advance to %s", target)).
			WithDetails(map[string]interface{}{"unmet": unmet}).
			WithSuggestion("complete the listed requirements first")
	}
	return nil
}

// nextStage returns the stage after current, or current at the end
func nextStage(current string) string {
	idx := models.StageIndex(current)
	if idx < 0 || idx >= len(models.StageOrder)-1 {
		return current
	}
	return models.StageOrder[idx+1]
}
