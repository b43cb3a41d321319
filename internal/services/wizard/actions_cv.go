package wizard

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/tailor/internal/models"
)

// updateField applies one edit, or a batch when delta mode is on. Each edit
// is validated against the canonical shape before anything is committed;
// a failing edit rejects the whole batch.
func (d *Dispatcher) updateField(sess *models.Session, req *ActionRequest) (*ActionResult, error) {
	updates := req.Updates
	if len(updates) == 0 {
		if req.FieldPath == "" {
			return nil, models.NewAppError(models.ErrKindBadRequest, "field_path is required")
		}
		updates = []FieldUpdate{{FieldPath: req.FieldPath, Value: req.Value}}
	}
	if len(updates) > 1 && !d.config.Session.DeltaMode {
		return nil, models.NewAppError(models.ErrKindBadRequest, "batched updates are disabled").
			WithSuggestion("send one field per call or enable DELTA_MODE")
	}

	cv := sess.CV
	for _, u := range updates {
		var value interface{}
		if len(u.Value) > 0 {
			if err := json.Unmarshal(u.Value, &value); err != nil {
				return nil, models.NewAppError(models.ErrKindBadRequest,
					fmt.Sprintf("value for %s is not valid JSON", u.FieldPath)).WithCause(err)
			}
		}
		updated, err := ApplyFieldUpdate(cv, u.FieldPath, value)
		if err != nil {
			return nil, err
		}
		cv = updated

		d.clearPrefillFlag(sess, u.FieldPath)
	}
	sess.CV = cv

	// Manual edits invalidate cached stage proposals touching the section
	d.invalidateProposals(sess, updates)

	return &ActionResult{Message: fmt.Sprintf("%d field(s) updated", len(updates))}, nil
}

// clearPrefillFlag confirms a DOCX-prefilled field once the user edits it
func (d *Dispatcher) clearPrefillFlag(sess *models.Session, fieldPath string) {
	root := fieldPath
	if i := strings.IndexAny(root, ".["); i >= 0 {
		root = root[:i]
	}
	remaining := sess.Wizard.DocxPrefillUnconfirmed[:0]
	for _, f := range sess.Wizard.DocxPrefillUnconfirmed {
		if f != root {
			remaining = append(remaining, f)
		}
	}
	sess.Wizard.DocxPrefillUnconfirmed = remaining
}

// invalidateProposals drops cached proposals whose section was hand-edited
func (d *Dispatcher) invalidateProposals(sess *models.Session, updates []FieldUpdate) {
	for _, u := range updates {
		switch {
		case strings.HasPrefix(u.FieldPath, "work_experience"):
			delete(sess.ProposalCache, stageProposalKey(sess, "work_experience"))
			sess.Wizard.StageStates[models.StageWorkExperience] = false
		case strings.HasPrefix(u.FieldPath, "further_experience"):
			delete(sess.ProposalCache, stageProposalKey(sess, "further"))
		case strings.HasPrefix(u.FieldPath, "it_ai_skills"), strings.HasPrefix(u.FieldPath, "technical_operational_skills"):
			delete(sess.ProposalCache, stageProposalKey(sess, "skills"))
		}
	}
}

// confirmContact locks in the contact section. Extracted contact values
// that are still awaiting confirmation are copied into the cv here: this
// is the only place prefill data reaches cv_data.
func (d *Dispatcher) confirmContact(ctx context.Context, sess *models.Session) (*ActionResult, error) {
	d.applyPrefill(ctx, sess)

	var missing []models.ValidationIssue
	if strings.TrimSpace(sess.CV.FullName) == "" {
		missing = append(missing, models.ValidationIssue{
			FieldPath: "full_name", Message: "full name is required",
		})
	}
	if strings.TrimSpace(sess.CV.Email) == "" {
		missing = append(missing, models.ValidationIssue{
			FieldPath: "email", Message: "email is required",
		})
	}
	if strings.TrimSpace(sess.CV.Phone) == "" {
		missing = append(missing, models.ValidationIssue{
			FieldPath: "phone", Message: "phone number is required",
		})
	}
	if len(missing) > 0 {
		return nil, models.NewAppError(models.ErrKindValidation, "contact details are incomplete").
			WithDetails(missing).
			WithSuggestion("fill the listed fields, then confirm again")
	}

	sess.Wizard.StageStates[models.StageContact] = true
	return &ActionResult{Message: "contact confirmed"}, nil
}

// applyPrefill moves still-unconfirmed extracted contact values into the
// cv. Fields the user already edited had their flag cleared and keep the
// user's value.
func (d *Dispatcher) applyPrefill(ctx context.Context, sess *models.Session) {
	if sess.Prefill != nil {
		for _, field := range sess.Wizard.DocxPrefillUnconfirmed {
			switch field {
			case "full_name":
				sess.CV.FullName = sess.Prefill.Contact.FullName
			case "email":
				sess.CV.Email = sess.Prefill.Contact.Email
			case "phone":
				sess.CV.Phone = sess.Prefill.Contact.Phone
			case "address_lines":
				sess.CV.AddressLines = sess.Prefill.Contact.AddressLines
			}
		}
		if sess.Prefill.PhotoKey != "" && sess.CV.PhotoURL == "" {
			if photo, err := d.blobs.Get(ctx, sess.Prefill.PhotoKey); err == nil {
				sess.CV.PhotoURL = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(photo)
			} else {
				d.logger.Warn().Err(err).Str("session_id", sess.SessionID).Msg("Stored photo unavailable at confirmation")
			}
		}
	}
	sess.Wizard.DocxPrefillUnconfirmed = nil
}

// confirmEducation locks in the education section, optionally running the
// normalization pass first.
func (d *Dispatcher) confirmEducation(ctx context.Context, sess *models.Session, req *ActionRequest) (*ActionResult, error) {
	if len(sess.CV.Education) < models.MinEducation {
		return nil, models.NewAppError(models.ErrKindValidation, "at least one education entry is required").
			WithSuggestion("add an entry with update_field, then confirm again")
	}

	result := &ActionResult{Message: "education confirmed"}

	if req.Refine {
		lang := targetLanguage(sess)
		proposal, callMeta, err := d.engine.RefineEducation(ctx, sess.CV, lang)
		if err != nil {
			return nil, err
		}
		d.recordStageAudit(sess, "education", callMeta)
		sess.CV.Education = proposal.Education
		result.Message = "education refined and confirmed"
	}

	sess.Wizard.StageStates[models.StageEducation] = true
	return result, nil
}

// prefillFromDocx extracts contact fields and the photo from an upload.
// Extracted values live in the prefill record, not in the cv: they reach
// cv_data only through confirmContact, and an edit before confirmation
// drops the extracted value for that field.
func (d *Dispatcher) prefillFromDocx(ctx context.Context, sess *models.Session, req *ActionRequest) error {
	if d.docx == nil {
		return fmt.Errorf("document extraction is not configured")
	}

	data, err := base64.StdEncoding.DecodeString(req.DocxBase64)
	if err != nil {
		return models.NewAppError(models.ErrKindBadRequest, "docx payload is not valid base64").WithCause(err)
	}

	prefill, photo, err := d.docx.Extract(data, req.DocxName)
	if err != nil {
		return err
	}

	var flagged []string
	if prefill.Contact.FullName != "" {
		flagged = append(flagged, "full_name")
	}
	if prefill.Contact.Email != "" {
		flagged = append(flagged, "email")
	}
	if prefill.Contact.Phone != "" {
		flagged = append(flagged, "phone")
	}
	if len(prefill.Contact.AddressLines) > 0 {
		flagged = append(flagged, "address_lines")
	}

	if len(photo) > 0 {
		key := fmt.Sprintf("cv-photos/%s/photo", sess.SessionID)
		if _, err := d.blobs.Put(ctx, key, photo); err != nil {
			d.logger.Warn().Err(err).Str("session_id", sess.SessionID).Msg("Failed to store extracted photo")
		} else {
			prefill.PhotoKey = key
		}
	}

	sess.Wizard.DocxPrefillUnconfirmed = flagged
	sess.Prefill = prefill

	d.logger.Info().
		Str("session_id", sess.SessionID).
		Int("prefilled_fields", len(flagged)).
		Bool("photo", len(photo) > 0).
		Msg("Session prefilled from document")
	return nil
}

// editWorkTailor lets the user hand-correct the proposed roles. The edited
// set replaces the section directly and counts as acceptance.
func (d *Dispatcher) editWorkTailor(sess *models.Session, req *ActionRequest) (*ActionResult, error) {
	if len(req.Roles) == 0 {
		return nil, models.NewAppError(models.ErrKindBadRequest, "roles are required for an edit")
	}
	if len(req.Roles) > models.MaxWorkRoles {
		return nil, models.NewAppError(models.ErrKindValidation,
			fmt.Sprintf("%d roles exceeds the limit of %d", len(req.Roles), models.MaxWorkRoles))
	}
	for i, r := range req.Roles {
		if len(r.Bullets) < models.MinRoleBullets || len(r.Bullets) > models.MaxRoleBullets {
			return nil, models.NewAppError(models.ErrKindValidation,
				fmt.Sprintf("roles[%d] has %d bullets, expected %d-%d",
					i, len(r.Bullets), models.MinRoleBullets, models.MaxRoleBullets))
		}
	}

	sess.CV.WorkExperience = req.Roles
	sess.Wizard.StageStates[models.StageWorkExperience] = true
	delete(sess.ProposalCache, stageProposalKey(sess, "work_experience"))
	return &ActionResult{Message: "work experience replaced with edited roles"}, nil
}
