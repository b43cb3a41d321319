package wizard

import (
	"github.com/ternarybob/tailor/internal/models"
)

// ContextPack is the compact session digest handed to conversational
// frontends: enough to decide the next step without shipping the whole
// session over the wire.
type ContextPack struct {
	SessionID      string   `json:"session_id"`
	Stage          string   `json:"stage"`
	StageOrder     []string `json:"stage_order"`
	TargetLanguage string   `json:"target_language,omitempty"`

	Confirmed       map[string]bool `json:"confirmed"`
	ReadinessUnmet  []string        `json:"readiness_unmet,omitempty"`
	HasPosting      bool            `json:"has_posting"`
	PostingRole     string          `json:"posting_role,omitempty"`
	PostingCompany  string          `json:"posting_company,omitempty"`
	PendingProposal []string        `json:"pending_proposals,omitempty"`

	CVSummary CVSummary              `json:"cv_summary"`
	PDFs      []models.PDFRef        `json:"pdfs,omitempty"`
	Recent    []models.EventLogEntry `json:"recent_events,omitempty"`
}

// CVSummary counts what the cv holds without shipping its content
type CVSummary struct {
	FullName     string `json:"full_name,omitempty"`
	HasEmail     bool   `json:"has_email"`
	HasPhoto     bool   `json:"has_photo"`
	WorkRoles    int    `json:"work_roles"`
	Projects     int    `json:"projects"`
	Education    int    `json:"education"`
	ITAISkills   int    `json:"it_ai_skills"`
	TechSkills   int    `json:"technical_skills"`
	Languages    int    `json:"languages"`
	ProfileChars int    `json:"profile_chars"`
}

// BuildContextPack assembles the digest from a hydrated session
func BuildContextPack(sess *models.Session) *ContextPack {
	pack := &ContextPack{
		SessionID:      sess.SessionID,
		Stage:          sess.Wizard.Stage,
		StageOrder:     models.StageOrder,
		TargetLanguage: sess.Wizard.TargetLanguage,
		Confirmed:      sess.Wizard.StageStates,
		ReadinessUnmet: CheckGenerateCV(sess),
		HasPosting:     sess.JobPosting != nil,
		CVSummary: CVSummary{
			FullName:     sess.CV.FullName,
			HasEmail:     sess.CV.Email != "",
			HasPhoto:     sess.CV.PhotoURL != "",
			WorkRoles:    len(sess.CV.WorkExperience),
			Projects:     len(sess.CV.FurtherExperience),
			Education:    len(sess.CV.Education),
			ITAISkills:   len(sess.CV.ITAISkills),
			TechSkills:   len(sess.CV.TechnicalOperationalSkills),
			Languages:    len(sess.CV.Languages),
			ProfileChars: len(sess.CV.Profile),
		},
	}

	if sess.JobPosting != nil {
		pack.PostingRole = sess.JobPosting.RoleTitle
		pack.PostingCompany = sess.JobPosting.Company
	}
	for _, p := range sess.ProposalCache {
		pack.PendingProposal = append(pack.PendingProposal, p.Stage)
	}
	for _, ref := range sess.PDFRefs {
		pack.PDFs = append(pack.PDFs, ref)
	}
	if n := len(sess.EventLog); n > 0 {
		start := n - 5
		if start < 0 {
			start = 0
		}
		pack.Recent = sess.EventLog[start:]
	}
	return pack
}
