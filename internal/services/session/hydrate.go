package session

import (
	"encoding/json"
	"fmt"

	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/models"
)

// hydrate decodes a stored record into the typed session view. Metadata
// properties that fail to decode are dropped with their zero value rather
// than failing the load; the CV body is load-bearing and must parse.
func hydrate(record *models.SessionRecord) (*models.Session, error) {
	sess := &models.Session{
		SessionID:        record.SessionID,
		ContentSignature: record.ContentSignature,
		Version:          record.Version,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
		ExpiresAt:        record.ExpiresAt,
		ProposalCache:    make(map[string]models.Proposal),
		PDFRefs:          make(map[string]models.PDFRef),
	}

	sess.CV = models.NewEmptyCV()
	if len(record.CVData) > 0 {
		if err := json.Unmarshal(record.CVData, sess.CV); err != nil {
			return nil, fmt.Errorf("failed to decode cv data for %s: %w", record.SessionID, err)
		}
	}

	sess.Wizard = &models.WizardState{
		Stage:       models.StageLanguageSelection,
		StageStates: make(map[string]bool),
	}
	decodeMeta(record, models.MetaWizard, sess.Wizard)
	if sess.Wizard.StageStates == nil {
		sess.Wizard.StageStates = make(map[string]bool)
	}

	if raw, ok := record.Metadata[models.MetaJobPosting]; ok && len(raw) > 0 {
		var posting models.JobPosting
		if json.Unmarshal(raw, &posting) == nil && posting.Signature != "" {
			sess.JobPosting = &posting
		}
	}

	decodeMeta(record, models.MetaProposalCache, &sess.ProposalCache)
	decodeMeta(record, models.MetaPDFRefs, &sess.PDFRefs)
	decodeMeta(record, models.MetaEventLog, &sess.EventLog)
	decodeMeta(record, models.MetaPromptAudit, &sess.PromptAudit)

	sess.Snapshots = &models.SnapshotSet{States: make(map[string]json.RawMessage)}
	decodeMeta(record, models.MetaSnapshots, sess.Snapshots)
	if sess.Snapshots.States == nil {
		sess.Snapshots.States = make(map[string]json.RawMessage)
	}

	if raw, ok := record.Metadata[models.MetaPrefill]; ok && len(raw) > 0 {
		var prefill models.DocxPrefill
		if json.Unmarshal(raw, &prefill) == nil {
			sess.Prefill = &prefill
		}
	}

	return sess, nil
}

func decodeMeta(record *models.SessionRecord, key string, target interface{}) {
	raw, ok := record.Metadata[key]
	if !ok || len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, target)
}

// dehydrate encodes the typed view back into a stored record and recomputes
// the content signature over the canonical CV JSON.
func dehydrate(sess *models.Session) (*models.SessionRecord, error) {
	cvData, err := json.Marshal(sess.CV)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cv data: %w", err)
	}

	metadata := make(map[string]json.RawMessage)
	encodeMeta(metadata, models.MetaWizard, sess.Wizard)
	if sess.JobPosting != nil {
		encodeMeta(metadata, models.MetaJobPosting, sess.JobPosting)
	}
	if len(sess.ProposalCache) > 0 {
		encodeMeta(metadata, models.MetaProposalCache, sess.ProposalCache)
	}
	if len(sess.PDFRefs) > 0 {
		encodeMeta(metadata, models.MetaPDFRefs, sess.PDFRefs)
	}
	if len(sess.EventLog) > 0 {
		encodeMeta(metadata, models.MetaEventLog, sess.EventLog)
	}
	if len(sess.PromptAudit) > 0 {
		encodeMeta(metadata, models.MetaPromptAudit, sess.PromptAudit)
	}
	if sess.Snapshots != nil && len(sess.Snapshots.States) > 0 {
		encodeMeta(metadata, models.MetaSnapshots, sess.Snapshots)
	}
	if sess.Prefill != nil {
		encodeMeta(metadata, models.MetaPrefill, sess.Prefill)
	}

	return &models.SessionRecord{
		SessionID:        sess.SessionID,
		CVData:           cvData,
		Metadata:         metadata,
		ContentSignature: common.HashSHA256(cvData),
		Version:          sess.Version,
		CreatedAt:        sess.CreatedAt,
		ExpiresAt:        sess.ExpiresAt,
	}, nil
}

func encodeMeta(metadata map[string]json.RawMessage, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	metadata[key] = data
}
