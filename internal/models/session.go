package models

import (
	"encoding/json"
	"time"
)

// Property size ceiling. Any single persisted property whose JSON encoding
// exceeds this is offloaded to the blob store and replaced by an OffloadRef.
const MaxPropertyBytes = 64 * 1024

// OffloadRefKind marks a JSON value as a pointer into the blob store
const OffloadRefKind = "offload-ref"

// SessionRecord is the top-level persisted session row. CVData and every
// metadata property are stored as raw JSON so the storage layer can measure
// and offload them individually without the domain types knowing.
type SessionRecord struct {
	SessionID string `badgerhold:"key" json:"session_id"`

	CVData   json.RawMessage            `json:"cv_data"`
	Metadata map[string]json.RawMessage `json:"metadata"`

	// ContentSignature is the sha256 of the canonical CV JSON, recomputed
	// on every successful write. The PDF latch compares against it.
	ContentSignature string `json:"content_signature"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OffloadRef is the pointer object written in place of an oversized property
type OffloadRef struct {
	Kind   string `json:"kind"` // always OffloadRefKind
	Key    string `json:"key"`
	SHA256 string `json:"sha256"`
	Bytes  int    `json:"bytes"`
}

// IsOffloadRef reports whether raw is a pointer object
func IsOffloadRef(raw json.RawMessage) (OffloadRef, bool) {
	var ref OffloadRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return OffloadRef{}, false
	}
	if ref.Kind != OffloadRefKind || ref.Key == "" {
		return OffloadRef{}, false
	}
	return ref, true
}

// Metadata property keys. The storage layer treats these as opaque; the
// session service owns their shapes.
const (
	MetaWizard        = "wizard"         // WizardState
	MetaJobPosting    = "job_posting"    // JobPosting
	MetaProposalCache = "proposal_cache" // map[string]Proposal
	MetaPDFRefs       = "pdf_refs"       // map[string]PDFRef
	MetaEventLog      = "event_log"      // []EventLogEntry
	MetaSnapshots     = "snapshots"      // SnapshotSet
	MetaPrefill       = "docx_prefill"   // DocxPrefill
	MetaPromptAudit   = "prompt_audit"   // []PromptAuditEntry
)

// WizardState carries the wizard's full mutable state as one metadata
// property: current stage, per-stage confirmation, and history.
type WizardState struct {
	Stage        string          `json:"stage"`
	StageHistory []StageVisit    `json:"stage_history,omitempty"`
	StageStates  map[string]bool `json:"stage_states,omitempty"` // stage -> confirmed

	TargetLanguage string `json:"target_language,omitempty"`
	SourceLanguage string `json:"source_language,omitempty"`

	// DocxPrefillUnconfirmed marks contact fields that came from DOCX
	// extraction and have not been confirmed by the user yet.
	DocxPrefillUnconfirmed []string `json:"docx_prefill_unconfirmed,omitempty"`

	// ActiveStateID names the snapshot the wizard currently edits:
	// "original" before translation, "translated_<lang>" after.
	ActiveStateID string `json:"active_state_id,omitempty"`

	// TranslationCache maps "{source_hash}:{lang}" to the snapshot ID that
	// holds the translated state, so re-running translation is a no-op.
	TranslationCache map[string]string `json:"translation_cache,omitempty"`
}

// StageVisit is one entry in the stage history ring
type StageVisit struct {
	Stage     string    `json:"stage"`
	Action    string    `json:"action,omitempty"`
	EnteredAt time.Time `json:"entered_at"`
}

// JobPosting is the cached extraction of the posting the résumé targets
type JobPosting struct {
	RawText   string    `json:"raw_text,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	Signature string    `json:"signature"` // sha256 of the raw input
	FetchedAt time.Time `json:"fetched_at"`

	RoleTitle       string   `json:"role_title,omitempty"`
	Company         string   `json:"company,omitempty"`
	Location        string   `json:"location,omitempty"`
	Requirements    []string `json:"requirements,omitempty"`
	NiceToHave      []string `json:"nice_to_have,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	PostingLanguage string   `json:"posting_language,omitempty"`
}

// Proposal is a cached stage-engine output awaiting accept/reject
type Proposal struct {
	Stage     string          `json:"stage"`
	InputHash string          `json:"input_hash"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// PDFRef records one generated PDF in the blob store. Kind is "cv" or
// "cover_letter". For the CV the Signature implements the latch: a second
// generate call with an unchanged signature returns this ref untouched.
type PDFRef struct {
	Kind            string    `json:"kind"`
	BlobKey         string    `json:"blob_key"`
	Signature       string    `json:"signature"`
	TemplateVersion string    `json:"template_version"`
	Pages           int       `json:"pages"`
	Bytes           int       `json:"bytes"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// EventLogEntry is one entry in the bounded per-session event log
type EventLogEntry struct {
	At      time.Time `json:"at"`
	Action  string    `json:"action"`
	Stage   string    `json:"stage,omitempty"`
	Outcome string    `json:"outcome"` // "ok" or an error kind
	Detail  string    `json:"detail,omitempty"`
	TraceID string    `json:"trace_id,omitempty"`
}

// SnapshotSet holds the CV states keyed by state ID. The "original"
// state is captured at bulk-translation time and is never overwritten by
// translation output; stage moves across the translation boundary
// checkpoint the outgoing state and restore the incoming one.
type SnapshotSet struct {
	States map[string]json.RawMessage `json:"states"`
}

// DocxPrefill is the bounded extraction from an uploaded DOCX
type DocxPrefill struct {
	Text        string    `json:"text,omitempty"`
	Contact     CVData    `json:"contact"` // only contact fields populated
	PhotoKey    string    `json:"photo_key,omitempty"`
	SourceName  string    `json:"source_name,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// PromptAuditEntry records provenance for one LLM call without storing the
// prompt text itself.
type PromptAuditEntry struct {
	Stage      string    `json:"stage"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model,omitempty"`
	PromptHash string    `json:"prompt_hash"`
	InputHash  string    `json:"input_hash"`
	OutputHash string    `json:"output_hash,omitempty"`
	Repaired   bool      `json:"repaired,omitempty"`
	Mocked     bool      `json:"mocked,omitempty"`
	At         time.Time `json:"at"`
}

// Session is the hydrated view handed to services: raw properties decoded,
// offload pointers already expanded by the storage layer.
type Session struct {
	SessionID        string
	CV               *CVData
	Wizard           *WizardState
	JobPosting       *JobPosting
	ProposalCache    map[string]Proposal
	PDFRefs          map[string]PDFRef
	EventLog         []EventLogEntry
	Snapshots        *SnapshotSet
	Prefill          *DocxPrefill
	PromptAudit      []PromptAuditEntry
	ContentSignature string
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ExpiresAt        time.Time
}

// AppendEvent pushes an entry onto the event log, keeping at most limit
// entries (oldest dropped first).
func (s *Session) AppendEvent(entry EventLogEntry, limit int) {
	s.EventLog = append(s.EventLog, entry)
	if limit > 0 && len(s.EventLog) > limit {
		s.EventLog = s.EventLog[len(s.EventLog)-limit:]
	}
}

// PushStageVisit records a stage transition, keeping at most limit entries
func (w *WizardState) PushStageVisit(stage, action string, limit int) {
	w.StageHistory = append(w.StageHistory, StageVisit{
		Stage:     stage,
		Action:    action,
		EnteredAt: time.Now().UTC(),
	})
	if limit > 0 && len(w.StageHistory) > limit {
		w.StageHistory = w.StageHistory[len(w.StageHistory)-limit:]
	}
}
