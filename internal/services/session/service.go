package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/models"
)

// Service owns session lifecycle: bootstrap, hydration between the stored
// record and the typed view, TTL checks, and serialized turns per session.
type Service struct {
	storage interfaces.SessionStorage
	blobs   interfaces.BlobStorage
	config  *common.Config
	logger  arbor.ILogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates the session service
func NewService(storage interfaces.SessionStorage, blobs interfaces.BlobStorage, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		blobs:   blobs,
		config:  config,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Lock serializes turns for one session. Concurrent tool calls against the
// same session queue here instead of racing on version conflicts.
func (s *Service) Lock(sessionID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Bootstrap creates a fresh session with the canonical empty CV. Supplying
// the ID of an existing session is a stage violation, never a silent merge
// with prior state.
func (s *Service) Bootstrap(ctx context.Context, requestedID string) (*models.Session, error) {
	sessionID := requestedID
	if sessionID == "" {
		sessionID = common.NewSessionID()
	} else {
		_, err := s.storage.Get(ctx, sessionID)
		if err == nil {
			return nil, models.NewAppError(models.ErrKindStage,
				fmt.Sprintf("session %s is already bootstrapped", sessionID)).
				WithSuggestion("use get_session to continue, or bootstrap without an id")
		}
		if !errors.Is(err, models.ErrSessionNotFound) {
			return nil, err
		}
	}

	now := time.Now().UTC()
	sess := &models.Session{
		SessionID: sessionID,
		CV:        models.NewEmptyCV(),
		Wizard: &models.WizardState{
			Stage:       models.StageLanguageSelection,
			StageStates: make(map[string]bool),
		},
		ProposalCache: make(map[string]models.Proposal),
		PDFRefs:       make(map[string]models.PDFRef),
		Snapshots:     &models.SnapshotSet{States: make(map[string]json.RawMessage)},
		Version:       0,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.config.SessionTTL()),
	}
	sess.Wizard.PushStageVisit(models.StageLanguageSelection, models.ActionBootstrap, s.config.Session.StageHistorySize)

	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info().Str("session_id", sessionID).Msg("Session bootstrapped")
	return sess, nil
}

// Load retrieves and hydrates a session, enforcing TTL
func (s *Service) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	record, err := s.storage.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !record.ExpiresAt.IsZero() && time.Now().UTC().After(record.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionExpired, sessionID)
	}
	return hydrate(record)
}

// Save dehydrates and persists a session. A version conflict goes up to
// the caller, who must reload and re-apply its change: force-writing the
// stale record here would silently drop the concurrent write.
func (s *Service) Save(ctx context.Context, sess *models.Session) error {
	// Sliding expiry on every successful turn
	sess.ExpiresAt = time.Now().UTC().Add(s.config.SessionTTL())

	record, err := dehydrate(sess)
	if err != nil {
		return err
	}

	err = s.storage.Put(ctx, record)
	if errors.Is(err, models.ErrVersionConflict) {
		stored, gerr := s.storage.Get(ctx, sess.SessionID)
		storedVersion := -1
		if gerr == nil {
			storedVersion = stored.Version
		}
		s.logger.Warn().
			Str("session_id", sess.SessionID).
			Int("loaded", record.Version).
			Int("stored", storedVersion).
			Msg("Version conflict, concurrent write detected")
		return err
	}
	if err != nil {
		return err
	}

	sess.Version = record.Version
	sess.UpdatedAt = record.UpdatedAt
	sess.ContentSignature = record.ContentSignature
	return nil
}

// SaveBestEffort persists bookkeeping-only updates (event log, audit trail).
// Failures are logged and swallowed: losing a log entry must never fail the
// user-visible operation that produced it.
func (s *Service) SaveBestEffort(ctx context.Context, sess *models.Session) {
	if err := s.Save(ctx, sess); err != nil {
		s.logger.Warn().Err(err).
			Str("session_id", sess.SessionID).
			Msg("PERSIST_FAILED: best-effort session write dropped")
	}
}

// Delete removes a session and its blobs
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	return s.storage.Delete(ctx, sessionID)
}

// Shrink implements interfaces.PropertyCodec: when a metadata property
// cannot be offloaded, drop its most expendable content. Order: the
// proposal cache is pure re-derivable cache, raw prefill text is recoverable
// from the original upload, and the event log keeps only its tail.
func (s *Service) Shrink(property string, value json.RawMessage) (json.RawMessage, bool) {
	switch property {
	case models.MetaProposalCache:
		return json.RawMessage(`{}`), true

	case models.MetaPrefill:
		var prefill models.DocxPrefill
		if err := json.Unmarshal(value, &prefill); err != nil {
			return nil, false
		}
		prefill.Text = ""
		out, err := json.Marshal(&prefill)
		if err != nil {
			return nil, false
		}
		return out, true

	case models.MetaEventLog:
		var entries []models.EventLogEntry
		if err := json.Unmarshal(value, &entries); err != nil {
			return nil, false
		}
		if len(entries) > 10 {
			entries = entries[len(entries)-10:]
		}
		out, err := json.Marshal(entries)
		if err != nil {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

// RecordEvent appends to the bounded per-session event log
func (s *Service) RecordEvent(sess *models.Session, action, outcome, detail, traceID string) {
	sess.AppendEvent(models.EventLogEntry{
		At:      time.Now().UTC(),
		Action:  action,
		Stage:   sess.Wizard.Stage,
		Outcome: outcome,
		Detail:  detail,
		TraceID: traceID,
	}, s.config.Session.EventLogSize)
}

// RecordAudit appends an LLM provenance entry
func (s *Service) RecordAudit(sess *models.Session, entry models.PromptAuditEntry) {
	sess.PromptAudit = append(sess.PromptAudit, entry)
	if len(sess.PromptAudit) > 100 {
		sess.PromptAudit = sess.PromptAudit[len(sess.PromptAudit)-100:]
	}
}
