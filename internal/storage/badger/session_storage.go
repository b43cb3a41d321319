package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// cvDataProperty is the pseudo-property name used when the CV body itself
// needs offloading.
const cvDataProperty = "cv_data"

// SessionStorage implements interfaces.SessionStorage on badgerhold, with
// per-property size enforcement backed by the blob store.
type SessionStorage struct {
	db     *BadgerDB
	blobs  interfaces.BlobStorage
	codec  interfaces.PropertyCodec
	logger arbor.ILogger
}

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, blobs interfaces.BlobStorage, logger arbor.ILogger) *SessionStorage {
	return &SessionStorage{
		db:     db,
		blobs:  blobs,
		logger: logger,
	}
}

// SetCodec wires the shrink fallback. The session service registers itself
// here after construction; a nil codec just skips the shrink step.
func (s *SessionStorage) SetCodec(codec interfaces.PropertyCodec) {
	s.codec = codec
}

// Get retrieves a session with offloaded properties expanded. A pointer
// whose blob cannot be fetched is left in place with a warning rather than
// failing the whole read.
func (s *SessionStorage) Get(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	record, err := s.RawGet(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if ref, ok := models.IsOffloadRef(record.CVData); ok {
		if data, err := s.blobs.Get(ctx, ref.Key); err == nil {
			record.CVData = data
		} else {
			s.logger.Warn().Err(err).
				Str("session_id", sessionID).
				Str("property", cvDataProperty).
				Str("blob_key", ref.Key).
				Msg("Failed to expand offloaded property")
		}
	}

	for prop, raw := range record.Metadata {
		ref, ok := models.IsOffloadRef(raw)
		if !ok {
			continue
		}
		data, err := s.blobs.Get(ctx, ref.Key)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("session_id", sessionID).
				Str("property", prop).
				Str("blob_key", ref.Key).
				Msg("Failed to expand offloaded property")
			continue
		}
		record.Metadata[prop] = data
	}

	return record, nil
}

// RawGet retrieves the record exactly as stored, pointers included
func (s *SessionStorage) RawGet(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	var record models.SessionRecord
	if err := s.db.Store().Get(sessionID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &record, nil
}

// Put persists a session record under optimistic concurrency: the stored
// version must still equal record.Version, and the written version is
// record.Version+1. Oversized properties are offloaded before the write.
func (s *SessionStorage) Put(ctx context.Context, record *models.SessionRecord) error {
	if record.SessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	var stored models.SessionRecord
	err := s.db.Store().Get(record.SessionID, &stored)
	switch {
	case err == badgerhold.ErrNotFound:
		if record.Version != 0 {
			return fmt.Errorf("%w: session %s vanished (expected version %d)",
				models.ErrVersionConflict, record.SessionID, record.Version)
		}
	case err != nil:
		return fmt.Errorf("failed to read session for version check: %w", err)
	default:
		if stored.Version != record.Version {
			return fmt.Errorf("%w: session %s stored=%d loaded=%d",
				models.ErrVersionConflict, record.SessionID, stored.Version, record.Version)
		}
	}

	out := *record
	out.Metadata = make(map[string]json.RawMessage, len(record.Metadata))
	for k, v := range record.Metadata {
		out.Metadata[k] = v
	}

	bounded, err := s.boundProperty(ctx, record.SessionID, cvDataProperty, out.CVData)
	if err != nil {
		return err
	}
	out.CVData = bounded

	for prop, raw := range out.Metadata {
		bounded, err := s.boundProperty(ctx, record.SessionID, prop, raw)
		if err != nil {
			return err
		}
		out.Metadata[prop] = bounded
	}

	out.Version = record.Version + 1
	out.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert(out.SessionID, &out); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	record.Version = out.Version
	record.UpdatedAt = out.UpdatedAt
	return nil
}

// boundProperty enforces the 64 KiB property ceiling: oversized values move
// to the blob store and a pointer takes their place. When the blob write
// fails, the codec gets one chance to shrink the value before the typed
// size error goes up.
func (s *SessionStorage) boundProperty(ctx context.Context, sessionID, prop string, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) <= models.MaxPropertyBytes {
		return raw, nil
	}
	if _, ok := models.IsOffloadRef(raw); ok {
		return raw, nil
	}

	key := fmt.Sprintf("cv-artifacts/%s/%s", sessionID, prop)
	sum, err := s.blobs.Put(ctx, key, raw)
	if err == nil {
		ref := models.OffloadRef{
			Kind:   models.OffloadRefKind,
			Key:    key,
			SHA256: sum,
			Bytes:  len(raw),
		}
		pointer, merr := json.Marshal(ref)
		if merr != nil {
			return nil, fmt.Errorf("failed to encode offload pointer: %w", merr)
		}
		s.logger.Info().
			Str("session_id", sessionID).
			Str("property", prop).
			Int("bytes", len(raw)).
			Msg("Property offloaded to blob store")
		return pointer, nil
	}

	s.logger.Warn().Err(err).
		Str("session_id", sessionID).
		Str("property", prop).
		Msg("Blob offload failed, attempting shrink")

	if s.codec != nil {
		if shrunk, ok := s.codec.Shrink(prop, raw); ok && len(shrunk) <= models.MaxPropertyBytes {
			return shrunk, nil
		}
	}

	return nil, models.NewAppError(models.ErrKindSizeLimit, "session property exceeds storage limit").
		WithDetails(&models.SizeLimitError{Property: prop, Bytes: len(raw), Limit: models.MaxPropertyBytes}).
		WithSuggestion("remove bulk content from the session and retry").
		WithCause(err)
}

// Delete removes a session and everything it offloaded
func (s *SessionStorage) Delete(ctx context.Context, sessionID string) error {
	if err := s.db.Store().Delete(sessionID, &models.SessionRecord{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	for _, prefix := range []string{
		fmt.Sprintf("cv-artifacts/%s/", sessionID),
		fmt.Sprintf("cv-pdfs/%s/", sessionID),
		fmt.Sprintf("cv-photos/%s/", sessionID),
	} {
		if _, err := s.blobs.DeletePrefix(ctx, prefix); err != nil {
			s.logger.Warn().Err(err).Str("prefix", prefix).Msg("Failed to sweep session blobs")
		}
	}
	return nil
}

// ListExpired returns IDs of sessions past their expiry
func (s *SessionStorage) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	var records []models.SessionRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("ExpiresAt").Lt(now)); err != nil {
		return nil, fmt.Errorf("failed to query expired sessions: %w", err)
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.SessionID)
	}
	return ids, nil
}

// Search scans stored sessions for a substring match over their JSON.
// Operator tooling only; the scan is linear.
func (s *SessionStorage) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	needle := strings.ToLower(query)

	var records []models.SessionRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("SessionID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	var ids []string
	for _, r := range records {
		encoded, err := json.Marshal(&r)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(string(encoded)), needle) {
			ids = append(ids, r.SessionID)
			if len(ids) >= limit {
				break
			}
		}
	}
	return ids, nil
}
