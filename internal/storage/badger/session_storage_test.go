package badger

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	logger := arbor.NewLogger()
	cfg := &common.StorageConfig{
		Badger: common.BadgerConfig{Path: t.TempDir()},
		Blob:   common.BlobConfig{Path: t.TempDir()},
	}

	m, err := NewManager(logger, cfg)
	if err != nil {
		t.Fatalf("Failed to open storage manager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func newTestRecord(sessionID string) *models.SessionRecord {
	now := time.Now().UTC()
	return &models.SessionRecord{
		SessionID: sessionID,
		CVData:    json.RawMessage(`{"full_name":"Ada Lovelace"}`),
		Metadata: map[string]json.RawMessage{
			models.MetaWizard: json.RawMessage(`{"stage":"contact"}`),
		},
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

func TestSessionPutGetRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	record := newTestRecord("s-roundtrip")
	if err := m.SessionStorage().Put(ctx, record); err != nil {
		t.Fatalf("Failed to put session: %v", err)
	}
	if record.Version != 1 {
		t.Fatalf("Expected version 1 after first put, got %d", record.Version)
	}

	got, err := m.SessionStorage().Get(ctx, "s-roundtrip")
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if string(got.CVData) != `{"full_name":"Ada Lovelace"}` {
		t.Errorf("CV data mismatch: %s", got.CVData)
	}
	if string(got.Metadata[models.MetaWizard]) != `{"stage":"contact"}` {
		t.Errorf("Metadata mismatch: %s", got.Metadata[models.MetaWizard])
	}
}

func TestSessionGetNotFound(t *testing.T) {
	m := newTestManager(t)

	_, err := m.SessionStorage().Get(context.Background(), "missing")
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionVersionMonotonicity(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	record := newTestRecord("s-version")
	for i := 1; i <= 3; i++ {
		if err := m.SessionStorage().Put(ctx, record); err != nil {
			t.Fatalf("Put %d failed: %v", i, err)
		}
		if record.Version != i {
			t.Fatalf("Expected version %d, got %d", i, record.Version)
		}
	}
}

func TestSessionVersionConflict(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	record := newTestRecord("s-conflict")
	if err := m.SessionStorage().Put(ctx, record); err != nil {
		t.Fatalf("Initial put failed: %v", err)
	}

	// A second writer loaded the same version and wins the race
	stale := newTestRecord("s-conflict")
	stale.Version = 0

	err := m.SessionStorage().Put(ctx, stale)
	if !errors.Is(err, models.ErrVersionConflict) {
		t.Fatalf("Expected ErrVersionConflict, got %v", err)
	}
}

func TestOversizedPropertyOffloadRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// A metadata property just over the 64 KiB ceiling must be offloaded
	// on write and expanded transparently on read.
	bulk := strings.Repeat("x", models.MaxPropertyBytes+512)
	payload, _ := json.Marshal(map[string]string{"text": bulk})

	record := newTestRecord("s-offload")
	record.Metadata[models.MetaPrefill] = payload

	if err := m.SessionStorage().Put(ctx, record); err != nil {
		t.Fatalf("Put with oversized property failed: %v", err)
	}

	raw, err := m.Sessions().RawGet(ctx, "s-offload")
	if err != nil {
		t.Fatalf("RawGet failed: %v", err)
	}
	ref, ok := models.IsOffloadRef(raw.Metadata[models.MetaPrefill])
	if !ok {
		t.Fatalf("Expected offload pointer in raw record, got %d bytes inline", len(raw.Metadata[models.MetaPrefill]))
	}
	if ref.Bytes != len(payload) {
		t.Errorf("Pointer records %d bytes, expected %d", ref.Bytes, len(payload))
	}
	if !strings.HasPrefix(ref.Key, "cv-artifacts/s-offload/") {
		t.Errorf("Unexpected blob key: %s", ref.Key)
	}

	got, err := m.SessionStorage().Get(ctx, "s-offload")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Metadata[models.MetaPrefill]) != string(payload) {
		t.Error("Expanded property does not match original payload")
	}
}

func TestDeleteRemovesSessionAndBlobs(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	bulk := strings.Repeat("y", models.MaxPropertyBytes+100)
	payload, _ := json.Marshal(map[string]string{"text": bulk})

	record := newTestRecord("s-delete")
	record.Metadata[models.MetaPrefill] = payload
	if err := m.SessionStorage().Put(ctx, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	raw, _ := m.Sessions().RawGet(ctx, "s-delete")
	ref, ok := models.IsOffloadRef(raw.Metadata[models.MetaPrefill])
	if !ok {
		t.Fatal("Expected offloaded property")
	}

	if err := m.SessionStorage().Delete(ctx, "s-delete"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := m.SessionStorage().Get(ctx, "s-delete"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Expected session gone, got %v", err)
	}
	if _, err := m.BlobStorage().Get(ctx, ref.Key); !errors.Is(err, models.ErrBlobNotFound) {
		t.Errorf("Expected blob gone, got %v", err)
	}
}

func TestListExpired(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	expired := newTestRecord("s-expired")
	expired.ExpiresAt = time.Now().UTC().Add(-1 * time.Hour)
	if err := m.SessionStorage().Put(ctx, expired); err != nil {
		t.Fatalf("Put expired failed: %v", err)
	}

	live := newTestRecord("s-live")
	if err := m.SessionStorage().Put(ctx, live); err != nil {
		t.Fatalf("Put live failed: %v", err)
	}

	ids, err := m.SessionStorage().ListExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ListExpired failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "s-expired" {
		t.Errorf("Expected [s-expired], got %v", ids)
	}
}

func TestSessionSearch(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	record := newTestRecord("s-search")
	record.CVData = json.RawMessage(`{"full_name":"Grace Hopper","email":"grace@example.com"}`)
	if err := m.SessionStorage().Put(ctx, record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	ids, err := m.SessionStorage().Search(ctx, "hopper", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "s-search" {
		t.Errorf("Expected [s-search], got %v", ids)
	}

	ids, err = m.SessionStorage().Search(ctx, "no-such-needle", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no matches, got %v", ids)
	}
}

func TestBlobPutGetDeletePrefix(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	sum, err := m.BlobStorage().Put(ctx, "cv-pdfs/s1/cv_abc.pdf", []byte("%PDF-1.7 fake"))
	if err != nil {
		t.Fatalf("Blob put failed: %v", err)
	}
	if sum == "" {
		t.Error("Expected content hash from Put")
	}

	data, err := m.BlobStorage().Get(ctx, "cv-pdfs/s1/cv_abc.pdf")
	if err != nil {
		t.Fatalf("Blob get failed: %v", err)
	}
	if string(data) != "%PDF-1.7 fake" {
		t.Errorf("Blob content mismatch: %s", data)
	}

	if _, err := m.BlobStorage().Put(ctx, "cv-pdfs/s1/cover_def.pdf", []byte("x")); err != nil {
		t.Fatal(err)
	}
	deleted, err := m.BlobStorage().DeletePrefix(ctx, "cv-pdfs/s1/")
	if err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deletions, got %d", deleted)
	}
}
