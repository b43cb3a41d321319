package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/models"
	storage "github.com/ternarybob/tailor/internal/storage/badger"
)

func newTestSweeper(t *testing.T) (*Service, *storage.Manager) {
	t.Helper()

	logger := arbor.NewLogger()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = t.TempDir()
	cfg.Storage.Blob.Path = t.TempDir()

	m, err := storage.NewManager(logger, &cfg.Storage)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })

	return NewService(m.SessionStorage(), nil, cfg, logger), m
}

func putSession(t *testing.T, m *storage.Manager, id string, expiresAt time.Time) {
	t.Helper()
	err := m.SessionStorage().Put(context.Background(), &models.SessionRecord{
		SessionID: id,
		CVData:    json.RawMessage(`{}`),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSweepRemovesOnlyExpiredSessions(t *testing.T) {
	svc, m := newTestSweeper(t)
	ctx := context.Background()

	putSession(t, m, "s-expired-1", time.Now().UTC().Add(-time.Hour))
	putSession(t, m, "s-expired-2", time.Now().UTC().Add(-time.Minute))
	putSession(t, m, "s-live", time.Now().UTC().Add(time.Hour))

	removed, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}

	if _, err := m.SessionStorage().Get(ctx, "s-live"); err != nil {
		t.Error("Live session must survive the sweep")
	}
	if _, err := m.SessionStorage().Get(ctx, "s-expired-1"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Expired session must be gone, got %v", err)
	}
}

func TestSweepRemovesSessionBlobs(t *testing.T) {
	svc, m := newTestSweeper(t)
	ctx := context.Background()

	putSession(t, m, "s-blobby", time.Now().UTC().Add(-time.Hour))
	if _, err := m.BlobStorage().Put(ctx, "cv-pdfs/s-blobby/cv_abc.pdf", []byte("%PDF")); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Sweep(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := m.BlobStorage().Get(ctx, "cv-pdfs/s-blobby/cv_abc.pdf"); !errors.Is(err, models.ErrBlobNotFound) {
		t.Errorf("Session blobs must be swept with the session, got %v", err)
	}
}

func TestSweepEmptyStoreIsNoop(t *testing.T) {
	svc, _ := newTestSweeper(t)

	removed, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("Expected 0 removed, got %d", removed)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	svc, _ := newTestSweeper(t)
	svc.config.Cleanup.Schedule = "not a schedule"

	if err := svc.Start(); err == nil {
		t.Error("Invalid cron expression must be rejected")
		svc.Stop()
	}
}
