package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/interfaces"
)

// Manager bundles the session store and the blob store behind one handle
type Manager struct {
	db       *BadgerDB
	sessions *SessionStorage
	blobs    interfaces.BlobStorage
	logger   arbor.ILogger
}

// NewManager opens both databases and wires the session store to the blobs
func NewManager(logger arbor.ILogger, config *common.StorageConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, &config.Badger)
	if err != nil {
		return nil, err
	}

	blobs, err := NewBlobStorage(logger, &config.Blob)
	if err != nil {
		db.Close()
		return nil, err
	}

	manager := &Manager{
		db:       db,
		sessions: NewSessionStorage(db, blobs, logger),
		blobs:    blobs,
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// SessionStorage returns the session storage interface
func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.sessions
}

// Sessions returns the concrete session store for codec wiring
func (m *Manager) Sessions() *SessionStorage {
	return m.sessions
}

// BlobStorage returns the blob storage interface
func (m *Manager) BlobStorage() interfaces.BlobStorage {
	return m.blobs
}

// Close closes both databases
func (m *Manager) Close() error {
	var first error
	if m.blobs != nil {
		if err := m.blobs.Close(); err != nil {
			first = err
		}
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
