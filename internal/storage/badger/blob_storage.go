package badger

import (
	"context"
	"fmt"
	"os"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tailor/internal/common"
	"github.com/ternarybob/tailor/internal/interfaces"
	"github.com/ternarybob/tailor/internal/models"
)

// BlobStorage stores raw byte payloads in a dedicated Badger instance,
// separate from the session store: offloaded session properties, generated
// PDFs and extracted photos.
type BlobStorage struct {
	db     *badgerdb.DB
	logger arbor.ILogger
}

// NewBlobStorage opens the blob database at the configured path
func NewBlobStorage(logger arbor.ILogger, config *common.BlobConfig) (interfaces.BlobStorage, error) {
	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	opts := badgerdb.DefaultOptions(config.Path)
	opts.Logger = nil

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Blob database initialized")

	return &BlobStorage{db: db, logger: logger}, nil
}

// Put stores data under key and returns the content sha256
func (s *BlobStorage) Put(ctx context.Context, key string, data []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store blob %s: %w", key, err)
	}

	sum := common.HashSHA256(data)
	s.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("Blob stored")
	return sum, nil
}

// Get retrieves a blob by key
func (s *BlobStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: %s", models.ErrBlobNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return data, nil
}

// Delete removes a blob; missing keys are not an error
func (s *BlobStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil && err != badgerdb.ErrKeyNotFound {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes all blobs under prefix and returns the count
func (s *BlobStorage) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan blobs under %s: %w", prefix, err)
	}

	deleted := 0
	for _, key := range keys {
		err := s.db.Update(func(txn *badgerdb.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("key", string(key)).Msg("Failed to delete blob during prefix sweep")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Debug().Str("prefix", prefix).Int("deleted", deleted).Msg("Blobs removed")
	}
	return deleted, nil
}

// Close closes the blob database
func (s *BlobStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
