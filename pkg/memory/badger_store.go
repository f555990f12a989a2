package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ridewire/voice-engine/pkg/logging"
	"github.com/ridewire/voice-engine/pkg/models"
)

// BadgerStore is the embedded backend for single-node and local runs.
// Keys are <prefix><phone>:<zero-padded unix nanos>:<suffix> so a reverse
// prefix scan yields newest first.
type BadgerStore struct {
	db     *badger.DB
	opts   Options
	logger *zap.Logger
}

var _ ReadWriter = (*BadgerStore)(nil)

// OpenBadger opens a badger database at path. An empty path runs in memory.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}
	return db, nil
}

// NewBadgerStore creates a badger-backed memory store. The caller owns db.
func NewBadgerStore(db *badger.DB, opts Options, logger *zap.Logger) *BadgerStore {
	return &BadgerStore{
		db:     db,
		opts:   opts.withDefaults(),
		logger: logger.Named("memory.badger"),
	}
}

func (s *BadgerStore) prefix(phone string) []byte {
	return []byte(s.opts.key(phone) + ":")
}

func (s *BadgerStore) recordKey(record models.CallRecord) []byte {
	suffix := uuid.New().String()[:8]
	return []byte(fmt.Sprintf("%s%020d:%s", s.prefix(record.Phone), record.Timestamp.UnixNano(), suffix))
}

// Append writes the record with the retention TTL and drops entries beyond
// MaxEntries.
func (s *BadgerStore) Append(ctx context.Context, record models.CallRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(s.recordKey(record), data).WithTTL(s.opts.Retention)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}

		stale, err := s.keysBeyond(txn, record.Phone, s.opts.MaxEntries)
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append call record: %w", err)
	}
	return nil
}

// keysBeyond returns keys older than the newest keep entries.
func (s *BadgerStore) keysBeyond(txn *badger.Txn, phone string, keep int) ([][]byte, error) {
	var stale [][]byte
	n := 0
	err := s.scan(txn, phone, false, func(item *badger.Item) (bool, error) {
		n++
		if n > keep {
			stale = append(stale, item.KeyCopy(nil))
		}
		return true, nil
	})
	return stale, err
}

// scan walks the phone's records newest first until fn returns false.
func (s *BadgerStore) scan(txn *badger.Txn, phone string, values bool, fn func(item *badger.Item) (bool, error)) error {
	prefix := s.prefix(phone)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = prefix
	opts.PrefetchValues = values

	it := txn.NewIterator(opts)
	defer it.Close()

	seek := append(append([]byte{}, prefix...), 0xFF)
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		more, err := fn(it.Item())
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return nil
}

func (s *BadgerStore) GetLatest(ctx context.Context, phone string) (models.CallRecord, bool, error) {
	records, err := s.GetRecentHistory(ctx, phone, 1)
	if err != nil {
		return models.CallRecord{}, false, err
	}
	if len(records) == 0 {
		return models.CallRecord{}, false, nil
	}
	return records[0], true, nil
}

func (s *BadgerStore) GetRecentHistory(ctx context.Context, phone string, limit int) ([]models.CallRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	var records []models.CallRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return s.scan(txn, phone, true, func(item *badger.Item) (bool, error) {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return false, err
			}
			record, err := decodeRecord(data)
			if err != nil {
				s.logger.Warn("Skipping unreadable call record",
					zap.String("phone", logging.MaskPhone(phone)),
					zap.Error(err))
				return true, nil
			}
			records = append(records, record)
			return len(records) < limit, nil
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read call history: %w", err)
	}
	return records, nil
}
