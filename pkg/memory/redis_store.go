package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ridewire/voice-engine/pkg/logging"
	"github.com/ridewire/voice-engine/pkg/models"
)

// RedisStore keeps one list per phone, newest record at the head.
type RedisStore struct {
	client redis.Cmdable
	opts   Options
	logger *zap.Logger
}

var _ ReadWriter = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed memory store.
func NewRedisStore(client redis.Cmdable, opts Options, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		opts:   opts.withDefaults(),
		logger: logger.Named("memory.redis"),
	}
}

// Append pushes the record, trims the list and refreshes retention in one
// MULTI/EXEC.
func (s *RedisStore) Append(ctx context.Context, record models.CallRecord) error {
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	key := s.opts.key(record.Phone)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(s.opts.MaxEntries-1))
		pipe.Expire(ctx, key, s.opts.Retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append call record: %w", err)
	}
	return nil
}

func (s *RedisStore) GetLatest(ctx context.Context, phone string) (models.CallRecord, bool, error) {
	data, err := s.client.LIndex(ctx, s.opts.key(phone), 0).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.CallRecord{}, false, nil
	}
	if err != nil {
		return models.CallRecord{}, false, fmt.Errorf("failed to read latest call: %w", err)
	}

	record, err := decodeRecord(data)
	if err != nil {
		return models.CallRecord{}, false, err
	}
	return record, true, nil
}

func (s *RedisStore) GetRecentHistory(ctx context.Context, phone string, limit int) ([]models.CallRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	items, err := s.client.LRange(ctx, s.opts.key(phone), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read call history: %w", err)
	}

	records := make([]models.CallRecord, 0, len(items))
	for i, item := range items {
		record, err := decodeRecord([]byte(item))
		if err != nil {
			s.logger.Warn("Skipping unreadable call record",
				zap.String("phone", logging.MaskPhone(phone)),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
