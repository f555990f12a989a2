// Package memory reads (and, for the call-ending writer and tests, appends)
// per-phone call history in a key-value store.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ridewire/voice-engine/pkg/apperrors"
	"github.com/ridewire/voice-engine/pkg/config"
	"github.com/ridewire/voice-engine/pkg/models"
)

// Store is the read side used by the lookup.
type Store interface {
	// GetLatest returns the newest record for the phone. found is false when
	// the phone has no history.
	GetLatest(ctx context.Context, phone string) (models.CallRecord, bool, error)

	// GetRecentHistory returns up to limit records, newest first.
	GetRecentHistory(ctx context.Context, phone string, limit int) ([]models.CallRecord, error)
}

// Writer appends a finished call. Records are never modified after Append.
type Writer interface {
	Append(ctx context.Context, record models.CallRecord) error
}

// ReadWriter is implemented by every concrete backend.
type ReadWriter interface {
	Store
	Writer
}

// Options are shared by all backends.
type Options struct {
	KeyPrefix  string
	Retention  time.Duration
	MaxEntries int
}

// OptionsFromConfig extracts backend-independent options.
func OptionsFromConfig(cfg *config.MemoryConfig) Options {
	return Options{
		KeyPrefix:  cfg.KeyPrefix,
		Retention:  cfg.Retention,
		MaxEntries: cfg.MaxEntries,
	}
}

func (o Options) withDefaults() Options {
	if o.KeyPrefix == "" {
		o.KeyPrefix = "customer_memory:"
	}
	if o.Retention <= 0 {
		o.Retention = 30 * 24 * time.Hour
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = 50
	}
	return o
}

func (o Options) key(phone string) string {
	return o.KeyPrefix + phone
}

func encodeRecord(record models.CallRecord) ([]byte, error) {
	if record.Phone == "" {
		return nil, fmt.Errorf("call record has no phone")
	}
	if record.Timestamp.IsZero() {
		return nil, fmt.Errorf("call record has no timestamp")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode call record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (models.CallRecord, error) {
	var record models.CallRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return models.CallRecord{}, fmt.Errorf("%w: call record: %v", apperrors.ErrInvalidUpstreamData, err)
	}
	return record, nil
}
