package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/schoolsuite/sms-core-api/internal/models"
)

// ImportFailureCache keeps per-row failure details of a bulk upload in Redis
// for a short window so clients can download a failure report after the job
// finishes. The upload record itself only carries counters.
type ImportFailureCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewImportFailureCache constructs an ImportFailureCache.
func NewImportFailureCache(client *redis.Client, ttl time.Duration) *ImportFailureCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ImportFailureCache{client: client, ttl: ttl}
}

func importFailureKey(uploadID string) string {
	return "student_import_failures_" + uploadID
}

// Store saves the failed rows of an upload, replacing any previous set.
func (c *ImportFailureCache) Store(ctx context.Context, uploadID string, rows []models.ImportRowError) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal failure rows: %w", err)
	}
	if err := c.client.Set(ctx, importFailureKey(uploadID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache failure rows: %w", err)
	}
	return nil
}

// Get returns the cached failure rows, or nil when the entry expired.
func (c *ImportFailureCache) Get(ctx context.Context, uploadID string) ([]models.ImportRowError, error) {
	payload, err := c.client.Get(ctx, importFailureKey(uploadID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("read failure rows: %w", err)
	}
	var rows []models.ImportRowError
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal failure rows: %w", err)
	}
	return rows, nil
}
