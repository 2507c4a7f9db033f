package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dkotenko/finance-tracker/internal/logger"
	"github.com/dkotenko/finance-tracker/internal/models"
)

// ErrSummaryNotCached is returned when no summary is cached for an owner.
var ErrSummaryNotCached = fmt.Errorf("summary not found in cache")

// SummaryCacheRepository caches per-owner balance summaries in Redis.
// Entries are invalidated on every transaction mutation, so a hit is always
// consistent with the stored sequence.
type SummaryCacheRepository struct {
	client *redis.Client
	exp    time.Duration
}

// NewSummaryCacheRepository creates a new repository instance with a TTL.
func NewSummaryCacheRepository(client *redis.Client, expiration time.Duration) *SummaryCacheRepository {
	return &SummaryCacheRepository{
		client: client,
		exp:    expiration,
	}
}

func summaryKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("summary:%s", ownerID)
}

// GetSummary fetches the cached summary for an owner.
func (r *SummaryCacheRepository) GetSummary(ctx context.Context, ownerID uuid.UUID) (*models.Summary, error) {
	key := summaryKey(ownerID)

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		logger.Log.Debugw("summary cache miss", "key", key, "error", err)
		if err == redis.Nil {
			return nil, ErrSummaryNotCached
		}
		return nil, err
	}

	var summary models.Summary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		logger.Log.Errorw("failed to decode cached summary", "key", key, "value", val, "error", err)
		return nil, err
	}

	logger.Log.Debugw("summary cache hit", "key", key, "summary", summary)
	return &summary, nil
}

// SetSummary caches a freshly computed summary for an owner.
func (r *SummaryCacheRepository) SetSummary(ctx context.Context, ownerID uuid.UUID, summary models.Summary) error {
	key := summaryKey(ownerID)

	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	err = r.client.Set(ctx, key, data, r.exp).Err()
	logger.Log.Debugw("summary cached", "key", key, "summary", summary, "error", err)
	return err
}

// InvalidateSummary drops the cached summary for an owner after a mutation.
func (r *SummaryCacheRepository) InvalidateSummary(ctx context.Context, ownerID uuid.UUID) error {
	key := summaryKey(ownerID)

	err := r.client.Del(ctx, key).Err()
	logger.Log.Debugw("summary cache invalidated", "key", key, "error", err)
	return err
}
