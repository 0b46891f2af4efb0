package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/simaogato/linkledger-backend/internal/domain"
)

// RedisEligibilityIndex implements domain.EligibilityIndex as a Redis sorted set.
// Members are account ids scored by the time they were first marked, so sweeps
// visit accounts in the order they became eligible and several ledger processes
// can share one index.
type RedisEligibilityIndex struct {
	client *redis.Client
	key    string
}

func NewRedisEligibilityIndex(addr, password string, db int, key string) *RedisEligibilityIndex {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisEligibilityIndex{client: client, key: key}
}

// Ensure RedisEligibilityIndex implements the EligibilityIndex interface
var _ domain.EligibilityIndex = (*RedisEligibilityIndex)(nil)

// Ping checks the connection to Redis
func (r *RedisEligibilityIndex) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	return nil
}

// Close releases the underlying client
func (r *RedisEligibilityIndex) Close() error {
	return r.client.Close()
}

// Mark adds an account to the index, keeping its original position when already present
func (r *RedisEligibilityIndex) Mark(ctx context.Context, accountID uuid.UUID) error {
	err := r.client.ZAddNX(ctx, r.key, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: accountID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to mark account %s: %w", accountID, err)
	}
	return nil
}

// Remove drops an account from the index
func (r *RedisEligibilityIndex) Remove(ctx context.Context, accountID uuid.UUID) error {
	if err := r.client.ZRem(ctx, r.key, accountID.String()).Err(); err != nil {
		return fmt.Errorf("failed to remove account %s: %w", accountID, err)
	}
	return nil
}

// List returns the indexed accounts, earliest marked first
func (r *RedisEligibilityIndex) List(ctx context.Context) ([]uuid.UUID, error) {
	members, err := r.client.ZRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible accounts: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			return nil, fmt.Errorf("invalid account id %q in eligibility index: %w", member, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
