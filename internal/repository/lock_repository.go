package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LockRepository implements distributed locks over redis so only one webhook
// delivery or poll cycle settles a given transaction at a time.
type LockRepository interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error)
	ReleaseLock(ctx context.Context, lock *DistributedLock) error
	ExtendLock(ctx context.Context, lock *DistributedLock, ttl time.Duration) error
	IsLocked(ctx context.Context, key string) (bool, error)
}

type DistributedLock struct {
	Key        string
	Value      string
	TTL        time.Duration
	AcquiredAt time.Time
}

// ErrLockHeld is returned when another holder owns the lock; callers treat it
// as "someone else is settling this, skip".
var ErrLockHeld = fmt.Errorf("lock already held")

type lockRepository struct {
	client *redis.Client
}

func NewLockRepository(client *redis.Client) LockRepository {
	return &lockRepository{
		client: client,
	}
}

const (
	lockPrefix = "lock:"
	// Delete only when we still own the lock.
	releaseScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	extendScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("EXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
)

func (r *lockRepository) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	lockKey := lockPrefix + key
	lockValue := uuid.New().String()

	acquired, err := r.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
	}

	return &DistributedLock{
		Key:        lockKey,
		Value:      lockValue,
		TTL:        ttl,
		AcquiredAt: time.Now(),
	}, nil
}

func (r *lockRepository) ReleaseLock(ctx context.Context, lock *DistributedLock) error {
	result, err := r.client.Eval(ctx, releaseScript, []string{lock.Key}, lock.Value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if result.(int64) == 0 {
		return fmt.Errorf("lock not found or already released: %s", lock.Key)
	}
	return nil
}

func (r *lockRepository) ExtendLock(ctx context.Context, lock *DistributedLock, ttl time.Duration) error {
	result, err := r.client.Eval(ctx, extendScript, []string{lock.Key}, lock.Value, int(ttl.Seconds())).Result()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if result.(int64) == 0 {
		return fmt.Errorf("lock not found or not owned: %s", lock.Key)
	}

	lock.TTL = ttl
	return nil
}

func (r *lockRepository) IsLocked(ctx context.Context, key string) (bool, error) {
	exists, err := r.client.Exists(ctx, lockPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check lock existence: %w", err)
	}
	return exists > 0, nil
}

// SettlementLockManager names the lock keys used across the settlement paths.
type SettlementLockManager struct {
	lockRepo LockRepository
}

func NewSettlementLockManager(lockRepo LockRepository) *SettlementLockManager {
	return &SettlementLockManager{
		lockRepo: lockRepo,
	}
}

// LockTransaction serializes settlement of one transaction across the webhook
// and poll paths.
func (m *SettlementLockManager) LockTransaction(ctx context.Context, tradeNo string, ttl time.Duration) (*DistributedLock, error) {
	return m.lockRepo.AcquireLock(ctx, fmt.Sprintf("settle:%s", tradeNo), ttl)
}

// LockAffiliate serializes balance reads against withdrawal authorization for
// one affiliate.
func (m *SettlementLockManager) LockAffiliate(ctx context.Context, affiliateID int64, ttl time.Duration) (*DistributedLock, error) {
	return m.lockRepo.AcquireLock(ctx, fmt.Sprintf("affiliate:%d", affiliateID), ttl)
}

func (m *SettlementLockManager) ReleaseLock(ctx context.Context, lock *DistributedLock) error {
	return m.lockRepo.ReleaseLock(ctx, lock)
}

func (m *SettlementLockManager) ExtendLock(ctx context.Context, lock *DistributedLock, ttl time.Duration) error {
	return m.lockRepo.ExtendLock(ctx, lock, ttl)
}
