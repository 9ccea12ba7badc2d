package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another checkout for the user is running.
var ErrLockHeld = errors.New("checkout lock held")

// CheckoutLocker serialises checkout steps per user across instances.
type CheckoutLocker interface {
	// Acquire takes the user's lock. The returned release function only
	// deletes the lock while it is still owned by this caller.
	Acquire(ctx context.Context, userID string) (release func(context.Context) error, err error)
}

// IdempotencyStore remembers the response of a completed request key.
type IdempotencyStore interface {
	GetIdempotency(ctx context.Context, key string) (string, error)
	SetIdempotency(ctx context.Context, key, value string) error
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisCheckoutStore struct {
	client  *redis.Client
	lockTTL time.Duration
	idemTTL time.Duration
}

func NewRedisCheckoutStore(client *redis.Client, lockTTL, idemTTL time.Duration) *RedisCheckoutStore {
	return &RedisCheckoutStore{client: client, lockTTL: lockTTL, idemTTL: idemTTL}
}

func (s *RedisCheckoutStore) lockKey(userID string) string {
	return fmt.Sprintf("checkout:lock:user:%s", userID)
}

func (s *RedisCheckoutStore) idemKey(key string) string {
	return "idem:checkout:" + key
}

func (s *RedisCheckoutStore) Acquire(ctx context.Context, userID string) (func(context.Context) error, error) {
	key := s.lockKey(userID)
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire checkout lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, s.client, []string{key}, token).Err()
	}, nil
}

func (s *RedisCheckoutStore) GetIdempotency(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.idemKey(key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisCheckoutStore) SetIdempotency(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.idemKey(key), value, s.idemTTL).Err()
}
