package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisAttributes implements AttributeStore on redis. Attributes never
// expire; they mirror host entity attributes.
type RedisAttributes struct {
	R      *redis.Client
	Prefix string
}

func (s RedisAttributes) key(subject, name string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "attr"
	}
	return prefix + ":" + subject + ":" + name
}

func (s RedisAttributes) Get(ctx context.Context, subject, name string) (string, error) {
	value, err := s.R.Get(ctx, s.key(subject, name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

func (s RedisAttributes) Set(ctx context.Context, subject, name, value string) error {
	return s.R.Set(ctx, s.key(subject, name), value, 0).Err()
}

func (s RedisAttributes) Delete(ctx context.Context, subject, name string) error {
	return s.R.Del(ctx, s.key(subject, name)).Err()
}

// SetIfChanged writes value unless the key already holds it. The check and
// the write run as one script so concurrent duplicate callbacks cannot both
// observe a stale value.
func (s RedisAttributes) SetIfChanged(ctx context.Context, subject, name, value string) (bool, error) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return 0
else
  redis.call("set", KEYS[1], ARGV[1])
  return 1
end`
	n, err := s.R.Eval(ctx, script, []string{s.key(subject, name)}, value).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RedisPendingCheckouts implements PendingCheckoutStore on redis with a TTL
// so abandoned inline sessions expire on their own.
type RedisPendingCheckouts struct {
	R   *redis.Client
	TTL time.Duration
}

func (s RedisPendingCheckouts) key(orderGuid uuid.UUID) string {
	return "pending-checkout:" + orderGuid.String()
}

func (s RedisPendingCheckouts) ttl() time.Duration {
	if s.TTL <= 0 {
		return time.Hour
	}
	return s.TTL
}

func (s RedisPendingCheckouts) Save(ctx context.Context, pending PendingCheckout) error {
	payload, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, s.key(pending.OrderGuid), payload, s.ttl()).Err()
}

func (s RedisPendingCheckouts) Load(ctx context.Context, orderGuid uuid.UUID) (PendingCheckout, error) {
	payload, err := s.R.Get(ctx, s.key(orderGuid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return PendingCheckout{}, fmt.Errorf("%w: pending checkout %s", ErrNotFound, orderGuid)
	}
	if err != nil {
		return PendingCheckout{}, err
	}
	var pending PendingCheckout
	if err := json.Unmarshal(payload, &pending); err != nil {
		return PendingCheckout{}, err
	}
	return pending, nil
}

func (s RedisPendingCheckouts) Delete(ctx context.Context, orderGuid uuid.UUID) error {
	return s.R.Del(ctx, s.key(orderGuid)).Err()
}
