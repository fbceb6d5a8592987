package fingerprint

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "verification:fingerprint:"

// reserveScript checks every key before writing any, so the reservation is
// all-or-nothing. Redis runs scripts atomically.
var reserveScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	if redis.call("EXISTS", key) == 1 then
		return i
	end
end
for _, key in ipairs(KEYS) do
	redis.call("SET", key, "1")
end
return 0
`)

// RedisStore keeps digests as individual keys without TTL.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Exists(ctx context.Context, digest string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKey(digest)).Result()
	if err != nil {
		return false, fmt.Errorf("check fingerprint: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Add(ctx context.Context, digest string) error {
	if err := s.client.SetNX(ctx, redisKey(digest), "1", 0).Err(); err != nil {
		return fmt.Errorf("add fingerprint: %w", err)
	}
	return nil
}

func (s *RedisStore) Reserve(ctx context.Context, digests ...string) (string, error) {
	if len(digests) == 0 {
		return "", nil
	}
	keys := make([]string, len(digests))
	for i, d := range digests {
		keys[i] = redisKey(d)
	}

	idx, err := reserveScript.Run(ctx, s.client, keys).Int()
	if err != nil {
		return "", fmt.Errorf("reserve fingerprints: %w", err)
	}
	if idx > 0 {
		return digests[idx-1], nil
	}
	return "", nil
}

func redisKey(digest string) string {
	return redisKeyPrefix + digest
}
