package sequence

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "billing:bill-number"

// nextScript bumps the counter and lifts it to the clock floor in one round
// trip so every process sharing the key sees a single ordering.
var nextScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
local nextValue = current + 1
if nextValue < floor then
	nextValue = floor
end
redis.call('SET', KEYS[1], nextValue)
return nextValue
`)

type RedisSequence struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewRedisSequence(addr string, password string, db int, key string) *RedisSequence {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if key == "" {
		key = DefaultRedisKey
	}

	return &RedisSequence{client: client, key: key, now: time.Now}
}

func (s *RedisSequence) Name() string {
	return "redis"
}

func (s *RedisSequence) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSequence) Close() error {
	return s.client.Close()
}

func (s *RedisSequence) Next(ctx context.Context) (int64, error) {
	return nextScript.Run(ctx, s.client, []string{s.key}, s.now().UnixMilli()).Int64()
}
