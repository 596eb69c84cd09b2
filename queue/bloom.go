package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// BloomConfig configures the RedisBloom seen filter
type BloomConfig struct {
	// Key defaults to "<prefix>:topics:bloom"
	Key string
	// Capacity and ErrorRate are passed to BF.RESERVE when the key is new
	Capacity  int
	ErrorRate float64
	// TTL slides forward on every add; zero keeps the filter forever
	TTL time.Duration
}

// RedisBloom is a seen set backed by RedisBloom commands.
// It trades exactness for constant memory on long-running seed jobs.
type RedisBloom struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// Bloom returns a bloom seen filter sharing the queue's connection.
// A failing BF.RESERVE is logged and ignored; BF.ADD auto-creates the filter with server defaults.
func (r *RedisSource) Bloom(ctx context.Context, cfg BloomConfig) *RedisBloom {
	key := cfg.Key
	if key == "" {
		key = r.keys.prefix + ":topics:bloom"
	}
	b := &RedisBloom{client: r.client, key: key, ttl: cfg.TTL}

	exists, err := r.client.Exists(ctx, key).Result()
	if err == nil && exists == 0 {
		// BF.RESERVE <key> <error_rate> <capacity>
		res := r.client.Do(ctx, "BF.RESERVE", key, fmt.Sprintf("%f", cfg.ErrorRate), cfg.Capacity)
		if err := res.Err(); err != nil {
			log.Printf("⚠️  BF.RESERVE %s failed: %v", key, err)
		}
	}
	return b
}

// MarkSeen adds hash to the filter; false means it was (probably) there already
func (b *RedisBloom) MarkSeen(ctx context.Context, hash string) (bool, error) {
	// BF.ADD <key> <item>
	res, err := b.client.Do(ctx, "BF.ADD", b.key, hash).Result()
	if err != nil {
		return false, err
	}
	added, err := bloomBool(res)
	if err != nil {
		return false, err
	}

	if b.ttl > 0 {
		if err := b.client.Expire(ctx, b.key, b.ttl).Err(); err != nil {
			return added, err
		}
	}
	return added, nil
}

// bloomBool reads a BF.ADD/BF.EXISTS reply, which is an integer under RESP2 and a boolean under RESP3
func bloomBool(res any) (bool, error) {
	switch v := res.(type) {
	case int64:
		return v == 1, nil
	case bool:
		return v, nil
	case string:
		return v == "1", nil
	default:
		return false, fmt.Errorf("unexpected bloom reply type %T: %v", res, res)
	}
}
