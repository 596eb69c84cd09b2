package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"shortsbot/types"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the redis topic queue
type RedisConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	// Prefix namespaces every key, e.g. "shorts"
	Prefix string
}

// RedisSource keeps topics in redis.
// Pending ids live in a list; claiming moves the id to a processing list in one LMOVE
// so two workers never get the same topic.
type RedisSource struct {
	client *redis.Client
	keys   redisKeys
}

type redisKeys struct {
	prefix string
}

func (k redisKeys) pending() string    { return k.prefix + ":topics:pending" }
func (k redisKeys) processing() string { return k.prefix + ":topics:processing" }
func (k redisKeys) seen() string       { return k.prefix + ":topics:seen" }
func (k redisKeys) topic(id string) string {
	return k.prefix + ":topic:" + id
}

// NewRedisSource connects and verifies connectivity
func NewRedisSource(cfg RedisConfig) (*RedisSource, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "shorts"
	}
	return &RedisSource{client: client, keys: redisKeys{prefix: prefix}}, nil
}

// Close closes the underlying Redis client
func (r *RedisSource) Close() error {
	return r.client.Close()
}

// Enqueue stores a new pending topic and returns its id
func (r *RedisSource) Enqueue(ctx context.Context, text string, lang types.Language) (string, error) {
	topic, err := types.NewTopic(text, lang, "")
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.keys.topic(id), topicFields(topic))
		p.RPush(ctx, r.keys.pending(), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("enqueue topic: %w", err)
	}
	return id, nil
}

// claimClient is the part of the redis client a claim uses
type claimClient interface {
	LMove(ctx context.Context, source, destination, srcpos, destpos string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// ClaimNextPending pops the oldest pending id onto the processing list
func (r *RedisSource) ClaimNextPending(ctx context.Context) (*types.Topic, error) {
	return claimNext(ctx, r.client, r.keys)
}

func claimNext(ctx context.Context, c claimClient, keys redisKeys) (*types.Topic, error) {
	for {
		id, err := c.LMove(ctx, keys.pending(), keys.processing(), "LEFT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("claim topic: %w", err)
		}

		fields, err := c.HGetAll(ctx, keys.topic(id)).Result()
		if err != nil {
			// Hand the id back as the oldest pending entry; push first so it is never lost
			if perr := c.LPush(ctx, keys.pending(), id).Err(); perr != nil {
				return nil, fmt.Errorf("load topic %s: %w (requeue failed, id left on %s: %v)", id, err, keys.processing(), perr)
			}
			c.LRem(ctx, keys.processing(), 1, id)
			return nil, fmt.Errorf("load topic %s: %w", id, err)
		}
		topic, err := topicFromFields(id, fields)
		if err != nil {
			// Drop entries that can never be processed
			log.Printf("⚠️  Skipping topic %s: %v", id, err)
			c.LRem(ctx, keys.processing(), 1, id)
			continue
		}
		return topic, nil
	}
}

// PersistStatus writes status and video url; terminal topics leave the processing list
func (r *RedisSource) PersistStatus(ctx context.Context, topic *types.Topic) error {
	if topic.SourceRef == "" {
		return fmt.Errorf("topic %q has no redis id", topic.Text)
	}
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.keys.topic(topic.SourceRef), topicFields(topic))
		if topic.Status.Terminal() {
			p.LRem(ctx, r.keys.processing(), 1, topic.SourceRef)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist topic %s: %w", topic.SourceRef, err)
	}
	return nil
}

// MarkSeen records hash in the dedup set; it reports false when the hash was already there
func (r *RedisSource) MarkSeen(ctx context.Context, hash string) (bool, error) {
	added, err := r.client.SAdd(ctx, r.keys.seen(), hash).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

// PendingCount returns the length of the pending list
func (r *RedisSource) PendingCount(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.keys.pending()).Result()
}

func topicFields(t *types.Topic) map[string]any {
	return map[string]any{
		"text":       t.Text,
		"language":   string(t.Language),
		"status":     string(t.Status),
		"video_url":  t.VideoURL,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
}

func topicFromFields(id string, fields map[string]string) (*types.Topic, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no data stored for topic")
	}
	lang, err := types.ParseLanguage(fields["language"])
	if err != nil {
		return nil, err
	}
	status, err := types.ParseTopicStatus(fields["status"])
	if err != nil {
		return nil, err
	}
	if status != types.TopicPending {
		return nil, fmt.Errorf("topic is %s, not pending", status)
	}
	topic, err := types.NewTopic(fields["text"], lang, id)
	if err != nil {
		return nil, err
	}
	topic.VideoURL = fields["video_url"]
	return topic, nil
}
