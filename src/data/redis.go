package data

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	scanBatch        = 100
	maxUpdateRetries = 5
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// RedisURL builds a connection URL from discrete host/port settings.
func RedisURL(host, port string, db int) string {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("redis://%s:%s/%d", host, port, db)
}

// RedisStore keeps flat string records in Redis hashes.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// SetFields writes the given fields into the hash at key, leaving other fields untouched.
func (s *RedisStore) SetFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.rdb.HSet(ctx, key, hashValues(fields)).Err()
}

func hashValues(fields map[string]string) map[string]interface{} {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return values
}

// Update reads the hash at key under WATCH and hands it to fn. The fields fn
// returns are written together with a TTL of ttl in one MULTI/EXEC, so a key
// that expires or changes in between is never half written. fn returning no
// fields skips the write; an error from fn aborts and is returned as is.
// Conflicting writers cause a bounded number of retries.
func (s *RedisStore) Update(ctx context.Context, key string, fn func(cur map[string]string) (map[string]string, time.Duration, error)) error {
	txf := func(tx *redis.Tx) error {
		cur, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		fields, ttl, err := fn(cur)
		if err != nil || len(fields) == 0 {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, hashValues(fields))
			if ttl > 0 {
				pipe.PExpire(ctx, key, ttl)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("redis: update %s: %w", key, redis.TxFailedErr)
}

// GetFields returns every field of the hash at key. A missing key yields an empty map.
func (s *RedisStore) GetFields(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

// ScanKeys walks the keyspace with SCAN and returns keys starting with prefix.
func (s *RedisStore) ScanKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
