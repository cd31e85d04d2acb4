package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Storage is a Redis implementation of app.Storage. Each value is a single
// string key written with SET, so readers never observe a partial write.
type Storage struct {
	client *redis.Client
	prefix string
}

func NewStorage(client *redis.Client, prefix string) *Storage {
	return &Storage{client: client, prefix: prefix}
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Keys lists stored keys without the prefix, used by the export command.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"qm_*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(s.prefix):])
	}
	return keys, iter.Err()
}
