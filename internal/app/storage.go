package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quizmaster/internal/domain"
)

// Storage is the key-value persistence capability (memory, Redis, SQLite).
// A Set must replace the whole value at once so readers never see a partial write.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

func historyKey(id domain.Identity) string {
	return "qm_leaderboard_" + id.String()
}

func badgesKey(id domain.Identity) string {
	return "qm_badges_" + id.String()
}

func createdKey(id domain.Identity) string {
	return "qm_created_count_" + id.String()
}

// errCorrupt marks stored data that could not be decoded. Corrupt values read
// as empty and may be overwritten; a failed read must never be.
var errCorrupt = errors.New("corrupt stored value")

func getJSON(ctx context.Context, s Storage, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w: %w", key, errCorrupt, err)
	}
	return true, nil
}

func setJSON(ctx context.Context, s Storage, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
