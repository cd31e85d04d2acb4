package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"quizmaster/internal/domain"
)

// BadgeStore persists the unlock state of each identity.
type BadgeStore struct {
	storage Storage
}

func NewBadgeStore(storage Storage) *BadgeStore {
	return &BadgeStore{storage: storage}
}

// Load returns the identity's badge state. Missing, unavailable or corrupt
// data reads as an empty state. The older "array of ids" layout is accepted
// and read as unlocked badges without a timestamp.
func (b *BadgeStore) Load(ctx context.Context, id domain.Identity) domain.BadgeStates {
	states, err := b.load(ctx, id)
	if err != nil {
		slog.Warn("badge state unavailable", "identity", id, "error", err)
		return domain.BadgeStates{}
	}
	return states
}

// load is Load for read-modify-write callers: the error is non-nil only
// when storage could not be read, and then nothing may be saved.
func (b *BadgeStore) load(ctx context.Context, id domain.Identity) (domain.BadgeStates, error) {
	raw, ok, err := b.storage.Get(ctx, badgesKey(id))
	if err != nil {
		return nil, fmt.Errorf("read badge state: %w", err)
	}
	if !ok || len(raw) == 0 {
		return domain.BadgeStates{}, nil
	}
	states, err := decodeBadgeStates(raw)
	if err != nil {
		slog.Warn("badge state corrupt, ignoring", "identity", id, "error", err)
		return domain.BadgeStates{}, nil
	}
	return states, nil
}

// Save replaces the identity's badge state in one write.
func (b *BadgeStore) Save(ctx context.Context, id domain.Identity, states domain.BadgeStates) error {
	return setJSON(ctx, b.storage, badgesKey(id), states)
}

func decodeBadgeStates(raw []byte) (domain.BadgeStates, error) {
	var states domain.BadgeStates
	if err := json.Unmarshal(raw, &states); err == nil {
		if states == nil {
			states = domain.BadgeStates{}
		}
		return states, nil
	}

	var legacy []json.RawMessage
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("decode badge state: %w", err)
	}
	states = domain.BadgeStates{}
	for _, item := range legacy {
		var id string
		if err := json.Unmarshal(item, &id); err != nil {
			var obj struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(item, &obj); err != nil {
				continue
			}
			id = obj.ID
		}
		if id != "" {
			states[id] = domain.BadgeState{Unlocked: true}
		}
	}
	return states, nil
}

// MergeBadges folds an anonymous identity's badges into an authenticated
// identity's badges and returns the merged state. An anonymous unlock is
// copied over a locked or missing entry, keeping its timestamp or stamping
// now; an id the authenticated side lacks is copied as is. Unlocked
// authenticated entries are never overwritten, so merging again is a no-op.
func MergeBadges(anon, auth domain.BadgeStates, now time.Time) domain.BadgeStates {
	merged := auth.Clone()
	for id, a := range anon {
		cur, exists := merged[id]
		if a.Unlocked && !cur.Unlocked {
			var ts string
			if a.UnlockedAt != nil && *a.UnlockedAt != "" {
				ts = *a.UnlockedAt
			} else {
				ts = now.UTC().Format(time.RFC3339)
			}
			merged[id] = domain.BadgeState{Unlocked: true, UnlockedAt: &ts}
			continue
		}
		if !exists {
			cp := a
			if a.UnlockedAt != nil {
				ts := *a.UnlockedAt
				cp.UnlockedAt = &ts
			}
			merged[id] = cp
		}
	}
	return merged
}
