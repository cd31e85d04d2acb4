package app_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
	"quizmaster/internal/infra/memory"
)

func strp(s string) *string { return &s }

func TestMergeBadgesCopiesAnonymousUnlocks(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	anon := domain.BadgeStates{
		"streak10": {Unlocked: true, UnlockedAt: strp("2024-02-01T00:00:00Z")},
		"perfect":  {Unlocked: true},
		"explorer": {Unlocked: false},
		"newbie":   {Unlocked: true, UnlockedAt: strp("2024-02-02T00:00:00Z")},
	}
	auth := domain.BadgeStates{
		"newbie":  {Unlocked: true, UnlockedAt: strp("2023-12-31T00:00:00Z")},
		"perfect": {Unlocked: false},
	}

	merged := app.MergeBadges(anon, auth, now)

	if st := merged["streak10"]; !st.Unlocked || *st.UnlockedAt != "2024-02-01T00:00:00Z" {
		t.Fatalf("streak10 not copied with its timestamp: %+v", st)
	}
	if st := merged["perfect"]; !st.Unlocked || *st.UnlockedAt != "2024-03-01T09:00:00Z" {
		t.Fatalf("perfect should be stamped with now: %+v", st)
	}
	if st := merged["newbie"]; *st.UnlockedAt != "2023-12-31T00:00:00Z" {
		t.Fatalf("authenticated unlock overwritten: %+v", st)
	}
	if st, ok := merged["explorer"]; !ok || st.Unlocked {
		t.Fatalf("missing locked entry should be copied as is: %+v", st)
	}
	if auth["perfect"].Unlocked {
		t.Fatalf("merge mutated its input")
	}

	again := app.MergeBadges(anon, merged, now.Add(time.Hour))
	if !reflect.DeepEqual(again, merged) {
		t.Fatalf("merge is not idempotent:\n%+v\n%+v", again, merged)
	}
}

func TestBadgeStoreReadsLegacyArray(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	_ = store.Set(ctx, "qm_badges_guest", []byte(`["newbie", {"id":"perfect"}, 7]`))

	states := app.NewBadgeStore(store).Load(ctx, domain.Guest)
	if !states["newbie"].Unlocked || !states["perfect"].Unlocked {
		t.Fatalf("legacy ids not read as unlocked: %+v", states)
	}
	if states["newbie"].UnlockedAt != nil {
		t.Fatalf("legacy badges carry no timestamp")
	}
}

func TestBadgeStoreDegradesOnCorruptData(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	_ = store.Set(ctx, "qm_badges_guest", []byte(`"nope`))

	if states := app.NewBadgeStore(store).Load(ctx, domain.Guest); len(states) != 0 {
		t.Fatalf("expected empty badge state, got %+v", states)
	}
	if states := app.NewBadgeStore(brokenStorage{}).Load(ctx, domain.Guest); states == nil {
		t.Fatalf("expected empty non-nil state for offline storage")
	}
}
