package app_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
	"quizmaster/internal/infra/memory"
)

func newProgress(store app.Storage) *app.ProgressService {
	return app.NewProgressServiceWithClock(store, func() time.Time {
		return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	})
}

func TestRecordAttemptUnlocksOnce(t *testing.T) {
	ctx := context.Background()
	p := newProgress(memory.NewStorage())

	fresh, err := p.RecordAttempt(ctx, domain.Guest, domain.AttemptRecord{Correct: 4, Total: 4})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !slices.Equal(fresh, []string{"newbie", "perfect"}) {
		t.Fatalf("unexpected fresh unlocks %v", fresh)
	}

	fresh, _ = p.RecordAttempt(ctx, domain.Guest, domain.AttemptRecord{Correct: 4, Total: 4})
	if len(fresh) != 0 {
		t.Fatalf("expected no fresh unlocks on repeat, got %v", fresh)
	}
}

func TestBadgesSurviveHistoryTruncation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	p := newProgress(store)
	alice := domain.IdentityFrom("alice@example.com")

	p.RecordAttempt(ctx, alice, domain.AttemptRecord{Correct: 30, Total: 30, MaxStreak: 30, Difficulty: "hard"})
	for i := 0; i < app.HistoryCap; i++ {
		p.RecordAttempt(ctx, alice, domain.AttemptRecord{Correct: 0, Total: 3})
	}

	history := p.History(ctx, alice)
	if len(history) != app.HistoryCap {
		t.Fatalf("expected capped history, got %d", len(history))
	}
	for _, rec := range history {
		if rec.Perfect() {
			t.Fatalf("perfect attempt should have been truncated")
		}
	}

	unlocked := map[string]bool{}
	for _, b := range p.Badges(ctx, alice) {
		unlocked[b.ID] = b.Unlocked
	}
	for _, id := range []string{"perfect", "streak10", "hardcore", "bossfight", "master"} {
		if !unlocked[id] {
			t.Fatalf("badge %s lost after truncation", id)
		}
	}
}

func TestRecordCreationUnlocksBuilder(t *testing.T) {
	ctx := context.Background()
	p := newProgress(memory.NewStorage())
	bob := domain.IdentityFrom("Bob@Example.com ")

	for i := 0; i < 5; i++ {
		if _, err := p.RecordCreation(ctx, bob); err != nil {
			t.Fatalf("record creation: %v", err)
		}
	}
	if got := p.CreatedCount(ctx, bob); got != 5 {
		t.Fatalf("expected counter 5, got %d", got)
	}
	if got := p.CreatedCount(ctx, domain.Guest); got != 0 {
		t.Fatalf("counter must be per identity, guest has %d", got)
	}

	var builder domain.BadgeView
	for _, b := range p.Badges(ctx, bob) {
		if b.ID == "builder" {
			builder = b
		}
	}
	if !builder.Unlocked || builder.UnlockedAt == nil {
		t.Fatalf("expected builder unlocked with timestamp, got %+v", builder)
	}
}

func TestMergeIdentityOnlyFromGuest(t *testing.T) {
	ctx := context.Background()
	p := newProgress(memory.NewStorage())
	alice := domain.IdentityFrom("alice@example.com")
	bob := domain.IdentityFrom("bob@example.com")

	p.RecordAttempt(ctx, domain.Guest, domain.AttemptRecord{Correct: 12, Total: 12, MaxStreak: 12})

	merged, err := p.MergeIdentity(ctx, domain.Guest, alice)
	if err != nil || !merged {
		t.Fatalf("expected merge, got %v %v", merged, err)
	}
	if merged, _ := p.MergeIdentity(ctx, alice, bob); merged {
		t.Fatalf("user to user transition must not merge")
	}

	badges := map[string]domain.BadgeView{}
	for _, b := range p.Badges(ctx, alice) {
		badges[b.ID] = b
	}
	st := badges["streak10"]
	if !st.Unlocked || st.UnlockedAt == nil {
		t.Fatalf("streak10 not merged: %+v", st)
	}
	first := *st.UnlockedAt

	if _, err := p.MergeIdentity(ctx, domain.Guest, alice); err != nil {
		t.Fatalf("second merge: %v", err)
	}
	for _, b := range p.Badges(ctx, alice) {
		if b.ID == "streak10" && *b.UnlockedAt != first {
			t.Fatalf("second merge changed timestamp: %s vs %s", *b.UnlockedAt, first)
		}
	}

	for _, b := range p.Badges(ctx, domain.Guest) {
		if b.ID == "streak10" && !b.Unlocked {
			t.Fatalf("merge must not remove the guest copy")
		}
	}
}

func TestProfileStats(t *testing.T) {
	ctx := context.Background()
	p := newProgress(memory.NewStorage())
	p.RecordAttempt(ctx, domain.Guest, domain.AttemptRecord{Timestamp: "t1", Correct: 1, Total: 2})
	p.RecordAttempt(ctx, domain.Guest, domain.AttemptRecord{Timestamp: "t2", Correct: 4, Total: 4})

	profile := p.Profile(ctx, domain.Guest)
	if profile.Stats.Attempts != 2 || profile.Stats.PerfectAttempts != 1 {
		t.Fatalf("unexpected stats %+v", profile.Stats)
	}
	if profile.Stats.AveragePercent != 75 || profile.Stats.BestPercent != 100 {
		t.Fatalf("unexpected percentages %+v", profile.Stats)
	}
	if profile.History[0].Timestamp != "t2" {
		t.Fatalf("expected newest-first history, got %+v", profile.History)
	}
	if profile.Stats.BadgesTotal != len(app.Catalog) || profile.Stats.BadgesUnlocked != 2 {
		t.Fatalf("unexpected badge counts %+v", profile.Stats)
	}
}

func TestRecordAttemptNeverRevokesOnBadgeReadFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStorage{Storage: memory.NewStorage()}
	p := newProgress(store)
	ts := "2024-01-01T00:00:00Z"
	_ = store.Set(ctx, "qm_badges_guest", []byte(`{"perfect":{"unlocked":true,"unlockedAt":"`+ts+`"}}`))

	store.failKey = "qm_badges_guest"
	_, err := p.RecordAttempt(ctx, domain.Guest, domain.AttemptRecord{Correct: 1, Total: 3})
	if err == nil {
		t.Fatalf("expected the failed badge read to be reported")
	}
	if got := p.History(ctx, domain.Guest); len(got) != 1 {
		t.Fatalf("attempt itself should still be recorded, got %d", len(got))
	}

	badges := map[string]domain.BadgeView{}
	for _, b := range p.Badges(ctx, domain.Guest) {
		badges[b.ID] = b
	}
	if pf := badges["perfect"]; !pf.Unlocked || pf.UnlockedAt == nil || *pf.UnlockedAt != ts {
		t.Fatalf("perfect revoked or restamped: %+v", pf)
	}
	if !badges["newbie"].Unlocked {
		t.Fatalf("expected newbie unlocked once storage recovered")
	}
}

func TestSessionResultNotRecordedOnHistoryReadFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStorage{Storage: memory.NewStorage(), failKey: "qm_leaderboard_guest"}
	p := newProgress(store)

	session := app.NewSession("s-1", domain.QuizSet{ID: "q", Groups: []domain.QuizGroup{{Questions: []domain.Question{
		{Type: domain.QuestionTF, Prompt: "Sky is blue", CorrectAnswer: "A"},
	}}}}, domain.Guest, app.SessionConfig{Mode: domain.ModeTest}, p)
	session.Load()
	res, _, err := session.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Recorded {
		t.Fatalf("expected Recorded=false when history could not be read")
	}
}

func TestRecordCreationKeepsCounterOnReadFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStorage{Storage: memory.NewStorage()}
	p := newProgress(store)
	for i := 0; i < 7; i++ {
		p.RecordCreation(ctx, domain.Guest)
	}

	store.failKey = "qm_created_count_guest"
	if _, err := p.RecordCreation(ctx, domain.Guest); err == nil {
		t.Fatalf("expected the failed counter read to be reported")
	}
	if got := p.CreatedCount(ctx, domain.Guest); got != 7 {
		t.Fatalf("counter reset after a failed read: %d, want 7", got)
	}
}

func TestMergeIdentitySkipsOnReadFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStorage{Storage: memory.NewStorage()}
	p := newProgress(store)
	alice := domain.IdentityFrom("alice@example.com")

	p.RecordAttempt(ctx, alice, domain.AttemptRecord{Correct: 1, Total: 1, Difficulty: "hard"})
	p.RecordAttempt(ctx, domain.Guest, domain.AttemptRecord{Correct: 0, Total: 2})

	store.failKey = "qm_badges_alice@example.com"
	if merged, err := p.MergeIdentity(ctx, domain.Guest, alice); err == nil || merged {
		t.Fatalf("expected merge to be skipped, got merged=%v err=%v", merged, err)
	}

	unlocked := map[string]bool{}
	for _, b := range p.Badges(ctx, alice) {
		unlocked[b.ID] = b.Unlocked
	}
	if !unlocked["perfect"] || !unlocked["hardcore"] {
		t.Fatalf("authenticated badges overwritten by guest state: %v", unlocked)
	}
}
