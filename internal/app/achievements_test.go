package app_test

import (
	"slices"
	"testing"
	"time"

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
)

func perfect() domain.AttemptRecord { return domain.AttemptRecord{Correct: 5, Total: 5} }
func flawed() domain.AttemptRecord { return domain.AttemptRecord{Correct: 3, Total: 5} }

func TestEvaluateNoMistakesNeedsConsecutiveRun(t *testing.T) {
	unlocks := []domain.AttemptRecord{perfect(), perfect(), perfect(), perfect(), perfect(), flawed(), perfect()}
	if ids := app.Evaluate(unlocks, 0); !slices.Contains(ids, "nomistakes5") {
		t.Fatalf("expected nomistakes5 for P,P,P,P,P,F,P, got %v", ids)
	}

	broken := []domain.AttemptRecord{perfect(), perfect(), flawed(), perfect(), perfect(), perfect(), perfect()}
	if ids := app.Evaluate(broken, 0); slices.Contains(ids, "nomistakes5") {
		t.Fatalf("did not expect nomistakes5 for P,P,F,P,P,P,P, got %v", ids)
	}
}

func TestEvaluateRules(t *testing.T) {
	cases := []struct {
		name    string
		history []domain.AttemptRecord
		created int
		want    []string
		absent  []string
	}{
		{
			name:   "empty history",
			absent: []string{"newbie", "perfect"},
		},
		{
			name:    "first attempt",
			history: []domain.AttemptRecord{flawed()},
			want:    []string{"newbie"},
			absent:  []string{"perfect", "explorer"},
		},
		{
			name:    "zero total is not perfect",
			history: []domain.AttemptRecord{{Correct: 0, Total: 0}},
			absent:  []string{"perfect"},
		},
		{
			name:    "streak and difficulty",
			history: []domain.AttemptRecord{{Correct: 18, Total: 22, MaxStreak: 10, Difficulty: "HARD"}},
			want:    []string{"streak10", "hardcore", "bossfight"},
		},
		{
			name:    "languages are case-insensitive",
			history: []domain.AttemptRecord{{Total: 1, Language: "EN"}, {Total: 1, Language: "en"}},
			absent:  []string{"multilang"},
		},
		{
			name:    "two languages",
			history: []domain.AttemptRecord{{Total: 1, Language: "en"}, {Total: 1, Language: "vi"}},
			want:    []string{"multilang"},
		},
		{
			name:    "creation counter",
			created: 5,
			want:    []string{"builder"},
			absent:  []string{"factory"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ids := app.Evaluate(tc.history, tc.created)
			for _, id := range tc.want {
				if !slices.Contains(ids, id) {
					t.Fatalf("expected %s in %v", id, ids)
				}
			}
			for _, id := range tc.absent {
				if slices.Contains(ids, id) {
					t.Fatalf("did not expect %s in %v", id, ids)
				}
			}
		})
	}
}

func TestApplyUnlocksIsMonotonic(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	states := domain.BadgeStates{}

	fresh := app.ApplyUnlocks(states, []string{"newbie", "perfect"}, t0)
	if len(fresh) != 2 {
		t.Fatalf("expected 2 fresh unlocks, got %v", fresh)
	}

	fresh = app.ApplyUnlocks(states, []string{"newbie"}, t0.Add(time.Hour))
	if len(fresh) != 0 {
		t.Fatalf("re-unlocking must not report fresh badges: %v", fresh)
	}
	if got := *states["newbie"].UnlockedAt; got != "2024-01-01T00:00:00Z" {
		t.Fatalf("unlock timestamp changed: %s", got)
	}

	// A rule that no longer holds leaves the unlock in place.
	app.ApplyUnlocks(states, nil, t0.Add(2*time.Hour))
	if !states["perfect"].Unlocked {
		t.Fatalf("badge revoked")
	}
}

func TestCatalogIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, def := range app.Catalog {
		if seen[def.ID] {
			t.Fatalf("duplicate badge id %s", def.ID)
		}
		seen[def.ID] = true
		if _, ok := app.BadgeByID(def.ID); !ok {
			t.Fatalf("lookup failed for %s", def.ID)
		}
	}
	if def, _ := app.BadgeByID("multilang"); def.Group != domain.GroupCreate {
		t.Fatalf("multilang belongs to the Create group, got %s", def.Group)
	}
}
