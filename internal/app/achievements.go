package app

import (
	"strings"
	"time"

	"quizmaster/internal/domain"
)

type ruleKind int

const (
	ruleAttempts ruleKind = iota
	ruleCreated
	rulePerfectScore
	ruleStreak
	rulePerfectRun
	ruleDifficulty
	ruleQuestionCount
	ruleLanguages
)

// rule is a tagged badge predicate; min is the threshold and value the
// matched string where the kind needs one.
type rule struct {
	kind  ruleKind
	min   int
	value string
}

// BadgeDefinition is one entry of the badge catalog.
type BadgeDefinition struct {
	ID          string
	DisplayName string
	Group       domain.BadgeGroup
	Description string
	rule        rule
}

// Catalog is the fixed badge table, in display order.
var Catalog = []BadgeDefinition{
	{ID: "newbie", DisplayName: "Newbie", Group: domain.GroupAttempts, Description: "Complete your first quiz", rule: rule{kind: ruleAttempts, min: 1}},
	{ID: "explorer", DisplayName: "Quiz Explorer", Group: domain.GroupAttempts, Description: "Complete 10 quizzes", rule: rule{kind: ruleAttempts, min: 10}},
	{ID: "addict", DisplayName: "Quiz Addict", Group: domain.GroupAttempts, Description: "Complete 50 quizzes", rule: rule{kind: ruleAttempts, min: 50}},
	{ID: "master", DisplayName: "Quiz Master", Group: domain.GroupAttempts, Description: "Complete 200 quizzes", rule: rule{kind: ruleAttempts, min: 200}},

	{ID: "perfect", DisplayName: "Perfect Score", Group: domain.GroupScore, Description: "Get a full score once", rule: rule{kind: rulePerfectScore}},
	{ID: "streak10", DisplayName: "Win Streak", Group: domain.GroupScore, Description: "Answer 10 questions in a row correctly in one attempt", rule: rule{kind: ruleStreak, min: 10}},
	{ID: "nomistakes5", DisplayName: "No Mistakes", Group: domain.GroupScore, Description: "Get a full score on 5 quizzes in a row", rule: rule{kind: rulePerfectRun, min: 5}},

	{ID: "builder", DisplayName: "Question Builder", Group: domain.GroupCreate, Description: "Create 5 quiz sets", rule: rule{kind: ruleCreated, min: 5}},
	{ID: "factory", DisplayName: "Factory Mode", Group: domain.GroupCreate, Description: "Create 30 quiz sets", rule: rule{kind: ruleCreated, min: 30}},
	{ID: "multilang", DisplayName: "Multi-language", Group: domain.GroupCreate, Description: "Take quizzes in at least 2 languages", rule: rule{kind: ruleLanguages, min: 2}},

	{ID: "hardcore", DisplayName: "Hardcore", Group: domain.GroupDifficulty, Description: "Complete a hard quiz", rule: rule{kind: ruleDifficulty, value: "hard"}},
	{ID: "bossfight", DisplayName: "Boss Fight", Group: domain.GroupDifficulty, Description: "Complete a quiz with 20 or more questions", rule: rule{kind: ruleQuestionCount, min: 20}},
}

// BadgeByID looks up a catalog entry.
func BadgeByID(id string) (BadgeDefinition, bool) {
	for _, def := range Catalog {
		if def.ID == id {
			return def, true
		}
	}
	return BadgeDefinition{}, false
}

// historyFacts is everything the rules read, computed once per snapshot.
type historyFacts struct {
	attempts     int
	created      int
	perfects     int
	maxStreak    int
	perfectRun   int
	maxTotal     int
	difficulties map[string]struct{}
	languages    map[string]struct{}
}

func collectFacts(history []domain.AttemptRecord, created int) historyFacts {
	f := historyFacts{
		attempts:     len(history),
		created:      created,
		difficulties: make(map[string]struct{}),
		languages:    make(map[string]struct{}),
	}
	run := 0
	for _, rec := range history {
		if rec.Perfect() {
			f.perfects++
			run++
			if run > f.perfectRun {
				f.perfectRun = run
			}
		} else {
			run = 0
		}
		if rec.MaxStreak > f.maxStreak {
			f.maxStreak = rec.MaxStreak
		}
		if rec.Total > f.maxTotal {
			f.maxTotal = rec.Total
		}
		if d := strings.ToLower(strings.TrimSpace(rec.Difficulty)); d != "" {
			f.difficulties[d] = struct{}{}
		}
		if l := strings.ToLower(strings.TrimSpace(rec.Language)); l != "" {
			f.languages[l] = struct{}{}
		}
	}
	return f
}

func (r rule) holds(f historyFacts) bool {
	switch r.kind {
	case ruleAttempts:
		return f.attempts >= r.min
	case ruleCreated:
		return f.created >= r.min
	case rulePerfectScore:
		return f.perfects > 0
	case ruleStreak:
		return f.maxStreak >= r.min
	case rulePerfectRun:
		return f.perfectRun >= r.min
	case ruleDifficulty:
		_, ok := f.difficulties[r.value]
		return ok
	case ruleQuestionCount:
		return f.maxTotal >= r.min
	case ruleLanguages:
		return len(f.languages) >= r.min
	}
	return false
}

// Evaluate returns the ids of every badge whose rule holds for the given
// oldest-first history and creation counter, in catalog order.
func Evaluate(history []domain.AttemptRecord, created int) []string {
	facts := collectFacts(history, created)
	var ids []string
	for _, def := range Catalog {
		if def.rule.holds(facts) {
			ids = append(ids, def.ID)
		}
	}
	return ids
}

// ApplyUnlocks marks ids unlocked in states and returns the ids that were not
// unlocked before. Existing unlocks and their timestamps are never changed.
func ApplyUnlocks(states domain.BadgeStates, ids []string, now time.Time) []string {
	var fresh []string
	stamp := now.UTC().Format(time.RFC3339)
	for _, id := range ids {
		if st, ok := states[id]; ok && st.Unlocked {
			continue
		}
		ts := stamp
		states[id] = domain.BadgeState{Unlocked: true, UnlockedAt: &ts}
		fresh = append(fresh, id)
	}
	return fresh
}
