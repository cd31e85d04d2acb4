package domain

import (
	"strings"
	"time"
)

// QuestionType is the answer-checking family of a question.
type QuestionType string

const (
	QuestionMC    QuestionType = "mc"
	QuestionTF    QuestionType = "tf"
	QuestionShort QuestionType = "short"
)

// Question is one generated question. Immutable once generated; GroupIndex and
// PositionInGroup are attached by flattening.
type Question struct {
	Type            QuestionType      `json:"type"`
	Prompt          string            `json:"question"`
	Options         map[string]string `json:"options,omitempty"`
	CorrectAnswer   string            `json:"answer"`
	Explanation     string            `json:"explanation"`
	GroupIndex      int               `json:"groupIndex"`
	PositionInGroup int               `json:"positionInGroup"`
}

// IsCorrect grades a raw response. MC and TF compare letters case-insensitively;
// SHORT accepts a trimmed case-insensitive match or a substring relation in
// either direction. An empty response is never correct.
func (q Question) IsCorrect(response string) bool {
	if response == "" {
		return false
	}
	switch q.Type {
	case QuestionMC, QuestionTF:
		return strings.EqualFold(response, q.CorrectAnswer)
	default:
		want := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
		got := strings.ToLower(strings.TrimSpace(response))
		if got == "" {
			return false
		}
		return got == want || strings.Contains(want, got) || strings.Contains(got, want)
	}
}

// QuizGroup is the question list generated for one source snippet.
type QuizGroup struct {
	Questions []Question `json:"questions"`
}

// QuizSet is a stored generation result.
type QuizSet struct {
	ID         string      `json:"id"`
	Groups     []QuizGroup `json:"quizzes"`
	Snippets   []string    `json:"snippets,omitempty"`
	Language   string      `json:"language,omitempty"`
	Difficulty string      `json:"difficulty,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Snippet returns the source text of a group, or "" when unknown.
func (s QuizSet) Snippet(groupIndex int) string {
	if groupIndex < 0 || groupIndex >= len(s.Snippets) {
		return ""
	}
	return s.Snippets[groupIndex]
}

// Mode selects how a session is played.
type Mode string

const (
	ModeTest     Mode = "test"
	ModePractice Mode = "practice"
)

// ParseMode maps free-form input to a Mode, defaulting to practice.
func ParseMode(raw string) Mode {
	if strings.EqualFold(strings.TrimSpace(raw), string(ModeTest)) {
		return ModeTest
	}
	return ModePractice
}

// SessionState is the lifecycle state of a quiz session.
type SessionState string

const (
	StateLoading    SessionState = "loading"
	StateInProgress SessionState = "in_progress"
	StateSubmitted  SessionState = "submitted"
	StateEmpty      SessionState = "empty"
)

// AttemptRecord summarizes one submitted session. Never mutated after append.
type AttemptRecord struct {
	Timestamp  string `json:"date"`
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	Mode       Mode   `json:"mode"`
	Difficulty string `json:"difficulty,omitempty"`
	Language   string `json:"lang,omitempty"`
	MaxStreak  int    `json:"streak,omitempty"`
}

// Perfect reports a full score on a non-empty attempt.
func (r AttemptRecord) Perfect() bool {
	return r.Total > 0 && r.Correct == r.Total
}

// Percent is the rounded score percentage.
func (r AttemptRecord) Percent() int {
	if r.Total <= 0 {
		return 0
	}
	return (r.Correct*100 + r.Total/2) / r.Total
}

// BadgeGroup groups badges for display.
type BadgeGroup string

const (
	GroupAttempts   BadgeGroup = "Attempts"
	GroupScore      BadgeGroup = "Score"
	GroupCreate     BadgeGroup = "Create"
	GroupDifficulty BadgeGroup = "Difficulty"
)

// BadgeState is the persisted unlock flag of one badge.
type BadgeState struct {
	Unlocked   bool    `json:"unlocked"`
	UnlockedAt *string `json:"unlockedAt"`
}

// BadgeStates maps badge id to its state for one identity.
type BadgeStates map[string]BadgeState

// UnlockedCount counts unlocked entries.
func (b BadgeStates) UnlockedCount() int {
	n := 0
	for _, st := range b {
		if st.Unlocked {
			n++
		}
	}
	return n
}

// Clone returns an independent copy.
func (b BadgeStates) Clone() BadgeStates {
	out := make(BadgeStates, len(b))
	for id, st := range b {
		if st.UnlockedAt != nil {
			ts := *st.UnlockedAt
			st.UnlockedAt = &ts
		}
		out[id] = st
	}
	return out
}

// BadgeView is a catalog entry joined with one identity's state.
type BadgeView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Group       BadgeGroup `json:"group"`
	GroupName   string     `json:"groupName,omitempty"`
	Description string     `json:"description"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *string    `json:"unlockedAt,omitempty"`
}

// ProfileStats aggregates an identity's history.
type ProfileStats struct {
	Attempts        int `json:"attempts"`
	PerfectAttempts int `json:"perfectAttempts"`
	AveragePercent  int `json:"averagePercent"`
	BestPercent     int `json:"bestPercent"`
	BadgesUnlocked  int `json:"badgesUnlocked"`
	BadgesTotal     int `json:"badgesTotal"`
}

// Profile is the progress view of one identity.
type Profile struct {
	Identity Identity        `json:"identity"`
	History  []AttemptRecord `json:"history"`
	Stats    ProfileStats    `json:"stats"`
	Badges   []BadgeView     `json:"badges"`
}

// Result is the scoring outcome of a submitted session.
type Result struct {
	Correct     int      `json:"correct"`
	Total       int      `json:"total"`
	MaxStreak   int      `json:"maxStreak"`
	Auto        bool     `json:"auto"`
	Recorded    bool     `json:"recorded"`
	NewBadges   []string `json:"newBadges,omitempty"`
	SubmittedAt string   `json:"submittedAt"`
}

// Feedback describes one answer as the client may see it.
type Feedback struct {
	Index         int    `json:"index"`
	Answer        string `json:"answer"`
	Revealed      bool   `json:"revealed"`
	Correct       bool   `json:"correct,omitempty"`
	CorrectAnswer string `json:"correctAnswer,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
}

// SessionView is a snapshot of a live session.
type SessionView struct {
	ID        string         `json:"id"`
	QuizID    string         `json:"quizId"`
	Identity  Identity       `json:"identity"`
	State     SessionState   `json:"state"`
	Mode      Mode           `json:"mode"`
	Cursor    int            `json:"cursor"`
	Total     int            `json:"total"`
	Remaining *int           `json:"remainingSeconds,omitempty"`
	Questions []Question     `json:"questions"`
	Answers   map[int]string `json:"answers"`
	Feedback  []Feedback     `json:"feedback,omitempty"`
	Hints     map[int]string `json:"hints,omitempty"`
	Result    *Result        `json:"result,omitempty"`
}

// SessionEventType names events published to session subscribers.
type SessionEventType string

const (
	EventTick      SessionEventType = "tick"
	EventSubmitted SessionEventType = "submitted"
	EventHint      SessionEventType = "hint"
)

// SessionEvent is pushed to live-session subscribers.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	Remaining int              `json:"remainingSeconds,omitempty"`
	Result    *Result          `json:"result,omitempty"`
	Index     int              `json:"index,omitempty"`
	Hint      string           `json:"hint,omitempty"`
}

// GenerationRequest is sent to the quiz generation service.
type GenerationRequest struct {
	Snippets     []string       `json:"snippets"`
	NumQuestions int            `json:"numQuestions"`
	Types        []QuestionType `json:"types"`
	Language     string         `json:"lang"`
	Difficulty   string         `json:"difficulty,omitempty"`
}

// HintRequest is sent to the hint service.
type HintRequest struct {
	Question string `json:"question"`
	Snippet  string `json:"snippet"`
	Language string `json:"lang"`
}
