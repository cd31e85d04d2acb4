package app

import "quizmaster/internal/domain"

// AnswerTracker holds the raw responses of one session keyed by flat index.
// It is not safe for concurrent use; Session guards it.
type AnswerTracker struct {
	questions []domain.Question
	answers   map[int]string
	closed    bool
}

func NewAnswerTracker(questions []domain.Question) *AnswerTracker {
	return &AnswerTracker{
		questions: questions,
		answers:   make(map[int]string),
	}
}

// Set records a response. It is a no-op returning false once the tracker is
// closed or when the index is out of range.
func (t *AnswerTracker) Set(index int, value string) bool {
	if t.closed || index < 0 || index >= len(t.questions) {
		return false
	}
	if value == "" {
		delete(t.answers, index)
		return true
	}
	t.answers[index] = value
	return true
}

// Get returns the response at index and whether one exists.
func (t *AnswerTracker) Get(index int) (string, bool) {
	v, ok := t.answers[index]
	return v, ok && v != ""
}

// IsCorrect grades the stored response; unanswered or unknown indexes are incorrect.
func (t *AnswerTracker) IsCorrect(index int) bool {
	if index < 0 || index >= len(t.questions) {
		return false
	}
	return t.questions[index].IsCorrect(t.answers[index])
}

// CorrectCount grades the full sequence.
func (t *AnswerTracker) CorrectCount() int {
	n := 0
	for i := range t.questions {
		if t.IsCorrect(i) {
			n++
		}
	}
	return n
}

// MaxStreak is the longest run of consecutive correct answers in flat order.
func (t *AnswerTracker) MaxStreak() int {
	best, cur := 0, 0
	for i := range t.questions {
		if t.IsCorrect(i) {
			cur++
			if cur > best {
				best = cur
			}
			continue
		}
		cur = 0
	}
	return best
}

// Close freezes the tracker after submission.
func (t *AnswerTracker) Close() {
	t.closed = true
}

// Closed reports whether further writes are rejected.
func (t *AnswerTracker) Closed() bool {
	return t.closed
}

// Discard drops all responses and closes the tracker.
func (t *AnswerTracker) Discard() {
	t.answers = make(map[int]string)
	t.closed = true
}

// Snapshot copies the current responses.
func (t *AnswerTracker) Snapshot() map[int]string {
	out := make(map[int]string, len(t.answers))
	for k, v := range t.answers {
		out[k] = v
	}
	return out
}
