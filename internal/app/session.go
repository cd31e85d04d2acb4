package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"quizmaster/internal/domain"
)

// AttemptRecorder persists a finished attempt and reports newly unlocked badges.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, id domain.Identity, rec domain.AttemptRecord) ([]string, error)
}

// SessionConfig carries the settings a session was started with.
type SessionConfig struct {
	Mode         domain.Mode
	TimerMinutes float64
	Difficulty   string
	Language     string
}

// Session is one play-through of a quiz set. All transitions happen under mu;
// the in_progress -> submitted check under mu is the single-use submit latch
// shared by manual submission and timer expiry.
type Session struct {
	id       string
	quizID   string
	identity domain.Identity
	cfg      SessionConfig
	source   []domain.QuizGroup
	recorder AttemptRecorder
	now      func() time.Time

	mu          sync.RWMutex
	state       domain.SessionState
	abandoned   bool
	questions   []domain.Question
	answers     *AnswerTracker
	cursor      int
	timer       *Timer
	result      *domain.Result
	hints       map[int]string
	subscribers map[chan domain.SessionEvent]struct{}
}

// NewSession creates a session in the loading state; call Load to play it.
func NewSession(id string, set domain.QuizSet, identity domain.Identity, cfg SessionConfig, recorder AttemptRecorder) *Session {
	return NewSessionWithClock(id, set, identity, cfg, recorder, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id string, set domain.QuizSet, identity domain.Identity, cfg SessionConfig, recorder AttemptRecorder, now func() time.Time) *Session {
	if cfg.Language == "" {
		cfg.Language = set.Language
	}
	if cfg.Difficulty == "" {
		cfg.Difficulty = set.Difficulty
	}
	return &Session{
		id:          id,
		quizID:      set.ID,
		identity:    identity,
		cfg:         cfg,
		source:      set.Groups,
		recorder:    recorder,
		now:         now,
		state:       domain.StateLoading,
		hints:       make(map[int]string),
		subscribers: make(map[chan domain.SessionEvent]struct{}),
	}
}

func (s *Session) ID() string                { return s.id }
func (s *Session) QuizID() string            { return s.quizID }
func (s *Session) Identity() domain.Identity { return s.identity }
func (s *Session) Mode() domain.Mode         { return s.cfg.Mode }
func (s *Session) Language() string          { return s.cfg.Language }

// Load flattens the source groups. A non-empty sequence moves the session to
// in_progress; an empty one leaves it in the terminal empty state.
func (s *Session) Load() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateLoading {
		return s.state
	}
	s.questions = Flatten(s.source)
	s.answers = NewAnswerTracker(s.questions)
	if len(s.questions) == 0 {
		s.state = domain.StateEmpty
		return s.state
	}
	s.state = domain.StateInProgress
	return s.state
}

// StartTimer starts the countdown for timed test sessions. It reports whether
// a timer is running.
func (s *Session) StartTimer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateInProgress || s.timer != nil {
		return false
	}
	seconds := TimerSeconds(s.cfg.Mode, s.cfg.TimerMinutes)
	if seconds == 0 {
		return false
	}
	s.timer = NewTimer(seconds, s.onTick, s.onExpire)
	s.timer.Start()
	return true
}

func (s *Session) onTick(remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventTick, Remaining: remaining})
}

func (s *Session) onExpire() {
	_, _, _ = s.submit(context.Background(), true)
}

// State returns the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Total is the length of the flattened sequence.
func (s *Session) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions)
}

// Question returns the flattened question at index.
func (s *Session) Question(index int) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.questions) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return s.questions[index], nil
}

// GoTo moves the display cursor, clamped to the sequence. It never touches
// answers or submission state.
func (s *Session) GoTo(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case len(s.questions) == 0 || index < 0:
		s.cursor = 0
	case index >= len(s.questions):
		s.cursor = len(s.questions) - 1
	default:
		s.cursor = index
	}
	return s.cursor
}

// SetAnswer stores a response. Practice sessions get the verdict back
// immediately; test sessions only after submission.
func (s *Session) SetAnswer(index int, value string) (domain.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == domain.StateSubmitted:
		return domain.Feedback{}, domain.ErrAlreadySubmitted
	case s.state != domain.StateInProgress || s.abandoned:
		return domain.Feedback{}, domain.ErrSessionClosed
	case index < 0 || index >= len(s.questions):
		return domain.Feedback{}, domain.ErrQuestionNotFound
	}
	s.answers.Set(index, value)
	return s.feedbackLocked(index), nil
}

func (s *Session) revealedLocked() bool {
	return s.state == domain.StateSubmitted || s.cfg.Mode == domain.ModePractice
}

func (s *Session) feedbackLocked(index int) domain.Feedback {
	answer, answered := s.answers.Get(index)
	fb := domain.Feedback{Index: index, Answer: answer}
	if !s.revealedLocked() || (!answered && s.state != domain.StateSubmitted) {
		return fb
	}
	q := s.questions[index]
	fb.Revealed = true
	fb.Correct = s.answers.IsCorrect(index)
	fb.CorrectAnswer = q.CorrectAnswer
	fb.Explanation = q.Explanation
	return fb
}

// Submit ends the session and records the attempt. The second and later
// calls return the stored result with first == false.
func (s *Session) Submit(ctx context.Context) (domain.Result, bool, error) {
	return s.submit(context.WithoutCancel(ctx), false)
}

func (s *Session) submit(ctx context.Context, auto bool) (domain.Result, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.StateSubmitted {
		return *s.result, false, nil
	}
	if s.state != domain.StateInProgress || s.abandoned {
		return domain.Result{}, false, domain.ErrSessionClosed
	}

	s.state = domain.StateSubmitted
	s.answers.Close()
	if s.timer != nil {
		s.timer.Stop()
	}

	now := s.now().UTC().Format(time.RFC3339)
	res := domain.Result{
		Correct:     s.answers.CorrectCount(),
		Total:       len(s.questions),
		MaxStreak:   s.answers.MaxStreak(),
		Auto:        auto,
		SubmittedAt: now,
	}
	rec := domain.AttemptRecord{
		Timestamp:  now,
		Correct:    res.Correct,
		Total:      res.Total,
		Mode:       s.cfg.Mode,
		Difficulty: s.cfg.Difficulty,
		Language:   s.cfg.Language,
		MaxStreak:  res.MaxStreak,
	}
	if s.recorder != nil {
		fresh, err := s.recorder.RecordAttempt(ctx, s.identity, rec)
		res.Recorded = err == nil
		res.NewBadges = fresh
	}
	s.result = &res

	out := res
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventSubmitted, Result: &out})
	return res, true, nil
}

// Result returns the submission result once submitted.
func (s *Session) Result() (domain.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return domain.Result{}, false
	}
	return *s.result, true
}

// Remaining returns seconds left and whether the session is timed.
func (s *Session) Remaining() (int, bool) {
	s.mu.RLock()
	timer := s.timer
	s.mu.RUnlock()
	if timer == nil {
		return 0, false
	}
	return timer.Remaining(), true
}

// Hint returns a cached hint.
func (s *Session) Hint(index int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hints[index]
	return h, ok
}

// SetHint caches a hint. It is accepted in any state, including after
// submission, and never touches answers or scores.
func (s *Session) SetHint(index int, hint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.questions) {
		return domain.ErrQuestionNotFound
	}
	s.hints[index] = hint
	s.broadcastLocked(domain.SessionEvent{Type: domain.EventHint, Index: index, Hint: hint})
	return nil
}

// Abandon stops the timer, discards answers and closes subscriptions.
// Nothing is recorded.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned {
		return
	}
	s.abandoned = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.answers != nil && s.state != domain.StateSubmitted {
		s.answers.Discard()
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// IsAbandoned reports whether Abandon was called.
func (s *Session) IsAbandoned() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.abandoned
}

// View snapshots the session for clients. Correct answers and explanations
// are withheld until they are revealed.
func (s *Session) View() domain.SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := domain.SessionView{
		ID:       s.id,
		QuizID:   s.quizID,
		Identity: s.identity,
		State:    s.state,
		Mode:     s.cfg.Mode,
		Cursor:   s.cursor,
		Total:    len(s.questions),
		Answers:  map[int]string{},
	}
	if s.timer != nil {
		r := s.timer.Remaining()
		view.Remaining = &r
	}
	submitted := s.state == domain.StateSubmitted
	view.Questions = make([]domain.Question, len(s.questions))
	for i, q := range s.questions {
		if !submitted {
			q.CorrectAnswer = ""
			q.Explanation = ""
		}
		view.Questions[i] = q
	}
	if s.answers != nil {
		view.Answers = s.answers.Snapshot()
		if s.revealedLocked() {
			indexes := make([]int, 0, len(view.Answers))
			for i := range view.Answers {
				indexes = append(indexes, i)
			}
			if submitted {
				indexes = indexes[:0]
				for i := range s.questions {
					indexes = append(indexes, i)
				}
			}
			sort.Ints(indexes)
			for _, i := range indexes {
				view.Feedback = append(view.Feedback, s.feedbackLocked(i))
			}
		}
	}
	if len(s.hints) > 0 {
		view.Hints = make(map[int]string, len(s.hints))
		for k, v := range s.hints {
			view.Hints[k] = v
		}
	}
	if s.result != nil {
		r := *s.result
		view.Result = &r
	}
	return view
}

// Subscribe returns a channel of session events. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, 8)

	s.mu.Lock()
	if s.abandoned {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(ev domain.SessionEvent) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop its oldest pending event.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
