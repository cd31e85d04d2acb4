package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
)

type recorderStub struct {
	mu      sync.Mutex
	records []domain.AttemptRecord
	err     error
}

func (r *recorderStub) RecordAttempt(_ context.Context, _ domain.Identity, rec domain.AttemptRecord) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.records = append(r.records, rec)
	return []string{"newbie"}, nil
}

func (r *recorderStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func twoGroupSet() domain.QuizSet {
	return domain.QuizSet{
		ID: "quiz-1",
		Groups: []domain.QuizGroup{
			{Questions: []domain.Question{
				{Type: domain.QuestionMC, Prompt: "2+2?", Options: map[string]string{"A": "3", "B": "4"}, CorrectAnswer: "B", Explanation: "Basic sum."},
				{Type: domain.QuestionTF, Prompt: "Water is wet.", Options: map[string]string{"A": "True", "B": "False"}, CorrectAnswer: "A"},
			}},
			{Questions: []domain.Question{
				{Type: domain.QuestionShort, Prompt: "Capital of France?", CorrectAnswer: "Paris"},
			}},
		},
		Snippets:   []string{"Numbers.", "Geography."},
		Language:   "en",
		Difficulty: "hard",
	}
}

var fixedNow = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func newTestSession(mode domain.Mode, rec app.AttemptRecorder) *app.Session {
	s := app.NewSessionWithClock("s-1", twoGroupSet(), domain.Guest, app.SessionConfig{Mode: mode}, rec, fixedNow)
	s.Load()
	return s
}

func TestSessionLoadStates(t *testing.T) {
	s := newTestSession(domain.ModeTest, &recorderStub{})
	if s.State() != domain.StateInProgress {
		t.Fatalf("expected in_progress, got %s", s.State())
	}
	if s.Total() != 3 {
		t.Fatalf("expected 3 questions, got %d", s.Total())
	}

	empty := app.NewSession("s-2", domain.QuizSet{ID: "empty"}, domain.Guest, app.SessionConfig{}, nil)
	if got := empty.Load(); got != domain.StateEmpty {
		t.Fatalf("expected empty, got %s", got)
	}
	if _, err := empty.SetAnswer(0, "A"); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected closed error on empty session, got %v", err)
	}
	if _, _, err := empty.Submit(context.Background()); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected closed error on submit, got %v", err)
	}
}

func TestSessionSubmitRecordsOnce(t *testing.T) {
	rec := &recorderStub{}
	s := newTestSession(domain.ModeTest, rec)

	s.SetAnswer(0, "b")
	s.SetAnswer(1, "A")
	s.SetAnswer(2, "  paris ")

	res, first, err := s.Submit(context.Background())
	if err != nil || !first {
		t.Fatalf("submit: first=%v err=%v", first, err)
	}
	if res.Correct != 3 || res.Total != 3 || res.MaxStreak != 3 || !res.Recorded {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.NewBadges) != 1 || res.NewBadges[0] != "newbie" {
		t.Fatalf("expected new badges reported, got %v", res.NewBadges)
	}

	again, first, err := s.Submit(context.Background())
	if err != nil || first {
		t.Fatalf("second submit should be a no-op: first=%v err=%v", first, err)
	}
	if again.Correct != res.Correct || again.SubmittedAt != res.SubmittedAt {
		t.Fatalf("second submit changed result: %+v vs %+v", again, res)
	}
	if rec.count() != 1 {
		t.Fatalf("expected one attempt, got %d", rec.count())
	}

	got := rec.records[0]
	if got.Mode != domain.ModeTest || got.Difficulty != "hard" || got.Language != "en" || got.MaxStreak != 3 {
		t.Fatalf("attempt record missing session settings: %+v", got)
	}
	if got.Timestamp != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %q", got.Timestamp)
	}

	if _, err := s.SetAnswer(0, "A"); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected already submitted, got %v", err)
	}
}

func TestSessionConcurrentSubmitsRecordOnce(t *testing.T) {
	rec := &recorderStub{}
	s := newTestSession(domain.ModeTest, rec)
	s.SetAnswer(0, "B")

	var wg sync.WaitGroup
	firsts := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, first, err := s.Submit(context.Background())
			if err != nil {
				t.Errorf("submit: %v", err)
			}
			firsts <- first
		}()
	}
	wg.Wait()
	close(firsts)

	n := 0
	for f := range firsts {
		if f {
			n++
		}
	}
	if n != 1 || rec.count() != 1 {
		t.Fatalf("expected exactly one winning submit and one record, got %d winners %d records", n, rec.count())
	}
}

func TestSessionPersistenceFailureKeepsResult(t *testing.T) {
	rec := &recorderStub{err: errors.New("disk full")}
	s := newTestSession(domain.ModeTest, rec)
	s.SetAnswer(0, "B")

	res, _, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit must not fail on persistence errors: %v", err)
	}
	if res.Recorded {
		t.Fatalf("expected recorded=false")
	}
	if res.Correct != 1 || res.Total != 3 {
		t.Fatalf("result lost: %+v", res)
	}
}

func TestSessionPracticeFeedback(t *testing.T) {
	s := newTestSession(domain.ModePractice, &recorderStub{})

	fb, err := s.SetAnswer(0, "A")
	if err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if !fb.Revealed || fb.Correct || fb.CorrectAnswer != "B" || fb.Explanation != "Basic sum." {
		t.Fatalf("expected revealed incorrect feedback, got %+v", fb)
	}

	test := newTestSession(domain.ModeTest, &recorderStub{})
	fb, _ = test.SetAnswer(0, "A")
	if fb.Revealed || fb.CorrectAnswer != "" {
		t.Fatalf("test mode must not reveal before submit, got %+v", fb)
	}
}

func TestSessionViewHidesAnswersUntilSubmitted(t *testing.T) {
	s := newTestSession(domain.ModeTest, &recorderStub{})
	s.SetAnswer(0, "B")

	view := s.View()
	for _, q := range view.Questions {
		if q.CorrectAnswer != "" {
			t.Fatalf("view leaked correct answer before submit")
		}
	}
	if len(view.Feedback) != 0 {
		t.Fatalf("test mode view must not carry feedback, got %+v", view.Feedback)
	}

	s.Submit(context.Background())
	view = s.View()
	if view.State != domain.StateSubmitted || view.Result == nil {
		t.Fatalf("expected submitted view with result, got %+v", view)
	}
	if view.Questions[0].CorrectAnswer != "B" {
		t.Fatalf("expected answers revealed after submit")
	}
	if len(view.Feedback) != 3 {
		t.Fatalf("expected feedback for every question after submit, got %d", len(view.Feedback))
	}
}

func TestSessionGoToClamps(t *testing.T) {
	s := newTestSession(domain.ModePractice, &recorderStub{})
	if got := s.GoTo(-3); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
	if got := s.GoTo(99); got != 2 {
		t.Fatalf("expected clamp to last, got %d", got)
	}
	s.Submit(context.Background())
	if got := s.GoTo(1); got != 1 {
		t.Fatalf("goTo must work after submit, got %d", got)
	}
}

func TestSessionAbandonRecordsNothing(t *testing.T) {
	rec := &recorderStub{}
	s := newTestSession(domain.ModeTest, rec)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.SetAnswer(0, "B")
	s.Abandon()

	if _, ok := <-ch; ok {
		t.Fatalf("expected subscription closed on abandon")
	}
	if _, _, err := s.Submit(context.Background()); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected closed error after abandon, got %v", err)
	}
	if rec.count() != 0 {
		t.Fatalf("abandon must not record, got %d", rec.count())
	}
	if len(s.View().Answers) != 0 {
		t.Fatalf("expected answers discarded")
	}
}

func TestSessionHintAfterSubmit(t *testing.T) {
	s := newTestSession(domain.ModeTest, &recorderStub{})
	s.SetAnswer(0, "B")
	res, _, _ := s.Submit(context.Background())

	if err := s.SetHint(0, "think about pairs"); err != nil {
		t.Fatalf("late hint rejected: %v", err)
	}
	if h, ok := s.Hint(0); !ok || h != "think about pairs" {
		t.Fatalf("expected cached hint, got %q", h)
	}
	after, _ := s.Result()
	if after.Correct != res.Correct {
		t.Fatalf("hint changed the result")
	}
	if err := s.SetHint(7, "x"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
}

func TestSessionSubscribersReceiveSubmit(t *testing.T) {
	s := newTestSession(domain.ModeTest, &recorderStub{})
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Submit(context.Background())

	select {
	case ev := <-ch:
		if ev.Type != domain.EventSubmitted || ev.Result == nil {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no submitted event")
	}
}

func TestSessionPracticeIsUntimed(t *testing.T) {
	s := app.NewSession("p", twoGroupSet(), domain.Guest, app.SessionConfig{Mode: domain.ModePractice, TimerMinutes: 5}, nil)
	s.Load()
	if s.StartTimer() {
		t.Fatalf("practice sessions must not start a timer")
	}
	if _, timed := s.Remaining(); timed {
		t.Fatalf("practice session reported a timer")
	}
}
