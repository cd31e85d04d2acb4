package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"quizmaster/internal/domain"
)

// SessionRepository abstracts where live sessions are registered (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuizRepository loads and stores quiz sets (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.QuizSet, error)
	SaveQuiz(ctx context.Context, set domain.QuizSet) error
}

// Generator is the external text-generation service.
type Generator interface {
	GenerateQuiz(ctx context.Context, req domain.GenerationRequest) ([]domain.QuizGroup, error)
	Hint(ctx context.Context, req domain.HintRequest) (string, error)
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	sessions  SessionRepository
	quizzes   QuizRepository
	generator Generator
	progress  *ProgressService
	now       func() time.Time

	hintFallback func(lang string) string
}

func NewQuizService(sessions SessionRepository, quizzes QuizRepository, generator Generator, progress *ProgressService) *QuizService {
	return &QuizService{
		sessions:     sessions,
		quizzes:      quizzes,
		generator:    generator,
		progress:     progress,
		now:          time.Now,
		hintFallback: func(string) string { return "Hint unavailable right now." },
	}
}

// WithHintFallback sets the localized placeholder returned when the hint
// service fails.
func (s *QuizService) WithHintFallback(fn func(lang string) string) *QuizService {
	if fn != nil {
		s.hintFallback = fn
	}
	return s
}

// Progress exposes the per-identity progress service.
func (s *QuizService) Progress() *ProgressService {
	return s.progress
}

// Generate asks the generation service for a quiz set, stores it and bumps
// the identity's creation counter.
func (s *QuizService) Generate(ctx context.Context, id domain.Identity, req domain.GenerationRequest) (domain.QuizSet, error) {
	snippets := make([]string, 0, len(req.Snippets))
	for _, sn := range req.Snippets {
		if sn = strings.TrimSpace(sn); sn != "" {
			snippets = append(snippets, sn)
		}
	}
	if len(snippets) == 0 {
		return domain.QuizSet{}, domain.ErrNoSnippets
	}
	req.Snippets = snippets

	groups, err := s.generator.GenerateQuiz(ctx, req)
	if err != nil {
		return domain.QuizSet{}, fmt.Errorf("generate quiz: %w", err)
	}
	if len(Flatten(groups)) == 0 {
		return domain.QuizSet{}, domain.ErrNoPlayableContent
	}

	set := domain.QuizSet{
		ID:         uuid.NewString(),
		Groups:     groups,
		Snippets:   snippets,
		Language:   req.Language,
		Difficulty: req.Difficulty,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.quizzes.SaveQuiz(ctx, set); err != nil {
		return domain.QuizSet{}, fmt.Errorf("save quiz: %w", err)
	}
	if _, err := s.progress.RecordCreation(ctx, id); err != nil {
		slog.Warn("creation counter not updated", "identity", id, "error", err)
	}
	return set, nil
}

// Quiz returns a stored quiz set.
func (s *QuizService) Quiz(ctx context.Context, quizID string) (domain.QuizSet, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// StartSession loads a quiz set into a new session and starts its timer when
// the session is timed. A set without questions yields ErrNoPlayableContent.
func (s *QuizService) StartSession(ctx context.Context, id domain.Identity, quizID string, cfg SessionConfig) (*Session, error) {
	set, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	session := NewSessionWithClock(uuid.NewString(), set, id, cfg, s.progress, s.now)
	if session.Load() == domain.StateEmpty {
		return session, domain.ErrNoPlayableContent
	}
	s.sessions.Put(session)
	session.StartTimer()

	slog.Info("session started",
		"session", session.ID(), "quiz", quizID, "identity", id,
		"mode", cfg.Mode, "questions", session.Total())
	return session, nil
}

// Session looks up a live session.
func (s *QuizService) Session(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok || session.IsAbandoned() {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// SetAnswer records a response on a live session.
func (s *QuizService) SetAnswer(_ context.Context, sessionID string, index int, value string) (domain.Feedback, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return domain.Feedback{}, err
	}
	return session.SetAnswer(index, value)
}

// GoTo moves a session's cursor.
func (s *QuizService) GoTo(_ context.Context, sessionID string, index int) (int, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return 0, err
	}
	return session.GoTo(index), nil
}

// Submit finishes a session. Repeated calls return the stored result.
func (s *QuizService) Submit(ctx context.Context, sessionID string) (domain.Result, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return domain.Result{}, err
	}
	res, first, err := session.Submit(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	if first {
		slog.Info("session submitted",
			"session", sessionID, "identity", session.Identity(),
			"correct", res.Correct, "total", res.Total, "recorded", res.Recorded)
	}
	return res, nil
}

// Hint returns a hint for a question, asking the hint service on the first
// request and caching the answer on the session. Service failures return the
// placeholder without caching it.
func (s *QuizService) Hint(ctx context.Context, sessionID string, index int) (string, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return "", err
	}
	if hint, ok := session.Hint(index); ok {
		return hint, nil
	}
	q, err := session.Question(index)
	if err != nil {
		return "", err
	}

	lang := session.Language()
	snippet := ""
	if set, err := s.quizzes.GetQuiz(ctx, session.QuizID()); err == nil {
		snippet = set.Snippet(q.GroupIndex)
	}

	hint, err := s.generator.Hint(ctx, domain.HintRequest{
		Question: q.Prompt,
		Snippet:  snippet,
		Language: lang,
	})
	if err != nil || strings.TrimSpace(hint) == "" {
		slog.Warn("hint unavailable", "session", sessionID, "index", index, "error", err)
		return s.hintFallback(lang), nil
	}
	if err := session.SetHint(index, hint); err != nil {
		return "", err
	}
	return hint, nil
}

// Abandon stops a session without recording anything and unregisters it.
func (s *QuizService) Abandon(_ context.Context, sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Abandon()
	s.sessions.Delete(sessionID)
	slog.Info("session abandoned", "session", sessionID)
	return nil
}

// Subscribe returns live events for a session. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.SessionEvent, func(), error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}
