package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizmaster/internal/domain"
)

// QuizLoader fetches pre-authored quiz sets from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.QuizSet, error)
}

// QuizRepository keeps generated quiz sets in memory and caches loader
// results with TTL to avoid repeated DB hits.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	saved map[string]domain.QuizSet
	cache map[string]cachedQuiz
	rndMu sync.Mutex
}

type cachedQuiz struct {
	set       domain.QuizSet
	expiresAt time.Time
}

// NewQuizRepository builds a repository; loader may be nil when there is no
// quiz library.
func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		saved:  make(map[string]domain.QuizSet),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *QuizRepository) SaveQuiz(_ context.Context, set domain.QuizSet) error {
	r.mu.Lock()
	r.saved[set.ID] = set
	r.mu.Unlock()
	return nil
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizSet, error) {
	if set, ok := r.lookup(quizID); ok {
		return set, nil
	}
	if r.loader == nil {
		return domain.QuizSet{}, domain.ErrQuizNotFound
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		if set, ok := r.lookup(quizID); ok {
			return set, nil
		}

		set, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizSet{}, err
		}

		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{
			set:       set,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.QuizSet{}, err
	}
	return result.(domain.QuizSet), nil
}

func (r *QuizRepository) lookup(quizID string) (domain.QuizSet, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if set, ok := r.saved[quizID]; ok {
		return set, true
	}
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		return entry.set, true
	}
	return domain.QuizSet{}, false
}

// StaticQuizLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuizLoader struct {
	sets map[string]domain.QuizSet
}

func NewStaticQuizLoader(sets map[string]domain.QuizSet) *StaticQuizLoader {
	return &StaticQuizLoader{sets: sets}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.QuizSet, error) {
	if set, ok := l.sets[quizID]; ok {
		return set, nil
	}
	return domain.QuizSet{}, domain.ErrQuizNotFound
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
