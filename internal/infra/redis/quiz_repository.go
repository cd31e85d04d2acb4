package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizmaster/internal/domain"
	"quizmaster/internal/infra/memory"
)

// QuizRepository keeps quiz sets in Redis as JSON and falls back to a loader
// on cache miss.
// Generated sets are stored as:  SET quiz:set:{quizID} {json}        (no expiry)
// Library sets are cached as:    SET quiz:cache:{quizID} {json} EX ttl
type QuizRepository struct {
	client *redis.Client
	loader memory.QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewQuizRepository builds a repository; loader may be nil when there is no
// quiz library.
func NewQuizRepository(client *redis.Client, loader memory.QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) SaveQuiz(ctx context.Context, set domain.QuizSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode quiz set: %w", err)
	}
	return r.client.Set(ctx, r.setKey(set.ID), raw, 0).Err()
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.QuizSet, error) {
	if set, ok := r.lookup(ctx, quizID); ok {
		return set, nil
	}
	if r.loader == nil {
		return domain.QuizSet{}, domain.ErrQuizNotFound
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if set, ok := r.lookup(ctx, quizID); ok {
			return set, nil
		}

		set, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.QuizSet{}, err
		}

		if raw, err := json.Marshal(set); err == nil {
			_ = r.client.Set(ctx, r.cacheKey(quizID), raw, r.ttlWithJitter()).Err()
		}
		return set, nil
	})
	if err != nil {
		return domain.QuizSet{}, err
	}
	return result.(domain.QuizSet), nil
}

func (r *QuizRepository) lookup(ctx context.Context, quizID string) (domain.QuizSet, bool) {
	for _, key := range []string{r.setKey(quizID), r.cacheKey(quizID)} {
		raw, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var set domain.QuizSet
		if err := json.Unmarshal(raw, &set); err != nil {
			continue
		}
		return set, true
	}
	return domain.QuizSet{}, false
}

func (r *QuizRepository) setKey(quizID string) string {
	return "quiz:set:" + quizID
}

func (r *QuizRepository) cacheKey(quizID string) string {
	return "quiz:cache:" + quizID
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
