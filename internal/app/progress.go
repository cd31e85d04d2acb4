package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"quizmaster/internal/domain"
)

// ProgressService owns everything persisted per identity: attempt history,
// badge unlock state and the quiz creation counter.
type ProgressService struct {
	storage Storage
	history *HistoryStore
	badges  *BadgeStore
	now     func() time.Time

	// mu serializes read-modify-write cycles against storage.
	mu sync.Mutex
}

func NewProgressService(storage Storage) *ProgressService {
	return NewProgressServiceWithClock(storage, time.Now)
}

// NewProgressServiceWithClock is used by tests for deterministic timestamps.
func NewProgressServiceWithClock(storage Storage, now func() time.Time) *ProgressService {
	return &ProgressService{
		storage: storage,
		history: NewHistoryStore(storage),
		badges:  NewBadgeStore(storage),
		now:     now,
	}
}

// RecordAttempt appends rec to the identity's history and recomputes badges.
// It returns the newly unlocked badge ids. A non-nil error means the attempt
// may not have been persisted.
func (p *ProgressService) RecordAttempt(ctx context.Context, id domain.Identity, rec domain.AttemptRecord) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	appendErr := p.history.Append(ctx, id, rec)
	if appendErr != nil {
		slog.Error("failed to record attempt", "identity", id, "error", appendErr)
	}
	_, fresh, err := p.recomputeLocked(ctx, id)
	return fresh, errors.Join(appendErr, err)
}

// Recompute re-evaluates every badge rule against the stored history and
// merges the result monotonically into the stored unlock state.
func (p *ProgressService) Recompute(ctx context.Context, id domain.Identity) (domain.BadgeStates, []string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recomputeLocked(ctx, id)
}

// recomputeLocked never saves over badge state it could not read. A history
// or counter that could not be read only yields fewer unlocks, which the
// monotonic merge tolerates.
func (p *ProgressService) recomputeLocked(ctx context.Context, id domain.Identity) (domain.BadgeStates, []string, error) {
	states, err := p.badges.load(ctx, id)
	if err != nil {
		slog.Error("badge recompute skipped", "identity", id, "error", err)
		return domain.BadgeStates{}, nil, err
	}
	history := p.history.List(ctx, id)
	created, err := p.createdLocked(ctx, id)
	if err != nil {
		slog.Warn("creation counter unavailable", "identity", id, "error", err)
	}

	fresh := ApplyUnlocks(states, Evaluate(history, created), p.now())
	if len(fresh) == 0 {
		return states, nil, nil
	}
	if err := p.badges.Save(ctx, id, states); err != nil {
		slog.Error("failed to save badges", "identity", id, "error", err)
		return states, fresh, err
	}
	slog.Info("badges unlocked", "identity", id, "badges", fresh)
	return states, fresh, nil
}

// RecordCreation bumps the identity's quiz creation counter. A counter that
// cannot be read is left untouched.
func (p *ProgressService) RecordCreation(ctx context.Context, id domain.Identity) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := p.createdLocked(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := p.storage.Set(ctx, createdKey(id), []byte(strconv.Itoa(n+1))); err != nil {
		return n, fmt.Errorf("write creation counter: %w", err)
	}
	return n + 1, nil
}

// CreatedCount returns the identity's quiz creation counter.
func (p *ProgressService) CreatedCount(ctx context.Context, id domain.Identity) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.createdLocked(ctx, id)
	if err != nil {
		slog.Warn("creation counter unavailable", "identity", id, "error", err)
	}
	return n
}

// createdLocked reads the counter; a missing or malformed value is 0.
func (p *ProgressService) createdLocked(ctx context.Context, id domain.Identity) (int, error) {
	raw, ok, err := p.storage.Get(ctx, createdKey(id))
	if err != nil {
		return 0, fmt.Errorf("read creation counter: %w", err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

// MergeIdentity reconciles badges when prev was anonymous and next is an
// authenticated identity. Any other transition is ignored and reports false.
func (p *ProgressService) MergeIdentity(ctx context.Context, prev, next domain.Identity) (bool, error) {
	if !prev.IsGuest() || next.IsGuest() {
		return false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	anon, err := p.badges.load(ctx, prev)
	if err != nil {
		return false, err
	}
	auth, err := p.badges.load(ctx, next)
	if err != nil {
		return false, err
	}
	merged := MergeBadges(anon, auth, p.now())
	if err := p.badges.Save(ctx, next, merged); err != nil {
		return false, fmt.Errorf("save merged badges: %w", err)
	}
	slog.Info("merged guest badges", "identity", next, "guest_badges", len(anon))
	return true, nil
}

// History returns the identity's attempts newest-first.
func (p *ProgressService) History(ctx context.Context, id domain.Identity) []domain.AttemptRecord {
	return NewestFirst(p.history.List(ctx, id))
}

// Badges recomputes and returns the catalog joined with the identity's state.
func (p *ProgressService) Badges(ctx context.Context, id domain.Identity) []domain.BadgeView {
	states, _, err := p.Recompute(ctx, id)
	if err != nil {
		slog.Warn("badge recompute not persisted", "identity", id, "error", err)
	}
	return badgeViews(states)
}

// Profile assembles history, stats and badges after a recompute.
func (p *ProgressService) Profile(ctx context.Context, id domain.Identity) domain.Profile {
	badges := p.Badges(ctx, id)
	history := p.history.List(ctx, id)

	stats := domain.ProfileStats{
		Attempts:    len(history),
		BadgesTotal: len(Catalog),
	}
	sum := 0
	for _, rec := range history {
		pct := rec.Percent()
		sum += pct
		if pct > stats.BestPercent {
			stats.BestPercent = pct
		}
		if rec.Perfect() {
			stats.PerfectAttempts++
		}
	}
	if len(history) > 0 {
		stats.AveragePercent = (sum + len(history)/2) / len(history)
	}
	for _, b := range badges {
		if b.Unlocked {
			stats.BadgesUnlocked++
		}
	}

	return domain.Profile{
		Identity: id,
		History:  NewestFirst(history),
		Stats:    stats,
		Badges:   badges,
	}
}

func badgeViews(states domain.BadgeStates) []domain.BadgeView {
	views := make([]domain.BadgeView, 0, len(Catalog))
	for _, def := range Catalog {
		st := states[def.ID]
		views = append(views, domain.BadgeView{
			ID:          def.ID,
			Name:        def.DisplayName,
			Group:       def.Group,
			Description: def.Description,
			Unlocked:    st.Unlocked,
			UnlockedAt:  st.UnlockedAt,
		})
	}
	return views
}
