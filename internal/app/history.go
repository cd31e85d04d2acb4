package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quizmaster/internal/domain"
)

// HistoryCap bounds the attempts kept per identity; older ones are dropped.
const HistoryCap = 200

// HistoryStore is the append-only, capped attempt list of each identity.
type HistoryStore struct {
	storage Storage
	limit   int
}

func NewHistoryStore(storage Storage) *HistoryStore {
	return &HistoryStore{storage: storage, limit: HistoryCap}
}

// Append stores rec after the existing history and keeps only the newest
// HistoryCap records. A corrupt stored history is replaced rather than
// blocking the new attempt; a failed read skips the write so the stored
// history is never clobbered.
func (h *HistoryStore) Append(ctx context.Context, id domain.Identity, rec domain.AttemptRecord) error {
	history, err := h.load(ctx, id)
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	history = append(history, rec)
	if len(history) > h.limit {
		history = history[len(history)-h.limit:]
	}
	return setJSON(ctx, h.storage, historyKey(id), history)
}

// List returns the stored history oldest-first. Unavailable or corrupt
// storage reads as an empty history.
func (h *HistoryStore) List(ctx context.Context, id domain.Identity) []domain.AttemptRecord {
	history, err := h.load(ctx, id)
	if err != nil {
		slog.Warn("history unavailable, using empty history", "identity", id, "error", err)
		return []domain.AttemptRecord{}
	}
	return history
}

// load reads the history, treating corrupt data as empty. The error is
// non-nil only when storage could not be read.
func (h *HistoryStore) load(ctx context.Context, id domain.Identity) ([]domain.AttemptRecord, error) {
	var history []domain.AttemptRecord
	if _, err := getJSON(ctx, h.storage, historyKey(id), &history); err != nil {
		if !errors.Is(err, errCorrupt) {
			return nil, err
		}
		slog.Warn("history corrupt, starting over", "identity", id, "error", err)
		history = nil
	}
	if history == nil {
		history = []domain.AttemptRecord{}
	}
	return history, nil
}

// NewestFirst returns a reversed copy for views that list recent attempts first.
func NewestFirst(history []domain.AttemptRecord) []domain.AttemptRecord {
	out := make([]domain.AttemptRecord, len(history))
	for i, rec := range history {
		out[len(history)-1-i] = rec
	}
	return out
}
